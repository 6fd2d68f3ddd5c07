// Package credentials keeps the per-user records under {users root}/{email}:
// the password verification blob, the display name and the registered
// devices. Every record is JSON encrypted with the user's derived key, except
// for plaintext accounts whose records are stored as raw JSON.
package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/dmitrijs2005/nosuite/internal/common"
	"github.com/dmitrijs2005/nosuite/internal/cryptox"
	"github.com/dmitrijs2005/nosuite/internal/logging"
	"github.com/dmitrijs2005/nosuite/internal/server/models"
	"github.com/dmitrijs2005/nosuite/internal/server/paths"
)

const (
	verificationFile = "verification.enc"
	nameFile         = "name.enc"
	devicesFile      = "devices.enc"
)

type Store struct {
	paths     *paths.Resolver
	cipher    *cryptox.Cipher
	plaintext cryptox.PlaintextAccounts
	log       logging.Logger

	mu sync.Mutex // guards device list read-modify-write
}

func NewStore(resolver *paths.Resolver, cipher *cryptox.Cipher, plaintext cryptox.PlaintextAccounts, log logging.Logger) *Store {
	return &Store{
		paths:     resolver,
		cipher:    cipher,
		plaintext: plaintext,
		log:       log.With("module", "credentials"),
	}
}

// Exists reports whether a user directory exists for email.
func (s *Store) Exists(email string) bool {
	dir, err := s.paths.UserDir(email)
	if err != nil {
		return false
	}
	fi, err := os.Stat(dir)
	return err == nil && fi.IsDir()
}

// Create makes the user directory and writes the verification and name
// records. It fails with ErrUserExists if the directory is already there.
func (s *Store) Create(email, name string, key []byte) error {
	dir, err := s.paths.UserDir(email)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.paths.UsersRoot(), 0o700); err != nil {
		return fmt.Errorf("users root: %w", err)
	}
	if err := os.Mkdir(dir, 0o700); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return common.ErrUserExists
		}
		return fmt.Errorf("create user dir: %w", err)
	}

	if err := s.writeRecord(email, verificationFile, common.PasswordSentinel, key); err != nil {
		return err
	}
	return s.writeRecord(email, nameFile, name, key)
}

// VerifyPassword reports whether key opens the verification record.
func (s *Store) VerifyPassword(email string, key []byte) bool {
	var sentinel string
	if err := s.readRecord(email, verificationFile, &sentinel, key); err != nil {
		return false
	}
	return sentinel == common.PasswordSentinel
}

func (s *Store) Name(email string, key []byte) (string, error) {
	var name string
	if err := s.readRecord(email, nameFile, &name, key); err != nil {
		return "", err
	}
	return name, nil
}

func (s *Store) SetName(email, name string, key []byte) error {
	return s.writeRecord(email, nameFile, name, key)
}

// Devices returns the registered devices. A user without devices.enc has none.
func (s *Store) Devices(email string, key []byte) ([]models.Device, error) {
	var devices []models.Device
	err := s.readRecord(email, devicesFile, &devices, key)
	if errors.Is(err, common.ErrNotFound) {
		return []models.Device{}, nil
	}
	if err != nil {
		return nil, err
	}
	return devices, nil
}

// AddDevice registers d, replacing the metadata of a device with the same id.
func (s *Store) AddDevice(email string, d models.Device, key []byte) error {
	if d.ID == "" {
		return fmt.Errorf("device id: %w", common.ErrBadRequest)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	devices, err := s.Devices(email, key)
	if err != nil {
		return err
	}

	replaced := false
	for i := range devices {
		if devices[i].ID == d.ID {
			devices[i] = d
			replaced = true
			break
		}
	}
	if !replaced {
		devices = append(devices, d)
	}

	return s.writeRecord(email, devicesFile, devices, key)
}

// HasDevice reports whether deviceID is registered to email.
func (s *Store) HasDevice(email, deviceID string, key []byte) (bool, error) {
	devices, err := s.Devices(email, key)
	if err != nil {
		return false, err
	}
	for _, d := range devices {
		if d.ID == deviceID {
			return true, nil
		}
	}
	return false, nil
}

// Clone replaces the whole tree of dst with a copy of src. Both accounts are
// expected to be plaintext accounts; files are copied byte for byte.
func (s *Store) Clone(ctx context.Context, src, dst string) error {
	srcDir, err := s.paths.UserDir(src)
	if err != nil {
		return err
	}
	dstDir, err := s.paths.UserDir(dst)
	if err != nil {
		return err
	}
	if !s.plaintext.Contains(src) || !s.plaintext.Contains(dst) {
		return fmt.Errorf("clone %s: %w", dst, common.ErrForbidden)
	}

	if fi, err := os.Stat(srcDir); err != nil || !fi.IsDir() {
		return fmt.Errorf("clone from %s: %w", src, common.ErrNotFound)
	}

	if err := os.RemoveAll(dstDir); err != nil {
		return fmt.Errorf("clear %s: %w", dst, err)
	}

	err = filepath.WalkDir(srcDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rel, err := filepath.Rel(srcDir, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dstDir, rel)

		switch {
		case d.IsDir():
			return os.MkdirAll(target, 0o700)
		case d.Type().IsRegular():
			return copyFile(p, target)
		default:
			return nil
		}
	})
	if err != nil {
		return fmt.Errorf("clone %s: %w", dst, err)
	}

	s.log.Info(ctx, "account reset from template", "account", dst)
	return nil
}

func (s *Store) writeRecord(email, file string, v any, key []byte) error {
	dir, err := s.paths.UserDir(email)
	if err != nil {
		return err
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", file, err)
	}
	if !s.plaintext.Contains(email) {
		data, err = s.cipher.Encrypt(data, key)
		if err != nil {
			return fmt.Errorf("encrypt %s: %w", file, err)
		}
	}

	if err := os.WriteFile(filepath.Join(dir, file), data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", file, err)
	}
	return nil
}

func (s *Store) readRecord(email, file string, v any, key []byte) error {
	dir, err := s.paths.UserDir(email)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(filepath.Join(dir, file))
	if errors.Is(err, fs.ErrNotExist) {
		return common.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", file, err)
	}

	if !s.plaintext.Contains(email) {
		data = s.cipher.Decrypt(data, key)
		if data == nil {
			return common.ErrDecryptFailure
		}
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", file, common.ErrDecryptFailure)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
