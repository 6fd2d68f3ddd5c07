// Package cryptox derives the server's symmetric keys and seals user data.
//
// Key hierarchy:
//
//	physical key + admin password --argon2id--> master key      (bootstrap)
//	master key + password hash    --scrypt-->   user key        (per user)
//
// The master key alone (empty password hash) encrypts password-independent
// material such as bearer tokens.
package cryptox

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/scrypt"
)

// KeySize is the AES-256 key size used everywhere.
const KeySize = 32

// scrypt parameters. They match the values existing user trees were written
// with and must not change without re-encrypting every file.
const (
	scryptN = 16384
	scryptR = 8
	scryptP = 1
)

// keyCacheSize bounds the number of derived user keys kept in memory.
const keyCacheSize = 1024

var ErrInvalidKeyLength = errors.New("cryptox: master key must be 32 bytes")

// HashPassword is the client-independent password hash fed into key
// derivation: hex(sha256(password)).
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// DeriveMasterKey stretches the admin password hash with the physical key.
func DeriveMasterKey(physicalKey []byte, adminPasswordHash string) []byte {
	return argon2.IDKey([]byte(adminPasswordHash), physicalKey, 1, 64*1024, 4, KeySize)
}

// Keyring derives user keys from the master key. Derivation is slow on
// purpose, so results are cached per password hash.
type Keyring struct {
	master []byte

	mu    sync.Mutex
	cache map[string][]byte
}

func NewKeyring(master []byte) (*Keyring, error) {
	if len(master) != KeySize {
		return nil, ErrInvalidKeyLength
	}
	m := make([]byte, KeySize)
	copy(m, master)
	return &Keyring{master: m, cache: make(map[string][]byte)}, nil
}

// UserKey returns the key for passwordHash, or the master key itself when
// passwordHash is empty. The returned slice must not be modified.
func (k *Keyring) UserKey(passwordHash string) ([]byte, error) {
	if passwordHash == "" {
		return k.master, nil
	}

	k.mu.Lock()
	key, ok := k.cache[passwordHash]
	k.mu.Unlock()
	if ok {
		return key, nil
	}

	key, err := scrypt.Key([]byte(passwordHash), k.master, scryptN, scryptR, scryptP, KeySize)
	if err != nil {
		return nil, err
	}

	k.mu.Lock()
	if len(k.cache) >= keyCacheSize {
		k.cache = make(map[string][]byte)
	}
	k.cache[passwordHash] = key
	k.mu.Unlock()

	return key, nil
}
