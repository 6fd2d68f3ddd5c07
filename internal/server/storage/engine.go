// Package storage implements file and directory operations inside a
// user+app tree. Every operation resolves its path through the confinement
// resolver first. File content is sealed with the caller's key, except for
// plaintext accounts.
package storage

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/nosuite/internal/common"
	"github.com/dmitrijs2005/nosuite/internal/cryptox"
	"github.com/dmitrijs2005/nosuite/internal/logging"
	"github.com/dmitrijs2005/nosuite/internal/server/models"
	"github.com/dmitrijs2005/nosuite/internal/server/paths"
)

const (
	// chunkSuffix marks the side file a chunked upload accumulates into.
	chunkSuffix = ".temp"
	// partSuffix marks a file being replaced atomically by Write.
	partSuffix = ".nspart"
)

// Caller identifies who runs an operation and with which key.
type Caller struct {
	Email    string
	App      string
	ClientID string
	Key      []byte
}

// Notifier receives an event after every successful mutation. Notify must not
// block on slow consumers.
type Notifier interface {
	Notify(ctx context.Context, ev models.ChangeEvent)
}

type Engine struct {
	paths     *paths.Resolver
	cipher    *cryptox.Cipher
	plaintext cryptox.PlaintextAccounts
	pool      *workerPool
	locks     *pathLocks
	notifiers []Notifier
	log       logging.Logger
}

func NewEngine(resolver *paths.Resolver, cipher *cryptox.Cipher, plaintext cryptox.PlaintextAccounts, workers int, log logging.Logger) *Engine {
	return &Engine{
		paths:     resolver,
		cipher:    cipher,
		plaintext: plaintext,
		pool:      newWorkerPool(workers),
		locks:     newPathLocks(),
		log:       log.With("module", "storage"),
	}
}

// AddNotifier registers n. Not safe to call once requests are served.
func (e *Engine) AddNotifier(n Notifier) {
	e.notifiers = append(e.notifiers, n)
}

// Mkdir creates the directory and its parents. An existing directory is not
// an error; only an actual creation is broadcast.
func (e *Engine) Mkdir(ctx context.Context, c Caller, logical string) error {
	p, err := e.resolveTarget(c, logical)
	if err != nil {
		return err
	}

	created := false
	err = e.pool.do(ctx, func() error {
		fi, err := os.Stat(p.Full)
		if err == nil {
			if fi.IsDir() {
				return nil
			}
			return fmt.Errorf("mkdir %s: %w", p.Logical, common.ErrBadRequest)
		}
		if err := os.MkdirAll(p.Full, 0o700); err != nil {
			return internal("mkdir", err)
		}
		created = true
		return nil
	})
	if err != nil {
		return err
	}

	if created {
		e.notify(ctx, c, p.Logical, models.ActionMkdir, nil)
	}
	return nil
}

// Ls lists the immediate children of a directory.
func (e *Engine) Ls(ctx context.Context, c Caller, logical string) ([]models.Entry, error) {
	p, err := e.resolve(c, logical)
	if err != nil {
		return nil, err
	}

	var entries []models.Entry
	err = e.pool.do(ctx, func() error {
		if err := requireDir(p.Full); err != nil {
			return err
		}
		entries, err = e.list(p)
		return err
	})
	return entries, err
}

// LsRecursive lists every descendant breadth first. Symlinks are listed
// as files and never followed.
func (e *Engine) LsRecursive(ctx context.Context, c Caller, logical string) ([]models.Entry, error) {
	p, err := e.resolve(c, logical)
	if err != nil {
		return nil, err
	}

	all := []models.Entry{}
	err = e.pool.do(ctx, func() error {
		if err := requireDir(p.Full); err != nil {
			return err
		}

		queue := []paths.Resolved{p}
		for len(queue) > 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
			dir := queue[0]
			queue = queue[1:]

			entries, err := e.list(dir)
			if err != nil {
				// a directory removed mid-walk is skipped
				if errors.Is(err, common.ErrNotFound) {
					continue
				}
				return err
			}
			for _, entry := range entries {
				all = append(all, entry)
				if !entry.IsDirectory {
					continue
				}
				child, err := dir.Child(entry.Name)
				if err != nil {
					return err
				}
				queue = append(queue, child)
			}
		}
		return nil
	})
	return all, err
}

// Read returns the decrypted content of a file. A missing path or a
// directory is ErrNotFound; content that does not open is ErrDecryptFailure.
func (e *Engine) Read(ctx context.Context, c Caller, logical string) ([]byte, error) {
	p, err := e.resolve(c, logical)
	if err != nil {
		return nil, err
	}

	var content []byte
	err = e.pool.do(ctx, func() error {
		fi, err := os.Lstat(p.Full)
		if errors.Is(err, fs.ErrNotExist) {
			return common.ErrNotFound
		}
		if err != nil {
			return internal("read", err)
		}
		if !fi.Mode().IsRegular() {
			return common.ErrNotFound
		}

		raw, err := os.ReadFile(p.Full)
		if err != nil {
			return internal("read", err)
		}
		content, err = e.open(c, raw)
		return err
	})
	return content, err
}

// Write replaces the file content. Parent directories are created.
func (e *Engine) Write(ctx context.Context, c Caller, logical string, content []byte) error {
	p, err := e.resolveTarget(c, logical)
	if err != nil {
		return err
	}

	err = e.pool.do(ctx, func() error {
		unlock := e.locks.lock(p.Full)
		defer unlock()
		return e.store(c, p, content)
	})
	if err != nil {
		return err
	}

	e.notify(ctx, c, p.Logical, models.ActionWrite, content)
	return nil
}

// WriteChunk appends chunk to the side file of logical. On the final chunk
// the accumulated data URL is decoded, stored as the file content and the
// side file removed. Only the final chunk is broadcast.
func (e *Engine) WriteChunk(ctx context.Context, c Caller, logical string, chunk []byte, final bool) error {
	p, err := e.resolveTarget(c, logical)
	if err != nil {
		return err
	}
	if p.Full == p.Root {
		return fmt.Errorf("write-chunk: %w", common.ErrBadRequest)
	}
	temp := p.Full + chunkSuffix

	err = e.pool.do(ctx, func() error {
		unlock := e.locks.lock(p.Full)
		defer unlock()

		if err := os.MkdirAll(filepath.Dir(p.Full), 0o700); err != nil {
			return internal("write-chunk", err)
		}
		if err := appendFile(temp, chunk); err != nil {
			return internal("write-chunk", err)
		}
		if !final {
			return nil
		}

		dataURL, err := os.ReadFile(temp)
		if err != nil {
			return internal("write-chunk", err)
		}
		// the side file is useless once the final chunk arrived
		defer os.Remove(temp)

		content, err := decodeDataURL(dataURL)
		if err != nil {
			return err
		}
		return e.store(c, p, content)
	})
	if err != nil {
		return err
	}

	if final {
		e.notify(ctx, c, p.Logical, models.ActionWrite, nil)
	}
	return nil
}

// Rm removes a file or a whole directory tree.
func (e *Engine) Rm(ctx context.Context, c Caller, logical string) error {
	p, err := e.resolve(c, logical)
	if err != nil {
		return err
	}

	err = e.pool.do(ctx, func() error {
		unlock := e.locks.lock(p.Full)
		defer unlock()

		if _, err := os.Lstat(p.Full); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return common.ErrNotFound
			}
			return internal("rm", err)
		}
		if err := os.RemoveAll(p.Full); err != nil {
			return internal("rm", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	e.notify(ctx, c, p.Logical, models.ActionRm, nil)
	return nil
}

// resolve confines logical and makes sure the app root exists.
func (e *Engine) resolve(c Caller, logical string) (paths.Resolved, error) {
	p, err := e.paths.Resolve(c.Email, c.App, logical)
	if err != nil {
		return paths.Resolved{}, err
	}
	if err := os.MkdirAll(p.Root, 0o700); err != nil {
		return paths.Resolved{}, internal("app root", err)
	}
	return p, nil
}

// resolveTarget is resolve for paths about to be created. Names carrying a
// scratch suffix are reserved for side files, which ls hides and the reaper
// deletes.
func (e *Engine) resolveTarget(c Caller, logical string) (paths.Resolved, error) {
	p, err := e.resolve(c, logical)
	if err != nil {
		return paths.Resolved{}, err
	}
	for _, seg := range strings.Split(p.Logical, "/") {
		if isScratch(seg) {
			return paths.Resolved{}, fmt.Errorf("reserved name %q: %w", seg, common.ErrBadRequest)
		}
	}
	return p, nil
}

func (e *Engine) list(dir paths.Resolved) ([]models.Entry, error) {
	items, err := os.ReadDir(dir.Full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, internal("ls", err)
	}

	entries := make([]models.Entry, 0, len(items))
	for _, item := range items {
		name := item.Name()
		if !item.IsDir() && isScratch(name) {
			continue
		}
		child, err := dir.Child(name)
		if err != nil {
			continue
		}
		entries = append(entries, models.Entry{
			Name:        name,
			Path:        child.Logical,
			IsDirectory: item.IsDir(),
		})
	}
	return entries, nil
}

func (e *Engine) store(c Caller, p paths.Resolved, content []byte) error {
	if p.Full == p.Root {
		return fmt.Errorf("write: %w", common.ErrBadRequest)
	}
	if fi, err := os.Stat(p.Full); err == nil && fi.IsDir() {
		return fmt.Errorf("write %s: %w", p.Logical, common.ErrBadRequest)
	}

	data := content
	if !e.plaintext.Contains(c.Email) {
		var err error
		data, err = e.cipher.Encrypt(content, c.Key)
		if err != nil {
			return internal("encrypt", err)
		}
	}

	dir := filepath.Dir(p.Full)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return internal("write", err)
	}

	f, err := os.CreateTemp(dir, "."+filepath.Base(p.Full)+".*"+partSuffix)
	if err != nil {
		return internal("write", err)
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return internal("write", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return internal("write", err)
	}
	if err := os.Rename(tmp, p.Full); err != nil {
		os.Remove(tmp)
		return internal("write", err)
	}
	return nil
}

func (e *Engine) open(c Caller, raw []byte) ([]byte, error) {
	if e.plaintext.Contains(c.Email) {
		return raw, nil
	}
	content := e.cipher.Decrypt(raw, c.Key)
	if content == nil {
		return nil, common.ErrDecryptFailure
	}
	return content, nil
}

func (e *Engine) notify(ctx context.Context, c Caller, logical, action string, content []byte) {
	ev := models.ChangeEvent{
		Email:    c.Email,
		App:      c.App,
		Path:     logical,
		Action:   action,
		Content:  content,
		ClientID: c.ClientID,
	}
	for _, n := range e.notifiers {
		n.Notify(ctx, ev)
	}
}

func requireDir(full string) error {
	fi, err := os.Stat(full)
	if errors.Is(err, fs.ErrNotExist) {
		return common.ErrNotFound
	}
	if err != nil {
		return internal("stat", err)
	}
	if !fi.IsDir() {
		return common.ErrNotFound
	}
	return nil
}

func appendFile(name string, data []byte) error {
	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// decodeDataURL turns "<mime prefix>,<base64>" into bytes.
func decodeDataURL(dataURL []byte) ([]byte, error) {
	i := bytes.IndexByte(dataURL, ',')
	if i < 0 {
		return nil, fmt.Errorf("data url: missing separator: %w", common.ErrBadRequest)
	}
	payload := bytes.TrimSpace(dataURL[i+1:])

	out := make([]byte, base64.StdEncoding.DecodedLen(len(payload)))
	n, err := base64.StdEncoding.Decode(out, payload)
	if err != nil {
		return nil, fmt.Errorf("data url: %w", common.ErrBadRequest)
	}
	return out[:n], nil
}

func isScratch(name string) bool {
	return strings.HasSuffix(name, chunkSuffix) || strings.HasSuffix(name, partSuffix)
}

func internal(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, common.ErrInternal, err)
}
