package storage

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ReapTemp deletes chunk side files and abandoned atomic-write files under
// the users root that were last modified before olderThan ago. It returns
// the number of files removed.
func (e *Engine) ReapTemp(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	removed := 0

	err := filepath.WalkDir(e.paths.UsersRoot(), func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !d.Type().IsRegular() || !isScratch(d.Name()) {
			return nil
		}

		info, err := d.Info()
		if err != nil || info.ModTime().After(cutoff) {
			return nil
		}

		// chunk appends hold the lock of the target path
		target := strings.TrimSuffix(p, chunkSuffix)
		unlock := e.locks.lock(target)
		defer unlock()

		if info, err := os.Stat(p); err != nil || info.ModTime().After(cutoff) {
			return nil
		}
		if err := os.Remove(p); err == nil {
			removed++
		}
		return nil
	})
	if err != nil {
		return removed, err
	}

	if removed > 0 {
		e.log.Info(ctx, "orphaned upload files removed", "count", removed)
	}
	return removed, nil
}

// RunReaper calls ReapTemp at startup and then every interval until ctx ends.
func (e *Engine) RunReaper(ctx context.Context, interval, olderThan time.Duration) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		if _, err := e.ReapTemp(ctx, olderThan); err != nil && ctx.Err() == nil {
			e.log.Warn(ctx, "temp reaper failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}
