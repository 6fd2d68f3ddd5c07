package allowlist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
)

// FileRepository reads {dir}/{list}.json, a JSON array of emails, on every
// call so edits apply without a restart. A missing file is an empty list.
type FileRepository struct {
	dir string
}

func NewFileRepository(dir string) *FileRepository {
	return &FileRepository{dir: dir}
}

func (r *FileRepository) Contains(ctx context.Context, list, email string) (bool, error) {
	emails, err := r.Load(list)
	if err != nil {
		return false, err
	}
	return slices.Contains(emails, email), nil
}

// Load returns every email of list.
func (r *FileRepository) Load(list string) ([]string, error) {
	data, err := os.ReadFile(filepath.Join(r.dir, list+".json"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", list, err)
	}

	var emails []string
	if err := json.Unmarshal(data, &emails); err != nil {
		return nil, fmt.Errorf("parse %s: %w", list, err)
	}
	return emails, nil
}
