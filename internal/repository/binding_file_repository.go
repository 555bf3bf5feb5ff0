package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/noah-isme/attendance-sheet/internal/models"
)

// FileBindingRepository persists the binding as a YAML document on disk.
type FileBindingRepository struct {
	path string
}

// NewFileBindingRepository constructs the repository for path.
func NewFileBindingRepository(path string) *FileBindingRepository {
	return &FileBindingRepository{path: path}
}

// Load reads the binding. A missing file yields an empty binding.
func (r *FileBindingRepository) Load(_ context.Context) (models.Binding, error) {
	if r.path == "" {
		return models.Binding{}, errors.New("binding path is empty")
	}
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return models.Binding{}, nil
		}
		return models.Binding{}, fmt.Errorf("read binding: %w", err)
	}
	var binding models.Binding
	if err := yaml.Unmarshal(data, &binding); err != nil {
		return models.Binding{}, fmt.Errorf("decode binding: %w", err)
	}
	return binding, nil
}

// Save writes the binding atomically (temp file + rename) with 0600 perms.
func (r *FileBindingRepository) Save(_ context.Context, binding models.Binding) error {
	if r.path == "" {
		return errors.New("binding path is empty")
	}
	if binding.UpdatedAt.IsZero() {
		binding.UpdatedAt = time.Now().UTC()
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("prepare binding directory: %w", err)
	}

	data, err := yaml.Marshal(&binding)
	if err != nil {
		return fmt.Errorf("encode binding: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".binding-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp binding: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write binding: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync binding: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close binding: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("chmod binding: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		return fmt.Errorf("replace binding: %w", err)
	}
	return nil
}
