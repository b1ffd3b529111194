package dal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"birthdaybot/models"
)

// dataFileMode keeps data.json readable by other local users, as a plain
// write would.
const dataFileMode os.FileMode = 0644

// JSONFileBackend stores the snapshot as a data.json document.
type JSONFileBackend struct {
	path string
}

// NewJSONFileBackend returns a backend writing to path.
func NewJSONFileBackend(path string) *JSONFileBackend {
	return &JSONFileBackend{path: path}
}

// Load reads the document. A missing file is an empty store.
func (b *JSONFileBackend) Load(ctx context.Context) (map[string]*models.Community, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]*models.Community), nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", b.path, err)
	}
	return decodeDocument(data)
}

// Save replaces the document atomically.
func (b *JSONFileBackend) Save(ctx context.Context, communities map[string]*models.Community) error {
	data, err := encodeDocument(communities)
	if err != nil {
		return err
	}

	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(b.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(dataFileMode); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set temp file mode: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), b.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", b.path, err)
	}
	return nil
}
