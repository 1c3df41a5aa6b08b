// Package storage provides the durable byte store behind the hierarchy
// index: bytes in, a stable path out. The index records the path and never
// manages its lifecycle.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// BlobStore persists uploaded file bytes and hands back a stable path the
// same bytes can later be re-read from.
type BlobStore interface {
	Save(name string, data []byte) (string, error)
	Exists(path string) bool
}

// DiskStore writes blobs under a single directory, one file per slice.
type DiskStore struct {
	dir string
}

// NewDiskStore creates the upload directory if needed.
func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir %s: %w", dir, err)
	}
	return &DiskStore{dir: dir}, nil
}

// Save writes data to <dir>/<name>.dcm and returns the path.
func (s *DiskStore) Save(name string, data []byte) (string, error) {
	path := filepath.Join(s.dir, name+".dcm")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write blob %s: %w", path, err)
	}
	return path, nil
}

// Exists reports whether the backing file is still present.
func (s *DiskStore) Exists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

// Dir returns the store's root directory.
func (s *DiskStore) Dir() string {
	return s.dir
}
