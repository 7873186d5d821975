package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FileMode is the permission of files written by LocalStore.
const FileMode os.FileMode = 0o644

// LocalStore writes files below a root directory.
type LocalStore struct {
	root string
}

// NewLocalStore returns a store rooted at dir. The directory is created on
// the first Put.
func NewLocalStore(dir string) (*LocalStore, error) {
	if dir == "" {
		dir = "."
	}
	return &LocalStore{root: filepath.Clean(dir)}, nil
}

// Root returns the store directory.
func (s *LocalStore) Root() string {
	return s.root
}

// Location returns the file path for key.
func (s *LocalStore) Location(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

// Put writes r to the file for key, creating parent directories. The file
// is written to a temporary name first so readers never see partial data.
func (s *LocalStore) Put(ctx context.Context, key, _ string, r io.Reader) (string, error) {
	k, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dst := s.Location(k)
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return "", fmt.Errorf("failed to create directory for %s: %w", dst, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".pixkit-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	if err := tmp.Chmod(FileMode); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to set permissions on %s: %w", dst, err)
	}
	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write %s: %w", dst, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write %s: %w", dst, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to move %s into place: %w", dst, err)
	}
	return dst, nil
}
