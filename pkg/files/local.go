package files

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	defaultDirMode  = 0o750
	defaultFileMode = 0o640
)

// LocalStore is a Store rooted at a directory on the local filesystem.
type LocalStore struct {
	root string
}

// NewLocalStore creates a store rooted at dir.
func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{root: filepath.Clean(dir)}
}

// Read returns the content of a file below the root.
func (s *LocalStore) Read(_ context.Context, p string) ([]byte, error) {
	full, err := s.resolve(p)
	if err != nil {
		return nil, err
	}
	// #nosec G304 -- path is confined to the store root by resolve
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("reading file %s: %w", p, err)
	}
	return data, nil
}

// Write replaces the content of a file below the root, creating parent
// directories as needed.
func (s *LocalStore) Write(_ context.Context, p string, data []byte) error {
	full, err := s.resolve(p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), defaultDirMode); err != nil {
		return fmt.Errorf("creating directory for %s: %w", p, err)
	}
	if err := os.WriteFile(full, data, defaultFileMode); err != nil {
		return fmt.Errorf("writing file %s: %w", p, err)
	}
	return nil
}

func (s *LocalStore) resolve(p string) (string, error) {
	if p == "" || filepath.IsAbs(p) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	full := filepath.Join(s.root, filepath.FromSlash(p))
	rel, err := filepath.Rel(s.root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	return full, nil
}

// Verify interface compliance.
var _ Store = (*LocalStore)(nil)
