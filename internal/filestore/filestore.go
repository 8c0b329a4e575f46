// Package filestore persists uploaded documents on the local filesystem,
// keyed by owner and record id.
package filestore

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// Store writes and reads upload files under a base directory.
type Store struct {
	baseDir string
	logger  *zap.Logger
}

// New creates a file store rooted at baseDir.
func New(baseDir string, logger *zap.Logger) *Store {
	return &Store{baseDir: baseDir, logger: logger.Named("filestore")}
}

// Save persists data under base/<keys...>/<filename> and returns the path.
func (s *Store) Save(filename string, data []byte, keys ...string) (string, error) {
	dir := filepath.Join(append([]string{s.baseDir}, keys...)...)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload directory: %w", err)
	}
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}
	return path, nil
}

// Exists reports whether a stored file is present.
func (s *Store) Exists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Read returns the raw bytes of a stored file.
func (s *Store) Read(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// Delete removes a stored file and prunes now-empty parent directories up
// to the base directory.
func (s *Store) Delete(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	s.pruneEmptyParents(filepath.Dir(path))
	return nil
}

func (s *Store) pruneEmptyParents(dir string) {
	base, err := filepath.Abs(s.baseDir)
	if err != nil {
		return
	}
	for {
		abs, err := filepath.Abs(dir)
		if err != nil || abs == base || !within(base, abs) {
			return
		}
		if err := os.Remove(abs); err != nil {
			// Not empty or already gone; either way stop pruning.
			return
		}
		dir = filepath.Dir(abs)
	}
}

func within(base, path string) bool {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return false
	}
	return rel != ".." && !filepath.IsAbs(rel) && (len(rel) < 3 || rel[:3] != ".."+string(filepath.Separator))
}
