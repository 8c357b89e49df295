package storage

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// LocalStore keeps documents on the local filesystem under a root
// directory.
type LocalStore struct {
	root   string
	logger *slog.Logger
}

// NewLocalStore creates a LocalStore rooted at dir.
func NewLocalStore(dir string, logger *slog.Logger) *LocalStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalStore{root: dir, logger: logger.With(slog.String("store", "local"))}
}

func (s *LocalStore) abs(path string) string {
	return filepath.Join(s.root, filepath.FromSlash(path))
}

func (s *LocalStore) Exists(_ context.Context, path string) (bool, error) {
	_, err := os.Stat(s.abs(path))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (s *LocalStore) Read(_ context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(s.abs(path))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotExist
	}
	return data, err
}

func (s *LocalStore) Write(_ context.Context, path string, data []byte) error {
	full := s.abs(path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return err
	}
	s.logger.Debug("file written", slog.String("path", path), slog.Int("bytes", len(data)))
	return nil
}

func (s *LocalStore) EnsureDir(_ context.Context, path string) error {
	return os.MkdirAll(s.abs(path), 0o755)
}
