package storage

import (
	"context"
	"errors"
	"log/slog"
)

// FallbackStore reads from the primary backend when the file exists
// there, otherwise from the secondary. Writes go to the primary only;
// the secondary is a read-side safety net, not a mirror.
type FallbackStore struct {
	primary   Store
	secondary Store
	logger    *slog.Logger
}

// NewFallbackStore wires a primary store with a secondary read fallback.
func NewFallbackStore(primary, secondary Store, logger *slog.Logger) *FallbackStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackStore{
		primary:   primary,
		secondary: secondary,
		logger:    logger.With(slog.String("store", "fallback")),
	}
}

func (s *FallbackStore) Exists(ctx context.Context, path string) (bool, error) {
	ok, err := s.primary.Exists(ctx, path)
	if err == nil && ok {
		return true, nil
	}
	if err != nil {
		s.logger.Warn("primary exists check failed, trying secondary",
			slog.String("path", path), slog.String("error", err.Error()))
	}
	return s.secondary.Exists(ctx, path)
}

func (s *FallbackStore) Read(ctx context.Context, path string) ([]byte, error) {
	data, err := s.primary.Read(ctx, path)
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, ErrNotExist) {
		s.logger.Warn("primary read failed, trying secondary",
			slog.String("path", path), slog.String("error", err.Error()))
	}
	return s.secondary.Read(ctx, path)
}

func (s *FallbackStore) Write(ctx context.Context, path string, data []byte) error {
	return s.primary.Write(ctx, path, data)
}

func (s *FallbackStore) EnsureDir(ctx context.Context, path string) error {
	perr := s.primary.EnsureDir(ctx, path)
	serr := s.secondary.EnsureDir(ctx, path)
	if perr != nil && serr != nil {
		return perr
	}
	return nil
}
