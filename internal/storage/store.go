// Package storage provides the document store port used by the pipeline
// plus local-disk and Google Drive backends. All backends speak bytes;
// workbook helpers sit on top so callers never care where a file lives.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// ErrNotExist is returned by Read when the path has no file.
var ErrNotExist = errors.New("storage: file does not exist")

// Store is the document store port. Paths are slash-separated and
// relative to the backend's root.
type Store interface {
	// Exists reports whether path holds a file.
	Exists(ctx context.Context, path string) (bool, error)

	// Read returns the file contents, or ErrNotExist.
	Read(ctx context.Context, path string) ([]byte, error)

	// Write stores data at path, creating parent directories and
	// replacing any existing file.
	Write(ctx context.Context, path string, data []byte) error

	// EnsureDir creates the directory path if absent.
	EnsureDir(ctx context.Context, path string) error
}

// OpenWorkbook loads an xlsx workbook from the store. The second return
// is false when the file does not exist; that is not an error.
func OpenWorkbook(ctx context.Context, s Store, path string) (*excelize.File, bool, error) {
	data, err := s.Read(ctx, path)
	if errors.Is(err, ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, false, fmt.Errorf("open workbook %s: %w", path, err)
	}
	return f, true, nil
}

// SaveWorkbook serializes the workbook and writes it to the store.
func SaveWorkbook(ctx context.Context, s Store, path string, f *excelize.File) error {
	buf, err := f.WriteToBuffer()
	if err != nil {
		return fmt.Errorf("serialize workbook %s: %w", path, err)
	}
	return s.Write(ctx, path, buf.Bytes())
}
