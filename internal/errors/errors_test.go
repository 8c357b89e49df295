package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppErrorFormatting(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := NewNetworkError("request download token", cause)

	assert.Contains(t, err.Error(), "NETWORK")
	assert.Contains(t, err.Error(), "request download token")
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, cause, stderrors.Unwrap(err))
}

func TestWithContext(t *testing.T) {
	err := NewStorageError("save failed", nil).
		WithContext("path", "a/b.xlsx").
		WithContext("attempt", 2)

	assert.Equal(t, "a/b.xlsx", err.Context["path"])
	assert.Equal(t, 2, err.Context["attempt"])
}

func TestIsType(t *testing.T) {
	err := NewParsingError("bad sheet", nil)
	assert.True(t, IsType(err, ErrTypeParsing))
	assert.False(t, IsType(err, ErrTypeNetwork))

	// Wrapped AppErrors are still recognized.
	wrapped := NewStorageError("outer", err)
	assert.True(t, IsType(wrapped, ErrTypeStorage))

	assert.False(t, IsType(stderrors.New("plain"), ErrTypeStorage))
	assert.False(t, IsType(nil, ErrTypeStorage))
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		err  *AppError
		want ErrorType
	}{
		{NewNetworkError("m", nil), ErrTypeNetwork},
		{NewParsingError("m", nil), ErrTypeParsing},
		{NewStorageError("m", nil), ErrTypeStorage},
		{NewValidationError("m"), ErrTypeValidation},
		{NewNotFoundError("thing"), ErrTypeNotFound},
		{NewConfigError("m", nil), ErrTypeConfig},
	}
	for _, tt := range tests {
		require.NotNil(t, tt.err)
		assert.Equal(t, tt.want, tt.err.Type)
	}
}
