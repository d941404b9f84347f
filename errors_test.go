package suitectl

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRuntimeError(t *testing.T) {
	err := NewRuntimeError(errors.New("manifest unreadable"))
	assert.True(t, IsRuntimeError(err))
	assert.False(t, IsTestFailureError(err))
	assert.Contains(t, err.Error(), "manifest unreadable")

	wrapped := fmt.Errorf("startup: %w", err)
	assert.True(t, IsRuntimeError(wrapped))

	assert.False(t, IsRuntimeError(nil))
	assert.False(t, IsRuntimeError(errors.New("plain")))
}

func TestIsTestFailureError(t *testing.T) {
	err := NewTestFailureError("2 units failed")
	assert.True(t, IsTestFailureError(err))
	assert.False(t, IsRuntimeError(err))
	assert.Contains(t, err.Error(), "2 units failed")

	wrapped := fmt.Errorf("run: %w", err)
	assert.True(t, IsTestFailureError(wrapped))

	assert.False(t, IsTestFailureError(nil))
}

func TestRuntimeErrorUnwrap(t *testing.T) {
	inner := errors.New("inner")
	err := NewRuntimeError(inner)
	assert.ErrorIs(t, err, inner)
}
