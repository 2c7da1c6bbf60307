package domainerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/containerd/errdefs"
	"github.com/stretchr/testify/assert"
)

func TestKinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		is   func(error) bool
	}{
		{"invalid", Invalid("bad"), errdefs.IsInvalidArgument},
		{"not found", NotFound("gone"), errdefs.IsNotFound},
		{"conflict", Conflict("busy"), errdefs.IsConflict},
		{"unauthenticated", Unauthenticated("who"), errdefs.IsUnauthorized},
		{"forbidden", Forbidden("no"), errdefs.IsPermissionDenied},
		{"too many", TooMany("slow down"), errdefs.IsResourceExhausted},
		{"unavailable", Unavailable("down"), errdefs.IsUnavailable},
		{"internal", Internal(errors.New("db")), errdefs.IsInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.is(tt.err))
			// 包装后仍可识别
			assert.True(t, tt.is(fmt.Errorf("wrapped: %w", tt.err)))
		})
	}
}

func TestCauseAndMessage(t *testing.T) {
	cause := errors.New("disk full")
	err := Internal(cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "Server error", Message(err))
	assert.Equal(t, "Server error: disk full", err.Error())

	nf := NotFound("Book not found").WithCause(cause)
	assert.True(t, errdefs.IsNotFound(nf))
	assert.ErrorIs(t, nf, cause)
	assert.Equal(t, "Book not found", Message(fmt.Errorf("ctx: %w", nf)))

	assert.Equal(t, "", Message(errors.New("plain")))
}
