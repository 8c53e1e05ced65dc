package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatting(t *testing.T) {
	cause := stderrors.New("underlying")
	err := NewError(ErrBackend, "something broke", cause)
	assert.Equal(t, "backend: something broke: underlying", err.Error())

	noCause := NewError(ErrNotFound, "missing", nil)
	assert.Equal(t, "not_found: missing", noCause.Error())
}

func TestUnwrap(t *testing.T) {
	cause := stderrors.New("root cause")
	err := NewStorageError("save failed", cause)
	assert.ErrorIs(t, err, cause)
}

func TestTypeCheckers(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		checker func(error) bool
	}{
		{"not found", NewNotFoundError("repo 'x' not found", nil), IsNotFound},
		{"already exists", NewAlreadyExistsError("repo 'x' exists", nil), IsAlreadyExists},
		{"invalid input", NewInvalidInputError("bad url", nil), IsInvalidInput},
		{"authentication", NewAuthenticationError("widget", nil), IsAuthentication},
		{"backend", NewBackendError("widget", stderrors.New("boom")), IsBackend},
		{"storage", NewStorageError("write failed", nil), IsStorage},
		{"process control", NewProcessControlError("agent running", nil), IsProcessControl},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.checker(tt.err))
			assert.False(t, tt.checker(stderrors.New("plain error")))
		})
	}
}

func TestTypeCheckersThroughWrapping(t *testing.T) {
	err := fmt.Errorf("outer context: %w", NewNotFoundError("clone 'abc' not found", nil))
	assert.True(t, IsNotFound(err))
	assert.False(t, IsAlreadyExists(err))
}

func TestAuthenticationErrorCarriesGuidance(t *testing.T) {
	err := NewAuthenticationError("widget", nil)
	assert.Contains(t, err.Error(), "authentication failed for 'widget'")
	assert.Contains(t, err.Error(), "ssh-add")
	assert.Contains(t, err.Error(), "credential.helper")
}
