// Package errors defines the error taxonomy used across repoman.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Error types
const (
	// ErrNotFound is returned when a repository, pristine, clone, branch or
	// alias does not exist
	ErrNotFound = "not_found"

	// ErrAlreadyExists is returned when a repository, pristine or clone
	// already exists
	ErrAlreadyExists = "already_exists"

	// ErrInvalidInput is returned for unparseable URLs, empty URL lists or
	// unknown agent actions
	ErrInvalidInput = "invalid_input"

	// ErrAuthentication is returned when the remote rejected all credential
	// attempts
	ErrAuthentication = "authentication"

	// ErrBackend is returned for any other failure reported by the git
	// backend
	ErrBackend = "backend"

	// ErrStorage is returned for read/write/serialization failures against
	// the vault or metadata records
	ErrStorage = "storage"

	// ErrProcessControl is returned for background agent lifecycle failures
	ErrProcessControl = "process_control"
)

// authRemediation is appended to every authentication error. It walks the
// user through the common fixes for rejected SSH and HTTPS credentials.
const authRemediation = `

Authentication failed. Your SSH key may not be loaded in the agent.

To fix this, try one of:

  1. Load your key for this session:
     $ ssh-add ~/.ssh/id_ed25519

  2. Use 'keychain' for persistent key management (recommended):
     $ sudo pacman -S keychain  # or apt install keychain
     # Add to ~/.bashrc:
     eval $(keychain --eval --quiet id_ed25519)

  3. If using GNOME/KDE, ensure gnome-keyring or kwallet is configured
     to unlock SSH keys on login.

  4. For HTTPS repos, configure a git credential helper:
     $ git config --global credential.helper cache`

// Error represents an error in the application
type Error struct {
	// Type is the error type
	Type string

	// Message is the error message
	Message string

	// Cause is the underlying error
	Cause error
}

// Error returns the error message
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new error with the given type, message and cause
func NewError(errType, message string, cause error) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Cause:   cause,
	}
}

// NewNotFoundError creates a new not-found error
func NewNotFoundError(message string, cause error) *Error {
	return NewError(ErrNotFound, message, cause)
}

// NewAlreadyExistsError creates a new already-exists error
func NewAlreadyExistsError(message string, cause error) *Error {
	return NewError(ErrAlreadyExists, message, cause)
}

// NewInvalidInputError creates a new invalid-input error
func NewInvalidInputError(message string, cause error) *Error {
	return NewError(ErrInvalidInput, message, cause)
}

// NewAuthenticationError creates a new authentication error for the given
// repository. The message carries the fixed remediation guidance.
func NewAuthenticationError(repoName string, cause error) *Error {
	return NewError(ErrAuthentication,
		fmt.Sprintf("authentication failed for '%s'%s", repoName, authRemediation), cause)
}

// NewBackendError creates a new backend error
func NewBackendError(message string, cause error) *Error {
	return NewError(ErrBackend, message, cause)
}

// NewStorageError creates a new storage error
func NewStorageError(message string, cause error) *Error {
	return NewError(ErrStorage, message, cause)
}

// NewProcessControlError creates a new process-control error
func NewProcessControlError(message string, cause error) *Error {
	return NewError(ErrProcessControl, message, cause)
}

// isType checks whether err is an *Error of the given type anywhere in its
// chain.
func isType(err error, errType string) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type == errType
	}
	return false
}

// IsNotFound checks if the error is a not-found error
func IsNotFound(err error) bool {
	return isType(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an already-exists error
func IsAlreadyExists(err error) bool {
	return isType(err, ErrAlreadyExists)
}

// IsInvalidInput checks if the error is an invalid-input error
func IsInvalidInput(err error) bool {
	return isType(err, ErrInvalidInput)
}

// IsAuthentication checks if the error is an authentication error
func IsAuthentication(err error) bool {
	return isType(err, ErrAuthentication)
}

// IsBackend checks if the error is a backend error
func IsBackend(err error) bool {
	return isType(err, ErrBackend)
}

// IsStorage checks if the error is a storage error
func IsStorage(err error) bool {
	return isType(err, ErrStorage)
}

// IsProcessControl checks if the error is a process-control error
func IsProcessControl(err error) bool {
	return isType(err, ErrProcessControl)
}
