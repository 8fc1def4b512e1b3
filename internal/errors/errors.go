package errors

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Exit codes for the chatbackup CLI.
const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess = 0

	// ExitUser indicates a user-related error (invalid input, configuration, etc.).
	ExitUser = 1

	// ExitSystem indicates a system-related error (I/O, storage, permissions, etc.).
	ExitSystem = 2
)

// Sentinel errors shared across the backup and restore subsystems.
var (
	// ErrNotFound indicates the requested backup or chat was not found.
	ErrNotFound = errors.New("not found")

	// ErrInvalidConfig indicates configuration validation failed.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrCopyFailure indicates a conversation snapshot could not be isolated
	// from live state. Nothing is written when this occurs.
	ErrCopyFailure = errors.New("snapshot copy failed")

	// ErrStorageExhausted indicates the persistence backend ran out of quota.
	// Automatic backups are disabled when this is observed.
	ErrStorageExhausted = errors.New("backup storage exhausted")

	// ErrStorageIO indicates a transient persistence failure. The next
	// natural trigger retries; nothing is retried immediately.
	ErrStorageIO = errors.New("backup storage I/O failure")

	// ErrInvalidRecord indicates a stored backup failed structural validation.
	ErrInvalidRecord = errors.New("invalid backup record")

	// ErrRestoreStep indicates a restore sequence stopped at a specific step.
	ErrRestoreStep = errors.New("restore step failed")
)

// Re-exported helpers so callers only need to import this package.
var (
	New    = errors.New
	Newf   = errors.Newf
	Wrap   = errors.Wrap
	Wrapf  = errors.Wrapf
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
)

// ExitError wraps an error with an exit code and optional suggestion for the CLI.
// It implements the error interface and supports unwrapping via errors.Unwrap.
type ExitError struct {
	// Err is the underlying error that caused the exit.
	Err error

	// Code is the exit code to return to the operating system.
	Code int

	// Suggestion is an optional actionable suggestion for the user.
	Suggestion string
}

// NewExitError creates an ExitError with the given underlying error and exit code.
// If err is nil, the returned ExitError will have a nil Err field.
func NewExitError(err error, code int) *ExitError {
	return &ExitError{
		Err:  err,
		Code: code,
	}
}

// NewUserError creates an ExitError with ExitUser code and a suggestion.
func NewUserError(err error, suggestion string) *ExitError {
	return &ExitError{
		Err:        err,
		Code:       ExitUser,
		Suggestion: suggestion,
	}
}

// NewSystemError creates an ExitError with ExitSystem code and a suggestion.
func NewSystemError(err error, suggestion string) *ExitError {
	return &ExitError{
		Err:        err,
		Code:       ExitSystem,
		Suggestion: suggestion,
	}
}

// NewConfigError creates an ExitError with ExitUser code and a standard suggestion.
func NewConfigError(err error) *ExitError {
	return &ExitError{
		Err:        err,
		Code:       ExitUser,
		Suggestion: "Run: chatbackup config show",
	}
}

// Classify maps an error from the backup subsystem onto an ExitError.
// Storage failures are system errors; everything else is attributed to the user.
// Errors that already carry an ExitError are returned unchanged.
func Classify(err error) *ExitError {
	if err == nil {
		return nil
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr
	}

	switch {
	case errors.Is(err, ErrStorageExhausted):
		return NewSystemError(err, "Free space or raise store.quota_bytes, then re-enable with: chatbackup config set enabled true")
	case errors.Is(err, ErrStorageIO):
		return NewSystemError(err, "Check that the backup store is reachable and not locked by another process")
	case errors.Is(err, ErrNotFound):
		return NewUserError(err, "Run: chatbackup backup list")
	case errors.Is(err, ErrInvalidConfig):
		return NewConfigError(err)
	default:
		return NewExitError(err, ExitUser)
	}
}

// Error returns the error message from the underlying error.
// If the underlying error is nil, it returns a generic message with the exit code.
func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit code %d", e.Code)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error, enabling errors.Is and errors.As
// to examine the error chain.
func (e *ExitError) Unwrap() error {
	return e.Err
}
