// Package errors provides error handling conventions for chatbackup.
//
// This package defines the sentinel errors of the backup and restore
// subsystems, an ExitError type for CLI exit code handling, and exit code
// constants following standard Unix conventions. Wrapping is delegated to
// github.com/cockroachdb/errors, whose helpers are re-exported here.
//
// # Sentinel Errors
//
// Sentinel errors allow callers to check for specific failure classes
// using [errors.Is]:
//
//	if errors.Is(err, cberrors.ErrStorageExhausted) {
//	    // stop automatic backups and warn once
//	}
//
// Precondition misses (no active chat, empty conversation) are not errors
// and never surface here.
//
// # Exit Codes
//
//   - ExitSuccess (0): Command completed successfully
//   - ExitUser (1): User-related error (invalid input, configuration, etc.)
//   - ExitSystem (2): System-related error (storage, I/O, permissions, etc.)
//
// # ExitError
//
// [ExitError] wraps an underlying error with an exit code and optional
// suggestion. [Classify] derives one from any subsystem error.
package errors
