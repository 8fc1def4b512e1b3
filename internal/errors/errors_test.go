package errors

import (
	"errors"
	"fmt"
	"testing"

	cockroach "github.com/cockroachdb/errors"
)

func TestExitError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *ExitError
		want string
	}{
		{
			name: "with underlying error",
			err:  NewExitError(ErrNotFound, ExitUser),
			want: "not found",
		},
		{
			name: "with wrapped error",
			err:  NewExitError(fmt.Errorf("loading config: %w", ErrInvalidConfig), ExitUser),
			want: "loading config: invalid configuration",
		},
		{
			name: "nil underlying error",
			err:  NewExitError(nil, ExitUser),
			want: "exit code 1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("ExitError.Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExitError_Unwrap(t *testing.T) {
	err := NewExitError(Wrap(ErrStorageIO, "writing partition"), ExitSystem)
	if !errors.Is(err, ErrStorageIO) {
		t.Error("errors.Is() should see through ExitError and cockroach wrapping")
	}
	if errors.Is(err, ErrStorageExhausted) {
		t.Error("errors.Is() matched the wrong sentinel")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantHint bool
	}{
		{
			name:     "storage exhausted is a system error",
			err:      Wrap(ErrStorageExhausted, "put"),
			wantCode: ExitSystem,
			wantHint: true,
		},
		{
			name:     "storage io is a system error",
			err:      cockroach.WithStack(ErrStorageIO),
			wantCode: ExitSystem,
			wantHint: true,
		},
		{
			name:     "not found is a user error",
			err:      Wrapf(ErrNotFound, "backup %d", 42),
			wantCode: ExitUser,
			wantHint: true,
		},
		{
			name:     "invalid config suggests config show",
			err:      ErrInvalidConfig,
			wantCode: ExitUser,
			wantHint: true,
		},
		{
			name:     "unknown errors default to user",
			err:      New("boom"),
			wantCode: ExitUser,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("Classify().Code = %d, want %d", got.Code, tt.wantCode)
			}
			if (got.Suggestion != "") != tt.wantHint {
				t.Errorf("Classify().Suggestion = %q, want hint: %v", got.Suggestion, tt.wantHint)
			}
			if !errors.Is(got, tt.err) {
				t.Error("classified error should still match the original")
			}
		})
	}
}

func TestClassify_PreservesExitError(t *testing.T) {
	orig := NewSystemError(ErrNotFound, "custom")
	wrapped := fmt.Errorf("command failed: %w", orig)

	if got := Classify(wrapped); got != orig {
		t.Errorf("Classify() = %v, want the original ExitError", got)
	}
	if Classify(nil) != nil {
		t.Error("Classify(nil) should be nil")
	}
}

func TestSentinelErrors_Distinct(t *testing.T) {
	sentinels := []error{
		ErrNotFound,
		ErrInvalidConfig,
		ErrCopyFailure,
		ErrStorageExhausted,
		ErrStorageIO,
		ErrInvalidRecord,
		ErrRestoreStep,
	}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j && errors.Is(a, b) {
				t.Errorf("%v should not match %v", a, b)
			}
		}
	}
}
