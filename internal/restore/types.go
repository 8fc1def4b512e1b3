package restore

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/thoreinstein/chatbackup/internal/chat"
	cberrors "github.com/thoreinstein/chatbackup/internal/errors"
)

// DefaultStepTimeout bounds each call into the host.
const DefaultStepTimeout = 30 * time.Second

// State is a position in the restore sequence.
type State int

const (
	Idle State = iota
	ConfirmPending
	SwitchingContext
	CreatingSession
	InjectingData
	Rendering
	Persisting
	Done
	Failed
)

var stateNames = [...]string{
	Idle:             "idle",
	ConfirmPending:   "confirm_pending",
	SwitchingContext: "switching_context",
	CreatingSession:  "creating_session",
	InjectingData:    "injecting_data",
	Rendering:        "rendering",
	Persisting:       "persisting",
	Done:             "done",
	Failed:           "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// Active reports whether s is a state a restore passes through while
// running.
func (s State) Active() bool {
	return s > Idle && s < Done
}

var (
	// ErrInProgress is returned when Restore is called while another restore
	// is running on the same Restorer.
	ErrInProgress = errors.New("a restore is already in progress")

	// ErrStepTimeout is the cause of a StepError when a host call did not
	// finish within the step timeout.
	ErrStepTimeout = errors.New("step timed out")
)

// StepError reports which step of a restore failed. It matches
// ErrRestoreStep.
type StepError struct {
	Step State
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("restore failed while %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Is matches the restore-step sentinel.
func (e *StepError) Is(target error) bool {
	return target == cberrors.ErrRestoreStep
}

// Host is the chat application surface a restore drives.
type Host interface {
	// SelectEntity makes the character or group active.
	SelectEntity(ctx context.Context, kind chat.Kind, sourceID string) error

	// CreateChat opens a new, empty chat for the active entity and returns
	// its identity.
	CreateChat(ctx context.Context) (chat.Identity, error)

	// Live returns the handle to the active chat.
	Live() *chat.Live

	// Render redraws the active chat.
	Render(ctx context.Context) error

	// SaveChat persists the active chat.
	SaveChat(ctx context.Context) error
}

// Confirmer asks the user to approve a restore.
type Confirmer interface {
	Confirm(ctx context.Context, rec *chat.Record) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, rec *chat.Record) (bool, error)

// Confirm implements Confirmer.
func (f ConfirmFunc) Confirm(ctx context.Context, rec *chat.Record) (bool, error) {
	return f(ctx, rec)
}

// Canceler discards pending automatic backups before the active chat
// changes.
type Canceler interface {
	Cancel() bool
}

// Observer is called on every state transition.
type Observer func(from, to State)

// Outcome describes a finished restore.
type Outcome struct {
	// State is Done, Failed, or Idle when the user declined.
	State State

	// Declined is true when the user did not confirm.
	Declined bool

	// Session is the chat the record was restored into, if one was created.
	Session chat.Identity

	// Messages is the number of messages injected.
	Messages int

	// RenderErr is the rendering failure, if any. Rendering failures do not
	// fail the restore.
	RenderErr error

	// Err is the step failure when State is Failed.
	Err *StepError
}
