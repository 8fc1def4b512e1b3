package restore_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/thoreinstein/chatbackup/internal/chat"
	cberrors "github.com/thoreinstein/chatbackup/internal/errors"
	"github.com/thoreinstein/chatbackup/internal/logging"
	"github.com/thoreinstein/chatbackup/internal/metrics"
	"github.com/thoreinstein/chatbackup/internal/restore"
	"github.com/thoreinstein/chatbackup/internal/restore/mocks"
)

var (
	backedUp = chat.Identity{Kind: chat.KindCharacter, SourceID: "7", ChatName: "Seraphina - 2024-05-01"}
	newChat  = chat.Identity{Kind: chat.KindCharacter, SourceID: "7", ChatName: "Seraphina - 2024-06-02"}
)

func record(n int) *chat.Record {
	msgs := make([]chat.Message, n)
	for i := range msgs {
		msgs[i] = chat.Message{"mes": fmt.Sprintf("message %d", i), "name": "Seraphina"}
	}
	return &chat.Record{
		Version:          chat.RecordVersion,
		Timestamp:        1717000000000,
		Identity:         backedUp,
		DisplayName:      "Seraphina",
		LastMessageIndex: n - 1,
		MessageCount:     n,
		Preview:          fmt.Sprintf("message %d", n-1),
		Messages:         msgs,
		Metadata:         chat.Metadata{"note": "kept", "tainted": false},
	}
}

func confirmer(answer bool) restore.Confirmer {
	return restore.ConfirmFunc(func(context.Context, *chat.Record) (bool, error) {
		return answer, nil
	})
}

type transitions struct {
	mu     sync.Mutex
	states []restore.State
}

func (tr *transitions) observe(_, to restore.State) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.states = append(tr.states, to)
}

func (tr *transitions) get() []restore.State {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]restore.State(nil), tr.states...)
}

func expectHappyPath(host *mocks.MockHost, live *chat.Live) {
	host.EXPECT().SelectEntity(mock.Anything, chat.KindCharacter, "7").Return(nil).Once()
	host.EXPECT().CreateChat(mock.Anything).Return(newChat, nil).Once()
	host.EXPECT().Live().Return(live).Once()
	host.EXPECT().Render(mock.Anything).Return(nil).Once()
	host.EXPECT().SaveChat(mock.Anything).Return(nil).Once()
}

func TestRestore_TwelveMessages(t *testing.T) {
	host := mocks.NewMockHost(t)
	live := chat.NewLive(nil, chat.Metadata{"stale": true})
	expectHappyPath(host, live)

	var tr transitions
	m := metrics.New()
	r := restore.New(host,
		restore.WithConfirmer(confirmer(true)),
		restore.WithObserver(tr.observe),
		restore.WithMetrics(m),
		restore.WithLogger(logging.ForTest(t)))

	rec := record(12)
	out, err := r.Restore(context.Background(), rec)
	require.NoError(t, err)

	assert.Equal(t, restore.Done, out.State)
	assert.Equal(t, newChat, out.Session)
	assert.Equal(t, 12, out.Messages)
	assert.NoError(t, out.RenderErr)

	assert.Equal(t, 12, live.Len())
	assert.Equal(t, rec.Messages, live.Messages())
	assert.Equal(t, rec.Metadata, live.Metadata(), "metadata is replaced, not merged")

	assert.Equal(t, []restore.State{
		restore.ConfirmPending,
		restore.SwitchingContext,
		restore.CreatingSession,
		restore.InjectingData,
		restore.Rendering,
		restore.Persisting,
		restore.Done,
	}, tr.get())
	assert.Equal(t, restore.Done, r.State())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RestoreTotal.WithLabelValues(metrics.RestoreDone)))
}

func TestRestore_InjectedDataIsIndependent(t *testing.T) {
	host := mocks.NewMockHost(t)
	live := chat.NewLive(nil, nil)
	expectHappyPath(host, live)

	r := restore.New(host, restore.WithConfirmer(confirmer(true)), restore.WithLogger(logging.ForTest(t)))
	rec := record(2)

	_, err := r.Restore(context.Background(), rec)
	require.NoError(t, err)

	require.NoError(t, live.Update(0, chat.Message{"mes": "edited after restore"}))
	live.SetMetadata("note", "changed")

	assert.Equal(t, "message 0", rec.Messages[0]["mes"])
	assert.Equal(t, "kept", rec.Metadata["note"])
}

func TestRestore_Declined(t *testing.T) {
	tests := []struct {
		name string
		opts []restore.Option
	}{
		{name: "user says no", opts: []restore.Option{restore.WithConfirmer(confirmer(false))}},
		{name: "no confirmer", opts: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// No expectations: any host call fails the test.
			host := mocks.NewMockHost(t)
			m := metrics.New()
			opts := append(tt.opts, restore.WithMetrics(m), restore.WithLogger(logging.ForTest(t)))
			r := restore.New(host, opts...)

			out, err := r.Restore(context.Background(), record(3))
			require.NoError(t, err)
			assert.True(t, out.Declined)
			assert.Equal(t, restore.Idle, out.State)
			assert.Equal(t, restore.Idle, r.State())
			assert.Equal(t, 1.0, testutil.ToFloat64(m.RestoreTotal.WithLabelValues(metrics.RestoreDeclined)))
		})
	}
}

func TestRestore_ConfirmerError(t *testing.T) {
	host := mocks.NewMockHost(t)
	conf := mocks.NewMockConfirmer(t)
	conf.EXPECT().Confirm(mock.Anything, mock.Anything).Return(false, errors.New("prompt closed"))

	r := restore.New(host, restore.WithConfirmer(conf), restore.WithLogger(logging.ForTest(t)))
	out, err := r.Restore(context.Background(), record(1))
	require.Error(t, err)

	var stepErr *restore.StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, restore.ConfirmPending, stepErr.Step)
	assert.Equal(t, restore.Failed, out.State)
}

func TestRestore_StepFailures(t *testing.T) {
	boom := errors.New("host said no")

	tests := []struct {
		name     string
		setup    func(host *mocks.MockHost, live *chat.Live)
		wantStep restore.State
		injected bool
	}{
		{
			name: "switching context",
			setup: func(host *mocks.MockHost, _ *chat.Live) {
				host.EXPECT().SelectEntity(mock.Anything, chat.KindCharacter, "7").Return(boom)
			},
			wantStep: restore.SwitchingContext,
		},
		{
			name: "creating session",
			setup: func(host *mocks.MockHost, _ *chat.Live) {
				host.EXPECT().SelectEntity(mock.Anything, mock.Anything, mock.Anything).Return(nil)
				host.EXPECT().CreateChat(mock.Anything).Return(chat.Identity{}, boom)
			},
			wantStep: restore.CreatingSession,
		},
		{
			name: "injecting data",
			setup: func(host *mocks.MockHost, _ *chat.Live) {
				host.EXPECT().SelectEntity(mock.Anything, mock.Anything, mock.Anything).Return(nil)
				host.EXPECT().CreateChat(mock.Anything).Return(newChat, nil)
				host.EXPECT().Live().Return(nil)
			},
			wantStep: restore.InjectingData,
		},
		{
			name: "persisting",
			setup: func(host *mocks.MockHost, live *chat.Live) {
				host.EXPECT().SelectEntity(mock.Anything, mock.Anything, mock.Anything).Return(nil)
				host.EXPECT().CreateChat(mock.Anything).Return(newChat, nil)
				host.EXPECT().Live().Return(live)
				host.EXPECT().Render(mock.Anything).Return(nil)
				host.EXPECT().SaveChat(mock.Anything).Return(boom)
			},
			wantStep: restore.Persisting,
			injected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host := mocks.NewMockHost(t)
			live := chat.NewLive(nil, nil)
			tt.setup(host, live)

			m := metrics.New()
			r := restore.New(host,
				restore.WithConfirmer(confirmer(true)),
				restore.WithMetrics(m),
				restore.WithLogger(logging.ForTest(t)))

			out, err := r.Restore(context.Background(), record(4))
			require.Error(t, err)
			assert.True(t, errors.Is(err, cberrors.ErrRestoreStep))

			var stepErr *restore.StepError
			require.True(t, errors.As(err, &stepErr))
			assert.Equal(t, tt.wantStep, stepErr.Step)
			assert.Contains(t, err.Error(), tt.wantStep.String())

			assert.Equal(t, restore.Failed, out.State)
			assert.Equal(t, restore.Failed, r.State())
			assert.Equal(t, 1.0, testutil.ToFloat64(m.RestoreFailures.WithLabelValues(tt.wantStep.String())))

			if tt.injected {
				assert.Equal(t, 4, live.Len(), "in-memory state stays restored")
			} else {
				assert.Zero(t, live.Len())
			}
		})
	}
}

func TestRestore_RenderFailureIsNotFatal(t *testing.T) {
	host := mocks.NewMockHost(t)
	live := chat.NewLive(nil, nil)
	host.EXPECT().SelectEntity(mock.Anything, mock.Anything, mock.Anything).Return(nil)
	host.EXPECT().CreateChat(mock.Anything).Return(newChat, nil)
	host.EXPECT().Live().Return(live)
	host.EXPECT().Render(mock.Anything).Return(errors.New("no display"))
	host.EXPECT().SaveChat(mock.Anything).Return(nil).Once()

	r := restore.New(host, restore.WithConfirmer(confirmer(true)), restore.WithLogger(logging.ForTest(t)))
	out, err := r.Restore(context.Background(), record(2))
	require.NoError(t, err)

	assert.Equal(t, restore.Done, out.State)
	require.Error(t, out.RenderErr)
	assert.True(t, errors.Is(out.RenderErr, cberrors.ErrRestoreStep))
	assert.Equal(t, 2, live.Len())
}

func TestRestore_StepTimeout(t *testing.T) {
	host := mocks.NewMockHost(t)
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	// A host call that ignores its context.
	host.EXPECT().SelectEntity(mock.Anything, mock.Anything, mock.Anything).
		RunAndReturn(func(context.Context, chat.Kind, string) error {
			<-release
			return nil
		})

	r := restore.New(host,
		restore.WithConfirmer(confirmer(true)),
		restore.WithStepTimeout(20*time.Millisecond),
		restore.WithLogger(logging.ForTest(t)))

	start := time.Now()
	out, err := r.Restore(context.Background(), record(1))
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.True(t, errors.Is(err, restore.ErrStepTimeout))
	assert.Equal(t, restore.SwitchingContext, out.Err.Step)
	assert.Equal(t, restore.Failed, out.State)
}

type recordingCanceler struct {
	mu     sync.Mutex
	called bool
}

func (c *recordingCanceler) Cancel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.called = true
	return true
}

func (c *recordingCanceler) wasCalled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.called
}

func TestRestore_CancelsPendingBackupBeforeSwitching(t *testing.T) {
	host := mocks.NewMockHost(t)
	canceler := &recordingCanceler{}
	live := chat.NewLive(nil, nil)

	host.EXPECT().SelectEntity(mock.Anything, mock.Anything, mock.Anything).
		Run(func(context.Context, chat.Kind, string) {
			assert.True(t, canceler.wasCalled(), "pending backup must be cancelled first")
		}).
		Return(nil)
	host.EXPECT().CreateChat(mock.Anything).Return(newChat, nil)
	host.EXPECT().Live().Return(live)
	host.EXPECT().Render(mock.Anything).Return(nil)
	host.EXPECT().SaveChat(mock.Anything).Return(nil)

	r := restore.New(host,
		restore.WithConfirmer(confirmer(true)),
		restore.WithCanceler(canceler),
		restore.WithLogger(logging.ForTest(t)))

	_, err := r.Restore(context.Background(), record(1))
	require.NoError(t, err)
	assert.True(t, canceler.wasCalled())
}

func TestRestore_DeclineDoesNotCancel(t *testing.T) {
	host := mocks.NewMockHost(t)
	canceler := &recordingCanceler{}
	r := restore.New(host,
		restore.WithConfirmer(confirmer(false)),
		restore.WithCanceler(canceler),
		restore.WithLogger(logging.ForTest(t)))

	_, err := r.Restore(context.Background(), record(1))
	require.NoError(t, err)
	assert.False(t, canceler.wasCalled())
}

func TestRestore_OneAtATime(t *testing.T) {
	host := mocks.NewMockHost(t)
	entered := make(chan struct{})
	release := make(chan struct{})

	conf := restore.ConfirmFunc(func(context.Context, *chat.Record) (bool, error) {
		close(entered)
		<-release
		return false, nil
	})
	r := restore.New(host, restore.WithConfirmer(conf), restore.WithLogger(logging.ForTest(t)))

	done := make(chan error, 1)
	go func() {
		_, err := r.Restore(context.Background(), record(1))
		done <- err
	}()
	<-entered

	_, err := r.Restore(context.Background(), record(1))
	assert.ErrorIs(t, err, restore.ErrInProgress)
	assert.Equal(t, restore.ConfirmPending, r.State())

	close(release)
	require.NoError(t, <-done)
}

func TestRestore_InvalidRecord(t *testing.T) {
	host := mocks.NewMockHost(t)
	r := restore.New(host, restore.WithConfirmer(confirmer(true)), restore.WithLogger(logging.ForTest(t)))

	rec := record(2)
	rec.LastMessageIndex = 5

	_, err := r.Restore(context.Background(), rec)
	require.Error(t, err)
	assert.True(t, errors.Is(err, cberrors.ErrInvalidRecord))

	_, err = r.Restore(context.Background(), nil)
	assert.True(t, errors.Is(err, cberrors.ErrInvalidRecord))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "switching_context", restore.SwitchingContext.String())
	assert.Equal(t, "state(42)", restore.State(42).String())
	assert.True(t, restore.Rendering.Active())
	assert.False(t, restore.Done.Active())
	assert.False(t, restore.Idle.Active())
}
