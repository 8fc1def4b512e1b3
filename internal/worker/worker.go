package worker

import (
	"context"
	"log/slog"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/thoreinstein/chatbackup/internal/backup"
	"github.com/thoreinstein/chatbackup/internal/chat"
	"github.com/thoreinstein/chatbackup/internal/engine"
	"github.com/thoreinstein/chatbackup/internal/metrics"
	"github.com/thoreinstein/chatbackup/pkg/clone"
)

// DefaultWorkers is the pool size used when none is configured.
const DefaultWorkers = 2

// ErrClosed is returned for requests sent after Close.
var ErrClosed = errors.New("worker pool is closed")

// Request asks a worker to capture and store one snapshot.
type Request struct {
	ID          uuid.UUID
	Identity    chat.Identity
	DisplayName string
	Live        *chat.Live
	Timestamp   int64

	// MaxBackups overrides the store's retention count when positive.
	MaxBackups int

	ctx   context.Context
	reply chan Response
}

// Response answers a Request.
type Response struct {
	ID          uuid.UUID
	Success     bool
	Timestamp   int64
	DisplayName string
	RecordCount int

	// Shared is true when the result came from a concurrent request for the
	// same conversation.
	Shared bool

	Result *backup.PutResult
	Err    error
}

// RecordStore is the subset of *backup.Store the pool writes through.
type RecordStore interface {
	Put(ctx context.Context, rec *chat.Record) (*backup.PutResult, error)
	MaxBackups() int
	SetMaxBackups(n int) error
}

// Pool runs the copy and store step on a fixed set of goroutines. It
// implements engine.Backend.
type Pool struct {
	store    RecordStore
	workers  int
	capacity func() int
	cloneOpt []clone.Option
	metrics  *metrics.Metrics
	logger   *slog.Logger

	requests chan *Request
	flight   singleflight.Group

	mu      sync.Mutex
	closed  bool
	started bool

	// done is closed when Close begins; stopped once every request taken
	// off the queue has been answered.
	done    chan struct{}
	stopped chan struct{}
	wg      sync.WaitGroup
}

// Option configures a Pool.
type Option func(*Pool)

// WithWorkers sets the number of worker goroutines.
func WithWorkers(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithCapacity sets the source of Request.MaxBackups for every request.
func WithCapacity(fn func() int) Option {
	return func(p *Pool) {
		p.capacity = fn
	}
}

// WithCloneOptions passes options to the deep copy.
func WithCloneOptions(opts ...clone.Option) Option {
	return func(p *Pool) {
		p.cloneOpt = append(p.cloneOpt, opts...)
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pool) {
		p.metrics = m
	}
}

// WithLogger sets the pool's logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}

// New creates a pool writing to store. Call Start before sending work.
func New(store RecordStore, opts ...Option) *Pool {
	p := &Pool{
		store:   store,
		workers: DefaultWorkers,
		logger:  slog.Default(),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.requests = make(chan *Request, p.workers)
	return p
}

// Start launches the workers. They keep serving until Close, so requests
// sent while the caller shuts down are still stored.
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.closed {
		return
	}
	p.started = true

	for i := range p.workers {
		p.wg.Add(1)
		go p.run(i)
	}
	p.logger.Debug("worker pool started", "workers", p.workers)
}

// Close stops the workers and waits for in-progress requests to finish.
// Requests still queued are answered with ErrClosed.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.done)
	p.mu.Unlock()

	p.wg.Wait()

	defer close(p.stopped)
	for {
		select {
		case req := <-p.requests:
			req.reply <- Response{ID: req.ID, Err: ErrClosed}
		default:
			return nil
		}
	}
}

// Name implements engine.Backend.
func (p *Pool) Name() string {
	return "worker"
}

// Store implements engine.Backend. It sends the snapshot to a worker and
// waits for the response.
func (p *Pool) Store(ctx context.Context, snap engine.Snapshot) (*backup.PutResult, error) {
	req := &Request{
		ID:          uuid.New(),
		Identity:    snap.Identity,
		DisplayName: snap.DisplayName,
		Live:        snap.Live,
		Timestamp:   snap.Timestamp,
		ctx:         ctx,
		reply:       make(chan Response, 1),
	}
	if p.capacity != nil {
		req.MaxBackups = p.capacity()
	}

	resp, err := p.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, resp.Err
	}
	return resp.Result, nil
}

// Do queues req and waits for its response. A zero ID is filled in.
func (p *Pool) Do(ctx context.Context, req *Request) (Response, error) {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	if req.ctx == nil {
		req.ctx = ctx
	}
	if req.reply == nil {
		req.reply = make(chan Response, 1)
	}

	select {
	case <-p.done:
		return Response{}, ErrClosed
	default:
	}
	select {
	case p.requests <- req:
	case <-p.done:
		return Response{}, ErrClosed
	case <-ctx.Done():
		return Response{}, errors.Wrap(ctx.Err(), "queueing backup request")
	}

	select {
	case resp := <-req.reply:
		return resp, nil
	case <-p.stopped:
		// Every request a worker or Close took has its reply buffered by
		// now. One queued after the final drain has none.
		select {
		case resp := <-req.reply:
			return resp, nil
		default:
			return Response{}, ErrClosed
		}
	case <-ctx.Done():
		return Response{}, errors.Wrapf(ctx.Err(), "waiting for backup request %s", req.ID)
	}
}

func (p *Pool) run(n int) {
	defer p.wg.Done()
	logger := p.logger.With("worker", n)

	for {
		select {
		case <-p.done:
			return
		case req := <-p.requests:
			req.reply <- p.handle(req, logger)
		}
	}
}

// handle runs one request. Concurrent requests for the same conversation
// share one capture and store.
func (p *Pool) handle(req *Request, logger *slog.Logger) Response {
	p.metrics.WorkerStarted()
	defer p.metrics.WorkerDone()

	resp := Response{ID: req.ID, DisplayName: req.DisplayName}
	ctx := req.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		resp.Err = errors.Wrap(err, "backup request abandoned")
		return resp
	}

	key := req.Identity.Key()
	v, err, shared := p.flight.Do(key, func() (any, error) {
		return p.captureAndPut(ctx, req)
	})
	resp.Shared = shared
	if err != nil {
		logger.Debug("backup request failed", "id", req.ID.String(), "identity", key, "error", err.Error())
		resp.Err = err
		return resp
	}

	put := v.(*backup.PutResult)
	resp.Success = true
	resp.Result = put
	resp.Timestamp = put.Record.Timestamp
	resp.RecordCount = put.Count
	logger.Debug("backup request done",
		"id", req.ID.String(),
		"identity", key,
		"timestamp", put.Record.Timestamp,
		"shared", shared)
	return resp
}

func (p *Pool) captureAndPut(ctx context.Context, req *Request) (*backup.PutResult, error) {
	if req.MaxBackups > 0 && req.MaxBackups != p.store.MaxBackups() {
		if err := p.store.SetMaxBackups(req.MaxBackups); err != nil {
			return nil, errors.Wrap(err, "applying retention count")
		}
	}

	rec, err := engine.Capture(engine.Snapshot{
		Identity:    req.Identity,
		DisplayName: req.DisplayName,
		Live:        req.Live,
		Timestamp:   req.Timestamp,
	}, p.cloneOpt...)
	if err != nil {
		return nil, err
	}
	return p.store.Put(ctx, rec)
}
