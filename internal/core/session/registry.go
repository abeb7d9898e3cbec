// Package session manages the live sessions of one server process.
//
// The registry supplies the serialization the history core requires:
// every operation against a session is routed through one of a fixed
// pool of worker goroutines, and a given session always lands on the
// same worker, so its history is only ever touched single-threaded.
// Sessions hash onto workers by ID; different sessions run in parallel.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/spaolacci/murmur3"

	"github.com/oxleyk/drawhub/internal/core/domain"
	"github.com/oxleyk/drawhub/internal/core/history"
	"github.com/oxleyk/drawhub/internal/telemetry/logger"
	"github.com/oxleyk/drawhub/pkg/cmap"
)

// DefaultNumWorkers is the worker pool size when the config leaves it zero.
const DefaultNumWorkers = 16

const workerQueueDepth = 256

// OpenBackend opens (or creates) the storage backend for a session and
// reports any recovered content: its byte size, message count, and
// whether anything was found.
type OpenBackend func(sessionID string) (backend history.Backend, size, count int64, found bool, err error)

// Options configures a Registry.
type Options struct {
	// NumWorkers is the size of the worker pool.
	NumWorkers int

	// SizeLimit and AutoResetThreshold seed every new history.
	SizeLimit          int64
	AutoResetThreshold int64

	// OpenBackend supplies per-session storage. Required.
	OpenBackend OpenBackend

	// Logger defaults to the process-wide logger.
	Logger logger.Logger

	// Observer is handed to every history for metrics. Optional.
	Observer history.Observer
}

// Session is one live session: its history plus registry bookkeeping.
type Session struct {
	ID        string
	History   *history.History
	CreatedAt time.Time

	worker *worker
}

// Registry tracks live sessions and owns the worker pool.
type Registry struct {
	sessions *cmap.Map[string, *Session]
	workers  []*worker
	opts     Options
	log      logger.Logger

	closed chan struct{}
}

// NewRegistry starts the worker pool and returns an empty registry.
func NewRegistry(opts Options) (*Registry, error) {
	if opts.OpenBackend == nil {
		return nil, fmt.Errorf("session: OpenBackend is required")
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = DefaultNumWorkers
	}
	if opts.Logger == nil {
		opts.Logger = logger.Default()
	}
	if opts.Observer == nil {
		opts.Observer = history.NopObserver{}
	}

	r := &Registry{
		sessions: cmap.New[string, *Session](),
		workers:  make([]*worker, opts.NumWorkers),
		opts:     opts,
		log:      opts.Logger,
		closed:   make(chan struct{}),
	}
	for i := range r.workers {
		r.workers[i] = newWorker(i)
		go r.workers[i].run(r.closed)
	}
	return r, nil
}

// Create opens a new session with a freshly generated ID and registers
// it. Recovered backend content seeds the history counters.
func (r *Registry) Create(ctx context.Context) (*Session, error) {
	return r.Open(ctx, domain.GenerateSessionID())
}

// Open registers the session with the given ID, loading persisted
// content if its backend has any. Opening an already-live session ID is
// a conflict.
func (r *Registry) Open(ctx context.Context, sessionID string) (*Session, error) {
	select {
	case <-r.closed:
		return nil, domain.ErrRegistryClosed
	default:
	}
	if !domain.IsValidSessionID(sessionID) {
		return nil, domain.ErrInvalidArgument.WithDetails("malformed session id")
	}
	if r.sessions.Has(sessionID) {
		return nil, domain.ErrSessionConflict.WithDetails(sessionID)
	}

	backend, size, count, found, err := r.opts.OpenBackend(sessionID)
	if err != nil {
		return nil, domain.ErrStorageError.WithCause(err)
	}

	h := history.New(sessionID, backend, history.Options{
		SizeLimit:          r.opts.SizeLimit,
		AutoResetThreshold: r.opts.AutoResetThreshold,
		Logger:             r.log,
		Observer:           r.opts.Observer,
	})
	if found {
		h.HistoryLoaded(size, count)
	}

	s := &Session{
		ID:        sessionID,
		History:   h,
		CreatedAt: time.Now(),
		worker:    r.workerFor(sessionID),
	}
	if !r.sessions.SetIfAbsent(sessionID, s) {
		return nil, domain.ErrSessionConflict.WithDetails(sessionID)
	}
	r.opts.Observer.SessionOpened()

	r.log.Info("session opened",
		"session_id", sessionID,
		"recovered_messages", count,
		"worker", s.worker.id)
	return s, nil
}

// Get returns the live session with the given ID.
func (r *Registry) Get(sessionID string) (*Session, bool) {
	return r.sessions.Get(sessionID)
}

// Remove unregisters a session. Its persisted content is left alone;
// callers purge storage separately when the session is gone for good.
func (r *Registry) Remove(sessionID string) bool {
	s, ok := r.sessions.Pop(sessionID)
	if ok {
		r.opts.Observer.SessionClosed()
		r.log.Info("session removed", "session_id", s.ID)
	}
	return ok
}

// List returns a snapshot of all live sessions.
func (r *Registry) List() []*Session {
	return r.sessions.Values()
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	return r.sessions.Count()
}

// Dispatch runs fn against the session's history on its owning worker
// and waits for the result. It is the only sanctioned way to touch a
// history after registration.
func (r *Registry) Dispatch(ctx context.Context, sessionID string, fn func(h *history.History) error) error {
	s, ok := r.sessions.Get(sessionID)
	if !ok {
		return domain.ErrSessionNotFound.WithDetails(sessionID)
	}
	return s.worker.dispatch(ctx, r.closed, func() error {
		return fn(s.History)
	})
}

// Close stops the worker pool. Queued operations finish; new dispatches
// fail.
func (r *Registry) Close() {
	select {
	case <-r.closed:
		return
	default:
	}
	close(r.closed)
	for _, w := range r.workers {
		<-w.done
	}
}

func (r *Registry) workerFor(sessionID string) *worker {
	return r.workers[murmur3.Sum32([]byte(sessionID))%uint32(len(r.workers))]
}

// worker executes session operations one at a time in arrival order.
type worker struct {
	id    int
	tasks chan task
	done  chan struct{}
}

type task struct {
	run   func() error
	reply chan error
}

func newWorker(id int) *worker {
	return &worker{
		id:    id,
		tasks: make(chan task, workerQueueDepth),
		done:  make(chan struct{}),
	}
}

// run executes tasks until the registry closes, then drains whatever is
// already queued. The task channel is never closed, so dispatchers can
// race with shutdown without panicking; a task that slips in after the
// drain gets a closed-registry reply from dispatch's final select.
func (w *worker) run(closed <-chan struct{}) {
	defer close(w.done)
	for {
		select {
		case t := <-w.tasks:
			t.reply <- t.run()
		case <-closed:
			for {
				select {
				case t := <-w.tasks:
					t.reply <- t.run()
				default:
					return
				}
			}
		}
	}
}

func (w *worker) dispatch(ctx context.Context, closed <-chan struct{}, fn func() error) error {
	t := task{run: fn, reply: make(chan error, 1)}
	select {
	case <-closed:
		return domain.ErrRegistryClosed
	case <-ctx.Done():
		return ctx.Err()
	case w.tasks <- t:
	}
	// Once queued the task normally runs; cancellation applies to the
	// wait, not the work.
	select {
	case err := <-t.reply:
		return err
	case <-w.done:
		select {
		case err := <-t.reply:
			return err
		default:
			return domain.ErrRegistryClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}
