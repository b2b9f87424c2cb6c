// Package sched serializes synchronous operations per tenant. Each
// tenant gets a FIFO queue drained by at most one worker goroutine, so
// two synchronous operations for the same tenant never overlap, while
// different tenants proceed fully in parallel. Operations classified
// async-safe bypass the queue entirely.
package sched

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultTimeout is the soft per-operation timeout. On expiry the
	// worker logs and moves on; the operation is abandoned, not
	// killed, though its context is canceled so cooperative operations
	// can stop.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxDepth is the queue depth that triggers overload
	// shedding: the whole tenant queue is drained without execution.
	DefaultMaxDepth = 100

	// Direct is the reserved tenant key for operations with no guild,
	// e.g. direct-message commands.
	Direct int64 = -1
)

// Op is a schedulable operation. The context is canceled when the soft
// timeout expires or the scheduler shuts down.
type Op func(ctx context.Context) error

type item struct {
	id   uuid.UUID
	op   Op
	done chan error
}

type tenantQueue struct {
	items   []item
	running bool
}

// Scheduler is the per-tenant serialization primitive.
type Scheduler struct {
	mu       sync.Mutex
	tenants  map[int64]*tenantQueue
	timeout  time.Duration
	maxDepth int
	closed   bool
	wg       sync.WaitGroup
	logger   zerolog.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithTimeout overrides the soft per-operation timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Scheduler) { s.timeout = d }
}

// WithMaxDepth overrides the overload-shedding queue depth.
func WithMaxDepth(n int) Option {
	return func(s *Scheduler) { s.maxDepth = n }
}

// WithLogger overrides the package logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// New creates a scheduler. There is no ambient instance: callers
// construct one, hand it to every mutating entry point, and Close it on
// shutdown.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		tenants:  make(map[int64]*tenantQueue),
		timeout:  DefaultTimeout,
		maxDepth: DefaultMaxDepth,
		logger:   log.Logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit enqueues a synchronous operation for the tenant and returns a
// channel that receives the operation's error (or ErrOverload if it was
// shed) exactly once. If no worker is running for the tenant, one is
// spawned.
func (s *Scheduler) Submit(tenantID int64, op Op) <-chan error {
	done := make(chan error, 1)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		done <- ErrClosed
		return done
	}

	tq := s.tenants[tenantID]
	if tq == nil {
		tq = &tenantQueue{}
		s.tenants[tenantID] = tq
	}
	tq.items = append(tq.items, item{id: uuid.New(), op: op, done: done})

	if len(tq.items) > s.maxDepth {
		dropped := tq.items
		tq.items = nil
		s.mu.Unlock()
		s.logger.Warn().
			Int64("tenant_id", tenantID).
			Int("dropped", len(dropped)).
			Msg("Tenant queue depth exceeded, shedding pending operations")
		for _, it := range dropped {
			it.done <- ErrOverload
		}
		return done
	}

	if !tq.running {
		tq.running = true
		s.wg.Add(1)
		go s.worker(tenantID, tq)
	}
	s.mu.Unlock()

	return done
}

// Do submits a synchronous operation and waits for it to finish, or for
// ctx to be canceled. On ctx cancellation the operation stays queued
// and its eventual result is discarded.
func (s *Scheduler) Do(ctx context.Context, tenantID int64, op Op) error {
	select {
	case err := <-s.Submit(tenantID, op):
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Go runs an async-classified operation immediately on its own
// goroutine, bypassing the tenant queue. Callers must only classify an
// operation async when it cannot conflict with serialized mutations.
func (s *Scheduler) Go(tenantID int64, op Op) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	opID := uuid.New()
	go func() {
		defer s.wg.Done()
		if err := op(context.Background()); err != nil {
			s.logger.Error().
				Err(err).
				Int64("tenant_id", tenantID).
				Str("op_id", opID.String()).
				Msg("Async operation failed")
		}
	}()
}

// worker drains one tenant's queue and exits when it is empty. A new
// worker is spawned lazily by the next Submit.
func (s *Scheduler) worker(tenantID int64, tq *tenantQueue) {
	defer s.wg.Done()
	for {
		s.mu.Lock()
		if len(tq.items) == 0 {
			tq.running = false
			s.mu.Unlock()
			return
		}
		it := tq.items[0]
		tq.items = tq.items[1:]
		s.mu.Unlock()

		s.run(tenantID, it)
	}
}

// run executes one operation under the soft timeout. A timed-out
// operation keeps running on its goroutine with a canceled context; the
// worker stops waiting so the tenant's queue keeps moving.
func (s *Scheduler) run(tenantID int64, it item) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	finished := make(chan error, 1)
	go func() {
		finished <- it.op(ctx)
	}()

	select {
	case err := <-finished:
		it.done <- err
	case <-ctx.Done():
		s.logger.Warn().
			Int64("tenant_id", tenantID).
			Str("op_id", it.id.String()).
			Dur("timeout", s.timeout).
			Msg("Operation exceeded soft timeout, abandoning")
		it.done <- ctx.Err()
	}
}

// Close stops accepting work and waits for in-flight operations and
// workers to finish.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	s.wg.Wait()
}

// Depth returns the number of queued operations for a tenant, for
// observability.
func (s *Scheduler) Depth(tenantID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tq := s.tenants[tenantID]; tq != nil {
		return len(tq.items)
	}
	return 0
}
