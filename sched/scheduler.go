package sched

import (
	"context"
	"errors"
	"sync"

	"github.com/signadot/vtree/debug"
	"github.com/signadot/vtree/vnode"
)

var ErrReentrantFlush = errors.New("flush already in progress")

// FlushFunc consumes a detached batch.
type FlushFunc func(ctx context.Context, b *Batch) error

type Options struct {
	// Context is passed to flushes triggered by the boundary.
	// Defaults to context.Background().
	Context context.Context
	// OnError receives errors of flushes that have no caller to return
	// to: boundary-triggered flushes and flushes run while a WithBatch
	// function panics.
	OnError func(error)
}

// Scheduler queues state updates for one root and decides when they are
// flushed. Enqueue never flushes synchronously.
type Scheduler struct {
	boundary Boundary
	flush    FlushFunc
	opts     Options

	mu        sync.Mutex
	batch     *Batch
	seq       uint64
	scheduled bool
	depth     int
	scopeHit  bool
	flushing  bool
}

func New(boundary Boundary, flush FlushFunc, opts *Options) *Scheduler {
	s := &Scheduler{
		boundary: boundary,
		flush:    flush,
		batch:    NewBatch(),
	}
	if opts != nil {
		s.opts = *opts
	}
	if s.opts.Context == nil {
		s.opts.Context = context.Background()
	}
	return s
}

// Enqueue appends an update for component id to the current batch.
func (s *Scheduler) Enqueue(id vnode.ComponentID, u Updater) uint64 {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.batch.Add(PendingUpdate{Component: id, Updater: u, Seq: seq})
	if s.depth > 0 {
		s.scopeHit = true
		s.mu.Unlock()
		return seq
	}
	schedule := !s.scheduled
	s.scheduled = true
	s.mu.Unlock()
	if debug.Sched() {
		debug.Logf("enqueue %q seq=%d schedule=%t\n", id, seq, schedule)
	}
	if schedule {
		s.boundary.Defer(s.scheduledFlush)
	}
	return seq
}

func (s *Scheduler) scheduledFlush() {
	if err := s.Flush(s.opts.Context); err != nil {
		s.report(err)
	}
}

func (s *Scheduler) report(err error) {
	if s.opts.OnError != nil {
		s.opts.OnError(err)
	}
}

// Flush detaches the current batch and hands it to the flush function.
// Updates enqueued from then on go to a fresh batch and a subsequent flush.
// An empty batch is not flushed.
func (s *Scheduler) Flush(ctx context.Context) error {
	s.mu.Lock()
	if s.flushing {
		s.mu.Unlock()
		return ErrReentrantFlush
	}
	b := s.batch
	s.batch = NewBatch()
	s.scheduled = false
	if b.Len() == 0 {
		s.mu.Unlock()
		return nil
	}
	s.flushing = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.flushing = false
		s.mu.Unlock()
	}()
	if debug.Sched() {
		debug.Logf("flush %d updates over %d components\n", b.Len(), len(b.order))
	}
	return s.flush(ctx, b)
}

// WithBatch runs fn with flushing deferred until the outermost WithBatch
// scope exits. On exit the updates enqueued within the scope are flushed
// exactly once, also when fn panics; the panic is then propagated.
func (s *Scheduler) WithBatch(ctx context.Context, fn func()) (err error) {
	s.mu.Lock()
	s.depth++
	s.mu.Unlock()
	panicked := true
	defer func() {
		s.mu.Lock()
		s.depth--
		due := s.depth == 0 && s.scopeHit
		if s.depth == 0 {
			s.scopeHit = false
		}
		busy := due && s.flushing
		if busy {
			// called from within a flush: hand the updates to the
			// boundary like a plain Enqueue would.
			due = false
			if s.scheduled {
				busy = false
			}
			s.scheduled = true
		}
		s.mu.Unlock()
		if busy {
			s.boundary.Defer(s.scheduledFlush)
		}
		if !due {
			return
		}
		ferr := s.Flush(ctx)
		if panicked {
			if ferr != nil {
				s.report(ferr)
			}
			return
		}
		err = ferr
	}()
	fn()
	panicked = false
	return nil
}

// Pending reports the number of updates waiting for a flush.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.batch.Len()
}

// Discard drops the current batch and returns it.
func (s *Scheduler) Discard() *Batch {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.batch
	s.batch = NewBatch()
	return b
}
