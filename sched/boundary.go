package sched

import (
	"context"
	"sync"
)

// Boundary defers work to the end of the current turn: one synchronous span
// of execution such as an event handler invocation or a task callback.
type Boundary interface {
	Defer(fn func())
}

// Manual is a Boundary whose turns are ended explicitly by calling Turn.
type Manual struct {
	mu  sync.Mutex
	due []func()
}

func (m *Manual) Defer(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.due = append(m.due, fn)
}

// Turn ends the current turn, running the functions deferred during it, and
// returns how many ran. Functions deferred while they run belong to the next
// turn.
func (m *Manual) Turn() int {
	m.mu.Lock()
	due := m.due
	m.due = nil
	m.mu.Unlock()
	for _, fn := range due {
		fn()
	}
	return len(due)
}

// Due reports the number of functions waiting for the end of the turn.
func (m *Manual) Due() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.due)
}

// Loop is a single goroutine task loop. Every posted task runs as one turn;
// functions deferred while a task runs are called when it returns, before the
// next task starts. Deferring outside of a turn posts a turn of its own.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	inTurn  bool
	turnEnd []func()
	wake    chan struct{}
}

func NewLoop() *Loop {
	return &Loop{wake: make(chan struct{}, 1)}
}

// Post queues task as a new turn. It may be called from any goroutine.
func (l *Loop) Post(task func()) {
	l.mu.Lock()
	l.queue = append(l.queue, task)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Loop) Defer(fn func()) {
	l.mu.Lock()
	if l.inTurn {
		l.turnEnd = append(l.turnEnd, fn)
		l.mu.Unlock()
		return
	}
	l.mu.Unlock()
	l.Post(fn)
}

// Run executes turns until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	for {
		task, ok := l.next()
		if !ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-l.wake:
				continue
			}
		}
		l.turn(task)
	}
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, false
	}
	task := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return task, true
}

func (l *Loop) turn(task func()) {
	l.mu.Lock()
	l.inTurn = true
	l.mu.Unlock()
	defer func() {
		l.mu.Lock()
		l.inTurn = false
		ends := l.turnEnd
		l.turnEnd = nil
		l.mu.Unlock()
		for _, fn := range ends {
			fn()
		}
	}()
	task()
}

// Do runs fn as a turn and waits until the turn, including the work deferred
// to its end, has completed. It must not be called from within a turn.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	l.Post(func() {
		fn()
		l.Defer(func() { close(done) })
	})
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
