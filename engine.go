// Package vtree mounts virtual node trees onto host trees and keeps them in
// sync as component state changes.
//
// A mounted [Root] renders its description into an expanded tree, diffs it
// against the tree it last committed and applies the resulting patches
// through a [host.Adapter]. State updates enqueued with [Root.Enqueue] are
// batched until the end of the current turn, as defined by the root's
// [sched.Boundary].
package vtree

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/signadot/vtree/host"
	"github.com/signadot/vtree/render"
	"github.com/signadot/vtree/sched"
	"github.com/signadot/vtree/vnode"
)

// Engine mounts roots onto one host. Distinct roots may be used from
// distinct goroutines provided they do not share adapter state.
type Engine struct {
	adapter  host.Adapter
	log      *slog.Logger
	reg      *render.Registry
	boundary func() sched.Boundary
	cfg      *Config
	onFlush  func(*FlushReport)
	nextID   atomic.Int64
}

type Option func(*Engine)

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

func WithRegistry(r *render.Registry) Option {
	return func(e *Engine) { e.reg = r }
}

// WithBoundary sets the function providing each new root with its turn
// boundary. By default every root gets a *sched.Manual.
func WithBoundary(f func() sched.Boundary) Option {
	return func(e *Engine) { e.boundary = f }
}

func WithConfig(c *Config) Option {
	return func(e *Engine) { e.cfg = c }
}

// WithFlushHandler receives the report of every flush triggered by a turn
// boundary, including failed ones.
func WithFlushHandler(f func(*FlushReport)) Option {
	return func(e *Engine) { e.onFlush = f }
}

func New(adapter host.Adapter, opts ...Option) *Engine {
	e := &Engine{adapter: adapter}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if e.reg == nil {
		e.reg = render.NewRegistry()
	}
	if e.boundary == nil {
		e.boundary = func() sched.Boundary { return &sched.Manual{} }
	}
	if e.cfg == nil {
		e.cfg = DefaultConfig()
	}
	return e
}

func (e *Engine) Registry() *render.Registry {
	return e.reg
}

// Mount renders root and inserts it as the only child of container.
//
// The returned Root is nil only if root could not be rendered into a valid
// tree. A non-nil Root may come with an error: render errors, reported with
// placeholders committed in place of the failed subtrees, or a host adapter
// error leaving the root desynchronized until Remount.
func (e *Engine) Mount(ctx context.Context, root *vnode.Node, container host.Handle) (*Root, error) {
	if root == nil {
		return nil, fmt.Errorf("%w: nil root", vnode.ErrMalformed)
	}
	if err := vnode.Validate(root); err != nil {
		return nil, err
	}
	r := newRoot(e, root, container)
	rep, err := r.mount(ctx)
	if rep == nil {
		return nil, err
	}
	return r, err
}
