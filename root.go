package vtree

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/signadot/vtree/commit"
	"github.com/signadot/vtree/host"
	"github.com/signadot/vtree/libdiff"
	"github.com/signadot/vtree/render"
	"github.com/signadot/vtree/sched"
	"github.com/signadot/vtree/vnode"
)

// FlushReport describes one flush.
type FlushReport struct {
	// Updates is the number of folded state updates.
	Updates int
	// Rendered counts component render calls.
	Rendered     int
	Patches      []libdiff.Patch
	Applied      int
	RenderErrors []*render.RenderError
	// Committed is the committed tree after the flush.
	Committed *vnode.Node
	// Err is set in reports passed to a flush handler.
	Err error
}

// Root is a tree mounted into a host container. A root is driven by a single
// logical thread: its methods must not be called concurrently with each
// other or from within component renders and updaters, except for Enqueue,
// Committed and Desynchronized.
type Root struct {
	id       int64
	e        *Engine
	log      *slog.Logger
	exec     *commit.Executor
	sched    *sched.Scheduler
	expander *render.Expander

	mu       sync.Mutex
	source   *vnode.Node
	states   *render.States
	expanded *render.Result

	explicit  atomic.Int32
	unmounted atomic.Bool

	errMu    sync.Mutex
	last     *FlushReport
	retained []error
}

func newRoot(e *Engine, src *vnode.Node, container host.Handle) *Root {
	r := &Root{
		id:     e.nextID.Add(1),
		e:      e,
		source: src,
		states: render.NewStates(),
		exec:   commit.New(e.adapter, container),
		expander: &render.Expander{
			Registry: e.reg,
			Memoize:  e.cfg.memoize(),
		},
	}
	r.log = e.log.With("root", r.id)
	r.sched = sched.New(e.boundary(), r.flush, &sched.Options{OnError: r.retain})
	return r
}

func (r *Root) mount(ctx context.Context) (*FlushReport, error) {
	rep, err := r.run(ctx, nil, nil)
	if errors.Is(err, vnode.ErrValidation) {
		return nil, err
	}
	r.log.Info("mounted", "container", r.exec.Container(), "patches", len(rep.Patches), "applied", rep.Applied)
	return rep, err
}

// Enqueue queues a state update for component instance id. It never flushes
// synchronously: the update is folded by the flush at the end of the
// current turn or of the enclosing WithBatch scope.
func (r *Root) Enqueue(id vnode.ComponentID, u sched.Updater) error {
	if r.unmounted.Load() {
		return ErrUnmounted
	}
	r.sched.Enqueue(id, u)
	return nil
}

// SetState enqueues an update replacing the state of id with v.
func (r *Root) SetState(id vnode.ComponentID, v any) error {
	return r.Enqueue(id, func(any) any { return v })
}

// Pending reports the number of updates waiting for a flush.
func (r *Root) Pending() int {
	return r.sched.Pending()
}

// Flush folds and commits the pending updates now. Errors retained from
// earlier boundary-triggered flushes are returned along with its own.
func (r *Root) Flush(ctx context.Context) (*FlushReport, error) {
	if r.unmounted.Load() {
		return nil, ErrUnmounted
	}
	r.explicit.Add(1)
	defer r.explicit.Add(-1)
	r.swapLast(nil)
	err := r.sched.Flush(ctx)
	rep := r.swapLast(nil)
	if rep == nil {
		rep = &FlushReport{Committed: r.exec.Committed()}
	}
	return rep, errors.Join(r.takeRetained(), err)
}

// WithBatch runs fn, deferring the flush of updates enqueued within it until
// the outermost WithBatch returns. The flush happens also if fn panics.
func (r *Root) WithBatch(ctx context.Context, fn func()) error {
	if r.unmounted.Load() {
		return ErrUnmounted
	}
	r.explicit.Add(1)
	defer r.explicit.Add(-1)
	err := r.sched.WithBatch(ctx, fn)
	r.swapLast(nil)
	return errors.Join(r.takeRetained(), err)
}

// Render replaces the description of the root and commits it together with
// any pending updates.
func (r *Root) Render(ctx context.Context, src *vnode.Node) (*FlushReport, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: nil root", vnode.ErrMalformed)
	}
	if err := vnode.Validate(src); err != nil {
		return nil, err
	}
	if r.unmounted.Load() {
		return nil, ErrUnmounted
	}
	rep, err := r.run(ctx, r.sched.Discard(), src)
	return rep, errors.Join(r.takeRetained(), err)
}

// Unmount removes the root's host nodes from the container and releases the
// root. Pending updates are dropped.
func (r *Root) Unmount(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.unmounted.CompareAndSwap(false, true) {
		return ErrUnmounted
	}
	dropped := r.sched.Discard()
	var err error
	if r.exec.Desynchronized() {
		err = r.exec.Reset()
	} else {
		var patches []libdiff.Patch
		patches, err = libdiff.Diff(r.exec.Committed(), nil)
		if err == nil {
			_, err = r.exec.Apply(ctx, patches, nil)
		}
	}
	r.expanded = nil
	r.states = render.NewStates()
	if err != nil {
		r.log.Warn("unmount failed", "error", err)
	} else {
		r.log.Info("unmounted", "dropped", dropped.Len())
	}
	return errors.Join(r.takeRetained(), err)
}

// Remount discards whatever the root attached to its container, which is
// the only way out of desynchronization, and commits a fresh rendering.
// Component state is kept.
func (r *Root) Remount(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.unmounted.Load() {
		return ErrUnmounted
	}
	if err := r.exec.Reset(); err != nil {
		r.log.Warn("remount failed", "error", err)
		return err
	}
	r.expanded = nil
	res, err := r.expander.Expand(r.source, r.states, nil, nil)
	if err != nil {
		return err
	}
	rep, err := r.commit(ctx, res, &FlushReport{})
	if rep != nil {
		r.log.Info("remounted", "applied", rep.Applied)
	}
	return err
}

// Committed returns the last committed expanded tree. It may be called from
// any goroutine.
func (r *Root) Committed() *vnode.Node {
	return r.exec.Committed()
}

func (r *Root) Desynchronized() bool {
	return r.exec.Desynchronized()
}

// State returns the local state of component instance id.
func (r *Root) State(id vnode.ComponentID) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.states.Get(id)
}

func (r *Root) flush(ctx context.Context, b *sched.Batch) error {
	rep, err := r.run(ctx, b, nil)
	if r.explicit.Load() > 0 {
		r.swapLast(rep)
		return err
	}
	rep.Err = err
	if r.e.onFlush != nil {
		r.e.onFlush(rep)
		return nil
	}
	if err != nil {
		r.retain(err)
	}
	return nil
}

// run folds b, renders src (or the current description) and commits the
// result. Validation errors leave states and the committed tree as they
// were.
func (r *Root) run(ctx context.Context, b *sched.Batch, src *vnode.Node) (*FlushReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rep := &FlushReport{}
	if b != nil {
		rep.Updates = b.Len()
	}
	if r.unmounted.Load() {
		return rep, ErrUnmounted
	}
	snapshot := r.states.Clone()
	var dirty map[vnode.ComponentID]bool
	if b != nil {
		var err error
		if dirty, err = b.Fold(r.states); err != nil {
			r.states = snapshot
			r.log.Warn("flush abandoned", "error", err)
			return rep, err
		}
	}
	if r.exec.Desynchronized() {
		rep.Committed = r.exec.Committed()
		return rep, commit.ErrDesynchronized
	}
	if src == nil {
		src = r.source
	}
	res, err := r.expander.Expand(src, r.states, r.expanded, dirty)
	if err != nil {
		r.states = snapshot
		r.log.Warn("flush abandoned", "error", err)
		return rep, err
	}
	_, err = r.commit(ctx, res, rep)
	if r.expanded != res && !r.exec.Desynchronized() {
		// nothing reached the host, the folded updates are dropped
		// with the flush.
		r.states = snapshot
		r.log.Warn("flush abandoned", "error", err)
		return rep, err
	}
	if r.expanded == res {
		r.source = src
	}
	return rep, err
}

// commit diffs res against the committed expansion and applies the
// patches. It returns a nil report when nothing was applied because the new
// tree is invalid.
func (r *Root) commit(ctx context.Context, res *render.Result, rep *FlushReport) (*FlushReport, error) {
	var prev *vnode.Node
	if r.expanded != nil {
		prev = r.expanded.Tree
	}
	patches, err := libdiff.Diff(prev, res.Tree)
	if err != nil {
		return nil, err
	}
	if limit := r.e.cfg.MaxPatchesPerCommit; limit > 0 && len(patches) > limit {
		return nil, fmt.Errorf("%w: %w: %d patches, limit %d", vnode.ErrValidation, ErrPatchLimit, len(patches), limit)
	}
	rep.Patches = patches
	rep.Rendered = res.Rendered
	rep.RenderErrors = res.Errors
	cres, err := r.exec.Apply(ctx, patches, res.Tree)
	if cres != nil {
		rep.Applied = cres.Applied
	}
	rep.Committed = r.exec.Committed()
	if err != nil {
		r.log.Error("commit failed", "error", err, "applied", rep.Applied, "patches", len(patches))
		return rep, err
	}
	r.expanded = res
	r.states.Retain(func(id vnode.ComponentID) bool {
		_, ok := res.Instances[id]
		return ok
	})
	r.log.Debug("committed", "updates", rep.Updates, "rendered", rep.Rendered, "patches", len(patches))
	if len(res.Errors) != 0 {
		r.log.Warn("render errors", "count", len(res.Errors))
	}
	return rep, render.Join(res.Errors)
}

func (r *Root) retain(err error) {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	r.retained = append(r.retained, err)
}

func (r *Root) takeRetained() error {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	err := errors.Join(r.retained...)
	r.retained = nil
	return err
}

func (r *Root) swapLast(rep *FlushReport) *FlushReport {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	old := r.last
	r.last = rep
	return old
}
