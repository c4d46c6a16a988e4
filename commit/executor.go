package commit

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/signadot/vtree/debug"
	"github.com/signadot/vtree/host"
	"github.com/signadot/vtree/libdiff"
	"github.com/signadot/vtree/vnode"
)

// Executor applies patch lists to the host tree under one container and
// owns the resulting committed tree.
type Executor struct {
	adapter   host.Adapter
	container host.Handle

	mu     sync.Mutex
	mirror *mnode
	// top holds the host nodes attached to the container by this
	// executor, as far as the adapter confirmed.
	top []host.Handle

	committed atomic.Pointer[vnode.Node]
	desync    atomic.Bool
}

type Result struct {
	Applied   int
	Committed *vnode.Node
}

func New(adapter host.Adapter, container host.Handle) *Executor {
	return &Executor{
		adapter:   adapter,
		container: container,
		mirror:    &mnode{handle: container, width: 1},
	}
}

func (e *Executor) Container() host.Handle {
	return e.container
}

// Committed returns the tree last committed in full. It may be called from
// any goroutine.
func (e *Executor) Committed() *vnode.Node {
	return e.committed.Load()
}

func (e *Executor) Desynchronized() bool {
	return e.desync.Load()
}

// Apply applies patches in order and, when all of them succeed, makes next
// the committed tree. On the first failure it stops and returns a
// *HostAdapterError together with the number of applied patches; the
// executor is then desynchronized until Reset.
//
// A pass is never cancelled: once started it runs to completion or to the
// first failure, whatever the state of ctx.
func (e *Executor) Apply(ctx context.Context, patches []libdiff.Patch, next *vnode.Node) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.desync.Load() {
		return nil, ErrDesynchronized
	}
	for i := range patches {
		p := &patches[i]
		if debug.Commit() {
			debug.Logf("commit %d/%d %s\n", i+1, len(patches), p)
		}
		if err := e.apply(p); err != nil {
			return e.fail(i, p, err)
		}
	}
	e.committed.Store(next)
	return &Result{Applied: len(patches), Committed: next}, nil
}

func (e *Executor) fail(i int, p *libdiff.Patch, err error) (*Result, error) {
	e.desync.Store(true)
	if debug.Commit() {
		debug.Logf("commit failed at %d: %v\n", i, err)
	}
	return &Result{Applied: i, Committed: e.committed.Load()},
		&HostAdapterError{Index: i, Applied: i, Patch: *p, Err: err}
}

// Reset detaches every host node this executor attached to the container
// and forgets the committed tree. It clears desynchronization only when the
// host confirmed every removal.
func (e *Executor) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var errs []error
	for _, h := range slices.Clone(e.top) {
		if err := e.removeChild(e.container, h); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		e.desync.Store(true)
		return err
	}
	e.mirror = &mnode{handle: e.container, width: 1}
	e.committed.Store(nil)
	e.desync.Store(false)
	return nil
}

func (e *Executor) apply(p *libdiff.Patch) error {
	c, err := resolve(e.mirror, p.Parent)
	if err != nil {
		return err
	}
	switch p.Op {
	case libdiff.OpInsert:
		if p.Index < 0 || p.Index > len(c.owner().children) {
			return fmt.Errorf("%w: insert at %d of %d", ErrPatch, p.Index, len(c.owner().children))
		}
		m, err := e.build(p.Node)
		if err != nil {
			return err
		}
		parent, at := c.slot(p.Index)
		for k, h := range handles(m) {
			if err := e.insertChild(parent, h, at+k); err != nil {
				return err
			}
		}
		c.insert(p.Index, m)
	case libdiff.OpDelete:
		m, err := c.child(p.Index)
		if err != nil {
			return err
		}
		parent, _ := c.slot(p.Index)
		for _, h := range handles(m) {
			if err := e.removeChild(parent, h); err != nil {
				return err
			}
		}
		c.remove(p.Index)
	case libdiff.OpMove:
		return e.move(c, p)
	case libdiff.OpUpdateProps:
		m, err := c.child(p.Index)
		if err != nil {
			return err
		}
		if m.comp {
			return fmt.Errorf("%w: props update on a component at %s", ErrPatch, p.Target())
		}
		for _, pc := range p.Props {
			if pc.Removed {
				err = e.adapter.RemoveProperty(m.handle, pc.Name)
			} else {
				err = e.adapter.SetProperty(m.handle, pc.Name, pc.Value)
			}
			if err != nil {
				return err
			}
		}
	case libdiff.OpReplace:
		old, err := c.child(p.Index)
		if err != nil {
			return err
		}
		m, err := e.build(p.Node)
		if err != nil {
			return err
		}
		parent, at := c.slot(p.Index)
		for _, h := range handles(old) {
			if err := e.removeChild(parent, h); err != nil {
				return err
			}
		}
		for k, h := range handles(m) {
			if err := e.insertChild(parent, h, at+k); err != nil {
				return err
			}
		}
		c.remove(p.Index)
		c.insert(p.Index, m)
	default:
		return fmt.Errorf("%w: unknown op %s", ErrPatch, p.Op)
	}
	return nil
}

func (e *Executor) move(c *chain, p *libdiff.Patch) error {
	m, err := c.child(p.Index)
	if err != nil {
		return err
	}
	n := len(c.owner().children)
	if p.To < 0 || p.To >= n {
		return fmt.Errorf("%w: move to %d of %d", ErrPatch, p.To, n)
	}
	parent, _ := c.slot(p.Index)
	hs := handles(m)
	c.remove(p.Index)
	_, at := c.slot(p.To)
	var herr error
	switch len(hs) {
	case 0:
	case 1:
		herr = e.moveChild(parent, hs[0], at)
	default:
		for _, h := range hs {
			if herr = e.removeChild(parent, h); herr != nil {
				break
			}
		}
		for k, h := range hs {
			if herr != nil {
				break
			}
			herr = e.insertChild(parent, h, at+k)
		}
	}
	if herr != nil {
		c.insert(p.Index, m)
		return herr
	}
	c.insert(p.To, m)
	return nil
}

// build creates the host nodes for n as a detached subtree. Components must
// carry exactly their rendered child.
func (e *Executor) build(n *vnode.Node) (*mnode, error) {
	type item struct {
		n      *vnode.Node
		m      *mnode
		parent host.Handle
		at     int
	}
	if n == nil {
		return nil, fmt.Errorf("%w: missing node", ErrPatch)
	}
	root := &mnode{}
	stack := []item{{n: n, m: root}}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		m := it.m
		m.width = 1
		parent, at := it.parent, it.at
		if it.n.Kind.IsComponent() {
			m.comp = true
			if len(it.n.Children) != 1 {
				return nil, fmt.Errorf("%w: component %s has %d rendered children", ErrPatch, it.n.Kind, len(it.n.Children))
			}
		} else {
			h, err := e.adapter.CreateNode(it.n.Kind.Tag())
			if err != nil {
				return nil, err
			}
			m.handle = h
			for _, name := range it.n.Props.Names() {
				if err := e.adapter.SetProperty(h, name, it.n.Props[name]); err != nil {
					return nil, err
				}
			}
			if parent != 0 {
				if err := e.insertChild(parent, h, at); err != nil {
					return nil, err
				}
			}
			parent, at = h, 0
		}
		m.children = make([]*mnode, len(it.n.Children))
		for i := len(it.n.Children) - 1; i >= 0; i-- {
			cn := it.n.Children[i]
			cm := &mnode{}
			m.children[i] = cm
			if cn.Kind.IsComponent() {
				m.comps++
			}
			ci := at
			if !m.comp {
				ci = i
			}
			stack = append(stack, item{n: cn, m: cm, parent: parent, at: ci})
		}
	}
	return root, nil
}

func (e *Executor) insertChild(parent, child host.Handle, at int) error {
	if err := e.adapter.InsertChild(parent, child, at); err != nil {
		return err
	}
	if parent == e.container {
		e.top = slices.Insert(e.top, min(at, len(e.top)), child)
	}
	return nil
}

func (e *Executor) removeChild(parent, child host.Handle) error {
	if err := e.adapter.RemoveChild(parent, child); err != nil {
		return err
	}
	if parent == e.container {
		if i := slices.Index(e.top, child); i >= 0 {
			e.top = slices.Delete(e.top, i, i+1)
		}
	}
	return nil
}

func (e *Executor) moveChild(parent, child host.Handle, to int) error {
	if err := e.adapter.MoveChild(parent, child, to); err != nil {
		return err
	}
	if parent == e.container {
		if i := slices.Index(e.top, child); i >= 0 {
			e.top = slices.Delete(e.top, i, i+1)
			e.top = slices.Insert(e.top, min(to, len(e.top)), child)
		}
	}
	return nil
}
