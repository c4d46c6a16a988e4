// Package memhost provides an in-memory host tree with call logging and
// fault injection.
package memhost

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/signadot/vtree/debug"
	"github.com/signadot/vtree/host"
)

var ErrInjected = errors.New("injected failure")

type node struct {
	tag      string
	props    map[string]any
	parent   host.Handle
	children []host.Handle
}

// Host is an in-memory host.Adapter. It is safe for concurrent use.
type Host struct {
	mu       sync.Mutex
	next     host.Handle
	nodes    map[host.Handle]*node
	calls    []host.Call
	n        int
	failAt   int
	failWhen func(host.Call) error
}

var _ host.Adapter = (*Host)(nil)

func New() *Host {
	return &Host{nodes: map[host.Handle]*node{}, failAt: -1}
}

// FailAt makes the n-th adapter call from now on, counting from 0, fail
// with ErrInjected. A negative n disables it.
func (h *Host) FailAt(n int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n < 0 {
		h.failAt = -1
		return
	}
	h.failAt = h.n + n
}

// FailWhen installs a hook consulted before every call; a non-nil result
// fails the call.
func (h *Host) FailWhen(f func(host.Call) error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failWhen = f
}

// Calls returns the log of successful calls.
func (h *Host) Calls() []host.Call {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.calls)
}

func (h *Host) ResetCalls() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = nil
}

func (h *Host) do(c host.Call, f func() error) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	i := h.n
	h.n++
	if i == h.failAt {
		h.failAt = -1
		return fmt.Errorf("%w: %s", ErrInjected, c)
	}
	if h.failWhen != nil {
		if err := h.failWhen(c); err != nil {
			return err
		}
	}
	if err := f(); err != nil {
		return err
	}
	if debug.Host() {
		debug.Logf("memhost %s\n", c)
	}
	h.calls = append(h.calls, c)
	return nil
}

func (h *Host) get(id host.Handle) (*node, error) {
	n := h.nodes[id]
	if n == nil {
		return nil, fmt.Errorf("%w %s", host.ErrUnknownHandle, id)
	}
	return n, nil
}

func (h *Host) CreateNode(tag string) (host.Handle, error) {
	var res host.Handle
	err := h.do(host.Call{Op: host.OpCreateNode, Tag: tag}, func() error {
		h.next++
		res = h.next
		h.nodes[res] = &node{tag: tag, props: map[string]any{}}
		return nil
	})
	return res, err
}

func (h *Host) SetProperty(id host.Handle, name string, value any) error {
	return h.do(host.Call{Op: host.OpSetProperty, Handle: id, Name: name, Value: value}, func() error {
		n, err := h.get(id)
		if err != nil {
			return err
		}
		n.props[name] = value
		return nil
	})
}

func (h *Host) RemoveProperty(id host.Handle, name string) error {
	return h.do(host.Call{Op: host.OpRemoveProperty, Handle: id, Name: name}, func() error {
		n, err := h.get(id)
		if err != nil {
			return err
		}
		delete(n.props, name)
		return nil
	})
}

func (h *Host) InsertChild(parent, child host.Handle, at int) error {
	return h.do(host.Call{Op: host.OpInsertChild, Parent: parent, Handle: child, Index: at}, func() error {
		p, err := h.get(parent)
		if err != nil {
			return err
		}
		c, err := h.get(child)
		if err != nil {
			return err
		}
		if c.parent != 0 {
			return fmt.Errorf("%w: %s", host.ErrAttached, child)
		}
		for up := parent; up != 0; up = h.nodes[up].parent {
			if up == child {
				return fmt.Errorf("%w: %s into %s", host.ErrCycle, child, parent)
			}
		}
		if at < 0 || at > len(p.children) {
			return fmt.Errorf("%w: insert %s at %d of %d", host.ErrIndex, child, at, len(p.children))
		}
		p.children = slices.Insert(p.children, at, child)
		c.parent = parent
		return nil
	})
}

func (h *Host) RemoveChild(parent, child host.Handle) error {
	return h.do(host.Call{Op: host.OpRemoveChild, Parent: parent, Handle: child}, func() error {
		p, i, err := h.childOf(parent, child)
		if err != nil {
			return err
		}
		p.children = slices.Delete(p.children, i, i+1)
		h.nodes[child].parent = 0
		return nil
	})
}

func (h *Host) MoveChild(parent, child host.Handle, to int) error {
	return h.do(host.Call{Op: host.OpMoveChild, Parent: parent, Handle: child, Index: to}, func() error {
		p, i, err := h.childOf(parent, child)
		if err != nil {
			return err
		}
		if to < 0 || to >= len(p.children) {
			return fmt.Errorf("%w: move %s to %d of %d", host.ErrIndex, child, to, len(p.children))
		}
		p.children = slices.Delete(p.children, i, i+1)
		p.children = slices.Insert(p.children, to, child)
		return nil
	})
}

func (h *Host) childOf(parent, child host.Handle) (*node, int, error) {
	p, err := h.get(parent)
	if err != nil {
		return nil, 0, err
	}
	if _, err := h.get(child); err != nil {
		return nil, 0, err
	}
	i := slices.Index(p.children, child)
	if i < 0 {
		return nil, 0, fmt.Errorf("%w: %s of %s", host.ErrNotChild, child, parent)
	}
	return p, i, nil
}

// Tag returns the tag of node id.
func (h *Host) Tag(id host.Handle) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n := h.nodes[id]; n != nil {
		return n.tag
	}
	return ""
}

func (h *Host) Props(id host.Handle) map[string]any {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n := h.nodes[id]; n != nil {
		return maps.Clone(n.props)
	}
	return nil
}

func (h *Host) Children(id host.Handle) []host.Handle {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n := h.nodes[id]; n != nil {
		return slices.Clone(n.children)
	}
	return nil
}

// Parent returns the parent of id, or 0 if id is detached or unknown.
func (h *Host) Parent(id host.Handle) host.Handle {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n := h.nodes[id]; n != nil {
		return n.parent
	}
	return 0
}

// Path returns the child indices leading from the detached root of id's tree
// down to id, together with that root.
func (h *Host) Path(id host.Handle) (host.Handle, []int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var rev []int
	for {
		n := h.nodes[id]
		if n == nil || n.parent == 0 {
			slices.Reverse(rev)
			return id, rev
		}
		rev = append(rev, slices.Index(h.nodes[n.parent].children, id))
		id = n.parent
	}
}

// Texts returns the "text" properties of the subtree at id in document
// order.
func (h *Host) Texts(id host.Handle) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var res []string
	stack := []host.Handle{id}
	for len(stack) > 0 {
		n := h.nodes[stack[len(stack)-1]]
		stack = stack[:len(stack)-1]
		if n == nil {
			continue
		}
		if s, ok := n.props["text"].(string); ok {
			res = append(res, s)
		}
		for i := len(n.children) - 1; i >= 0; i-- {
			stack = append(stack, n.children[i])
		}
	}
	return res
}

// Dump renders the subtree at id, one node per line.
func (h *Host) Dump(id host.Handle) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	buf := &strings.Builder{}
	type item struct {
		id    host.Handle
		depth int
	}
	stack := []item{{id, 0}}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := h.nodes[it.id]
		if n == nil {
			continue
		}
		buf.WriteString(strings.Repeat("  ", it.depth))
		buf.WriteString("<" + n.tag)
		for _, k := range slices.Sorted(maps.Keys(n.props)) {
			fmt.Fprintf(buf, " %s=%s", k, fmtValue(n.props[k]))
		}
		buf.WriteString(">\n")
		for i := len(n.children) - 1; i >= 0; i-- {
			stack = append(stack, item{n.children[i], it.depth + 1})
		}
	}
	return buf.String()
}

func fmtValue(v any) string {
	if s, ok := v.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	return fmt.Sprint(v)
}
