package render

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/signadot/vtree/vnode"
)

// Component renders a component instance from its props and local state.
// Render must not retain or mutate props or state.
type Component interface {
	Render(props vnode.Props, state any) (*vnode.Node, error)
}

// Initializer is implemented by components whose local state does not start
// out nil.
type Initializer interface {
	InitialState(props vnode.Props) any
}

type ComponentFunc func(props vnode.Props, state any) (*vnode.Node, error)

func (f ComponentFunc) Render(props vnode.Props, state any) (*vnode.Node, error) {
	return f(props, state)
}

// Stateful pairs a render function with an initial state.
type Stateful struct {
	Initial any
	Func    ComponentFunc
}

func (s *Stateful) Render(props vnode.Props, state any) (*vnode.Node, error) {
	return s.Func(props, state)
}

func (s *Stateful) InitialState(vnode.Props) any {
	return s.Initial
}

// Registry maps component ids to components. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	comps map[vnode.ComponentID]Component
}

func NewRegistry() *Registry {
	return &Registry{comps: map[vnode.ComponentID]Component{}}
}

func (r *Registry) Register(id vnode.ComponentID, c Component) error {
	if id == "" {
		return fmt.Errorf("empty component id")
	}
	if c == nil {
		return fmt.Errorf("nil component %q", id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.comps[id]; ok {
		return fmt.Errorf("component %q already registered", id)
	}
	r.comps[id] = c
	return nil
}

func (r *Registry) MustRegister(id vnode.ComponentID, c Component) {
	if err := r.Register(id, c); err != nil {
		panic(err)
	}
}

func (r *Registry) Lookup(id vnode.ComponentID) (Component, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.comps[id]
	return c, ok
}

func (r *Registry) IDs() []vnode.ComponentID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.comps))
}

// States holds the local state of each component instance of a root. It is
// owned by the root's scheduler and is not safe for concurrent use.
type States struct {
	m map[vnode.ComponentID]any
}

func NewStates() *States {
	return &States{m: map[vnode.ComponentID]any{}}
}

func (s *States) Get(id vnode.ComponentID) (any, bool) {
	v, ok := s.m[id]
	return v, ok
}

func (s *States) Set(id vnode.ComponentID, v any) {
	s.m[id] = v
}

func (s *States) Has(id vnode.ComponentID) bool {
	_, ok := s.m[id]
	return ok
}

func (s *States) Delete(id vnode.ComponentID) {
	delete(s.m, id)
}

func (s *States) Len() int {
	return len(s.m)
}

// Clone is shallow: state values are shared.
func (s *States) Clone() *States {
	return &States{m: maps.Clone(s.m)}
}

// Retain drops the state of every instance not in keep.
func (s *States) Retain(keep func(vnode.ComponentID) bool) {
	maps.DeleteFunc(s.m, func(id vnode.ComponentID, _ any) bool {
		return !keep(id)
	})
}
