package render

import (
	"fmt"
	"slices"

	"github.com/signadot/vtree/debug"
	"github.com/signadot/vtree/vnode"
)

// Instance records one expanded component instance.
type Instance struct {
	ID    vnode.ComponentID
	Props vnode.Props
	// Node is the expanded component node; its only child is the rendered
	// output.
	Node *vnode.Node
	// Parent is the nearest enclosing component instance, "" at top level.
	Parent vnode.ComponentID
}

// Result is an expanded tree: every component node of the description carries
// its rendered subtree as its single child.
type Result struct {
	Tree      *vnode.Node
	Instances map[vnode.ComponentID]*Instance
	Errors    []*RenderError
	// Rendered counts render calls; memoized instances are not counted.
	Rendered int
}

// Expander turns a description containing component nodes into an expanded
// tree by rendering each component with its local state.
type Expander struct {
	Registry *Registry
	// Memoize reuses the previous expansion of an instance which is not dirty,
	// contains no dirty instance and receives props equal (vnode.PropsEqual)
	// to the previous ones.
	Memoize bool
}

type frame struct {
	src    *vnode.Node
	out    *vnode.Node
	up     *frame
	index  int
	within vnode.ComponentID
}

func (f *frame) path() []int {
	var rev []int
	for x := f; x.up != nil; x = x.up {
		rev = append(rev, x.index)
	}
	slices.Reverse(rev)
	return rev
}

// Expand expands root. States of instances seen for the first time are
// initialized in states. prev, if not nil, is the previous expansion of the
// same root and dirty the set of instances whose state changed since.
//
// Render failures do not fail the expansion: they are collected in
// Result.Errors. Unknown components and instances occurring twice are
// validation errors.
func (x *Expander) Expand(root *vnode.Node, states *States, prev *Result, dirty map[vnode.ComponentID]bool) (*Result, error) {
	res := &Result{Instances: map[vnode.ComponentID]*Instance{}}
	if root == nil {
		return res, nil
	}
	stale := x.staleSet(prev, dirty)
	res.Tree = shell(root)
	stack := []*frame{{src: root, out: res.Tree}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if err := vnode.ValidateNode(f.src); err != nil {
			return nil, prefixPath(err, f.path())
		}
		within := f.within
		children := f.src.Children
		switch f.src.Kind.Type {
		case vnode.HostElement:
		case vnode.ComponentInstance:
			id := f.src.Kind.Component()
			if _, dup := res.Instances[id]; dup {
				return nil, &vnode.ValidationError{
					Path:   f.path(),
					Kind:   f.src.Kind,
					Key:    f.src.Key,
					Reason: vnode.ErrMalformed,
					Detail: "component instance occurs more than once",
				}
			}
			if len(f.src.Children) != 0 {
				return nil, &vnode.ValidationError{
					Path:   f.path(),
					Kind:   f.src.Kind,
					Key:    f.src.Key,
					Reason: vnode.ErrMalformed,
					Detail: "component nodes take no children",
				}
			}
			if reused := x.reuse(prev, stale, id, f.src); reused != nil {
				res.adopt(prev, reused, f, within)
				continue
			}
			comp, ok := x.Registry.Lookup(id)
			if !ok {
				return nil, &vnode.ValidationError{
					Path:   f.path(),
					Kind:   f.src.Kind,
					Key:    f.src.Key,
					Reason: vnode.ErrMalformed,
					Detail: "unknown component",
				}
			}
			if !states.Has(id) {
				var init any
				if in, ok := comp.(Initializer); ok {
					init = in.InitialState(f.src.Props)
				}
				states.Set(id, init)
			}
			state, _ := states.Get(id)
			rendered, err := safeRender(comp, f.src.Props, state)
			res.Rendered++
			if err != nil {
				res.Errors = append(res.Errors, &RenderError{Component: id, Path: f.path(), Err: err})
				rendered = vnode.Placeholder()
			}
			if rendered == nil {
				rendered = vnode.Placeholder()
			}
			if debug.Render() {
				debug.Logf("render %s -> %s\n", id, rendered)
			}
			res.Instances[id] = &Instance{ID: id, Props: f.src.Props, Node: f.out, Parent: within}
			children = []*vnode.Node{rendered}
			within = id
		default:
			panic(fmt.Sprintf("render: unknown kind type %d", f.src.Kind.Type))
		}
		if len(children) == 0 {
			continue
		}
		f.out.Children = make([]*vnode.Node, len(children))
		for i, c := range children {
			f.out.Children[i] = shell(c)
		}
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, &frame{src: children[i], out: f.out.Children[i], up: f, index: i, within: within})
		}
	}
	return res, nil
}

func shell(n *vnode.Node) *vnode.Node {
	if n == nil {
		return nil
	}
	return &vnode.Node{Kind: n.Kind, Key: n.Key, Props: n.Props}
}

func safeRender(c Component, props vnode.Props, state any) (n *vnode.Node, err error) {
	defer func() {
		if r := recover(); r != nil {
			n, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	return c.Render(props, state)
}

// staleSet marks every previous instance that is dirty or encloses a dirty
// instance.
func (x *Expander) staleSet(prev *Result, dirty map[vnode.ComponentID]bool) map[vnode.ComponentID]bool {
	if prev == nil || !x.Memoize {
		return nil
	}
	stale := make(map[vnode.ComponentID]bool, len(dirty))
	for id := range dirty {
		for cur := id; cur != "" && !stale[cur]; {
			stale[cur] = true
			inst, ok := prev.Instances[cur]
			if !ok {
				break
			}
			cur = inst.Parent
		}
	}
	return stale
}

func (x *Expander) reuse(prev *Result, stale map[vnode.ComponentID]bool, id vnode.ComponentID, src *vnode.Node) *Instance {
	if prev == nil || !x.Memoize || stale[id] {
		return nil
	}
	inst, ok := prev.Instances[id]
	if !ok || inst.Node.Key != src.Key || !vnode.PropsEqual(inst.Props, src.Props) {
		return nil
	}
	return inst
}

// adopt places a previously expanded instance at f and records it and every
// instance nested in it.
func (res *Result) adopt(prev *Result, inst *Instance, f *frame, within vnode.ComponentID) {
	if f.up == nil {
		res.Tree = inst.Node
	} else {
		f.up.out.Children[f.index] = inst.Node
	}
	res.Instances[inst.ID] = &Instance{ID: inst.ID, Props: inst.Props, Node: inst.Node, Parent: within}
	stack := slices.Clone(inst.Node.Children)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n.Kind.IsComponent() {
			if nested, ok := prev.Instances[n.Kind.Component()]; ok {
				res.Instances[nested.ID] = nested
			}
		}
		stack = append(stack, n.Children...)
	}
	if debug.Render() {
		debug.Logf("render %s memoized\n", inst.ID)
	}
}

func prefixPath(err error, p []int) error {
	if ve, ok := err.(*vnode.ValidationError); ok {
		ve.Path = append(p, ve.Path...)
	}
	return err
}
