package libdiff

import (
	"fmt"
	"slices"

	"github.com/signadot/vtree/vnode"
)

// Apply applies patches to the tree prev as a host would and returns the
// resulting tree. prev is not modified. It is the reference semantics of a
// patch list: for valid trees a and b, Apply(a, Diff(a, b)) has the shape of b.
func Apply(prev *vnode.Node, patches []Patch) (*vnode.Node, error) {
	container := &mnode{}
	if prev != nil {
		container.children = []*mnode{thaw(prev)}
	}
	for i := range patches {
		if err := applyOne(container, &patches[i]); err != nil {
			return nil, fmt.Errorf("patch %d (%s): %w", i, &patches[i], err)
		}
	}
	switch len(container.children) {
	case 0:
		return nil, nil
	case 1:
		return container.children[0].freeze(), nil
	default:
		return nil, fmt.Errorf("container holds %d roots", len(container.children))
	}
}

type mnode struct {
	kind     vnode.Kind
	key      vnode.Key
	props    vnode.Props
	children []*mnode
}

func thaw(n *vnode.Node) *mnode {
	res := &mnode{kind: n.Kind, key: n.Key, props: n.Props.Clone()}
	res.children = make([]*mnode, len(n.Children))
	for i, c := range n.Children {
		res.children[i] = thaw(c)
	}
	return res
}

func (m *mnode) freeze() *vnode.Node {
	res := &vnode.Node{Kind: m.kind, Key: m.key, Props: m.props}
	if len(m.children) != 0 {
		res.Children = make([]*vnode.Node, len(m.children))
		for i, c := range m.children {
			res.Children[i] = c.freeze()
		}
	}
	return res
}

func resolve(container *mnode, p Path) (*mnode, error) {
	cur := container
	for depth, i := range p {
		if i < 0 || i >= len(cur.children) {
			return nil, fmt.Errorf("path %s: index %d out of range at depth %d", p, i, depth)
		}
		cur = cur.children[i]
	}
	return cur, nil
}

func applyOne(container *mnode, p *Patch) error {
	parent, err := resolve(container, p.Parent)
	if err != nil {
		return err
	}
	n := len(parent.children)
	inRange := func(i, lim int) error {
		if i < 0 || i >= lim {
			return fmt.Errorf("index %d out of range [0,%d)", i, lim)
		}
		return nil
	}
	switch p.Op {
	case OpInsert:
		if err := inRange(p.Index, n+1); err != nil {
			return err
		}
		parent.children = slices.Insert(parent.children, p.Index, thaw(p.Node))
	case OpDelete:
		if err := inRange(p.Index, n); err != nil {
			return err
		}
		parent.children = slices.Delete(parent.children, p.Index, p.Index+1)
	case OpMove:
		if err := inRange(p.Index, n); err != nil {
			return err
		}
		if err := inRange(p.To, n); err != nil {
			return err
		}
		c := parent.children[p.Index]
		parent.children = slices.Delete(parent.children, p.Index, p.Index+1)
		parent.children = slices.Insert(parent.children, p.To, c)
	case OpReplace:
		if err := inRange(p.Index, n); err != nil {
			return err
		}
		parent.children[p.Index] = thaw(p.Node)
	case OpUpdateProps:
		if err := inRange(p.Index, n); err != nil {
			return err
		}
		c := parent.children[p.Index]
		if c.props == nil {
			c.props = vnode.Props{}
		}
		for _, pc := range p.Props {
			if pc.Removed {
				delete(c.props, pc.Name)
				continue
			}
			c.props[pc.Name] = pc.Value
		}
		if len(c.props) == 0 {
			c.props = nil
		}
	default:
		return fmt.Errorf("unknown op %d", p.Op)
	}
	return nil
}
