package commit

import (
	"fmt"
	"slices"

	"github.com/signadot/vtree/host"
	"github.com/signadot/vtree/libdiff"
)

// mnode mirrors one node of the committed tree. Component nodes own no host
// node: their host nodes are those of their children.
type mnode struct {
	comp   bool
	handle host.Handle
	// width is the number of host nodes the node contributes to its host
	// parent: 1 for host nodes, and the sum over the children for
	// components.
	width int
	// comps counts component children.
	comps    int
	children []*mnode
}

// chain is the list of mirror nodes from the container down to the owner of
// a child list, together with the path leading there.
type chain struct {
	nodes []*mnode
	path  libdiff.Path
}

func resolve(container *mnode, p libdiff.Path) (*chain, error) {
	c := &chain{nodes: make([]*mnode, 0, len(p)+1), path: p}
	m := container
	c.nodes = append(c.nodes, m)
	for d, i := range p {
		if i < 0 || i >= len(m.children) {
			return nil, fmt.Errorf("%w: no child %d under %s", ErrPatch, i, p[:d])
		}
		m = m.children[i]
		c.nodes = append(c.nodes, m)
	}
	return c, nil
}

func (c *chain) owner() *mnode {
	return c.nodes[len(c.nodes)-1]
}

func (c *chain) child(i int) (*mnode, error) {
	o := c.owner()
	if i < 0 || i >= len(o.children) {
		return nil, fmt.Errorf("%w: no child %d under %s", ErrPatch, i, c.path)
	}
	return o.children[i], nil
}

// offset is the number of host nodes contributed by m.children[:i].
func offset(m *mnode, i int) int {
	if m.comps == 0 {
		return i
	}
	n := 0
	for _, c := range m.children[:i] {
		n += c.width
	}
	return n
}

// slot maps position i of the owner's child list to a host parent and a
// position in that parent's children.
func (c *chain) slot(i int) (host.Handle, int) {
	d := len(c.nodes) - 1
	idx := offset(c.nodes[d], i)
	for c.nodes[d].comp {
		idx += offset(c.nodes[d-1], c.path[d-1])
		d--
	}
	return c.nodes[d].handle, idx
}

// grow propagates a width change of the owner's children through the
// enclosing components.
func (c *chain) grow(delta int) {
	for d := len(c.nodes) - 1; d >= 0 && c.nodes[d].comp; d-- {
		c.nodes[d].width += delta
	}
}

func (c *chain) insert(i int, m *mnode) {
	o := c.owner()
	o.children = slices.Insert(o.children, i, m)
	if m.comp {
		o.comps++
	}
	c.grow(m.width)
}

func (c *chain) remove(i int) *mnode {
	o := c.owner()
	m := o.children[i]
	o.children = slices.Delete(o.children, i, i+1)
	if m.comp {
		o.comps--
	}
	c.grow(-m.width)
	return m
}

// handles returns the host nodes m contributes, in order.
func handles(m *mnode) []host.Handle {
	if !m.comp {
		return []host.Handle{m.handle}
	}
	var res []host.Handle
	stack := []*mnode{m}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !n.comp {
			res = append(res, n.handle)
			continue
		}
		for i := len(n.children) - 1; i >= 0; i-- {
			stack = append(stack, n.children[i])
		}
	}
	return res
}
