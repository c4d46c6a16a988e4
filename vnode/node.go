package vnode

import (
	"fmt"
	"slices"
	"strings"
)

// PlaceholderTag is the host tag of the node substituted for a subtree whose
// render failed.
const PlaceholderTag = "#placeholder"

// Node is an immutable description of a desired piece of UI. A new tree is
// built for every render pass; nodes are never mutated once handed out.
type Node struct {
	Kind     Kind
	Key      Key
	Props    Props
	Children []*Node
}

// New constructs a node, validating the node itself and the keys of its
// direct children.
func New(kind Kind, props Props, key Key, children ...*Node) (*Node, error) {
	n := build(kind, props, key, children)
	if err := ValidateNode(n); err != nil {
		return nil, err
	}
	return n, nil
}

func MustNew(kind Kind, props Props, key Key, children ...*Node) *Node {
	n, err := New(kind, props, key, children...)
	if err != nil {
		panic(err)
	}
	return n
}

// Host builds a host element node without validation.
func Host(tag string, props Props, children ...*Node) *Node {
	return build(HostKind(tag), props, NoKey, children)
}

// Comp builds a component instance node without validation.
func Comp(id ComponentID, props Props) *Node {
	return build(ComponentKind(id), props, NoKey, nil)
}

// Placeholder returns the empty node standing in for a failed render.
func Placeholder() *Node {
	return &Node{Kind: HostKind(PlaceholderTag)}
}

func build(kind Kind, props Props, key Key, children []*Node) *Node {
	return &Node{
		Kind:     kind,
		Key:      key,
		Props:    props.Clone(),
		Children: slices.Clone(children),
	}
}

// WithKey returns a copy of n carrying key k.
func (n *Node) WithKey(k Key) *Node {
	res := *n
	res.Key = k
	return &res
}

// WithKeyString is shorthand for WithKey(KeyOf(s)).
func (n *Node) WithKeyString(s string) *Node {
	return n.WithKey(KeyOf(s))
}

// WithChildren returns a copy of n whose children are children.
func (n *Node) WithChildren(children ...*Node) *Node {
	res := *n
	res.Children = slices.Clone(children)
	return &res
}

func (n *Node) IsPlaceholder() bool {
	return n != nil && n.Kind == HostKind(PlaceholderTag)
}

// Prop returns the named property.
func (n *Node) Prop(name string) (any, bool) {
	v, ok := n.Props[name]
	return v, ok
}

// Size is the number of nodes in the tree rooted at n.
func (n *Node) Size() int {
	if n == nil {
		return 0
	}
	count := 0
	stack := []*Node{n}
	for len(stack) > 0 {
		x := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		count++
		stack = append(stack, x.Children...)
	}
	return count
}

func (n *Node) String() string {
	if n == nil {
		return "<nil>"
	}
	buf := &strings.Builder{}
	n.writeTo(buf)
	return buf.String()
}

func (n *Node) writeTo(buf *strings.Builder) {
	buf.WriteString(n.Kind.String())
	if n.Key.IsSet() {
		buf.WriteString("#")
		buf.WriteString(n.Key.String())
	}
	if len(n.Props) != 0 {
		buf.WriteString("(")
		for i, name := range n.Props.Names() {
			if i > 0 {
				buf.WriteString(" ")
			}
			fmt.Fprintf(buf, "%s=%v", name, n.Props[name])
		}
		buf.WriteString(")")
	}
	if len(n.Children) != 0 {
		buf.WriteString("[")
		for i, c := range n.Children {
			if i > 0 {
				buf.WriteString(" ")
			}
			c.writeTo(buf)
		}
		buf.WriteString("]")
	}
}
