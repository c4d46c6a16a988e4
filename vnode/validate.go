package vnode

import (
	"fmt"
	"slices"
)

// ValidateChildren reports the first pair of siblings sharing an explicit key.
func ValidateChildren(children []*Node) error {
	return validateChildrenAt(nil, children)
}

func validateChildrenAt(path []int, children []*Node) error {
	seen := make(map[string]int, len(children))
	for i, c := range children {
		if c == nil {
			return &ValidationError{
				Path:   appendPath(path, i),
				Reason: ErrMalformed,
				Detail: "nil child",
			}
		}
		if !c.Key.IsSet() {
			continue
		}
		if j, ok := seen[c.Key.s]; ok {
			return &ValidationError{
				Path:   path,
				Kind:   c.Kind,
				Key:    c.Key,
				Reason: ErrDuplicateKey,
				Detail: fmt.Sprintf("children %d and %d", j, i),
			}
		}
		seen[c.Key.s] = i
	}
	return nil
}

// ValidateNode checks a single node without descending into its children.
func ValidateNode(n *Node) error {
	return validateNodeAt(nil, n)
}

func validateNodeAt(path []int, n *Node) error {
	if n == nil {
		return &ValidationError{Path: path, Reason: ErrMalformed, Detail: "nil node"}
	}
	switch n.Kind.Type {
	case HostElement:
		if n.Kind.Name == "" {
			return &ValidationError{Path: path, Kind: n.Kind, Key: n.Key, Reason: ErrMalformed, Detail: "empty tag name"}
		}
	case ComponentInstance:
		if n.Kind.Name == "" {
			return &ValidationError{Path: path, Kind: n.Kind, Key: n.Key, Reason: ErrMalformed, Detail: "empty component id"}
		}
	default:
		return &ValidationError{Path: path, Kind: n.Kind, Key: n.Key, Reason: ErrMalformed, Detail: fmt.Sprintf("unknown kind type %d", n.Kind.Type)}
	}
	if _, ok := n.Props[ChildrenProp]; ok {
		return &ValidationError{Path: path, Kind: n.Kind, Key: n.Key, Reason: ErrMalformed, Detail: "reserved prop " + ChildrenProp}
	}
	return validateChildrenAt(path, n.Children)
}

// Validate checks the whole tree rooted at n. The walk keeps its own stack so
// that deep trees do not grow the goroutine stack.
func Validate(n *Node) error {
	type frame struct {
		node  *Node
		up    *frame
		index int
	}
	stack := []*frame{{node: n}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if err := validateNodeAt(nil, f.node); err != nil {
			var rev []int
			for x := f; x.up != nil; x = x.up {
				rev = append(rev, x.index)
			}
			slices.Reverse(rev)
			if ve, ok := err.(*ValidationError); ok {
				ve.Path = append(rev, ve.Path...)
			}
			return err
		}
		for i := len(f.node.Children) - 1; i >= 0; i-- {
			stack = append(stack, &frame{node: f.node.Children[i], up: f, index: i})
		}
	}
	return nil
}

func appendPath(p []int, i int) []int {
	res := slices.Clip(p)
	return append(res, i)
}
