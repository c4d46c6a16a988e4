package encode

import "github.com/signadot/vtree/vnode"

type EncState struct {
	colors *Colors
	indent int
	base   *vnode.Node
}

type EncodeOption func(*EncState)

func EncodeColors(c *Colors) EncodeOption {
	return func(es *EncState) { es.colors = c }
}

func Indent(n int) EncodeOption {
	return func(es *EncState) { es.indent = n }
}

// EncodeBase gives the tree a patch list applies to. With a base, property
// updates show the previous values and changed strings are shown as a
// character diff.
func EncodeBase(n *vnode.Node) EncodeOption {
	return func(es *EncState) { es.base = n }
}

func newState(opts []EncodeOption) *EncState {
	es := &EncState{indent: 2}
	for _, opt := range opts {
		opt(es)
	}
	return es
}
