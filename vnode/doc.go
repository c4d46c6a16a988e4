// Package vnode provides the immutable node model describing a desired UI tree.
//
// # Nodes
//
// A Node is a tagged union over two kinds:
//
//   - HostElement: an element of the rendering target, identified by tag name
//   - ComponentInstance: a slot rendered by a component, identified by component id
//
// Each node carries an optional Key, a Props map and an ordered list of
// children. Siblings under the same parent must not share an explicit key.
//
// # Creating Nodes
//
//	list, err := vnode.New(vnode.HostKind("ul"), nil, vnode.NoKey,
//	    vnode.Host("li", vnode.Props{"text": "Buy milk"}).WithKeyString("1"),
//	    vnode.Host("li", vnode.Props{"text": "Walk dog"}).WithKeyString("2"),
//	)
//
// New validates; Host and Comp are unchecked builders whose results are
// validated when diffed.
//
// Descriptors may also be decoded from YAML with FromYAML.
//
// # Identity
//
// Nodes are never compared structurally for diffing. Identity among siblings
// is the key if present, else the position; props are compared shallowly with
// SameValue.
//
// # Thread Safety
//
// Nodes are immutable and may be shared between goroutines.
package vnode
