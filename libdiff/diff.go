package libdiff

import (
	"cmp"
	"slices"

	"github.com/signadot/vtree/debug"
	"github.com/signadot/vtree/vnode"
)

// Diff computes the ordered patches transforming the tree prev, mounted as
// the only child of its container, into next. If there are no differences,
// Diff returns no patches.
//
//   - if prev is nil the result inserts next; if next is nil it deletes prev.
//
//   - if the kinds of prev and next differ, the result is a single OpReplace:
//     children are never diffed across kinds.
//
//   - for matching host kinds, any property added, changed (see
//     [vnode.SameValue]) or removed is collected into one OpUpdateProps.
//     Component nodes carry render inputs rather than host properties and
//     never produce OpUpdateProps.
//
//   - child lists are reconciled by identity, see [Reconcile].
//
// Component instances are expected to be expanded (their rendered output is
// their single child) before diffing.
//
// next is validated before anything is produced; a duplicate sibling key or
// malformed node yields a *vnode.ValidationError and no patches.
func Diff(prev, next *vnode.Node) ([]Patch, error) {
	if prev != nil {
		if err := vnode.Validate(prev); err != nil {
			return nil, err
		}
	}
	if next != nil {
		if err := vnode.Validate(next); err != nil {
			return nil, err
		}
	}
	d := &differ{}
	root := rootFrame(Path{})
	switch {
	case prev == nil && next == nil:
		return nil, nil
	case prev == nil:
		d.emit(Patch{Op: OpInsert, Parent: root.path, Index: 0, Key: next.Key, Node: next})
	case next == nil:
		d.emit(Patch{Op: OpDelete, Parent: root.path, Index: 0, Key: prev.Key})
	case prev.Kind != next.Kind:
		d.emit(Patch{Op: OpReplace, Parent: root.path, Index: 0, Key: next.Key, Node: next})
	default:
		d.same(root, 0, prev, next)
		d.run()
	}
	if debug.Diff() {
		debug.Logf("diff %s -> %s: %d patches\n", prev, next, len(d.patches))
	}
	return d.patches, nil
}

// PropsDelta returns the sorted changes turning prev into next.
func PropsDelta(prev, next vnode.Props) []PropChange {
	var res []PropChange
	for name, nv := range next {
		pv, ok := prev[name]
		if !ok || !vnode.SameValue(pv, nv) {
			res = append(res, PropChange{Name: name, Value: nv})
		}
	}
	for name := range prev {
		if _, ok := next[name]; !ok {
			res = append(res, PropChange{Name: name, Removed: true})
		}
	}
	slices.SortFunc(res, func(a, b PropChange) int {
		return cmp.Compare(a.Name, b.Name)
	})
	return res
}

type differ struct {
	patches []Patch
	stack   []*listFrame
}

func (d *differ) emit(p Patch) {
	d.patches = append(d.patches, p)
}

// same handles a pair of nodes of equal identity and kind sitting at index of
// the child list walked by f.
func (d *differ) same(f *listFrame, index int, prev, next *vnode.Node) {
	switch next.Kind.Type {
	case vnode.HostElement:
		if delta := PropsDelta(prev.Props, next.Props); len(delta) != 0 {
			d.emit(Patch{Op: OpUpdateProps, Parent: f.parentPath(), Index: index, Key: next.Key, Props: delta})
		}
	case vnode.ComponentInstance:
	default:
		panic("libdiff: unknown kind type " + next.Kind.Type.String())
	}
	if len(prev.Children) == 0 && len(next.Children) == 0 {
		return
	}
	d.stack = append(d.stack, newListFrame(f, index, prev.Children, next.Children))
}

// run drains the frame stack. A frame stays on the stack while its child
// list is walked; survivors push frames for their own children so that every
// subtree's patches directly follow the placement of its root.
func (d *differ) run() {
	for len(d.stack) > 0 {
		f := d.stack[len(d.stack)-1]
		if f.i < len(f.next) {
			d.step(f)
			continue
		}
		d.finish(f)
		d.stack = d.stack[:len(d.stack)-1]
	}
}
