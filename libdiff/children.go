package libdiff

import (
	"cmp"
	"slices"

	"github.com/signadot/vtree/vnode"
)

// Reconcile computes the patches transforming the child list prev of the
// node at parent into next, recursing into every surviving child.
//
// A child's identity is its key if it has one, else its index. A child of next
// survives if prev holds a child of the same identity and kind; a child with
// the same identity but another kind is replaced in place; a child with a new
// identity is inserted; identities of prev missing from next are deleted.
//
// Placement walks next in order, remembering the largest previous index placed
// so far. A survivor whose previous index is not below it keeps its position,
// any other survivor is moved to directly after the child placed before it, and
// inserted children go directly after the child placed before them. Deletions
// come last, from the highest position down, so every earlier position stays
// valid.
//
// Reordering keyed children without changing them therefore yields only
// OpMove patches, while unkeyed lists degrade to positional identity: an
// insertion before the end is seen as updates of every following child.
func Reconcile(parent Path, prev, next []*vnode.Node) ([]Patch, error) {
	for _, list := range [][]*vnode.Node{prev, next} {
		if err := vnode.ValidateChildren(list); err != nil {
			return nil, err
		}
		for _, c := range list {
			if err := vnode.Validate(c); err != nil {
				return nil, err
			}
		}
	}
	d := &differ{}
	d.stack = append(d.stack, newListFrame(rootFrame(slices.Clone(parent)), -1, prev, next))
	d.run()
	return d.patches, nil
}

type identity struct {
	key   string
	index int
	keyed bool
}

func identityOf(n *vnode.Node, i int) identity {
	if n.Key.IsSet() {
		return identity{key: n.Key.Value(), index: -1, keyed: true}
	}
	return identity{index: i}
}

// anchor is a survivor left at its position.
type anchor struct {
	prev int
	// seq is the number of children placed before it.
	seq int
}

// fenwick counts placed previous indices.
type fenwick []int

func (t fenwick) add(i int) {
	for i++; i < len(t); i += i & -i {
		t[i]++
	}
}

// below is the number of marked indices less than i.
func (t fenwick) below(i int) int {
	n := 0
	for ; i > 0; i -= i & -i {
		n += t[i]
	}
	return n
}

// listFrame walks one child list. The path of the node owning the list is
// derived from the owner frame when first needed: while the list is walked the
// owner's position cannot change.
type listFrame struct {
	owner    *listFrame
	ownerPos int
	path     Path
	pathOK   bool

	prev, next []*vnode.Node
	prevIndex  map[identity]int

	// The simulated child list holds the placed children in placement
	// order. Unplaced previous children keep their relative order, each
	// one directly before the first anchor with a higher previous index,
	// or after every placed child.
	placed     []bool
	marks      fenwick
	count      int
	anchors    []anchor
	lastPlaced int
	i          int
}

func rootFrame(p Path) *listFrame {
	return &listFrame{path: p, pathOK: true}
}

// newListFrame starts walking the children of the node at ownerPos in owner's
// list. A negative ownerPos makes owner the frame of the list itself.
func newListFrame(owner *listFrame, ownerPos int, prev, next []*vnode.Node) *listFrame {
	if ownerPos < 0 {
		owner.prev, owner.next = prev, next
		owner.init()
		return owner
	}
	f := &listFrame{owner: owner, ownerPos: ownerPos, prev: prev, next: next}
	f.init()
	return f
}

func (f *listFrame) init() {
	f.prevIndex = make(map[identity]int, len(f.prev))
	f.placed = make([]bool, len(f.prev))
	f.marks = make(fenwick, len(f.prev)+1)
	for i, c := range f.prev {
		f.prevIndex[identityOf(c, i)] = i
	}
}

func (f *listFrame) parentPath() Path {
	if f.pathOK {
		return f.path
	}
	var rev []int
	x := f
	for ; !x.pathOK; x = x.owner {
		rev = append(rev, x.ownerPos)
	}
	p := make(Path, len(x.path), len(x.path)+len(rev))
	copy(p, x.path)
	for i := len(rev) - 1; i >= 0; i-- {
		p = append(p, rev[i])
	}
	f.path, f.pathOK = p, true
	return p
}

// pos is the current position of the unplaced previous child j.
func (f *listFrame) pos(j int) int {
	unplaced := j - f.marks.below(j)
	k, _ := slices.BinarySearchFunc(f.anchors, j, func(a anchor, j int) int {
		return cmp.Compare(a.prev, j)
	})
	if k == len(f.anchors) {
		return f.count + unplaced
	}
	return f.anchors[k].seq + unplaced
}

func (f *listFrame) mark(j int) {
	f.placed[j] = true
	f.marks.add(j)
	f.count++
}

// after is the position directly following the last placed child.
func (f *listFrame) after() int {
	return f.count + f.lastPlaced - f.marks.below(f.lastPlaced)
}

func (d *differ) step(f *listFrame) {
	i := f.i
	f.i++
	nc := f.next[i]
	oldIndex, found := f.prevIndex[identityOf(nc, i)]
	if !found {
		to := f.after()
		f.count++
		d.emit(Patch{Op: OpInsert, Parent: f.parentPath(), Index: to, Key: nc.Key, Node: nc})
		return
	}
	var at int
	if oldIndex >= f.lastPlaced {
		at = f.pos(oldIndex)
		f.anchors = append(f.anchors, anchor{prev: oldIndex, seq: f.count})
		f.lastPlaced = oldIndex
		f.mark(oldIndex)
	} else {
		from := f.pos(oldIndex)
		f.mark(oldIndex)
		at = f.after() - 1
		d.emit(Patch{Op: OpMove, Parent: f.parentPath(), Index: from, To: at, Key: nc.Key})
	}
	prev := f.prev[oldIndex]
	if prev.Kind != nc.Kind {
		d.emit(Patch{Op: OpReplace, Parent: f.parentPath(), Index: at, Key: nc.Key, Node: nc})
		return
	}
	d.same(f, at, prev, nc)
}

func (d *differ) finish(f *listFrame) {
	for j := len(f.prev) - 1; j >= 0; j-- {
		if f.placed[j] {
			continue
		}
		d.emit(Patch{Op: OpDelete, Parent: f.parentPath(), Index: f.pos(j), Key: f.prev[j].Key})
	}
}
