package libdiff

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/signadot/vtree/vnode"
)

type Op int

const (
	OpInsert Op = iota
	OpDelete
	OpMove
	OpUpdateProps
	OpReplace
)

func (o Op) String() string {
	s, ok := map[Op]string{
		OpInsert:      "insert",
		OpDelete:      "delete",
		OpMove:        "move",
		OpUpdateProps: "props",
		OpReplace:     "replace",
	}[o]
	if ok {
		return s
	}
	return "<unknown op>"
}

func (o Op) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *Op) UnmarshalText(d []byte) error {
	oo, ok := map[string]Op{
		"insert":  OpInsert,
		"delete":  OpDelete,
		"move":    OpMove,
		"props":   OpUpdateProps,
		"replace": OpReplace,
	}[string(d)]
	if !ok {
		return fmt.Errorf("unrecognized op %q", d)
	}
	*o = oo
	return nil
}

// Path is a sequence of child positions starting at the mount container. The
// root node is at Path{0}.
type Path []int

// Append returns a new path extending p with i; p is never aliased.
func (p Path) Append(i int) Path {
	res := make(Path, len(p), len(p)+1)
	copy(res, p)
	return append(res, i)
}

func (p Path) String() string {
	parts := make([]string, len(p))
	for i, x := range p {
		parts[i] = strconv.Itoa(x)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// PropChange is one entry of a property delta. Removed entries carry no
// Value.
type PropChange struct {
	Name    string
	Value   any
	Removed bool
}

func (c PropChange) String() string {
	if c.Removed {
		return "-" + c.Name
	}
	return fmt.Sprintf("%s=%v", c.Name, c.Value)
}

// Patch is one atomic host tree mutation.
//
// Parent addresses the node whose child list is mutated. Index is the insert
// position for OpInsert, the source position for OpMove and the position of the
// affected child otherwise. To is the destination of OpMove: the child is
// removed at Index and then inserted at To in the resulting list.
//
// Positions hold for the child list as it is when the patch is applied, after
// every preceding patch of the same list has been applied.
type Patch struct {
	Op     Op
	Parent Path
	Index  int
	To     int
	Key    vnode.Key
	// Node is the subtree to create for OpInsert and OpReplace.
	Node *vnode.Node
	// Props is the sorted property delta of OpUpdateProps.
	Props []PropChange
}

// Target is the path of the child the patch addresses.
func (p *Patch) Target() Path {
	if p.Op == OpMove {
		return p.Parent.Append(p.To)
	}
	return p.Parent.Append(p.Index)
}

func (p *Patch) String() string {
	buf := &strings.Builder{}
	fmt.Fprintf(buf, "%s %s", p.Op, p.Parent)
	switch p.Op {
	case OpMove:
		fmt.Fprintf(buf, " @%d->%d", p.Index, p.To)
	default:
		fmt.Fprintf(buf, " @%d", p.Index)
	}
	if p.Key.IsSet() {
		fmt.Fprintf(buf, " key=%s", p.Key)
	}
	switch p.Op {
	case OpInsert, OpReplace:
		fmt.Fprintf(buf, " %s", p.Node)
	case OpUpdateProps:
		for _, c := range p.Props {
			buf.WriteString(" ")
			buf.WriteString(c.String())
		}
	}
	return buf.String()
}

// Count returns the number of patches per op.
func Count(patches []Patch) map[Op]int {
	res := map[Op]int{}
	for i := range patches {
		res[patches[i].Op]++
	}
	return res
}
