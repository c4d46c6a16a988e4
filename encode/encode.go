package encode

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/signadot/vtree/libdiff"
	"github.com/signadot/vtree/vnode"
)

// EncodeTree writes n, one node per line, children indented below their
// parent.
func EncodeTree(n *vnode.Node, w io.Writer, opts ...EncodeOption) error {
	es := newState(opts)
	if n == nil {
		return nil
	}
	type item struct {
		n     *vnode.Node
		depth int
	}
	buf := &strings.Builder{}
	stack := []item{{n, 0}}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		buf.WriteString(strings.Repeat(" ", it.depth*es.indent))
		es.head(buf, it.n)
		buf.WriteByte('\n')
		for i := len(it.n.Children) - 1; i >= 0; i-- {
			stack = append(stack, item{it.n.Children[i], it.depth + 1})
		}
	}
	_, err := io.WriteString(w, buf.String())
	return err
}

func (es *EncState) head(buf *strings.Builder, n *vnode.Node) {
	c := es.colors
	if n.Kind.IsComponent() {
		buf.WriteString(c.Color(ComponentColor, n.Kind.String()))
	} else {
		buf.WriteString(c.Color(TagColor, n.Kind.String()))
	}
	if n.Key.IsSet() {
		buf.WriteString(" " + c.Color(KeyColor, "#"+strconv.Quote(n.Key.Value())))
	}
	for _, name := range n.Props.Names() {
		buf.WriteString(" " + c.Color(PropColor, name) + "=" + c.Color(ValueColor, FormatValue(n.Props[name])))
	}
}

// EncodePatches writes one line per patch, followed by one indented line per
// property change of UpdateProps patches.
func EncodePatches(patches []libdiff.Patch, w io.Writer, opts ...EncodeOption) error {
	es := newState(opts)
	c := es.colors
	cur := es.base
	buf := &strings.Builder{}
	pad := strings.Repeat(" ", es.indent)
	for i := range patches {
		p := &patches[i]
		buf.WriteString(c.Color(OpColor(p.Op), p.Op.String()))
		buf.WriteString(" " + c.Color(PathColor, p.Parent.String()))
		fmt.Fprintf(buf, " @%d", p.Index)
		if p.Op == libdiff.OpMove {
			fmt.Fprintf(buf, "->%d", p.To)
		}
		if p.Key.IsSet() {
			buf.WriteString(" " + c.Color(KeyColor, "#"+strconv.Quote(p.Key.Value())))
		}
		if p.Node != nil {
			buf.WriteString(" ")
			es.head(buf, p.Node)
			if sz := p.Node.Size(); sz > 1 {
				fmt.Fprintf(buf, " (%d nodes)", sz)
			}
		}
		buf.WriteByte('\n')
		if p.Op == libdiff.OpUpdateProps {
			var old vnode.Props
			if n := lookup(cur, p.Target()); n != nil {
				old = n.Props
			}
			for _, pc := range p.Props {
				buf.WriteString(pad)
				es.propChange(buf, old, pc)
				buf.WriteByte('\n')
			}
		}
		if cur != nil {
			next, err := libdiff.Apply(cur, patches[i:i+1])
			if err != nil {
				return fmt.Errorf("patch %d does not apply to the base tree: %w", i, err)
			}
			cur = next
		}
	}
	_, err := io.WriteString(w, buf.String())
	return err
}

func (es *EncState) propChange(buf *strings.Builder, old vnode.Props, pc libdiff.PropChange) {
	c := es.colors
	prev, had := old[pc.Name]
	switch {
	case pc.Removed:
		buf.WriteString(c.Color(DeleteColor, "-"+pc.Name))
		if had {
			buf.WriteString("=" + c.Color(ValueColor, FormatValue(prev)))
		}
	case !had:
		buf.WriteString(c.Color(InsertColor, "+"+pc.Name) + "=" + c.Color(ValueColor, FormatValue(pc.Value)))
	default:
		buf.WriteString(c.Color(PropColor, pc.Name) + ": ")
		a, aok := prev.(string)
		b, bok := pc.Value.(string)
		if aok && bok {
			buf.WriteString(`"` + TextDiff(a, b, c) + `"`)
			return
		}
		buf.WriteString(FormatValue(prev) + " -> " + c.Color(ValueColor, FormatValue(pc.Value)))
	}
}

// TextDiff shows the character level changes turning a into b. Without
// colors, deletions are marked [-like this-] and insertions {+like this+}.
func TextDiff(a, b string, c *Colors) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffCleanupSemantic(dmp.DiffMain(a, b, false))
	buf := &strings.Builder{}
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			buf.WriteString(d.Text)
		case diffmatchpatch.DiffDelete:
			if c == nil {
				buf.WriteString("[-" + d.Text + "-]")
			} else {
				buf.WriteString(c.Color(DeleteColor, d.Text))
			}
		case diffmatchpatch.DiffInsert:
			if c == nil {
				buf.WriteString("{+" + d.Text + "+}")
			} else {
				buf.WriteString(c.Color(InsertColor, d.Text))
			}
		}
	}
	return buf.String()
}

func FormatValue(v any) string {
	if s, ok := v.(string); ok {
		return strconv.Quote(s)
	}
	return fmt.Sprint(v)
}

func lookup(n *vnode.Node, p libdiff.Path) *vnode.Node {
	if n == nil || len(p) == 0 || p[0] != 0 {
		return nil
	}
	for _, i := range p[1:] {
		if i < 0 || i >= len(n.Children) {
			return nil
		}
		n = n.Children[i]
	}
	return n
}

// MustString renders n with the default options.
func MustString(n *vnode.Node) string {
	buf := &strings.Builder{}
	if err := EncodeTree(n, buf); err != nil {
		panic(err)
	}
	return strings.TrimSpace(buf.String())
}
