package render

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/signadot/vtree/vnode"
)

func counter() Component {
	return &Stateful{
		Initial: 0,
		Func: func(props vnode.Props, state any) (*vnode.Node, error) {
			return vnode.Host("span", vnode.Props{"text": fmt.Sprint(props["label"], state.(int))}), nil
		},
	}
}

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	reg := NewRegistry()
	reg.MustRegister("a", counter())
	reg.MustRegister("b", counter())
	reg.MustRegister("wrap", ComponentFunc(func(props vnode.Props, state any) (*vnode.Node, error) {
		return vnode.Host("section", nil, vnode.Comp("b", vnode.Props{"label": "b"})), nil
	}))
	reg.MustRegister("broken", ComponentFunc(func(vnode.Props, any) (*vnode.Node, error) {
		return nil, errors.New("boom")
	}))
	reg.MustRegister("panics", ComponentFunc(func(vnode.Props, any) (*vnode.Node, error) {
		panic("kaboom")
	}))
	return reg
}

func TestExpand(t *testing.T) {
	x := &Expander{Registry: testRegistry(t)}
	states := NewStates()
	root := vnode.Host("div", nil,
		vnode.Comp("a", vnode.Props{"label": "a"}),
		vnode.Comp("wrap", nil),
	)
	res, err := x.Expand(root, states, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	want := `<div>[{a}(label=a)[<span>(text=a0)] {wrap}[<section>[{b}(label=b)[<span>(text=b0)]]]]`
	if got := res.Tree.String(); got != want {
		t.Errorf("got  %s\nwant %s", got, want)
	}
	if res.Rendered != 3 || len(res.Instances) != 3 {
		t.Errorf("rendered %d instances %d", res.Rendered, len(res.Instances))
	}
	if res.Instances["b"].Parent != "wrap" || res.Instances["a"].Parent != "" {
		t.Errorf("bad parents")
	}
	if v, _ := states.Get("a"); v != 0 {
		t.Errorf("state not initialized: %v", v)
	}
	if root.Children[0].Children != nil {
		t.Errorf("description mutated")
	}
}

func TestExpandRenderErrors(t *testing.T) {
	x := &Expander{Registry: testRegistry(t)}
	root := vnode.Host("div", nil,
		vnode.Comp("a", vnode.Props{"label": "a"}),
		vnode.Comp("broken", nil),
		vnode.Host("p", nil, vnode.Comp("panics", nil)),
	)
	res, err := x.Expand(root, NewStates(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Errors) != 2 {
		t.Fatalf("expected 2 render errors, got %v", res.Errors)
	}
	if diff := cmp.Diff([]int{1}, res.Errors[0].Path); diff != "" {
		t.Errorf("path (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{2, 0}, res.Errors[1].Path); diff != "" {
		t.Errorf("path (-want +got):\n%s", diff)
	}
	err = Join(res.Errors)
	if !errors.Is(err, ErrRender) {
		t.Errorf("expected ErrRender, got %v", err)
	}
	if !res.Tree.Children[1].Children[0].IsPlaceholder() {
		t.Errorf("expected placeholder, got %s", res.Tree.Children[1])
	}
	if !res.Tree.Children[2].Children[0].Children[0].IsPlaceholder() {
		t.Errorf("expected placeholder, got %s", res.Tree.Children[2])
	}
}

func TestExpandValidation(t *testing.T) {
	x := &Expander{Registry: testRegistry(t)}
	tests := []struct {
		name string
		root *vnode.Node
	}{
		{"unknown", vnode.Host("div", nil, vnode.Comp("nope", nil))},
		{"twice", vnode.Host("div", nil, vnode.Comp("a", nil), vnode.Comp("a", nil))},
		{"children", vnode.Comp("a", nil).WithChildren(vnode.Host("p", nil))},
		{"dup keys", vnode.Host("div", nil, vnode.Host("p", nil).WithKeyString("k"), vnode.Host("p", nil).WithKeyString("k"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := x.Expand(tt.root, NewStates(), nil, nil)
			if !errors.Is(err, vnode.ErrValidation) {
				t.Errorf("got %v, want validation error", err)
			}
		})
	}
}

func TestExpandMemoize(t *testing.T) {
	x := &Expander{Registry: testRegistry(t), Memoize: true}
	states := NewStates()
	root := vnode.Host("div", nil,
		vnode.Comp("a", vnode.Props{"label": "a"}),
		vnode.Comp("wrap", nil),
	)
	first, err := x.Expand(root, states, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	second, err := x.Expand(root, states, first, nil)
	if err != nil {
		t.Fatal(err)
	}
	if second.Rendered != 0 {
		t.Errorf("expected everything memoized, rendered %d", second.Rendered)
	}
	if second.Tree.String() != first.Tree.String() || len(second.Instances) != 3 {
		t.Errorf("memoized tree differs: %s", second.Tree)
	}

	states.Set("b", 5)
	third, err := x.Expand(root, states, second, map[vnode.ComponentID]bool{"b": true})
	if err != nil {
		t.Fatal(err)
	}
	// b and its enclosing wrap render again, a is reused.
	if third.Rendered != 2 {
		t.Errorf("rendered %d, want 2", third.Rendered)
	}
	want := `<div>[{a}(label=a)[<span>(text=a0)] {wrap}[<section>[{b}(label=b)[<span>(text=b5)]]]]`
	if got := third.Tree.String(); got != want {
		t.Errorf("got  %s\nwant %s", got, want)
	}

	changed := vnode.Host("div", nil,
		vnode.Comp("a", vnode.Props{"label": "A"}),
		vnode.Comp("wrap", nil),
	)
	fourth, err := x.Expand(changed, states, third, nil)
	if err != nil {
		t.Fatal(err)
	}
	if fourth.Rendered != 1 {
		t.Errorf("rendered %d, want 1", fourth.Rendered)
	}
}
