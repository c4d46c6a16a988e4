package exprcomp

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/signadot/vtree/render"
	"github.com/signadot/vtree/sched"
	"github.com/signadot/vtree/vnode"
)

const todosSrc = `el("ul", {class: "todos"}, map(state.items, keyed(#.id, el("li", {text: #.text}))))`

func TestRender(t *testing.T) {
	initial := map[string]any{"items": []any{
		map[string]any{"id": 1, "text": "Buy milk"},
		map[string]any{"id": 2, "text": "Walk dog"},
	}}
	c, err := Compile(todosSrc, initial)
	if err != nil {
		t.Fatal(err)
	}
	n, err := c.Render(nil, c.InitialState(nil))
	if err != nil {
		t.Fatal(err)
	}
	want := `<ul>(class=todos)[<li>#"1"(text=Buy milk) <li>#"2"(text=Walk dog)]`
	if diff := cmp.Diff(want, n.String()); diff != "" {
		t.Error(diff)
	}
}

func TestRenderComponents(t *testing.T) {
	c, err := Compile(`props.hidden ? nil : el("div", comp("child", {n: 1}), el("hr"))`, nil)
	if err != nil {
		t.Fatal(err)
	}
	n, err := c.Render(vnode.Props{"hidden": false}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(`<div>[{child}(n=1) <hr>]`, n.String()); diff != "" {
		t.Error(diff)
	}
	n, err = c.Render(vnode.Props{"hidden": true}, nil)
	if err != nil || n != nil {
		t.Errorf("got %v, %v", n, err)
	}
}

func TestRenderBadResult(t *testing.T) {
	c, err := Compile(`42`, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Render(nil, nil); err == nil {
		t.Error("no error")
	}
	if _, err := Compile(`el(`, nil); err == nil {
		t.Error("syntax error accepted")
	}
}

func TestUpdater(t *testing.T) {
	u, err := CompileUpdater(`{items: concat(state.items, [{id: 3, text: "Learn X"}])}`)
	if err != nil {
		t.Fatal(err)
	}
	b := sched.NewBatch()
	b.Add(sched.PendingUpdate{Component: "todos", Updater: u, Seq: 1})
	states := render.NewStates()
	states.Set("todos", map[string]any{"items": []any{map[string]any{"id": 1, "text": "a"}}})
	if _, err := b.Fold(states); err != nil {
		t.Fatal(err)
	}
	v, _ := states.Get("todos")
	items := v.(map[string]any)["items"].([]any)
	if len(items) != 2 {
		t.Fatalf("items %v", items)
	}

	bad, err := CompileUpdater(`state.n + 1`)
	if err != nil {
		t.Fatal(err)
	}
	b = sched.NewBatch()
	b.Add(sched.PendingUpdate{Component: "x", Updater: bad, Seq: 1})
	states.Set("x", "not a map")
	if _, err := b.Fold(states); !errors.Is(err, sched.ErrUpdater) {
		t.Errorf("got %v", err)
	}
}
