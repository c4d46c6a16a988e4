package vtree

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/signadot/vtree/host"
	"github.com/signadot/vtree/host/memhost"
	"github.com/signadot/vtree/libdiff"
	"github.com/signadot/vtree/render"
	"github.com/signadot/vtree/sched"
	"github.com/signadot/vtree/vnode"
)

type todo struct {
	id   int64
	text string
}

func todoList(renders *int) render.Component {
	return &render.Stateful{
		Initial: []todo{{1, "Buy milk"}, {2, "Walk dog"}},
		Func: func(_ vnode.Props, st any) (*vnode.Node, error) {
			if renders != nil {
				*renders++
			}
			var items []*vnode.Node
			for _, t := range st.([]todo) {
				items = append(items, vnode.Host("li", vnode.Props{"text": t.text}).WithKey(vnode.IntKey(t.id)))
			}
			return vnode.Host("ul", nil, items...), nil
		},
	}
}

func counter(renders *int) render.Component {
	return render.ComponentFunc(func(props vnode.Props, st any) (*vnode.Node, error) {
		if renders != nil {
			*renders++
		}
		n, _ := st.(int)
		return vnode.Host("span", vnode.Props{"text": fmt.Sprint(n)}), nil
	})
}

type fixture struct {
	mh        *memhost.Host
	container host.Handle
	boundary  *sched.Manual
	reg       *render.Registry
	reports   []*FlushReport
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{mh: memhost.New(), boundary: &sched.Manual{}, reg: render.NewRegistry()}
	c, err := f.mh.CreateNode("#container")
	if err != nil {
		t.Fatal(err)
	}
	f.container = c
	return f
}

func (f *fixture) engine(opts ...Option) *Engine {
	opts = append([]Option{
		WithRegistry(f.reg),
		WithBoundary(func() sched.Boundary { return f.boundary }),
	}, opts...)
	return New(f.mh, opts...)
}

func (f *fixture) mount(t *testing.T, e *Engine, n *vnode.Node) *Root {
	t.Helper()
	r, err := e.Mount(context.Background(), n, f.container)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestTodoScenario(t *testing.T) {
	f := newFixture(t)
	f.reg.MustRegister("todos", todoList(nil))
	r := f.mount(t, f.engine(), vnode.Comp("todos", nil))
	if diff := cmp.Diff([]string{"Buy milk", "Walk dog"}, f.mh.Texts(f.container)); diff != "" {
		t.Fatal(diff)
	}
	err := r.Enqueue("todos", func(old any) any {
		return append(slices.Clone(old.([]todo)), todo{3, "Learn X"})
	})
	if err != nil {
		t.Fatal(err)
	}
	rep, err := r.Flush(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.Patches) != 1 || rep.Patches[0].Op != libdiff.OpInsert {
		t.Errorf("patches %v", rep.Patches)
	}
	if rep.Patches[0].Index != 2 {
		t.Errorf("inserted at %d", rep.Patches[0].Index)
	}
	want := []string{"Buy milk", "Walk dog", "Learn X"}
	if diff := cmp.Diff(want, f.mh.Texts(f.container)); diff != "" {
		t.Error(diff)
	}
	if rep.Committed != r.Committed() || rep.Applied != 1 {
		t.Errorf("report %+v", rep)
	}
}

func TestWithBatchCoalesces(t *testing.T) {
	f := newFixture(t)
	renders := 0
	f.reg.MustRegister("n", counter(&renders))
	r := f.mount(t, f.engine(), vnode.Host("div", nil, vnode.Comp("n", nil)))
	f.mh.ResetCalls()
	renders = 0
	err := r.WithBatch(context.Background(), func() {
		r.Enqueue("n", func(old any) any { v, _ := old.(int); return v + 1 })
		r.Enqueue("n", func(old any) any { return old.(int) * 10 })
		r.Enqueue("n", func(old any) any { return old.(int) + 3 })
	})
	if err != nil {
		t.Fatal(err)
	}
	if renders != 1 {
		t.Errorf("rendered %d times", renders)
	}
	if n := len(f.mh.Calls()); n != 1 {
		t.Errorf("host calls %v", f.mh.Calls())
	}
	if v, _ := r.State("n"); v != 13 {
		t.Errorf("state %v", v)
	}
	if f.boundary.Due() != 0 {
		t.Errorf("boundary flush scheduled")
	}
}

func TestTurnBatching(t *testing.T) {
	f := newFixture(t)
	renders := 0
	f.reg.MustRegister("n", counter(&renders))
	e := f.engine(WithFlushHandler(func(rep *FlushReport) { f.reports = append(f.reports, rep) }))
	r := f.mount(t, e, vnode.Comp("n", nil))
	renders = 0
	for range 3 {
		r.Enqueue("n", func(old any) any { v, _ := old.(int); return v + 1 })
	}
	if renders != 0 || r.Pending() != 3 {
		t.Fatalf("enqueue rendered synchronously")
	}
	f.boundary.Turn()
	if len(f.reports) != 1 {
		t.Fatalf("%d flushes", len(f.reports))
	}
	rep := f.reports[0]
	if rep.Err != nil || rep.Updates != 3 || renders != 1 {
		t.Errorf("report %+v renders %d", rep, renders)
	}
	if diff := cmp.Diff([]string{"3"}, f.mh.Texts(f.container)); diff != "" {
		t.Error(diff)
	}
}

func TestRenderErrors(t *testing.T) {
	f := newFixture(t)
	f.reg.MustRegister("ok", counter(nil))
	f.reg.MustRegister("bad", render.ComponentFunc(func(vnode.Props, any) (*vnode.Node, error) {
		panic("broken")
	}))
	r, err := f.engine().Mount(context.Background(),
		vnode.Host("div", nil, vnode.Comp("ok", nil), vnode.Comp("bad", nil)), f.container)
	if r == nil {
		t.Fatal(err)
	}
	var re *RenderError
	if !errors.As(err, &re) || re.Component != "bad" {
		t.Fatalf("got %v", err)
	}
	div := f.mh.Children(f.container)[0]
	kids := f.mh.Children(div)
	if len(kids) != 2 || f.mh.Tag(kids[1]) != vnode.PlaceholderTag {
		t.Errorf("host %s", f.mh.Dump(f.container))
	}
}

func TestValidationRollsBack(t *testing.T) {
	f := newFixture(t)
	f.reg.MustRegister("list", render.ComponentFunc(func(_ vnode.Props, st any) (*vnode.Node, error) {
		key := "b"
		if dup, _ := st.(bool); dup {
			key = "a"
		}
		return vnode.Host("ul", nil,
			vnode.Host("li", nil).WithKeyString("a"),
			vnode.Host("li", nil).WithKeyString(key)), nil
	}))
	r := f.mount(t, f.engine(), vnode.Comp("list", nil))
	committed := r.Committed()
	f.mh.ResetCalls()
	r.SetState("list", true)
	_, err := r.Flush(context.Background())
	var ve *ValidationError
	if !errors.As(err, &ve) || !errors.Is(err, vnode.ErrDuplicateKey) {
		t.Fatalf("got %v", err)
	}
	if v, ok := r.State("list"); ok && v != nil {
		t.Errorf("state not rolled back: %v", v)
	}
	if r.Committed() != committed || len(f.mh.Calls()) != 0 || r.Pending() != 0 {
		t.Error("abandoned flush touched the host")
	}
}

func TestHostFailureAndRemount(t *testing.T) {
	f := newFixture(t)
	f.reg.MustRegister("label", render.ComponentFunc(func(_ vnode.Props, st any) (*vnode.Node, error) {
		s, _ := st.(string)
		return vnode.Host("p", vnode.Props{"text": s}), nil
	}))
	r := f.mount(t, f.engine(), vnode.Comp("label", nil))
	boom := errors.New("boom")
	f.mh.FailWhen(func(c host.Call) error {
		if c.Value == "boom" {
			return boom
		}
		return nil
	})
	r.SetState("label", "boom")
	rep, err := r.Flush(context.Background())
	var hae *HostAdapterError
	if !errors.As(err, &hae) || hae.Index != 0 || rep.Applied != 0 {
		t.Fatalf("got %v", err)
	}
	if !r.Desynchronized() {
		t.Fatal("not desynchronized")
	}
	r.SetState("label", "ok")
	if _, err := r.Flush(context.Background()); !errors.Is(err, ErrDesynchronized) {
		t.Fatalf("got %v", err)
	}
	f.mh.FailWhen(nil)
	if err := r.Remount(context.Background()); err != nil {
		t.Fatal(err)
	}
	if r.Desynchronized() {
		t.Error("still desynchronized")
	}
	if diff := cmp.Diff([]string{"ok"}, f.mh.Texts(f.container)); diff != "" {
		t.Error(diff)
	}
	if n := len(f.mh.Children(f.container)); n != 1 {
		t.Errorf("container has %d children", n)
	}
}

func TestScheduledErrorsRetained(t *testing.T) {
	f := newFixture(t)
	f.reg.MustRegister("n", render.ComponentFunc(func(_ vnode.Props, st any) (*vnode.Node, error) {
		if st != nil {
			return vnode.Comp("missing", nil), nil
		}
		return vnode.Host("p", nil), nil
	}))
	r := f.mount(t, f.engine(), vnode.Comp("n", nil))
	r.SetState("n", 1)
	f.boundary.Turn()
	_, err := r.Flush(context.Background())
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("got %v", err)
	}
	if _, err := r.Flush(context.Background()); err != nil {
		t.Errorf("error returned twice: %v", err)
	}
}

func TestPatchLimit(t *testing.T) {
	f := newFixture(t)
	f.reg.MustRegister("todos", todoList(nil))
	cfg := DefaultConfig()
	cfg.MaxPatchesPerCommit = 1
	r := f.mount(t, f.engine(WithConfig(cfg)), vnode.Comp("todos", nil))
	r.Enqueue("todos", func(any) any { return []todo{{3, "a"}, {4, "b"}} })
	_, err := r.Flush(context.Background())
	if !errors.Is(err, ErrPatchLimit) || !errors.Is(err, ErrValidation) {
		t.Fatalf("got %v", err)
	}
	if diff := cmp.Diff([]string{"Buy milk", "Walk dog"}, f.mh.Texts(f.container)); diff != "" {
		t.Error(diff)
	}
}

func TestRender(t *testing.T) {
	f := newFixture(t)
	f.reg.MustRegister("n", counter(nil))
	n := vnode.Comp("n", nil).WithKeyString("n")
	r := f.mount(t, f.engine(), vnode.Host("div", nil, n))
	rep, err := r.Render(context.Background(), vnode.Host("div", nil,
		vnode.Host("h1", vnode.Props{"text": "title"}), n))
	if err != nil {
		t.Fatal(err)
	}
	if c := libdiff.Count(rep.Patches); c[libdiff.OpInsert] != 1 || len(rep.Patches) != 1 {
		t.Errorf("patches %v", rep.Patches)
	}
	if rep.Rendered != 0 {
		t.Errorf("clean instance rendered %d times", rep.Rendered)
	}
	if diff := cmp.Diff([]string{"title", "0"}, f.mh.Texts(f.container)); diff != "" {
		t.Error(diff)
	}
}

func TestCancelledFlushCommits(t *testing.T) {
	f := newFixture(t)
	f.reg.MustRegister("a", counter(nil))
	f.reg.MustRegister("b", counter(nil))
	r := f.mount(t, f.engine(), vnode.Host("div", nil, vnode.Comp("a", nil), vnode.Comp("b", nil)))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r.SetState("a", 5)
	if _, err := r.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	if r.Desynchronized() {
		t.Fatal("desynchronized without a host failure")
	}
	if diff := cmp.Diff([]string{"5", "0"}, f.mh.Texts(f.container)); diff != "" {
		t.Error(diff)
	}
	r.SetState("b", 1)
	if _, err := r.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"5", "1"}, f.mh.Texts(f.container)); diff != "" {
		t.Error(diff)
	}
	if st, _ := r.State("a"); st != 5 {
		t.Errorf("state a = %v", st)
	}
}

func TestUnmount(t *testing.T) {
	f := newFixture(t)
	f.reg.MustRegister("todos", todoList(nil))
	r := f.mount(t, f.engine(), vnode.Comp("todos", nil))
	r.Enqueue("todos", func(any) any { return nil })
	f.mh.ResetCalls()
	if err := r.Unmount(context.Background()); err != nil {
		t.Fatal(err)
	}
	calls := f.mh.Calls()
	if len(calls) != 1 || calls[0].Op != host.OpRemoveChild || calls[0].Parent != f.container {
		t.Errorf("calls %v", calls)
	}
	if r.Committed() != nil || len(f.mh.Children(f.container)) != 0 {
		t.Error("tree not released")
	}
	f.boundary.Turn()
	if err := r.Unmount(context.Background()); !errors.Is(err, ErrUnmounted) {
		t.Errorf("got %v", err)
	}
	if err := r.Enqueue("todos", nil); !errors.Is(err, ErrUnmounted) {
		t.Errorf("got %v", err)
	}
	if _, err := r.Flush(context.Background()); !errors.Is(err, ErrUnmounted) {
		t.Errorf("got %v", err)
	}
}

func TestMountInvalid(t *testing.T) {
	f := newFixture(t)
	e := f.engine()
	if _, err := e.Mount(context.Background(), vnode.Comp("nope", nil), f.container); !errors.Is(err, ErrValidation) {
		t.Errorf("got %v", err)
	}
	if len(f.mh.Children(f.container)) != 0 {
		t.Error("invalid tree mounted")
	}
}

func TestIndependentRoots(t *testing.T) {
	f := newFixture(t)
	f.reg.MustRegister("n", counter(nil))
	e := f.engine()
	c2, _ := f.mh.CreateNode("#container")
	r1 := f.mount(t, e, vnode.Comp("n", nil))
	r2, err := e.Mount(context.Background(), vnode.Comp("n", nil), c2)
	if err != nil {
		t.Fatal(err)
	}
	r1.SetState("n", 5)
	if _, err := r1.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}
	if v, _ := r2.State("n"); v != nil {
		t.Errorf("state leaked across roots: %v", v)
	}
	if diff := cmp.Diff([]string{"0"}, f.mh.Texts(c2)); diff != "" {
		t.Error(diff)
	}
}

func TestConfig(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "vt.yaml")
	if err := os.WriteFile(p, []byte("logLevel: debug\nmaxPatchesPerCommit: 10\nmemoize: false\ndebug: [diff]\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(p)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MaxPatchesPerCommit != 10 || cfg.memoize() {
		t.Errorf("config %+v", cfg)
	}
	tests := []string{
		"logLevel: loud\n",
		"maxPatchesPerCommit: -1\n",
		"debug: [nope]\n",
		"unknown: 1\n",
	}
	for _, in := range tests {
		if _, err := ParseConfig([]byte(in)); err == nil {
			t.Errorf("%q: no error", in)
		}
	}
	if !DefaultConfig().memoize() {
		t.Error("memoize defaults to false")
	}
}
