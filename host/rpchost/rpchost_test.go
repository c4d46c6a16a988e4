package rpchost

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/signadot/vtree/commit"
	"github.com/signadot/vtree/host/memhost"
	"github.com/signadot/vtree/libdiff"
	"github.com/signadot/vtree/vnode"
)

func pair(t *testing.T) (*memhost.Host, *Client) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	mh := memhost.New()
	container, err := mh.CreateNode("#container")
	if err != nil {
		t.Fatal(err)
	}
	a, b := net.Pipe()
	srv := Serve(ctx, a, mh, container)
	t.Cleanup(func() { srv.Close() })
	c := NewClient(ctx, b)
	c.Timeout = 5 * time.Second
	t.Cleanup(func() { c.Close() })
	return mh, c
}

func TestRemoteCommit(t *testing.T) {
	mh, c := pair(t)
	container, err := c.Container()
	if err != nil {
		t.Fatal(err)
	}
	x := commit.New(c, container)
	item := func(k, s string) *vnode.Node {
		return vnode.Host("li", vnode.Props{"text": s}).WithKeyString(k)
	}
	trees := []*vnode.Node{
		vnode.Host("ul", nil, item("a", "A"), item("b", "B"), item("c", "C")),
		vnode.Host("ul", vnode.Props{"class": "x"}, item("c", "C"), item("a", "A2"), item("d", "D")),
		nil,
	}
	var prev *vnode.Node
	for _, next := range trees {
		patches, err := libdiff.Diff(prev, next)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := x.Apply(context.Background(), patches, next); err != nil {
			t.Fatal(err)
		}
		if next != nil {
			var want []string
			for _, li := range next.Children {
				want = append(want, li.Props["text"].(string))
			}
			if diff := cmp.Diff(want, mh.Texts(container)); diff != "" {
				t.Error(diff)
			}
		}
		prev = next
	}
	if n := len(mh.Children(container)); n != 0 {
		t.Errorf("%d children left", n)
	}
	remote, err := c.Dump(container)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(mh.Dump(container), remote); diff != "" {
		t.Error(diff)
	}
}

func TestRemoteErrors(t *testing.T) {
	_, c := pair(t)
	a, err := c.CreateNode("div")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := c.CreateNode("div")
	if err := c.RemoveChild(a, b); !errors.Is(err, ErrRemote) {
		t.Errorf("got %v", err)
	}
	if err := c.call("host/nope", struct{}{}, nil); !errors.Is(err, ErrRemote) {
		t.Errorf("got %v", err)
	}
}

func TestRemotePropertyValues(t *testing.T) {
	mh, c := pair(t)
	a, err := c.CreateNode("div")
	if err != nil {
		t.Fatal(err)
	}
	props := map[string]any{
		"n":      1,
		"ratio":  0.5,
		"hidden": false,
		"empty":  "",
		"zero":   0,
		"list":   []int{1, 2},
		"obj":    map[string]any{"k": "v"},
	}
	for name, v := range props {
		if err := c.SetProperty(a, name, v); err != nil {
			t.Fatal(err)
		}
	}
	want := map[string]any{
		"n":      float64(1),
		"ratio":  0.5,
		"hidden": false,
		"empty":  "",
		"zero":   float64(0),
		"list":   []any{float64(1), float64(2)},
		"obj":    map[string]any{"k": "v"},
	}
	if diff := cmp.Diff(want, mh.Props(a)); diff != "" {
		t.Errorf("served values (-want +got):\n%s", diff)
	}
	if err := c.SetProperty(a, "f", func() {}); err == nil {
		t.Error("expected an error for an unmarshalable value")
	}
}
