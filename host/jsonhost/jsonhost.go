// Package jsonhost keeps a host tree as a JSON document.
//
// Each node is an object {"tag": ..., "props": {...}, "children": [...]}.
// The document root is the container returned by New. Every mutation of a
// node attached to the document is applied to it as an RFC 6902 patch, so
// the patch stream can be replayed against a copy of the document elsewhere.
package jsonhost

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	jsonpatch "github.com/evanphx/json-patch"
	"github.com/signadot/vtree/debug"
	"github.com/signadot/vtree/host"
	"github.com/signadot/vtree/host/memhost"
)

var ErrDocument = errors.New("json document out of sync")

// Op is one RFC 6902 operation.
type Op struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	From  string `json:"from,omitempty"`
	Value any    `json:"value"`
}

// Host is a host.Adapter whose attached tree is a JSON document. Node
// structure and argument checking are delegated to a memhost.Host.
type Host struct {
	tree *memhost.Host
	root host.Handle

	mu      sync.Mutex
	doc     []byte
	journal []Op
}

var _ host.Adapter = (*Host)(nil)

// New returns an empty document and its root container.
func New(rootTag string) (*Host, host.Handle, error) {
	tree := memhost.New()
	root, err := tree.CreateNode(rootTag)
	if err != nil {
		return nil, 0, err
	}
	doc, err := json.Marshal(object(rootTag, nil))
	if err != nil {
		return nil, 0, err
	}
	return &Host{tree: tree, root: root, doc: doc}, root, nil
}

// Document returns the JSON document.
func (h *Host) Document() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.doc)
}

// Journal returns every operation applied to the document so far.
func (h *Host) Journal() []Op {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.journal)
}

// Tree gives access to the node structure, including detached nodes.
func (h *Host) Tree() *memhost.Host {
	return h.tree
}

func (h *Host) CreateNode(tag string) (host.Handle, error) {
	return h.tree.CreateNode(tag)
}

func (h *Host) SetProperty(id host.Handle, name string, value any) error {
	if _, err := json.Marshal(value); err != nil {
		return fmt.Errorf("property %s of %s: %w", name, id, err)
	}
	ptr, attached := h.pointer(id)
	if err := h.tree.SetProperty(id, name, value); err != nil {
		return err
	}
	if !attached {
		return nil
	}
	return h.patch(Op{Op: "add", Path: ptr + "/props/" + escape(name), Value: value})
}

func (h *Host) RemoveProperty(id host.Handle, name string) error {
	ptr, attached := h.pointer(id)
	_, had := h.tree.Props(id)[name]
	if err := h.tree.RemoveProperty(id, name); err != nil {
		return err
	}
	if !attached || !had {
		return nil
	}
	return h.patch(Op{Op: "remove", Path: ptr + "/props/" + escape(name)})
}

func (h *Host) InsertChild(parent, child host.Handle, at int) error {
	ptr, attached := h.pointer(parent)
	if err := h.tree.InsertChild(parent, child, at); err != nil {
		return err
	}
	if !attached {
		return nil
	}
	return h.patch(Op{Op: "add", Path: ptr + "/children/" + strconv.Itoa(at), Value: h.subtree(child)})
}

func (h *Host) RemoveChild(parent, child host.Handle) error {
	ptr, attached := h.pointer(child)
	if err := h.tree.RemoveChild(parent, child); err != nil {
		return err
	}
	if !attached {
		return nil
	}
	return h.patch(Op{Op: "remove", Path: ptr})
}

func (h *Host) MoveChild(parent, child host.Handle, to int) error {
	from, attached := h.pointer(child)
	pptr, _ := h.pointer(parent)
	if err := h.tree.MoveChild(parent, child, to); err != nil {
		return err
	}
	if !attached {
		return nil
	}
	dst := pptr + "/children/" + strconv.Itoa(to)
	if dst == from {
		return nil
	}
	return h.patch(Op{Op: "move", From: from, Path: dst})
}

// pointer returns the JSON pointer of id and whether id is attached to the
// document.
func (h *Host) pointer(id host.Handle) (string, bool) {
	top, path := h.tree.Path(id)
	if top != h.root {
		return "", false
	}
	buf := &strings.Builder{}
	for _, i := range path {
		buf.WriteString("/children/")
		buf.WriteString(strconv.Itoa(i))
	}
	return buf.String(), true
}

func (h *Host) patch(op Op) error {
	d, err := json.Marshal([]Op{op})
	if err != nil {
		return err
	}
	p, err := jsonpatch.DecodePatch(d)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	doc, err := p.Apply(h.doc)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrDocument, op.Op, op.Path, err)
	}
	if debug.Host() {
		debug.Logf("jsonhost %s %s\n", op.Op, op.Path)
	}
	h.doc = doc
	h.journal = append(h.journal, op)
	return nil
}

func object(tag string, props map[string]any) map[string]any {
	if props == nil {
		props = map[string]any{}
	}
	return map[string]any{"tag": tag, "props": props, "children": []any{}}
}

// subtree builds the JSON value of the subtree at id.
func (h *Host) subtree(id host.Handle) map[string]any {
	type item struct {
		id  host.Handle
		obj map[string]any
	}
	root := object(h.tree.Tag(id), h.tree.Props(id))
	stack := []item{{id, root}}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		kids := h.tree.Children(it.id)
		objs := make([]any, len(kids))
		for i, k := range kids {
			o := object(h.tree.Tag(k), h.tree.Props(k))
			objs[i] = o
			stack = append(stack, item{k, o})
		}
		it.obj["children"] = objs
	}
	return root
}

func escape(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "~", "~0"), "/", "~1")
}
