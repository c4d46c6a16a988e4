package vnode

import (
	"fmt"
	"maps"
	"slices"

	"github.com/goccy/go-yaml"
)

// FromYAML decodes a node descriptor:
//
//	host: ul            # or component: todo-list
//	key: list           # optional, scalars are stringified
//	props: {class: x}   # optional
//	children: [...]     # optional list of descriptors
//
// The result is validated.
func FromYAML(d []byte) (*Node, error) {
	var v any
	if err := yaml.Unmarshal(d, &v); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: descriptor must be a mapping, got %T", ErrMalformed, v)
	}
	n, err := FromMap(m)
	if err != nil {
		return nil, err
	}
	if err := Validate(n); err != nil {
		return nil, err
	}
	return n, nil
}

// FromMap decodes a descriptor already unmarshaled into generic values. It
// does not validate sibling keys.
func FromMap(m map[string]any) (*Node, error) {
	return fromMapAt(nil, m)
}

func fromMapAt(path []int, m map[string]any) (*Node, error) {
	for _, k := range slices.Sorted(maps.Keys(m)) {
		switch k {
		case "host", "component", "key", "props", "children":
		default:
			return nil, malformedAt(path, "unknown descriptor field %q", k)
		}
	}
	var kind Kind
	hostV, isHost := m["host"]
	compV, isComp := m["component"]
	switch {
	case isHost && isComp:
		return nil, malformedAt(path, "both host and component given")
	case isHost:
		tag, ok := hostV.(string)
		if !ok {
			return nil, malformedAt(path, "host must be a string, got %T", hostV)
		}
		kind = HostKind(tag)
	case isComp:
		id, ok := compV.(string)
		if !ok {
			return nil, malformedAt(path, "component must be a string, got %T", compV)
		}
		kind = ComponentKind(ComponentID(id))
	default:
		return nil, malformedAt(path, "one of host or component is required")
	}
	n := &Node{Kind: kind}
	if kv, ok := m["key"]; ok && kv != nil {
		switch x := kv.(type) {
		case string, int, int64, uint64, float64, bool:
			n.Key = KeyOf(fmt.Sprint(x))
		default:
			return nil, malformedAt(path, "key must be a scalar, got %T", kv)
		}
	}
	if pv, ok := m["props"]; ok && pv != nil {
		pm, ok := pv.(map[string]any)
		if !ok {
			return nil, malformedAt(path, "props must be a mapping, got %T", pv)
		}
		n.Props = Props(maps.Clone(pm))
	}
	if cv, ok := m["children"]; ok && cv != nil {
		cs, ok := cv.([]any)
		if !ok {
			return nil, malformedAt(path, "children must be a list, got %T", cv)
		}
		n.Children = make([]*Node, len(cs))
		for i, c := range cs {
			cm, ok := c.(map[string]any)
			if !ok {
				return nil, malformedAt(appendPath(path, i), "child must be a mapping, got %T", c)
			}
			child, err := fromMapAt(appendPath(path, i), cm)
			if err != nil {
				return nil, err
			}
			n.Children[i] = child
		}
	}
	return n, nil
}

// ToMap is the inverse of FromMap.
func (n *Node) ToMap() map[string]any {
	res := map[string]any{}
	switch n.Kind.Type {
	case HostElement:
		res["host"] = n.Kind.Name
	case ComponentInstance:
		res["component"] = n.Kind.Name
	default:
		panic(fmt.Sprintf("vnode: unknown kind type %d", n.Kind.Type))
	}
	if n.Key.IsSet() {
		res["key"] = n.Key.s
	}
	if len(n.Props) != 0 {
		res["props"] = map[string]any(n.Props.Clone())
	}
	if len(n.Children) != 0 {
		cs := make([]any, len(n.Children))
		for i, c := range n.Children {
			cs[i] = c.ToMap()
		}
		res["children"] = cs
	}
	return res
}

func malformedAt(path []int, f string, args ...any) error {
	return &ValidationError{
		Path:   slices.Clone(path),
		Reason: ErrMalformed,
		Detail: fmt.Sprintf(f, args...),
	}
}
