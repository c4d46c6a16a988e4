package vnode

import "fmt"

type KindType int

const (
	HostElement KindType = iota
	ComponentInstance
)

func (t KindType) String() string {
	s, ok := map[KindType]string{
		HostElement:       "Host",
		ComponentInstance: "Component",
	}[t]
	if ok {
		return s
	}
	return "<unknown kind>"
}

func (t KindType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *KindType) UnmarshalText(d []byte) error {
	tt, ok := map[string]KindType{
		"Host":      HostElement,
		"Component": ComponentInstance,
	}[string(d)]
	if !ok {
		return fmt.Errorf("unrecognized kind %q", d)
	}
	*t = tt
	return nil
}

func KindTypes() []KindType {
	return []KindType{HostElement, ComponentInstance}
}

// ComponentID names a component instance within a mounted root.
type ComponentID string

// Kind is the tagged variant identifying what a Node is: a host element with
// a tag name or a component instance with a component id.
//
// Kind is comparable; two nodes have the same kind iff their Kinds are ==.
type Kind struct {
	Type KindType
	Name string
}

func HostKind(tag string) Kind {
	return Kind{Type: HostElement, Name: tag}
}

func ComponentKind(id ComponentID) Kind {
	return Kind{Type: ComponentInstance, Name: string(id)}
}

func (k Kind) IsHost() bool { return k.Type == HostElement }

func (k Kind) IsComponent() bool { return k.Type == ComponentInstance }

// Tag returns the host tag name. It panics for component kinds.
func (k Kind) Tag() string {
	switch k.Type {
	case HostElement:
		return k.Name
	case ComponentInstance:
		panic("vnode: Tag of component kind " + k.Name)
	default:
		panic(fmt.Sprintf("vnode: unknown kind type %d", k.Type))
	}
}

// Component returns the component id. It panics for host kinds.
func (k Kind) Component() ComponentID {
	switch k.Type {
	case ComponentInstance:
		return ComponentID(k.Name)
	case HostElement:
		panic("vnode: Component of host kind " + k.Name)
	default:
		panic(fmt.Sprintf("vnode: unknown kind type %d", k.Type))
	}
}

func (k Kind) String() string {
	switch k.Type {
	case HostElement:
		return "<" + k.Name + ">"
	case ComponentInstance:
		return "{" + k.Name + "}"
	default:
		return fmt.Sprintf("<unknown kind %d %q>", k.Type, k.Name)
	}
}
