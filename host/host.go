// Package host defines the contract between the commit executor and a
// rendering target.
package host

import (
	"errors"
	"fmt"
)

// Handle identifies a node owned by an Adapter. The zero Handle is never
// issued.
type Handle int64

func (h Handle) String() string {
	return fmt.Sprintf("#%d", int64(h))
}

// Adapter mutates a host tree. Every method is synchronous and reports
// failure with an error. Implementations must not panic.
type Adapter interface {
	// CreateNode creates a detached node.
	CreateNode(tag string) (Handle, error)
	SetProperty(h Handle, name string, value any) error
	RemoveProperty(h Handle, name string) error
	// InsertChild inserts the detached node child into parent's children
	// at index at, 0 <= at <= len(children).
	InsertChild(parent, child Handle, at int) error
	// RemoveChild detaches child and its subtree from parent.
	RemoveChild(parent, child Handle) error
	// MoveChild removes child from parent's children and reinserts it at
	// index to of the resulting list.
	MoveChild(parent, child Handle, to int) error
}

var (
	ErrUnknownHandle = errors.New("unknown handle")
	ErrNotChild      = errors.New("not a child")
	ErrAttached      = errors.New("node already attached")
	ErrIndex         = errors.New("index out of range")
	ErrCycle         = errors.New("node would contain itself")
)

// Op names, used in logs and on the wire.
const (
	OpCreateNode     = "createNode"
	OpSetProperty    = "setProperty"
	OpRemoveProperty = "removeProperty"
	OpInsertChild    = "insertChild"
	OpRemoveChild    = "removeChild"
	OpMoveChild      = "moveChild"
)

// Call records one Adapter invocation.
type Call struct {
	Op     string `json:"op"`
	Handle Handle `json:"handle,omitempty"`
	Parent Handle `json:"parent,omitempty"`
	Tag    string `json:"tag,omitempty"`
	Name   string `json:"name,omitempty"`
	Value  any    `json:"value,omitempty"`
	Index  int    `json:"index,omitempty"`
}

func (c Call) String() string {
	switch c.Op {
	case OpCreateNode:
		return fmt.Sprintf("%s %q", c.Op, c.Tag)
	case OpSetProperty:
		return fmt.Sprintf("%s %s %s=%v", c.Op, c.Handle, c.Name, c.Value)
	case OpRemoveProperty:
		return fmt.Sprintf("%s %s %s", c.Op, c.Handle, c.Name)
	case OpRemoveChild:
		return fmt.Sprintf("%s %s %s", c.Op, c.Parent, c.Handle)
	default:
		return fmt.Sprintf("%s %s %s @%d", c.Op, c.Parent, c.Handle, c.Index)
	}
}
