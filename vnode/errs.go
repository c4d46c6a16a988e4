package vnode

import (
	"errors"
	"fmt"
)

var (
	ErrValidation   = errors.New("validation error")
	ErrDuplicateKey = fmt.Errorf("%w: duplicate sibling key", ErrValidation)
	ErrMalformed    = fmt.Errorf("%w: malformed node", ErrValidation)
)

// ValidationError reports a tree that violates the node contract: duplicate
// explicit keys among siblings or a malformed node.
type ValidationError struct {
	// Path is the position path of the offending node or child list.
	Path   []int
	Kind   Kind
	Key    Key
	Reason error
	Detail string
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("%s at %v", e.Reason, e.Path)
	if e.Key.IsSet() {
		msg += " key " + e.Key.String()
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *ValidationError) Unwrap() error {
	return e.Reason
}
