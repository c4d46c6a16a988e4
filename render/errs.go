package render

import (
	"errors"
	"fmt"

	"github.com/signadot/vtree/vnode"
)

var ErrRender = errors.New("render error")

// RenderError reports a component whose render failed. The component's
// subtree is replaced by vnode.Placeholder in the expanded tree.
type RenderError struct {
	Component vnode.ComponentID
	// Path is the position path of the component node from the root.
	Path []int
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("%s: component %q at %v: %v", ErrRender, e.Component, e.Path, e.Err)
}

func (e *RenderError) Unwrap() []error {
	return []error{ErrRender, e.Err}
}

// Join combines render errors into one error, nil if there are none.
func Join(errs []*RenderError) error {
	if len(errs) == 0 {
		return nil
	}
	res := make([]error, len(errs))
	for i, e := range errs {
		res[i] = e
	}
	return errors.Join(res...)
}
