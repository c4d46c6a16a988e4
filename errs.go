package vtree

import (
	"errors"

	"github.com/signadot/vtree/commit"
	"github.com/signadot/vtree/render"
	"github.com/signadot/vtree/sched"
	"github.com/signadot/vtree/vnode"
)

var (
	ErrUnmounted  = errors.New("root is unmounted")
	ErrPatchLimit = errors.New("patch limit exceeded")
)

// Re-exported so that callers need only import this package to classify
// errors.
var (
	ErrValidation     = vnode.ErrValidation
	ErrRender         = render.ErrRender
	ErrHostAdapter    = commit.ErrHostAdapter
	ErrDesynchronized = commit.ErrDesynchronized
	ErrReentrantFlush = sched.ErrReentrantFlush
)

type (
	ValidationError  = vnode.ValidationError
	RenderError      = render.RenderError
	HostAdapterError = commit.HostAdapterError
)
