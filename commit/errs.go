package commit

import (
	"errors"
	"fmt"

	"github.com/signadot/vtree/libdiff"
)

var (
	ErrHostAdapter    = errors.New("host adapter error")
	ErrDesynchronized = errors.New("committed tree is desynchronized from the host")
	ErrPatch          = errors.New("patch does not fit the committed tree")
)

// HostAdapterError reports a commit that stopped at patch Index. Patches
// before Index were applied to the host and are not rolled back.
type HostAdapterError struct {
	Index   int
	Applied int
	Patch   libdiff.Patch
	Err     error
}

func (e *HostAdapterError) Error() string {
	return fmt.Sprintf("commit stopped at patch %d (%s) after %d applied: %v", e.Index, e.Patch.String(), e.Applied, e.Err)
}

func (e *HostAdapterError) Unwrap() []error {
	return []error{ErrHostAdapter, e.Err}
}
