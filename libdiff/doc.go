// Package libdiff provides the diff engine for vnode trees.
//
// # Usage
//
//	// Compute the patches turning the committed tree into the next one
//	patches, err := libdiff.Diff(committed, next)
//
//	// Reference application of a patch list to a tree
//	res, err := libdiff.Apply(committed, patches)
//
// Diff and Reconcile are pure: they share no state and may run on any
// goroutine holding the input trees. Output order is deterministic for a given
// pair of trees.
//
// Both walk trees with explicit stacks, so nesting depth does not grow the
// goroutine stack.
//
// # Related Packages
//
//   - github.com/signadot/vtree/vnode - node model
//   - github.com/signadot/vtree/commit - applies patches to a host
package libdiff
