// Package render expands component instances into host subtrees.
//
// A description tree may contain ComponentInstance nodes. Expansion renders
// each of them with its props and local state and attaches the output as the
// component node's only child, recursively, yielding the tree the diff engine
// compares against the committed one.
//
// A component whose render returns an error or panics is reported as a
// *RenderError and contributes vnode.Placeholder instead of its output, so the
// rest of the tree can still be committed.
package render
