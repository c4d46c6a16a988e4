package rpchost

import "github.com/signadot/vtree/host"

// Methods served by Serve. The host/ prefixed adapter methods mirror
// host.Adapter one to one.
const (
	MethodCreateNode     = "host/" + host.OpCreateNode
	MethodSetProperty    = "host/" + host.OpSetProperty
	MethodRemoveProperty = "host/" + host.OpRemoveProperty
	MethodInsertChild    = "host/" + host.OpInsertChild
	MethodRemoveChild    = "host/" + host.OpRemoveChild
	MethodMoveChild      = "host/" + host.OpMoveChild

	MethodContainer = "host/container"
	MethodDump      = "host/dump"
)

type CreateNodeParams struct {
	Tag string `json:"tag"`
}

type HandleResult struct {
	Handle host.Handle `json:"handle"`
}

type PropertyParams struct {
	Handle host.Handle `json:"handle"`
	Name   string      `json:"name"`
	Value  any         `json:"value"`
}

type ChildParams struct {
	Parent host.Handle `json:"parent"`
	Child  host.Handle `json:"child"`
	Index  int         `json:"index"`
}

type DumpParams struct {
	Handle host.Handle `json:"handle"`
}

type DumpResult struct {
	Text string `json:"text"`
}
