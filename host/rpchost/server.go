package rpchost

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/signadot/vtree/debug"
	"github.com/signadot/vtree/host"
	"go.lsp.dev/jsonrpc2"
)

// Dumper is implemented by adapters able to render a subtree as text.
type Dumper interface {
	Dump(h host.Handle) string
}

// Serve exposes adapter on rwc until ctx is done or the peer hangs up.
// Property values are handed to adapter as decoded from JSON, see Client.
// container is the handle reported to clients asking for their container.
func Serve(ctx context.Context, rwc io.ReadWriteCloser, adapter host.Adapter, container host.Handle) jsonrpc2.Conn {
	conn := jsonrpc2.NewConn(jsonrpc2.NewStream(rwc))
	conn.Go(ctx, Handler(adapter, container))
	return conn
}

// Handler serves adapter calls.
func Handler(a host.Adapter, container host.Handle) jsonrpc2.Handler {
	return func(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
		if debug.Host() {
			debug.Logf("rpchost serve %s %s\n", req.Method(), req.Params())
		}
		switch req.Method() {
		case MethodContainer:
			return reply(ctx, &HandleResult{Handle: container}, nil)
		case MethodCreateNode:
			var p CreateNodeParams
			if err := decode(req, &p); err != nil {
				return reply(ctx, nil, err)
			}
			h, err := a.CreateNode(p.Tag)
			if err != nil {
				return reply(ctx, nil, err)
			}
			return reply(ctx, &HandleResult{Handle: h}, nil)
		case MethodSetProperty, MethodRemoveProperty:
			var p PropertyParams
			if err := decode(req, &p); err != nil {
				return reply(ctx, nil, err)
			}
			if req.Method() == MethodSetProperty {
				return reply(ctx, nil, a.SetProperty(p.Handle, p.Name, p.Value))
			}
			return reply(ctx, nil, a.RemoveProperty(p.Handle, p.Name))
		case MethodInsertChild, MethodRemoveChild, MethodMoveChild:
			var p ChildParams
			if err := decode(req, &p); err != nil {
				return reply(ctx, nil, err)
			}
			var err error
			switch req.Method() {
			case MethodInsertChild:
				err = a.InsertChild(p.Parent, p.Child, p.Index)
			case MethodRemoveChild:
				err = a.RemoveChild(p.Parent, p.Child)
			default:
				err = a.MoveChild(p.Parent, p.Child, p.Index)
			}
			return reply(ctx, nil, err)
		case MethodDump:
			d, ok := a.(Dumper)
			if !ok {
				return jsonrpc2.MethodNotFoundHandler(ctx, reply, req)
			}
			var p DumpParams
			if err := decode(req, &p); err != nil {
				return reply(ctx, nil, err)
			}
			return reply(ctx, &DumpResult{Text: d.Dump(p.Handle)}, nil)
		default:
			return jsonrpc2.MethodNotFoundHandler(ctx, reply, req)
		}
	}
}

func decode(req jsonrpc2.Request, v any) error {
	if err := json.Unmarshal(req.Params(), v); err != nil {
		return jsonrpc2.NewError(jsonrpc2.InvalidParams, fmt.Sprintf("%s: %v", req.Method(), err))
	}
	return nil
}
