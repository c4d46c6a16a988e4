// Package rpchost drives a remote host tree over JSON-RPC 2.0.
package rpchost

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/signadot/vtree/host"
	"go.lsp.dev/jsonrpc2"
)

var ErrRemote = errors.New("remote host error")

// Client is a host.Adapter forwarding every call to a peer running Serve.
//
// Property values travel as JSON and reach the served adapter as the values
// encoding/json decodes into an interface: every number arrives as a
// float64, slices as []any and maps or structs as map[string]any. Values
// that do not marshal fail the call.
type Client struct {
	conn jsonrpc2.Conn
	// Timeout bounds each call. Zero means no bound.
	Timeout time.Duration
}

var _ host.Adapter = (*Client)(nil)

// NewClient starts a connection over rwc. The connection is closed when ctx
// is done or Close is called.
func NewClient(ctx context.Context, rwc io.ReadWriteCloser) *Client {
	conn := jsonrpc2.NewConn(jsonrpc2.NewStream(rwc))
	conn.Go(ctx, jsonrpc2.MethodNotFoundHandler)
	return &Client{conn: conn}
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) Done() <-chan struct{} {
	return c.conn.Done()
}

func (c *Client) call(method string, params, result any) error {
	ctx := context.Background()
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	if _, err := c.conn.Call(ctx, method, params, result); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrRemote, method, err)
	}
	return nil
}

// Container asks the peer for the container to mount into.
func (c *Client) Container() (host.Handle, error) {
	var res HandleResult
	if err := c.call(MethodContainer, struct{}{}, &res); err != nil {
		return 0, err
	}
	return res.Handle, nil
}

// Dump asks the peer for a text rendering of the subtree at h.
func (c *Client) Dump(h host.Handle) (string, error) {
	var res DumpResult
	if err := c.call(MethodDump, &DumpParams{Handle: h}, &res); err != nil {
		return "", err
	}
	return res.Text, nil
}

func (c *Client) CreateNode(tag string) (host.Handle, error) {
	var res HandleResult
	if err := c.call(MethodCreateNode, &CreateNodeParams{Tag: tag}, &res); err != nil {
		return 0, err
	}
	return res.Handle, nil
}

func (c *Client) SetProperty(h host.Handle, name string, value any) error {
	return c.call(MethodSetProperty, &PropertyParams{Handle: h, Name: name, Value: value}, nil)
}

func (c *Client) RemoveProperty(h host.Handle, name string) error {
	return c.call(MethodRemoveProperty, &PropertyParams{Handle: h, Name: name}, nil)
}

func (c *Client) InsertChild(parent, child host.Handle, at int) error {
	return c.call(MethodInsertChild, &ChildParams{Parent: parent, Child: child, Index: at}, nil)
}

func (c *Client) RemoveChild(parent, child host.Handle) error {
	return c.call(MethodRemoveChild, &ChildParams{Parent: parent, Child: child}, nil)
}

func (c *Client) MoveChild(parent, child host.Handle, to int) error {
	return c.call(MethodMoveChild, &ChildParams{Parent: parent, Child: child, Index: to}, nil)
}
