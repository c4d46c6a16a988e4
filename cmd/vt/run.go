package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"slices"

	"github.com/google/gops/agent"
	"github.com/scott-cotton/cli"
	"github.com/signadot/vtree"
	"github.com/signadot/vtree/encode"
	"github.com/signadot/vtree/host"
	"github.com/signadot/vtree/host/jsonhost"
	"github.com/signadot/vtree/host/memhost"
	"github.com/signadot/vtree/host/rpchost"
	"github.com/signadot/vtree/sched"
	"github.com/signadot/vtree/vnode"
)

func run(cfg *RunConfig, cc *cli.Context, args []string) error {
	args, err := cfg.Run.Parse(cc, args)
	if err != nil {
		cfg.Run.Usage(cc, err)
		return cli.ExitCodeErr(1)
	}
	if len(args) != 1 {
		return fmt.Errorf("%w: need 1 script, got %d", cli.ErrUsage, len(args))
	}
	if cfg.Gops {
		if err := agent.Listen(agent.Options{}); err != nil {
			fmt.Fprintf(cc.Out, "gops agent failed: %v\n", err)
		} else {
			defer agent.Close()
		}
	}
	d, err := readFile(cc, args[0])
	if err != nil {
		return err
	}
	script, err := parseScript(d)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	prog, err := script.compile()
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	target, err := newTarget(ctx, cfg.Host)
	if err != nil {
		return err
	}
	defer target.close()

	loop := sched.NewLoop()
	go loop.Run(ctx)

	opts := cfg.encOpts(cc.Out)
	var (
		nFlush int
		failed bool
		base   *vnode.Node
	)
	report := func(rep *vtree.FlushReport) {
		nFlush++
		fmt.Fprintf(cc.Out, "flush %d: %d updates, %d renders, %d patches\n",
			nFlush, rep.Updates, rep.Rendered, len(rep.Patches))
		popts := append(slices.Clip(opts), encode.EncodeBase(base))
		if err := encode.EncodePatches(rep.Patches, cc.Out, popts...); err != nil {
			theLog.Error("encode patches", "error", err)
		}
		for _, re := range rep.RenderErrors {
			fmt.Fprintf(cc.Out, "  render error: %v\n", re)
		}
		if rep.Err != nil {
			failed = true
			fmt.Fprintf(cc.Out, "  error: %v\n", rep.Err)
		}
		base = rep.Committed
	}
	eng := vtree.New(target.adapter,
		vtree.WithLogger(theLog),
		vtree.WithRegistry(prog.registry),
		vtree.WithConfig(cfg.Engine),
		vtree.WithBoundary(func() sched.Boundary { return loop }),
		vtree.WithFlushHandler(report))

	var (
		root     *vtree.Root
		mountErr error
	)
	if err := loop.Do(ctx, func() {
		root, mountErr = eng.Mount(ctx, prog.root, target.container)
		if root != nil {
			base = root.Committed()
			fmt.Fprintf(cc.Out, "mount:\n")
			encode.EncodeTree(base, cc.Out, opts...)
		}
	}); err != nil {
		return err
	}
	if root == nil {
		return mountErr
	}
	if mountErr != nil {
		failed = true
		fmt.Fprintf(cc.Out, "mount error: %v\n", mountErr)
	}
	for i, turn := range prog.turns {
		var errs []error
		if err := loop.Do(ctx, func() {
			for _, cu := range turn {
				errs = append(errs, root.Enqueue(cu.id, cu.u))
			}
		}); err != nil {
			return err
		}
		if err := errors.Join(errs...); err != nil {
			return fmt.Errorf("turn %d: %w", i, err)
		}
	}
	fmt.Fprintf(cc.Out, "host:\n")
	if err := target.dump(cc.Out); err != nil {
		return err
	}
	if failed {
		return cli.ExitCodeErr(1)
	}
	return nil
}

// target is the host a script runs against.
type target struct {
	adapter   host.Adapter
	container host.Handle
	dump      func(w io.Writer) error
	close     func()
}

func newTarget(ctx context.Context, kind string) (*target, error) {
	switch kind {
	case "", "mem":
		mh := memhost.New()
		c, err := mh.CreateNode("#container")
		if err != nil {
			return nil, err
		}
		return &target{
			adapter:   mh,
			container: c,
			dump: func(w io.Writer) error {
				_, err := io.WriteString(w, mh.Dump(c))
				return err
			},
			close: func() {},
		}, nil
	case "json":
		jh, c, err := jsonhost.New("#container")
		if err != nil {
			return nil, err
		}
		return &target{
			adapter:   jh,
			container: c,
			dump: func(w io.Writer) error {
				buf := &bytes.Buffer{}
				if err := json.Indent(buf, jh.Document(), "", "  "); err != nil {
					return err
				}
				buf.WriteByte('\n')
				_, err := buf.WriteTo(w)
				return err
			},
			close: func() {},
		}, nil
	case "rpc":
		mh := memhost.New()
		c, err := mh.CreateNode("#container")
		if err != nil {
			return nil, err
		}
		here, there := net.Pipe()
		srv := rpchost.Serve(ctx, there, mh, c)
		client := rpchost.NewClient(ctx, here)
		rc, err := client.Container()
		if err != nil {
			client.Close()
			srv.Close()
			return nil, err
		}
		return &target{
			adapter:   client,
			container: rc,
			dump: func(w io.Writer) error {
				s, err := client.Dump(rc)
				if err != nil {
					return err
				}
				_, err = io.WriteString(w, s)
				return err
			},
			close: func() {
				client.Close()
				srv.Close()
			},
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown host %q, want mem, json or rpc", cli.ErrUsage, kind)
	}
}
