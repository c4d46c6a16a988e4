package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/scott-cotton/cli"
	"github.com/signadot/vtree/host/memhost"
	"github.com/signadot/vtree/host/rpchost"
)

func serveHost(cfg *HostConfig, cc *cli.Context, args []string) error {
	args, err := cfg.Host.Parse(cc, args)
	if err != nil {
		cfg.Host.Usage(cc, err)
		return cli.ExitCodeErr(1)
	}
	if len(args) != 0 {
		return fmt.Errorf("%w: host takes no arguments", cli.ErrUsage)
	}
	mh := memhost.New()
	c, err := mh.CreateNode("#container")
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	theLog.Info("serving host on stdio", "container", c)
	conn := rpchost.Serve(ctx, stdio{}, mh, c)
	<-conn.Done()
	theLog.Debug("host connection closed", "tree", mh.Dump(c))
	if err := conn.Err(); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

type stdio struct{}

func (stdio) Read(p []byte) (int, error) {
	return os.Stdin.Read(p)
}

func (stdio) Write(p []byte) (int, error) {
	return os.Stdout.Write(p)
}

func (stdio) Close() error {
	if err := os.Stdin.Close(); err != nil {
		return err
	}
	return os.Stdout.Close()
}
