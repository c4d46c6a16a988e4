package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/scott-cotton/cli"
)

func MainCommand() *cli.Command {
	cfg := &MainConfig{}
	opts, err := cli.StructOpts(cfg)
	if err != nil {
		panic(err)
	}
	return cli.NewCommandAt(&cfg.Main, "vt").
		WithSynopsis("vt [opts] command [opts]").
		WithDescription("vt diffs and renders virtual node trees.").
		WithOpts(opts...).
		WithRun(func(cc *cli.Context, args []string) error {
			return vtMain(cfg, cc, args)
		}).
		WithSubs(
			DiffCommand(cfg),
			RunCommand(cfg),
			HostCommand(cfg))
}

func vtMain(cfg *MainConfig, cc *cli.Context, args []string) error {
	args, err := cfg.Main.Parse(cc, args)
	if err != nil {
		return err
	}
	if err := cfg.setup(); err != nil {
		return err
	}
	if len(args) == 0 {
		return cli.ErrNoCommandProvided
	}
	sub := cfg.Main.FindSub(cc, args[0])
	if sub == nil {
		return fmt.Errorf("%w: %q not found", cli.ErrNoSuchCommand, args[0])
	}
	err = sub.Run(cc, args[1:])
	if errors.Is(err, cli.ErrUsage) {
		sub.Usage(cc, err)
		os.Exit(sub.Exit(cc, err))
	}
	return err
}

func DiffCommand(mainCfg *MainConfig) *cli.Command {
	cfg := &DiffConfig{MainConfig: mainCfg}
	opts, err := cli.StructOpts(cfg)
	if err != nil {
		panic(err)
	}
	return cli.NewCommandAt(&cfg.Diff, "diff").
		WithAliases("d").
		WithSynopsis("diff [-s] a.yaml b.yaml").
		WithDescription("print the patches turning tree a into tree b, exit 1 if they differ").
		WithOpts(opts...).
		WithRun(func(cc *cli.Context, args []string) error {
			return diff(cfg, cc, args)
		})
}

func RunCommand(mainCfg *MainConfig) *cli.Command {
	cfg := &RunConfig{MainConfig: mainCfg, Host: "mem"}
	opts, err := cli.StructOpts(cfg)
	if err != nil {
		panic(err)
	}
	return cli.NewCommandAt(&cfg.Run, "run").
		WithAliases("r").
		WithSynopsis("run [-host mem|json|rpc] [-gops] script.yaml").
		WithDescription("mount a scripted root, run its turns of updates and print every flush").
		WithOpts(opts...).
		WithRun(func(cc *cli.Context, args []string) error {
			return run(cfg, cc, args)
		})
}

func HostCommand(mainCfg *MainConfig) *cli.Command {
	cfg := &HostConfig{MainConfig: mainCfg}
	return cli.NewCommandAt(&cfg.Host, "host").
		WithSynopsis("host").
		WithDescription("serve an in-memory host tree over JSON-RPC on stdin/stdout").
		WithRun(func(cc *cli.Context, args []string) error {
			return serveHost(cfg, cc, args)
		})
}
