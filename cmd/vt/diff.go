package main

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/scott-cotton/cli"
	"github.com/signadot/vtree/encode"
	"github.com/signadot/vtree/libdiff"
	"github.com/signadot/vtree/vnode"
)

func diff(cfg *DiffConfig, cc *cli.Context, args []string) error {
	args, err := cfg.Diff.Parse(cc, args)
	if err != nil {
		cfg.Diff.Usage(cc, err)
		return cli.ExitCodeErr(1)
	}
	if len(args) != 2 {
		return fmt.Errorf("%w: need 2 trees to diff, got %d", cli.ErrUsage, len(args))
	}
	a, err := readTree(cc, args[0])
	if err != nil {
		return err
	}
	b, err := readTree(cc, args[1])
	if err != nil {
		return err
	}
	patches, err := libdiff.Diff(a, b)
	if err != nil {
		return err
	}
	if len(patches) == 0 {
		return nil
	}
	if cfg.Summary {
		counts := libdiff.Count(patches)
		ops := slices.SortedFunc(maps.Keys(counts), func(a, b libdiff.Op) int {
			return strings.Compare(a.String(), b.String())
		})
		for _, op := range ops {
			fmt.Fprintf(cc.Out, "%s %d\n", op, counts[op])
		}
		return cli.ExitCodeErr(1)
	}
	opts := append(cfg.encOpts(cc.Out), encode.EncodeBase(a))
	if err := encode.EncodePatches(patches, cc.Out, opts...); err != nil {
		return err
	}
	return cli.ExitCodeErr(1)
}

func readTree(cc *cli.Context, path string) (*vnode.Node, error) {
	d, err := readFile(cc, path)
	if err != nil {
		return nil, err
	}
	n, err := vnode.FromYAML(d)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return n, nil
}
