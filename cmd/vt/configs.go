package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/scott-cotton/cli"
	"github.com/signadot/vtree"
	"github.com/signadot/vtree/encode"
)

type MainConfig struct {
	Color      bool   `cli:"name=color desc='output with color'"`
	ConfigFile string `cli:"name=config desc='engine configuration file (yaml)'"`
	Verbose    bool   `cli:"name=v desc='log at debug level'"`

	Engine *vtree.Config
	Main   *cli.Command
}

func (cfg *MainConfig) setup() error {
	cfg.Engine = vtree.DefaultConfig()
	if cfg.ConfigFile != "" {
		c, err := vtree.LoadConfig(cfg.ConfigFile)
		if err != nil {
			return fmt.Errorf("%w: %w", cli.ErrUsage, err)
		}
		cfg.Engine = c
	}
	if err := cfg.Engine.Apply(); err != nil {
		return err
	}
	level, err := cfg.Engine.Level()
	if err != nil {
		return err
	}
	logLevel.Set(level)
	if cfg.Verbose {
		logLevel.Set(slog.LevelDebug)
	}
	return nil
}

func (cfg *MainConfig) encOpts(w io.Writer) []encode.EncodeOption {
	if cfg.Color {
		return []encode.EncodeOption{encode.EncodeColors(encode.NewColors())}
	}
	colorsSet := false
	for _, opt := range cfg.Main.Opts {
		if opt.Name != "color" {
			continue
		}
		colorsSet = opt.Value != nil
		break
	}
	if colorsSet {
		return nil
	}
	f, ok := w.(*os.File)
	if !ok {
		return nil
	}
	if isatty.IsTerminal(f.Fd()) {
		return []encode.EncodeOption{encode.EncodeColors(encode.NewColors())}
	}
	return nil
}

type DiffConfig struct {
	*MainConfig
	Summary bool `cli:"name=s desc='print patch counts per op only'"`

	Diff *cli.Command
}

type RunConfig struct {
	*MainConfig
	Host string `cli:"name=host desc='host adapter: mem, json or rpc (default mem)'"`
	Gops bool   `cli:"name=gops desc='start a gops agent'"`

	Run *cli.Command
}

type HostConfig struct {
	*MainConfig

	Host *cli.Command
}
