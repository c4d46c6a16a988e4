package debug

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
)

type debug struct {
	Diff   atomic.Bool
	Render atomic.Bool
	Sched  atomic.Bool
	Commit atomic.Bool
	Host   atomic.Bool
}

var d *debug

func init() {
	d = &debug{}
	d.Diff.Store(boolEnv("VT_DEBUG_DIFF"))
	d.Render.Store(boolEnv("VT_DEBUG_RENDER"))
	d.Sched.Store(boolEnv("VT_DEBUG_SCHED"))
	d.Commit.Store(boolEnv("VT_DEBUG_COMMIT"))
	d.Host.Store(boolEnv("VT_DEBUG_HOST"))
}

func boolEnv(v string) bool {
	x := os.Getenv(v)
	if x == "" {
		return false
	}
	b, _ := strconv.ParseBool(x)
	return b
}

// Enable turns on the named channels (diff, render, sched, commit, host) in
// addition to those enabled from the environment.
func Enable(names ...string) error {
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "diff":
			d.Diff.Store(true)
		case "render":
			d.Render.Store(true)
		case "sched":
			d.Sched.Store(true)
		case "commit":
			d.Commit.Store(true)
		case "host":
			d.Host.Store(true)
		case "all":
			d.Diff.Store(true)
			d.Render.Store(true)
			d.Sched.Store(true)
			d.Commit.Store(true)
			d.Host.Store(true)
		default:
			return fmt.Errorf("unknown debug channel %q", name)
		}
	}
	return nil
}

func Diff() bool {
	return d.Diff.Load()
}
func Render() bool {
	return d.Render.Load()
}
func Sched() bool {
	return d.Sched.Load()
}
func Commit() bool {
	return d.Commit.Load()
}
func Host() bool {
	return d.Host.Load()
}

func LogAny(v any) {
	d, err := json.Marshal(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", v)
		return
	}
	os.Stderr.Write(d)
}
