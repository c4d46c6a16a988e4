// Package exprcomp builds components and state updaters from
// expr-lang expressions.
//
// A render expression sees the variables props and state and evaluates to a
// node descriptor as accepted by vnode.FromMap, or nil for an empty
// placeholder. The helper functions el, comp and keyed build descriptors:
//
//	el("ul", {class: "todos"}, map(state.items, keyed(#.id, el("li", {text: #.text}))))
//
// An updater expression sees the variable state and evaluates to the next
// state.
package exprcomp

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/signadot/vtree/render"
	"github.com/signadot/vtree/sched"
	"github.com/signadot/vtree/vnode"
)

// Env is the evaluation environment.
type Env map[string]any

func exprOpts() []expr.Option {
	return []expr.Option{
		expr.Function("el", func(params ...any) (any, error) {
			if len(params) == 0 {
				return nil, fmt.Errorf("el: missing tag")
			}
			tag, ok := params[0].(string)
			if !ok {
				return nil, fmt.Errorf("el: tag must be a string, got %T", params[0])
			}
			d := map[string]any{"host": tag}
			rest := params[1:]
			if len(rest) != 0 {
				if props, ok := rest[0].(map[string]any); ok && !isDescriptor(props) {
					d["props"] = props
					rest = rest[1:]
				}
			}
			var children []any
			for _, c := range rest {
				switch x := c.(type) {
				case nil:
				case []any:
					children = append(children, x...)
				default:
					children = append(children, x)
				}
			}
			if len(children) != 0 {
				d["children"] = children
			}
			return d, nil
		}),
		expr.Function("comp", func(params ...any) (any, error) {
			if len(params) == 0 || len(params) > 2 {
				return nil, fmt.Errorf("comp: want id and optional props")
			}
			id, ok := params[0].(string)
			if !ok {
				return nil, fmt.Errorf("comp: id must be a string, got %T", params[0])
			}
			d := map[string]any{"component": id}
			if len(params) == 2 && params[1] != nil {
				d["props"] = params[1]
			}
			return d, nil
		}),
		expr.Function("keyed", func(params ...any) (any, error) {
			if len(params) != 2 {
				return nil, fmt.Errorf("keyed: want key and descriptor")
			}
			d, ok := params[1].(map[string]any)
			if !ok {
				return nil, fmt.Errorf("keyed: descriptor must be a mapping, got %T", params[1])
			}
			res := make(map[string]any, len(d)+1)
			for k, v := range d {
				res[k] = v
			}
			res["key"] = params[0]
			return res, nil
		}),
	}
}

func isDescriptor(m map[string]any) bool {
	_, h := m["host"]
	_, c := m["component"]
	return h || c
}

// Component renders with a compiled expression.
type Component struct {
	Source  string
	Initial any
	prg     *vm.Program
}

var (
	_ render.Component   = (*Component)(nil)
	_ render.Initializer = (*Component)(nil)
)

func Compile(src string, initial any) (*Component, error) {
	prg, err := expr.Compile(src, exprOpts()...)
	if err != nil {
		return nil, fmt.Errorf("compile render expression: %w", err)
	}
	return &Component{Source: src, Initial: initial, prg: prg}, nil
}

func (c *Component) Render(props vnode.Props, state any) (*vnode.Node, error) {
	res, err := expr.Run(c.prg, Env{"props": map[string]any(props), "state": state})
	if err != nil {
		return nil, err
	}
	switch x := res.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return vnode.FromMap(x)
	default:
		return nil, fmt.Errorf("render expression returned %T, want a descriptor", res)
	}
}

func (c *Component) InitialState(vnode.Props) any {
	return c.Initial
}

// CompileUpdater compiles an updater expression. Evaluation errors panic
// with the error; the scheduler reports such panics as update failures.
func CompileUpdater(src string) (sched.Updater, error) {
	prg, err := expr.Compile(src, exprOpts()...)
	if err != nil {
		return nil, fmt.Errorf("compile updater expression: %w", err)
	}
	return func(old any) any {
		res, err := expr.Run(prg, Env{"state": old})
		if err != nil {
			panic(fmt.Errorf("updater %q: %w", src, err))
		}
		return res
	}, nil
}
