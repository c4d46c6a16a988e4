package main

import (
	"fmt"
	"maps"
	"slices"

	"github.com/goccy/go-yaml"
	"github.com/signadot/vtree/exprcomp"
	"github.com/signadot/vtree/render"
	"github.com/signadot/vtree/sched"
	"github.com/signadot/vtree/vnode"
)

// Script is the input of vt run:
//
//	components:
//	  todos:
//	    state: {items: []}
//	    render: el("ul", map(state.items, keyed(#.id, el("li", {text: #.text}))))
//	root:
//	  host: main
//	  children: [{component: todos}]
//	turns:
//	- - component: todos
//	    update: '{items: concat(state.items, [{id: 1, text: "a"}])}'
type Script struct {
	Components map[string]ScriptComponent `yaml:"components"`
	Root       map[string]any             `yaml:"root"`
	Turns      [][]ScriptUpdate           `yaml:"turns"`
}

type ScriptComponent struct {
	State  any    `yaml:"state"`
	Render string `yaml:"render"`
}

type ScriptUpdate struct {
	Component string `yaml:"component"`
	Update    string `yaml:"update"`
}

type compiledUpdate struct {
	id vnode.ComponentID
	u  sched.Updater
}

// program is a compiled script.
type program struct {
	registry *render.Registry
	root     *vnode.Node
	turns    [][]compiledUpdate
}

func parseScript(d []byte) (*Script, error) {
	s := &Script{}
	if err := yaml.UnmarshalWithOptions(d, s, yaml.Strict()); err != nil {
		return nil, err
	}
	if s.Root == nil {
		return nil, fmt.Errorf("script has no root")
	}
	return s, nil
}

func (s *Script) compile() (*program, error) {
	p := &program{registry: render.NewRegistry()}
	for _, name := range slices.Sorted(maps.Keys(s.Components)) {
		sc := s.Components[name]
		c, err := exprcomp.Compile(sc.Render, sc.State)
		if err != nil {
			return nil, fmt.Errorf("component %s: %w", name, err)
		}
		if err := p.registry.Register(vnode.ComponentID(name), c); err != nil {
			return nil, err
		}
	}
	root, err := vnode.FromMap(s.Root)
	if err != nil {
		return nil, fmt.Errorf("root: %w", err)
	}
	p.root = root
	for i, turn := range s.Turns {
		cus := make([]compiledUpdate, 0, len(turn))
		for j, su := range turn {
			u, err := exprcomp.CompileUpdater(su.Update)
			if err != nil {
				return nil, fmt.Errorf("turn %d update %d: %w", i, j, err)
			}
			cus = append(cus, compiledUpdate{id: vnode.ComponentID(su.Component), u: u})
		}
		p.turns = append(p.turns, cus)
	}
	return p, nil
}
