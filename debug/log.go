package debug

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/signadot/vtree/vnode"
)

// Logf writes to stderr. Generic maps and lists are written as indented
// JSON; large trees are written as their node count and root.
func Logf(msg string, args ...any) {
	for i := range args {
		switch x := args[i].(type) {
		case map[string]any, []any, json.Number:
			d, err := json.MarshalIndent(x, "   |", "  ")
			if err != nil {
				args[i] = fmt.Sprintf("%v", x)
				continue
			}
			args[i] = string(d)
		case *vnode.Node:
			if x != nil && x.Size() > maxTreeSize {
				args[i] = fmt.Sprintf("[%d nodes under %s]", x.Size(), x.Kind)
			}
		}
	}
	fmt.Fprintf(os.Stderr, msg, args...)
}

const maxTreeSize = 64
