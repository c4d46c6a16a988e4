package encode

import (
	"strings"

	"github.com/fatih/color"
	"github.com/signadot/vtree/libdiff"
)

type ColorAttr int

const (
	TagColor ColorAttr = iota
	ComponentColor
	KeyColor
	PropColor
	ValueColor
	PathColor
	InsertColor
	DeleteColor
	MoveColor
	PropsColor
	ReplaceColor
)

type Colors struct {
	Default func(string, ...any) string
	Map     map[ColorAttr]func(string, ...any) string
}

func NewColors() *Colors {
	colors := &Colors{
		Default: colorDefault,
		Map:     map[ColorAttr]func(string, ...any) string{},
	}
	colors.Map[TagColor] = color.RGB(128, 216, 236).SprintfFunc()
	colors.Map[ComponentColor] = color.RGB(168, 0, 196).SprintfFunc()
	colors.Map[KeyColor] = color.RGB(198, 198, 46).SprintfFunc()
	colors.Map[PropColor] = color.RGB(128, 168, 196).SprintfFunc()
	colors.Map[ValueColor] = color.RGB(88, 158, 86).SprintfFunc()
	colors.Map[PathColor] = color.RGB(96, 96, 96).SprintfFunc()
	colors.Map[InsertColor] = color.GreenString
	colors.Map[DeleteColor] = color.RedString
	colors.Map[MoveColor] = color.CyanString
	colors.Map[PropsColor] = color.YellowString
	colors.Map[ReplaceColor] = color.RGB(196, 96, 16).SprintfFunc()
	for k, f := range colors.Map {
		colors.Map[k] = func(v string, _ ...any) string {
			return f(strings.Replace(v, "%", "%%", -1))
		}
	}
	return colors
}

func colorDefault(v string, _ ...any) string { return v }

func (c *Colors) Color(a ColorAttr, s string) string {
	if c == nil {
		return s
	}
	f := c.Map[a]
	if f == nil {
		f = c.Default
	}
	return f(s)
}

// OpColor is the attribute used for patches of op.
func OpColor(op libdiff.Op) ColorAttr {
	switch op {
	case libdiff.OpInsert:
		return InsertColor
	case libdiff.OpDelete:
		return DeleteColor
	case libdiff.OpMove:
		return MoveColor
	case libdiff.OpUpdateProps:
		return PropsColor
	default:
		return ReplaceColor
	}
}
