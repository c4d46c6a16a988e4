package vnode

import "strconv"

// Key is an optional identity token distinguishing siblings independent of
// their position. The zero Key is absent.
type Key struct {
	s  string
	ok bool
}

var NoKey = Key{}

func KeyOf(s string) Key {
	return Key{s: s, ok: true}
}

func IntKey(i int64) Key {
	return KeyOf(strconv.FormatInt(i, 10))
}

func (k Key) IsSet() bool { return k.ok }

// Value returns the key's token, "" when absent.
func (k Key) Value() string { return k.s }

func (k Key) String() string {
	if !k.ok {
		return "<nokey>"
	}
	return strconv.Quote(k.s)
}
