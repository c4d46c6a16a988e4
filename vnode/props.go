package vnode

import (
	"maps"
	"reflect"
	"slices"
)

// ChildrenProp is reserved: children are carried by Node.Children and never
// by Props.
const ChildrenProp = "children"

// Props maps property names to values. Values are opaque to the diff engine
// beyond the shallow equality of SameValue.
type Props map[string]any

func (p Props) Clone() Props {
	if p == nil {
		return nil
	}
	return maps.Clone(p)
}

// Names returns the property names in sorted order.
func (p Props) Names() []string {
	return slices.Sorted(maps.Keys(p))
}

// SameValue reports whether a and b are the same property value under the
// shallow rule used for diffing: values of comparable dynamic type compare with
// ==, reference types compare by identity.
func SameValue(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta.Comparable() {
		va := reflect.ValueOf(a)
		if va.Kind() != reflect.Interface && va.Kind() != reflect.Struct && va.Kind() != reflect.Array {
			return a == b
		}
		// structs and arrays may hold non comparable values in interface
		// fields; == would panic on those.
		return safeEqual(a, b)
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	switch va.Kind() {
	case reflect.Slice:
		return va.Len() == vb.Len() && va.Pointer() == vb.Pointer()
	case reflect.Map, reflect.Func, reflect.Chan, reflect.Pointer, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	default:
		return false
	}
}

func safeEqual(a, b any) (eq bool) {
	defer func() {
		if recover() != nil {
			eq = false
		}
	}()
	return a == b
}

// PropsEqual reports whether a and b hold the same names with SameValue values.
func PropsEqual(a, b Props) bool {
	if len(a) != len(b) {
		return false
	}
	for name, av := range a {
		bv, ok := b[name]
		if !ok || !SameValue(av, bv) {
			return false
		}
	}
	return true
}
