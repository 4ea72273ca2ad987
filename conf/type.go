package conf

import (
	"reflect"
)

// Type identifies a configuration type.
//
// Type is comparable: two values are equal when they name the same Go type, so
// Type is used directly as a graph node and as the instance cache key.
// Loaded instances of a Type are always pointers (*T).
type Type struct {
	rt reflect.Type
}

// TypeOf returns the Type for T. Pointer types are normalized, so
// TypeOf[*T]() == TypeOf[T]().
func TypeOf[T any]() Type {
	return typeFor(reflect.TypeFor[T]())
}

// typeFor strips pointer indirections from rt.
func typeFor(rt reflect.Type) Type {
	for rt != nil && rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	return Type{rt: rt}
}

// IsZero reports whether t is the zero Type.
func (t Type) IsZero() bool { return t.rt == nil }

// String returns the Go type name, e.g. "appconfig.Main".
func (t Type) String() string {
	if t.rt == nil {
		return "<nil>"
	}
	return t.rt.String()
}

// New allocates a zero value of the type and returns a pointer to it.
func (t Type) New() any {
	return reflect.New(t.rt).Interface()
}

// key returns a string that is unique per type, including the package path.
func (t Type) key() string {
	if t.rt == nil {
		return ""
	}
	if p := t.rt.PkgPath(); p != "" {
		return p + "." + t.rt.Name()
	}
	return t.rt.String()
}

// holds reports whether v is a non-nil *T for this type.
func (t Type) holds(v any) bool {
	if v == nil || t.rt == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	return rv.Type() == reflect.PointerTo(t.rt) && !rv.IsNil()
}

// typeOfValue returns the Type of an arbitrary value.
func typeOfValue(v any) Type {
	if v == nil {
		return Type{}
	}
	return typeFor(reflect.TypeOf(v))
}
