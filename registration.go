package jxml

import (
	"fmt"
	"reflect"

	"github.com/go-json-experiment/json/jsontext"
)

// Registration is a deferred directive registration. Packages that define
// directives expose values of this type so callers opt in explicitly instead
// of relying on import side-effects (init functions).
//
// For example, in a package "money":
//
//	var Cents = jxml.NewDirective("money.cents", func(dec *jsontext.Decoder) (string, error) { ... })
//
// Usage:
//
//	r, _ := jxml.NewRegistry(jxml.Stdlib(), money.Cents)
type Registration func(r *Registry) error

// NewDirective wraps a typed decode function into a Registration. The value
// it returns replaces the sentinel object in the decoded tree, so T must be
// a type the Encoder can render: a string, bool, map, slice or array (not
// []byte) kind, or an interface type whose dynamic values are checked when
// encoding. Registering any other T, such as time.Time or float64, fails.
func NewDirective[T any](name string, fn func(dec *jsontext.Decoder) (T, error)) Registration {
	return func(r *Registry) error {
		if t := reflect.TypeFor[T](); !renderableType(t) {
			return fmt.Errorf("directive %q result type %s is not renderable", name, t)
		}
		return r.Register(name, func(dec *jsontext.Decoder, v *T) error {
			out, err := fn(dec)
			if err != nil {
				return err
			}
			*v = out
			return nil
		})
	}
}

// renderableType reports whether values of t always classify as something
// other than KindOpaque, or may do so at run time for interface types.
func renderableType(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Interface, reflect.String, reflect.Bool, reflect.Map, reflect.Array:
		return true
	case reflect.Slice:
		return t.Elem().Kind() != reflect.Uint8
	default:
		return false
	}
}

// Group groups multiple registrations into one:
//
//	jxml.NewRegistry(jxml.Group(jxml.TimeDirective, jxml.DurationDirective), other)
func Group(regs ...Registration) Registration {
	return func(r *Registry) error { return Apply(r, regs...) }
}

// Apply applies registrations to an existing registry. It stops at the first
// error and returns it.
func Apply(r *Registry, regs ...Registration) error {
	for _, reg := range regs {
		if err := reg(r); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistry constructs a new registry and applies the provided registrations.
func NewRegistry(regs ...Registration) (*Registry, error) {
	r := newRegistry()
	if err := Apply(r, regs...); err != nil {
		return nil, err
	}
	return r, nil
}
