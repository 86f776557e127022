package jxml

import (
	"cmp"
	"fmt"
	"reflect"
	"slices"
	"strconv"
)

// Kind is the structural kind of a value as seen by the encoder.
type Kind uint8

const (
	KindOpaque Kind = iota // anything the encoder cannot render
	KindNull
	KindBool
	KindString
	KindMapping
	KindSequence
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindOpaque:
		return "opaque"
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindMapping:
		return "mapping"
	case KindSequence:
		return "sequence"
	default:
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// KindOf reports the structural kind of v.
//
// D, map[string]any and other Go maps are mappings; A, []any and other
// slices and arrays are sequences, except byte slices which are opaque.
// Named string and bool types classify like their underlying type. Nil and
// nil pointers are null. Numbers, structs and everything else are opaque.
func KindOf(v any) Kind {
	switch v.(type) {
	case nil:
		return KindNull
	case string:
		return KindString
	case bool:
		return KindBool
	case D, map[string]any:
		return KindMapping
	case A, []any:
		return KindSequence
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return KindString
	case reflect.Bool:
		return KindBool
	case reflect.Map:
		return KindMapping
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return KindOpaque
		}
		return KindSequence
	case reflect.Array:
		return KindSequence
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return KindNull
		}
	}
	return KindOpaque
}

func stringOf(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return reflect.ValueOf(v).String()
}

func boolOf(v any) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return reflect.ValueOf(v).Bool()
}

type member struct {
	key   any
	value any
}

// members returns the entries of a mapping value. D keeps its order; Go
// maps are sorted by the text of their keys so output is deterministic.
func members(v any) []member {
	switch m := v.(type) {
	case D:
		out := make([]member, len(m))
		for i, e := range m {
			out[i] = member{key: e.Key, value: e.Value}
		}
		return out
	case map[string]any:
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		out := make([]member, len(keys))
		for i, k := range keys {
			out[i] = member{key: k, value: m[k]}
		}
		return out
	}

	rv := reflect.ValueOf(v)
	out := make([]member, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out = append(out, member{key: iter.Key().Interface(), value: iter.Value().Interface()})
	}
	slices.SortStableFunc(out, func(a, b member) int {
		return cmp.Or(
			cmp.Compare(keyText(a.key), keyText(b.key)),
			cmp.Compare(fmt.Sprintf("%T", a.key), fmt.Sprintf("%T", b.key)),
		)
	})
	return out
}

// elements returns the items of a sequence value in order.
func elements(v any) []any {
	switch s := v.(type) {
	case A:
		return s
	case []any:
		return s
	}

	rv := reflect.ValueOf(v)
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}
