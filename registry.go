package jxml

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/go-json-experiment/json/jsontext"
)

type funcEntry struct {
	fn   reflect.Value
	elem reflect.Type
}

// Registry holds named directives. A directive decodes the value of a
// sentinel object {"$name": value} found in the input into the value that
// replaces the whole object in the decoded tree.
//
// Names are either bare ("val") or namespaced with a single dot
// ("std.time"). A namespaced directive can also be called by its short name
// ("time") as long as no other namespace registers the same short name.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]funcEntry
}

func newRegistry() *Registry {
	return &Registry{entries: make(map[string]funcEntry)}
}

var (
	jsontextDecoderType = reflect.TypeOf((*jsontext.Decoder)(nil))
	errorType           = reflect.TypeOf((*error)(nil)).Elem()
)

func validateName(name string) error {
	if strings.Count(name, ".") > 1 {
		return fmt.Errorf("directive %q invalid namespace (at most one separator allowed)", name)
	}
	if ns, short, ok := strings.Cut(name, "."); ok && (ns == "" || short == "") {
		return fmt.Errorf("directive %q invalid namespace (empty namespace or name)", name)
	}
	return nil
}

func validateFuncSignature(name string, fn any) (reflect.Value, reflect.Type, error) {
	fnVal := reflect.ValueOf(fn)
	if fnVal.Kind() != reflect.Func {
		return fnVal, nil, fmt.Errorf("directive %q invalid function signature (got %T)", name, fn)
	}
	typ := fnVal.Type()
	if typ.NumIn() != 2 || typ.NumOut() != 1 {
		return fnVal, typ, fmt.Errorf("directive %q invalid function signature (expected 2 inputs, 1 output; got %d, %d)", name, typ.NumIn(), typ.NumOut())
	}
	if typ.In(0) != jsontextDecoderType {
		return fnVal, typ, fmt.Errorf("directive %q invalid function signature (first param must be *jsontext.Decoder; got %s)", name, typ.In(0))
	}
	arg := typ.In(1)
	if arg.Kind() != reflect.Pointer {
		return fnVal, typ, fmt.Errorf("directive %q invalid function signature (second param must be a pointer; got %s)", name, arg)
	}
	if typ.Out(0) != errorType {
		return fnVal, typ, fmt.Errorf("directive %q invalid function signature (return type must be error; got %s)", name, typ.Out(0))
	}
	return fnVal, arg.Elem(), nil
}

// Register adds a directive. fn must have the signature
//
//	func(dec *jsontext.Decoder, v *T) error
//
// and decode exactly one JSON value from dec into v.
func (r *Registry) Register(name string, fn any) error {
	if err := validateName(name); err != nil {
		return err
	}
	fnVal, elemType, err := validateFuncSignature(name, fn)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("directive %q already registered", name)
	}
	r.entries[name] = funcEntry{fn: fnVal, elem: elemType}
	return nil
}

// Has reports whether name resolves to exactly one directive.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, _, err := r.resolve(name)
	return err == nil
}

// resolve finds the entry for name. The caller holds r.mu.
func (r *Registry) resolve(name string) (string, funcEntry, error) {
	if ent, ok := r.entries[name]; ok {
		return name, ent, nil
	}
	if strings.Contains(name, ".") {
		return "", funcEntry{}, fmt.Errorf("directive %q not registered", name)
	}

	var matches []string
	for full := range r.entries {
		if _, short, ok := strings.Cut(full, "."); ok && short == name {
			matches = append(matches, full)
		}
	}
	switch len(matches) {
	case 0:
		return "", funcEntry{}, fmt.Errorf("directive %q not registered", name)
	case 1:
		return matches[0], r.entries[matches[0]], nil
	default:
		slices.Sort(matches)
		return "", funcEntry{}, fmt.Errorf("directive %q ambiguous (matches %s)", name, strings.Join(matches, ", "))
	}
}

// Exec runs the directive registered under name against dec and returns the
// decoded value.
func (r *Registry) Exec(name string, dec *jsontext.Decoder) (any, error) {
	r.mu.RLock()
	full, ent, err := r.resolve(name)
	r.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	argv := reflect.New(ent.elem)
	results := ent.fn.Call([]reflect.Value{reflect.ValueOf(dec), argv})
	if errVal := results[0].Interface(); errVal != nil {
		return nil, fmt.Errorf("directive %q execution: %w", full, errVal.(error))
	}
	return argv.Elem().Interface(), nil
}
