package jxml

import (
	"encoding/xml"
	"fmt"
	"io"
	"reflect"
	"strings"
)

// FallbackName is the element name used for keys that cannot be made into a
// valid name. The original key is kept in an attribute of the same name.
const FallbackName = "key"

// Attr is a single attribute rendered on an element's start tag.
type Attr struct {
	Name  string
	Value string
}

// Attrs is an ordered set of attributes. The zero value is an empty set.
// Values are stored unescaped and escaped when rendered.
type Attrs []Attr

// Get returns the value bound to name.
func (a Attrs) Get(name string) (string, bool) {
	for _, at := range a {
		if at.Name == name {
			return at.Value, true
		}
	}
	return "", false
}

// Set returns a copy of a with name bound to value. An existing binding is
// replaced in place; a new one is appended. The receiver is never modified.
func (a Attrs) Set(name, value string) Attrs {
	out := make(Attrs, len(a), len(a)+1)
	copy(out, a)
	for i := range out {
		if out[i].Name == name {
			out[i].Value = value
			return out
		}
	}
	return append(out, Attr{Name: name, Value: value})
}

// String renders the set as it appears inside a start tag, with a leading
// space before every attribute.
func (a Attrs) String() string {
	var b strings.Builder
	a.writeTo(&b)
	return b.String()
}

func (a Attrs) writeTo(w io.Writer) {
	for _, at := range a {
		io.WriteString(w, " ")
		io.WriteString(w, at.Name)
		io.WriteString(w, `="`)
		xml.EscapeText(w, []byte(at.Value))
		io.WriteString(w, `"`)
	}
}

// Sanitize turns key into a valid element name. It never fails; the steps
// below are tried in order and the first valid candidate wins:
//
//  1. a string key is used as is;
//  2. any other key is stringified (fmt.Stringer, error, then fmt.Sprint);
//  3. spaces are replaced with underscores;
//  4. the name becomes FallbackName and the original key text is bound to
//     the FallbackName attribute.
//
// The returned set is attrs itself unless step 4 was reached, in which case
// it is a copy; attrs is never modified.
func Sanitize(key any, attrs Attrs) (string, Attrs) {
	text := keyText(key)
	if IsValidName(text) {
		return text, attrs
	}
	if underscored := strings.ReplaceAll(text, " ", "_"); underscored != text && IsValidName(underscored) {
		return underscored, attrs
	}
	return FallbackName, attrs.Set(FallbackName, text)
}

// keyText returns the text a mapping key is rendered from.
func keyText(key any) string {
	switch k := key.(type) {
	case string:
		return k
	case fmt.Stringer:
		return k.String()
	case error:
		return k.Error()
	case nil:
		return ""
	}
	if rv := reflect.ValueOf(key); rv.Kind() == reflect.String {
		return rv.String()
	}
	return fmt.Sprint(key)
}
