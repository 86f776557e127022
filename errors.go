package jxml

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedType is matched by every *UnsupportedTypeError.
var ErrUnsupportedType = errors.New("unsupported type")

// maxValuePreview bounds how much of an offending value an error message shows.
const maxValuePreview = 64

// UnsupportedTypeError reports a value the encoder cannot render, such as a
// number or a struct. Numbers must be converted to strings before encoding.
type UnsupportedTypeError struct {
	Path   string // location of the value, e.g. "inventory[2].price"; empty for the root
	GoType string
	Value  any
}

// Error implements the error interface
func (e *UnsupportedTypeError) Error() string {
	var b strings.Builder
	b.WriteString("jxml: unsupported type ")
	b.WriteString(e.GoType)
	if e.Path != "" {
		b.WriteString(" at ")
		b.WriteString(e.Path)
	}
	preview := fmt.Sprintf("%v", e.Value)
	if len(preview) > maxValuePreview {
		preview = preview[:maxValuePreview] + "..."
	}
	b.WriteString(": ")
	b.WriteString(preview)
	return b.String()
}

// Is reports whether target is ErrUnsupportedType.
func (e *UnsupportedTypeError) Is(target error) bool {
	return target == ErrUnsupportedType
}
