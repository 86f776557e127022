package jxml

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

const (
	// DefaultItemTag names the elements of sequence items.
	DefaultItemTag = "item"
	// DefaultRootTag names the document element.
	DefaultRootTag = "root"

	header = `<?xml version="1.0" encoding="UTF-8" ?>`
)

// Encoder converts value trees into XML documents. An Encoder only holds
// configuration and is safe for concurrent use.
type Encoder struct {
	logger  *zap.Logger
	itemTag string
	rootTag string
}

// Option configures an Encoder.
type Option func(*Encoder)

// WithLogger sets the logger receiving trace events for every converted
// value (debug level) and write failures (error level).
func WithLogger(l *zap.Logger) Option {
	return func(e *Encoder) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithItemTag sets the element name used for sequence items.
func WithItemTag(tag string) Option {
	return func(e *Encoder) { e.itemTag = tag }
}

// WithRootTag sets the name of the document element.
func WithRootTag(tag string) Option {
	return func(e *Encoder) { e.rootTag = tag }
}

// NewEncoder returns an Encoder configured by opts. It fails if the item or
// root tag is not a valid element name.
func NewEncoder(opts ...Option) (*Encoder, error) {
	e := &Encoder{
		logger:  zap.NewNop(),
		itemTag: DefaultItemTag,
		rootTag: DefaultRootTag,
	}
	for _, opt := range opts {
		opt(e)
	}
	if !IsValidName(e.itemTag) {
		return nil, fmt.Errorf("jxml: invalid item tag %q", e.itemTag)
	}
	if !IsValidName(e.rootTag) {
		return nil, fmt.Errorf("jxml: invalid root tag %q", e.rootTag)
	}
	return e, nil
}

var defaultEncoder, _ = NewEncoder()

// Marshal renders v as a complete document using the default Encoder.
func Marshal(v any) ([]byte, error) {
	return defaultEncoder.Marshal(v)
}

// MarshalString is like Marshal but returns a string.
func MarshalString(v any) (string, error) {
	return defaultEncoder.MarshalString(v)
}

// Marshal renders v as a complete document:
//
//	<?xml version="1.0" encoding="UTF-8" ?><root>...</root>
//
// It either returns the whole document or an error; an *UnsupportedTypeError
// is returned when the tree holds a value that is not a mapping, sequence,
// string, bool or nil.
func (e *Encoder) Marshal(v any) ([]byte, error) {
	s := &state{enc: e}
	s.buf.WriteString(header)
	s.open(e.rootTag, nil)
	if err := s.dispatch(v); err != nil {
		return nil, err
	}
	s.close(e.rootTag)
	return s.buf.Bytes(), nil
}

// MarshalString is like Marshal but returns a string.
func (e *Encoder) MarshalString(v any) (string, error) {
	out, err := e.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// state is the per-call conversion state.
type state struct {
	enc  *Encoder
	buf  bytes.Buffer
	path []string
}

// dispatch renders a value that has no key of its own.
func (s *state) dispatch(v any) error {
	k := KindOf(v)
	s.trace("dispatch", s.enc.itemTag, k, v)
	switch k {
	case KindBool:
		s.atom(s.enc.itemTag, strconv.FormatBool(boolOf(v)), nil)
	case KindString:
		s.atom(s.enc.itemTag, stringOf(v), nil)
	case KindNull:
		s.empty(s.enc.itemTag, nil)
	case KindMapping:
		return s.mapping(v)
	case KindSequence:
		return s.sequence(v)
	case KindOpaque:
		return s.unsupported(v)
	}
	return nil
}

// atom renders a leaf element after sanitizing its key.
func (s *state) atom(key any, text string, attrs Attrs) {
	name, attrs := Sanitize(key, attrs)
	s.leaf(name, attrs, text)
}

// mapping renders every entry of a mapping as a child element, without an
// enclosing element.
func (s *state) mapping(v any) error {
	for _, m := range members(v) {
		name, attrs := Sanitize(m.key, nil)
		s.pushKey(keyText(m.key))
		if err := s.member(name, attrs, m.value); err != nil {
			return err
		}
		s.pop()
	}
	return nil
}

// sequence renders every item of a sequence as a sibling element named by
// the item tag, without an enclosing element.
func (s *state) sequence(v any) error {
	for i, item := range elements(v) {
		s.pushIndex(i)
		if err := s.member(s.enc.itemTag, nil, item); err != nil {
			return err
		}
		s.pop()
	}
	return nil
}

// member renders v as the element name. Mapping entries and sequence items
// share this classification; only the name differs.
func (s *state) member(name string, attrs Attrs, v any) error {
	k := KindOf(v)
	s.trace("member", name, k, v)
	switch k {
	case KindBool:
		s.leaf(name, attrs, strconv.FormatBool(boolOf(v)))
	case KindString:
		s.leaf(name, attrs, stringOf(v))
	case KindNull:
		s.empty(name, attrs)
	case KindMapping:
		s.open(name, attrs)
		if err := s.mapping(v); err != nil {
			return err
		}
		s.close(name)
	case KindSequence:
		s.open(name, attrs)
		if err := s.sequence(v); err != nil {
			return err
		}
		s.close(name)
	case KindOpaque:
		return s.unsupported(v)
	}
	return nil
}

func (s *state) unsupported(v any) error {
	return &UnsupportedTypeError{
		Path:   s.pathString(),
		GoType: fmt.Sprintf("%T", v),
		Value:  v,
	}
}

func (s *state) open(name string, attrs Attrs) {
	s.buf.WriteByte('<')
	s.buf.WriteString(name)
	attrs.writeTo(&s.buf)
	s.buf.WriteByte('>')
}

func (s *state) close(name string) {
	s.buf.WriteString("</")
	s.buf.WriteString(name)
	s.buf.WriteByte('>')
}

func (s *state) empty(name string, attrs Attrs) {
	s.buf.WriteByte('<')
	s.buf.WriteString(name)
	attrs.writeTo(&s.buf)
	s.buf.WriteString("/>")
}

func (s *state) leaf(name string, attrs Attrs, text string) {
	s.open(name, attrs)
	xml.EscapeText(&s.buf, []byte(text))
	s.close(name)
}

func (s *state) pushKey(key string) {
	if len(s.path) > 0 {
		key = "." + key
	}
	s.path = append(s.path, key)
}

func (s *state) pushIndex(i int) {
	s.path = append(s.path, "["+strconv.Itoa(i)+"]")
}

func (s *state) pop() {
	s.path = s.path[:len(s.path)-1]
}

func (s *state) pathString() string {
	return strings.Join(s.path, "")
}

func (s *state) trace(msg, name string, k Kind, v any) {
	ce := s.enc.logger.Check(zap.DebugLevel, msg)
	if ce == nil {
		return
	}
	fields := []zap.Field{
		zap.String("path", s.pathString()),
		zap.String("name", name),
		zap.Stringer("kind", k),
	}
	switch k {
	case KindString:
		fields = append(fields, zap.String("value", stringOf(v)))
	case KindBool:
		fields = append(fields, zap.Bool("value", boolOf(v)))
	case KindOpaque:
		fields = append(fields, zap.String("type", fmt.Sprintf("%T", v)))
	}
	ce.Write(fields...)
}
