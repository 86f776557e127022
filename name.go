package jxml

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// nameStart is the XML 1.0 (fifth edition) NameStartChar class without ':'.
var nameStart = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 'A', Hi: 'Z', Stride: 1},
		{Lo: '_', Hi: '_', Stride: 1},
		{Lo: 'a', Hi: 'z', Stride: 1},
		{Lo: 0xC0, Hi: 0xD6, Stride: 1},
		{Lo: 0xD8, Hi: 0xF6, Stride: 1},
		{Lo: 0xF8, Hi: 0x2FF, Stride: 1},
		{Lo: 0x370, Hi: 0x37D, Stride: 1},
		{Lo: 0x37F, Hi: 0x1FFF, Stride: 1},
		{Lo: 0x200C, Hi: 0x200D, Stride: 1},
		{Lo: 0x2070, Hi: 0x218F, Stride: 1},
		{Lo: 0x2C00, Hi: 0x2FEF, Stride: 1},
		{Lo: 0x3001, Hi: 0xD7FF, Stride: 1},
		{Lo: 0xF900, Hi: 0xFDCF, Stride: 1},
		{Lo: 0xFDF0, Hi: 0xFFFD, Stride: 1},
	},
	R32: []unicode.Range32{
		{Lo: 0x10000, Hi: 0xEFFFF, Stride: 1},
	},
	LatinOffset: 5,
}

// nameExtra holds the characters NameChar adds to NameStartChar.
var nameExtra = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: '-', Hi: '.', Stride: 1},
		{Lo: '0', Hi: '9', Stride: 1},
		{Lo: 0xB7, Hi: 0xB7, Stride: 1},
		{Lo: 0x300, Hi: 0x36F, Stride: 1},
		{Lo: 0x203F, Hi: 0x2040, Stride: 1},
	},
	LatinOffset: 3,
}

// IsValidName reports whether name can be used as an element name in a
// document read by a namespace-aware XML parser.
//
// The name must match the XML 1.0 Name production. A colon is only accepted
// as the separator of a "xml:local" name, since "xml" is the one prefix that
// is bound without a declaration; any other prefix, including "xmlns", would
// be unbound in the generated document. Names starting with "xml" are
// reserved by the XML specification but parsers accept them, so they are
// valid here too.
func IsValidName(name string) bool {
	if !utf8.ValidString(name) {
		return false
	}
	prefix, local, found := strings.Cut(name, ":")
	if !found {
		return isNCName(name)
	}
	return prefix == "xml" && isNCName(local)
}

// isNCName reports whether s is a non-empty name without colons.
func isNCName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if unicode.Is(nameStart, r) {
			continue
		}
		if i == 0 || !unicode.Is(nameExtra, r) {
			return false
		}
	}
	return true
}
