package jxml

// D represents an ordered mapping, defined as a slice of key-value entries.
// Entries are rendered in slice order. Each entry in the mapping is an E.
type D []E

// A represents a sequence, defined as a slice of values of any type.
type A []any

// E represents a single entry in a D. It consists of a string key and an
// associated value of any type.
type E struct {
	Key   string
	Value any
}

// Get returns the value of the first entry with the given key.
func (d D) Get(key string) (any, bool) {
	for _, e := range d {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}
