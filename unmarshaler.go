package jxml

import (
	"fmt"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
)

// Unmarshalers returns the jxml unmarshalers, allowing decoding into:
//   - any  -> objects as D, arrays as A, numbers as their literal text,
//     directive objects replaced by the directive's result
//   - *D   -> direct ordered object decoding
//   - *A   -> direct array decoding
//
// r may be nil, in which case no directives are dispatched.
func Unmarshalers(r *Registry) *json.Unmarshalers {
	return json.JoinUnmarshalers(
		unmarshalValue(r),
		unmarshalDocument(),
		unmarshalCollection(),
	)
}

// unmarshalValue decodes into *any:
//   - JSON objects become D, keeping key order, unless the first key is
//     "$<name>" and r resolves name, in which case the directive decodes the
//     value and any further fields are skipped;
//   - JSON arrays become A;
//   - JSON numbers become strings holding the literal text ("2.00" stays
//     "2.00"), since the encoder only renders strings;
//   - strings, booleans and null are left to the default decoding.
func unmarshalValue(r *Registry) *json.Unmarshalers {
	return json.UnmarshalFromFunc(func(dec *jsontext.Decoder, v *any) error {
		switch dec.PeekKind() {
		case '{':
			val, err := decodeObject(dec, r)
			if err != nil {
				return err
			}
			*v = val
			return nil
		case '[':
			arr, err := decodeArray(dec)
			if err != nil {
				return err
			}
			*v = arr
			return nil
		case '0':
			num, err := dec.ReadValue()
			if err != nil {
				return fmt.Errorf("read number: %w", err)
			}
			*v = string(num)
			return nil
		default:
			return json.SkipFunc
		}
	})
}

// unmarshalDocument decodes a JSON object into a *D. Directives are not
// interpreted for the object itself, only for nested values decoded into any.
func unmarshalDocument() *json.Unmarshalers {
	return json.UnmarshalFromFunc(func(dec *jsontext.Decoder, v *D) error {
		if dec.PeekKind() != '{' {
			return json.SkipFunc
		}
		val, err := decodeObject(dec, nil)
		if err != nil {
			return err
		}
		*v = val.(D)
		return nil
	})
}

// unmarshalCollection decodes a JSON array into an *A.
func unmarshalCollection() *json.Unmarshalers {
	return json.UnmarshalFromFunc(func(dec *jsontext.Decoder, v *A) error {
		if dec.PeekKind() != '[' {
			return json.SkipFunc
		}
		arr, err := decodeArray(dec)
		if err != nil {
			return err
		}
		*v = arr
		return nil
	})
}

// decodeObject decodes a JSON object into a D, or into a directive's result
// when r resolves the "$<name>" first key.
func decodeObject(dec *jsontext.Decoder, r *Registry) (any, error) {
	if _, err := dec.ReadToken(); err != nil { // '{'
		return nil, fmt.Errorf("read object open: %w", err)
	}
	res := D{}
	first := true
	for dec.PeekKind() != '}' {
		var k string
		if err := json.UnmarshalDecode(dec, &k); err != nil {
			return nil, fmt.Errorf("read object key: %w", err)
		}
		if first && r != nil && len(k) > 1 && k[0] == '$' && r.Has(k[1:]) {
			return execDirective(dec, r, k)
		}
		first = false

		var val any
		if err := json.UnmarshalDecode(dec, &val); err != nil {
			return nil, fmt.Errorf("read object value for key %q: %w", k, err)
		}
		res = append(res, E{Key: k, Value: val})
	}
	if _, err := dec.ReadToken(); err != nil { // '}'
		return nil, fmt.Errorf("read object close: %w", err)
	}
	return res, nil
}

// execDirective runs the directive named by key (without its '$') and
// consumes the rest of the enclosing object.
func execDirective(dec *jsontext.Decoder, r *Registry, key string) (any, error) {
	val, err := r.Exec(key[1:], dec)
	if err != nil {
		return nil, fmt.Errorf("directive %q call: %w", key, err)
	}
	for dec.PeekKind() != '}' { // skip remaining fields
		if err := dec.SkipValue(); err != nil {
			return nil, fmt.Errorf("directive %q skip extra field: %w", key, err)
		}
	}
	if _, err := dec.ReadToken(); err != nil {
		return nil, fmt.Errorf("directive %q read object close: %w", key, err)
	}
	return val, nil
}

// decodeArray decodes a JSON array into an A.
func decodeArray(dec *jsontext.Decoder) (A, error) {
	if _, err := dec.ReadToken(); err != nil { // '['
		return nil, fmt.Errorf("read array open: %w", err)
	}
	arr := A{}
	for dec.PeekKind() != ']' {
		var elem any
		if err := json.UnmarshalDecode(dec, &elem); err != nil {
			return nil, fmt.Errorf("read array element: %w", err)
		}
		arr = append(arr, elem)
	}
	if _, err := dec.ReadToken(); err != nil { // ']'
		return nil, fmt.Errorf("read array close: %w", err)
	}
	return arr, nil
}
