package jxml

import (
	"time"

	json "github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
)

// NewTimeDirective returns a Registration normalizing timestamps to RFC 3339
// text under the given name. Both forms are accepted:
//
//	{"$std.time": "2023-10-05T12:00:00+02:00"}                   // RFC 3339
//	{"$std.time": {"value": "2023-10-05", "layout": "2006-01-02"}} // custom layout
//
// The layout defaults to time.RFC3339. The result is in UTC.
func NewTimeDirective(name string) Registration {
	return NewDirective(name, decodeTime)
}

// NewDurationDirective returns a Registration normalizing a Go duration
// string ("90m") to its canonical form ("1h30m0s") under the given name.
func NewDurationDirective(name string) Registration {
	return NewDirective(name, decodeDuration)
}

// Default stdlib directive registrations using canonical names.
var (
	TimeDirective     = NewTimeDirective("std.time")
	DurationDirective = NewDurationDirective("std.duration")
)

// Stdlib bundles TimeDirective and DurationDirective.
func Stdlib() Registration {
	return Group(TimeDirective, DurationDirective)
}

func decodeTime(dec *jsontext.Decoder) (string, error) {
	layout, value := time.RFC3339, ""
	if dec.PeekKind() == '{' {
		var aux struct {
			Value  string `json:"value"`
			Layout string `json:"layout"`
		}
		if err := json.UnmarshalDecode(dec, &aux); err != nil {
			return "", err
		}
		if aux.Layout != "" {
			layout = aux.Layout
		}
		value = aux.Value
	} else if err := json.UnmarshalDecode(dec, &value); err != nil {
		return "", err
	}

	t, err := time.Parse(layout, value)
	if err != nil {
		return "", err
	}
	return t.UTC().Format(time.RFC3339Nano), nil
}

func decodeDuration(dec *jsontext.Decoder) (string, error) {
	var s string
	if err := json.UnmarshalDecode(dec, &s); err != nil {
		return "", err
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return "", err
	}
	return d.String(), nil
}
