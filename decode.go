package jxml

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"gopkg.in/yaml.v3"
)

// Format is an input document format.
type Format string

const (
	FormatAuto Format = ""
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

type decodeConfig struct {
	registry *Registry
	format   Format
}

// DecodeOption configures Decode and DecodeFile.
type DecodeOption func(*decodeConfig)

// WithRegistry enables the directives of r while decoding JSON.
func WithRegistry(r *Registry) DecodeOption {
	return func(c *decodeConfig) { c.registry = r }
}

// WithFormat forces the input format instead of detecting it.
func WithFormat(f Format) DecodeOption {
	return func(c *decodeConfig) { c.format = f }
}

// ParseFormat maps a format name or file extension ("yml", ".json") to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "", "auto":
		return FormatAuto, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return FormatAuto, fmt.Errorf("jxml: unknown format %q", s)
	}
}

// Decode parses a JSON (default) or YAML document into a value tree made of
// D, A, string, bool and nil. Object key order and duplicate keys are kept,
// and numbers keep their literal text.
func Decode(data []byte, opts ...DecodeOption) (any, error) {
	cfg := decodeConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.format == FormatYAML {
		return DecodeYAML(data)
	}

	var out any
	err := json.Unmarshal(data, &out,
		json.WithUnmarshalers(Unmarshalers(cfg.registry)),
		jsontext.AllowDuplicateNames(true),
	)
	if err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	return out, nil
}

// DecodeFile reads and decodes the file at path. Unless WithFormat is given,
// ".yaml" and ".yml" files are read as YAML and everything else as JSON.
func DecodeFile(path string, opts ...DecodeOption) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := decodeConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.format == FormatAuto {
		if f, err := ParseFormat(filepath.Ext(path)); err == nil && f == FormatYAML {
			opts = append(opts, WithFormat(FormatYAML))
		}
	}

	v, err := Decode(data, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}

// maxYAMLNodes bounds the size of a decoded YAML tree, counting every
// alias expansion.
const maxYAMLNodes = 1 << 20

// DecodeYAML parses a YAML document into a value tree. Mapping order is kept,
// null and booleans are decoded as nil and bool, and every other scalar keeps
// its literal text. Aliases are resolved; merge keys are kept as ordinary
// "<<" entries. An empty document decodes to nil. Self-referencing aliases
// and documents expanding past maxYAMLNodes values are rejected.
func DecodeYAML(data []byte) (any, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	if doc.Kind == 0 {
		return nil, nil
	}
	w := yamlWalker{expanding: make(map[*yaml.Node]bool)}
	return w.walk(&doc)
}

// yamlWalker converts yaml.v3 nodes into D, A and scalars.
type yamlWalker struct {
	expanding map[*yaml.Node]bool // alias targets on the current path
	nodes     int
}

func (w *yamlWalker) alias(n *yaml.Node) (*yaml.Node, error) {
	if n.Alias == nil || w.expanding[n.Alias] {
		return nil, fmt.Errorf("decode yaml: line %d: recursive alias", n.Line)
	}
	return n.Alias, nil
}

func (w *yamlWalker) walk(n *yaml.Node) (any, error) {
	w.nodes++
	if w.nodes > maxYAMLNodes {
		return nil, fmt.Errorf("decode yaml: line %d: document expands to more than %d values", n.Line, maxYAMLNodes)
	}

	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return w.walk(n.Content[0])
	case yaml.AliasNode:
		target, err := w.alias(n)
		if err != nil {
			return nil, err
		}
		w.expanding[target] = true
		defer delete(w.expanding, target)
		return w.walk(target)
	case yaml.MappingNode:
		d := make(D, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, v := n.Content[i], n.Content[i+1]
			if k.Kind == yaml.AliasNode {
				target, err := w.alias(k)
				if err != nil {
					return nil, err
				}
				k = target
			}
			if k.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("decode yaml: line %d: mapping key must be a scalar", k.Line)
			}
			val, err := w.walk(v)
			if err != nil {
				return nil, err
			}
			d = append(d, E{Key: k.Value, Value: val})
		}
		return d, nil
	case yaml.SequenceNode:
		a := make(A, 0, len(n.Content))
		for _, c := range n.Content {
			val, err := w.walk(c)
			if err != nil {
				return nil, err
			}
			a = append(a, val)
		}
		return a, nil
	case yaml.ScalarNode:
		switch n.ShortTag() {
		case "!!null":
			return nil, nil
		case "!!bool":
			var b bool
			if err := n.Decode(&b); err != nil {
				return nil, fmt.Errorf("decode yaml: line %d: %w", n.Line, err)
			}
			return b, nil
		default:
			return n.Value, nil
		}
	}
	return nil, fmt.Errorf("decode yaml: line %d: unexpected node kind %d", n.Line, n.Kind)
}
