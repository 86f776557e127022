package jxml

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const (
	prolog       = `<?xml version="1.0" encoding="UTF-8" ?>`
	xmlNamespace = "http://www.w3.org/XML/1998/namespace"
)

// node is a parsed element: its name, attributes, text and children.
type node struct {
	Name     string
	Attrs    map[string]string
	Text     string
	Children []*node
}

// parseDocument parses out with encoding/xml and returns the root element.
func parseDocument(t *testing.T, out []byte) *node {
	t.Helper()
	dec := xml.NewDecoder(bytes.NewReader(out))
	var stack []*node
	var root *node
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err, "output is not well-formed:\n%s", out)
		switch tok := tok.(type) {
		case xml.StartElement:
			n := &node{Name: tok.Name.Local}
			switch tok.Name.Space {
			case "":
			case xmlNamespace:
				n.Name = "xml:" + tok.Name.Local
			default:
				n.Name = tok.Name.Space + ":" + tok.Name.Local
			}
			for _, a := range tok.Attr {
				if n.Attrs == nil {
					n.Attrs = map[string]string{}
				}
				n.Attrs[a.Name.Local] = a.Value
			}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, n)
			} else {
				require.Nil(t, root, "more than one document element")
				root = n
			}
			stack = append(stack, n)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			require.NotEmpty(t, stack, "character data outside the document element")
			stack[len(stack)-1].Text += string(tok)
		}
	}
	require.NotNil(t, root)
	return root
}

func marshal(t *testing.T, v any) string {
	t.Helper()
	out, err := MarshalString(v)
	require.NoError(t, err)
	return out
}

// shape mirrors the element tree expected for v under the given name.
func shape(name string, v any) *node {
	n := &node{Name: name}
	switch KindOf(v) {
	case KindString:
		n.Text = stringOf(v)
	case KindBool:
		n.Text = strconv.FormatBool(boolOf(v))
	case KindMapping:
		for _, m := range members(v) {
			key, attrs := Sanitize(m.key, nil)
			child := shape(key, m.value)
			for _, a := range attrs {
				if child.Attrs == nil {
					child.Attrs = map[string]string{}
				}
				child.Attrs[a.Name] = a.Value
			}
			n.Children = append(n.Children, child)
		}
	case KindSequence:
		for _, item := range elements(v) {
			n.Children = append(n.Children, shape(DefaultItemTag, item))
		}
	}
	return n
}

func depth(n *node) int {
	d := 0
	for _, c := range n.Children {
		d = max(d, depth(c))
	}
	return d + 1
}

func TestMarshal(t *testing.T) {
	t.Run("single entry mapping", func(t *testing.T) {
		require.Equal(t, prolog+"<root><a>b</a></root>", marshal(t, D{{Key: "a", Value: "b"}}))
	})

	t.Run("plain map", func(t *testing.T) {
		require.Equal(t, prolog+"<root><a>b</a></root>", marshal(t, map[string]any{"a": "b"}))
	})

	t.Run("invalid key falls back to key attribute", func(t *testing.T) {
		out := marshal(t, D{{Key: "1bad key", Value: "v"}})
		require.Equal(t, prolog+`<root><key key="1bad key">v</key></root>`, out)

		root := parseDocument(t, []byte(out))
		require.Len(t, root.Children, 1)
		require.Equal(t, "key", root.Children[0].Name)
		require.Equal(t, "1bad key", root.Children[0].Attrs["key"])
		require.Equal(t, "v", root.Children[0].Text)
	})

	t.Run("key with spaces is underscored", func(t *testing.T) {
		require.Equal(t, prolog+"<root><unit_price>9</unit_price></root>", marshal(t, D{{Key: "unit price", Value: "9"}}))
	})

	t.Run("top level sequence keeps order", func(t *testing.T) {
		require.Equal(t, prolog+"<root><item>x</item><item>y</item></root>", marshal(t, A{"x", "y"}))
	})

	t.Run("null renders self-closing", func(t *testing.T) {
		require.Equal(t, prolog+"<root><n/></root>", marshal(t, D{{Key: "n", Value: nil}}))
		require.Equal(t, prolog+"<root><item/></root>", marshal(t, nil))
		require.Equal(t, prolog+"<root><item/><item>x</item></root>", marshal(t, A{nil, "x"}))
	})

	t.Run("null with fallback key keeps the attribute", func(t *testing.T) {
		require.Equal(t, prolog+`<root><key key="2x"/></root>`, marshal(t, D{{Key: "2x", Value: nil}}))
	})

	t.Run("booleans render as literal tokens", func(t *testing.T) {
		out := marshal(t, D{{Key: "yes", Value: true}, {Key: "no", Value: false}, {Key: "list", Value: A{true}}})
		require.Equal(t, prolog+"<root><yes>true</yes><no>false</no><list><item>true</item></list></root>", out)
		require.Equal(t, prolog+"<root><item>false</item></root>", marshal(t, false))
	})

	t.Run("top level string", func(t *testing.T) {
		require.Equal(t, prolog+"<root><item>hello</item></root>", marshal(t, "hello"))
	})

	t.Run("empty containers", func(t *testing.T) {
		require.Equal(t, prolog+"<root></root>", marshal(t, D{}))
		require.Equal(t, prolog+"<root></root>", marshal(t, A{}))
		require.Equal(t, prolog+"<root><a></a><b></b></root>", marshal(t, D{{Key: "a", Value: D{}}, {Key: "b", Value: A{}}}))
	})

	t.Run("nested sequences and mappings share the item tag", func(t *testing.T) {
		out := marshal(t, A{A{"a"}, D{{Key: "k", Value: "v"}}})
		require.Equal(t, prolog+"<root><item><item>a</item></item><item><k>v</k></item></root>", out)
	})

	t.Run("content is escaped", func(t *testing.T) {
		out := marshal(t, D{{Key: "name", Value: "ink & toner <cheap>"}})
		require.Equal(t, prolog+"<root><name>ink &amp; toner &lt;cheap&gt;</name></root>", out)
	})

	t.Run("go slices and named types", func(t *testing.T) {
		out := marshal(t, map[string]any{"tags": []string{"a", "b"}, "state": label("open"), "ok": toggle(true)})
		require.Equal(t, prolog+"<root><ok>true</ok><state>open</state><tags><item>a</item><item>b</item></tags></root>", out)
	})
}

func TestMarshalRoundTrip(t *testing.T) {
	t.Run("string leaves survive escaping", func(t *testing.T) {
		values := []string{
			"plain",
			"<tag>",
			"a & b",
			`"double" and 'single'`,
			"]]>",
			"&amp; already escaped",
			"line\nbreak\ttab",
			"unicode: héllo 日本",
			"",
		}
		for _, s := range values {
			root := parseDocument(t, []byte(marshal(t, D{{Key: "v", Value: s}})))
			require.Len(t, root.Children, 1)
			assert.Equal(t, s, root.Children[0].Text)
		}
	})

	t.Run("fallback attribute keeps the original key", func(t *testing.T) {
		keys := []string{"1st", `a "quoted" <key>`, "x & y", "ns:item", "tab\tkey"}
		for _, k := range keys {
			root := parseDocument(t, []byte(marshal(t, D{{Key: k, Value: "v"}})))
			require.Len(t, root.Children, 1)
			assert.Equal(t, "key", root.Children[0].Name)
			assert.Equal(t, k, root.Children[0].Attrs["key"])
		}
	})

	t.Run("deep nesting keeps depth and sibling counts", func(t *testing.T) {
		report := D{
			{Key: "organization", Value: "Skynet Papercorp"},
			{Key: "reported_at", Value: "2015-04-22"},
			{Key: "inventory", Value: A{
				D{{Key: "name", Value: "paper"}, {Key: "price", Value: "4.00"}},
				D{{Key: "internal", Value: A{
					D{{Key: "name", Value: "stapler"}, {Key: "price", Value: "5.00"}},
					D{{Key: "deeper", Value: D{
						{Key: "organization", Value: "Skynet Papercorp"},
						{Key: "inventory", Value: A{
							D{{Key: "name", Value: "paper"}, {Key: "price", Value: "4.00"}, {Key: "1 bad", Value: nil}},
						}},
					}}},
					D{{Key: "name", Value: "ink"}, {Key: "price", Value: "3000.00"}},
				}}},
			}},
			{Key: "audited", Value: true},
		}

		root := parseDocument(t, []byte(marshal(t, report)))
		want := shape(DefaultRootTag, report)
		if diff := cmp.Diff(want, root); diff != "" {
			t.Fatalf("structure mismatch (-want +got):\n%s\ninput:\n%s", diff, spew.Sdump(report))
		}
		require.Equal(t, 9, depth(root))
	})

	t.Run("large sequence keeps every item", func(t *testing.T) {
		inventory := A{}
		for i := range 151 {
			inventory = append(inventory, D{{Key: "name", Value: fmt.Sprintf("name_%d", i)}, {Key: "price", Value: fmt.Sprintf("%d.00", i)}})
		}
		root := parseDocument(t, []byte(marshal(t, D{{Key: "inventory", Value: inventory}})))
		require.Len(t, root.Children[0].Children, 151)
		require.Equal(t, "name_150", root.Children[0].Children[150].Children[0].Text)
	})

	t.Run("every element name is valid", func(t *testing.T) {
		v := D{
			{Key: "ok", Value: "1"},
			{Key: "with space", Value: D{{Key: "9", Value: A{"x", D{{Key: "<", Value: "y"}}}}}},
			{Key: "", Value: nil},
			{Key: "xml:lang", Value: "en"},
		}
		root := parseDocument(t, []byte(marshal(t, v)))
		var walk func(n *node)
		walk = func(n *node) {
			assert.True(t, IsValidName(n.Name), "invalid element name %q", n.Name)
			for _, c := range n.Children {
				walk(c)
			}
		}
		walk(root)
	})
}

func TestMarshalUnsupported(t *testing.T) {
	t.Run("float at top level", func(t *testing.T) {
		out, err := Marshal(2.5)
		require.Nil(t, out)
		require.ErrorIs(t, err, ErrUnsupportedType)

		var typeErr *UnsupportedTypeError
		require.ErrorAs(t, err, &typeErr)
		require.Equal(t, "float64", typeErr.GoType)
		require.Equal(t, "", typeErr.Path)
		require.Equal(t, 2.5, typeErr.Value)
	})

	t.Run("nested value reports its path", func(t *testing.T) {
		v := D{{Key: "inventory", Value: A{
			D{{Key: "price", Value: "2.00"}},
			D{{Key: "price", Value: 5}},
		}}}
		_, err := Marshal(v)
		var typeErr *UnsupportedTypeError
		require.ErrorAs(t, err, &typeErr)
		require.Equal(t, "inventory[1].price", typeErr.Path)
		require.Equal(t, "int", typeErr.GoType)
		require.Equal(t, "jxml: unsupported type int at inventory[1].price: 5", err.Error())
	})

	t.Run("unsupported sequence item", func(t *testing.T) {
		_, err := Marshal(A{"a", struct{ X int }{1}})
		require.ErrorIs(t, err, ErrUnsupportedType)
		require.Contains(t, err.Error(), "[1]")
	})

	t.Run("byte slices are not sequences", func(t *testing.T) {
		_, err := Marshal(D{{Key: "raw", Value: []byte("x")}})
		require.ErrorIs(t, err, ErrUnsupportedType)
	})

	t.Run("long values are truncated in the message", func(t *testing.T) {
		err := &UnsupportedTypeError{GoType: "[]uint8", Value: strings.Repeat("x", 100)}
		require.True(t, strings.HasSuffix(err.Error(), "..."))
		require.Less(t, len(err.Error()), 120)
	})
}

func TestNewEncoder(t *testing.T) {
	t.Run("custom tags", func(t *testing.T) {
		enc, err := NewEncoder(WithItemTag("entry"), WithRootTag("report"))
		require.NoError(t, err)
		out, err := enc.MarshalString(A{"a", A{"b"}})
		require.NoError(t, err)
		require.Equal(t, prolog+"<report><entry>a</entry><entry><entry>b</entry></entry></report>", out)
	})

	t.Run("invalid tags are rejected", func(t *testing.T) {
		_, err := NewEncoder(WithItemTag("1item"))
		require.Error(t, err)
		_, err = NewEncoder(WithRootTag("a b"))
		require.Error(t, err)
	})

	t.Run("trace events are logged at debug level", func(t *testing.T) {
		core, logs := observer.New(zap.DebugLevel)
		enc, err := NewEncoder(WithLogger(zap.New(core)))
		require.NoError(t, err)

		_, err = enc.Marshal(D{{Key: "a", Value: A{"x"}}})
		require.NoError(t, err)

		entries := logs.All()
		require.Len(t, entries, 3) // dispatch, a, a[0]
		require.Equal(t, "dispatch", entries[0].Message)
		require.Equal(t, "mapping", entries[0].ContextMap()["kind"])
		require.Equal(t, "a[0]", entries[2].ContextMap()["path"])
		require.Equal(t, "string", entries[2].ContextMap()["kind"])
		require.Equal(t, "x", entries[2].ContextMap()["value"])
		require.NotContains(t, entries[1].ContextMap(), "value")
	})

	t.Run("leaf and unsupported trace events carry values", func(t *testing.T) {
		core, logs := observer.New(zap.DebugLevel)
		enc, err := NewEncoder(WithLogger(zap.New(core)))
		require.NoError(t, err)

		_, err = enc.Marshal(D{{Key: "ok", Value: true}, {Key: "n", Value: 3}})
		require.ErrorIs(t, err, ErrUnsupportedType)

		entries := logs.FilterMessage("member").All()
		require.Len(t, entries, 2)
		require.Equal(t, true, entries[0].ContextMap()["value"])
		require.Equal(t, "ok", entries[0].ContextMap()["path"])
		require.Equal(t, "opaque", entries[1].ContextMap()["kind"])
		require.Equal(t, "int", entries[1].ContextMap()["type"])
	})

	t.Run("concurrent use is safe", func(t *testing.T) {
		enc, err := NewEncoder()
		require.NoError(t, err)
		var wg sync.WaitGroup
		for i := range 16 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				v := D{{Key: "n", Value: strconv.Itoa(i)}}
				out, err := enc.MarshalString(v)
				assert.NoError(t, err)
				assert.Equal(t, prolog+"<root><n>"+strconv.Itoa(i)+"</n></root>", out)
			}()
		}
		wg.Wait()
	})
}
