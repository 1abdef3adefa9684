// Package xmltree parses XML documents into plain nested Go values.
//
// The tree uses the conventions most XML-to-dict tooling settled on:
//
//   - an element with child elements or attributes becomes map[string]any
//   - attributes are stored under "@name"
//   - text mixed with children or attributes is stored under "#text"
//   - an element with only text becomes its trimmed string
//   - an empty element becomes nil
//   - repeated sibling elements with the same name become []any
//   - namespace prefixes are dropped; keys are local names
//
// The document itself is a one-key map {rootName: rootValue}.
package xmltree

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Node is any value found in a parsed tree: map[string]any, []any, string or nil.
type Node = any

// Kind is the closed set of node shapes.
type Kind int

const (
	KindNull Kind = iota
	KindScalar
	KindMap
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindMap:
		return "map"
	case KindList:
		return "list"
	default:
		return "null"
	}
}

// KindOf reports the shape of n. Anything that is not a map, list or nil is a
// scalar.
func KindOf(n Node) Kind {
	switch n.(type) {
	case nil:
		return KindNull
	case map[string]any:
		return KindMap
	case []any:
		return KindList
	default:
		return KindScalar
	}
}

// AsMap returns n as a map when it is one.
func AsMap(n Node) (map[string]any, bool) {
	m, ok := n.(map[string]any)
	return m, ok
}

// AsList normalizes a repeated-or-single element: a list is returned as is,
// nil yields nil and any other node is wrapped as a list of one.
func AsList(n Node) []any {
	switch x := n.(type) {
	case nil:
		return nil
	case []any:
		return x
	default:
		return []any{x}
	}
}

// Options configures Parse.
type Options struct {
	// CharsetReader converts non-UTF-8 input named by the XML declaration.
	// Nil means documents declaring another encoding fail to parse.
	CharsetReader func(label string, input io.Reader) (io.Reader, error)
}

// ErrNoRoot is returned for input without any element.
var ErrNoRoot = errors.New("xmltree: no root element")

type element struct {
	name     string
	attrs    map[string]any
	children map[string]any
	text     strings.Builder
}

// Parse reads a whole document from r.
func Parse(r io.Reader, opt Options) (Node, error) {
	dec := xml.NewDecoder(r)
	dec.Strict = true
	dec.CharsetReader = opt.CharsetReader

	var (
		stack []*element
		root  map[string]any
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("xmltree: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if len(stack) == 0 && root != nil {
				return nil, fmt.Errorf("xmltree: junk after document element <%s>", t.Name.Local)
			}
			stack = append(stack, newElement(t))

		case xml.CharData:
			if len(stack) == 0 {
				if len(strings.TrimSpace(string(t))) > 0 {
					return nil, fmt.Errorf("xmltree: text outside document element")
				}
				continue
			}
			stack[len(stack)-1].text.Write(t)

		case xml.EndElement:
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			v := top.value()
			if len(stack) == 0 {
				root = map[string]any{top.name: v}
				continue
			}
			stack[len(stack)-1].addChild(top.name, v)
		}
	}

	if root == nil {
		return nil, ErrNoRoot
	}
	return root, nil
}

func newElement(t xml.StartElement) *element {
	e := &element{name: t.Name.Local}
	for _, a := range t.Attr {
		if e.attrs == nil {
			e.attrs = make(map[string]any, len(t.Attr))
		}
		e.attrs["@"+attrKey(a.Name)] = a.Value
	}
	return e
}

// attrKey keeps namespace declarations recognizable ("xmlns", "xmlns:nfe")
// and drops the prefix of every other attribute.
func attrKey(n xml.Name) string {
	if n.Space == "xmlns" {
		return "xmlns:" + n.Local
	}
	return n.Local
}

func (e *element) addChild(name string, v any) {
	if e.children == nil {
		e.children = make(map[string]any)
	}
	prev, ok := e.children[name]
	if !ok {
		e.children[name] = v
		return
	}
	if list, isList := prev.([]any); isList {
		e.children[name] = append(list, v)
		return
	}
	e.children[name] = []any{prev, v}
}

func (e *element) value() any {
	text := strings.TrimSpace(e.text.String())
	if len(e.attrs) == 0 && len(e.children) == 0 {
		if text == "" {
			return nil
		}
		return text
	}
	m := make(map[string]any, len(e.attrs)+len(e.children)+1)
	for k, v := range e.attrs {
		m[k] = v
	}
	for k, v := range e.children {
		m[k] = v
	}
	if text != "" {
		m["#text"] = text
	}
	return m
}
