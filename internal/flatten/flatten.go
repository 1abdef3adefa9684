// Package flatten collapses an arbitrary parsed tree into a single flat row.
//
// Nested map keys are joined with a separator ("a__b") and visited in sorted
// order, so the output does not depend on map iteration. A list becomes one
// column whose items are joined with " | "; a map inside a list is rendered
// as "k:v" pairs joined by "," in a single pass, without expanding anything
// nested below it. Scalars are kept as they are.
package flatten

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"fiscaletl/internal/frame"
	"fiscaletl/internal/xmltree"
)

const (
	DefaultSeparator = "__"
	DefaultMaxDepth  = 32

	listSep    = " | "
	pairSep    = ","
	rootColumn = "valor"
)

// Options bounds and shapes the flattening.
type Options struct {
	// Separator joins nested keys. Empty means DefaultSeparator.
	Separator string
	// MaxDepth is the deepest map level expanded into columns. Below it the
	// remaining subtree is stringified into the column at that path.
	// Zero means DefaultMaxDepth.
	MaxDepth int
}

func (o Options) sep() string {
	if o.Separator == "" {
		return DefaultSeparator
	}
	return o.Separator
}

func (o Options) maxDepth() int {
	if o.MaxDepth <= 0 {
		return DefaultMaxDepth
	}
	return o.MaxDepth
}

// ErrNoColumns is returned by Frame for a tree without any key.
var ErrNoColumns = errors.New("flatten: tree has no columns")

// Flatten returns the key-path → value map of tree. A tree that is not a map
// is stored under a single "valor" column.
func Flatten(tree xmltree.Node, opt Options) map[string]any {
	out := make(map[string]any)
	m, ok := xmltree.AsMap(tree)
	if !ok {
		out[rootColumn] = leaf(tree)
		return out
	}
	walk(out, "", m, 1, opt)
	return out
}

// walk visits keys in sorted order. When two paths flatten to the same key
// (a literal "a__b" next to a/b) the first one visited keeps the key and
// later ones get "_2", "_3" suffixes.
func walk(out map[string]any, prefix string, m map[string]any, depth int, opt Options) {
	for _, k := range sortedKeys(m) {
		v := m[k]
		key := k
		if prefix != "" {
			key = prefix + opt.sep() + k
		}
		switch xmltree.KindOf(v) {
		case xmltree.KindMap:
			if depth >= opt.maxDepth() {
				put(out, key, stringify(v))
				continue
			}
			walk(out, key, v.(map[string]any), depth+1, opt)
		case xmltree.KindList:
			put(out, key, joinList(v.([]any)))
		default:
			put(out, key, v)
		}
	}
}

func put(out map[string]any, key string, v any) {
	if _, taken := out[key]; !taken {
		out[key] = v
		return
	}
	for n := 2; ; n++ {
		k := fmt.Sprintf("%s_%d", key, n)
		if _, taken := out[k]; !taken {
			out[k] = v
			return
		}
	}
}

func joinList(items []any) string {
	parts := make([]string, len(items))
	for i, it := range items {
		if m, ok := it.(map[string]any); ok {
			parts[i] = pairs(m)
			continue
		}
		parts[i] = leaf(it)
	}
	return strings.Join(parts, listSep)
}

// pairs renders one map as sorted "k:v" pairs. Nested values are stringified.
func pairs(m map[string]any) string {
	keys := sortedKeys(m)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ":" + leaf(m[k])
	}
	return strings.Join(parts, pairSep)
}

// leaf renders any node as text: scalars with fmt, containers as JSON, nil as "".
func leaf(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case map[string]any, []any:
		return stringify(x)
	default:
		return fmt.Sprint(x)
	}
}

func stringify(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Frame flattens tree into a one-row frame named name. Columns are the
// distinct key paths in sorted order; types are inferred from the values.
func Frame(tree xmltree.Node, name string, opt Options) (*frame.Frame, error) {
	flat := Flatten(tree, opt)
	if len(flat) == 0 {
		return nil, ErrNoColumns
	}

	cols := sortedKeys(flat)
	f, err := frame.New(name, cols...)
	if err != nil {
		return nil, fmt.Errorf("flatten: %w", err)
	}
	if err := f.Append(flat); err != nil {
		return nil, fmt.Errorf("flatten: %w", err)
	}
	frame.InferTypes(f)
	return f, nil
}
