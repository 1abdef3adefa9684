// Package shape recognizes the known fiscal document layouts in a parsed XML
// tree by structure alone, ignoring any declared type metadata.
package shape

import "fiscaletl/internal/xmltree"

// Tag is the closed set of recognized document shapes.
type Tag int

const (
	Unrecognized Tag = iota
	// FiscalNote is an electronic invoice (NF-e): one header, N items under infNFe.
	FiscalNote
	// Shipment is the Envio/detList/det/prod order layout.
	Shipment
)

func (t Tag) String() string {
	switch t {
	case FiscalNote:
		return "fiscal_note"
	case Shipment:
		return "shipment"
	default:
		return "unrecognized"
	}
}

// Result is the outcome of Classify. Root is the subtree the synthesizer
// needs and is nil for Unrecognized.
type Result struct {
	Tag  Tag
	Root map[string]any
}

// Alias chains for the shipment structure. Only these exact spellings match.
var (
	EnvioKeys   = []string{"Envio", "envio", "ENVIO"}
	DetListKeys = []string{"detList", "DetList", "DETList"}
	DetKeys     = []string{"det", "Det", "DET"}
	noteKeys    = []string{"nfeProc", "NFe", "procNFe"}
)

// Lookup returns the value of the first alias present in m.
func Lookup(m map[string]any, aliases ...string) (any, bool) {
	for _, k := range aliases {
		if v, ok := m[k]; ok {
			return v, true
		}
	}
	return nil, false
}

// LookupMap is Lookup restricted to map values.
func LookupMap(m map[string]any, aliases ...string) (map[string]any, bool) {
	v, ok := Lookup(m, aliases...)
	if !ok {
		return nil, false
	}
	return xmltree.AsMap(v)
}

// Classify inspects tree and reports its shape.
//
// Shipment is checked first, so a tree that carries both an Envio/detList/det
// chain and a note key is a Shipment. A FiscalNote signature without a
// reachable infNFe yields Unrecognized.
func Classify(tree xmltree.Node) Result {
	root, ok := xmltree.AsMap(tree)
	if !ok {
		return Result{Tag: Unrecognized}
	}

	if isShipment(root) {
		return Result{Tag: Shipment, Root: root}
	}

	if _, ok := Lookup(root, noteKeys...); ok {
		if inf := noteRoot(root); inf != nil {
			return Result{Tag: FiscalNote, Root: inf}
		}
	}
	return Result{Tag: Unrecognized}
}

func isShipment(root map[string]any) bool {
	envio, ok := LookupMap(root, EnvioKeys...)
	if !ok {
		return false
	}
	detList, ok := LookupMap(envio, DetListKeys...)
	if !ok {
		return false
	}
	det, ok := Lookup(detList, DetKeys...)
	if !ok {
		return false
	}
	return nonEmpty(det)
}

func nonEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case []any:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	case string:
		return x != ""
	default:
		return true
	}
}

// noteRoot descends nfeProc (or procNFe, or the root itself) → NFe → infNFe.
func noteRoot(root map[string]any) map[string]any {
	node := root
	if m, ok := LookupMap(root, "nfeProc"); ok {
		node = m
	} else if m, ok := LookupMap(root, "procNFe"); ok {
		node = m
	}
	if m, ok := LookupMap(node, "NFe"); ok {
		node = m
	}
	inf, ok := LookupMap(node, "infNFe")
	if !ok {
		return nil
	}
	return inf
}
