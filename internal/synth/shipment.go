package synth

import (
	"fmt"

	"fiscaletl/internal/frame"
	"fiscaletl/internal/naming"
	"fiscaletl/internal/shape"
	"fiscaletl/internal/xmltree"
)

// ShipmentItemFields are the product columns of a shipment, resolved from
// each det/prod element.
var ShipmentItemFields = []Field{
	{Column: "cProd", Aliases: []string{"cProd", "codigo", "cod"}},
	{Column: "xProd", Aliases: []string{"xProd", "descricao", "nome"}},
	{Column: "qCom", Aliases: []string{"qCom", "quantidade", "qtd"}, Numeric: true},
	{Column: "vUnCom", Aliases: []string{"vUnCom", "valorUnit", "precoUnit"}, Numeric: true},
	{Column: "vProd", Aliases: []string{"vProd", "valorTotal", "total"}, Numeric: true},
}

// Shipment converts an Envio/detList/det tree into two frames:
//
//   - <base>_cabecalho: one row, column arquivo = the source file's base name
//   - <base>_itens: one row per det with ShipmentItemFields
//
// A single det element counts as a list of one. A det without a prod
// element gives an all-nil row. Zero dets give an items frame with the fixed
// columns and no rows.
func Shipment(root map[string]any, filename string) ([]*frame.Frame, error) {
	envio, ok := shape.LookupMap(root, shape.EnvioKeys...)
	if !ok {
		return nil, fmt.Errorf("synth: shipment %s: missing Envio element", filename)
	}
	var dets []any
	if detList, ok := shape.LookupMap(envio, shape.DetListKeys...); ok {
		if d, ok := shape.Lookup(detList, shape.DetKeys...); ok {
			dets = xmltree.AsList(d)
		}
	}

	cab, err := header(filename)
	if err != nil {
		return nil, fmt.Errorf("synth: shipment %s: %w", filename, err)
	}

	itens, err := newFrame(naming.Suffixed(filename, "itens"), ShipmentItemFields)
	if err != nil {
		return nil, fmt.Errorf("synth: shipment %s: %w", filename, err)
	}
	for _, d := range dets {
		var prod map[string]any
		if dm, ok := xmltree.AsMap(d); ok {
			prod, _ = shape.LookupMap(dm, "prod")
		}
		if err := itens.Append(row(ShipmentItemFields, prod)); err != nil {
			return nil, fmt.Errorf("synth: shipment %s: %w", filename, err)
		}
	}

	return []*frame.Frame{cab, itens}, nil
}

// header builds the one-row <base>_cabecalho frame naming the source file.
func header(filename string) (*frame.Frame, error) {
	cab, err := frame.New(naming.Suffixed(filename, "cabecalho"), "arquivo")
	if err != nil {
		return nil, err
	}
	if err := cab.Append(map[string]any{"arquivo": naming.BaseFile(filename)}); err != nil {
		return nil, err
	}
	return cab, nil
}
