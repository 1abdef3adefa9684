package synth

import (
	"reflect"
	"strings"
	"testing"

	"fiscaletl/internal/frame"
	"fiscaletl/internal/shape"
	"fiscaletl/internal/xmltree"
)

func TestParseNumber(t *testing.T) {
	t.Parallel()

	f := func(v float64) *float64 { return &v }

	tests := []struct {
		name string
		in   any
		want *float64
	}{
		{"brazilian", "1.234,56", f(1234.56)},
		{"standard", "1234.56", f(1234.56)},
		{"comma decimal", "1234,56", f(1234.56)},
		{"padded", "  7,5 ", f(7.5)},
		{"millions", "1.234.567,89", f(1234567.89)},
		{"empty", "", nil},
		{"blank", "   ", nil},
		{"nil", nil, nil},
		{"int", 3, f(3)},
		{"float", 2.5, f(2.5)},
		{"garbage", "abc", nil},
		{"nan", "NaN", nil},
		{"inf", "inf", nil},
		{"text node", map[string]any{"@unit": "kg", "#text": "10,5"}, f(10.5)},
		{"list", []any{"1"}, nil},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ParseNumber(tt.in)
			switch {
			case tt.want == nil && got != nil:
				t.Fatalf("ParseNumber(%#v) = %v, want nil", tt.in, *got)
			case tt.want != nil && got == nil:
				t.Fatalf("ParseNumber(%#v) = nil, want %v", tt.in, *tt.want)
			case tt.want != nil && *got != *tt.want:
				t.Fatalf("ParseNumber(%#v) = %v, want %v", tt.in, *got, *tt.want)
			}
		})
	}
}

func TestFieldResolveAliases(t *testing.T) {
	t.Parallel()

	fd := Field{Column: "cProd", Aliases: []string{"cProd", "codigo", "cod"}}
	tests := []struct {
		in   map[string]any
		want any
	}{
		{map[string]any{"cod": "C"}, "C"},
		{map[string]any{"codigo": "B", "cod": "C"}, "B"},
		{map[string]any{"cProd": "", "codigo": "B"}, "B"},
		{map[string]any{"cProd": nil, "cod": "C"}, "C"},
		{map[string]any{}, nil},
	}
	for _, tt := range tests {
		if got := fd.Resolve(tt.in); got != tt.want {
			t.Fatalf("Resolve(%v) = %#v, want %#v", tt.in, got, tt.want)
		}
	}

	nested := Field{Column: "UF", Path: []string{"emit", "enderEmit"}, Aliases: []string{"UF"}}
	m := map[string]any{"emit": map[string]any{"enderEmit": map[string]any{"UF": "SP"}}}
	if got := nested.Resolve(m); got != "SP" {
		t.Fatalf("nested Resolve = %#v", got)
	}
	if got := nested.Resolve(map[string]any{"emit": "x"}); got != nil {
		t.Fatalf("broken path must resolve to nil, got %#v", got)
	}
}

func parseTree(t *testing.T, doc string) map[string]any {
	t.Helper()
	n, err := xmltree.Parse(strings.NewReader(doc), xmltree.Options{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return n.(map[string]any)
}

func TestShipmentTwoItemsOneEmpty(t *testing.T) {
	t.Parallel()

	root := parseTree(t, `<Envio>
  <detList>
    <det><prod><cProd>001</cProd><qCom>2,000</qCom><vUnCom>1.234,56</vUnCom><vProd>2469,12</vProd></prod></det>
    <det><prod/></det>
  </detList>
</Envio>`)

	frames, err := Shipment(root, "Pedido 42.xml")
	if err != nil {
		t.Fatalf("Shipment: %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}

	cab, itens := frames[0], frames[1]
	if cab.Name != "pedido_42_cabecalho" || itens.Name != "pedido_42_itens" {
		t.Fatalf("names = %q, %q", cab.Name, itens.Name)
	}
	if cab.Len() != 1 || !reflect.DeepEqual(cab.ColumnNames(), []string{"arquivo"}) {
		t.Fatalf("cabecalho = %v", cab)
	}
	if cab.Rows[0]["arquivo"] != "Pedido 42.xml" {
		t.Fatalf("arquivo = %#v", cab.Rows[0]["arquivo"])
	}

	if want := []string{"cProd", "xProd", "qCom", "vUnCom", "vProd"}; !reflect.DeepEqual(itens.ColumnNames(), want) {
		t.Fatalf("item columns = %v, want %v", itens.ColumnNames(), want)
	}
	if itens.Len() != 2 {
		t.Fatalf("items = %d, want 2", itens.Len())
	}

	first := itens.Rows[0]
	if first["cProd"] != "001" || first["qCom"] != 2.0 || first["vUnCom"] != 1234.56 || first["vProd"] != 2469.12 {
		t.Fatalf("first row = %#v", first)
	}
	second := itens.Rows[1]
	for _, c := range []string{"qCom", "vUnCom", "vProd", "cProd", "xProd"} {
		if second[c] != nil {
			t.Fatalf("second row %s = %#v, want nil", c, second[c])
		}
	}
	if itens.Columns[2].Type != frame.Real || itens.Columns[0].Type != frame.Text {
		t.Fatalf("types = %v", itens.Columns)
	}
}

func TestShipmentSingleAndMissingProd(t *testing.T) {
	t.Parallel()

	root := parseTree(t, `<envio><DetList><Det><prod><codigo>9</codigo><descricao>Caneta</descricao><qtd>3</qtd><precoUnit>1,5</precoUnit><total>4,5</total></prod></Det><Det><outro>x</outro></Det></DetList></envio>`)
	frames, err := Shipment(root, "a.xml")
	if err != nil {
		t.Fatalf("Shipment: %v", err)
	}
	itens := frames[1]
	if itens.Len() != 2 {
		t.Fatalf("items = %d", itens.Len())
	}
	r := itens.Rows[0]
	if r["cProd"] != "9" || r["xProd"] != "Caneta" || r["qCom"] != 3.0 || r["vUnCom"] != 1.5 || r["vProd"] != 4.5 {
		t.Fatalf("aliased row = %#v", r)
	}
	if itens.Rows[1]["cProd"] != nil {
		t.Fatalf("det without prod must be all nil: %#v", itens.Rows[1])
	}
}

func TestShipmentZeroItems(t *testing.T) {
	t.Parallel()

	root := map[string]any{"Envio": map[string]any{"detList": map[string]any{}}}
	frames, err := Shipment(root, "vazio.xml")
	if err != nil {
		t.Fatalf("Shipment: %v", err)
	}
	if frames[1].Len() != 0 || len(frames[1].Columns) != 5 {
		t.Fatalf("items frame = %v", frames[1])
	}

	if _, err := Shipment(map[string]any{}, "x.xml"); err == nil {
		t.Fatalf("expected error without Envio")
	}
}

const nfeDoc = `<?xml version="1.0" encoding="UTF-8"?>
<nfeProc versao="4.00" xmlns="http://www.portalfiscal.inf.br/nfe">
  <NFe>
    <infNFe Id="NFe35200114200166000187550010000000071123456789" versao="4.00">
      <ide><cUF>35</cUF><natOp>VENDA</natOp><mod>55</mod><serie>1</serie><nNF>7</nNF><dhEmi>2020-01-10T10:00:00-03:00</dhEmi><tpNF>1</tpNF></ide>
      <emit><CNPJ>14200166000187</CNPJ><xNome>Loja</xNome><enderEmit><UF>SP</UF></enderEmit></emit>
      <dest><CPF>12345678909</CPF><xNome>Cliente</xNome><enderDest><UF>RJ</UF></enderDest></dest>
      <det nItem="1"><prod><cProd>A1</cProd><xProd>Item A</xProd><NCM>12345678</NCM><CFOP>5102</CFOP><uCom>UN</uCom><qCom>2.0000</qCom><vUnCom>10.00</vUnCom><vProd>20.00</vProd></prod></det>
      <det nItem="2"><prod><cProd>B2</cProd><qCom>1</qCom><vProd>5.50</vProd></prod><infAdProd>brinde</infAdProd></det>
      <total><ICMSTot><vBC>25.50</vBC><vICMS>4.59</vICMS><vProd>25.50</vProd><vNF>25.50</vNF></ICMSTot></total>
    </infNFe>
  </NFe>
</nfeProc>`

func TestFiscalNote(t *testing.T) {
	t.Parallel()

	res := shape.Classify(parseTree(t, nfeDoc))
	if res.Tag != shape.FiscalNote {
		t.Fatalf("Tag = %v", res.Tag)
	}

	frames, err := FiscalNote(res.Root, "nota.xml")
	if err != nil {
		t.Fatalf("FiscalNote: %v", err)
	}
	cab, itens := frames[0], frames[1]
	if cab.Name != "nota_cabecalho" || itens.Name != "nota_itens" {
		t.Fatalf("names = %q, %q", cab.Name, itens.Name)
	}
	if cab.Len() != 1 || itens.Len() != 2 {
		t.Fatalf("rows: header=%d items=%d", cab.Len(), itens.Len())
	}

	h := cab.Rows[0]
	checks := map[string]any{
		"chave":    "35200114200166000187550010000000071123456789",
		"nNF":      "7",
		"emit_doc": "14200166000187",
		"emit_UF":  "SP",
		"dest_doc": "12345678909",
		"vNF":      25.5,
		"vFrete":   nil,
		"arquivo":  "nota.xml",
	}
	for col, want := range checks {
		if got := h[col]; got != want {
			t.Fatalf("header %s = %#v, want %#v", col, got, want)
		}
	}

	second := itens.Rows[1]
	if second["chave"] != h["chave"] || second["nItem"] != "2" || second["vProd"] != 5.5 || second["infAdProd"] != "brinde" {
		t.Fatalf("second item = %#v", second)
	}
	if itens.Columns[itens.Index("qCom")].Type != frame.Real {
		t.Fatalf("qCom must be declared real")
	}

	if _, err := FiscalNote(nil, "x.xml"); err == nil {
		t.Fatalf("expected error for nil infNFe")
	}
}
