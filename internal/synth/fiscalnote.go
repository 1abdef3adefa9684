package synth

import (
	"fmt"
	"strings"

	"fiscaletl/internal/frame"
	"fiscaletl/internal/naming"
	"fiscaletl/internal/xmltree"
)

// NoteHeaderFields are the invoice header columns read from infNFe.
// The access key (chave) and source file (arquivo) are added separately.
var NoteHeaderFields = []Field{
	{Column: "versao", Aliases: []string{"@versao"}},
	{Column: "cUF", Path: []string{"ide"}, Aliases: []string{"cUF"}},
	{Column: "natOp", Path: []string{"ide"}, Aliases: []string{"natOp"}},
	{Column: "mod", Path: []string{"ide"}, Aliases: []string{"mod"}},
	{Column: "serie", Path: []string{"ide"}, Aliases: []string{"serie"}},
	{Column: "nNF", Path: []string{"ide"}, Aliases: []string{"nNF"}},
	{Column: "dhEmi", Path: []string{"ide"}, Aliases: []string{"dhEmi", "dEmi"}},
	{Column: "tpNF", Path: []string{"ide"}, Aliases: []string{"tpNF"}},
	{Column: "emit_doc", Path: []string{"emit"}, Aliases: []string{"CNPJ", "CPF"}},
	{Column: "emit_xNome", Path: []string{"emit"}, Aliases: []string{"xNome"}},
	{Column: "emit_xFant", Path: []string{"emit"}, Aliases: []string{"xFant"}},
	{Column: "emit_UF", Path: []string{"emit", "enderEmit"}, Aliases: []string{"UF"}},
	{Column: "dest_doc", Path: []string{"dest"}, Aliases: []string{"CNPJ", "CPF", "idEstrangeiro"}},
	{Column: "dest_xNome", Path: []string{"dest"}, Aliases: []string{"xNome"}},
	{Column: "dest_UF", Path: []string{"dest", "enderDest"}, Aliases: []string{"UF"}},
	{Column: "vBC", Path: []string{"total", "ICMSTot"}, Aliases: []string{"vBC"}, Numeric: true},
	{Column: "vICMS", Path: []string{"total", "ICMSTot"}, Aliases: []string{"vICMS"}, Numeric: true},
	{Column: "vProd", Path: []string{"total", "ICMSTot"}, Aliases: []string{"vProd"}, Numeric: true},
	{Column: "vFrete", Path: []string{"total", "ICMSTot"}, Aliases: []string{"vFrete"}, Numeric: true},
	{Column: "vDesc", Path: []string{"total", "ICMSTot"}, Aliases: []string{"vDesc"}, Numeric: true},
	{Column: "vIPI", Path: []string{"total", "ICMSTot"}, Aliases: []string{"vIPI"}, Numeric: true},
	{Column: "vPIS", Path: []string{"total", "ICMSTot"}, Aliases: []string{"vPIS"}, Numeric: true},
	{Column: "vCOFINS", Path: []string{"total", "ICMSTot"}, Aliases: []string{"vCOFINS"}, Numeric: true},
	{Column: "vNF", Path: []string{"total", "ICMSTot"}, Aliases: []string{"vNF"}, Numeric: true},
	{Column: "infCpl", Path: []string{"infAdic"}, Aliases: []string{"infCpl"}},
}

// NoteItemFields are the per-det columns. nItem is an attribute of det; the
// rest live under det/prod.
var NoteItemFields = []Field{
	{Column: "nItem", Aliases: []string{"@nItem"}},
	{Column: "cProd", Path: []string{"prod"}, Aliases: []string{"cProd"}},
	{Column: "cEAN", Path: []string{"prod"}, Aliases: []string{"cEAN"}},
	{Column: "xProd", Path: []string{"prod"}, Aliases: []string{"xProd"}},
	{Column: "NCM", Path: []string{"prod"}, Aliases: []string{"NCM"}},
	{Column: "CFOP", Path: []string{"prod"}, Aliases: []string{"CFOP"}},
	{Column: "uCom", Path: []string{"prod"}, Aliases: []string{"uCom"}},
	{Column: "qCom", Path: []string{"prod"}, Aliases: []string{"qCom"}, Numeric: true},
	{Column: "vUnCom", Path: []string{"prod"}, Aliases: []string{"vUnCom"}, Numeric: true},
	{Column: "vProd", Path: []string{"prod"}, Aliases: []string{"vProd"}, Numeric: true},
	{Column: "vDesc", Path: []string{"prod"}, Aliases: []string{"vDesc"}, Numeric: true},
	{Column: "infAdProd", Aliases: []string{"infAdProd"}},
}

// FiscalNote converts an infNFe subtree into two frames:
//
//   - <base>_cabecalho: one row with chave, NoteHeaderFields and arquivo
//   - <base>_itens: one row per det with chave and NoteItemFields
//
// chave is the Id attribute without its "NFe" prefix and joins the two tables.
func FiscalNote(inf map[string]any, filename string) ([]*frame.Frame, error) {
	if inf == nil {
		return nil, fmt.Errorf("synth: fiscal note %s: missing infNFe", filename)
	}
	chave := accessKey(inf)

	headerCols := append(append([]string{"chave"}, Columns(NoteHeaderFields)...), "arquivo")
	cab, err := frame.New(naming.Suffixed(filename, "cabecalho"), headerCols...)
	if err != nil {
		return nil, fmt.Errorf("synth: fiscal note %s: %w", filename, err)
	}
	markNumeric(cab, NoteHeaderFields)

	hv := row(NoteHeaderFields, inf)
	hv["chave"] = chave
	hv["arquivo"] = naming.BaseFile(filename)
	if err := cab.Append(hv); err != nil {
		return nil, fmt.Errorf("synth: fiscal note %s: %w", filename, err)
	}

	itemCols := append([]string{"chave"}, Columns(NoteItemFields)...)
	itens, err := frame.New(naming.Suffixed(filename, "itens"), itemCols...)
	if err != nil {
		return nil, fmt.Errorf("synth: fiscal note %s: %w", filename, err)
	}
	markNumeric(itens, NoteItemFields)

	for _, d := range xmltree.AsList(inf["det"]) {
		dm, _ := xmltree.AsMap(d)
		iv := row(NoteItemFields, dm)
		iv["chave"] = chave
		if err := itens.Append(iv); err != nil {
			return nil, fmt.Errorf("synth: fiscal note %s: %w", filename, err)
		}
	}

	return []*frame.Frame{cab, itens}, nil
}

func accessKey(inf map[string]any) any {
	id, ok := scalar(inf["@Id"]).(string)
	if !ok {
		return nil
	}
	return strings.TrimPrefix(id, "NFe")
}

func markNumeric(f *frame.Frame, fields []Field) {
	for _, fd := range fields {
		if fd.Numeric {
			_ = f.SetType(fd.Column, frame.Real)
		}
	}
}
