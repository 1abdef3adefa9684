package decode

import (
	"errors"
	"reflect"
	"testing"

	"fiscaletl/internal/frame"
	"fiscaletl/internal/ingesterr"
)

func TestTryEachStopsAtFirstSuccess(t *testing.T) {
	t.Parallel()

	var calls []Encoding
	got, err := TryEach(DefaultEncodings, func(e Encoding) (string, error) {
		calls = append(calls, e)
		if e == Latin1 {
			return "ok", nil
		}
		return "", errors.New("nope")
	})
	if err != nil || got != "ok" {
		t.Fatalf("TryEach = %q, %v", got, err)
	}
	if want := []Encoding{Native, UTF8, Latin1}; !reflect.DeepEqual(calls, want) {
		t.Fatalf("attempts = %v, want %v", calls, want)
	}
}

func TestTryEachKeepsLastError(t *testing.T) {
	t.Parallel()

	last := errors.New("last")
	_, err := TryEach([]Encoding{UTF8, CP1252}, func(e Encoding) (int, error) {
		if e == CP1252 {
			return 0, last
		}
		return 0, errors.New("first")
	})
	if !errors.Is(err, last) {
		t.Fatalf("err = %v, want wrapped %v", err, last)
	}

	if _, err := TryEach(nil, func(Encoding) (int, error) { return 1, nil }); !errors.Is(err, ErrNoAttempts) {
		t.Fatalf("empty list: err = %v", err)
	}
}

func TestParseEncoding(t *testing.T) {
	t.Parallel()

	tests := map[string]Encoding{
		"native":       Native,
		"UTF8":         UTF8,
		"ISO-8859-1":   Latin1,
		"windows-1252": CP1252,
	}
	for in, want := range tests {
		got, err := ParseEncoding(in)
		if err != nil || got != want {
			t.Fatalf("ParseEncoding(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseEncoding("ebcdic"); err == nil {
		t.Fatalf("expected error for unknown encoding")
	}
}

func TestXMLEncodings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []byte
		want string
	}{
		{"utf8", []byte(`<a><b>São Paulo</b></a>`), "São Paulo"},
		{"declared latin1", []byte("<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?><a><b>S\xe3o Paulo</b></a>"), "São Paulo"},
		{"undeclared latin1 falls through", []byte("<a><b>S\xe3o</b></a>"), "S\uFFFDo"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			node, err := XML(tt.in, Options{})
			if err != nil {
				t.Fatalf("XML: %v", err)
			}
			a := node.(map[string]any)["a"].(map[string]any)
			if got := a["b"]; got != tt.want {
				t.Fatalf("b = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestXMLExhausted(t *testing.T) {
	t.Parallel()

	_, err := XML([]byte("<a><b></a>"), Options{})
	var de *ingesterr.DecodeExhaustedError
	if !errors.As(err, &de) {
		t.Fatalf("err = %v, want DecodeExhaustedError", err)
	}
	if de.Attempts != len(DefaultEncodings) {
		t.Fatalf("Attempts = %d", de.Attempts)
	}
	if de.Last == nil {
		t.Fatalf("Last must carry the underlying failure")
	}
}

func TestCSVDelimiterDetection(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		in    string
		delim rune
		cols  []string
	}{
		{"comma", "a,b,c\n1,2,3\n", ',', []string{"a", "b", "c"}},
		{"semicolon with decimal commas", "produto;valor\nx;1,50\ny;2,75\n", ';', []string{"produto", "valor"}},
		{"tab", "a\tb\n1\t2\n", '\t', []string{"a", "b"}},
		{"pipe", "a|b\n1|2\n", '|', []string{"a", "b"}},
		{"single column", "nome\nana\nbia\n", ',', []string{"nome"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tab, err := CSV([]byte(tt.in), "dados.csv", Options{})
			if err != nil {
				t.Fatalf("CSV: %v", err)
			}
			if tab.Delimiter != tt.delim {
				t.Fatalf("delimiter = %q, want %q", tab.Delimiter, tt.delim)
			}
			if got := tab.Frame.ColumnNames(); !reflect.DeepEqual(got, tt.cols) {
				t.Fatalf("columns = %v, want %v", got, tt.cols)
			}
			if tab.Frame.Name != "dados" {
				t.Fatalf("frame name = %q", tab.Frame.Name)
			}
		})
	}
}

func TestCSVLatin1AndHeaders(t *testing.T) {
	t.Parallel()

	in := []byte("Descri\xe7\xe3o; ;qtd;qtd\nCaf\xe9;x;2\n")
	tab, err := CSV(in, "itens.csv", Options{})
	if err != nil {
		t.Fatalf("CSV: %v", err)
	}
	if tab.Encoding != Latin1 {
		t.Fatalf("encoding = %v, want latin1", tab.Encoding)
	}

	f := tab.Frame
	if got, want := f.ColumnNames(), []string{"Descrição", "coluna_2", "qtd", "qtd_2"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("columns = %v, want %v", got, want)
	}
	if f.Rows[0]["qtd_2"] != nil {
		t.Fatalf("short row must be padded with nil: %#v", f.Rows[0])
	}
	if f.Rows[0]["qtd"] != int64(2) {
		t.Fatalf("qtd = %#v, want int64(2)", f.Rows[0]["qtd"])
	}
	if f.Columns[3].Type != frame.Null {
		t.Fatalf("all-nil column type = %v", f.Columns[3].Type)
	}
}

func TestCSVUTF8BOMHeader(t *testing.T) {
	t.Parallel()

	tab, err := CSV([]byte("\xef\xbb\xbf Nome Completo ,valor\nAna,1.5\n"), "x.csv", Options{})
	if err != nil {
		t.Fatalf("CSV: %v", err)
	}
	if got := tab.Frame.ColumnNames(); !reflect.DeepEqual(got, []string{"Nome_Completo", "valor"}) {
		t.Fatalf("columns = %v", got)
	}
	if tab.Frame.Columns[1].Type != frame.Real || tab.Frame.Rows[0]["valor"] != 1.5 {
		t.Fatalf("valor not typed: %v %#v", tab.Frame.Columns[1].Type, tab.Frame.Rows[0]["valor"])
	}
}

func TestCSVFallbackAndExhaustion(t *testing.T) {
	t.Parallel()

	tab, err := CSV([]byte("a,b\n\"x\"y,1\n"), "q.csv", Options{})
	if err != nil {
		t.Fatalf("CSV: %v", err)
	}
	if !tab.Fallback {
		t.Fatalf("bad quoting should only parse in the lazy fallback")
	}

	_, err = CSV(nil, "vazio.csv", Options{})
	if ingesterr.KindOf(err) != ingesterr.KindDecodeExhausted {
		t.Fatalf("empty input: err = %v", err)
	}

	_, err = CSV([]byte("a,b\n1,2,3,4\n"), "largo.csv", Options{})
	if ingesterr.KindOf(err) != ingesterr.KindDecodeExhausted {
		t.Fatalf("wide row: err = %v", err)
	}
}
