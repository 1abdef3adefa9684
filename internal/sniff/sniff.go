// Package sniff cleans raw upload bytes and recognizes content that is not
// what its file name claims before any parser sees it.
package sniff

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"fiscaletl/internal/ingesterr"
)

// Format is a recognized non-XML content signature.
type Format int

const (
	FormatNone Format = iota
	FormatHTML
	FormatJSON
	FormatZIP
	FormatPDF
)

func (f Format) String() string {
	switch f {
	case FormatHTML:
		return "HTML"
	case FormatJSON:
		return "JSON"
	case FormatZIP:
		return "ZIP"
	case FormatPDF:
		return "PDF"
	default:
		return "none"
	}
}

// headLen is how many leading bytes DetectFalseFormat inspects.
const headLen = 20

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// StripNoise removes a UTF-8 byte-order mark and, when the bytes before the
// first '<' contain a control character, drops that prefix. The returned
// slice aliases b.
func StripNoise(b []byte) []byte {
	b = bytes.TrimPrefix(b, utf8BOM)
	idx := bytes.IndexByte(b, '<')
	if idx <= 0 {
		return b
	}
	for _, c := range b[:idx] {
		if c > 0 && c < 32 {
			return b[idx:]
		}
	}
	return b
}

// DetectFalseFormat inspects the leading bytes of b for HTML, JSON, ZIP and
// PDF signatures. It does not strip noise; call StripNoise first.
func DetectFalseFormat(b []byte) Format {
	n := len(b)
	if n > headLen {
		n = headLen
	}
	head := bytes.ToLower(bytes.TrimSpace(b[:n]))

	switch {
	case bytes.HasPrefix(head, []byte("<!doctype html")), bytes.HasPrefix(head, []byte("<html")):
		return FormatHTML
	case bytes.HasPrefix(head, []byte("{")), bytes.HasPrefix(head, []byte("[")):
		return FormatJSON
	case bytes.HasPrefix(b, []byte("PK")):
		return FormatZIP
	case bytes.HasPrefix(head, []byte("%pdf")):
		return FormatPDF
	}
	return FormatNone
}

// Result is the tagged outcome of sniffing one document.
type Result struct {
	// Cleaned is the input after StripNoise.
	Cleaned []byte
	// Format is FormatNone when the content may be XML.
	Format Format
}

// Sniff classifies b without failing.
func Sniff(b []byte) Result {
	cleaned := StripNoise(b)
	return Result{Cleaned: cleaned, Format: DetectFalseFormat(cleaned)}
}

// Clean returns the cleaned bytes, or a *ingesterr.FormatMismatchError when
// the content is recognizably another format. For HTML the error detail
// carries the page title when one can be found.
func Clean(b []byte) ([]byte, error) {
	res := Sniff(b)
	if res.Format == FormatNone {
		return res.Cleaned, nil
	}
	err := &ingesterr.FormatMismatchError{Detected: res.Format.String(), Expected: "XML"}
	if res.Format == FormatHTML {
		if title := htmlTitle(res.Cleaned); title != "" {
			err.Detail = "title " + quoteDetail(title)
		}
	}
	return nil, err
}

// maxTitle bounds the page title copied into error messages.
const maxTitle = 80

func htmlTitle(b []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(b))
	if err != nil {
		return ""
	}
	title := strings.Join(strings.Fields(doc.Find("title").First().Text()), " ")
	if r := []rune(title); len(r) > maxTitle {
		title = string(r[:maxTitle]) + "..."
	}
	return title
}

func quoteDetail(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `'`) + `"`
}
