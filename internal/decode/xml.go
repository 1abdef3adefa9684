package decode

import (
	"bytes"
	"io"
	"strings"

	"golang.org/x/net/html/charset"

	"fiscaletl/internal/ingesterr"
	"fiscaletl/internal/xmltree"
)

// XML parses cleaned document bytes into a tree.
//
// The Native attempt honors the document's encoding declaration. Every other
// attempt first converts the bytes to UTF-8 (lossy) and then ignores the
// declaration, since the text no longer matches it.
//
// Errors:
//   - *ingesterr.DecodeExhaustedError when every attempt fails; Last holds the
//     error of the final attempt.
func XML(b []byte, opt Options) (xmltree.Node, error) {
	encs := opt.encodings()
	node, err := TryEach(encs, func(enc Encoding) (xmltree.Node, error) {
		if enc == Native {
			return xmltree.Parse(bytes.NewReader(b), xmltree.Options{CharsetReader: charset.NewReaderLabel})
		}
		return xmltree.Parse(strings.NewReader(enc.Lossy(b)), xmltree.Options{CharsetReader: passThrough})
	})
	if err != nil {
		return nil, &ingesterr.DecodeExhaustedError{What: "XML", Attempts: len(encs), Last: err}
	}
	return node, nil
}

func passThrough(_ string, input io.Reader) (io.Reader, error) {
	return input, nil
}
