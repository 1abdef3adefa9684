package decode

// Options configures both decode paths. The zero value uses the defaults.
type Options struct {
	// Encodings is the ordered list of attempts. Empty means DefaultEncodings.
	Encodings []Encoding

	// Delimiters are the CSV separators considered by auto-detection.
	// Empty means DefaultDelimiters.
	Delimiters []rune

	// LazyQuotes relaxes quote handling in CSV fields.
	LazyQuotes bool

	// SampleLines bounds how many records delimiter detection reads.
	// Zero means 20.
	SampleLines int
}

// DefaultDelimiters are the CSV separators seen in fiscal exports.
var DefaultDelimiters = []rune{',', ';', '\t', '|'}

func (o Options) encodings() []Encoding {
	if len(o.Encodings) == 0 {
		return DefaultEncodings
	}
	return o.Encodings
}

func (o Options) delimiters() []rune {
	if len(o.Delimiters) == 0 {
		return DefaultDelimiters
	}
	return o.Delimiters
}

func (o Options) sampleLines() int {
	if o.SampleLines <= 0 {
		return 20
	}
	return o.SampleLines
}
