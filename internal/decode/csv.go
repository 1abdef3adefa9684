package decode

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"fiscaletl/internal/frame"
	"fiscaletl/internal/ingesterr"
	"fiscaletl/internal/naming"
)

// Table is a decoded CSV document plus how it was read.
type Table struct {
	Frame     *frame.Frame
	Encoding  Encoding
	Delimiter rune
	// Fallback is true when only the last-resort comma/UTF-8 parse worked.
	Fallback bool
}

var (
	errEmptyCSV    = errors.New("no header row")
	errNoDelimiter = errors.New("could not determine delimiter")
)

// CSV decodes b into a frame named after name.
//
// Each encoding attempt decodes the bytes strictly, detects the delimiter
// among Options.Delimiters and parses the whole document. When every attempt
// fails a final comma-separated, lossy UTF-8 parse with lazy quotes is tried;
// its error is terminal.
//
// Header names are trimmed, stripped of a BOM and whitespace-normalized; blank
// names become coluna_N (1-based) and duplicates get _2, _3 suffixes. Short
// rows are padded with nil; rows with extra non-empty fields fail the attempt.
// Empty cells are nil. Column types are inferred with frame.InferTypes.
//
// Errors:
//   - *ingesterr.DecodeExhaustedError when the fallback parse fails too.
func CSV(b []byte, name string, opt Options) (*Table, error) {
	encs := opt.encodings()
	table := naming.TableName(name)

	t, err := TryEach(encs, func(enc Encoding) (*Table, error) {
		text, err := enc.Strict(b)
		if err != nil {
			return nil, err
		}
		delim, err := detectDelimiter(text, opt)
		if err != nil {
			return nil, err
		}
		f, err := readFrame(text, table, delim, opt.LazyQuotes)
		if err != nil {
			return nil, err
		}
		return &Table{Frame: f, Encoding: enc, Delimiter: delim}, nil
	})
	if err == nil {
		return t, nil
	}

	f, ferr := readFrame(UTF8.Lossy(b), table, ',', true)
	if ferr != nil {
		return nil, &ingesterr.DecodeExhaustedError{
			What:     "CSV",
			Attempts: len(encs) + 1,
			Last:     fmt.Errorf("fallback: %w (before: %v)", ferr, err),
		}
	}
	return &Table{Frame: f, Encoding: UTF8, Delimiter: ',', Fallback: true}, nil
}

// detectDelimiter scores every candidate over the first records and keeps the
// best one. A candidate scores zero unless it splits the header; otherwise the
// score is the header width weighted by the share of sampled records with the
// same width. Ties go to the earlier candidate. When nothing splits the header
// the document is single-column and the first candidate is returned.
func detectDelimiter(text string, opt Options) (rune, error) {
	cands := opt.delimiters()
	var (
		best      rune
		bestScore float64
		parsed    bool
	)
	for _, d := range cands {
		score, ok := delimiterScore(text, d, opt.sampleLines(), opt.LazyQuotes)
		if ok {
			parsed = true
		}
		if score > bestScore {
			best, bestScore = d, score
		}
	}
	if !parsed {
		return 0, errNoDelimiter
	}
	if best == 0 {
		return cands[0], nil
	}
	return best, nil
}

func delimiterScore(text string, d rune, limit int, lazy bool) (float64, bool) {
	r := newReader(text, d, lazy)
	hdr, err := r.Read()
	if err != nil {
		return 0, false
	}
	if len(hdr) < 2 {
		return 0, true
	}

	total, same := 1, 1
	for i := 0; i < limit; i++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, true
		}
		total++
		if len(rec) == len(hdr) {
			same++
		}
	}
	return float64(len(hdr)) * float64(same) / float64(total), true
}

func newReader(text string, d rune, lazy bool) *csv.Reader {
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = d
	r.FieldsPerRecord = -1
	r.LazyQuotes = lazy
	return r
}

func readFrame(text, table string, d rune, lazy bool) (*frame.Frame, error) {
	r := newReader(text, d, lazy)

	hdr, err := r.Read()
	if err == io.EOF {
		return nil, errEmptyCSV
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	cols := headerNames(hdr)
	f, err := frame.New(table, cols...)
	if err != nil {
		return nil, err
	}

	line := 1
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("csv read: %w", err)
		}
		if len(rec) > len(cols) && !blankTail(rec[len(cols):]) {
			return nil, fmt.Errorf("line %d: expected %d fields, saw %d", line, len(cols), len(rec))
		}

		values := make(map[string]any, len(cols))
		for i, c := range cols {
			if i >= len(rec) {
				break
			}
			if v := strings.TrimSpace(rec[i]); v != "" {
				values[c] = v
			}
		}
		if err := f.Append(values); err != nil {
			return nil, err
		}
	}

	frame.InferTypes(f)
	return f, nil
}

func headerNames(hdr []string) []string {
	out := make([]string, len(hdr))
	used := make(map[string]bool, len(hdr))
	for i, h := range hdr {
		h = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(h), "\uFEFF"))
		h = naming.ColumnName(h)
		if h == "" {
			h = fmt.Sprintf("coluna_%d", i+1)
		}
		name := h
		for n := 2; used[name]; n++ {
			name = fmt.Sprintf("%s_%d", h, n)
		}
		used[name] = true
		out[i] = name
	}
	return out
}

func blankTail(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
