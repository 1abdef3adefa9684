// Package ingest turns uploaded files into table frames and writes them to a
// sink, one file at a time.
//
// A file is dispatched by extension: .zip archives expand to their CSV
// entries, .xml documents are sniffed, decoded and classified (shipment,
// fiscal note, or anything else flattened to one row), and every other
// extension goes through the CSV decoder. A file either yields its complete
// set of frames or an error; Batch isolates failures per file.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fiscaletl/internal/archive"
	"fiscaletl/internal/config"
	"fiscaletl/internal/decode"
	"fiscaletl/internal/flatten"
	"fiscaletl/internal/frame"
	"fiscaletl/internal/ingesterr"
	"fiscaletl/internal/metrics"
	"fiscaletl/internal/naming"
	"fiscaletl/internal/shape"
	"fiscaletl/internal/sniff"
	"fiscaletl/internal/synth"
	"fiscaletl/internal/xmltree"
)

// Logger is the minimal logging surface used by the engine.
type Logger interface {
	Printf(format string, v ...any)
}

// Shape names recorded on results, reports and metrics.
const (
	ShapeFiscalNote = "fiscal_note"
	ShapeShipment   = "shipment"
	ShapeFlat       = "flat"
	ShapeCSV        = "csv"
	ShapeArchive    = "archive"
	ShapeUnknown    = "unknown"
)

// Upload is one named file as received.
type Upload struct {
	Name string
	Data []byte
}

// Failure is a non-fatal failure of one archive entry.
type Failure struct {
	Name string
	Err  error
}

// Message renders the failure for people: "<name>: <cause>".
func (f Failure) Message() string { return f.Name + ": " + f.Err.Error() }

// Result is what File produced for one upload.
type Result struct {
	Shape    string
	Frames   []*frame.Frame
	Warnings []string
	// Failures lists archive entries that could not be decoded. Other
	// entries of the same archive still produce frames.
	Failures []Failure
}

// Engine holds the options for every stage. The zero value uses defaults.
type Engine struct {
	Decode  decode.Options
	Flatten flatten.Options
	Archive archive.Options
	Logger  Logger
}

// New builds an engine from the ingest section of the configuration.
func New(c config.Ingest, log Logger) (*Engine, error) {
	e := &Engine{
		Decode:  decode.Options{LazyQuotes: c.LazyQuotes},
		Flatten: flatten.Options{Separator: c.FlattenSeparator, MaxDepth: c.FlattenMaxDepth},
		Archive: archive.Options{MaxEntryBytes: c.MaxEntryBytes},
		Logger:  log,
	}
	for _, name := range c.Encodings {
		enc, err := decode.ParseEncoding(name)
		if err != nil {
			return nil, fmt.Errorf("ingest: %w", err)
		}
		e.Decode.Encodings = append(e.Decode.Encodings, enc)
	}
	for _, d := range c.Delimiters {
		r, err := config.ParseDelimiter(d)
		if err != nil {
			return nil, fmt.Errorf("ingest: %w", err)
		}
		e.Decode.Delimiters = append(e.Decode.Delimiters, r)
	}
	return e, nil
}

func (e *Engine) logf(format string, v ...any) {
	if e.Logger != nil {
		e.Logger.Printf(format, v...)
	}
}

// File converts one upload into frames. Table names derive from the base
// name of u.Name, so "exports/vendas.csv" and "vendas.csv" both yield vendas.
//
// Errors:
//   - *ingesterr.FormatMismatchError for XML files that are really HTML,
//     JSON, ZIP or PDF.
//   - *ingesterr.DecodeExhaustedError when no decode strategy worked.
//   - an error wrapping ingesterr.ErrCorruptArchive for invalid ZIPs.
//   - flatten.ErrNoColumns for an XML document with nothing to flatten.
func (e *Engine) File(ctx context.Context, u Upload) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// Tables are named after the file, never after the directory it came from.
	u.Name = naming.BaseFile(u.Name)
	switch {
	case naming.HasExtension(u.Name, ".zip"):
		return e.expand(u)
	case naming.HasExtension(u.Name, ".xml"):
		return e.xml(u)
	default:
		return e.csv(u.Name, u.Data)
	}
}

func (e *Engine) xml(u Upload) (*Result, error) {
	var cleaned []byte
	err := timed("sniff", func() (err error) {
		cleaned, err = sniff.Clean(u.Data)
		return err
	})
	if err != nil {
		return nil, err
	}

	var tree xmltree.Node
	if err := timed("decode_xml", func() (err error) {
		tree, err = decode.XML(cleaned, e.Decode)
		return err
	}); err != nil {
		return nil, err
	}

	cls := shape.Classify(tree)
	res := &Result{}
	err = timed("synthesize", func() (err error) {
		switch cls.Tag {
		case shape.Shipment:
			res.Shape = ShapeShipment
			res.Frames, err = synth.Shipment(cls.Root, u.Name)
		case shape.FiscalNote:
			res.Shape = ShapeFiscalNote
			res.Frames, err = synth.FiscalNote(cls.Root, u.Name)
		default:
			res.Shape = ShapeFlat
			var f *frame.Frame
			f, err = flatten.Frame(tree, naming.TableName(u.Name), e.Flatten)
			if err == nil {
				res.Frames = []*frame.Frame{f}
			}
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (e *Engine) csv(name string, data []byte) (*Result, error) {
	var t *decode.Table
	if err := timed("decode_csv", func() (err error) {
		t, err = decode.CSV(data, name, e.Decode)
		return err
	}); err != nil {
		return nil, err
	}

	res := &Result{Shape: ShapeCSV, Frames: []*frame.Frame{t.Frame}}
	if t.Fallback {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%s: read with the lenient UTF-8 comma fallback; some characters may be replaced", naming.BaseFile(name)))
	}
	return res, nil
}

func (e *Engine) expand(u Upload) (*Result, error) {
	var entries []archive.Entry
	if err := timed("expand", func() (err error) {
		entries, err = archive.ExtractCSV(u.Data, e.Archive)
		return err
	}); err != nil {
		return nil, err
	}

	res := &Result{Shape: ShapeArchive}
	if len(entries) == 0 {
		res.Warnings = append(res.Warnings, naming.BaseFile(u.Name)+": "+ingesterr.ErrEmptyArchive.Error())
		return res, nil
	}

	tables := map[string]string{}
	for _, ent := range entries {
		sub, err := e.csv(ent.Name, ent.Data)
		if err != nil {
			res.Failures = append(res.Failures, Failure{Name: naming.BaseFile(u.Name) + "/" + ent.Name, Err: err})
			continue
		}
		res.Warnings = append(res.Warnings, sub.Warnings...)
		for _, f := range sub.Frames {
			if prev, dup := tables[f.Name]; dup {
				res.Warnings = append(res.Warnings, fmt.Sprintf("%s: entries %s and %s both map to table %s", naming.BaseFile(u.Name), prev, ent.Name, f.Name))
			}
			tables[f.Name] = ent.Name
			res.Frames = append(res.Frames, f)
		}
	}
	return res, nil
}

// timed runs fn and records it as one pipeline step.
func timed(step string, fn func() error) error {
	start := time.Now()
	err := fn()
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.RecordStep(step, status, time.Since(start))
	return err
}

// describe renders err with its kind for logs.
func describe(err error) string {
	if k := ingesterr.KindOf(err); k != ingesterr.KindUnknown {
		return k.String() + ": " + err.Error()
	}
	if errors.Is(err, flatten.ErrNoColumns) {
		return "empty_document: " + err.Error()
	}
	return err.Error()
}
