package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"fiscaletl/internal/frame"
	"fiscaletl/internal/metrics"
	"fiscaletl/internal/naming"
	"fiscaletl/internal/storage"
)

// Writer is the part of storage.Sink the batch needs. WriteFrames must store
// all frames of one call atomically.
type Writer interface {
	WriteFrames(ctx context.Context, frames []*frame.Frame, mode storage.Mode) ([]int64, error)
}

// TableReport is one frame produced for a file.
type TableReport struct {
	Name    string `json:"name"`
	Rows    int64  `json:"rows"`
	Columns int    `json:"columns"`
}

// FileReport is the outcome for one upload.
type FileReport struct {
	Name     string        `json:"name"`
	Shape    string        `json:"shape"`
	Tables   []TableReport `json:"tables,omitempty"`
	Warnings []string      `json:"warnings,omitempty"`
	// Errors holds one human-readable message per failure: the file itself
	// or, for archives, each entry that could not be read.
	Errors []string `json:"errors,omitempty"`
	// Err is the fatal error for the file, nil when it produced output.
	Err error `json:"-"`
}

// Failed reports whether the file produced no tables because of an error.
func (r FileReport) Failed() bool { return r.Err != nil }

// Report summarizes one batch.
type Report struct {
	ID       uuid.UUID     `json:"id"`
	Mode     string        `json:"mode"`
	DryRun   bool          `json:"dry_run"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Files    []FileReport  `json:"files"`
}

// Failed returns the number of files that failed outright.
func (r *Report) Failed() int {
	n := 0
	for _, f := range r.Files {
		if f.Failed() {
			n++
		}
	}
	return n
}

// Messages returns every error message of the batch in file order.
func (r *Report) Messages() []string {
	var out []string
	for _, f := range r.Files {
		out = append(out, f.Errors...)
	}
	return out
}

// Batch processes uploads in order and writes their frames to w.
//
// Each file is isolated: a failure is recorded on its FileReport and the
// next file is processed. Frames of a file are written only after the whole
// file was converted, in one WriteFrames call, so a failed file leaves none
// of its tables behind. A nil w is a dry run; frames are built and counted but
// not stored.
//
// Edge cases:
//   - In Replace mode a table produced twice in one batch keeps the last
//     version; the later file gets a warning.
//   - A cancelled ctx marks the remaining files failed with ctx.Err().
func (e *Engine) Batch(ctx context.Context, uploads []Upload, w Writer, mode storage.Mode) *Report {
	rep := &Report{
		ID:      uuid.New(),
		Mode:    mode.String(),
		DryRun:  w == nil,
		Started: time.Now(),
	}
	owners := map[string]string{}

	for _, u := range uploads {
		fr := e.one(ctx, u, w, mode, owners)
		rep.Files = append(rep.Files, fr)

		outcome := "ok"
		if fr.Failed() {
			outcome = "failed"
			e.logf("ingest: batch %s: %s failed: %s", rep.ID, u.Name, describe(fr.Err))
		} else {
			e.logf("ingest: batch %s: %s ok shape=%s tables=%d warnings=%d", rep.ID, u.Name, fr.Shape, len(fr.Tables), len(fr.Warnings))
		}
		metrics.RecordFile(outcome, fr.Shape)
	}

	rep.Duration = time.Since(rep.Started)
	metrics.RecordBatch()
	e.logf("ingest: batch %s done files=%d failed=%d in %s", rep.ID, len(rep.Files), rep.Failed(), rep.Duration.Round(time.Millisecond))
	return rep
}

func (e *Engine) one(ctx context.Context, u Upload, w Writer, mode storage.Mode, owners map[string]string) FileReport {
	fr := FileReport{Name: naming.BaseFile(u.Name), Shape: ShapeUnknown}
	fail := func(err error) FileReport {
		fr.Err = err
		fr.Errors = append(fr.Errors, fmt.Sprintf("%s: %v", fr.Name, err))
		return fr
	}

	res, err := e.File(ctx, u)
	if err != nil {
		return fail(err)
	}
	fr.Shape = res.Shape
	fr.Warnings = append(fr.Warnings, res.Warnings...)
	for _, f := range res.Failures {
		fr.Errors = append(fr.Errors, f.Message())
	}

	for _, f := range res.Frames {
		if prev, ok := owners[f.Name]; ok && prev != fr.Name && mode == storage.Replace {
			fr.Warnings = append(fr.Warnings, fmt.Sprintf("%s: table %s replaces the one written for %s", fr.Name, f.Name, prev))
		}
	}

	counts := make([]int64, len(res.Frames))
	for i, f := range res.Frames {
		counts[i] = int64(f.Len())
	}
	if w != nil && len(res.Frames) > 0 {
		err := timed("write", func() (err error) {
			counts, err = w.WriteFrames(ctx, res.Frames, mode)
			return err
		})
		if err != nil {
			return fail(fmt.Errorf("write: %w", err))
		}
	}
	for i, f := range res.Frames {
		owners[f.Name] = fr.Name
		metrics.RecordRows(rowKind(res.Shape, f.Name), counts[i])
		fr.Tables = append(fr.Tables, TableReport{Name: f.Name, Rows: counts[i], Columns: len(f.Columns)})
	}

	// An archive whose entries all failed produced nothing.
	if len(res.Frames) == 0 && len(res.Failures) > 0 {
		fr.Err = fmt.Errorf("no entry of %s could be read", fr.Name)
	}
	return fr
}

func rowKind(shape, table string) string {
	switch {
	case strings.HasSuffix(table, "_cabecalho"):
		return "header"
	case strings.HasSuffix(table, "_itens"):
		return "items"
	}
	return shape
}
