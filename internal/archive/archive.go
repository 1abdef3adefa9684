// Package archive expands ZIP uploads into the CSV documents they carry.
package archive

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zip"

	"fiscaletl/internal/ingesterr"
	"fiscaletl/internal/naming"
)

// DefaultMaxEntryBytes caps the uncompressed size of one entry.
const DefaultMaxEntryBytes int64 = 256 << 20

// Entry is one extracted CSV document.
type Entry struct {
	// Name is the entry's base name; directories inside the archive are dropped.
	Name string
	Data []byte
}

// Options configures extraction.
type Options struct {
	// MaxEntryBytes bounds each decompressed entry. Zero means DefaultMaxEntryBytes.
	MaxEntryBytes int64
}

func (o Options) maxEntryBytes() int64 {
	if o.MaxEntryBytes <= 0 {
		return DefaultMaxEntryBytes
	}
	return o.MaxEntryBytes
}

// ExtractCSV returns every non-directory entry whose name ends in ".csv"
// (any case), in archive order. Other entries are skipped. An archive with
// no CSV entries returns an empty slice and no error; the caller decides
// whether that is worth a warning.
//
// Errors:
//   - wraps ingesterr.ErrCorruptArchive when b is not a valid ZIP, an entry
//     cannot be read, or an entry exceeds MaxEntryBytes once decompressed.
func ExtractCSV(b []byte, opt Options) ([]Entry, error) {
	zr, err := zip.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return nil, ingesterr.CorruptArchive(err)
	}

	limit := opt.maxEntryBytes()
	var out []Entry
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !naming.HasExtension(f.Name, ".csv") {
			continue
		}
		data, err := readEntry(f, limit)
		if err != nil {
			return nil, ingesterr.CorruptArchive(fmt.Errorf("%s: %w", f.Name, err))
		}
		out = append(out, Entry{Name: naming.BaseFile(f.Name), Data: data})
	}
	return out, nil
}

func readEntry(f *zip.File, limit int64) ([]byte, error) {
	if f.UncompressedSize64 > uint64(limit) {
		return nil, fmt.Errorf("entry declares %d bytes, limit %d", f.UncompressedSize64, limit)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("entry exceeds %d bytes", limit)
	}
	return data, nil
}
