// Package csv reads CSV uploads into the shared dataset model.
package csv

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"chartboard/internal/config"
	"chartboard/internal/dataset"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrEmpty is returned when the input contains no header row.
var ErrEmpty = errors.New("empty csv input")

// decoderFor selects a charset decoder by option name. The default is
// BOM-aware UTF-8, which also transparently handles UTF-16 uploads that
// carry a byte-order mark (spreadsheet exports commonly do).
func decoderFor(name string) transform.Transformer {
	var dec *encoding.Decoder
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "windows-1252", "cp1252":
		dec = charmap.Windows1252.NewDecoder()
	case "iso-8859-1", "latin1":
		dec = charmap.ISO8859_1.NewDecoder()
	default:
		dec = unicode.UTF8.NewDecoder()
	}
	return unicode.BOMOverride(dec)
}

// Read parses CSV bytes into a Dataset.
//
// The first record becomes the column-name list and is excluded from the
// output rows. Rows whose every field is empty are skipped. Cell values
// are strings; empty cells become nil. A record shorter than the header
// leaves the trailing columns nil; extra fields are dropped.
//
// Parsing is all-or-nothing: a malformed record (e.g. an unterminated
// quoted field) fails the whole read.
//
// Options:
//   - comma:       field delimiter (single-character string, default ",")
//   - trim_space:  trim cell edges (default true)
//   - lazy_quotes: tolerate bare quotes (default false)
//   - encoding:    "windows-1252" | "iso-8859-1" (default BOM-aware UTF-8)
func Read(ctx context.Context, src io.Reader, opt config.Options) (*dataset.Dataset, error) {
	comma := opt.Rune("comma", ',')
	trim := opt.Bool("trim_space", true)
	lazy := opt.Bool("lazy_quotes", false)

	r := transform.NewReader(src, decoderFor(opt.String("encoding", "")))

	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.LazyQuotes = lazy
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	hdr, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, ErrEmpty
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	columns := make([]string, len(hdr))
	for i, h := range hdr {
		columns[i] = strings.TrimSpace(h)
	}

	d := &dataset.Dataset{Columns: columns, Rows: make([]dataset.Record, 0, 1024)}

	line := 1
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		rec, err := cr.Read()
		if err == io.EOF {
			return d, nil
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("csv read line %d: %w", line, err)
		}

		row := make(dataset.Record, len(columns))
		empty := true
		for i, col := range columns {
			if i >= len(rec) {
				row[col] = nil
				continue
			}
			v := rec[i]
			if trim {
				v = strings.TrimSpace(v)
			}
			if v == "" {
				row[col] = nil
				continue
			}
			empty = false
			row[col] = v
		}
		if empty {
			continue
		}
		d.Rows = append(d.Rows, row)
	}
}
