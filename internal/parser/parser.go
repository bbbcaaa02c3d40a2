// Package parser converts raw upload bytes into an ordered dataset.
//
// Parsing is all-or-nothing per file: any structural failure from the
// underlying decoder aborts with a *ParseError and no partial rows are
// returned. Format is chosen by file extension (.csv, .xlsx, .xls).
package parser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"chartboard/internal/config"
	"chartboard/internal/dataset"
	"chartboard/internal/parser/csv"
	"chartboard/internal/parser/xlsx"
)

// Format identifies a supported tabular input format.
type Format string

const (
	FormatCSV         Format = "csv"
	FormatSpreadsheet Format = "spreadsheet"
)

// ParseError wraps any structural parse failure. Callers branch on it to
// distinguish bad input (HTTP 400) from processing failures (HTTP 500).
type ParseError struct {
	Format string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Format == "" {
		return fmt.Sprintf("parse: %v", e.Err)
	}
	return fmt.Sprintf("parse %s: %v", e.Format, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ErrEmptyFile is returned (wrapped in a ParseError) for zero-byte input.
var ErrEmptyFile = errors.New("empty file")

// DetectFormat maps a filename extension to a Format. Unrecognized
// extensions return a *ParseError.
func DetectFormat(filename string) (Format, error) {
	switch strings.ToLower(path.Ext(filename)) {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx", ".xls":
		return FormatSpreadsheet, nil
	default:
		return "", &ParseError{Err: fmt.Errorf("unsupported file extension %q", path.Ext(filename))}
	}
}

// ParseFile parses the named upload into a Dataset. The header row is
// consumed as the column-name source; empty rows are skipped; row order
// matches file order.
func ParseFile(ctx context.Context, r io.Reader, filename string, opt config.Options) (*dataset.Dataset, error) {
	format, err := DetectFormat(filename)
	if err != nil {
		return nil, err
	}
	return Parse(ctx, r, format, opt)
}

// Parse parses r as the given format.
func Parse(ctx context.Context, r io.Reader, format Format, opt config.Options) (*dataset.Dataset, error) {
	if opt == nil {
		opt = config.Options{}
	}

	var (
		d   *dataset.Dataset
		err error
	)
	switch format {
	case FormatCSV:
		d, err = csv.Read(ctx, r, opt)
	case FormatSpreadsheet:
		d, err = xlsx.Read(ctx, r, opt)
	default:
		return nil, &ParseError{Err: fmt.Errorf("unknown format %q", format)}
	}
	if err != nil {
		// Cancellation is not a malformed file.
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, &ParseError{Format: string(format), Err: err}
	}
	return d, nil
}
