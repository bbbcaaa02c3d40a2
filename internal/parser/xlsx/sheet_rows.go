// Package xlsx reads spreadsheet uploads (first sheet only) into the
// shared dataset model.
package xlsx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"chartboard/internal/config"
	"chartboard/internal/dataset"

	"github.com/xuri/excelize/v2"
)

// ErrNoSheets is returned for workbooks without any sheet.
var ErrNoSheets = errors.New("no sheets found in workbook")

// ErrEmptySheet is returned when the first sheet has no header row.
var ErrEmptySheet = errors.New("first sheet is empty")

// Read parses the first sheet of an XLSX workbook into a Dataset.
//
// The first non-empty row is consumed as the column-name list. Rows
// whose every cell is empty are skipped. Numeric-looking cells become
// float64 to preserve the spreadsheet's own typing; everything else is
// text; empty cells are nil.
//
// Options:
//   - infer_numbers: coerce numeric cells to float64 (default true)
func Read(ctx context.Context, r io.Reader, opt config.Options) (*dataset.Dataset, error) {
	inferNumbers := opt.Bool("infer_numbers", true)

	wb, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoSheets
	}
	sheet := sheets[0]

	iter, err := wb.Rows(sheet)
	if err != nil {
		return nil, fmt.Errorf("open rows for sheet %s: %w", sheet, err)
	}
	defer iter.Close()

	var (
		d     *dataset.Dataset
		first = true
	)

	for iter.Next() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		cells, err := iter.Columns()
		if err != nil {
			return nil, fmt.Errorf("read row in sheet %s: %w", sheet, err)
		}

		if first {
			// Skip leading empty rows before the header.
			if allEmpty(cells) {
				continue
			}
			columns := make([]string, len(cells))
			for i, c := range cells {
				columns[i] = strings.TrimSpace(c)
			}
			d = &dataset.Dataset{Columns: columns, Rows: make([]dataset.Record, 0, 1024)}
			first = false
			continue
		}

		if allEmpty(cells) {
			continue
		}

		row := make(dataset.Record, len(d.Columns))
		for i, col := range d.Columns {
			if i >= len(cells) {
				row[col] = nil
				continue
			}
			row[col] = cellValue(cells[i], inferNumbers)
		}
		d.Rows = append(d.Rows, row)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("iterate sheet %s: %w", sheet, err)
	}

	if d == nil {
		return nil, ErrEmptySheet
	}
	return d, nil
}

func allEmpty(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// cellValue mirrors the sheet's own typing: numbers stay numbers, text
// stays text, empties are nil.
func cellValue(s string, inferNumbers bool) any {
	v := strings.TrimSpace(s)
	if v == "" {
		return nil
	}
	if inferNumbers {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return v
}
