package datefields

import (
	"strings"

	"chartboard/internal/dataset"
)

// DefaultSampleRows bounds per-column sampling in InferDateColumns.
const DefaultSampleRows = 200

// ColumnDate describes one column voted date-typed by sampling.
type ColumnDate struct {
	// Layout is the majority time layout observed in the sample.
	Layout string
}

// InferDateColumns samples up to sampleRows non-empty values per column
// and votes each column date or not. A column is date-typed when a
// strict majority of its sampled values parse under the known layouts;
// the winning layout is the most frequent one.
//
// Sampling the column once, instead of re-testing every cell, keeps the
// derived schema identical across all rows even when a stray value in a
// date column happens to look numeric or malformed.
func InferDateColumns(d *dataset.Dataset, sampleRows int) map[string]ColumnDate {
	if sampleRows <= 0 {
		sampleRows = DefaultSampleRows
	}
	out := make(map[string]ColumnDate)
	if d == nil || len(d.Columns) == 0 {
		return out
	}

	for _, col := range d.Columns {
		var (
			seen    int
			parsed  int
			layouts = map[string]int{}
		)
		for _, row := range d.Rows {
			if seen >= sampleRows {
				break
			}
			v, ok := row[col]
			if !ok || v == nil {
				continue
			}
			s, ok := v.(string)
			if !ok {
				// Spreadsheet-typed numbers are never dates here.
				seen++
				continue
			}
			if strings.TrimSpace(s) == "" {
				continue
			}
			seen++
			if _, lay, ok := ParseDate(s); ok {
				parsed++
				layouts[lay]++
			}
		}
		if seen == 0 || parsed*2 <= seen {
			continue
		}

		best := ""
		bestN := 0
		for lay, n := range layouts {
			if n > bestN {
				best = lay
				bestN = n
			}
		}
		out[col] = ColumnDate{Layout: best}
	}
	return out
}

// ExpandDataset rewrites d in place: every date-typed column (per
// InferDateColumns) is replaced, at its position in the column list, by
// its six derived columns, and every row's value for that column is
// replaced by the derived values. Cells that fail to parse simply leave
// the derived values absent for that row; the original key is deleted
// regardless, so no date-typed source column survives.
func ExpandDataset(d *dataset.Dataset, sampleRows int) {
	if d == nil {
		return
	}
	cols := InferDateColumns(d, sampleRows)
	if len(cols) == 0 {
		return
	}

	columns := make([]string, 0, len(d.Columns)+5*len(cols))
	for _, col := range d.Columns {
		if _, ok := cols[col]; ok {
			columns = append(columns, DerivedColumns(col)...)
			continue
		}
		columns = append(columns, col)
	}
	d.Columns = columns

	for _, row := range d.Rows {
		for col, cd := range cols {
			v, ok := row[col]
			delete(row, col)
			if !ok || v == nil {
				continue
			}
			s, ok := v.(string)
			if !ok {
				continue
			}
			if t, ok := parseWithLayout(s, cd.Layout); ok {
				setDerived(row, col, t)
			}
		}
	}
}
