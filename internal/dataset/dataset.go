// Package dataset defines the flat record model shared by the parsers,
// the date-expansion pass, the transport encoder, and the aggregation
// engine.
package dataset

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Record is one flat row of named scalar values. Values are strings,
// numbers, booleans, or nil for absent cells.
type Record map[string]any

// Dataset is an ordered record set plus its header-order column list.
// All rows nominally share the column set; individual values may be nil
// or absent.
type Dataset struct {
	Columns []string
	Rows    []Record
}

// ColumnNames returns the header-order column list. The result is a copy;
// an empty dataset yields an empty, non-nil slice.
func (d *Dataset) ColumnNames() []string {
	if d == nil || len(d.Columns) == 0 {
		return []string{}
	}
	return append([]string(nil), d.Columns...)
}

// Columns lists the keys of the first record, sorted for determinism.
// It intentionally does NOT union keys across records: the first record
// is assumed to carry the full column set. An empty input yields an
// empty, non-nil slice.
//
// Callers holding a Dataset should prefer ColumnNames, which preserves
// true header order.
func Columns(rows []Record) []string {
	if len(rows) == 0 {
		return []string{}
	}
	out := make([]string, 0, len(rows[0]))
	for k := range rows[0] {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Number coerces a scalar value to float64. The second return reports
// whether the coercion succeeded. nil, empty strings, and non-numeric
// text all fail.
func Number(v any) (float64, bool) {
	switch t := v.(type) {
	case nil:
		return 0, false
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint64:
		return float64(t), true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	case interface{ Float64() (float64, error) }: // json.Number
		f, err := t.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Key renders a scalar value as a stable string, used for bucket and
// output-field keys. Numbers drop a trailing ".0" so spreadsheet-typed
// integers and CSV text agree.
func Key(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case bool:
		if t {
			return "true"
		}
		return "false"
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		// Sample-bounded; acceptable fallback.
		return strings.TrimSpace(fmt.Sprint(t))
	}
}
