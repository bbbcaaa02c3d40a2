// Package datefields detects calendar-date values in flat records and
// replaces them with a fixed set of derived calendar columns.
//
// Two modes exist:
//
//   - ExpandRecord applies per-cell detection to one record, independent
//     of every other record.
//   - ExpandDataset (infer.go) samples each column once, majority-votes a
//     type and layout, and expands date-typed columns consistently across
//     all rows.
//
// The service pipeline uses ExpandDataset so derived columns are
// schema-consistent; ExpandRecord remains the library-level primitive.
package datefields

import (
	"strconv"
	"strings"
	"time"
)

// Derived column suffixes, in output order.
var derivedSuffixes = [6]string{"_year", "_month", "_day", "_hour", "_date", "_day_of_week"}

var dateLayouts = []string{
	"2006-01-02",
	"02.01.2006",
	"02/01/2006",
	"01/02/2006",
}

var tsLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05.000Z07:00",
	"02.01.2006 15:04:05",
}

// ParseDate parses s as a calendar date or timestamp under the known
// layouts. Plain integers and decimals are rejected first so that
// numeric columns are never misread as epoch-like dates.
func ParseDate(s string) (time.Time, string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, "", false
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Time{}, "", false
	}
	for _, lay := range dateLayouts {
		if t, err := time.Parse(lay, s); err == nil {
			return t, lay, true
		}
	}
	for _, lay := range tsLayouts {
		if t, err := time.Parse(lay, s); err == nil {
			return t, lay, true
		}
	}
	return time.Time{}, "", false
}

// parseWithLayout tries the column's voted layout first, then the full
// layout list. Cells that deviate from the column layout still expand.
func parseWithLayout(s, layout string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if layout != "" {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	t, _, ok := ParseDate(s)
	return t, ok
}

// DerivedColumns returns the six derived column names for source column
// key, in output order: year, month, day, hour, date, day_of_week.
func DerivedColumns(key string) []string {
	out := make([]string, len(derivedSuffixes))
	for i, suf := range derivedSuffixes {
		out[i] = key + suf
	}
	return out
}

// setDerived writes the six derived values for t under key's derived
// names. Month, day, and hour are zero-padded; the weekday name is the
// full English name.
func setDerived(rec map[string]any, key string, t time.Time) {
	rec[key+"_year"] = strconv.Itoa(t.Year())
	rec[key+"_month"] = pad2(int(t.Month()))
	rec[key+"_day"] = pad2(t.Day())
	rec[key+"_hour"] = pad2(t.Hour())
	rec[key+"_date"] = t.Format("2006-01-02")
	rec[key+"_day_of_week"] = t.Weekday().String()
}

func pad2(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}

// ExpandRecord replaces every date-parseable string field of rec with
// the six derived fields and deletes the original key. Non-date fields,
// nil values, and empty strings are left untouched. The transform is
// deterministic and independent of key iteration order: detection
// depends only on each field's own value.
//
// Re-running ExpandRecord on a record with no remaining date-parseable
// fields is a no-op.
func ExpandRecord(rec map[string]any) {
	var expand []string
	var times []time.Time
	for k, v := range rec {
		s, ok := v.(string)
		if !ok {
			continue
		}
		t, _, ok := ParseDate(s)
		if !ok {
			continue
		}
		expand = append(expand, k)
		times = append(times, t)
	}
	for i, k := range expand {
		delete(rec, k)
		setDerived(rec, k, times[i])
	}
}
