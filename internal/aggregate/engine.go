// Package aggregate groups records by a category key (and an optional
// secondary group-by key) and reduces each bucket's numeric values.
//
// Aggregate is a pure function: the same inputs always produce the same
// output and no state is kept between calls, so callers may re-run it on
// every control change without coordination.
package aggregate

import (
	"chartboard/internal/dataset"
)

// Operation identifiers. Unrecognized identifiers fall back to OpCount.
const (
	OpCount   = "count"
	OpSum     = "sum"
	OpAverage = "average"
	OpMin     = "min"
	OpMax     = "max"
)

// groupSentinel keys the implicit single group when no group-by column
// is selected. NUL is not a plausible column value.
const groupSentinel = "\x00"

// Params selects the aggregation inputs.
type Params struct {
	// Category is the grouping/x-axis column.
	Category string
	// Value is the column reduced within each bucket.
	Value string
	// Op is one of the Op* identifiers; anything else counts.
	Op string
	// GroupBy optionally splits each category into sub-series.
	GroupBy string
}

// Options are the leniency knobs.
type Options struct {
	// NonNumericAsOne makes values that fail numeric coercion contribute
	// 1 to their bucket instead of being skipped. This is the documented
	// historical behavior and the default.
	NonNumericAsOne bool
}

// DefaultOptions returns the documented lenient behavior.
func DefaultOptions() Options {
	return Options{NonNumericAsOne: true}
}

type bucket struct {
	values []float64
}

// Aggregate partitions rows into (category, group) buckets and reduces
// each to one scalar.
//
// The output holds one record per distinct category value, in
// key-encounter order. Each record carries the category value (as text)
// under the category key, plus one numeric field per group value
// observed for that category; the field name is the group value, or the
// value-column name when no group-by is active. Groups with no
// observation for a category are absent, never zero-filled.
//
// Empty input or an empty category/value selection yields an empty,
// non-nil slice.
func Aggregate(rows []dataset.Record, p Params, opt Options) []dataset.Record {
	if len(rows) == 0 || p.Category == "" || p.Value == "" {
		return []dataset.Record{}
	}

	type catState struct {
		groups   map[string]*bucket
		groupSeq []string
	}

	byCat := make(map[string]*catState)
	var catSeq []string

	for _, row := range rows {
		cat := dataset.Key(row[p.Category])

		group := groupSentinel
		if p.GroupBy != "" {
			group = dataset.Key(row[p.GroupBy])
		}

		cs, ok := byCat[cat]
		if !ok {
			cs = &catState{groups: make(map[string]*bucket)}
			byCat[cat] = cs
			catSeq = append(catSeq, cat)
		}
		b, ok := cs.groups[group]
		if !ok {
			b = &bucket{}
			cs.groups[group] = b
			cs.groupSeq = append(cs.groupSeq, group)
		}

		n, ok := dataset.Number(row[p.Value])
		if !ok {
			if !opt.NonNumericAsOne {
				continue
			}
			n = 1
		}
		b.values = append(b.values, n)
	}

	out := make([]dataset.Record, 0, len(catSeq))
	for _, cat := range catSeq {
		cs := byCat[cat]
		rec := dataset.Record{p.Category: cat}
		for _, group := range cs.groupSeq {
			b := cs.groups[group]
			if len(b.values) == 0 {
				continue
			}
			field := group
			if field == groupSentinel {
				field = p.Value
			}
			rec[field] = reduce(p.Op, b.values)
		}
		out = append(out, rec)
	}
	return out
}

func reduce(op string, values []float64) float64 {
	switch op {
	case OpSum:
		return sum(values)
	case OpAverage:
		return sum(values) / float64(len(values))
	case OpMax:
		m := values[0]
		for _, v := range values[1:] {
			if v > m {
				m = v
			}
		}
		return m
	case OpMin:
		m := values[0]
		for _, v := range values[1:] {
			if v < m {
				m = v
			}
		}
		return m
	default: // count, and any unrecognized operation
		return float64(len(values))
	}
}

func sum(values []float64) float64 {
	var s float64
	for _, v := range values {
		s += v
	}
	return s
}
