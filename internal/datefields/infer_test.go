package datefields

import (
	"reflect"
	"testing"

	"chartboard/internal/dataset"
)

func TestInferDateColumnsMajorityVote(t *testing.T) {
	d := &dataset.Dataset{
		Columns: []string{"when", "amount", "note"},
		Rows: []dataset.Record{
			{"when": "2024-01-01", "amount": "10", "note": "x"},
			{"when": "2024-01-02", "amount": "20", "note": "2024-05-05"},
			{"when": "oops", "amount": "30", "note": "y"},
		},
	}
	got := InferDateColumns(d, 0)
	if len(got) != 1 {
		t.Fatalf("inferred = %v, want only the when column", got)
	}
	cd, ok := got["when"]
	if !ok || cd.Layout != "2006-01-02" {
		t.Fatalf("when = %+v, want layout 2006-01-02", cd)
	}
}

// A 50/50 split is not a majority; the column stays as-is.
func TestInferDateColumnsNoStrictMajority(t *testing.T) {
	d := &dataset.Dataset{
		Columns: []string{"mixed"},
		Rows: []dataset.Record{
			{"mixed": "2024-01-01"},
			{"mixed": "hello"},
		},
	}
	if got := InferDateColumns(d, 0); len(got) != 0 {
		t.Fatalf("inferred = %v, want none", got)
	}
}

func TestInferDateColumnsSkipsEmptiesAndNils(t *testing.T) {
	d := &dataset.Dataset{
		Columns: []string{"when"},
		Rows: []dataset.Record{
			{"when": nil},
			{"when": "  "},
			{"when": "2024-06-01"},
		},
	}
	got := InferDateColumns(d, 0)
	if _, ok := got["when"]; !ok {
		t.Fatalf("inferred = %v, want when date-typed (empties excluded from the vote)", got)
	}
}

func TestInferDateColumnsNumericColumn(t *testing.T) {
	d := &dataset.Dataset{
		Columns: []string{"id"},
		Rows: []dataset.Record{
			{"id": "20240101"},
			{"id": "20240102"},
		},
	}
	if got := InferDateColumns(d, 0); len(got) != 0 {
		t.Fatalf("inferred = %v, numeric ids must not be dates", got)
	}
}

func TestExpandDatasetRewritesSchema(t *testing.T) {
	d := &dataset.Dataset{
		Columns: []string{"city", "when", "amount"},
		Rows: []dataset.Record{
			{"city": "Riga", "when": "2024-03-15", "amount": "10"},
			{"city": "Oslo", "when": "2024-03-16", "amount": "20"},
		},
	}
	ExpandDataset(d, 0)

	wantCols := []string{
		"city",
		"when_year", "when_month", "when_day", "when_hour", "when_date", "when_day_of_week",
		"amount",
	}
	if !reflect.DeepEqual(d.Columns, wantCols) {
		t.Fatalf("columns = %v, want %v", d.Columns, wantCols)
	}
	for i, row := range d.Rows {
		if _, ok := row["when"]; ok {
			t.Fatalf("row %d still has source column: %v", i, row)
		}
		if row["when_year"] != "2024" {
			t.Fatalf("row %d when_year = %v", i, row["when_year"])
		}
	}
	if d.Rows[0]["when_day_of_week"] != "Friday" || d.Rows[1]["when_day_of_week"] != "Saturday" {
		t.Fatalf("weekdays = %v / %v", d.Rows[0]["when_day_of_week"], d.Rows[1]["when_day_of_week"])
	}
}

// A stray unparseable cell in a date-typed column loses its value but
// the schema stays consistent across rows.
func TestExpandDatasetStrayCell(t *testing.T) {
	d := &dataset.Dataset{
		Columns: []string{"when"},
		Rows: []dataset.Record{
			{"when": "2024-03-15"},
			{"when": "2024-03-16"},
			{"when": "2024-03-17"},
			{"when": "n/a"},
		},
	}
	ExpandDataset(d, 0)

	if _, ok := d.Rows[3]["when"]; ok {
		t.Fatalf("stray row kept source column: %v", d.Rows[3])
	}
	if _, ok := d.Rows[3]["when_year"]; ok {
		t.Fatalf("stray row gained derived values: %v", d.Rows[3])
	}
	if d.Rows[0]["when_date"] != "2024-03-15" {
		t.Fatalf("row 0 = %v", d.Rows[0])
	}
}

func TestExpandDatasetNoDateColumns(t *testing.T) {
	d := &dataset.Dataset{
		Columns: []string{"a", "b"},
		Rows:    []dataset.Record{{"a": "1", "b": "x"}},
	}
	ExpandDataset(d, 0)
	if !reflect.DeepEqual(d.Columns, []string{"a", "b"}) {
		t.Fatalf("columns = %v, want unchanged", d.Columns)
	}
}

// Cells that deviate from the column's voted layout still expand via
// the full layout list.
func TestExpandDatasetMixedLayouts(t *testing.T) {
	d := &dataset.Dataset{
		Columns: []string{"when"},
		Rows: []dataset.Record{
			{"when": "2024-03-15"},
			{"when": "2024-03-16"},
			{"when": "17.03.2024"},
		},
	}
	ExpandDataset(d, 0)
	if d.Rows[2]["when_date"] != "2024-03-17" {
		t.Fatalf("deviating layout row = %v, want expanded to 2024-03-17", d.Rows[2])
	}
}
