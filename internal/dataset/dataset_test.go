package dataset

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestColumnsFirstRecordSorted(t *testing.T) {
	rows := []Record{
		{"b": 1, "a": 2, "c": nil},
		{"a": 3, "z": 4}, // later keys never join the column list
	}
	got := Columns(rows)
	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Columns = %v, want %v", got, want)
	}
}

func TestColumnsEmpty(t *testing.T) {
	got := Columns(nil)
	if got == nil || len(got) != 0 {
		t.Fatalf("Columns(nil) = %#v, want empty non-nil slice", got)
	}
}

func TestColumnNames(t *testing.T) {
	d := &Dataset{Columns: []string{"z", "a"}}
	got := d.ColumnNames()
	if !reflect.DeepEqual(got, []string{"z", "a"}) {
		t.Fatalf("ColumnNames = %v, want header order preserved", got)
	}
	got[0] = "mutated"
	if d.Columns[0] != "z" {
		t.Fatalf("ColumnNames must return a copy")
	}

	var nilDS *Dataset
	if names := nilDS.ColumnNames(); names == nil || len(names) != 0 {
		t.Fatalf("nil dataset ColumnNames = %#v, want empty non-nil slice", names)
	}
}

func TestNumber(t *testing.T) {
	cases := []struct {
		in   any
		want float64
		ok   bool
	}{
		{nil, 0, false},
		{float64(2.5), 2.5, true},
		{int(7), 7, true},
		{int64(9), 9, true},
		{"42", 42, true},
		{"  3.14 ", 3.14, true},
		{"0", 0, true},
		{"", 0, false},
		{"abc", 0, false},
		{json.Number("12.5"), 12.5, true},
		{true, 0, false},
	}
	for _, c := range cases {
		got, ok := Number(c.in)
		if ok != c.ok || got != c.want {
			t.Fatalf("Number(%#v) = (%v, %v), want (%v, %v)", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestKey(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"north", "north"},
		{float64(3), "3"},       // spreadsheet-typed integer
		{float64(3.25), "3.25"}, // fraction survives
		{int(17), "17"},
		{true, "true"},
	}
	for _, c := range cases {
		if got := Key(c.in); got != c.want {
			t.Fatalf("Key(%#v) = %q, want %q", c.in, got, c.want)
		}
	}
}
