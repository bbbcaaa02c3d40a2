package xlsx

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"chartboard/internal/config"
)

// buildWorkbook writes rows to the default sheet and returns the xlsx bytes.
func buildWorkbook(t *testing.T, rows [][]any) *bytes.Reader {
	t.Helper()
	wb := excelize.NewFile()
	defer wb.Close()

	sheet := wb.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := wb.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}

	var buf bytes.Buffer
	if err := wb.Write(&buf); err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return bytes.NewReader(buf.Bytes())
}

func TestReadBasic(t *testing.T) {
	r := buildWorkbook(t, [][]any{
		{"name", "amount", "when"},
		{"alice", 10, "2024-01-01"},
		{"bob", 20.5, "2024-01-02"},
	})
	d, err := Read(context.Background(), r, nil)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !reflect.DeepEqual(d.Columns, []string{"name", "amount", "when"}) {
		t.Fatalf("columns = %v", d.Columns)
	}
	if len(d.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(d.Rows))
	}
	if d.Rows[0]["amount"] != float64(10) {
		t.Fatalf("amount = %#v, want float64 10", d.Rows[0]["amount"])
	}
	if d.Rows[1]["amount"] != float64(20.5) {
		t.Fatalf("amount = %#v, want float64 20.5", d.Rows[1]["amount"])
	}
	if d.Rows[0]["when"] != "2024-01-01" {
		t.Fatalf("when = %#v, want text preserved", d.Rows[0]["when"])
	}
}

func TestReadInferNumbersOff(t *testing.T) {
	r := buildWorkbook(t, [][]any{
		{"amount"},
		{"10"},
	})
	d, err := Read(context.Background(), r, config.Options{"infer_numbers": false})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if d.Rows[0]["amount"] != "10" {
		t.Fatalf("amount = %#v, want string with inference off", d.Rows[0]["amount"])
	}
}

func TestReadSkipsEmptyRows(t *testing.T) {
	r := buildWorkbook(t, [][]any{
		{"a", "b"},
		{"1", "2"},
		{"", ""},
		{"3", "4"},
	})
	d, err := Read(context.Background(), r, nil)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(d.Rows) != 2 {
		t.Fatalf("rows = %v, want empty row skipped", d.Rows)
	}
}

func TestReadLeadingEmptyRowsBeforeHeader(t *testing.T) {
	r := buildWorkbook(t, [][]any{
		{"", ""},
		{"a", "b"},
		{"1", "2"},
	})
	d, err := Read(context.Background(), r, nil)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !reflect.DeepEqual(d.Columns, []string{"a", "b"}) {
		t.Fatalf("columns = %v, want header after blank rows", d.Columns)
	}
	if len(d.Rows) != 1 {
		t.Fatalf("rows = %v", d.Rows)
	}
}

func TestReadShortRowPadsNil(t *testing.T) {
	r := buildWorkbook(t, [][]any{
		{"a", "b", "c"},
		{"1"},
	})
	d, err := Read(context.Background(), r, nil)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if d.Rows[0]["c"] != nil {
		t.Fatalf("c = %#v, want nil", d.Rows[0]["c"])
	}
}

func TestReadEmptyWorkbook(t *testing.T) {
	r := buildWorkbook(t, nil)
	_, err := Read(context.Background(), r, nil)
	if !errors.Is(err, ErrEmptySheet) {
		t.Fatalf("err = %v, want ErrEmptySheet", err)
	}
}

func TestReadNotAWorkbook(t *testing.T) {
	_, err := Read(context.Background(), strings.NewReader("name,amount\nx,1\n"), nil)
	if err == nil {
		t.Fatalf("plain text must fail to open as a workbook")
	}
}
