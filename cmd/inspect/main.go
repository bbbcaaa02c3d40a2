// Command inspect samples a tabular file and reports what the ingest
// pipeline would do with it: the detected format, the column list, and
// which columns would be voted date-typed (with the winning layout) or
// numeric under the current sampling rules.
//
// Intended for checking a dataset before uploading it, and for debugging
// surprising expansions without running the server.
//
// Output modes:
//
//   - Default: a human-readable per-column report on stdout.
//   - -json: a machine-readable summary object.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"chartboard/internal/config"
	"chartboard/internal/dataset"
	"chartboard/internal/datefields"
	"chartboard/internal/parser"
)

type columnReport struct {
	Name         string   `json:"name"`
	Sampled      int      `json:"sampled"`
	NumericShare float64  `json:"numeric_share"`
	Date         bool     `json:"date"`
	Layout       string   `json:"layout,omitempty"`
	Derived      []string `json:"derived,omitempty"`
}

type fileReport struct {
	File    string         `json:"file"`
	Format  string         `json:"format"`
	Rows    int            `json:"rows"`
	Columns []columnReport `json:"columns"`
}

func main() {
	var (
		flagSample = flag.Int("sample", config.DefaultSampleRows, "Rows sampled per column for type voting")
		flagJSON   = flag.Bool("json", false, "Emit the report as JSON")
	)
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: inspect [flags] <file.csv|file.xlsx>\n")
		flag.PrintDefaults()
		os.Exit(2)
	}
	path := flag.Arg(0)

	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer f.Close()

	format, err := parser.DetectFormat(path)
	if err != nil {
		log.Fatalf("%v", err)
	}
	d, err := parser.Parse(context.Background(), f, format, nil)
	if err != nil {
		log.Fatalf("%v", err)
	}

	rep := buildReport(path, string(format), d, *flagSample)

	if *flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			log.Fatalf("encode report: %v", err)
		}
		return
	}

	fmt.Printf("%s: format=%s rows=%d columns=%d\n", rep.File, rep.Format, rep.Rows, len(rep.Columns))
	for _, c := range rep.Columns {
		switch {
		case c.Date:
			fmt.Printf("  %-24s date (layout %s) -> %v\n", c.Name, c.Layout, c.Derived)
		case c.NumericShare >= 0.5:
			fmt.Printf("  %-24s numeric (%.0f%% of %d sampled)\n", c.Name, c.NumericShare*100, c.Sampled)
		default:
			fmt.Printf("  %-24s text\n", c.Name)
		}
	}
}

func buildReport(path, format string, d *dataset.Dataset, sampleRows int) fileReport {
	dates := datefields.InferDateColumns(d, sampleRows)

	rep := fileReport{File: path, Format: format, Rows: len(d.Rows)}
	for _, col := range d.Columns {
		c := columnReport{Name: col}
		for _, row := range d.Rows {
			if c.Sampled >= sampleRows {
				break
			}
			v, ok := row[col]
			if !ok || v == nil {
				continue
			}
			c.Sampled++
			if _, ok := dataset.Number(v); ok {
				c.NumericShare++
			}
		}
		if c.Sampled > 0 {
			c.NumericShare /= float64(c.Sampled)
		}
		if cd, ok := dates[col]; ok {
			c.Date = true
			c.Layout = cd.Layout
			c.Derived = datefields.DerivedColumns(col)
		}
		rep.Columns = append(rep.Columns, c)
	}
	return rep
}
