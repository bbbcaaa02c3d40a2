package feed

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"chartboard/internal/config"
	"chartboard/internal/dataset"
)

// extractHTMLRecords parses an HTML feed page and extracts one record per
// element matched by recordSelector, applying each mapping relative to
// that element. Records preserve DOM order.
//
// Missing selectors are not errors; the field is simply absent from the
// record. Records that produce no fields at all are dropped.
func extractHTMLRecords(r io.Reader, recordSelector string, mappings []config.FeedMapping, maxRecords int) ([]dataset.Record, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var records []dataset.Record
	doc.Find(recordSelector).EachWithBreak(func(_ int, rec *goquery.Selection) bool {
		obj := extractOneRecord(rec, mappings)
		if len(obj) > 0 {
			records = append(records, obj)
		}
		return maxRecords <= 0 || len(records) < maxRecords
	})
	return records, nil
}

// extractOneRecord applies all mappings relative to root. Only the first
// selector match is used per mapping; a mapping with Attr set extracts
// that attribute, otherwise the trimmed text content.
func extractOneRecord(root *goquery.Selection, mappings []config.FeedMapping) dataset.Record {
	out := make(dataset.Record)

	for _, m := range mappings {
		sel := root.Find(m.Selector).First()
		if sel.Length() == 0 {
			continue
		}

		var v string
		if m.Attr != "" {
			val, ok := sel.Attr(m.Attr)
			if !ok {
				continue
			}
			v = strings.TrimSpace(val)
		} else {
			v = strings.TrimSpace(sel.Text())
		}
		if v == "" {
			continue
		}
		out[m.Name] = v
	}

	return out
}
