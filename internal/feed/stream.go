package feed

import (
	"bytes"
	"encoding/json"
	"io"

	"chartboard/internal/dataset"
)

// decodeRecords reads vehicle records from a JSON feed body.
//
// Accepted shapes:
//   - a root array of objects
//   - a root object containing an array-of-objects field (envelope); the
//     first such field is used
//   - NDJSON: one object per line, including trailing objects after a
//     root value
//
// Non-object elements are skipped. maxRecords bounds the snapshot.
func decodeRecords(r io.Reader, maxRecords int) ([]dataset.Record, error) {
	if maxRecords <= 0 {
		maxRecords = 1000
	}

	dec := json.NewDecoder(r)
	dec.UseNumber()

	var root any
	if err := dec.Decode(&root); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, err
	}

	out := make([]dataset.Record, 0, 128)
	emit := func(m map[string]any) {
		if m == nil || len(out) >= maxRecords {
			return
		}
		out = append(out, dataset.Record(m))
	}

	switch v := root.(type) {
	case []any:
		for _, it := range v {
			m, ok := it.(map[string]any)
			if !ok {
				continue
			}
			emit(m)
			if len(out) >= maxRecords {
				return out, nil
			}
		}

	case map[string]any:
		if slice := findObjectSlice(v); slice != nil {
			for _, m := range slice {
				emit(m)
				if len(out) >= maxRecords {
					return out, nil
				}
			}
		} else {
			emit(v)
		}

	default:
		// Unsupported root; fall through to trailing objects.
	}

	// NDJSON / multiple top-level objects.
	for len(out) < maxRecords {
		var obj map[string]any
		if err := dec.Decode(&obj); err != nil {
			// Stop on EOF or a malformed trailer; keep what we have.
			break
		}
		emit(obj)
	}

	return out, nil
}

// findObjectSlice returns the first field of root that is a non-empty
// array of objects, unwrapping the common {"vehicles": [...]} envelope
// without hard-coding a field name.
func findObjectSlice(root map[string]any) []map[string]any {
	for _, v := range root {
		rawSlice, ok := v.([]any)
		if !ok || len(rawSlice) == 0 {
			continue
		}
		objects := make([]map[string]any, 0, len(rawSlice))
		valid := true
		for _, elem := range rawSlice {
			if elem == nil {
				continue
			}
			m, ok := elem.(map[string]any)
			if !ok {
				valid = false
				break
			}
			objects = append(objects, m)
		}
		if valid && len(objects) > 0 {
			return objects
		}
	}
	return nil
}

// sniffHTML reports whether the body looks like an HTML document rather
// than JSON. Used to fail fast when a json-mode feed serves an error page.
func sniffHTML(sample []byte) bool {
	trim := bytes.TrimSpace(sample)
	return len(trim) > 0 && trim[0] == '<'
}
