package chunkstream

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"chartboard/internal/dataset"
)

// DecodeError reports one stream line that could not be interpreted as
// an envelope: invalid JSON, or a missing/non-array rows field.
type DecodeError struct {
	Line int
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode chunk line %d: %v", e.Line, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decoder reassembles a newline-delimited envelope stream.
//
// The reader is consumed incrementally: bytes are buffered until a full
// line is available, each complete line is parsed as one envelope, and
// rows accumulate in arrival order. An envelope with IsFirstChunk set
// replaces the accumulator entirely; any other envelope appends.
type Decoder struct {
	// Lenient makes malformed lines log-and-skip instead of failing the
	// stream. This is the documented historical behavior.
	Lenient bool
	// Logf receives skip notices in lenient mode. Nil silences them.
	Logf func(format string, args ...any)
	// OnProgress, when set, is called after each envelope with the rows
	// accumulated so far and a progress fraction in [0, 1].
	OnProgress func(accumulated int, fraction float64)
}

// NewDecoder returns a lenient decoder with no logging.
func NewDecoder() *Decoder {
	return &Decoder{Lenient: true}
}

// envelopeWire distinguishes a missing or null rows field from an empty
// batch; the former is a malformed line, the latter is valid.
type envelopeWire struct {
	Rows         *[]dataset.Record `json:"rows"`
	IsFirstChunk bool              `json:"isFirstChunk"`
	TotalRows    int               `json:"totalRows"`
}

// Decode reads the full stream from r and returns the reassembled
// record sequence in original order.
func (d *Decoder) Decode(r io.Reader) ([]dataset.Record, error) {
	br := bufio.NewReader(r)

	var (
		rows  []dataset.Record
		total int
		line  int
	)

	for {
		raw, err := br.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("read stream: %w", err)
		}
		eof := err == io.EOF

		raw = strings.TrimSpace(raw)
		if raw != "" {
			line++
			env, derr := parseLine(line, raw)
			if derr != nil {
				if !d.Lenient {
					return nil, derr
				}
				if d.Logf != nil {
					d.Logf("chunkstream: skipping malformed line %d: %v", line, derr.Err)
				}
			} else {
				if env.IsFirstChunk {
					rows = rows[:0]
				}
				rows = append(rows, *env.Rows...)
				total = env.TotalRows
				d.reportProgress(len(rows), total)
			}
		}

		if eof {
			break
		}
	}

	if rows == nil {
		rows = []dataset.Record{}
	}
	return rows, nil
}

func parseLine(line int, raw string) (*envelopeWire, *DecodeError) {
	var env envelopeWire
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return nil, &DecodeError{Line: line, Err: err}
	}
	if env.Rows == nil {
		return nil, &DecodeError{Line: line, Err: fmt.Errorf("rows is missing or not an array")}
	}
	return &env, nil
}

func (d *Decoder) reportProgress(accumulated, total int) {
	if d.OnProgress == nil {
		return
	}
	frac := 1.0
	if total > 0 {
		frac = float64(accumulated) / float64(total)
		if frac > 1 {
			frac = 1
		}
	}
	d.OnProgress(accumulated, frac)
}
