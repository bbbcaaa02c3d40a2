// Package chunkstream serializes a record set as a newline-delimited
// JSON stream of fixed-size batches, and reassembles such a stream on
// the receiving side.
package chunkstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"chartboard/internal/dataset"
)

// DefaultBatchSize is the number of records carried per envelope.
const DefaultBatchSize = 1000

// Envelope is one transport unit: a batch of records plus streaming
// metadata. TotalRows repeats the full sequence length on every
// envelope; IsFirstChunk is true only on the first.
type Envelope struct {
	Rows         []dataset.Record `json:"rows"`
	IsFirstChunk bool             `json:"isFirstChunk"`
	TotalRows    int              `json:"totalRows"`
}

// flusher matches http.ResponseWriter's optional flush support.
type flusher interface{ Flush() }

// Encoder splits a record sequence into envelopes and writes each as
// one JSON document per line.
type Encoder struct {
	// BatchSize per envelope; <= 0 means DefaultBatchSize.
	BatchSize int
}

// Encode writes ceil(len(rows)/BatchSize) envelopes to w in ascending
// batch order, covering rows with no gaps or overlaps; the final
// envelope may be short. Concatenating the rows of all envelopes in
// emission order reproduces the input exactly. An empty input emits
// nothing.
//
// If w implements Flush (http.ResponseWriter behind chunked transfer
// encoding does), each envelope is flushed so the receiver can decode
// incrementally.
//
// Returns the number of envelopes written.
func (e *Encoder) Encode(ctx context.Context, w io.Writer, rows []dataset.Record) (int, error) {
	size := e.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}

	total := len(rows)
	chunks := 0
	for i := 0; i < total; i += size {
		select {
		case <-ctx.Done():
			return chunks, ctx.Err()
		default:
		}

		end := i + size
		if end > total {
			end = total
		}
		env := Envelope{
			Rows:         rows[i:end],
			IsFirstChunk: chunks == 0,
			TotalRows:    total,
		}
		b, err := json.Marshal(env)
		if err != nil {
			return chunks, fmt.Errorf("marshal chunk %d: %w", chunks, err)
		}
		b = append(b, '\n')
		if _, err := w.Write(b); err != nil {
			return chunks, fmt.Errorf("write chunk %d: %w", chunks, err)
		}
		if f, ok := w.(flusher); ok {
			f.Flush()
		}
		chunks++
	}
	return chunks, nil
}
