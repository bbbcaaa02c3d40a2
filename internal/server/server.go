// Package server exposes the chartboard HTTP API: file ingestion with a
// chunked NDJSON response, standalone aggregation, column introspection,
// and the live vehicle snapshot.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"chartboard/internal/aggregate"
	"chartboard/internal/chunkstream"
	"chartboard/internal/config"
	"chartboard/internal/dataset"
	"chartboard/internal/datefields"
	"chartboard/internal/feed"
	"chartboard/internal/metrics"
	"chartboard/internal/parser"
)

// VehicleSource provides the latest live-feed snapshot. Nil when no feed
// is configured.
type VehicleSource interface {
	Vehicles() feed.Snapshot
}

// Server holds the service configuration and its optional feed source.
type Server struct {
	cfg  config.Service
	feed VehicleSource
}

// New builds a Server. src may be nil.
func New(cfg config.Service, src VehicleSource) *Server {
	cfg.Normalize()
	return &Server{cfg: cfg, feed: src}
}

// Routes returns the request multiplexer for all API endpoints.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/process-file", s.instrument("process-file", s.handleProcessFile))
	mux.HandleFunc("POST /api/aggregate", s.instrument("aggregate", s.handleAggregate))
	mux.HandleFunc("POST /api/columns", s.instrument("columns", s.handleColumns))
	mux.HandleFunc("GET /api/vehicles", s.instrument("vehicles", s.handleVehicles))
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	return mux
}

// instrument wraps a handler with request counting and latency metrics.
func (s *Server) instrument(route string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		h(sw, r)
		metrics.IncCounter("chartboard_http_requests_total", 1, metrics.Labels{
			"route":  route,
			"status": fmt.Sprintf("%d", sw.status),
		})
		metrics.ObserveHistogram("chartboard_http_request_duration_seconds",
			time.Since(start).Seconds(), metrics.Labels{"route": route})
	}
}

// statusWriter records the response status for instrumentation.
type statusWriter struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wrote {
		w.status = code
		w.wrote = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wrote = true
	return w.ResponseWriter.Write(b)
}

// Flush forwards to the underlying writer so chunked responses stream.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// handleProcessFile runs the full ingest pipeline: parse the upload,
// expand date columns, and stream the result as NDJSON envelopes.
//
// The parse completes before the first response byte is written, so a
// malformed file always yields a clean 400 and never a truncated stream.
func (s *Server) handleProcessFile(w http.ResponseWriter, r *http.Request) {
	d, ok := s.ingestUpload(w, r)
	if !ok {
		return
	}

	start := time.Now()
	datefields.ExpandDataset(d, s.cfg.Upload.SampleRows)
	metrics.ObserveHistogram("chartboard_stage_duration_seconds",
		time.Since(start).Seconds(), metrics.Labels{"stage": "expand"})
	metrics.IncCounter("chartboard_rows_total", float64(len(d.Rows)), metrics.Labels{"kind": "expanded"})

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)

	enc := chunkstream.Encoder{BatchSize: s.cfg.ChunkSize}
	chunks, err := enc.Encode(r.Context(), w, d.Rows)
	metrics.IncCounter("chartboard_chunks_total", float64(chunks), nil)
	if err != nil {
		// Headers are gone; all we can do is log and drop the connection.
		log.Printf("server: stream aborted after %d chunks: %v", chunks, err)
	}
}

// handleColumns parses the upload and returns the expanded column list,
// without streaming any rows. Serves the client's axis controls.
func (s *Server) handleColumns(w http.ResponseWriter, r *http.Request) {
	d, ok := s.ingestUpload(w, r)
	if !ok {
		return
	}
	datefields.ExpandDataset(d, s.cfg.Upload.SampleRows)
	writeJSON(w, http.StatusOK, map[string]any{"columns": d.ColumnNames()})
}

// aggregateRequest mirrors the client's chart controls.
type aggregateRequest struct {
	Rows      []dataset.Record `json:"rows"`
	Category  string           `json:"category"`
	Value     string           `json:"value"`
	Operation string           `json:"operation"`
	GroupBy   string           `json:"groupBy,omitempty"`
}

// handleAggregate reduces a posted row set for charting.
func (s *Server) handleAggregate(w http.ResponseWriter, r *http.Request) {
	var req aggregateRequest
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	opt := aggregate.Options{NonNumericAsOne: s.cfg.AggregateNonNumericAsOne()}
	out := aggregate.Aggregate(req.Rows, aggregate.Params{
		Category: req.Category,
		Value:    req.Value,
		Op:       req.Operation,
		GroupBy:  req.GroupBy,
	}, opt)
	writeJSON(w, http.StatusOK, map[string]any{"rows": out})
}

// handleVehicles serves the latest live-feed snapshot.
func (s *Server) handleVehicles(w http.ResponseWriter, r *http.Request) {
	if s.feed == nil {
		writeError(w, http.StatusNotFound, "no feed configured")
		return
	}
	snap := s.feed.Vehicles()
	vehicles := snap.Vehicles
	if vehicles == nil {
		vehicles = []dataset.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"vehicles":  vehicles,
		"fetchedAt": snap.FetchedAt,
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// ingestUpload extracts and parses the multipart "file" field. On
// failure it writes the error response and returns ok=false.
func (s *Server) ingestUpload(w http.ResponseWriter, r *http.Request) (*dataset.Dataset, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxBytes)

	f, hdr, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no file provided")
		return nil, false
	}
	defer f.Close()

	start := time.Now()
	d, err := parser.ParseFile(r.Context(), f, hdr.Filename, s.cfg.Upload.Parser)
	if err != nil {
		var perr *parser.ParseError
		if errors.As(err, &perr) {
			metrics.IncCounter("chartboard_uploads_total", 1, metrics.Labels{
				"format": perr.Format, "status": "parse_error",
			})
			writeError(w, http.StatusBadRequest, perr.Error())
			return nil, false
		}
		writeError(w, http.StatusInternalServerError, "file processing failed")
		return nil, false
	}
	metrics.ObserveHistogram("chartboard_stage_duration_seconds",
		time.Since(start).Seconds(), metrics.Labels{"stage": "parse"})
	metrics.IncCounter("chartboard_uploads_total", 1, metrics.Labels{
		"format": formatLabel(hdr.Filename), "status": "ok",
	})
	metrics.IncCounter("chartboard_rows_total", float64(len(d.Rows)), metrics.Labels{"kind": "parsed"})
	return d, true
}

func formatLabel(filename string) string {
	f, err := parser.DetectFormat(filename)
	if err != nil {
		return "unknown"
	}
	return string(f)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("server: write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
