// Package config defines the service configuration for the chartboard
// server and the loosely typed Options bag shared by the parsers.
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// Severity levels for validation issues.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Issue is one finding from ValidateService.
type Issue struct {
	Severity string
	Path     string
	Message  string
}

// FeedMapping extracts one vehicle field from an HTML feed record element.
type FeedMapping struct {
	// Name is the output field name on the vehicle record.
	Name string `json:"name"`
	// Selector is a CSS selector evaluated relative to the record element.
	Selector string `json:"selector"`
	// Attr, when set, extracts the named attribute instead of text content.
	Attr string `json:"attr,omitempty"`
}

// Feed configures the live vehicle-position poller.
type Feed struct {
	// URL of the upstream feed. Empty disables polling.
	URL string `json:"url"`
	// Mode selects the decoder: "json" (default) or "html".
	Mode string `json:"mode"`
	// IntervalSeconds between polls. Defaults to 15.
	IntervalSeconds int `json:"interval_seconds"`
	// MaxVehicles bounds one snapshot. Defaults to 5000.
	MaxVehicles int `json:"max_vehicles"`

	// RecordSelector and Mappings apply in HTML mode only.
	RecordSelector string        `json:"record_selector,omitempty"`
	Mappings       []FeedMapping `json:"mappings,omitempty"`
}

// Upload configures the file-ingestion pipeline.
type Upload struct {
	// MaxBytes caps the accepted upload size. Defaults to 64 MiB.
	MaxBytes int64 `json:"max_bytes"`
	// SampleRows bounds column-type sampling during date expansion.
	// Defaults to 200.
	SampleRows int `json:"sample_rows"`
	// Parser options handed to the format readers (comma, trim_space,
	// lazy_quotes, encoding, infer_numbers).
	Parser Options `json:"parser,omitempty"`
}

// Service is the top-level server configuration.
type Service struct {
	// Listen address, e.g. ":8080".
	Listen string `json:"listen"`
	// ChunkSize is the transport batch size. Defaults to 1000.
	ChunkSize int `json:"chunk_size"`
	// NonNumericAsOne controls the aggregation fallback for values that
	// fail numeric coercion. Defaults to true (each contributes 1).
	NonNumericAsOne *bool `json:"non_numeric_as_one,omitempty"`
	// LenientDecode controls whether the stream decoder skips malformed
	// lines instead of failing. Defaults to true.
	LenientDecode *bool `json:"lenient_decode,omitempty"`

	Upload Upload `json:"upload"`
	Feed   Feed   `json:"feed"`
}

// Default values applied by Normalize.
const (
	DefaultListen          = ":8080"
	DefaultChunkSize       = 1000
	DefaultSampleRows      = 200
	DefaultMaxUploadBytes  = 64 << 20
	DefaultFeedIntervalSec = 15
	DefaultMaxVehicles     = 5000
)

// Load reads and decodes a Service config from path, then normalizes it.
func Load(path string) (Service, error) {
	f, err := os.Open(path)
	if err != nil {
		return Service{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads a Service config from r, then normalizes it.
func Decode(r io.Reader) (Service, error) {
	var s Service
	dec := json.NewDecoder(r)
	if err := dec.Decode(&s); err != nil {
		return Service{}, fmt.Errorf("decode config: %w", err)
	}
	s.Normalize()
	return s, nil
}

// Normalize fills zero-valued fields with defaults. Safe to call on the
// zero Service.
func (s *Service) Normalize() {
	if s.Listen == "" {
		s.Listen = DefaultListen
	}
	if s.ChunkSize <= 0 {
		s.ChunkSize = DefaultChunkSize
	}
	if s.Upload.MaxBytes <= 0 {
		s.Upload.MaxBytes = DefaultMaxUploadBytes
	}
	if s.Upload.SampleRows <= 0 {
		s.Upload.SampleRows = DefaultSampleRows
	}
	if s.Upload.Parser == nil {
		s.Upload.Parser = Options{}
	}
	if s.Feed.Mode == "" {
		s.Feed.Mode = "json"
	}
	if s.Feed.IntervalSeconds <= 0 {
		s.Feed.IntervalSeconds = DefaultFeedIntervalSec
	}
	if s.Feed.MaxVehicles <= 0 {
		s.Feed.MaxVehicles = DefaultMaxVehicles
	}
}

// AggregateNonNumericAsOne resolves the leniency flag with its default.
func (s *Service) AggregateNonNumericAsOne() bool {
	if s.NonNumericAsOne == nil {
		return true
	}
	return *s.NonNumericAsOne
}

// DecodeLenient resolves the transport-decode leniency flag with its default.
func (s *Service) DecodeLenient() bool {
	if s.LenientDecode == nil {
		return true
	}
	return *s.LenientDecode
}

// ValidateService checks a normalized Service config and returns findings.
// SeverityError findings should prevent startup.
func ValidateService(s Service) []Issue {
	var issues []Issue

	add := func(sev, path, msg string) {
		issues = append(issues, Issue{Severity: sev, Path: path, Message: msg})
	}

	if !strings.Contains(s.Listen, ":") {
		add(SeverityError, "listen", fmt.Sprintf("invalid listen address %q", s.Listen))
	}
	if s.ChunkSize <= 0 {
		add(SeverityError, "chunk_size", "must be positive")
	}

	switch s.Feed.Mode {
	case "json", "html":
	default:
		add(SeverityError, "feed.mode", fmt.Sprintf("unknown mode %q (want json or html)", s.Feed.Mode))
	}
	if s.Feed.URL != "" && s.Feed.Mode == "html" {
		if s.Feed.RecordSelector == "" {
			add(SeverityError, "feed.record_selector", "required in html mode")
		}
		if len(s.Feed.Mappings) == 0 {
			add(SeverityError, "feed.mappings", "required in html mode")
		}
		for i, m := range s.Feed.Mappings {
			if m.Name == "" || m.Selector == "" {
				add(SeverityError, fmt.Sprintf("feed.mappings[%d]", i), "name and selector are required")
			}
		}
	}
	if s.Feed.URL == "" && (s.Feed.RecordSelector != "" || len(s.Feed.Mappings) > 0) {
		add(SeverityWarning, "feed.url", "html mappings configured but feed url is empty; poller disabled")
	}

	return issues
}
