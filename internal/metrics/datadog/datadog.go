// Package datadog implements a Datadog backend for the internal/metrics
// package.
//
// The backend buffers observations in memory, submits them on a ticker
// (default once per minute), and submits one final time on Close(). A
// long-lived dashboard server therefore produces a real time series
// rather than a single point at shutdown.
//
// Concurrency model:
//   - handlers call IncCounter/ObserveHistogram at any time
//   - Flush snapshots+resets buffers under a mutex, then submits out-of-lock
//   - the flush loop calls Flush() periodically; Close() stops the loop
package datadog

import (
	"context"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"chartboard/internal/metrics"

	dd "github.com/DataDog/datadog-api-client-go/v2/api/datadog"
	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"
)

// Options controls Datadog backend configuration.
type Options struct {
	// ServiceName becomes tag "service:<name>" on every metric.
	// If empty, defaults to "chartboard".
	ServiceName string

	// Tags are extra Datadog tags (e.g. []string{"env:prod"}).
	Tags []string

	// FlushEvery controls how often buffered metrics are submitted.
	// If <= 0, defaults to 60 seconds.
	FlushEvery time.Duration

	// Unexported test seams. Production code never sets them; unit tests
	// set them to avoid real submission and nondeterministic tickers.
	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker
	submitter metricsSubmitter
}

// metricsSubmitter is the minimal interface needed to submit metrics.
// The SDK exposes a concrete *datadogV2.MetricsApi; depending on this
// interface instead keeps the backend testable without real HTTP.
type metricsSubmitter interface {
	SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error)
}

// Backend implements metrics.Backend for Datadog.
type Backend struct {
	api metricsSubmitter
	ctx context.Context

	flushEvery time.Duration
	stopCh     chan struct{}
	doneCh     chan struct{}

	baseTags []string

	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker

	mu sync.Mutex

	uploadCounts map[string]float64   // format\x00status -> count
	rowCounts    map[string]float64   // kind -> count
	chunkCount   float64              // emitted transport chunks
	stageDur     map[string][]float64 // stage -> duration samples
	httpCounts   map[string]float64   // status -> count
	httpDur      map[string][]float64 // status -> duration samples
	feedPolls    map[string]float64   // status -> count
}

func resolveEnvTag() string {
	if v := strings.TrimSpace(os.Getenv("ENV")); v != "" {
		return "env:" + v
	}
	if v := strings.TrimSpace(os.Getenv("DD_ENV")); v != "" {
		return "env:" + v
	}
	return "env:unknown"
}

// NewBackend constructs a Datadog backend using the official client.
//
// Edge cases:
//   - If opts.FlushEvery <= 0, defaults to 60s.
//   - If opts.ServiceName is empty, defaults to "chartboard".
//   - Environment tag selection uses ENV then DD_ENV, else env:unknown.
//
// Network errors occur during Flush(), not here.
func NewBackend(parent context.Context, opts Options) (*Backend, error) {
	service := opts.ServiceName
	if service == "" {
		service = "chartboard"
	}

	flushEvery := opts.FlushEvery
	if flushEvery <= 0 {
		flushEvery = 60 * time.Second
	}

	baseTags := make([]string, 0, 2+len(opts.Tags))
	baseTags = append(baseTags, resolveEnvTag(), "service:"+service)
	baseTags = append(baseTags, opts.Tags...)

	nowFn := opts.now
	if nowFn == nil {
		nowFn = time.Now
	}
	newTicker := opts.newTicker
	if newTicker == nil {
		newTicker = time.NewTicker
	}

	submitter := opts.submitter
	if submitter == nil {
		cfg := dd.NewConfiguration()
		client := dd.NewAPIClient(cfg)
		submitter = datadogV2.NewMetricsApi(client)
	}

	b := &Backend{
		api:        submitter,
		ctx:        dd.NewDefaultContext(parent),
		flushEvery: flushEvery,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),

		baseTags: baseTags,

		now:       nowFn,
		newTicker: newTicker,

		uploadCounts: make(map[string]float64),
		rowCounts:    make(map[string]float64),
		stageDur:     make(map[string][]float64),
		httpCounts:   make(map[string]float64),
		httpDur:      make(map[string][]float64),
		feedPolls:    make(map[string]float64),
	}

	go b.loop()
	return b, nil
}

func (b *Backend) loop() {
	defer close(b.doneCh)

	t := b.newTicker(b.flushEvery)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			_ = b.Flush()
		case <-b.stopCh:
			return
		}
	}
}

// Close stops the background flush loop and performs one final Flush().
// Close must be called at most once.
func (b *Backend) Close() error {
	close(b.stopCh)
	<-b.doneCh
	return b.Flush()
}

// IncCounter implements metrics.Backend.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if delta <= 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch name {
	case "chartboard_uploads_total":
		b.uploadCounts[pairKey(labels["format"], labels["status"])] += delta

	case "chartboard_rows_total":
		kind := labels["kind"]
		if kind == "" {
			return
		}
		b.rowCounts[kind] += delta

	case "chartboard_chunks_total":
		b.chunkCount += delta

	case "chartboard_http_requests_total":
		status := labels["status"]
		if status == "" {
			status = "unknown"
		}
		b.httpCounts[status] += delta

	case "chartboard_feed_polls_total":
		status := labels["status"]
		if status == "" {
			status = "unknown"
		}
		b.feedPolls[status] += delta

	default:
		// Ignore unknown metrics by design.
	}
}

// ObserveHistogram implements metrics.Backend.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if value < 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch name {
	case "chartboard_stage_duration_seconds":
		stage := labels["stage"]
		if stage == "" {
			stage = "unknown"
		}
		b.stageDur[stage] = append(b.stageDur[stage], value)

	case "chartboard_http_request_duration_seconds":
		status := labels["status"]
		if status == "" {
			status = "unknown"
		}
		b.httpDur[status] = append(b.httpDur[status], value)

	default:
		// Ignore unknown histograms by design.
	}
}

// snapshot is the buffered state detached from the backend so payload
// building and submission can happen out of lock.
type snapshot struct {
	uploadCounts map[string]float64
	rowCounts    map[string]float64
	chunkCount   float64
	stageDur     map[string][]float64
	httpCounts   map[string]float64
	httpDur      map[string][]float64
	feedPolls    map[string]float64
}

func (b *Backend) snapshotAndReset() snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := snapshot{
		uploadCounts: b.uploadCounts,
		rowCounts:    b.rowCounts,
		chunkCount:   b.chunkCount,
		stageDur:     b.stageDur,
		httpCounts:   b.httpCounts,
		httpDur:      b.httpDur,
		feedPolls:    b.feedPolls,
	}

	b.uploadCounts = make(map[string]float64)
	b.rowCounts = make(map[string]float64)
	b.chunkCount = 0
	b.stageDur = make(map[string][]float64)
	b.httpCounts = make(map[string]float64)
	b.httpDur = make(map[string][]float64)
	b.feedPolls = make(map[string]float64)

	return s
}

func (s snapshot) isEmpty() bool {
	return len(s.uploadCounts) == 0 &&
		len(s.rowCounts) == 0 &&
		s.chunkCount == 0 &&
		len(s.stageDur) == 0 &&
		len(s.httpCounts) == 0 &&
		len(s.httpDur) == 0 &&
		len(s.feedPolls) == 0
}

// Flush submits buffered metrics to Datadog and resets local buffers.
// Buffers are reset even if submission fails, to keep the hot path from
// blocking on a bad network window.
func (b *Backend) Flush() error {
	snap := b.snapshotAndReset()
	if snap.isEmpty() {
		return nil
	}

	payload := datadogV2.MetricPayload{Series: b.buildSeries(snap, b.now().Unix())}
	_, _, err := b.api.SubmitMetrics(b.ctx, payload, *datadogV2.NewSubmitMetricsOptionalParameters())
	return err
}

// buildSeries constructs Datadog series for a snapshot at a fixed
// timestamp. It is pure (no locks, clocks, or network), which keeps the
// naming/tagging contract unit-testable.
func (b *Backend) buildSeries(s snapshot, nowUnix int64) []datadogV2.MetricSeries {
	series := make([]datadogV2.MetricSeries, 0, len(s.uploadCounts)+len(s.rowCounts)+32)

	count := func(metric string, value float64, tags []string) {
		series = append(series, datadogV2.MetricSeries{
			Metric: metric,
			Type:   datadogV2.METRICINTAKETYPE_COUNT.Ptr(),
			Points: []datadogV2.MetricPoint{
				{Timestamp: dd.PtrInt64(nowUnix), Value: dd.PtrFloat64(value)},
			},
			Tags: tags,
		})
	}
	gauge := func(metric string, value float64, tags []string) {
		series = append(series, datadogV2.MetricSeries{
			Metric: metric,
			Type:   datadogV2.METRICINTAKETYPE_GAUGE.Ptr(),
			Points: []datadogV2.MetricPoint{
				{Timestamp: dd.PtrInt64(nowUnix), Value: dd.PtrFloat64(value)},
			},
			Tags: tags,
		})
	}

	for k, v := range s.uploadCounts {
		if v == 0 {
			continue
		}
		format, status := splitPairKey(k)
		count("chartboard.uploads.total", v, withTags(b.baseTags, "format:"+format, "status:"+status))
	}

	for kind, v := range s.rowCounts {
		if v == 0 {
			continue
		}
		count("chartboard.rows.total", v, withTags(b.baseTags, "kind:"+kind))
	}

	if s.chunkCount != 0 {
		count("chartboard.chunks.total", s.chunkCount, b.baseTags)
	}

	for status, v := range s.httpCounts {
		if v == 0 {
			continue
		}
		count("chartboard.http.requests.total", v, withTags(b.baseTags, "status:"+status))
	}

	for status, v := range s.feedPolls {
		if v == 0 {
			continue
		}
		count("chartboard.feed.polls.total", v, withTags(b.baseTags, "status:"+status))
	}

	for stage, samples := range s.stageDur {
		addPercentiles(withTags(b.baseTags, "stage:"+stage), "chartboard.stage.duration_seconds", samples, gauge)
	}
	for status, samples := range s.httpDur {
		addPercentiles(withTags(b.baseTags, "status:"+status), "chartboard.http.request_duration_seconds", samples, gauge)
	}

	return series
}

// addPercentiles emits a fixed set of percentile gauges for a sample
// set. It sorts a copy and does nothing for empty samples.
func addPercentiles(
	tags []string,
	metricPrefix string,
	samples []float64,
	gauge func(metric string, value float64, tags []string),
) {
	if len(samples) == 0 {
		return
	}
	cp := append([]float64(nil), samples...)
	sort.Float64s(cp)

	gauge(metricPrefix+".p50", percentileNearestRank(cp, 0.50), tags)
	gauge(metricPrefix+".p90", percentileNearestRank(cp, 0.90), tags)
	gauge(metricPrefix+".p95", percentileNearestRank(cp, 0.95), tags)
	gauge(metricPrefix+".p99", percentileNearestRank(cp, 0.99), tags)
	gauge(metricPrefix+".max", cp[len(cp)-1], tags)
	gauge(metricPrefix+".samples", float64(len(cp)), tags)
}

func pairKey(a, b string) string {
	return a + "\x00" + b
}

func splitPairKey(k string) (a, b string) {
	parts := strings.SplitN(k, "\x00", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return k, "unknown"
}

func withTags(base []string, extras ...string) []string {
	out := make([]string, 0, len(base)+len(extras))
	out = append(out, base...)
	out = append(out, extras...)
	return out
}

func percentileNearestRank(s []float64, p float64) float64 {
	n := len(s)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return s[0]
	}
	if p >= 1 {
		return s[n-1]
	}
	idx := int(p*float64(n-1) + 0.5)
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return s[idx]
}

var _ metrics.Backend = (*Backend)(nil)

// ParseTagsCSV parses comma-separated tags like "env:prod,team:data".
func ParseTagsCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
