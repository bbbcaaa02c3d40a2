// Package feed polls an upstream vehicle-position feed on a fixed
// interval and keeps the most recent snapshot in memory for the service
// to serve. A failed poll keeps the previous snapshot.
package feed

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"chartboard/internal/config"
	"chartboard/internal/dataset"
	"chartboard/internal/metrics"
)

// Snapshot is one successfully decoded poll result.
type Snapshot struct {
	Vehicles  []dataset.Record
	FetchedAt time.Time
}

// Poller periodically fetches and decodes the configured feed.
type Poller struct {
	cfg    config.Feed
	client *http.Client

	mu   sync.RWMutex
	snap Snapshot

	stopCh chan struct{}
	doneCh chan struct{}

	// Test seams.
	now       func() time.Time
	newTicker func(time.Duration) *time.Ticker
}

// NewPoller creates a poller for cfg and starts its polling loop. The
// first poll happens immediately. Call Close to stop it.
func NewPoller(cfg config.Feed) *Poller {
	p := newPollerNoLoop(cfg)
	go p.loop()
	return p
}

func newPollerNoLoop(cfg config.Feed) *Poller {
	if cfg.IntervalSeconds <= 0 {
		cfg.IntervalSeconds = config.DefaultFeedIntervalSec
	}
	if cfg.MaxVehicles <= 0 {
		cfg.MaxVehicles = config.DefaultMaxVehicles
	}
	return &Poller{
		cfg:       cfg,
		client:    &http.Client{Timeout: 20 * time.Second},
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
		now:       time.Now,
		newTicker: time.NewTicker,
	}
}

// Vehicles returns the latest snapshot. The slice is shared; callers
// must not mutate it.
func (p *Poller) Vehicles() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snap
}

// Close stops the polling loop and waits for it to exit.
func (p *Poller) Close() {
	close(p.stopCh)
	<-p.doneCh
}

func (p *Poller) loop() {
	defer close(p.doneCh)

	interval := time.Duration(p.cfg.IntervalSeconds) * time.Second
	ticker := p.newTicker(interval)
	defer ticker.Stop()

	p.pollOnce()
	for {
		select {
		case <-ticker.C:
			p.pollOnce()
		case <-p.stopCh:
			return
		}
	}
}

func (p *Poller) pollOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	vehicles, err := p.fetch(ctx)
	if err != nil {
		metrics.IncCounter("chartboard_feed_polls_total", 1, metrics.Labels{"status": "error"})
		log.Printf("feed: poll %s failed: %v", p.cfg.URL, err)
		return
	}
	metrics.IncCounter("chartboard_feed_polls_total", 1, metrics.Labels{"status": "ok"})

	p.mu.Lock()
	p.snap = Snapshot{Vehicles: vehicles, FetchedAt: p.now()}
	p.mu.Unlock()
}

func (p *Poller) fetch(ctx context.Context) ([]dataset.Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("fetch feed: unexpected status %s", resp.Status)
	}

	return p.decode(resp.Body)
}

// decode interprets one feed body according to the configured mode.
func (p *Poller) decode(body io.Reader) ([]dataset.Record, error) {
	switch p.cfg.Mode {
	case "html":
		return extractHTMLRecords(body, p.cfg.RecordSelector, p.cfg.Mappings, p.cfg.MaxVehicles)
	default:
		// JSON mode. Upstreams sometimes serve an HTML error page with a
		// 200; detect that before handing the body to the JSON decoder.
		buf, err := io.ReadAll(io.LimitReader(body, 32<<20))
		if err != nil {
			return nil, fmt.Errorf("read feed body: %w", err)
		}
		if sniffHTML(buf) {
			return nil, fmt.Errorf("feed returned html, expected json")
		}
		return decodeRecords(bytes.NewReader(buf), p.cfg.MaxVehicles)
	}
}
