package metrics

import "testing"

type recordingBackend struct {
	counters   map[string]float64
	histograms map[string][]float64
}

func (r *recordingBackend) IncCounter(name string, delta float64, _ Labels) {
	r.counters[name] += delta
}

func (r *recordingBackend) ObserveHistogram(name string, value float64, _ Labels) {
	r.histograms[name] = append(r.histograms[name], value)
}

func TestSetBackendRouting(t *testing.T) {
	rec := &recordingBackend{
		counters:   map[string]float64{},
		histograms: map[string][]float64{},
	}
	SetBackend(rec)
	defer SetBackend(nil)

	IncCounter("c", 2, nil)
	IncCounter("c", 3, nil)
	ObserveHistogram("h", 0.5, nil)

	if rec.counters["c"] != 5 {
		t.Fatalf("counter = %v, want 5", rec.counters["c"])
	}
	if len(rec.histograms["h"]) != 1 {
		t.Fatalf("histogram = %v", rec.histograms["h"])
	}
}

func TestNilBackendIsNop(t *testing.T) {
	SetBackend(nil)
	// Must not panic.
	IncCounter("c", 1, nil)
	ObserveHistogram("h", 1, nil)
	if err := Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
}
