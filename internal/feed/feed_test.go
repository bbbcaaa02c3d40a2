package feed

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"chartboard/internal/config"
)

func TestDecodeRecordsRootArray(t *testing.T) {
	in := `[{"route":"3","lat":56.9},{"route":"6","lat":56.95},"noise",null]`
	recs, err := decodeRecords(strings.NewReader(in), 100)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(recs) != 2 || recs[0]["route"] != "3" {
		t.Fatalf("recs = %v", recs)
	}
}

func TestDecodeRecordsEnvelope(t *testing.T) {
	in := `{"updated":"now","vehicles":[{"route":"3"},{"route":"6"}]}`
	recs, err := decodeRecords(strings.NewReader(in), 100)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(recs) != 2 || recs[1]["route"] != "6" {
		t.Fatalf("recs = %v", recs)
	}
}

func TestDecodeRecordsSingleObject(t *testing.T) {
	in := `{"route":"3","lat":56.9}`
	recs, err := decodeRecords(strings.NewReader(in), 100)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(recs) != 1 || recs[0]["route"] != "3" {
		t.Fatalf("recs = %v", recs)
	}
}

func TestDecodeRecordsNDJSON(t *testing.T) {
	in := "{\"route\":\"3\"}\n{\"route\":\"6\"}\n{\"route\":\"9\"}\n"
	recs, err := decodeRecords(strings.NewReader(in), 100)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("recs = %v, want all three lines", recs)
	}
}

func TestDecodeRecordsMaxBound(t *testing.T) {
	in := `[{"a":1},{"a":2},{"a":3}]`
	recs, err := decodeRecords(strings.NewReader(in), 2)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("recs = %v, want cap at 2", recs)
	}
}

func TestDecodeRecordsInvalid(t *testing.T) {
	if _, err := decodeRecords(strings.NewReader("{broken"), 10); err == nil {
		t.Fatalf("invalid json must fail")
	}
}

func TestSniffHTML(t *testing.T) {
	if !sniffHTML([]byte("  <!DOCTYPE html><html>")) {
		t.Fatalf("html not detected")
	}
	if sniffHTML([]byte(`{"ok":true}`)) {
		t.Fatalf("json misdetected as html")
	}
}

const boardHTML = `<html><body>
<table>
<tr class="vehicle"><td class="route">3</td><td class="dest">Center</td><td><a class="map" href="/pos/3">map</a></td></tr>
<tr class="vehicle"><td class="route">6</td><td class="dest">Airport</td><td><a class="map" href="/pos/6">map</a></td></tr>
<tr class="vehicle"><td class="route"></td></tr>
</table>
</body></html>`

var boardMappings = []config.FeedMapping{
	{Name: "route", Selector: "td.route"},
	{Name: "destination", Selector: "td.dest"},
	{Name: "position_url", Selector: "a.map", Attr: "href"},
}

func TestExtractHTMLRecords(t *testing.T) {
	recs, err := extractHTMLRecords(strings.NewReader(boardHTML), "tr.vehicle", boardMappings, 0)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("recs = %v, want 2 (field-less row dropped)", recs)
	}
	if recs[0]["route"] != "3" || recs[0]["destination"] != "Center" {
		t.Fatalf("rec 0 = %v", recs[0])
	}
	if recs[1]["position_url"] != "/pos/6" {
		t.Fatalf("rec 1 = %v", recs[1])
	}
	if _, ok := recs[0]["missing"]; ok {
		t.Fatalf("unexpected field in %v", recs[0])
	}
}

func TestExtractHTMLRecordsMaxBound(t *testing.T) {
	recs, err := extractHTMLRecords(strings.NewReader(boardHTML), "tr.vehicle", boardMappings, 1)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("recs = %v, want cap at 1", recs)
	}
}

func TestPollOnceJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"vehicles":[{"route":"3","lat":56.9}]}`))
	}))
	defer srv.Close()

	p := newPollerNoLoop(config.Feed{URL: srv.URL, Mode: "json"})
	p.pollOnce()

	snap := p.Vehicles()
	if len(snap.Vehicles) != 1 || snap.Vehicles[0]["route"] != "3" {
		t.Fatalf("snapshot = %+v", snap)
	}
	if snap.FetchedAt.IsZero() {
		t.Fatalf("FetchedAt not set")
	}
}

// A failed poll keeps the previous snapshot.
func TestPollOnceKeepsLastSnapshot(t *testing.T) {
	fail := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`[{"route":"3"}]`))
	}))
	defer srv.Close()

	p := newPollerNoLoop(config.Feed{URL: srv.URL, Mode: "json"})
	p.pollOnce()
	if len(p.Vehicles().Vehicles) != 1 {
		t.Fatalf("first poll did not populate snapshot")
	}

	fail = true
	p.pollOnce()
	if len(p.Vehicles().Vehicles) != 1 {
		t.Fatalf("failed poll must keep the previous snapshot")
	}
}

func TestPollOnceHTMLErrorPageInJSONMode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>maintenance</body></html>"))
	}))
	defer srv.Close()

	p := newPollerNoLoop(config.Feed{URL: srv.URL, Mode: "json"})
	p.pollOnce()
	if len(p.Vehicles().Vehicles) != 0 {
		t.Fatalf("html error page must not produce vehicles")
	}
}

func TestPollOnceHTMLMode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(boardHTML))
	}))
	defer srv.Close()

	p := newPollerNoLoop(config.Feed{
		URL:            srv.URL,
		Mode:           "html",
		RecordSelector: "tr.vehicle",
		Mappings:       boardMappings,
	})
	p.pollOnce()

	snap := p.Vehicles()
	if len(snap.Vehicles) != 2 || snap.Vehicles[0]["route"] != "3" {
		t.Fatalf("snapshot = %+v", snap)
	}
}
