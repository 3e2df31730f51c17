package carrier

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"

	"FreightTracker/internal/config"
	"FreightTracker/internal/domain"
	"FreightTracker/internal/milestone"
)

const trackingPage = `
<html><body>
  <div class="summary">
    <span id="booking">BKG778899</span>
    <span id="bl">HDMU1234567</span>
    <span id="status">Confirmed</span>
    <span id="pol">BUSAN, KOREA (KRPUS)</span>
    <span id="pod">HAIPHONG (VNHPH)</span>
    <span id="etd">01/03/2025</span>
    <span id="eta">20/03/2025</span>
  </div>
  <table class="events"><tbody>
    <tr><td class="desc">Loaded on vessel</td><td class="loc">BUSAN, KOREA (KRPUS)</td><td class="time">02/03/2025 09:00</td><td class="state">Actual</td></tr>
    <tr><td class="desc">Transhipment discharged from vessel</td><td class="loc">SINGAPORE (SGSIN)</td><td class="time">07/03/2025 11:30</td><td class="state">Actual</td></tr>
    <tr><td class="desc">Transhipment loaded on vessel</td><td class="loc">SINGAPORE (SGSIN)</td><td class="time">12/03/2025 18:00</td><td class="state">Estimated</td></tr>
    <tr><td class="desc">Broken row</td><td class="loc">SINGAPORE (SGSIN)</td><td class="time">soon</td><td class="state"></td></tr>
    <tr><td class="desc">Discharged from vessel</td><td class="loc">HAIPHONG (VNHPH)</td><td class="time">18/03/2025 07:00</td><td class="state">Estimated</td></tr>
  </tbody></table>
</body></html>`

func testSelectors() config.HTMLSelectorConfig {
	return config.HTMLSelectorConfig{
		Rows:          "table.events tbody tr",
		Description:   "td.desc",
		Location:      "td.loc",
		Timestamp:     "td.time",
		Qualifier:     "td.state",
		Pol:           "#pol",
		Pod:           "#pod",
		Etd:           "#etd",
		Eta:           "#eta",
		BookingNo:     "#booking",
		BlNumber:      "#bl",
		BookingStatus: "#status",
		NotFound:      ".no-result",
	}
}

func newHTMLTestAdapter(t *testing.T, url string) *HTMLAdapter {
	t.Helper()
	adapter, err := NewFromConfig(config.CarrierConfig{
		Name:    "hmm",
		Type:    config.CarrierTypeHTML,
		URL:     url,
		Timeout: 2 * time.Second,
		Retry:   config.RetryConfig{Attempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
		HTML:    testSelectors(),
	}, Deps{})
	if err != nil {
		t.Fatalf("NewFromConfig: %v", err)
	}
	return adapter.(*HTMLAdapter)
}

func TestPortFromText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want domain.PortRef
	}{
		{"HAIPHONG (VNHPH)", domain.PortRef{Name: "HAIPHONG", RawCode: "VNHPH"}},
		{"  BUSAN,   KOREA (KRPUS) ", domain.PortRef{Name: "BUSAN, KOREA", RawCode: "KRPUS"}},
		{"Singapore", domain.PortRef{Name: "Singapore"}},
		{"Odd ()", domain.PortRef{Name: "Odd ()"}},
		{"", domain.PortRef{}},
	}

	for _, tt := range tests {
		if got := portFromText(tt.in); got != tt.want {
			t.Fatalf("portFromText(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestHTMLAdapterParseDocument(t *testing.T) {
	t.Parallel()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(trackingPage))
	if err != nil {
		t.Fatalf("new document: %v", err)
	}

	a := newHTMLTestAdapter(t, "http://unused/{tracking}")
	s, err := a.parseDocument(doc, "HDMU1234567")
	if err != nil {
		t.Fatalf("parseDocument error: %v", err)
	}

	if s.Pol != (domain.PortRef{Name: "BUSAN, KOREA", RawCode: "KRPUS"}) {
		t.Fatalf("unexpected pol: %+v", s.Pol)
	}
	if s.Pod.RawCode != "VNHPH" {
		t.Fatalf("unexpected pod: %+v", s.Pod)
	}
	if s.BookingNo != "BKG778899" || s.BlNumber != "HDMU1234567" || s.BookingStatus != "Confirmed" {
		t.Fatalf("unexpected identifiers: %+v", s)
	}
	if s.ScheduledEtd != "01/03/2025" || s.ScheduledEta != "20/03/2025" {
		t.Fatalf("unexpected schedule: %s / %s", s.ScheduledEtd, s.ScheduledEta)
	}
	if len(s.Events) != 4 {
		t.Fatalf("expected 4 events (broken row dropped), got %d", len(s.Events))
	}

	first := s.Events[0]
	if first.Description != "Loaded on vessel" || first.Qualifier != domain.QualifierActual {
		t.Fatalf("unexpected first event: %+v", first)
	}
	want := time.Date(2025, time.March, 2, 9, 0, 0, 0, time.UTC)
	if !first.Timestamp.Equal(want) {
		t.Fatalf("unexpected timestamp: %v", first.Timestamp)
	}
	if s.Events[2].Qualifier != domain.QualifierEstimated {
		t.Fatalf("expected estimated transit load, got %v", s.Events[2].Qualifier)
	}
}

func TestHTMLAdapterNotFoundMarker(t *testing.T) {
	t.Parallel()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`<div class="no-result">No data</div>`))
	if err != nil {
		t.Fatalf("new document: %v", err)
	}

	s, err := newHTMLTestAdapter(t, "http://unused").parseDocument(doc, "X1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s.Events) != 0 || s.TrackingNumber != "X1" {
		t.Fatalf("expected empty shipment, got %+v", s)
	}
}

func TestHTMLAdapterRowsWithoutPorts(t *testing.T) {
	t.Parallel()

	page := `<table class="events"><tbody><tr><td class="time">02/03/2025 09:00</td></tr></tbody></table>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		t.Fatalf("new document: %v", err)
	}

	_, err = newHTMLTestAdapter(t, "http://unused").parseDocument(doc, "X1")
	if !errors.Is(err, domain.ErrAdapterData) {
		t.Fatalf("expected data error, got %v", err)
	}
}

func TestHTMLAdapterScrape(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if r.URL.Query().Get("bl") != "HDMU1234567" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("User-Agent") != "test-agent" {
			t.Errorf("unexpected user agent %q", r.Header.Get("User-Agent"))
		}
		if n == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(trackingPage))
	}))
	defer server.Close()

	a := newHTMLTestAdapter(t, server.URL+"/track?bl={tracking}")
	sess := &testSession{client: server.Client()}

	s, err := a.Scrape(context.Background(), sess, "HDMU1234567")
	if err != nil {
		t.Fatalf("Scrape error: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected one retry after 503, got %d calls", calls.Load())
	}

	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	rec := milestone.ResolveShipment(s, now)
	if rec.Atd != "02/03/2025" || rec.AtaTransit != "07/03/2025" || rec.EtdTransit != "12/03/2025" || rec.Eta != "18/03/2025" {
		t.Fatalf("unexpected resolved record: %+v", rec)
	}
	if rec.TransitPort != "SINGAPORE (SGSIN)" {
		t.Fatalf("unexpected transit port: %q", rec.TransitPort)
	}
}

func TestHTMLAdapterScrapeUnknownNumber(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	a := newHTMLTestAdapter(t, server.URL+"/track?bl={tracking}")
	s, err := a.Scrape(context.Background(), &testSession{client: server.Client()}, "NOPE")
	if err != nil {
		t.Fatalf("404 should be an empty result, got %v", err)
	}
	if len(s.Events) != 0 {
		t.Fatalf("expected no events, got %d", len(s.Events))
	}
}
