package app

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FreightTracker/internal/config"
	"FreightTracker/internal/logging"
)

const feed = `{
  "carrierBookingReference": "MAEBK001",
  "portOfLoading": {"locationName": "Busan", "UNLocationCode": "KRPUS"},
  "portOfDischarge": {"locationName": "Haiphong", "UNLocationCode": "VNHPH"},
  "events": [
    {"eventType": "TRANSPORT", "transportEventTypeCode": "DEPA", "eventClassifierCode": "ACT",
     "eventDateTime": "2025-03-02T09:00:00Z", "transportCall": {"location": {"locationName": "Busan", "UNLocationCode": "KRPUS"}}}
  ]
}`

func testConfig(t *testing.T, carrierURL string) config.Config {
	t.Helper()
	dir := t.TempDir()
	return config.Config{
		Logging:     config.LoggingConfig{Level: "error"},
		Database:    config.DatabaseConfig{Path: filepath.Join(dir, "history.db")},
		Pool:        config.PoolConfig{Size: 2},
		Scheduler:   config.SchedulerConfig{Interval: time.Hour},
		Watch:       config.WatchConfig{TrackingNumbers: []string{"MAEU1"}},
		Diagnostics: config.DiagnosticsConfig{Dir: filepath.Join(dir, "diagnostics")},
		Carriers: []config.CarrierConfig{{
			Name:    "maersk",
			Type:    config.CarrierTypeDCSA,
			URL:     carrierURL + "/track/{tracking}",
			Timeout: 2 * time.Second,
			Retry:   config.RetryConfig{Attempts: 1},
		}},
	}
}

func newCarrierServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/track/MAEU1" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, feed)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewWiresTrackerAndHistory(t *testing.T) {
	t.Parallel()

	carrierSrv := newCarrierServer(t)
	a, err := New(testConfig(t, carrierSrv.URL), logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	res, err := a.Tracker().Track(context.Background(), "MAEU1")
	require.NoError(t, err)
	assert.Equal(t, "maersk", res.Adapter)
	assert.Equal(t, "MAEBK001", res.Record.BookingNo)
	assert.Equal(t, "02/03/2025", res.Record.Atd)

	api := httptest.NewServer(a.Handler())
	t.Cleanup(api.Close)

	resp, err := http.Get(api.URL + "/v1/records/MAEU1")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(api.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `freighttracker_adapter_attempts_total{adapter="maersk",outcome="matched"} 1`)
}

func TestRunReportsFirstSighting(t *testing.T) {
	t.Parallel()

	carrierSrv := newCarrierServer(t)
	a, err := New(testConfig(t, carrierSrv.URL), logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	changes, err := a.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.True(t, changes[0].First)

	changes, err = a.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, changes)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "http://127.0.0.1")
	cfg.Carriers = append(cfg.Carriers, cfg.Carriers[0])

	_, err := New(cfg, logging.Discard())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate carrier name")
}
