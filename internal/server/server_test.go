package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FreightTracker/internal/carrier"
	"FreightTracker/internal/domain"
	"FreightTracker/internal/ports"
	"FreightTracker/internal/usecase"
)

var now = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

type stubSession struct{}

func (stubSession) ID() string               { return "stub" }
func (stubSession) HTTPClient() *http.Client { return http.DefaultClient }
func (stubSession) UserAgent() string        { return "stub" }

type stubProvider struct{}

func (stubProvider) Acquire(context.Context) (ports.Session, error) { return stubSession{}, nil }
func (stubProvider) Release(ports.Session)                          {}

type stubAdapter struct {
	name   string
	known  map[string]domain.Shipment
	errFor map[string]error
}

func (a stubAdapter) Name() string { return a.name }

func (a stubAdapter) Scrape(_ context.Context, _ ports.Session, n string) (domain.Shipment, error) {
	if err := a.errFor[n]; err != nil {
		return domain.Shipment{}, err
	}
	return a.known[n], nil
}

type stubRepository struct {
	record   ports.StoredRecord
	attempts []ports.AttemptRecord
}

func (r *stubRepository) SaveAttempts(_ context.Context, a []ports.AttemptRecord) error {
	r.attempts = append(r.attempts, a...)
	return nil
}

func (r *stubRepository) SaveRecord(_ context.Context, rec ports.StoredRecord) error {
	r.record = rec
	return nil
}

func (r *stubRepository) LatestRecord(_ context.Context, n string) (ports.StoredRecord, bool, error) {
	if r.record.TrackingNumber != n {
		return ports.StoredRecord{}, false, nil
	}
	return r.record, true, nil
}

func (r *stubRepository) RecentAttempts(_ context.Context, n string, limit int) ([]ports.AttemptRecord, error) {
	var out []ports.AttemptRecord
	for _, a := range r.attempts {
		if a.TrackingNumber == n && len(out) < limit {
			out = append(out, a)
		}
	}
	return out, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *stubRepository) {
	t.Helper()

	shipment := domain.Shipment{
		BookingNo: "BK1",
		Pol:       domain.PortRef{Name: "Busan", RawCode: "KRPUS"},
		Pod:       domain.PortRef{Name: "Haiphong", RawCode: "VNHPH"},
		Events: []domain.Event{
			{Description: "Vessel departure", Location: "BUSAN (KRPUS)", Timestamp: now.Add(-72 * time.Hour)},
		},
	}

	reg := carrier.NewRegistry()
	reg.Register(stubAdapter{name: "slow", errFor: map[string]error{
		"HDMU1": &domain.TimeoutError{Adapter: "slow", Artifact: "diag/slow.txt"},
		"GHOST": &domain.TimeoutError{Adapter: "slow", Artifact: "diag/ghost.txt"},
	}})
	reg.Register(stubAdapter{name: "hmm", known: map[string]domain.Shipment{"HDMU1": shipment}})

	repo := &stubRepository{}
	tracker := usecase.NewTracker(usecase.TrackerDeps{
		Registry:   reg,
		Sessions:   stubProvider{},
		Repository: repo,
		Clock:      func() time.Time { return now },
	})

	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("freighttracker_up 1\n"))
	})

	handler, err := New(Config{Tracker: tracker, Repository: repo, Metrics: metrics, Clock: func() time.Time { return now }})
	require.NoError(t, err)

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, repo
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	var body map[string]string
	status := getJSON(t, srv.URL+"/v1/health", &body)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func TestTrackMatched(t *testing.T) {
	t.Parallel()

	srv, repo := newTestServer(t)
	var body TrackResponse
	status := getJSON(t, srv.URL+"/v1/track/HDMU1", &body)

	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "hmm", body.Adapter)
	assert.Equal(t, "07/03/2025", body.Record.Atd)
	assert.Equal(t, "BK1", body.Record.BookingNo)
	require.Len(t, body.Attempts, 2)
	assert.Equal(t, usecase.OutcomeTimeout, body.Attempts[0].Outcome)
	assert.Equal(t, "diag/slow.txt", body.Attempts[0].Artifact)
	assert.Len(t, repo.attempts, 2)
}

func TestTrackExhaustedIs404(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	var body struct {
		Error apiErrorBody `json:"error"`
	}
	status := getJSON(t, srv.URL+"/v1/track/GHOST", &body)

	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not_found", body.Error.Code)
	assert.Contains(t, body.Error.Message, "tried: slow, hmm")
	assert.Equal(t, []any{"slow", "hmm"}, body.Error.Details["tried"])
}

func TestRecords(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)

	var missing struct {
		Error apiErrorBody `json:"error"`
	}
	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/v1/records/HDMU1", &missing))

	var tracked TrackResponse
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/v1/track/HDMU1", &tracked))

	var body RecordResponse
	status := getJSON(t, srv.URL+"/v1/records/HDMU1?limit=1", &body)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, tracked.Record, body.Record)
	assert.Len(t, body.Attempts, 1)
}

func TestResolve(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	payload := `{
	  "pol": {"name": "Busan", "rawCode": "KRPUS"},
	  "pod": {"name": "Haiphong", "rawCode": "VNHPH"},
	  "scheduledEta": "20/03/2025",
	  "events": [
	    {"description": "Loaded on vessel", "location": "BUSAN (KRPUS)", "timestamp": "2025-03-02T09:00:00Z"},
	    {"description": "T/S discharged", "location": "SINGAPORE (SGSIN)", "timestamp": "2025-03-07T09:00:00Z", "qualifier": "actual"},
	    {"description": "Discharged", "location": "HAIPHONG (VNHPH)", "timestamp": "2025-03-18T09:00:00Z"}
	  ]
	}`

	resp, err := http.Post(srv.URL+"/v1/resolve", "application/json", bytes.NewBufferString(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var record domain.CanonicalRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&record))
	assert.Equal(t, "02/03/2025", record.Atd)
	assert.Equal(t, "07/03/2025", record.AtaTransit)
	assert.Equal(t, "18/03/2025", record.Eta)
	assert.Equal(t, "SINGAPORE (SGSIN)", record.TransitPort)
}

func TestMetricsMounted(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "freighttracker_up")
}
