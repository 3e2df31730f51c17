package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleYAML = `
logging:
  level: debug
pool:
  size: 2
  requestTimeout: 15s
scheduler:
  interval: 30m
  timezone: Asia/Seoul
watch:
  trackingNumbers: ["HDMU1234567", "MAEU7654321"]
carriers:
  - name: hmm
    type: html
    url: "https://tracking.example.com/hmm?bl={tracking}"
    timeout: 45s
    timezone: Asia/Seoul
    dateLayouts: ["2006-01-02 15:04"]
    retry:
      attempts: 2
      baseDelay: 250ms
    html:
      rows: "table.events tbody tr"
      description: "td:nth-child(1)"
      location: "td:nth-child(2)"
      timestamp: "td:nth-child(3)"
      pol: "#pol"
      pod: "#pod"
  - name: dcsa-feed
    type: dcsa
    url: "https://api.example.com/v2/shipments/{tracking}"
    headers:
      API-Key: secret
`

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(databasePathEnv, "/tmp/override.db")

	cfg := Load(path)

	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "text" {
		t.Fatalf("unexpected logging config: %+v", cfg.Logging)
	}
	if cfg.Pool.Size != 2 || cfg.Pool.RequestTimeout != 15*time.Second {
		t.Fatalf("unexpected pool config: %+v", cfg.Pool)
	}
	if cfg.Pool.UserAgent != "FreightTracker/1.0" {
		t.Fatalf("default user agent lost: %q", cfg.Pool.UserAgent)
	}
	if cfg.Scheduler.Interval != 30*time.Minute {
		t.Fatalf("unexpected interval: %v", cfg.Scheduler.Interval)
	}
	if cfg.Scheduler.Location().String() != "Asia/Seoul" {
		t.Fatalf("timezone not bound: %v", cfg.Scheduler.Location())
	}
	if cfg.Database.Path != "/tmp/override.db" {
		t.Fatalf("env override not applied: %q", cfg.Database.Path)
	}
	if got := strings.Join(cfg.CarrierNames(), ","); got != "hmm,dcsa-feed" {
		t.Fatalf("carrier order = %s", got)
	}

	hmm := cfg.Carriers[0]
	if hmm.Timeout != 45*time.Second || hmm.Retry.Attempts != 2 || hmm.Retry.BaseDelay != 250*time.Millisecond {
		t.Fatalf("unexpected carrier config: %+v", hmm)
	}
	if hmm.HTML.Rows != "table.events tbody tr" {
		t.Fatalf("selectors not decoded: %+v", hmm.HTML)
	}
	if cfg.Carriers[1].Headers["API-Key"] != "secret" {
		t.Fatalf("headers not decoded: %+v", cfg.Carriers[1].Headers)
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLoadMissingFileFallsBack(t *testing.T) {
	cfg := Load(filepath.Join(t.TempDir(), "missing.yml"))
	if cfg.Pool.Size != 4 || cfg.Server.BasePath != "/v1" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	base := defaultConfig()

	tests := []struct {
		name     string
		carriers []CarrierConfig
		wantErr  string
	}{
		{"unnamed", []CarrierConfig{{Type: CarrierTypeDCSA, URL: "http://x"}}, "name is required"},
		{"duplicate", []CarrierConfig{
			{Name: "a", Type: CarrierTypeDCSA, URL: "http://x"},
			{Name: "a", Type: CarrierTypeDCSA, URL: "http://y"},
		}, "duplicate"},
		{"unknown type", []CarrierConfig{{Name: "a", Type: "selenium", URL: "http://x"}}, "unknown type"},
		{"html without rows", []CarrierConfig{{Name: "a", Type: CarrierTypeHTML, URL: "http://x"}}, "selectors are required"},
		{"bad timezone", []CarrierConfig{{Name: "a", Type: CarrierTypeDCSA, URL: "http://x", Timezone: "Mars/Olympus"}}, "carrier a"},
		{"missing url", []CarrierConfig{{Name: "a", Type: CarrierTypeDCSA}}, "url is required"},
	}

	for _, tt := range tests {
		cfg := base
		cfg.Carriers = tt.carriers
		err := cfg.Validate()
		if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
			t.Fatalf("%s: expected error containing %q, got %v", tt.name, tt.wantErr, err)
		}
	}
}
