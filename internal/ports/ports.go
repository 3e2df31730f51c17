package ports

import (
	"context"
	"net/http"
	"time"

	"FreightTracker/internal/domain"
)

// Session is a leased handle a carrier adapter uses for its I/O. The orchestrator never looks inside.
type Session interface {
	ID() string
	HTTPClient() *http.Client
	UserAgent() string
}

// SessionProvider hands out sessions from a bounded pool; Acquire blocks while the pool is exhausted.
type SessionProvider interface {
	Acquire(ctx context.Context) (Session, error)
	Release(sess Session)
}

// DiagnosticsSink stores artifacts that explain a failed carrier invocation.
type DiagnosticsSink interface {
	Capture(ctx context.Context, adapter, trackingNumber string, payload []byte, note string) (string, error)
}

// AttemptRecord is the persisted trace of one adapter invocation.
type AttemptRecord struct {
	ID             string
	TrackingNumber string
	Adapter        string
	Outcome        string
	Error          string
	Artifact       string
	Events         int
	Duration       time.Duration
	StartedAt      time.Time
}

// StoredRecord is a canonical record together with where and when it was resolved.
type StoredRecord struct {
	TrackingNumber string
	Adapter        string
	Record         domain.CanonicalRecord
	ResolvedAt     time.Time
}

// RecordRepository keeps the history of tracking attempts and resolved records.
type RecordRepository interface {
	SaveAttempts(ctx context.Context, attempts []AttemptRecord) error
	SaveRecord(ctx context.Context, rec StoredRecord) error
	LatestRecord(ctx context.Context, trackingNumber string) (StoredRecord, bool, error)
	RecentAttempts(ctx context.Context, trackingNumber string, limit int) ([]AttemptRecord, error)
}

// Notifier streams tracking change digests to Telegram or other channels.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler controls when watch runs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
