package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"FreightTracker/internal/carrier"
	"FreightTracker/internal/domain"
	"FreightTracker/internal/milestone"
	"FreightTracker/internal/ports"
)

// Attempt outcomes, one per adapter invocation.
const (
	OutcomeMatched      = "matched"
	OutcomeEmpty        = "empty"
	OutcomeTimeout      = "timeout"
	OutcomeDataError    = "data_error"
	OutcomeError        = "error"
	OutcomeSessionError = "session_error"
)

// AttemptObserver receives per-attempt and per-track measurements, typically for metrics.
type AttemptObserver interface {
	ObserveAttempt(adapter, outcome string, took time.Duration)
	ObserveTrack(result string, took time.Duration)
}

// TrackerDeps wires driven adapters into the tracker. Only Sessions is mandatory.
type TrackerDeps struct {
	Registry    *carrier.Registry
	Order       []string
	Sessions    ports.SessionProvider
	Repository  ports.RecordRepository
	Diagnostics ports.DiagnosticsSink
	Observer    AttemptObserver
	Logger      *slog.Logger
	Clock       func() time.Time
}

// Attempt is the trace of one adapter invocation.
type Attempt struct {
	ID        string        `json:"id"`
	Adapter   string        `json:"adapter"`
	Outcome   string        `json:"outcome"`
	Err       string        `json:"error,omitempty"`
	Artifact  string        `json:"artifact,omitempty"`
	Events    int           `json:"events"`
	Duration  time.Duration `json:"duration"`
	StartedAt time.Time     `json:"startedAt"`
}

// Result is what Track reports for a matched tracking number.
type Result struct {
	TrackingNumber string                 `json:"trackingNumber"`
	Adapter        string                 `json:"adapter"`
	Record         domain.CanonicalRecord `json:"record"`
	Attempts       []Attempt              `json:"attempts"`
	ResolvedAt     time.Time              `json:"resolvedAt"`
}

// Tracker tries carrier adapters in order until one of them knows the tracking number.
type Tracker struct {
	registry    *carrier.Registry
	order       []string
	sessions    ports.SessionProvider
	repository  ports.RecordRepository
	diagnostics ports.DiagnosticsSink
	observer    AttemptObserver
	logger      *slog.Logger
	clock       func() time.Time
}

// NewTracker constructs the orchestration component.
func NewTracker(deps TrackerDeps) *Tracker {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Tracker{
		registry:    deps.Registry,
		order:       deps.Order,
		sessions:    deps.Sessions,
		repository:  deps.Repository,
		diagnostics: deps.Diagnostics,
		observer:    deps.Observer,
		logger:      deps.Logger,
		clock:       clock,
	}
}

// Adapters returns the configured adapters in tracking order.
func (t *Tracker) Adapters() ([]carrier.Adapter, error) {
	if t.registry == nil {
		return nil, fmt.Errorf("carrier registry is not configured")
	}
	return t.registry.Ordered(t.order)
}

// Track runs the configured adapters for trackingNumber and records the outcome when a repository
// is configured. On exhaustion the returned Result still carries the attempts.
func (t *Tracker) Track(ctx context.Context, trackingNumber string) (Result, error) {
	trackingNumber = strings.TrimSpace(trackingNumber)
	if trackingNumber == "" {
		return Result{}, fmt.Errorf("tracking number is required")
	}

	adapters, err := t.Adapters()
	if err != nil {
		return Result{}, err
	}

	record, attempts, err := t.TrackAcrossAllSources(ctx, trackingNumber, adapters)
	res := Result{
		TrackingNumber: trackingNumber,
		Record:         record,
		Attempts:       attempts,
		ResolvedAt:     t.clock(),
	}
	if err == nil && len(attempts) > 0 {
		res.Adapter = attempts[len(attempts)-1].Adapter
	}

	t.persist(ctx, res, err == nil)
	return res, err
}

// TrackAcrossAllSources invokes adapters strictly in order and stops at the first one that returns
// events without an error. Adapter failures are never retried here; they only advance the loop.
func (t *Tracker) TrackAcrossAllSources(ctx context.Context, trackingNumber string, adapters []carrier.Adapter) (domain.CanonicalRecord, []Attempt, error) {
	if t.sessions == nil {
		return domain.CanonicalRecord{}, nil, fmt.Errorf("session provider is not configured")
	}

	started := t.clock()
	attempts := make([]Attempt, 0, len(adapters))
	tried := make([]string, 0, len(adapters))

	for _, adapter := range adapters {
		name := adapter.Name()
		tried = append(tried, name)

		attempt, shipment, err := t.attempt(ctx, adapter, trackingNumber)
		attempts = append(attempts, attempt)
		t.observeAttempt(attempt)

		if err != nil {
			t.observeTrack("cancelled", started)
			return domain.CanonicalRecord{}, attempts, err
		}

		if attempt.Outcome == OutcomeMatched {
			record := milestone.ResolveShipment(shipment, t.clock())
			t.debug("tracking number matched", "tracking", trackingNumber, "adapter", name, "events", attempt.Events)
			t.observeTrack(OutcomeMatched, started)
			return record, attempts, nil
		}

		t.debug("adapter did not match, trying next", "tracking", trackingNumber, "adapter", name, "outcome", attempt.Outcome)
	}

	t.observeTrack("exhausted", started)
	return domain.CanonicalRecord{}, attempts, &domain.ExhaustedError{TrackingNumber: trackingNumber, Tried: tried}
}

// attempt performs one adapter invocation. The returned error is non-nil only when the caller's
// context ended while waiting for a session, which aborts the whole loop.
func (t *Tracker) attempt(ctx context.Context, adapter carrier.Adapter, trackingNumber string) (Attempt, domain.Shipment, error) {
	attempt := Attempt{
		ID:        uuid.NewString(),
		Adapter:   adapter.Name(),
		StartedAt: t.clock(),
	}
	begin := time.Now()

	sess, err := t.sessions.Acquire(ctx)
	if err != nil {
		attempt.Outcome = OutcomeSessionError
		attempt.Err = err.Error()
		attempt.Duration = time.Since(begin)
		if ctx.Err() != nil {
			return attempt, domain.Shipment{}, fmt.Errorf("track %s: %w", trackingNumber, err)
		}
		t.warn("cannot lease session", "adapter", attempt.Adapter, "error", err)
		return attempt, domain.Shipment{}, nil
	}

	shipment, scrapeErr := adapter.Scrape(ctx, sess, trackingNumber)
	t.sessions.Release(sess)
	attempt.Duration = time.Since(begin)

	switch {
	case scrapeErr == nil && len(shipment.Events) > 0:
		attempt.Outcome = OutcomeMatched
		attempt.Events = len(shipment.Events)
	case scrapeErr == nil:
		attempt.Outcome = OutcomeEmpty
	case errors.Is(scrapeErr, domain.ErrAdapterTimeout):
		attempt.Outcome = OutcomeTimeout
		attempt.Err = scrapeErr.Error()
		attempt.Artifact = t.artifactFor(ctx, attempt.Adapter, trackingNumber, scrapeErr)
	case errors.Is(scrapeErr, domain.ErrAdapterData):
		attempt.Outcome = OutcomeDataError
		attempt.Err = scrapeErr.Error()
	default:
		attempt.Outcome = OutcomeError
		attempt.Err = scrapeErr.Error()
	}

	if attempt.Err != "" {
		t.warn("adapter failed", "adapter", attempt.Adapter, "tracking", trackingNumber, "outcome", attempt.Outcome, "error", attempt.Err)
	}
	return attempt, shipment, nil
}

// artifactFor returns the adapter's own diagnostic reference, or captures one when it has none.
func (t *Tracker) artifactFor(ctx context.Context, adapter, trackingNumber string, err error) string {
	var timeoutErr *domain.TimeoutError
	if errors.As(err, &timeoutErr) && timeoutErr.Artifact != "" {
		return timeoutErr.Artifact
	}
	if t.diagnostics == nil {
		return ""
	}

	captureCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	ref, cerr := t.diagnostics.Capture(captureCtx, adapter, trackingNumber, nil, err.Error())
	if cerr != nil {
		t.warn("diagnostic capture failed", "adapter", adapter, "error", cerr)
		return ""
	}
	return ref
}

func (t *Tracker) persist(ctx context.Context, res Result, matched bool) {
	if t.repository == nil || len(res.Attempts) == 0 {
		return
	}

	records := make([]ports.AttemptRecord, 0, len(res.Attempts))
	for _, a := range res.Attempts {
		records = append(records, ports.AttemptRecord{
			ID:             a.ID,
			TrackingNumber: res.TrackingNumber,
			Adapter:        a.Adapter,
			Outcome:        a.Outcome,
			Error:          a.Err,
			Artifact:       a.Artifact,
			Events:         a.Events,
			Duration:       a.Duration,
			StartedAt:      a.StartedAt,
		})
	}

	ctx = context.WithoutCancel(ctx)
	if err := t.repository.SaveAttempts(ctx, records); err != nil {
		t.warn("persist attempts", "tracking", res.TrackingNumber, "error", err)
	}

	if !matched {
		return
	}
	err := t.repository.SaveRecord(ctx, ports.StoredRecord{
		TrackingNumber: res.TrackingNumber,
		Adapter:        res.Adapter,
		Record:         res.Record,
		ResolvedAt:     res.ResolvedAt,
	})
	if err != nil {
		t.warn("persist record", "tracking", res.TrackingNumber, "error", err)
	}
}

func (t *Tracker) observeAttempt(a Attempt) {
	if t.observer != nil {
		t.observer.ObserveAttempt(a.Adapter, a.Outcome, a.Duration)
	}
}

func (t *Tracker) observeTrack(result string, started time.Time) {
	if t.observer != nil {
		t.observer.ObserveTrack(result, t.clock().Sub(started))
	}
}

func (t *Tracker) debug(msg string, args ...any) {
	if t.logger != nil {
		t.logger.Debug(msg, args...)
	}
}

func (t *Tracker) warn(msg string, args ...any) {
	if t.logger != nil {
		t.logger.Warn(msg, args...)
	}
}
