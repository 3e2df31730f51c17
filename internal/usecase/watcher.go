package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"FreightTracker/internal/domain"
	"FreightTracker/internal/ports"
)

// WatcherDeps wires the watch loop. Repository, Notifier and Driver are optional.
type WatcherDeps struct {
	Tracker         *Tracker
	Repository      ports.RecordRepository
	Notifier        ports.Notifier
	Driver          ports.Scheduler
	TrackingNumbers []string
	Logger          *slog.Logger
}

// FieldChange is one record field that moved since the previous run.
type FieldChange struct {
	Field string `json:"field"`
	Old   string `json:"old"`
	New   string `json:"new"`
}

// Change summarizes what a watch run learned about one tracking number.
type Change struct {
	TrackingNumber string        `json:"trackingNumber"`
	Adapter        string        `json:"adapter,omitempty"`
	First          bool          `json:"first"`
	Fields         []FieldChange `json:"fields,omitempty"`
	Err            string        `json:"error,omitempty"`
}

// Watcher re-tracks a list of shipments and publishes a digest of what changed.
type Watcher struct {
	tracker    *Tracker
	repository ports.RecordRepository
	notifier   ports.Notifier
	driver     ports.Scheduler
	numbers    []string
	logger     *slog.Logger

	// last holds the previous pass per number when no repository is configured.
	mu   sync.Mutex
	last map[string]domain.CanonicalRecord
}

// NewWatcher returns a helper to run or schedule watch passes.
func NewWatcher(deps WatcherDeps) *Watcher {
	return &Watcher{
		tracker:    deps.Tracker,
		repository: deps.Repository,
		notifier:   deps.Notifier,
		driver:     deps.Driver,
		numbers:    deps.TrackingNumbers,
		logger:     deps.Logger,
		last:       map[string]domain.CanonicalRecord{},
	}
}

// RunOnce tracks every watched number, compares with the last stored record and publishes changes.
// Per-number failures become part of the digest; only a cancelled context aborts the pass.
func (w *Watcher) RunOnce(ctx context.Context) ([]Change, error) {
	if w.tracker == nil {
		return nil, fmt.Errorf("tracker is not configured")
	}

	var changes []Change
	for _, number := range w.numbers {
		if err := ctx.Err(); err != nil {
			return changes, err
		}

		change, ok, err := w.check(ctx, number)
		if err != nil {
			return changes, err
		}
		if ok {
			changes = append(changes, change)
		}
	}

	if len(changes) == 0 || w.notifier == nil {
		return changes, nil
	}

	if err := w.notifier.PublishDigest(ctx, BuildDigest(changes)); err != nil {
		return changes, fmt.Errorf("publish digest: %w", err)
	}
	return changes, nil
}

func (w *Watcher) check(ctx context.Context, number string) (Change, bool, error) {
	var (
		previous ports.StoredRecord
		known    bool
	)
	if w.repository != nil {
		var err error
		previous, known, err = w.repository.LatestRecord(ctx, number)
		if err != nil {
			w.warn("load previous record", "tracking", number, "error", err)
		}
	} else {
		w.mu.Lock()
		previous.Record, known = w.last[number]
		w.mu.Unlock()
	}

	res, err := w.tracker.Track(ctx, number)
	if err != nil {
		if ctx.Err() != nil {
			return Change{}, false, err
		}
		w.warn("watch pass failed", "tracking", number, "error", err)
		if known && errors.Is(err, domain.ErrExhausted) {
			return Change{}, false, nil
		}
		return Change{TrackingNumber: number, Err: err.Error()}, true, nil
	}

	if w.repository == nil {
		w.mu.Lock()
		w.last[number] = res.Record
		w.mu.Unlock()
	}

	change := Change{TrackingNumber: number, Adapter: res.Adapter, First: !known}
	if !known {
		for _, f := range res.Record.Fields() {
			if f.Value != "" {
				change.Fields = append(change.Fields, FieldChange{Field: f.Name, New: f.Value})
			}
		}
		return change, true, nil
	}

	old := map[string]string{}
	for _, f := range previous.Record.Fields() {
		old[f.Name] = f.Value
	}
	for _, f := range res.Record.Diff(previous.Record) {
		change.Fields = append(change.Fields, FieldChange{Field: f.Name, Old: old[f.Name], New: f.Value})
	}
	return change, len(change.Fields) > 0, nil
}

// BuildDigest renders changes as a plain-text message.
func BuildDigest(changes []Change) string {
	var b strings.Builder
	for _, c := range changes {
		switch {
		case c.Err != "":
			fmt.Fprintf(&b, "%s: %s\n", c.TrackingNumber, c.Err)
		case c.First:
			fmt.Fprintf(&b, "%s: now tracked via %s\n", c.TrackingNumber, c.Adapter)
		default:
			fmt.Fprintf(&b, "%s: updated via %s\n", c.TrackingNumber, c.Adapter)
		}
		for _, f := range c.Fields {
			if c.First {
				fmt.Fprintf(&b, "  %s: %s\n", f.Field, f.New)
				continue
			}
			fmt.Fprintf(&b, "  %s: %s -> %s\n", f.Field, orDash(f.Old), orDash(f.New))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

// Start registers the watch pass with the scheduler driver.
func (w *Watcher) Start(ctx context.Context) error {
	if w.driver == nil || w.tracker == nil {
		return nil
	}

	job := func(trigger time.Time) {
		w.debug("watch pass", "trigger", trigger, "numbers", len(w.numbers))
		if _, err := w.RunOnce(ctx); err != nil {
			w.warn("watch pass aborted", "error", err)
		}
	}

	return w.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (w *Watcher) Stop(ctx context.Context) error {
	if w.driver == nil {
		return nil
	}

	return w.driver.Stop(ctx)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func (w *Watcher) debug(msg string, args ...any) {
	if w.logger != nil {
		w.logger.Debug(msg, args...)
	}
}

func (w *Watcher) warn(msg string, args ...any) {
	if w.logger != nil {
		w.logger.Warn(msg, args...)
	}
}
