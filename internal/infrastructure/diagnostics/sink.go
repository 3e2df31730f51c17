package diagnostics

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"FreightTracker/internal/ports"
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// FileSink stores diagnostic snapshots of failed carrier invocations on disk.
type FileSink struct {
	dir string
	now func() time.Time
}

var _ ports.DiagnosticsSink = (*FileSink)(nil)

// NewFileSink writes artifacts below dir, creating it on first use.
func NewFileSink(dir string) *FileSink {
	return &FileSink{dir: dir, now: time.Now}
}

// Capture writes the note and payload and returns the artifact path as its reference.
func (s *FileSink) Capture(ctx context.Context, adapter, trackingNumber string, payload []byte, note string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create diagnostics dir: %w", err)
	}

	name := fmt.Sprintf("%s-%s-%s.txt", sanitize(adapter), sanitize(trackingNumber), uuid.NewString())
	path := filepath.Join(s.dir, name)

	var b strings.Builder
	fmt.Fprintf(&b, "adapter: %s\ntracking: %s\ncaptured: %s\nnote: %s\n\n",
		adapter, trackingNumber, s.now().UTC().Format(time.RFC3339), note)
	b.Write(payload)

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("write diagnostic artifact: %w", err)
	}
	return path, nil
}

func sanitize(s string) string {
	s = unsafeChars.ReplaceAllString(strings.TrimSpace(s), "_")
	if s == "" {
		return "unknown"
	}
	return s
}

// NopSink discards every capture request.
type NopSink struct{}

var _ ports.DiagnosticsSink = NopSink{}

func (NopSink) Capture(context.Context, string, string, []byte, string) (string, error) {
	return "", nil
}
