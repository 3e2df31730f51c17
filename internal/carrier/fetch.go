package carrier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"FreightTracker/internal/domain"
	"FreightTracker/internal/infrastructure/retry"
	"FreightTracker/internal/ports"
)

const maxBodyBytes = 8 << 20

// errNoRecord is returned when the carrier answers but does not know the tracking number.
var errNoRecord = errors.New("carrier has no record for tracking number")

// fetcher performs one carrier request inside the adapter's invocation budget, retrying transient
// failures and capturing a diagnostic artifact when the budget runs out.
type fetcher struct {
	adapter     string
	urlTemplate string
	timeout     time.Duration
	policy      retry.Policy
	headers     map[string]string
	diagnostics ports.DiagnosticsSink
	logger      *slog.Logger
}

func (f *fetcher) buildURL(trackingNumber string) string {
	return strings.ReplaceAll(f.urlTemplate, "{tracking}", url.QueryEscape(strings.TrimSpace(trackingNumber)))
}

func (f *fetcher) get(ctx context.Context, sess ports.Session, trackingNumber, accept string) ([]byte, error) {
	if sess == nil || sess.HTTPClient() == nil {
		return nil, fmt.Errorf("%s: no session", f.adapter)
	}

	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	target := f.buildURL(trackingNumber)

	var (
		body     []byte
		lastBody []byte
	)
	err := retry.Do(ctx, f.policy, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return retry.Permanent(fmt.Errorf("build request: %w", err))
		}
		req.Header.Set("User-Agent", sess.UserAgent())
		if accept != "" {
			req.Header.Set("Accept", accept)
		}
		for k, v := range f.headers {
			req.Header.Set(k, v)
		}

		resp, err := sess.HTTPClient().Do(req)
		if err != nil {
			f.debug("carrier request failed", "url", target, "error", err)
			return fmt.Errorf("request %s: %w", target, err)
		}
		defer resp.Body.Close()

		payload, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if len(payload) > 0 {
			lastBody = payload
		}
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return retry.Permanent(errNoRecord)
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
			return fmt.Errorf("carrier returned %s", resp.Status)
		case resp.StatusCode >= http.StatusBadRequest:
			return retry.Permanent(&domain.DataError{
				Adapter: f.adapter,
				Err:     fmt.Errorf("carrier returned %s", resp.Status),
			})
		}

		body = payload
		return nil
	})

	switch {
	case err == nil:
		return body, nil
	case errors.Is(err, errNoRecord):
		return nil, errNoRecord
	case isTimeout(err) && parent.Err() == nil:
		return nil, f.timeoutError(parent, trackingNumber, target, lastBody, err)
	}

	var dataErr *domain.DataError
	if errors.As(err, &dataErr) {
		return nil, dataErr
	}
	return nil, fmt.Errorf("%s: %w", f.adapter, err)
}

func (f *fetcher) timeoutError(parent context.Context, trackingNumber, target string, payload []byte, cause error) error {
	timeoutErr := &domain.TimeoutError{Adapter: f.adapter, Err: cause}
	if f.diagnostics == nil {
		return timeoutErr
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), 5*time.Second)
	defer cancel()

	note := fmt.Sprintf("GET %s timed out after %s: %v", target, f.timeout, cause)
	ref, err := f.diagnostics.Capture(ctx, f.adapter, trackingNumber, payload, note)
	if err != nil {
		f.debug("diagnostic capture failed", "error", err)
		return timeoutErr
	}
	timeoutErr.Artifact = ref
	return timeoutErr
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func (f *fetcher) debug(msg string, args ...any) {
	if f.logger != nil {
		f.logger.Debug(msg, args...)
	}
}

// portFromText splits "HAIPHONG (VNHPH)" into name and code; plain text becomes the name.
func portFromText(text string) domain.PortRef {
	text = collapse(text)
	open := strings.LastIndex(text, "(")
	if open > 0 && strings.HasSuffix(text, ")") {
		name := strings.TrimSpace(text[:open])
		code := strings.TrimSpace(text[open+1 : len(text)-1])
		if code != "" {
			return domain.PortRef{Name: name, RawCode: code}
		}
	}
	return domain.PortRef{Name: text}
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
