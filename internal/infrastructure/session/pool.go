// Package session provides the fixed-size pool of reusable HTTP sessions leased to carrier adapters.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/publicsuffix"

	"FreightTracker/internal/ports"
)

// ErrPoolClosed is returned by Acquire after Close.
var ErrPoolClosed = errors.New("session pool closed")

// HTTPSession is one reusable browsing identity: a client with its own cookie jar.
type HTTPSession struct {
	id        string
	client    *http.Client
	userAgent string
	createdAt time.Time
	uses      int
	closed    bool
}

var _ ports.Session = (*HTTPSession)(nil)

func (s *HTTPSession) ID() string               { return s.id }
func (s *HTTPSession) HTTPClient() *http.Client { return s.client }
func (s *HTTPSession) UserAgent() string        { return s.userAgent }

// Uses reports how many times the session has been leased.
func (s *HTTPSession) Uses() int { return s.uses }

// Observer receives pool lifecycle notifications, typically for metrics.
type Observer interface {
	SessionCreated()
	SessionDiscarded(reason string)
	SessionsInUse(n int)
}

type nopObserver struct{}

func (nopObserver) SessionCreated()         {}
func (nopObserver) SessionDiscarded(string) {}
func (nopObserver) SessionsInUse(int)       {}

// Options configures a Pool. Zero values get sensible defaults.
type Options struct {
	Size           int
	UserAgent      string
	RequestTimeout time.Duration
	MaxUses        int
	ProbeURL       string
	Transport      http.RoundTripper
	// Probe overrides the liveness check run on every acquisition.
	Probe func(ctx context.Context, s *HTTPSession) error
	// Sanitize overrides the state reset run on every release.
	Sanitize func(s *HTTPSession) error
	Observer Observer
	Logger   *slog.Logger
}

// Pool is a fixed-size, internally synchronized session provider.
type Pool struct {
	opts  Options
	slots chan struct{}

	mu     sync.Mutex
	idle   []*HTTPSession
	leased map[*HTTPSession]struct{}
	inUse  int
	closed bool
}

var _ ports.SessionProvider = (*Pool)(nil)

// New builds a pool; sessions are created lazily up to opts.Size.
func New(opts Options) *Pool {
	if opts.Size <= 0 {
		opts.Size = 4
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "FreightTracker/1.0"
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}

	p := &Pool{
		opts:   opts,
		slots:  make(chan struct{}, opts.Size),
		leased: make(map[*HTTPSession]struct{}, opts.Size),
	}
	if p.opts.Probe == nil {
		p.opts.Probe = p.defaultProbe
	}
	if p.opts.Sanitize == nil {
		p.opts.Sanitize = resetState
	}
	return p
}

// Acquire waits for a free slot, then returns a healthy idle session or a fresh one.
func (p *Pool) Acquire(ctx context.Context) (ports.Session, error) {
	if p.isClosed() {
		return nil, ErrPoolClosed
	}

	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("wait for session: %w", ctx.Err())
	}

	for {
		sess := p.popIdle()
		if sess == nil {
			break
		}
		if err := p.opts.Probe(ctx, sess); err != nil {
			p.debug("session failed liveness probe", "session", sess.id, "error", err)
			p.discard(sess, "probe_failed")
			continue
		}
		return p.lease(sess), nil
	}

	sess, err := p.create()
	if err != nil {
		<-p.slots
		return nil, fmt.Errorf("create session: %w", err)
	}
	return p.lease(sess), nil
}

// Release sanitizes the session and returns it to the pool. A session that cannot be sanitized is
// discarded and replaced so the pool keeps its size. Sessions this pool did not lease, or that were
// already released, are ignored.
func (p *Pool) Release(s ports.Session) {
	sess, ok := s.(*HTTPSession)
	if !ok || sess == nil {
		return
	}

	p.mu.Lock()
	if _, leased := p.leased[sess]; !leased {
		p.mu.Unlock()
		p.debug("ignoring release of session not on lease", "session", sess.id)
		return
	}
	delete(p.leased, sess)
	p.inUse--
	inUse := p.inUse
	closed := p.closed
	p.mu.Unlock()

	defer func() { <-p.slots }()
	p.opts.Observer.SessionsInUse(inUse)

	if closed {
		p.discard(sess, "pool_closed")
		return
	}

	if err := p.opts.Sanitize(sess); err != nil {
		p.debug("session sanitization failed", "session", sess.id, "error", err)
		p.discard(sess, "sanitize_failed")

		replacement, cerr := p.create()
		if cerr != nil {
			p.warn("cannot replace discarded session", "error", cerr)
			return
		}
		sess = replacement
	}

	p.mu.Lock()
	p.idle = append(p.idle, sess)
	p.mu.Unlock()
}

// Close discards idle sessions; leased sessions are discarded as they come back.
func (p *Pool) Close() error {
	p.mu.Lock()
	p.closed = true
	idle := p.idle
	p.idle = nil
	p.mu.Unlock()

	for _, sess := range idle {
		p.discard(sess, "pool_closed")
	}
	return nil
}

// Idle reports how many sessions wait in the pool.
func (p *Pool) Idle() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle)
}

func (p *Pool) lease(sess *HTTPSession) *HTTPSession {
	sess.uses++

	p.mu.Lock()
	p.leased[sess] = struct{}{}
	p.inUse++
	inUse := p.inUse
	p.mu.Unlock()

	p.opts.Observer.SessionsInUse(inUse)
	return sess
}

func (p *Pool) popIdle() *HTTPSession {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.idle)
	if n == 0 {
		return nil
	}
	sess := p.idle[n-1]
	p.idle = p.idle[:n-1]
	return sess
}

func (p *Pool) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Pool) create() (*HTTPSession, error) {
	jar, err := newJar()
	if err != nil {
		return nil, err
	}
	sess := &HTTPSession{
		id:        uuid.NewString(),
		userAgent: p.opts.UserAgent,
		createdAt: time.Now(),
		client: &http.Client{
			Jar:       jar,
			Timeout:   p.opts.RequestTimeout,
			Transport: p.opts.Transport,
		},
	}
	p.opts.Observer.SessionCreated()
	return sess, nil
}

func (p *Pool) discard(sess *HTTPSession, reason string) {
	sess.closed = true
	sess.client.CloseIdleConnections()
	p.opts.Observer.SessionDiscarded(reason)
}

func (p *Pool) defaultProbe(ctx context.Context, sess *HTTPSession) error {
	if sess.closed {
		return errors.New("session closed")
	}
	if p.opts.MaxUses > 0 && sess.uses >= p.opts.MaxUses {
		return fmt.Errorf("session retired after %d uses", sess.uses)
	}
	if p.opts.ProbeURL == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.opts.ProbeURL, nil)
	if err != nil {
		return fmt.Errorf("build probe: %w", err)
	}
	req.Header.Set("User-Agent", sess.userAgent)

	resp, err := sess.client.Do(req)
	if err != nil {
		return fmt.Errorf("probe: %w", err)
	}
	resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("probe returned %s", resp.Status)
	}
	return nil
}

// resetState drops cookies and pooled connections so the next lease starts clean.
func resetState(sess *HTTPSession) error {
	if sess.closed {
		return errors.New("session closed")
	}
	jar, err := newJar()
	if err != nil {
		return err
	}
	sess.client.Jar = jar
	sess.client.CloseIdleConnections()
	return nil
}

func newJar() (http.CookieJar, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}
	return jar, nil
}

func (p *Pool) debug(msg string, args ...any) {
	if p.opts.Logger != nil {
		p.opts.Logger.Debug(msg, args...)
	}
}

func (p *Pool) warn(msg string, args ...any) {
	if p.opts.Logger != nil {
		p.opts.Logger.Warn(msg, args...)
	}
}
