// Package fetch is the HTTP plumbing shared by the external data providers:
// a circuit breaker around each provider, a fixed politeness delay between
// requests, and explicit failures for non-2xx responses. Requests are never
// retried; callers decide what a failure means for their batch.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

var (
	// ErrCircuitOpen is returned while the provider breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker open")
	// ErrNoHTTPClient is returned when the client was built without transport.
	ErrNoHTTPClient = errors.New("http client not configured")
)

// StatusError reports a non-2xx response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d: %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Body)
}

// Options configures a Client.
type Options struct {
	Name      string        // breaker name, used in logs
	Timeout   time.Duration // per-request timeout
	Delay     time.Duration // minimum spacing between requests
	TripAfter uint32        // consecutive failures that open the breaker; 0 disables it
	Cooldown  time.Duration // how long the breaker stays open
	UserAgent string
}

// Client performs paced GET requests through a circuit breaker.
type Client struct {
	http      *http.Client
	breaker   *gobreaker.CircuitBreaker
	pacer     *Pacer
	userAgent string
}

// New builds a Client. A nil httpClient gets one with opts.Timeout.
func New(httpClient *http.Client, opts Options) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	var cb *gobreaker.CircuitBreaker
	if opts.TripAfter > 0 {
		trip := opts.TripAfter
		cooldown := opts.Cooldown
		if cooldown <= 0 {
			cooldown = time.Minute
		}
		cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        opts.Name,
			MaxRequests: 1,
			Timeout:     cooldown,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= trip
			},
		})
	}

	ua := opts.UserAgent
	if ua == "" {
		ua = "ki7mt-grid-lab/1.0"
	}

	return &Client{
		http:      httpClient,
		breaker:   cb,
		pacer:     NewPacer(opts.Delay),
		userAgent: ua,
	}
}

// Get issues a GET and returns the response body. Non-2xx responses are
// returned as *StatusError.
func (c *Client) Get(ctx context.Context, url string, header http.Header) ([]byte, error) {
	if c.http == nil {
		return nil, ErrNoHTTPClient
	}
	if err := c.pacer.Wait(ctx); err != nil {
		return nil, err
	}

	do := func() (interface{}, error) {
		return c.do(ctx, url, header)
	}

	if c.breaker == nil {
		body, err := do()
		if err != nil {
			return nil, err
		}
		return body.([]byte), nil
	}

	body, err := c.breaker.Execute(do)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrCircuitOpen, err)
	}
	if err != nil {
		return nil, err
	}
	return body.([]byte), nil
}

func (c *Client) do(ctx context.Context, url string, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP GET failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{Code: resp.StatusCode, Body: string(snippet)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body failed: %w", err)
	}
	return body, nil
}

// Pacer enforces a fixed minimum delay between successive calls to Wait.
type Pacer struct {
	mu       sync.Mutex
	delay    time.Duration
	lastCall time.Time
}

// NewPacer creates a Pacer; a zero delay never blocks.
func NewPacer(delay time.Duration) *Pacer {
	return &Pacer{delay: delay}
}

// Wait blocks until the delay has passed since the previous call or ctx ends.
func (p *Pacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.delay > 0 && !p.lastCall.IsZero() {
		if remaining := p.delay - time.Since(p.lastCall); remaining > 0 {
			timer := time.NewTimer(remaining)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	p.lastCall = time.Now()
	return nil
}
