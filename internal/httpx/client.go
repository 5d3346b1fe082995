package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	log "github.com/sirupsen/logrus"

	"MarketDashboard/internal/ratelimit"
)

// Error taxonomy for upstream calls.
var (
	// ErrRateLimited is returned when the provider kept answering 429.
	ErrRateLimited = errors.New("rate limited")
	// ErrTransient covers transport failures and 5xx responses.
	ErrTransient = errors.New("transient upstream failure")
	// ErrNonRetryable covers 4xx responses and payloads that cannot be decoded.
	ErrNonRetryable = errors.New("non-retryable upstream response")
)

const (
	DefaultTimeout    = 10 * time.Second
	DefaultMaxRetries = 3
	DefaultBaseDelay  = time.Second
	maxBodyBytes      = 8 << 20
)

// Doer describes an HTTP client.
//
//go:generate mockgen -package=httpx_test -destination=mock_doer_test.go -source=client.go Doer
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// StatusError reports a non-200 upstream response.
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d, body: %s", e.Provider, e.Code, e.Body)
}

// Call describes one upstream GET.
type Call struct {
	Provider   string // rate-limit bucket and log label
	URL        string
	Header     http.Header
	PerMinute  int // 0 means unlimited
	MaxRetries int // total attempts; <= 0 uses the client default
	// Classify inspects a 200 body for provider errors reported in-band.
	// Returning an error wrapping ErrRateLimited or ErrTransient retries the attempt.
	Classify func(body []byte) error
}

// Client issues GETs with bounded retries and exponential backoff, consulting
// the shared rate limiter before every attempt.
type Client struct {
	HTTP       Doer
	Limiter    *ratelimit.Limiter
	UserAgent  string
	MaxRetries int
	BaseDelay  time.Duration
	// Sleep waits between attempts; tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Client with a tuned transport and the given per-call timeout.
func New(limiter *ratelimit.Limiter, timeout time.Duration, proxyURL string) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          50,
		MaxIdleConnsPerHost:   10,
		ForceAttemptHTTP2:     true,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			log.Warnf("httpx: ignoring invalid proxy %q: %v", proxyURL, err)
		} else {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	if limiter == nil {
		limiter = ratelimit.New()
	}
	return &Client{
		HTTP:       &http.Client{Timeout: timeout, Transport: transport},
		Limiter:    limiter,
		UserAgent:  "market-dashboard/1.0",
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  DefaultBaseDelay,
		Sleep:      ratelimit.Sleep,
	}
}

// Fetch performs call and returns the body of the first 200 response that
// call.Classify accepts. 429s, 5xx and transport errors are retried after
// BaseDelay*2^attempt; any other status aborts immediately.
func (c *Client) Fetch(ctx context.Context, call Call) ([]byte, error) {
	attempts := call.MaxRetries
	if attempts <= 0 {
		attempts = c.MaxRetries
	}
	if attempts <= 0 {
		attempts = DefaultMaxRetries
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if c.Limiter != nil {
			if err := c.Limiter.Acquire(ctx, call.Provider, call.PerMinute, c.sleep); err != nil {
				return nil, fmt.Errorf("%s: wait for rate budget: %w", call.Provider, err)
			}
		}

		body, err := c.do(ctx, call)
		if err == nil && call.Classify != nil {
			err = call.Classify(body)
		}
		if err == nil {
			return body, nil
		}
		lastErr = err
		if errors.Is(err, ErrNonRetryable) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s: %w", call.Provider, ctx.Err())
		}
		if attempt == attempts-1 {
			break
		}

		backoff := c.backoff(attempt)
		log.Warnf("%s fetch failed (attempt %d/%d): %v, retrying in %v", call.Provider, attempt+1, attempts, err, backoff)
		if err := c.sleep(ctx, backoff); err != nil {
			return nil, fmt.Errorf("%s: %w", call.Provider, err)
		}
	}
	return nil, fmt.Errorf("%s: all %d attempts failed: %w", call.Provider, attempts, lastErr)
}

// FetchJSON fetches call and decodes the body into v.
// A body that does not decode is treated as non-retryable.
func (c *Client) FetchJSON(ctx context.Context, call Call, v any) error {
	body, err := c.Fetch(ctx, call)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%s: decode: %v: %w", call.Provider, err, ErrNonRetryable)
	}
	return nil
}

func (c *Client) do(ctx context.Context, call Call) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, call.URL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %v: %w", call.Provider, err, ErrNonRetryable)
	}
	for k, vs := range call.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if c.UserAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %v: %w", call.Provider, err, ErrTransient)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%s: read body: %v: %w", call.Provider, err, ErrTransient)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: %w", ErrRateLimited, statusErr(call.Provider, resp.StatusCode, body))
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: %w", ErrTransient, statusErr(call.Provider, resp.StatusCode, body))
	default:
		return nil, fmt.Errorf("%w: %w", ErrNonRetryable, statusErr(call.Provider, resp.StatusCode, body))
	}
}

func (c *Client) backoff(attempt int) time.Duration {
	base := c.BaseDelay
	if base <= 0 {
		base = DefaultBaseDelay
	}
	return base * time.Duration(1<<uint(attempt))
}

func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	if c.Sleep != nil {
		return c.Sleep(ctx, d)
	}
	return ratelimit.Sleep(ctx, d)
}

func statusErr(provider string, code int, body []byte) *StatusError {
	const maxSnippet = 256
	if len(body) > maxSnippet {
		body = body[:maxSnippet]
	}
	return &StatusError{Provider: provider, Code: code, Body: string(body)}
}
