// Package httpclient issues outbound API calls with bounded retry on transport
// failures and unbounded waiting on rate limiting.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultMaxRetries        = 3
	defaultBaseDelay         = time.Second
	defaultRateLimitFallback = 10 * time.Second
	defaultTimeout           = 15 * time.Second
)

// Request describes one outbound call. Body is JSON-encoded unless it is
// already a []byte or url.Values (sent form-encoded).
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Query   url.Values
	Body    any
}

// Response is a fully read HTTP response. Status codes are not interpreted.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// DecodeJSON unmarshals the body into v.
func (r *Response) DecodeJSON(v any) error {
	if len(r.Body) == 0 {
		return fmt.Errorf("empty response body (status %d)", r.StatusCode)
	}
	return json.Unmarshal(r.Body, v)
}

// NetworkError is returned when every attempt failed at the transport level.
type NetworkError struct {
	Method   string
	URL      string
	Attempts int
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s failed after %d attempts: %v", e.Method, e.URL, e.Attempts, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Options tunes a Caller. Zero values fall back to defaults.
type Options struct {
	Timeout           time.Duration
	MaxRetries        int
	BaseDelay         time.Duration
	RateLimitFallback time.Duration
	HTTPClient        *http.Client
}

// Caller performs requests with retry and rate-limit backoff.
type Caller struct {
	client            *http.Client
	logger            *zap.Logger
	timeout           time.Duration
	maxRetries        int
	baseDelay         time.Duration
	rateLimitFallback time.Duration
	sleep             func(ctx context.Context, d time.Duration) error
}

// New builds a Caller.
func New(opts Options, logger *zap.Logger) *Caller {
	c := &Caller{
		client:            opts.HTTPClient,
		logger:            logger,
		timeout:           opts.Timeout,
		maxRetries:        opts.MaxRetries,
		baseDelay:         opts.BaseDelay,
		rateLimitFallback: opts.RateLimitFallback,
		sleep:             sleepContext,
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	if c.maxRetries <= 0 {
		c.maxRetries = defaultMaxRetries
	}
	if c.baseDelay <= 0 {
		c.baseDelay = defaultBaseDelay
	}
	if c.rateLimitFallback <= 0 {
		c.rateLimitFallback = defaultRateLimitFallback
	}
	if c.client == nil {
		c.client = &http.Client{Timeout: c.timeout}
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

// Do sends req. Transport failures are retried up to the configured number of
// attempts with a linearly growing delay; a 429 waits for Retry-After (or the
// fallback) and reissues the request without consuming an attempt. Throttling
// is waited out for as long as the upstream keeps answering 429.
func (c *Caller) Do(ctx context.Context, req Request) (*Response, error) {
	payload, contentType, err := encodeBody(req.Body)
	if err != nil {
		return nil, fmt.Errorf("encode request body: %w", err)
	}
	target := req.URL
	if len(req.Query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + req.Query.Encode()
	}

	attempt := 1
	for {
		resp, err := c.send(ctx, req, target, payload, contentType)
		if err != nil {
			if attempt >= c.maxRetries {
				return nil, &NetworkError{Method: req.Method, URL: req.URL, Attempts: attempt, Err: err}
			}
			delay := time.Duration(attempt) * c.baseDelay
			c.logger.Warn("outbound call failed, retrying",
				zap.String("method", req.Method),
				zap.String("url", req.URL),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(err))
			if err := c.sleep(ctx, delay); err != nil {
				return nil, err
			}
			attempt++
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			wait := c.retryAfter(resp.Header)
			c.logger.Warn("rate limited, backing off",
				zap.String("method", req.Method),
				zap.String("url", req.URL),
				zap.Duration("wait", wait))
			if err := c.sleep(ctx, wait); err != nil {
				return nil, err
			}
			continue
		}

		return resp, nil
	}
}

func (c *Caller) send(ctx context.Context, req Request, target string, payload []byte, contentType string) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	httpReq.Header.Set("Accept", "application/json")
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

func (c *Caller) retryAfter(header http.Header) time.Duration {
	if raw := strings.TrimSpace(header.Get("Retry-After")); raw != "" {
		if seconds, err := strconv.Atoi(raw); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return c.rateLimitFallback
}

func encodeBody(body any) ([]byte, string, error) {
	switch b := body.(type) {
	case nil:
		return nil, "", nil
	case []byte:
		return b, "application/json", nil
	case url.Values:
		return []byte(b.Encode()), "application/x-www-form-urlencoded", nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, "", err
		}
		return data, "application/json", nil
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
