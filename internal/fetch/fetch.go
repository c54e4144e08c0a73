// Package fetch retrieves article pages and images over HTTP.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ivlev/article2video/internal/failure"
)

const (
	DefaultTimeout  = 30 * time.Second
	DefaultMaxBytes = 32 << 20
	defaultRetryMax = 2
)

// ErrTooLarge is reported when a body exceeds Client.MaxBytes.
var ErrTooLarge = errors.New("response body too large")

// Fetcher is what the extractor and the downloader depend on.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Error is a retrieval failure for one URL.
type Error struct {
	URL        string
	StatusCode int
	Timeout    bool
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("GET %s: HTTP %d", e.URL, e.StatusCode)
	case e.Timeout:
		return fmt.Sprintf("GET %s: timeout", e.URL)
	default:
		return fmt.Sprintf("GET %s: %v", e.URL, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) FailureKind() failure.Kind { return failure.RetrievalFailure }

// Client fetches whole bodies with a per-request timeout.
type Client struct {
	HTTP     *http.Client
	Timeout  time.Duration
	MaxBytes int64
}

// New builds a client with the retrying transport.
func New(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
		MaxIdleConnsPerHost:   8,
	}
	return &Client{
		HTTP: &http.Client{
			Transport: &Transport{Base: base, RetryMax: defaultRetryMax, Backoff: 300 * time.Millisecond},
		},
		Timeout:  timeout,
		MaxBytes: DefaultMaxBytes,
	}
}

// Fetch GETs url and returns the body. Non-2xx statuses, timeouts and
// oversized bodies are reported as *Error.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &Error{URL: url, Err: err}
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,image/avif,image/webp,image/*,*/*;q=0.8")

	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, c.wrap(ctx, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &Error{URL: url, StatusCode: resp.StatusCode}
	}

	limit := c.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, c.wrap(ctx, url, err)
	}
	if int64(len(data)) > limit {
		return nil, &Error{URL: url, Err: ErrTooLarge}
	}
	return data, nil
}

func (c *Client) wrap(ctx context.Context, url string, err error) error {
	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}
	timeout := errors.Is(ctx.Err(), context.DeadlineExceeded)
	var te interface{ Timeout() bool }
	if errors.As(err, &te) && te.Timeout() {
		timeout = true
	}
	return &Error{URL: url, Timeout: timeout, Err: err}
}
