package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"cloudeng.io/logging/ctxlog"

	"catalogcrawler/internal/limiter"
)

// DefaultMaxBodyBytes caps how much of a response body is read.
const DefaultMaxBodyBytes = 4 << 20

var errInvalidRequest = errors.New("invalid request")

// Result contains the HTTP response data.
type Result struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Config configures a Fetcher.
type Config struct {
	Client       *http.Client
	Limiter      *limiter.Limiter
	Timeout      time.Duration
	Headers      map[string]string
	UserAgent    string
	MaxBodyBytes int64
}

// Fetcher performs single-attempt HTTP requests through the global limiter.
// Failures are never retried: a failed request is a permanent miss for the run.
type Fetcher struct {
	client       *http.Client
	limiter      *limiter.Limiter
	timeout      time.Duration
	headers      http.Header
	maxBodyBytes int64
}

// New creates a Fetcher with the provided configuration.
func New(cfg Config) *Fetcher {
	client := cfg.Client
	if client == nil {
		client = http.DefaultClient
	}

	headers := http.Header{}
	for key, value := range cfg.Headers {
		headers.Set(key, value)
	}

	if cfg.UserAgent != "" {
		headers.Set("User-Agent", cfg.UserAgent)
	}

	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}

	return &Fetcher{
		client:       client,
		limiter:      cfg.Limiter,
		timeout:      cfg.Timeout,
		headers:      headers,
		maxBodyBytes: maxBody,
	}
}

// Get fetches rawURL and returns its body when the status is 200.
// Any other status, a timeout or a transport error yields ok == false.
func (f *Fetcher) Get(ctx context.Context, rawURL string) ([]byte, bool) {
	result, err := f.Do(ctx, http.MethodGet, rawURL)
	if !f.usable(ctx, rawURL, result, err) {
		return nil, false
	}

	return result.Body, true
}

// Head issues a HEAD request and returns the response metadata when the status is 200.
func (f *Fetcher) Head(ctx context.Context, rawURL string) (Result, bool) {
	result, err := f.Do(ctx, http.MethodHead, rawURL)
	if !f.usable(ctx, rawURL, result, err) {
		return Result{}, false
	}

	return result, true
}

func (f *Fetcher) usable(ctx context.Context, rawURL string, result Result, err error) bool {
	if err != nil {
		ctxlog.Logger(ctx).Debug("fetch failed", "url", rawURL, "error", err)

		return false
	}

	if result.StatusCode != http.StatusOK {
		ctxlog.Logger(ctx).Debug("fetch rejected", "url", rawURL, "status", result.StatusCode)

		return false
	}

	return true
}

// Do performs one request holding a limiter permit for its whole duration,
// including the body read. The per-request timeout starts once the permit is held.
func (f *Fetcher) Do(ctx context.Context, method, rawURL string) (Result, error) {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", errInvalidRequest, err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return Result{}, fmt.Errorf("%w: unsupported scheme %q", errInvalidRequest, parsedURL.Scheme)
	}

	if err := f.limiter.Acquire(ctx); err != nil {
		return Result{}, err
	}
	defer f.limiter.Release()

	requestCtx := ctx
	if f.timeout > 0 {
		var cancel context.CancelFunc
		requestCtx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	request, err := http.NewRequestWithContext(requestCtx, method, parsedURL.String(), nil)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", errInvalidRequest, err)
	}

	for key, values := range f.headers {
		request.Header[key] = append([]string(nil), values...)
	}

	response, err := f.client.Do(request)
	if err != nil {
		return Result{}, err
	}
	defer func() {
		_ = response.Body.Close()
	}()

	result := Result{StatusCode: response.StatusCode, Header: response.Header}
	if method == http.MethodHead {
		return result, nil
	}

	body, err := io.ReadAll(io.LimitReader(response.Body, f.maxBodyBytes))
	if err != nil {
		return result, fmt.Errorf("read body: %w", err)
	}

	result.Body = body

	return result, nil
}

// IsInvalidRequest reports whether err was caused by a malformed URL.
func IsInvalidRequest(err error) bool {
	return errors.Is(err, errInvalidRequest)
}
