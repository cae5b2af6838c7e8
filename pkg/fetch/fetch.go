// Package fetch defines the HTTP-fetch collaborator the SMP download
// pipeline depends on (capability: fetch URL -> bytes + content-type,
// with retries/timeouts) and ships a default retrying implementation.
package fetch

import (
	"context"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/styledmap/smp/pkg/smperrors"
)

// Result is the outcome of a successful fetch.
type Result struct {
	Body        []byte
	ContentType string
	StatusCode  int
}

// Fetcher is the external HTTP collaborator contract: fetch URL ->
// bytes + content-type. Implementations own retry/timeout policy.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Result, error)
}

// RetryOptions configures the default Fetcher's exponential backoff.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryOptions are the out-of-the-box backoff settings.
var DefaultRetryOptions = RetryOptions{
	MaxAttempts:  3,
	InitialDelay: 500 * time.Millisecond,
	MaxDelay:     10 * time.Second,
	Multiplier:   2.0,
}

// HTTPFetcher is the default Fetcher: a pooled *http.Client with
// exponential-backoff retry on 5xx/network errors. 4xx responses are
// returned (not retried) so the scheduler's per-resource failure
// policy (skip on 4xx) can decide what to do with them.
type HTTPFetcher struct {
	Client    *http.Client
	Retry     RetryOptions
	UserAgent string
	Logger    *slog.Logger
}

// NewHTTPFetcher builds a Fetcher with pooled connections and sane
// timeouts.
func NewHTTPFetcher(userAgent string, logger *slog.Logger) *HTTPFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPFetcher{
		Client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 16,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		Retry:     DefaultRetryOptions,
		UserAgent: userAgent,
		Logger:    logger.With("component", "fetch"),
	}
}

// Fetch performs a GET with retry/backoff. A non-2xx status in the
// 4xx range is returned immediately as a Result with that status code
// (not an error) so callers can apply the skip-silently policy; 5xx
// and network errors are retried up to MaxAttempts before returning
// RetriesExhausted.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (Result, error) {
	delay := f.Retry.InitialDelay
	var lastErr error

	for attempt := 0; attempt < f.Retry.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(delay + time.Duration(rand.Intn(100))*time.Millisecond):
			case <-ctx.Done():
				return Result{}, smperrors.Wrap(smperrors.KindTimeout, ctx.Err(), "fetch cancelled: %s", url)
			}
			delay = time.Duration(float64(delay) * f.Retry.Multiplier)
			if delay > f.Retry.MaxDelay {
				delay = f.Retry.MaxDelay
			}
		}

		result, retryable, err := f.attempt(ctx, url)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !retryable {
			return Result{}, err
		}
		f.Logger.Debug("retrying fetch", "url", url, "attempt", attempt+1, "error", err)
	}

	return Result{}, smperrors.Wrap(smperrors.KindRetriesExhausted, lastErr, "exhausted retries fetching %s", url)
}

// attempt performs a single try. retryable is true for network errors
// and 5xx responses; false for 4xx (returned as a non-error Result)
// and for malformed requests.
func (f *HTTPFetcher) attempt(ctx context.Context, url string) (Result, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{}, false, smperrors.Wrap(smperrors.KindNetworkError, err, "building request for %s", url)
	}
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return Result{}, true, smperrors.Wrap(smperrors.KindNetworkError, err, "fetching %s", url)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, true, smperrors.Wrap(smperrors.KindNetworkError, err, "reading body from %s", url)
	}

	if resp.StatusCode >= 500 {
		return Result{}, true, smperrors.New(smperrors.KindNetworkError, "server error %d from %s", resp.StatusCode, url)
	}

	return Result{
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		StatusCode:  resp.StatusCode,
	}, false, nil
}
