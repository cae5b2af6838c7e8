package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/styledmap/smp/pkg/smperrors"
)

func fastRetryFetcher() *HTTPFetcher {
	f := NewHTTPFetcher("smp-test", nil)
	f.Retry = RetryOptions{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}
	return f
}

func TestFetchReturnsBodyAndContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	result, err := fastRetryFetcher().Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(result.Body) != `{"ok":true}` {
		t.Errorf("Body = %q", result.Body)
	}
	if result.ContentType != "application/json" {
		t.Errorf("ContentType = %q, want application/json", result.ContentType)
	}
	if result.StatusCode != 200 {
		t.Errorf("StatusCode = %d, want 200", result.StatusCode)
	}
}

func TestFetchReturns4xxAsResultNotError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	result, err := fastRetryFetcher().Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch returned an error for a 404, want a Result: %v", err)
	}
	if result.StatusCode != 404 {
		t.Errorf("StatusCode = %d, want 404", result.StatusCode)
	}
}

func TestFetchRetriesOn5xxThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("recovered"))
	}))
	defer srv.Close()

	f := fastRetryFetcher()
	f.Retry.MaxAttempts = 5
	result, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(result.Body) != "recovered" {
		t.Errorf("Body = %q, want \"recovered\"", result.Body)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestFetchExhaustsRetriesOnPersistent5xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := fastRetryFetcher().Fetch(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected an error after exhausting retries against a persistent 500")
	}
	if !smperrors.Is(err, smperrors.KindRetriesExhausted) {
		t.Errorf("expected a KindRetriesExhausted error, got: %v", err)
	}
}

func TestFetchCancelledContextDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := fastRetryFetcher()
	f.Retry.InitialDelay = 50 * time.Millisecond
	f.Retry.MaxAttempts = 5

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := f.Fetch(ctx, srv.URL)
	if err == nil {
		t.Fatal("expected an error when the context is cancelled mid-backoff")
	}
}
