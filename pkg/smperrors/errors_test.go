package smperrors

import (
	"errors"
	"strings"
	"testing"
)

func TestNewFormatsMessage(t *testing.T) {
	err := New(KindNotFound, "resource %q missing", "s/osm/0/0/0.pbf")
	if err.Kind != KindNotFound {
		t.Errorf("Kind = %v, want %v", err.Kind, KindNotFound)
	}
	if err.Message != `resource "s/osm/0/0/0.pbf" missing` {
		t.Errorf("Message = %q", err.Message)
	}
	if err.Cause != nil {
		t.Error("expected New to leave Cause nil")
	}
}

func TestWrapPreservesCauseForUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(KindNetworkError, cause, "fetching %s", "https://example.com")

	if err.Kind != KindNetworkError {
		t.Errorf("Kind = %v, want %v", err.Kind, KindNetworkError)
	}
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the wrapped cause through Unwrap")
	}
}

func TestIsMatchesKindThroughWrapping(t *testing.T) {
	base := New(KindInvalidStyle, "bad style")
	wrapped := Wrap(KindNetworkError, base, "rewriting")

	if !Is(wrapped, KindNetworkError) {
		t.Error("expected Is to match the outer Kind")
	}
	if Is(wrapped, KindInvalidStyle) {
		t.Error("Is should not match an inner error's Kind through a typed wrap")
	}
	if Is(errors.New("plain error"), KindNotFound) {
		t.Error("Is should return false for a non-*Error chain")
	}
}

func TestErrorStringIncludesCauseWhenPresent(t *testing.T) {
	cause := errors.New("timeout")
	err := Wrap(KindTimeout, cause, "fetching tile")

	msg := err.Error()
	if !errors.Is(err, cause) {
		t.Fatal("expected Wrap to keep the cause reachable")
	}
	if msg == "" {
		t.Fatal("expected a non-empty Error() string")
	}
	if !strings.Contains(msg, "timeout") {
		t.Errorf("Error() = %q, want it to include the cause %q", msg, "timeout")
	}
}
