package mapboxurl

import (
	"strings"
	"testing"

	"github.com/styledmap/smp/pkg/smperrors"
)

func TestExpandPassthroughNonMapbox(t *testing.T) {
	got, err := Expand("https://example.com/style.json", "pk.abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "https://example.com/style.json" {
		t.Fatalf("non-mapbox URL should pass through unchanged, got %q", got)
	}
}

func TestExpandMissingToken(t *testing.T) {
	_, err := Expand("mapbox://styles/mapbox/streets-v11", "")
	if !smperrors.Is(err, smperrors.KindMissingAccessToken) {
		t.Fatalf("expected MissingAccessToken, got %v", err)
	}
}

func TestExpandSecretTokenRejected(t *testing.T) {
	_, err := Expand("mapbox://styles/mapbox/streets-v11", "sk.secret")
	if !smperrors.Is(err, smperrors.KindSecretToken) {
		t.Fatalf("expected SecretToken, got %v", err)
	}
}

func TestExpandStyle(t *testing.T) {
	got, err := Expand("mapbox://styles/mapbox/streets-v11", "pk.public")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(got, "api.mapbox.com") || !strings.Contains(got, "/styles/v1/mapbox/streets-v11") {
		t.Fatalf("expanded style URL = %q", got)
	}
	if !strings.Contains(got, "access_token=pk.public") {
		t.Fatalf("expanded style URL missing access_token: %q", got)
	}
}

func TestExpandFonts(t *testing.T) {
	got, err := Expand("mapbox://fonts/mapbox/Open Sans Regular/0-255.pbf", "pk.public")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(got, "/fonts/v1/mapbox/Open Sans Regular/0-255.pbf") {
		t.Fatalf("expanded font URL = %q", got)
	}
}

func TestExpandSprite(t *testing.T) {
	got, err := ExpandSprite("mapbox://sprites/mapbox/streets-v11", "@2x", ".png", "pk.public")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(got, "/sprite@2x.png") {
		t.Fatalf("expanded sprite URL = %q", got)
	}
}

func TestExpandTilesetMetadata(t *testing.T) {
	got, err := Expand("mapbox://mapbox.streets", "pk.public")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(got, "/v4/mapbox.streets.json?secure") {
		t.Fatalf("expanded tileset URL = %q", got)
	}
}
