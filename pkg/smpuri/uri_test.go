package smpuri

import "testing"

func TestTilePath(t *testing.T) {
	got := TilePath("osm", 3, 1, 2, FormatMVT)
	want := "s/osm/3/1/2.mvt.gz"
	if got != want {
		t.Fatalf("TilePath = %q, want %q", got, want)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		path string
		want Kind
	}{
		{"style.json", KindStyle},
		{"VERSION", KindVersion},
		{"fonts/Open Sans Regular/0-255.pbf.gz", KindGlyph},
		{"sprites/default/sprite.png", KindSprite},
		{"s/osm/0/0/0.png", KindTile},
	}
	for _, c := range cases {
		got, err := Classify(c.path)
		if err != nil {
			t.Fatalf("Classify(%q) error: %v", c.path, err)
		}
		if got != c.want {
			t.Errorf("Classify(%q) = %v, want %v", c.path, got, c.want)
		}
	}

	if _, err := Classify("unknown/thing.bin"); err == nil {
		t.Fatalf("Classify(unknown) expected error")
	}
}

func TestContentType(t *testing.T) {
	cases := map[string]string{
		"style.json":     "application/json",
		"fonts/x/0-255.pbf.gz": "application/x-protobuf+gzip",
		"s/a/0/0/0.mvt.gz":     "application/vnd.mapbox-vector-tile",
		"s/a/0/0/0.png":        "image/png",
		"s/a/0/0/0.jpg":        "image/jpeg",
		"s/a/0/0/0.webp":       "image/webp",
	}
	for path, want := range cases {
		got, err := ContentType(path)
		if err != nil {
			t.Fatalf("ContentType(%q) error: %v", path, err)
		}
		if got != want {
			t.Errorf("ContentType(%q) = %q, want %q", path, got, want)
		}
	}

	if _, err := ContentType("unknown.xyz"); err == nil {
		t.Fatalf("ContentType(unknown ext) expected error")
	}
}

func TestParseGlyphRangeStart(t *testing.T) {
	n, err := ParseGlyphRangeStart("0-255")
	if err != nil || n != 0 {
		t.Fatalf("ParseGlyphRangeStart(0-255) = %d, %v", n, err)
	}
	n, err = ParseGlyphRangeStart("256-511")
	if err != nil || n != 256 {
		t.Fatalf("ParseGlyphRangeStart(256-511) = %d, %v", n, err)
	}
	if _, err := ParseGlyphRangeStart("100-355"); err == nil {
		t.Fatalf("expected error for non-multiple-of-256 start")
	}
	if _, err := ParseGlyphRangeStart("65280-65535"); err != nil {
		t.Fatalf("65280 should be valid top range: %v", err)
	}
	if _, err := ParseGlyphRangeStart("65536-65791"); err == nil {
		t.Fatalf("expected error for out-of-grid start")
	}
}

func TestInternalURIRoundTrip(t *testing.T) {
	uri := InternalURI("s/osm/0/0/0.png")
	path, ok := StripScheme(uri)
	if !ok || path != "s/osm/0/0/0.png" {
		t.Fatalf("StripScheme(%q) = %q, %v", uri, path, ok)
	}
	if _, ok := StripScheme("https://example.com/x"); ok {
		t.Fatalf("StripScheme should reject non-internal URI")
	}
}
