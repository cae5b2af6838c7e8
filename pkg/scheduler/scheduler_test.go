package scheduler

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/styledmap/smp/pkg/container"
	"github.com/styledmap/smp/pkg/fetch"
	"github.com/styledmap/smp/pkg/planner"
	"github.com/styledmap/smp/pkg/smpgeo"
	"github.com/styledmap/smp/pkg/smpuri"
	"github.com/styledmap/smp/pkg/style"
)

var pngBody = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0, 0}

const minimalSchedulerStyle = `{
	"version": 8,
	"sources": {
		"osm": {"type": "vector", "tiles": ["smp://maps.v1/s/osm/{z}/{x}/{y}.{ext}"]}
	},
	"layers": [
		{"id": "background", "type": "background"}
	]
}`

// delayedFetcher completes fetches for different URLs after different
// delays, to exercise the reorder buffer: the worker pool completes
// jobs out of plan order, but the archive must still receive them in
// plan order.
type delayedFetcher struct {
	mu      sync.Mutex
	delay   map[string]time.Duration
	fail    map[string]bool
	bodies  map[string][]byte
	started int
}

func (f *delayedFetcher) Fetch(ctx context.Context, url string) (fetch.Result, error) {
	f.mu.Lock()
	f.started++
	f.mu.Unlock()

	if d, ok := f.delay[url]; ok {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return fetch.Result{}, ctx.Err()
		}
	}
	if f.fail[url] {
		return fetch.Result{}, errors.New("simulated fetch failure")
	}
	body, ok := f.bodies[url]
	if !ok {
		return fetch.Result{StatusCode: 404}, nil
	}
	return fetch.Result{Body: body, StatusCode: 200}, nil
}

func newWriter(t *testing.T) (*container.Writer, *bytes.Buffer) {
	t.Helper()
	doc, err := style.Parse([]byte(minimalSchedulerStyle))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	var buf bytes.Buffer
	w, err := container.NewWriter(&buf, doc, "1.0")
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	return w, &buf
}

func tileEntry(index int, x, y uint32) planner.Entry {
	return planner.Entry{
		Index:    index,
		SourceID: "osm",
		Folder:   "osm",
		Coord:    smpgeo.TileCoord{Z: 2, X: x, Y: y},
		URLs:     []string{"https://example.com/tile/{x}-{y}.bin"},
	}
}

// zipEntryOrder parses data as a ZIP archive and returns its entry
// names in central-directory order.
func zipEntryOrder(t *testing.T, data []byte) []string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("zip.NewReader: %v", err)
	}
	names := make([]string, len(zr.File))
	for i, f := range zr.File {
		names[i] = f.Name
	}
	return names
}

func TestRunRestoresPlanOrderDespiteOutOfOrderCompletion(t *testing.T) {
	plan := []planner.Entry{
		tileEntry(0, 0, 0),
		tileEntry(1, 1, 0),
		tileEntry(2, 2, 0),
	}

	fetcher := &delayedFetcher{
		delay: map[string]time.Duration{
			"https://example.com/tile/0-0.bin": 60 * time.Millisecond,
			"https://example.com/tile/1-0.bin": 20 * time.Millisecond,
			"https://example.com/tile/2-0.bin": 0,
		},
		bodies: map[string][]byte{
			"https://example.com/tile/0-0.bin": pngBody,
			"https://example.com/tile/1-0.bin": pngBody,
			"https://example.com/tile/2-0.bin": pngBody,
		},
	}

	cfg := Config{Workers: 4, InboundQueue: 8, ReorderBuffer: 8}
	s := New(cfg, fetcher)

	w, buf := newWriter(t)
	resourceErrs, err := s.Run(context.Background(), plan, "", nil, nil, w)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(resourceErrs) != 0 {
		t.Fatalf("unexpected resourceErrs: %v", resourceErrs)
	}
	if err := w.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	wantOrder := []string{
		smpuri.VersionPath,
		smpuri.StylePath,
		smpuri.TilePath("osm", 2, 0, 0, smpuri.FormatPNG),
		smpuri.TilePath("osm", 2, 1, 0, smpuri.FormatPNG),
		smpuri.TilePath("osm", 2, 2, 0, smpuri.FormatPNG),
	}
	gotOrder := zipEntryOrder(t, buf.Bytes())
	if len(gotOrder) != len(wantOrder) {
		t.Fatalf("entry count = %d, want %d (%v)", len(gotOrder), len(wantOrder), gotOrder)
	}
	for i, want := range wantOrder {
		if gotOrder[i] != want {
			t.Errorf("entry %d = %q, want %q", i, gotOrder[i], want)
		}
	}
}

func TestRunSkipsFailedTileWithoutAborting(t *testing.T) {
	plan := []planner.Entry{
		tileEntry(0, 0, 0),
		tileEntry(1, 1, 0),
		tileEntry(2, 2, 0),
	}

	fetcher := &delayedFetcher{
		fail: map[string]bool{
			"https://example.com/tile/1-0.bin": true,
		},
		bodies: map[string][]byte{
			"https://example.com/tile/0-0.bin": pngBody,
			"https://example.com/tile/2-0.bin": pngBody,
		},
	}

	cfg := Config{Workers: 2, InboundQueue: 8, ReorderBuffer: 8}
	s := New(cfg, fetcher)

	w, buf := newWriter(t)
	resourceErrs, err := s.Run(context.Background(), plan, "", nil, nil, w)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(resourceErrs) != 0 {
		t.Fatalf("a failed tile fetch should be skipped silently, not surfaced as a resourceErr: %v", resourceErrs)
	}
	if err := w.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	gotOrder := zipEntryOrder(t, buf.Bytes())
	missingPath := smpuri.TilePath("osm", 2, 1, 0, smpuri.FormatPNG)
	for _, name := range gotOrder {
		if name == missingPath {
			t.Fatalf("failed tile %q should not appear in archive", missingPath)
		}
	}

	for _, want := range []string{
		smpuri.TilePath("osm", 2, 0, 0, smpuri.FormatPNG),
		smpuri.TilePath("osm", 2, 2, 0, smpuri.FormatPNG),
	} {
		found := false
		for _, name := range gotOrder {
			if name == want {
				found = true
			}
		}
		if !found {
			t.Errorf("expected surviving tile %q in archive, got %v", want, gotOrder)
		}
	}
}

func TestRunSkipsFormatMismatchWithinSource(t *testing.T) {
	jpgBody := []byte{0xFF, 0xD8, 0xFF, 0, 0, 0}

	plan := []planner.Entry{
		tileEntry(0, 0, 0),
		tileEntry(1, 1, 0),
	}

	fetcher := &delayedFetcher{
		bodies: map[string][]byte{
			"https://example.com/tile/0-0.bin": pngBody,
			"https://example.com/tile/1-0.bin": jpgBody,
		},
	}

	cfg := Config{Workers: 1, InboundQueue: 8, ReorderBuffer: 8}
	s := New(cfg, fetcher)

	w, buf := newWriter(t)
	if _, err := s.Run(context.Background(), plan, "", nil, nil, w); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := w.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	gotOrder := zipEntryOrder(t, buf.Bytes())
	mismatchPath := smpuri.TilePath("osm", 2, 1, 0, smpuri.FormatJPG)
	for _, name := range gotOrder {
		if name == mismatchPath {
			t.Fatalf("a tile whose format disagrees with its source's first-seen format should be skipped: got %v", gotOrder)
		}
	}
}

func TestRunEmptyPlanWritesNothing(t *testing.T) {
	fetcher := &delayedFetcher{}
	s := New(Config{}, fetcher)

	w, buf := newWriter(t)
	resourceErrs, err := s.Run(context.Background(), nil, "", nil, nil, w)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(resourceErrs) != 0 {
		t.Fatalf("unexpected resourceErrs: %v", resourceErrs)
	}
	if err := w.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	gotOrder := zipEntryOrder(t, buf.Bytes())
	if len(gotOrder) != 2 {
		t.Fatalf("expected only VERSION and style.json with an empty plan, got %v", gotOrder)
	}
}
