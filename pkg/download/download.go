// Package download wires the full pipeline together: normalize
// and fetch the input style, rewrite it to reference archive-internal
// URIs, plan the tile set, schedule fetches, and stream the result
// into an SMP archive.
package download

import (
	"context"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"github.com/styledmap/smp/pkg/container"
	"github.com/styledmap/smp/pkg/fetch"
	"github.com/styledmap/smp/pkg/mapboxurl"
	"github.com/styledmap/smp/pkg/planner"
	"github.com/styledmap/smp/pkg/scheduler"
	"github.com/styledmap/smp/pkg/smperrors"
	"github.com/styledmap/smp/pkg/smpgeo"
	"github.com/styledmap/smp/pkg/style"
	"github.com/styledmap/smp/pkg/tracing"
)

// FormatVersion is written to VERSION at the start of every archive.
const FormatVersion = "1.0"

// Request is a single Download invocation's parameters.
type Request struct {
	StyleURL       string
	BBox           smpgeo.BBox
	MaxZoom        int
	AccessToken    string
	AvailableFonts []string

	DropRemoteGeoJSON bool
	SourceFolder      func(sourceID string) string

	Scheduler scheduler.Config
}

// Downloader executes Requests against a Fetcher, writing SMP
// archives to a caller-supplied destination.
type Downloader struct {
	Fetcher fetch.Fetcher
	Logger  *slog.Logger
}

// New builds a Downloader with a default HTTP fetcher.
func New(logger *slog.Logger) *Downloader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Downloader{
		Fetcher: fetch.NewHTTPFetcher("smp-download/1.0", logger),
		Logger:  logger.With("component", "download"),
	}
}

// Result summarizes a completed (or partially completed) download.
type Result struct {
	PlanSize     int
	SourceCount  int
	FontStacks   []string
	ResourceErrs []error // non-fatal failures surfaced by the scheduler (e.g. missing required sprite variants)
}

// Run fetches req.StyleURL, rewrites it, plans and schedules every
// resource, and streams the resulting archive to dst. dst is closed
// by the caller, not by Run.
func (d *Downloader) Run(ctx context.Context, req Request, dst io.Writer) (*Result, error) {
	ctx, span := tracing.StartSpan(ctx, "download.Run")
	span.SetAttributes(attribute.String("smp.style_url", req.StyleURL), attribute.Int("smp.max_zoom", req.MaxZoom))
	defer span.End()

	styleURL, err := mapboxurl.Expand(req.StyleURL, req.AccessToken)
	if err != nil {
		return nil, err
	}

	res, err := d.Fetcher.Fetch(ctx, styleURL)
	if err != nil {
		return nil, smperrors.Wrap(smperrors.KindNetworkError, err, "fetching style %s", req.StyleURL)
	}

	doc, err := style.Parse(res.Body)
	if err != nil {
		return nil, err
	}

	policy := style.ResourcePolicy{
		AccessToken:       req.AccessToken,
		AvailableFonts:    req.AvailableFonts,
		DropRemoteGeoJSON: req.DropRemoteGeoJSON,
		SourceFolder:      req.SourceFolder,
	}

	rewritten, err := style.Rewrite(ctx, doc, policy, d.Fetcher)
	if err != nil {
		return nil, err
	}

	maxZoom := req.MaxZoom
	if maxZoom <= 0 || maxZoom > rewritten.MaxZoom {
		maxZoom = rewritten.MaxZoom
	}

	doc.Metadata["smp:bounds"] = []any{rewritten.Bounds.West, rewritten.Bounds.South, rewritten.Bounds.East, rewritten.Bounds.North}
	doc.Metadata["smp:maxzoom"] = float64(maxZoom)
	if len(rewritten.Sources) > 0 {
		folders := map[string]any{}
		for _, src := range rewritten.Sources {
			folders[src.ID] = src.Folder
		}
		doc.Metadata["smp:sourceFolders"] = folders
	}

	plan := planner.Plan(rewritten.Sources, req.BBox, maxZoom)

	w, err := container.NewWriter(dst, doc, FormatVersion)
	if err != nil {
		return nil, err
	}

	schedCfg := req.Scheduler
	schedCfg.AccessToken = req.AccessToken
	sched := scheduler.New(schedCfg, d.Fetcher)

	resourceErrs, err := sched.Run(ctx, plan, rewritten.GlyphsTemplate, rewritten.FontStacks, rewritten.Sprites, w)
	if err != nil {
		return nil, err
	}

	if err := w.Finish(); err != nil {
		return nil, err
	}

	return &Result{
		PlanSize:     len(plan),
		SourceCount:  len(rewritten.Sources),
		FontStacks:   rewritten.FontStacks,
		ResourceErrs: resourceErrs,
	}, nil
}
