// Package scheduler drives the bounded-concurrency fetch of a
// Download's full resource plan: a single orchestrator issues work
// to N worker goroutines, completions are restored to plan order by
// a reorder buffer, and the ordered stream is handed to the
// container Writer — all cancellable via context.
package scheduler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"sync"

	"github.com/klauspost/compress/zip"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/styledmap/smp/pkg/container"
	"github.com/styledmap/smp/pkg/fetch"
	"github.com/styledmap/smp/pkg/mapboxurl"
	"github.com/styledmap/smp/pkg/planner"
	"github.com/styledmap/smp/pkg/smperrors"
	"github.com/styledmap/smp/pkg/smpgeo"
	"github.com/styledmap/smp/pkg/smpmetrics"
	"github.com/styledmap/smp/pkg/smpuri"
	"github.com/styledmap/smp/pkg/sniff"
	"github.com/styledmap/smp/pkg/style"
	"github.com/styledmap/smp/pkg/tracing"
)

// State is the orchestrator's lifecycle stage.
type State int

const (
	StateIdle State = iota
	StatePlanning
	StateFetching
	StateDraining
	StateFinalizing
	StateDone
	StateFailed
)

// Config tunes the scheduler's concurrency and policy knobs.
type Config struct {
	Workers          int
	InboundQueue     int
	ReorderBuffer    int
	RatePerHost      float64 // requests/sec, 0 disables limiting
	RateBurst        int
	AccessToken      string
	FinalizeOnCancel bool // when true, Run returns nil on cancellation instead of an error, letting the writer finalize with partial content
	Logger           *slog.Logger
}

// DefaultConfig holds the out-of-the-box concurrency and rate-limit settings.
var DefaultConfig = Config{
	Workers:       8,
	InboundQueue:  64,
	ReorderBuffer: 256,
	RatePerHost:   10,
	RateBurst:     20,
}

// Scheduler executes a resource plan against a Fetcher, writing
// results in plan order to a container.Writer.
type Scheduler struct {
	cfg     Config
	fetcher fetch.Fetcher
	logger  *slog.Logger

	limMu    sync.Mutex
	limiters map[string]*rate.Limiter

	fmtMu        sync.Mutex
	sourceFormat map[string]smpuri.TileFormat
}

// New builds a Scheduler. Workers/queues default per DefaultConfig
// when zero.
func New(cfg Config, fetcher fetch.Fetcher) *Scheduler {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig.Workers
	}
	if cfg.InboundQueue <= 0 {
		cfg.InboundQueue = DefaultConfig.InboundQueue
	}
	if cfg.ReorderBuffer <= 0 {
		cfg.ReorderBuffer = DefaultConfig.ReorderBuffer
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Scheduler{
		cfg:          cfg,
		fetcher:      fetcher,
		logger:       cfg.Logger.With("component", "scheduler"),
		limiters:     map[string]*rate.Limiter{},
		sourceFormat: map[string]smpuri.TileFormat{},
	}
}

// job is a unit of planned work, tagged with its position in the
// overall archive order: each font stack's first glyph range, then
// tiles in plan order, then the remaining glyph ranges, then sprites
// (see buildJobs).
type job struct {
	index  int
	kind   smpuri.Kind
	tile   *planner.Entry
	glyph  *glyphJob
	sprite *spriteJob
}

type glyphJob struct {
	Fontstack string
	Range     string
	Template  string // the style's original "glyphs" URL template
}

type spriteJob struct {
	ID         string
	BaseURL    string
	PixelRatio int
	Ext        string
	Required   bool // 1x variants are required; others are best-effort
}

// pending is a completed job awaiting its turn in the reorder buffer.
// resourceErr carries a non-aborting failure (e.g. a missing required
// sprite variant) that should surface to the caller without stopping
// the writer from finalizing with everything else it has.
type pending struct {
	index       int
	skipped     bool
	write       func(w *container.Writer) error
	resourceErr error
}

// Run executes plan, glyph ranges for fontStacks, and sprite variants
// for sprites, writing every surviving resource to w in archive order:
// each font stack's first (0-255) glyph range, then every tile in
// plan order, then the rest of each font stack's glyph ranges, then
// sprites. VERSION and style.json are already written by the time Run
// is called (see container.NewWriter).
func (s *Scheduler) Run(ctx context.Context, plan []planner.Entry, glyphsTemplate string, fontStacks []string, sprites []style.SpriteTarget, w *container.Writer) ([]error, error) {
	ctx, span := tracing.StartSpan(ctx, "scheduler.Run")
	defer span.End()

	jobs := s.buildJobs(plan, glyphsTemplate, fontStacks, sprites)
	span.SetAttributes(attribute.Int("smp.job_count", len(jobs)))
	if len(jobs) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	inbound := make(chan job, s.cfg.InboundQueue)
	results := make(chan pending, s.cfg.InboundQueue)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(inbound)
		for _, j := range jobs {
			select {
			case inbound <- j:
			case <-gctx.Done():
				return nil
			}
		}
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Workers; i++ {
		wg.Add(1)
		g.Go(func() error {
			defer wg.Done()
			for j := range inbound {
				p := s.execute(gctx, j)
				select {
				case results <- p:
				case <-gctx.Done():
					return nil
				}
			}
			return nil
		})
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	resourceErrs, writeErr := s.drain(gctx, results, w, len(jobs))

	if err := g.Wait(); err != nil && err != context.Canceled {
		if s.cfg.FinalizeOnCancel {
			return resourceErrs, nil
		}
		return resourceErrs, err
	}
	if writeErr != nil {
		if ctx.Err() != nil && s.cfg.FinalizeOnCancel {
			return resourceErrs, nil
		}
		return resourceErrs, writeErr
	}
	if err := ctx.Err(); err != nil && !s.cfg.FinalizeOnCancel {
		return resourceErrs, err
	}
	return resourceErrs, nil
}

// drain owns the reorder buffer: it holds completed-out-of-order
// results until the next-expected index arrives, then writes
// contiguously to w. A resourceErr on a pending entry (e.g. a missing
// required sprite variant) is collected and returned alongside rather
// than aborting the drain — the writer still finalizes with
// everything else it has, per the failure policy.
func (s *Scheduler) drain(ctx context.Context, results <-chan pending, w *container.Writer, total int) ([]error, error) {
	buffer := map[int]pending{}
	next := 0
	written := 0
	var resourceErrs []error

	flush := func() error {
		for {
			p, ok := buffer[next]
			if !ok {
				return nil
			}
			delete(buffer, next)
			next++
			written++
			if p.resourceErr != nil {
				resourceErrs = append(resourceErrs, p.resourceErr)
				continue
			}
			if p.skipped {
				continue
			}
			if err := p.write(w); err != nil {
				return err
			}
		}
	}

	for written < total {
		select {
		case p, ok := <-results:
			if !ok {
				return resourceErrs, flush()
			}
			buffer[p.index] = p
			if err := flush(); err != nil {
				return resourceErrs, err
			}
			smpmetrics.ReorderBufferSize.Set(float64(len(buffer)))
		case <-ctx.Done():
			return resourceErrs, flush()
		}
	}
	return resourceErrs, nil
}

// buildJobs assigns each job the archive index it must land at: the
// first (0-255) glyph range of every referenced font stack precedes
// the whole tile block, so a progressive reader sees glyphs before
// tiles; every other glyph range and every sprite variant follows the
// tiles, ordering among themselves.
func (s *Scheduler) buildJobs(plan []planner.Entry, glyphsTemplate string, fontStacks []string, sprites []style.SpriteTarget) []job {
	var jobs []job
	idx := 0

	for _, fs := range fontStacks {
		jobs = append(jobs, job{
			index: idx,
			kind:  smpuri.KindGlyph,
			glyph: &glyphJob{Fontstack: fs, Range: smpuri.GlyphRange(0), Template: glyphsTemplate},
		})
		idx++
	}

	for i := range plan {
		jobs = append(jobs, job{index: idx, kind: smpuri.KindTile, tile: &plan[i]})
		idx++
	}

	for _, fs := range fontStacks {
		for n := 256; n <= 65280; n += 256 {
			jobs = append(jobs, job{
				index: idx,
				kind:  smpuri.KindGlyph,
				glyph: &glyphJob{Fontstack: fs, Range: smpuri.GlyphRange(n), Template: glyphsTemplate},
			})
			idx++
		}
	}

	for _, sp := range sprites {
		for _, pr := range []int{1, 2} {
			for _, ext := range []string{".json", ".png"} {
				jobs = append(jobs, job{
					index: idx,
					kind:  smpuri.KindSprite,
					sprite: &spriteJob{
						ID: sp.ID, BaseURL: sp.BaseURL, PixelRatio: pr, Ext: ext,
						Required: pr == 1,
					},
				})
				idx++
			}
		}
	}

	return jobs
}

func (s *Scheduler) execute(ctx context.Context, j job) pending {
	ctx, span := tracing.StartSpan(ctx, "scheduler.execute")
	span.SetAttributes(attribute.Int("smp.job_index", j.index), attribute.Int("smp.job_kind", int(j.kind)))
	defer span.End()

	var p pending
	switch j.kind {
	case smpuri.KindTile:
		p = s.executeTile(ctx, j)
	case smpuri.KindGlyph:
		p = s.executeGlyph(ctx, j)
	case smpuri.KindSprite:
		p = s.executeSprite(ctx, j)
	default:
		p = pending{index: j.index, skipped: true}
	}
	if p.resourceErr != nil {
		span.RecordError(p.resourceErr)
		span.SetStatus(codes.Error, p.resourceErr.Error())
	}
	return p
}

func (s *Scheduler) executeTile(ctx context.Context, j job) pending {
	entry := j.tile
	url, err := smpgeo.RenderTileURLBalanced(entry.URLs, entry.Coord)
	if err != nil {
		s.logger.Warn("no tile url template", "source", entry.SourceID, "error", err)
		smpmetrics.RecordFetch("tile", false, "no_template")
		return pending{index: j.index, skipped: true}
	}

	s.wait(ctx, url)
	res, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		s.logger.Debug("tile fetch failed, skipping", "url", url, "error", err)
		smpmetrics.RecordFetch("tile", false, "fetch_error")
		tracing.SetAttributes(ctx, tracing.ResourceAttributes("tile", tracing.StatusFailed, url, entry.SourceID)...)
		return pending{index: j.index, skipped: true}
	}

	format, body, err := sniff.Sniff(bytes.NewReader(res.Body))
	if err != nil {
		smpmetrics.RecordFetch("tile", false, "unknown_format")
		tracing.SetAttributes(ctx, tracing.ResourceAttributes("tile", tracing.StatusFailed, url, entry.SourceID)...)
		return pending{index: j.index, skipped: true}
	}
	data, _ := readAll(body)

	s.fmtMu.Lock()
	expected, seen := s.sourceFormat[entry.SourceID]
	if !seen {
		s.sourceFormat[entry.SourceID] = format
	}
	s.fmtMu.Unlock()
	if seen && expected != format {
		smpmetrics.RecordFetch("tile", false, "format_mismatch")
		tracing.SetAttributes(ctx, tracing.ResourceAttributes("tile", tracing.StatusSkipped, url, entry.SourceID)...)
		return pending{index: j.index, skipped: true}
	}

	smpmetrics.RecordFetch("tile", true, "")
	tracing.SetAttributes(ctx, tracing.ResourceAttributes("tile", tracing.StatusFetched, url, entry.SourceID)...)
	coord := entry.Coord
	return pending{index: j.index, write: func(w *container.Writer) error {
		return w.AddTile(entry.Folder, coord.Z, coord.X, coord.Y, format, bytes.NewReader(data), storeMethodFor(format))
	}}
}

func (s *Scheduler) executeGlyph(ctx context.Context, j job) pending {
	g := j.glyph
	rendered := smpuri.RenderGlyphTemplate(g.Template, g.Fontstack, g.Range)
	path, err := mapboxurl.Expand(rendered, s.cfg.AccessToken)
	if err != nil {
		smpmetrics.RecordFetch("glyph", false, "expand_error")
		return pending{index: j.index, skipped: true}
	}

	s.wait(ctx, path)
	res, err := s.fetcher.Fetch(ctx, path)
	if err != nil || res.StatusCode >= 400 {
		smpmetrics.RecordFetch("glyph", false, "missing")
		return pending{index: j.index, skipped: true}
	}

	smpmetrics.RecordFetch("glyph", true, "")
	data := res.Body
	return pending{index: j.index, write: func(w *container.Writer) error {
		return w.AddGlyphRange(g.Fontstack, g.Range, bytes.NewReader(data))
	}}
}

func (s *Scheduler) executeSprite(ctx context.Context, j job) pending {
	sp := j.sprite
	ratioSuffix := ""
	if sp.PixelRatio != 1 {
		ratioSuffix = fmt.Sprintf("@%dx", sp.PixelRatio)
	}
	url, err := mapboxurl.ExpandSprite(sp.BaseURL, ratioSuffix, sp.Ext, s.cfg.AccessToken)
	if err != nil {
		if sp.Required {
			return pending{index: j.index, resourceErr: requiredSpriteErr(sp, err)}
		}
		smpmetrics.RecordFetch("sprite", false, "expand_error")
		return pending{index: j.index, skipped: true}
	}

	s.wait(ctx, url)
	res, err := s.fetcher.Fetch(ctx, url)
	if err != nil || res.StatusCode >= 400 {
		if sp.Required {
			return pending{index: j.index, resourceErr: requiredSpriteErr(sp, smperrors.New(smperrors.KindResourceMissing, "required 1x sprite variant missing for %q", sp.ID))}
		}
		smpmetrics.RecordFetch("sprite", false, "missing_2x")
		return pending{index: j.index, skipped: true}
	}

	smpmetrics.RecordFetch("sprite", true, "")
	data := res.Body
	id, pr, ext := sp.ID, sp.PixelRatio, sp.Ext
	return pending{index: j.index, write: func(w *container.Writer) error {
		return w.AddSprite(id, pr, ext, bytes.NewReader(data))
	}}
}

func requiredSpriteErr(sp *spriteJob, cause error) error {
	return smperrors.Wrap(smperrors.KindResourceMissing, cause, "sprite %q missing required 1x variant", sp.ID)
}

// storeMethodFor returns zip.Store: every supported tile payload
// (mvt.gz, png, jpg, webp) arrives already compressed.
func storeMethodFor(format smpuri.TileFormat) uint16 {
	return zip.Store
}

func (s *Scheduler) wait(ctx context.Context, rawURL string) {
	if s.cfg.RatePerHost <= 0 {
		return
	}
	host := hostOf(rawURL)
	lim := s.limiterFor(host)
	_ = lim.Wait(ctx)
}

func (s *Scheduler) limiterFor(host string) *rate.Limiter {
	s.limMu.Lock()
	defer s.limMu.Unlock()
	lim, ok := s.limiters[host]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(s.cfg.RatePerHost), s.cfg.RateBurst)
		s.limiters[host] = lim
	}
	return lim
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Host
}

func readAll(r io.Reader) ([]byte, error) {
	return io.ReadAll(r)
}
