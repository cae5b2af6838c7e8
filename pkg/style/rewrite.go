package style

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	orbgeojson "github.com/paulmach/orb/geojson"

	"github.com/styledmap/smp/pkg/fetch"
	"github.com/styledmap/smp/pkg/mapboxurl"
	"github.com/styledmap/smp/pkg/smpcache"
	"github.com/styledmap/smp/pkg/smpgeo"
	"github.com/styledmap/smp/pkg/smperrors"
	"github.com/styledmap/smp/pkg/smpuri"
)

// ResourcePolicy configures the rewrite's choices where the behavior
// is a caller decision rather than a fixed rule.
type ResourcePolicy struct {
	// AccessToken is used to expand mapbox:// URLs encountered while
	// rewriting (TileJSON/sprite/glyph references).
	AccessToken string

	// AvailableFonts is the set of font names this SMP will bundle
	// glyphs for; every layer's text-font stack collapses to one name
	// from this set (see ReplaceFontStack). Must be non-empty for any
	// style that uses text-font.
	AvailableFonts []string

	// DropRemoteGeoJSON, when true, drops geojson sources whose data
	// is a remote URL instead of inlining them. Default (false) is to
	// inline it into the archived style.
	DropRemoteGeoJSON bool

	// SourceFolder optionally overrides the archive folder name used
	// for a source's tiles; default is the source ID itself.
	SourceFolder func(sourceID string) string
}

func (p ResourcePolicy) folder(sourceID string) string {
	if p.SourceFolder != nil {
		return p.SourceFolder(sourceID)
	}
	return sourceID
}

// RewrittenSource is what the tile-set planner needs to enumerate
// a source's tile coverage.
type RewrittenSource struct {
	ID      string
	Folder  string
	Bounds  smpgeo.BBox
	MinZoom int
	MaxZoom int
	Tiles   []string // original (pre-rewrite) tile URL templates, for fetching
}

// SpriteTarget is a sprite the Download must fetch variants of.
type SpriteTarget struct {
	ID      string
	BaseURL string // original (pre-rewrite) base URL, without @Nx/.ext suffix
}

// Result is the outcome of rewriting a style document.
type Result struct {
	Sources    []RewrittenSource
	FontStacks []string
	// GlyphsTemplate is the style's original "glyphs" URL template
	// (containing literal {fontstack}/{range} tokens), preserved for
	// the scheduler to render and fetch against — doc.Glyphs itself is
	// overwritten with the internal smp:// URI by this function.
	GlyphsTemplate string
	Sprites        []SpriteTarget
	Bounds         smpgeo.BBox
	MaxZoom        int
}

// Rewrite mutates doc in place: drops unsupported source types,
// inlines TileJSON/GeoJSON references, rewrites glyphs/sprite/tile
// references to internal smp:// URIs, and collapses every layer's
// text-font to a single bundled font name. It returns the resource
// plan the rest of the pipeline needs to actually fetch those
// resources.
func Rewrite(ctx context.Context, doc *Document, policy ResourcePolicy, fetcher fetch.Fetcher) (*Result, error) {
	result := &Result{MaxZoom: 0}

	// tileJSONCache memoizes TileJSON lookups within this call: styles
	// commonly reference the same tileset URL from more than one source
	// (e.g. a raster and a hillshade variant of one dataset).
	tileJSONCache := smpcache.New[string, tileJSON]("tilejson", 64, 10*time.Minute)

	var allBounds []smpgeo.BBox

	for _, id := range append([]string(nil), doc.SourceOrder...) {
		src := doc.Sources[id]
		switch src.Kind {
		case SourceOther:
			delete(doc.Sources, id)
			removeFromOrder(doc, id)
			continue

		case SourceVector, SourceRaster:
			rs, err := rewriteTileSource(ctx, src, policy, fetcher, tileJSONCache)
			if err != nil {
				return nil, err
			}
			result.Sources = append(result.Sources, *rs)
			allBounds = append(allBounds, rs.Bounds)
			if rs.MaxZoom > result.MaxZoom {
				result.MaxZoom = rs.MaxZoom
			}

		case SourceGeoJSON:
			bound, keep, err := rewriteGeoJSONSource(ctx, src, policy, fetcher)
			if err != nil {
				return nil, err
			}
			if !keep {
				delete(doc.Sources, id)
				removeFromOrder(doc, id)
				continue
			}
			if bound != nil {
				allBounds = append(allBounds, *bound)
			}
			if result.MaxZoom < 16 {
				result.MaxZoom = 16
			}
		}
	}

	if len(allBounds) == 0 {
		result.Bounds = smpgeo.BBox{West: -180, South: -smpgeo.MaxLat, East: 180, North: smpgeo.MaxLat}
	} else {
		result.Bounds = smpgeo.UnionBBox(allBounds)
	}

	if doc.Glyphs != "" {
		result.GlyphsTemplate = doc.Glyphs
		stacks := CollectFontStacks(doc.Layers)
		seen := map[string]bool{}
		for _, stack := range stacks {
			replaced := ReplaceFontStack(stack, policy.AvailableFonts)
			name := replaced[0]
			if !seen[name] {
				seen[name] = true
				result.FontStacks = append(result.FontStacks, name)
			}
		}
		for _, layer := range doc.Layers {
			tf, ok := ExtractTextFont(layer)
			if !ok {
				continue
			}
			var stack []string
			switch tf.Kind {
			case FontLiteral:
				stack = tf.Literal
			case FontExpression:
				var found [][]string
				walkFontExpr(tf.Tree, func(s []string) { found = append(found, s) })
				if len(found) > 0 {
					stack = found[0]
				}
			}
			if stack == nil {
				continue
			}
			SetTextFont(layer, ReplaceFontStack(stack, policy.AvailableFonts))
		}
		doc.Glyphs = smpuri.InternalURI("fonts/{fontstack}/{range}.pbf.gz")
		sort.Strings(result.FontStacks)
	}

	if doc.Sprite != nil {
		rewritten, targets := rewriteSprite(doc.Sprite)
		doc.Sprite = rewritten
		result.Sprites = targets
	}

	return result, nil
}

func removeFromOrder(doc *Document, id string) {
	out := doc.SourceOrder[:0]
	for _, s := range doc.SourceOrder {
		if s != id {
			out = append(out, s)
		}
	}
	doc.SourceOrder = out
}

func rewriteTileSource(ctx context.Context, src *Source, policy ResourcePolicy, fetcher fetch.Fetcher, cache *smpcache.TTLCache[string, tileJSON]) (*RewrittenSource, error) {
	ts := src.Tile

	if ts.URL != "" && len(ts.Tiles) == 0 {
		if err := inlineTileJSON(ctx, ts, policy, fetcher, cache); err != nil {
			return nil, err
		}
		delete(ts.Raw, "url")
	}

	if len(ts.Tiles) == 0 {
		return nil, smperrors.New(smperrors.KindInvalidStyle, "source %q has neither tiles nor a resolvable url", src.ID)
	}

	folder := policy.folder(src.ID)
	internal := smpuri.InternalURI(smpuri.TileFolder(folder) + "{z}/{x}/{y}.{ext}")
	ts.Raw["tiles"] = []any{internal}
	ts.Raw["minzoom"] = float64(ts.MinZoom)
	ts.Raw["maxzoom"] = float64(ts.MaxZoom)
	if ts.Bounds != nil {
		ts.Raw["bounds"] = []any{ts.Bounds.West, ts.Bounds.South, ts.Bounds.East, ts.Bounds.North}
	}

	bounds := smpgeo.BBox{West: -180, South: -smpgeo.MaxLat, East: 180, North: smpgeo.MaxLat}
	if ts.Bounds != nil {
		bounds = *ts.Bounds
	}

	return &RewrittenSource{
		ID:      src.ID,
		Folder:  folder,
		Bounds:  bounds,
		MinZoom: ts.MinZoom,
		MaxZoom: ts.MaxZoom,
		Tiles:   ts.Tiles,
	}, nil
}

// tileJSON is the subset of a TileJSON document this rewriter reads.
type tileJSON struct {
	Tiles   []string  `json:"tiles"`
	Bounds  []float64 `json:"bounds"`
	MinZoom int       `json:"minzoom"`
	MaxZoom int       `json:"maxzoom"`
}

func inlineTileJSON(ctx context.Context, ts *TileSource, policy ResourcePolicy, fetcher fetch.Fetcher, cache *smpcache.TTLCache[string, tileJSON]) error {
	url, err := mapboxurl.Expand(ts.URL, policy.AccessToken)
	if err != nil {
		return err
	}

	tj, ok := cache.Get(url)
	if !ok {
		res, err := fetcher.Fetch(ctx, url)
		if err != nil {
			return smperrors.Wrap(smperrors.KindNetworkError, err, "fetching TileJSON %s", url)
		}
		if err := json.Unmarshal(res.Body, &tj); err != nil {
			return smperrors.Wrap(smperrors.KindInvalidStyle, err, "parsing TileJSON from %s", url)
		}
		cache.Set(url, tj)
	}
	ts.Tiles = tj.Tiles
	ts.MinZoom = tj.MinZoom
	if tj.MaxZoom != 0 {
		ts.MaxZoom = tj.MaxZoom
	}
	if len(tj.Bounds) == 4 {
		ts.Bounds = &smpgeo.BBox{West: tj.Bounds[0], South: tj.Bounds[1], East: tj.Bounds[2], North: tj.Bounds[3]}
	}
	return nil
}

// rewriteGeoJSONSource inlines or drops a geojson source per policy.
// It returns the source's bound (nil if not computable) and whether
// the source should be kept in the style.
func rewriteGeoJSONSource(ctx context.Context, src *Source, policy ResourcePolicy, fetcher fetch.Fetcher) (*smpgeo.BBox, bool, error) {
	gs := src.GeoJSON

	if gs.DataURL == "" {
		// Already inline; just validate it parses so malformed
		// GeoJSON fails fast rather than corrupting the archive.
		bound, err := boundOfGeoJSON(gs.DataInline)
		if err != nil {
			return nil, false, err
		}
		return bound, true, nil
	}

	if policy.DropRemoteGeoJSON {
		return nil, false, nil
	}

	res, err := fetcher.Fetch(ctx, gs.DataURL)
	if err != nil {
		return nil, false, smperrors.Wrap(smperrors.KindNetworkError, err, "fetching geojson source from %s", gs.DataURL)
	}
	bound, err := boundOfGeoJSON(res.Body)
	if err != nil {
		return nil, false, err
	}

	var inline any
	if err := json.Unmarshal(res.Body, &inline); err != nil {
		return nil, false, smperrors.Wrap(smperrors.KindInvalidStyle, err, "parsing inlined geojson")
	}
	gs.Raw["data"] = inline
	gs.DataURL = ""
	gs.DataInline = res.Body

	return bound, true, nil
}

func boundOfGeoJSON(raw []byte) (*smpgeo.BBox, error) {
	fc, err := orbgeojson.UnmarshalFeatureCollection(raw)
	if err != nil {
		// Not every geojson source is a FeatureCollection; a bare
		// Feature or Geometry is also legal GeoJSON.
		feat, ferr := orbgeojson.UnmarshalFeature(raw)
		if ferr != nil {
			return nil, smperrors.Wrap(smperrors.KindInvalidStyle, err, "inline geojson does not parse")
		}
		b := smpgeo.FromBound(feat.Geometry.Bound())
		return &b, nil
	}
	if len(fc.Features) == 0 {
		return nil, nil
	}
	bound := fc.Features[0].Geometry.Bound()
	for _, f := range fc.Features[1:] {
		bound = bound.Union(f.Geometry.Bound())
	}
	b := smpgeo.FromBound(bound)
	return &b, nil
}

func rewriteSprite(ref *SpriteRef) (*SpriteRef, []SpriteTarget) {
	if ref.Single != "" {
		id := spriteIDFromURL(ref.Single)
		return &SpriteRef{Single: smpuri.InternalURI(smpuri.SpriteFolder(id) + "sprite")},
			[]SpriteTarget{{ID: id, BaseURL: ref.Single}}
	}

	out := &SpriteRef{}
	var targets []SpriteTarget
	for _, e := range ref.Multi {
		out.Multi = append(out.Multi, SpriteEntry{
			ID:  e.ID,
			URL: smpuri.InternalURI(smpuri.SpriteFolder(e.ID) + "sprite"),
		})
		targets = append(targets, SpriteTarget{ID: e.ID, BaseURL: e.URL})
	}
	return out, targets
}

func spriteIDFromURL(u string) string {
	u = strings.TrimSuffix(u, "/")
	if i := strings.LastIndex(u, "/"); i >= 0 {
		return u[i+1:]
	}
	return "default"
}
