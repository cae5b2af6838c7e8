// Package style parses a MapLibre-style document into a tagged-variant
// model, rewrites it to reference archive-internal smp:// URIs, and
// enumerates the resources (tile sources, font stacks, sprites) a
// Download must fetch. Unknown fields are preserved verbatim so a
// rewrite round-trips anything it doesn't specifically recognize.
package style

import (
	"bytes"
	"encoding/json"

	"github.com/styledmap/smp/pkg/smpgeo"
	"github.com/styledmap/smp/pkg/smperrors"
)

// SourceKind classifies a style source by its "type" field.
type SourceKind int

const (
	SourceVector SourceKind = iota
	SourceRaster
	SourceGeoJSON
	SourceOther
)

func sourceKindOf(typ string) SourceKind {
	switch typ {
	case "vector":
		return SourceVector
	case "raster":
		return SourceRaster
	case "geojson":
		return SourceGeoJSON
	default:
		return SourceOther
	}
}

// TileSource holds the fields relevant to a vector/raster source.
// Raw carries every field present in the original JSON object so
// rewriting can mutate just "tiles"/"url" and re-marshal the rest
// unchanged.
type TileSource struct {
	URL     string   // TileJSON reference, if present instead of inline "tiles"
	Tiles   []string // inline tile URL templates
	Bounds  *smpgeo.BBox
	MinZoom int
	MaxZoom int
	Raw     map[string]any
}

// GeoJSONSource holds the fields relevant to a geojson source.
type GeoJSONSource struct {
	DataURL    string          // "data" was a string URL
	DataInline json.RawMessage // "data" was an inline object
	Raw        map[string]any
}

// Source is a tagged union over the source kinds a style may declare.
type Source struct {
	ID      string
	Kind    SourceKind
	Tile    *TileSource    // non-nil when Kind is Vector or Raster
	GeoJSON *GeoJSONSource // non-nil when Kind is GeoJSON
	Raw     map[string]any // non-nil when Kind is Other, preserved verbatim
}

// FontKind distinguishes a literal font-stack array from an
// expression tree that must be traversed for nested literals.
type FontKind int

const (
	FontLiteral FontKind = iota
	FontExpression
)

// TextFont is a layer's "text-font" property.
type TextFont struct {
	Kind    FontKind
	Literal []string // valid when Kind == FontLiteral
	Tree    any       // valid when Kind == FontExpression; raw JSON value
}

// SpriteRef is a style's "sprite" property: either a single base URL
// or an ordered list of {id, url} entries. The JSON decoder commits to
// exactly one branch, so "both forms at once" cannot occur once
// parsed.
type SpriteRef struct {
	Single string
	Multi  []SpriteEntry
}

// SpriteEntry is one element of an array-form "sprite" property.
type SpriteEntry struct {
	ID  string
	URL string
}

// Document is the parsed style, mid-transform. Unknown top-level
// fields are preserved in Extra and re-emitted on Marshal.
type Document struct {
	Version  int
	Sources  map[string]*Source
	SourceOrder []string // preserves original declaration order
	Layers   []map[string]any
	Glyphs   string
	Sprite   *SpriteRef
	Metadata map[string]any
	Extra    map[string]json.RawMessage
}

// Parse decodes a raw style document into the tagged-variant model.
func Parse(raw []byte) (*Document, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, smperrors.Wrap(smperrors.KindInvalidStyle, err, "style.json is not valid JSON")
	}

	doc := &Document{
		Sources: map[string]*Source{},
		Extra:   map[string]json.RawMessage{},
	}

	for k, v := range top {
		switch k {
		case "version":
			if err := json.Unmarshal(v, &doc.Version); err != nil {
				return nil, smperrors.Wrap(smperrors.KindInvalidStyle, err, "version field")
			}
		case "sources":
			dec := json.NewDecoder(bytes.NewReader(v))
			if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
				return nil, smperrors.New(smperrors.KindInvalidStyle, "sources field is not an object")
			}
			for dec.More() {
				tok, _ := dec.Token()
				id, _ := tok.(string)
				var sraw json.RawMessage
				if err := dec.Decode(&sraw); err != nil {
					return nil, smperrors.Wrap(smperrors.KindInvalidStyle, err, "sources field")
				}
				src, err := parseSource(id, sraw)
				if err != nil {
					return nil, err
				}
				doc.Sources[id] = src
				doc.SourceOrder = append(doc.SourceOrder, id)
			}
		case "layers":
			var layers []map[string]any
			if err := json.Unmarshal(v, &layers); err != nil {
				return nil, smperrors.Wrap(smperrors.KindInvalidStyle, err, "layers field")
			}
			doc.Layers = layers
		case "glyphs":
			if err := json.Unmarshal(v, &doc.Glyphs); err != nil {
				return nil, smperrors.Wrap(smperrors.KindInvalidStyle, err, "glyphs field")
			}
		case "sprite":
			sprite, err := parseSprite(v)
			if err != nil {
				return nil, err
			}
			doc.Sprite = sprite
		case "metadata":
			var md map[string]any
			if err := json.Unmarshal(v, &md); err != nil {
				return nil, smperrors.Wrap(smperrors.KindInvalidStyle, err, "metadata field")
			}
			doc.Metadata = md
		default:
			doc.Extra[k] = v
		}
	}

	if doc.Version != 8 {
		return nil, smperrors.New(smperrors.KindInvalidStyle, "unsupported style version %d, want 8", doc.Version)
	}
	if doc.Metadata == nil {
		doc.Metadata = map[string]any{}
	}

	return doc, nil
}

func parseSource(id string, raw json.RawMessage) (*Source, error) {
	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, smperrors.Wrap(smperrors.KindInvalidStyle, err, "source %q", id)
	}

	typ, _ := generic["type"].(string)
	kind := sourceKindOf(typ)

	src := &Source{ID: id, Kind: kind}
	switch kind {
	case SourceVector, SourceRaster:
		ts := &TileSource{Raw: generic}
		if u, ok := generic["url"].(string); ok {
			ts.URL = u
		}
		if tiles, ok := generic["tiles"].([]any); ok {
			for _, t := range tiles {
				if s, ok := t.(string); ok {
					ts.Tiles = append(ts.Tiles, s)
				}
			}
		}
		if b, ok := generic["bounds"].([]any); ok && len(b) == 4 {
			bb := smpgeo.BBox{
				West:  toFloat(b[0]),
				South: toFloat(b[1]),
				East:  toFloat(b[2]),
				North: toFloat(b[3]),
			}
			ts.Bounds = &bb
		}
		ts.MinZoom = int(toFloatOr(generic["minzoom"], 0))
		ts.MaxZoom = int(toFloatOr(generic["maxzoom"], 22))
		src.Tile = ts

	case SourceGeoJSON:
		gs := &GeoJSONSource{Raw: generic}
		switch d := generic["data"].(type) {
		case string:
			gs.DataURL = d
		default:
			if raw, ok := generic["data"]; ok {
				b, err := json.Marshal(raw)
				if err == nil {
					gs.DataInline = b
				}
			}
		}
		src.GeoJSON = gs

	default:
		src.Raw = generic
	}

	return src, nil
}

func parseSprite(raw json.RawMessage) (*SpriteRef, error) {
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return &SpriteRef{Single: single}, nil
	}

	var multi []struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	if err := json.Unmarshal(raw, &multi); err != nil {
		return nil, smperrors.Wrap(smperrors.KindInvalidStyle, err, "sprite field")
	}
	out := &SpriteRef{}
	for _, e := range multi {
		out.Multi = append(out.Multi, SpriteEntry{ID: e.ID, URL: e.URL})
	}
	return out, nil
}

func toFloat(v any) float64 {
	f, _ := v.(float64)
	return f
}

func toFloatOr(v any, def float64) float64 {
	if v == nil {
		return def
	}
	f, ok := v.(float64)
	if !ok {
		return def
	}
	return f
}
