package style

import (
	"encoding/json"

	"github.com/styledmap/smp/pkg/smperrors"
)

// Marshal re-serializes a Document to a style.json byte slice,
// reconstructing "sources"/"sprite"/etc. from the typed model and
// re-emitting every Extra field verbatim.
func Marshal(doc *Document) ([]byte, error) {
	top := map[string]json.RawMessage{}

	put := func(key string, v any) error {
		b, err := json.Marshal(v)
		if err != nil {
			return smperrors.Wrap(smperrors.KindInvalidStyle, err, "marshaling %q", key)
		}
		top[key] = b
		return nil
	}

	if err := put("version", doc.Version); err != nil {
		return nil, err
	}

	sources := map[string]any{}
	for _, id := range doc.SourceOrder {
		src, ok := doc.Sources[id]
		if !ok {
			continue
		}
		sources[id] = sourceToRaw(src)
	}
	if err := put("sources", sources); err != nil {
		return nil, err
	}

	if doc.Layers != nil {
		if err := put("layers", doc.Layers); err != nil {
			return nil, err
		}
	}

	if doc.Glyphs != "" {
		if err := put("glyphs", doc.Glyphs); err != nil {
			return nil, err
		}
	}

	if doc.Sprite != nil {
		if err := put("sprite", spriteToRaw(doc.Sprite)); err != nil {
			return nil, err
		}
	}

	if len(doc.Metadata) > 0 {
		if err := put("metadata", doc.Metadata); err != nil {
			return nil, err
		}
	}

	for k, v := range doc.Extra {
		top[k] = v
	}

	out, err := json.Marshal(top)
	if err != nil {
		return nil, smperrors.Wrap(smperrors.KindInvalidStyle, err, "marshaling style document")
	}
	return out, nil
}

func sourceToRaw(src *Source) any {
	switch src.Kind {
	case SourceVector, SourceRaster:
		return src.Tile.Raw
	case SourceGeoJSON:
		return src.GeoJSON.Raw
	default:
		return src.Raw
	}
}

func spriteToRaw(ref *SpriteRef) any {
	if ref.Single != "" {
		return ref.Single
	}
	out := make([]map[string]string, len(ref.Multi))
	for i, e := range ref.Multi {
		out[i] = map[string]string{"id": e.ID, "url": e.URL}
	}
	return out
}
