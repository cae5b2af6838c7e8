package style

import (
	"fmt"

	"github.com/styledmap/smp/pkg/smperrors"
)

// Validate performs structural checks on a parsed style document:
// version==8, sources/layers well-formed, every layer's "source"
// referencing a declared source id, and sprite (when present)
// well-formed. The glyphs template is not checked. It does not attempt full MapLibre style-spec-grade
// validation (paint/layout property schemas); see DESIGN.md for that
// tradeoff.
func Validate(doc *Document) []error {
	var errs []error

	if doc.Version != 8 {
		errs = append(errs, smperrors.New(smperrors.KindInvalidStyle, "version must be 8, got %d", doc.Version))
	}

	if len(doc.Sources) == 0 {
		errs = append(errs, smperrors.New(smperrors.KindInvalidStyle, "style declares no sources"))
	}

	for _, id := range doc.SourceOrder {
		src := doc.Sources[id]
		switch src.Kind {
		case SourceVector, SourceRaster:
			if len(src.Tile.Tiles) == 0 && src.Tile.URL == "" {
				errs = append(errs, smperrors.New(smperrors.KindInvalidStyle, "source %q has neither tiles nor url", id))
			}
		case SourceGeoJSON:
			if src.GeoJSON.DataURL == "" && len(src.GeoJSON.DataInline) == 0 {
				errs = append(errs, smperrors.New(smperrors.KindInvalidStyle, "geojson source %q has no data", id))
			}
		}
	}

	for i, layer := range doc.Layers {
		id, _ := layer["id"].(string)
		if id == "" {
			errs = append(errs, smperrors.New(smperrors.KindInvalidStyle, "layer %d is missing an id", i))
		}
		typ, _ := layer["type"].(string)
		if typ == "" {
			errs = append(errs, smperrors.New(smperrors.KindInvalidStyle, "layer %q is missing a type", layerName(id, i)))
		}
		if typ == "background" {
			continue
		}
		srcRef, ok := layer["source"].(string)
		if !ok || srcRef == "" {
			errs = append(errs, smperrors.New(smperrors.KindInvalidStyle, "layer %q is missing a source reference", layerName(id, i)))
			continue
		}
		if _, ok := doc.Sources[srcRef]; !ok {
			errs = append(errs, smperrors.New(smperrors.KindInvalidStyle, "layer %q references undeclared source %q", layerName(id, i), srcRef))
		}
	}

	if doc.Sprite != nil {
		if doc.Sprite.Single == "" && len(doc.Sprite.Multi) == 0 {
			errs = append(errs, smperrors.New(smperrors.KindInvalidStyle, "sprite property is present but empty"))
		}
		for _, e := range doc.Sprite.Multi {
			if e.ID == "" || e.URL == "" {
				errs = append(errs, smperrors.New(smperrors.KindInvalidStyle, "sprite array entry missing id or url"))
			}
		}
	}

	return errs
}

func layerName(id string, index int) string {
	if id != "" {
		return id
	}
	return fmt.Sprintf("#%d", index)
}
