// Package smpuri provides the canonical archive-relative paths and
// internal smp:// URIs for every resource kind, plus resource
// classification and content-type lookup by path. It performs no I/O.
package smpuri

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/styledmap/smp/pkg/smperrors"
)

// Scheme is the internal URI scheme prefix for this archive format
// version. A breaking format change bumps the path component.
const Scheme = "smp://maps.v1/"

// Kind classifies an archive entry.
type Kind int

const (
	KindStyle Kind = iota
	KindVersion
	KindTile
	KindGlyph
	KindSprite
)

// TileFormat enumerates the tile payload formats.
type TileFormat int

const (
	FormatMVT TileFormat = iota
	FormatPNG
	FormatJPG
	FormatWebP
)

// Ext returns the archive file extension for a tile format.
func (f TileFormat) Ext() string {
	switch f {
	case FormatMVT:
		return "mvt.gz"
	case FormatPNG:
		return "png"
	case FormatJPG:
		return "jpg"
	case FormatWebP:
		return "webp"
	default:
		return ""
	}
}

func (f TileFormat) String() string {
	switch f {
	case FormatMVT:
		return "mvt"
	case FormatPNG:
		return "png"
	case FormatJPG:
		return "jpg"
	case FormatWebP:
		return "webp"
	default:
		return "unknown"
	}
}

// StylePath is the fixed archive path of the style document.
const StylePath = "style.json"

// VersionPath is the fixed archive path of the VERSION file.
const VersionPath = "VERSION"

// TilePath returns the canonical archive path for a tile resource.
func TilePath(sourceID string, z uint8, x, y uint32, format TileFormat) string {
	return fmt.Sprintf("s/%s/%d/%d/%d.%s", sourceID, z, x, y, format.Ext())
}

// TileFolder returns the archive-relative folder that all tiles of a
// source are stored under (the prefix before {z}).
func TileFolder(sourceID string) string {
	return fmt.Sprintf("s/%s/", sourceID)
}

// GlyphRange formats a glyph range starting at n, a multiple of 256 in
// [0, 65280].
func GlyphRange(n int) string {
	return fmt.Sprintf("%d-%d", n, n+255)
}

// GlyphPath returns the canonical archive path for a glyph range.
func GlyphPath(fontstack, rng string) string {
	return fmt.Sprintf("fonts/%s/%s.pbf.gz", fontstack, rng)
}

// GlyphFolder returns the archive-relative folder for a fontstack's
// glyph ranges (the prefix before {range}).
func GlyphFolder(fontstack string) string {
	return fmt.Sprintf("fonts/%s/", fontstack)
}

// SpritePath returns the canonical archive path for a sprite variant.
// pixelRatio == 1 omits the "@Nx" suffix; ext is ".json" or ".png".
func SpritePath(id string, pixelRatio int, ext string) string {
	suffix := ""
	if pixelRatio != 1 {
		suffix = fmt.Sprintf("@%dx", pixelRatio)
	}
	return fmt.Sprintf("sprites/%s/sprite%s%s", id, suffix, ext)
}

// SpriteFolder returns the archive-relative folder for a sprite id.
func SpriteFolder(id string) string {
	return fmt.Sprintf("sprites/%s/", id)
}

// InternalURI prefixes an archive-relative path with the internal
// scheme.
func InternalURI(path string) string {
	return Scheme + path
}

// StripScheme removes the internal scheme prefix, returning the bare
// archive path, and false if the URI didn't use the scheme.
func StripScheme(uri string) (string, bool) {
	if !strings.HasPrefix(uri, Scheme) {
		return "", false
	}
	return strings.TrimPrefix(uri, Scheme), true
}

// Classify determines the resource Kind for an archive-relative path.
func Classify(path string) (Kind, error) {
	switch {
	case path == StylePath:
		return KindStyle, nil
	case path == VersionPath:
		return KindVersion, nil
	case strings.HasPrefix(path, "fonts/"):
		return KindGlyph, nil
	case strings.HasPrefix(path, "sprites/"):
		return KindSprite, nil
	case strings.HasPrefix(path, "s/"):
		return KindTile, nil
	default:
		return 0, smperrors.New(smperrors.KindUnknownResource, "cannot classify archive path %q", path)
	}
}

// contentTypeSuffixes is ordered longest/most-specific suffix first so
// ".pbf.gz" is matched before the more general ".gz" would be (which
// isn't itself a recognized suffix, but keeps the ordering contract
// explicit for future additions).
var contentTypeSuffixes = []struct {
	suffix      string
	contentType string
}{
	{".pbf.gz", "application/x-protobuf+gzip"},
	{".mvt.gz", "application/vnd.mapbox-vector-tile"},
	{".json", "application/json"},
	{".pbf", "application/x-protobuf"},
	{".png", "image/png"},
	{".jpg", "image/jpeg"},
	{".webp", "image/webp"},
	{".mvt", "application/vnd.mapbox-vector-tile"},
}

// ContentType resolves the content-type for an archive path by
// ordered suffix match.
func ContentType(path string) (string, error) {
	for _, e := range contentTypeSuffixes {
		if strings.HasSuffix(path, e.suffix) {
			return e.contentType, nil
		}
	}
	return "", smperrors.New(smperrors.KindUnknownContentType, "no known content-type for path %q", path)
}

// RenderGlyphTemplate substitutes the literal {fontstack} and {range}
// tokens in a style's "glyphs" URL template.
func RenderGlyphTemplate(template, fontstack, rng string) string {
	r := strings.NewReplacer("{fontstack}", fontstack, "{range}", rng)
	return r.Replace(template)
}

// ParseGlyphRangeStart parses the "N" of an "N-N+255" glyph range
// string, validating it is a multiple of 256 in [0, 65280].
func ParseGlyphRangeStart(rng string) (int, error) {
	parts := strings.SplitN(rng, "-", 2)
	if len(parts) != 2 {
		return 0, smperrors.New(smperrors.KindInvalidArchive, "malformed glyph range %q", rng)
	}
	n, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, smperrors.New(smperrors.KindInvalidArchive, "malformed glyph range %q", rng)
	}
	if n < 0 || n > 65280 || n%256 != 0 {
		return 0, smperrors.New(smperrors.KindInvalidArchive, "glyph range start %d out of grid", n)
	}
	if want := fmt.Sprintf("%d-%d", n, n+255); want != rng {
		return 0, smperrors.New(smperrors.KindInvalidArchive, "malformed glyph range %q", rng)
	}
	return n, nil
}
