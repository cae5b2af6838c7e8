// Package validator implements the layered SMP archive audit: archive
// integrity, VERSION grammar, style presence/parse/validation,
// metadata presence, and tile/glyph/sprite resource coverage.
package validator

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/styledmap/smp/pkg/container"
	"github.com/styledmap/smp/pkg/smpuri"
	"github.com/styledmap/smp/pkg/style"
)

// Report is the outcome of a full validation run.
type Report struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

func (r *Report) fail(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *Report) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

var versionGrammar = regexp.MustCompile(`^(\d+)\.(\d+)$`)

const supportedMajor = "1"

// ValidatePath runs the full audit against an archive on disk.
func ValidatePath(path string) *Report {
	r := &Report{}

	reader, err := container.Open(path)
	if err != nil {
		r.fail("%v", err)
		r.Valid = false
		return r
	}
	defer reader.Close()

	Validate(reader, r)
	r.Valid = len(r.Errors) == 0
	return r
}

// Validate runs every check except archive-open against an
// already-open archive, appending results to r. Opening and parsing
// the archive is assumed to have already succeeded by the caller.
func Validate(reader *container.Reader, r *Report) {
	checkVersion(reader, r)

	doc := checkStyle(reader, r)
	if doc == nil {
		return
	}

	checkMetadata(doc, r)
	checkTileCoverage(reader, doc, r)
	checkGlyphCoverage(reader, doc, r)
	checkSpriteCoverage(reader, doc, r)
}

func checkVersion(reader *container.Reader, r *Report) {
	raw, present, err := reader.GetVersion()
	if err != nil {
		r.fail("reading VERSION: %v", err)
		return
	}
	if !present {
		r.warn("archive has no VERSION file")
		return
	}
	m := versionGrammar.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		r.fail("VERSION does not match MAJOR.MINOR grammar: %q", raw)
		return
	}
	if m[1] != supportedMajor {
		r.fail("unsupported VERSION major %q (supported: %s)", m[1], supportedMajor)
	}
}

func checkStyle(reader *container.Reader, r *Report) *style.Document {
	if !reader.Has(smpuri.StylePath) {
		r.fail("style.json is missing")
		return nil
	}
	doc, err := reader.GetStyle()
	if err != nil {
		r.fail("style.json: %v", err)
		return nil
	}
	for _, e := range style.Validate(doc) {
		r.fail("%v", e)
	}
	return doc
}

func checkMetadata(doc *style.Document, r *Report) {
	bounds, ok := doc.Metadata["smp:bounds"]
	if !ok {
		r.fail("metadata.smp:bounds is missing")
	} else if arr, ok := bounds.([]any); !ok || len(arr) != 4 {
		r.warn("metadata.smp:bounds is not a 4-element array")
	}

	if _, ok := doc.Metadata["smp:maxzoom"]; !ok {
		r.fail("metadata.smp:maxzoom is missing")
	}

	if sf, ok := doc.Metadata["smp:sourceFolders"]; ok {
		if _, ok := sf.(map[string]any); !ok {
			r.warn("metadata.smp:sourceFolders is present but not an object")
		}
	}
}

func checkTileCoverage(reader *container.Reader, doc *style.Document, r *Report) {
	for _, id := range doc.SourceOrder {
		src, ok := doc.Sources[id]
		if !ok || src.Tile == nil {
			continue
		}
		for _, tmpl := range src.Tile.Tiles {
			path, internal := smpuri.StripScheme(tmpl)
			if !internal {
				continue
			}
			prefix := path[:strings.Index(path, "{z}")]
			if len(reader.ListPrefix(prefix)) == 0 {
				r.fail("No tile files found for source %q", id)
			}
			break
		}
	}
}

func checkGlyphCoverage(reader *container.Reader, doc *style.Document, r *Report) {
	if doc.Glyphs == "" {
		return
	}
	path, internal := smpuri.StripScheme(doc.Glyphs)
	if !internal {
		return
	}
	var prefix string
	if idx := strings.Index(path, "{fontstack}"); idx >= 0 {
		prefix = path[:idx]
	}
	var matches []string
	if prefix != "" {
		matches = reader.ListPrefix(prefix)
	}
	if len(matches) == 0 {
		matches = reader.ListPrefix("fonts/")
		var filtered []string
		for _, m := range matches {
			if strings.HasSuffix(m, ".pbf.gz") {
				filtered = append(filtered, m)
			}
		}
		matches = filtered
	}
	if len(matches) == 0 {
		r.fail("no glyph ranges found for glyphs template %q", doc.Glyphs)
	}
}

func checkSpriteCoverage(reader *container.Reader, doc *style.Document, r *Report) {
	if doc.Sprite == nil {
		return
	}

	check := func(id, rawURL string) {
		path, internal := smpuri.StripScheme(rawURL)
		if !internal {
			return
		}
		dir := path
		if idx := strings.LastIndex(path, "/"); idx >= 0 {
			dir = path[:idx+1]
		}
		for _, ext := range []string{".json", ".png"} {
			if !reader.Has(dir + "sprite" + ext) {
				r.fail("sprite %q missing required sprite%s", id, ext)
			}
		}
		for _, ext := range []string{".json", ".png"} {
			if !reader.Has(dir + "sprite@2x" + ext) {
				r.warn("sprite %q missing optional sprite@2x%s", id, ext)
			}
		}
	}

	if doc.Sprite.Single != "" {
		check("default", doc.Sprite.Single)
	}
	for _, e := range doc.Sprite.Multi {
		check(e.ID, e.URL)
	}
}

// Summary is a lightweight non-validating inspection of an archive,
// useful for CLI display without running the full audit.
type Summary struct {
	Version   string
	MaxZoom   int
	Bounds    [4]float64
	NumTiles  int
	NumFonts  int
	NumSprite int
}

// Summarize inspects an archive's counts without validating content.
func Summarize(path string) (*Summary, error) {
	reader, err := container.Open(path)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	s := &Summary{}
	if v, ok, _ := reader.GetVersion(); ok {
		s.Version = v
	}

	doc, err := reader.GetStyle()
	if err != nil {
		return s, nil
	}

	if mz, ok := doc.Metadata["smp:maxzoom"].(float64); ok {
		s.MaxZoom = int(mz)
	}
	if b, ok := doc.Metadata["smp:bounds"].([]any); ok && len(b) == 4 {
		for i, v := range b {
			if f, ok := v.(float64); ok {
				s.Bounds[i] = f
			}
		}
	}

	s.NumTiles = len(reader.ListPrefix("s/"))
	s.NumFonts = len(reader.ListPrefix("fonts/"))
	s.NumSprite = len(reader.ListPrefix("sprites/"))
	return s, nil
}
