// Package container implements the SMP archive codec: a Writer that
// streams a style document, glyph ranges, tiles and sprites into a
// ZIP archive in the order the format's central directory must
// preserve, and a Reader that opens such an archive for random-access
// lookup. Both are built on klauspost/compress/zip.
package container

import (
	"io"
	"sync"

	"github.com/klauspost/compress/zip"

	"github.com/styledmap/smp/pkg/smperrors"
	"github.com/styledmap/smp/pkg/smpuri"
	"github.com/styledmap/smp/pkg/style"
)

// Writer appends resources to an SMP archive. It is not safe for
// concurrent use — the scheduler's reorder buffer is the single
// producer feeding it, matching the format's single-writer contract.
type Writer struct {
	mu        sync.Mutex
	zw        *zip.Writer
	seenPaths map[string]struct{}
	closed    bool
}

// NewWriter validates the rewritten style against the structural
// validator, then opens dst and immediately writes VERSION and
// style.json as the archive's first two entries, by construction
// rather than by buffering and reordering later.
func NewWriter(dst io.Writer, doc *style.Document, formatVersion string) (*Writer, error) {
	if errs := style.Validate(doc); len(errs) > 0 {
		return nil, smperrors.Wrap(smperrors.KindInvalidStyle, errs[0], "style failed validation (%d error(s))", len(errs))
	}

	styleBytes, err := style.Marshal(doc)
	if err != nil {
		return nil, err
	}

	w := &Writer{
		zw:        zip.NewWriter(dst),
		seenPaths: map[string]struct{}{},
	}

	if err := w.writeBuffer(smpuri.VersionPath, []byte(formatVersion+"\n"), zip.Deflate); err != nil {
		return nil, err
	}
	if err := w.writeBuffer(smpuri.StylePath, styleBytes, zip.Deflate); err != nil {
		return nil, err
	}
	return w, nil
}

// AddTile streams a tile's bytes into the archive at its canonical
// path. method should be zip.Store for already-compressed tile
// formats (the common case) and is exposed so callers can opt into
// zip.Deflate for uncompressed payloads.
func (w *Writer) AddTile(sourceID string, z uint8, x, y uint32, format smpuri.TileFormat, r io.Reader, method uint16) error {
	return w.stream(smpuri.TilePath(sourceID, z, x, y, format), r, method)
}

// AddGlyphRange streams one 256-codepoint glyph range (already gzip
// compressed by the fetch pipeline) into the archive.
func (w *Writer) AddGlyphRange(fontstack, rng string, r io.Reader) error {
	return w.stream(smpuri.GlyphPath(fontstack, rng), r, zip.Store)
}

// AddSprite streams a sprite variant (.json manifest or .png/@2x
// image) into the archive. JSON manifests use Deflate; image variants
// use Store.
func (w *Writer) AddSprite(id string, pixelRatio int, ext string, r io.Reader) error {
	method := uint16(zip.Store)
	if ext == ".json" {
		method = zip.Deflate
	}
	return w.stream(smpuri.SpritePath(id, pixelRatio, ext), r, method)
}

// Finish closes the ZIP central directory. No further entries may be
// added afterward.
func (w *Writer) Finish() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.zw.Close()
}

func (w *Writer) stream(path string, r io.Reader, method uint16) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return smperrors.New(smperrors.KindInvalidArchive, "writer already finished, cannot add %q", path)
	}
	if _, dup := w.seenPaths[path]; dup {
		return smperrors.New(smperrors.KindInvalidArchive, "duplicate archive path %q", path)
	}
	w.seenPaths[path] = struct{}{}

	dest, err := w.zw.CreateHeader(&zip.FileHeader{Name: path, Method: method})
	if err != nil {
		return smperrors.Wrap(smperrors.KindInvalidArchive, err, "creating archive entry %q", path)
	}
	if _, err := io.Copy(dest, r); err != nil {
		return smperrors.Wrap(smperrors.KindInvalidArchive, err, "writing archive entry %q", path)
	}
	return nil
}

// writeBuffer is the in-construction variant of stream used for
// VERSION and style.json, before seenPaths bookkeeping needs a lock
// (construction is always single-goroutine, but we reuse the shared
// duplicate-check map for consistency).
func (w *Writer) writeBuffer(path string, data []byte, method uint16) error {
	w.seenPaths[path] = struct{}{}
	dest, err := w.zw.CreateHeader(&zip.FileHeader{Name: path, Method: method})
	if err != nil {
		return smperrors.Wrap(smperrors.KindInvalidArchive, err, "creating archive entry %q", path)
	}
	_, err = dest.Write(data)
	if err != nil {
		return smperrors.Wrap(smperrors.KindInvalidArchive, err, "writing archive entry %q", path)
	}
	return nil
}
