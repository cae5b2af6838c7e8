// Package sniff identifies a tile's format from its leading magic
// bytes, without requiring the full body to be buffered.
package sniff

import (
	"bufio"
	"bytes"
	"io"

	"github.com/styledmap/smp/pkg/smperrors"
	"github.com/styledmap/smp/pkg/smpuri"
)

// lookaheadSize is the maximum number of bytes peeked before giving up
// on magic-byte detection.
const lookaheadSize = 16 * 1024

var (
	pngMagic  = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	jpgMagic  = []byte{0xFF, 0xD8, 0xFF}
	gzipMagic = []byte{0x1F, 0x8B, 0x08}
)

// Sniff reads up to lookaheadSize bytes from r to identify the tile
// format by magic bytes, and returns the format alongside a stream
// that re-emits the peeked bytes followed by the remainder of r. The
// original reader is considered fully owned/consumed thereafter.
func Sniff(r io.Reader) (smpuri.TileFormat, io.Reader, error) {
	br := bufio.NewReaderSize(r, lookaheadSize)
	peek, _ := br.Peek(lookaheadSize)
	if len(peek) == 0 {
		return 0, br, smperrors.New(smperrors.KindUnknownFileType, "empty tile body")
	}

	format, ok := detect(peek)
	if !ok {
		return 0, br, smperrors.New(smperrors.KindUnknownFileType, "unrecognized magic bytes %x", head(peek, 8))
	}
	return format, br, nil
}

func detect(peek []byte) (smpuri.TileFormat, bool) {
	switch {
	case bytes.HasPrefix(peek, pngMagic):
		return smpuri.FormatPNG, true
	case bytes.HasPrefix(peek, jpgMagic):
		return smpuri.FormatJPG, true
	case isWebP(peek):
		return smpuri.FormatWebP, true
	case bytes.HasPrefix(peek, gzipMagic):
		return smpuri.FormatMVT, true
	default:
		return 0, false
	}
}

// isWebP checks the RIFF....WEBP container magic: bytes 0-3 "RIFF",
// bytes 8-11 "WEBP".
func isWebP(peek []byte) bool {
	if len(peek) < 12 {
		return false
	}
	return bytes.Equal(peek[0:4], []byte("RIFF")) && bytes.Equal(peek[8:12], []byte("WEBP"))
}

func head(b []byte, n int) []byte {
	if len(b) < n {
		return b
	}
	return b[:n]
}
