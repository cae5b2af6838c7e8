package sniff

import (
	"bytes"
	"io"
	"testing"

	"github.com/styledmap/smp/pkg/smpuri"
)

func TestSniffPNG(t *testing.T) {
	body := append([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, []byte("rest-of-file")...)
	format, r, err := Sniff(bytes.NewReader(body))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if format != smpuri.FormatPNG {
		t.Fatalf("format = %v, want PNG", format)
	}
	assertStreamIntact(t, r, body)
}

func TestSniffJPG(t *testing.T) {
	body := append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, []byte("jfif...")...)
	format, _, err := Sniff(bytes.NewReader(body))
	if err != nil || format != smpuri.FormatJPG {
		t.Fatalf("format = %v, err = %v", format, err)
	}
}

func TestSniffWebP(t *testing.T) {
	body := append([]byte("RIFF"), append([]byte{0, 0, 0, 0}, []byte("WEBPVP8 ...")...)...)
	format, _, err := Sniff(bytes.NewReader(body))
	if err != nil || format != smpuri.FormatWebP {
		t.Fatalf("format = %v, err = %v", format, err)
	}
}

func TestSniffGzipMVT(t *testing.T) {
	body := []byte{0x1F, 0x8B, 0x08, 0x00, 0x00, 0x00, 0x00, 0x00, 'd', 'a', 't', 'a'}
	format, _, err := Sniff(bytes.NewReader(body))
	if err != nil || format != smpuri.FormatMVT {
		t.Fatalf("format = %v, err = %v", format, err)
	}
}

func TestSniffUnknownMagic(t *testing.T) {
	body := []byte("not a tile at all")
	if _, _, err := Sniff(bytes.NewReader(body)); err == nil {
		t.Fatalf("expected error for unknown magic bytes")
	}
}

func TestSniffMatchingFirstByteWrongSuffix(t *testing.T) {
	// Starts like PNG's first byte but diverges immediately after.
	body := []byte{0x89, 0x00, 0x00, 0x00}
	if _, _, err := Sniff(bytes.NewReader(body)); err == nil {
		t.Fatalf("expected error for near-miss magic bytes")
	}
}

func assertStreamIntact(t *testing.T, r io.Reader, want []byte) {
	t.Helper()
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("reading sniffed stream: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("sniffed stream mutated body: got %d bytes, want %d", len(got), len(want))
	}
}
