package main

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/styledmap/smp/pkg/container"
	"github.com/styledmap/smp/pkg/smpuri"
	"github.com/styledmap/smp/pkg/style"
)

const cliTestStyle = `{
	"version": 8,
	"sources": {
		"osm": {"type": "vector", "tiles": ["smp://maps.v1/s/osm/{z}/{x}/{y}.{ext}"]}
	},
	"layers": [{"id": "water", "type": "fill", "source": "osm"}],
	"glyphs": "smp://maps.v1/fonts/{fontstack}/{range}.pbf.gz",
	"sprite": "smp://maps.v1/sprites/default/sprite",
	"metadata": {"smp:bounds": [-180, -85, 180, 85], "smp:maxzoom": 10}
}`

func writeCLITestArchive(t *testing.T) string {
	t.Helper()
	doc, err := style.Parse([]byte(cliTestStyle))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	var buf bytes.Buffer
	w, err := container.NewWriter(&buf, doc, "1.0")
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.AddTile("osm", 0, 0, 0, smpuri.FormatMVT, strings.NewReader("tiledata"), 0); err != nil {
		t.Fatalf("AddTile: %v", err)
	}
	if err := w.AddGlyphRange("Open Sans Regular", "0-255", strings.NewReader("glyphdata")); err != nil {
		t.Fatalf("AddGlyphRange: %v", err)
	}
	if err := w.AddSprite("default", 1, ".json", strings.NewReader(`{}`)); err != nil {
		t.Fatalf("AddSprite json: %v", err)
	}
	if err := w.AddSprite("default", 1, ".png", strings.NewReader("pngdata")); err != nil {
		t.Fatalf("AddSprite png: %v", err)
	}
	if err := w.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	path := t.TempDir() + "/test.smp"
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("os.WriteFile: %v", err)
	}
	return path
}

func newBufferedCmd() (*cobra.Command, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	return cmd, &out, &errOut
}

func TestRunValidateReportsValidArchive(t *testing.T) {
	path := writeCLITestArchive(t)
	cmd, out, _ := newBufferedCmd()

	if err := runValidate(cmd, []string{path}); err != nil {
		t.Fatalf("runValidate: %v", err)
	}
	if !strings.Contains(out.String(), "is valid") {
		t.Errorf("stdout = %q, want it to mention validity", out.String())
	}
}

func TestRunValidateFailsOnMissingArchive(t *testing.T) {
	cmd, _, _ := newBufferedCmd()
	if err := runValidate(cmd, []string{"/nonexistent/archive.smp"}); err == nil {
		t.Fatal("expected an error for a nonexistent archive")
	}
}

func TestRunReadPrintsSummary(t *testing.T) {
	path := writeCLITestArchive(t)
	cmd, out, _ := newBufferedCmd()

	readResourcePath = ""
	if err := runRead(cmd, []string{path}); err != nil {
		t.Fatalf("runRead: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "version:") || !strings.Contains(got, "maxzoom:   10") {
		t.Errorf("summary output = %q, want version/maxzoom lines", got)
	}
}

func TestRunReadExtractsResource(t *testing.T) {
	path := writeCLITestArchive(t)
	cmd, out, _ := newBufferedCmd()

	readResourcePath = smpuri.TilePath("osm", 0, 0, 0, smpuri.FormatMVT)
	readOutPath = ""
	defer func() { readResourcePath = ""; readOutPath = "" }()

	if err := runRead(cmd, []string{path}); err != nil {
		t.Fatalf("runRead: %v", err)
	}
	if out.String() != "tiledata" {
		t.Errorf("extracted resource = %q, want %q", out.String(), "tiledata")
	}
}

func TestRunReadExtractMissingResourceFails(t *testing.T) {
	path := writeCLITestArchive(t)
	cmd, _, _ := newBufferedCmd()

	readResourcePath = "s/osm/9/9/9.pbf"
	defer func() { readResourcePath = "" }()

	if err := runRead(cmd, []string{path}); err == nil {
		t.Fatal("expected an error extracting a nonexistent resource")
	}
}
