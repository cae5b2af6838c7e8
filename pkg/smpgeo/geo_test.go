package smpgeo

import (
	"math"
	"testing"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) < tol
}

func TestTileToBBoxWorld(t *testing.T) {
	b := TileToBBox(0, 0, 0)
	if !almostEqual(b.West, -180, 1e-6) || !almostEqual(b.East, 180, 1e-6) {
		t.Fatalf("z=0 bbox west/east = %v/%v, want -180/180", b.West, b.East)
	}
	if b.South > -85 || b.North < 85 {
		t.Fatalf("z=0 bbox lat range = [%v,%v], want beyond +/-85", b.South, b.North)
	}
}

func TestTileToBBoxZ1(t *testing.T) {
	b := TileToBBox(1, 0, 0)
	if !almostEqual(b.West, -180, 1e-6) {
		t.Fatalf("west = %v, want -180", b.West)
	}
	if !almostEqual(b.East, 0, 1e-6) {
		t.Fatalf("east = %v, want 0", b.East)
	}
	if b.North < 85 {
		t.Fatalf("north = %v, want > 85", b.North)
	}
}

func TestQuadkey(t *testing.T) {
	if q := Quadkey(0, 0, 0); q != "" {
		t.Fatalf("quadkey(0,0,0) = %q, want empty", q)
	}

	cases := []struct {
		x, y uint32
		want string
	}{
		{0, 0, "0"},
		{1, 0, "1"},
		{0, 1, "2"},
		{1, 1, "3"},
	}
	for _, c := range cases {
		if got := Quadkey(1, c.x, c.y); got != c.want {
			t.Errorf("quadkey(1,%d,%d) = %q, want %q", c.x, c.y, got, c.want)
		}
	}

	if got := Quadkey(2, 3, 3); got != "33" {
		t.Errorf("quadkey(2,3,3) = %q, want %q", got, "33")
	}
}

func TestUnionBBox(t *testing.T) {
	a := BBox{West: -10, South: -5, East: 10, North: 5}
	if got := UnionBBox([]BBox{a}); got != a {
		t.Fatalf("UnionBBox([a]) = %+v, want %+v", got, a)
	}
	if got := UnionBBox([]BBox{a, a}); got != a {
		t.Fatalf("UnionBBox([a,a]) = %+v, want %+v", got, a)
	}

	b := BBox{West: -20, South: 0, East: 5, North: 15}
	u1 := UnionBBox([]BBox{a, b})
	u2 := UnionBBox([]BBox{b, a})
	if u1 != u2 {
		t.Fatalf("UnionBBox not commutative: %+v vs %+v", u1, u2)
	}
	want := BBox{West: -20, South: -5, East: 10, North: 15}
	if u1 != want {
		t.Fatalf("UnionBBox(a,b) = %+v, want %+v", u1, want)
	}
}

func TestRenderTileURLXYZ(t *testing.T) {
	got := RenderTileURL("https://t/{z}/{x}/{y}.mvt", TileCoord{Z: 3, X: 1, Y: 2, Scheme: SchemeXYZ})
	if got != "https://t/3/1/2.mvt" {
		t.Fatalf("xyz render = %q, want https://t/3/1/2.mvt", got)
	}
}

func TestRenderTileURLTMS(t *testing.T) {
	got := RenderTileURL("https://t/{z}/{x}/{y}.mvt", TileCoord{Z: 1, X: 0, Y: 0, Scheme: SchemeTMS})
	if got != "https://t/1/0/1.mvt" {
		t.Fatalf("tms render = %q, want .../1/0/1.mvt", got)
	}
}

func TestRenderTileURLQuadkeyToken(t *testing.T) {
	got := RenderTileURL("https://t/{quadkey}.mvt", TileCoord{Z: 1, X: 1, Y: 0})
	if got != "https://t/1.mvt" {
		t.Fatalf("quadkey render = %q, want .../1.mvt", got)
	}
}

func TestRenderTileURLPrefixToken(t *testing.T) {
	got := RenderTileURL("https://t/{prefix}/tile.mvt", TileCoord{Z: 0, X: 0, Y: 0})
	if got != "https://t/00/tile.mvt" {
		t.Fatalf("prefix render = %q, want .../00/tile.mvt", got)
	}
}

func TestSelectTemplateLoadBalancing(t *testing.T) {
	templates := []string{"https://a", "https://b"}
	if got, _ := SelectTemplate(templates, TileCoord{X: 0, Y: 0}); got != "https://a" {
		t.Fatalf("(0,0) selected %q, want https://a", got)
	}
	if got, _ := SelectTemplate(templates, TileCoord{X: 1, Y: 0}); got != "https://b" {
		t.Fatalf("(1,0) selected %q, want https://b", got)
	}
}

func TestClampLatitude(t *testing.T) {
	b := BBox{West: -10, South: -89, East: 10, North: 89}
	c := b.ClampLatitude()
	if c.South != -MaxLat || c.North != MaxLat {
		t.Fatalf("clamp = %+v", c)
	}
}
