// Package smpgeo provides tile <-> bbox conversions, quadkeys, bbox
// union, and tile-URL template expansion used by the tile-set planner
// and resource scheduler.
package smpgeo

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// MaxLat is the Web Mercator latitude clamp used when computing tile
// coverage for a bbox.
const MaxLat = 85.051129

// Scheme selects xyz (storage-native) or tms y-axis orientation when
// rendering a tile URL. Storage coordinates are always XYZ regardless
// of scheme.
type Scheme int

const (
	SchemeXYZ Scheme = iota
	SchemeTMS
)

func (s Scheme) String() string {
	if s == SchemeTMS {
		return "tms"
	}
	return "xyz"
}

// TileCoord identifies a tile. Invariant: 0 <= X,Y < 2^Z.
type TileCoord struct {
	Z      uint8
	X, Y   uint32
	Scheme Scheme
}

// BBox is a WGS84 bounding box: west, south, east, north in degrees.
type BBox struct {
	West, South, East, North float64
}

// Bound converts a BBox to an orb.Bound for use with orb/maptile.
func (b BBox) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.West, b.South},
		Max: orb.Point{b.East, b.North},
	}
}

// FromBound converts an orb.Bound back to a BBox.
func FromBound(b orb.Bound) BBox {
	return BBox{West: b.Min[0], South: b.Min[1], East: b.Max[0], North: b.Max[1]}
}

// ClampLatitude clamps a bbox's latitudes to +/-MaxLat, required
// before computing Mercator tile coverage.
func (b BBox) ClampLatitude() BBox {
	clamp := func(lat float64) float64 {
		if lat > MaxLat {
			return MaxLat
		}
		if lat < -MaxLat {
			return -MaxLat
		}
		return lat
	}
	b.South = clamp(b.South)
	b.North = clamp(b.North)
	return b
}

// TileToBBox returns the WGS84 bounding box covered by tile (z,x,y).
func TileToBBox(z uint8, x, y uint32) BBox {
	t := maptile.New(x, y, maptile.Zoom(z))
	return FromBound(t.Bound())
}

// Quadkey encodes a tile coordinate as a base-4 string of length z.
// Bit i of y contributes weight 2, bit i of x contributes weight 1,
// matching the Bing Maps quadkey convention.
func Quadkey(z uint8, x, y uint32) string {
	var sb strings.Builder
	sb.Grow(int(z))
	for i := int(z); i > 0; i-- {
		var digit byte = '0'
		mask := uint32(1) << uint(i-1)
		if x&mask != 0 {
			digit++
		}
		if y&mask != 0 {
			digit += 2
		}
		sb.WriteByte(digit)
	}
	return sb.String()
}

// UnionBBox returns the component-wise union of a list of bboxes. It
// is idempotent and commutative; unioning a single-element (or
// all-identical) list returns that bbox unchanged. Panics if list is
// empty — callers must supply at least one bbox.
func UnionBBox(list []BBox) BBox {
	if len(list) == 0 {
		panic("smpgeo: UnionBBox called with empty list")
	}
	out := list[0]
	for _, b := range list[1:] {
		if b.West < out.West {
			out.West = b.West
		}
		if b.South < out.South {
			out.South = b.South
		}
		if b.East > out.East {
			out.East = b.East
		}
		if b.North > out.North {
			out.North = b.North
		}
	}
	return out
}

// RenderTileURL substitutes {z}, {x}, {y}, {quadkey} and {prefix} into
// a URL template for the given tile coordinate. When scheme is TMS the
// {y} token is flipped to 2^z - y - 1; storage coordinates (the coord
// itself) are unaffected.
func RenderTileURL(template string, coord TileCoord) string {
	y := coord.Y
	if coord.Scheme == SchemeTMS {
		n := uint32(1) << coord.Z
		y = n - coord.Y - 1
	}

	prefix := fmt.Sprintf("%02x", (coord.X+coord.Y)%16)

	r := strings.NewReplacer(
		"{z}", strconv.FormatUint(uint64(coord.Z), 10),
		"{x}", strconv.FormatUint(uint64(coord.X), 10),
		"{y}", strconv.FormatUint(uint64(y), 10),
		"{quadkey}", Quadkey(coord.Z, coord.X, coord.Y),
		"{prefix}", prefix,
	)
	return r.Replace(template)
}

// SelectTemplate picks a URL template from a load-balanced list by
// (x+y) mod len(templates), so consecutive tiles spread across hosts.
func SelectTemplate(templates []string, coord TileCoord) (string, error) {
	if len(templates) == 0 {
		return "", fmt.Errorf("smpgeo: no URL templates supplied")
	}
	idx := int((coord.X + coord.Y)) % len(templates)
	return templates[idx], nil
}

// RenderTileURLBalanced selects a template via SelectTemplate and
// renders it for coord — the common entry point used by the
// scheduler.
func RenderTileURLBalanced(templates []string, coord TileCoord) (string, error) {
	tmpl, err := SelectTemplate(templates, coord)
	if err != nil {
		return "", err
	}
	return RenderTileURL(tmpl, coord), nil
}
