// Package planner enumerates the deterministic tile-set plan a
// Download must fetch from each rewritten tile source, in the
// ascending-zoom, round-robin, row-major order the archive's
// central directory must preserve for progressive reads.
package planner

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"

	"github.com/styledmap/smp/pkg/smpgeo"
	"github.com/styledmap/smp/pkg/style"
)

// Entry is a single planned tile fetch, tagged with its position in
// the overall plan so the scheduler's reorder buffer can restore this
// order from out-of-order fetch completions.
type Entry struct {
	Index      int
	SourceID   string
	Folder     string
	Coord      smpgeo.TileCoord
	URLs       []string // the source's load-balanced tile URL templates
}

// Plan builds the full ordered resource plan for the given sources
// against a request bbox, clamped to requestedMaxzoom.
func Plan(sources []style.RewrittenSource, bbox smpgeo.BBox, requestedMaxzoom int) []Entry {
	clamped := bbox.ClampLatitude()

	type sourceRange struct {
		src       style.RewrittenSource
		tilesByZ  map[uint8][]smpgeo.TileCoord
		maxZ      uint8
		minZ      uint8
	}

	ranges := make([]sourceRange, 0, len(sources))
	for _, src := range sources {
		maxz := src.MaxZoom
		if requestedMaxzoom < maxz {
			maxz = requestedMaxzoom
		}
		if maxz < src.MinZoom {
			continue
		}

		sr := sourceRange{src: src, tilesByZ: map[uint8][]smpgeo.TileCoord{}, minZ: uint8(src.MinZoom), maxZ: uint8(maxz)}
		inter := intersect(clamped, src.Bounds)
		if inter == nil {
			ranges = append(ranges, sr)
			continue
		}

		for z := src.MinZoom; z <= maxz; z++ {
			sr.tilesByZ[uint8(z)] = tileRangeAt(*inter, uint8(z))
		}
		ranges = append(ranges, sr)
	}

	var overallMinZ, overallMaxZ uint8
	first := true
	for _, sr := range ranges {
		if first {
			overallMinZ, overallMaxZ = sr.minZ, sr.maxZ
			first = false
			continue
		}
		if sr.minZ < overallMinZ {
			overallMinZ = sr.minZ
		}
		if sr.maxZ > overallMaxZ {
			overallMaxZ = sr.maxZ
		}
	}

	var plan []Entry
	index := 0
	for z := overallMinZ; ; z++ {
		for _, sr := range ranges {
			if z < sr.minZ || z > sr.maxZ {
				continue
			}
			coords := sr.tilesByZ[z]
			for _, c := range coords {
				plan = append(plan, Entry{
					Index:    index,
					SourceID: sr.src.ID,
					Folder:   sr.src.Folder,
					Coord:    c,
					URLs:     sr.src.Tiles,
				})
				index++
			}
		}
		if z >= overallMaxZ {
			break
		}
	}

	return plan
}

// intersect returns the overlap of a and b, or nil if they don't
// overlap.
func intersect(a, b smpgeo.BBox) *smpgeo.BBox {
	out := smpgeo.BBox{
		West:  math.Max(a.West, b.West),
		South: math.Max(a.South, b.South),
		East:  math.Min(a.East, b.East),
		North: math.Min(a.North, b.North),
	}
	if out.West >= out.East || out.South >= out.North {
		return nil
	}
	return &out
}

// tileRangeAt enumerates every (x,y) tile at zoom z covering bbox, in
// row-major (y, x) order.
func tileRangeAt(bbox smpgeo.BBox, z uint8) []smpgeo.TileCoord {
	minTile := maptile.At(orb.Point{bbox.West, bbox.North}, maptile.Zoom(z))
	maxTile := maptile.At(orb.Point{bbox.East, bbox.South}, maptile.Zoom(z))

	x0, x1 := minTile.X, maxTile.X
	if x1 < x0 {
		x0, x1 = x1, x0
	}
	y0, y1 := minTile.Y, maxTile.Y
	if y1 < y0 {
		y0, y1 = y1, y0
	}

	n := uint32(1) << z
	if x1 >= n {
		x1 = n - 1
	}
	if y1 >= n {
		y1 = n - 1
	}

	var out []smpgeo.TileCoord
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			out = append(out, smpgeo.TileCoord{Z: z, X: x, Y: y, Scheme: smpgeo.SchemeXYZ})
		}
	}
	return out
}
