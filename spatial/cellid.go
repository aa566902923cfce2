// Package spatial implements the spatial-index maintainer (component I):
// cell-ID encoding over (lat, lon) under either an S2-style hierarchical
// scheme or a Morton Z-order curve, plus radius, bounding-box, polygon,
// and k-nearest-neighbor retrieval built over the resulting index.
package spatial

import (
	"math"

	"github.com/dolthub/recordgraph/errs"
)

// Encoding selects the cell-ID scheme.
type Encoding int

const (
	S2 Encoding = iota
	Morton
)

// Point is a geographic coordinate.
type Point struct {
	Lat, Lon float64
}

// Valid reports whether p is finite and within the WGS84-style bounds the
// data model requires.
func (p Point) Valid() bool {
	return !math.IsNaN(p.Lat) && !math.IsInf(p.Lat, 0) &&
		!math.IsNaN(p.Lon) && !math.IsInf(p.Lon, 0) &&
		p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// CellID is an encoded 64-bit hierarchical or Morton cell identifier.
type CellID uint64

// s2 layout: [face:3][level:6][path:55, left-justified]
const (
	s2FaceBits  = 3
	s2LevelBits = 6
	s2PathBits  = 64 - s2FaceBits - s2LevelBits // 55
)

// Encode maps p to its cell at level under encoding. level is typically
// 6..20. Encode is a pure function of (encoding, level, p): re-encoding
// the same point bitwise reproduces the same CellID.
func Encode(encoding Encoding, level int, p Point) (CellID, error) {
	if !p.Valid() {
		return 0, errs.Wrap(errs.ErrInvalidRadius, "point is not finite/in-range")
	}
	u, v := normalize(p, level)
	switch encoding {
	case S2:
		return encodeS2(level, u, v), nil
	case Morton:
		return encodeMorton(level, u, v), nil
	default:
		return 0, errs.Wrap(errs.ErrInvalidRadius, "unknown spatial encoding")
	}
}

// normalize buckets p's (lat, lon) into level-bit unsigned grid
// coordinates over an equirectangular [0, 2^level) x [0, 2^level) grid.
func normalize(p Point, level int) (u, v uint64) {
	n := uint64(1) << uint(level)
	latNorm := (p.Lat + 90) / 180
	lonNorm := (p.Lon + 180) / 360
	u = clampBucket(latNorm, n)
	v = clampBucket(lonNorm, n)
	return u, v
}

func clampBucket(norm float64, n uint64) uint64 {
	if norm < 0 {
		return 0
	}
	b := uint64(norm * float64(n))
	if b >= n {
		b = n - 1
	}
	return b
}

// Decode returns the center point of the cell identified by c, along with
// its level.
func Decode(encoding Encoding, c CellID) (Point, int) {
	switch encoding {
	case S2:
		return decodeS2(c)
	case Morton:
		return decodeMorton(c)
	default:
		return Point{}, 0
	}
}

func encodeS2(level int, u, v uint64) CellID {
	path := interleave(u, v, level)
	shift := uint(s2PathBits - 2*level)
	id := (uint64(0) << (s2LevelBits + s2PathBits)) // face is always 0 in this single-face simplification
	id |= uint64(level) << s2PathBits
	id |= path << shift
	return CellID(id)
}

func decodeS2(c CellID) (Point, int) {
	id := uint64(c)
	level := int((id >> s2PathBits) & ((1 << s2LevelBits) - 1))
	shift := uint(s2PathBits - 2*level)
	path := (id & ((uint64(1) << s2PathBits) - 1)) >> shift
	u, v := deinterleave(path, level)
	return centerOf(u, v, level), level
}

func encodeMorton(level int, u, v uint64) CellID {
	path := interleave(u, v, level)
	// pack level into the top bits so cells at different levels never
	// collide, mirroring the s2 layout's self-describing level field.
	return CellID(uint64(level)<<s2PathBits | path)
}

func decodeMorton(c CellID) (Point, int) {
	id := uint64(c)
	level := int(id >> s2PathBits)
	path := id & ((uint64(1) << s2PathBits) - 1)
	u, v := deinterleave(path, level)
	return centerOf(u, v, level), level
}

func centerOf(u, v uint64, level int) Point {
	n := float64(uint64(1) << uint(level))
	latNorm := (float64(u) + 0.5) / n
	lonNorm := (float64(v) + 0.5) / n
	return Point{Lat: latNorm*180 - 90, Lon: lonNorm*360 - 180}
}

// interleave bit-interleaves the low `level` bits of u and v (u in the
// even positions) into a 2*level-bit value.
func interleave(u, v uint64, level int) uint64 {
	var out uint64
	for i := 0; i < level; i++ {
		out |= ((u >> uint(i)) & 1) << uint(2*i)
		out |= ((v >> uint(i)) & 1) << uint(2*i+1)
	}
	return out
}

func deinterleave(path uint64, level int) (u, v uint64) {
	for i := 0; i < level; i++ {
		u |= ((path >> uint(2*i)) & 1) << uint(i)
		v |= ((path >> uint(2*i+1)) & 1) << uint(i)
	}
	return u, v
}

// Level returns the level encoded in c.
func (c CellID) Level() int {
	return int((uint64(c) >> s2PathBits) & ((1 << s2LevelBits) - 1))
}

// Parent returns the ancestor cell of c at newLevel (newLevel <= c.Level()).
func (c CellID) Parent(encoding Encoding, newLevel int) CellID {
	p, _ := Decode(encoding, c)
	id, _ := Encode(encoding, newLevel, p)
	return id
}
