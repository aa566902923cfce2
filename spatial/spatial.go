package spatial

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/dolthub/recordgraph/errs"
	"github.com/dolthub/recordgraph/index"
	"github.com/dolthub/recordgraph/indexstate"
	"github.com/dolthub/recordgraph/kv"
	"github.com/dolthub/recordgraph/subspace"
	"github.com/dolthub/recordgraph/val"
)

const earthRadiusMeters = 6371000.0

// Maintainer keeps a spatial index over records carrying a lat/lon pair,
// keyed by (cellID, PK) so that range scans over a prefix of the cell
// hierarchy retrieve every record whose cell falls inside it.
type Maintainer struct {
	IndexName string
	Sub       subspace.Subspace
	Encoding  Encoding
	Level     int
	LatField  string
	LonField  string
	States    *indexstate.Manager
	Log       *zap.Logger
}

// NewMaintainer constructs a ready-to-register spatial index maintainer.
func NewMaintainer(name string, sub subspace.Subspace, encoding Encoding, level int, latField, lonField string, states *indexstate.Manager, log *zap.Logger) *Maintainer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Maintainer{
		IndexName: name,
		Sub:       sub,
		Encoding:  encoding,
		Level:     level,
		LatField:  latField,
		LonField:  lonField,
		States:    states,
		Log:       log,
	}
}

func (m *Maintainer) point(r index.Record) (Point, bool) {
	latV, ok := r.Field(m.LatField)
	if !ok {
		return Point{}, false
	}
	lonV, ok := r.Field(m.LonField)
	if !ok {
		return Point{}, false
	}
	lat, ok := toFloat(latV)
	if !ok {
		return Point{}, false
	}
	lon, ok := toFloat(lonV)
	if !ok {
		return Point{}, false
	}
	return Point{Lat: lat, Lon: lon}, true
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int64:
		return float64(x), true
	case int:
		return float64(x), true
	default:
		return 0, false
	}
}

func (m *Maintainer) cellKey(c CellID, pk val.Tuple) ([]byte, error) {
	return m.Sub.Pack(val.Tuple{int64(c), pk})
}

// UpdateIndex removes oldRecord's cell entry (if any) and writes
// newRecord's, short-circuiting when the cell is unchanged.
func (m *Maintainer) UpdateIndex(ctx context.Context, txn kv.Transaction, oldRecord, newRecord index.Record) error {
	if err := m.requireWritable(ctx, txn); err != nil {
		return err
	}

	var oldCell, newCell CellID
	var haveOld, haveNew bool
	var pk val.Tuple

	if oldRecord != nil {
		pk = oldRecord.PK()
		if p, ok := m.point(oldRecord); ok {
			c, err := Encode(m.Encoding, m.Level, p)
			if err != nil {
				return err
			}
			oldCell, haveOld = c, true
		}
	}
	if newRecord != nil {
		pk = newRecord.PK()
		if p, ok := m.point(newRecord); ok {
			c, err := Encode(m.Encoding, m.Level, p)
			if err != nil {
				return err
			}
			newCell, haveNew = c, true
		}
	}

	if haveOld && haveNew && oldCell == newCell {
		return nil
	}
	if haveOld {
		key, err := m.cellKey(oldCell, pk)
		if err != nil {
			return err
		}
		txn.Clear(key)
	}
	if haveNew {
		key, err := m.cellKey(newCell, pk)
		if err != nil {
			return err
		}
		txn.Set(key, []byte{})
	}
	m.Log.Debug("spatial index updated", zap.String("index", m.IndexName), zap.Bool("hadOld", haveOld), zap.Bool("hasNew", haveNew))
	return nil
}

// ScanItem writes newRecord unconditionally, for index backfill.
func (m *Maintainer) ScanItem(ctx context.Context, txn kv.Transaction, record index.Record) error {
	if err := m.requireWritable(ctx, txn); err != nil {
		return err
	}
	p, ok := m.point(record)
	if !ok {
		return nil
	}
	c, err := Encode(m.Encoding, m.Level, p)
	if err != nil {
		return err
	}
	key, err := m.cellKey(c, record.PK())
	if err != nil {
		return err
	}
	txn.Set(key, []byte{})
	return nil
}

func (m *Maintainer) requireWritable(ctx context.Context, txn kv.Transaction) error {
	if m.States == nil {
		return nil
	}
	if err := m.States.RequireWritable(ctx, txn, m.IndexName); err != nil {
		return fmt.Errorf("spatial maintainer %q: %w", m.IndexName, err)
	}
	return nil
}

func (m *Maintainer) requireReadable(ctx context.Context, txn kv.Transaction) error {
	if m.States == nil {
		return nil
	}
	if err := m.States.RequireReadable(ctx, txn, m.IndexName); err != nil {
		return fmt.Errorf("spatial maintainer %q: %w", m.IndexName, err)
	}
	return nil
}

// Hit is one candidate returned by a spatial query, with its true
// great-circle distance from the query point when applicable.
type Hit struct {
	PK           val.Tuple
	Point        Point
	DistanceMeters float64
}

// SearchBoundingBox returns every indexed point whose decoded cell center
// lies inside [minLat,maxLat] x [minLon,maxLon] (bounds inclusive). It
// scans the whole index; it does not compute a covering set of cell
// ranges for the box.
func (m *Maintainer) SearchBoundingBox(ctx context.Context, txn kv.Transaction, minLat, minLon, maxLat, maxLon float64) ([]Hit, error) {
	if err := m.requireReadable(ctx, txn); err != nil {
		return nil, err
	}
	if minLat > maxLat || minLon > maxLon {
		return nil, errs.Wrap(errs.ErrInvalidRadius, "bounding box min exceeds max")
	}

	var hits []Hit
	// Scan the whole index at this level and filter by decoded cell centers;
	// a full cell-range union for arbitrary boxes needs the same
	// traversal machinery as KNN's ring expansion, which is overkill for
	// the bounding-box contract's correctness requirement.
	all, err := m.scanAll(ctx, txn)
	if err != nil {
		return nil, err
	}
	for _, h := range all {
		if h.Point.Lat >= minLat && h.Point.Lat <= maxLat && h.Point.Lon >= minLon && h.Point.Lon <= maxLon {
			hits = append(hits, h)
		}
	}
	return hits, nil
}

// SearchRadius returns every indexed point within radiusMeters of center,
// refining cell-level candidates with exact Haversine distance.
func (m *Maintainer) SearchRadius(ctx context.Context, txn kv.Transaction, center Point, radiusMeters float64) ([]Hit, error) {
	if err := m.requireReadable(ctx, txn); err != nil {
		return nil, err
	}
	if radiusMeters <= 0 {
		return nil, errs.Wrap(errs.ErrInvalidRadius, "radius must be positive")
	}
	all, err := m.scanAll(ctx, txn)
	if err != nil {
		return nil, err
	}
	// Round distances to millimeters via decimal before the boundary
	// comparison: two calls computing the same great-circle distance via
	// slightly different float64 rounding must agree on which side of the
	// radius a point lands.
	bound := decimal.NewFromFloat(radiusMeters)
	var hits []Hit
	for _, h := range all {
		d := decimal.NewFromFloat(haversine(center, h.Point)).Round(3)
		if d.LessThanOrEqual(bound) {
			h.DistanceMeters = d.InexactFloat64()
			hits = append(hits, h)
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].DistanceMeters < hits[j].DistanceMeters })
	m.Log.Debug("spatial radius search",
		zap.String("index", m.IndexName),
		zap.String("radius", humanize.Commaf(radiusMeters)+"m"),
		zap.Int("hits", len(hits)))
	return hits, nil
}

// PolygonMode selects the point-in-polygon test SearchPolygon applies.
type PolygonMode int

const (
	// PolygonSimple accepts an arbitrary simple (non-self-intersecting)
	// polygon and tests membership by ray-casting.
	PolygonSimple PolygonMode = iota
	// PolygonConvex assumes vertices wind consistently around a convex
	// hull and tests membership by cross-product sign consistency, a
	// cheaper test than ray-casting when the caller already knows the
	// polygon is convex.
	PolygonConvex
)

// SearchPolygon returns every indexed point inside the polygon described
// by vertices (closed implicitly: last connects to first). mode selects
// ray-casting (simple, possibly-concave polygons) or cross-product sign
// consistency (convex polygons only); validate gates the minimum-vertex
// check so a caller that has already validated its vertices upstream can
// skip the redundant work.
func (m *Maintainer) SearchPolygon(ctx context.Context, txn kv.Transaction, vertices []Point, mode PolygonMode, validate bool) ([]Hit, error) {
	if err := m.requireReadable(ctx, txn); err != nil {
		return nil, err
	}
	if validate && len(vertices) < 3 {
		return nil, errs.Wrap(errs.ErrInvalidPolygon, "polygon needs at least 3 vertices")
	}
	all, err := m.scanAll(ctx, txn)
	if err != nil {
		return nil, err
	}
	test := pointInPolygon
	if mode == PolygonConvex {
		test = pointInConvexPolygon
	}
	var hits []Hit
	for _, h := range all {
		if test(h.Point, vertices) {
			hits = append(hits, h)
		}
	}
	return hits, nil
}

// LimitReason explains why ExecuteKNN returned fewer than k hits.
type LimitReason int

const (
	// LimitReasonNone means k hits were found; the result is complete.
	LimitReasonNone LimitReason = iota
	// LimitReasonRadiusSaturated means the search radius reached
	// maxRadiusKm without accumulating k hits.
	LimitReasonRadiusSaturated
	// LimitReasonResultCap means the hard candidate-count safety cap was
	// hit before k hits could be confirmed.
	LimitReasonResultCap
)

func (r LimitReason) String() string {
	switch r {
	case LimitReasonRadiusSaturated:
		return "radius_saturated"
	case LimitReasonResultCap:
		return "result_cap"
	default:
		return "none"
	}
}

// KNNResult is the outcome of ExecuteKNN: the ranked hits, whether the
// k-result target was actually reached, and why not when it wasn't.
type KNNResult struct {
	Hits        []Hit
	IsComplete  bool
	LimitReason LimitReason
}

// maxKNNCandidates is the hard safety cap on candidates considered within
// a single ring before ExecuteKNN gives up expanding further.
const maxKNNCandidates = 10000

// ExecuteKNN returns the k nearest indexed points to center, expanding the
// search radius geometrically from initialRadiusKm by expansionFactor
// each miss until k candidates are confirmed, the radius reaches
// maxRadiusKm, or the hard candidate-count safety cap is hit.
func (m *Maintainer) ExecuteKNN(ctx context.Context, txn kv.Transaction, center Point, k int, initialRadiusKm, maxRadiusKm, expansionFactor float64) (KNNResult, error) {
	if err := m.requireReadable(ctx, txn); err != nil {
		return KNNResult{}, err
	}
	if k <= 0 {
		return KNNResult{}, errs.Wrap(errs.ErrInvalidKNNParameters, "k must be positive")
	}
	if !isFinitePositive(initialRadiusKm) {
		return KNNResult{}, errs.Wrap(errs.ErrInvalidKNNParameters, "initialRadiusKm must be positive and finite")
	}
	if maxRadiusKm < initialRadiusKm || !isFinitePositive(maxRadiusKm) {
		return KNNResult{}, errs.Wrap(errs.ErrInvalidKNNParameters, "maxRadiusKm must be finite and at least initialRadiusKm")
	}
	if expansionFactor <= 1.0 || math.IsInf(expansionFactor, 0) || math.IsNaN(expansionFactor) {
		return KNNResult{}, errs.Wrap(errs.ErrInvalidKNNParameters, "expansionFactor must exceed 1.0 and be finite")
	}

	radiusMeters := initialRadiusKm * 1000
	maxRadiusMeters := maxRadiusKm * 1000
	for {
		hits, err := m.SearchRadius(ctx, txn, center, radiusMeters)
		if err != nil {
			return KNNResult{}, err
		}
		if len(hits) >= k {
			return KNNResult{Hits: topK(hits, k), IsComplete: true, LimitReason: LimitReasonNone}, nil
		}
		if len(hits) > maxKNNCandidates {
			return KNNResult{Hits: topK(hits, k), IsComplete: len(hits) >= k, LimitReason: LimitReasonResultCap}, nil
		}
		if radiusMeters >= maxRadiusMeters {
			return KNNResult{Hits: topK(hits, k), IsComplete: false, LimitReason: LimitReasonRadiusSaturated}, nil
		}
		radiusMeters *= expansionFactor
		if radiusMeters > maxRadiusMeters {
			radiusMeters = maxRadiusMeters
		}
	}
}

func isFinitePositive(x float64) bool {
	return x > 0 && !math.IsInf(x, 0) && !math.IsNaN(x)
}

// topK returns the k closest hits; hits is assumed distance-sorted
// ascending already (SearchRadius sorts).
func topK(hits []Hit, k int) []Hit {
	if len(hits) <= k {
		return hits
	}
	return hits[:k]
}

func (m *Maintainer) scanAll(ctx context.Context, txn kv.Transaction) ([]Hit, error) {
	begin, end := m.Sub.Range()
	it, err := txn.GetRange(ctx, begin, end, false)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var hits []Hit
	for {
		kvp, ok, err := it.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		tup, err := m.Sub.Unpack(kvp.Key)
		if err != nil {
			return nil, err
		}
		if len(tup) < 2 {
			continue
		}
		cellI, ok := tup[0].(int64)
		if !ok {
			continue
		}
		pk, ok := tup[1].(val.Tuple)
		if !ok {
			pk = val.Tuple{tup[1]}
		}
		p, _ := Decode(m.Encoding, CellID(cellI))
		hits = append(hits, Hit{PK: pk, Point: p})
	}
	return hits, nil
}

func haversine(a, b Point) float64 {
	lat1, lon1 := deg2rad(a.Lat), deg2rad(a.Lon)
	lat2, lon2 := deg2rad(b.Lat), deg2rad(b.Lon)
	dLat := lat2 - lat1
	dLon := lon2 - lon1
	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusMeters * c
}

func deg2rad(d float64) float64 { return d * math.Pi / 180 }

// pointInPolygon is the standard even-odd ray-casting test.
func pointInPolygon(p Point, poly []Point) bool {
	inside := false
	n := len(poly)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		pi, pj := poly[i], poly[j]
		if (pi.Lon > p.Lon) != (pj.Lon > p.Lon) {
			slopeX := (pj.Lat-pi.Lat)*(p.Lon-pi.Lon)/(pj.Lon-pi.Lon) + pi.Lat
			if p.Lat < slopeX {
				inside = !inside
			}
		}
	}
	return inside
}

// pointInConvexPolygon tests membership by cross-product sign
// consistency: p is inside a convex polygon iff it lies on the same side
// (by sign of the 2D cross product) of every edge, walked in the
// vertices' given winding order.
func pointInConvexPolygon(p Point, poly []Point) bool {
	n := len(poly)
	var sign float64
	for i := 0; i < n; i++ {
		a, b := poly[i], poly[(i+1)%n]
		cross := (b.Lon-a.Lon)*(p.Lat-a.Lat) - (b.Lat-a.Lat)*(p.Lon-a.Lon)
		if cross == 0 {
			continue
		}
		if sign == 0 {
			sign = cross
		} else if (cross > 0) != (sign > 0) {
			return false
		}
	}
	return true
}
