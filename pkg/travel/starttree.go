package travel

import (
	"math"

	"github.com/asim/quadtree"

	"travelopt/pkg/geometry"
)

// startTree indexes the entry points of the stops not yet visited.
// Coincident entries share one quadtree point. Entries the quadtree failed
// to hold are kept in lost and scanned linearly.
type startTree struct {
	quadTree *quadtree.QuadTree
	stops    []Stop
	points   map[[2]float64]*quadtree.Point
	lost     map[[2]float64]*quadtree.Point
	count    int
	center   geometry.Point
	reach    float64
}

func newStartTree(stops []Stop) *startTree {
	entries := make(geometry.Polyline, len(stops))
	for i, s := range stops {
		entries[i] = s.Entry
	}
	minX, minY, maxX, maxY := entries.Bounds()
	if len(stops) == 0 {
		minX, minY, maxX, maxY = 0, 0, 0, 0
	}

	// The root box is dyadic: a power of two half-size centered on a
	// multiple of it, so every child box the quadtree derives is exact and
	// siblings share their edges.
	half := dyadic(2 * (math.Max(maxX-minX, maxY-minY)/2 + 10))
	midX := math.Round((maxX+minX)/2/half) * half
	midY := math.Round((maxY+minY)/2/half) * half

	aabb := quadtree.NewAABB(
		quadtree.NewPoint(midX, midY, nil),
		quadtree.NewPoint(half, half, nil))
	t := &startTree{
		quadTree: quadtree.New(aabb, 0, nil),
		stops:    stops,
		points:   map[[2]float64]*quadtree.Point{},
		lost:     map[[2]float64]*quadtree.Point{},
		center:   geometry.Point{X: midX, Y: midY},
		reach:    math.Sqrt2 * half * 2,
	}
	for i := range stops {
		t.add(i)
	}
	t.verify()
	return t
}

// dyadic returns the smallest power of two not below v.
func dyadic(v float64) float64 {
	frac, exp := math.Frexp(v)
	if frac == 0.5 {
		return v
	}
	return math.Ldexp(1, exp)
}

// verify moves entries the quadtree cannot find to the lost set. A point
// can fall out when a node subdivides.
func (t *startTree) verify() {
	for key, point := range t.points {
		if !t.holds(point) {
			delete(t.points, key)
			t.lost[key] = point
		}
	}
}

func (t *startTree) holds(point *quadtree.Point) bool {
	x, y := point.Coordinates()
	aabb := quadtree.NewAABB(
		quadtree.NewPoint(x, y, nil),
		quadtree.NewPoint(0, 0, nil),
	)
	for _, found := range t.quadTree.Search(aabb) {
		if found == point {
			return true
		}
	}
	return false
}

func (t *startTree) add(i int) {
	key := [2]float64{t.stops[i].Entry.X, t.stops[i].Entry.Y}
	t.count++
	if point, ok := t.points[key]; ok {
		point.Data().(*startBucket).add(i)
		return
	}
	if point, ok := t.lost[key]; ok {
		point.Data().(*startBucket).add(i)
		return
	}
	point := quadtree.NewPoint(key[0], key[1], &startBucket{indices: []int{i}})
	if t.quadTree.Insert(point) {
		t.points[key] = point
	} else {
		t.lost[key] = point
	}
}

func (t *startTree) remove(i int) {
	key := [2]float64{t.stops[i].Entry.X, t.stops[i].Entry.Y}
	point, indexed := t.points[key]
	if !indexed {
		var ok bool
		if point, ok = t.lost[key]; !ok {
			return
		}
	}
	bucket := point.Data().(*startBucket)
	if !bucket.remove(i) {
		return
	}
	t.count--
	if len(bucket.indices) > 0 {
		return
	}
	if indexed {
		t.quadTree.Remove(point)
		delete(t.points, key)
	} else {
		delete(t.lost, key)
	}
}

// nearest returns the remaining stop whose entry is closest to p. Ties go to
// the lowest index.
func (t *startTree) nearest(p geometry.Point) (int, bool) {
	if t.count == 0 {
		return 0, false
	}

	best, bestDist, found := t.scanLost(p)
	if len(t.points) == 0 {
		return best, found
	}

	radius := t.initialRadius()
	for {
		i, d, ok := t.search(p, radius)
		if ok && d > radius {
			// Something closer may sit outside the box's inscribed circle.
			i, d, ok = t.search(p, d)
		}
		if ok {
			if !found || closer(d, i, bestDist, best) {
				best, found = i, true
			}
			return best, found
		}
		if radius > t.reach+p.PlanarDistance(t.center) {
			return best, found
		}
		radius *= 2
	}
}

func (t *startTree) scanLost(p geometry.Point) (int, float64, bool) {
	best, bestDist, found := 0, math.Inf(1), false
	for _, point := range t.lost {
		x, y := point.Coordinates()
		d := math.Hypot(p.X-x, p.Y-y)
		i := point.Data().(*startBucket).first()
		if !found || closer(d, i, bestDist, best) {
			best, bestDist, found = i, d, true
		}
	}
	return best, bestDist, found
}

func closer(d float64, i int, bestDist float64, best int) bool {
	return d < bestDist || (d == bestDist && i < best)
}

func (t *startTree) initialRadius() float64 {
	if t.count == 0 {
		return 1
	}
	r := t.reach / math.Sqrt(float64(t.count))
	if r <= 0 {
		r = 1
	}
	return r
}

func (t *startTree) search(p geometry.Point, radius float64) (int, float64, bool) {
	aabb := quadtree.NewAABB(
		quadtree.NewPoint(p.X, p.Y, nil),
		quadtree.NewPoint(radius, radius, nil),
	)
	best, bestDist, found := 0, math.Inf(1), false
	for _, point := range t.quadTree.Search(aabb) {
		x, y := point.Coordinates()
		d := math.Hypot(p.X-x, p.Y-y)
		i := point.Data().(*startBucket).first()
		if !found || closer(d, i, bestDist, best) {
			best, bestDist, found = i, d, true
		}
	}
	return best, bestDist, found
}

// startBucket holds the indices sharing one entry point, lowest first.
type startBucket struct {
	indices []int
}

func (b *startBucket) add(i int) {
	b.indices = append(b.indices, i)
}

func (b *startBucket) first() int {
	return b.indices[0]
}

func (b *startBucket) remove(i int) bool {
	for j, v := range b.indices {
		if v == i {
			b.indices = append(b.indices[:j], b.indices[j+1:]...)
			return true
		}
	}
	return false
}
