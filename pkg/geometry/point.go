package geometry

import (
	"fmt"
	"math"
)

// Point is a resolved nozzle position in machine units.
type Point struct {
	X float64
	Y float64
	Z float64
}

// Polyline is an ordered list of positions.
type Polyline []Point

// PlanarDistance returns the distance between two points ignoring Z.
func (p Point) PlanarDistance(other Point) float64 {
	return math.Hypot(p.X-other.X, p.Y-other.Y)
}

// Near reports whether every axis of p is within tol of other.
func (p Point) Near(other Point, tol float64) bool {
	return math.Abs(p.X-other.X) < tol &&
		math.Abs(p.Y-other.Y) < tol &&
		math.Abs(p.Z-other.Z) < tol
}

func (p Point) String() string {
	return fmt.Sprintf("(%g, %g, %g)", p.X, p.Y, p.Z)
}

// Bounds returns the planar bounding box of the polyline. An empty polyline
// yields infinite bounds.
func (line Polyline) Bounds() (minX, minY, maxX, maxY float64) {
	minX = math.Inf(1)
	maxX = math.Inf(-1)
	minY = math.Inf(1)
	maxY = math.Inf(-1)
	for _, p := range line {
		minX = math.Min(minX, p.X)
		maxX = math.Max(maxX, p.X)
		minY = math.Min(minY, p.Y)
		maxY = math.Max(maxY, p.Y)
	}
	return
}
