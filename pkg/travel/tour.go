package travel

import (
	"travelopt/pkg/geometry"
	"travelopt/pkg/layer"
)

// Stop is one segment as the tour sees it: the nozzle has to reach Entry
// before printing and is left at End afterwards.
type Stop struct {
	Entry geometry.Point
	End   geometry.Point
}

// Eligible reports whether a segment can be moved: it must be an extrude run
// with known geometry, printed in absolute coordinates.
func Eligible(s *layer.Segment) bool {
	return s.Kind == layer.KindExtrude &&
		s.Start != nil && s.End != nil && s.Entry != nil &&
		!s.Relative
}

// Partition separates movable extrude segments from the rest. Both results
// keep input order.
func Partition(segments []layer.Segment) (eligible, passthrough []layer.Segment) {
	for i := range segments {
		if Eligible(&segments[i]) {
			eligible = append(eligible, segments[i])
		} else {
			passthrough = append(passthrough, segments[i])
		}
	}
	return eligible, passthrough
}

// StopOf returns the tour stop of an eligible segment.
func StopOf(s *layer.Segment) Stop {
	return Stop{Entry: *s.Entry, End: *s.End}
}

// Distance is the planar travel needed to visit stops in order from from.
func Distance(from geometry.Point, stops []Stop) float64 {
	total := 0.0
	cur := from
	for _, s := range stops {
		total += cur.PlanarDistance(s.Entry)
		cur = s.End
	}
	return total
}

// OrderDistance is Distance over stops permuted by order.
func OrderDistance(from geometry.Point, stops []Stop, order []int) float64 {
	total := 0.0
	cur := from
	for _, i := range order {
		total += cur.PlanarDistance(stops[i].Entry)
		cur = stops[i].End
	}
	return total
}

// Exit returns where the nozzle is after visiting stops in order.
func Exit(from geometry.Point, stops []Stop, order []int) geometry.Point {
	if len(order) == 0 {
		return from
	}
	return stops[order[len(order)-1]].End
}

func identity(n int) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	return order
}
