package travel

import "travelopt/pkg/geometry"

// NearestNeighbor orders stops greedily: from the current position, go to the
// stop with the closest entry, then continue from its end.
func NearestNeighbor(from geometry.Point, stops []Stop) []int {
	tree := newStartTree(stops)
	order := make([]int, 0, len(stops))
	cur := from
	for len(order) < len(stops) {
		next, ok := tree.nearest(cur)
		if !ok {
			break
		}
		tree.remove(next)
		order = append(order, next)
		cur = stops[next].End
	}
	return order
}

// Construct builds the starting tour for refinement. The greedy tour is used
// unless the input order is already shorter; the second result reports which
// one won.
func Construct(from geometry.Point, stops []Stop) ([]int, bool) {
	greedy := NearestNeighbor(from, stops)
	naive := identity(len(stops))
	if len(greedy) != len(stops) || OrderDistance(from, stops, naive) < OrderDistance(from, stops, greedy) {
		return naive, false
	}
	return greedy, true
}
