package travel

import "travelopt/pkg/geometry"

const (
	DefaultMaxStalePasses = 100
	DefaultTolerance      = 1e-5
)

// Options bound the 2-opt refinement.
type Options struct {
	// MaxStalePasses is the number of passes without improvement allowed
	// before giving up. Zero disables refinement.
	MaxStalePasses int
	// MaxPasses caps the total number of passes when positive.
	MaxPasses int
	// Tolerance is the least reduction in travel that counts as improvement.
	Tolerance float64
}

func DefaultOptions() Options {
	return Options{
		MaxStalePasses: DefaultMaxStalePasses,
		Tolerance:      DefaultTolerance,
	}
}

// TwoOpt improves order by reversing sub-ranges while that shortens the tour.
// Segments keep their direction; only the order of the reversed range flips.
// It returns the refined order and the number of passes run. A pass costs
// O(n^2).
func TwoOpt(from geometry.Point, stops []Stop, order []int, opts Options) ([]int, int) {
	order = append([]int(nil), order...)
	if len(order) < 2 {
		return order, 0
	}

	passes, stale := 0, 0
	for stale < opts.MaxStalePasses {
		if opts.MaxPasses > 0 && passes >= opts.MaxPasses {
			break
		}
		improved := twoOptPass(from, stops, order, opts.Tolerance)
		passes++
		if improved {
			stale = 0
			continue
		}
		// A pass that changed nothing is a local optimum.
		stale++
		break
	}
	return order, passes
}

func twoOptPass(from geometry.Point, stops []Stop, order []int, tol float64) bool {
	n := len(order)
	improved := false
	dist := func(a, b geometry.Point) float64 { return a.PlanarDistance(b) }

	for i := 0; i < n-1; i++ {
		prev := from
		if i > 0 {
			prev = stops[order[i-1]].End
		}
		// fwd and rev hold the travel inside [i, k] walked forwards and
		// backwards.
		fwd, rev := 0.0, 0.0
		for k := i + 1; k < n; k++ {
			fwd += dist(stops[order[k-1]].End, stops[order[k]].Entry)
			rev += dist(stops[order[k]].End, stops[order[k-1]].Entry)

			before := dist(prev, stops[order[i]].Entry) + fwd
			after := dist(prev, stops[order[k]].Entry) + rev
			if k+1 < n {
				next := stops[order[k+1]].Entry
				before += dist(stops[order[k]].End, next)
				after += dist(stops[order[i]].End, next)
			}

			if before-after > tol {
				reverse(order[i : k+1])
				fwd, rev = rev, fwd
				improved = true
			}
		}
	}
	return improved
}

func reverse(s []int) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
