package travel

import (
	"travelopt/pkg/gcode"
	"travelopt/pkg/geometry"
	"travelopt/pkg/layer"
)

// Block is an eligible extrude segment plus the passthrough segments that
// belong to it: feature tag comments announcing it and whatever followed it
// in the input. A block moves as a unit.
type Block struct {
	Lead    []layer.Segment
	Segment layer.Segment
	Follow  []layer.Segment
}

// Plan is the movable middle of a layer.
type Plan struct {
	// Head holds passthrough segments seen before the first eligible segment.
	Head   []layer.Segment
	Blocks []Block
	// Dropped holds positioning moves made obsolete by synthesized travel.
	Dropped []gcode.Command
}

// Anchor ties every passthrough segment of a layer's middle to the eligible
// segment before it, except feature tag comments, which go with the segment
// they announce. Positioning moves that only lead up to an eligible segment
// are dropped, since the regenerator travels there itself.
func Anchor(middle []layer.Segment) Plan {
	var plan Plan
	var tags []layer.Segment
	attach := func(s layer.Segment) {
		if len(plan.Blocks) == 0 {
			plan.Head = append(plan.Head, s)
			return
		}
		b := &plan.Blocks[len(plan.Blocks)-1]
		b.Follow = append(b.Follow, s)
	}
	flush := func() {
		for _, t := range tags {
			attach(t)
		}
		tags = nil
	}

	for i := range middle {
		s := middle[i]
		if Eligible(&s) {
			plan.Blocks = append(plan.Blocks, Block{Lead: tags, Segment: s})
			tags = nil
			continue
		}
		if isTagComment(&s) {
			tags = append(tags, s)
			continue
		}
		if s.Kind == layer.KindExtrude {
			// An extrude segment that stays put keeps its own tags.
			flush()
		}
		if s.Kind != layer.KindTravel || !leadsToEligible(middle[i+1:]) {
			attach(s)
			continue
		}

		var kept []gcode.Command
		for _, c := range s.Commands {
			if c.IsPositioning() {
				plan.Dropped = append(plan.Dropped, c)
			} else {
				kept = append(kept, c)
			}
		}
		if len(kept) > 0 {
			attach(layer.NewSegment(s.Kind, kept))
		}
	}
	flush()
	return plan
}

// isTagComment reports whether s holds only comments, at least one of them
// a feature tag.
func isTagComment(s *layer.Segment) bool {
	if s.Kind != layer.KindOther {
		return false
	}
	tagged := false
	for i := range s.Commands {
		c := &s.Commands[i]
		if c.Code != gcode.CodeNone {
			return false
		}
		if _, ok := gcode.FeatureTag(c.Text); ok {
			tagged = true
		}
	}
	return tagged
}

func leadsToEligible(rest []layer.Segment) bool {
	for i := range rest {
		if rest[i].Kind == layer.KindExtrude {
			return Eligible(&rest[i])
		}
	}
	return false
}

// Group splits blocks by feature and returns the groups in priority order.
// Unknown tags, and kinds missing from priority, share the KindUnknown
// group, which runs last unless priority places it.
func Group(blocks []Block, priority []gcode.Kind) [][]Block {
	rank := map[gcode.Kind]int{}
	for i, k := range priority {
		if _, ok := rank[k]; !ok {
			rank[k] = i
		}
	}
	if _, ok := rank[gcode.KindUnknown]; !ok {
		rank[gcode.KindUnknown] = len(priority)
	}

	slots := make([][]Block, len(priority)+1)
	for _, b := range blocks {
		r, ok := rank[b.Segment.Feature.Kind]
		if !ok {
			r = rank[gcode.KindUnknown]
		}
		slots[r] = append(slots[r], b)
	}

	var groups [][]Block
	for _, g := range slots {
		if len(g) > 0 {
			groups = append(groups, g)
		}
	}
	return groups
}

// Schedule is the reordered middle of one layer with the travel it needs.
type Schedule struct {
	Blocks []Block
	Groups int
	Passes int

	// Naive is the travel of the input order, Nearest that of the
	// constructed tours and Optimized the final travel.
	Naive     float64
	Nearest   float64
	Optimized float64
}

// Order groups blocks by feature and orders each group, starting from the
// nozzle position from. Each group starts where the previous one ended.
func Order(from geometry.Point, blocks []Block, priority []gcode.Kind, opts Options) Schedule {
	sched := Schedule{Naive: Distance(from, blockStops(blocks))}

	cur := from
	for _, group := range Group(blocks, priority) {
		stops := blockStops(group)
		order, _ := Construct(cur, stops)
		sched.Nearest += OrderDistance(cur, stops, order)

		order, passes := TwoOpt(cur, stops, order, opts)
		sched.Passes += passes
		sched.Optimized += OrderDistance(cur, stops, order)

		for _, i := range order {
			sched.Blocks = append(sched.Blocks, group[i])
		}
		cur = Exit(cur, stops, order)
		sched.Groups++
	}
	return sched
}

func blockStops(blocks []Block) []Stop {
	stops := make([]Stop, len(blocks))
	for i := range blocks {
		stops[i] = StopOf(&blocks[i].Segment)
	}
	return stops
}
