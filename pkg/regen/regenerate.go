package regen

import (
	"math"

	"travelopt/pkg/gcode"
	"travelopt/pkg/geometry"
	"travelopt/pkg/layer"
	"travelopt/pkg/travel"
)

const (
	DefaultTravelFeed = 3000
	DefaultPrecision  = 3
	// DefaultTolerance is how close the nozzle must be to a segment's entry
	// on every axis for the travel to be skipped.
	DefaultTolerance = 1e-3

	extruderPrecision = 5
	extruderTolerance = 1e-5
)

// Regenerator turns a reordered layer back into commands, adding the travel
// each moved segment needs.
type Regenerator struct {
	TravelFeed float64
	Precision  int
	Tolerance  float64

	// ResyncExtruder emits "G92 E" ahead of verbatim commands whose absolute
	// extruder position no longer matches the tracked one.
	ResyncExtruder bool
	// RestoreFeed emits "G1 F" ahead of a moved segment whose first move
	// relied on the feed rate in force before it.
	RestoreFeed bool
	// DeclareFeatures emits ";TYPE:" ahead of strokes whose feature differs
	// from the one the output last declared.
	DeclareFeatures bool
}

func New() Regenerator {
	return Regenerator{
		TravelFeed:      DefaultTravelFeed,
		Precision:       DefaultPrecision,
		Tolerance:       DefaultTolerance,
		ResyncExtruder:  true,
		RestoreFeed:     true,
		DeclareFeatures: true,
	}
}

// Layer is one layer ready for regeneration.
type Layer struct {
	// Lead and Trail are printed verbatim around the reordered middle.
	Lead  []layer.Segment
	Head  []layer.Segment
	Trail []layer.Segment

	Blocks []travel.Block
	Z      float64
}

// Stats counts the commands a regeneration synthesized.
type Stats struct {
	Travels  int
	Feeds    int
	Extruder int
	Modes    int
	Tags     int
}

func (s *Stats) Add(o Stats) {
	s.Travels += o.Travels
	s.Feeds += o.Feeds
	s.Extruder += o.Extruder
	s.Modes += o.Modes
	s.Tags += o.Tags
}

// Synthesized is the total number of added commands.
func (s Stats) Synthesized() int {
	return s.Travels + s.Feeds + s.Extruder + s.Modes + s.Tags
}

// Cursor is where the output stands between calls: the machine state and
// the feature the output last declared.
type Cursor struct {
	State   gcode.State
	Feature gcode.Feature
}

// Start is the cursor before the first line.
func Start() Cursor {
	return Cursor{State: gcode.Initial()}
}

type emitter struct {
	r       Regenerator
	out     []gcode.Command
	state   gcode.State
	feature gcode.Feature
	stats   Stats
}

func newEmitter(r Regenerator, at Cursor) *emitter {
	return &emitter{r: r, state: at.State, feature: at.Feature}
}

func (e *emitter) cursor() Cursor {
	return Cursor{State: e.state, Feature: e.feature}
}

// Regenerate emits l starting from at and returns the commands together with
// the cursor they leave behind.
func (r Regenerator) Regenerate(l Layer, at Cursor) ([]gcode.Command, Cursor, Stats) {
	e := newEmitter(r, at)
	for _, s := range l.Lead {
		e.verbatim(s.Commands)
	}
	for _, s := range l.Head {
		e.verbatim(s.Commands)
	}
	for _, b := range l.Blocks {
		for _, s := range b.Lead {
			e.verbatim(s.Commands)
		}
		e.approach(&b.Segment, l.Z)
		e.verbatim(b.Segment.Commands)
		for _, s := range b.Follow {
			e.verbatim(s.Commands)
		}
	}
	for _, s := range l.Trail {
		e.verbatim(s.Commands)
	}
	return e.out, e.cursor(), e.stats
}

// Passthrough emits cmds unchanged apart from extruder resync and feature
// declarations.
func (r Regenerator) Passthrough(cmds []gcode.Command, at Cursor) ([]gcode.Command, Cursor, Stats) {
	e := newEmitter(r, at)
	e.verbatim(cmds)
	return e.out, e.cursor(), e.stats
}

func (e *emitter) emit(cmd gcode.Command) {
	e.out = append(e.out, cmd)
	e.state = e.state.Apply(&cmd)
	if f, ok := gcode.FeatureTag(cmd.Text); ok {
		e.feature = f
	}
}

func (e *emitter) synthesize(text string, feature gcode.Feature) {
	e.emit(gcode.Synthesize(text, e.state, feature))
}

func (e *emitter) verbatim(cmds []gcode.Command) {
	synced := false
	for i := range cmds {
		c := &cmds[i]
		if !synced && c.Code != gcode.CodeNone {
			e.syncExtruder(c)
			synced = true
		}
		if c.Depositing {
			e.declare(c.Feature)
		}
		e.emit(*c)
	}
}

// declare tags the output with f when it last declared another feature.
// Untagged strokes are left alone.
func (e *emitter) declare(f gcode.Feature) {
	if !e.r.DeclareFeatures || f.IsZero() || f == e.feature {
		return
	}
	e.synthesize(gcode.FeatureLine(f), f)
	e.stats.Tags++
}

// approach brings the nozzle to the segment's entry at layer height, with
// the feature, feed rate and positioning mode the segment was authored
// under.
func (e *emitter) approach(s *layer.Segment, z float64) {
	e.declare(s.Feature)

	target := geometry.Point{X: s.Entry.X, Y: s.Entry.Y, Z: z}
	if math.Abs(s.Entry.Z-z) >= e.r.Tolerance {
		// Z hops and heuristic layers can start a segment off the layer
		// height; the stroke expects its own.
		target.Z = s.Entry.Z
	}

	cur, ok := e.state.Position()
	if !ok || !cur.Near(target, e.r.Tolerance) {
		if e.state.Relative {
			e.synthesize("G90", s.Feature)
			e.stats.Modes++
		}
		e.synthesize(gcode.TravelLine(target, e.r.TravelFeed, e.r.Precision), s.Feature)
		e.stats.Travels++
	}

	first := &s.Commands[0]
	want := first.Before.Feed
	if e.r.RestoreFeed && !first.Params.F.OK && want.OK &&
		(!e.state.Feed.OK || math.Abs(e.state.Feed.V-want.V) > 1e-9) {
		e.synthesize(gcode.FeedLine(want.V, e.r.Precision), s.Feature)
		e.stats.Feeds++
	}
}

func (e *emitter) syncExtruder(first *gcode.Command) {
	want := first.Before
	if !e.r.ResyncExtruder || first.Synthetic || want.ExtrusionRelative() || e.state.ExtrusionRelative() {
		return
	}
	if !want.E.OK || !e.state.E.OK || math.Abs(want.E.V-e.state.E.V) <= extruderTolerance {
		return
	}
	e.synthesize(gcode.ExtruderLine(want.E.V, extruderPrecision), first.Feature)
	e.stats.Extruder++
}
