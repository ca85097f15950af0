package optimizer

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"travelopt/pkg/layer"
)

// LayerStats describes what happened to one layer.
type LayerStats struct {
	Index    int
	Z        float64
	Commands int
	Segments int
	// Kinds counts segments by layer.Kind.
	Kinds [3]int

	Eligible    int
	Ineligible  int
	Passthrough int
	Dropped     int
	Groups      int
	Passes      int

	TravelNaive     float64
	TravelNearest   float64
	TravelOptimized float64
}

// Diagnostics summarizes one optimizer run. It is informational only.
type Diagnostics struct {
	InputLines  int
	OutputLines int

	Preamble  int
	Body      int
	Postamble int
	Confident bool

	Layers          int
	HeightHeuristic bool

	ExtrudeSegments int
	TravelSegments  int
	OtherSegments   int

	// Eligible segments were reordered. Ineligible extrude segments and the
	// other passthrough segments kept their place.
	Eligible    int
	Ineligible  int
	Passthrough int

	FeatureGroups int
	Passes        int

	SynthesizedTravels int
	FeedRestores       int
	ExtruderResyncs    int
	ModeRestores       int
	FeatureTags        int
	DroppedTravels     int
	RedundantRemoved   int

	TravelNaive     float64
	TravelNearest   float64
	TravelOptimized float64

	Duration time.Duration
	PerLayer []LayerStats
}

func (d *Diagnostics) add(ls LayerStats) {
	d.ExtrudeSegments += ls.Kinds[layer.KindExtrude]
	d.TravelSegments += ls.Kinds[layer.KindTravel]
	d.OtherSegments += ls.Kinds[layer.KindOther]
	d.Eligible += ls.Eligible
	d.Ineligible += ls.Ineligible
	d.Passthrough += ls.Passthrough
	d.DroppedTravels += ls.Dropped
	d.FeatureGroups += ls.Groups
	d.Passes += ls.Passes
	d.TravelNaive += ls.TravelNaive
	d.TravelNearest += ls.TravelNearest
	d.TravelOptimized += ls.TravelOptimized
	d.PerLayer = append(d.PerLayer, ls)
}

// Saved is the planar travel removed relative to the input order.
func (d Diagnostics) Saved() float64 {
	return d.TravelNaive - d.TravelOptimized
}

// LogValue lets a Diagnostics be logged as one grouped attribute.
func (d Diagnostics) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("lines_in", d.InputLines),
		slog.Int("lines_out", d.OutputLines),
		slog.Int("layers", d.Layers),
		slog.Int("eligible", d.Eligible),
		slog.Int("ineligible", d.Ineligible),
		slog.Int("travels", d.SynthesizedTravels),
		slog.Int("redundant", d.RedundantRemoved),
		slog.Float64("travel_before", d.TravelNaive),
		slog.Float64("travel_after", d.TravelOptimized),
		slog.Duration("took", d.Duration),
	)
}

// WriteSummary prints a human readable report.
func (d Diagnostics) WriteSummary(w io.Writer) error {
	confidence := "confident"
	if !d.Confident {
		confidence = "no confident boundary"
	}
	layering := "layer markers"
	if d.HeightHeuristic {
		layering = "height heuristic"
	}

	_, err := fmt.Fprintf(w, `Lines: %d in, %d out
Partition: %d preamble, %d body, %d postamble (%s)
Layers: %d (%s)
Segments: %d extrude, %d travel, %d other
Reordered: %d segments in %d feature groups, %d passthrough, %d ineligible
2-opt passes: %d
Travel moves: %d synthesized, %d dropped, %d redundant removed
Restored: %d feed rates, %d extruder positions, %d positioning modes, %d feature tags
Total travel: %.3f naive, %.3f nearest neighbor, %.3f optimized (saved %.3f)
Took: %s
`,
		d.InputLines, d.OutputLines,
		d.Preamble, d.Body, d.Postamble, confidence,
		d.Layers, layering,
		d.ExtrudeSegments, d.TravelSegments, d.OtherSegments,
		d.Eligible, d.FeatureGroups, d.Passthrough, d.Ineligible,
		d.Passes,
		d.SynthesizedTravels, d.DroppedTravels, d.RedundantRemoved,
		d.FeedRestores, d.ExtruderResyncs, d.ModeRestores, d.FeatureTags,
		d.TravelNaive, d.TravelNearest, d.TravelOptimized, d.Saved(),
		d.Duration.Round(time.Millisecond),
	)
	return err
}
