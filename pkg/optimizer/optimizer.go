package optimizer

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"travelopt/pkg/cfg"
	"travelopt/pkg/gcode"
	"travelopt/pkg/geometry"
	"travelopt/pkg/layer"
	"travelopt/pkg/logging"
	"travelopt/pkg/regen"
	"travelopt/pkg/travel"
)

// ErrBinaryInput is returned for input that is not line oriented text.
var ErrBinaryInput = errors.New("input is not text")

const maxLineLength = 16 << 20

// Optimizer runs the whole pipeline: parse, partition, split layers, group
// segments, reorder, regenerate and drop redundant travel.
type Optimizer struct {
	config cfg.Config
	kinds  []gcode.Kind
	log    *slog.Logger

	// Progress, when set, is called after each layer.
	Progress func(done, total int)
}

// New validates c and returns an optimizer logging to log. A nil log
// discards everything.
func New(c cfg.Config, log *slog.Logger) (*Optimizer, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	kinds, err := c.Kinds()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logging.NewNop()
	}
	return &Optimizer{config: c, kinds: kinds, log: log}, nil
}

func (o *Optimizer) regenerator() regen.Regenerator {
	return regen.Regenerator{
		TravelFeed:      o.config.TravelFeedRate,
		Precision:       o.config.TravelPrecision,
		Tolerance:       o.config.PositionTolerance,
		ResyncExtruder:  o.config.ResyncExtruder,
		RestoreFeed:     o.config.RestoreFeed,
		DeclareFeatures: o.config.DeclareFeatures,
	}
}

func (o *Optimizer) travelOptions() travel.Options {
	return travel.Options{
		MaxStalePasses: o.config.MaxStalePasses,
		MaxPasses:      o.config.MaxPasses,
		Tolerance:      o.config.ImprovementTolerance,
	}
}

// OptimizeReader reads G-code lines from r and optimizes them. It fails only
// when reading fails or the input is binary.
func (o *Optimizer) OptimizeReader(r io.Reader) ([]string, Diagnostics, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineLength)

	var lines []string
	for scanner.Scan() {
		line := scanner.Bytes()
		if bytes.IndexByte(line, 0) >= 0 {
			return nil, Diagnostics{}, fmt.Errorf("line %d: %w", len(lines)+1, ErrBinaryInput)
		}
		lines = append(lines, string(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, Diagnostics{}, fmt.Errorf("read input: %w", err)
	}

	out, d := o.Optimize(lines)
	return out, d, nil
}

// Optimize returns lines with the extrusion reordered to reduce travel.
// Every depositing line is kept verbatim.
func (o *Optimizer) Optimize(lines []string) ([]string, Diagnostics) {
	start := time.Now()
	d := Diagnostics{InputLines: len(lines)}

	parser := gcode.NewParser()
	parser.Epsilon = o.config.DepositEpsilon
	cmds := parser.Parse(lines)

	stream := SplitStream(cmds, o.config.PreambleMaxZ)
	d.Preamble, d.Body, d.Postamble = len(stream.Preamble), len(stream.Body), len(stream.Postamble)
	d.Confident = stream.Confident
	if !stream.Confident {
		o.log.Warn("no confident preamble boundary, treating everything before the last print move as body")
	}

	layers, heuristic := layer.Split(stream.Body, o.config.LayerZTolerance)
	d.Layers = len(layers)
	d.HeightHeuristic = heuristic && len(stream.Body) > 0
	if d.HeightHeuristic {
		o.log.Warn("no layer markers, splitting layers by height")
	}
	o.log.Debug("partitioned stream",
		"preamble", d.Preamble, "body", d.Body, "postamble", d.Postamble, "layers", d.Layers)

	r := o.regenerator()
	out, at, stats := r.Passthrough(stream.Preamble, regen.Start())
	total := stats

	prevZ := 0.0
	if at.State.Z.OK {
		prevZ = at.State.Z.V
	}
	for i, l := range layers {
		z, ok := l.Z()
		if !ok {
			z = prevZ
		}
		prevZ = z

		var layerOut []gcode.Command
		var ls LayerStats
		layerOut, at, stats, ls = o.optimizeLayer(r, l, z, at)
		out = append(out, layerOut...)
		total.Add(stats)
		d.add(ls)

		if o.Progress != nil {
			o.Progress(i+1, len(layers))
		}
	}

	post, _, stats := r.Passthrough(stream.Postamble, at)
	out = append(out, post...)
	total.Add(stats)

	final := regen.EliminateRedundant(out, o.config.RedundancyTolerance)
	d.RedundantRemoved = len(out) - len(final)
	d.SynthesizedTravels = total.Travels
	d.FeedRestores = total.Feeds
	d.ExtruderResyncs = total.Extruder
	d.ModeRestores = total.Modes
	d.FeatureTags = total.Tags

	result := make([]string, len(final))
	for i := range final {
		result[i] = final[i].Text
	}
	d.OutputLines = len(result)
	d.Duration = time.Since(start)

	if d.Ineligible > 0 {
		o.log.Warn("some extrusion could not be reordered", "segments", d.Ineligible)
	}
	o.log.Info("optimized", "stats", d)
	return result, d
}

func (o *Optimizer) optimizeLayer(r regen.Regenerator, l layer.Layer, z float64, at regen.Cursor) ([]gcode.Command, regen.Cursor, regen.Stats, LayerStats) {
	segments := layer.Group(l.Commands)
	lead, middle, trail := layer.Regions(segments)
	plan := travel.Anchor(middle)

	ls := LayerStats{
		Index:    l.Index,
		Z:        z,
		Commands: len(l.Commands),
		Segments: len(segments),
		Eligible: len(plan.Blocks),
		Dropped:  len(plan.Dropped),
	}
	for i := range segments {
		ls.Kinds[segments[i].Kind]++
	}
	_, passthrough := travel.Partition(segments)
	for i := range passthrough {
		if passthrough[i].Kind == layer.KindExtrude {
			ls.Ineligible++
		}
	}
	ls.Passthrough = len(plan.Head)
	for _, b := range plan.Blocks {
		ls.Passthrough += len(b.Lead) + len(b.Follow)
	}

	from := startPosition(at.State, lead, plan)
	sched := travel.Order(from, plan.Blocks, o.kinds, o.travelOptions())
	ls.Groups = sched.Groups
	ls.Passes = sched.Passes
	ls.TravelNaive = sched.Naive
	ls.TravelNearest = sched.Nearest
	ls.TravelOptimized = sched.Optimized

	out, exit, stats := r.Regenerate(regen.Layer{
		Lead:   lead,
		Head:   plan.Head,
		Blocks: sched.Blocks,
		Trail:  trail,
		Z:      z,
	}, at)

	o.log.Debug("layer",
		"index", l.Index, "z", z, "segments", ls.Segments,
		"eligible", ls.Eligible, "groups", ls.Groups, "passes", ls.Passes,
		"dropped", ls.Dropped, "travel_before", sched.Naive, "travel_after", sched.Optimized)

	return out, exit, stats, ls
}

// startPosition is where the nozzle is when the first reordered block
// begins. Without a resolvable position the first block's entry stands in,
// so the input order costs nothing to reach.
func startPosition(entry gcode.State, lead []layer.Segment, plan travel.Plan) geometry.Point {
	state := entry
	for _, segs := range [][]layer.Segment{lead, plan.Head} {
		for _, s := range segs {
			for i := range s.Commands {
				state = state.Apply(&s.Commands[i])
			}
		}
	}
	if p, ok := state.Position(); ok {
		return p
	}
	if len(plan.Blocks) > 0 {
		return *plan.Blocks[0].Segment.Entry
	}
	return geometry.Point{}
}
