package optimizer_test

import (
	"bytes"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travelopt/pkg/cfg"
	"travelopt/pkg/gcode"
	"travelopt/pkg/logging"
	"travelopt/pkg/optimizer"
	"travelopt/pkg/regen"
)

func newOptimizer(t *testing.T) *optimizer.Optimizer {
	t.Helper()
	o, err := optimizer.New(cfg.Defaults(), logging.NewNop())
	require.NoError(t, err)
	return o
}

func depositing(lines []string) []string {
	var out []string
	for _, c := range gcode.Parse(lines) {
		if c.Depositing {
			out = append(out, c.Text)
		}
	}
	return out
}

func count(lines []string) map[string]int {
	counts := map[string]int{}
	for _, l := range lines {
		counts[l]++
	}
	return counts
}

func assertStrokesKept(t *testing.T, in, out []string) {
	t.Helper()
	want, have := count(in), count(out)
	for _, line := range depositing(in) {
		assert.Equal(t, want[line], have[line], "depositing line %q", line)
	}
}

// strokeFeatures counts depositing lines by text and the feature they print
// under.
func strokeFeatures(lines []string) map[string]int {
	counts := map[string]int{}
	for _, c := range gcode.Parse(lines) {
		if c.Depositing {
			counts[c.Text+" @ "+c.Feature.String()]++
		}
	}
	return counts
}

func TestBoundaryScenario(t *testing.T) {
	in := []string{
		";LAYER:0",
		"G0 X0 Y0 Z0.2",
		"G1 X10 Y0 E1.0",
		"G1 X10 Y10 E2.0",
		"G0 X0 Y10",
		"G1 X0 Y0 E3.0",
	}
	out, d := newOptimizer(t).Optimize(in)

	assert.Equal(t, []string{
		";LAYER:0",
		"G0 X0 Y0 Z0.2",
		"G1 X10 Y0 E1.0",
		"G1 X10 Y10 E2.0",
		"G0 F3000 X0 Y10 Z0.2",
		"G1 X0 Y0 E3.0",
	}, out)
	assertStrokesKept(t, in, out)

	assert.Equal(t, 1, d.Layers)
	assert.True(t, d.Confident)
	assert.False(t, d.HeightHeuristic)
	assert.Equal(t, 2, d.Eligible)
	assert.Equal(t, 1, d.DroppedTravels)
	assert.Equal(t, 1, d.SynthesizedTravels)
}

func TestRedundantTravelScenario(t *testing.T) {
	in := []string{
		";LAYER:1",
		"G0 X10 Y10 Z0.4",
		"G0 X10 Y10 Z0.4",
		"G1 X20 Y10 E1",
	}
	out, d := newOptimizer(t).Optimize(in)

	assert.Equal(t, []string{";LAYER:1", "G0 X10 Y10 Z0.4", "G1 X20 Y10 E1"}, out)
	assert.Equal(t, 1, d.RedundantRemoved)
}

func TestReorder(t *testing.T) {
	in := []string{
		";LAYER:0",
		"G0 X0 Y0 Z0.2",
		"G1 X1 Y0 E1",
		"G0 X100 Y0",
		"G1 X101 Y0 E2",
		"G0 X2 Y0",
		"G1 X3 Y0 E3",
		";LAYER:1",
		"G0 X0 Y0 Z0.4",
		"G1 X1 Y0 E4",
	}
	out, d := newOptimizer(t).Optimize(in)

	assert.Equal(t, []string{
		";LAYER:0",
		"G0 X0 Y0 Z0.2",
		"G1 X1 Y0 E1",
		"G0 F3000 X2 Y0 Z0.2",
		"G92 E2",
		"G1 X3 Y0 E3",
		"G0 F3000 X100 Y0 Z0.2",
		"G92 E1",
		"G1 X101 Y0 E2",
		";LAYER:1",
		"G92 E3",
		"G0 X0 Y0 Z0.4",
		"G1 X1 Y0 E4",
	}, out)
	assertStrokesKept(t, in, out)

	assert.Equal(t, 2, d.Layers)
	assert.InDelta(t, 198, d.TravelNaive, 1e-9)
	assert.InDelta(t, 98, d.TravelOptimized, 1e-9)
	assert.InDelta(t, 100, d.Saved(), 1e-9)
	assert.Equal(t, 3, d.ExtruderResyncs)
	require.Len(t, d.PerLayer, 2)
	assert.Equal(t, 0.4, d.PerLayer[1].Z)

	// The regenerated extrusion must deposit exactly what the input did.
	var total float64
	state := gcode.Initial()
	for _, c := range gcode.Parse(out) {
		if c.Depositing {
			total += c.Params.E.V - state.E.V
		}
		state = c.After
	}
	assert.InDelta(t, 4, total, 1e-9)
}

func TestFeatureOrder(t *testing.T) {
	in := []string{
		";LAYER:0",
		"G0 X0 Y0 Z0.2",
		";TYPE:FILL",
		"G1 X1 Y0 E1",
		";TYPE:WALL-OUTER",
		"G0 X5 Y5",
		"G1 X6 Y5 E2",
	}
	c := cfg.Defaults()
	c.FeatureOrder = []string{"external perimeter", "fill"}
	o, err := optimizer.New(c, nil)
	require.NoError(t, err)

	out, d := o.Optimize(in)
	assertStrokesKept(t, in, out)
	assert.Equal(t, 2, d.FeatureGroups)

	wall := indexOf(out, "G1 X6 Y5 E2")
	fill := indexOf(out, "G1 X1 Y0 E1")
	assert.Less(t, wall, fill, "external perimeter should print first: %q", out)
}

func indexOf(lines []string, want string) int {
	for i, l := range lines {
		if l == want {
			return i
		}
	}
	return -1
}

func TestFeatureTagsFollowStrokes(t *testing.T) {
	in := []string{
		";LAYER:0",
		"G0 X40 Y40 Z0.2",
		";TYPE:Skirt",
		"G1 X47 Y54 E3.0000 F1500",
		";TYPE:External perimeter",
		"G0 X0 Y0",
		"G1 X10 Y0 E4",
		"G0 X60 Y60",
		"G1 X70 Y60 E5",
		";TYPE:Solid infill",
		"G0 X12 Y0",
		"G1 X20 Y0 E6",
		";TYPE:Skirt",
		"G0 X48 Y54",
		"G1 X50 Y54 E7",
		";LAYER:1",
		"G0 X0 Y0 Z0.4",
		"G1 X10 Y0 E8",
	}
	out, d := newOptimizer(t).Optimize(in)

	assertStrokesKept(t, in, out)
	assert.Equal(t, strokeFeatures(in), strokeFeatures(out))
	assert.Positive(t, d.FeatureTags)

	// A second run sees the same features and finds nothing left to move.
	again, _ := newOptimizer(t).Optimize(out)
	assert.Equal(t, strokeFeatures(in), strokeFeatures(again))
}

func TestNoMarkers(t *testing.T) {
	in := []string{
		"G28",
		"G0 X0 Y0 Z0.2",
		"G1 X10 Y0 E1",
		"G0 X0 Y0 Z0.4",
		"G1 X10 Y0 E2",
		"G1 Z10",
	}
	out, d := newOptimizer(t).Optimize(in)

	assert.Equal(t, in, out)
	assert.True(t, d.HeightHeuristic)
	assert.True(t, d.Confident)
	assert.Equal(t, 2, d.Layers)
	assert.Equal(t, 1, d.Preamble)
	assert.Equal(t, 1, d.Postamble)
}

func TestRelativeSegmentsStay(t *testing.T) {
	in := []string{
		";LAYER:0",
		"G0 X50 Y50 Z0.2",
		"G91",
		"G1 X5 E1",
		"G90",
		"G0 X0 Y0",
		"G1 X1 Y0 E2",
	}
	out, d := newOptimizer(t).Optimize(in)

	assert.Equal(t, []string{
		";LAYER:0",
		"G0 X50 Y50 Z0.2",
		"G91",
		"G1 X5 E1",
		"G90",
		"G0 F3000 X0 Y0 Z0.2",
		"G1 X1 Y0 E2",
	}, out)
	assert.Equal(t, 1, d.Ineligible)
	assert.Equal(t, 1, d.Eligible)
}

func TestPropertiesOnRandomPrograms(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	features := []string{"PERIMETER", "FILL", "WALL-OUTER", "SUPPORT", "custom"}
	o := newOptimizer(t)

	for trial := 0; trial < 10; trial++ {
		in := []string{"G28", "G92 E0"}
		e := 0.0
		for l := 0; l < 3; l++ {
			z := 0.2 * float64(l+1)
			in = append(in, fmt.Sprintf(";LAYER:%d", l), fmt.Sprintf("G0 F6000 X0 Y0 Z%.1f", z))
			for s := 0; s < 2+r.Intn(8); s++ {
				in = append(in,
					";TYPE:"+features[r.Intn(len(features))],
					fmt.Sprintf("G0 X%.3f Y%.3f", r.Float64()*100, r.Float64()*100),
					fmt.Sprintf("G1 E%.5f F1800", e+0.8))
				e += 0.8
				for m := 0; m < 1+r.Intn(3); m++ {
					e += r.Float64()
					in = append(in, fmt.Sprintf("G1 X%.3f Y%.3f E%.5f", r.Float64()*100, r.Float64()*100, e))
				}
				in = append(in, fmt.Sprintf("G1 E%.5f F1800", e-0.8))
				e -= 0.8
			}
		}
		in = append(in, "M107", "G1 Z10", "M84")

		out, d := o.Optimize(in)
		assertStrokesKept(t, in, out)
		assert.Equal(t, strokeFeatures(in), strokeFeatures(out))
		assert.LessOrEqual(t, d.TravelOptimized, d.TravelNearest+1e-9)

		cmds := gcode.Parse(out)
		again := regen.EliminateRedundant(cmds, regen.DefaultRedundancyTolerance)
		assert.Len(t, again, len(cmds), "output should hold no redundant travel")
	}
}

func TestOptimizeReader(t *testing.T) {
	o := newOptimizer(t)

	out, d, err := o.OptimizeReader(strings.NewReader(";LAYER:0\r\nG0 X0 Y0 Z0.2\r\nG1 X1 E1\r\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{";LAYER:0", "G0 X0 Y0 Z0.2", "G1 X1 E1"}, out)
	assert.Equal(t, 3, d.InputLines)

	_, _, err = o.OptimizeReader(bytes.NewReader([]byte("G1 X1\x00\x01\x02\n")))
	assert.ErrorIs(t, err, optimizer.ErrBinaryInput)

	out, _, err = o.OptimizeReader(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestNewRejectsBadConfig(t *testing.T) {
	c := cfg.Defaults()
	c.FeatureOrder = []string{"glitter"}
	_, err := optimizer.New(c, nil)
	assert.ErrorIs(t, err, cfg.ErrUnknownFeature)
}

func TestWriteSummary(t *testing.T) {
	_, d := newOptimizer(t).Optimize([]string{";LAYER:0", "G0 X0 Y0 Z0.2", "G1 X1 E1"})
	var buf bytes.Buffer
	require.NoError(t, d.WriteSummary(&buf))
	assert.Contains(t, buf.String(), "Layers: 1 (layer markers)")
	assert.Contains(t, buf.String(), "Total travel:")
}

func TestProgress(t *testing.T) {
	o := newOptimizer(t)
	var calls [][2]int
	o.Progress = func(done, total int) {
		calls = append(calls, [2]int{done, total})
	}
	o.Optimize([]string{";LAYER:0", "G0 X0 Y0 Z0.2", "G1 X1 E1", ";LAYER:1", "G0 Z0.4", "G1 X0 E2"})
	assert.Equal(t, [][2]int{{1, 2}, {2, 2}}, calls)
}
