package gcode_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"travelopt/pkg/gcode"
)

func TestModalResolution(t *testing.T) {
	cmds := gcode.Parse([]string{"G0 X10 Y10", "G1 Y20"})

	got := cmds[1].After
	if got.X != gcode.Some(10) || got.Y != gcode.Some(20) {
		t.Errorf("modal resolution: got X=%v Y=%v, want X=10 Y=20", got.X, got.Y)
	}
	if got.Z.OK {
		t.Errorf("Z should stay unknown, got %v", got.Z)
	}
	if cmds[1].Before.Y != gcode.Some(10) {
		t.Errorf("Before should carry the previous state, got %v", cmds[1].Before.Y)
	}
}

func TestDepositing(t *testing.T) {
	tests := []struct {
		Name  string
		Lines []string
		Want  []bool
	}{
		{
			Name:  "retraction is not deposition",
			Lines: []string{"G1 E5.0", "G1 E4.0"},
			Want:  []bool{true, false},
		},
		{
			Name:  "rapid never deposits",
			Lines: []string{"G0 X1 E1", "G1 X2 E1"},
			Want:  []bool{false, false},
		},
		{
			Name:  "below epsilon",
			Lines: []string{"G1 X1 E1", "G1 X2 E1.000001"},
			Want:  []bool{true, false},
		},
		{
			Name:  "arcs deposit",
			Lines: []string{"G2 X10 Y0 I5 J0 E0.5", "G3 X0 Y0 I-5 J0 E1"},
			Want:  []bool{true, true},
		},
		{
			Name:  "set position resets reference",
			Lines: []string{"G1 X1 E100", "G92 E0", "G1 X2 E0.5"},
			Want:  []bool{true, false, true},
		},
		{
			Name:  "relative extrusion",
			Lines: []string{"M83", "G1 X1 E0.4", "G1 E-0.8", "G1 X2 E0.4"},
			Want:  []bool{false, true, false, true},
		},
		{
			Name:  "no extruder word",
			Lines: []string{"G1 X1 Y1 F1200"},
			Want:  []bool{false},
		},
	}

	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			var got []bool
			for _, cmd := range gcode.Parse(test.Lines) {
				got = append(got, cmd.Depositing)
			}
			if diff := cmp.Diff(test.Want, got); diff != "" {
				t.Errorf("depositing flags incorrect: %s", diff)
			}
		})
	}
}

func TestParseLine(t *testing.T) {
	p := gcode.NewParser()
	cmd := p.ParseLine("g1 x1.5 Y-2 Z0.2 E.4 F1800 S3 Q ?? X_y ; move")

	if cmd.Code != gcode.CodeLinear || cmd.Token != "G1" {
		t.Errorf("got code %v token %q", cmd.Code, cmd.Token)
	}
	want := gcode.Params{
		X:      gcode.Some(1.5),
		Y:      gcode.Some(-2),
		Z:      gcode.Some(0.2),
		E:      gcode.Some(0.4),
		F:      gcode.Some(1800),
		Extra:  map[rune]float64{'S': 3},
		Flags:  []rune{'Q'},
		Opaque: []string{"??", "X_y"},
	}
	if diff := cmp.Diff(want, cmd.Params); diff != "" {
		t.Errorf("incorrect params: %s", diff)
	}
	if cmd.Line != 1 || cmd.Text != "g1 x1.5 Y-2 Z0.2 E.4 F1800 S3 Q ?? X_y ; move" {
		t.Errorf("line bookkeeping wrong: %d %q", cmd.Line, cmd.Text)
	}
}

func TestCodes(t *testing.T) {
	tests := []struct {
		Line string
		Want gcode.Code
	}{
		{"", gcode.CodeNone},
		{"; comment", gcode.CodeNone},
		{"(just a comment)", gcode.CodeNone},
		{"G00 X1", gcode.CodeRapid},
		{"G01 X1", gcode.CodeLinear},
		{"G28", gcode.CodeHome},
		{"G92 E0", gcode.CodeSetPosition},
		{"G90", gcode.CodeAbsolutePositioning},
		{"G91", gcode.CodeRelativePositioning},
		{"M82", gcode.CodeAbsoluteExtrusion},
		{"M83", gcode.CodeRelativeExtrusion},
		{"M106 S255", gcode.CodeFanOn},
		{"M107", gcode.CodeFanOff},
		{"M18", gcode.CodeMotorsOff},
		{"M84 X Y", gcode.CodeMotorsOff},
		{"M30", gcode.CodeProgramEnd},
		{"M104 S200", gcode.CodeOther},
		{"T1", gcode.CodeOther},
		{"X5 Y5", gcode.CodeOther},
	}

	for _, test := range tests {
		p := gcode.NewParser()
		if got := p.ParseLine(test.Line).Code; got != test.Want {
			t.Errorf("%q: got code %d, want %d", test.Line, got, test.Want)
		}
	}
}

func TestImplicitMotion(t *testing.T) {
	cmds := gcode.Parse([]string{"G1 X0 Y0 Z0.2 E1", "X10 E2", "M107", "Y10 E3"})

	for i, want := range []gcode.Code{gcode.CodeLinear, gcode.CodeLinear, gcode.CodeFanOff, gcode.CodeLinear} {
		if cmds[i].Code != want {
			t.Errorf("line %d: got code %d, want %d", i+1, cmds[i].Code, want)
		}
	}
	if !cmds[3].Depositing {
		t.Errorf("implicit motion should deposit")
	}
	p, ok := cmds[3].Position()
	if !ok || p.X != 10 || p.Y != 10 {
		t.Errorf("got position %v (%t)", p, ok)
	}
}

func TestFeatureTags(t *testing.T) {
	cmds := gcode.Parse([]string{
		"G1 X0 Y0 E1",
		";TYPE:WALL-OUTER",
		"G1 X1 E2",
		"G1 X2 E3 ; feature: solid infill",
		";type:Custom Thing",
		"G1 X3 E4",
		";TYPE:FILL extra words",
		";TYPE:External perimeter",
		";TYPE:",
	})

	want := []gcode.Feature{
		{},
		{Kind: gcode.KindExternalPerimeter, Name: "EXTERNAL_PERIMETER"},
		{Kind: gcode.KindExternalPerimeter, Name: "EXTERNAL_PERIMETER"},
		{Kind: gcode.KindSolidInfill, Name: "SOLID_INFILL"},
		{Kind: gcode.KindUnknown, Name: "CUSTOM"},
		{Kind: gcode.KindUnknown, Name: "CUSTOM"},
		{Kind: gcode.KindFill, Name: "FILL"},
		{Kind: gcode.KindExternalPerimeter, Name: "EXTERNAL_PERIMETER"},
		{Kind: gcode.KindExternalPerimeter, Name: "EXTERNAL_PERIMETER"},
	}
	var got []gcode.Feature
	for _, cmd := range cmds {
		got = append(got, cmd.Feature)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("incorrect features: %s", diff)
	}
	if cmds[0].Feature.String() != "UNKNOWN" {
		t.Errorf("untagged feature should print UNKNOWN, got %q", cmds[0].Feature)
	}
}

func TestFeatureLine(t *testing.T) {
	for _, f := range []gcode.Feature{
		gcode.ParseFeature("WALL-OUTER"),
		gcode.ParseFeature("Solid infill"),
		gcode.ParseFeature("custom_thing"),
		gcode.ParseFeature("SKIRT/BRIM"),
	} {
		got, ok := gcode.FeatureTag(gcode.FeatureLine(f))
		if !ok || got != f {
			t.Errorf("FeatureLine(%v) = %q parses back as %v (%t)", f, gcode.FeatureLine(f), got, ok)
		}
	}
	if _, ok := gcode.FeatureTag("G1 X1 E1 ; no tag here"); ok {
		t.Errorf("plain comment should not declare a feature")
	}
}

func TestPositioningModes(t *testing.T) {
	cmds := gcode.Parse([]string{
		"G1 X10 Y10 Z0.2",
		"G91",
		"G1 X5 Z1",
		"G90",
		"G92 X0 Y0",
		"G1 X1",
		"G28 X",
		"G28",
	})

	pos := func(i int) (gcode.Value, gcode.Value, gcode.Value) {
		s := cmds[i].After
		return s.X, s.Y, s.Z
	}

	x, y, z := pos(2)
	if x != gcode.Some(15) || y != gcode.Some(10) || z.V < 1.19 || z.V > 1.21 {
		t.Errorf("relative move: got %v %v %v", x, y, z)
	}
	if !cmds[2].Relative || cmds[0].Relative {
		t.Errorf("relative flag: got %t %t", cmds[2].Relative, cmds[0].Relative)
	}
	x, y, _ = pos(5)
	if x != gcode.Some(1) || y != gcode.Some(0) {
		t.Errorf("set position: got %v %v", x, y)
	}
	x, y, _ = pos(6)
	if x.OK || !y.OK {
		t.Errorf("G28 X should forget only X: got %v %v", x, y)
	}
	x, y, z = pos(7)
	if x.OK || y.OK || z.OK {
		t.Errorf("G28 should forget every axis: got %v %v %v", x, y, z)
	}
}
