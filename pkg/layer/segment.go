package layer

import (
	"travelopt/pkg/gcode"
	"travelopt/pkg/geometry"
)

type Kind int

const (
	KindOther Kind = iota
	KindTravel
	KindExtrude
)

func (k Kind) String() string {
	switch k {
	case KindTravel:
		return "travel"
	case KindExtrude:
		return "extrude"
	}
	return "other"
}

// Segment is a run of consecutive commands with the same Kind.
type Segment struct {
	Kind     Kind
	Commands []gcode.Command

	// Start and End are the resolved positions after the first and last
	// command. Entry is the position the first command starts from, which is
	// where the nozzle has to be for the segment to print as authored.
	Start *geometry.Point
	End   *geometry.Point
	Entry *geometry.Point

	Feature gcode.Feature
	// Relative is set when any motion ran under G91.
	Relative bool
}

// Classify maps one command to the kind of segment it belongs to.
func Classify(c *gcode.Command) Kind {
	switch {
	case c.Code == gcode.CodeRapid:
		return KindTravel
	case c.Code.IsMotion() && c.Depositing:
		return KindExtrude
	case c.Code.IsMotion():
		return KindTravel
	}
	return KindOther
}

// Group splits one layer into segments covering every command once, in
// order.
func Group(cmds []gcode.Command) []Segment {
	var segments []Segment
	start := 0
	for i := 1; i <= len(cmds); i++ {
		if i < len(cmds) && Classify(&cmds[i]) == Classify(&cmds[start]) {
			continue
		}
		segments = append(segments, NewSegment(Classify(&cmds[start]), cmds[start:i:i]))
		start = i
	}
	return segments
}

// NewSegment derives the geometry of a run of commands.
func NewSegment(kind Kind, cmds []gcode.Command) Segment {
	s := Segment{Kind: kind, Commands: cmds}
	if len(cmds) == 0 {
		return s
	}

	for i := range cmds {
		c := &cmds[i]
		if s.Feature.IsZero() && !c.Feature.IsZero() {
			s.Feature = c.Feature
		}
		if c.Code.IsMotion() && c.Before.Relative {
			s.Relative = true
		}
	}

	first, last := &cmds[0], &cmds[len(cmds)-1]
	if p, ok := first.Position(); ok {
		s.Start = &p
	}
	if p, ok := last.Position(); ok {
		s.End = &p
	}
	if s.Start == nil {
		s.Start = s.End
	}
	if s.End == nil {
		s.End = s.Start
	}
	if p, ok := first.Before.Position(); ok {
		s.Entry = &p
	}
	return s
}

// Regions splits segments around the first and last extrude segment. A layer
// without extrusion is all lead.
func Regions(segments []Segment) (lead, middle, trail []Segment) {
	first, last := -1, -1
	for i := range segments {
		if segments[i].Kind == KindExtrude {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 {
		return segments, nil, nil
	}
	return segments[:first], segments[first : last+1], segments[last+1:]
}
