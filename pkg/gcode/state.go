package gcode

import "travelopt/pkg/geometry"

// State is the modal machine state tracked across lines. Axes stay unknown
// until a line establishes them.
type State struct {
	X, Y, Z Value
	E       Value
	Feed    Value

	// Relative is G91 positioning, RelativeE is M83 extrusion.
	Relative  bool
	RelativeE bool
}

// Initial is the state before the first line: extruder at zero, everything
// else unknown, absolute modes.
func Initial() State {
	return State{E: Some(0)}
}

// Position returns the nozzle position when every axis is known.
func (s State) Position() (geometry.Point, bool) {
	if !s.X.OK || !s.Y.OK || !s.Z.OK {
		return geometry.Point{}, false
	}
	return geometry.Point{X: s.X.V, Y: s.Y.V, Z: s.Z.V}, true
}

// ExtrusionRelative reports whether E words are deltas. G91 makes every axis
// relative, the extruder included.
func (s State) ExtrusionRelative() bool {
	return s.Relative || s.RelativeE
}

// Apply returns the state after executing c from s.
func (s State) Apply(c *Command) State {
	p := &c.Params
	switch c.Code {
	case CodeRapid, CodeLinear, CodeArcCW, CodeArcCCW:
		s.X = move(s.X, p.X, s.Relative)
		s.Y = move(s.Y, p.Y, s.Relative)
		s.Z = move(s.Z, p.Z, s.Relative)
		s.E = move(s.E, p.E, s.ExtrusionRelative())
		if p.F.OK {
			s.Feed = p.F
		}
	case CodeHome:
		// Homing leaves the nozzle somewhere we cannot name.
		all := !p.HasAxis() && !hasFlag(p, 'X', 'Y', 'Z')
		if all || p.X.OK || hasFlag(p, 'X') {
			s.X = Value{}
		}
		if all || p.Y.OK || hasFlag(p, 'Y') {
			s.Y = Value{}
		}
		if all || p.Z.OK || hasFlag(p, 'Z') {
			s.Z = Value{}
		}
	case CodeSetPosition:
		if !p.HasAxis() && !p.E.OK {
			s.X, s.Y, s.Z, s.E = Some(0), Some(0), Some(0), Some(0)
			break
		}
		if p.X.OK {
			s.X = p.X
		}
		if p.Y.OK {
			s.Y = p.Y
		}
		if p.Z.OK {
			s.Z = p.Z
		}
		if p.E.OK {
			s.E = p.E
		}
	case CodeAbsolutePositioning:
		s.Relative = false
	case CodeRelativePositioning:
		s.Relative = true
	case CodeAbsoluteExtrusion:
		s.RelativeE = false
	case CodeRelativeExtrusion:
		s.RelativeE = true
	}
	return s
}

func move(cur, word Value, relative bool) Value {
	if !word.OK {
		return cur
	}
	if !relative {
		return word
	}
	if !cur.OK {
		return cur
	}
	return Some(cur.V + word.V)
}

func hasFlag(p *Params, keys ...rune) bool {
	for _, f := range p.Flags {
		for _, k := range keys {
			if f == k {
				return true
			}
		}
	}
	return false
}
