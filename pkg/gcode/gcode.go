package gcode

import "travelopt/pkg/geometry"

// Code identifies the instruction a line carries.
type Code int

const (
	CodeNone Code = iota
	CodeRapid
	CodeLinear
	CodeArcCW
	CodeArcCCW
	CodeHome
	CodeSetPosition
	CodeAbsolutePositioning
	CodeRelativePositioning
	CodeAbsoluteExtrusion
	CodeRelativeExtrusion
	CodeFanOn
	CodeFanOff
	CodeMotorsOff
	CodeProgramEnd
	CodeOther
)

var codeNames = map[string]Code{
	"G0":   CodeRapid,
	"G1":   CodeLinear,
	"G2":   CodeArcCW,
	"G3":   CodeArcCCW,
	"G28":  CodeHome,
	"G92":  CodeSetPosition,
	"G90":  CodeAbsolutePositioning,
	"G91":  CodeRelativePositioning,
	"M82":  CodeAbsoluteExtrusion,
	"M83":  CodeRelativeExtrusion,
	"M106": CodeFanOn,
	"M107": CodeFanOff,
	"M84":  CodeMotorsOff,
	"M18":  CodeMotorsOff,
	"M2":   CodeProgramEnd,
	"M30":  CodeProgramEnd,
}

// IsMotion reports whether the code moves the nozzle (G0-G3).
func (c Code) IsMotion() bool {
	return c >= CodeRapid && c <= CodeArcCCW
}

// Value is an optional number.
type Value struct {
	V  float64
	OK bool
}

func Some(v float64) Value {
	return Value{V: v, OK: true}
}

// Params holds the parameters of one line. The axis and arc letters have
// fixed fields; everything else lands in Extra, and tokens that are not a
// letter followed by a number are kept verbatim in Opaque.
type Params struct {
	X, Y, Z, E, F Value
	I, J, K       Value

	Extra  map[rune]float64
	Flags  []rune
	Opaque []string
}

// HasAxis reports whether any of X, Y or Z was given.
func (p *Params) HasAxis() bool {
	return p.X.OK || p.Y.OK || p.Z.OK
}

// HasOverflow reports whether the line carried anything beyond the fixed
// fields.
func (p *Params) HasOverflow() bool {
	return len(p.Extra) > 0 || len(p.Flags) > 0 || len(p.Opaque) > 0
}

func (p *Params) set(key rune, v float64) {
	switch key {
	case 'X':
		p.X = Some(v)
	case 'Y':
		p.Y = Some(v)
	case 'Z':
		p.Z = Some(v)
	case 'E':
		p.E = Some(v)
	case 'F':
		p.F = Some(v)
	case 'I':
		p.I = Some(v)
	case 'J':
		p.J = Some(v)
	case 'K':
		p.K = Some(v)
	default:
		if p.Extra == nil {
			p.Extra = map[rune]float64{}
		}
		p.Extra[key] = v
	}
}

// Command is one parsed line together with the machine state around it.
type Command struct {
	Code   Code
	Token  string
	Params Params

	// Before is the machine state just before the line executed, After the
	// state once it has.
	Before State
	After  State

	Feature    Feature
	Depositing bool
	// Relative is set for motion positioned under G91.
	Relative bool
	// Synthetic marks commands that did not come from the input.
	Synthetic bool

	Text string
	Line int
}

// Position returns the resolved position after the command, if all three
// axes are known.
func (c *Command) Position() (geometry.Point, bool) {
	return c.After.Position()
}

// IsTravel reports whether the command only repositions the nozzle: a G0,
// or a G1 that leaves the extruder alone, with nothing beyond the fixed
// parameters.
func (c *Command) IsTravel() bool {
	if c.Code != CodeRapid && c.Code != CodeLinear {
		return false
	}
	return !c.Params.E.OK && !c.Params.HasOverflow()
}

// IsPositioning reports whether the command is a travel that names at least
// one axis.
func (c *Command) IsPositioning() bool {
	return c.IsTravel() && c.Params.HasAxis()
}
