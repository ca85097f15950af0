package optimizer

import (
	"travelopt/pkg/gcode"
	"travelopt/pkg/layer"
)

// DefaultPreambleMaxZ bounds the height of the first print move when the
// preamble has to be found without layer markers.
const DefaultPreambleMaxZ = 5.0

// Stream is the input split into the setup before printing, the printed
// body and the shutdown sequence after it.
type Stream struct {
	Preamble  []gcode.Command
	Body      []gcode.Command
	Postamble []gcode.Command

	// Confident is false when neither a layer marker nor a homing command
	// supported the preamble boundary. The preamble is then empty.
	Confident bool
}

// SplitStream finds the preamble and postamble around the printed body.
//
// The body starts at the first layer marker. Without markers it starts at
// the first fully resolved move below maxZ that follows a homing command.
// The body ends after the last depositing move and the commands that belong
// with it, up to the first shutdown command (homing, program end, motors
// off, fan off, or a Z-only lift).
func SplitStream(cmds []gcode.Command, maxZ float64) Stream {
	start, confident := bodyStart(cmds, maxZ)
	end := bodyEnd(cmds, start)
	return Stream{
		Preamble:  cmds[:start:start],
		Body:      cmds[start:end:end],
		Postamble: cmds[end:],
		Confident: confident,
	}
}

func bodyStart(cmds []gcode.Command, maxZ float64) (int, bool) {
	for i := range cmds {
		if layer.IsMarker(&cmds[i]) {
			return i, true
		}
	}

	homed := false
	for i := range cmds {
		c := &cmds[i]
		if c.Code == gcode.CodeHome {
			homed = true
			continue
		}
		if !homed || (c.Code != gcode.CodeRapid && c.Code != gcode.CodeLinear) {
			continue
		}
		if p, ok := c.Position(); ok && p.Z < maxZ {
			return i, true
		}
	}
	return 0, false
}

func bodyEnd(cmds []gcode.Command, start int) int {
	last := -1
	for i := len(cmds) - 1; i >= start; i-- {
		if cmds[i].Code.IsMotion() && cmds[i].Depositing {
			last = i
			break
		}
	}
	if last < 0 {
		return len(cmds)
	}
	end := last + 1
	for end < len(cmds) && !isShutdown(&cmds[end]) {
		end++
	}
	return end
}

func isShutdown(c *gcode.Command) bool {
	switch c.Code {
	case gcode.CodeHome, gcode.CodeProgramEnd, gcode.CodeMotorsOff, gcode.CodeFanOff:
		return true
	case gcode.CodeRapid, gcode.CodeLinear:
		p := &c.Params
		return p.Z.OK && !p.X.OK && !p.Y.OK && !p.E.OK
	}
	return false
}
