package regen

import (
	"math"

	"travelopt/pkg/gcode"
)

// DefaultRedundancyTolerance is the distance below which a travel target is
// considered already reached.
const DefaultRedundancyTolerance = 1e-5

// EliminateRedundant drops travel commands that would not move the nozzle:
// empty ones, and ones without a feed rate whose every axis already holds
// its target. Positions are tracked over the sequence itself, so the result
// is right for reordered input too. Running it twice changes nothing.
func EliminateRedundant(cmds []gcode.Command, tol float64) []gcode.Command {
	out := make([]gcode.Command, 0, len(cmds))
	state := gcode.Initial()
	for i := range cmds {
		c := &cmds[i]
		if redundant(state, c, tol) {
			continue
		}
		out = append(out, *c)
		state = state.Apply(c)
	}
	return out
}

func redundant(state gcode.State, c *gcode.Command, tol float64) bool {
	if !c.IsTravel() || c.Params.F.OK {
		return false
	}
	if !c.Params.HasAxis() {
		return true
	}

	next := state.Apply(c)
	axes := []struct {
		word      gcode.Value
		cur, next gcode.Value
	}{
		{c.Params.X, state.X, next.X},
		{c.Params.Y, state.Y, next.Y},
		{c.Params.Z, state.Z, next.Z},
	}
	for _, a := range axes {
		if !a.word.OK {
			continue
		}
		if !a.cur.OK || !a.next.OK || math.Abs(a.next.V-a.cur.V) >= tol {
			return false
		}
	}
	return true
}
