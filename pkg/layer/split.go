package layer

import (
	"strings"

	"travelopt/pkg/gcode"
)

// Marker starts a layer in slicer output.
const Marker = ";LAYER:"

// DefaultZTolerance is how far Z must rise before the height heuristic starts
// a new layer.
const DefaultZTolerance = 1e-3

type Layer struct {
	Index    int
	Commands []gcode.Command
}

// Z returns the first resolved height of a motion command in the layer.
func (l Layer) Z() (float64, bool) {
	for i := range l.Commands {
		c := &l.Commands[i]
		if c.Code.IsMotion() && c.After.Z.OK {
			return c.After.Z.V, true
		}
	}
	return 0, false
}

// IsMarker reports whether the line is a layer marker.
func IsMarker(c *gcode.Command) bool {
	return strings.HasPrefix(strings.TrimSpace(c.Text), Marker)
}

// Split cuts the body into layers. Layer markers win when present; without
// them a new layer starts wherever a motion command rises more than zTol
// above the height the current layer started at. The second result reports
// whether the height heuristic was used.
func Split(cmds []gcode.Command, zTol float64) ([]Layer, bool) {
	markers := false
	for i := range cmds {
		if IsMarker(&cmds[i]) {
			markers = true
			break
		}
	}

	var layers []Layer
	var current []gcode.Command
	var layerZ gcode.Value

	flush := func() {
		layers = append(layers, Layer{Index: len(layers), Commands: current})
		current = nil
		layerZ = gcode.Value{}
	}

	for i := range cmds {
		c := &cmds[i]
		if len(current) > 0 {
			if markers && IsMarker(c) {
				flush()
			} else if !markers && c.Code.IsMotion() && c.After.Z.OK && layerZ.OK &&
				c.After.Z.V > layerZ.V+zTol {
				flush()
			}
		}
		current = append(current, *c)
		if !layerZ.OK && c.Code.IsMotion() && c.After.Z.OK {
			layerZ = c.After.Z
		}
	}
	if len(current) > 0 {
		flush()
	}
	return layers, !markers
}
