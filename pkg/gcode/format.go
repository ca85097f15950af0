package gcode

import (
	"strconv"
	"strings"

	"travelopt/pkg/geometry"
)

// FormatNumber prints v with at most precision decimals and no trailing
// zeroes.
func FormatNumber(v float64, precision int) string {
	x := strconv.FormatFloat(v, 'f', precision, 64)

	if strings.IndexByte(x, '.') != -1 {
		x = strings.TrimRight(x, "0")
		x = strings.TrimSuffix(x, ".")
	}
	if x == "-0" {
		x = "0"
	}
	return x
}

// TravelLine renders a rapid move to p at the given feed rate.
func TravelLine(p geometry.Point, feed float64, precision int) string {
	return "G0 F" + FormatNumber(feed, precision) +
		" X" + FormatNumber(p.X, precision) +
		" Y" + FormatNumber(p.Y, precision) +
		" Z" + FormatNumber(p.Z, precision)
}

// FeedLine renders a feed-rate-only G1.
func FeedLine(feed float64, precision int) string {
	return "G1 F" + FormatNumber(feed, precision)
}

// ExtruderLine renders a G92 that redefines the extruder position.
func ExtruderLine(e float64, precision int) string {
	return "G92 E" + FormatNumber(e, precision)
}

// FeatureLine renders the comment that declares f.
func FeatureLine(f Feature) string {
	return ";TYPE:" + f.String()
}

// Synthesize parses a generated line as if it ran from before.
func Synthesize(text string, before State, feature Feature) Command {
	p := NewParserAt(before)
	p.feature = feature
	cmd := p.ParseLine(text)
	cmd.Synthetic = true
	cmd.Line = 0
	return cmd
}
