package gcode

import (
	"regexp"
	"strings"
)

// Kind is a structural role a slicer tags printed regions with.
type Kind int

const (
	KindUnknown Kind = iota
	KindSkirt
	KindBrim
	KindPerimeter
	KindExternalPerimeter
	KindOverhangPerimeter
	KindFill
	KindSolidInfill
	KindInternalInfill
	KindBridge
	KindSupport
	KindSupportInterface
)

var kindNames = []string{
	KindUnknown:           "UNKNOWN",
	KindSkirt:             "SKIRT",
	KindBrim:              "BRIM",
	KindPerimeter:         "PERIMETER",
	KindExternalPerimeter: "EXTERNAL_PERIMETER",
	KindOverhangPerimeter: "OVERHANG_PERIMETER",
	KindFill:              "FILL",
	KindSolidInfill:       "SOLID_INFILL",
	KindInternalInfill:    "INTERNAL_INFILL",
	KindBridge:            "BRIDGE",
	KindSupport:           "SUPPORT",
	KindSupportInterface:  "SUPPORT_INTERFACE",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return kindNames[KindUnknown]
	}
	return kindNames[k]
}

// DefaultOrder is the order feature groups are printed in within a layer.
var DefaultOrder = []Kind{
	KindSkirt,
	KindBrim,
	KindPerimeter,
	KindExternalPerimeter,
	KindOverhangPerimeter,
	KindFill,
	KindSolidInfill,
	KindInternalInfill,
	KindBridge,
	KindSupport,
	KindSupportInterface,
	KindUnknown,
}

// Tag names used by common slicers, keyed by their normalized form.
var aliases = map[string]Kind{
	"SKIRT":                      KindSkirt,
	"SKIRT/BRIM":                 KindSkirt,
	"BRIM":                       KindBrim,
	"PERIMETER":                  KindPerimeter,
	"WALL-INNER":                 KindPerimeter,
	"INNER-WALL":                 KindPerimeter,
	"EXTERNAL-PERIMETER":         KindExternalPerimeter,
	"WALL-OUTER":                 KindExternalPerimeter,
	"OUTER-WALL":                 KindExternalPerimeter,
	"OVERHANG-PERIMETER":         KindOverhangPerimeter,
	"OVERHANG-WALL":              KindOverhangPerimeter,
	"FILL":                       KindFill,
	"INFILL":                     KindFill,
	"SPARSE-INFILL":              KindFill,
	"SOLID-INFILL":               KindSolidInfill,
	"TOP-SOLID-INFILL":           KindSolidInfill,
	"SKIN":                       KindSolidInfill,
	"INTERNAL-INFILL":            KindInternalInfill,
	"INTERNAL-SOLID-INFILL":      KindInternalInfill,
	"BRIDGE":                     KindBridge,
	"BRIDGE-INFILL":              KindBridge,
	"SUPPORT":                    KindSupport,
	"SUPPORT-MATERIAL":           KindSupport,
	"SUPPORT-INTERFACE":          KindSupportInterface,
	"SUPPORT-MATERIAL-INTERFACE": KindSupportInterface,
	"UNKNOWN":                    KindUnknown,
}

// Feature is a parsed feature tag. Tags outside the known set keep their
// normalized name with KindUnknown.
type Feature struct {
	Kind Kind
	Name string
}

// Normalize upper-cases a tag and folds spaces and underscores to '-'.
func Normalize(tag string) string {
	tag = strings.ToUpper(strings.TrimSpace(tag))
	tag = strings.Join(strings.Fields(tag), "-")
	return strings.ReplaceAll(tag, "_", "-")
}

var featureTag = regexp.MustCompile(`(?i);\s*(?:TYPE|FEATURE)\s*:\s*([^;]*)`)

// FeatureTag reports the feature a ";TYPE:" or ";FEATURE:" comment anywhere
// in the line declares.
func FeatureTag(text string) (Feature, bool) {
	m := featureTag.FindStringSubmatch(text)
	if m == nil || strings.TrimSpace(m[1]) == "" {
		return Feature{}, false
	}
	return ParseFeature(m[1]), true
}

// ParseFeature maps a tag as it appears after ";TYPE:" to a Feature. The
// longest run of leading words naming a known feature wins, so multi-word
// names like "External perimeter" resolve and trailing words are ignored.
// Otherwise the first word is the name.
func ParseFeature(tag string) Feature {
	words := strings.Fields(tag)
	for n := len(words); n > 0; n-- {
		if kind, ok := aliases[Normalize(strings.Join(words[:n], " "))]; ok {
			return Feature{Kind: kind, Name: kind.String()}
		}
	}
	if len(words) == 0 {
		return Feature{Kind: KindUnknown, Name: Normalize(tag)}
	}
	return Feature{Kind: KindUnknown, Name: Normalize(words[0])}
}

// LookupKind resolves a configured feature name. Only known names resolve.
func LookupKind(name string) (Kind, bool) {
	kind, ok := aliases[Normalize(name)]
	return kind, ok
}

// IsZero reports whether no tag has been seen.
func (f Feature) IsZero() bool {
	return f.Kind == KindUnknown && f.Name == ""
}

func (f Feature) String() string {
	if f.Name == "" {
		return f.Kind.String()
	}
	return f.Name
}
