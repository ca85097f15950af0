package cfg

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"travelopt/pkg/gcode"
)

var (
	ErrUnknownFeature = errors.New("unknown feature")
	ErrInvalid        = errors.New("invalid configuration")
)

// Config holds the tunables of the optimizer. Distances are in machine
// units, feed rates in units per minute.
type Config struct {
	// TravelFeedRate is the F word of synthesized travel moves.
	TravelFeedRate float64 `mapstructure:"travel_feed_rate"`
	// TravelPrecision is the number of decimals written for synthesized
	// coordinates.
	TravelPrecision int `mapstructure:"travel_precision"`

	MaxStalePasses       int     `mapstructure:"max_stale_passes"`
	MaxPasses            int     `mapstructure:"max_passes"`
	ImprovementTolerance float64 `mapstructure:"improvement_tolerance"`

	PositionTolerance   float64 `mapstructure:"position_tolerance"`
	RedundancyTolerance float64 `mapstructure:"redundancy_tolerance"`
	LayerZTolerance     float64 `mapstructure:"layer_z_tolerance"`
	DepositEpsilon      float64 `mapstructure:"deposit_epsilon"`

	// PreambleMaxZ bounds the first print move when no layer markers exist.
	PreambleMaxZ float64 `mapstructure:"preamble_max_z"`

	// FeatureOrder lists feature names in print order.
	FeatureOrder []string `mapstructure:"feature_order"`

	ResyncExtruder  bool `mapstructure:"resync_extruder"`
	RestoreFeed     bool `mapstructure:"restore_feed"`
	DeclareFeatures bool `mapstructure:"declare_features"`
}

func Defaults() Config {
	order := make([]string, 0, len(gcode.DefaultOrder))
	for _, k := range gcode.DefaultOrder {
		order = append(order, k.String())
	}
	return Config{
		TravelFeedRate:       3000,
		TravelPrecision:      3,
		MaxStalePasses:       100,
		MaxPasses:            0,
		ImprovementTolerance: 1e-5,
		PositionTolerance:    1e-3,
		RedundancyTolerance:  1e-5,
		LayerZTolerance:      1e-3,
		DepositEpsilon:       gcode.DepositEpsilon,
		PreambleMaxZ:         5.0,
		FeatureOrder:         order,
		ResyncExtruder:       true,
		RestoreFeed:          true,
		DeclareFeatures:      true,
	}
}

// Load reads a YAML or JSON file, chosen by extension, over the defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	raw := map[string]any{}
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		err = json.Unmarshal(data, &raw)
	} else {
		err = yaml.Unmarshal(data, &raw)
	}
	if err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	c := Defaults()
	if err := Decode(raw, &c); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return c, nil
}

// Decode applies raw settings onto c. Values are weakly typed, so "3000"
// works where a number is expected; unknown keys are rejected.
func Decode(raw map[string]any, c *Config) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           c,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		ZeroFields:       true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// Kinds resolves FeatureOrder.
func (c Config) Kinds() ([]gcode.Kind, error) {
	kinds := make([]gcode.Kind, 0, len(c.FeatureOrder))
	for _, name := range c.FeatureOrder {
		k, ok := gcode.LookupKind(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownFeature, name)
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.TravelFeedRate <= 0 {
		errs = append(errs, fmt.Errorf("%w: travel_feed_rate must be positive, got %g", ErrInvalid, c.TravelFeedRate))
	}
	if c.TravelPrecision < 0 || c.TravelPrecision > 10 {
		errs = append(errs, fmt.Errorf("%w: travel_precision must be between 0 and 10, got %d", ErrInvalid, c.TravelPrecision))
	}
	if c.MaxStalePasses < 0 {
		errs = append(errs, fmt.Errorf("%w: max_stale_passes must not be negative", ErrInvalid))
	}
	if c.MaxPasses < 0 {
		errs = append(errs, fmt.Errorf("%w: max_passes must not be negative", ErrInvalid))
	}
	for name, v := range map[string]float64{
		"improvement_tolerance": c.ImprovementTolerance,
		"position_tolerance":    c.PositionTolerance,
		"redundancy_tolerance":  c.RedundancyTolerance,
		"layer_z_tolerance":     c.LayerZTolerance,
		"deposit_epsilon":       c.DepositEpsilon,
	} {
		if v < 0 {
			errs = append(errs, fmt.Errorf("%w: %s must not be negative", ErrInvalid, name))
		}
	}
	if _, err := c.Kinds(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
