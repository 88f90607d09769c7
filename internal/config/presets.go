package config

import (
	"fmt"
	"sort"
)

type preset struct {
	betas      BetaConfig
	offsetDays int
}

// Calibrated contact rates per city; transit stays off.
var presets = map[string]preset{
	"bengaluru": {BetaConfig{Home: 0.9632, Office: 0.5518, School: 1.1036, Community: 0.2035}, 15},
	"wuhan":     {BetaConfig{Home: 1, Office: 0.65, School: 1.3, Community: 0.353}, 22},
	"nyc":       {BetaConfig{Home: 1.902, Office: 1.583, School: 3.167, Community: 0.625}, 8},
	"kochi":     {BetaConfig{Home: 1.065, Office: 0.532, School: 1.064, Community: 0.207}, 15},
	"mumbai":    {BetaConfig{Home: 0.911, Office: 0.488, School: 0.976, Community: 0.22}, 15},
}

// Cities lists the preset names.
func Cities() []string {
	out := make([]string, 0, len(presets))
	for name := range presets {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ApplyCity overwrites betas and intervention offset with a city preset.
func (r *Run) ApplyCity(name string) error {
	p, ok := presets[name]
	if !ok {
		return fmt.Errorf("%w: unknown city %q", ErrInvalidConfig, name)
	}
	r.City = name
	r.Betas = p.betas
	r.Intervention.OffsetDays = p.offsetDays
	return nil
}
