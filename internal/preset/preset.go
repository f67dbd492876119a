// Package preset maps preset names to the parameter bundles that
// control decode and enhancement behavior.
package preset

import (
	"sort"
	"strings"
)

// NoiseReduction selects the decoder's noise-reduction mode.
type NoiseReduction string

const (
	NoiseReductionOff   NoiseReduction = "off"
	NoiseReductionLight NoiseReduction = "light"
	NoiseReductionFull  NoiseReduction = "full"
)

// Sharpen holds the unsharp-mask parameters of a bundle.
type Sharpen struct {
	Enabled   bool    `json:"enabled"`
	Radius    float64 `json:"radius"`
	Amount    float64 `json:"amount"`
	Threshold float64 `json:"threshold"`
}

// Bundle is a named, immutable set of decode and enhancement
// parameters. Multipliers are 1.0-neutral.
type Bundle struct {
	Name           string         `json:"name"`
	AutoBright     bool           `json:"auto_bright"`
	Contrast       float64        `json:"contrast"`
	Color          float64        `json:"color"`
	Brightness     float64        `json:"brightness"`
	NoiseThreshold int            `json:"noise_threshold"`
	MedianPasses   int            `json:"median_passes"`
	NoiseReduction NoiseReduction `json:"noise_reduction"`
	Sharpen        Sharpen        `json:"sharpen"`
}

var builtins = map[string]Bundle{
	"standard": {
		Name:           "standard",
		AutoBright:     true,
		Contrast:       1.05,
		Color:          1.05,
		Brightness:     1.0,
		NoiseReduction: NoiseReductionLight,
		Sharpen:        Sharpen{Enabled: true, Radius: 1.0, Amount: 0.8, Threshold: 0.02},
	},
	"neutral": {
		Name:           "neutral",
		AutoBright:     false,
		Contrast:       1.0,
		Color:          1.0,
		Brightness:     1.0,
		NoiseReduction: NoiseReductionOff,
		Sharpen:        Sharpen{Enabled: false},
	},
	"vivid": {
		Name:           "vivid",
		AutoBright:     true,
		Contrast:       1.12,
		Color:          1.12,
		Brightness:     1.02,
		NoiseReduction: NoiseReductionLight,
		Sharpen:        Sharpen{Enabled: true, Radius: 1.2, Amount: 1.65, Threshold: 0.02},
	},
	"clean": {
		Name:           "clean",
		AutoBright:     true,
		Contrast:       1.02,
		Color:          1.0,
		Brightness:     1.0,
		NoiseThreshold: 10,
		MedianPasses:   2,
		NoiseReduction: NoiseReductionFull,
		Sharpen:        Sharpen{Enabled: false},
	},
}

// Resolver resolves preset names to bundles. Resolution never fails:
// unknown input is policy, not an error.
type Resolver struct {
	defaultName string
}

// NewResolver creates a resolver whose fallback bundle is defaultName;
// an unknown or empty defaultName itself falls back to "standard".
func NewResolver(defaultName string) *Resolver {
	name := strings.ToLower(strings.TrimSpace(defaultName))
	if _, ok := builtins[name]; !ok {
		name = "standard"
	}
	return &Resolver{defaultName: name}
}

// Resolve looks up name case-insensitively; absent or unrecognized
// names return the default bundle.
func (r *Resolver) Resolve(name string) Bundle {
	if b, ok := builtins[strings.ToLower(strings.TrimSpace(name))]; ok {
		return b
	}
	return builtins[r.defaultName]
}

// Default returns the resolver's fallback bundle.
func (r *Resolver) Default() Bundle {
	return builtins[r.defaultName]
}

// Names lists the built-in bundle names in sorted order.
func Names() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns the built-in bundles in name order.
func All() []Bundle {
	var bundles []Bundle
	for _, name := range Names() {
		bundles = append(bundles, builtins[name])
	}
	return bundles
}
