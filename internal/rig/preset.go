package rig

import (
	"fmt"
	"sort"
	"strings"
)

// Preset names a camera framing and light rig.
type Preset string

const (
	Standard  Preset = "standard"
	Soft      Preset = "soft"
	Portrait  Preset = "portrait"
	Emblem    Preset = "emblem"
	Isometric Preset = "isometric"
	// IsometricSoft is the isometric corner camera under softer, even suns.
	IsometricSoft Preset = "isometric-soft"
)

// isoElevation is the true isometric camera elevation, atan(1/sqrt(2)).
const isoElevation = 35.264

type view struct {
	azimuth   float64 // degrees about Z, 0 = +X
	elevation float64 // degrees above the XY plane
}

var (
	frontView  = view{azimuth: -90}
	cornerView = view{azimuth: 45, elevation: isoElevation}
)

// lightSlot places one light relative to the frame. Offsets are in
// multiples of size, except offsetDist which is in multiples of the
// camera distance along -Y.
type lightSlot struct {
	name       string
	kind       LightKind
	offset     [3]float64
	offsetDist float64
	rotation   [3]float64 // Euler XYZ, degrees
	energy     float64
}

type presetDef struct {
	orthoFactor    float64
	distanceFactor float64
	view           view
	ambient        float64
	lights         []lightSlot
}

func frontLights(key, fill, fill2 float64) []lightSlot {
	lights := []lightSlot{
		{name: "key", kind: Sun, offset: [3]float64{0, 0, 1}, offsetDist: 1, rotation: [3]float64{45, 0, 0}, energy: key},
		{name: "fill", kind: Sun, offset: [3]float64{1, 0, 0}, offsetDist: 0.5, energy: fill},
	}
	if fill2 > 0 {
		lights = append(lights, lightSlot{name: "fill2", kind: Sun, offset: [3]float64{-1, 0, 0}, offsetDist: 0.5, energy: fill2})
	}
	return lights
}

func cornerLights(key, fill float64) []lightSlot {
	return []lightSlot{
		{name: "key", kind: Sun, offset: [3]float64{1, -1, 1}, rotation: [3]float64{45, -15, 30}, energy: key},
		{name: "fill", kind: Sun, offset: [3]float64{-1, 1, 0.5}, rotation: [3]float64{60, 15, -150}, energy: fill},
	}
}

var presets = map[Preset]presetDef{
	Standard: {orthoFactor: 1.8, distanceFactor: 3, view: frontView, ambient: 0.8, lights: frontLights(8.0, 2.5, 0)},
	Soft:     {orthoFactor: 1.8, distanceFactor: 3, view: frontView, ambient: 1.2, lights: frontLights(5.0, 4.0, 0)},
	Portrait: {orthoFactor: 2.2, distanceFactor: 3, view: frontView, ambient: 1.0, lights: frontLights(8.0, 4.0, 0)},
	Emblem:   {orthoFactor: 1.8, distanceFactor: 3, view: frontView, ambient: 0.5, lights: frontLights(4.0, 2.0, 1.5)},
	Isometric: {orthoFactor: 1.5, distanceFactor: 2, view: cornerView, ambient: 0.8,
		lights: cornerLights(8.0, 2.5)},
	IsometricSoft: {orthoFactor: 1.5, distanceFactor: 2, view: cornerView, ambient: 1.2,
		lights: cornerLights(5.0, 4.0)},
}

var aliases = map[string]Preset{
	"portrait-closeup": Portrait,
	"sigil":            Emblem,
	"iso":              Isometric,
	"iso-soft":         IsometricSoft,
}

// ParsePreset resolves a preset name, case-insensitively.
func ParsePreset(name string) (Preset, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if p, ok := aliases[n]; ok {
		return p, nil
	}
	if _, ok := presets[Preset(n)]; ok {
		return Preset(n), nil
	}
	return "", fmt.Errorf("unknown preset %q (want one of %s)", name, strings.Join(PresetNames(), ", "))
}

// PresetNames lists the known presets in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for p := range presets {
		names = append(names, string(p))
	}
	sort.Strings(names)
	return names
}
