// Package rig derives the orthographic camera and light rig for a framed
// mesh. A rig is a pure function of the bounding frame and a preset.
package rig

import (
	"fmt"
	gomath "math"

	"github.com/Faultbox/turntable/internal/framing"
	"github.com/Faultbox/turntable/pkg/math"
)

// MinExtent is the smallest size a rig is built for. Degenerate frames
// (a single point) are clamped to it.
const MinExtent = 1e-3

// LightKind is the renderer light type.
type LightKind string

const (
	Sun  LightKind = "SUN"
	Area LightKind = "AREA"
)

// LightDesc describes one light. Rotation is Euler XYZ in radians and
// Direction is the unit vector the light shines along.
type LightDesc struct {
	Kind      LightKind `yaml:"kind" json:"kind"`
	Name      string    `yaml:"name" json:"name"`
	Position  math.Vec3 `yaml:"position" json:"position"`
	Rotation  math.Vec3 `yaml:"rotation" json:"rotation"`
	Direction math.Vec3 `yaml:"direction" json:"direction"`
	Energy    float64   `yaml:"energy" json:"energy"`
	Size      float64   `yaml:"size,omitempty" json:"size,omitempty"`
}

// Spec is the declarative camera and lighting setup for one mesh.
type Spec struct {
	Preset         Preset      `yaml:"preset" json:"preset"`
	CameraDistance float64     `yaml:"camera_distance" json:"camera_distance"`
	OrthoScale     float64     `yaml:"ortho_scale" json:"ortho_scale"`
	CameraPosition math.Vec3   `yaml:"camera_position" json:"camera_position"`
	CameraTarget   math.Vec3   `yaml:"camera_target" json:"camera_target"`
	LookDirection  math.Vec3   `yaml:"look_direction" json:"look_direction"`
	Up             math.Vec3   `yaml:"up" json:"up"`
	Lights         []LightDesc `yaml:"lights" json:"lights"`
	Ambient        float64     `yaml:"ambient" json:"ambient"`
}

// Build returns the rig for frame under preset.
func Build(frame framing.BoundingFrame, preset Preset) (Spec, error) {
	return BuildOriented(frame, preset, 0)
}

// BuildOriented is Build with the camera turned by orientation degrees
// about the vertical axis. Isometric corner renders use 0, 90, 180 and 270.
// Lights stay fixed.
func BuildOriented(frame framing.BoundingFrame, preset Preset, orientation float64) (Spec, error) {
	def, ok := presets[preset]
	if !ok {
		return Spec{}, fmt.Errorf("unknown preset %q", preset)
	}

	size := frame.Size
	if size < MinExtent || gomath.IsNaN(size) {
		size = MinExtent
	}
	center := frame.Center
	distance := size * def.distanceFactor

	az := radians(def.view.azimuth + orientation)
	el := radians(def.view.elevation)
	offset := math.Vec3{
		X: gomath.Cos(az) * gomath.Cos(el),
		Y: gomath.Sin(az) * gomath.Cos(el),
		Z: gomath.Sin(el),
	}
	position := center.Add(offset.Scale(distance))

	spec := Spec{
		Preset:         preset,
		CameraDistance: distance,
		OrthoScale:     size * def.orthoFactor,
		CameraPosition: position,
		CameraTarget:   center,
		LookDirection:  center.Sub(position).Normalize(),
		Up:             math.Vec3{Z: 1},
		Ambient:        def.ambient,
		Lights:         make([]LightDesc, 0, len(def.lights)),
	}

	for _, slot := range def.lights {
		rot := math.Vec3{X: radians(slot.rotation[0]), Y: radians(slot.rotation[1]), Z: radians(slot.rotation[2])}
		spec.Lights = append(spec.Lights, LightDesc{
			Kind: slot.kind,
			Name: slot.name,
			Position: center.Add(math.Vec3{
				X: slot.offset[0] * size,
				Y: slot.offset[1]*size - slot.offsetDist*distance,
				Z: slot.offset[2] * size,
			}),
			Rotation:  rot,
			Direction: SunDirection(rot),
			Energy:    slot.energy,
		})
	}
	return spec, nil
}

// SunDirection returns the direction a light with the given Euler XYZ
// rotation shines along. Unrotated lights point down -Z.
func SunDirection(rotation math.Vec3) math.Vec3 {
	r := math.EulerXYZ(rotation.X, rotation.Y, rotation.Z)
	return r.TransformDirection(math.Vec3{Z: -1}).Normalize()
}

func radians(deg float64) float64 {
	return deg * gomath.Pi / 180
}
