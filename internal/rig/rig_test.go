package rig

import (
	gomath "math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/turntable/internal/framing"
	"github.com/Faultbox/turntable/pkg/math"
)

func unitFrame() framing.BoundingFrame {
	return framing.BoundingFrame{
		Min:  math.Vec3{X: -1, Y: -1, Z: -1},
		Max:  math.Vec3{X: 1, Y: 1, Z: 1},
		Size: 2,
	}
}

func assertVec(t *testing.T, want, got math.Vec3) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, 1e-9, "x")
	assert.InDelta(t, want.Y, got.Y, 1e-9, "y")
	assert.InDelta(t, want.Z, got.Z, 1e-9, "z")
}

func TestBuildStandardScenario(t *testing.T) {
	spec, err := Build(unitFrame(), Standard)
	require.NoError(t, err)

	assert.InDelta(t, 3.6, spec.OrthoScale, 1e-12)
	assert.InDelta(t, 6.0, spec.CameraDistance, 1e-12)
	assertVec(t, math.Vec3{Y: -6}, spec.CameraPosition)
	assertVec(t, math.Vec3{Y: 1}, spec.LookDirection)
	assert.Equal(t, math.Vec3{Z: 1}, spec.Up)
	assert.Equal(t, 0.8, spec.Ambient)

	require.Len(t, spec.Lights, 2)
	assert.Equal(t, "key", spec.Lights[0].Name)
	assert.Equal(t, 8.0, spec.Lights[0].Energy)
	assert.Equal(t, 2.5, spec.Lights[1].Energy)
	assertVec(t, math.Vec3{Y: -6, Z: 2}, spec.Lights[0].Position)
	assertVec(t, math.Vec3{Y: gomath.Sqrt2 / 2, Z: -gomath.Sqrt2 / 2}, spec.Lights[0].Direction)
}

func TestPresetEnergies(t *testing.T) {
	tests := []struct {
		preset  Preset
		ortho   float64
		energy  []float64
		ambient float64
	}{
		{Standard, 1.8, []float64{8.0, 2.5}, 0.8},
		{Soft, 1.8, []float64{5.0, 4.0}, 1.2},
		{Portrait, 2.2, []float64{8.0, 4.0}, 1.0},
		{Emblem, 1.8, []float64{4.0, 2.0, 1.5}, 0.5},
		{Isometric, 1.5, []float64{8.0, 2.5}, 0.8},
		{IsometricSoft, 1.5, []float64{5.0, 4.0}, 1.2},
	}

	for _, tt := range tests {
		t.Run(string(tt.preset), func(t *testing.T) {
			spec, err := Build(unitFrame(), tt.preset)
			require.NoError(t, err)

			assert.InDelta(t, 2*tt.ortho, spec.OrthoScale, 1e-12)
			assert.Equal(t, tt.ambient, spec.Ambient)
			require.Len(t, spec.Lights, len(tt.energy))
			for i, e := range tt.energy {
				assert.Equal(t, e, spec.Lights[i].Energy)
				assert.InDelta(t, 1.0, spec.Lights[i].Direction.Length(), 1e-9)
			}
		})
	}
}

func TestBuildIsometricCorners(t *testing.T) {
	frame := unitFrame()
	el := isoElevation * gomath.Pi / 180

	for _, p := range []Preset{Isometric, IsometricSoft} {
		for _, o := range []float64{0, 90, 180, 270} {
			spec, err := BuildOriented(frame, p, o)
			require.NoError(t, err)

			assert.InDelta(t, 4.0, spec.CameraDistance, 1e-12, p)
			assert.InDelta(t, 4.0, spec.CameraPosition.Length(), 1e-9, p)
			assert.InDelta(t, 4*gomath.Sin(el), spec.CameraPosition.Z, 1e-9, p)

			az := (45 + o) * gomath.Pi / 180
			assert.InDelta(t, 4*gomath.Cos(el)*gomath.Cos(az), spec.CameraPosition.X, 1e-9, p)
			assert.InDelta(t, 4*gomath.Cos(el)*gomath.Sin(az), spec.CameraPosition.Y, 1e-9, p)

			// The camera always looks back at the center.
			assertVec(t, spec.CameraPosition.Scale(-0.25), spec.LookDirection)
		}
	}
}

func TestBuildClampsDegenerateSize(t *testing.T) {
	frame := framing.BoundingFrame{Center: math.Vec3{X: 5}}

	spec, err := Build(frame, Standard)
	require.NoError(t, err)
	assert.InDelta(t, MinExtent*1.8, spec.OrthoScale, 1e-15)
	assert.Greater(t, spec.CameraDistance, 0.0)
	assert.False(t, gomath.IsNaN(spec.LookDirection.X))
}

func TestBuildIsDeterministic(t *testing.T) {
	frame := framing.BoundingFrame{Center: math.Vec3{X: 0.3, Y: -2, Z: 7}, Size: 3.7}
	a, err := Build(frame, Emblem)
	require.NoError(t, err)
	b, err := Build(frame, Emblem)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestBuildUnknownPreset(t *testing.T) {
	_, err := Build(unitFrame(), Preset("dramatic"))
	assert.Error(t, err)
}

func TestParsePreset(t *testing.T) {
	tests := []struct {
		in   string
		want Preset
		ok   bool
	}{
		{"standard", Standard, true},
		{"  SOFT ", Soft, true},
		{"portrait-closeup", Portrait, true},
		{"iso", Isometric, true},
		{"iso-soft", IsometricSoft, true},
		{"isometric-soft", IsometricSoft, true},
		{"emblem", Emblem, true},
		{"noir", "", false},
	}

	for _, tt := range tests {
		got, err := ParsePreset(tt.in)
		if tt.ok {
			assert.NoError(t, err, tt.in)
			assert.Equal(t, tt.want, got)
		} else {
			assert.Error(t, err, tt.in)
		}
	}
}

func TestPresetNamesSorted(t *testing.T) {
	assert.Equal(t, []string{"emblem", "isometric", "isometric-soft", "portrait", "soft", "standard"}, PresetNames())
}

func TestSunDirectionUnrotated(t *testing.T) {
	assertVec(t, math.Vec3{Z: -1}, SunDirection(math.Vec3{}))
}
