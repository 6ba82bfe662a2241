package render

import (
	"context"
	"errors"
	"fmt"
	gomath "math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/turntable/internal/framing"
	"github.com/Faultbox/turntable/internal/rig"
	"github.com/Faultbox/turntable/pkg/math"
)

func validScene(t *testing.T) Scene {
	t.Helper()
	spec, err := rig.Build(framing.BoundingFrame{Size: 2}, rig.Standard)
	require.NoError(t, err)
	return Scene{Rig: spec, Resolution: 128}
}

func TestSceneValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Scene)
		wantErr string
	}{
		{"valid", func(*Scene) {}, ""},
		{"odd resolution", func(s *Scene) { s.Resolution = 100 }, "resolution"},
		{"zero ortho", func(s *Scene) { s.Rig.OrthoScale = 0 }, "ortho"},
		{"nan distance", func(s *Scene) { s.Rig.CameraDistance = gomath.NaN() }, "ortho"},
		{"negative ambient", func(s *Scene) { s.Rig.Ambient = -1 }, "ambient"},
		{"bad light kind", func(s *Scene) { s.Rig.Lights[0].Kind = "SPOT" }, "unknown kind"},
		{"negative energy", func(s *Scene) { s.Rig.Lights[1].Energy = -2 }, "negative energy"},
		{"negative samples", func(s *Scene) { s.Samples = -1 }, "samples"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validScene(t)
			tt.mutate(&s)
			err := s.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestErrorMatching(t *testing.T) {
	var err error = &Error{Op: "frame 3", Timeout: true, Err: context.DeadlineExceeded}
	wrapped := fmt.Errorf("orbit: %w", err)

	assert.ErrorIs(t, wrapped, ErrRender)
	assert.ErrorIs(t, wrapped, context.DeadlineExceeded)

	var re *Error
	require.True(t, errors.As(wrapped, &re))
	assert.True(t, re.Timeout)
	assert.True(t, strings.HasPrefix(err.Error(), "render frame 3: timed out"))
}

func TestErrorMessageCarriesExitAndStderr(t *testing.T) {
	err := &Error{Op: "start", ExitCode: 2, Stderr: "Error: no such file"}
	assert.Equal(t, "render start: exit status 2\nError: no such file", err.Error())
}

func TestPoseMatrix(t *testing.T) {
	pivot := math.Vec3{X: 1, Y: 1}
	m := Pose{Axis: AxisZ, Angle: gomath.Pi / 2}.Matrix(pivot)

	got := m.TransformVec3(math.Vec3{X: 2, Y: 1})
	assert.InDelta(t, 1.0, got.X, 1e-9)
	assert.InDelta(t, 2.0, got.Y, 1e-9)

	assert.Equal(t, math.Identity(), Pose{Axis: AxisZ}.Matrix(pivot))
}

func TestAxis(t *testing.T) {
	assert.Equal(t, math.Vec3{X: 1}, AxisX.Vector())
	assert.Equal(t, math.Vec3{Y: 1}, AxisY.Vector())
	assert.Equal(t, math.Vec3{Z: 1}, AxisZ.Vector())
	assert.True(t, AxisY.Valid())
	assert.False(t, Axis("W").Valid())
}

func TestFrameName(t *testing.T) {
	assert.Equal(t, "frame_000.png", FrameName(0))
	assert.Equal(t, "frame_035.png", FrameName(35))
}
