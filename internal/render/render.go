// Package render defines the renderer contract the orbit sequencer drives:
// a scoped session that imports one mesh, applies one rig and writes one
// transparent PNG per requested pose.
package render

import (
	"context"
	"errors"
	"fmt"
	gomath "math"
	"slices"

	"github.com/Faultbox/turntable/internal/mesh"
	"github.com/Faultbox/turntable/internal/rig"
	"github.com/Faultbox/turntable/pkg/math"
)

// Resolutions are the square frame sizes a renderer accepts.
var Resolutions = []int{128, 256, 512}

// Axis is a world rotation axis.
type Axis string

const (
	AxisX Axis = "X"
	AxisY Axis = "Y"
	AxisZ Axis = "Z"
)

// Vector returns the unit vector of the axis. Unknown axes map to Z.
func (a Axis) Vector() math.Vec3 {
	switch a {
	case AxisX:
		return math.Vec3{X: 1}
	case AxisY:
		return math.Vec3{Y: 1}
	default:
		return math.Vec3{Z: 1}
	}
}

// Valid reports whether a names a known axis.
func (a Axis) Valid() bool {
	return a == AxisX || a == AxisY || a == AxisZ
}

// Scene is the declarative setup applied once per session before
// rendering. Pivot is the point every mesh part rotates about.
type Scene struct {
	Rig        rig.Spec  `json:"rig"`
	Pivot      math.Vec3 `json:"pivot"`
	Resolution int       `json:"resolution"`
	Samples    int       `json:"samples"`
}

// Validate checks a scene before it is sent to a renderer.
func (s Scene) Validate() error {
	if !slices.Contains(Resolutions, s.Resolution) {
		return fmt.Errorf("resolution %d not in %v", s.Resolution, Resolutions)
	}
	if s.Samples < 0 {
		return fmt.Errorf("samples must be >= 0, got %d", s.Samples)
	}
	if !(s.Rig.OrthoScale > 0) || !(s.Rig.CameraDistance > 0) {
		return fmt.Errorf("rig must have positive ortho scale and distance (got %g, %g)", s.Rig.OrthoScale, s.Rig.CameraDistance)
	}
	if s.Rig.Ambient < 0 {
		return fmt.Errorf("ambient strength must be >= 0, got %g", s.Rig.Ambient)
	}
	for _, l := range s.Rig.Lights {
		if l.Kind != rig.Sun && l.Kind != rig.Area {
			return fmt.Errorf("light %q: unknown kind %q", l.Name, l.Kind)
		}
		if l.Energy < 0 {
			return fmt.Errorf("light %q: negative energy %g", l.Name, l.Energy)
		}
	}
	return nil
}

// Pose is the pivot rotation for one rendered frame.
type Pose struct {
	Frame int     `json:"frame"`
	Axis  Axis    `json:"axis"`
	Angle float64 `json:"angle"`
}

// Matrix returns the world transform the pose applies about pivot.
func (p Pose) Matrix(pivot math.Vec3) math.Mat4 {
	if p.Angle == 0 || gomath.IsNaN(p.Angle) {
		return math.Identity()
	}
	return math.RotateAround(pivot, p.Axis.Vector(), p.Angle)
}

// Session is one isolated renderer scene. Implementations are not safe
// for concurrent use; callers acquire one session per asset.
type Session interface {
	// Import clears the scene and loads the mesh at path, returning the
	// imported mesh parts with their world transforms.
	Import(ctx context.Context, path string) ([]mesh.Object, error)
	// Configure parents every mesh part under a pivot and applies the rig.
	Configure(ctx context.Context, scene Scene) error
	// Render writes one RGBA PNG of the scene at pose to outPath.
	Render(ctx context.Context, pose Pose, outPath string) error
	// Close clears the scene and releases the renderer.
	Close() error
}

// Renderer hands out isolated sessions.
type Renderer interface {
	Name() string
	Acquire(ctx context.Context) (Session, error)
}

// ErrRender matches every *Error.
var ErrRender = errors.New("render failed")

// Error is a renderer failure: a nonzero exit, a timeout, or a protocol
// error from the renderer process.
type Error struct {
	Op       string
	Timeout  bool
	ExitCode int
	Stderr   string
	Err      error
}

func (e *Error) Error() string {
	msg := "render " + e.Op
	switch {
	case e.Timeout:
		msg += ": timed out"
	case e.ExitCode != 0:
		msg += fmt.Sprintf(": exit status %d", e.ExitCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Stderr != "" {
		msg += "\n" + e.Stderr
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrRender) match any render error.
func (e *Error) Is(target error) bool { return target == ErrRender }

// FrameName returns the file name of frame i.
func FrameName(i int) string {
	return fmt.Sprintf("frame_%03d.png", i)
}
