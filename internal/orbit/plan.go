package orbit

import (
	"fmt"
	gomath "math"

	"github.com/Faultbox/turntable/internal/render"
)

// Mode selects how frame indices map to angles.
type Mode string

const (
	// Discrete renders N frames at i/N of a turn, i in [0, N). The frame
	// after the last is frame 0 again, so the loop closes seamlessly.
	Discrete Mode = "discrete"
	// Sweep renders N+1 keyframes, i in [0, N], ending on a full turn.
	Sweep Mode = "sweep"
)

// Plan is an orbit request.
type Plan struct {
	Frames int         `yaml:"frames"`
	Axis   render.Axis `yaml:"axis"`
	Mode   Mode        `yaml:"mode"`
}

// NewPlan returns a discrete plan of n frames about Z.
func NewPlan(n int) Plan {
	return Plan{Frames: n, Axis: render.AxisZ, Mode: Discrete}
}

// Validate checks the plan.
func (p Plan) Validate() error {
	if p.Frames < 1 {
		return fmt.Errorf("frame count must be at least 1, got %d", p.Frames)
	}
	if !p.Axis.Valid() {
		return fmt.Errorf("unknown axis %q", p.Axis)
	}
	if p.Mode != Discrete && p.Mode != Sweep {
		return fmt.Errorf("unknown orbit mode %q", p.Mode)
	}
	return nil
}

// Steps returns the number of renders the plan needs.
func (p Plan) Steps() int {
	if p.Mode == Sweep {
		return p.Frames + 1
	}
	return p.Frames
}

// Angle returns the rotation of step i in radians.
func (p Plan) Angle(i int) float64 {
	return float64(i) / float64(p.Frames) * 2 * gomath.Pi
}

// Angles returns the rotation of every step in order.
func (p Plan) Angles() []float64 {
	out := make([]float64, p.Steps())
	for i := range out {
		out[i] = p.Angle(i)
	}
	return out
}

// LoopFrames returns the frames that make up one seamless loop. A sweep's
// closing keyframe duplicates frame 0 and is dropped.
func (p Plan) LoopFrames(frames []string) []string {
	if p.Mode == Sweep && len(frames) == p.Frames+1 {
		return frames[:p.Frames]
	}
	return frames
}
