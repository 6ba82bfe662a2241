// Package orbit drives a renderer session through an orbit capture: frame
// the mesh, apply the rig once, then render one frame per angle in order.
package orbit

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/turntable/internal/framing"
	"github.com/Faultbox/turntable/internal/logger"
	"github.com/Faultbox/turntable/internal/render"
	"github.com/Faultbox/turntable/internal/rig"
)

// DefaultTimeout bounds a whole orbit capture.
const DefaultTimeout = 600 * time.Second

// ErrNoMeshFound is returned when an import yields no mesh objects.
var ErrNoMeshFound = errors.New("no mesh found")

// State is a sequencer phase.
type State int

const (
	Idle State = iota
	Framed
	Rendering
	Complete
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Framed:
		return "framed"
	case Rendering:
		return "rendering"
	case Complete:
		return "complete"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Result is a completed capture. Frames[i] was rendered at Angles[i].
type Result struct {
	Frames []string
	Angles []float64
	Frame  framing.BoundingFrame
	Rig    rig.Spec
}

// Sequencer runs captures against one renderer. A Sequencer runs one
// capture at a time; use one per goroutine.
type Sequencer struct {
	Renderer   render.Renderer
	Preset     rig.Preset
	Plan       Plan
	Resolution int
	Samples    int
	// Timeout bounds the whole call. Zero means DefaultTimeout.
	Timeout time.Duration
	Logger  *zap.Logger

	// OnState, when set, observes every transition.
	OnState func(State)
	// OnFrame, when set, is called after each rendered frame.
	OnFrame func(done, total int)

	state State
}

// State returns the phase of the current or last capture.
func (s *Sequencer) State() State { return s.state }

func (s *Sequencer) transition(to State) {
	s.state = to
	if s.OnState != nil {
		s.OnState(to)
	}
}

// scene frames the mesh at meshPath inside sess and returns the bounding
// frame. The session clears any previous content on import.
func (s *Sequencer) scene(ctx context.Context, sess render.Session, meshPath string) (framing.BoundingFrame, error) {
	objects, err := sess.Import(ctx, meshPath)
	if err != nil {
		return framing.BoundingFrame{}, err
	}
	if len(objects) == 0 {
		return framing.BoundingFrame{}, fmt.Errorf("%s: %w", meshPath, ErrNoMeshFound)
	}
	return framing.Resolve(objects)
}

func (s *Sequencer) timeout() time.Duration {
	if s.Timeout > 0 {
		return s.Timeout
	}
	return DefaultTimeout
}

// Run captures the orbit of the mesh at meshPath into outDir as
// frame_000.png onward. On any failure it returns a nil Result; frames
// already written are left for the caller to discard.
func (s *Sequencer) Run(ctx context.Context, meshPath, outDir string) (res *Result, err error) {
	s.state = Idle
	log := logger.OrNop(s.Logger)

	if err := s.Plan.Validate(); err != nil {
		s.transition(Failed)
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout())
	defer cancel()

	sess, err := s.Renderer.Acquire(ctx)
	if err != nil {
		s.transition(Failed)
		return nil, err
	}
	defer func() {
		err = multierr.Append(err, sess.Close())
		if err != nil {
			s.transition(Failed)
			res = nil
		}
	}()

	frame, err := s.scene(ctx, sess, meshPath)
	if err != nil {
		return nil, err
	}
	spec, err := rig.Build(frame, s.Preset)
	if err != nil {
		return nil, err
	}
	s.transition(Framed)
	log.Debug("framed",
		zap.Float64("size", frame.Size),
		zap.Float64("ortho_scale", spec.OrthoScale),
		zap.Float64("distance", spec.CameraDistance))

	scene := render.Scene{Rig: spec, Pivot: frame.Center, Resolution: s.Resolution, Samples: s.Samples}
	if err := sess.Configure(ctx, scene); err != nil {
		return nil, err
	}
	s.transition(Rendering)

	steps := s.Plan.Steps()
	res = &Result{
		Frames: make([]string, 0, steps),
		Angles: make([]float64, 0, steps),
		Frame:  frame,
		Rig:    spec,
	}
	for i := 0; i < steps; i++ {
		pose := render.Pose{Frame: i, Axis: s.Plan.Axis, Angle: s.Plan.Angle(i)}
		path := filepath.Join(outDir, render.FrameName(i))
		if err := sess.Render(ctx, pose, path); err != nil {
			log.Warn("orbit aborted", logger.Frame(i), zap.Error(err))
			return nil, err
		}
		res.Frames = append(res.Frames, path)
		res.Angles = append(res.Angles, pose.Angle)
		if s.OnFrame != nil {
			s.OnFrame(i+1, steps)
		}
	}

	s.transition(Complete)
	log.Info("orbit complete", zap.Int("frames", steps))
	return res, nil
}

// Snapshots renders one still per camera orientation (degrees about Z) to
// <base>_<orientation>.png without rotating the mesh. On failure it
// returns nil paths; stills already written are left for the caller to
// discard.
func (s *Sequencer) Snapshots(ctx context.Context, meshPath, base string, orientations []float64) (paths []string, err error) {
	s.state = Idle
	log := logger.OrNop(s.Logger)

	ctx, cancel := context.WithTimeout(ctx, s.timeout())
	defer cancel()

	sess, err := s.Renderer.Acquire(ctx)
	if err != nil {
		s.transition(Failed)
		return nil, err
	}
	defer func() {
		err = multierr.Append(err, sess.Close())
		if err != nil {
			s.transition(Failed)
			paths = nil
		}
	}()

	frame, err := s.scene(ctx, sess, meshPath)
	if err != nil {
		return nil, err
	}
	s.transition(Framed)
	s.transition(Rendering)

	for i, o := range orientations {
		spec, err := rig.BuildOriented(frame, s.Preset, o)
		if err != nil {
			return nil, err
		}
		scene := render.Scene{Rig: spec, Pivot: frame.Center, Resolution: s.Resolution, Samples: s.Samples}
		if err := sess.Configure(ctx, scene); err != nil {
			return nil, err
		}
		path := fmt.Sprintf("%s_%g.png", base, o)
		if err := sess.Render(ctx, render.Pose{Frame: i, Axis: render.AxisZ}, path); err != nil {
			log.Warn("snapshot failed", logger.Frame(i), zap.Float64("orientation", o), zap.Error(err))
			return nil, err
		}
		paths = append(paths, path)
	}

	s.transition(Complete)
	return paths, nil
}
