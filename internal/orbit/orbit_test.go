package orbit

import (
	"context"
	"errors"
	gomath "math"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/turntable/internal/mesh"
	"github.com/Faultbox/turntable/internal/render"
	"github.com/Faultbox/turntable/internal/render/raster"
	"github.com/Faultbox/turntable/internal/rig"
	"github.com/Faultbox/turntable/pkg/math"
)

// fakeRenderer records what the sequencer asks of its sessions.
type fakeRenderer struct {
	objects  []mesh.Object
	failAt   int // frame index to fail at, -1 for never
	hang     bool
	sessions []*fakeSession
}

func (r *fakeRenderer) Name() string { return "fake" }

func (r *fakeRenderer) Acquire(context.Context) (render.Session, error) {
	s := &fakeSession{r: r}
	r.sessions = append(r.sessions, s)
	return s, nil
}

type fakeSession struct {
	r       *fakeRenderer
	imports int
	scenes  []render.Scene
	poses   []render.Pose
	closed  bool
}

func (s *fakeSession) Import(context.Context, string) ([]mesh.Object, error) {
	s.imports++
	return s.r.objects, nil
}

func (s *fakeSession) Configure(_ context.Context, scene render.Scene) error {
	s.scenes = append(s.scenes, scene)
	return nil
}

func (s *fakeSession) Render(ctx context.Context, pose render.Pose, _ string) error {
	if s.r.hang {
		<-ctx.Done()
		return &render.Error{Op: "frame", Timeout: true, Err: ctx.Err()}
	}
	if pose.Frame == s.r.failAt {
		return &render.Error{Op: "frame", ExitCode: 1}
	}
	s.poses = append(s.poses, pose)
	return nil
}

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

func cube() []mesh.Object {
	return []mesh.Object{mesh.Box("cube", math.Vec3{X: -1, Y: -1, Z: -1}, math.Vec3{X: 1, Y: 1, Z: 1})}
}

func TestPlanAngles(t *testing.T) {
	p := NewPlan(36)
	require.NoError(t, p.Validate())

	angles := p.Angles()
	require.Len(t, angles, 36)
	assert.Equal(t, 0.0, angles[0])
	assert.InDelta(t, gomath.Pi, angles[18], 1e-12)
	assert.InDelta(t, 35.0/36*2*gomath.Pi, angles[35], 1e-12)
}

func TestPlanCoversCircle(t *testing.T) {
	for n := 2; n <= 72; n++ {
		angles := NewPlan(n).Angles()
		require.Len(t, angles, n)
		assert.True(t, sort.Float64sAreSorted(angles))
		for i := 1; i < n; i++ {
			assert.Greater(t, angles[i], angles[i-1])
		}
		assert.Less(t, angles[n-1], 2*gomath.Pi)
		// The step from the last frame back to frame 0 equals every other step.
		assert.InDelta(t, 2*gomath.Pi/float64(n), 2*gomath.Pi-angles[n-1], 1e-9)
	}
}

func TestSweepPlan(t *testing.T) {
	p := Plan{Frames: 4, Axis: render.AxisZ, Mode: Sweep}
	assert.Equal(t, 5, p.Steps())
	assert.InDelta(t, 2*gomath.Pi, p.Angles()[4], 1e-12)

	frames := []string{"0", "1", "2", "3", "4"}
	assert.Equal(t, []string{"0", "1", "2", "3"}, p.LoopFrames(frames))
	assert.Equal(t, []string{"0", "1"}, NewPlan(2).LoopFrames([]string{"0", "1"}))
}

func TestPlanValidate(t *testing.T) {
	assert.Error(t, NewPlan(0).Validate())
	assert.Error(t, Plan{Frames: 3, Axis: "Q", Mode: Discrete}.Validate())
	assert.Error(t, Plan{Frames: 3, Axis: render.AxisZ, Mode: "bounce"}.Validate())
}

func TestRunCapturesInOrder(t *testing.T) {
	r := &fakeRenderer{objects: cube(), failAt: -1}
	var states []State
	seq := &Sequencer{
		Renderer:   r,
		Preset:     rig.Standard,
		Plan:       NewPlan(36),
		Resolution: 128,
		OnState:    func(s State) { states = append(states, s) },
	}

	res, err := seq.Run(context.Background(), "model.glb", "frames")
	require.NoError(t, err)
	require.Len(t, res.Frames, 36)

	assert.Equal(t, []State{Framed, Rendering, Complete}, states)
	assert.Equal(t, Complete, seq.State())
	assert.Equal(t, filepath.Join("frames", "frame_000.png"), res.Frames[0])
	assert.Equal(t, filepath.Join("frames", "frame_035.png"), res.Frames[35])
	assert.InDelta(t, gomath.Pi, res.Angles[18], 1e-12)

	sess := r.sessions[0]
	assert.Equal(t, 1, sess.imports)
	require.Len(t, sess.scenes, 1, "rig applied once")
	assert.InDelta(t, 3.6, sess.scenes[0].Rig.OrthoScale, 1e-12)
	assert.Equal(t, math.Vec3{}, sess.scenes[0].Pivot)
	for i, p := range sess.poses {
		assert.Equal(t, i, p.Frame)
		assert.Equal(t, render.AxisZ, p.Axis)
	}
	assert.True(t, sess.closed)
}

func TestRunNoMeshFound(t *testing.T) {
	r := &fakeRenderer{failAt: -1}
	seq := &Sequencer{Renderer: r, Preset: rig.Standard, Plan: NewPlan(8), Resolution: 128}

	res, err := seq.Run(context.Background(), "empty.glb", t.TempDir())
	assert.ErrorIs(t, err, ErrNoMeshFound)
	assert.Nil(t, res)
	assert.Equal(t, Failed, seq.State())
	assert.True(t, r.sessions[0].closed)
}

func TestRunAbortsOnRenderFailure(t *testing.T) {
	r := &fakeRenderer{objects: cube(), failAt: 5}
	seq := &Sequencer{Renderer: r, Preset: rig.Soft, Plan: NewPlan(12), Resolution: 128}

	res, err := seq.Run(context.Background(), "model.glb", t.TempDir())
	assert.ErrorIs(t, err, render.ErrRender)
	assert.Nil(t, res)
	assert.Equal(t, Failed, seq.State())
	assert.Len(t, r.sessions[0].poses, 5, "no frame after the failing one is requested")
	assert.True(t, r.sessions[0].closed)
}

func TestRunTimeout(t *testing.T) {
	r := &fakeRenderer{objects: cube(), failAt: -1, hang: true}
	seq := &Sequencer{
		Renderer:   r,
		Preset:     rig.Standard,
		Plan:       NewPlan(36),
		Resolution: 128,
		Timeout:    50 * time.Millisecond,
	}

	res, err := seq.Run(context.Background(), "model.glb", t.TempDir())
	require.Error(t, err)
	assert.Nil(t, res, "no frames reach the encoder")
	assert.Equal(t, Failed, seq.State())

	var re *render.Error
	require.True(t, errors.As(err, &re))
	assert.True(t, re.Timeout)
}

func TestSnapshots(t *testing.T) {
	r := &fakeRenderer{objects: cube(), failAt: -1}
	seq := &Sequencer{Renderer: r, Preset: rig.Isometric, Resolution: 512}

	paths, err := seq.Snapshots(context.Background(), "model.glb", "out/tower", []float64{0, 90, 180, 270})
	require.NoError(t, err)
	assert.Equal(t, []string{"out/tower_0.png", "out/tower_90.png", "out/tower_180.png", "out/tower_270.png"}, paths)

	sess := r.sessions[0]
	require.Len(t, sess.scenes, 4)
	first, second := sess.scenes[0].Rig.CameraPosition, sess.scenes[1].Rig.CameraPosition
	assert.InDelta(t, first.Z, second.Z, 1e-9, "same elevation")
	assert.NotEqual(t, first, second)
	for _, p := range sess.poses {
		assert.Equal(t, 0.0, p.Angle)
	}
}

func TestRunWithSoftwareRenderer(t *testing.T) {
	wedge := mesh.Wedge("wedge", math.Vec3{X: -2, Y: -0.5, Z: -1}, math.Vec3{X: 2, Y: 0.5, Z: 1})
	r := raster.New(1, nil)
	r.Importer = staticImporter{wedge}

	seq := &Sequencer{Renderer: r, Preset: rig.Standard, Plan: NewPlan(4), Resolution: 128}
	dir := t.TempDir()

	res, err := seq.Run(context.Background(), "wedge.glb", dir)
	require.NoError(t, err)
	require.Len(t, res.Frames, 4)
	for _, f := range res.Frames {
		info, err := os.Stat(f)
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0))
	}
}

type staticImporter []mesh.Object

func (s staticImporter) Import(context.Context, string) ([]mesh.Object, error) {
	return s, nil
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "rendering", Rendering.String())
	assert.Equal(t, "state(9)", State(9).String())
}
