// Package raster is a software implementation of the render contract: an
// orthographic, z-buffered, flat Lambert renderer with supersampled edges.
// It needs no external process and renders any scene the Blender backend
// accepts, at lower fidelity.
package raster

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/anthonynsimon/bild/transform"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Faultbox/turntable/internal/imageio"
	"github.com/Faultbox/turntable/internal/logger"
	"github.com/Faultbox/turntable/internal/mesh"
	"github.com/Faultbox/turntable/internal/render"
	"github.com/Faultbox/turntable/internal/rig"
	"github.com/Faultbox/turntable/pkg/math"
)

// albedo is the surface color of every mesh part.
var albedo = math.Vec3{X: 0.80, Y: 0.78, Z: 0.74}

const (
	ambientGain = 0.15
	lightGain   = 0.10
)

var errClosed = errors.New("session closed")

// Renderer hands out in-process sessions.
type Renderer struct {
	Importer    mesh.Importer
	Supersample int
	Logger      *zap.Logger
}

// New returns a Renderer reading glTF files from disk.
func New(supersample int, log *zap.Logger) *Renderer {
	return &Renderer{
		Importer:    mesh.FileImporter{},
		Supersample: supersample,
		Logger:      log,
	}
}

// Name implements render.Renderer.
func (r *Renderer) Name() string { return "software" }

// Acquire implements render.Renderer.
func (r *Renderer) Acquire(ctx context.Context) (render.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ss := r.Supersample
	if ss < 1 {
		ss = 1
	}
	imp := r.Importer
	if imp == nil {
		imp = mesh.FileImporter{}
	}
	id := uuid.NewString()
	return &Session{
		importer:    imp,
		supersample: ss,
		log:         logger.OrNop(r.Logger).With(zap.String("session", id)),
	}, nil
}

// Session holds the imported objects and the configured scene.
type Session struct {
	importer    mesh.Importer
	supersample int
	log         *zap.Logger

	objects    []mesh.Object
	scene      render.Scene
	configured bool
	closed     bool
}

// Load replaces the scene content with objects already in memory.
func (s *Session) Load(objects []mesh.Object) {
	s.objects = objects
	s.configured = false
}

// Import implements render.Session.
func (s *Session) Import(ctx context.Context, path string) ([]mesh.Object, error) {
	if s.closed {
		return nil, errClosed
	}
	s.Load(nil)
	objects, err := s.importer.Import(ctx, path)
	if err != nil {
		return nil, err
	}
	s.Load(objects)
	s.log.Debug("imported", zap.String("path", path), zap.Int("objects", len(objects)))
	return objects, nil
}

// Configure implements render.Session.
func (s *Session) Configure(ctx context.Context, scene render.Scene) error {
	if s.closed {
		return errClosed
	}
	if err := scene.Validate(); err != nil {
		return &render.Error{Op: "configure", Err: err}
	}
	s.scene = scene
	s.configured = true
	return ctx.Err()
}

// Render implements render.Session.
func (s *Session) Render(ctx context.Context, pose render.Pose, outPath string) error {
	if s.closed {
		return errClosed
	}
	if !s.configured {
		return &render.Error{Op: fmt.Sprintf("frame %d", pose.Frame), Err: errors.New("scene not configured")}
	}

	img, err := s.draw(ctx, pose)
	if err != nil {
		return &render.Error{
			Op:      fmt.Sprintf("frame %d", pose.Frame),
			Timeout: errors.Is(err, context.DeadlineExceeded),
			Err:     err,
		}
	}
	if err := imageio.WritePNG(outPath, img); err != nil {
		return &render.Error{Op: fmt.Sprintf("frame %d", pose.Frame), Err: err}
	}
	s.log.Debug("rendered", logger.Frame(pose.Frame), zap.Float64("angle", pose.Angle))
	return nil
}

// Close implements render.Session.
func (s *Session) Close() error {
	s.objects = nil
	s.configured = false
	s.closed = true
	return nil
}

// camera is the orthographic view basis.
type camera struct {
	origin             math.Vec3
	right, up, forward math.Vec3
	scale              float64
}

func newCamera(spec rig.Spec) camera {
	f := spec.LookDirection.Normalize()
	r := f.Cross(spec.Up).Normalize()
	if r.Length() == 0 {
		r = math.Vec3{X: 1}
	}
	return camera{
		origin:  spec.CameraPosition,
		right:   r,
		up:      r.Cross(f),
		forward: f,
		scale:   spec.OrthoScale,
	}
}

// project maps a world point to bottom-up pixel coordinates of a size x
// size target. The ortho scale spans the full width.
func (c camera) project(p math.Vec3, size int) vertex {
	d := p.Sub(c.origin)
	n := float64(size)
	return vertex{
		x: (d.Dot(c.right)/c.scale + 0.5) * n,
		y: (d.Dot(c.up)/c.scale + 0.5) * n,
		z: d.Dot(c.forward),
	}
}

func (s *Session) draw(ctx context.Context, pose render.Pose) (*image.NRGBA, error) {
	size := s.scene.Resolution * s.supersample
	fb := NewFrameBuffer(size, size)
	cam := newCamera(s.scene.Rig)
	poseMatrix := pose.Matrix(s.scene.Pivot)

	for _, obj := range s.objects {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		world := poseMatrix.Mul(obj.World)
		verts := make([]math.Vec3, len(obj.Vertices))
		proj := make([]vertex, len(obj.Vertices))
		for i, v := range obj.Vertices {
			verts[i] = world.TransformVec3(v)
			proj[i] = cam.project(verts[i], size)
		}

		for t := 0; t+2 < len(obj.Indices); t += 3 {
			ia, ib, ic := int(obj.Indices[t]), int(obj.Indices[t+1]), int(obj.Indices[t+2])
			if ia >= len(verts) || ib >= len(verts) || ic >= len(verts) {
				continue
			}
			n := verts[ib].Sub(verts[ia]).Cross(verts[ic].Sub(verts[ia])).Normalize()
			if n.Dot(cam.forward) > 0 {
				n = n.Scale(-1)
			}
			fb.FillTriangle(proj[ia], proj[ib], proj[ic], shade(n, s.scene.Rig))
		}
	}

	img, err := imageio.FromPixels(fb.Color, size, size)
	if err != nil {
		return nil, err
	}
	if s.supersample == 1 {
		return img, nil
	}
	return imageio.ToNRGBA(transform.Resize(img, s.scene.Resolution, s.scene.Resolution, transform.Box)), nil
}

// shade is the Lambert color of a surface with normal n under the rig.
func shade(n math.Vec3, spec rig.Spec) math.Vec3 {
	intensity := spec.Ambient * ambientGain
	for _, l := range spec.Lights {
		dir := l.Direction
		if l.Kind == rig.Area {
			dir = spec.CameraTarget.Sub(l.Position).Normalize()
		}
		if lambert := -n.Dot(dir); lambert > 0 {
			intensity += l.Energy * lightGain * lambert
		}
	}
	return albedo.Scale(intensity)
}
