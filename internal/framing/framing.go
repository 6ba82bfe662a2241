// Package framing resolves the world-space bounding frame of a set of mesh
// objects: the box, its center, and the scalar extent used to size the rig.
package framing

import (
	"errors"

	"github.com/Faultbox/turntable/internal/mesh"
	"github.com/Faultbox/turntable/pkg/math"
)

// ErrEmptyGeometry is returned when there is no vertex to bound.
var ErrEmptyGeometry = errors.New("empty geometry")

// BoundingFrame is the axis-aligned world-space box around a mesh.
// Size is the largest axis extent and is never negative.
type BoundingFrame struct {
	Min    math.Vec3 `yaml:"min"`
	Max    math.Vec3 `yaml:"max"`
	Center math.Vec3 `yaml:"center"`
	Size   float64   `yaml:"size"`
}

// Resolve bounds every vertex of every object in world space.
func Resolve(objects []mesh.Object) (BoundingFrame, error) {
	var b builder
	for _, obj := range objects {
		for _, v := range obj.Vertices {
			b.add(obj.World.TransformVec3(v))
		}
	}
	return b.frame()
}

// ResolveCorners bounds only the 8 local bounding-box corners of each
// object. The result matches Resolve for boxes and is never smaller than
// the true bounds for other shapes.
func ResolveCorners(objects []mesh.Object) (BoundingFrame, error) {
	var b builder
	for _, obj := range objects {
		corners, ok := obj.Corners()
		if !ok {
			continue
		}
		for _, c := range corners {
			b.add(obj.World.TransformVec3(c))
		}
	}
	return b.frame()
}

type builder struct {
	min, max math.Vec3
	n        int
}

func (b *builder) add(p math.Vec3) {
	if b.n == 0 {
		b.min, b.max = p, p
	} else {
		b.min = b.min.Min(p)
		b.max = b.max.Max(p)
	}
	b.n++
}

func (b *builder) frame() (BoundingFrame, error) {
	if b.n == 0 {
		return BoundingFrame{}, ErrEmptyGeometry
	}
	f := BoundingFrame{
		Min:    b.min,
		Max:    b.max,
		Center: b.min.Add(b.max).Scale(0.5),
	}
	for i := 0; i < 3; i++ {
		if d := b.max.Axis(i) - b.min.Axis(i); d > f.Size {
			f.Size = d
		}
	}
	return f, nil
}
