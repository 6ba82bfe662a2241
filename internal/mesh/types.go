// Package mesh holds the mesh objects the framing and render stages read,
// and the importer that loads them from glTF/GLB files.
package mesh

import (
	"context"
	"errors"
	"fmt"

	"github.com/Faultbox/turntable/pkg/math"
)

// ErrUnsupportedFormat is returned for files the importer cannot parse.
var ErrUnsupportedFormat = errors.New("unsupported mesh format")

// ImportError wraps a failure while reading a supported file.
type ImportError struct {
	Path string
	Err  error
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("import %s: %v", e.Path, e.Err)
}

func (e *ImportError) Unwrap() error { return e.Err }

// Object is one triangulated mesh part with its world transform.
// Vertices are in object space. Indices form a triangle list and may be
// empty when only the bounding corners are known (renderer-side imports).
type Object struct {
	Name     string
	World    math.Mat4
	Vertices []math.Vec3
	Indices  []uint32
}

// Importer loads the mesh objects contained in a model file.
type Importer interface {
	Import(ctx context.Context, path string) ([]Object, error)
}

// Corners returns the 8 corners of the object-space bounding box, the
// cheap stand-in for the full vertex list. ok is false for an empty object.
func (o Object) Corners() (corners [8]math.Vec3, ok bool) {
	if len(o.Vertices) == 0 {
		return corners, false
	}
	lo, hi := o.Vertices[0], o.Vertices[0]
	for _, v := range o.Vertices[1:] {
		lo = lo.Min(v)
		hi = hi.Max(v)
	}
	for i := range corners {
		c := lo
		if i&1 != 0 {
			c.X = hi.X
		}
		if i&2 != 0 {
			c.Y = hi.Y
		}
		if i&4 != 0 {
			c.Z = hi.Z
		}
		corners[i] = c
	}
	return corners, true
}

// WorldVertices returns every vertex transformed into world space.
func (o Object) WorldVertices() []math.Vec3 {
	out := make([]math.Vec3, len(o.Vertices))
	for i, v := range o.Vertices {
		out[i] = o.World.TransformVec3(v)
	}
	return out
}

// Triangles returns the number of complete triangles.
func (o Object) Triangles() int {
	return len(o.Indices) / 3
}
