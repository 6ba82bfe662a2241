package mesh

import "github.com/Faultbox/turntable/pkg/math"

// Box returns an axis-aligned box object spanning min..max, with outward
// facing triangles and an identity world transform.
func Box(name string, min, max math.Vec3) Object {
	v := []math.Vec3{
		{X: min.X, Y: min.Y, Z: min.Z}, // 0
		{X: max.X, Y: min.Y, Z: min.Z}, // 1
		{X: max.X, Y: max.Y, Z: min.Z}, // 2
		{X: min.X, Y: max.Y, Z: min.Z}, // 3
		{X: min.X, Y: min.Y, Z: max.Z}, // 4
		{X: max.X, Y: min.Y, Z: max.Z}, // 5
		{X: max.X, Y: max.Y, Z: max.Z}, // 6
		{X: min.X, Y: max.Y, Z: max.Z}, // 7
	}
	idx := []uint32{
		// Bottom (-Z)
		0, 2, 1, 0, 3, 2,
		// Top (+Z)
		4, 5, 6, 4, 6, 7,
		// Front (-Y)
		0, 1, 5, 0, 5, 4,
		// Back (+Y)
		3, 7, 6, 3, 6, 2,
		// Left (-X)
		0, 4, 7, 0, 7, 3,
		// Right (+X)
		1, 2, 6, 1, 6, 5,
	}
	return Object{Name: name, World: math.Identity(), Vertices: v, Indices: idx}
}

// Wedge returns a box whose top face slopes down toward +X, so its
// silhouette changes as it turns about Z.
func Wedge(name string, min, max math.Vec3) Object {
	o := Box(name, min, max)
	o.Vertices[5].Z = min.Z + (max.Z-min.Z)*0.25
	o.Vertices[6].Z = o.Vertices[5].Z
	return o
}
