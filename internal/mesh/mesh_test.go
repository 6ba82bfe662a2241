package mesh

import (
	"context"
	"errors"
	gomath "math"
	"os"
	"path/filepath"
	"testing"

	"github.com/Faultbox/turntable/pkg/math"
)

// triangleGLTF holds one triangle (0,0,0) (1,0,0) (0,1,0) under a node
// translated by (0, 2, 0), with the buffer inlined as a data URI.
const triangleGLTF = `{
  "asset": {"version": "2.0"},
  "scene": 0,
  "scenes": [{"nodes": [0]}],
  "nodes": [{"name": "shell", "mesh": 0, "translation": [0, 2, 0]}],
  "meshes": [{"primitives": [{"attributes": {"POSITION": 0}, "indices": 1}]}],
  "buffers": [{"byteLength": 44, "uri": "data:application/octet-stream;base64,AAAAAAAAAAAAAAAAAACAPwAAAAAAAAAAAAAAAAAAgD8AAAAAAAABAAIAAAA="}],
  "bufferViews": [
    {"buffer": 0, "byteOffset": 0, "byteLength": 36},
    {"buffer": 0, "byteOffset": 36, "byteLength": 6}
  ],
  "accessors": [
    {"bufferView": 0, "componentType": 5126, "count": 3, "type": "VEC3", "min": [0, 0, 0], "max": [1, 1, 0]},
    {"bufferView": 1, "componentType": 5123, "count": 3, "type": "SCALAR"}
  ]
}`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestImportGLTF(t *testing.T) {
	path := writeFile(t, "triangle.gltf", triangleGLTF)

	objects, err := FileImporter{}.Import(context.Background(), path)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if len(objects) != 1 {
		t.Fatalf("expected 1 object, got %d", len(objects))
	}

	obj := objects[0]
	if obj.Name != "shell" {
		t.Errorf("expected name shell, got %q", obj.Name)
	}
	if obj.Triangles() != 1 {
		t.Errorf("expected 1 triangle, got %d", obj.Triangles())
	}

	// Node translation is applied, then glTF Y-up becomes Z-up.
	want := []math.Vec3{{X: 0, Y: 0, Z: 2}, {X: 1, Y: 0, Z: 2}, {X: 0, Y: 0, Z: 3}}
	got := obj.WorldVertices()
	for i := range want {
		if got[i].Distance(want[i]) > 1e-9 {
			t.Errorf("vertex %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestImportRejectsImages(t *testing.T) {
	// PNG signature followed by padding
	png := "\x89PNG\r\n\x1a\n" + string(make([]byte, 32))
	path := writeFile(t, "concept.glb", png)

	_, err := FileImporter{}.Import(context.Background(), path)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestImportUnknownExtension(t *testing.T) {
	path := writeFile(t, "model.obj", "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 3\n")

	_, err := FileImporter{}.Import(context.Background(), path)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestImportMissingFile(t *testing.T) {
	_, err := FileImporter{}.Import(context.Background(), "/nonexistent/model.glb")

	var ie *ImportError
	if !errors.As(err, &ie) {
		t.Fatalf("expected *ImportError, got %v", err)
	}
}

func TestImportCorruptGLTF(t *testing.T) {
	path := writeFile(t, "broken.gltf", `{"asset": {"version": "2.0"}, "nodes": [`)

	_, err := FileImporter{}.Import(context.Background(), path)
	var ie *ImportError
	if !errors.As(err, &ie) {
		t.Fatalf("expected *ImportError, got %v", err)
	}
}

func TestCorners(t *testing.T) {
	obj := Object{World: math.Identity(), Vertices: []math.Vec3{{X: -1, Y: 2, Z: 0}, {X: 3, Y: -4, Z: 5}}}

	corners, ok := obj.Corners()
	if !ok {
		t.Fatal("expected corners for a non-empty object")
	}
	if corners[0] != (math.Vec3{X: -1, Y: -4, Z: 0}) {
		t.Errorf("min corner: got %v", corners[0])
	}
	if corners[7] != (math.Vec3{X: 3, Y: 2, Z: 5}) {
		t.Errorf("max corner: got %v", corners[7])
	}

	if _, ok := (Object{}).Corners(); ok {
		t.Error("empty object should report no corners")
	}
}

func TestBoxNormalsFaceOutward(t *testing.T) {
	box := Box("box", math.Vec3{X: -1, Y: -1, Z: -1}, math.Vec3{X: 1, Y: 1, Z: 1})
	if box.Triangles() != 12 {
		t.Fatalf("expected 12 triangles, got %d", box.Triangles())
	}

	for i := 0; i < len(box.Indices); i += 3 {
		a := box.Vertices[box.Indices[i]]
		b := box.Vertices[box.Indices[i+1]]
		c := box.Vertices[box.Indices[i+2]]
		n := b.Sub(a).Cross(c.Sub(a))
		centroid := a.Add(b).Add(c).Scale(1.0 / 3)
		if n.Dot(centroid) <= 0 {
			t.Errorf("triangle %d faces inward", i/3)
		}
	}
}

func TestWedgeLowersOneEdge(t *testing.T) {
	w := Wedge("wedge", math.Vec3{}, math.Vec3{X: 1, Y: 1, Z: 4})
	if gomath.Abs(w.Vertices[5].Z-1) > 1e-12 || w.Vertices[7].Z != 4 {
		t.Errorf("unexpected wedge heights: %v %v", w.Vertices[5], w.Vertices[7])
	}
}
