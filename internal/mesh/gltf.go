package mesh

import (
	"bytes"
	"context"
	"fmt"
	gomath "math"
	"os"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/Faultbox/turntable/pkg/math"
)

// glbMagic is the 4-byte header of binary glTF files.
var glbMagic = []byte("glTF")

// yUpToZUp converts glTF's Y-up frame into the Z-up frame the rig and the
// Blender importer use: (x, y, z) -> (x, -z, y).
var yUpToZUp = math.RotateX(gomath.Pi / 2)

// FileImporter reads glTF 2.0 (.gltf, .glb) files from disk.
type FileImporter struct{}

// Import implements Importer.
func (FileImporter) Import(ctx context.Context, path string) ([]Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := sniff(path); err != nil {
		return nil, err
	}

	doc, err := gltf.Open(path)
	if err != nil {
		return nil, &ImportError{Path: path, Err: err}
	}
	objects, err := objectsFromDocument(doc)
	if err != nil {
		return nil, &ImportError{Path: path, Err: err}
	}
	return objects, nil
}

// sniff rejects files that are not glTF before handing them to the parser.
func sniff(path string) error {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".gltf" {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return &ImportError{Path: path, Err: err}
	}
	defer f.Close()

	head := make([]byte, 262)
	n, _ := f.Read(head)
	head = head[:n]

	if bytes.HasPrefix(head, glbMagic) {
		return nil
	}

	kind, _ := filetype.Match(head)
	if kind != filetype.Unknown {
		return fmt.Errorf("%w: %s looks like %s (%s)", ErrUnsupportedFormat, path, kind.Extension, kind.MIME.Value)
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
}

// objectsFromDocument walks the default scene and flattens every mesh
// primitive into an Object with its accumulated world transform.
func objectsFromDocument(doc *gltf.Document) ([]Object, error) {
	roots := sceneRoots(doc)

	var objects []Object
	var visit func(idx int, parent math.Mat4) error
	visit = func(idx int, parent math.Mat4) error {
		if idx < 0 || idx >= len(doc.Nodes) {
			return fmt.Errorf("node index %d out of range", idx)
		}
		node := doc.Nodes[idx]
		world := parent.Mul(localMatrix(node))

		if node.Mesh != nil {
			objs, err := meshObjects(doc, int(*node.Mesh), nodeName(node, idx), world)
			if err != nil {
				return err
			}
			objects = append(objects, objs...)
		}
		for _, child := range node.Children {
			if err := visit(int(child), world); err != nil {
				return err
			}
		}
		return nil
	}

	for _, root := range roots {
		if err := visit(root, yUpToZUp); err != nil {
			return nil, err
		}
	}
	return objects, nil
}

// sceneRoots returns the root nodes of the default scene, falling back to
// every parentless node when the file declares no scene.
func sceneRoots(doc *gltf.Document) []int {
	if len(doc.Scenes) > 0 {
		s := 0
		if doc.Scene != nil && int(*doc.Scene) < len(doc.Scenes) {
			s = int(*doc.Scene)
		}
		roots := make([]int, len(doc.Scenes[s].Nodes))
		for i, n := range doc.Scenes[s].Nodes {
			roots[i] = int(n)
		}
		return roots
	}

	isChild := make([]bool, len(doc.Nodes))
	for _, n := range doc.Nodes {
		for _, c := range n.Children {
			if int(c) >= 0 && int(c) < len(isChild) {
				isChild[int(c)] = true
			}
		}
	}
	var roots []int
	for i := range doc.Nodes {
		if !isChild[i] {
			roots = append(roots, i)
		}
	}
	return roots
}

func localMatrix(node *gltf.Node) math.Mat4 {
	m := math.Mat4(node.MatrixOrDefault())
	if m != math.Identity() {
		return m
	}
	t := node.TranslationOrDefault()
	r := node.RotationOrDefault()
	s := node.ScaleOrDefault()
	return math.FromTRS(
		math.Vec3{X: t[0], Y: t[1], Z: t[2]},
		math.Quat{X: r[0], Y: r[1], Z: r[2], W: r[3]},
		math.Vec3{X: s[0], Y: s[1], Z: s[2]},
	)
}

func nodeName(node *gltf.Node, idx int) string {
	if node.Name != "" {
		return node.Name
	}
	return fmt.Sprintf("node_%d", idx)
}

func meshObjects(doc *gltf.Document, meshIdx int, name string, world math.Mat4) ([]Object, error) {
	if meshIdx < 0 || meshIdx >= len(doc.Meshes) {
		return nil, fmt.Errorf("mesh index %d out of range", meshIdx)
	}
	m := doc.Meshes[meshIdx]

	var objects []Object
	for p, prim := range m.Primitives {
		if prim.Mode != gltf.PrimitiveTriangles {
			continue
		}
		posIdx, ok := prim.Attributes[gltf.POSITION]
		if !ok {
			continue
		}
		positions, err := modeler.ReadPosition(doc, doc.Accessors[int(posIdx)], nil)
		if err != nil {
			return nil, fmt.Errorf("mesh %d primitive %d positions: %w", meshIdx, p, err)
		}

		var indices []uint32
		if prim.Indices != nil {
			indices, err = modeler.ReadIndices(doc, doc.Accessors[int(*prim.Indices)], nil)
			if err != nil {
				return nil, fmt.Errorf("mesh %d primitive %d indices: %w", meshIdx, p, err)
			}
		} else {
			indices = make([]uint32, len(positions))
			for i := range indices {
				indices[i] = uint32(i)
			}
		}

		verts := make([]math.Vec3, len(positions))
		for i, pos := range positions {
			verts[i] = math.Vec3{X: float64(pos[0]), Y: float64(pos[1]), Z: float64(pos[2])}
		}

		objName := name
		if len(m.Primitives) > 1 {
			objName = fmt.Sprintf("%s.%03d", name, p)
		}
		objects = append(objects, Object{Name: objName, World: world, Vertices: verts, Indices: indices})
	}
	return objects, nil
}
