package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/turntable/internal/pipeline"
)

// triangleGLTF is one triangle under a node named "shell", buffer inlined.
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

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--backend", "software", "--output-dir", t.TempDir()}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestClassesCommand(t *testing.T) {
	out, err := execute(t, "classes")
	require.NoError(t, err)
	for _, name := range pipeline.ClassNames() {
		assert.Contains(t, out, name)
	}
	assert.Contains(t, out, "256,128,64,32")
	assert.Contains(t, out, "4 views")
}

func TestFrameCommand(t *testing.T) {
	mesh := filepath.Join(t.TempDir(), "triangle.gltf")
	require.NoError(t, os.WriteFile(mesh, []byte(triangleGLTF), 0644))

	out, err := execute(t, "frame", mesh)
	require.NoError(t, err)
	assert.Contains(t, out, "- shell")
	assert.Contains(t, out, "preset: standard")
	assert.Contains(t, out, "ortho_scale: 1.8")
	assert.Contains(t, out, "size: 1")
}

func TestFrameCommandRejectsUnknownPreset(t *testing.T) {
	_, err := execute(t, "frame", "missing.gltf", "--preset", "neon")
	assert.Error(t, err)
}

func TestRunOptions(t *testing.T) {
	opt, err := runOptions("", true)
	require.NoError(t, err)
	assert.Equal(t, pipeline.StageFrames, opt.From)

	opt, err = runOptions("stills", false)
	require.NoError(t, err)
	assert.Equal(t, pipeline.StageStills, opt.From)

	_, err = runOptions("model", true)
	assert.Error(t, err)
	_, err = runOptions("varnish", false)
	assert.Error(t, err)
}

func TestStem(t *testing.T) {
	assert.Equal(t, "sigil", stem(filepath.Join("models", "sigil.glb")))
	assert.Equal(t, "archive.tar", stem("archive.tar.gz"))
	assert.False(t, strings.Contains(stem("a/b/c.png"), "/"))
}

func TestConfigCommand(t *testing.T) {
	out, err := execute(t, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "backend: software")

	path := filepath.Join(t.TempDir(), "turntable.yaml")
	out, err = execute(t, "config", "--to", path)
	require.NoError(t, err)
	assert.Equal(t, path, strings.TrimSpace(out))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "backend: software")
}
