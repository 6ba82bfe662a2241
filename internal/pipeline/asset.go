package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Faultbox/turntable/internal/orbit"
	"github.com/Faultbox/turntable/internal/rig"
	"github.com/Faultbox/turntable/internal/stills"
)

// Asset is one entry of a manifest: a named subject of a given class.
type Asset struct {
	Name   string `yaml:"name"`
	Class  string `yaml:"class"`
	Prompt string `yaml:"prompt,omitempty"`
	// Image, when set, is used as the concept art instead of generating it.
	Image string `yaml:"image,omitempty"`
	// Model, when set, is used instead of generating a mesh.
	Model string `yaml:"model,omitempty"`
	// Preset and Frames override the class defaults.
	Preset string `yaml:"preset,omitempty"`
	Frames int    `yaml:"frames,omitempty"`
}

// Manifest lists the assets of a batch.
type Manifest struct {
	Assets []Asset `yaml:"assets"`
}

// LoadManifest reads and validates a YAML manifest.
func LoadManifest(path string) ([]Asset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}
	if len(m.Assets) == 0 {
		return nil, fmt.Errorf("manifest %s lists no assets", path)
	}

	seen := make(map[string]bool, len(m.Assets))
	for i, a := range m.Assets {
		if err := a.Validate(); err != nil {
			return nil, fmt.Errorf("manifest %s: asset %d: %w", path, i, err)
		}
		if seen[a.Name] {
			return nil, fmt.Errorf("manifest %s: duplicate asset name %q", path, a.Name)
		}
		seen[a.Name] = true
	}
	return m.Assets, nil
}

// Validate checks the asset can be laid out and resolved to a class.
func (a Asset) Validate() error {
	if a.Name == "" {
		return errors.New("asset name is required")
	}
	if a.Name != filepath.Base(a.Name) || a.Name == "." || a.Name == ".." || strings.ContainsAny(a.Name, `/\`) {
		return fmt.Errorf("asset name %q must be a plain file name", a.Name)
	}
	if _, err := a.class(); err != nil {
		return err
	}
	if a.Prompt == "" && a.Image == "" && a.Model == "" {
		return fmt.Errorf("asset %q needs a prompt, an image or a model", a.Name)
	}
	return nil
}

// class resolves the asset's class with its overrides applied.
func (a Asset) class() (Class, error) {
	c, err := LookupClass(a.Class)
	if err != nil {
		return Class{}, err
	}
	if a.Preset != "" {
		p, err := rig.ParsePreset(a.Preset)
		if err != nil {
			return Class{}, err
		}
		c.Preset = p
	}
	if a.Frames != 0 {
		if err := orbit.NewPlan(a.Frames).Validate(); err != nil {
			return Class{}, fmt.Errorf("asset %q: %w", a.Name, err)
		}
		c.Frames = a.Frames
	}
	return c, nil
}

// Layout places an asset's working files under <root>/<name>/ and its
// published files directly under <root>.
type Layout struct {
	Root string
	Name string
}

func (l Layout) Dir() string     { return filepath.Join(l.Root, l.Name) }
func (l Layout) Concept() string { return filepath.Join(l.Dir(), "concept.png") }
func (l Layout) Clean() string   { return filepath.Join(l.Dir(), "clean.png") }
func (l Layout) Model() string   { return filepath.Join(l.Dir(), "model.glb") }
func (l Layout) Frames() string  { return filepath.Join(l.Dir(), "frames") }

// Scratch returns a fresh scratch directory path for a capture.
func (l Layout) Scratch(id string) string { return filepath.Join(l.Dir(), "frames-"+id) }

// Sprite is the published flat image, e.g. a tile texture.
func (l Layout) Sprite() string    { return filepath.Join(l.Root, l.Name+".png") }
func (l Layout) Iso() string       { return filepath.Join(l.Root, l.Name+"_iso.png") }
func (l Layout) Animation() string { return filepath.Join(l.Root, l.Name+"_spin.gif") }

// SnapshotBase is the prefix of per-orientation renders.
func (l Layout) SnapshotBase() string { return filepath.Join(l.Root, l.Name) }

// Still returns the published still for size. A class with a single
// still size publishes it as <name>.png.
func (l Layout) Still(c Class, size int) string {
	if len(c.Stills) == 1 {
		return l.Sprite()
	}
	return stills.Path(l.Sprite(), size)
}
