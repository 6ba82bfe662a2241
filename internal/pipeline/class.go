// Package pipeline turns a subject prompt into published sprite assets:
// concept art, a cleaned cut-out, static stills, a 3D model, orbit frames
// and a transparent looping GIF. Asset classes are data; one Runner
// drives every class through the same stage sequence.
package pipeline

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Faultbox/turntable/internal/rig"
)

// Stage names one step of the asset pipeline.
type Stage string

const (
	StageConcept   Stage = "concept"
	StageClean     Stage = "clean"
	StageStills    Stage = "stills"
	StageIso       Stage = "iso"
	StageModel     Stage = "model"
	StageFrames    Stage = "frames"
	StageAnimation Stage = "animation"
)

// stageOrder is the execution order shared by every class.
var stageOrder = []Stage{
	StageConcept,
	StageClean,
	StageStills,
	StageIso,
	StageModel,
	StageFrames,
	StageAnimation,
}

// ParseStage parses a stage name. The empty string is the first stage.
func ParseStage(s string) (Stage, error) {
	if s == "" {
		return StageConcept, nil
	}
	st := Stage(strings.ToLower(strings.TrimSpace(s)))
	if st.index() < 0 {
		return "", fmt.Errorf("unknown stage %q (want one of %s)", s, joinStages(stageOrder))
	}
	return st, nil
}

func (s Stage) index() int {
	for i, st := range stageOrder {
		if st == s {
			return i
		}
	}
	return -1
}

func joinStages(stages []Stage) string {
	names := make([]string, len(stages))
	for i, s := range stages {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

// Class describes how one kind of asset is produced.
type Class struct {
	Name   string     `yaml:"name"`
	Preset rig.Preset `yaml:"preset"`
	// Template is the concept prompt; %s is replaced by the subject.
	Template   string  `yaml:"-"`
	Stages     []Stage `yaml:"stages"`
	Frames     int     `yaml:"frames,omitempty"`
	Resolution int     `yaml:"resolution,omitempty"`
	Stills     []int   `yaml:"stills,omitempty"`
	// Orientations, when set, replaces the orbit with one still per
	// camera orientation and disables the animation stage.
	Orientations []float64     `yaml:"orientations,omitempty"`
	FrameDelay   time.Duration `yaml:"frame_delay,omitempty"`
}

// Has reports whether the class runs stage s.
func (c Class) Has(s Stage) bool {
	for _, st := range c.Stages {
		if st == s {
			return true
		}
	}
	return false
}

// Prompt renders the concept prompt for subject.
func (c Class) Prompt(subject string) string {
	return fmt.Sprintf(c.Template, strings.TrimSpace(subject))
}

// Animated reports whether the class produces an orbit loop.
func (c Class) Animated() bool {
	return len(c.Orientations) == 0 && c.Has(StageFrames)
}

var isoOrientations = []float64{0, 90, 180, 270}

const portraitTemplate = `Generate a portrait of %s.

Character design:
- Clean, stylized cartoon/game character art style
- Portrait bust view (head and shoulders)
- White or light background
- Suitable for a game avatar/icon
- No text or words`

const emblemTemplate = `Generate a heraldic emblem: %s

Design requirements:
- Classic pointed heraldic shield shape
- DO NOT include any text, words, letters, dates or banners with writing
- Traditional heraldic style like a family crest or town coat of arms
- Clean vector-style art suitable for a logo
- White or transparent background
- Front-facing flat view (no 3D perspective)
- High contrast, bold lines
- Should look good at small sizes (icon) and large sizes
- Keep the design contained within the shield outline`

const buildingTemplate = `Generate an isometric view of: %s

Style requirements:
- Clean isometric/3/4 view angle
- Simple, stylized architectural design suitable for a game
- Solid colors, minimal texture detail
- White or light background
- Single building, no environment
- Suitable for conversion to 3D model`

const propTemplate = `Generate an isometric view of: %s

Style requirements:
- Clean isometric/3/4 view angle
- Simple, stylized game prop
- Solid colors, minimal texture detail
- White or light background
- Single object, no environment
- Suitable for conversion to 3D model`

const tileTemplate = `Generate a seamless tileable texture: %s

CRITICAL requirements:
- Top-down view (looking straight down, no angle)
- Square image that tiles perfectly (edges must match when repeated)
- Fill the ENTIRE image with the texture (no borders, no empty space)
- Simple, stylized game texture
- Even lighting, no strong shadows
- Pattern should repeat seamlessly in all directions`

// Classes holds the built-in asset classes by name.
var Classes = map[string]Class{
	"council": {
		Name:       "council",
		Preset:     rig.Portrait,
		Template:   portraitTemplate,
		Stages:     []Stage{StageConcept, StageClean, StageStills, StageModel, StageFrames, StageAnimation},
		Frames:     36,
		Resolution: 128,
		Stills:     []int{128},
		FrameDelay: 50 * time.Millisecond,
	},
	"emblem": {
		Name:       "emblem",
		Preset:     rig.Emblem,
		Template:   emblemTemplate,
		Stages:     []Stage{StageConcept, StageClean, StageStills, StageModel, StageFrames, StageAnimation},
		Frames:     36,
		Resolution: 256,
		Stills:     []int{256, 128, 64, 32},
		FrameDelay: 50 * time.Millisecond,
	},
	"building": {
		Name:         "building",
		Preset:       rig.Isometric,
		Template:     buildingTemplate,
		Stages:       []Stage{StageConcept, StageModel, StageFrames},
		Resolution:   512,
		Orientations: isoOrientations,
	},
	"prop": {
		Name:         "prop",
		Preset:       rig.IsometricSoft,
		Template:     propTemplate,
		Stages:       []Stage{StageConcept, StageClean, StageModel, StageFrames},
		Resolution:   512,
		Orientations: isoOrientations,
	},
	"tile": {
		Name:     "tile",
		Template: tileTemplate,
		Stages:   []Stage{StageConcept, StageIso},
	},
}

// LookupClass returns the class named name.
func LookupClass(name string) (Class, error) {
	c, ok := Classes[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Class{}, fmt.Errorf("unknown asset class %q (want one of %s)", name, strings.Join(ClassNames(), ", "))
	}
	return c, nil
}

// ClassNames returns the built-in class names, sorted.
func ClassNames() []string {
	names := make([]string, 0, len(Classes))
	for n := range Classes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
