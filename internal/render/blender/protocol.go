package blender

import (
	"encoding/json"
	"fmt"

	"github.com/Faultbox/turntable/internal/mesh"
	"github.com/Faultbox/turntable/internal/render"
	"github.com/Faultbox/turntable/pkg/math"
)

// replyPrefix marks driver replies among Blender's own stdout output.
const replyPrefix = "@@TT "

type command struct {
	Op    string        `json:"op"`
	Path  string        `json:"path,omitempty"`
	Scene *scenePayload `json:"scene,omitempty"`
	Pose  *posePayload  `json:"pose,omitempty"`
}

type vec [3]float64

type lightPayload struct {
	Kind     string  `json:"kind"`
	Name     string  `json:"name"`
	Position vec     `json:"position"`
	Rotation vec     `json:"rotation"`
	Energy   float64 `json:"energy"`
	Size     float64 `json:"size,omitempty"`
}

type rigPayload struct {
	OrthoScale     float64        `json:"ortho_scale"`
	CameraDistance float64        `json:"camera_distance"`
	CameraPosition vec            `json:"camera_position"`
	CameraTarget   vec            `json:"camera_target"`
	Lights         []lightPayload `json:"lights"`
	Ambient        float64        `json:"ambient"`
}

type scenePayload struct {
	Rig        rigPayload `json:"rig"`
	Pivot      vec        `json:"pivot"`
	Resolution int        `json:"resolution"`
	Samples    int        `json:"samples,omitempty"`
}

type posePayload struct {
	Frame int     `json:"frame"`
	Axis  string  `json:"axis"`
	Angle float64 `json:"angle"`
}

type objectPayload struct {
	Name    string      `json:"name"`
	Corners [8]vec      `json:"corners"`
	Matrix  [16]float64 `json:"matrix"`
}

type reply struct {
	OK      bool            `json:"ok"`
	Error   string          `json:"error,omitempty"`
	Ready   bool            `json:"ready,omitempty"`
	Version string          `json:"version,omitempty"`
	Objects []objectPayload `json:"objects,omitempty"`
	Path    string          `json:"path,omitempty"`
}

func newScenePayload(s render.Scene) *scenePayload {
	p := &scenePayload{
		Rig: rigPayload{
			OrthoScale:     s.Rig.OrthoScale,
			CameraDistance: s.Rig.CameraDistance,
			CameraPosition: s.Rig.CameraPosition.Array(),
			CameraTarget:   s.Rig.CameraTarget.Array(),
			Ambient:        s.Rig.Ambient,
		},
		Pivot:      s.Pivot.Array(),
		Resolution: s.Resolution,
		Samples:    s.Samples,
	}
	for _, l := range s.Rig.Lights {
		p.Rig.Lights = append(p.Rig.Lights, lightPayload{
			Kind:     string(l.Kind),
			Name:     l.Name,
			Position: l.Position.Array(),
			Rotation: l.Rotation.Array(),
			Energy:   l.Energy,
			Size:     l.Size,
		})
	}
	return p
}

// objects converts the import reply into mesh objects carrying only their
// 8 local bounding corners.
func (r reply) objects() []mesh.Object {
	out := make([]mesh.Object, 0, len(r.Objects))
	for _, o := range r.Objects {
		obj := mesh.Object{
			Name:     o.Name,
			World:    math.Mat4(o.Matrix),
			Vertices: make([]math.Vec3, len(o.Corners)),
		}
		for i, c := range o.Corners {
			obj.Vertices[i] = math.Vec3{X: c[0], Y: c[1], Z: c[2]}
		}
		out = append(out, obj)
	}
	return out
}

// parseReply decodes a prefixed driver line. ok is false for lines that
// are not driver replies.
func parseReply(line string) (r reply, ok bool, err error) {
	if len(line) < len(replyPrefix) || line[:len(replyPrefix)] != replyPrefix {
		return reply{}, false, nil
	}
	if err := json.Unmarshal([]byte(line[len(replyPrefix):]), &r); err != nil {
		return reply{}, true, fmt.Errorf("malformed driver reply: %w", err)
	}
	return r, true, nil
}
