package fal

import (
	"context"
	"fmt"
)

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// RemoveBackground runs the background-removal model (birefnet) on a PNG
// and returns the cut-out PNG.
func (c *Client) RemoveBackground(ctx context.Context, png []byte) ([]byte, error) {
	model := orDefault(c.BackgroundModel, DefaultBackgroundModel)
	var out struct {
		Image File `json:"image"`
	}
	in := map[string]any{"image_url": DataURI("image/png", png)}
	if err := c.Run(ctx, model, in, &out); err != nil {
		return nil, err
	}
	return c.Download(ctx, out.Image)
}

// ImageToMesh runs the image-to-3D model (Tripo) on a PNG and returns the
// GLB bytes.
func (c *Client) ImageToMesh(ctx context.Context, png []byte) ([]byte, error) {
	model := orDefault(c.MeshModel, DefaultMeshModel)
	var out struct {
		Model     *File `json:"model"`
		ModelMesh *File `json:"model_mesh"`
	}
	in := map[string]any{
		"image_url": DataURI("image/png", png),
		"texture":   "standard",
	}
	if err := c.Run(ctx, model, in, &out); err != nil {
		return nil, err
	}

	f := out.ModelMesh
	if f == nil {
		f = out.Model
	}
	if f == nil {
		return nil, fmt.Errorf("%s: %w", model, ErrNoOutput)
	}
	return c.Download(ctx, *f)
}
