package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/Faultbox/turntable/internal/framing"
	"github.com/Faultbox/turntable/internal/orbit"
	"github.com/Faultbox/turntable/internal/render"
	"github.com/Faultbox/turntable/internal/rig"
)

type frameDump struct {
	Mesh        string                `yaml:"mesh"`
	Objects     []string              `yaml:"objects"`
	Orientation float64               `yaml:"orientation,omitempty"`
	Frame       framing.BoundingFrame `yaml:"frame"`
	Rig         rig.Spec              `yaml:"rig"`
}

func newFrameCmd(a *app) *cobra.Command {
	var (
		preset      string
		orientation float64
	)

	cmd := &cobra.Command{
		Use:   "frame <mesh>",
		Short: "Print the bounding frame and camera rig of a mesh as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := rig.ParsePreset(preset)
			if err != nil {
				return err
			}
			dump, err := frameMesh(cmd.Context(), a.renderer(), args[0], p, orientation)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(dump); err != nil {
				return err
			}
			return enc.Close()
		},
	}
	cmd.Flags().StringVarP(&preset, "preset", "p", string(rig.Standard), "lighting preset ("+strings.Join(rig.PresetNames(), ", ")+")")
	cmd.Flags().Float64Var(&orientation, "orientation", 0, "camera orientation in degrees about Z")
	return cmd
}

func frameMesh(ctx context.Context, r render.Renderer, meshPath string, p rig.Preset, orientation float64) (dump *frameDump, err error) {
	sess, err := r.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		err = multierr.Append(err, sess.Close())
	}()

	objects, err := sess.Import(ctx, meshPath)
	if err != nil {
		return nil, err
	}
	if len(objects) == 0 {
		return nil, fmt.Errorf("%s: %w", meshPath, orbit.ErrNoMeshFound)
	}
	frame, err := framing.Resolve(objects)
	if err != nil {
		return nil, err
	}
	spec, err := rig.BuildOriented(frame, p, orientation)
	if err != nil {
		return nil, err
	}

	dump = &frameDump{Mesh: meshPath, Orientation: orientation, Frame: frame, Rig: spec}
	for _, o := range objects {
		dump.Objects = append(dump.Objects, o.Name)
	}
	return dump, nil
}
