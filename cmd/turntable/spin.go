package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Faultbox/turntable/internal/loop"
	"github.com/Faultbox/turntable/internal/orbit"
	"github.com/Faultbox/turntable/internal/pipeline"
	"github.com/Faultbox/turntable/internal/render"
	"github.com/Faultbox/turntable/internal/rig"
)

func newSpinCmd(a *app) *cobra.Command {
	var (
		preset     string
		frames     int
		resolution int
		axis       string
		sweep      bool
		out        string
		framesDir  string
	)

	cmd := &cobra.Command{
		Use:   "spin <mesh>",
		Short: "Render a mesh orbit and encode it as a transparent loop",
		Long: `Spin imports a mesh, frames it, renders one frame per rotation step from a
fixed orthographic camera and encodes the frames into a looping GIF.

Frames are rendered into a scratch directory that is removed afterwards,
unless --frames-dir is given or output.keep_frames is set.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			meshPath := args[0]
			p, err := rig.ParsePreset(preset)
			if err != nil {
				return err
			}
			plan := orbit.NewPlan(frames)
			plan.Axis = render.Axis(strings.ToUpper(axis))
			if sweep {
				plan.Mode = orbit.Sweep
			}
			if err := plan.Validate(); err != nil {
				return err
			}

			cfg := a.cfg
			if out == "" {
				out = filepath.Join(cfg.Output.Dir, stem(meshPath)+"_spin.gif")
			}
			keep := cfg.Output.KeepFrames || framesDir != ""
			if framesDir == "" {
				framesDir = filepath.Join(cfg.Output.Dir, "frames-"+uuid.NewString())
			}
			if err := os.MkdirAll(framesDir, 0755); err != nil {
				return err
			}
			if !keep {
				defer os.RemoveAll(framesDir)
			}

			progress := cmd.ErrOrStderr()
			seq := &orbit.Sequencer{
				Renderer:   a.renderer(),
				Preset:     p,
				Plan:       plan,
				Resolution: resolution,
				Samples:    cfg.Renderer.Samples,
				Timeout:    cfg.Renderer.BatchTimeout,
				Logger:     a.log.Named("orbit"),
				OnFrame: func(done, total int) {
					fmt.Fprintf(progress, "\rrendering %d/%d", done, total)
					if done == total {
						fmt.Fprintln(progress)
					}
				},
			}
			res, err := seq.Run(cmd.Context(), meshPath, framesDir)
			if err != nil {
				return err
			}

			opt, err := pipeline.EncoderOptions(cfg)
			if err != nil {
				return err
			}
			if err := loop.EncodeFiles(plan.LoopFrames(res.Frames), out, opt); err != nil {
				return err
			}

			a.log.Info("spin complete",
				zap.String("mesh", meshPath),
				zap.String("output", out),
				zap.Int("frames", len(res.Frames)),
				zap.Float64("size", res.Frame.Size))
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&preset, "preset", "p", string(rig.Standard), "lighting preset ("+strings.Join(rig.PresetNames(), ", ")+")")
	cmd.Flags().IntVarP(&frames, "frames", "n", 36, "frames per revolution")
	cmd.Flags().IntVarP(&resolution, "resolution", "r", 256, "square frame size (128, 256 or 512)")
	cmd.Flags().StringVar(&axis, "axis", "z", "rotation axis (x, y or z)")
	cmd.Flags().BoolVar(&sweep, "sweep", false, "render N+1 keyframes and drop the closing duplicate")
	cmd.Flags().StringVar(&out, "out", "", "GIF path (default <output-dir>/<mesh>_spin.gif)")
	cmd.Flags().StringVar(&framesDir, "frames-dir", "", "keep the rendered frames in this directory")
	return cmd
}

// stem returns the base name of path without its extension.
func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
