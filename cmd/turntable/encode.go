package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Faultbox/turntable/internal/loop"
	"github.com/Faultbox/turntable/internal/pipeline"
)

func newEncodeCmd(a *app) *cobra.Command {
	var (
		out       string
		delay     time.Duration
		backdrop  string
		threshold int
		maxColors int
	)

	cmd := &cobra.Command{
		Use:   "encode <frames-dir | frame.png...>",
		Short: "Encode RGBA frames into a looping GIF with a transparent background",
		Long: `Encode quantizes a sequence of RGBA frames to one shared palette and writes
a forever-looping GIF. Palette index 0 is reserved for transparency, so no
opaque color can ever turn transparent.

Given a single directory, its frame_NNN.png files are encoded in order.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			frames := args
			if len(args) == 1 && isDir(args[0]) {
				var err error
				if frames, err = pipeline.FramesIn(args[0]); err != nil {
					return err
				}
			}
			if out == "" {
				out = filepath.Join(a.cfg.Output.Dir, "loop.gif")
			}

			opt, err := pipeline.EncoderOptions(a.cfg)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("delay") {
				opt.Delay = delay
			}
			if flags.Changed("backdrop") {
				if opt.Backdrop, err = loop.ParseColor(backdrop); err != nil {
					return err
				}
			}
			if flags.Changed("alpha-threshold") {
				if threshold < 0 || threshold > 255 {
					return fmt.Errorf("--alpha-threshold must be in [0,255], got %d", threshold)
				}
				opt.AlphaThreshold = uint8(threshold)
			}
			if flags.Changed("max-colors") {
				opt.MaxColors = maxColors
			}

			if err := loop.EncodeFiles(frames, out, opt); err != nil {
				return err
			}
			a.log.Info("encoded", zap.String("output", out), zap.Int("frames", len(frames)))
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "GIF path (default <output-dir>/loop.gif)")
	cmd.Flags().DurationVar(&delay, "delay", 50*time.Millisecond, "per-frame delay")
	cmd.Flags().StringVar(&backdrop, "backdrop", "#000000", "color partially transparent pixels are flattened onto")
	cmd.Flags().IntVar(&threshold, "alpha-threshold", 128, "alpha above which a pixel is opaque")
	cmd.Flags().IntVar(&maxColors, "max-colors", 255, "opaque palette size (1-255)")
	return cmd
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
