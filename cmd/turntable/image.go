package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Faultbox/turntable/internal/imageio"
	"github.com/Faultbox/turntable/internal/iso"
	"github.com/Faultbox/turntable/internal/stills"
)

func newIsoCmd(a *app) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "iso <image>",
		Short: "Project a flat top-down image into an isometric diamond",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				out = filepath.Join(a.cfg.Output.Dir, stem(args[0])+"_iso.png")
			}
			if err := iso.ProjectFile(args[0], out); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "output PNG (default <output-dir>/<image>_iso.png)")
	return cmd
}

func newStillsCmd(a *app) *cobra.Command {
	var (
		sizes []int
		base  string
	)

	cmd := &cobra.Command{
		Use:   "stills <image>",
		Short: "Write square transparent thumbnails of an image",
		Long: `Stills shrinks an image to fit each size, keeping its aspect ratio, and
centers it on a transparent square canvas. Images are never upscaled.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := imageio.ReadNRGBA(args[0])
			if err != nil {
				return err
			}
			if base == "" {
				base = filepath.Join(a.cfg.Output.Dir, stem(args[0])+".png")
			}
			paths, err := stills.WriteAll(src, base, sizes)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(paths, "\n"))
			return nil
		},
	}
	cmd.Flags().IntSliceVar(&sizes, "sizes", []int{256, 128, 64, 32}, "still sizes in pixels")
	cmd.Flags().StringVar(&base, "out", "", "base path; each still is written as <base>_<size>.png")
	return cmd
}
