package main

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Faultbox/turntable/internal/pipeline"
)

func newGenerateCmd(a *app) *cobra.Command {
	var (
		asset    pipeline.Asset
		from     string
		rerender bool
	)

	cmd := &cobra.Command{
		Use:   "generate <name>",
		Short: "Run the sprite pipeline for one asset",
		Long: `Generate runs one asset through the stages of its class:

  concept    text to image (Gemini)
  clean      background removal (fal birefnet)
  stills     transparent thumbnails
  iso        isometric projection (tiles)
  model      image to 3D (fal Tripo)
  frames     orbit capture or isometric snapshots
  animation  transparent looping GIF

Working files live in <output-dir>/<name>/; published files in <output-dir>/.
A failed run can be resumed with --from <stage>.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asset.Name = args[0]
			opt, err := runOptions(from, rerender)
			if err != nil {
				return err
			}
			res, err := a.runner().Run(cmd.Context(), asset, opt)
			if err != nil {
				return err
			}
			a.log.Info("generated", zap.String("asset", res.Asset), zap.String("took", formatDuration(res.Duration)))
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(res.Outputs, "\n"))
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&asset.Class, "class", "", "asset class ("+strings.Join(pipeline.ClassNames(), ", ")+")")
	flags.StringVar(&asset.Prompt, "prompt", "", "subject description for the concept art")
	flags.StringVar(&asset.Image, "image", "", "use this image as the concept art")
	flags.StringVar(&asset.Model, "model", "", "use this mesh instead of generating one")
	flags.StringVar(&asset.Preset, "preset", "", "override the class lighting preset")
	flags.IntVar(&asset.Frames, "frames", 0, "override the class frame count")
	stageFlags(cmd, &from, &rerender)
	_ = cmd.MarkFlagRequired("class")
	return cmd
}

func newBatchCmd(a *app) *cobra.Command {
	var (
		from     string
		rerender bool
		report   string
	)

	cmd := &cobra.Command{
		Use:   "batch <manifest.yaml>",
		Short: "Run the sprite pipeline for every asset of a manifest",
		Long: `Batch runs every asset listed in a YAML manifest, several at a time
(batch.parallelism). A failing asset does not stop the others; the tally
lists every success and every failure with the stage it failed in.

Manifest format:

  assets:
    - name: mayor
      class: council
      prompt: a distinguished lobster mayor with a sash`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			assets, err := pipeline.LoadManifest(args[0])
			if err != nil {
				return err
			}
			opt, err := runOptions(from, rerender)
			if err != nil {
				return err
			}

			tally, runErr := a.runner().Batch(cmd.Context(), assets, opt)
			printTally(cmd, tally)
			if report != "" {
				if err := tally.WriteYAML(report); err != nil {
					return err
				}
			}
			if runErr != nil {
				return fmt.Errorf("%d of %d assets failed", len(tally.Failed), len(assets))
			}
			return nil
		},
	}

	stageFlags(cmd, &from, &rerender)
	cmd.Flags().StringVar(&report, "report", "", "write the tally as YAML to this file")
	return cmd
}

func printTally(cmd *cobra.Command, t *pipeline.Tally) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ASSET\tSTATUS\tDETAIL")
	for _, r := range t.Succeeded {
		fmt.Fprintf(w, "%s\tok\t%d outputs in %s\n", r.Asset, len(r.Outputs), formatDuration(r.Duration))
	}
	for _, f := range t.Failed {
		fmt.Fprintf(w, "%s\tfailed (%s)\t%s\n", f.Asset, f.Stage, f.Error)
	}
	w.Flush()
}

func newClassesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "classes",
		Short: "List the built-in asset classes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CLASS\tPRESET\tFRAMES\tRESOLUTION\tSTILLS\tSTAGES")
			for _, name := range pipeline.ClassNames() {
				c := pipeline.Classes[name]
				frames := "-"
				switch {
				case len(c.Orientations) > 0:
					frames = fmt.Sprintf("%d views", len(c.Orientations))
				case c.Frames > 0:
					frames = strconv.Itoa(c.Frames)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					c.Name, orDash(string(c.Preset)), frames, orDash(sizeString(c.Resolution)), joinInts(c.Stills), joinStages(c.Stages))
			}
			return w.Flush()
		},
	}
}

func sizeString(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func joinInts(v []int) string {
	if len(v) == 0 {
		return "-"
	}
	s := make([]string, len(v))
	for i, n := range v {
		s[i] = strconv.Itoa(n)
	}
	return strings.Join(s, ",")
}

func joinStages(v []pipeline.Stage) string {
	s := make([]string, len(v))
	for i, st := range v {
		s[i] = string(st)
	}
	return strings.Join(s, " > ")
}
