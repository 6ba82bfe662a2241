package main

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Faultbox/turntable/internal/config"
	"github.com/Faultbox/turntable/internal/fal"
	"github.com/Faultbox/turntable/internal/gemini"
	"github.com/Faultbox/turntable/internal/logger"
	"github.com/Faultbox/turntable/internal/pipeline"
	"github.com/Faultbox/turntable/internal/render"
	"github.com/Faultbox/turntable/internal/render/blender"
	"github.com/Faultbox/turntable/internal/render/raster"
)

// app carries the state shared by every subcommand.
type app struct {
	configPath string
	overrides  config.Overrides

	cfg *config.Config
	log *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "turntable",
		Short: "Orbit captures and transparent sprite loops from 3D meshes",
		Long: `Turntable renders a mesh from a fixed orthographic camera while it rotates,
and encodes the frames into a looping GIF whose transparent background
survives palette quantization.

It also drives the full sprite pipeline: concept art, background removal,
image-to-3D, stills, orbit frames and the animation.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// .env.local takes priority; neither file is required.
			_ = godotenv.Load(".env.local")
			_ = godotenv.Load()
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logger.Sync()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "config file (default ./"+config.FileName+" or the user config dir)")
	flags.BoolVar(&a.overrides.Debug, "debug", false, "enable debug logging")
	flags.StringVar(&a.overrides.Backend, "backend", "", "renderer backend: blender or software")
	flags.StringVar(&a.overrides.BlenderPath, "blender", "", "path to the blender executable")
	flags.StringVarP(&a.overrides.OutputDir, "output-dir", "o", "", "output directory")
	flags.IntVarP(&a.overrides.Parallelism, "parallel", "j", 0, "assets processed concurrently by batch")
	flags.StringVar(&a.overrides.LogFile, "log-file", "", "also write logs to this file")

	cmd.AddCommand(
		newSpinCmd(a),
		newEncodeCmd(a),
		newIsoCmd(a),
		newStillsCmd(a),
		newFrameCmd(a),
		newBatchCmd(a),
		newGenerateCmd(a),
		newClassesCmd(a),
		newConfigCmd(a),
	)
	return cmd
}

func (a *app) setup() error {
	cfg, err := config.Load(a.configPath, a.overrides)
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		return fmt.Errorf("logger error: %w", err)
	}
	a.cfg = cfg
	a.log = logger.Log
	logger.Sugar.Debugf("config: %+v", cfg)
	return nil
}

// renderer returns the configured backend.
func (a *app) renderer() render.Renderer {
	switch a.cfg.Renderer.Backend {
	case "software":
		return raster.New(a.cfg.Renderer.Supersample, a.log.Named("raster"))
	default:
		return blender.New(a.cfg.Renderer.BlenderPath, a.log.Named("blender"))
	}
}

// runner wires the pipeline to the configured renderer and providers.
func (a *app) runner() *pipeline.Runner {
	p := a.cfg.Providers

	concepts := gemini.New(p.GeminiModel, a.log.Named("gemini"))

	falClient := fal.New(p.FalBaseURL, p.PollInterval, a.log.Named("fal"))
	if p.BackgroundModel != "" {
		falClient.BackgroundModel = p.BackgroundModel
	}
	if p.MeshModel != "" {
		falClient.MeshModel = p.MeshModel
	}

	return &pipeline.Runner{
		Config:   a.cfg,
		Renderer: a.renderer(),
		Concepts: concepts,
		Cleaner:  falClient,
		Mesher:   falClient,
		Logger:   a.log.Named("pipeline"),
	}
}

// stageFlags adds --from and --rerender to cmd.
func stageFlags(cmd *cobra.Command, from *string, rerender *bool) {
	cmd.Flags().StringVar(from, "from", "", "resume from this stage, reusing earlier outputs")
	cmd.Flags().BoolVar(rerender, "rerender", false, "re-render frames and animation only (same as --from frames)")
}

func runOptions(from string, rerender bool) (pipeline.RunOptions, error) {
	if rerender {
		if from != "" {
			return pipeline.RunOptions{}, fmt.Errorf("--rerender and --from are mutually exclusive")
		}
		return pipeline.RunOptions{From: pipeline.StageFrames}, nil
	}
	st, err := pipeline.ParseStage(from)
	if err != nil {
		return pipeline.RunOptions{}, err
	}
	return pipeline.RunOptions{From: st}, nil
}

func formatDuration(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}
