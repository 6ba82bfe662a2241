package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Faultbox/turntable/internal/config"
	"github.com/Faultbox/turntable/internal/imageio"
	"github.com/Faultbox/turntable/internal/iso"
	"github.com/Faultbox/turntable/internal/logger"
	"github.com/Faultbox/turntable/internal/loop"
	"github.com/Faultbox/turntable/internal/orbit"
	"github.com/Faultbox/turntable/internal/render"
	"github.com/Faultbox/turntable/internal/stills"
)

// ConceptGenerator turns a text prompt into PNG concept art.
type ConceptGenerator interface {
	Generate(ctx context.Context, prompt string, refs ...[]byte) ([]byte, error)
}

// BackgroundRemover cuts the subject out of a PNG.
type BackgroundRemover interface {
	RemoveBackground(ctx context.Context, png []byte) ([]byte, error)
}

// MeshGenerator turns a PNG into GLB bytes.
type MeshGenerator interface {
	ImageToMesh(ctx context.Context, png []byte) ([]byte, error)
}

var (
	// ErrMissingInput is returned when a resumed stage finds no output of
	// the stage before it.
	ErrMissingInput = errors.New("missing stage input")
	// ErrNoProvider is returned when a stage needs a generator that was
	// not configured.
	ErrNoProvider = errors.New("no provider configured")
)

// StageError records the asset and stage a failure happened in, so the
// run can be resumed from that stage.
type StageError struct {
	Asset string
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: stage %s: %v", e.Asset, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// RunOptions controls a single asset run.
type RunOptions struct {
	// From skips every stage before it and reuses their outputs.
	From Stage
}

// Result lists what a run produced.
type Result struct {
	Asset    string        `yaml:"asset"`
	Class    string        `yaml:"class"`
	Outputs  []string      `yaml:"outputs"`
	Duration time.Duration `yaml:"duration"`
}

// Runner drives assets through their class stages.
type Runner struct {
	Config   *config.Config
	Renderer render.Renderer
	Concepts ConceptGenerator
	Cleaner  BackgroundRemover
	Mesher   MeshGenerator
	Logger   *zap.Logger
}

type job struct {
	asset  Asset
	class  Class
	layout Layout
	log    *zap.Logger
	result *Result
	frames []string
}

func (j *job) output(paths ...string) {
	j.result.Outputs = append(j.result.Outputs, paths...)
}

// providerContext bounds one call to an external generator.
func (r *Runner) providerContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if d := r.config().Providers.RequestTimeout; d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}

func (r *Runner) config() *config.Config {
	if r.Config != nil {
		return r.Config
	}
	return config.Default()
}

// Run produces every output of asset a, starting at opt.From.
func (r *Runner) Run(ctx context.Context, a Asset, opt RunOptions) (*Result, error) {
	start := time.Now()
	from := opt.From
	if from == "" {
		from = StageConcept
	}
	if from.index() < 0 {
		return nil, fmt.Errorf("unknown stage %q", from)
	}
	if err := a.Validate(); err != nil {
		return nil, &StageError{Asset: a.Name, Stage: from, Err: err}
	}
	class, err := a.class()
	if err != nil {
		return nil, &StageError{Asset: a.Name, Stage: from, Err: err}
	}

	j := &job{
		asset:  a,
		class:  class,
		layout: Layout{Root: r.config().Output.Dir, Name: a.Name},
		log:    logger.OrNop(r.Logger).With(logger.Asset(a.Name)),
		result: &Result{Asset: a.Name, Class: class.Name},
	}
	if err := os.MkdirAll(j.layout.Dir(), 0755); err != nil {
		return nil, &StageError{Asset: a.Name, Stage: from, Err: err}
	}

	for _, st := range stageOrder[from.index():] {
		if !class.Has(st) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, &StageError{Asset: a.Name, Stage: st, Err: err}
		}
		stageStart := time.Now()
		j.log.Info("stage started", logger.Stage(string(st)))
		if err := r.stage(ctx, j, st); err != nil {
			j.log.Error("stage failed", logger.Stage(string(st)), zap.Error(err))
			return nil, &StageError{Asset: a.Name, Stage: st, Err: err}
		}
		j.log.Debug("stage done", logger.Stage(string(st)), zap.Duration("took", time.Since(stageStart)))
	}

	j.result.Duration = time.Since(start)
	j.log.Info("asset complete", zap.Int("outputs", len(j.result.Outputs)), zap.Duration("took", j.result.Duration))
	return j.result, nil
}

func (r *Runner) stage(ctx context.Context, j *job, st Stage) error {
	switch st {
	case StageConcept:
		return r.concept(ctx, j)
	case StageClean:
		return r.clean(ctx, j)
	case StageStills:
		return r.stills(j)
	case StageIso:
		return r.iso(j)
	case StageModel:
		return r.model(ctx, j)
	case StageFrames:
		return r.frames(ctx, j)
	case StageAnimation:
		return r.animation(j)
	default:
		return fmt.Errorf("unknown stage %q", st)
	}
}

func (r *Runner) concept(ctx context.Context, j *job) error {
	out := j.layout.Concept()
	if j.asset.Image != "" {
		img, err := imageio.ReadNRGBA(j.asset.Image)
		if err != nil {
			return err
		}
		return imageio.WritePNG(out, img)
	}
	if j.asset.Prompt == "" {
		// Only a model was supplied; later stages start from it.
		return nil
	}
	if r.Concepts == nil {
		return fmt.Errorf("concept generator: %w", ErrNoProvider)
	}
	ctx, cancel := r.providerContext(ctx)
	defer cancel()
	data, err := r.Concepts.Generate(ctx, j.class.Prompt(j.asset.Prompt))
	if err != nil {
		return err
	}
	return writeFile(out, data)
}

func (r *Runner) clean(ctx context.Context, j *job) error {
	if j.asset.Model != "" && j.asset.Prompt == "" && j.asset.Image == "" {
		return nil
	}
	src, err := readInput(j.layout.Concept())
	if err != nil {
		return err
	}
	if r.Cleaner == nil {
		return fmt.Errorf("background remover: %w", ErrNoProvider)
	}
	ctx, cancel := r.providerContext(ctx)
	defer cancel()
	data, err := r.Cleaner.RemoveBackground(ctx, src)
	if err != nil {
		return err
	}
	return writeFile(j.layout.Clean(), data)
}

// cutout is the image later stages start from: the cleaned cut-out when
// the class has a clean stage, the concept art otherwise.
func (j *job) cutout() string {
	if j.class.Has(StageClean) {
		return j.layout.Clean()
	}
	return j.layout.Concept()
}

func (r *Runner) stills(j *job) error {
	if _, err := os.Stat(j.cutout()); err != nil && j.asset.Model != "" {
		// Model-only assets have no source art.
		return nil
	}
	src, err := readImage(j.cutout())
	if err != nil {
		return err
	}
	for _, size := range j.class.Stills {
		img, err := stills.Fit(src, size)
		if err != nil {
			return err
		}
		p := j.layout.Still(j.class, size)
		if err := imageio.WritePNG(p, img); err != nil {
			return err
		}
		j.output(p)
	}
	return nil
}

func (r *Runner) iso(j *job) error {
	src, err := readImage(j.layout.Concept())
	if err != nil {
		return err
	}
	if err := imageio.WritePNG(j.layout.Sprite(), src); err != nil {
		return err
	}
	proj, err := iso.Project(src)
	if err != nil {
		return err
	}
	if err := imageio.WritePNG(j.layout.Iso(), proj); err != nil {
		return err
	}
	j.output(j.layout.Sprite(), j.layout.Iso())
	return nil
}

func (r *Runner) model(ctx context.Context, j *job) error {
	out := j.layout.Model()
	if j.asset.Model != "" {
		data, err := os.ReadFile(j.asset.Model)
		if err != nil {
			return err
		}
		return writeFile(out, data)
	}
	src, err := readInput(j.cutout())
	if err != nil {
		return err
	}
	if r.Mesher == nil {
		return fmt.Errorf("mesh generator: %w", ErrNoProvider)
	}
	ctx, cancel := r.providerContext(ctx)
	defer cancel()
	data, err := r.Mesher.ImageToMesh(ctx, src)
	if err != nil {
		return err
	}
	return writeFile(out, data)
}

func (r *Runner) sequencer(j *job) *orbit.Sequencer {
	cfg := r.config()
	return &orbit.Sequencer{
		Renderer:   r.Renderer,
		Preset:     j.class.Preset,
		Plan:       orbit.NewPlan(j.class.Frames),
		Resolution: j.class.Resolution,
		Samples:    cfg.Renderer.Samples,
		Timeout:    cfg.Renderer.BatchTimeout,
		Logger:     j.log,
		OnFrame: func(done, total int) {
			j.log.Debug("frame rendered", logger.Frame(done), zap.Int("total", total))
		},
	}
}

func (r *Runner) frames(ctx context.Context, j *job) error {
	if r.Renderer == nil {
		return errors.New("no renderer configured")
	}
	model := j.layout.Model()
	if _, err := os.Stat(model); err != nil {
		return fmt.Errorf("%s: %w", model, ErrMissingInput)
	}
	seq := r.sequencer(j)

	scratch := j.layout.Scratch(uuid.NewString())
	if err := os.MkdirAll(scratch, 0755); err != nil {
		return err
	}

	if len(j.class.Orientations) > 0 {
		return r.snapshots(ctx, j, seq, model, scratch)
	}

	res, err := seq.Run(ctx, model, scratch)
	if err != nil {
		os.RemoveAll(scratch)
		return err
	}

	dest := j.layout.Frames()
	if err := os.RemoveAll(dest); err != nil {
		os.RemoveAll(scratch)
		return err
	}
	if err := os.Rename(scratch, dest); err != nil {
		os.RemoveAll(scratch)
		return err
	}
	frames := seq.Plan.LoopFrames(res.Frames)
	j.frames = make([]string, len(frames))
	for i, f := range frames {
		j.frames[i] = filepath.Join(dest, filepath.Base(f))
	}
	return nil
}

// snapshots renders every orientation into scratch and publishes them
// only once all of them rendered.
func (r *Runner) snapshots(ctx context.Context, j *job, seq *orbit.Sequencer, model, scratch string) error {
	defer os.RemoveAll(scratch)

	seq.Timeout = r.config().Renderer.FrameTimeout * time.Duration(len(j.class.Orientations))
	rendered, err := seq.Snapshots(ctx, model, filepath.Join(scratch, j.asset.Name), j.class.Orientations)
	if err != nil {
		return err
	}

	base := j.layout.SnapshotBase()
	published := make([]string, 0, len(rendered))
	for _, src := range rendered {
		dest := filepath.Join(filepath.Dir(base), filepath.Base(src))
		if err := os.Rename(src, dest); err != nil {
			for _, p := range published {
				os.Remove(p)
			}
			return err
		}
		published = append(published, dest)
	}
	j.output(published...)
	return nil
}

func (r *Runner) animation(j *job) error {
	cfg := r.config()
	frames := j.frames
	if frames == nil {
		var err error
		if frames, err = FramesIn(j.layout.Frames()); err != nil {
			return err
		}
	}

	opt, err := EncoderOptions(cfg)
	if err != nil {
		return err
	}
	if j.class.FrameDelay > 0 {
		opt.Delay = j.class.FrameDelay
	}

	out := j.layout.Animation()
	if err := loop.EncodeFiles(frames, out, opt); err != nil {
		return err
	}
	j.output(out)

	if !cfg.Output.KeepFrames {
		if err := os.RemoveAll(j.layout.Frames()); err != nil {
			j.log.Warn("failed to remove frames", zap.Error(err))
		}
	}
	return nil
}

// EncoderOptions returns the loop encoder settings of cfg.
func EncoderOptions(cfg *config.Config) (loop.Options, error) {
	opt := loop.DefaultOptions()
	opt.Delay = cfg.Encoder.FrameDelay
	opt.AlphaThreshold = cfg.Encoder.AlphaThreshold
	opt.MaxColors = cfg.Encoder.MaxColors
	if cfg.Encoder.Backdrop != "" {
		bg, err := loop.ParseColor(cfg.Encoder.Backdrop)
		if err != nil {
			return opt, fmt.Errorf("encoder.backdrop: %w", err)
		}
		opt.Backdrop = bg
	}
	return opt, nil
}

// FramesIn lists the frame_NNN.png files of dir in order.
func FramesIn(dir string) ([]string, error) {
	frames, err := filepath.Glob(filepath.Join(dir, "frame_*.png"))
	if err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("%s: no frames: %w", dir, ErrMissingInput)
	}
	sort.Strings(frames)
	return frames, nil
}

func readInput(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", path, ErrMissingInput)
	}
	return data, err
}

func readImage(path string) (*image.NRGBA, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", path, ErrMissingInput)
	}
	return imageio.ReadNRGBA(path)
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
