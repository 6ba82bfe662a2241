package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/Faultbox/turntable/internal/logger"
)

// Failure is one failed asset of a batch.
type Failure struct {
	Asset string `yaml:"asset"`
	Stage Stage  `yaml:"stage"`
	Error string `yaml:"error"`
}

// Tally is the per-asset outcome of a batch, in manifest order.
type Tally struct {
	Succeeded []Result  `yaml:"succeeded"`
	Failed    []Failure `yaml:"failed"`
}

// OK reports whether every asset succeeded.
func (t *Tally) OK() bool { return len(t.Failed) == 0 }

// WriteYAML writes the tally to path.
func (t *Tally) WriteYAML(path string) error {
	data, err := yaml.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Batch runs every asset with at most Batch.Parallelism in flight. A
// failing asset never stops the others; the returned error combines
// every failure and the Tally is always complete.
func (r *Runner) Batch(ctx context.Context, assets []Asset, opt RunOptions) (*Tally, error) {
	log := logger.OrNop(r.Logger)
	limit := r.config().Batch.Parallelism
	if limit < 1 {
		limit = 1
	}

	results := make([]*Result, len(assets))
	errs := make([]error, len(assets))

	var g errgroup.Group
	g.SetLimit(limit)
	for i, a := range assets {
		g.Go(func() error {
			results[i], errs[i] = r.Run(ctx, a, opt)
			return nil
		})
	}
	_ = g.Wait()

	tally := &Tally{}
	var combined error
	for i, a := range assets {
		if errs[i] == nil {
			tally.Succeeded = append(tally.Succeeded, *results[i])
			continue
		}
		f := Failure{Asset: a.Name, Stage: opt.From, Error: errs[i].Error()}
		var se *StageError
		if errors.As(errs[i], &se) {
			f.Stage = se.Stage
		}
		tally.Failed = append(tally.Failed, f)
		combined = multierr.Append(combined, errs[i])
	}

	log.Info("batch complete",
		zap.Int("assets", len(assets)),
		zap.Int("succeeded", len(tally.Succeeded)),
		zap.Int("failed", len(tally.Failed)))
	return tally, combined
}
