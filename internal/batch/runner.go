// File: internal/batch/runner.go
// Description: Sequential batch driver. Walks the compound list one entry at
// a time, paces submissions so the remote service is not hammered, and keeps
// going past individual failures.
package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/andrilaw/swissbatch/api/schemas"
	"github.com/andrilaw/swissbatch/internal/dataset"
)

// CompoundProcessor runs the full prediction workflow for one compound,
// writing its artifacts into outDir.
type CompoundProcessor interface {
	Process(ctx context.Context, compound schemas.Compound, outDir string) error
}

// Runner executes a batch strictly sequentially. Concurrency is deliberately
// absent: each compound ends in a human handoff, and an operator can only
// attend to one browser window at a time.
type Runner struct {
	proc    CompoundProcessor
	runDir  string
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewRunner creates a Runner writing per-compound folders under runDir and
// spacing compounds at least delay apart.
func NewRunner(proc CompoundProcessor, runDir string, delay time.Duration, logger *zap.Logger) *Runner {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if delay > 0 {
		limiter = rate.NewLimiter(rate.Every(delay), 1)
	}
	return &Runner{
		proc:    proc,
		runDir:  runDir,
		limiter: limiter,
		logger:  logger.Named("batch"),
	}
}

// Run processes every compound in order. A failed compound is tallied and
// skipped, never aborting the batch; only context cancellation stops the run
// early. The returned BatchResult is valid in both cases.
func (r *Runner) Run(ctx context.Context, compounds []schemas.Compound) (schemas.BatchResult, error) {
	var result schemas.BatchResult

	r.logger.Info("Starting batch run.",
		zap.Int("compounds", len(compounds)),
		zap.String("run_dir", r.runDir))

	for i, compound := range compounds {
		if err := r.limiter.Wait(ctx); err != nil {
			r.logger.Warn("Batch interrupted.", zap.Error(err))
			return result, fmt.Errorf("batch interrupted: %w", err)
		}

		seq := i + 1
		outDir := filepath.Join(r.runDir, dataset.FolderName(seq, compound.Name))
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			result.FailCount++
			r.logger.Error("Could not create compound output folder.",
				zap.String("compound", compound.Name),
				zap.String("dir", outDir),
				zap.Error(err))
			continue
		}

		r.logger.Info("Processing compound.",
			zap.Int("seq", seq),
			zap.Int("total", len(compounds)),
			zap.String("name", compound.Name),
			zap.String("smiles", compound.Smiles))

		if err := r.proc.Process(ctx, compound, outDir); err != nil {
			result.FailCount++
			r.logger.Error("Compound failed.",
				zap.String("name", compound.Name),
				zap.Error(err))
			if ctx.Err() != nil {
				return result, fmt.Errorf("batch interrupted: %w", ctx.Err())
			}
			continue
		}
		result.SuccessCount++
	}

	r.logger.Info("Batch run finished.",
		zap.Int("succeeded", result.SuccessCount),
		zap.Int("failed", result.FailCount),
		zap.Int("total", result.Total()))
	return result, nil
}
