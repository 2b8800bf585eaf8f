// File: internal/workflow/orchestrator.go
// Description: Drives one compound through the fixed stage sequence against
// the prediction page, wrapped in the retry policy. Every attempt runs on a
// freshly acquired session which is always released when the attempt ends.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/andrilaw/swissbatch/api/schemas"
	"github.com/andrilaw/swissbatch/internal/config"
)

// Fixed element contract of the prediction page. If one of these selectors
// stops matching, the page structure has changed and the attempt fails.
var (
	smilesInput     = schemas.CSS("#smilesBox")
	organismRadio   = schemas.XPath(`//input[@name='organism' and @value='Homo_sapiens']`)
	submitButton    = schemas.CSS("#submitButton")
	resultsTable    = schemas.CSS("#results_table")
	resultsFallback = schemas.CSS("table.display")
)

const (
	organismValue = "Homo_sapiens"

	organismCheckedScript = `(() => {
		const el = document.querySelector("input[name='organism'][value='Homo_sapiens']");
		return !!(el && el.checked);
	})()`

	organismClickScript = `(() => {
		const el = document.querySelector("input[name='organism'][value='Homo_sapiens']");
		if (el) { el.click(); }
	})()`

	scrollToSubmitScript = `document.getElementById('submitButton').scrollIntoView(true);`

	// The page's own submission routine. Simulated button clicks are
	// unreliable against this page, so the workflow calls it directly.
	submitScript = `formSubmit();`
)

// Settle pauses between stages, matching the cadence the page tolerates.
const (
	inputSettleDelay  = 1 * time.Second
	fillSettleDelay   = 2 * time.Second
	scrollSettleDelay = 500 * time.Millisecond
)

// fillScript writes the SMILES into the input field and emits the synthetic
// notifications the page's listeners expect.
func fillScript(smiles string) string {
	return fmt.Sprintf(`(() => {
		const el = document.getElementById('smilesBox');
		el.value = %s;
		el.dispatchEvent(new Event('change'));
		el.dispatchEvent(new Event('input'));
	})()`, strconv.Quote(smiles))
}

// Orchestrator runs the per-compound state machine.
type Orchestrator struct {
	factory schemas.SessionFactory
	monitor *Monitor
	cfg     config.WorkflowConfig
	logger  *zap.Logger

	// sleep is swappable so tests do not pay real delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates an Orchestrator with its dependencies provided explicitly.
func New(factory schemas.SessionFactory, monitor *Monitor, cfg config.WorkflowConfig, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		factory: factory,
		monitor: monitor,
		cfg:     cfg,
		logger:  logger.Named("workflow"),
		sleep:   sleepContext,
	}
}

// Process runs up to MaxRetries attempts for one compound. Each attempt gets
// a fresh session; between attempts a linearly increasing delay is applied.
// The returned error is the final per-compound failure after exhausting all
// retries; nil means the attempt reached handoff and the operator finished.
func (o *Orchestrator) Process(ctx context.Context, compound schemas.Compound, outDir string) error {
	log := o.logger.With(zap.String("compound", compound.Name))

	var lastErr error
	for attempt := 1; attempt <= o.cfg.MaxRetries; attempt++ {
		log.Info("Starting prediction attempt.",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", o.cfg.MaxRetries))

		err := o.runAttempt(ctx, compound, outDir, attempt)
		if err == nil {
			log.Info("Compound processed; operator completed the session.", zap.Int("attempt", attempt))
			return nil
		}
		lastErr = err

		var attemptErr *AttemptError
		if errors.As(err, &attemptErr) {
			log.Error("Prediction attempt failed.",
				zap.Int("attempt", attempt),
				zap.String("stage", attemptErr.Stage),
				zap.String("kind", string(attemptErr.Kind)),
				zap.Error(attemptErr.Err))
		} else {
			log.Error("Prediction attempt failed.", zap.Int("attempt", attempt), zap.Error(err))
		}

		if ctx.Err() != nil {
			return fmt.Errorf("processing aborted: %w", ctx.Err())
		}

		if attempt < o.cfg.MaxRetries {
			delay := time.Duration(attempt) * o.cfg.RetryBaseDelay
			log.Info("Retrying.", zap.Duration("delay", delay))
			if serr := o.sleep(ctx, delay); serr != nil {
				return fmt.Errorf("processing aborted: %w", serr)
			}
		}
	}

	return fmt.Errorf("all %d attempts failed for %q: %w", o.cfg.MaxRetries, compound.Name, lastErr)
}

// runAttempt traverses the stage sequence once. The session is released on
// every exit path; on failure a best-effort diagnostic screenshot is taken
// first.
func (o *Orchestrator) runAttempt(ctx context.Context, compound schemas.Compound, outDir string, attempt int) (err error) {
	sess, acquireErr := o.factory.Acquire(ctx)
	if acquireErr != nil {
		return &AttemptError{Kind: FailDriverUnavailable, Stage: StageAcquire, Err: acquireErr}
	}

	log := o.logger.With(
		zap.String("compound", compound.Name),
		zap.Int("attempt", attempt),
		zap.String("session_id", sess.ID()))

	defer func() {
		if err != nil {
			o.saveScreenshot(ctx, sess, outDir, "error_screenshot", attempt)
		}
		if cerr := sess.Close(ctx); cerr != nil {
			log.Warn("Session did not close cleanly.", zap.Error(cerr))
		}
	}()

	// Stage 1: Launch.
	log.Info("Accessing prediction website.", zap.String("url", o.cfg.PageURL))
	if nerr := sess.Navigate(ctx, o.cfg.PageURL, o.cfg.PageLoadTimeout); nerr != nil {
		return &AttemptError{Kind: FailPageLoad, Stage: StageLaunch, Err: nerr}
	}

	// Stage 2: LocateInput. The input field is the load-bearing part of the
	// page contract; not finding it is a structural failure.
	log.Info("Waiting for SMILES input field.")
	if werr := sess.WaitClickable(ctx, smilesInput, o.cfg.InputTimeout); werr != nil {
		return &AttemptError{Kind: FailInputNotFound, Stage: StageLocateInput, Err: werr}
	}
	log.Info("SMILES input field ready.")
	if serr := o.sleep(ctx, inputSettleDelay); serr != nil {
		return fmt.Errorf("attempt aborted: %w", serr)
	}

	// Stage 3: SelectOption. Degraded, never fatal: the page may preselect
	// the organism.
	o.selectOrganism(ctx, sess, log)

	// Stage 4: FillAndNotify.
	log.Info("Filling SMILES input.", zap.String("smiles", compound.Smiles))
	if ferr := sess.Evaluate(ctx, fillScript(compound.Smiles), nil); ferr != nil {
		return &AttemptError{Kind: FailSubmit, Stage: StageFill, Err: ferr}
	}
	if serr := o.sleep(ctx, fillSettleDelay); serr != nil {
		return fmt.Errorf("attempt aborted: %w", serr)
	}

	// Stage 5: Submit.
	log.Info("Submitting prediction request.")
	if werr := sess.WaitPresent(ctx, submitButton, o.cfg.SubmitTimeout); werr != nil {
		o.saveScreenshot(ctx, sess, outDir, "error_button_not_found", attempt)
		return &AttemptError{Kind: FailSubmit, Stage: StageSubmit, Err: werr}
	}
	if serr := sess.Evaluate(ctx, scrollToSubmitScript, nil); serr != nil {
		log.Debug("Could not scroll submit control into view.", zap.Error(serr))
	}
	if serr := o.sleep(ctx, scrollSettleDelay); serr != nil {
		return fmt.Errorf("attempt aborted: %w", serr)
	}
	if serr := sess.Evaluate(ctx, submitScript, nil); serr != nil {
		o.saveScreenshot(ctx, sess, outDir, "error_js_click", attempt)
		return &AttemptError{Kind: FailSubmit, Stage: StageSubmit, Err: serr}
	}

	// Stage 6: AwaitResults, with a secondary selector on a shorter budget.
	log.Info("Waiting for results table.", zap.Duration("timeout", o.cfg.ResultsTimeout))
	if werr := sess.WaitPresent(ctx, resultsTable, o.cfg.ResultsTimeout); werr != nil {
		if !errors.Is(werr, schemas.ErrStageTimeout) {
			return &AttemptError{Kind: FailResults, Stage: StageAwaitResults, Err: werr}
		}
		log.Warn("Primary results selector timed out; trying fallback.",
			zap.String("fallback", resultsFallback.Query),
			zap.Duration("timeout", o.cfg.ResultsFallbackTimeout))
		if ferr := sess.WaitPresent(ctx, resultsFallback, o.cfg.ResultsFallbackTimeout); ferr != nil {
			return &AttemptError{Kind: FailResults, Stage: StageAwaitResults, Err: ferr}
		}
	}
	log.Info("Results table loaded.")

	// Stage 7: HumanHandoff. Success is unconditional once the monitor
	// returns; the orchestrator does not validate what the operator did.
	o.announceHandoff(log, compound, outDir)
	if herr := o.monitor.Await(ctx, sess); herr != nil {
		return fmt.Errorf("handoff interrupted: %w", herr)
	}
	return nil
}

// selectOrganism ensures the organism radio is selected, preferring a direct
// click and falling back to a scripted activation when the click is
// rejected. Every failure here is a logged degraded condition.
func (o *Orchestrator) selectOrganism(ctx context.Context, sess schemas.SessionContext, log *zap.Logger) {
	log.Info("Ensuring organism selection.", zap.String("organism", organismValue))

	if err := sess.WaitPresent(ctx, organismRadio, o.cfg.OptionTimeout); err != nil {
		log.Warn("Organism control not found; continuing with page defaults.", zap.Error(err))
		return
	}

	var checked bool
	if err := sess.Evaluate(ctx, organismCheckedScript, &checked); err != nil {
		log.Warn("Could not read organism selection state.", zap.Error(err))
		return
	}
	if checked {
		log.Info("Organism already selected by default.")
		return
	}

	if err := sess.Click(ctx, organismRadio); err != nil {
		log.Warn("Direct click rejected; using scripted activation.", zap.Error(err))
		if jerr := sess.Evaluate(ctx, organismClickScript, nil); jerr != nil {
			log.Warn("Scripted organism activation failed; continuing.", zap.Error(jerr))
			return
		}
	}
	log.Info("Organism selected.", zap.String("organism", organismValue))
}

// announceHandoff narrates the operator instructions into the run log.
func (o *Orchestrator) announceHandoff(log *zap.Logger, compound schemas.Compound, outDir string) {
	abs, err := filepath.Abs(outDir)
	if err != nil {
		abs = outDir
	}
	log.Info("Analysis displayed in browser; manual steps required.",
		zap.String("compound", compound.Name),
		zap.String("output_folder", abs))
	log.Info("Download result files and screenshots into the output folder, then close the browser window to continue.")
}

// saveScreenshot captures a diagnostic screenshot into the compound's output
// directory. Failures are logged, never escalated.
func (o *Orchestrator) saveScreenshot(ctx context.Context, sess schemas.SessionContext, outDir, prefix string, attempt int) {
	shot, err := sess.Screenshot(ctx)
	if err != nil {
		o.logger.Warn("Failed to capture diagnostic screenshot.", zap.Error(err))
		return
	}

	path := filepath.Join(outDir, fmt.Sprintf("%s_attempt_%d.png", prefix, attempt))
	if err := os.WriteFile(path, shot, 0o644); err != nil {
		o.logger.Warn("Failed to save diagnostic screenshot.", zap.String("path", path), zap.Error(err))
		return
	}
	o.logger.Info("Diagnostic screenshot saved.", zap.String("path", path))
}

// sleepContext pauses for d unless ctx ends first.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
