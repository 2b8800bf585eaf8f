// internal/workflow/orchestrator_test.go
package workflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/andrilaw/swissbatch/api/schemas"
	"github.com/andrilaw/swissbatch/internal/config"
)

// -- Fakes --

// fakeSession is a scriptable schemas.SessionContext. The zero value
// succeeds at every stage and reports the browser as closed on the first
// liveness probe, which makes the handoff return immediately.
type fakeSession struct {
	mu sync.Mutex

	id string

	navigateErr      error
	waitClickableErr error
	// waitPresentErr maps a selector query to the error its wait returns.
	waitPresentErr map[string]error
	clickErr       error
	// evaluateErr maps a script fragment to the error evaluation returns.
	evaluateErr   map[string]error
	screenshotErr error

	// probeSuccesses is how many times Location succeeds before it starts
	// failing (the operator "closes the browser").
	probeSuccesses int

	locationCalls   int
	screenshotCalls int
	closeCalls      int
	evaluated       []string
}

func (f *fakeSession) ID() string {
	if f.id == "" {
		return "fake-session"
	}
	return f.id
}

func (f *fakeSession) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	return f.navigateErr
}

func (f *fakeSession) WaitClickable(ctx context.Context, sel schemas.Selector, timeout time.Duration) error {
	return f.waitClickableErr
}

func (f *fakeSession) WaitPresent(ctx context.Context, sel schemas.Selector, timeout time.Duration) error {
	if err, ok := f.waitPresentErr[sel.Query]; ok {
		return err
	}
	return nil
}

func (f *fakeSession) Click(ctx context.Context, sel schemas.Selector) error {
	return f.clickErr
}

func (f *fakeSession) Evaluate(ctx context.Context, script string, res interface{}) error {
	f.mu.Lock()
	f.evaluated = append(f.evaluated, script)
	f.mu.Unlock()

	for fragment, err := range f.evaluateErr {
		if strings.Contains(script, fragment) {
			return err
		}
	}
	if b, ok := res.(*bool); ok {
		*b = false // organism not preselected
	}
	return nil
}

func (f *fakeSession) Screenshot(ctx context.Context) ([]byte, error) {
	f.mu.Lock()
	f.screenshotCalls++
	f.mu.Unlock()
	if f.screenshotErr != nil {
		return nil, f.screenshotErr
	}
	return []byte("png"), nil
}

func (f *fakeSession) Location(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locationCalls++
	if f.locationCalls > f.probeSuccesses {
		return "", errors.New("target closed")
	}
	return "http://www.swisstargetprediction.ch/result.php", nil
}

func (f *fakeSession) Close(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalls++
	return nil
}

// fakeFactory hands out one fresh fakeSession per Acquire call.
type fakeFactory struct {
	err      error
	build    func(attempt int) *fakeSession
	sessions []*fakeSession
}

func (f *fakeFactory) Acquire(ctx context.Context) (schemas.SessionContext, error) {
	if f.err != nil {
		return nil, f.err
	}
	sess := &fakeSession{}
	if f.build != nil {
		sess = f.build(len(f.sessions) + 1)
	}
	f.sessions = append(f.sessions, sess)
	return sess, nil
}

// -- Helpers --

func testWorkflowConfig() config.WorkflowConfig {
	return config.WorkflowConfig{
		PageURL:                "http://www.swisstargetprediction.ch/",
		PageLoadTimeout:        60 * time.Second,
		InputTimeout:           30 * time.Second,
		OptionTimeout:          10 * time.Second,
		SubmitTimeout:          10 * time.Second,
		ResultsTimeout:         240 * time.Second,
		ResultsFallbackTimeout: 60 * time.Second,
		MaxRetries:             3,
		RetryBaseDelay:         time.Second,
		HandoffPollInterval:    time.Second,
	}
}

// newTestOrchestrator wires an orchestrator whose sleeps are recorded
// instead of slept and whose handoff polls every millisecond.
func newTestOrchestrator(factory schemas.SessionFactory, cfg config.WorkflowConfig) (*Orchestrator, *[]time.Duration) {
	o := New(factory, NewMonitor(time.Millisecond, zap.NewNop()), cfg, zap.NewNop())

	var slept []time.Duration
	o.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return ctx.Err()
	}
	return o, &slept
}

func stageTimeout() error {
	return fmt.Errorf("%w after 0s", schemas.ErrStageTimeout)
}

var aspirin = schemas.Compound{Name: "Aspirin", Smiles: "CC(=O)OC1=CC=CC=C1C(=O)O"}

// -- Tests --

func TestProcessSuccess(t *testing.T) {
	factory := &fakeFactory{}
	o, slept := newTestOrchestrator(factory, testWorkflowConfig())

	err := o.Process(context.Background(), aspirin, t.TempDir())
	require.NoError(t, err)

	require.Len(t, factory.sessions, 1, "success on the first attempt must not retry")
	sess := factory.sessions[0]
	assert.Equal(t, 1, sess.closeCalls, "the session is released exactly once")
	assert.Zero(t, sess.screenshotCalls, "no diagnostics on success")

	// The fill script carried the SMILES and the synthetic notifications.
	joined := strings.Join(sess.evaluated, "\n")
	assert.Contains(t, joined, aspirin.Smiles)
	assert.Contains(t, joined, "dispatchEvent(new Event('change'))")
	assert.Contains(t, joined, "dispatchEvent(new Event('input'))")
	assert.Contains(t, joined, "formSubmit();")

	// Settle pauses only; no retry delays.
	assert.Equal(t, []time.Duration{inputSettleDelay, fillSettleDelay, scrollSettleDelay}, *slept)
}

func TestProcessInputNotFoundExhaustsRetries(t *testing.T) {
	factory := &fakeFactory{
		build: func(attempt int) *fakeSession {
			return &fakeSession{waitClickableErr: stageTimeout()}
		},
	}
	cfg := testWorkflowConfig()
	o, slept := newTestOrchestrator(factory, cfg)

	err := o.Process(context.Background(), aspirin, t.TempDir())
	require.Error(t, err)

	var attemptErr *AttemptError
	require.ErrorAs(t, err, &attemptErr)
	assert.Equal(t, FailInputNotFound, attemptErr.Kind)
	assert.Equal(t, StageLocateInput, attemptErr.Stage)
	assert.ErrorIs(t, err, schemas.ErrStageTimeout)

	require.Len(t, factory.sessions, cfg.MaxRetries, "each retry acquires a fresh session")
	for i, sess := range factory.sessions {
		assert.Equalf(t, 1, sess.closeCalls, "session %d must be released exactly once", i+1)
		assert.Equalf(t, 1, sess.screenshotCalls, "session %d should get a diagnostic screenshot", i+1)
	}

	// Linearly increasing delays between attempts: 1*base, 2*base.
	assert.Contains(t, *slept, 1*cfg.RetryBaseDelay)
	assert.Contains(t, *slept, 2*cfg.RetryBaseDelay)
}

func TestProcessWritesFailureScreenshot(t *testing.T) {
	outDir := t.TempDir()
	factory := &fakeFactory{
		build: func(attempt int) *fakeSession {
			return &fakeSession{waitClickableErr: stageTimeout()}
		},
	}
	cfg := testWorkflowConfig()
	cfg.MaxRetries = 1
	o, _ := newTestOrchestrator(factory, cfg)

	require.Error(t, o.Process(context.Background(), aspirin, outDir))

	_, err := os.Stat(filepath.Join(outDir, "error_screenshot_attempt_1.png"))
	assert.NoError(t, err, "attempt-boundary screenshot should be written")
}

func TestProcessScreenshotFailureIsNotEscalated(t *testing.T) {
	factory := &fakeFactory{
		build: func(attempt int) *fakeSession {
			return &fakeSession{
				waitClickableErr: stageTimeout(),
				screenshotErr:    errors.New("capture broken"),
			}
		},
	}
	cfg := testWorkflowConfig()
	cfg.MaxRetries = 1
	o, _ := newTestOrchestrator(factory, cfg)

	err := o.Process(context.Background(), aspirin, t.TempDir())
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "capture broken", "screenshot failures stay out of the attempt outcome")
}

func TestProcessMissingOrganismControlIsNonFatal(t *testing.T) {
	factory := &fakeFactory{
		build: func(attempt int) *fakeSession {
			return &fakeSession{
				waitPresentErr: map[string]error{organismRadio.Query: stageTimeout()},
			}
		},
	}
	o, _ := newTestOrchestrator(factory, testWorkflowConfig())

	err := o.Process(context.Background(), aspirin, t.TempDir())
	require.NoError(t, err, "a missing organism control degrades the stage, it does not fail the attempt")
	require.Len(t, factory.sessions, 1)
}

func TestProcessOrganismClickFallsBackToScript(t *testing.T) {
	factory := &fakeFactory{
		build: func(attempt int) *fakeSession {
			return &fakeSession{clickErr: errors.New("element click intercepted")}
		},
	}
	o, _ := newTestOrchestrator(factory, testWorkflowConfig())

	require.NoError(t, o.Process(context.Background(), aspirin, t.TempDir()))

	joined := strings.Join(factory.sessions[0].evaluated, "\n")
	assert.Contains(t, joined, "el.click()", "rejected direct click must trigger the scripted activation")
}

func TestProcessSubmitControlMissing(t *testing.T) {
	outDir := t.TempDir()
	factory := &fakeFactory{
		build: func(attempt int) *fakeSession {
			return &fakeSession{
				waitPresentErr: map[string]error{submitButton.Query: stageTimeout()},
			}
		},
	}
	cfg := testWorkflowConfig()
	cfg.MaxRetries = 1
	o, _ := newTestOrchestrator(factory, cfg)

	err := o.Process(context.Background(), aspirin, outDir)
	require.Error(t, err)

	var attemptErr *AttemptError
	require.ErrorAs(t, err, &attemptErr)
	assert.Equal(t, FailSubmit, attemptErr.Kind)

	_, serr := os.Stat(filepath.Join(outDir, "error_button_not_found_attempt_1.png"))
	assert.NoError(t, serr, "submit-wait failure gets its own diagnostic screenshot")
}

func TestProcessResultsFallbackSelector(t *testing.T) {
	factory := &fakeFactory{
		build: func(attempt int) *fakeSession {
			return &fakeSession{
				waitPresentErr: map[string]error{resultsTable.Query: stageTimeout()},
			}
		},
	}
	o, _ := newTestOrchestrator(factory, testWorkflowConfig())

	err := o.Process(context.Background(), aspirin, t.TempDir())
	require.NoError(t, err, "fallback selector success must rescue the attempt")
}

func TestProcessResultsTimeoutExhausted(t *testing.T) {
	factory := &fakeFactory{
		build: func(attempt int) *fakeSession {
			return &fakeSession{
				waitPresentErr: map[string]error{
					resultsTable.Query:    stageTimeout(),
					resultsFallback.Query: stageTimeout(),
				},
			}
		},
	}
	cfg := testWorkflowConfig()
	cfg.MaxRetries = 2
	o, _ := newTestOrchestrator(factory, cfg)

	err := o.Process(context.Background(), aspirin, t.TempDir())
	require.Error(t, err)

	var attemptErr *AttemptError
	require.ErrorAs(t, err, &attemptErr)
	assert.Equal(t, FailResults, attemptErr.Kind)
	assert.Equal(t, StageAwaitResults, attemptErr.Stage)
	assert.Len(t, factory.sessions, 2)
}

func TestProcessDriverUnavailable(t *testing.T) {
	factory := &fakeFactory{
		err: fmt.Errorf("all acquisition strategies failed: %w", schemas.ErrDriverUnavailable),
	}
	cfg := testWorkflowConfig()
	o, _ := newTestOrchestrator(factory, cfg)

	err := o.Process(context.Background(), aspirin, t.TempDir())
	require.Error(t, err)

	var attemptErr *AttemptError
	require.ErrorAs(t, err, &attemptErr)
	assert.Equal(t, FailDriverUnavailable, attemptErr.Kind)
	assert.ErrorIs(t, err, schemas.ErrDriverUnavailable)
}

func TestProcessContextCancellationStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	factory := &fakeFactory{
		build: func(attempt int) *fakeSession {
			return &fakeSession{navigateErr: errors.New("net::ERR_ABORTED")}
		},
	}
	o, _ := newTestOrchestrator(factory, testWorkflowConfig())
	o.sleep = func(sctx context.Context, d time.Duration) error {
		cancel() // shutdown arrives during the retry delay
		return sctx.Err()
	}

	err := o.Process(ctx, aspirin, t.TempDir())
	require.Error(t, err)
	assert.LessOrEqual(t, len(factory.sessions), 2, "no further attempts after cancellation")
}
