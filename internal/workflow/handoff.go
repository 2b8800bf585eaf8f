// File: internal/workflow/handoff.go
// Description: The human-handoff monitor. After results are on screen the
// operator downloads artifacts by hand and then closes the browser window;
// the monitor detects that closure and returns control to the orchestrator.
package workflow

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/andrilaw/swissbatch/api/schemas"
)

// Monitor polls a cheap session-liveness probe until it fails, which is the
// agreed signal that the operator has finished and closed the browser.
type Monitor struct {
	interval time.Duration
	logger   *zap.Logger
}

// NewMonitor creates a handoff monitor polling at the given interval.
func NewMonitor(interval time.Duration, logger *zap.Logger) *Monitor {
	return &Monitor{
		interval: interval,
		logger:   logger.Named("handoff"),
	}
}

// Await blocks until the session's location probe fails. There is no
// timeout: the workflow is deliberately semi-automated, and only the
// operator closing the browser (or process shutdown via ctx) ends the wait.
// The polling runs on its own goroutine so the orchestrator's control flow
// stays a plain blocking call on the completion channel.
func (m *Monitor) Await(ctx context.Context, sess schemas.SessionContext) error {
	closed := make(chan struct{})

	go func() {
		defer close(closed)
		for {
			if _, err := sess.Location(ctx); err != nil {
				if ctx.Err() == nil {
					m.logger.Info("Browser closed by operator.", zap.String("session_id", sess.ID()))
				}
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(m.interval):
			}
		}
	}()

	select {
	case <-closed:
		// The probe may have aborted because of shutdown rather than an
		// operator action; report that distinctly.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return nil
	case <-ctx.Done():
		<-closed
		return ctx.Err()
	}
}
