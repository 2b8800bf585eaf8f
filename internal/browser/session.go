// File: internal/browser/session.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/andrilaw/swissbatch/api/schemas"
)

// Session is the chromedp-backed implementation of schemas.SessionContext.
// It owns one browser process plus one tab for the duration of a single
// compound-processing attempt.
type Session struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger

	closeOnce sync.Once
}

var _ schemas.SessionContext = (*Session)(nil)

func newSession(ctx context.Context, cancel context.CancelFunc, logger *zap.Logger) *Session {
	sessionID := uuid.New().String()
	return &Session{
		id:     sessionID,
		ctx:    ctx,
		cancel: cancel,
		logger: logger.With(zap.String("session_id", sessionID)),
	}
}

// ID returns the unique identifier for the session.
func (s *Session) ID() string {
	return s.id
}

// Navigate loads the URL, failing with ErrStageTimeout if the page load does
// not complete within timeout.
func (s *Session) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	s.logger.Debug("Navigating.", zap.String("url", url))
	return s.waitFor(ctx, timeout, fmt.Sprintf("page load of %s", url), chromedp.Navigate(url))
}

// WaitClickable blocks until the element is both visible and enabled.
func (s *Session) WaitClickable(ctx context.Context, sel schemas.Selector, timeout time.Duration) error {
	opts := queryOptions(sel)
	return s.waitFor(ctx, timeout, fmt.Sprintf("clickable %q", sel.Query),
		chromedp.WaitVisible(sel.Query, opts...),
		chromedp.WaitEnabled(sel.Query, opts...),
	)
}

// WaitPresent blocks until the element exists in the DOM.
func (s *Session) WaitPresent(ctx context.Context, sel schemas.Selector, timeout time.Duration) error {
	return s.waitFor(ctx, timeout, fmt.Sprintf("presence of %q", sel.Query),
		chromedp.WaitReady(sel.Query, queryOptions(sel)...))
}

// Click dispatches a click to the element.
func (s *Session) Click(ctx context.Context, sel schemas.Selector) error {
	return s.runActions(ctx, chromedp.Click(sel.Query, queryOptions(sel)...))
}

// Evaluate runs a snippet of JavaScript in the current document and
// optionally unmarshals the result into res.
func (s *Session) Evaluate(ctx context.Context, script string, res interface{}) error {
	return s.runActions(ctx, chromedp.Evaluate(script, res))
}

// Screenshot captures the full page as PNG bytes. Diagnostic captures need
// the whole document, not just the viewport: the interesting element is often
// below the fold.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	capture := chromedp.ActionFunc(func(actx context.Context) error {
		var err error
		buf, err = page.CaptureScreenshot().
			WithFormat(page.CaptureScreenshotFormatPng).
			WithCaptureBeyondViewport(true).
			Do(actx)
		return err
	})
	if err := s.runActions(ctx, capture); err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return buf, nil
}

// Location reports the current page URL. Once the operator has closed the
// browser the underlying target is gone and this returns an error, which is
// exactly the signal the handoff monitor polls for.
func (s *Session) Location(ctx context.Context) (string, error) {
	var url string
	if err := s.runActions(ctx, chromedp.Location(&url)); err != nil {
		return "", fmt.Errorf("session no longer reachable: %w", err)
	}
	return url, nil
}

// Close terminates the browser session. Safe to call multiple times and
// after the operator already closed the window.
func (s *Session) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.logger.Debug("Closing browser session.")
		s.cancel()
	})
	return nil
}

// waitFor runs chromedp actions under a derived stage deadline and maps its
// expiry to ErrStageTimeout. Other action failures pass through unchanged.
func (s *Session) waitFor(ctx context.Context, timeout time.Duration, what string, actions ...chromedp.Action) error {
	runCtx, cancel := combineContext(s.ctx, ctx)
	defer cancel()

	stageCtx, stageCancel := context.WithTimeout(runCtx, timeout)
	defer stageCancel()

	if err := chromedp.Run(stageCtx, actions...); err != nil {
		if stageCtx.Err() == context.DeadlineExceeded || errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w after %s waiting for %s", schemas.ErrStageTimeout, timeout, what)
		}
		return fmt.Errorf("wait for %s failed: %w", what, err)
	}
	return nil
}

// runActions executes chromedp actions, ensuring they respect both the
// session lifetime (s.ctx) and the incoming request context (ctx).
func (s *Session) runActions(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := combineContext(s.ctx, ctx)
	defer cancel()

	return chromedp.Run(runCtx, actions...)
}

// queryOptions maps a schemas.Selector to chromedp query options.
func queryOptions(sel schemas.Selector) []chromedp.QueryOption {
	if sel.XPath {
		return []chromedp.QueryOption{chromedp.BySearch}
	}
	return []chromedp.QueryOption{chromedp.ByQuery}
}

// combineContext creates a context that is canceled when either parent is
// canceled, so a stage wait ends as soon as the session or the caller does.
func combineContext(parentCtx, secondaryCtx context.Context) (context.Context, context.CancelFunc) {
	combinedCtx, cancel := context.WithCancel(parentCtx)

	go func() {
		select {
		case <-secondaryCtx.Done():
			cancel()
		case <-combinedCtx.Done():
		}
	}()

	return combinedCtx, cancel
}
