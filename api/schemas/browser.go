package schemas

import (
	"context"
	"errors"
	"time"
)

// -- Selector Schemas --

// Selector identifies an element on the target page. The prediction page is
// addressed by a small, fixed set of selectors; if one of them stops
// matching, the page contract has changed and the workflow must fail loudly.
type Selector struct {
	Query string
	XPath bool
}

// CSS builds a CSS query selector.
func CSS(query string) Selector {
	return Selector{Query: query}
}

// XPath builds an XPath selector.
func XPath(query string) Selector {
	return Selector{Query: query, XPath: true}
}

// -- Session Errors --

// ErrStageTimeout is returned by the stage-wait primitives when an element
// condition did not hold within the stage deadline.
var ErrStageTimeout = errors.New("stage wait timed out")

// ErrDriverUnavailable is returned by a SessionFactory when every acquisition
// strategy failed to produce a controllable browser.
var ErrDriverUnavailable = errors.New("no browser driver available")

// -- Session Interfaces --

// SessionContext is the live handle to one controllable browser instance. A
// session is bound to exactly one compound-processing attempt: it is created
// when the attempt starts and must be closed when the attempt ends,
// regardless of outcome.
type SessionContext interface {
	// ID returns the unique identifier for the session.
	ID() string
	// Navigate loads a URL, waiting at most timeout for the page load.
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	// WaitClickable blocks until the element is visible and enabled, or the
	// timeout elapses (ErrStageTimeout).
	WaitClickable(ctx context.Context, sel Selector, timeout time.Duration) error
	// WaitPresent blocks until the element exists in the DOM, or the timeout
	// elapses (ErrStageTimeout).
	WaitPresent(ctx context.Context, sel Selector, timeout time.Duration) error
	// Click dispatches a click to the element.
	Click(ctx context.Context, sel Selector) error
	// Evaluate runs a snippet of JavaScript in the page and optionally
	// unmarshals the result into res.
	Evaluate(ctx context.Context, script string, res interface{}) error
	// Screenshot captures the current viewport as PNG bytes.
	Screenshot(ctx context.Context) ([]byte, error)
	// Location returns the current page URL. It doubles as the cheap
	// liveness probe: it fails once the browser has been closed.
	Location(ctx context.Context) (string, error)
	// Close releases the browser instance. Safe to call more than once.
	Close(ctx context.Context) error
}

// SessionFactory produces fresh sessions. Each retry of an attempt acquires
// a new session through the factory; sessions are never reused.
type SessionFactory interface {
	Acquire(ctx context.Context) (SessionContext, error)
}
