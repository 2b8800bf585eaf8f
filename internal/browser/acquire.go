// File: internal/browser/acquire.go
// Description: Ordered fallback chain for obtaining a controllable browser.
// Each strategy resolves a candidate Chrome executable, launches it, and
// verifies the instance responds before a session is handed out.
package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/chromedp/chromedp"
	homedir "github.com/mitchellh/go-homedir"
	"go.uber.org/zap"

	"github.com/andrilaw/swissbatch/api/schemas"
	"github.com/andrilaw/swissbatch/internal/config"
)

// launchProbeFallback guards against a zero launch_probe_timeout in config.
const launchProbeFallback = 30 * time.Second

// launchFn starts a browser from the given executable path and returns a
// live session. Swappable in tests.
type launchFn func(ctx context.Context, execPath string) (schemas.SessionContext, error)

// strategy is one acquisition tier: resolve produces the executable path for
// the tier ("" delegates discovery to $PATH).
type strategy struct {
	name    string
	resolve func() (string, error)
}

// Chain implements schemas.SessionFactory by trying acquisition strategies
// in strict order: a managed install under the user cache directory, the
// path configured in browser.exec_path, and finally $PATH discovery.
type Chain struct {
	cfg        config.BrowserConfig
	logger     *zap.Logger
	strategies []strategy
	launch     launchFn
}

var _ schemas.SessionFactory = (*Chain)(nil)

// NewChain builds the acquisition chain from configuration.
func NewChain(cfg config.BrowserConfig, logger *zap.Logger) *Chain {
	c := &Chain{
		cfg:    cfg,
		logger: logger.Named("browser"),
	}
	c.launch = c.launchBrowser
	c.strategies = []strategy{
		{name: "managed install", resolve: c.managedExecPath},
		{name: "configured path", resolve: c.configuredExecPath},
		{name: "system PATH", resolve: func() (string, error) { return "", nil }},
	}
	return c
}

// Acquire walks the strategy chain until one produces a responsive browser.
// Every strategy failure is logged with its cause; exhausting the chain
// returns ErrDriverUnavailable, which is fatal for the current attempt.
func (c *Chain) Acquire(ctx context.Context) (schemas.SessionContext, error) {
	for _, strat := range c.strategies {
		execPath, err := strat.resolve()
		if err != nil {
			c.logger.Warn("Acquisition strategy not applicable.",
				zap.String("strategy", strat.name), zap.Error(err))
			continue
		}

		sess, err := c.launch(ctx, execPath)
		if err != nil {
			c.logger.Warn("Acquisition strategy failed to launch browser.",
				zap.String("strategy", strat.name),
				zap.String("exec_path", execPath),
				zap.Error(err))
			continue
		}

		c.logger.Info("Browser session acquired.",
			zap.String("strategy", strat.name),
			zap.String("session_id", sess.ID()))
		return sess, nil
	}

	return nil, fmt.Errorf("all acquisition strategies failed: %w", schemas.ErrDriverUnavailable)
}

// managedExecPath resolves the auto-managed install location, by default
// ~/.cache/swissbatch/chrome.
func (c *Chain) managedExecPath() (string, error) {
	dir := c.cfg.ManagedDir
	if dir == "" {
		home, err := homedir.Dir()
		if err != nil {
			return "", fmt.Errorf("cannot resolve home directory: %w", err)
		}
		dir = filepath.Join(home, ".cache", "swissbatch", "chrome")
	}

	path := filepath.Join(dir, chromeExecutable())
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("no managed browser install at %q: %w", path, err)
	}
	return path, nil
}

// configuredExecPath resolves the fixed local path from configuration.
func (c *Chain) configuredExecPath() (string, error) {
	if c.cfg.ExecPath == "" {
		return "", errors.New("browser.exec_path is not set")
	}
	if _, err := os.Stat(c.cfg.ExecPath); err != nil {
		return "", fmt.Errorf("no browser binary at %q: %w", c.cfg.ExecPath, err)
	}
	return c.cfg.ExecPath, nil
}

func chromeExecutable() string {
	if runtime.GOOS == "windows" {
		return "chrome.exe"
	}
	return "chrome"
}

// launchBrowser creates the allocator and tab contexts for one candidate
// executable and confirms the browser answers a trivial navigation before
// returning the session.
func (c *Chain) launchBrowser(ctx context.Context, execPath string) (schemas.SessionContext, error) {
	opts := allocatorOptions(c.cfg, execPath)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)
	cancel := func() {
		tabCancel()
		allocCancel()
	}

	probeTimeout := c.cfg.LaunchProbeTimeout
	if probeTimeout <= 0 {
		probeTimeout = launchProbeFallback
	}

	probeCtx, probeCancel := context.WithTimeout(tabCtx, probeTimeout)
	defer probeCancel()

	// Run a simple task to confirm the browser is alive.
	if err := chromedp.Run(probeCtx, chromedp.Navigate("about:blank")); err != nil {
		cancel()
		return nil, fmt.Errorf("browser failed to start or respond: %w", err)
	}

	return newSession(tabCtx, cancel, c.logger), nil
}
