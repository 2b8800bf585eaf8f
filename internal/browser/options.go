// File: internal/browser/options.go
package browser

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/chromedp/chromedp"

	"github.com/andrilaw/swissbatch/internal/config"
)

// allocatorOptions assembles the launch flags for the browser process. The
// target site rejects sessions that look automated, so the automation banner
// and navigator.webdriver are suppressed and a fixed desktop user agent and
// viewport are applied. An empty execPath leaves discovery to chromedp's
// default $PATH lookup.
func allocatorOptions(cfg config.BrowserConfig, execPath string) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)

	opts = append(opts,
		// The handoff stage needs a window the operator can see; headless
		// stays available for the automated portions in CI.
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-gpu", cfg.Headless),
		chromedp.Flag("window-size", fmt.Sprintf("%d,%d", cfg.WindowWidth, cfg.WindowHeight)),
		chromedp.UserAgent(cfg.UserAgent),
	)

	// Pass through extra arguments from the config file.
	for _, arg := range cfg.Args {
		parts := strings.SplitN(arg, "=", 2)
		flagName := strings.TrimPrefix(parts[0], "--")

		if len(parts) == 2 {
			opts = append(opts, chromedp.Flag(flagName, parts[1]))
		} else {
			opts = append(opts, chromedp.Flag(flagName, true))
		}
	}

	// Flags required for running inside containers (e.g., Docker on Linux).
	if runtime.GOOS == "linux" {
		opts = append(opts,
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("disable-setuid-sandbox", true),
		)
	}

	if execPath != "" {
		opts = append(opts, chromedp.ExecPath(execPath))
	}

	return opts
}
