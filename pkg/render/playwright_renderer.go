package render

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/playwright-community/playwright-go"
	"github.com/yourusername/menu-generator/pkg/model"
)

// PlaywrightRenderer captures pages with Chromium driven by Playwright
type PlaywrightRenderer struct {
	config     model.RendererConfig
	logger     *slog.Logger
	browserLog io.Writer
	pw         *playwright.Playwright
	browser    playwright.Browser
	instanceID string
}

// NewPlaywrightRenderer creates a new Playwright renderer. The driver is started on first Capture.
func NewPlaywrightRenderer(config model.RendererConfig, browserLog io.Writer, logger *slog.Logger) *PlaywrightRenderer {
	instanceID := uuid.NewString()
	logger.Debug("created playwright renderer", "instance", instanceID)

	return &PlaywrightRenderer{
		config:     applyDefaults(config),
		logger:     logger,
		browserLog: browserLog,
		instanceID: instanceID,
	}
}

// getBrowser initializes or returns existing browser instance
func (r *PlaywrightRenderer) getBrowser() (playwright.Browser, error) {
	if r.browser != nil {
		return r.browser, nil
	}

	runOptions := &playwright.RunOptions{
		Browsers: []string{"chromium"},
		Verbose:  false,
	}
	if r.browserLog != nil {
		runOptions.Stdout = r.browserLog
		runOptions.Stderr = r.browserLog
	}

	r.logger.Info("starting playwright driver...", "instance", r.instanceID)
	pw, err := playwright.Run(runOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to start Playwright: %w (run 'playwright install chromium' or use the chromium backend)", err)
	}
	r.pw = pw

	launchOptions := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
		Args: []string{
			"--no-sandbox",
			"--disable-setuid-sandbox",
			"--disable-dev-shm-usage",
			"--disable-gpu",
			"--no-first-run",
			"--no-default-browser-check",
			"--disable-breakpad",
			"--allow-file-access-from-files",
		},
		Timeout: playwright.Float(float64(r.config.Timeout.Milliseconds())),
	}

	chromiumPath := r.config.ChromiumPath
	if chromiumPath == "" {
		for _, path := range candidateChromePaths {
			if _, err := os.Stat(path); err == nil {
				chromiumPath = path
				break
			}
		}
	}
	if chromiumPath != "" {
		launchOptions.ExecutablePath = playwright.String(chromiumPath)
		r.logger.Info("using chrome binary", "path", chromiumPath)
	} else {
		r.logger.Warn("no system chromium found, using playwright's bundled browser")
	}

	r.logger.Info("running headless chromium via playwright...", "instance", r.instanceID)
	browser, err := pw.Chromium.Launch(launchOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to launch Chromium: %w", err)
	}

	r.browser = browser
	return browser, nil
}

// Capture opens pageURL at the configured viewport and returns a full-page PNG
func (r *PlaywrightRenderer) Capture(ctx context.Context, pageURL string) ([]byte, error) {
	browser, err := r.getBrowser()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize browser: %w", err)
	}

	browserContext, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  r.config.ViewportWidth,
			Height: r.config.ViewportHeight,
		},
		DeviceScaleFactor: playwright.Float(r.config.DeviceScaleFactor),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}
	defer browserContext.Close()

	// Playwright calls take no context; closing the browser context aborts a pending navigation
	stop := context.AfterFunc(ctx, func() { browserContext.Close() })
	defer stop()

	page, err := browserContext.NewPage()
	if err != nil {
		return nil, cancelled(ctx, fmt.Errorf("failed to create page: %w", err))
	}
	defer page.Close()

	page.SetDefaultTimeout(float64(r.config.Timeout.Milliseconds()))

	if _, err := page.Goto(pageURL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
	}); err != nil {
		return nil, cancelled(ctx, fmt.Errorf("failed to navigate to page: %w", err))
	}

	if err := sleepContext(ctx, r.config.SettleDelay); err != nil {
		return nil, err
	}
	r.logger.Info("page rendered", "url", pageURL)

	img, err := page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(true),
		Type:     playwright.ScreenshotTypePng,
	})
	if err != nil {
		return nil, cancelled(ctx, fmt.Errorf("failed to capture screenshot: %w", err))
	}
	if err := checkPNG(img); err != nil {
		return nil, err
	}
	return img, nil
}

// Close closes the browser and stops the Playwright driver
func (r *PlaywrightRenderer) Close() error {
	var firstErr error
	if r.browser != nil {
		r.logger.Debug("closing playwright browser", "instance", r.instanceID)
		if err := r.browser.Close(); err != nil {
			firstErr = err
		}
		r.browser = nil
	}
	if r.pw != nil {
		if err := r.pw.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
		r.pw = nil
	}
	return firstErr
}

// Name returns the backend name
func (r *PlaywrightRenderer) Name() string {
	return model.BackendPlaywright
}

// cancelled reports ctx's error instead of err when the failure came from cancellation
func cancelled(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("capture aborted: %w", ctxErr)
	}
	return err
}
