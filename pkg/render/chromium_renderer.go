package render

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"
	"github.com/yourusername/menu-generator/pkg/model"
)

const defaultTimeout = 30 * time.Second

// candidateChromePaths lists common Chrome binary locations in order of preference
var candidateChromePaths = []string{
	"./chrome-linux64/chrome",
	"/usr/bin/chromium",
	"/usr/bin/chromium-browser",
	"/usr/bin/google-chrome",
	"/usr/bin/google-chrome-stable",
	"/snap/bin/chromium",
	"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
	"/Applications/Chromium.app/Contents/MacOS/Chromium",
}

// ChromiumRenderer captures pages with Chromium driven by go-rod
type ChromiumRenderer struct {
	config     model.RendererConfig
	logger     *slog.Logger
	browserLog io.Writer
	browser    *rod.Browser
	launcher   *launcher.Launcher
	instanceID string // Unique ID for this renderer instance
	profileDir string // Unique profile directory for this instance
}

// NewChromiumRenderer creates a new Chromium renderer. The browser is launched on first Capture.
func NewChromiumRenderer(config model.RendererConfig, browserLog io.Writer, logger *slog.Logger) *ChromiumRenderer {
	instanceID := uuid.NewString()
	profileDir := filepath.Join(os.TempDir(), ".menugen-chromium-"+instanceID)

	logger.Debug("created chromium renderer", "instance", instanceID, "profile_dir", profileDir)

	return &ChromiumRenderer{
		config:     applyDefaults(config),
		logger:     logger,
		browserLog: browserLog,
		instanceID: instanceID,
		profileDir: profileDir,
	}
}

// findChromeBinary tries the configured path, then common locations, then rod's own lookup
func (r *ChromiumRenderer) findChromeBinary() string {
	if r.config.ChromiumPath != "" {
		return r.config.ChromiumPath
	}

	for _, path := range candidateChromePaths {
		if info, err := os.Stat(path); err == nil && !info.IsDir() && info.Mode()&0111 != 0 {
			r.logger.Debug("found chrome binary", "path", path)
			return path
		}
	}

	if path, ok := launcher.LookPath(); ok {
		r.logger.Debug("found chrome binary via rod lookup", "path", path)
		return path
	}

	return ""
}

// getBrowser initializes or returns existing browser instance
func (r *ChromiumRenderer) getBrowser() (*rod.Browser, error) {
	if r.browser != nil {
		return r.browser, nil
	}

	if err := os.MkdirAll(r.profileDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create browser profile dir: %w", err)
	}

	l := launcher.New()

	chromePath := r.findChromeBinary()
	if chromePath != "" {
		l = l.Bin(chromePath)
		r.logger.Info("using chrome binary", "path", chromePath)
	} else {
		r.logger.Warn("no chrome binary found, rod will try to download one")
	}

	// Flags for server environments (root, containers, no GPU)
	l = l.Set("no-sandbox").
		Set("disable-setuid-sandbox").
		Set("disable-dev-shm-usage").
		Set("disable-gpu").
		Set("no-first-run").
		Set("no-default-browser-check").
		Set("disable-breakpad").
		Set("allow-file-access-from-files").
		Set("user-data-dir", r.profileDir).
		Headless(true)

	if r.browserLog != nil {
		l = l.Logger(r.browserLog)
	}

	r.logger.Info("running headless chromium...", "instance", r.instanceID)
	controlURL, err := l.Launch()
	if err != nil {
		l.Kill()
		if chromePath == "" {
			return nil, fmt.Errorf("failed to launch browser: %w (set MENUGEN_CHROMIUM_PATH to a Chrome/Chromium binary)", err)
		}
		return nil, fmt.Errorf("failed to launch browser at '%s': %w", chromePath, err)
	}
	r.launcher = l

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	r.browser = browser
	r.logger.Debug("chromium browser connected", "control_url", controlURL)
	return browser, nil
}

// Capture opens pageURL at the configured viewport and returns a full-page PNG
func (r *ChromiumRenderer) Capture(ctx context.Context, pageURL string) ([]byte, error) {
	browser, err := r.getBrowser()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize browser: %w", err)
	}

	page, err := browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	defer page.Close()

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             r.config.ViewportWidth,
		Height:            r.config.ViewportHeight,
		DeviceScaleFactor: r.config.DeviceScaleFactor,
		Mobile:            false,
	}); err != nil {
		return nil, fmt.Errorf("failed to set viewport: %w", err)
	}

	page = page.Timeout(r.config.Timeout)

	if err := page.Navigate(pageURL); err != nil {
		return nil, fmt.Errorf("failed to navigate to page: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("failed to wait for page load: %w", err)
	}

	if err := sleepContext(ctx, r.config.SettleDelay); err != nil {
		return nil, err
	}
	r.logger.Info("page rendered", "url", pageURL)

	img, err := page.Screenshot(true, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}
	if err := checkPNG(img); err != nil {
		return nil, err
	}
	return img, nil
}

// Close closes the browser, stops the process and removes the profile directory
func (r *ChromiumRenderer) Close() error {
	var err error
	if r.browser != nil {
		r.logger.Debug("closing chromium browser", "instance", r.instanceID)
		err = r.browser.Close()
		r.browser = nil
	}
	if r.launcher != nil {
		// Cleanup waits for the process to exit, then removes the user-data-dir
		r.launcher.Kill()
		r.launcher.Cleanup()
		r.launcher = nil
	}
	// Still needed when the launch itself failed
	if r.profileDir != "" {
		if rmErr := os.RemoveAll(r.profileDir); rmErr != nil && err == nil {
			err = rmErr
		}
	}
	return err
}

// Name returns the backend name
func (r *ChromiumRenderer) Name() string {
	return model.BackendChromium
}

// sleepContext waits for d or until ctx is cancelled
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
