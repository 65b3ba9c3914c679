// Package pipeline implements the render-and-capture run: load the JSON
// document, render the template, open the page in a headless browser and
// save a screenshot. The temporary HTML file and the browser session are
// released on every exit path.
package pipeline

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/yourusername/menu-generator/pkg/config"
	"github.com/yourusername/menu-generator/pkg/data"
	"github.com/yourusername/menu-generator/pkg/model"
	"github.com/yourusername/menu-generator/pkg/render"
	"github.com/yourusername/menu-generator/pkg/templating"
)

// BackendFactory creates the browser backend for one run
type BackendFactory func(cfg model.RendererConfig, browserLog io.Writer, logger *slog.Logger) (render.Backend, error)

// Result describes a successful run
type Result struct {
	ImagePath string
	Bytes     int64
	Checksum  string
	Backend   string
	HTML      string
}

// Pipeline runs the render-and-capture sequence
type Pipeline struct {
	logger     *slog.Logger
	newBackend BackendFactory
	now        func() time.Time
	tempDir    string
}

// Option customises a Pipeline
type Option func(*Pipeline)

// WithBackendFactory replaces render.NewBackend
func WithBackendFactory(f BackendFactory) Option {
	return func(p *Pipeline) { p.newBackend = f }
}

// WithClock replaces time.Now for screenshot names
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithTempDir sets where the rendered HTML is written. Default: os.TempDir().
func WithTempDir(dir string) Option {
	return func(p *Pipeline) { p.tempDir = dir }
}

// New creates a Pipeline logging to logger
func New(logger *slog.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		logger:     logger,
		newBackend: render.NewBackend,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes one render-and-capture pass
func (p *Pipeline) Run(ctx context.Context, opts config.Options, rc model.RendererConfig) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, fail(StageValidate, err)
	}
	if err := model.ValidateRendererConfig(rc); err != nil {
		return nil, fail(StageValidate, err)
	}

	html, err := p.RenderHTML(opts)
	if err != nil {
		return nil, err
	}

	tmpPath, err := p.writeTemp(html)
	if err != nil {
		return nil, fail(StageCapture, err)
	}
	defer func() {
		if err := os.Remove(tmpPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			p.logger.Warn("failed to remove temporary html", "path", tmpPath, "error", err)
		}
	}()

	img, backendName, err := p.capture(ctx, opts, rc, tmpPath)
	if err != nil {
		return nil, fail(StageCapture, err)
	}

	imagePath, err := p.saveImage(opts.ImagesDir, img)
	if err != nil {
		return nil, fail(StageSave, err)
	}
	p.logger.Info("image saved", "path", imagePath, "bytes", len(img))

	return &Result{
		ImagePath: imagePath,
		Bytes:     int64(len(img)),
		Checksum:  fmt.Sprintf("%x", sha256.Sum256(img)),
		Backend:   backendName,
		HTML:      html,
	}, nil
}

// RenderHTML loads the data file and renders the template with its result field
func (p *Pipeline) RenderHTML(opts config.Options) (string, error) {
	doc, err := data.Load(opts.DataPath)
	if err != nil {
		return "", fail(StageLoad, err)
	}
	p.logger.Debug("got data", "data", doc.String())

	result, err := doc.Result()
	if err != nil {
		return "", fail(StageLoad, err)
	}

	html, err := templating.RenderFile(opts.TemplatePath, result)
	if err != nil {
		return "", fail(StageTemplate, err)
	}
	p.logger.Debug("templated html:\n" + html)
	return html, nil
}

func (p *Pipeline) writeTemp(html string) (string, error) {
	f, err := os.CreateTemp(p.tempDir, "menu-*.html")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary html: %w", err)
	}
	_, writeErr := f.WriteString(html)
	closeErr := f.Close()
	if writeErr != nil || closeErr != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write temporary html: %w", errors.Join(writeErr, closeErr))
	}
	return f.Name(), nil
}

// capture owns the browser session and the browser log for the duration of one screenshot
func (p *Pipeline) capture(ctx context.Context, opts config.Options, rc model.RendererConfig, htmlPath string) ([]byte, string, error) {
	var browserLog io.Writer
	if opts.BrowserLogPath != "" {
		f, err := os.OpenFile(opts.BrowserLogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, "", fmt.Errorf("failed to open browser log: %w", err)
		}
		defer f.Close()
		browserLog = f
	}

	backend, err := p.newBackend(rc, browserLog, p.logger)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create renderer: %w", err)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			p.logger.Warn("failed to close browser", "backend", backend.Name(), "error", err)
		}
	}()

	img, err := backend.Capture(ctx, fileURL(htmlPath))
	if err != nil {
		return nil, backend.Name(), err
	}
	return img, backend.Name(), nil
}

// saveImage writes img under dir named by the current time, never overwriting an earlier capture
func (p *Pipeline) saveImage(dir string, img []byte) (string, error) {
	stamp := p.now().Format(config.TimestampLayout)
	for i := 0; i < 1000; i++ {
		name := stamp + ".png"
		if i > 0 {
			name = fmt.Sprintf("%s_%d.png", stamp, i)
		}
		path := filepath.Join(dir, name)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to create image file: %w", err)
		}
		if _, err := f.Write(img); err != nil {
			f.Close()
			os.Remove(path)
			return "", fmt.Errorf("failed to write image file: %w", err)
		}
		if err := f.Close(); err != nil {
			os.Remove(path)
			return "", fmt.Errorf("failed to write image file: %w", err)
		}
		return path, nil
	}
	return "", fmt.Errorf("too many images named %s in %s", stamp, dir)
}

func fileURL(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()
}
