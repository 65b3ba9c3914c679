package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/menu-generator/pkg/config"
	"github.com/yourusername/menu-generator/pkg/model"
	"github.com/yourusername/menu-generator/pkg/render"
)

const menuJSON = `{"result": {"title": "Lunch", "items": [{"name": "Soup", "price": 250}]}}`

const menuTemplate = `<html><body><h1>{{ data.title }}</h1>{% for item in data.items %}<p>{{ item.name }} {{ item.price }}</p>{% endfor %}</body></html>`

// fakeBackend records what it was asked to capture
type fakeBackend struct {
	launchErr  error
	captureErr error
	closed     int
	pageURL    string
	pagePath   string
	pageHTML   string
	pageSeen   bool
	browserLog io.Writer
}

func (f *fakeBackend) Capture(ctx context.Context, pageURL string) ([]byte, error) {
	f.pageURL = pageURL
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}
	f.pagePath = u.Path
	if content, err := os.ReadFile(u.Path); err == nil {
		f.pageSeen = true
		f.pageHTML = string(content)
	}
	if f.browserLog != nil {
		io.WriteString(f.browserLog, "fake browser started\n")
	}
	if f.captureErr != nil {
		return nil, f.captureErr
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (f *fakeBackend) Close() error {
	f.closed++
	return nil
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) factory() BackendFactory {
	return func(cfg model.RendererConfig, browserLog io.Writer, logger *slog.Logger) (render.Backend, error) {
		if f.launchErr != nil {
			return nil, f.launchErr
		}
		f.browserLog = browserLog
		return f, nil
	}
}

type fixture struct {
	opts    config.Options
	tempDir string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()

	dataPath := filepath.Join(dir, "fake_data", "example.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(dataPath), 0o755))
	require.NoError(t, os.WriteFile(dataPath, []byte(menuJSON), 0o644))

	templatePath := filepath.Join(dir, "templates", "example.html.j2")
	require.NoError(t, os.MkdirAll(filepath.Dir(templatePath), 0o755))
	require.NoError(t, os.WriteFile(templatePath, []byte(menuTemplate), 0o644))

	tempDir := filepath.Join(dir, "tmp")
	require.NoError(t, os.MkdirAll(tempDir, 0o755))

	return fixture{
		opts: config.Options{
			LogPath:        filepath.Join(dir, "log", "app.log"),
			BrowserLogPath: filepath.Join(dir, "log", "selenium.log"),
			DataPath:       dataPath,
			TemplatePath:   templatePath,
			ImagesDir:      filepath.Join(dir, "images"),
		},
		tempDir: tempDir,
	}
}

func rendererConfig() model.RendererConfig {
	return model.RendererConfig{
		Backend:        model.BackendChromium,
		ViewportWidth:  1920,
		ViewportHeight: 1080,
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixedClock() func() time.Time {
	return func() time.Time { return time.Date(2024, 3, 5, 12, 0, 0, 0, time.Local) }
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestRunWritesOnePNGAndRemovesTempFile(t *testing.T) {
	fx := newFixture(t)
	fake := &fakeBackend{}
	p := New(testLogger(), WithBackendFactory(fake.factory()), WithClock(fixedClock()), WithTempDir(fx.tempDir))

	res, err := p.Run(context.Background(), fx.opts, rendererConfig())
	require.NoError(t, err)

	assert.Equal(t, []string{"2024-03-05_12:00:00.png"}, listDir(t, fx.opts.ImagesDir))
	assert.Equal(t, filepath.Join(fx.opts.ImagesDir, "2024-03-05_12:00:00.png"), res.ImagePath)
	assert.Equal(t, "fake", res.Backend)
	assert.Len(t, res.Checksum, 64)

	info, err := os.Stat(res.ImagePath)
	require.NoError(t, err)
	assert.Equal(t, res.Bytes, info.Size())

	// The browser saw the rendered page while it existed
	assert.True(t, fake.pageSeen)
	assert.Contains(t, fake.pageURL, "file://")
	assert.Equal(t, "<html><body><h1>Lunch</h1><p>Soup 250</p></body></html>", fake.pageHTML)
	assert.Equal(t, fake.pageHTML, res.HTML)

	// Cleanup contract
	assert.Equal(t, 1, fake.closed)
	assert.NoFileExists(t, fake.pagePath)
	assert.Empty(t, listDir(t, fx.tempDir))

	browserLog, err := os.ReadFile(fx.opts.BrowserLogPath)
	require.NoError(t, err)
	assert.Contains(t, string(browserLog), "fake browser started")
}

func TestRunMissingDataFile(t *testing.T) {
	fx := newFixture(t)
	fx.opts.DataPath = filepath.Join(t.TempDir(), "missing.json")
	fake := &fakeBackend{}
	p := New(testLogger(), WithBackendFactory(fake.factory()), WithTempDir(fx.tempDir))

	_, err := p.Run(context.Background(), fx.opts, rendererConfig())
	require.Error(t, err)

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageValidate, se.Stage)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Empty(t, listDir(t, fx.opts.ImagesDir))
	assert.Equal(t, 0, fake.closed)
}

func TestRunTemplateIsDirectory(t *testing.T) {
	fx := newFixture(t)
	fx.opts.TemplatePath = t.TempDir()
	p := New(testLogger(), WithBackendFactory((&fakeBackend{}).factory()), WithTempDir(fx.tempDir))

	_, err := p.Run(context.Background(), fx.opts, rendererConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is not a file")
}

func TestRunCreatesImagesDir(t *testing.T) {
	fx := newFixture(t)
	fx.opts.ImagesDir = filepath.Join(t.TempDir(), "nested", "images")
	p := New(testLogger(), WithBackendFactory((&fakeBackend{}).factory()), WithTempDir(fx.tempDir))

	_, err := p.Run(context.Background(), fx.opts, rendererConfig())
	require.NoError(t, err)
	assert.Len(t, listDir(t, fx.opts.ImagesDir), 1)
}

func TestRunImagesDirCannotBeCreated(t *testing.T) {
	fx := newFixture(t)
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	fx.opts.ImagesDir = filepath.Join(blocker, "images")
	p := New(testLogger(), WithBackendFactory((&fakeBackend{}).factory()), WithTempDir(fx.tempDir))

	_, err := p.Run(context.Background(), fx.opts, rendererConfig())
	require.Error(t, err)
}

func TestRunMissingResultField(t *testing.T) {
	fx := newFixture(t)
	require.NoError(t, os.WriteFile(fx.opts.DataPath, []byte(`{"status": "ok"}`), 0o644))
	fake := &fakeBackend{}
	p := New(testLogger(), WithBackendFactory(fake.factory()), WithTempDir(fx.tempDir))

	_, err := p.Run(context.Background(), fx.opts, rendererConfig())
	require.Error(t, err)

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageLoad, se.Stage)
	assert.Equal(t, 0, fake.closed)
	assert.Empty(t, listDir(t, fx.tempDir))
}

func TestRunTemplateError(t *testing.T) {
	fx := newFixture(t)
	require.NoError(t, os.WriteFile(fx.opts.TemplatePath, []byte(`{% if data.title %}`), 0o644))
	p := New(testLogger(), WithBackendFactory((&fakeBackend{}).factory()), WithTempDir(fx.tempDir))

	_, err := p.Run(context.Background(), fx.opts, rendererConfig())
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageTemplate, se.Stage)
}

func TestRunBrowserLaunchFailureRemovesTempFile(t *testing.T) {
	fx := newFixture(t)
	fake := &fakeBackend{launchErr: errors.New("chrome not found")}
	p := New(testLogger(), WithBackendFactory(fake.factory()), WithTempDir(fx.tempDir))

	_, err := p.Run(context.Background(), fx.opts, rendererConfig())
	require.Error(t, err)

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageCapture, se.Stage)
	assert.Contains(t, err.Error(), "chrome not found")

	assert.Empty(t, listDir(t, fx.tempDir))
	assert.Empty(t, listDir(t, fx.opts.ImagesDir))
}

func TestRunCaptureFailureClosesBrowserAndRemovesTempFile(t *testing.T) {
	fx := newFixture(t)
	fake := &fakeBackend{captureErr: errors.New("navigation timeout")}
	p := New(testLogger(), WithBackendFactory(fake.factory()), WithTempDir(fx.tempDir))

	_, err := p.Run(context.Background(), fx.opts, rendererConfig())
	require.Error(t, err)

	assert.True(t, fake.pageSeen)
	assert.Equal(t, 1, fake.closed)
	assert.NoFileExists(t, fake.pagePath)
	assert.Empty(t, listDir(t, fx.opts.ImagesDir))
}

func TestRunTwiceProducesTwoFilesWithIdenticalHTML(t *testing.T) {
	fx := newFixture(t)
	first := &fakeBackend{}
	second := &fakeBackend{}
	clock := fixedClock()

	res1, err := New(testLogger(), WithBackendFactory(first.factory()), WithClock(clock), WithTempDir(fx.tempDir)).
		Run(context.Background(), fx.opts, rendererConfig())
	require.NoError(t, err)
	res2, err := New(testLogger(), WithBackendFactory(second.factory()), WithClock(clock), WithTempDir(fx.tempDir)).
		Run(context.Background(), fx.opts, rendererConfig())
	require.NoError(t, err)

	assert.NotEqual(t, res1.ImagePath, res2.ImagePath)
	assert.Equal(t, first.pageHTML, second.pageHTML)
	assert.ElementsMatch(t, []string{"2024-03-05_12:00:00.png", "2024-03-05_12:00:00_1.png"}, listDir(t, fx.opts.ImagesDir))
}

func TestRunRejectsInvalidRendererConfig(t *testing.T) {
	fx := newFixture(t)
	rc := rendererConfig()
	rc.Backend = "netscape"
	p := New(testLogger(), WithBackendFactory((&fakeBackend{}).factory()), WithTempDir(fx.tempDir))

	_, err := p.Run(context.Background(), fx.opts, rc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown renderer backend")
}

func TestStackTraceAndCause(t *testing.T) {
	root := errors.New("boom")
	err := fail(StageCapture, root)

	assert.Equal(t, root, Cause(err))
	assert.Contains(t, StackTrace(err), "TestStackTraceAndCause")
	assert.Equal(t, "capture: boom", err.Error())

	// Wrapping twice keeps the original stage
	assert.Same(t, err, fail(StageSave, err))

	assert.Empty(t, StackTrace(root))
}

func TestRenderHTMLBundledExample(t *testing.T) {
	opts := config.Options{
		DataPath:     filepath.Join("..", "..", "fake_data", "example.json"),
		TemplatePath: filepath.Join("..", "..", "templates", "example.html.j2"),
	}

	html, err := New(testLogger()).RenderHTML(opts)
	require.NoError(t, err)
	assert.Contains(t, html, "s Menu</h1>")
	assert.Contains(t, html, "Mushroom risotto")
	assert.Contains(t, html, `<span class="veg">(V)</span>`)
	assert.Contains(t, html, "16.9 &euro;")
	assert.Contains(t, html, "Crème brûlée")
}
