package render

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/menu-generator/pkg/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewBackend(t *testing.T) {
	tests := []struct {
		backend  string
		wantName string
		wantErr  bool
	}{
		{backend: "", wantName: model.BackendChromium},
		{backend: model.BackendChromium, wantName: model.BackendChromium},
		{backend: model.BackendPlaywright, wantName: model.BackendPlaywright},
		{backend: "selenium", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			b, err := NewBackend(model.RendererConfig{Backend: tt.backend}, nil, discardLogger())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, b.Name())
			// Nothing was launched, so closing must be a no-op
			assert.NoError(t, b.Close())
			assert.NoError(t, b.Close())
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := applyDefaults(model.RendererConfig{})
	assert.Equal(t, 1920, cfg.ViewportWidth)
	assert.Equal(t, 1080, cfg.ViewportHeight)
	assert.Equal(t, 1.0, cfg.DeviceScaleFactor)
	assert.Equal(t, defaultTimeout, cfg.Timeout)

	custom := applyDefaults(model.RendererConfig{ViewportWidth: 800, ViewportHeight: 600, Timeout: time.Second})
	assert.Equal(t, 800, custom.ViewportWidth)
	assert.Equal(t, 600, custom.ViewportHeight)
	assert.Equal(t, time.Second, custom.Timeout)
}

func TestCheckPNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))))
	assert.NoError(t, checkPNG(buf.Bytes()))

	assert.Error(t, checkPNG(nil))
	assert.Error(t, checkPNG([]byte("%PDF-1.7")))
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, sleepContext(context.Background(), 0))
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}

func TestChromiumCloseRemovesProfileDir(t *testing.T) {
	r := NewChromiumRenderer(model.RendererConfig{}, nil, discardLogger())
	require.NoError(t, os.MkdirAll(r.profileDir, 0o755))

	require.NoError(t, r.Close())
	_, err := os.Stat(r.profileDir)
	assert.True(t, os.IsNotExist(err))
}

// TestChromiumCapture needs a real Chromium and runs only with MENUGEN_BROWSER_TESTS=1
func TestChromiumCapture(t *testing.T) {
	if os.Getenv("MENUGEN_BROWSER_TESTS") != "1" {
		t.Skip("set MENUGEN_BROWSER_TESTS=1 to run browser tests")
	}

	page := filepath.Join(t.TempDir(), "menu.html")
	require.NoError(t, os.WriteFile(page, []byte("<html><body><h1>Lunch</h1></body></html>"), 0o644))

	r := NewChromiumRenderer(model.RendererConfig{SettleDelay: 100 * time.Millisecond}, io.Discard, discardLogger())
	defer r.Close()

	img, err := r.Capture(context.Background(), "file://"+page)
	require.NoError(t, err)

	cfg, err := png.DecodeConfig(bytes.NewReader(img))
	require.NoError(t, err)
	assert.Equal(t, 1920, cfg.Width)
	assert.GreaterOrEqual(t, cfg.Height, 1080)
}

func TestChromiumCloseAfterCaptureRemovesProfileDir(t *testing.T) {
	if os.Getenv("MENUGEN_BROWSER_TESTS") != "1" {
		t.Skip("set MENUGEN_BROWSER_TESTS=1 to run browser tests")
	}

	page := filepath.Join(t.TempDir(), "menu.html")
	require.NoError(t, os.WriteFile(page, []byte("<html><body><h1>Lunch</h1></body></html>"), 0o644))

	r := NewChromiumRenderer(model.RendererConfig{}, io.Discard, discardLogger())
	_, err := r.Capture(context.Background(), "file://"+page)
	require.NoError(t, err)

	require.NoError(t, r.Close())
	assert.Nil(t, r.launcher)
	_, err = os.Stat(r.profileDir)
	assert.True(t, os.IsNotExist(err), "profile dir must be gone once the browser has exited")
}

func TestCancelledPrefersContextError(t *testing.T) {
	navErr := errors.New("target closed")

	assert.Equal(t, navErr, cancelled(context.Background(), navErr))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := cancelled(ctx, navErr)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, err.Error(), "capture aborted")
}

// A page whose load event never fires must not hold the capture past cancellation
func TestPlaywrightCaptureHonoursCancel(t *testing.T) {
	if os.Getenv("MENUGEN_BROWSER_TESTS") != "1" {
		t.Skip("set MENUGEN_BROWSER_TESTS=1 to run browser tests")
	}

	dir := t.TempDir()
	quick := filepath.Join(dir, "quick.html")
	require.NoError(t, os.WriteFile(quick, []byte("<html><body>ok</body></html>"), 0o644))
	// 10.255.255.1 is non-routable, so the image keeps the load event pending
	slow := filepath.Join(dir, "slow.html")
	require.NoError(t, os.WriteFile(slow, []byte(`<html><body><img src="http://10.255.255.1/menu.png"></body></html>`), 0o644))

	r := NewPlaywrightRenderer(model.RendererConfig{Timeout: time.Minute}, io.Discard, discardLogger())
	defer r.Close()

	// Start the driver and browser outside the timed part
	_, err := r.Capture(context.Background(), "file://"+quick)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = r.Capture(ctx, "file://"+slow)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 10*time.Second)
}
