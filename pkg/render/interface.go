package render

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/yourusername/menu-generator/pkg/model"
)

// pngSignature is the 8-byte header every PNG file starts with
var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// Backend defines the interface for rendering backends
type Backend interface {
	// Capture opens pageURL and returns a full-page PNG screenshot
	Capture(ctx context.Context, pageURL string) ([]byte, error)

	// Close releases the browser session. Safe to call more than once.
	Close() error

	// Name returns the name of the backend
	Name() string
}

// NewBackend creates the rendering backend named by config.Backend.
// browserLog receives the browser's own output; it may be nil.
func NewBackend(config model.RendererConfig, browserLog io.Writer, logger *slog.Logger) (Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch config.Backend {
	case "", model.BackendChromium:
		return NewChromiumRenderer(config, browserLog, logger), nil
	case model.BackendPlaywright:
		return NewPlaywrightRenderer(config, browserLog, logger), nil
	default:
		return nil, fmt.Errorf("unknown renderer backend '%s'", config.Backend)
	}
}

// checkPNG verifies the capture really is a PNG image
func checkPNG(img []byte) error {
	if !bytes.HasPrefix(img, pngSignature) {
		return fmt.Errorf("output is not a PNG (got %d bytes)", len(img))
	}
	return nil
}

// applyDefaults fills zero values the same way for every backend
func applyDefaults(config model.RendererConfig) model.RendererConfig {
	if config.ViewportWidth == 0 {
		config.ViewportWidth = 1920
	}
	if config.ViewportHeight == 0 {
		config.ViewportHeight = 1080
	}
	if config.DeviceScaleFactor == 0 {
		config.DeviceScaleFactor = 1.0
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	return config
}
