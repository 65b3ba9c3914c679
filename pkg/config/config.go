// Package config resolves the command-line paths and the environment-derived
// settings for a run.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"github.com/yourusername/menu-generator/pkg/model"
)

// TimestampLayout names log files and screenshots (YYYY-MM-DD_HH:MM:SS)
const TimestampLayout = "2006-01-02_15:04:05"

// Options holds the file-system paths given on the command line
type Options struct {
	LogPath        string
	BrowserLogPath string
	DataPath       string
	TemplatePath   string
	ImagesDir      string
}

// DefaultOptions returns the paths used when a flag is not given, relative to baseDir
func DefaultOptions(baseDir string, now time.Time) Options {
	stamp := now.Format(TimestampLayout)
	return Options{
		LogPath:        filepath.Join(baseDir, "log", fmt.Sprintf("app_%s.log", stamp)),
		BrowserLogPath: filepath.Join(baseDir, "log", fmt.Sprintf("selenium_%s.log", stamp)),
		DataPath:       filepath.Join(baseDir, "fake_data", "example.json"),
		TemplatePath:   filepath.Join(baseDir, "templates", "example.html.j2"),
		ImagesDir:      filepath.Join(baseDir, "images"),
	}
}

// BaseDir returns the directory holding the running executable
func BaseDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to locate executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe), nil
}

// EnsureLogDirs creates the directories of both log files.
// It runs before the logger exists, so failures are returned rather than logged.
func (o Options) EnsureLogDirs() error {
	for _, p := range []string{o.LogPath, o.BrowserLogPath} {
		if p == "" {
			continue
		}
		if err := ensureDir(filepath.Dir(p)); err != nil {
			return err
		}
	}
	return nil
}

// ValidateInputs checks the data file and template, and prepares the images directory
func (o Options) ValidateInputs() error {
	if err := requireFile(o.DataPath, "Fake data file"); err != nil {
		return err
	}
	if err := requireFile(o.TemplatePath, "Template file"); err != nil {
		return err
	}
	return ensureDir(o.ImagesDir)
}

// Validate runs every check in the order the pipeline needs them
func (o Options) Validate() error {
	if err := o.EnsureLogDirs(); err != nil {
		return err
	}
	return o.ValidateInputs()
}

func requireFile(path, what string) error {
	if path == "" {
		return fmt.Errorf("%s path is empty", what)
	}
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%s '%s' doesn't exist: %w", what, path, err)
	}
	if err != nil {
		return fmt.Errorf("failed to stat '%s': %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("'%s' is not a file", path)
	}
	return nil
}

func ensureDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("directory path is empty")
	}
	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return fmt.Errorf("'%s' is not a directory", dir)
		}
		return nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to stat '%s': %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory '%s': %w", dir, err)
	}
	return nil
}

// LoadSettings reads the environment, after loading any of envFiles that exist.
// Variables already set in the process environment take precedence over files.
func LoadSettings(envFiles ...string) (model.Settings, error) {
	var existing []string
	for _, f := range envFiles {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) > 0 {
		if err := godotenv.Load(existing...); err != nil {
			return model.Settings{}, fmt.Errorf("failed to load env file: %w", err)
		}
	}

	var settings model.Settings
	if err := env.Parse(&settings); err != nil {
		return model.Settings{}, fmt.Errorf("failed to parse environment: %w", err)
	}
	// The renderer config is validated by the caller, after command-line overrides
	return settings, nil
}

// EnvFiles returns the .env locations checked at startup, most specific first
func EnvFiles(baseDir string) []string {
	files := []string{".env"}
	if baseDir != "" {
		files = append(files, filepath.Join(baseDir, ".env"))
	}
	return files
}
