// Command generate-menu renders a JSON menu through a template and saves a
// screenshot of the resulting page taken with a headless browser.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/yourusername/menu-generator/pkg/config"
)

var (
	logPath        string
	browserLogPath string
	dataPath       string
	templatePath   string
	imagesDir      string
	backend        string
	historyDB      string
)

// Where log records go besides the log file
var console io.Writer = os.Stdout

// errReported marks an error that has already been written to the log
var errReported = errors.New("error already reported")

var baseDir = func() string {
	dir, err := config.BaseDir()
	if err != nil {
		return "."
	}
	return dir
}()

var rootCmd = &cobra.Command{
	Use:   "generate-menu",
	Short: "Render a menu template and capture it as a PNG",
	Long: `generate-menu loads a JSON document, renders its "result" field through a
Jinja-style template, opens the page in a headless browser and saves a
full-page screenshot to <images-dir>/<timestamp>.png.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			_, err := a.scheduler.RunOnce(ctx)
			return err
		})
	},
}

func init() {
	defaults := config.DefaultOptions(baseDir, time.Now())

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&logPath, "log", "l", defaults.LogPath, "Path to the application log")
	flags.StringVarP(&browserLogPath, "selenium-log", "s", defaults.BrowserLogPath, "Path to the browser driver log")
	flags.StringVarP(&dataPath, "fake-data", "f", defaults.DataPath, "Path to the JSON data file")
	flags.StringVarP(&templatePath, "template", "t", defaults.TemplatePath, "Path to the HTML template")
	flags.StringVarP(&imagesDir, "images-dir", "i", defaults.ImagesDir, "Directory for captured images")
	flags.StringVarP(&backend, "backend", "b", "", "Browser backend: chromium or playwright (default from MENUGEN_BACKEND)")
	flags.StringVar(&historyDB, "history", "", "SQLite run history database (default from MENUGEN_HISTORY_DB)")
}

func main() {
	os.Exit(run())
}

func run() (code int) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "panic: %v\nTraceback:\n%s", r, debug.Stack())
			code = 1
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		return 1
	}
	return 0
}

// options collects the path flags
func options() config.Options {
	return config.Options{
		LogPath:        absPath(logPath),
		BrowserLogPath: absPath(browserLogPath),
		DataPath:       absPath(dataPath),
		TemplatePath:   absPath(templatePath),
		ImagesDir:      absPath(imagesDir),
	}
}

func absPath(p string) string {
	if p == "" {
		return p
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
