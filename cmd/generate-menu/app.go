package main

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/yourusername/menu-generator/pkg/config"
	"github.com/yourusername/menu-generator/pkg/cron"
	"github.com/yourusername/menu-generator/pkg/logger"
	"github.com/yourusername/menu-generator/pkg/mail"
	"github.com/yourusername/menu-generator/pkg/model"
	"github.com/yourusername/menu-generator/pkg/pipeline"
	"github.com/yourusername/menu-generator/pkg/store"
)

// app holds everything a command needs for one invocation
type app struct {
	opts      config.Options
	settings  model.Settings
	log       *logger.Logger
	store     *store.Store
	mailer    *mail.Mailer
	scheduler *cron.Scheduler
}

// withApp builds the app, runs fn and reports any failure or panic through the log.
// A returned errReported means the error has been logged.
func withApp(ctx context.Context, fn func(context.Context, *app) error) (err error) {
	opts := options()
	if err := opts.EnsureLogDirs(); err != nil {
		return err
	}

	settings, settingsErr := config.LoadSettings(config.EnvFiles(baseDir)...)
	lg, err := logger.New(logger.Options{
		Name:       "generate-menu",
		FilePath:   opts.LogPath,
		Level:      settings.LogConfig.Level,
		MaxSizeMB:  settings.LogConfig.MaxSizeMB,
		MaxBackups: settings.LogConfig.MaxBackups,
		Console:    console,
	})
	if err != nil {
		return err
	}
	defer lg.Close()

	defer func() {
		if r := recover(); r != nil {
			lg.Error(fmt.Sprintf("panic: %v", r))
			lg.Error("Traceback:\n" + string(debug.Stack()))
			err = errReported
		}
	}()

	if settingsErr != nil {
		reportError(lg.Logger, settingsErr)
		return errReported
	}

	a, err := newApp(opts, settings, lg)
	if err != nil {
		reportError(lg.Logger, err)
		return errReported
	}
	defer a.close()

	if err := fn(ctx, a); err != nil {
		reportError(lg.Logger, err)
		return errReported
	}
	return nil
}

func newApp(opts config.Options, settings model.Settings, lg *logger.Logger) (*app, error) {
	if backend != "" {
		settings.RendererConfig.Backend = backend
	}
	if historyDB != "" {
		settings.HistoryDB = historyDB
	}
	if err := model.ValidateRendererConfig(settings.RendererConfig); err != nil {
		return nil, err
	}

	a := &app{opts: opts, settings: settings, log: lg}
	lg.Debug("starting", "options", fmt.Sprintf("%+v", opts), "backend", settings.RendererConfig.Backend)

	var schedOpts []cron.Option
	if settings.HistoryDB != "" {
		st, err := store.NewStore(absPath(settings.HistoryDB), lg.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open history database: %w", err)
		}
		a.store = st
		schedOpts = append(schedOpts, cron.WithRecorder(st))
	}
	if settings.SMTPConfig.Enabled() {
		a.mailer = mail.NewMailer(settings.SMTPConfig)
		schedOpts = append(schedOpts, cron.WithNotifier(a.mailer))
	}

	p := pipeline.New(lg.Logger)
	a.scheduler = cron.NewScheduler(p, opts, settings.RendererConfig, lg.Logger, schedOpts...)
	return a, nil
}

func (a *app) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("failed to close history database", "error", err)
		}
	}
}

// reportError logs err as "<type>: <message>" followed by the stack recorded where it entered the pipeline
func reportError(log *slog.Logger, err error) {
	cause := pipeline.Cause(err)
	log.Error(fmt.Sprintf("%T: %v", cause, err))
	if trace := pipeline.StackTrace(err); trace != "" {
		log.Error("Traceback:" + trace)
	}
}
