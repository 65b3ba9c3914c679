package cron

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/robfig/cron/v3"
	"github.com/yourusername/menu-generator/pkg/config"
	"github.com/yourusername/menu-generator/pkg/model"
	"github.com/yourusername/menu-generator/pkg/pipeline"
)

// Runner performs one render-and-capture pass
type Runner interface {
	Run(ctx context.Context, opts config.Options, rc model.RendererConfig) (*pipeline.Result, error)
}

// Recorder persists run history
type Recorder interface {
	CreateRun(run *model.Run) error
	UpdateRun(run *model.Run) error
}

// Notifier delivers a saved image
type Notifier interface {
	SendImage(imagePath string, vars map[string]string) error
}

// Scheduler executes menu runs, once or on a cron schedule
type Scheduler struct {
	runner   Runner
	recorder Recorder
	notifier Notifier
	logger   *slog.Logger
	opts     config.Options
	renderer model.RendererConfig
	cron     *cron.Cron
	baseCtx  context.Context
}

// Option customises a Scheduler
type Option func(*Scheduler)

// WithRecorder stores every run in r
func WithRecorder(r Recorder) Option {
	return func(s *Scheduler) { s.recorder = r }
}

// WithNotifier mails every saved image through n
func WithNotifier(n Notifier) Option {
	return func(s *Scheduler) { s.notifier = n }
}

// NewScheduler creates a scheduler running runner with the given paths and renderer settings
func NewScheduler(runner Runner, opts config.Options, rc model.RendererConfig, logger *slog.Logger, options ...Option) *Scheduler {
	s := &Scheduler{
		runner:   runner,
		logger:   logger,
		opts:     opts,
		renderer: rc,
		baseCtx:  context.Background(),
	}
	for _, o := range options {
		o(s)
	}
	return s
}

// RunOnce executes a single run, records it and delivers the image.
// Only pipeline failures are returned; history and delivery problems are logged.
func (s *Scheduler) RunOnce(ctx context.Context) (*pipeline.Result, error) {
	run := &model.Run{
		StartedAt:    time.Now(),
		Status:       model.RunStatusRunning,
		Backend:      s.renderer.Backend,
		DataPath:     s.opts.DataPath,
		TemplatePath: s.opts.TemplatePath,
	}
	s.createRun(run)

	result, err := s.runner.Run(ctx, s.opts, s.renderer)

	now := time.Now()
	run.FinishedAt = &now
	if err != nil {
		run.Status = model.RunStatusFailed
		run.ErrorText = err.Error()
		s.updateRun(run)
		return nil, err
	}

	run.Status = model.RunStatusCompleted
	run.Backend = result.Backend
	run.ArtifactPath = result.ImagePath
	run.Bytes = result.Bytes
	run.Checksum = result.Checksum
	// Record the artifact before delivery so history is correct even if mail hangs
	s.updateRun(run)

	if s.notifier != nil {
		s.deliver(run, result)
		s.updateRun(run)
	}
	return result, nil
}

func (s *Scheduler) deliver(run *model.Run, result *pipeline.Result) {
	vars := map[string]string{
		"date":    run.StartedAt.Format("2006-01-02"),
		"time":    run.StartedAt.Format("15:04"),
		"image":   filepath.Base(result.ImagePath),
		"backend": result.Backend,
	}

	s.logger.Info("sending image", "path", result.ImagePath)
	if err := s.notifier.SendImage(result.ImagePath, vars); err != nil {
		s.logger.Warn("failed to send image, it is still saved on disk", "path", result.ImagePath, "error", err)
		run.EmailSent = false
		run.EmailError = err.Error()
		return
	}

	s.logger.Info("image sent", "path", result.ImagePath)
	run.EmailSent = true
	run.EmailError = ""
}

func (s *Scheduler) createRun(run *model.Run) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.CreateRun(run); err != nil {
		s.logger.Warn("failed to create run record", "error", err)
		return
	}
	s.logger.Debug("created run record", "run_id", run.ID)
}

func (s *Scheduler) updateRun(run *model.Run) {
	if s.recorder == nil || run.ID == "" {
		return
	}
	if err := s.recorder.UpdateRun(run); err != nil {
		s.logger.Warn("failed to update run record", "run_id", run.ID, "error", err)
	}
}

// Start schedules runs on cronExpr, evaluated in timezone (empty means local time)
func (s *Scheduler) Start(ctx context.Context, cronExpr, timezone string) error {
	if err := model.ValidateCronExpression(cronExpr); err != nil {
		return err
	}
	loc, err := loadLocation(timezone)
	if err != nil {
		return err
	}

	cl := cronLogger{s.logger}
	s.baseCtx = ctx
	s.cron = cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	entryID, err := s.cron.AddFunc(cronExpr, s.tick)
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.cron.Start()
	s.logger.Info("scheduler started",
		"cron", cronExpr, "timezone", loc.String(), "entry_id", entryID,
		"next_run", NextRun(cronExpr, loc, time.Now()).Format(time.RFC3339))
	return nil
}

// Stop stops the scheduler and waits for a running tick to finish
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// tick is one scheduled run. Failures are recorded and logged; the next tick runs as usual.
func (s *Scheduler) tick() {
	s.logger.Info("scheduled run starting")
	if _, err := s.RunOnce(s.baseCtx); err != nil {
		s.logger.Error("scheduled run failed", "error", err)
		return
	}
	if s.cron != nil {
		for _, e := range s.cron.Entries() {
			s.logger.Info("next scheduled run", "at", e.Next.Format(time.RFC3339))
		}
	}
}

// NextRun returns the first time after now that cronExpr fires in loc.
// Expressions cronexpr cannot read (@every) go through the scheduling parser;
// invalid ones fall back to one hour from now.
func NextRun(cronExpr string, loc *time.Location, now time.Time) time.Time {
	if loc == nil {
		loc = time.Local
	}
	if expr, err := cronexpr.Parse(cronExpr); err == nil {
		return expr.Next(now.In(loc)).Truncate(time.Second)
	}
	if sched, err := cron.ParseStandard(cronExpr); err == nil {
		return sched.Next(now.In(loc)).Truncate(time.Second)
	}
	return now.Add(time.Hour).Truncate(time.Second)
}

// IntervalCron turns a named interval into a cron expression
func IntervalCron(interval string) (string, error) {
	switch interval {
	case "hourly":
		return "0 * * * *", nil // Every hour on the hour
	case "daily":
		return "0 0 * * *", nil // Every day at midnight
	case "weekly":
		return "0 0 * * 1", nil // Every Monday at midnight
	case "monthly":
		return "0 0 1 * *", nil // First day of month at midnight
	default:
		return "", fmt.Errorf("unknown interval %q (want hourly, daily, weekly or monthly)", interval)
	}
}

func loadLocation(timezone string) (*time.Location, error) {
	if timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %s: %w", timezone, err)
	}
	return loc, nil
}

// cronLogger forwards robfig/cron logging to slog
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
