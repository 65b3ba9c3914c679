package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/yourusername/menu-generator/pkg/cron"
)

var (
	cronExpr     string
	interval     string
	timezoneName string
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Render and capture the menu on a cron schedule",
	Long: `schedule keeps running and performs one full render-and-capture on every
tick of the cron expression. A failing tick is logged and recorded; the next
tick runs as usual. Stop with SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), runSchedule)
	},
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
	scheduleCmd.Flags().StringVar(&cronExpr, "cron", "", `Cron expression, e.g. "30 6 * * 1-5"`)
	scheduleCmd.Flags().StringVar(&interval, "interval", "", "Shorthand for --cron: hourly, daily, weekly or monthly")
	scheduleCmd.Flags().StringVar(&timezoneName, "timezone", "", "IANA timezone the expression is evaluated in (default local)")
}

func runSchedule(ctx context.Context, a *app) error {
	expr, err := scheduleExpression(cronExpr, interval)
	if err != nil {
		return err
	}

	// Fail fast on inputs that would break every tick
	if err := a.opts.Validate(); err != nil {
		return err
	}
	if a.mailer != nil {
		if err := a.mailer.Ping(); err != nil {
			a.log.Warn("smtp server not reachable, images will still be saved", "error", err)
		}
	}

	if err := a.scheduler.Start(ctx, expr, timezoneName); err != nil {
		return err
	}
	<-ctx.Done()
	a.log.Info("shutting down", "reason", context.Cause(ctx))
	a.scheduler.Stop()
	return nil
}

func scheduleExpression(expr, interval string) (string, error) {
	switch {
	case expr != "" && interval != "":
		return "", errors.New("--cron and --interval are mutually exclusive")
	case expr != "":
		return expr, nil
	case interval != "":
		return cron.IntervalCron(interval)
	default:
		return "", errors.New("one of --cron or --interval is required")
	}
}
