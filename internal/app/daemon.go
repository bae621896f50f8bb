package app

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
)

// Daemon schedules the batch operations by cron spec inside one process, for
// deployments without an external scheduler. Each job is the same idempotent
// operation the standalone commands run.
func (a *App) Daemon(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runner := cron.New()

	jobs := []struct {
		name string
		spec string
		fn   func(context.Context) error
	}{
		{"record-price", a.Config.Daemon.RecordPriceSpec, func(ctx context.Context) error {
			return a.RecordDailyPrice(ctx, RecordOptions{})
		}},
		{"basecheck", a.Config.Daemon.BaseCheckSpec, func(ctx context.Context) error {
			return a.BaseCheck(ctx, false)
		}},
		{"addcheck", a.Config.Daemon.AddCheckSpec, func(ctx context.Context) error {
			return a.AddCheck(ctx, false)
		}},
		{"alerts", a.Config.Daemon.AlertsSpec, a.RunAlerts},
		{"record-tick", a.Config.Daemon.RecordTickSpec, a.RecordTick},
	}

	for _, job := range jobs {
		if job.spec == "" {
			continue
		}
		name, fn := job.name, job.fn
		if _, err := runner.AddFunc(job.spec, func() {
			start := time.Now()
			if err := fn(ctx); err != nil {
				a.Logger.Error().Err(err).Str("job", name).Msg("scheduled job failed")
				return
			}
			a.Logger.Info().Str("job", name).Dur("took", time.Since(start)).Msg("scheduled job completed")
		}); err != nil {
			return err
		}
		a.Logger.Info().Str("job", name).Str("spec", job.spec).Msg("job scheduled")
	}

	runner.Start()
	defer runner.Stop()

	a.Logger.Info().Msg("daemon started")
	<-ctx.Done()
	a.Logger.Info().Msg("daemon stopped")
	return nil
}
