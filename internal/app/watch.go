package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"crypto-dca-bot/internal/alert"
	"crypto-dca-bot/internal/scheduler"
)

// Watch runs the aligned-interval sampling loop: each tick records a
// short-term price per monitored symbol and then runs the drop watchdog.
func (a *App) Watch(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	history, closeStore, err := a.openHistory(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	ex := a.newExchange()
	monitor := alert.NewMonitor(a.Config.Alerts, ex, history, a.newNotifier(), a.Logger)

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Watch.Interval,
		AlignToStart: a.Config.Watch.AlignToBucket,
		StartupDelay: a.Config.Watch.StartupDelay,
	}, a.Logger)

	a.Logger.Info().Dur("interval", a.Config.Watch.Interval).Msg("starting watch loop")

	err = sched.Run(ctx, func(ctx context.Context, at time.Time) error {
		if err := a.recordTick(ctx, history); err != nil {
			return err
		}
		monitor.CheckSuddenDrops(ctx)
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	a.Logger.Info().Msg("watch loop stopped")
	return nil
}
