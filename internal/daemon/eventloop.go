package daemon

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/harun/walletlink/internal/tracing"
)

// EventLoop runs the scheduled provider refresh. A refresh notices injected
// providers that appeared, vanished or were replaced since the last one.
type EventLoop struct {
	daemon    *Daemon
	scheduler *cron.Cron
	logger    zerolog.Logger
}

// NewEventLoop creates a new event loop
func NewEventLoop(d *Daemon) *EventLoop {
	logger := d.logger.GetZerolog().With().Str("component", "eventloop").Logger()
	adapter := &cronLoggerAdapter{logger: logger}

	return &EventLoop{
		daemon: d,
		scheduler: cron.New(
			cron.WithLogger(adapter),
			cron.WithChain(cron.Recover(adapter), cron.SkipIfStillRunning(adapter)),
		),
		logger: logger,
	}
}

// Start schedules the refresh job. An empty schedule disables it.
func (e *EventLoop) Start(ctx context.Context, schedule string) error {
	if schedule != "" {
		if _, err := e.scheduler.AddFunc(schedule, func() { e.processTasks(ctx) }); err != nil {
			return fmt.Errorf("invalid refresh schedule %q: %w", schedule, err)
		}
	}

	e.scheduler.Start()
	e.logger.Info().Str("schedule", schedule).Msg("Event loop started")
	return nil
}

// Stop stops the scheduler and waits for a running refresh to finish.
func (e *EventLoop) Stop(timeout time.Duration) {
	select {
	case <-e.scheduler.Stop().Done():
		e.logger.Info().Msg("Event loop stopped")
	case <-time.After(timeout):
		e.logger.Warn().Msg("Timeout waiting for refresh to finish")
	}
}

// processTasks checks the transport and refreshes the provider binding
func (e *EventLoop) processTasks(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	ctx = tracing.WithOperation(tracing.NewRequestContext(ctx), "wallet.refresh")
	logger := tracing.LoggerFromContext(ctx, e.logger)

	timeout := time.Duration(e.daemon.GetConfig().Wallet.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if checker, ok := e.daemon.source.(healthChecker); ok {
		if err := checker.Healthy(ctx); err != nil {
			logger.Warn().Err(err).Msg("Provider transport is unhealthy")
		}
	}

	if err := e.daemon.manager.Refresh(ctx); err != nil {
		logger.Warn().Err(err).Msg("Provider refresh failed")
		return
	}
	logger.Debug().Msg("Provider refreshed")
}

// cronLoggerAdapter adapts zerolog.Logger to cron.Logger
type cronLoggerAdapter struct {
	logger zerolog.Logger
}

func (l *cronLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	l.log(l.logger.Debug(), msg, keysAndValues...)
}

func (l *cronLoggerAdapter) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log(l.logger.Error().Err(err), msg, keysAndValues...)
}

func (l *cronLoggerAdapter) log(ev *zerolog.Event, msg string, fields ...interface{}) {
	for i := 0; i < len(fields); i += 2 {
		if i+1 < len(fields) {
			if key, ok := fields[i].(string); ok {
				ev.Interface(key, fields[i+1])
			}
		}
	}
	ev.Msg(msg)
}
