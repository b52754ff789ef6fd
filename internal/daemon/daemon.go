// Package daemon wires the full service: storage, run log, extractors,
// notification channels, scheduler, admin API and metrics endpoint, all
// supervised as one actor group.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yairfalse/shelfwatch/config"
	"github.com/yairfalse/shelfwatch/confirm"
	"github.com/yairfalse/shelfwatch/extractor"
	"github.com/yairfalse/shelfwatch/internal/api"
	"github.com/yairfalse/shelfwatch/notify"
	"github.com/yairfalse/shelfwatch/runlog"
	"github.com/yairfalse/shelfwatch/scheduler"
	"github.com/yairfalse/shelfwatch/storage"
	"github.com/yairfalse/shelfwatch/telemetry"
)

// Run starts the daemon and blocks until a signal or a fatal error.
func Run(ctx context.Context, cfg *config.Config, logger *telemetry.Logger) error {
	shutdown, err := telemetry.InitOTEL(ctx, telemetry.Config{
		ServiceName:  "shelfwatch",
		Environment:  cfg.Telemetry.Environment,
		OTELEndpoint: cfg.Telemetry.OTELEndpoint,
		Insecure:     cfg.Telemetry.Insecure,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("telemetry shutdown failed")
		}
	}()

	if err := os.MkdirAll(cfg.Storage.Dir, 0755); err != nil {
		return fmt.Errorf("create storage dir: %w", err)
	}

	store, err := storage.Open(cfg.Storage.Dir)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()

	log, err := runlog.Open(cfg.Storage.Dir)
	if err != nil {
		return fmt.Errorf("open runlog: %w", err)
	}
	defer log.Close()

	if err := seedTargets(cfg, store); err != nil {
		return err
	}

	metrics, err := telemetry.NewMonitorMetrics()
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	sched := buildScheduler(cfg, store, log, logger, metrics)

	apiHandler := api.NewRouter(&api.Deps{
		Scheduler: sched,
		Store:     store,
		History: func(targetID string, limit int) ([]*runlog.Entry, error) {
			return runlog.History(cfg.Storage.Dir, targetID, time.Time{}, limit)
		},
		Logger: logger,
	})

	return supervise(ctx, cfg, logger, sched, apiHandler)
}

// seedTargets upserts configured targets into the registry. Targets added
// through the API and absent from the file are left alone.
func seedTargets(cfg *config.Config, store *storage.Store) error {
	targets, err := cfg.MonitoredTargets()
	if err != nil {
		return err
	}
	for _, t := range targets {
		if err := store.SaveTarget(t); err != nil {
			return fmt.Errorf("seed target %s: %w", t.ID, err)
		}
	}
	return nil
}

func buildScheduler(
	cfg *config.Config,
	store *storage.Store,
	log *runlog.Log,
	logger *telemetry.Logger,
	metrics *telemetry.MonitorMetrics,
) *scheduler.Scheduler {
	registry := extractor.NewRegistry(extractor.NewSafeClient(cfg.Monitor.ProbeTimeout))
	dispatcher := notify.NewDispatcher(buildChannels(cfg), logger, cfg.Notifications.ChannelTimeout)

	return scheduler.New(
		store,
		registry,
		confirm.NewPolicy(cfg.Monitor.ConfirmChecks),
		dispatcher,
		log,
		logger,
		metrics,
		scheduler.Options{
			Interval:        cfg.Monitor.Interval,
			Parallelism:     cfg.Monitor.Parallelism,
			ProbeTimeout:    cfg.Monitor.ProbeTimeout,
			Retries:         cfg.Monitor.Retries,
			RetryDelay:      cfg.Monitor.RetryDelay,
			NotifyOnAdded:   *cfg.Notifications.NotifyOnAdded,
			NotifyOnRemoved: *cfg.Notifications.NotifyOnRemoved,
			NotifyOnError:   *cfg.Notifications.NotifyOnError,
		},
	)
}

func buildChannels(cfg *config.Config) []notify.Channel {
	var channels []notify.Channel

	if cfg.Channels.Email.Enabled {
		channels = append(channels, &notify.EmailChannel{
			Host:       cfg.Channels.Email.SMTPHost,
			Port:       cfg.Channels.Email.SMTPPort,
			Sender:     cfg.Channels.Email.Sender,
			Password:   cfg.Channels.Email.Password,
			Recipients: cfg.Channels.Email.Recipients,
		})
	}
	if cfg.Channels.Push.Enabled {
		channels = append(channels, &notify.PushChannel{
			Endpoint: cfg.Channels.Push.Endpoint,
			Key:      cfg.Channels.Push.Key,
		})
	}
	if cfg.Channels.Webhook.Enabled {
		channels = append(channels, &notify.WebhookChannel{
			URL: cfg.Channels.Webhook.URL,
		})
	}

	return channels
}

// supervise runs the scheduler, admin API and metrics endpoint as one
// group: the first actor to stop brings the others down.
func supervise(
	ctx context.Context,
	cfg *config.Config,
	logger *telemetry.Logger,
	sched *scheduler.Scheduler,
	apiHandler http.Handler,
) error {
	var g run.Group

	// signal handling
	g.Add(run.SignalHandler(ctx, os.Interrupt, syscall.SIGTERM))

	// scheduler loop
	{
		stop := make(chan struct{})
		g.Add(func() error {
			sched.Start()
			<-stop
			return nil
		}, func(error) {
			sched.Stop()
			close(stop)
		})
	}

	// admin API
	{
		srv := &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           apiHandler,
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Add(func() error {
			logger.Info().Str("addr", cfg.Server.Addr).Msg("admin API listening")
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		}, func(error) {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		})
	}

	// metrics endpoint
	{
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(
			telemetry.PrometheusRegistry,
			promhttp.HandlerOpts{},
		))
		srv := &http.Server{
			Addr:              cfg.Server.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Add(func() error {
			logger.Info().Str("addr", cfg.Server.MetricsAddr).Msg("metrics listening")
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		}, func(error) {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		})
	}

	err := g.Run()
	var sigErr run.SignalError
	if errors.As(err, &sigErr) {
		logger.Info().Str("signal", sigErr.Signal.String()).Msg("shutting down")
		return nil
	}
	return err
}
