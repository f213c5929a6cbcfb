package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"memoryhttpd/internal/api"
	"memoryhttpd/internal/config"
	"memoryhttpd/internal/logs"
	"memoryhttpd/internal/metrics"
	"memoryhttpd/internal/store"
	"memoryhttpd/internal/ttl"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cfg, err := config.Load(os.Args[1:], os.Getenv, os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "memoryhttpd: %v\n", err)
		os.Exit(2)
	}

	// Cancelled on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "memoryhttpd: %v\n", err)
		os.Exit(1)
	}
}

// run serves until ctx is cancelled or a listener fails.
func run(ctx context.Context, cfg config.Config) error {
	// Logger
	logger := logs.NewLogger(cfg.LogBuffer, cfg.LogLevel,
		logs.WithOutput(os.Stderr),
		logs.WithColor(!cfg.NoLoggingColors),
	)

	// Metrics
	metricsRegistry := metrics.NewRegistry()

	// Store
	cacheStore := store.NewStore(metricsRegistry)

	// Expiration scheduler
	scheduler := ttl.NewScheduler(
		cacheStore,
		ttl.Config{
			QueueSize:       cfg.QueueSize,
			RegisterTimeout: cfg.RegisterTimeout,
			Strict:          cfg.StrictExpiry,
		},
		logger,
		metricsRegistry,
	)
	// Outlives ctx so requests still draining can register expirations;
	// stopped by Close below.
	go scheduler.Run(context.Background())

	// API
	handler := api.NewHandler(
		cacheStore,
		scheduler,
		cfg.DefaultExpiration,
		metricsRegistry,
		logger,
	)

	servers := []*http.Server{{
		Addr:    cfg.Addr,
		Handler: api.NewRouter(handler),
	}}
	if cfg.AdminAddr != "" {
		servers = append(servers, &http.Server{
			Addr:    cfg.AdminAddr,
			Handler: api.NewAdminRouter(handler),
		})
	}

	errCh := make(chan error, len(servers))
	for _, srv := range servers {
		go func(srv *http.Server) {
			logger.Infof("listening on %s", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("server %s: %w", srv.Addr, err)
			}
		}(srv)
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case runErr = <-errCh:
		logger.Error(runErr.Error())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("shutdown %s: %v", srv.Addr, err)
		}
	}

	// Requests are drained, nothing can register expirations any more.
	scheduler.Close()
	<-scheduler.Done()

	return runErr
}
