package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kiranshivaraju/cachewatch/internal/api"
	"github.com/kiranshivaraju/cachewatch/internal/api/handler"
	"github.com/kiranshivaraju/cachewatch/internal/monitor"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

func serveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the monitor on an interval and serve its status",
		Long: `Run the monitor every CACHEWATCH_INTERVAL, one run at a time, and serve
GET /api/v1/health and GET /api/v1/runs/last on CACHEWATCH_ADDR.

A failed run is logged and reported by /api/v1/runs/last; the next tick
tries again.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, a)
		},
	}
}

func serve(ctx context.Context, a *app) error {
	m, st, src, closeStore, err := buildMonitor(ctx, a.cfg, a.logger)
	if err != nil {
		return err
	}
	defer closeStore()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sched := monitor.NewScheduler(m, a.cfg.Run.Interval, a.cfg.Run.Timeout, a.logger)

	router := api.NewRouter(api.Dependencies{
		Logger:         a.logger,
		HealthHandler:  handler.NewHealthHandler(st, src),
		LastRunHandler: handler.NewLastRunHandler(sched),
	})

	srv := &http.Server{
		Addr:         a.cfg.Run.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("status server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	schedDone := make(chan struct{})
	go func() {
		a.logger.Info("scheduler started", "interval", a.cfg.Run.Interval.String())
		sched.Start(ctx)
		close(schedDone)
	}()

	var serveErr error
	select {
	case err := <-errCh:
		serveErr = fmt.Errorf("server error: %w", err)
		cancel()
	case <-ctx.Done():
		a.logger.Info("shutdown signal received, waiting for the current run...")
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil && serveErr == nil {
		serveErr = fmt.Errorf("server shutdown: %w", err)
	}

	// The store must outlive the last run.
	<-schedDone
	if serveErr == nil {
		a.logger.Info("stopped gracefully")
	}
	return serveErr
}
