package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/corepool/dispatch/internal/config"
	"github.com/corepool/dispatch/internal/logger"
	"github.com/corepool/dispatch/internal/scheduler"
	"github.com/corepool/dispatch/internal/statsapi"
)

// newServeCmd builds the "serve" subcommand: config, logger, scheduler and
// the stats HTTP server, torn down gracefully on SIGINT/SIGTERM.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the scheduler and its stats HTTP surface",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	log := logger.New("dispatchd")

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("dispatchd: config: %w", err)
	}

	sched, err := scheduler.New(scheduler.Params{
		MinWorkers:      cfg.WorkersMin,
		MaxWorkers:      cfg.WorkersMax,
		StickyWorkers:   cfg.WorkersSticky,
		MaxIdleInterval: time.Duration(cfg.MaxIdleInterval) * time.Second,
	}, log)
	if err != nil {
		return fmt.Errorf("dispatchd: scheduler: %w", err)
	}
	sched.Start()

	router := statsapi.NewRouter(sched)
	server := &http.Server{
		Addr:         cfg.GetHTTPAddr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("dispatchd: stats HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		log.Info().Msg("dispatchd: shutting down")
	case err := <-serveErr:
		if err != nil {
			log.Error().Err(err).Msg("dispatchd: HTTP server failed")
		}
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("dispatchd: HTTP server forced to shutdown")
	}

	schedCtx, cancelSched := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelSched()
	if err := sched.Stop(schedCtx); err != nil {
		log.Error().Err(err).Msg("dispatchd: scheduler did not stop cleanly")
	}

	log.Info().Msg("dispatchd: exited")
	return nil
}
