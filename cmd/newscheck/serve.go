package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/zombar/newscheck/internal/tracing"
	"github.com/zombar/newscheck/pkg/logging"
)

func newServeCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API. Without a Redis address, feedback retrains and the
periodic retrain check run inside this process.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	cmd.Flags().String("port", "", "HTTP port (env: NEWSCHECK_PORT)")
	return cmd
}

func runServe(ctx context.Context, opts *options) error {
	cfg, logger := opts.cfg, opts.logger
	ctx, stop := notifyContext(ctx)
	defer stop()

	tp, err := tracing.Init(ctx, tracing.Config{
		ServiceName: "newscheck",
		Endpoint:    cfg.TracingEndpoint,
		SampleRatio: cfg.TracingSampleRatio,
	})
	if err != nil {
		logger.Warn("failed to initialize tracer, continuing without tracing", "error", err)
	} else {
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				logger.Error("error shutting down tracer", "error", err)
			}
		}()
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	go a.watchDBStats(ctx)

	if a.queue == nil {
		sched, err := a.scheduler()
		if err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop(context.Background())
	}

	// Tracing wraps logging so request logs carry the trace ID
	handler := tracing.HTTPMiddleware("newscheck")(
		logging.HTTPLoggingMiddleware(logger)(a.handler()),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("newscheck service starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	logger.Info("server stopped")
	return nil
}

// notifyContext is shared by the long-running commands
func notifyContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}
