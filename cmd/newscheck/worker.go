package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/zombar/newscheck/internal/queue"
	"github.com/zombar/newscheck/internal/tracing"
)

func newWorkerCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Process background retrain and calibration jobs",
		Long: `Process retrain and calibration jobs enqueued in Redis by the API, and
run the periodic retrain check and calibration schedule.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWorker(cmd.Context(), opts)
		},
	}
	cmd.Flags().Int("worker.concurrency", 0, "Concurrent jobs (env: NEWSCHECK_WORKER_CONCURRENCY)")
	return cmd
}

func runWorker(ctx context.Context, opts *options) error {
	cfg, logger := opts.cfg, opts.logger
	if cfg.RedisAddr == "" {
		return errors.New("worker requires redis_addr")
	}

	ctx, stop := notifyContext(ctx)
	defer stop()

	tp, err := tracing.Init(ctx, tracing.Config{
		ServiceName: "newscheck-worker",
		Endpoint:    cfg.TracingEndpoint,
		SampleRatio: cfg.TracingSampleRatio,
	})
	if err != nil {
		logger.Warn("failed to initialize tracer, continuing without tracing", "error", err)
	} else {
		defer tp.Shutdown(context.Background())
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := a.scheduler()
	if err != nil {
		return err
	}

	worker := queue.NewWorker(queue.WorkerConfig{
		RedisAddr:   cfg.RedisAddr,
		Concurrency: cfg.WorkerConcurrency,
	}, a.trigger, a.calibration)

	logger.Info("worker running", "redis", cfg.RedisAddr)
	return supervise(ctx, sched, worker, logger)
}

type scheduleRunner interface {
	Start()
	Stop(ctx context.Context) error
}

type taskServer interface {
	Start() error
	Shutdown()
}

// supervise runs the schedule and the task server until ctx is done
func supervise(ctx context.Context, sched scheduleRunner, server taskServer, logger *slog.Logger) error {
	sched.Start()
	if err := server.Start(); err != nil {
		sched.Stop(context.Background())
		return err
	}

	<-ctx.Done()

	logger.Info("shutting down worker")
	if err := sched.Stop(context.Background()); err != nil {
		logger.Warn("scheduler did not stop cleanly", "error", err)
	}
	server.Shutdown()
	return nil
}
