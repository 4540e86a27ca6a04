package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/zombar/newscheck/internal/api"
	"github.com/zombar/newscheck/internal/calibration"
	"github.com/zombar/newscheck/internal/classifier"
	"github.com/zombar/newscheck/internal/config"
	"github.com/zombar/newscheck/internal/database"
	"github.com/zombar/newscheck/internal/feedback"
	"github.com/zombar/newscheck/internal/llm"
	"github.com/zombar/newscheck/internal/metrics"
	"github.com/zombar/newscheck/internal/queue"
	"github.com/zombar/newscheck/internal/verifier"
)

// app is the wired service graph shared by all commands
type app struct {
	cfg         *config.Config
	db          *database.DB
	registry    *prometheus.Registry
	metrics     *metrics.Metrics
	judge       llm.Judge
	verifier    *verifier.Verifier
	trigger     *feedback.Trigger
	calibration *calibration.Service
	trainer     *classifier.Trainer
	queue       *queue.Client
}

func newApp(cfg *config.Config) (*app, error) {
	db, err := database.New(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New("newscheck", reg)

	judge, err := llm.NewJudge(cfg.LLM)
	if err != nil {
		slog.Warn("LLM judge unavailable, analyses will use the neutral default",
			"provider", cfg.LLM.Provider,
			"error", err,
		)
		judge = nil
	}

	retrainer := classifier.NewCommandRetrainer(cfg.RetrainCommand, cfg.FeedbackPath, db)

	a := &app{
		cfg:         cfg,
		db:          db,
		registry:    reg,
		metrics:     m,
		judge:       judge,
		verifier:    verifier.New(judge, classifier.NewPredictor(cfg.PredictCommand), db, m),
		trigger:     feedback.NewTrigger(db, retrainer, cfg.FeedbackThreshold, m),
		calibration: calibration.NewService(db, cfg.CalibrationRecentLimit, m),
		trainer:     classifier.NewTrainer(cfg.TrainCommand, cfg.DatasetPath),
	}

	if cfg.RedisAddr != "" {
		a.queue = queue.NewClient(queue.ClientConfig{
			RedisAddr:      cfg.RedisAddr,
			RetrainTimeout: cfg.RetrainCommand.Timeout,
		})
	}

	slog.Info("service initialized",
		"database", cfg.DBPath,
		"llm_provider", cfg.LLM.Provider,
		"llm_enabled", judge != nil,
		"predict_command", cfg.PredictCommand.String(),
		"feedback_threshold", cfg.FeedbackThreshold,
		"background_queue", cfg.RedisAddr != "",
	)
	return a, nil
}

// launcher dispatches feedback retrains to the queue when one is
// configured, otherwise to a goroutine in this process
func (a *app) launcher() feedback.Launcher {
	if a.queue != nil {
		return a.queue
	}
	return a.trigger
}

func (a *app) judgeName() string {
	if a.judge == nil {
		return ""
	}
	return a.judge.Name()
}

func (a *app) handler() http.Handler {
	var retrainQueue api.RetrainQueue
	if a.queue != nil {
		retrainQueue = a.queue
	}
	return api.NewHandler(api.Config{
		DB:             a.db,
		Analyzer:       a.verifier,
		Trigger:        a.trigger,
		Launcher:       a.launcher(),
		RetrainQueue:   retrainQueue,
		Trainer:        a.trainer,
		Calibration:    a.calibration,
		JudgeName:      a.judgeName(),
		Gatherer:       a.registry,
		CORSOrigins:    a.cfg.CORSOrigins,
		MaxUploadBytes: a.cfg.MaxUploadBytes,
	})
}

func (a *app) scheduler() (*feedback.Scheduler, error) {
	return feedback.NewScheduler(a.trigger, a.cfg.RetrainSchedule, a.calibration, a.cfg.CalibrationSchedule)
}

// watchDBStats copies connection pool stats into the metrics until ctx ends
func (a *app) watchDBStats(ctx context.Context) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		a.metrics.UpdateDBStats(a.db.Conn().DB)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (a *app) Close() error {
	if a.queue != nil {
		if err := a.queue.Close(); err != nil {
			slog.Error("failed to close queue client", "error", err)
		}
	}
	return a.db.Close()
}
