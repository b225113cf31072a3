// Package main runs the standalone scoring worker: grade answers, upsert scores, rebuild reports.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aura-interview/backend/config"
	"github.com/aura-interview/backend/internal/interview"
	"github.com/aura-interview/backend/internal/llm"
	"github.com/aura-interview/backend/internal/realtime"
	"github.com/aura-interview/backend/internal/scoring"
	"github.com/aura-interview/backend/internal/worker"
	"github.com/aura-interview/backend/pkg/database"
	"github.com/aura-interview/backend/pkg/queue"
	"github.com/aura-interview/backend/pkg/redis"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	model, err := llm.New(ctx, cfg.Scoring, scoring.SystemInstruction, logger)
	if err != nil {
		logger.Fatal("llm", zap.Error(err))
	}

	jobQueue := queue.NewQueue(rdb.Client, logger)
	relay := realtime.NewScoreRelay(rdb.Client, logger)
	scorer := scoring.NewScorer(interview.NewRepository(pool), scoring.NewRepository(pool), model, relay, cfg.Scoring, logger)
	processor := worker.NewScoringProcessor(scorer, jobQueue, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		processor.Run(workerCtx, cfg.Scoring.WorkerConcurrency)
		close(done)
	}()
	logger.Info("scoring worker started",
		zap.String("provider", cfg.Scoring.Provider),
		zap.Int("concurrency", cfg.Scoring.WorkerConcurrency),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	select {
	case <-done:
	case <-time.After(cfg.Scoring.Timeout + 5*time.Second):
		logger.Warn("scoring worker did not stop in time")
	}
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
