// Package main runs the live interview HTTP/websocket server with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aura-interview/backend/config"
	"github.com/aura-interview/backend/internal/audio"
	"github.com/aura-interview/backend/internal/auth"
	"github.com/aura-interview/backend/internal/interview"
	"github.com/aura-interview/backend/internal/livesignal"
	"github.com/aura-interview/backend/internal/llm"
	"github.com/aura-interview/backend/internal/middleware"
	"github.com/aura-interview/backend/internal/realtime"
	"github.com/aura-interview/backend/internal/scoring"
	"github.com/aura-interview/backend/internal/speech"
	"github.com/aura-interview/backend/internal/worker"
	"github.com/aura-interview/backend/pkg/database"
	"github.com/aura-interview/backend/pkg/queue"
	"github.com/aura-interview/backend/pkg/redis"
	"github.com/aura-interview/backend/pkg/response"
	"github.com/aura-interview/backend/pkg/storage"
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

	if cfg.Database.Migrate {
		if err := database.Migrate(ctx, pool, logger); err != nil {
			logger.Fatal("migrate", zap.Error(err))
		}
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var audioStore interview.AudioPublisher
	if cfg.AWS.Region != "" {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			AudioBucket:          cfg.AWS.AudioBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled, agent messages will carry no audio", zap.Error(err))
		} else {
			audioStore = s3Client
		}
	}

	var jwtService *auth.JWTService
	if cfg.JWT.Secret != "" {
		jwtService = auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	} else {
		logger.Warn("CANDIDATE_TOKEN_SECRET not set, interview endpoints are unauthenticated")
	}

	interviewRepo := interview.NewRepository(pool)
	scoreRepo := scoring.NewRepository(pool)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	registry := realtime.NewRegistry(logger)
	relay := realtime.NewScoreRelay(rdb.Client, logger)

	engine := interview.NewEngine(interview.Deps{
		Store:       interviewRepo,
		Scheduler:   jobQueue,
		Sender:      registry,
		Assembler:   audio.NewAssembler(cfg.Audio.MaxBufferBytes),
		Analyzer:    livesignal.NewAnalyzer(cfg.Live, nil),
		Policy:      finalizePolicy(cfg.Audio, logger),
		Recognizer:  speech.NewRecognizer(cfg.Speech.RecognizerURL),
		Synthesizer: speech.NewSynthesizer(cfg.Speech.SynthesizerURL),
		Audio:       audioStore,
		Logger:      logger,
	}, interview.Options{
		RecognizeTimeout:  cfg.Speech.RecognizeTimeout,
		SynthesizeTimeout: cfg.Speech.SynthesizeTimeout,
		PartialRecognize:  cfg.Audio.PartialRecognize,
	})
	interviewHandler := interview.NewHandler(engine, registry, cfg.Audio.MaxChunkBytes, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	router.GET("/health", func(c *gin.Context) {
		if !rdb.Healthy(c.Request.Context(), 2*time.Second) {
			response.ServiceUnavailable(c, "redis unavailable")
			return
		}
		if err := pool.Ping(c.Request.Context()); err != nil {
			response.ServiceUnavailable(c, "database unavailable")
			return
		}
		response.OK(c, gin.H{"status": "ok", "connections": registry.Count()})
	})
	interviewHandler.Register(router, jwtService)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	go func() {
		if err := relay.Run(bgCtx, registry); err != nil && bgCtx.Err() == nil {
			logger.Error("score relay stopped", zap.Error(err))
		}
	}()

	workersDone := make(chan struct{})
	if cfg.Server.RunWorkers {
		model, err := llm.New(ctx, cfg.Scoring, scoring.SystemInstruction, logger)
		if err != nil {
			logger.Fatal("llm", zap.Error(err))
		}
		scorer := scoring.NewScorer(interviewRepo, scoreRepo, model, relay, cfg.Scoring, logger)
		processor := worker.NewScoringProcessor(scorer, jobQueue, logger)
		go func() {
			processor.Run(bgCtx, cfg.Scoring.WorkerConcurrency)
			close(workersDone)
		}()
		logger.Info("scoring workers started",
			zap.String("provider", cfg.Scoring.Provider),
			zap.Int("concurrency", cfg.Scoring.WorkerConcurrency),
		)
	} else {
		close(workersDone)
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	bgCancel()
	select {
	case <-workersDone:
	case <-shutdownCtx.Done():
		logger.Warn("scoring workers did not stop in time")
	}
	logger.Info("server stopped")
}

func finalizePolicy(cfg config.AudioConfig, logger *zap.Logger) audio.FinalizePolicy {
	switch cfg.FinalizePolicy {
	case "vad":
		logger.Info("audio finalize policy: voice activity",
			zap.Float64("threshold", cfg.VADThreshold),
			zap.Duration("silence", cfg.VADSilence),
		)
		return audio.NewEnergyPolicy(cfg.VADThreshold, cfg.VADSilence, nil)
	default:
		return audio.ClientSignaled{}
	}
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
