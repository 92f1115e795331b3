package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"meetai/internal/metrics"
	"meetai/internal/util"
	"meetai/pkg/ai"
	"meetai/pkg/events"
	"meetai/pkg/queue"
	"meetai/pkg/storage"
	"meetai/pkg/store"
	"meetai/services/worker/internal/app"
	"meetai/services/worker/internal/config"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("ignoring .env: %v", err)
	}
	cfg, err := config.Load(os.Getenv("WORKER_CONFIG"))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.InitLogger("worker", cfg.LogLevel)
	m := metrics.New("worker")

	st, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to init store: %v", err)
	}
	defer st.Close()
	if sqlDB, err := st.SQLDB(); err == nil {
		if err := m.RegisterDB(sqlDB, "meetai"); err != nil {
			logger.Warn("db stats collector not registered", "err", err)
		}
	}

	generator, err := ai.New(cfg.LLM)
	if err != nil {
		log.Fatalf("failed to init llm: %v", err)
	}

	var publisher events.Publisher = events.Nop{}
	if strings.TrimSpace(cfg.AMQPURL) != "" {
		pub, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			log.Fatalf("failed to init event publisher: %v", err)
		}
		defer pub.Close()
		publisher = pub
	}

	var objects storage.ObjectStore
	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		objects, err = storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			log.Fatalf("failed to init object store: %v", err)
		}
	}

	worker, err := app.New(app.Config{
		Store:              st,
		Generator:          generator,
		Objects:            objects,
		Events:             publisher,
		Metrics:            m,
		ChatHistory:        cfg.ChatHistory,
		TranscriptMaxBytes: cfg.TranscriptMaxBytes,
		SpeakerLookups:     cfg.SpeakerLookups,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	retryDelay := 2 * time.Second
	if cfg.QueueRetryDelaySeconds > 0 {
		retryDelay = time.Duration(cfg.QueueRetryDelaySeconds) * time.Second
	}
	jobs, err := queue.NewRedisJobQueue(queue.RedisQueueConfig{
		Addr:       cfg.RedisAddr,
		Password:   cfg.RedisPassword,
		Stream:     orDefault(cfg.QueueStream, "meetai:jobs"),
		Group:      orDefault(cfg.QueueGroup, "workers"),
		Consumer:   util.NewID(),
		MaxRetries: cfg.QueueMaxRetries,
		RetryDelay: retryDelay,
		Observer:   m.JobOutcome,
	})
	if err != nil {
		log.Fatalf("failed to init job queue: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	concurrency := cfg.QueueConcurrency
	if concurrency <= 0 {
		concurrency = 2
	}
	if err := jobs.Start(ctx, concurrency, worker.Handle); err != nil {
		log.Fatalf("failed to start queue consumers: %v", err)
	}
	logger.Info("worker consuming jobs", "concurrency", concurrency)

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := st.Ping(r.Context()); err != nil {
			http.Error(w, "store unavailable", http.StatusServiceUnavailable)
			return
		}
		if err := jobs.Ping(r.Context()); err != nil {
			http.Error(w, "queue unavailable", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})
	srv := &http.Server{
		Addr:         ":" + orDefault(cfg.MetricsPort, "9091"),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "err", err)
		}
	}()

	<-ctx.Done()
	logger.Info("worker shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	if err := jobs.Close(); err != nil {
		logger.Error("queue close error", "err", err)
	}
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
