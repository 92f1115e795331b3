package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"meetai/internal/metrics"
	"meetai/internal/usertoken"
	"meetai/internal/util"
	"meetai/pkg/billing"
	"meetai/pkg/events"
	"meetai/pkg/queue"
	"meetai/pkg/storage"
	"meetai/pkg/store"
	"meetai/pkg/videosdk"
	"meetai/services/api/internal/app"
	"meetai/services/api/internal/config"
	"meetai/services/api/internal/server"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("ignoring .env: %v", err)
	}
	cfg, err := config.Load(os.Getenv("API_CONFIG"))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	jwtLeeway, err := config.ParseJWTLeeway(cfg.JWTLeeway)
	if err != nil {
		log.Fatalf("failed to parse jwt leeway: %v", err)
	}
	tokenTTL, err := config.ParseCallTokenTTL(cfg.CallTokenTTL)
	if err != nil {
		log.Fatalf("failed to parse call token ttl: %v", err)
	}
	productTiers, err := config.ParseProductTiers(cfg.ProductTiers)
	if err != nil {
		log.Fatalf("failed to parse product tiers: %v", err)
	}

	logger := util.InitLogger("api", cfg.LogLevel)
	m := metrics.New("api")

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

	jobs, err := queue.NewRedisJobQueue(queue.RedisQueueConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		Stream:   orDefault(cfg.QueueStream, "meetai:jobs"),
		Group:    orDefault(cfg.QueueGroup, "workers"),
	})
	if err != nil {
		log.Fatalf("failed to init job queue: %v", err)
	}
	defer jobs.Close()

	video, err := videosdk.NewClient(cfg.VideoBaseURL, cfg.VideoAPIKey, cfg.VideoAPISecret)
	if err != nil {
		log.Fatalf("failed to init video client: %v", err)
	}

	var billingProvider billing.Provider
	if strings.TrimSpace(cfg.BillingBaseURL) != "" {
		client, err := billing.NewClient(cfg.BillingBaseURL, cfg.BillingToken)
		if err != nil {
			log.Fatalf("failed to init billing client: %v", err)
		}
		billingProvider = client
	} else {
		logger.Warn("billing not configured, every user resolves to the free tier")
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

	var verifier *usertoken.Verifier
	if strings.TrimSpace(cfg.AuthJWKSURL) != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		verifier, err = usertoken.NewVerifier(ctx, usertoken.Config{
			JWKSURL:  cfg.AuthJWKSURL,
			Issuer:   cfg.JWTIssuer,
			Audience: cfg.JWTAudience,
			Leeway:   jwtLeeway,
		})
		cancel()
		if err != nil {
			log.Fatalf("failed to init token verifier: %v", err)
		}
	}

	trusted, err := util.NewTrustedProxies(cfg.TrustedProxyCIDRs)
	if err != nil {
		log.Fatalf("failed to parse trusted proxies: %v", err)
	}

	appCore, err := app.New(app.Config{
		Store:         st,
		Video:         video,
		Billing:       billingProvider,
		Jobs:          jobs,
		Events:        publisher,
		Objects:       objects,
		Metrics:       m,
		ProductTiers:  productTiers,
		RetentionDays: cfg.RetentionDays,
		TokenTTL:      tokenTTL,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	httpServer, err := server.New(server.Config{
		App:           appCore,
		Users:         st,
		TokenVerifier: verifier,
		Metrics:       m,
		Ready: func(ctx context.Context) error {
			if err := st.Ping(ctx); err != nil {
				return err
			}
			return jobs.Ping(ctx)
		},
		RedisAddr:                 cfg.RedisAddr,
		RedisPassword:             cfg.RedisPassword,
		WebhookRateLimitPerMinute: cfg.WebhookRateLimitPerMinute,
		ChatRateLimitPerMinute:    cfg.ChatRateLimitPerMinute,
		MaxWebhookBytes:           cfg.MaxWebhookBytes,
		SessionCookieName:         cfg.SessionCookieName,
		SessionCookieSecret:       cfg.SessionCookieSecret,
		CORSAllowedOrigins:        cfg.CORSAllowedOrigins,
		TrustedProxies:            trusted,
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "err", err)
		}
	}()

	slog.Info("server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
