package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/vendora-app/vendora/cmd/mainconfig"
	"github.com/vendora-app/vendora/internal/api/router"
	"github.com/vendora-app/vendora/internal/catalog"
	appconfig "github.com/vendora-app/vendora/internal/config"
	"github.com/vendora-app/vendora/internal/events"
	"github.com/vendora-app/vendora/internal/http/handlers"
	"github.com/vendora-app/vendora/internal/notify"
	"github.com/vendora-app/vendora/internal/observability/metrics"
	"github.com/vendora-app/vendora/internal/scheduling"
	"github.com/vendora-app/vendora/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.NewWithFormat(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting vendora API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	// pgx pool carries the appointment and outbox writes; lib/pq serves the
	// catalog reads.
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create pgx pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	catalogDB, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open catalog db", "error", err)
		os.Exit(1)
	}
	defer func() { _ = catalogDB.Close() }()

	var cache *catalog.Cache
	if cfg.RedisAddr != "" {
		opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		redisClient := redis.NewClient(opts)
		defer func() { _ = redisClient.Close() }()
		cache = catalog.NewCache(redisClient).WithTTL(cfg.CatalogCacheTTL)
	}
	lookup := catalog.NewLookup(catalog.NewRepository(catalogDB), cache, logger)

	// Core scheduling wiring.
	schedMetrics := metrics.NewSchedulingMetrics(nil)
	outbox := events.NewOutboxStore(pool)
	repo := scheduling.NewRepository(pool, outbox)
	index := scheduling.NewIndex(repo)
	refs := scheduling.NewReferenceGenerator(cfg.ReferencePrefix, nil, nil)

	engine := scheduling.NewEngine(lookup, index, repo, refs, logger).
		WithMaxReferenceAttempts(cfg.ReferenceMaxAttempts).
		WithMetrics(schedMetrics)
	machine := scheduling.NewMachine(repo, cfg.StartGraceWindow, logger).
		WithMetrics(schedMetrics)
	coordinator := scheduling.NewCoordinator(machine, lookup, index, repo, refs, logger).
		WithMaxReferenceAttempts(cfg.ReferenceMaxAttempts)

	// Notification transports behind the outbox.
	var emailSender notify.EmailSender
	switch cfg.EmailProvider {
	case "sendgrid":
		emailSender = notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
	case "ses":
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
		emailSender = notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
		}, logger)
	default:
		logger.Warn("email provider not configured, email notifications disabled")
	}

	var smsSender notify.SMSSender
	if cfg.SMSQueueURL != "" {
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
		smsSender = notify.NewSQSSMSSender(sqs.NewFromConfig(awsCfg), cfg.SMSQueueURL, logger)
	} else {
		logger.Warn("SMS queue not configured, SMS notifications disabled")
	}

	deliverer := events.NewDeliverer(outbox, notify.NewService(emailSender, smsSender, logger), logger).
		WithBatchSize(int32(cfg.OutboxBatchSize)).
		WithInterval(cfg.OutboxInterval)
	go deliverer.Start(ctx)

	routerCfg := &router.Config{
		Logger:          logger,
		Appointments:    handlers.NewAppointmentsHandler(engine, machine, coordinator, repo, logger),
		Services:        handlers.NewServicesHandler(lookup, logger),
		MetricsHandler:  promhttp.Handler(),
		PortalJWTSecret: cfg.PortalJWTSecret,
		RateLimitPerSec: cfg.RateLimitPerSecond,
		RateLimitBurst:  cfg.RateLimitBurst,
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router.New(routerCfg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	logger.Info("server stopped")
}
