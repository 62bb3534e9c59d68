package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/care-portal/internal/config"
	"github.com/jwalitptl/care-portal/internal/confirm"
	appointmentHandler "github.com/jwalitptl/care-portal/internal/handler/appointment"
	auditHandler "github.com/jwalitptl/care-portal/internal/handler/audit"
	chatbotHandler "github.com/jwalitptl/care-portal/internal/handler/chatbot"
	"github.com/jwalitptl/care-portal/internal/handler/health"
	pharmacyHandler "github.com/jwalitptl/care-portal/internal/handler/pharmacy"
	"github.com/jwalitptl/care-portal/internal/middleware"
	"github.com/jwalitptl/care-portal/internal/repository"
	"github.com/jwalitptl/care-portal/internal/repository/memory"
	"github.com/jwalitptl/care-portal/internal/repository/postgres"
	redisRepo "github.com/jwalitptl/care-portal/internal/repository/redis"
	"github.com/jwalitptl/care-portal/internal/router"
	appointmentService "github.com/jwalitptl/care-portal/internal/service/appointment"
	auditService "github.com/jwalitptl/care-portal/internal/service/audit"
	chatbotService "github.com/jwalitptl/care-portal/internal/service/chatbot"
	pharmacyService "github.com/jwalitptl/care-portal/internal/service/pharmacy"
	recordsService "github.com/jwalitptl/care-portal/internal/service/records"
	"github.com/jwalitptl/care-portal/pkg/backend"
	"github.com/jwalitptl/care-portal/pkg/logger"
	"github.com/jwalitptl/care-portal/pkg/messaging"
	"github.com/jwalitptl/care-portal/pkg/messaging/redis"
	"github.com/jwalitptl/care-portal/pkg/metrics"
	"github.com/jwalitptl/care-portal/pkg/security"
)

func main() {
	configPath := flag.String("config", "", "path to config.yml")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if err := cfg.ValidateAPI(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	appLog := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		TimeFormat: time.RFC3339,
		Console:    cfg.Log.Console,
	})
	appLog.Install()
	zl := appLog.ZL

	loc, err := cfg.Location()
	if err != nil {
		zl.Fatal().Err(err).Msg("invalid timezone")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.NewMetrics("portal", "api")
	checks := map[string]health.Check{}

	// Hospital backend
	client, err := backend.NewClient(backend.Config{
		BaseURL:         cfg.Backend.URL,
		Timeout:         cfg.Backend.Timeout,
		BreakerFailures: cfg.Backend.BreakerFailures,
		BreakerTimeout:  cfg.Backend.BreakerTimeout,
	}, backend.WithMetrics(m), backend.WithLogger(appLog.With("component", "backend")))
	if err != nil {
		zl.Fatal().Err(err).Msg("failed to create backend client")
	}

	// Audit trail: always streamed, persisted when a database is configured
	var auditRepo repository.AuditRepository
	if cfg.Database.Enabled() {
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			zl.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			zl.Fatal().Err(err).Msg("failed to migrate database")
		}
		auditRepo = postgres.NewAuditRepository(postgres.NewBaseRepository(db, m))
		checks["database"] = pingDB(db)
	}
	auditStream := auditService.NewStream(os.Stdout)
	defer func() { _ = auditStream.Sync() }()
	auditSvc := auditService.NewService(auditRepo, auditStream)
	recorder := auditService.NewAuditLogger(auditSvc, zl)

	// Events and transcripts: Redis when configured, in-process otherwise
	var (
		broker      messaging.Broker
		transcripts repository.TranscriptRepository
	)
	if cfg.Redis.URL != "" {
		rc, err := redis.NewClient(ctx, cfg.Redis.ToBrokerConfig())
		if err != nil {
			zl.Fatal().Err(err).Msg("failed to connect to Redis")
		}
		sealer, err := security.NewSecretBoxFromPassphrase(cfg.Chatbot.TranscriptKey)
		if err != nil {
			zl.Fatal().Err(err).Msg("invalid transcript key")
		}
		broker = redis.NewRedisBroker(rc, zl)
		transcripts = redisRepo.NewTranscriptRepository(rc, sealer, cfg.Chatbot.TranscriptTTL)
		checks["redis"] = pingRedis(rc)
	} else {
		zl.Warn().Msg("redis not configured; using in-process broker and transcript store")
		broker = messaging.NewMemoryBroker()
		transcripts = memory.NewTranscriptRepository(cfg.Chatbot.TranscriptTTL)
	}
	defer broker.Close()
	publisher := messaging.NewEventPublisher(broker, cfg.Redis.ChannelPrefix, zl)

	// Services
	tokens := confirm.NewStore(cfg.Confirm.TTL, m)
	recordsSvc := recordsService.NewService(client, tokens, recorder, zl.With().Str("service", "records").Logger(),
		recordsService.WithLocation(loc), recordsService.WithEvents(publisher))
	appointmentSvc := appointmentService.NewService(client, recordsSvc, zl.With().Str("service", "appointment").Logger())
	chatbotSvc := chatbotService.NewService(client, transcripts, recorder, zl.With().Str("service", "chatbot").Logger())
	pharmacySvc := pharmacyService.NewService(client, pharmacyService.NewViewStore(cfg.Scan.ViewTTL), tokens,
		recorder, publisher, zl.With().Str("service", "pharmacy").Logger())
	scanner := pharmacyService.NewScanner(pharmacySvc.LookupPrescription, cfg.Scan.IdleTTL,
		zl.With().Str("service", "scanner").Logger(), pharmacyService.WithScanMetrics(m))

	// Middleware and handlers
	if err := middleware.RegisterValidators(); err != nil {
		zl.Fatal().Err(err).Msg("failed to register validators")
	}
	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret)

	cors := middleware.DefaultCORSConfig()
	if len(cfg.CORS.AllowedOrigins) > 0 {
		cors.AllowOrigins = cfg.CORS.AllowedOrigins
	}
	if len(cfg.CORS.AllowedMethods) > 0 {
		cors.AllowMethods = cfg.CORS.AllowedMethods
	}
	if len(cfg.CORS.AllowedHeaders) > 0 {
		cors.AllowHeaders = cfg.CORS.AllowedHeaders
	}
	sizeLimit := middleware.DefaultSizeLimitConfig()
	if cfg.Server.MaxUploadMB > 0 {
		sizeLimit.MaxUploadSize = cfg.Server.MaxUploadMB << 20
	}

	r := router.NewRouter(
		authMiddleware,
		health.NewHandler(checks, promhttp.Handler()),
		appointmentHandler.NewHandler(appointmentSvc, recordsSvc),
		chatbotHandler.NewHandler(chatbotSvc),
		pharmacyHandler.NewHandler(pharmacySvc, scanner),
		auditHandler.NewHandler(auditSvc),
		router.RouterConfig{
			Mode: cfg.Server.Mode,
			RateLimit: middleware.RateLimiterConfig{
				RPS:   cfg.RateLimit.RequestsPerSecond,
				Burst: cfg.RateLimit.Burst,
			},
			RateLimitOn:    cfg.RateLimit.Enabled,
			CORSConfig:     cors,
			RequestTimeout: cfg.Server.RequestTimeout,
			AnalyzeTimeout: cfg.Server.AnalyzeTimeout,
			SizeLimit:      sizeLimit,
			MetricsPrefix:  "portal_http",
			Registerer:     prometheus.DefaultRegisterer,
			Logger:         zl,
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		zl.Info().Int("port", cfg.Server.Port).Str("backend", cfg.Backend.URL).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zl.Info().Msg("shutting down server...")

	scanner.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error().Err(err).Msg("server forced to shutdown")
	}

	zl.Info().Msg("server exited properly")
}

func pingDB(db *sqlx.DB) health.Check {
	return func(ctx context.Context) error { return db.PingContext(ctx) }
}

func pingRedis(rc *goredis.Client) health.Check {
	return func(ctx context.Context) error { return rc.Ping(ctx).Err() }
}
