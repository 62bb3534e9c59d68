package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/care-portal/internal/config"
	"github.com/jwalitptl/care-portal/internal/email"
	"github.com/jwalitptl/care-portal/internal/handler/health"
	"github.com/jwalitptl/care-portal/internal/repository/postgres"
	auditService "github.com/jwalitptl/care-portal/internal/service/audit"
	"github.com/jwalitptl/care-portal/internal/service/notification"
	"github.com/jwalitptl/care-portal/internal/worker"
	"github.com/jwalitptl/care-portal/pkg/backend"
	"github.com/jwalitptl/care-portal/pkg/logger"
	"github.com/jwalitptl/care-portal/pkg/messaging"
	"github.com/jwalitptl/care-portal/pkg/messaging/redis"
	"github.com/jwalitptl/care-portal/pkg/metrics"
)

func main() {
	configPath := flag.String("config", "", "path to config.yml")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	appLog := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		TimeFormat: time.RFC3339,
		Console:    cfg.Log.Console,
	})
	appLog.Install()
	zl := appLog.ZL

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.NewMetrics("portal", "worker")
	checks := map[string]health.Check{}
	var wg sync.WaitGroup

	var (
		db   *sqlx.DB
		base postgres.BaseRepository
	)
	if cfg.Database.Enabled() {
		var err error
		db, err = postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			zl.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			zl.Fatal().Err(err).Msg("failed to migrate database")
		}
		base = postgres.NewBaseRepository(db, m)
		checks["database"] = func(ctx context.Context) error { return db.PingContext(ctx) }
	}

	// Low-stock alerts
	if cfg.Worker.ServiceToken == "" {
		zl.Warn().Msg("worker.service_token not set; low stock worker disabled")
	} else {
		client, err := backend.NewClient(backend.Config{
			BaseURL:         cfg.Backend.URL,
			Timeout:         cfg.Backend.Timeout,
			BreakerFailures: cfg.Backend.BreakerFailures,
			BreakerTimeout:  cfg.Backend.BreakerTimeout,
		}, backend.WithMetrics(m), backend.WithLogger(appLog.With("component", "backend")))
		if err != nil {
			zl.Fatal().Err(err).Msg("failed to create backend client")
		}

		var broker messaging.Broker
		if cfg.Redis.URL != "" {
			rc, err := redis.NewClient(ctx, cfg.Redis.ToBrokerConfig())
			if err != nil {
				zl.Fatal().Err(err).Msg("failed to connect to Redis")
			}
			broker = redis.NewRedisBroker(rc, zl)
			defer broker.Close()
			checks["redis"] = func(ctx context.Context) error { return rc.Ping(ctx).Err() }
		}

		mail := email.Nop()
		if cfg.SMTP.Host != "" {
			mail = email.NewSMTPService(cfg.SMTP)
		}
		alerter := notification.NewAlerter(mail, cfg.SMTP.AlertTo, m, zl)

		events := messaging.NewEventPublisher(broker, cfg.Redis.ChannelPrefix, zl)
		lowStock := worker.NewLowStockWorker(client, alerter, broker, worker.LowStockWorkerConfig{
			Interval: cfg.Worker.LowStockInterval,
			Session: backend.Session{
				Token: cfg.Worker.ServiceToken,
				Email: cfg.Worker.ServiceEmail,
				Role:  backend.RolePharmacist,
			},
			Channels: []string{
				events.Channel(messaging.EventMedicineStockAdjusted),
				events.Channel(messaging.EventMedicineChanged),
			},
		}, m, zl)
		if db != nil {
			lowStock.WithAlertLog(postgres.NewAlertRepository(base))
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			lowStock.Start(ctx)
		}()
	}

	// Audit retention
	if db != nil {
		auditSvc := auditService.NewService(postgres.NewAuditRepository(base), nil)
		cleanup := worker.NewAuditCleanupWorker(auditSvc, cfg.Worker.AuditRetentionDays, cfg.Worker.AuditCleanupInterval, zl)

		wg.Add(1)
		go func() {
			defer wg.Done()
			cleanup.Start(ctx)
		}()
	}

	srv := setupHealthCheck(cfg.Worker.HealthPort, checks)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Error().Err(err).Msg("health check server failed")
			cancel()
		}
	}()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigChan:
	case <-ctx.Done():
	}
	zl.Info().Msg("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	wg.Wait()
}

func setupHealthCheck(port int, checks map[string]health.Check) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	health.NewHandler(checks, promhttp.Handler()).RegisterRoutes(engine.Group(""))

	return &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: engine,
	}
}
