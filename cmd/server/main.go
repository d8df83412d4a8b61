package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/iliyamo/hcap-portal/internal/auth"
	"github.com/iliyamo/hcap-portal/internal/config"
	"github.com/iliyamo/hcap-portal/internal/database"
	"github.com/iliyamo/hcap-portal/internal/handler"
	"github.com/iliyamo/hcap-portal/internal/middleware"
	"github.com/iliyamo/hcap-portal/internal/queue"
	"github.com/iliyamo/hcap-portal/internal/repository"
	"github.com/iliyamo/hcap-portal/internal/router"
	"github.com/iliyamo/hcap-portal/internal/service"
)

func newLogger(cfg config.Config) (*zap.Logger, error) {
	if cfg.IsLocal() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func main() {
	_ = godotenv.Load() // .env is optional outside local development
	cfg := config.Load()

	log, err := newLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatal("open database", zap.Error(err))
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		log.Fatal("migrate schema", zap.Error(err))
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Warn("redis unavailable; rate limiting and report cache disabled")
	} else {
		defer rdb.Close()
	}

	cacheCfg := config.LoadCacheConfig()
	var broker middleware.StatusPublisher
	if cfg.RabbitURL != "" {
		broker = queue.NewPublisher(cfg.RabbitURL, log)
		consumer := queue.NewAuditConsumer(cfg.RabbitURL, cfg.AuditLogDir, log)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("audit consumer stopped", zap.Error(err))
			}
		}()
	} else {
		log.Warn("RABBITMQ_URL not set; status events are not published")
	}
	events := &middleware.CacheInvalidator{Cfg: cacheCfg, Redis: rdb, Next: broker, Log: log}

	realmKey, err := middleware.ParseRealmKey(cfg.Keycloak.RealmPublicKey)
	if err != nil {
		log.Fatal("parse keycloak realm key", zap.Error(err))
	}
	keycloak := auth.NewClient(cfg.Keycloak)

	// Repositories
	users := repository.NewUserRepo(db)
	sites := repository.NewSiteRepo(db)
	statusStore := service.NewSQLStatusStore(repository.NewStatusRepo(db))

	// Services
	statusSvc := service.NewStatusService(statusStore, events, log)
	rosSvc := service.NewROSService(statusStore, events, log)
	reportSvc := service.NewReportService(repository.NewReportRepo(db), log)

	h := router.Handlers{
		EmployerActions: handler.NewEmployerActionHandler(statusSvc),
		ROS:             handler.NewROSHandler(rosSvc),
		Reports:         handler.NewReportHandler(reportSvc, log),
		Participants:    handler.NewParticipantHandler(repository.NewParticipantRepo(db), cfg.IsLocal()),
		Sites:           handler.NewSiteHandler(sites),
		Cohorts:         handler.NewCohortHandler(repository.NewCohortRepo(db)),
		Phases:          handler.NewPhaseHandler(repository.NewPhaseRepo(db)),
		Users:           handler.NewUserHandler(users, sites, keycloak, log),
	}
	e := router.New(router.Deps{
		Cfg:       cfg,
		RateLimit: config.LoadRateLimitConfig(),
		Cache:     cacheCfg,
		Redis:     rdb,
		RealmKey:  realmKey,
		Users:     users,
		Log:       log,
	}, db, h)

	addr := ":" + cfg.Port
	go func() {
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env),
			zap.Bool("phase_allocation", cfg.Features.PhaseAllocation),
			zap.Bool("keycloak_migration", cfg.Features.KeycloakMigration))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", zap.Error(err))
	}
	log.Info("stopped")
}
