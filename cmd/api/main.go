package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"call-analytics/internal/analytics"
	"call-analytics/internal/assistants"
	"call-analytics/internal/audit"
	"call-analytics/internal/auth"
	"call-analytics/internal/calls"
	"call-analytics/internal/callsync"
	"call-analytics/internal/clients"
	"call-analytics/internal/config"
	"call-analytics/internal/database"
	"call-analytics/internal/httpapi"
	"call-analytics/internal/jobs"
	"call-analytics/internal/provider"
	"call-analytics/internal/rollup"
	"call-analytics/internal/scheduler"
	"call-analytics/internal/telemetry"
	"call-analytics/internal/tenancy"
	"call-analytics/pkg/logger"
	"call-analytics/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	loc := cfg.Location()

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	if _, err := database.Migrate(rootCtx, db, logger.Component(log, "database")); err != nil {
		log.Error("schema migration failed", "err", err)
		os.Exit(1)
	}

	// Redis is optional: without it the sync guards are process-local.
	var (
		locker jobs.Locker
		runs   jobs.Recorder = jobs.NewMemoryRecorder()
	)
	if cfg.RedisEnabled() {
		rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
		if err != nil {
			log.Error("redis init failed", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()
		locker = jobs.NewRedisLocker(rdb, cfg.Sync.LeaseTTL)
		runs = jobs.NewRedisRecorder(rdb)
	} else {
		log.Warn("redis not configured; sync guards are per-instance")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := telemetry.New(reg)

	callRepo := calls.NewPostgresRepo(db)
	metricsStore := rollup.NewPostgresRepo(db)
	clientDir := clients.NewPostgresDirectory(db)
	providerClient := provider.NewClient(provider.Config{BaseURL: cfg.Provider.BaseURL, APIKey: cfg.Provider.APIKey})

	assistantSyncer := assistants.NewSyncer(
		providerClient,
		assistants.NewPostgresRepo(db),
		clientDir,
		cfg.Provider.DefaultRegion,
		logger.Component(log, "assistants"),
	)
	callWorker := callsync.NewWorker(providerClient, callRepo, assistantSyncer, callsync.Options{
		Guard:         jobs.NewGuard(callsync.JobName, locker),
		Recorder:      runs,
		Metrics:       metrics,
		DefaultRegion: cfg.Provider.DefaultRegion,
		Logger:        logger.Component(log, callsync.JobName),
	})
	calc := rollup.NewCalculator(callRepo, cfg.Analytics.LeadValue, loc)
	rollupWorker := rollup.NewWorker(calc, callRepo, metricsStore, rollup.Options{
		Guard:    jobs.NewGuard(rollup.JobName, locker),
		Recorder: runs,
		Metrics:  metrics,
		Logger:   logger.Component(log, rollup.JobName),
	})
	engine := analytics.NewEngine(callRepo, metricsStore, calc, analytics.Options{
		Stats:   providerClient,
		Runs:    runs,
		Metrics: metrics,
		Logger:  logger.Component(log, "analytics"),
	})

	handlers := httpapi.Handlers{
		Engine:        engine,
		Resolver:      tenancy.NewResolver(clientDir, assistantSyncer, loc),
		Calls:         callWorker,
		Rollup:        rollupWorker,
		Assistants:    assistantSyncer,
		Audit:         audit.NewService(audit.NewPostgresRepo(db), logger.Component(log, "audit")),
		Location:      loc,
		CallLimit:     cfg.Sync.CallLimit,
		WindowDays:    cfg.Sync.RollupWindowDays,
		WebhookSecret: cfg.Provider.WebhookSecret,
	}

	var sched *scheduler.Scheduler
	if cfg.Sync.SchedulerEnabled {
		sched = scheduler.New(log, loc)
		for _, job := range scheduler.StandardJobs(cfg.Sync, scheduler.Deps{
			Calls:      callWorker,
			Rollup:     rollupWorker,
			Assistants: assistantSyncer,
		}) {
			if err := sched.Add(job); err != nil {
				log.Error("scheduler init failed", "err", err)
				os.Exit(1)
			}
		}
		sched.Start()
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	r.Use(metrics.Middleware())

	registerRoutes(r, routeDeps{
		handlers: handlers,
		authMW:   auth.RequireAccessToken(authManager),
		gatherer: reg,
		health: func(ctx context.Context) error {
			return utils.HealthCheck(ctx, db, 2*time.Second)
		},
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env, "timezone", loc.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
	if sched != nil {
		if err := sched.Stop(shutdownCtx); err != nil {
			log.Error("scheduler shutdown failed", "err", err)
		}
	}
}
