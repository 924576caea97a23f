// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"telegram-smm-autoboost/internal/application"
	"telegram-smm-autoboost/internal/config"
	"telegram-smm-autoboost/internal/domain/ports/adapter"
	"telegram-smm-autoboost/internal/domain/ports/repository"
	"telegram-smm-autoboost/internal/infra/adapters/smm"
	tele "telegram-smm-autoboost/internal/infra/adapters/telegram"
	pg "telegram-smm-autoboost/internal/infra/db/postgres"
	"telegram-smm-autoboost/internal/infra/db/sqlite"
	httpapi "telegram-smm-autoboost/internal/infra/http"
	"telegram-smm-autoboost/internal/infra/i18n"
	"telegram-smm-autoboost/internal/infra/logging"
	"telegram-smm-autoboost/internal/infra/memory"
	"telegram-smm-autoboost/internal/infra/metrics"
	red "telegram-smm-autoboost/internal/infra/redis"
	"telegram-smm-autoboost/internal/infra/scheduler"
	"telegram-smm-autoboost/internal/infra/security"
	"telegram-smm-autoboost/internal/infra/worker"
	"telegram-smm-autoboost/internal/usecase"
)

// Set with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "none"
)

// A redelivered channel post inside this window is not ordered twice.
const postDedupeTTL = 48 * time.Hour

type storage struct {
	configs repository.ConfigRepository
	tm      repository.TransactionManager
	ping    httpapi.Checker
	jobs    []scheduler.Job
	close   func()
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "console logs and debug-friendly defaults")
	dryRun := flag.Bool("dry-run", false, "log bot replies instead of sending them")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit, cfg.Storage.Backend)
	logger.Info().Str("version", version).Str("storage", cfg.Storage.Backend).Str("state", cfg.State.Backend).Msg("starting")

	// ---- Encryption ----
	if cfg.Security.EncryptionKey == "" {
		logger.Warn().Msg("security.encryption_key is empty; panel keys are stored in plain text")
	}
	cipher, err := security.NewCipher(cfg.Security.EncryptionKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("encryption")
	}

	// ---- Redis (optional) ----
	var redisClient red.RedisClient
	if cfg.Redis.Enabled {
		redisClient, err = red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer func() { _ = redisClient.Close() }()
	}

	// ---- Storage ----
	store, err := openStorage(ctx, cfg, cipher, redisClient, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("storage")
	}
	defer store.close()

	var states repository.StateRepository = memory.NewStateRepo()
	var deduper usecase.PostDeduper = memory.NewPostDeduper(postDedupeTTL)
	var limiter tele.Limiter
	if redisClient != nil {
		deduper = red.NewPostDeduper(redisClient, postDedupeTTL)
		limiter = red.NewRateLimiter(redisClient)
		if cfg.State.Backend == config.StateRedis {
			states = red.NewStateRepo(redisClient, cfg.State.TTL)
		}
	}

	// ---- Telegram ----
	tr := i18n.MustDefault()
	botAdapter, err := tele.NewRealTelegramBotAdapter(&cfg.Bot, limiter, tr, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("telegram")
	}
	var outbound adapter.TelegramBotAdapter = botAdapter
	if *dryRun {
		logger.Warn().Msg("dry run: replies are logged, not sent")
		outbound = tele.NewNoopBotAdapter(logger)
	}

	// ---- Dispatch workers ----
	pool := worker.NewPool(cfg.Dispatch.Workers, cfg.Dispatch.MaxOverflow, logger)
	pool.Start(ctx)

	// ---- Use cases ----
	panel := smm.NewClient(cfg.SMM.Timeout, logger)
	settingsUC := usecase.NewSettingsUseCase(store.configs, store.tm, logger)
	orderUC := usecase.NewOrderUseCase(settingsUC, panel, logger)
	statsUC := usecase.NewStatsUseCase(store.configs, logger)
	convUC := usecase.NewConversationUseCase(settingsUC, orderUC, statsUC, states, tr, usecase.ConversationOptions{
		MinKeyLength:     cfg.SMM.MinKeyLength,
		NumericServiceID: cfg.SMM.NumericServiceID,
		AdminIDs:         cfg.Bot.AdminIDs,
	}, logger)
	dispatchUC := usecase.NewDispatchUseCase(store.configs, panel, outbound, pool, deduper, tr, usecase.DispatchOptions{
		PerOrderTimeout: cfg.Dispatch.PerOrderTimeout,
	}, logger)

	facade := application.NewBotFacade(convUC, dispatchUC, outbound, tr, logger)

	// ---- Schedulers ----
	var scheds []*scheduler.Scheduler
	for _, job := range append([]scheduler.Job{statsUC}, store.jobs...) {
		s := scheduler.NewScheduler(cfg.Stats.Interval, job, logger)
		s.Start(ctx)
		scheds = append(scheds, s)
	}

	// ---- HTTP health/metrics ----
	checks := map[string]httpapi.Checker{"storage": store.ping}
	if redisClient != nil {
		checks["redis"] = redisClient.Ping
	}
	srv := httpapi.NewServer(cfg.Admin.Port, checks, logger)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	go func() {
		if err := botAdapter.StartPolling(ctx, facade); err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Msg("telegram polling stopped")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")

	botAdapter.StopPolling()
	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}
	for _, s := range scheds {
		s.Stop()
	}
	// in-flight orders finish before storage closes
	pool.Stop()
	cancel()
}

// openStorage picks the config store. A Postgres store gets the Redis
// read-through cache when Redis is enabled.
func openStorage(ctx context.Context, cfg *config.Config, cipher security.SecretCipher, redisClient red.RedisClient, logger *zerolog.Logger) (*storage, error) {
	switch cfg.Storage.Backend {
	case config.StoragePostgres:
		dbPool, err := pg.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		var configs repository.ConfigRepository = pg.NewPostgresConfigRepo(dbPool, cipher)
		if redisClient != nil {
			configs = pg.NewConfigRepoCacheDecorator(configs, redisClient, cipher, cfg.Redis.TTL, logger)
		}
		return &storage{
			configs: configs,
			tm:      pg.NewTxManager(dbPool),
			ping:    dbPool.Ping,
			jobs:    []scheduler.Job{pg.NewPoolStatsJob(dbPool)},
			close:   dbPool.Close,
		}, nil

	case config.StorageSQLite:
		db, err := sqlite.OpenSQLite(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		return &storage{
			configs: sqlite.NewConfigRepo(db, cipher),
			tm:      sqlite.NewTxManager(db),
			ping:    sqlDB.PingContext,
			close: func() {
				if err := sqlite.Close(db); err != nil {
					logger.Warn().Err(err).Msg("close sqlite")
				}
			},
		}, nil

	default:
		logger.Warn().Msg("memory storage: configurations are lost on restart")
		repo := memory.NewConfigRepo()
		return &storage{
			configs: repo,
			tm:      repo,
			ping:    func(context.Context) error { return nil },
			close:   func() {},
		}, nil
	}
}
