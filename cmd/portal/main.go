// Package main - точка входа движка экономики наград учебного портала.
//
// Движок держит состояние витрины и экономики одного студента: баланс,
// опыт, серию, покупки, предложения и достижения. Слой отображения
// общается с ним по REST и забирает тосты и всплывающее окно опросом.
//
// Архитектура следует принципам Clean Architecture и DDD:
// - Domain: чистая бизнес-логика без внешних зависимостей
// - Application: оркестрация use cases (Commands/Queries/Sagas)
// - Infrastructure: хранилища, шина событий, планировщик
// - Interface: HTTP endpoints
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bilim-hub/bilim-reward-hub/config"
	"github.com/bilim-hub/bilim-reward-hub/internal/application/command"
	"github.com/bilim-hub/bilim-reward-hub/internal/application/eventhandler"
	"github.com/bilim-hub/bilim-reward-hub/internal/application/query"
	"github.com/bilim-hub/bilim-reward-hub/internal/application/saga"
	"github.com/bilim-hub/bilim-reward-hub/internal/application/viewstate"
	"github.com/bilim-hub/bilim-reward-hub/internal/domain/catalog"
	"github.com/bilim-hub/bilim-reward-hub/internal/domain/student"
	"github.com/bilim-hub/bilim-reward-hub/internal/infrastructure/messaging"
	"github.com/bilim-hub/bilim-reward-hub/internal/infrastructure/metrics"
	"github.com/bilim-hub/bilim-reward-hub/internal/infrastructure/notifier"
	"github.com/bilim-hub/bilim-reward-hub/internal/infrastructure/persistence/memory"
	"github.com/bilim-hub/bilim-reward-hub/internal/infrastructure/persistence/postgres"
	"github.com/bilim-hub/bilim-reward-hub/internal/infrastructure/persistence/redis"
	"github.com/bilim-hub/bilim-reward-hub/internal/infrastructure/persistence/resilient"
	"github.com/bilim-hub/bilim-reward-hub/internal/infrastructure/scheduler"
	"github.com/bilim-hub/bilim-reward-hub/internal/infrastructure/scheduler/jobs"
	httpserver "github.com/bilim-hub/bilim-reward-hub/internal/interface/http"
	"github.com/bilim-hub/bilim-reward-hub/pkg/circuitbreaker"
	"github.com/bilim-hub/bilim-reward-hub/pkg/logger"
	"github.com/bilim-hub/bilim-reward-hub/pkg/retry"

	"golang.org/x/text/language"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	log.Info("starting reward hub",
		"app", cfg.App.Name,
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
		"debug", cfg.App.Debug,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. МЕТРИКИ
	// ─────────────────────────────────────────────────────────────────────────
	registry := prometheus.NewRegistry()
	var meter *metrics.Metrics
	if cfg.Observability.MetricsEnabled {
		meter = metrics.New(registry)
	} else {
		meter = metrics.NewUnregistered()
	}

	breakerLog := func(name string, from, to circuitbreaker.State) {
		log.Warn("circuit breaker state change",
			"breaker", name, "from", from.String(), "to", to.String())
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ХРАНИЛИЩЕ ЗАПИСИ И ТЕМЫ (Redis или in-memory)
	// ─────────────────────────────────────────────────────────────────────────
	var records student.RecordRepository
	var themes viewstate.Store

	if cfg.Redis.Disabled {
		log.Warn("redis disabled, using in-memory record store")
		records = memory.NewRecordStore()
		themes = memory.NewThemeStore()
	} else {
		log.Info("connecting to redis...", "host", cfg.Redis.Host, "port", cfg.Redis.Port)
		store, err := redis.NewStore(redis.Config{
			URL:          cfg.Redis.URL,
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			return fmt.Errorf("failed to create redis store: %w", err)
		}
		defer func() {
			log.Info("closing redis connection...")
			_ = store.Close()
		}()

		// Хранилище общее и может подниматься параллельно с движком.
		pingErr := retry.StartupRetrier().Do(ctx, func(ctx context.Context) error {
			return retry.Retryable(store.Ping(ctx))
		})
		if pingErr != nil {
			return fmt.Errorf("redis ping failed: %w", pingErr)
		}
		log.Info("redis connection established")

		sessionID := cfg.Session.StudentID
		if sessionID == "" {
			sessionID = "default"
		}
		records = resilient.NewRecordStore(redis.NewRecordStore(store, sessionID), breakerLog)
		themes = redis.NewThemeStore(store, sessionID)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ЖУРНАЛ АУДИТА (PostgreSQL или in-memory)
	// ─────────────────────────────────────────────────────────────────────────
	var ledger student.AuditLedger

	if cfg.Database.Disabled {
		log.Warn("database disabled, using in-memory audit ledger")
		ledger = memory.NewAuditLedger()
	} else {
		log.Info("connecting to database...")
		conn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL, postgres.PoolOptions{
			MaxConns:        int32(cfg.Database.MaxOpenConns),
			MinConns:        int32(cfg.Database.MaxIdleConns),
			MaxConnLifetime: cfg.Database.ConnMaxLifetime,
			MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer func() {
			log.Info("closing database connection...")
			conn.Close()
		}()

		log.Info("running database migrations...")
		if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}

		ledger = resilient.NewLedger(postgres.NewLedgerRepository(conn, cfg.Database.QueryTimeout), breakerLog)
		log.Info("database connection established")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. КАТАЛОГ И ПРЕДЛОЖЕНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	cat, offers, err := catalog.Load(cfg.Catalog.Path, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}
	log.Info("catalog loaded", "products", cat.Size(), "offers", len(offers.Active(time.Now().UTC())))

	engine := catalog.NewFilterEngine(language.Russian)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. ШИНА СОБЫТИЙ И ОЧЕРЕДЬ УВЕДОМЛЕНИЙ
	// ─────────────────────────────────────────────────────────────────────────
	// Синхронный режим обязателен: сценарий наград должен отработать
	// внутри Publish команды, чтобы баланс после покупки уже включал награды.
	busConfig := messaging.DefaultInMemoryEventBusConfig()
	busConfig.Logger = log
	bus := messaging.NewInMemoryEventBus(busConfig)
	defer func() {
		log.Info("closing event bus...")
		_ = bus.Close()
	}()

	toasts := notifier.NewQueue()
	defer toasts.Close()

	// ─────────────────────────────────────────────────────────────────────────
	// 8. APPLICATION LAYER (Commands, Queries, Sagas)
	// ─────────────────────────────────────────────────────────────────────────
	buyHandler := command.NewBuyProductHandler(records, cat, ledger, toasts, bus, meter, log)
	checkoutHandler := command.NewCheckoutHandler(records, ledger, toasts, bus, meter, log)
	claimHandler := command.NewClaimOfferHandler(records, offers, ledger, toasts, bus, meter, log)
	convertHandler := command.NewConvertExperienceHandler(records, ledger, toasts, bus, meter, log)
	logoutHandler := command.NewLogoutHandler(records, log)
	cart := command.NewCart()

	onboarding := saga.NewOnboardingSaga(records, toasts, log, saga.OnboardingConfig{
		InitialBalance: cfg.Session.InitialBalance,
		WelcomeToast:   true,
	})

	rewardFlow := saga.NewRewardFlowSaga(records, cat, ledger, toasts, bus, meter, log,
		saga.DefaultRewardFlowConfig())
	defer rewardFlow.Close()

	// Сначала Prime, потом Attach: уже выполненные условия помечаются
	// разблокированными без начисления, чтобы рестарт не награждал повторно.
	if err := rewardFlow.Prime(ctx); err != nil {
		return fmt.Errorf("failed to prime reward flow: %w", err)
	}
	if err := rewardFlow.Attach(bus); err != nil {
		return fmt.Errorf("failed to attach reward flow: %w", err)
	}

	tracker := viewstate.NewTracker(themes, bus, log)

	if err := eventhandler.NewEventLogger(log).Attach(bus); err != nil {
		return fmt.Errorf("failed to attach event logger: %w", err)
	}
	themeChanged := eventhandler.NewOnThemeChangedHandler(toasts, meter.ThemeReconciliations, log)
	if err := themeChanged.Attach(bus); err != nil {
		return fmt.Errorf("failed to attach theme handler: %w", err)
	}

	storefrontQuery := query.NewGetStorefrontHandler(records, cat, offers, engine)
	progressQuery := query.NewGetProgressHandler(records, ledger, rewardFlow)

	// ─────────────────────────────────────────────────────────────────────────
	// 9. СТАРТОВАЯ СЕССИЯ (опционально)
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Session.StudentID != "" {
		result, err := onboarding.Execute(ctx, saga.OnboardingInput{
			StudentID: cfg.Session.StudentID,
			Name:      cfg.Session.Name,
			Username:  cfg.Session.Username,
		})
		if err != nil {
			return fmt.Errorf("failed to start session: %w", err)
		}
		log.Info("session ready",
			"student", result.Record.ID,
			"provisioned", result.Provisioned,
			"balance", int(result.Record.Aqcha),
		)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 10. ПЛАНИРОВЩИК ФОНОВЫХ ЗАДАЧ
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Scheduler.Enabled {
		schedConfig := scheduler.DefaultSchedulerConfig()
		schedConfig.Logger = log
		schedConfig.Timezone = cfg.App.Location
		schedConfig.JobTimeout = cfg.Scheduler.JobTimeout
		sched := scheduler.NewScheduler(schedConfig)

		if err := sched.Register(
			jobs.NewThemeSyncJob(tracker, log),
			scheduler.NewIntervalSchedule(cfg.Scheduler.ThemeSyncInterval),
		); err != nil {
			return fmt.Errorf("failed to register theme sync job: %w", err)
		}

		sweepSchedule, err := scheduler.NewCronSchedule(cfg.Scheduler.OfferSweepCron)
		if err != nil {
			return fmt.Errorf("invalid offer sweep cron: %w", err)
		}
		if err := sched.Register(jobs.NewOfferSweepJob(offers, bus, log), sweepSchedule); err != nil {
			return fmt.Errorf("failed to register offer sweep job: %w", err)
		}

		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer func() {
			log.Info("stopping scheduler...")
			_ = sched.Stop()
		}()
		log.Info("scheduler started",
			"theme_sync", cfg.Scheduler.ThemeSyncInterval.String(),
			"offer_sweep", cfg.Scheduler.OfferSweepCron,
		)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 11. HTTP СЕРВЕР
	// ─────────────────────────────────────────────────────────────────────────
	httpLog := logger.New(logger.Options{
		Output: os.Stdout,
		Level:  logger.ParseLevel(cfg.Observability.LogLevel),
	})

	serverConfig := httpserver.DefaultConfig()
	serverConfig.Host = cfg.HTTP.Host
	serverConfig.Port = cfg.HTTP.Port
	serverConfig.ReadTimeout = cfg.HTTP.ReadTimeout
	serverConfig.WriteTimeout = cfg.HTTP.WriteTimeout
	serverConfig.IdleTimeout = cfg.HTTP.IdleTimeout
	serverConfig.EnableCORS = cfg.HTTP.EnableCORS
	serverConfig.AllowedOrigins = cfg.HTTP.AllowedOrigins
	serverConfig.EnableMetrics = cfg.Observability.MetricsEnabled
	serverConfig.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute

	server := httpserver.NewServer(serverConfig, httpserver.Dependencies{
		BuyProduct:        buyHandler,
		Checkout:          checkoutHandler,
		ClaimOffer:        claimHandler,
		ConvertExperience: convertHandler,
		Logout:            logoutHandler,
		GetStorefront:     storefrontQuery,
		GetProgress:       progressQuery,
		Cart:              cart,
		Catalog:           cat,
		Onboarding:        onboarding,
		RewardFlow:        rewardFlow,
		Toasts:            toasts,
		Tracker:           tracker,
		Logger:            httpLog,
		Registry:          registry,
	})

	serverErr := server.StartAsync()
	log.Info("HTTP server started", "address", server.Address())

	// ─────────────────────────────────────────────────────────────────────────
	// 12. ОЖИДАНИЕ ЗАВЕРШЕНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("HTTP server error: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", "error", err)
	}

	log.Info("reward hub stopped")
	return nil
}

// setupLogger настраивает structured logger по конфигурации.
func setupLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.Observability.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)
	return log
}
