// Точка входа Community Module — файловая экономика сообщества.
// Загружает конфигурацию, подключает хранилище (PostgreSQL или in-memory),
// применяет миграции, создаёт сервисный слой и API handlers,
// запускает topologymetrics и HTTP-сервер с аутентификацией и graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/taskmasterai/community-module/internal/api/handlers"
	"github.com/taskmasterai/community-module/internal/api/middleware"
	"github.com/taskmasterai/community-module/internal/api/openapi"
	"github.com/taskmasterai/community-module/internal/config"
	"github.com/taskmasterai/community-module/internal/database"
	"github.com/taskmasterai/community-module/internal/events"
	"github.com/taskmasterai/community-module/internal/repository"
	"github.com/taskmasterai/community-module/internal/repository/memstore"
	"github.com/taskmasterai/community-module/internal/server"
	"github.com/taskmasterai/community-module/internal/service"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Community Module запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("store", cfg.StoreDriver),
		slog.String("auth", cfg.AuthMode),
		slog.String("events", cfg.EventsDriver),
	)

	ctx := context.Background()
	retry := repository.RetryPolicy{MaxAttempts: cfg.TxMaxAttempts, BaseDelay: cfg.TxBaseDelay}

	// 3. Хранилище
	var (
		store        repository.Store
		storeChecker handlers.ReadinessChecker
		dephealthSvc *service.DephealthService
	)
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		logger.Warn("Используется in-memory хранилище, данные не сохраняются между рестартами")
		store = memstore.New(retry)
		storeChecker = handlers.StaticChecker{Status: "ok", Message: "in-memory"}

	default:
		// 3.1 Применение миграций БД
		logger.Info("Применение миграций БД...")
		if err := database.Migrate(cfg, logger); err != nil {
			logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
			os.Exit(1)
		}

		// 3.2 Подключение к PostgreSQL (pgxpool)
		pool, err := database.Connect(ctx, cfg, logger)
		if err != nil {
			logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer pool.Close()

		store = repository.NewPgStore(pool, retry, logger)
		storeChecker = database.NewReadinessChecker(pool)

		// 3.3 topologymetrics — мониторинг PostgreSQL через существующий пул
		pgDB := stdlib.OpenDBFromPool(pool)
		defer pgDB.Close()

		var dephealthErr error
		dephealthSvc, dephealthErr = service.NewDephealthService(
			"community-module",
			cfg.DephealthGroup,
			pgDB,
			cfg.DatabaseURL(),
			cfg.DephealthCheckInterval,
			logger,
		)
		if dephealthErr != nil {
			logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
				slog.String("error", dephealthErr.Error()),
			)
			dephealthSvc = nil
		} else if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics",
				slog.String("error", startErr.Error()),
			)
			dephealthSvc = nil
		} else {
			logger.Info("topologymetrics запущен",
				slog.String("group", cfg.DephealthGroup),
				slog.String("check_interval", cfg.DephealthCheckInterval.String()),
			)
		}
	}

	// 4. Публикация доменных событий
	publisher, err := events.New(cfg, logger)
	if err != nil {
		logger.Error("Ошибка создания публикатора событий", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("Ошибка закрытия публикатора событий", slog.String("error", err.Error()))
		}
	}()

	// 5. Прайс-лист
	prices := service.DefaultPriceTable()
	if cfg.PriceTablePath != "" {
		raw, err := config.LoadPrices(cfg.PriceTablePath)
		if err == nil {
			prices, err = service.NewPriceTable(raw)
		}
		if err != nil {
			logger.Error("Ошибка загрузки прайс-листа",
				slog.String("path", cfg.PriceTablePath),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
		logger.Info("Прайс-лист загружен", slog.String("path", cfg.PriceTablePath))
	}

	// 6. Services
	economy := service.Economy{
		FilesPerBonus:            cfg.FilesPerBonus,
		TokensPerBonus:           cfg.TokensPerBonus,
		TokensPerDownload:        cfg.TokensPerDownload,
		StartingBalance:          cfg.StartingBalance,
		AbuseEscalationThreshold: cfg.AbuseEscalationThreshold,
	}
	cache := service.NewReputationCache(cfg.CacheSize, cfg.CacheTTL)

	ledger := service.NewTokenLedger(store, logger)
	bonusTracker := service.NewUploadBonusTracker(store, ledger, economy, publisher, logger)
	svc := handlers.Services{
		Accounts:   service.NewAccountService(store, economy, logger),
		Files:      service.NewFileService(store, bonusTracker, cache, publisher, logger),
		Unlocks:    service.NewUnlockRegistry(store, ledger, prices, publisher, logger),
		Downloads:  service.NewDownloadRewardProcessor(store, ledger, economy, publisher, logger),
		Reputation: service.NewReputationAggregator(store, cache, logger),
		Abuse:      service.NewAbuseMonitor(store, economy, publisher, logger),
	}

	// 7. OpenAPI документ
	doc, err := openapi.Load()
	if err != nil {
		logger.Error("Ошибка загрузки OpenAPI документа", slog.String("error", err.Error()))
		os.Exit(1)
	}
	openapiHandler, err := openapi.Handler(doc)
	if err != nil {
		logger.Error("Ошибка подготовки OpenAPI документа", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 8. API handler
	healthHandler := handlers.NewHealthHandler(storeChecker)
	apiHandler := handlers.NewAPIHandler(healthHandler, openapiHandler, svc, logger)

	// 9. Аутентификация
	var auth func(http.Handler) http.Handler
	switch cfg.AuthMode {
	case config.AuthModeHeader:
		logger.Warn("Аутентификация по заголовку X-User-ID, только для локальной разработки")
		auth = middleware.HeaderAuth(cfg.AdminRoles)
	default:
		jwtAuth, err := middleware.NewJWTAuth(cfg.JWTJWKSURL, cfg.JWTIssuer, cfg.AdminRoles, cfg.JWTLeeway, logger)
		if err != nil {
			logger.Error("Ошибка создания JWT middleware", slog.String("error", err.Error()))
			os.Exit(1)
		}
		auth = jwtAuth.Middleware()
		logger.Info("JWT middleware инициализирован",
			slog.String("jwks_url", cfg.JWTJWKSURL),
			slog.String("issuer", cfg.JWTIssuer),
		)
	}

	// 10. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, apiHandler, auth)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 11. Остановка фоновых задач
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	logger.Info("Community Module остановлен")
}
