// Точка входа Console Module — веб-консоль администрирования поверх backend API.
// Загружает конфигурацию, выбирает хранилище токенов (memory, redis, postgres),
// создаёт реестр клиентов консоли, guard маршрутов и UI handlers,
// запускает topologymetrics и HTTP-сервер с graceful shutdown.
package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/goartstore/console-module/internal/config"
	"github.com/bigkaa/goartstore/console-module/internal/contract"
	"github.com/bigkaa/goartstore/console-module/internal/database"
	"github.com/bigkaa/goartstore/console-module/internal/gateway"
	"github.com/bigkaa/goartstore/console-module/internal/guard"
	"github.com/bigkaa/goartstore/console-module/internal/server"
	"github.com/bigkaa/goartstore/console-module/internal/service"
	"github.com/bigkaa/goartstore/console-module/internal/tokenstore"
	"github.com/bigkaa/goartstore/console-module/internal/ui/auth"
	"github.com/bigkaa/goartstore/console-module/internal/ui/clients"
	"github.com/bigkaa/goartstore/console-module/internal/ui/handlers"
	"github.com/bigkaa/goartstore/console-module/internal/ui/middleware"
)

// janitorInterval — период удаления устаревших записей из PostgreSQL.
const janitorInterval = 10 * time.Minute

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Console Module запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("api_url", cfg.APIURL),
		slog.String("store_backend", cfg.StoreBackend),
	)

	if cfg.SessionSecret == "" {
		logger.Warn("CM_SESSION_SECRET не задан, клиенты консоли не сохраняются между рестартами")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Хранилище токенов и снимков сессий
	checkers := map[string]handlers.ReadinessChecker{
		"api": gateway.NewReadinessChecker(cfg.APIURL, cfg.APIHealthPath, 5*time.Second),
	}
	var (
		backend tokenstore.Backend
		pgDB    *sql.DB
	)
	switch cfg.StoreBackend {
	case config.StoreRedis:
		rdb, redisErr := tokenstore.ConnectRedis(ctx, tokenstore.RedisConfig{
			Addr:     cfg.RedisAddr,
			DB:       cfg.RedisDB,
			Password: cfg.RedisPassword,
			Timeout:  5 * time.Second,
		})
		if redisErr != nil {
			logger.Error("Ошибка подключения к Redis", slog.String("error", redisErr.Error()))
			os.Exit(1)
		}
		defer rdb.Close()

		redisBackend := tokenstore.NewRedisBackend(rdb, cfg.RedisPrefix, cfg.ClientTTL)
		backend = redisBackend
		checkers["redis"] = redisBackend
		logger.Info("Хранилище сессий: Redis", slog.String("addr", cfg.RedisAddr))

	case config.StorePostgres:
		logger.Info("Применение миграций БД...")
		if migrateErr := database.Migrate(cfg, logger); migrateErr != nil {
			logger.Error("Ошибка миграций БД", slog.String("error", migrateErr.Error()))
			os.Exit(1)
		}

		pool, connErr := database.Connect(ctx, cfg, logger)
		if connErr != nil {
			logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", connErr.Error()))
			os.Exit(1)
		}
		defer pool.Close()

		// Адаптер pgxpool → *sql.DB для topologymetrics: проверка идёт
		// через существующий пул соединений.
		pgDB = stdlib.OpenDBFromPool(pool)
		defer pgDB.Close()

		pgBackend := tokenstore.NewPostgresBackend(pool)
		backend = pgBackend
		checkers["postgresql"] = database.NewReadinessChecker(pool)
		go pgBackend.RunJanitor(ctx, janitorInterval, cfg.ClientTTL, logger)

	default:
		backend = tokenstore.NewMemoryBackend()
		logger.Info("Хранилище сессий: память процесса")
	}

	// 4. Строгая проверка конвертов по OpenAPI-контракту (опционально)
	var strict *contract.Validator
	if cfg.StrictEnvelopes {
		strict, err = contract.Load()
		if err != nil {
			logger.Error("Ошибка загрузки контракта API", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("Строгая проверка конвертов включена", slog.Int("schemas", len(strict.Schemas())))
	}

	// 5. Манифест маршрутов
	manifest, err := guard.LoadManifest(cfg.RoutesFile)
	if err != nil {
		logger.Error("Ошибка загрузки манифеста маршрутов", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 6. Cookie клиента консоли (AES-256-GCM)
	cookies, err := auth.NewCookieManager(cfg.SessionSecret, cfg.SecureCookie, cfg.ClientTTL)
	if err != nil {
		logger.Error("Ошибка создания менеджера cookie", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 7. Реестр клиентов: один контекст сессии на клиента
	registry := clients.NewRegistry(clients.Options{
		APIURL:         cfg.APIURL,
		RequestTimeout: cfg.RequestTimeout,
		HTTPClient:     &http.Client{},
		Strict:         strict,
		Size:           cfg.ClientCacheSize,
		TTL:            cfg.ClientTTL,
	}, tokenstore.NewFactory(backend, logger), logger)
	defer registry.Close()

	// 8. topologymetrics — мониторинг backend API и PostgreSQL
	var deps handlers.DependencyHealth
	dephealthSvc, dephealthErr := service.NewDephealthService(service.DephealthParams{
		ServiceID:     "console-module",
		Group:         cfg.DephealthGroup,
		APIURL:        cfg.APIURL,
		APIHealthPath: cfg.APIHealthPath,
		DB:            pgDB,
		PGConnURL:     cfg.DatabaseURL(),
		CheckInterval: cfg.DephealthCheckInterval,
	}, logger)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
		dephealthSvc = nil
	} else if startErr := dephealthSvc.Start(ctx); startErr != nil {
		logger.Warn("Ошибка запуска topologymetrics", slog.String("error", startErr.Error()))
		dephealthSvc = nil
	} else {
		deps = dephealthSvc
		logger.Info("topologymetrics запущен",
			slog.String("group", cfg.DephealthGroup),
			slog.String("check_interval", cfg.DephealthCheckInterval.String()),
		)
	}

	// 9. UI handlers
	authHandler := handlers.NewAuthHandler(manifest, logger)
	h := server.Handlers{
		Auth:        authHandler,
		Dashboard:   handlers.NewDashboardHandler(manifest, deps, logger),
		Users:       handlers.NewUsersHandler(manifest, logger),
		Roles:       handlers.NewRolesHandler(manifest, logger),
		Departments: handlers.NewDepartmentsHandler(manifest, logger),
		Permissions: handlers.NewPermissionsHandler(manifest, logger),
		Events:      handlers.NewEventsHandler(cfg.SSEInterval, logger),
		Health:      handlers.NewHealthHandler(checkers),
	}

	// 10. Привязка клиента по cookie и guard маршрутов
	binder := middleware.NewClientBinder(cookies, registry, cfg.ClientTTL, logger)
	routeGuard := middleware.NewGuard(manifest, cfg.ResolveWait, http.HandlerFunc(authHandler.Loading), logger)

	// 11. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, server.NewRouter(logger, h, binder, routeGuard))
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 12. Остановка фоновых задач
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}
	cancel()

	logger.Info("Console Module остановлен")
}
