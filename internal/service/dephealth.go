// dephealth.go — интеграция с topologymetrics SDK для мониторинга зависимостей.
//
// Console Module мониторит:
//   - backend API — HTTP checker к health endpoint (critical)
//   - PostgreSQL — SQL checker через pgxpool (только при CM_STORE_BACKEND=postgres)
//
// Метрики доступны на /metrics вместе с остальными Prometheus-метриками:
//   - app_dependency_health — состояние зависимости (1 = ok, 0 = fail)
//   - app_dependency_latency_seconds — задержка проверки
package service

import (
	"context"
	"database/sql"
	"log/slog"
	"net/url"
	"time"

	"github.com/BigKAA/topologymetrics/sdk-go/dephealth"
	_ "github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/httpcheck" // регистрация HTTP checker factory
	"github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/pgcheck"
	"github.com/prometheus/client_golang/prometheus"
)

// DephealthParams — параметры мониторинга.
type DephealthParams struct {
	// ServiceID — имя вершины графа текущего приложения.
	ServiceID string
	// Group — имя группы в метриках (CM_DEPHEALTH_GROUP).
	Group string
	// APIURL — базовый URL backend API.
	APIURL string
	// APIHealthPath — путь проверки доступности API (CM_API_HEALTH_PATH).
	APIHealthPath string
	// DB — пул PostgreSQL хранилища сессий; nil, если используется другой backend.
	DB *sql.DB
	// PGConnURL — URL PostgreSQL для меток (не для подключения).
	PGConnURL string
	// CheckInterval — интервал проверки (CM_DEPHEALTH_CHECK_INTERVAL).
	CheckInterval time.Duration
}

// DephealthService — сервис мониторинга зависимостей через topologymetrics.
type DephealthService struct {
	dh     *dephealth.DepHealth
	deps   []string
	logger *slog.Logger
}

// NewDephealthService создаёт сервис мониторинга зависимостей.
// Метрики регистрируются в глобальном Prometheus registry.
func NewDephealthService(p DephealthParams, logger *slog.Logger) (*DephealthService, error) {
	return newDephealthService(p, logger)
}

// NewDephealthServiceWithRegisterer создаёт сервис с указанным Prometheus registerer.
// Используется в тестах для изоляции метрик.
func NewDephealthServiceWithRegisterer(p DephealthParams, logger *slog.Logger, registerer prometheus.Registerer) (*DephealthService, error) {
	return newDephealthService(p, logger, dephealth.WithRegisterer(registerer))
}

func newDephealthService(p DephealthParams, logger *slog.Logger, extraOpts ...dephealth.Option) (*DephealthService, error) {
	healthPath := p.APIHealthPath
	if healthPath == "" {
		healthPath = "/"
	}

	apiDepOpts := []dephealth.DependencyOption{
		dephealth.FromURL(p.APIURL),
		dephealth.WithHTTPHealthPath(healthPath),
		dephealth.CheckInterval(p.CheckInterval),
		dephealth.Critical(true),
	}
	// TLS определяем по схеме URL
	if parsed, err := url.Parse(p.APIURL); err == nil && parsed.Scheme == "https" {
		apiDepOpts = append(apiDepOpts, dephealth.WithHTTPTLSSkipVerify(false))
	}

	opts := make([]dephealth.Option, 0, 3+len(extraOpts))
	opts = append(opts,
		dephealth.WithLogger(logger),
		dephealth.HTTP("backend-api", apiDepOpts...),
	)
	deps := []string{"backend-api"}

	if p.DB != nil {
		opts = append(opts, dephealth.AddDependency("postgresql", dephealth.TypePostgres,
			pgcheck.New(pgcheck.WithDB(p.DB)),
			dephealth.FromURL(p.PGConnURL),
			dephealth.CheckInterval(p.CheckInterval),
			dephealth.Critical(false),
		))
		deps = append(deps, "postgresql")
	}
	opts = append(opts, extraOpts...)

	dh, err := dephealth.New(p.ServiceID, p.Group, opts...)
	if err != nil {
		return nil, err
	}

	return &DephealthService{
		dh:     dh,
		deps:   deps,
		logger: logger.With(slog.String("component", "dephealth")),
	}, nil
}

// Start запускает периодическую проверку зависимостей.
func (ds *DephealthService) Start(ctx context.Context) error {
	ds.logger.Info("Мониторинг зависимостей запущен", slog.Any("dependencies", ds.deps))
	return ds.dh.Start(ctx)
}

// Stop останавливает мониторинг зависимостей.
func (ds *DephealthService) Stop() {
	ds.dh.Stop()
	ds.logger.Info("Мониторинг зависимостей остановлен")
}

// Health возвращает текущее состояние зависимостей.
// Ключ — имя зависимости, значение — true если ok.
func (ds *DephealthService) Health() map[string]bool {
	return ds.dh.Health()
}

// Dependencies возвращает имена отслеживаемых зависимостей.
func (ds *DephealthService) Dependencies() []string {
	return append([]string(nil), ds.deps...)
}
