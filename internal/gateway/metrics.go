// metrics.go — Prometheus метрики шлюза: cm_gateway_requests_total,
// cm_gateway_request_duration_seconds, cm_gateway_session_expired_total.
package gateway

import (
	"regexp"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	gatewayRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cm_gateway_requests_total",
			Help: "Количество запросов консоли к backend API",
		},
		[]string{"method", "endpoint", "result"},
	)

	gatewayRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cm_gateway_request_duration_seconds",
			Help:    "Длительность запросов к backend API в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	sessionExpiredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cm_gateway_session_expired_total",
			Help: "Количество ответов 401, завершивших сессию клиента",
		},
	)
)

// observe записывает метрики одного запроса.
func observe(method, endpoint string, out Outcome, d time.Duration) {
	gatewayRequestsTotal.WithLabelValues(method, endpoint, resultLabel(out)).Inc()
	gatewayRequestDuration.WithLabelValues(method, endpoint).Observe(d.Seconds())
}

func resultLabel(out Outcome) string {
	switch {
	case out.Success:
		return "success"
	case out.IsSessionExpired():
		return "expired"
	case out.Status == 0:
		return "network"
	default:
		return "error"
	}
}

var idSegment = regexp.MustCompile(`^([0-9]+|[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12})$`)

// normalizePath убирает query-строку и заменяет числовые и UUID-сегменты
// на {id} для ограничения кардинальности метрик.
// /api/v1/departments/15/restore → /api/v1/departments/{id}/restore
func normalizePath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	segments := strings.Split(path, "/")
	for i, s := range segments {
		if idSegment.MatchString(s) {
			segments[i] = "{id}"
		}
	}
	return strings.Join(segments, "/")
}
