package gateway

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ReadinessChecker проверяет доступность backend API для /health/ready.
type ReadinessChecker struct {
	url    string
	client *http.Client
}

// NewReadinessChecker создаёт checker. healthPath — путь относительно baseURL.
func NewReadinessChecker(baseURL, healthPath string, timeout time.Duration) *ReadinessChecker {
	if !strings.HasPrefix(healthPath, "/") {
		healthPath = "/" + healthPath
	}
	return &ReadinessChecker{
		url:    strings.TrimRight(baseURL, "/") + healthPath,
		client: &http.Client{Timeout: timeout},
	}
}

// CheckReady возвращает "ok", если API отвечает статусом ниже 500.
// 4xx означает, что API жив, но путь проверки требует доступа: "degraded".
func (c *ReadinessChecker) CheckReady() (status, message string) {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, c.url, http.NoBody)
	if err != nil {
		return "fail", "ошибка создания запроса: " + err.Error()
	}
	resp, err := c.client.Do(req) //nolint:gosec // G704: URL из конфигурации
	if err != nil {
		return "fail", fmt.Sprintf("backend API недоступен: %v", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return "fail", fmt.Sprintf("backend API вернул статус %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return "degraded", fmt.Sprintf("backend API вернул статус %d", resp.StatusCode)
	default:
		return "ok", "backend API доступен"
	}
}
