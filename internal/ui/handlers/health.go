// health.go — health endpoints консоли.
// /health/live — liveness probe (процесс жив)
// /health/ready — readiness probe (хранилище токенов + backend API)
package handlers

import (
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/bigkaa/goartstore/console-module/internal/config"
)

// serviceName — имя сервиса в ответах health.
const serviceName = "console-module"

// ReadinessChecker — интерфейс проверки готовности зависимости.
type ReadinessChecker interface {
	// CheckReady возвращает статус ("ok", "degraded", "fail") и сообщение.
	CheckReady() (status string, message string)
}

// HealthHandler — обработчик health endpoints.
type HealthHandler struct {
	checkers map[string]ReadinessChecker
}

// NewHealthHandler создаёт обработчик health endpoints.
// checkers — именованные проверки зависимостей; nil-значение даёт "fail".
func NewHealthHandler(checkers map[string]ReadinessChecker) *HealthHandler {
	return &HealthHandler{checkers: checkers}
}

// healthCheckResult — результат проверки одной зависимости.
type healthCheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// healthResponse — ответ liveness/readiness probe.
type healthResponse struct {
	Status    string                       `json:"status"`
	Timestamp string                       `json:"timestamp"`
	Version   string                       `json:"version"`
	Service   string                       `json:"service"`
	Checks    map[string]healthCheckResult `json:"checks,omitempty"`
}

// HealthLive — liveness probe. Возвращает 200 если процесс жив.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	writeHealth(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   serviceName,
	})
}

// HealthReady — readiness probe. Возвращает 200 (ok/degraded) или 503 (fail).
func (h *HealthHandler) HealthReady(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   serviceName,
		Checks:    make(map[string]healthCheckResult, len(h.checkers)),
	}

	names := make([]string, 0, len(h.checkers))
	for name := range h.checkers {
		names = append(names, name)
	}
	sort.Strings(names)

	statuses := make([]string, 0, len(names))
	for _, name := range names {
		result := healthCheckResult{Status: "fail", Message: "не инициализирован"}
		if c := h.checkers[name]; c != nil {
			status, msg := c.CheckReady()
			result = healthCheckResult{Status: status, Message: msg}
		}
		resp.Checks[name] = result
		statuses = append(statuses, result.Status)
	}
	resp.Status = overallStatus(statuses...)

	status := http.StatusOK
	if resp.Status == "fail" {
		status = http.StatusServiceUnavailable
	}
	writeHealth(w, status, resp)
}

func writeHealth(w http.ResponseWriter, status int, resp healthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// overallStatus определяет итоговый статус из статусов зависимостей.
// Если хотя бы одна зависимость fail — итог fail.
// Если хотя бы одна degraded — итог degraded.
// Иначе — ok.
func overallStatus(statuses ...string) string {
	hasDegraded := false
	for _, s := range statuses {
		if s == "fail" {
			return "fail"
		}
		if s == "degraded" {
			hasDegraded = true
		}
	}
	if hasDegraded {
		return "degraded"
	}
	return "ok"
}
