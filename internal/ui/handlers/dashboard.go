// dashboard.go — главная страница и профиль.
package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/bigkaa/goartstore/console-module/internal/guard"
	"github.com/bigkaa/goartstore/console-module/internal/ui/pages"
)

// DependencyHealth — состояние зависимостей (service.DephealthService).
type DependencyHealth interface {
	Health() map[string]bool
	Dependencies() []string
}

// DashboardHandler — главная страница и профиль.
type DashboardHandler struct {
	base
	deps DependencyHealth
}

// NewDashboardHandler создаёт DashboardHandler. deps может быть nil —
// блок зависимостей не показывается.
func NewDashboardHandler(manifest *guard.Manifest, deps DependencyHealth, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{
		base: base{manifest: manifest, logger: logger.With(slog.String("component", "dashboard_handler"))},
		deps: deps,
	}
}

// Dashboard — GET /dashboard.
func (h *DashboardHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	_, rec := h.client(r)
	data := pages.DashboardData{
		Nav:         h.nav(r, rec),
		Roles:       rec.Roles,
		Permissions: rec.Permissions,
	}
	if rec.Identity != nil {
		data.Name = rec.Identity.Name
		data.Email = rec.Identity.Email
	}
	if h.deps != nil {
		health := h.deps.Health()
		for _, name := range h.deps.Dependencies() {
			healthy, known := findHealthByPrefix(health, name)
			data.Dependencies = append(data.Dependencies, pages.DependencyStatus{
				Name: name, Healthy: healthy, Known: known,
			})
		}
	}
	h.render(w, r, http.StatusOK, pages.Dashboard(data))
}

// Profile — GET /profile: все атрибуты identity в порядке имён.
func (h *DashboardHandler) Profile(w http.ResponseWriter, r *http.Request) {
	_, rec := h.client(r)
	var attrs []pages.Attribute
	if rec.Identity != nil {
		keys := make([]string, 0, len(rec.Identity.Attributes))
		for k := range rec.Identity.Attributes {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			attrs = append(attrs, pages.Attribute{Name: k, Value: displayValue(rec.Identity.Attributes[k])})
		}
	}
	attrs = append(attrs,
		pages.Attribute{Name: "roles", Value: strings.Join(rec.Roles, ", ")},
		pages.Attribute{Name: "permissions", Value: strings.Join(rec.Permissions, ", ")},
	)
	h.render(w, r, http.StatusOK, pages.Profile(h.nav(r, rec), attrs))
}

// displayValue приводит значение JSON к строке для показа.
func displayValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case map[string]any, []any:
		raw, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(raw)
	default:
		return fmt.Sprint(val)
	}
}

// findHealthByPrefix ищет статус зависимости по имени. Health() из
// topologymetrics возвращает ключи вида "dependency:host:port".
// Несколько ключей — healthy, только если healthy все.
func findHealthByPrefix(health map[string]bool, prefix string) (healthy, found bool) {
	for key, ok := range health {
		if strings.HasPrefix(key, prefix+":") || key == prefix {
			if !ok {
				return false, true
			}
			found = true
		}
	}
	return found, found
}
