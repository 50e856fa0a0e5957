// guard.go — проверка доступа к страницам консоли по манифесту маршрутов.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/console-module/internal/guard"
)

var guardDecisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "cm_guard_decisions_total",
		Help: "Решения проверки доступа к страницам консоли",
	},
	[]string{"outcome"},
)

// Guard — middleware проверки навигации.
type Guard struct {
	manifest *guard.Manifest
	wait     time.Duration
	suspend  http.Handler
	logger   *slog.Logger
}

// NewGuard создаёт Guard. wait — сколько ждать завершения разрешения
// сессии; если за это время решения нет, вызывается suspend
// (страница загрузки).
func NewGuard(manifest *guard.Manifest, wait time.Duration, suspend http.Handler, logger *slog.Logger) *Guard {
	return &Guard{
		manifest: manifest,
		wait:     wait,
		suspend:  suspend,
		logger:   logger.With(slog.String("component", "guard")),
	}
}

// Middleware применяет guard.Decide к каждому запросу. Публичные маршруты
// пропускаются, неизвестные требуют только аутентификации.
// Требует ClientBinder выше по цепочке.
func (g *Guard) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route, _ := g.manifest.Lookup(r.URL.Path)
			if route.Public {
				next.ServeHTTP(w, r)
				return
			}

			entry := ClientFromContext(r.Context())
			if entry == nil {
				g.logger.Error("Запрос без клиента консоли", slog.String("path", r.URL.Path))
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}

			ctx, cancel := context.WithTimeout(r.Context(), g.wait)
			rec, _ := entry.Context.Await(ctx)
			cancel()

			d := guard.Decide(rec.State, rec.Checker(), route.Requirement, r.URL.RequestURI())
			guardDecisionsTotal.WithLabelValues(d.Kind.String()).Inc()

			switch d.Kind {
			case guard.Suspend:
				g.suspend.ServeHTTP(w, r)
			case guard.Redirect:
				g.logger.Debug("Навигация перенаправлена",
					slog.String("client_id", entry.ID),
					slog.String("path", r.URL.Path),
					slog.String("target", d.Target),
				)
				status := http.StatusFound
				if r.Method != http.MethodGet && r.Method != http.MethodHead {
					status = http.StatusSeeOther
				}
				http.Redirect(w, r, d.Target, status)
			default:
				next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKeyRoute, route)))
			}
		})
	}
}

// RouteFromContext возвращает маршрут манифеста, по которому пропущен запрос.
func RouteFromContext(ctx context.Context) (guard.Route, bool) {
	route, ok := ctx.Value(contextKeyRoute).(guard.Route)
	return route, ok
}
