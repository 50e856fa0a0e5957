package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bigkaa/goartstore/console-module/internal/guard"
	"github.com/bigkaa/goartstore/console-module/internal/ui/handlers"
	"github.com/bigkaa/goartstore/console-module/internal/ui/middleware"
)

// Handlers — обработчики, подключаемые к маршрутизатору.
type Handlers struct {
	Auth        *handlers.AuthHandler
	Dashboard   *handlers.DashboardHandler
	Users       *handlers.UsersHandler
	Roles       *handlers.RolesHandler
	Departments *handlers.DepartmentsHandler
	Permissions *handlers.PermissionsHandler
	Events      *handlers.EventsHandler
	Health      *handlers.HealthHandler
}

// NewRouter собирает маршруты консоли.
//
// /metrics и /health/* обслуживаются без клиента. Остальные запросы
// получают клиента из cookie (binder); страницы дополнительно проходят
// guard. Поток /events/session и выход — вне guard: страница загрузки
// подписывается на поток, пока сессия ещё разрешается.
func NewRouter(logger *slog.Logger, h Handlers, binder *middleware.ClientBinder, g *middleware.Guard) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Metrics())
	r.Use(middleware.RequestLogger(logger))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health/live", h.Health.HealthLive)
	r.Get("/health/ready", h.Health.HealthReady)

	r.Group(func(r chi.Router) {
		r.Use(binder.Middleware())

		r.Get("/", func(w http.ResponseWriter, req *http.Request) {
			http.Redirect(w, req, guard.DefaultReturnPath, http.StatusFound)
		})
		r.Get("/events/session", h.Events.HandleSession)
		r.Post("/logout", h.Auth.Logout)

		r.Group(func(r chi.Router) {
			r.Use(g.Middleware())

			// Публичные маршруты guard пропускает без ожидания сессии
			r.Get(guard.LoginPath, h.Auth.LoginPage)
			r.Post(guard.LoginPath, h.Auth.Login)
			r.Get(guard.UnauthorizedPath, h.Auth.Unauthorized)

			r.Get("/dashboard", h.Dashboard.Dashboard)
			r.Get("/profile", h.Dashboard.Profile)

			r.Get("/users", h.Users.List)
			r.Get("/users/new", h.Users.New)
			r.Post("/users/new", h.Users.Create)

			r.Get("/roles", h.Roles.List)
			r.Get("/roles/new", h.Roles.New)
			r.Post("/roles/new", h.Roles.Create)
			r.Get("/roles/{id}", h.Roles.Detail)
			r.Post("/roles/{id}", h.Roles.SyncPermissions)

			r.Get("/departments", h.Departments.List)
			r.Get("/departments/new", h.Departments.New)
			r.Post("/departments/new", h.Departments.Create)
			r.Get("/departments/{id}", h.Departments.Edit)
			r.Post("/departments/{id}", h.Departments.Update)
			r.Post("/departments/{id}/delete", h.Departments.Delete)
			r.Post("/departments/{id}/force-delete", h.Departments.ForceDelete)
			r.Post("/departments/{id}/restore", h.Departments.Restore)

			r.Get("/permissions", h.Permissions.List)
			r.Post("/permissions", h.Permissions.Create)
			r.Post("/permissions/{id}/delete", h.Permissions.Delete)
		})
	})

	return r
}
