// Пакет handlers — HTTP-обработчики страниц веб-консоли.
//
// Страничные обработчики вызываются после middleware.Guard: сессия
// уже разрешена и маршрут разрешён. Проверки отдельных действий
// (удаление, восстановление) делаются здесь же через rbac.Requirement.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/a-h/templ"

	"github.com/bigkaa/goartstore/console-module/internal/domain/rbac"
	"github.com/bigkaa/goartstore/console-module/internal/guard"
	"github.com/bigkaa/goartstore/console-module/internal/service"
	"github.com/bigkaa/goartstore/console-module/internal/session"
	"github.com/bigkaa/goartstore/console-module/internal/ui/clients"
	"github.com/bigkaa/goartstore/console-module/internal/ui/middleware"
	"github.com/bigkaa/goartstore/console-module/internal/ui/pages"
)

// base — общие зависимости страничных обработчиков.
type base struct {
	manifest *guard.Manifest
	logger   *slog.Logger
}

// client возвращает запись клиента и текущую запись сессии.
func (b *base) client(r *http.Request) (*clients.Entry, session.Record) {
	e := middleware.ClientFromContext(r.Context())
	if e == nil {
		return nil, session.Record{State: session.StateUnauthenticated}
	}
	return e, e.Context.Snapshot()
}

// nav строит меню по правам текущей записи.
func (b *base) nav(r *http.Request, rec session.Record) *pages.Nav {
	nav := &pages.Nav{
		Current:  r.URL.Path,
		Sections: b.manifest.Menu(rec.Checker()),
	}
	if route, ok := middleware.RouteFromContext(r.Context()); ok {
		nav.Current = route.Path
	}
	if rec.Identity != nil {
		nav.UserName = rec.Identity.Name
		if nav.UserName == "" {
			nav.UserName = rec.Identity.Email
		}
	}
	return nav
}

// render пишет HTML-страницу.
func (b *base) render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := c.Render(r.Context(), w); err != nil {
		b.logger.Error("Ошибка рендеринга страницы",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
}

// allowed проверяет требование отдельного действия. При отказе
// перенаправляет на страницу отказа в доступе.
func (b *base) allowed(w http.ResponseWriter, r *http.Request, rec session.Record, req rbac.Requirement) bool {
	if rec.Authenticated() && rec.Checker().Allows(req) {
		return true
	}
	http.Redirect(w, r, guard.UnauthorizedPath, http.StatusSeeOther)
	return false
}

// fail обрабатывает ошибку сервисного слоя: истёкшая сессия ведёт на
// вход, остальное показывается страницей ошибки с сообщением API.
func (b *base) fail(w http.ResponseWriter, r *http.Request, rec session.Record, title string, err error) {
	if errors.Is(err, service.ErrSessionExpired) {
		http.Redirect(w, r, guard.LoginTarget(r.URL.RequestURI()), http.StatusSeeOther)
		return
	}

	status := http.StatusBadGateway
	switch {
	case errors.Is(err, service.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrValidation), errors.Is(err, service.ErrConflict):
		status = http.StatusUnprocessableEntity
	}
	b.logger.Warn("Ошибка запроса к API",
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.String("error", err.Error()),
	)
	b.render(w, r, status, pages.ErrorPage(title, err.Error(), b.nav(r, rec)))
}

// listParams читает page, per_page и search из query-строки.
func listParams(r *http.Request) service.ListParams {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	return service.ListParams{Page: page, PerPage: perPage, Search: q.Get("search")}
}

// formError — текст ошибки формы и список незаполненных полей.
func formError(err error) (string, map[string]bool) {
	var ve *service.ValidationError
	if errors.As(err, &ve) {
		missing := make(map[string]bool, len(ve.Fields))
		for _, f := range ve.Fields {
			missing[f] = true
		}
		return err.Error(), missing
	}
	return err.Error(), nil
}

// requiredError — подпись под незаполненным обязательным полем.
func requiredError(missing map[string]bool, field string) string {
	if missing[field] {
		return "обязательное поле"
	}
	return ""
}
