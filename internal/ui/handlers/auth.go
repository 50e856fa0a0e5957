// auth.go — вход, выход, страница загрузки и отказа в доступе.
package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/bigkaa/goartstore/console-module/internal/guard"
	"github.com/bigkaa/goartstore/console-module/internal/service"
	"github.com/bigkaa/goartstore/console-module/internal/session"
	"github.com/bigkaa/goartstore/console-module/internal/ui/pages"
)

// AuthHandler — обработчики входа и выхода.
type AuthHandler struct {
	base
}

// NewAuthHandler создаёт AuthHandler.
func NewAuthHandler(manifest *guard.Manifest, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{base{
		manifest: manifest,
		logger:   logger.With(slog.String("component", "ui_auth_handler")),
	}}
}

type loginForm struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"` //nolint:gosec // G117: пароль из формы входа
}

// LoginPage — GET /login. Уже аутентифицированный клиент уходит по from.
func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	from := r.URL.Query().Get("from")
	entry, rec := h.client(r)
	if entry != nil && rec.Authenticated() {
		http.Redirect(w, r, guard.ReturnPath(from), http.StatusFound)
		return
	}
	h.render(w, r, http.StatusOK, pages.Login(pages.LoginData{From: from}))
}

// Login — POST /login. Роли и права берутся из разрешения сессии
// после входа, а не из ответа на вход.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	entry, _ := h.client(r)
	if entry == nil || r.ParseForm() != nil {
		h.render(w, r, http.StatusBadRequest, pages.Login(pages.LoginData{Error: "Некорректный запрос"}))
		return
	}

	form := loginForm{
		Email:    strings.TrimSpace(r.PostForm.Get("email")),
		Password: r.PostForm.Get("password"),
	}
	from := r.PostForm.Get("from")
	data := pages.LoginData{Email: form.Email, From: from}

	if err := service.Validate(form); err != nil {
		data.Error = "Укажите email и пароль"
		h.render(w, r, http.StatusBadRequest, pages.Login(data))
		return
	}

	out, rec := entry.Context.Login(r.Context(), form.Email, form.Password)
	if !out.Success {
		data.Error = out.Error
		status := http.StatusUnauthorized
		if out.Status == 0 || out.Status >= 500 {
			status = http.StatusBadGateway
		}
		h.render(w, r, status, pages.Login(data))
		return
	}
	if !rec.Authenticated() {
		h.logger.Warn("Вход выполнен, но сессия не разрешилась",
			slog.String("client_id", entry.ID),
			slog.String("state", string(rec.State)),
		)
		data.Error = session.ErrIdentityUnavailable.Error()
		h.render(w, r, http.StatusBadGateway, pages.Login(data))
		return
	}

	h.logger.Info("Вход в консоль",
		slog.String("client_id", entry.ID),
		slog.Any("roles", rec.Roles),
	)
	http.Redirect(w, r, guard.ReturnPath(from), http.StatusSeeOther)
}

// Logout — POST /logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if entry, _ := h.client(r); entry != nil {
		entry.Context.Logout(r.Context())
		h.logger.Info("Выход из консоли", slog.String("client_id", entry.ID))
	}
	http.Redirect(w, r, guard.LoginPath, http.StatusSeeOther)
}

// Unauthorized — GET /unauthorized.
func (h *AuthHandler) Unauthorized(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusForbidden, pages.Unauthorized())
}

// Loading — страница ожидания, пока сессия разрешается. Показывает
// приветствие из предварительного снимка, если он есть.
func (h *AuthHandler) Loading(w http.ResponseWriter, r *http.Request) {
	greeting := ""
	if entry, _ := h.client(r); entry != nil && entry.Resolver != nil {
		if p, ok := entry.Resolver.Cached(r.Context()); ok && p.Identity != nil && p.Identity.Name != "" {
			greeting = "С возвращением, " + p.Identity.Name
		}
	}
	w.Header().Set("Refresh", "1")
	w.Header().Set("Cache-Control", "no-store")
	h.render(w, r, http.StatusOK, pages.Loading(greeting))
}
