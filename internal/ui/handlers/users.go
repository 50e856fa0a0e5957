// users.go — список и создание пользователей.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/bigkaa/goartstore/console-module/internal/guard"
	"github.com/bigkaa/goartstore/console-module/internal/service"
	"github.com/bigkaa/goartstore/console-module/internal/session"
	"github.com/bigkaa/goartstore/console-module/internal/ui/clients"
	"github.com/bigkaa/goartstore/console-module/internal/ui/pages"
)

// UsersHandler — страницы пользователей.
type UsersHandler struct {
	base
}

// NewUsersHandler создаёт UsersHandler.
func NewUsersHandler(manifest *guard.Manifest, logger *slog.Logger) *UsersHandler {
	return &UsersHandler{base{manifest: manifest, logger: logger.With(slog.String("component", "users_handler"))}}
}

// List — GET /users.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	entry, rec := h.client(r)
	params := listParams(r)

	page, err := entry.Users.List(r.Context(), params)
	if err != nil {
		h.fail(w, r, rec, "Пользователи", err)
		return
	}

	data := pages.TableData{
		Title:     "Пользователи",
		Nav:       h.nav(r, rec),
		Path:      "/users",
		Columns:   []string{"Имя", "Email", "Роль", "Статус"},
		Search:    params.Search,
		Searching: true,
		Page:      page.Page,
		PerPage:   page.PerPage,
		Total:     page.Total,
		HasNext:   page.HasNext(),
		Notice:    noticeFor(r),
	}
	// Ссылка на создание только при наличии прав на /users/new
	if route, ok := h.manifest.Lookup("/users/new"); ok && rec.Checker().Allows(route.Requirement) {
		data.CreateURL = "/users/new"
	}
	for _, u := range page.Items {
		data.Rows = append(data.Rows, pages.Row{Cells: []string{u.Name, u.Email, u.Role, u.Status}})
	}
	h.render(w, r, http.StatusOK, pages.Table(data))
}

// New — GET /users/new.
func (h *UsersHandler) New(w http.ResponseWriter, r *http.Request) {
	entry, rec := h.client(r)
	h.render(w, r, http.StatusOK, pages.Form(h.form(r, entry, rec, service.UserInput{Status: "active"}, "", nil)))
}

// Create — POST /users/new.
func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	entry, rec := h.client(r)
	if err := r.ParseForm(); err != nil {
		h.fail(w, r, rec, "Новый пользователь", service.ErrValidation)
		return
	}

	in := service.UserInput{
		Name:     strings.TrimSpace(r.PostForm.Get("name")),
		Email:    strings.TrimSpace(r.PostForm.Get("email")),
		Password: r.PostForm.Get("password"),
		RoleID:   service.ID(r.PostForm.Get("role_id")),
		Status:   r.PostForm.Get("status"),
	}

	if _, err := entry.Users.Create(r.Context(), in); err != nil {
		if isFormError(err) {
			msg, missing := formError(err)
			h.render(w, r, http.StatusUnprocessableEntity, pages.Form(h.form(r, entry, rec, in, msg, missing)))
			return
		}
		h.fail(w, r, rec, "Новый пользователь", err)
		return
	}
	http.Redirect(w, r, "/users?created=1", http.StatusSeeOther)
}

func (h *UsersHandler) form(r *http.Request, entry *clients.Entry, rec session.Record, in service.UserInput, msg string, missing map[string]bool) pages.FormData {
	return pages.FormData{
		Title:  "Новый пользователь",
		Nav:    h.nav(r, rec),
		Action: "/users/new",
		Back:   "/users",
		Submit: "Создать",
		Error:  msg,
		Fields: []pages.Field{
			{Name: "name", Label: "Имя", Value: in.Name, Required: true, Error: requiredError(missing, "name")},
			{Name: "email", Label: "Email", Type: "email", Value: in.Email, Required: true, Error: requiredError(missing, "email")},
			{Name: "password", Label: "Пароль", Type: "password", Required: true, Error: requiredError(missing, "password")},
			h.roleField(r.Context(), entry, in.RoleID.String()),
			{Name: "status", Label: "Статус", Type: "select", Value: in.Status, Options: []pages.Option{
				{Value: "active", Label: "активен"},
				{Value: "inactive", Label: "неактивен"},
			}},
		},
	}
}

// roleField — выбор роли из списка ролей. Если список не загрузился,
// остаётся текстовое поле идентификатора.
func (h *UsersHandler) roleField(ctx context.Context, entry *clients.Entry, value string) pages.Field {
	field := pages.Field{Name: "role_id", Label: "Роль", Value: value}
	page, err := entry.Roles.List(ctx, service.ListParams{PerPage: service.MaxPerPage})
	if err != nil {
		h.logger.Warn("Не удалось загрузить роли для формы", slog.String("error", err.Error()))
		return field
	}
	field.Type = "select"
	field.Options = []pages.Option{{Value: "", Label: "—"}}
	for _, role := range page.Items {
		field.Options = append(field.Options, pages.Option{Value: role.ID.String(), Label: role.Name})
	}
	return field
}

// isFormError — ошибка, которую показываем в форме, а не отдельной страницей.
func isFormError(err error) bool {
	var ve *service.ValidationError
	var re *service.RequestError
	return errors.As(err, &ve) || (errors.As(err, &re) && (re.Status == http.StatusBadRequest ||
		re.Status == http.StatusUnprocessableEntity || re.Status == http.StatusConflict))
}

// noticeFor — сообщение об успешном действии по параметрам запроса.
func noticeFor(r *http.Request) string {
	q := r.URL.Query()
	switch {
	case q.Has("created"):
		return "Запись создана"
	case q.Has("updated"):
		return "Изменения сохранены"
	case q.Has("deleted"):
		return "Запись удалена"
	case q.Has("restored"):
		return "Запись восстановлена"
	default:
		return ""
	}
}
