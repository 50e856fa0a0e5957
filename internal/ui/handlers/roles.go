// roles.go — роли и назначение прав.
package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/goartstore/console-module/internal/guard"
	"github.com/bigkaa/goartstore/console-module/internal/service"
	"github.com/bigkaa/goartstore/console-module/internal/session"
	"github.com/bigkaa/goartstore/console-module/internal/ui/clients"
	"github.com/bigkaa/goartstore/console-module/internal/ui/pages"
)

// RolesHandler — страницы ролей.
type RolesHandler struct {
	base
}

// NewRolesHandler создаёт RolesHandler.
func NewRolesHandler(manifest *guard.Manifest, logger *slog.Logger) *RolesHandler {
	return &RolesHandler{base{manifest: manifest, logger: logger.With(slog.String("component", "roles_handler"))}}
}

// List — GET /roles.
func (h *RolesHandler) List(w http.ResponseWriter, r *http.Request) {
	entry, rec := h.client(r)
	params := listParams(r)

	page, err := entry.Roles.List(r.Context(), params)
	if err != nil {
		h.fail(w, r, rec, "Роли", err)
		return
	}

	data := pages.TableData{
		Title:     "Роли",
		Nav:       h.nav(r, rec),
		Path:      "/roles",
		Columns:   []string{"Название"},
		Search:    params.Search,
		Searching: true,
		Page:      page.Page,
		PerPage:   page.PerPage,
		Total:     page.Total,
		HasNext:   page.HasNext(),
		CreateURL: "/roles/new",
		Notice:    noticeFor(r),
	}
	for _, role := range page.Items {
		data.Rows = append(data.Rows, pages.Row{
			Cells: []string{role.Name},
			Link:  "/roles/" + role.ID.String(),
		})
	}
	h.render(w, r, http.StatusOK, pages.Table(data))
}

// New — GET /roles/new.
func (h *RolesHandler) New(w http.ResponseWriter, r *http.Request) {
	_, rec := h.client(r)
	h.render(w, r, http.StatusOK, pages.Form(h.form(r, rec, service.RoleInput{}, "", nil)))
}

// Create — POST /roles/new.
func (h *RolesHandler) Create(w http.ResponseWriter, r *http.Request) {
	entry, rec := h.client(r)
	_ = r.ParseForm()
	in := service.RoleInput{
		Name:        strings.TrimSpace(r.PostForm.Get("name")),
		Description: strings.TrimSpace(r.PostForm.Get("description")),
	}

	role, err := entry.Roles.Create(r.Context(), in)
	if err != nil {
		if isFormError(err) {
			msg, missing := formError(err)
			h.render(w, r, http.StatusUnprocessableEntity, pages.Form(h.form(r, rec, in, msg, missing)))
			return
		}
		h.fail(w, r, rec, "Новая роль", err)
		return
	}
	if role == nil || role.ID == "" {
		http.Redirect(w, r, "/roles?created=1", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/roles/"+role.ID.String()+"?created=1", http.StatusSeeOther)
}

func (h *RolesHandler) form(r *http.Request, rec session.Record, in service.RoleInput, msg string, missing map[string]bool) pages.FormData {
	return pages.FormData{
		Title:  "Новая роль",
		Nav:    h.nav(r, rec),
		Action: "/roles/new",
		Back:   "/roles",
		Submit: "Создать",
		Error:  msg,
		Fields: []pages.Field{
			{Name: "name", Label: "Название", Value: in.Name, Required: true, Error: requiredError(missing, "name")},
			{Name: "description", Label: "Описание", Type: "textarea", Value: in.Description},
		},
	}
}

// Detail — GET /roles/{id}: роль и отметки её прав в общем справочнике.
func (h *RolesHandler) Detail(w http.ResponseWriter, r *http.Request) {
	entry, rec := h.client(r)
	id := service.ID(chi.URLParam(r, "id"))

	data, err := h.detail(r, entry, rec, id)
	if err != nil {
		h.fail(w, r, rec, "Роль", err)
		return
	}
	data.Notice = noticeFor(r)
	h.render(w, r, http.StatusOK, pages.RoleDetail(data))
}

// SyncPermissions — POST /roles/{id}: отмеченные права заменяют набор роли.
func (h *RolesHandler) SyncPermissions(w http.ResponseWriter, r *http.Request) {
	entry, rec := h.client(r)
	id := service.ID(chi.URLParam(r, "id"))
	_ = r.ParseForm()

	if err := entry.Roles.SyncPermissions(r.Context(), id, r.PostForm["permissions"]); err != nil {
		if !isFormError(err) {
			h.fail(w, r, rec, "Роль", err)
			return
		}
		data, derr := h.detail(r, entry, rec, id)
		if derr != nil {
			h.fail(w, r, rec, "Роль", derr)
			return
		}
		data.Error = err.Error()
		h.render(w, r, http.StatusUnprocessableEntity, pages.RoleDetail(data))
		return
	}
	http.Redirect(w, r, "/roles/"+id.String()+"?updated=1", http.StatusSeeOther)
}

func (h *RolesHandler) detail(r *http.Request, entry *clients.Entry, rec session.Record, id service.ID) (pages.RoleData, error) {
	ctx := r.Context()
	role, err := entry.Roles.Get(ctx, id)
	if err != nil {
		return pages.RoleData{}, err
	}
	assigned, err := entry.Roles.Permissions(ctx, id)
	if err != nil {
		return pages.RoleData{}, err
	}
	all, err := entry.Roles.AllPermissions(ctx)
	if err != nil {
		return pages.RoleData{}, err
	}

	checked := make(map[string]bool, len(assigned))
	for _, p := range assigned {
		checked[p] = true
	}
	data := pages.RoleData{
		Nav:    h.nav(r, rec),
		Name:   role.Name,
		Action: "/roles/" + id.String(),
	}
	for _, p := range all {
		data.Items = append(data.Items, pages.PermissionItem{Name: p.Name, Checked: checked[p.Name]})
		delete(checked, p.Name)
	}
	// Назначенные права, которых нет в справочнике, тоже показываем
	for _, p := range assigned {
		if checked[p] {
			data.Items = append(data.Items, pages.PermissionItem{Name: p, Checked: true})
		}
	}
	return data, nil
}
