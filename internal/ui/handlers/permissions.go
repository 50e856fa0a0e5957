// permissions.go — справочник прав.
package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/goartstore/console-module/internal/domain/rbac"
	"github.com/bigkaa/goartstore/console-module/internal/guard"
	"github.com/bigkaa/goartstore/console-module/internal/service"
	"github.com/bigkaa/goartstore/console-module/internal/ui/pages"
)

var managePermissions = rbac.Requirement{Permissions: []string{"permissions.manage"}}

// PermissionsHandler — страница справочника прав.
type PermissionsHandler struct {
	base
}

// NewPermissionsHandler создаёт PermissionsHandler.
func NewPermissionsHandler(manifest *guard.Manifest, logger *slog.Logger) *PermissionsHandler {
	return &PermissionsHandler{base{manifest: manifest, logger: logger.With(slog.String("component", "permissions_handler"))}}
}

// List — GET /permissions.
func (h *PermissionsHandler) List(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, http.StatusOK, "")
}

func (h *PermissionsHandler) list(w http.ResponseWriter, r *http.Request, status int, formErr string) {
	entry, rec := h.client(r)

	items, err := entry.Permissions.List(r.Context())
	if err != nil {
		h.fail(w, r, rec, "Права", err)
		return
	}

	canManage := rec.Checker().Allows(managePermissions)
	data := pages.TableData{
		Title:   "Права",
		Nav:     h.nav(r, rec),
		Path:    "/permissions",
		Columns: []string{"Название", "Описание"},
		Page:    1,
		Notice:  noticeFor(r),
	}
	for _, p := range items {
		row := pages.Row{Cells: []string{p.Name, p.Description}}
		if canManage {
			row.Actions = []pages.Action{{
				Label:   "Удалить",
				URL:     "/permissions/" + p.ID.String() + "/delete",
				Confirm: "Удалить право «" + p.Name + "»?",
			}}
		}
		data.Rows = append(data.Rows, row)
	}
	if canManage {
		data.Extra = pages.FormBody(pages.FormData{
			Action: "/permissions",
			Submit: "Добавить",
			Error:  formErr,
			Fields: []pages.Field{
				{Name: "names", Label: "Новые права (по одному в строке)", Type: "textarea", Required: true},
				{Name: "description", Label: "Описание"},
			},
		})
	}
	h.render(w, r, status, pages.Table(data))
}

// Create — POST /permissions. Одна строка — обычное создание,
// несколько — пакетное через rpc/create.
func (h *PermissionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	entry, rec := h.client(r)
	if !h.allowed(w, r, rec, managePermissions) {
		return
	}
	_ = r.ParseForm()

	description := strings.TrimSpace(r.PostForm.Get("description"))
	var inputs []service.PermissionInput
	for _, line := range strings.Split(r.PostForm.Get("names"), "\n") {
		if name := strings.TrimSpace(line); name != "" {
			inputs = append(inputs, service.PermissionInput{Name: name, Description: description})
		}
	}

	var err error
	switch len(inputs) {
	case 0:
		err = &service.ValidationError{Fields: []string{"names"}}
	case 1:
		_, err = entry.Permissions.Create(r.Context(), inputs[0])
	default:
		err = entry.Permissions.CreateBulk(r.Context(), inputs)
	}
	if err != nil {
		if isFormError(err) {
			h.list(w, r, http.StatusUnprocessableEntity, err.Error())
			return
		}
		h.fail(w, r, rec, "Права", err)
		return
	}
	http.Redirect(w, r, "/permissions?created=1", http.StatusSeeOther)
}

// Delete — POST /permissions/{id}/delete.
func (h *PermissionsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	entry, rec := h.client(r)
	if !h.allowed(w, r, rec, managePermissions) {
		return
	}
	if err := entry.Permissions.Delete(r.Context(), service.ID(chi.URLParam(r, "id"))); err != nil {
		h.fail(w, r, rec, "Права", err)
		return
	}
	http.Redirect(w, r, "/permissions?deleted=1", http.StatusSeeOther)
}
