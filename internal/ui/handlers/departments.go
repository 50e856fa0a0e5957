// departments.go — отделы: список, создание, изменение, корзина.
package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/goartstore/console-module/internal/domain/rbac"
	"github.com/bigkaa/goartstore/console-module/internal/guard"
	"github.com/bigkaa/goartstore/console-module/internal/service"
	"github.com/bigkaa/goartstore/console-module/internal/session"
	"github.com/bigkaa/goartstore/console-module/internal/ui/pages"
)

// manageDepartments — право на изменение отделов.
var manageDepartments = rbac.Requirement{Permissions: []string{"departments.manage"}}

// DepartmentsHandler — страницы отделов.
type DepartmentsHandler struct {
	base
}

// NewDepartmentsHandler создаёт DepartmentsHandler.
func NewDepartmentsHandler(manifest *guard.Manifest, logger *slog.Logger) *DepartmentsHandler {
	return &DepartmentsHandler{base{manifest: manifest, logger: logger.With(slog.String("component", "departments_handler"))}}
}

// List — GET /departments. Кнопки действий — только с правом departments.manage.
func (h *DepartmentsHandler) List(w http.ResponseWriter, r *http.Request) {
	entry, rec := h.client(r)
	params := listParams(r)

	page, err := entry.Departments.List(r.Context(), params)
	if err != nil {
		h.fail(w, r, rec, "Отделы", err)
		return
	}

	canManage := rec.Checker().Allows(manageDepartments)
	data := pages.TableData{
		Title:     "Отделы",
		Nav:       h.nav(r, rec),
		Path:      "/departments",
		Columns:   []string{"Название", "Код", "Состояние"},
		Search:    params.Search,
		Searching: true,
		Page:      page.Page,
		PerPage:   page.PerPage,
		Total:     page.Total,
		HasNext:   page.HasNext(),
		Notice:    noticeFor(r),
	}
	if route, ok := h.manifest.Lookup("/departments/new"); ok && rec.Checker().Allows(route.Requirement) {
		data.CreateURL = "/departments/new"
	}

	for _, d := range page.Items {
		path := "/departments/" + d.ID.String()
		row := pages.Row{Cells: []string{d.Name, d.Code, "активен"}, Link: path}
		if d.DeletedAt != "" {
			row.Cells[2] = "в корзине"
		}
		if canManage {
			if d.DeletedAt == "" {
				row.Actions = []pages.Action{{Label: "Удалить", URL: path + "/delete", Confirm: "Переместить отдел «" + d.Name + "» в корзину?"}}
			} else {
				row.Actions = []pages.Action{
					{Label: "Восстановить", URL: path + "/restore"},
					{Label: "Удалить навсегда", URL: path + "/force-delete", Confirm: "Удалить отдел «" + d.Name + "» безвозвратно?"},
				}
			}
		}
		data.Rows = append(data.Rows, row)
	}
	h.render(w, r, http.StatusOK, pages.Table(data))
}

// New — GET /departments/new.
func (h *DepartmentsHandler) New(w http.ResponseWriter, r *http.Request) {
	_, rec := h.client(r)
	h.render(w, r, http.StatusOK, pages.Form(h.form(r, rec, "", service.DepartmentInput{}, "", nil)))
}

// Create — POST /departments/new.
func (h *DepartmentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	entry, rec := h.client(r)
	in := departmentInput(r)

	if _, err := entry.Departments.Create(r.Context(), in); err != nil {
		h.formFailed(w, r, rec, "", in, err)
		return
	}
	http.Redirect(w, r, "/departments?created=1", http.StatusSeeOther)
}

// Edit — GET /departments/{id}.
func (h *DepartmentsHandler) Edit(w http.ResponseWriter, r *http.Request) {
	entry, rec := h.client(r)
	id := service.ID(chi.URLParam(r, "id"))

	d, err := entry.Departments.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, rec, "Отдел", err)
		return
	}
	in := service.DepartmentInput{Name: d.Name, Code: d.Code, Description: d.Description}
	h.render(w, r, http.StatusOK, pages.Form(h.form(r, rec, id, in, "", nil)))
}

// Update — POST /departments/{id}.
func (h *DepartmentsHandler) Update(w http.ResponseWriter, r *http.Request) {
	entry, rec := h.client(r)
	if !h.allowed(w, r, rec, manageDepartments) {
		return
	}
	id := service.ID(chi.URLParam(r, "id"))
	in := departmentInput(r)

	if _, err := entry.Departments.Update(r.Context(), id, in); err != nil {
		h.formFailed(w, r, rec, id, in, err)
		return
	}
	http.Redirect(w, r, "/departments?updated=1", http.StatusSeeOther)
}

// Delete — POST /departments/{id}/delete: перемещение в корзину.
func (h *DepartmentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, "deleted", func(e *service.DepartmentsService, id service.ID) error { return e.Delete(r.Context(), id) })
}

// ForceDelete — POST /departments/{id}/force-delete.
func (h *DepartmentsHandler) ForceDelete(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, "deleted", func(e *service.DepartmentsService, id service.ID) error { return e.ForceDelete(r.Context(), id) })
}

// Restore — POST /departments/{id}/restore.
func (h *DepartmentsHandler) Restore(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, "restored", func(e *service.DepartmentsService, id service.ID) error { return e.Restore(r.Context(), id) })
}

func (h *DepartmentsHandler) action(w http.ResponseWriter, r *http.Request, notice string, fn func(*service.DepartmentsService, service.ID) error) {
	entry, rec := h.client(r)
	if !h.allowed(w, r, rec, manageDepartments) {
		return
	}
	if err := fn(entry.Departments, service.ID(chi.URLParam(r, "id"))); err != nil {
		h.fail(w, r, rec, "Отделы", err)
		return
	}
	http.Redirect(w, r, "/departments?"+notice+"=1", http.StatusSeeOther)
}

func (h *DepartmentsHandler) formFailed(w http.ResponseWriter, r *http.Request, rec session.Record, id service.ID, in service.DepartmentInput, err error) {
	if !isFormError(err) {
		h.fail(w, r, rec, "Отдел", err)
		return
	}
	msg, missing := formError(err)
	h.render(w, r, http.StatusUnprocessableEntity, pages.Form(h.form(r, rec, id, in, msg, missing)))
}

func (h *DepartmentsHandler) form(r *http.Request, rec session.Record, id service.ID, in service.DepartmentInput, msg string, missing map[string]bool) pages.FormData {
	d := pages.FormData{
		Title:  "Новый отдел",
		Nav:    h.nav(r, rec),
		Action: "/departments/new",
		Back:   "/departments",
		Submit: "Создать",
		Error:  msg,
		Fields: []pages.Field{
			{Name: "name", Label: "Название", Value: in.Name, Required: true, Error: requiredError(missing, "name")},
			{Name: "code", Label: "Код", Value: in.Code, Required: true, Error: requiredError(missing, "code")},
			{Name: "description", Label: "Описание", Type: "textarea", Value: in.Description},
		},
	}
	if id != "" {
		d.Title = "Отдел: " + in.Name
		d.Action = "/departments/" + id.String()
		d.Submit = "Сохранить"
	}
	return d
}

func departmentInput(r *http.Request) service.DepartmentInput {
	_ = r.ParseForm()
	return service.DepartmentInput{
		Name:        strings.TrimSpace(r.PostForm.Get("name")),
		Code:        strings.TrimSpace(r.PostForm.Get("code")),
		Description: strings.TrimSpace(r.PostForm.Get("description")),
	}
}
