package mockbackend

import (
	"net/http"
	"strings"
	"time"
)

// --- Пользователи ---

type userRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password"` //nolint:gosec // G117: пароль нового пользователя
	RoleID   flexID `json:"role_id"`
	Status   string `json:"status" validate:"omitempty,oneof=active inactive"`
}

func (req userRequest) user(id int64) user {
	status := req.Status
	if status == "" {
		status = "active"
	}
	return user{
		ID:       id,
		Name:     strings.TrimSpace(req.Name),
		Email:    strings.TrimSpace(req.Email),
		Password: req.Password,
		RoleID:   int64(req.RoleID),
		Status:   status,
	}
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	writeList(w, r, s.store.listUsers())
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	view, err := s.store.getUser(id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeData(w, http.StatusOK, view)
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Password == "" {
		writeMessage(w, http.StatusUnprocessableEntity, "Не заполнены поля: password")
		return
	}
	view, err := s.store.saveUser(req.user(0))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeData(w, http.StatusCreated, view)
}

func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req userRequest
	if !s.decode(w, r, &req) {
		return
	}
	view, err := s.store.saveUser(req.user(id))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeData(w, http.StatusOK, view)
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.store.deleteUser(id); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Роли ---

type roleRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

type rolePermissionsRequest struct {
	ID          flexID   `json:"id" validate:"required"`
	Permissions []string `json:"permissions"`
}

func (s *Server) listRoles(w http.ResponseWriter, r *http.Request) {
	writeList(w, r, s.store.listRoles())
}

func (s *Server) getRole(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	view, err := s.store.getRole(id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeData(w, http.StatusOK, view)
}

func (s *Server) createRole(w http.ResponseWriter, r *http.Request) {
	s.saveRole(w, r, 0, http.StatusCreated)
}

func (s *Server) updateRole(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	s.saveRole(w, r, id, http.StatusOK)
}

func (s *Server) saveRole(w http.ResponseWriter, r *http.Request, id int64, status int) {
	var req roleRequest
	if !s.decode(w, r, &req) {
		return
	}
	view, err := s.store.saveRole(role{ID: id, Name: strings.TrimSpace(req.Name), Description: req.Description})
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeData(w, status, view)
}

func (s *Server) deleteRole(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.store.deleteRole(id); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// getRolePermissions — GET /api/v1/roles/rpc/get_permissions?id=.
func (s *Server) getRolePermissions(w http.ResponseWriter, r *http.Request) {
	var id flexID
	if err := id.UnmarshalJSON([]byte(r.URL.Query().Get("id"))); err != nil || id == 0 {
		writeMessage(w, http.StatusBadRequest, "Не указан id роли")
		return
	}
	items, err := s.store.rolePermissions(int64(id))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"permissions": items})
}

func (s *Server) syncRolePermissions(w http.ResponseWriter, r *http.Request) {
	s.setRolePermissions(w, r, true)
}

func (s *Server) assignRolePermissions(w http.ResponseWriter, r *http.Request) {
	s.setRolePermissions(w, r, false)
}

func (s *Server) setRolePermissions(w http.ResponseWriter, r *http.Request, replace bool) {
	var req rolePermissionsRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.store.setRolePermissions(int64(req.ID), req.Permissions, replace); err != nil {
		writeStoreError(w, err)
		return
	}
	items, err := s.store.rolePermissions(int64(req.ID))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"permissions": items})
}

// --- Отделы ---

type departmentRequest struct {
	Name        string `json:"name" validate:"required"`
	Code        string `json:"code" validate:"required"`
	Description string `json:"description"`
}

func (s *Server) listDepartments(w http.ResponseWriter, r *http.Request) {
	writeList(w, r, s.store.listDepartments())
}

func (s *Server) getDepartment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	view, err := s.store.getDepartment(id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeData(w, http.StatusOK, view)
}

func (s *Server) createDepartment(w http.ResponseWriter, r *http.Request) {
	s.saveDepartment(w, r, 0, http.StatusCreated)
}

func (s *Server) updateDepartment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	s.saveDepartment(w, r, id, http.StatusOK)
}

func (s *Server) saveDepartment(w http.ResponseWriter, r *http.Request, id int64, status int) {
	var req departmentRequest
	if !s.decode(w, r, &req) {
		return
	}
	view, err := s.store.saveDepartment(department{
		ID:          id,
		Name:        strings.TrimSpace(req.Name),
		Code:        strings.TrimSpace(req.Code),
		Description: req.Description,
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeData(w, status, view)
}

// trashDepartment — DELETE /api/v1/departments/{id}: мягкое удаление.
func (s *Server) trashDepartment(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	s.departmentAction(w, r, func(id int64) error { return s.store.trashDepartment(id, &now) })
}

func (s *Server) restoreDepartment(w http.ResponseWriter, r *http.Request) {
	s.departmentAction(w, r, func(id int64) error { return s.store.trashDepartment(id, nil) })
}

func (s *Server) forceDeleteDepartment(w http.ResponseWriter, r *http.Request) {
	s.departmentAction(w, r, s.store.deleteDepartment)
}

func (s *Server) departmentAction(w http.ResponseWriter, r *http.Request, fn func(int64) error) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := fn(id); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Права ---

type permissionRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

type bulkPermissionsRequest struct {
	Permissions []permissionRequest `json:"permissions" validate:"required,min=1,dive"`
}

func (s *Server) listPermissions(w http.ResponseWriter, r *http.Request) {
	writeList(w, r, s.store.listPermissions())
}

func (s *Server) createPermission(w http.ResponseWriter, r *http.Request) {
	var req permissionRequest
	if !s.decode(w, r, &req) {
		return
	}
	views, err := s.store.createPermissions([]permission{{Name: strings.TrimSpace(req.Name), Description: req.Description}})
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeData(w, http.StatusCreated, views[0])
}

// createPermissions — POST /api/v1/permissions/rpc/create: пакетное создание.
func (s *Server) createPermissions(w http.ResponseWriter, r *http.Request) {
	var req bulkPermissionsRequest
	if !s.decode(w, r, &req) {
		return
	}
	in := make([]permission, 0, len(req.Permissions))
	for _, p := range req.Permissions {
		in = append(in, permission{Name: strings.TrimSpace(p.Name), Description: p.Description})
	}
	views, err := s.store.createPermissions(in)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeData(w, http.StatusCreated, views)
}

func (s *Server) deletePermission(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.store.deletePermission(id); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
