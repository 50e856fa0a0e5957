// Пакет mockbackend — backend API для разработки и тестов консоли.
//
// Реализует потребляемые консолью endpoints поверх данных в памяти.
// Токены — JWT HS256 с отзывом по jti при выходе. Инструмент разработки,
// а не сервер авторизации: пароли хранятся как есть.
package mockbackend

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

var (
	errNotFound = errors.New("запись не найдена")
	errConflict = errors.New("запись уже существует")
)

// flexID — идентификатор, приходящий числом или строкой.
type flexID int64

func (id *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) || bytes.Equal(b, []byte(`""`)) {
		*id = 0
		return nil
	}
	s := strings.Trim(string(b), `"`)
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("идентификатор %s: %w", s, err)
	}
	*id = flexID(n)
	return nil
}

type user struct {
	ID       int64
	Name     string
	Email    string
	Password string
	RoleID   int64
	Status   string
}

type role struct {
	ID          int64
	Name        string
	Description string
	Permissions []string
}

type department struct {
	ID          int64
	Name        string
	Code        string
	Description string
	DeletedAt   *time.Time
}

type permission struct {
	ID          int64
	Name        string
	Description string
}

// store — данные mock backend. Безопасен для конкурентного использования.
type store struct {
	mu          sync.RWMutex
	nextID      int64
	users       map[int64]*user
	roles       map[int64]*role
	departments map[int64]*department
	permissions map[int64]*permission
}

func newStore() *store {
	return &store{
		users:       make(map[int64]*user),
		roles:       make(map[int64]*role),
		departments: make(map[int64]*department),
		permissions: make(map[int64]*permission),
	}
}

// Права, с которыми создаются встроенные роли.
var (
	adminPermissions = []string{
		"users.view", "users.create",
		"departments.view", "departments.manage",
		"permissions.view", "permissions.manage",
	}
	managerPermissions = []string{"users.view", "departments.view"}
)

// seed заполняет начальные данные: роли admin и manager, их права,
// администратора и менеджера, два отдела.
func (s *store) seed(adminEmail, adminPassword string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, name := range adminPermissions {
		id := s.newID()
		s.permissions[id] = &permission{ID: id, Name: name}
	}
	adminRole := s.newID()
	s.roles[adminRole] = &role{ID: adminRole, Name: "admin", Description: "Администратор", Permissions: slices.Clone(adminPermissions)}
	managerRole := s.newID()
	s.roles[managerRole] = &role{ID: managerRole, Name: "manager", Description: "Менеджер", Permissions: slices.Clone(managerPermissions)}

	id := s.newID()
	s.users[id] = &user{ID: id, Name: "Администратор", Email: adminEmail, Password: adminPassword, RoleID: adminRole, Status: "active"}
	id = s.newID()
	s.users[id] = &user{ID: id, Name: "Менеджер", Email: "manager@example.com", Password: "manager", RoleID: managerRole, Status: "active"}

	for _, d := range []department{{Name: "Информационные технологии", Code: "IT"}, {Name: "Бухгалтерия", Code: "ACC"}} {
		id := s.newID()
		d.ID = id
		s.departments[id] = &d
	}
}

func (s *store) newID() int64 {
	s.nextID++
	return s.nextID
}

// --- Пользователи ---

func (s *store) authenticate(email, password string) (user, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) && u.Password == password {
			return *u, true
		}
	}
	return user{}, false
}

func (s *store) user(id int64) (user, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return user{}, false
	}
	return *u, true
}

func (s *store) userView(u user) map[string]any {
	v := map[string]any{
		"id":      u.ID,
		"name":    u.Name,
		"email":   u.Email,
		"status":  u.Status,
		"role_id": nil,
		"role":    "",
	}
	if r, ok := s.roles[u.RoleID]; ok {
		v["role_id"] = r.ID
		v["role"] = r.Name
	}
	return v
}

func (s *store) listUsers() []map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]map[string]any, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, s.userView(*u))
	}
	return out
}

func (s *store) getUser(id int64) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, errNotFound
	}
	return s.userView(*u), nil
}

func (s *store) saveUser(u user) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, other := range s.users {
		if other.ID != u.ID && strings.EqualFold(other.Email, u.Email) {
			return nil, fmt.Errorf("email %s: %w", u.Email, errConflict)
		}
	}
	if u.RoleID != 0 {
		if _, ok := s.roles[u.RoleID]; !ok {
			return nil, fmt.Errorf("роль %d: %w", u.RoleID, errNotFound)
		}
	}
	if u.ID == 0 {
		u.ID = s.newID()
	} else if prev, ok := s.users[u.ID]; !ok {
		return nil, errNotFound
	} else if u.Password == "" {
		u.Password = prev.Password
	}
	s.users[u.ID] = &u
	return s.userView(u), nil
}

func (s *store) deleteUser(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return errNotFound
	}
	delete(s.users, id)
	return nil
}

// --- Роли ---

func roleView(r role) map[string]any {
	return map[string]any{
		"id":          r.ID,
		"name":        r.Name,
		"description": r.Description,
		"permissions": slices.Clone(r.Permissions),
	}
}

func (s *store) listRoles() []map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]map[string]any, 0, len(s.roles))
	for _, r := range s.roles {
		out = append(out, roleView(*r))
	}
	return out
}

func (s *store) getRole(id int64) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.roles[id]
	if !ok {
		return nil, errNotFound
	}
	return roleView(*r), nil
}

func (s *store) saveRole(r role) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, other := range s.roles {
		if other.ID != r.ID && other.Name == r.Name {
			return nil, fmt.Errorf("роль %s: %w", r.Name, errConflict)
		}
	}
	if r.ID == 0 {
		r.ID = s.newID()
	} else if prev, ok := s.roles[r.ID]; !ok {
		return nil, errNotFound
	} else {
		r.Permissions = prev.Permissions
	}
	s.roles[r.ID] = &r
	return roleView(r), nil
}

func (s *store) deleteRole(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[id]; !ok {
		return errNotFound
	}
	delete(s.roles, id)
	return nil
}

// rolePermissions возвращает права роли как объекты {id, name}.
func (s *store) rolePermissions(id int64) ([]map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.roles[id]
	if !ok {
		return nil, errNotFound
	}
	out := make([]map[string]any, 0, len(r.Permissions))
	for _, name := range r.Permissions {
		item := map[string]any{"name": name}
		for _, p := range s.permissions {
			if p.Name == name {
				item["id"] = p.ID
				break
			}
		}
		out = append(out, item)
	}
	return out, nil
}

// setRolePermissions заменяет (replace) или дополняет набор прав роли.
// Неизвестное право — ошибка, набор не меняется.
func (s *store) setRolePermissions(id int64, names []string, replace bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.roles[id]
	if !ok {
		return errNotFound
	}
	known := make(map[string]bool, len(s.permissions))
	for _, p := range s.permissions {
		known[p.Name] = true
	}
	for _, name := range names {
		if !known[name] {
			return fmt.Errorf("право %s: %w", name, errNotFound)
		}
	}

	next := slices.Clone(names)
	if !replace {
		next = append(slices.Clone(r.Permissions), names...)
	}
	slices.Sort(next)
	r.Permissions = slices.Compact(next)
	return nil
}

// --- Отделы ---

func departmentView(d department) map[string]any {
	v := map[string]any{
		"id":          d.ID,
		"name":        d.Name,
		"code":        d.Code,
		"description": d.Description,
		"deleted_at":  nil,
	}
	if d.DeletedAt != nil {
		v["deleted_at"] = d.DeletedAt.UTC().Format(time.RFC3339)
	}
	return v
}

func (s *store) listDepartments() []map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]map[string]any, 0, len(s.departments))
	for _, d := range s.departments {
		out = append(out, departmentView(*d))
	}
	return out
}

func (s *store) getDepartment(id int64) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.departments[id]
	if !ok {
		return nil, errNotFound
	}
	return departmentView(*d), nil
}

func (s *store) saveDepartment(d department) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, other := range s.departments {
		if other.ID != d.ID && strings.EqualFold(other.Code, d.Code) {
			return nil, fmt.Errorf("код отдела %s: %w", d.Code, errConflict)
		}
	}
	if d.ID == 0 {
		d.ID = s.newID()
	} else if prev, ok := s.departments[d.ID]; !ok {
		return nil, errNotFound
	} else {
		d.DeletedAt = prev.DeletedAt
	}
	s.departments[d.ID] = &d
	return departmentView(d), nil
}

// trashDepartment перемещает отдел в корзину (now != nil) или
// восстанавливает его (now == nil).
func (s *store) trashDepartment(id int64, now *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.departments[id]
	if !ok {
		return errNotFound
	}
	d.DeletedAt = now
	return nil
}

func (s *store) deleteDepartment(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.departments[id]; !ok {
		return errNotFound
	}
	delete(s.departments, id)
	return nil
}

// --- Права ---

func permissionView(p permission) map[string]any {
	return map[string]any{"id": p.ID, "name": p.Name, "description": p.Description}
}

func (s *store) listPermissions() []map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]map[string]any, 0, len(s.permissions))
	for _, p := range s.permissions {
		out = append(out, permissionView(*p))
	}
	return out
}

// createPermissions создаёт права атомарно: дубликат отменяет весь пакет.
func (s *store) createPermissions(in []permission) ([]map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]bool, len(s.permissions)+len(in))
	for _, p := range s.permissions {
		seen[p.Name] = true
	}
	for _, p := range in {
		if seen[p.Name] {
			return nil, fmt.Errorf("право %s: %w", p.Name, errConflict)
		}
		seen[p.Name] = true
	}

	out := make([]map[string]any, 0, len(in))
	for _, p := range in {
		p.ID = s.newID()
		s.permissions[p.ID] = &p
		out = append(out, permissionView(p))
	}
	return out, nil
}

// deletePermission удаляет право и снимает его со всех ролей.
func (s *store) deletePermission(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.permissions[id]
	if !ok {
		return errNotFound
	}
	delete(s.permissions, id)
	for _, r := range s.roles {
		r.Permissions = slices.DeleteFunc(r.Permissions, func(name string) bool { return name == p.Name })
	}
	return nil
}

