// services.go — сервисы ресурсов консоли поверх шлюза API.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
)

// APIPrefix — префикс путей backend API.
const APIPrefix = "/api/v1"

var (
	usersResource       = resource{path: APIPrefix + "/users", fields: "id,name,email,role,status", searchField: "name"}
	rolesResource       = resource{path: APIPrefix + "/roles", fields: "id,name", searchField: "name"}
	departmentsResource = resource{path: APIPrefix + "/departments", fields: "id,name,code", searchField: "name,code"}
	permissionsPath     = APIPrefix + "/permissions"
)

func entityPath(base string, id ID) string {
	return base + "/" + url.PathEscape(id.String())
}

// create и update — общая часть запросов с телом: валидация, запрос, разбор сущности.
func create[T any](ctx context.Context, api API, path string, input any) (*T, error) {
	if err := Validate(input); err != nil {
		return nil, err
	}
	out := api.Post(ctx, path, input)
	if err := outcomeError(out); err != nil {
		return nil, err
	}
	return decodeEntity[T](out)
}

func update[T any](ctx context.Context, api API, path string, input any) (*T, error) {
	if err := Validate(input); err != nil {
		return nil, err
	}
	out := api.Put(ctx, path, input)
	if err := outcomeError(out); err != nil {
		return nil, err
	}
	return decodeEntity[T](out)
}

func get[T any](ctx context.Context, api API, path string) (*T, error) {
	out := api.Get(ctx, path, nil)
	if err := outcomeError(out); err != nil {
		return nil, err
	}
	v, err := decodeEntity[T](out)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	return v, nil
}

// --- Пользователи ---

// UsersService — пользователи.
type UsersService struct {
	api    API
	logger *slog.Logger
}

// NewUsersService создаёт UsersService.
func NewUsersService(api API, logger *slog.Logger) *UsersService {
	return &UsersService{api: api, logger: logger.With(slog.String("component", "users_service"))}
}

// List загружает страницу пользователей. Поиск — по имени.
func (s *UsersService) List(ctx context.Context, params ListParams) (Page[User], error) {
	return listResource[User](ctx, s.api, usersResource, params)
}

// Pager возвращает постраничный загрузчик пользователей.
func (s *UsersService) Pager(params ListParams) *Pager[User] {
	return NewPager(s.List, params)
}

// Create создаёт пользователя.
func (s *UsersService) Create(ctx context.Context, in UserInput) (*User, error) {
	u, err := create[User](ctx, s.api, usersResource.path, in)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Пользователь создан", slog.String("email", in.Email))
	return u, nil
}

// --- Роли ---

// RolesService — роли и их права.
type RolesService struct {
	api    API
	logger *slog.Logger
}

// NewRolesService создаёт RolesService.
func NewRolesService(api API, logger *slog.Logger) *RolesService {
	return &RolesService{api: api, logger: logger.With(slog.String("component", "roles_service"))}
}

// List загружает страницу ролей. Поиск — по имени.
func (s *RolesService) List(ctx context.Context, params ListParams) (Page[Role], error) {
	return listResource[Role](ctx, s.api, rolesResource, params)
}

// Pager возвращает постраничный загрузчик ролей.
func (s *RolesService) Pager(params ListParams) *Pager[Role] {
	return NewPager(s.List, params)
}

// Get загружает роль.
func (s *RolesService) Get(ctx context.Context, id ID) (*Role, error) {
	return get[Role](ctx, s.api, entityPath(rolesResource.path, id))
}

// Create создаёт роль.
func (s *RolesService) Create(ctx context.Context, in RoleInput) (*Role, error) {
	return create[Role](ctx, s.api, rolesResource.path, in)
}

// Update изменяет роль.
func (s *RolesService) Update(ctx context.Context, id ID, in RoleInput) (*Role, error) {
	return update[Role](ctx, s.api, entityPath(rolesResource.path, id), in)
}

// Permissions возвращает имена прав роли.
func (s *RolesService) Permissions(ctx context.Context, id ID) ([]string, error) {
	out := s.api.Get(ctx, rolesResource.path+"/rpc/get_permissions", url.Values{"id": {id.String()}})
	if err := outcomeError(out); err != nil {
		return nil, err
	}
	return permissionNames(out.Data)
}

type rolePermissionsRequest struct {
	ID          ID       `json:"id"`
	Permissions []string `json:"permissions"`
}

// SyncPermissions заменяет набор прав роли целиком.
func (s *RolesService) SyncPermissions(ctx context.Context, id ID, permissions []string) error {
	return s.permissionsRPC(ctx, "sync_permissions", id, permissions)
}

// AssignPermissions добавляет права к существующим.
func (s *RolesService) AssignPermissions(ctx context.Context, id ID, permissions []string) error {
	return s.permissionsRPC(ctx, "assign_permissions", id, permissions)
}

func (s *RolesService) permissionsRPC(ctx context.Context, method string, id ID, permissions []string) error {
	if id == "" {
		return &ValidationError{Fields: []string{"id"}}
	}
	if permissions == nil {
		permissions = []string{}
	}
	out := s.api.Post(ctx, rolesResource.path+"/rpc/"+method, rolePermissionsRequest{ID: id, Permissions: permissions})
	if err := outcomeError(out); err != nil {
		return err
	}
	s.logger.Info("Права роли обновлены",
		slog.String("method", method),
		slog.String("role_id", id.String()),
		slog.Int("count", len(permissions)),
	)
	return nil
}

// AllPermissions — полный справочник прав для формы роли.
func (s *RolesService) AllPermissions(ctx context.Context) ([]Permission, error) {
	return listAllPermissions(ctx, s.api)
}

// --- Отделы ---

// DepartmentsService — отделы с мягким удалением.
type DepartmentsService struct {
	api    API
	logger *slog.Logger
}

// NewDepartmentsService создаёт DepartmentsService.
func NewDepartmentsService(api API, logger *slog.Logger) *DepartmentsService {
	return &DepartmentsService{api: api, logger: logger.With(slog.String("component", "departments_service"))}
}

// List загружает страницу отделов. Поиск — по имени и коду.
func (s *DepartmentsService) List(ctx context.Context, params ListParams) (Page[Department], error) {
	return listResource[Department](ctx, s.api, departmentsResource, params)
}

// Pager возвращает постраничный загрузчик отделов.
func (s *DepartmentsService) Pager(params ListParams) *Pager[Department] {
	return NewPager(s.List, params)
}

// Get загружает отдел.
func (s *DepartmentsService) Get(ctx context.Context, id ID) (*Department, error) {
	return get[Department](ctx, s.api, entityPath(departmentsResource.path, id))
}

// Create создаёт отдел.
func (s *DepartmentsService) Create(ctx context.Context, in DepartmentInput) (*Department, error) {
	return create[Department](ctx, s.api, departmentsResource.path, in)
}

// Update изменяет отдел.
func (s *DepartmentsService) Update(ctx context.Context, id ID, in DepartmentInput) (*Department, error) {
	return update[Department](ctx, s.api, entityPath(departmentsResource.path, id), in)
}

// Delete перемещает отдел в корзину.
func (s *DepartmentsService) Delete(ctx context.Context, id ID) error {
	return outcomeError(s.api.Delete(ctx, entityPath(departmentsResource.path, id)))
}

// ForceDelete удаляет отдел безвозвратно.
func (s *DepartmentsService) ForceDelete(ctx context.Context, id ID) error {
	if err := outcomeError(s.api.Delete(ctx, entityPath(departmentsResource.path, id)+"/force")); err != nil {
		return err
	}
	s.logger.Info("Отдел удалён безвозвратно", slog.String("department_id", id.String()))
	return nil
}

// Restore восстанавливает отдел из корзины.
func (s *DepartmentsService) Restore(ctx context.Context, id ID) error {
	return outcomeError(s.api.Post(ctx, entityPath(departmentsResource.path, id)+"/restore", nil))
}

// --- Права ---

// PermissionsService — справочник прав.
type PermissionsService struct {
	api    API
	logger *slog.Logger
}

// NewPermissionsService создаёт PermissionsService.
func NewPermissionsService(api API, logger *slog.Logger) *PermissionsService {
	return &PermissionsService{api: api, logger: logger.With(slog.String("component", "permissions_service"))}
}

// List возвращает все права.
func (s *PermissionsService) List(ctx context.Context) ([]Permission, error) {
	return listAllPermissions(ctx, s.api)
}

// Create создаёт право.
func (s *PermissionsService) Create(ctx context.Context, in PermissionInput) (*Permission, error) {
	return create[Permission](ctx, s.api, permissionsPath, in)
}

type bulkPermissionsRequest struct {
	Permissions []PermissionInput `json:"permissions" validate:"required,min=1,dive"`
}

// CreateBulk создаёт несколько прав одним запросом.
func (s *PermissionsService) CreateBulk(ctx context.Context, in []PermissionInput) error {
	req := bulkPermissionsRequest{Permissions: in}
	if err := Validate(req); err != nil {
		return err
	}
	if err := outcomeError(s.api.Post(ctx, permissionsPath+"/rpc/create", req)); err != nil {
		return err
	}
	s.logger.Info("Права созданы", slog.Int("count", len(in)))
	return nil
}

// Delete удаляет право.
func (s *PermissionsService) Delete(ctx context.Context, id ID) error {
	return outcomeError(s.api.Delete(ctx, entityPath(permissionsPath, id)))
}

func listAllPermissions(ctx context.Context, api API) ([]Permission, error) {
	out := api.Get(ctx, permissionsPath, url.Values{"per_page": {strconv.Itoa(MaxPerPage)}})
	if err := outcomeError(out); err != nil {
		return nil, err
	}
	items, _, err := parseList[Permission](out.Data)
	if err != nil {
		return nil, fmt.Errorf("справочник прав: %w", err)
	}
	return items, nil
}

// permissionNames разбирает ответ get_permissions: массив permissions
// на верхнем уровне или под data, элементы — строки или объекты с name.
func permissionNames(body json.RawMessage) ([]string, error) {
	var env struct {
		Permissions []json.RawMessage `json:"permissions"`
		Data        json.RawMessage   `json:"data"`
	}
	for range 3 {
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
		}
		if env.Permissions != nil {
			return namesOf(env.Permissions), nil
		}
		if len(env.Data) == 0 {
			break
		}
		if env.Data[0] == '[' {
			var items []json.RawMessage
			if err := json.Unmarshal(env.Data, &items); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
			}
			return namesOf(items), nil
		}
		body = env.Data
		env.Data = nil
	}
	return []string{}, nil
}

func namesOf(items []json.RawMessage) []string {
	names := make([]string, 0, len(items))
	for _, raw := range items {
		var name string
		if json.Unmarshal(raw, &name) != nil {
			var obj struct {
				Name string `json:"name"`
			}
			if json.Unmarshal(raw, &obj) != nil {
				continue
			}
			name = obj.Name
		}
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}
