// Пакет rbac — предикаты авторизации над ролями и правами сессии.
//
// Чистые функции без побочных эффектов. Пустой набор требований:
// HasAny* возвращает false, HasAll* — true (пустая истинность).
// Nil-Checker ведёт себя как пустые наборы: предикаты можно вызывать
// во время загрузки сессии.
package rbac

// Checker проверяет требования к набору ролей и прав.
type Checker struct {
	roles       map[string]bool
	permissions map[string]bool
}

// NewChecker создаёт Checker. Повторы в списках не имеют значения.
func NewChecker(roles, permissions []string) *Checker {
	return &Checker{
		roles:       toSet(roles),
		permissions: toSet(permissions),
	}
}

// HasRole проверяет наличие роли.
func (c *Checker) HasRole(role string) bool {
	if c == nil {
		return false
	}
	return c.roles[role]
}

// HasPermission проверяет наличие права.
func (c *Checker) HasPermission(permission string) bool {
	if c == nil {
		return false
	}
	return c.permissions[permission]
}

// HasAnyRole — есть хотя бы одна из ролей. Для пустого списка false.
func (c *Checker) HasAnyRole(roles []string) bool {
	for _, r := range roles {
		if c.HasRole(r) {
			return true
		}
	}
	return false
}

// HasAllRoles — есть все роли. Для пустого списка true.
func (c *Checker) HasAllRoles(roles []string) bool {
	for _, r := range roles {
		if !c.HasRole(r) {
			return false
		}
	}
	return true
}

// HasAnyPermission — есть хотя бы одно из прав. Для пустого списка false.
func (c *Checker) HasAnyPermission(permissions []string) bool {
	for _, p := range permissions {
		if c.HasPermission(p) {
			return true
		}
	}
	return false
}

// HasAllPermissions — есть все права. Для пустого списка true.
func (c *Checker) HasAllPermissions(permissions []string) bool {
	for _, p := range permissions {
		if !c.HasPermission(p) {
			return false
		}
	}
	return true
}

// Requirement — требования маршрута или элемента интерфейса.
type Requirement struct {
	Roles       []string `yaml:"required_roles"`
	Permissions []string `yaml:"required_permissions"`
	// RequireAll — нужны все перечисленные роли/права, иначе достаточно одного.
	RequireAll bool `yaml:"require_all"`
}

// IsZero сообщает, что требований нет.
func (r Requirement) IsZero() bool {
	return len(r.Roles) == 0 && len(r.Permissions) == 0
}

// RolesSatisfied — проверка ролей. Пустой список означает «проверка пропущена»,
// а не вызов HasAllRoles/HasAnyRole с пустым списком.
func (c *Checker) RolesSatisfied(r Requirement) bool {
	if len(r.Roles) == 0 {
		return true
	}
	if r.RequireAll {
		return c.HasAllRoles(r.Roles)
	}
	return c.HasAnyRole(r.Roles)
}

// PermissionsSatisfied — проверка прав с той же семантикой пропуска.
func (c *Checker) PermissionsSatisfied(r Requirement) bool {
	if len(r.Permissions) == 0 {
		return true
	}
	if r.RequireAll {
		return c.HasAllPermissions(r.Permissions)
	}
	return c.HasAnyPermission(r.Permissions)
}

// Allows — обе проверки пройдены.
func (c *Checker) Allows(r Requirement) bool {
	return c.RolesSatisfied(r) && c.PermissionsSatisfied(r)
}

// toSet конвертирует срез строк в map для быстрого поиска.
func toSet(items []string) map[string]bool {
	s := make(map[string]bool, len(items))
	for _, item := range items {
		s[item] = true
	}
	return s
}
