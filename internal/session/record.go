// Пакет session — разрешение и распространение состояния сессии клиента.
//
// Resolver превращает ответы backend API (вход, whoAmI, права роли)
// в нормализованную запись Record. Context хранит единственную запись
// клиента, управляет её жизненным циклом и рассылает изменения подписчикам.
package session

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/bigkaa/goartstore/console-module/internal/domain/rbac"
)

// State — состояние аутентификации.
type State string

const (
	StateUninitialized   State = "uninitialized"
	StateLoading         State = "loading"
	StateAuthenticated   State = "authenticated"
	StateUnauthenticated State = "unauthenticated"
)

// Settled сообщает, что разрешение сессии завершено.
func (s State) Settled() bool {
	return s == StateAuthenticated || s == StateUnauthenticated
}

// Identity — описание текущего пользователя. Поля, которые консоль
// использует напрямую, вынесены отдельно, полный объект — в Attributes.
type Identity struct {
	ID         string
	Name       string
	Email      string
	RoleID     string
	RoleName   string
	Attributes map[string]any
}

// MarshalJSON сериализует полный объект identity.
func (i *Identity) MarshalJSON() ([]byte, error) {
	return json.Marshal(i.Attributes)
}

// Record — нормализованная запись сессии.
type Record struct {
	Identity    *Identity
	Roles       []string
	Permissions []string
	State       State
}

// Authenticated сообщает, что сессия аутентифицирована.
func (r Record) Authenticated() bool {
	return r.State == StateAuthenticated
}

// Checker возвращает предикаты авторизации по ролям и правам записи.
func (r Record) Checker() *rbac.Checker {
	return rbac.NewChecker(r.Roles, r.Permissions)
}

// clone возвращает копию записи. Identity заменяется целиком при
// обновлении и не изменяется на месте, поэтому указатель разделяется.
func (r Record) clone() Record {
	return Record{
		Identity:    r.Identity,
		Roles:       slices.Clone(r.Roles),
		Permissions: slices.Clone(r.Permissions),
		State:       r.State,
	}
}

// rolesOf выделяет набор ролей из identity. Сейчас backend отдаёт
// одну роль в скалярном поле, отсюда набор из одного элемента.
func rolesOf(id *Identity) []string {
	if id == nil || id.RoleName == "" {
		return []string{}
	}
	return []string{id.RoleName}
}

// identityFromObject строит Identity из декодированного JSON-объекта.
func identityFromObject(obj map[string]any) *Identity {
	id := &Identity{
		ID:         scalarString(obj["id"]),
		Name:       scalarString(obj["name"]),
		Email:      scalarString(obj["email"]),
		RoleID:     scalarString(obj["role_id"]),
		RoleName:   scalarString(obj["role_name"]),
		Attributes: obj,
	}
	if id.RoleName == "" {
		if role, ok := obj["role"].(string); ok {
			id.RoleName = role
		}
	}
	return id
}

// scalarString приводит строку или число JSON к строке. Прочее — пустая строка.
func scalarString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return fmt.Sprintf("%g", val)
	case bool:
		return fmt.Sprintf("%t", val)
	default:
		return ""
	}
}
