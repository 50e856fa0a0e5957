// model.go — сущности консоли в том виде, в каком их отдаёт backend API.
package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ID — идентификатор сущности. API отдаёт его числом или строкой,
// при сериализации числовой идентификатор снова становится числом.
type ID string

// UnmarshalJSON принимает число, строку или null.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*id = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("идентификатор: %w", err)
		}
		*id = ID(s)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("идентификатор: %w", err)
		}
		*id = ID(n.String())
	}
	return nil
}

// MarshalJSON пишет целочисленный идентификатор числом, прочие — строкой.
func (id ID) MarshalJSON() ([]byte, error) {
	if id == "" {
		return []byte("null"), nil
	}
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id ID) String() string {
	return string(id)
}

// User — пользователь.
type User struct {
	ID     ID     `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   string `json:"role,omitempty"`
	Status string `json:"status,omitempty"`
}

// UserInput — данные для создания пользователя.
type UserInput struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"` //nolint:gosec // G117: пароль нового пользователя
	RoleID   ID     `json:"role_id,omitempty"`
	Status   string `json:"status,omitempty"`
}

// Role — роль.
type Role struct {
	ID          ID       `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// RoleInput — данные для создания и изменения роли.
type RoleInput struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description,omitempty"`
}

// Department — отдел.
type Department struct {
	ID          ID     `json:"id"`
	Name        string `json:"name"`
	Code        string `json:"code"`
	Description string `json:"description,omitempty"`
	DeletedAt   string `json:"deleted_at,omitempty"`
}

// DepartmentInput — данные для создания и изменения отдела.
type DepartmentInput struct {
	Name        string `json:"name" validate:"required"`
	Code        string `json:"code" validate:"required"`
	Description string `json:"description,omitempty"`
}

// Permission — право.
type Permission struct {
	ID          ID     `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// PermissionInput — данные для создания права.
type PermissionInput struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description,omitempty"`
}
