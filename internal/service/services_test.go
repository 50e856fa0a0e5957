package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/bigkaa/goartstore/console-module/internal/gateway"
)

func TestUsersService(t *testing.T) {
	api := newFakeAPI()
	api.on("GET", "/api/v1/users", ok(`{"data":[{"id":2,"name":"Jane","email":"jane@example.com","role":"user","status":"Active"}],"meta":{"total":11}}`))
	api.on("POST", "/api/v1/users", ok(`{"data":{"id":12,"name":"Bob","email":"bob@example.com"}}`))
	svc := NewUsersService(api, testLogger())
	ctx := context.Background()

	page, err := svc.List(ctx, ListParams{Page: 2, Search: "ja"})
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if page.Total != 11 || page.Page != 2 || page.PerPage != DefaultPerPage || len(page.Items) != 1 {
		t.Errorf("page = %+v", page)
	}
	if page.Items[0].ID != "2" || page.Items[0].Email != "jane@example.com" {
		t.Errorf("user = %+v", page.Items[0])
	}
	if q := api.last().query; q.Get("name") != "like.ja" || q.Get("page") != "2" {
		t.Errorf("query = %v", q)
	}

	t.Run("создание", func(t *testing.T) {
		u, err := svc.Create(ctx, UserInput{Name: "Bob", Email: "bob@example.com", Password: "pw", RoleID: "3"})
		if err != nil {
			t.Fatalf("Create() error: %v", err)
		}
		if u.ID != "12" || u.Name != "Bob" {
			t.Errorf("user = %+v", u)
		}
		var body map[string]any
		if err := json.Unmarshal(api.last().body, &body); err != nil {
			t.Fatal(err)
		}
		if body["role_id"] != float64(3) {
			t.Errorf("role_id в теле = %#v, ожидалось число 3", body["role_id"])
		}
	})

	t.Run("незаполненные поля не уходят на сервер", func(t *testing.T) {
		before := len(api.calls)
		_, err := svc.Create(ctx, UserInput{Name: "Bob"})
		var ve *ValidationError
		if !errors.As(err, &ve) || !errors.Is(err, ErrValidation) {
			t.Fatalf("ожидалась ValidationError, получено %v", err)
		}
		if len(ve.Fields) != 2 || ve.Fields[0] != "email" || ve.Fields[1] != "password" {
			t.Errorf("Fields = %v", ve.Fields)
		}
		if len(api.calls) != before {
			t.Error("запрос не должен отправляться")
		}
	})
}

func TestRolesService(t *testing.T) {
	api := newFakeAPI()
	api.on("GET", "/api/v1/roles/2", ok(`{"data":{"data":{"id":2,"name":"admin"}}}`))
	api.on("GET", "/api/v1/roles/rpc/get_permissions", ok(`{"data":{"permissions":[{"id":1,"name":"users.view"},"roles.view"]}}`))
	api.on("POST", "/api/v1/roles/rpc/sync_permissions", ok(`{"message":"synced"}`))
	api.on("POST", "/api/v1/roles/rpc/assign_permissions", ok(`{"message":"assigned"}`))
	api.on("PUT", "/api/v1/roles/2", ok(`{"data":{"id":2,"name":"root"}}`))
	api.on("GET", "/api/v1/permissions", ok(`{"data":[{"id":1,"name":"users.view"},{"id":2,"name":"roles.view"}]}`))
	svc := NewRolesService(api, testLogger())
	ctx := context.Background()

	role, err := svc.Get(ctx, "2")
	if err != nil || role.Name != "admin" {
		t.Fatalf("Get() = %+v, %v", role, err)
	}

	perms, err := svc.Permissions(ctx, "2")
	if err != nil {
		t.Fatalf("Permissions() error: %v", err)
	}
	if len(perms) != 2 || perms[0] != "users.view" || perms[1] != "roles.view" {
		t.Errorf("Permissions() = %v", perms)
	}
	if api.last().query.Get("id") != "2" {
		t.Errorf("id в query = %q", api.last().query.Get("id"))
	}

	for name, fn := range map[string]func(context.Context, ID, []string) error{
		"sync_permissions":   svc.SyncPermissions,
		"assign_permissions": svc.AssignPermissions,
	} {
		t.Run(name, func(t *testing.T) {
			if err := fn(ctx, "2", []string{"users.view"}); err != nil {
				t.Fatalf("error: %v", err)
			}
			got := api.last()
			if got.path != "/api/v1/roles/rpc/"+name {
				t.Errorf("path = %s", got.path)
			}
			if string(got.body) != `{"id":2,"permissions":["users.view"]}` {
				t.Errorf("body = %s", got.body)
			}
		})
	}

	t.Run("пустой набор прав отправляется массивом", func(t *testing.T) {
		if err := svc.SyncPermissions(ctx, "2", nil); err != nil {
			t.Fatal(err)
		}
		if string(api.last().body) != `{"id":2,"permissions":[]}` {
			t.Errorf("body = %s", api.last().body)
		}
	})

	t.Run("без id", func(t *testing.T) {
		if err := svc.AssignPermissions(ctx, "", []string{"x"}); !errors.Is(err, ErrValidation) {
			t.Errorf("ожидалась ErrValidation, получено %v", err)
		}
	})

	t.Run("изменение", func(t *testing.T) {
		r, err := svc.Update(ctx, "2", RoleInput{Name: "root"})
		if err != nil || r.Name != "root" {
			t.Errorf("Update() = %+v, %v", r, err)
		}
	})

	t.Run("справочник прав", func(t *testing.T) {
		all, err := svc.AllPermissions(ctx)
		if err != nil || len(all) != 2 {
			t.Fatalf("AllPermissions() = %v, %v", all, err)
		}
		if api.last().query.Get("per_page") != "1000" {
			t.Errorf("per_page = %q", api.last().query.Get("per_page"))
		}
	})
}

func TestDepartmentsService(t *testing.T) {
	api := newFakeAPI()
	api.on("DELETE", "/api/v1/departments/5", ok(`{}`))
	api.on("DELETE", "/api/v1/departments/5/force", ok(`{}`))
	api.on("POST", "/api/v1/departments/5/restore", ok(`{"data":{"id":5}}`))
	api.on("POST", "/api/v1/departments", gateway.Outcome{Status: http.StatusConflict, Error: "Department code already exists"})
	svc := NewDepartmentsService(api, testLogger())
	ctx := context.Background()

	steps := []struct {
		name   string
		run    func() error
		method string
		path   string
	}{
		{"в корзину", func() error { return svc.Delete(ctx, "5") }, "DELETE", "/api/v1/departments/5"},
		{"безвозвратно", func() error { return svc.ForceDelete(ctx, "5") }, "DELETE", "/api/v1/departments/5/force"},
		{"восстановление", func() error { return svc.Restore(ctx, "5") }, "POST", "/api/v1/departments/5/restore"},
	}
	for _, s := range steps {
		t.Run(s.name, func(t *testing.T) {
			if err := s.run(); err != nil {
				t.Fatalf("error: %v", err)
			}
			if got := api.last(); got.method != s.method || got.path != s.path {
				t.Errorf("запрос %s %s, want %s %s", got.method, got.path, s.method, s.path)
			}
		})
	}

	t.Run("ошибка бизнес-правила передаётся без изменений", func(t *testing.T) {
		_, err := svc.Create(ctx, DepartmentInput{Name: "IT", Code: "IT"})
		if !errors.Is(err, ErrConflict) {
			t.Errorf("ожидалась ErrConflict, получено %v", err)
		}
		if err == nil || err.Error() != "Department code already exists" {
			t.Errorf("сообщение = %v", err)
		}
	})

	t.Run("не найден", func(t *testing.T) {
		if _, err := svc.Get(ctx, "404"); !errors.Is(err, ErrNotFound) {
			t.Errorf("ожидалась ErrNotFound, получено %v", err)
		}
	})
}

func TestPermissionsService(t *testing.T) {
	api := newFakeAPI()
	api.on("POST", "/api/v1/permissions/rpc/create", ok(`{"message":"created"}`))
	api.on("DELETE", "/api/v1/permissions/9", ok(`{}`))
	api.on("GET", "/api/v1/permissions", gateway.Outcome{Status: http.StatusUnauthorized, Error: gateway.SessionExpiredMessage})
	svc := NewPermissionsService(api, testLogger())
	ctx := context.Background()

	if err := svc.CreateBulk(ctx, []PermissionInput{{Name: "a.view"}, {Name: "a.edit"}}); err != nil {
		t.Fatalf("CreateBulk() error: %v", err)
	}
	if string(api.last().body) != `{"permissions":[{"name":"a.view"},{"name":"a.edit"}]}` {
		t.Errorf("body = %s", api.last().body)
	}

	if err := svc.CreateBulk(ctx, nil); !errors.Is(err, ErrValidation) {
		t.Errorf("пустой список: ожидалась ErrValidation, получено %v", err)
	}
	if err := svc.CreateBulk(ctx, []PermissionInput{{Description: "x"}}); !errors.Is(err, ErrValidation) {
		t.Errorf("право без имени: ожидалась ErrValidation, получено %v", err)
	}

	if err := svc.Delete(ctx, "9"); err != nil {
		t.Errorf("Delete() error: %v", err)
	}

	_, err := svc.List(ctx)
	if !errors.Is(err, ErrSessionExpired) {
		t.Errorf("ожидалась ErrSessionExpired, получено %v", err)
	}
}

func TestPermissionNames(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []string
	}{
		{"верхний уровень", `{"permissions":["a","b"]}`, []string{"a", "b"}},
		{"под data", `{"data":{"permissions":[{"name":"a"}]}}`, []string{"a"}},
		{"массив в data", `{"data":[{"name":"a"},{"name":""},"b"]}`, []string{"a", "b"}},
		{"двойная вложенность", `{"data":{"data":{"permissions":["x"]}}}`, []string{"x"}},
		{"нет прав", `{"data":null}`, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := permissionNames([]byte(tt.body))
			if err != nil {
				t.Fatalf("error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestID_JSON(t *testing.T) {
	var v struct {
		A ID `json:"a"`
		B ID `json:"b"`
		C ID `json:"c"`
	}
	if err := json.Unmarshal([]byte(`{"a":42,"b":"7f3c","c":null}`), &v); err != nil {
		t.Fatal(err)
	}
	if v.A != "42" || v.B != "7f3c" || v.C != "" {
		t.Errorf("разбор = %+v", v)
	}

	out, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `{"a":42,"b":"7f3c","c":null}` {
		t.Errorf("сериализация = %s", out)
	}
}
