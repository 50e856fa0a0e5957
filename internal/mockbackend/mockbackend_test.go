package mockbackend

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestServer(t *testing.T, opts Options) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(New(opts, testLogger()))
	t.Cleanup(srv.Close)
	return srv
}

// call выполняет запрос и декодирует JSON-ответ (если он есть).
func call(t *testing.T, srv *httptest.Server, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, srv.URL+path, reader)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var out map[string]any
	raw, _ := io.ReadAll(resp.Body)
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("%s %s: некорректный JSON %q", method, path, raw)
		}
	}
	return resp.StatusCode, out
}

func login(t *testing.T, srv *httptest.Server, email, password string) string {
	t.Helper()
	status, body := call(t, srv, http.MethodPost, "/api/v1/rpc/login", "", map[string]string{"email": email, "password": password})
	if status != http.StatusOK {
		t.Fatalf("login: статус %d, тело %v", status, body)
	}
	data, _ := body["data"].(map[string]any)
	token, _ := data["access_token"].(string)
	if token == "" {
		t.Fatalf("login: нет access_token в %v", body)
	}
	return token
}

func dataList(body map[string]any) []any {
	items, _ := body["data"].([]any)
	return items
}

func TestLogin(t *testing.T) {
	srv := newTestServer(t, Options{})

	tests := []struct {
		name       string
		body       any
		wantStatus int
	}{
		{"верные данные", map[string]string{"email": DefaultAdminEmail, "password": DefaultAdminPassword}, http.StatusOK},
		{"email без учёта регистра", map[string]string{"email": "ADMIN@example.com", "password": DefaultAdminPassword}, http.StatusOK},
		{"неверный пароль", map[string]string{"email": DefaultAdminEmail, "password": "wrong"}, http.StatusBadRequest},
		{"пустой пароль", map[string]string{"email": DefaultAdminEmail}, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := call(t, srv, http.MethodPost, "/api/v1/rpc/login", "", tt.body)
			if status != tt.wantStatus {
				t.Errorf("статус = %d, want %d (%v)", status, tt.wantStatus, body)
			}
			if status >= 400 && body["message"] == "" {
				t.Error("ошибка без message")
			}
		})
	}
}

func TestSessionLifecycle(t *testing.T) {
	srv := newTestServer(t, Options{})
	token := login(t, srv, DefaultAdminEmail, DefaultAdminPassword)

	status, body := call(t, srv, http.MethodGet, "/api/v1/rpc/whoAmI", token, nil)
	if status != http.StatusOK {
		t.Fatalf("whoAmI: статус %d", status)
	}
	identity, _ := body["data"].(map[string]any)
	if identity["role_name"] != "admin" || identity["email"] != DefaultAdminEmail {
		t.Fatalf("whoAmI = %v", identity)
	}

	roleID := identity["role_id"].(float64)
	status, body = call(t, srv, http.MethodGet, "/api/v1/roles/rpc/get_permissions?id="+jsonNumber(roleID), token, nil)
	if status != http.StatusOK {
		t.Fatalf("get_permissions: статус %d", status)
	}
	perms, _ := body["data"].(map[string]any)["permissions"].([]any)
	if len(perms) != len(adminPermissions) {
		t.Errorf("прав %d, want %d", len(perms), len(adminPermissions))
	}

	if status, _ := call(t, srv, http.MethodPost, "/api/v1/rpc/logout", token, nil); status != http.StatusOK {
		t.Fatalf("logout: статус %d", status)
	}
	// Токен отозван
	if status, _ := call(t, srv, http.MethodPost, "/api/v1/rpc/logout", token, nil); status != http.StatusUnauthorized {
		t.Errorf("повторный logout: статус %d, want 401", status)
	}
	if status, _ := call(t, srv, http.MethodGet, "/api/v1/rpc/whoAmI", token, nil); status != http.StatusUnauthorized {
		t.Errorf("whoAmI после выхода: статус %d, want 401", status)
	}
}

func TestAuthenticate_RejectsBadTokens(t *testing.T) {
	srv := newTestServer(t, Options{Secret: "secret-a"})
	other := newTestServer(t, Options{Secret: "secret-b"})
	foreign := login(t, other, DefaultAdminEmail, DefaultAdminPassword)

	expiring := newTestServer(t, Options{Secret: "secret-a", TokenTTL: time.Second})
	expired := login(t, expiring, DefaultAdminEmail, DefaultAdminPassword)
	time.Sleep(1100 * time.Millisecond)

	for name, token := range map[string]string{
		"без токена":    "",
		"мусор":         "not-a-jwt",
		"чужая подпись": foreign,
		"истёкший":      expired,
	} {
		t.Run(name, func(t *testing.T) {
			if status, _ := call(t, srv, http.MethodGet, "/api/v1/rpc/whoAmI", token, nil); status != http.StatusUnauthorized {
				t.Errorf("статус = %d, want 401", status)
			}
		})
	}
}

func TestListQuery(t *testing.T) {
	srv := newTestServer(t, Options{})
	token := login(t, srv, DefaultAdminEmail, DefaultAdminPassword)

	status, body := call(t, srv, http.MethodGet, "/api/v1/departments?select=id,name&page=1&per_page=1&sortby=id&order=desc", token, nil)
	if status != http.StatusOK {
		t.Fatalf("статус %d", status)
	}
	items := dataList(body)
	if len(items) != 1 || body["total"].(float64) != 2 {
		t.Fatalf("ответ = %v", body)
	}
	first := items[0].(map[string]any)
	if first["name"] != "Бухгалтерия" {
		t.Errorf("order=desc: первый %v", first["name"])
	}
	if _, ok := first["code"]; ok {
		t.Error("select должен отбрасывать code")
	}

	status, body = call(t, srv, http.MethodGet, "/api/v1/departments?name,code=like.it", token, nil)
	if status != http.StatusOK || len(dataList(body)) != 1 {
		t.Errorf("поиск по коду: %d %v", status, body)
	}

	status, body = call(t, srv, http.MethodGet, "/api/v1/users?page=5", token, nil)
	if status != http.StatusOK || len(dataList(body)) != 0 || body["total"].(float64) != 2 {
		t.Errorf("страница за пределами: %d %v", status, body)
	}
}

func TestUsersCRUD(t *testing.T) {
	srv := newTestServer(t, Options{})
	token := login(t, srv, DefaultAdminEmail, DefaultAdminPassword)

	status, body := call(t, srv, http.MethodPost, "/api/v1/users", token, map[string]any{
		"name": "Борис", "email": "boris@example.com", "password": "pw", "role_id": "8",
	})
	if status != http.StatusCreated {
		t.Fatalf("создание: %d %v", status, body)
	}
	created := body["data"].(map[string]any)
	if created["role"] != "manager" || created["status"] != "active" {
		t.Errorf("создан = %v", created)
	}

	if status, _ := call(t, srv, http.MethodPost, "/api/v1/users", token, map[string]any{
		"name": "Дубль", "email": "boris@example.com", "password": "pw",
	}); status != http.StatusConflict {
		t.Errorf("дубликат email: статус %d, want 409", status)
	}
	if status, _ := call(t, srv, http.MethodPost, "/api/v1/users", token, map[string]any{"name": "Без почты"}); status != http.StatusUnprocessableEntity {
		t.Errorf("без email: статус %d, want 422", status)
	}

	// Новый пользователь может войти
	login(t, srv, "boris@example.com", "pw")

	path := "/api/v1/users/" + jsonNumber(created["id"].(float64))
	if status, _ := call(t, srv, http.MethodDelete, path, token, nil); status != http.StatusNoContent {
		t.Errorf("удаление: статус %d", status)
	}
	if status, _ := call(t, srv, http.MethodGet, path, token, nil); status != http.StatusNotFound {
		t.Errorf("после удаления: статус %d, want 404", status)
	}
}

func TestDepartmentsTrash(t *testing.T) {
	srv := newTestServer(t, Options{})
	token := login(t, srv, DefaultAdminEmail, DefaultAdminPassword)

	_, body := call(t, srv, http.MethodPost, "/api/v1/departments", token, map[string]string{"name": "Склад", "code": "WH"})
	id := jsonNumber(body["data"].(map[string]any)["id"].(float64))
	path := "/api/v1/departments/" + id

	if status, _ := call(t, srv, http.MethodDelete, path, token, nil); status != http.StatusNoContent {
		t.Fatalf("в корзину: статус %d", status)
	}
	_, body = call(t, srv, http.MethodGet, path, token, nil)
	if body["data"].(map[string]any)["deleted_at"] == nil {
		t.Error("deleted_at не установлен")
	}

	if status, _ := call(t, srv, http.MethodPost, path+"/restore", token, nil); status != http.StatusNoContent {
		t.Fatalf("восстановление: статус %d", status)
	}
	_, body = call(t, srv, http.MethodGet, path, token, nil)
	if body["data"].(map[string]any)["deleted_at"] != nil {
		t.Error("deleted_at не сброшен")
	}

	if status, _ := call(t, srv, http.MethodDelete, path+"/force", token, nil); status != http.StatusNoContent {
		t.Fatalf("удаление навсегда: статус %d", status)
	}
	if status, _ := call(t, srv, http.MethodGet, path, token, nil); status != http.StatusNotFound {
		t.Errorf("после удаления: статус %d", status)
	}
}

func TestPermissions(t *testing.T) {
	srv := newTestServer(t, Options{})
	token := login(t, srv, DefaultAdminEmail, DefaultAdminPassword)

	status, _ := call(t, srv, http.MethodPost, "/api/v1/permissions/rpc/create", token, map[string]any{
		"permissions": []map[string]string{{"name": "reports.view"}, {"name": "users.view"}},
	})
	if status != http.StatusConflict {
		t.Fatalf("пакет с дубликатом: статус %d, want 409", status)
	}
	_, body := call(t, srv, http.MethodGet, "/api/v1/permissions?per_page=1000", token, nil)
	if n := len(dataList(body)); n != len(adminPermissions) {
		t.Fatalf("после отклонённого пакета прав %d, want %d", n, len(adminPermissions))
	}

	status, body = call(t, srv, http.MethodPost, "/api/v1/permissions/rpc/create", token, map[string]any{
		"permissions": []map[string]string{{"name": "reports.view"}, {"name": "reports.export"}},
	})
	if status != http.StatusCreated || len(dataList(body)) != 2 {
		t.Fatalf("пакетное создание: %d %v", status, body)
	}

	// sync заменяет набор прав роли manager (id 8)
	status, body = call(t, srv, http.MethodPost, "/api/v1/roles/rpc/sync_permissions", token, map[string]any{
		"id": 8, "permissions": []string{"reports.view"},
	})
	if status != http.StatusOK {
		t.Fatalf("sync_permissions: %d %v", status, body)
	}
	perms := body["data"].(map[string]any)["permissions"].([]any)
	if len(perms) != 1 || perms[0].(map[string]any)["name"] != "reports.view" {
		t.Errorf("права роли = %v", perms)
	}

	status, _ = call(t, srv, http.MethodPost, "/api/v1/roles/rpc/assign_permissions", token, map[string]any{
		"id": "8", "permissions": []string{"missing.permission"},
	})
	if status != http.StatusNotFound {
		t.Errorf("неизвестное право: статус %d, want 404", status)
	}
}

func jsonNumber(f float64) string {
	b, _ := json.Marshal(int64(f))
	return string(b)
}
