package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/goartstore/console-module/internal/gateway"
	"github.com/bigkaa/goartstore/console-module/internal/guard"
	"github.com/bigkaa/goartstore/console-module/internal/service"
	"github.com/bigkaa/goartstore/console-module/internal/session"
	"github.com/bigkaa/goartstore/console-module/internal/tokenstore"
	"github.com/bigkaa/goartstore/console-module/internal/ui/clients"
	"github.com/bigkaa/goartstore/console-module/internal/ui/middleware"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testManifest(t *testing.T) *guard.Manifest {
	t.Helper()
	m, err := guard.LoadManifest("")
	if err != nil {
		t.Fatalf("LoadManifest() error: %v", err)
	}
	return m
}

// stubAuth разрешает сессию в rec. Успешный Login подменяет rec на afterLogin.
type stubAuth struct {
	mu         sync.Mutex
	rec        session.Record
	login      gateway.Outcome
	afterLogin session.Record
	loggedOut  bool
}

func (s *stubAuth) Login(context.Context, string, string) gateway.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.login.Success {
		s.rec = s.afterLogin
	}
	return s.login
}

func (s *stubAuth) Logout(context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loggedOut = true
}

func (s *stubAuth) ResolveSession(context.Context) session.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec
}

func authenticated(roles []string, perms ...string) session.Record {
	return session.Record{
		Identity:    &session.Identity{ID: "1", Name: "Анна", Email: "anna@example.com"},
		Roles:       roles,
		Permissions: perms,
		State:       session.StateAuthenticated,
	}
}

var anonymous = session.Record{State: session.StateUnauthenticated}

// fakeAPI отвечает по ключу "METHOD path" и записывает запросы.
type fakeAPI struct {
	mu        sync.Mutex
	calls     []string
	responses map[string]gateway.Outcome
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{responses: make(map[string]gateway.Outcome)}
}

func (f *fakeAPI) on(method, path string, status int, body string) {
	f.responses[method+" "+path] = gateway.Outcome{
		Success: status < 400,
		Status:  status,
		Data:    json.RawMessage(body),
		Error:   http.StatusText(status),
	}
}

func (f *fakeAPI) record(method, path string) gateway.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, method+" "+path)
	if out, ok := f.responses[method+" "+path]; ok {
		return out
	}
	return gateway.Outcome{Status: http.StatusNotFound, Error: "Not found"}
}

func (f *fakeAPI) called(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == key {
			return true
		}
	}
	return false
}

func (f *fakeAPI) Get(_ context.Context, path string, _ url.Values) gateway.Outcome {
	return f.record(http.MethodGet, path)
}

func (f *fakeAPI) Post(_ context.Context, path string, _ any) gateway.Outcome {
	return f.record(http.MethodPost, path)
}

func (f *fakeAPI) Put(_ context.Context, path string, _ any) gateway.Outcome {
	return f.record(http.MethodPut, path)
}

func (f *fakeAPI) Delete(_ context.Context, path string) gateway.Outcome {
	return f.record(http.MethodDelete, path)
}

// newEntry создаёт клиента с разрешённой сессией и сервисами поверх api.
func newEntry(t *testing.T, a *stubAuth, api *fakeAPI) *clients.Entry {
	t.Helper()
	logger := testLogger()
	sc := session.NewContext(a, logger)
	t.Cleanup(sc.Close)
	sc.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := sc.Await(ctx); err != nil {
		t.Fatalf("Await() error: %v", err)
	}

	if api == nil {
		api = newFakeAPI()
	}
	return &clients.Entry{
		ID:          "test-client",
		Context:     sc,
		Users:       service.NewUsersService(api, logger),
		Roles:       service.NewRolesService(api, logger),
		Departments: service.NewDepartmentsService(api, logger),
		Permissions: service.NewPermissionsService(api, logger),
	}
}

// serve выполняет обработчик с клиентом entry и параметром маршрута id.
func serve(h http.HandlerFunc, entry *clients.Entry, method, target string, form url.Values, id string) *httptest.ResponseRecorder {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	ctx := req.Context()
	if entry != nil {
		ctx = middleware.WithClient(ctx, entry)
	}
	if id != "" {
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("id", id)
		ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)
	}

	w := httptest.NewRecorder()
	h(w, req.WithContext(ctx))
	return w
}

// --- Вход и выход ---

func TestLogin(t *testing.T) {
	admin := authenticated([]string{"admin"}, "users.view")

	tests := []struct {
		name         string
		form         url.Values
		login        gateway.Outcome
		afterLogin   session.Record
		wantStatus   int
		wantLocation string
		wantBody     string
	}{
		{
			name:       "пустой пароль",
			form:       url.Values{"email": {"anna@example.com"}},
			wantStatus: http.StatusBadRequest,
			wantBody:   "Укажите email и пароль",
		},
		{
			name:       "неверные учётные данные",
			form:       url.Values{"email": {"anna@example.com"}, "password": {"bad"}},
			login:      gateway.Outcome{Status: http.StatusBadRequest, Error: "Неверный email или пароль"},
			wantStatus: http.StatusUnauthorized,
			wantBody:   "Неверный email или пароль",
		},
		{
			name:       "API недоступен",
			form:       url.Values{"email": {"anna@example.com"}, "password": {"secret"}},
			login:      gateway.Outcome{Error: "Ошибка сети"},
			wantStatus: http.StatusBadGateway,
			wantBody:   "Ошибка сети",
		},
		{
			name:       "вход без разрешения identity",
			form:       url.Values{"email": {"anna@example.com"}, "password": {"secret"}},
			login:      gateway.Outcome{Success: true, Status: http.StatusOK},
			afterLogin: anonymous,
			wantStatus: http.StatusBadGateway,
		},
		{
			name:         "успех с возвратом на исходную страницу",
			form:         url.Values{"email": {"anna@example.com"}, "password": {"secret"}, "from": {"/users?page=2"}},
			login:        gateway.Outcome{Success: true, Status: http.StatusOK},
			afterLogin:   admin,
			wantStatus:   http.StatusSeeOther,
			wantLocation: "/users?page=2",
		},
		{
			name:         "внешний from игнорируется",
			form:         url.Values{"email": {"anna@example.com"}, "password": {"secret"}, "from": {"//evil.example"}},
			login:        gateway.Outcome{Success: true, Status: http.StatusOK},
			afterLogin:   admin,
			wantStatus:   http.StatusSeeOther,
			wantLocation: guard.DefaultReturnPath,
		},
	}

	h := NewAuthHandler(testManifest(t), testLogger())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &stubAuth{rec: anonymous, login: tt.login, afterLogin: tt.afterLogin}
			entry := newEntry(t, a, nil)

			w := serve(h.Login, entry, http.MethodPost, "/login", tt.form, "")
			if w.Code != tt.wantStatus {
				t.Fatalf("статус = %d, want %d; тело: %s", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantLocation != "" {
				if loc := w.Header().Get("Location"); loc != tt.wantLocation {
					t.Errorf("Location = %q, want %q", loc, tt.wantLocation)
				}
			}
			if tt.wantBody != "" && !strings.Contains(w.Body.String(), tt.wantBody) {
				t.Errorf("тело не содержит %q", tt.wantBody)
			}
		})
	}
}

func TestLoginPage(t *testing.T) {
	h := NewAuthHandler(testManifest(t), testLogger())

	t.Run("анонимный видит форму", func(t *testing.T) {
		entry := newEntry(t, &stubAuth{rec: anonymous}, nil)
		w := serve(h.LoginPage, entry, http.MethodGet, "/login?from=%2Froles", nil, "")
		if w.Code != http.StatusOK {
			t.Fatalf("статус = %d", w.Code)
		}
		if !strings.Contains(w.Body.String(), `value="/roles"`) {
			t.Error("форма должна сохранять from")
		}
	})

	t.Run("аутентифицированный уходит по from", func(t *testing.T) {
		entry := newEntry(t, &stubAuth{rec: authenticated([]string{"admin"})}, nil)
		w := serve(h.LoginPage, entry, http.MethodGet, "/login?from=%2Froles", nil, "")
		if w.Code != http.StatusFound || w.Header().Get("Location") != "/roles" {
			t.Errorf("ответ = %d %q, ожидался 302 /roles", w.Code, w.Header().Get("Location"))
		}
	})
}

func TestLogout(t *testing.T) {
	a := &stubAuth{rec: authenticated([]string{"admin"})}
	entry := newEntry(t, a, nil)
	h := NewAuthHandler(testManifest(t), testLogger())

	w := serve(h.Logout, entry, http.MethodPost, "/logout", url.Values{}, "")
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != guard.LoginPath {
		t.Fatalf("ответ = %d %q", w.Code, w.Header().Get("Location"))
	}
	if !a.loggedOut {
		t.Error("Logout API не вызван")
	}
	if state := entry.Context.State(); state != session.StateUnauthenticated {
		t.Errorf("State() = %s после выхода", state)
	}
}

func TestLoading_Greeting(t *testing.T) {
	ctx := context.Background()
	store := tokenstore.New(tokenstore.NewMemoryBackend(), "c1", testLogger())
	store.SetSnapshot(ctx, &tokenstore.Snapshot{Identity: json.RawMessage(`{"id":1,"name":"Анна"}`)})
	gw := gateway.New("http://127.0.0.1:1", store)

	entry := newEntry(t, &stubAuth{rec: anonymous}, nil)
	entry.Resolver = session.NewResolver(gw, store, testLogger())

	h := NewAuthHandler(testManifest(t), testLogger())
	w := serve(h.Loading, entry, http.MethodGet, "/users", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("статус = %d", w.Code)
	}
	if w.Header().Get("Refresh") == "" {
		t.Error("нет заголовка Refresh")
	}
	if !strings.Contains(w.Body.String(), "С возвращением, Анна") {
		t.Errorf("нет приветствия из снимка: %s", w.Body.String())
	}
}

// --- Страницы ресурсов ---

func TestDepartmentsList_ManageActions(t *testing.T) {
	api := newFakeAPI()
	api.on(http.MethodGet, "/api/v1/departments", http.StatusOK,
		`{"data":[{"id":1,"name":"ИТ","code":"IT"},{"id":2,"name":"Склад","code":"WH","deleted_at":"2026-01-01"}],"total":2}`)
	h := NewDepartmentsHandler(testManifest(t), testLogger())

	tests := []struct {
		name       string
		perms      []string
		wantAction bool
	}{
		{"только просмотр", []string{"departments.view"}, false},
		{"с правом изменения", []string{"departments.view", "departments.manage"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := newEntry(t, &stubAuth{rec: authenticated([]string{"user"}, tt.perms...)}, api)
			w := serve(h.List, entry, http.MethodGet, "/departments", nil, "")
			if w.Code != http.StatusOK {
				t.Fatalf("статус = %d", w.Code)
			}
			body := w.Body.String()
			if !strings.Contains(body, "Склад") || !strings.Contains(body, "в корзине") {
				t.Error("список не содержит отдел в корзине")
			}
			if got := strings.Contains(body, "/departments/2/restore"); got != tt.wantAction {
				t.Errorf("кнопка восстановления: %v, want %v", got, tt.wantAction)
			}
		})
	}
}

func TestDepartmentsDelete_RequiresManage(t *testing.T) {
	h := NewDepartmentsHandler(testManifest(t), testLogger())

	t.Run("без права", func(t *testing.T) {
		api := newFakeAPI()
		entry := newEntry(t, &stubAuth{rec: authenticated([]string{"user"}, "departments.view")}, api)
		w := serve(h.Delete, entry, http.MethodPost, "/departments/7/delete", url.Values{}, "7")
		if w.Code != http.StatusSeeOther || w.Header().Get("Location") != guard.UnauthorizedPath {
			t.Errorf("ответ = %d %q", w.Code, w.Header().Get("Location"))
		}
		if api.called("DELETE /api/v1/departments/7") {
			t.Error("запрос к API не должен выполняться")
		}
	})

	t.Run("с правом", func(t *testing.T) {
		api := newFakeAPI()
		api.on(http.MethodDelete, "/api/v1/departments/7", http.StatusNoContent, "")
		entry := newEntry(t, &stubAuth{rec: authenticated([]string{"user"}, "departments.manage")}, api)
		w := serve(h.Delete, entry, http.MethodPost, "/departments/7/delete", url.Values{}, "7")
		if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/departments?deleted=1" {
			t.Errorf("ответ = %d %q", w.Code, w.Header().Get("Location"))
		}
		if !api.called("DELETE /api/v1/departments/7") {
			t.Error("DELETE не отправлен")
		}
	})
}

func TestFail_StatusMapping(t *testing.T) {
	h := NewDepartmentsHandler(testManifest(t), testLogger())
	rec := authenticated([]string{"user"}, "departments.view")

	tests := []struct {
		name         string
		status       int
		wantStatus   int
		wantLocation string
	}{
		{"401 ведёт на вход", http.StatusUnauthorized, http.StatusSeeOther, "/login?from=%2Fdepartments%3Fpage%3D2"},
		{"404", http.StatusNotFound, http.StatusNotFound, ""},
		{"500", http.StatusInternalServerError, http.StatusBadGateway, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeAPI()
			api.on(http.MethodGet, "/api/v1/departments", tt.status, `{"message":"ошибка"}`)
			entry := newEntry(t, &stubAuth{rec: rec}, api)

			w := serve(h.List, entry, http.MethodGet, "/departments?page=2", nil, "")
			if w.Code != tt.wantStatus {
				t.Fatalf("статус = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantLocation != "" && w.Header().Get("Location") != tt.wantLocation {
				t.Errorf("Location = %q, want %q", w.Header().Get("Location"), tt.wantLocation)
			}
		})
	}
}

func TestUsersCreate(t *testing.T) {
	h := NewUsersHandler(testManifest(t), testLogger())
	rec := authenticated([]string{"admin"}, "users.view", "users.create")

	t.Run("незаполненные поля", func(t *testing.T) {
		api := newFakeAPI()
		api.on(http.MethodGet, "/api/v1/roles", http.StatusOK, `{"data":[{"id":1,"name":"admin"}]}`)
		entry := newEntry(t, &stubAuth{rec: rec}, api)

		w := serve(h.Create, entry, http.MethodPost, "/users/new", url.Values{"name": {"Борис"}}, "")
		if w.Code != http.StatusUnprocessableEntity {
			t.Fatalf("статус = %d", w.Code)
		}
		body := w.Body.String()
		if !strings.Contains(body, "обязательное поле") || !strings.Contains(body, `value="Борис"`) {
			t.Error("форма должна показать ошибки и сохранить введённое имя")
		}
		if api.called("POST /api/v1/users") {
			t.Error("невалидная форма не должна отправляться")
		}
	})

	t.Run("успех", func(t *testing.T) {
		api := newFakeAPI()
		api.on(http.MethodPost, "/api/v1/users", http.StatusCreated, `{"data":{"id":5,"name":"Борис"}}`)
		entry := newEntry(t, &stubAuth{rec: rec}, api)

		form := url.Values{"name": {"Борис"}, "email": {"boris@example.com"}, "password": {"secret"}}
		w := serve(h.Create, entry, http.MethodPost, "/users/new", form, "")
		if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/users?created=1" {
			t.Errorf("ответ = %d %q", w.Code, w.Header().Get("Location"))
		}
	})
}

func TestPermissionsCreate_Bulk(t *testing.T) {
	api := newFakeAPI()
	api.on(http.MethodPost, "/api/v1/permissions/rpc/create", http.StatusOK, `{"data":[]}`)
	entry := newEntry(t, &stubAuth{rec: authenticated([]string{"admin"}, "permissions.view", "permissions.manage")}, api)
	h := NewPermissionsHandler(testManifest(t), testLogger())

	w := serve(h.Create, entry, http.MethodPost, "/permissions", url.Values{"names": {"reports.view\n\nreports.export\n"}}, "")
	if w.Code != http.StatusSeeOther {
		t.Fatalf("статус = %d; тело: %s", w.Code, w.Body.String())
	}
	if !api.called("POST /api/v1/permissions/rpc/create") {
		t.Error("несколько строк должны создаваться пакетно")
	}
}

func TestRoleDetail(t *testing.T) {
	api := newFakeAPI()
	api.on(http.MethodGet, "/api/v1/roles/3", http.StatusOK, `{"data":{"id":3,"name":"manager"}}`)
	api.on(http.MethodGet, "/api/v1/roles/rpc/get_permissions", http.StatusOK, `{"data":["users.view","legacy.flag"]}`)
	api.on(http.MethodGet, "/api/v1/permissions", http.StatusOK, `{"data":[{"id":1,"name":"users.view"},{"id":2,"name":"users.create"}]}`)
	entry := newEntry(t, &stubAuth{rec: authenticated([]string{"admin"})}, api)
	h := NewRolesHandler(testManifest(t), testLogger())

	w := serve(h.Detail, entry, http.MethodGet, "/roles/3", nil, "3")
	if w.Code != http.StatusOK {
		t.Fatalf("статус = %d; тело: %s", w.Code, w.Body.String())
	}
	body := w.Body.String()
	for _, want := range []string{"manager", "users.create", "legacy.flag"} {
		if !strings.Contains(body, want) {
			t.Errorf("страница роли не содержит %q", want)
		}
	}
}

// --- Главная ---

type fakeDeps struct {
	health map[string]bool
	deps   []string
}

func (f fakeDeps) Health() map[string]bool { return f.health }
func (f fakeDeps) Dependencies() []string  { return f.deps }

func TestDashboard_Dependencies(t *testing.T) {
	deps := fakeDeps{
		health: map[string]bool{"backend-api:api.local:443": true, "token-store:redis:6379": false},
		deps:   []string{"backend-api", "token-store", "unknown"},
	}
	entry := newEntry(t, &stubAuth{rec: authenticated([]string{"admin"})}, nil)
	h := NewDashboardHandler(testManifest(t), deps, testLogger())

	w := serve(h.Dashboard, entry, http.MethodGet, "/dashboard", nil, "")
	body := w.Body.String()
	for _, want := range []string{"Анна", "доступна", "недоступна", "нет данных"} {
		if !strings.Contains(body, want) {
			t.Errorf("главная не содержит %q", want)
		}
	}
}

func TestFindHealthByPrefix(t *testing.T) {
	health := map[string]bool{
		"api:a:80":  true,
		"api:b:80":  true,
		"store:r:1": true,
		"store:r:2": false,
		"apix:c:80": false,
	}
	tests := []struct {
		prefix      string
		wantHealthy bool
		wantFound   bool
	}{
		{"api", true, true},
		{"store", false, true},
		{"missing", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			healthy, found := findHealthByPrefix(health, tt.prefix)
			if healthy != tt.wantHealthy || found != tt.wantFound {
				t.Errorf("findHealthByPrefix(%q) = (%v, %v), want (%v, %v)",
					tt.prefix, healthy, found, tt.wantHealthy, tt.wantFound)
			}
		})
	}
}

func TestProfile_Attributes(t *testing.T) {
	rec := authenticated([]string{"admin"}, "users.view")
	rec.Identity.Attributes = map[string]any{"department": "ИТ", "tags": []any{"a", "b"}}
	entry := newEntry(t, &stubAuth{rec: rec}, nil)
	h := NewDashboardHandler(testManifest(t), nil, testLogger())

	w := serve(h.Profile, entry, http.MethodGet, "/profile", nil, "")
	body := w.Body.String()
	for _, want := range []string{"department", "ИТ", "[&#34;a&#34;,&#34;b&#34;]", "users.view"} {
		if !strings.Contains(body, want) {
			t.Errorf("профиль не содержит %q", want)
		}
	}
}
