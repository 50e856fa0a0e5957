package mockbackend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Значения по умолчанию.
const (
	DefaultAdminEmail    = "admin@example.com"
	DefaultAdminPassword = "admin"
	DefaultTokenTTL      = time.Hour

	maxPerPage = 1000
)

// Options — параметры mock backend.
type Options struct {
	// Secret — ключ подписи HS256. Пустой — случайный на время жизни процесса.
	Secret string
	// TokenTTL — срок действия токена.
	TokenTTL time.Duration
	// AdminEmail, AdminPassword — учётные данные администратора.
	AdminEmail    string
	AdminPassword string //nolint:gosec // G117: учётные данные тестового администратора
}

// Server — mock backend API. Реализует http.Handler.
type Server struct {
	router   chi.Router
	store    *store
	tokens   *issuer
	validate *validator.Validate
	logger   *slog.Logger
}

type contextKey string

const contextKeyClaims contextKey = "claims"

// New создаёт mock backend с начальными данными.
func New(opts Options, logger *slog.Logger) *Server {
	if opts.Secret == "" {
		opts.Secret = uuid.NewString()
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = DefaultTokenTTL
	}
	if opts.AdminEmail == "" {
		opts.AdminEmail = DefaultAdminEmail
	}
	if opts.AdminPassword == "" {
		opts.AdminPassword = DefaultAdminPassword
	}

	s := &Server{
		store:    newStore(),
		tokens:   newIssuer(opts.Secret, opts.TokenTTL),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger.With(slog.String("component", "mock_backend")),
	}
	s.store.seed(opts.AdminEmail, opts.AdminPassword)
	s.router = s.routes()
	return s
}

// ServeHTTP реализует http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusNotFound, "Not found")
	})
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/rpc/login", s.login)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)

			r.Get("/rpc/whoAmI", s.whoAmI)
			r.Post("/rpc/logout", s.logout)

			r.Get("/users", s.listUsers)
			r.Post("/users", s.createUser)
			r.Get("/users/{id}", s.getUser)
			r.Put("/users/{id}", s.updateUser)
			r.Delete("/users/{id}", s.deleteUser)

			r.Get("/roles", s.listRoles)
			r.Post("/roles", s.createRole)
			r.Get("/roles/rpc/get_permissions", s.getRolePermissions)
			r.Post("/roles/rpc/sync_permissions", s.syncRolePermissions)
			r.Post("/roles/rpc/assign_permissions", s.assignRolePermissions)
			r.Get("/roles/{id}", s.getRole)
			r.Put("/roles/{id}", s.updateRole)
			r.Delete("/roles/{id}", s.deleteRole)

			r.Get("/departments", s.listDepartments)
			r.Post("/departments", s.createDepartment)
			r.Get("/departments/{id}", s.getDepartment)
			r.Put("/departments/{id}", s.updateDepartment)
			r.Delete("/departments/{id}", s.trashDepartment)
			r.Delete("/departments/{id}/force", s.forceDeleteDepartment)
			r.Post("/departments/{id}/restore", s.restoreDepartment)

			r.Get("/permissions", s.listPermissions)
			r.Post("/permissions", s.createPermission)
			r.Post("/permissions/rpc/create", s.createPermissions)
			r.Delete("/permissions/{id}", s.deletePermission)
		})
	})
	return r
}

// --- Аутентификация ---

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"` //nolint:gosec // G117: учётные данные входа
}

// login — POST /api/v1/rpc/login. Неверные учётные данные — 400.
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !s.decode(w, r, &req) {
		return
	}
	u, ok := s.store.authenticate(req.Email, req.Password)
	if !ok {
		s.logger.Info("Неудачный вход", slog.String("email", req.Email))
		writeMessage(w, http.StatusBadRequest, "Неверный email или пароль")
		return
	}
	token, err := s.tokens.issue(u)
	if err != nil {
		s.logger.Error("Ошибка выпуска токена", slog.String("error", err.Error()))
		writeMessage(w, http.StatusInternalServerError, "Внутренняя ошибка")
		return
	}
	s.logger.Info("Вход выполнен", slog.Int64("user_id", u.ID))
	writeData(w, http.StatusOK, map[string]any{
		"access_token": token,
		"token_type":   "Bearer",
		"expires_in":   int(s.tokens.ttl.Seconds()),
	})
}

// authenticate проверяет Bearer-токен. Любая ошибка — 401.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			writeMessage(w, http.StatusUnauthorized, "Unauthenticated.")
			return
		}
		claims, err := s.tokens.verify(raw)
		if err != nil {
			s.logger.Debug("Токен отклонён", slog.String("error", err.Error()))
			writeMessage(w, http.StatusUnauthorized, "Unauthenticated.")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKeyClaims, claims)))
	})
}

func claimsFrom(ctx context.Context) *tokenClaims {
	c, _ := ctx.Value(contextKeyClaims).(*tokenClaims)
	return c
}

// whoAmI — GET /api/v1/rpc/whoAmI.
func (s *Server) whoAmI(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(claimsFrom(r.Context()).Subject, 10, 64)
	view, err := s.store.getUser(id)
	if err != nil {
		writeMessage(w, http.StatusUnauthorized, "Unauthenticated.")
		return
	}
	view["role_name"] = view["role"]
	delete(view, "role")
	writeData(w, http.StatusOK, view)
}

// logout — POST /api/v1/rpc/logout. Токен отзывается; повторный выход — 401.
func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	s.tokens.revoke(claims)
	s.logger.Info("Выход выполнен", slog.String("user_id", claims.Subject))
	writeData(w, http.StatusOK, map[string]string{"message": "Выход выполнен"})
}

// --- Общие помощники ---

// decode читает JSON-тело и проверяет обязательные поля. При ошибке
// пишет ответ и возвращает false.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeMessage(w, http.StatusBadRequest, "Некорректный JSON: "+err.Error())
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		var ve validator.ValidationErrors
		if !errors.As(err, &ve) {
			writeMessage(w, http.StatusUnprocessableEntity, err.Error())
			return false
		}
		fields := make(map[string][]string, len(ve))
		names := make([]string, 0, len(ve))
		for _, fe := range ve {
			name := strings.ToLower(fe.Field())
			fields[name] = append(fields[name], fe.Tag())
			names = append(names, name)
		}
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"message": "Не заполнены поля: " + strings.Join(names, ", "),
			"errors":  fields,
		})
		return false
	}
	return true
}

// pathID разбирает {id} маршрута. Некорректный id — 404.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeMessage(w, http.StatusNotFound, "Запись не найдена")
		return 0, false
	}
	return id, true
}

// writeStoreError переводит ошибку хранилища в HTTP-ответ.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errNotFound):
		writeMessage(w, http.StatusNotFound, err.Error())
	case errors.Is(err, errConflict):
		writeMessage(w, http.StatusConflict, err.Error())
	default:
		writeMessage(w, http.StatusInternalServerError, err.Error())
	}
}

// writeList фильтрует, сортирует, разбивает на страницы и проецирует список:
// поле=like.текст (поля через запятую), sortby, order, page, per_page, select.
func writeList(w http.ResponseWriter, r *http.Request, items []map[string]any) {
	q := r.URL.Query()

	for key, values := range q {
		for _, v := range values {
			needle, ok := strings.CutPrefix(v, "like.")
			if !ok {
				continue
			}
			needle = strings.ToLower(strings.Trim(needle, "*%"))
			fields := strings.Split(key, ",")
			items = filterItems(items, func(item map[string]any) bool {
				for _, f := range fields {
					if strings.Contains(strings.ToLower(fmt.Sprint(item[f])), needle) {
						return true
					}
				}
				return false
			})
		}
	}

	sortBy := q.Get("sortby")
	if sortBy == "" {
		sortBy = "id"
	}
	desc := q.Get("order") == "desc"
	sort.SliceStable(items, func(i, j int) bool {
		if desc {
			return lessValue(items[j][sortBy], items[i][sortBy])
		}
		return lessValue(items[i][sortBy], items[j][sortBy])
	})

	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	if perPage < 1 {
		perPage = 10
	}
	perPage = min(perPage, maxPerPage)

	total := len(items)
	start := min((page-1)*perPage, total)
	end := min(start+perPage, total)
	items = items[start:end]

	if sel := q.Get("select"); sel != "" {
		fields := strings.Split(sel, ",")
		projected := make([]map[string]any, 0, len(items))
		for _, item := range items {
			p := make(map[string]any, len(fields))
			for _, f := range fields {
				if v, ok := item[f]; ok {
					p[f] = v
				}
			}
			projected = append(projected, p)
		}
		items = projected
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":     items,
		"total":    total,
		"page":     page,
		"per_page": perPage,
	})
}

func filterItems(items []map[string]any, keep func(map[string]any) bool) []map[string]any {
	out := items[:0:0]
	for _, item := range items {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}

func lessValue(a, b any) bool {
	ai, aok := a.(int64)
	bi, bok := b.(int64)
	if aok && bok {
		return ai < bi
	}
	return fmt.Sprint(a) < fmt.Sprint(b)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, map[string]any{"data": data})
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
