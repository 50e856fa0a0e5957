package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/bigkaa/goartstore/console-module/internal/contract"
	"github.com/bigkaa/goartstore/console-module/internal/gateway"
	"github.com/bigkaa/goartstore/console-module/internal/tokenstore"
)

// RPC-эндпоинты backend API.
const (
	LoginPath           = "/api/v1/rpc/login"
	IdentityPath        = "/api/v1/rpc/whoAmI"
	LogoutPath          = "/api/v1/rpc/logout"
	RolePermissionsPath = "/api/v1/roles/rpc/get_permissions"
)

// maxEnvelopeDepth — сколько уровней {data: ...} разворачивается в мягком режиме.
const maxEnvelopeDepth = 2

var (
	// ErrIdentityUnavailable — запрос whoAmI завершился неуспехом.
	ErrIdentityUnavailable = errors.New("не удалось получить данные пользователя")
	// ErrMalformedEnvelope — тело ответа не содержит ожидаемого объекта.
	ErrMalformedEnvelope = errors.New("неожиданная форма ответа")
	// ErrNoToken — ответ на вход не содержит токена доступа.
	ErrNoToken = errors.New("ответ на вход не содержит токена доступа")
)

// API — запросы, которые нужны Resolver. Реализуется gateway.Client.
type API interface {
	Get(ctx context.Context, path string, query url.Values) gateway.Outcome
	Post(ctx context.Context, path string, body any) gateway.Outcome
}

// Resolver разрешает сессию через backend API.
type Resolver struct {
	api    API
	store  tokenstore.Store
	strict *contract.Validator
	logger *slog.Logger
}

// ResolverOption настраивает Resolver.
type ResolverOption func(*Resolver)

// WithStrictEnvelopes включает строгую проверку конвертов по контракту.
// Вместо перебора вариантов вложенности ответ сверяется с объявленной
// формой, несоответствие логируется как ошибка и считается неуспехом.
func WithStrictEnvelopes(v *contract.Validator) ResolverOption {
	return func(r *Resolver) {
		r.strict = v
	}
}

// NewResolver создаёт Resolver.
func NewResolver(api API, store tokenstore.Store, logger *slog.Logger, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		api:    api,
		store:  store,
		logger: logger.With(slog.String("component", "session_resolver")),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"` //nolint:gosec // G117: учётные данные передаются в API
}

// Login выполняет вход и сохраняет токен. Исход запроса возвращается
// без изменений, запись сессии не заполняется: это делает следующее
// разрешение сессии.
func (r *Resolver) Login(ctx context.Context, email, password string) gateway.Outcome {
	out := r.api.Post(ctx, LoginPath, loginRequest{Email: email, Password: password})
	if !out.Success {
		r.logger.Info("Вход не выполнен", slog.String("error", out.Error))
		return out
	}

	token, err := r.extractToken(out.Data)
	if err != nil {
		r.logger.Error("Вход выполнен, но токен не получен", slog.String("error", err.Error()))
		if errors.Is(err, contract.ErrEnvelopeMismatch) {
			return gateway.Outcome{Status: out.Status, Error: err.Error()}
		}
		return out
	}

	r.store.SetToken(ctx, token)
	r.logger.Debug("Токен доступа сохранён")
	return out
}

// extractToken ищет access_token (или token) на верхнем уровне и под data.
func (r *Resolver) extractToken(body json.RawMessage) (string, error) {
	if r.strict != nil {
		if err := r.strict.Validate(contract.LoginEnvelope, body); err != nil {
			return "", err
		}
		var env struct {
			Data struct {
				AccessToken string `json:"access_token"` //nolint:gosec // G117: токен из ответа API
			} `json:"data"`
		}
		if err := json.Unmarshal(body, &env); err != nil {
			return "", fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
		}
		return env.Data.AccessToken, nil
	}

	root, ok := decodeObject(body)
	if !ok {
		return "", ErrNoToken
	}
	candidates := []map[string]any{root}
	if data, ok := root["data"].(map[string]any); ok {
		candidates = append(candidates, data)
	}
	for _, obj := range candidates {
		for _, key := range []string{"access_token", "token"} {
			if tok, ok := obj[key].(string); ok && tok != "" {
				return tok, nil
			}
		}
	}
	return "", ErrNoToken
}

// FetchIdentity запрашивает текущего пользователя.
func (r *Resolver) FetchIdentity(ctx context.Context) (*Identity, error) {
	out := r.api.Get(ctx, IdentityPath, nil)
	if !out.Success {
		return nil, fmt.Errorf("%w: %s", ErrIdentityUnavailable, out.Error)
	}

	if r.strict != nil {
		if err := r.strict.Validate(contract.IdentityEnvelope, out.Data); err != nil {
			r.logger.Error("Ответ whoAmI не соответствует контракту", slog.String("error", err.Error()))
			return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
		}
		root, _ := decodeObject(out.Data)
		obj, _ := root["data"].(map[string]any)
		return identityFromObject(obj), nil
	}

	root, ok := decodeObject(out.Data)
	if !ok {
		return nil, fmt.Errorf("%w: whoAmI вернул не JSON-объект", ErrMalformedEnvelope)
	}
	return identityFromObject(unwrapData(root)), nil
}

// FetchPermissionsForRole запрашивает права роли. Любой сбой
// логируется и даёт пустой набор.
func (r *Resolver) FetchPermissionsForRole(ctx context.Context, roleID string) []string {
	log := r.logger.With(slog.String("role_id", roleID))

	out := r.api.Get(ctx, RolePermissionsPath, url.Values{"id": {roleID}})
	if !out.Success {
		log.Warn("Не удалось получить права роли, используется пустой набор",
			slog.String("error", out.Error))
		return []string{}
	}

	if r.strict != nil {
		if err := r.strict.Validate(contract.PermissionsEnvelope, out.Data); err != nil {
			log.Error("Ответ get_permissions не соответствует контракту", slog.String("error", err.Error()))
			return []string{}
		}
	}

	root, ok := decodeObject(out.Data)
	if !ok {
		log.Warn("Пустой или некорректный ответ get_permissions, используется пустой набор")
		return []string{}
	}

	items, ok := findPermissions(root)
	if !ok {
		log.Warn("В ответе get_permissions нет списка прав, используется пустой набор")
		return []string{}
	}
	return permissionNames(items)
}

// ResolveSession строит запись сессии. Без токена сетевых запросов нет.
// Сбой получения identity очищает хранилище.
func (r *Resolver) ResolveSession(ctx context.Context) Record {
	if r.store.GetToken(ctx) == "" {
		return Record{State: StateUnauthenticated, Roles: []string{}, Permissions: []string{}}
	}

	identity, err := r.FetchIdentity(ctx)
	if err != nil {
		r.logger.Info("Сессия недействительна, локальное состояние очищено",
			slog.String("error", err.Error()))
		r.store.ClearAuth(ctx)
		return Record{State: StateUnauthenticated, Roles: []string{}, Permissions: []string{}}
	}

	roles := rolesOf(identity)
	permissions := []string{}
	if len(roles) > 0 && identity.RoleID != "" {
		permissions = r.FetchPermissionsForRole(ctx, identity.RoleID)
		// 401 на запросе прав очищает хранилище в шлюзе.
		if r.store.GetToken(ctx) == "" {
			r.logger.Info("Сессия завершена во время получения прав")
			return Record{State: StateUnauthenticated, Roles: []string{}, Permissions: []string{}}
		}
	}

	rec := Record{
		Identity:    identity,
		Roles:       roles,
		Permissions: permissions,
		State:       StateAuthenticated,
	}
	r.saveSnapshot(ctx, rec)
	return rec
}

// Logout — запрос на сервер (его исход не важен), затем очистка хранилища.
func (r *Resolver) Logout(ctx context.Context) {
	out := r.api.Post(ctx, LogoutPath, nil)
	if !out.Success {
		r.logger.Debug("Серверный выход не выполнен", slog.String("error", out.Error))
	}
	r.store.ClearAuth(ctx)
}

// Provisional — последний сохранённый снимок сессии. Используется только
// для отображения и никогда не считается признаком аутентификации.
type Provisional struct {
	Identity    *Identity
	Roles       []string
	Permissions []string
	SavedAt     time.Time
}

// Cached возвращает снимок из хранилища, если он есть.
func (r *Resolver) Cached(ctx context.Context) (*Provisional, bool) {
	snap := r.store.GetSnapshot(ctx)
	if snap == nil {
		return nil, false
	}
	p := &Provisional{Roles: snap.Roles, Permissions: snap.Permissions, SavedAt: snap.SavedAt}
	if obj, ok := decodeObject(snap.Identity); ok {
		p.Identity = identityFromObject(obj)
	}
	return p, true
}

func (r *Resolver) saveSnapshot(ctx context.Context, rec Record) {
	raw, err := json.Marshal(rec.Identity)
	if err != nil {
		r.logger.Warn("Не удалось сериализовать снимок identity", slog.String("error", err.Error()))
		return
	}
	r.store.SetSnapshot(ctx, &tokenstore.Snapshot{
		Identity:    raw,
		Roles:       rec.Roles,
		Permissions: rec.Permissions,
		SavedAt:     time.Now().UTC(),
	})
}

// --- Разбор конвертов ---

// decodeObject декодирует JSON-объект с сохранением чисел как json.Number.
func decodeObject(body []byte) (map[string]any, bool) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, false
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// unwrapData разворачивает до maxEnvelopeDepth уровней {data: {...}}.
func unwrapData(obj map[string]any) map[string]any {
	for range maxEnvelopeDepth {
		inner, ok := obj["data"].(map[string]any)
		if !ok {
			break
		}
		obj = inner
	}
	return obj
}

// findPermissions ищет массив permissions на верхнем уровне и
// до maxEnvelopeDepth уровней вложенности data. Массив в data тоже
// принимается как список прав.
func findPermissions(obj map[string]any) ([]any, bool) {
	for depth := 0; ; depth++ {
		if items, ok := obj["permissions"].([]any); ok {
			return items, true
		}
		if depth == maxEnvelopeDepth {
			return nil, false
		}
		switch data := obj["data"].(type) {
		case map[string]any:
			obj = data
		case []any:
			return data, true
		default:
			return nil, false
		}
	}
}

// permissionNames приводит элементы списка прав к именам:
// строка как есть, объект — по полю name.
func permissionNames(items []any) []string {
	names := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		var name string
		switch v := item.(type) {
		case string:
			name = v
		case map[string]any:
			name, _ = v["name"].(string)
		}
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}
