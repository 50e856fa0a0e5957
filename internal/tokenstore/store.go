// Пакет tokenstore — постоянное хранилище сессии клиента консоли:
// токен доступа и необязательный снимок личности (identity, роли, права).
//
// Хранилище не возвращает ошибок: сбой бэкенда логируется, а чтение
// деградирует до «пусто». Формат токена не проверяется.
package tokenstore

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// Ключи записей в хранилище.
const (
	TokenKey    = "auth_token"
	SnapshotKey = "auth_user"
)

// Snapshot — предварительный снимок последнего успешного разрешения сессии.
// Не является признаком аутентификации: перезаписывается следующим
// успешным разрешением и удаляется в ClearAuth.
type Snapshot struct {
	Identity    json.RawMessage `json:"identity,omitempty"`
	Roles       []string        `json:"roles"`
	Permissions []string        `json:"permissions"`
	SavedAt     time.Time       `json:"saved_at"`
}

// Store — хранилище одного клиента.
type Store interface {
	GetToken(ctx context.Context) string
	SetToken(ctx context.Context, token string)
	RemoveToken(ctx context.Context)
	// ClearAuth удаляет токен и снимок.
	ClearAuth(ctx context.Context)
	GetSnapshot(ctx context.Context) *Snapshot
	SetSnapshot(ctx context.Context, snap *Snapshot)
}

// Backend — ключ-значение с пространствами имён (по одному на клиента).
type Backend interface {
	Get(ctx context.Context, namespace, key string) (string, bool, error)
	Set(ctx context.Context, namespace, key, value string) error
	Delete(ctx context.Context, namespace string, keys ...string) error
}

// Factory создаёт хранилище для пространства имён клиента.
type Factory func(namespace string) Store

// NewFactory возвращает фабрику хранилищ поверх общего бэкенда.
func NewFactory(backend Backend, logger *slog.Logger) Factory {
	return func(namespace string) Store {
		return New(backend, namespace, logger)
	}
}

// KVStore реализует Store поверх Backend.
type KVStore struct {
	backend   Backend
	namespace string
	logger    *slog.Logger
}

// New создаёт хранилище для одного пространства имён.
func New(backend Backend, namespace string, logger *slog.Logger) *KVStore {
	return &KVStore{
		backend:   backend,
		namespace: namespace,
		logger: logger.With(
			slog.String("component", "tokenstore"),
			slog.String("namespace", namespace),
		),
	}
}

// GetToken возвращает токен или пустую строку.
func (s *KVStore) GetToken(ctx context.Context) string {
	val, ok, err := s.backend.Get(ctx, s.namespace, TokenKey)
	if err != nil {
		s.logger.Warn("Ошибка чтения токена", slog.String("error", err.Error()))
		return ""
	}
	if !ok {
		return ""
	}
	return val
}

// SetToken сохраняет токен как есть.
func (s *KVStore) SetToken(ctx context.Context, token string) {
	if err := s.backend.Set(ctx, s.namespace, TokenKey, token); err != nil {
		s.logger.Warn("Ошибка записи токена", slog.String("error", err.Error()))
	}
}

// RemoveToken удаляет токен. Удаление отсутствующего токена не ошибка.
func (s *KVStore) RemoveToken(ctx context.Context) {
	if err := s.backend.Delete(ctx, s.namespace, TokenKey); err != nil {
		s.logger.Warn("Ошибка удаления токена", slog.String("error", err.Error()))
	}
}

// ClearAuth удаляет токен и снимок.
func (s *KVStore) ClearAuth(ctx context.Context) {
	if err := s.backend.Delete(ctx, s.namespace, TokenKey, SnapshotKey); err != nil {
		s.logger.Warn("Ошибка очистки сессии", slog.String("error", err.Error()))
	}
}

// GetSnapshot возвращает снимок или nil, если его нет или он повреждён.
func (s *KVStore) GetSnapshot(ctx context.Context) *Snapshot {
	val, ok, err := s.backend.Get(ctx, s.namespace, SnapshotKey)
	if err != nil {
		s.logger.Warn("Ошибка чтения снимка", slog.String("error", err.Error()))
		return nil
	}
	if !ok || val == "" {
		return nil
	}

	var snap Snapshot
	if err := json.Unmarshal([]byte(val), &snap); err != nil {
		s.logger.Warn("Повреждённый снимок сессии", slog.String("error", err.Error()))
		return nil
	}
	return &snap
}

// SetSnapshot сохраняет снимок. nil удаляет запись.
func (s *KVStore) SetSnapshot(ctx context.Context, snap *Snapshot) {
	if snap == nil {
		if err := s.backend.Delete(ctx, s.namespace, SnapshotKey); err != nil {
			s.logger.Warn("Ошибка удаления снимка", slog.String("error", err.Error()))
		}
		return
	}

	data, err := json.Marshal(snap)
	if err != nil {
		s.logger.Warn("Ошибка сериализации снимка", slog.String("error", err.Error()))
		return
	}
	if err := s.backend.Set(ctx, s.namespace, SnapshotKey, string(data)); err != nil {
		s.logger.Warn("Ошибка записи снимка", slog.String("error", err.Error()))
	}
}
