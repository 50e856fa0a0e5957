package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresBackend хранит записи в таблице client_storage
// (миграции — internal/database).
type PostgresBackend struct {
	pool *pgxpool.Pool
}

// NewPostgresBackend создаёт бэкенд поверх пула подключений.
func NewPostgresBackend(pool *pgxpool.Pool) *PostgresBackend {
	return &PostgresBackend{pool: pool}
}

func (b *PostgresBackend) Get(ctx context.Context, namespace, key string) (string, bool, error) {
	var value string
	err := b.pool.QueryRow(ctx,
		`SELECT value FROM client_storage WHERE namespace = $1 AND key = $2`,
		namespace, key,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("чтение client_storage: %w", err)
	}
	return value, true, nil
}

func (b *PostgresBackend) Set(ctx context.Context, namespace, key, value string) error {
	_, err := b.pool.Exec(ctx, `
		INSERT INTO client_storage (namespace, key, value, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (namespace, key)
		DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		namespace, key, value,
	)
	if err != nil {
		return fmt.Errorf("запись client_storage: %w", err)
	}
	return nil
}

func (b *PostgresBackend) Delete(ctx context.Context, namespace string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := b.pool.Exec(ctx,
		`DELETE FROM client_storage WHERE namespace = $1 AND key = ANY($2)`,
		namespace, keys,
	)
	if err != nil {
		return fmt.Errorf("удаление из client_storage: %w", err)
	}
	return nil
}

// Purge удаляет записи, не обновлявшиеся дольше ttl. Возвращает число удалённых строк.
func (b *PostgresBackend) Purge(ctx context.Context, ttl time.Duration) (int64, error) {
	tag, err := b.pool.Exec(ctx,
		`DELETE FROM client_storage WHERE updated_at < $1`,
		time.Now().Add(-ttl),
	)
	if err != nil {
		return 0, fmt.Errorf("очистка client_storage: %w", err)
	}
	return tag.RowsAffected(), nil
}

// RunJanitor периодически вызывает Purge до отмены ctx.
func (b *PostgresBackend) RunJanitor(ctx context.Context, interval, ttl time.Duration, logger *slog.Logger) {
	log := logger.With(slog.String("component", "storage_janitor"))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := b.Purge(ctx, ttl)
			if err != nil {
				log.Warn("Ошибка очистки устаревших записей", slog.String("error", err.Error()))
				continue
			}
			if n > 0 {
				log.Info("Удалены устаревшие записи клиентов", slog.Int64("rows", n))
			}
		}
	}
}
