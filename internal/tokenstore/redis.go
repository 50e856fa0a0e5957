package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisTimeout = 5 * time.Second

// RedisConfig — параметры подключения к Redis.
type RedisConfig struct {
	Addr     string
	DB       int
	Password string
	Timeout  time.Duration
}

// ConnectRedis создаёт клиент Redis и проверяет доступность через PING.
func ConnectRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultRedisTimeout
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		DB:       cfg.DB,
		Password: cfg.Password,
	})

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// RedisBackend хранит записи в ключах <prefix>:<namespace>:<key>.
// Каждое чтение и запись продлевает TTL ключа (скользящее окно).
type RedisBackend struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisBackend создаёт бэкенд. ttl <= 0 — ключи без срока жизни.
func NewRedisBackend(client *redis.Client, prefix string, ttl time.Duration) *RedisBackend {
	return &RedisBackend{client: client, prefix: prefix, ttl: ttl}
}

func (b *RedisBackend) key(namespace, key string) string {
	return b.prefix + ":" + namespace + ":" + key
}

func (b *RedisBackend) Get(ctx context.Context, namespace, key string) (string, bool, error) {
	k := b.key(namespace, key)

	pipe := b.client.Pipeline()
	get := pipe.Get(ctx, k)
	if b.ttl > 0 {
		pipe.Expire(ctx, k, b.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return "", false, fmt.Errorf("redis get %s: %w", k, err)
	}

	val, err := get.Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", k, err)
	}
	return val, true, nil
}

func (b *RedisBackend) Set(ctx context.Context, namespace, key, value string) error {
	k := b.key(namespace, key)
	if err := b.client.Set(ctx, k, value, b.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", k, err)
	}
	return nil
}

func (b *RedisBackend) Delete(ctx context.Context, namespace string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = b.key(namespace, k)
	}
	if err := b.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// CheckReady проверяет доступность Redis для health endpoint.
func (b *RedisBackend) CheckReady() (status string, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := b.client.Ping(ctx).Err(); err != nil {
		return "fail", fmt.Sprintf("Redis недоступен: %v", err)
	}
	return "ok", "подключение активно"
}
