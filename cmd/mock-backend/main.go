// Mock Backend — backend API для локальной разработки и тестов консоли.
// Реализует вход, whoAmI, выход и CRUD пользователей, ролей, отделов и прав
// в памяти процесса. Токены доступа — HS256 JWT.
package main

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/bigkaa/goartstore/console-module/internal/mockbackend"
)

// --- Конфигурация ---

// config хранит конфигурацию сервиса из env-переменных.
type config struct {
	Port          string        // MOCK_PORT — порт HTTP-сервера (default: 8000)
	Secret        string        // MOCK_JWT_SECRET — ключ подписи (пусто — случайный)
	TokenTTL      time.Duration // MOCK_TOKEN_TTL — срок действия токена (default: 1h)
	AdminEmail    string        // MOCK_ADMIN_EMAIL — email администратора
	AdminPassword string        // MOCK_ADMIN_PASSWORD — пароль администратора
}

// loadConfig загружает конфигурацию из переменных окружения.
func loadConfig() config {
	cfg := config{
		Port:          envOrDefault("MOCK_PORT", "8000"),
		Secret:        os.Getenv("MOCK_JWT_SECRET"),
		TokenTTL:      mockbackend.DefaultTokenTTL,
		AdminEmail:    envOrDefault("MOCK_ADMIN_EMAIL", mockbackend.DefaultAdminEmail),
		AdminPassword: envOrDefault("MOCK_ADMIN_PASSWORD", mockbackend.DefaultAdminPassword),
	}

	if v := os.Getenv("MOCK_TOKEN_TTL"); v != "" {
		if ttl, err := time.ParseDuration(v); err == nil && ttl > 0 {
			cfg.TokenTTL = ttl
		}
	}

	return cfg
}

// envOrDefault возвращает значение env-переменной или default.
func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func main() {
	cfg := loadConfig()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if cfg.Secret == "" {
		logger.Warn("MOCK_JWT_SECRET не задан, токены недействительны после рестарта")
	}

	handler := mockbackend.New(mockbackend.Options{
		Secret:        cfg.Secret,
		TokenTTL:      cfg.TokenTTL,
		AdminEmail:    cfg.AdminEmail,
		AdminPassword: cfg.AdminPassword,
	}, logger)

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Запуск Mock Backend",
		slog.String("addr", addr),
		slog.String("admin_email", cfg.AdminEmail),
		slog.String("token_ttl", cfg.TokenTTL.String()),
	)
	if err := srv.ListenAndServe(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
