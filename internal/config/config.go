// Пакет config — загрузка и валидация конфигурации Console Module
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Допустимые значения CM_STORE_BACKEND.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// DefaultAPIURL — адрес backend API по умолчанию.
const DefaultAPIURL = "http://127.0.0.1:8000"

// Config содержит все параметры конфигурации веб-консоли.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- Backend API ---

	// Базовый URL backend API (единственный origin)
	APIURL string
	// Путь health-проверки backend API для dephealth
	APIHealthPath string
	// Таймаут одного запроса к backend API
	RequestTimeout time.Duration
	// Строгая проверка конвертов ответов по OpenAPI-контракту
	StrictEnvelopes bool

	// --- Хранилище сессий ---

	// Бэкенд хранилища токенов: memory, redis, postgres
	StoreBackend string
	// Адрес Redis (host:port)
	RedisAddr string
	// Номер базы Redis
	RedisDB int
	// Пароль Redis (опционально)
	RedisPassword string
	// Префикс ключей в Redis
	RedisPrefix string

	// --- PostgreSQL (только для StoreBackend=postgres) ---

	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string

	// --- Клиенты консоли ---

	// Ключ шифрования cookie клиента
	SessionSecret string
	// Флаг Secure для cookie (выключать только для локальной разработки)
	SecureCookie bool
	// Время жизни клиента без активности (TTL записи в хранилище и реестре)
	ClientTTL time.Duration
	// Максимальное число одновременно удерживаемых контекстов сессий
	ClientCacheSize int
	// Сколько ждать завершения разрешения сессии перед показом страницы загрузки
	ResolveWait time.Duration
	// Путь к внешнему манифесту маршрутов (опционально)
	RoutesFile string
	// Интервал heartbeat в SSE-потоке сессии
	SSEInterval time.Duration

	// --- Мониторинг зависимостей ---

	// Группа сервиса в topologymetrics
	DephealthGroup string
	// Интервал проверки зависимостей topologymetrics
	DephealthCheckInterval time.Duration

	// --- Graceful shutdown ---

	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// CM_PORT — порт HTTP-сервера (по умолчанию 8080)
	cfg.Port, err = getEnvInt("CM_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("CM_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("CM_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	// CM_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("CM_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("CM_LOG_LEVEL: %w", err)
	}

	// CM_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("CM_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("CM_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- Backend API ---

	cfg.APIURL, err = parseBaseURL(getEnvDefault("CM_API_URL", DefaultAPIURL))
	if err != nil {
		return nil, fmt.Errorf("CM_API_URL: %w", err)
	}

	cfg.APIHealthPath = getEnvDefault("CM_API_HEALTH_PATH", "/")

	// CM_REQUEST_TIMEOUT — таймаут запроса к API (по умолчанию 10s)
	cfg.RequestTimeout, err = getEnvDuration("CM_REQUEST_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CM_REQUEST_TIMEOUT: %w", err)
	}
	if cfg.RequestTimeout <= 0 {
		return nil, fmt.Errorf("CM_REQUEST_TIMEOUT: таймаут должен быть положительным")
	}

	cfg.StrictEnvelopes, err = getEnvBool("CM_STRICT_ENVELOPES", false)
	if err != nil {
		return nil, fmt.Errorf("CM_STRICT_ENVELOPES: %w", err)
	}

	// --- Хранилище сессий ---

	cfg.StoreBackend = strings.ToLower(getEnvDefault("CM_STORE_BACKEND", StoreMemory))
	switch cfg.StoreBackend {
	case StoreMemory:
	case StoreRedis:
		cfg.RedisAddr, err = getEnvRequired("CM_REDIS_ADDR")
		if err != nil {
			return nil, err
		}
		cfg.RedisDB, err = getEnvInt("CM_REDIS_DB", 0)
		if err != nil {
			return nil, fmt.Errorf("CM_REDIS_DB: %w", err)
		}
		cfg.RedisPassword = getEnvDefault("CM_REDIS_PASSWORD", "")
	case StorePostgres:
		if err := cfg.loadDatabase(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("CM_STORE_BACKEND: недопустимое значение %q, допустимые: memory, redis, postgres", cfg.StoreBackend)
	}
	cfg.RedisPrefix = getEnvDefault("CM_REDIS_PREFIX", "console")

	// --- Клиенты консоли ---

	// CM_SESSION_SECRET — обязательный, ключ шифрования cookie
	cfg.SessionSecret, err = getEnvRequired("CM_SESSION_SECRET")
	if err != nil {
		return nil, err
	}

	cfg.SecureCookie, err = getEnvBool("CM_SECURE_COOKIE", true)
	if err != nil {
		return nil, fmt.Errorf("CM_SECURE_COOKIE: %w", err)
	}

	cfg.ClientTTL, err = getEnvDuration("CM_CLIENT_TTL", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("CM_CLIENT_TTL: %w", err)
	}

	cfg.ClientCacheSize, err = getEnvInt("CM_CLIENT_CACHE_SIZE", 10000)
	if err != nil {
		return nil, fmt.Errorf("CM_CLIENT_CACHE_SIZE: %w", err)
	}
	if cfg.ClientCacheSize < 1 {
		return nil, fmt.Errorf("CM_CLIENT_CACHE_SIZE: значение %d должно быть положительным", cfg.ClientCacheSize)
	}

	cfg.ResolveWait, err = getEnvDuration("CM_RESOLVE_WAIT", 2*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CM_RESOLVE_WAIT: %w", err)
	}

	cfg.RoutesFile = getEnvDefault("CM_ROUTES_FILE", "")

	cfg.SSEInterval, err = getEnvDuration("CM_SSE_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CM_SSE_INTERVAL: %w", err)
	}

	// --- Мониторинг зависимостей ---

	cfg.DephealthGroup = getEnvDefault("CM_DEPHEALTH_GROUP", "console")

	cfg.DephealthCheckInterval, err = getEnvDuration("CM_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CM_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// --- Graceful shutdown ---

	cfg.ShutdownTimeout, err = getEnvDuration("CM_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CM_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// loadDatabase читает параметры PostgreSQL. Вызывается только для бэкенда postgres.
func (c *Config) loadDatabase() error {
	var err error

	c.DBHost, err = getEnvRequired("CM_DB_HOST")
	if err != nil {
		return err
	}
	c.DBPort, err = getEnvInt("CM_DB_PORT", 5432)
	if err != nil {
		return fmt.Errorf("CM_DB_PORT: %w", err)
	}
	c.DBName, err = getEnvRequired("CM_DB_NAME")
	if err != nil {
		return err
	}
	c.DBUser, err = getEnvRequired("CM_DB_USER")
	if err != nil {
		return err
	}
	c.DBPassword, err = getEnvRequired("CM_DB_PASSWORD")
	if err != nil {
		return err
	}

	c.DBSSLMode = getEnvDefault("CM_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[c.DBSSLMode] {
		return fmt.Errorf("CM_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", c.DBSSLMode)
	}
	return nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL PostgreSQL без учётных данных (для меток topologymetrics).
func (c *Config) DatabaseURL() string {
	u := url.URL{
		Scheme: "postgres",
		Host:   c.DBHost + ":" + strconv.Itoa(c.DBPort),
		Path:   "/" + c.DBName,
	}
	return u.String()
}

// ClientConfig — параметры консольного клиента consolectl.
// Значения из окружения служат умолчаниями для флагов командной строки.
type ClientConfig struct {
	APIURL          string
	RequestTimeout  time.Duration
	CredentialsPath string
	LogLevel        slog.Level
}

// LoadClient загружает конфигурацию consolectl из переменных окружения.
func LoadClient() (*ClientConfig, error) {
	cfg := &ClientConfig{}
	var err error

	cfg.APIURL, err = parseBaseURL(getEnvDefault("CM_API_URL", DefaultAPIURL))
	if err != nil {
		return nil, fmt.Errorf("CM_API_URL: %w", err)
	}

	cfg.RequestTimeout, err = getEnvDuration("CM_REQUEST_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CM_REQUEST_TIMEOUT: %w", err)
	}

	cfg.LogLevel, err = parseLogLevel(getEnvDefault("CM_LOG_LEVEL", "warn"))
	if err != nil {
		return nil, fmt.Errorf("CM_LOG_LEVEL: %w", err)
	}

	cfg.CredentialsPath = getEnvDefault("CM_CREDENTIALS_FILE", "")
	if cfg.CredentialsPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("определение домашнего каталога: %w", err)
		}
		cfg.CredentialsPath = filepath.Join(home, ".console", "credentials.json")
	}

	return cfg, nil
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvBool возвращает булево значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q", val)
	}
	return b, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}

// ParseLogLevel — экспортируемая обёртка для флагов CLI.
func ParseLogLevel(level string) (slog.Level, error) {
	return parseLogLevel(level)
}

// parseBaseURL проверяет абсолютный http(s) URL и убирает завершающий слэш.
func parseBaseURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("некорректный URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("некорректная схема %q, допустимые: http, https", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("в URL %q не указан хост", raw)
	}
	return strings.TrimRight(raw, "/"), nil
}
