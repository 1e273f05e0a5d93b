// Пакет config — загрузка и валидация конфигурации mkt-uploader
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bigkaa/goartstore/mkt-uploader/internal/i18n"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации mkt-uploader.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера (диапазон 8040-8049)
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- HTTP Server Timeouts ---

	// Таймаут чтения HTTP-сервера (по умолчанию 30s)
	HTTPReadTimeout time.Duration
	// Таймаут записи HTTP-сервера (по умолчанию 0 — без ограничения, load job может быть долгим)
	HTTPWriteTimeout time.Duration
	// Таймаут простоя HTTP-сервера (по умолчанию 120s)
	HTTPIdleTimeout time.Duration

	// --- Graceful shutdown ---

	// Таймаут graceful shutdown (по умолчанию 5s)
	ShutdownTimeout time.Duration

	// --- Загрузка ---

	// Максимальный размер тела POST /upload в байтах (по умолчанию 32 MiB)
	MaxUploadSize int64
	// Каталог временных файлов; пусто — os.TempDir()
	StagingDir string

	// --- Наборы данных и схемы ---

	// Файл описаний наборов данных; пусто — встроенный
	DatasetsFile string
	// Каталог CSV-схем; пусто — встроенный
	SchemaDir string
	// TTL кэша схем (по умолчанию 1m)
	SchemaCacheTTL time.Duration
	// Размер кэша схем (по умолчанию 16); 0 — кэш выключен
	SchemaCacheSize int

	// --- Сессия и UI ---

	// Общий пароль (APP_LOGIN_PASSWORD или APP_PASSWORD); пусто — вход невозможен
	LoginPassword string
	// Флаг Secure для cookie сессии
	CookieSecure bool
	// Язык по умолчанию (ko, en)
	DefaultLang string

	// --- BigQuery ---

	// Ключ сервисного аккаунта: JSON или base64 (GOOGLE_APPLICATION_CREDENTIALS_JSON)
	ServiceAccountJSON string
	// Проекты из окружения в порядке приоритета:
	// BIGQUERY_PROJECT_ID, GOOGLE_CLOUD_PROJECT, GCP_PROJECT_ID
	FallbackProjects []string

	// --- Мониторинг зависимостей ---

	// Включить topologymetrics dephealth
	DephealthEnabled bool
	// Имя вершины графа текущего приложения
	ServiceID string
	// Имя группы в метриках
	DephealthGroup string
	// Интервал проверки (по умолчанию 30s)
	DephealthCheckInterval time.Duration
	// Базовый URL BigQuery API для проверки доступности
	BigQueryHealthURL string
	// Лейбл isentry=yes
	DephealthIsEntry bool
}

// Load загружает конфигурацию из переменных окружения.
// Возвращает ошибку, если значения некорректны.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// MU_PORT — порт HTTP-сервера (по умолчанию 8040)
	cfg.Port, err = getEnvInt("MU_PORT", 8040)
	if err != nil {
		return nil, fmt.Errorf("MU_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("MU_PORT: порт вне диапазона 1-65535: %d", cfg.Port)
	}

	// MU_LOG_LEVEL — уровень логирования (по умолчанию info)
	logLevel := getEnvDefault("MU_LOG_LEVEL", "info")
	cfg.LogLevel, err = parseLogLevel(logLevel)
	if err != nil {
		return nil, fmt.Errorf("MU_LOG_LEVEL: %w", err)
	}

	// MU_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("MU_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("MU_LOG_FORMAT: недопустимый формат %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- HTTP Server Timeouts ---

	cfg.HTTPReadTimeout, err = getEnvDuration("MU_HTTP_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("MU_HTTP_READ_TIMEOUT: %w", err)
	}

	cfg.HTTPWriteTimeout, err = getEnvDuration("MU_HTTP_WRITE_TIMEOUT", 0)
	if err != nil {
		return nil, fmt.Errorf("MU_HTTP_WRITE_TIMEOUT: %w", err)
	}

	cfg.HTTPIdleTimeout, err = getEnvDuration("MU_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("MU_HTTP_IDLE_TIMEOUT: %w", err)
	}

	// --- Graceful shutdown ---

	cfg.ShutdownTimeout, err = getEnvDuration("MU_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("MU_SHUTDOWN_TIMEOUT: %w", err)
	}

	// --- Загрузка ---

	// MU_MAX_UPLOAD_SIZE — лимит тела запроса в байтах (по умолчанию 32 MiB)
	maxUpload, err := getEnvInt("MU_MAX_UPLOAD_SIZE", 32<<20)
	if err != nil {
		return nil, fmt.Errorf("MU_MAX_UPLOAD_SIZE: %w", err)
	}
	if maxUpload <= 0 {
		return nil, fmt.Errorf("MU_MAX_UPLOAD_SIZE: значение должно быть > 0")
	}
	cfg.MaxUploadSize = int64(maxUpload)

	cfg.StagingDir = os.Getenv("MU_STAGING_DIR")

	// --- Наборы данных и схемы ---

	cfg.DatasetsFile = os.Getenv("MU_DATASETS_FILE")
	cfg.SchemaDir = os.Getenv("MU_SCHEMA_DIR")

	cfg.SchemaCacheTTL, err = getEnvDuration("MU_SCHEMA_CACHE_TTL", time.Minute)
	if err != nil {
		return nil, fmt.Errorf("MU_SCHEMA_CACHE_TTL: %w", err)
	}

	cfg.SchemaCacheSize, err = getEnvInt("MU_SCHEMA_CACHE_SIZE", 16)
	if err != nil {
		return nil, fmt.Errorf("MU_SCHEMA_CACHE_SIZE: %w", err)
	}
	if cfg.SchemaCacheSize < 0 {
		return nil, fmt.Errorf("MU_SCHEMA_CACHE_SIZE: значение должно быть >= 0")
	}

	// --- Сессия и UI ---

	// APP_LOGIN_PASSWORD, затем APP_PASSWORD. Пустой пароль допустим:
	// сервер стартует, но вход и загрузка отклоняются.
	cfg.LoginPassword = getEnvFirst("APP_LOGIN_PASSWORD", "APP_PASSWORD")

	cfg.CookieSecure, err = getEnvBool("MU_COOKIE_SECURE", false)
	if err != nil {
		return nil, fmt.Errorf("MU_COOKIE_SECURE: %w", err)
	}

	cfg.DefaultLang = strings.ToLower(getEnvDefault("MU_DEFAULT_LANG", "ko"))
	if !i18n.IsSupported(cfg.DefaultLang) {
		return nil, fmt.Errorf("MU_DEFAULT_LANG: недопустимый язык %q, допустимые: ko, en", cfg.DefaultLang)
	}

	// --- BigQuery ---

	cfg.ServiceAccountJSON = os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON")
	cfg.FallbackProjects = []string{
		os.Getenv("BIGQUERY_PROJECT_ID"),
		os.Getenv("GOOGLE_CLOUD_PROJECT"),
		os.Getenv("GCP_PROJECT_ID"),
	}

	// --- Мониторинг зависимостей ---

	cfg.DephealthEnabled, err = getEnvBool("MU_DEPHEALTH_ENABLED", false)
	if err != nil {
		return nil, fmt.Errorf("MU_DEPHEALTH_ENABLED: %w", err)
	}

	cfg.ServiceID = getEnvDefault("MU_SERVICE_ID", "mkt-uploader")
	cfg.DephealthGroup = getEnvDefault("MU_DEPHEALTH_GROUP", "mkt")

	cfg.DephealthCheckInterval, err = getEnvDurationPositive("MU_DEPHEALTH_CHECK_INTERVAL", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("MU_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	cfg.BigQueryHealthURL = getEnvDefault("MU_BIGQUERY_HEALTH_URL", "https://bigquery.googleapis.com")
	if !strings.HasPrefix(cfg.BigQueryHealthURL, "http://") && !strings.HasPrefix(cfg.BigQueryHealthURL, "https://") {
		return nil, fmt.Errorf("MU_BIGQUERY_HEALTH_URL: ожидается http:// или https:// URL, получено %q", cfg.BigQueryHealthURL)
	}

	cfg.DephealthIsEntry, err = getEnvBool("DEPHEALTH_ISENTRY", false)
	if err != nil {
		return nil, fmt.Errorf("DEPHEALTH_ISENTRY: %w", err)
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

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvFirst возвращает первое непустое значение из перечисленных переменных.
func getEnvFirst(keys ...string) string {
	for _, key := range keys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	return ""
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
	if d < 0 {
		return 0, fmt.Errorf("значение должно быть >= 0")
	}
	return d, nil
}

// getEnvDurationPositive — как getEnvDuration, но значение должно быть > 0.
func getEnvDurationPositive(key string, defaultVal time.Duration) (time.Duration, error) {
	d, err := getEnvDuration(key, defaultVal)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("значение должно быть > 0")
	}
	return d, nil
}

// getEnvBool возвращает булево значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q (допустимые: true, false, 1, 0)", val)
	}
	return b, nil
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
