// Пакет config — загрузка и валидация конфигурации Community Module
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Драйверы хранилища.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Режимы аутентификации.
const (
	AuthModeJWT    = "jwt"
	AuthModeHeader = "header"
)

// Драйверы публикации доменных событий.
const (
	EventsDriverLog   = "log"
	EventsDriverKafka = "kafka"
	EventsDriverRedis = "redis"
)

// Config содержит все параметры конфигурации Community Module.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Таймаут чтения запроса
	ReadTimeout time.Duration
	// Таймаут записи ответа
	WriteTimeout time.Duration

	// --- Хранилище ---

	// Драйвер хранилища: postgres или memory
	StoreDriver string
	// Максимальное число попыток транзакции при конфликте
	TxMaxAttempts int
	// Базовая задержка между попытками
	TxBaseDelay time.Duration

	// --- PostgreSQL (только для StoreDriver=postgres) ---

	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string

	// --- Аутентификация ---

	// Режим: jwt (JWKS от Identity Provider) или header (X-User-ID, локальная разработка)
	AuthMode string
	// Issuer JWT
	JWTIssuer string
	// URL JWKS endpoint
	JWTJWKSURL string
	// Допустимое расхождение часов при проверке exp/nbf
	JWTLeeway time.Duration
	// Роли и группы, дающие право администратора (через запятую)
	AdminRoles []string

	// --- Экономика ---

	// Количество загрузок на один бонус
	FilesPerBonus int
	// Токены за один бонус загрузок
	TokensPerBonus int64
	// Токены владельцу за одно скачивание
	TokensPerDownload int64
	// Стартовый баланс нового пользователя
	StartingBalance int64
	// Порог предупреждений, после которого нужна эскалация
	AbuseEscalationThreshold int
	// Путь к YAML прайс-листу (пусто — встроенный прайс-лист)
	PriceTablePath string

	// --- Кэш репутации ---

	CacheSize int
	CacheTTL  time.Duration

	// --- Доменные события ---

	// Драйвер: log, kafka, redis
	EventsDriver string
	// Брокеры Kafka
	KafkaBrokers []string
	// Топик Kafka
	KafkaTopic string
	// URL Redis (redis://... или host:port)
	RedisURL string
	// Имя Redis Stream
	RedisStream string

	// --- Наблюдаемость ---

	// Интервал проверки зависимостей topologymetrics
	DephealthCheckInterval time.Duration
	// Группа сервиса для dephealth
	DephealthGroup string

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

	// CM_PORT — порт HTTP-сервера (по умолчанию 8040)
	cfg.Port, err = getEnvInt("CM_PORT", 8040)
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

	cfg.ReadTimeout, err = getEnvDuration("CM_READ_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CM_READ_TIMEOUT: %w", err)
	}
	cfg.WriteTimeout, err = getEnvDuration("CM_WRITE_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CM_WRITE_TIMEOUT: %w", err)
	}

	// --- Хранилище ---

	// CM_STORE_DRIVER — postgres (по умолчанию) или memory
	cfg.StoreDriver = getEnvDefault("CM_STORE_DRIVER", StoreDriverPostgres)
	if cfg.StoreDriver != StoreDriverPostgres && cfg.StoreDriver != StoreDriverMemory {
		return nil, fmt.Errorf("CM_STORE_DRIVER: недопустимое значение %q, допустимые: postgres, memory", cfg.StoreDriver)
	}

	// CM_TX_MAX_ATTEMPTS — число попыток транзакции (по умолчанию 5)
	cfg.TxMaxAttempts, err = getEnvInt("CM_TX_MAX_ATTEMPTS", 5)
	if err != nil {
		return nil, fmt.Errorf("CM_TX_MAX_ATTEMPTS: %w", err)
	}
	if cfg.TxMaxAttempts < 1 || cfg.TxMaxAttempts > 100 {
		return nil, fmt.Errorf("CM_TX_MAX_ATTEMPTS: значение %d вне допустимого диапазона 1-100", cfg.TxMaxAttempts)
	}

	cfg.TxBaseDelay, err = getEnvDuration("CM_TX_BASE_DELAY", 5*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("CM_TX_BASE_DELAY: %w", err)
	}

	// --- PostgreSQL ---

	if cfg.StoreDriver == StoreDriverPostgres {
		if err := loadDatabase(cfg); err != nil {
			return nil, err
		}
	}

	// --- Аутентификация ---

	// CM_AUTH_MODE — jwt (по умолчанию) или header
	cfg.AuthMode = getEnvDefault("CM_AUTH_MODE", AuthModeJWT)
	switch cfg.AuthMode {
	case AuthModeJWT:
		cfg.JWTJWKSURL, err = getEnvRequired("CM_JWT_JWKS_URL")
		if err != nil {
			return nil, err
		}
		if _, err := url.ParseRequestURI(cfg.JWTJWKSURL); err != nil {
			return nil, fmt.Errorf("CM_JWT_JWKS_URL: некорректный URL %q", cfg.JWTJWKSURL)
		}
		cfg.JWTIssuer = getEnvDefault("CM_JWT_ISSUER", "")
	case AuthModeHeader:
	default:
		return nil, fmt.Errorf("CM_AUTH_MODE: недопустимое значение %q, допустимые: jwt, header", cfg.AuthMode)
	}

	cfg.JWTLeeway, err = getEnvDuration("CM_JWT_LEEWAY", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CM_JWT_LEEWAY: %w", err)
	}

	// CM_ADMIN_ROLES — роли/группы администратора (по умолчанию community-admins)
	cfg.AdminRoles = parseCSV(getEnvDefault("CM_ADMIN_ROLES", "community-admins"))

	// --- Экономика ---

	if err := loadEconomy(cfg); err != nil {
		return nil, err
	}

	// --- Кэш репутации ---

	cfg.CacheSize, err = getEnvInt("CM_CACHE_SIZE", 10000)
	if err != nil {
		return nil, fmt.Errorf("CM_CACHE_SIZE: %w", err)
	}
	if cfg.CacheSize < 1 {
		return nil, fmt.Errorf("CM_CACHE_SIZE: значение %d должно быть положительным", cfg.CacheSize)
	}
	cfg.CacheTTL, err = getEnvDuration("CM_CACHE_TTL", time.Minute)
	if err != nil {
		return nil, fmt.Errorf("CM_CACHE_TTL: %w", err)
	}

	// --- Доменные события ---

	cfg.EventsDriver = getEnvDefault("CM_EVENTS_DRIVER", EventsDriverLog)
	switch cfg.EventsDriver {
	case EventsDriverLog:
	case EventsDriverKafka:
		cfg.KafkaBrokers = parseCSV(os.Getenv("CM_KAFKA_BROKERS"))
		if len(cfg.KafkaBrokers) == 0 {
			return nil, fmt.Errorf("CM_KAFKA_BROKERS: обязательная переменная окружения не задана")
		}
	case EventsDriverRedis:
		cfg.RedisURL, err = getEnvRequired("CM_REDIS_URL")
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("CM_EVENTS_DRIVER: недопустимое значение %q, допустимые: log, kafka, redis", cfg.EventsDriver)
	}
	cfg.KafkaTopic = getEnvDefault("CM_KAFKA_TOPIC", "community.economy")
	cfg.RedisStream = getEnvDefault("CM_REDIS_STREAM", "community:economy")

	// --- Наблюдаемость ---

	cfg.DephealthCheckInterval, err = getEnvDuration("CM_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CM_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}
	cfg.DephealthGroup = getEnvDefault("CM_DEPHEALTH_GROUP", "community")

	// --- Graceful shutdown ---

	// CM_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("CM_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CM_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// LoadDatabase загружает только параметры PostgreSQL.
// Используется утилитой community-ctl, которой не нужна остальная конфигурация.
func LoadDatabase() (*Config, error) {
	cfg := &Config{StoreDriver: StoreDriverPostgres}
	if err := loadDatabase(cfg); err != nil {
		return nil, err
	}
	var err error
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("CM_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("CM_LOG_LEVEL: %w", err)
	}
	cfg.LogFormat = getEnvDefault("CM_LOG_FORMAT", "text")
	cfg.TxMaxAttempts, err = getEnvInt("CM_TX_MAX_ATTEMPTS", 5)
	if err != nil {
		return nil, fmt.Errorf("CM_TX_MAX_ATTEMPTS: %w", err)
	}
	cfg.TxBaseDelay = 5 * time.Millisecond
	if err := loadEconomy(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadDatabase(cfg *Config) error {
	var err error

	// CM_DB_HOST — обязательный
	cfg.DBHost, err = getEnvRequired("CM_DB_HOST")
	if err != nil {
		return err
	}

	// CM_DB_PORT — порт PostgreSQL (по умолчанию 5432)
	cfg.DBPort, err = getEnvInt("CM_DB_PORT", 5432)
	if err != nil {
		return fmt.Errorf("CM_DB_PORT: %w", err)
	}

	cfg.DBName, err = getEnvRequired("CM_DB_NAME")
	if err != nil {
		return err
	}
	cfg.DBUser, err = getEnvRequired("CM_DB_USER")
	if err != nil {
		return err
	}
	cfg.DBPassword, err = getEnvRequired("CM_DB_PASSWORD")
	if err != nil {
		return err
	}

	// CM_DB_SSL_MODE — режим SSL (по умолчанию disable)
	cfg.DBSSLMode = getEnvDefault("CM_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return fmt.Errorf("CM_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}
	return nil
}

func loadEconomy(cfg *Config) error {
	var err error

	// CM_FILES_PER_BONUS — загрузок на один бонус (по умолчанию 5)
	cfg.FilesPerBonus, err = getEnvInt("CM_FILES_PER_BONUS", 5)
	if err != nil {
		return fmt.Errorf("CM_FILES_PER_BONUS: %w", err)
	}
	if cfg.FilesPerBonus < 1 {
		return fmt.Errorf("CM_FILES_PER_BONUS: значение %d должно быть положительным", cfg.FilesPerBonus)
	}

	cfg.TokensPerBonus, err = getEnvInt64("CM_TOKENS_PER_BONUS", 50)
	if err != nil {
		return fmt.Errorf("CM_TOKENS_PER_BONUS: %w", err)
	}
	cfg.TokensPerDownload, err = getEnvInt64("CM_TOKENS_PER_DOWNLOAD", 5)
	if err != nil {
		return fmt.Errorf("CM_TOKENS_PER_DOWNLOAD: %w", err)
	}
	cfg.StartingBalance, err = getEnvInt64("CM_STARTING_BALANCE", 100)
	if err != nil {
		return fmt.Errorf("CM_STARTING_BALANCE: %w", err)
	}
	if cfg.TokensPerBonus < 0 || cfg.TokensPerDownload < 0 || cfg.StartingBalance < 0 {
		return fmt.Errorf("CM_TOKENS_PER_BONUS, CM_TOKENS_PER_DOWNLOAD, CM_STARTING_BALANCE: значения не могут быть отрицательными")
	}

	cfg.AbuseEscalationThreshold, err = getEnvInt("CM_ABUSE_ESCALATION_THRESHOLD", 3)
	if err != nil {
		return fmt.Errorf("CM_ABUSE_ESCALATION_THRESHOLD: %w", err)
	}
	if cfg.AbuseEscalationThreshold < 1 {
		return fmt.Errorf("CM_ABUSE_ESCALATION_THRESHOLD: значение %d должно быть положительным", cfg.AbuseEscalationThreshold)
	}

	cfg.PriceTablePath = getEnvDefault("CM_PRICE_TABLE_PATH", "")
	return nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL подключения к PostgreSQL (формат postgres://).
// Используется topologymetrics для определения host/port зависимости.
func (c *Config) DatabaseURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     fmt.Sprintf("%s:%d", c.DBHost, c.DBPort),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + c.DBSSLMode,
	}
	return u.String()
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

// getEnvInt64 — то же, что getEnvInt, для сумм в токенах.
func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
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

// parseCSV разбирает строку, разделённую запятыми, на срез строк.
// Пробелы вокруг элементов убираются, пустые элементы игнорируются.
func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
