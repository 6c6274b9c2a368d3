// Пакет config - загрузка и валидация конфигурации Lunch Planner
// из переменных окружения (и опционального .env файла).
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации сервиса.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Таймауты HTTP-сервера
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// --- PostgreSQL ---

	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string

	// --- Keycloak ---

	// URL Keycloak (без завершающего слэша)
	KeycloakURL string
	// Имя realm в Keycloak
	KeycloakRealm string
	// Client ID для доступа к Keycloak Admin API (список пользователей)
	KeycloakClientID string
	// Client Secret для доступа к Keycloak Admin API
	KeycloakClientSecret string
	// Путь к CA-сертификату для TLS-соединений с Keycloak (опционально)
	CACertPath string

	// --- JWT ---

	// Issuer JWT (авто-вычисляется из KeycloakURL, если не задан)
	JWTIssuer string
	// URL JWKS endpoint (авто-вычисляется из KeycloakURL, если не задан)
	JWTJWKSURL string
	// Допустимое расхождение часов при проверке exp/nbf
	JWTLeeway time.Duration
	// Интервал фонового обновления JWKS
	JWKSRefreshInterval time.Duration
	// Таймаут HTTP-запроса за JWKS
	JWKSClientTimeout time.Duration

	// --- Авторизация ---

	// Email-адреса master-администраторов (в нижнем регистре)
	MasterAdminEmails []string
	// Ключ шифрования cookie-сессий (пустой - случайный ключ при старте)
	SessionSecret string
	// Client ID публичного OIDC-клиента для входа через браузер
	OIDCClientID string
	// Внешний адрес сервиса для redirect_uri (например, https://lunch.example.com)
	PublicURL string

	// --- Кэш каталога пользователей IdP ---

	DirectoryCacheTTL  time.Duration
	DirectoryCacheSize int

	// --- topologymetrics ---

	DephealthGroup         string
	DephealthCheckInterval time.Duration
	// DephealthTLSSkipVerify - не проверять сертификат Keycloak в HTTP-проверке
	// (только для dev со self-signed сертификатом)
	DephealthTLSSkipVerify bool

	// --- Graceful shutdown ---

	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
// Если в рабочем каталоге есть .env, он читается первым; уже заданные
// переменные окружения при этом не перезаписываются.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	var err error

	// --- Сервер ---

	// LP_PORT - порт HTTP-сервера (по умолчанию 8000)
	cfg.Port, err = getEnvInt("LP_PORT", 8000)
	if err != nil {
		return nil, fmt.Errorf("LP_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("LP_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	cfg.LogLevel, err = parseLogLevel(getEnvDefault("LP_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("LP_LOG_LEVEL: %w", err)
	}

	cfg.LogFormat = getEnvDefault("LP_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("LP_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	if cfg.ReadTimeout, err = getEnvDuration("LP_HTTP_READ_TIMEOUT", 15*time.Second); err != nil {
		return nil, fmt.Errorf("LP_HTTP_READ_TIMEOUT: %w", err)
	}
	if cfg.WriteTimeout, err = getEnvDuration("LP_HTTP_WRITE_TIMEOUT", 30*time.Second); err != nil {
		return nil, fmt.Errorf("LP_HTTP_WRITE_TIMEOUT: %w", err)
	}
	if cfg.IdleTimeout, err = getEnvDuration("LP_HTTP_IDLE_TIMEOUT", 60*time.Second); err != nil {
		return nil, fmt.Errorf("LP_HTTP_IDLE_TIMEOUT: %w", err)
	}

	// --- PostgreSQL ---

	if cfg.DBHost, err = getEnvRequired("LP_DB_HOST"); err != nil {
		return nil, err
	}
	if cfg.DBPort, err = getEnvInt("LP_DB_PORT", 5432); err != nil {
		return nil, fmt.Errorf("LP_DB_PORT: %w", err)
	}
	if cfg.DBName, err = getEnvRequired("LP_DB_NAME"); err != nil {
		return nil, err
	}
	if cfg.DBUser, err = getEnvRequired("LP_DB_USER"); err != nil {
		return nil, err
	}
	if cfg.DBPassword, err = getEnvRequired("LP_DB_PASSWORD"); err != nil {
		return nil, err
	}

	cfg.DBSSLMode = getEnvDefault("LP_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("LP_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// --- Keycloak ---

	if cfg.KeycloakURL, err = getEnvRequired("LP_KEYCLOAK_URL"); err != nil {
		return nil, err
	}
	cfg.KeycloakURL = strings.TrimRight(cfg.KeycloakURL, "/")
	cfg.KeycloakRealm = getEnvDefault("LP_KEYCLOAK_REALM", "lunch")

	// Admin API опционален: без него /api/admin/users отвечает 502
	cfg.KeycloakClientID = getEnvDefault("LP_KEYCLOAK_CLIENT_ID", "")
	cfg.KeycloakClientSecret = getEnvDefault("LP_KEYCLOAK_CLIENT_SECRET", "")
	if (cfg.KeycloakClientID == "") != (cfg.KeycloakClientSecret == "") {
		return nil, fmt.Errorf("LP_KEYCLOAK_CLIENT_ID и LP_KEYCLOAK_CLIENT_SECRET задаются только вместе")
	}
	cfg.CACertPath = getEnvDefault("LP_CA_CERT_PATH", "")

	// --- JWT ---

	cfg.JWTIssuer = getEnvDefault("LP_JWT_ISSUER",
		fmt.Sprintf("%s/realms/%s", cfg.KeycloakURL, cfg.KeycloakRealm))
	cfg.JWTJWKSURL = getEnvDefault("LP_JWT_JWKS_URL",
		fmt.Sprintf("%s/realms/%s/protocol/openid-connect/certs", cfg.KeycloakURL, cfg.KeycloakRealm))

	if cfg.JWTLeeway, err = getEnvDuration("LP_JWT_LEEWAY", 5*time.Second); err != nil {
		return nil, fmt.Errorf("LP_JWT_LEEWAY: %w", err)
	}
	if cfg.JWKSRefreshInterval, err = getEnvDuration("LP_JWKS_REFRESH_INTERVAL", 15*time.Minute); err != nil {
		return nil, fmt.Errorf("LP_JWKS_REFRESH_INTERVAL: %w", err)
	}
	if cfg.JWKSClientTimeout, err = getEnvDuration("LP_JWKS_CLIENT_TIMEOUT", 10*time.Second); err != nil {
		return nil, fmt.Errorf("LP_JWKS_CLIENT_TIMEOUT: %w", err)
	}

	// --- Авторизация ---

	cfg.MasterAdminEmails = parseEmails(getEnvDefault("LP_MASTER_ADMIN_EMAILS", ""))
	cfg.SessionSecret = getEnvDefault("LP_SESSION_SECRET", "")
	cfg.OIDCClientID = getEnvDefault("LP_OIDC_CLIENT_ID", "lunch-planner-web")

	cfg.PublicURL = strings.TrimRight(getEnvDefault("LP_PUBLIC_URL", fmt.Sprintf("http://localhost:%d", cfg.Port)), "/")
	if u, parseErr := url.Parse(cfg.PublicURL); parseErr != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("LP_PUBLIC_URL: некорректный URL %q", cfg.PublicURL)
	}

	// --- Кэш каталога пользователей ---

	if cfg.DirectoryCacheTTL, err = getEnvDuration("LP_DIRECTORY_CACHE_TTL", time.Minute); err != nil {
		return nil, fmt.Errorf("LP_DIRECTORY_CACHE_TTL: %w", err)
	}
	if cfg.DirectoryCacheSize, err = getEnvInt("LP_DIRECTORY_CACHE_SIZE", 16); err != nil {
		return nil, fmt.Errorf("LP_DIRECTORY_CACHE_SIZE: %w", err)
	}
	if cfg.DirectoryCacheSize < 1 {
		return nil, fmt.Errorf("LP_DIRECTORY_CACHE_SIZE: значение %d должно быть положительным", cfg.DirectoryCacheSize)
	}

	// --- topologymetrics ---

	cfg.DephealthGroup = getEnvDefault("LP_DEPHEALTH_GROUP", "lunch-planner")
	if cfg.DephealthCheckInterval, err = getEnvDuration("LP_DEPHEALTH_CHECK_INTERVAL", 15*time.Second); err != nil {
		return nil, fmt.Errorf("LP_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}
	if cfg.DephealthTLSSkipVerify, err = getEnvBool("LP_DEPHEALTH_TLS_SKIP_VERIFY", false); err != nil {
		return nil, fmt.Errorf("LP_DEPHEALTH_TLS_SKIP_VERIFY: %w", err)
	}

	// --- Graceful shutdown ---

	if cfg.ShutdownTimeout, err = getEnvDuration("LP_SHUTDOWN_TIMEOUT", 5*time.Second); err != nil {
		return nil, fmt.Errorf("LP_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL PostgreSQL (postgres://...) для topologymetrics.
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

// MigrateURL возвращает URL для golang-migrate (драйвер pgx5).
func (c *Config) MigrateURL() string {
	u := url.URL{
		Scheme:   "pgx5",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     fmt.Sprintf("%s:%d", c.DBHost, c.DBPort),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + c.DBSSLMode,
	}
	return u.String()
}

// AdminAPIEnabled сообщает, заданы ли учётные данные Keycloak Admin API.
func (c *Config) AdminAPIEnabled() bool {
	return c.KeycloakClientID != "" && c.KeycloakClientSecret != ""
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

func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное логическое значение: %q", val)
	}
	return b, nil
}

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

// parseEmails - parseCSV с приведением к нижнему регистру.
func parseEmails(s string) []string {
	emails := parseCSV(s)
	for i, e := range emails {
		emails[i] = strings.ToLower(e)
	}
	return emails
}
