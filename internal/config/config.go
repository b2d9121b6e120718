package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// DefaultJWTSecret is the development signing key used when JWT_SECRET is unset.
const DefaultJWTSecret = "change-me-in-production"

// Config holds application configuration values sourced from environment variables.
type Config struct {
	Env         string
	HTTPPort    string
	LogLevel    string
	StoreDriver string
	DatabaseURL string
	SiteURL     string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RateLimit     int
	RateWindow    time.Duration

	MQURL      string
	MQExchange string
	MQQueue    string

	JWTSecret         string
	TokenTTL          time.Duration
	AdminEmail        string
	AdminName         string
	AdminPasswordHash string

	SMTP             SMTPConfig
	AdminNotifyEmail string

	UploadDir    string
	UploadPrefix string
}

// SMTPConfig configures outbound notification mail.
type SMTPConfig struct {
	Host          string
	Port          int
	User          string
	Pass          string
	From          string
	SkipTLSVerify bool
}

// Load reads an optional .env file and environment variables and produces a
// Config with sane defaults for local development.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file found, using environment variables")
	}

	cfg := Config{
		Env:         getEnv("APP_ENV", "development"),
		HTTPPort:    getEnv("API_HTTP_PORT", ":8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", "postgres")),
		DatabaseURL: getEnv("DATABASE_URL", "postgres://buildco:buildco@db:5432/buildco?sslmode=disable"),
		SiteURL:     strings.TrimRight(getEnv("SITE_URL", "http://localhost:3000"), "/"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       MustGetInt("REDIS_DB", 0),
		RateLimit:     MustGetInt("RATE_LIMIT_PER_WINDOW", 30),
		RateWindow:    getDuration("RATE_LIMIT_WINDOW", time.Minute),

		MQURL:      getEnv("RABBITMQ_URL", ""),
		MQExchange: getEnv("RABBITMQ_EXCHANGE", "maintenance.events"),
		MQQueue:    getEnv("RABBITMQ_NOTIFY_QUEUE", "maintenance.notifications"),

		JWTSecret:         getEnv("JWT_SECRET", DefaultJWTSecret),
		TokenTTL:          getDuration("JWT_TTL", 12*time.Hour),
		AdminEmail:        getEnv("ADMIN_EMAIL", "admin@example.com"),
		AdminName:         getEnv("ADMIN_NAME", "Administrator"),
		AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),

		SMTP: SMTPConfig{
			Host:          getEnv("SMTP_HOST", ""),
			Port:          MustGetInt("SMTP_PORT", 587),
			User:          getEnv("SMTP_USER", ""),
			Pass:          getEnv("SMTP_PASS", ""),
			From:          getEnv("SMTP_FROM", ""),
			SkipTLSVerify: getEnv("SMTP_SKIP_TLS_VERIFY", "") == "1",
		},
		AdminNotifyEmail: getEnv("ADMIN_NOTIFY_EMAIL", ""),

		UploadDir:    getEnv("UPLOAD_DIR", "./uploads"),
		UploadPrefix: getEnv("UPLOAD_URL_PREFIX", "/uploads"),
	}
	return cfg
}

// Production reports whether the service runs with production settings.
func (c Config) Production() bool {
	return strings.EqualFold(c.Env, "production")
}

// Validate rejects settings that are only acceptable in development.
func (c Config) Validate() error {
	if !c.Production() {
		return nil
	}
	secret := strings.TrimSpace(c.JWTSecret)
	if secret == "" || secret == DefaultJWTSecret {
		return errors.New("JWT_SECRET must be set to a non-default value in production")
	}
	return nil
}

// InitLogging configures the standard logrus logger: JSON in production,
// coloured text otherwise.
func InitLogging(cfg Config) *log.Logger {
	logger := log.StandardLogger()
	if cfg.Production() {
		logger.SetFormatter(&log.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.WithError(err).Warnf("invalid LOG_LEVEL %q, defaulting to info", cfg.LogLevel)
		level = log.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

// MustGetInt reads an environment variable and converts it to int with default fallback.
func MustGetInt(key string, fallback int) int {
	val := getEnv(key, "")
	if val == "" {
		return fallback
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		log.WithError(err).Warnf("failed to parse %s=%q as int", key, val)
		return fallback
	}
	return i
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.WithError(err).Warnf("invalid %s %q, defaulting to %s", key, v, fallback)
		return fallback
	}
	return d
}
