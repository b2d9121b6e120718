package config

import (
	"os"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("SITE_URL", "https://buildco.example/")
	cfg := Load()

	assert.Equal(t, ":8080", cfg.HTTPPort)
	assert.Equal(t, "https://buildco.example", cfg.SiteURL)
	assert.Equal(t, 587, cfg.SMTP.Port)
	assert.Equal(t, time.Minute, cfg.RateWindow)
	assert.Equal(t, "/uploads", cfg.UploadPrefix)
	assert.False(t, cfg.Production())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("STORE_DRIVER", "Memory")
	t.Setenv("SMTP_PORT", "2525")
	t.Setenv("JWT_TTL", "30m")
	t.Setenv("RATE_LIMIT_WINDOW", "not-a-duration")
	cfg := Load()

	assert.True(t, cfg.Production())
	assert.Equal(t, "memory", cfg.StoreDriver)
	assert.Equal(t, 2525, cfg.SMTP.Port)
	assert.Equal(t, 30*time.Minute, cfg.TokenTTL)
	assert.Equal(t, time.Minute, cfg.RateWindow)
}

func TestValidate_ProductionNeedsSecret(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "")
	assert.Error(t, Load().Validate())

	os.Unsetenv("JWT_SECRET")
	cfg := Load()
	assert.Equal(t, DefaultJWTSecret, cfg.JWTSecret)
	assert.Error(t, cfg.Validate())

	t.Setenv("JWT_SECRET", "s3cr3t-from-vault")
	assert.NoError(t, Load().Validate())

	assert.NoError(t, Config{Env: "development", JWTSecret: DefaultJWTSecret}.Validate())
}

func TestMustGetInt_Fallback(t *testing.T) {
	t.Setenv("SOME_INT", "abc")
	assert.Equal(t, 7, MustGetInt("SOME_INT", 7))
	t.Setenv("SOME_INT", "12")
	assert.Equal(t, 12, MustGetInt("SOME_INT", 7))
}

func TestInitLogging(t *testing.T) {
	logger := InitLogging(Config{Env: "production", LogLevel: "debug"})
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	_, isJSON := logger.Formatter.(*logrus.JSONFormatter)
	assert.True(t, isJSON)

	logger = InitLogging(Config{LogLevel: "loud"})
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
}
