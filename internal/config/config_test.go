package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setEnv(t *testing.T, key, value string) {
	t.Helper()
	old, had := os.LookupEnv(key)
	os.Setenv(key, value)
	t.Cleanup(func() {
		if had {
			os.Setenv(key, old)
		} else {
			os.Unsetenv(key)
		}
	})
}

func TestLoadDefaults(t *testing.T) {
	setEnv(t, "ENVIRONMENT", "development")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 10, cfg.Database.MaxOpenConns)
	assert.Equal(t, 5, cfg.Database.ConnectTimeout)
	assert.Equal(t, 45, cfg.Database.StatementTimeout)
	assert.Equal(t, 30, cfg.Orders.PendingExpiryMinutes)
	assert.Equal(t, 72, cfg.Orders.DownloadExpiryHours)
	assert.Equal(t, 10, cfg.Orders.MaxDownloads)
}

func TestLoadOverrides(t *testing.T) {
	setEnv(t, "STORAGE_DRIVER", "memory")
	setEnv(t, "ORDER_MAX_DOWNLOADS", "3")
	setEnv(t, "CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	setEnv(t, "REDIS_ENABLED", "TRUE")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, 3, cfg.Orders.MaxDownloads)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Frontend.AllowedOrigins)
	assert.True(t, cfg.Redis.Enabled)
}

func TestValidateProductionSecrets(t *testing.T) {
	setEnv(t, "ENVIRONMENT", "production")
	setEnv(t, "JWT_SECRET", "your-secret-key-change-in-production")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidateRejectsUnknownDriver(t *testing.T) {
	setEnv(t, "STORAGE_DRIVER", "mongo")

	_, err := Load()
	assert.ErrorContains(t, err, "unsupported storage driver")
}

func TestDSNIncludesConnectTimeout(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: "5432", User: "u", Password: "p", Database: "devshop", SSLMode: "disable", ConnectTimeout: 5}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=devshop sslmode=disable connect_timeout=5", d.DSN())
}
