package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load(":8000")

	assert.Equal(t, ":8000", cfg.HTTP.Addr)
	assert.True(t, cfg.DBEnabled)
	assert.Equal(t, "typeidea", cfg.Database.Database)
	assert.Equal(t, "http://permission.sso.com", cfg.PermService.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.PermService.Timeout)
	assert.Equal(t, 12*time.Hour, cfg.Session.TTL)
	assert.Equal(t, "typeidea:admin-log", cfg.AdminLog.Stream)
	assert.True(t, cfg.Seed.Enabled)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("DB_ENABLED", "false")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("REDIS_ADDR", "cache:6380")
	t.Setenv("PERM_SERVICE_URL", "http://perm.internal")
	t.Setenv("PERM_SERVICE_TIMEOUT", "800ms")
	t.Setenv("SEED_ADMIN", "false")

	cfg := Load(":8000")

	assert.Equal(t, ":9999", cfg.HTTP.Addr)
	assert.False(t, cfg.DBEnabled)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.Equal(t, "cache:6380", cfg.Redis.Addr)
	assert.Equal(t, "http://perm.internal", cfg.PermService.BaseURL)
	assert.Equal(t, 800*time.Millisecond, cfg.PermService.Timeout)
	assert.False(t, cfg.Seed.Enabled)
}
