package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig("")
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, 8098, cfg.Web.Port)
	assert.Equal(t, 300, cfg.Session.IdleTimeout)
	assert.Equal(t, 60, cfg.Session.SweepInterval)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "truthlink.yml")
	data := []byte("web:\n  port: 9100\nsession:\n  idle_timeout: 120\n")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	cfg := LoadConfig(path)
	assert.Equal(t, 9100, cfg.Web.Port)
	assert.Equal(t, 120, cfg.Session.IdleTimeout)
	// untouched sections keep their defaults
	assert.Equal(t, "sqlite", cfg.Database.Type)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("TRUTHLINK_WEB_PORT", "9200")
	t.Setenv("TRUTHLINK_DB_TYPE", "postgres")
	t.Setenv("TRUTHLINK_SESSION_REMOVE_DELAY", "5")
	t.Setenv("TRUTHLINK_SESSION_AUDIT_RETENTION", "7")

	cfg := LoadConfig("")
	assert.Equal(t, 9200, cfg.Web.Port)
	assert.Equal(t, "postgres", cfg.Database.Type)
	assert.Equal(t, 5, cfg.Session.RemoveDelay)
	assert.Equal(t, 7, cfg.Session.AuditRetention)
}
