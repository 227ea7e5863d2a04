package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_DefaultsAndFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  mode: debug
  default_lang: en
identity:
  cache_ttl: 2m
session:
  secret: s3cret
`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "en", cfg.Server.DefaultLang)
	assert.Equal(t, 2*time.Minute, cfg.Identity.CacheTTL)
	assert.Equal(t, 10*time.Second, cfg.Identity.GuardTimeout)
	assert.Equal(t, 5*time.Second, cfg.Identity.RetryTimeout)
	assert.Equal(t, "panel_session", cfg.Session.CookieName)
	assert.Equal(t, "memory", cfg.Session.Store)
	assert.Equal(t, uint64(2), cfg.Upstream.RetryLimit)
	assert.Equal(t, ":3000", cfg.Server.Addr())
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("PANEL_SESSION_SECRET", "env-secret")
	t.Setenv("AUTH_SERVICE_URL", "http://auth.internal:8000")
	t.Setenv("PANEL_IDENTITY_GUARD_TIMEOUT", "3s")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "env-secret", cfg.Session.Secret)
	assert.Equal(t, "http://auth.internal:8000", cfg.Upstream.AuthService)
	assert.Equal(t, 3*time.Second, cfg.Identity.GuardTimeout)
}

func TestValidate(t *testing.T) {
	t.Setenv("PANEL_SESSION_SECRET", "x")
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	bad := *cfg
	bad.Server.DefaultLang = "de"
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.Session.Store = "file"
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.Session.Secret = ""
	assert.Error(t, bad.Validate())
}
