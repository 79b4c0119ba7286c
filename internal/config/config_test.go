package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tazhibayda/profile-service/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	c, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", c.Port)
	assert.Equal(t, "cookie", c.SessionBackend)
	assert.Equal(t, "users", c.MetadataCollection)
	assert.Contains(t, c.FederatedProviders, "google-oauth2")
	assert.False(t, c.Prod())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: "9000"
mgmt_domain: tenant.example.com
federated_providers: [github]
rate_limit_per_min: 5
`), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("APP_PORT", "9100")
	t.Setenv("CORS_ORIGINS", "http://localhost:3000, https://dash.example.com")

	c, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "9100", c.Port)
	assert.Equal(t, 5, c.RateLimitPerMin)
	assert.Equal(t, []string{"github"}, c.FederatedProviders)
	assert.Equal(t, "https://tenant.example.com/api/v2/", c.MgmtAudience)
	assert.Equal(t, []string{"http://localhost:3000", "https://dash.example.com"}, c.CORSOrigins)
}

func TestLoad_RejectsUnknownBackend(t *testing.T) {
	t.Setenv("SESSION_BACKEND", "memcached")
	_, err := config.Load()
	assert.Error(t, err)
}

func TestLoad_DevLoginRejectedInProd(t *testing.T) {
	t.Setenv("DEV_LOGIN", "true")
	c, err := config.Load()
	require.NoError(t, err)
	assert.True(t, c.DevLogin)

	t.Setenv("APP_ENV", "prod")
	_, err = config.Load()
	assert.Error(t, err)
}
