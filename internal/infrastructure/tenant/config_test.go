package tenant

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadTenantConfigDefaultsToSQLite(t *testing.T) {
	t.Setenv("SIGNALSTACK_CONFIG_PATH", t.TempDir())

	cfg, err := LoadTenantConfig("acme")
	require.NoError(t, err)
	assert.Equal(t, "acme", cfg.TenantID)
	assert.Empty(t, cfg.TursoDatabase)
	assert.Contains(t, cfg.SQLitePath, filepath.Join("acme", "signalstack.db"))
}

func TestLoadTenantConfigReadsFile(t *testing.T) {
	root := t.TempDir()
	t.Setenv("SIGNALSTACK_CONFIG_PATH", root)

	require.NoError(t, os.MkdirAll(filepath.Join(root, "acme"), 0755))
	raw, err := json.Marshal(map[string]string{
		"tursoDatabase":  "libsql://acme.turso.io",
		"tursoToken":     "tok",
		"funnelStateUrl": "http://funnel-flow:9000",
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(root, "acme", "config.json"), raw, 0644))

	cfg, err := LoadTenantConfig("acme")
	require.NoError(t, err)
	assert.Equal(t, "acme", cfg.TenantID)
	assert.Equal(t, "libsql://acme.turso.io", cfg.TursoDatabase)
	assert.Equal(t, "http://funnel-flow:9000", cfg.FunnelStateURL)
	assert.NotEmpty(t, cfg.SQLitePath)
}

func TestRegisterTenantRoundTrip(t *testing.T) {
	t.Setenv("SIGNALSTACK_CONFIG_PATH", t.TempDir())

	registry, err := LoadTenantRegistry()
	require.NoError(t, err)
	assert.Empty(t, registry.Tenants)

	require.NoError(t, RegisterTenant("acme"))
	// Re-registering is a no-op, not an error.
	require.NoError(t, RegisterTenant("acme"))

	registry, err = LoadTenantRegistry()
	require.NoError(t, err)
	require.Contains(t, registry.Tenants, "acme")
	assert.Equal(t, "reserved", registry.Tenants["acme"].Status)
}
