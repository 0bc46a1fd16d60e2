package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	m := NewManagerWithOptions(WithConfigFile(filepath.Join(t.TempDir(), "absent.yaml")))
	// Missing file is fine; defaults apply.
	_ = m.Load()

	cfg, err := m.GetConfig()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "./schemas", cfg.Crud.SchemaDir)
	assert.Equal(t, 10, cfg.Crud.DefaultPageSize)
	assert.Equal(t, 100, cfg.Crud.MaxPageSize)
	assert.False(t, cfg.Crud.DebugMode)
	assert.Equal(t, "memory", cfg.Cache.Provider)
	assert.Equal(t, 6379, cfg.Cache.Redis.Port)
	assert.False(t, cfg.ErrorTracking.Enabled)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "crudspec", cfg.Metrics.Namespace)
	assert.EqualValues(t, 10<<20, cfg.Middleware.MaxRequestSize)
	assert.Equal(t, "default", cfg.DBManager.DefaultConnection)
	require.Contains(t, cfg.DBManager.Connections, "default")
	assert.Equal(t, "sqlite", cfg.DBManager.Connections["default"].Driver)
}

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
server:
  addr: ":9090"
crud:
  schema_dir: /srv/schemas
  debug_mode: true
cache:
  provider: redis
  redis:
    host: cache.internal
    port: 6380
dbmanager:
  default_connection: main
  connections:
    main:
      driver: postgres
      dsn: postgres://localhost/app
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	m := NewManagerWithOptions(WithConfigFile(path))
	require.NoError(t, m.Load())

	cfg, err := m.GetConfig()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "/srv/schemas", cfg.Crud.SchemaDir)
	assert.True(t, cfg.Crud.DebugMode)
	assert.Equal(t, "redis", cfg.Cache.Provider)
	assert.Equal(t, "cache.internal", cfg.Cache.Redis.Host)
	assert.Equal(t, 6380, cfg.Cache.Redis.Port)
	assert.Equal(t, "main", cfg.DBManager.DefaultConnection)
	assert.Equal(t, "postgres", cfg.DBManager.Connections["main"].Driver)

	// Untouched sections keep their defaults.
	assert.Equal(t, 10, cfg.Crud.DefaultPageSize)
}

func TestLoadBrokenYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o644))

	m := NewManagerWithOptions(WithConfigFile(path))
	assert.Error(t, m.Load())
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("CRUD6_CRUD_SCHEMA_DIR", "/env/schemas")
	t.Setenv("CRUD6_SERVER_ADDR", ":7070")

	m := NewManagerWithOptions(WithConfigFile(filepath.Join(t.TempDir(), "absent.yaml")))
	_ = m.Load()

	cfg, err := m.GetConfig()
	require.NoError(t, err)
	assert.Equal(t, "/env/schemas", cfg.Crud.SchemaDir)
	assert.Equal(t, ":7070", cfg.Server.Addr)
}

func TestAccessorsAndSet(t *testing.T) {
	m := NewManager()
	assert.Equal(t, "memory", m.GetString("cache.provider"))
	assert.Equal(t, 100, m.GetInt("crud.max_page_size"))
	assert.True(t, m.GetBool("metrics.enabled"))

	m.Set("crud.max_page_size", 250)
	assert.Equal(t, 250, m.GetInt("crud.max_page_size"))
}
