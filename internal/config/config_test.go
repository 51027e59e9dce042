package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, "memory", cfg.Storage.Driver)
	require.Equal(t, 150, cfg.Model.InputSize)
}

func TestLoadYAMLThenEnv(t *testing.T) {
	path := writeFile(t, `
server:
  port: 9000
storage:
  driver: mysql
database:
  host: db
  port: 3307
  user: skin
  password: secret
  name: skiniq
rateLimit:
  enabled: true
  window: 30s
`)
	t.Setenv("PORT", "9100")
	t.Setenv("INFERENCE_WORKERS", "8")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9100, cfg.Server.Port)
	require.Equal(t, 8, cfg.Inference.Workers)
	require.Equal(t, "mysql", cfg.Storage.Driver)
	require.True(t, cfg.RateLimit.Enabled)
	require.Equal(t, 30*time.Second, cfg.RateLimit.Window)
	require.Equal(t, 60, cfg.RateLimit.Requests)
	require.Equal(t, "skin:secret@tcp(db:3307)/skiniq?parseTime=true&charset=utf8mb4&loc=UTC&clientFoundRows=true", cfg.MySQLDSN())
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	path := writeFile(t, "storage:\n  driver: mongo\n")
	_, err := Load(path)
	require.ErrorContains(t, err, "storage.driver")
}

func TestOpenAIBackendNeedsKey(t *testing.T) {
	t.Setenv("MODEL_IMAGE_BACKEND", "openai")
	t.Setenv("OPENAI_API_KEY", "")
	_, err := Load("")
	require.ErrorContains(t, err, "apiKey")
}

func TestPostgresDSN(t *testing.T) {
	cfg := Default()
	cfg.Database.Host = "pg"
	cfg.Database.Port = 5432
	cfg.Database.User = "u"
	cfg.Database.Password = "p@ss"
	cfg.Database.Name = "skiniq"
	require.Equal(t, "postgres://u:p%40ss@pg:5432/skiniq?sslmode=disable", cfg.PostgresDSN())
}
