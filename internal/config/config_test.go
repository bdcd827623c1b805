package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("RECIPEBOOK_DATABASE_URL", "postgres://localhost/recipebook_test")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Environment)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 300*time.Second, cfg.Presence.Window)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
app:
  environment: production
server:
  port: 9000
database:
  url: postgres://db/recipes
presence:
  window: 60s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.App.Environment)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "postgres://db/recipes", cfg.Database.URL)
	assert.Equal(t, time.Minute, cfg.Presence.Window)
	assert.False(t, cfg.IsDevelopment())
}

func TestValidate(t *testing.T) {
	cfg := &Config{Server: ServerConfig{Port: 8080}}
	assert.Error(t, cfg.Validate(), "missing database url")

	cfg.Database.URL = "postgres://localhost/db"
	cfg.Server.Port = 0
	assert.Error(t, cfg.Validate(), "port out of range")

	cfg.Server.Port = 8080
	assert.NoError(t, cfg.Validate())
}
