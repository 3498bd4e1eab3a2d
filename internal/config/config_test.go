package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadConfig(t *testing.T) {
	// Get the project root by going up from internal/config
	projectRoot, err := filepath.Abs("../../")
	require.NoError(t, err, "failed to get project root")

	configPath := filepath.Join(projectRoot, "etc") + string(filepath.Separator)

	cfg, err := ReadConfig(configPath)
	require.NoError(t, err)

	assert.NotEmpty(t, cfg.Title)
	assert.NotZero(t, cfg.Webserver.Port)
	assert.Equal(t, "sqlite", cfg.DB.GormEngine)
	assert.Equal(t, "memory", cfg.Cache.Store)
	assert.True(t, cfg.Cache.Enabled)
	assert.NotZero(t, cfg.Cache.DefaultTTL)
	assert.NotEmpty(t, cfg.Validation.ReservedPatterns)
	assert.True(t, cfg.Events.Enabled)
	require.NotEmpty(t, cfg.Validation.CustomRules)
	assert.Equal(t, "email.*", cfg.Validation.CustomRules[0].Pattern)
}

// writeConfig drops a main.toml with the given content into a temp dir and
// returns the dir with a trailing separator, the shape ReadConfig expects.
func writeConfig(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "main.toml"), []byte(content), 0o600)
	require.NoError(t, err)

	return dir + string(filepath.Separator)
}

func TestReadConfigDefaults(t *testing.T) {
	cfg, err := ReadConfig(writeConfig(t, `Title = "minimal"`))
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Webserver.Port)
	assert.Equal(t, DefaultShutDownTime, cfg.Webserver.ShutDownTime)
	assert.Equal(t, DefaultCacheTTL, cfg.Cache.DefaultTTL)
	assert.Equal(t, DefaultCacheStore, cfg.Cache.Store)
	assert.Equal(t, DefaultGormEngine, cfg.DB.GormEngine)
	assert.Equal(t, DefaultDBName, cfg.DB.Name)
}

func TestReadConfigRejectsUnknownStores(t *testing.T) {
	_, err := ReadConfig(writeConfig(t, `
[Cache]
Store = "redis"
`))
	assert.ErrorIs(t, err, ErrUnknownCacheStore)

	_, err = ReadConfig(writeConfig(t, `
[DB]
GormEngine = "oracle"
`))
	assert.ErrorIs(t, err, ErrUnknownGormEngine)
}

func TestReadConfigRejectsInvalidPort(t *testing.T) {
	_, err := ReadConfig(writeConfig(t, `
[Webserver]
Port = 70000
`))
	assert.ErrorIs(t, err, ErrWebServerPortInvalid)

	_, err = ReadConfig(writeConfig(t, `
[Webserver]
Port = -1
`))
	assert.ErrorIs(t, err, ErrWebServerPortInvalid)
}

func TestReadConfigEnvOverride(t *testing.T) {
	t.Setenv("SETTINGSD_CONFIG_JSON", `{"Cache":{"Enabled":false,"Store":"memory"},"Webserver":{"Port":9090}}`)

	cfg, err := ReadConfig(writeConfig(t, `
Title = "from-toml"

[Cache]
Enabled = true
`))
	require.NoError(t, err)

	// Env JSON wins over the file, untouched fields survive.
	assert.Equal(t, "from-toml", cfg.Title)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, 9090, cfg.Webserver.Port)
}

func TestDumpConfig(t *testing.T) {
	cfg := Config{Title: "dump-me"}

	out, err := DumpConfig(cfg)
	require.NoError(t, err)
	assert.Contains(t, out, `Title = "dump-me"`)

	out, err = DumpConfigJSON(cfg)
	require.NoError(t, err)
	assert.Contains(t, out, `"Title": "dump-me"`)
}
