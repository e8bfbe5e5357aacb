package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/lifebadge/pkg/status"
)

// --- embedded filesystem tests ---

func Test_defaultsFS(t *testing.T) {
	data, err := defaultsFS.ReadFile("defaults/config")
	require.NoError(t, err)
	assert.Contains(t, string(data), "port = 8077")
	assert.Contains(t, string(data), "style_unknown")
	assert.Contains(t, string(data), "notify_channels")
}

// --- Load tests ---

func TestLoad_WithCustomDir(t *testing.T) {
	configDir := filepath.Join(t.TempDir(), "custom-config")

	cfg, err := Load(configDir)
	require.NoError(t, err)

	assert.Equal(t, configDir, cfg.ConfigDir())
	assert.FileExists(t, filepath.Join(configDir, "config"))
	assert.Equal(t, 8077, cfg.Port)
	assert.Equal(t, 5*time.Second, cfg.Timeout())
	assert.Equal(t, 10*time.Second, cfg.WatchInterval())
}

func TestLoad_DoesNotOverwriteUserConfig(t *testing.T) {
	configDir := filepath.Join(t.TempDir(), "lifebadge")
	require.NoError(t, os.MkdirAll(configDir, 0o700))
	userConfig := "host = app.example.com\nretries = 2\n"
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config"), []byte(userConfig), 0o600))

	cfg, err := Load(configDir)
	require.NoError(t, err)
	assert.Equal(t, "app.example.com", cfg.Host)
	assert.Equal(t, 2, cfg.Retries)

	data, err := os.ReadFile(filepath.Join(configDir, "config"))
	require.NoError(t, err)
	assert.Equal(t, userConfig, string(data))
}

func TestLoad_InvalidHost(t *testing.T) {
	configDir := filepath.Join(t.TempDir(), "lifebadge")
	require.NoError(t, os.MkdirAll(configDir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config"), []byte("host = not a host\n"), 0o600))

	_, err := Load(configDir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestLoad_PortOutOfRange(t *testing.T) {
	configDir := filepath.Join(t.TempDir(), "lifebadge")
	require.NoError(t, os.MkdirAll(configDir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config"), []byte("port = 70000\n"), 0o600))

	_, err := Load(configDir)
	require.Error(t, err)
}

func TestLoadFrom_LocalOverridesGlobal(t *testing.T) {
	tmpDir := t.TempDir()
	globalDir := filepath.Join(tmpDir, "global")
	localDir := filepath.Join(tmpDir, "local")
	require.NoError(t, os.MkdirAll(globalDir, 0o700))
	require.NoError(t, os.MkdirAll(localDir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(globalDir, "config"), []byte("host = global.local\ncolor_danger = #010203\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(localDir, "config"), []byte("host = local.local\nstyle_stopped = warning\n"), 0o600))

	cfg, err := loadFrom(globalDir, localDir)
	require.NoError(t, err)
	assert.Equal(t, "local.local", cfg.Host)
	assert.Equal(t, "1,2,3", cfg.Colors.Danger)
	assert.Equal(t, localDir, cfg.LocalDir())
	assert.Equal(t, status.StyleWarning, cfg.Resolver().Resolve("Stopped"))
}

func TestConfig_Resolver_Defaults(t *testing.T) {
	cfg, err := loadFrom(t.TempDir(), "")
	require.NoError(t, err)

	r := cfg.Resolver()
	assert.Equal(t, status.StylePrimary, r.Resolve("Starting"))
	assert.Equal(t, status.StyleSuccess, r.Resolve("Started"))
	assert.Equal(t, status.StyleDefault, r.Resolve("Stopped"))
	assert.Equal(t, status.StyleDanger, r.Resolve("Failed"))
	assert.Equal(t, status.StyleWarning, r.Resolve("Paused"))
	assert.Equal(t, status.StyleDanger, r.StyleOf(status.Unreachable()))
}

func TestDefaultConfigDir(t *testing.T) {
	dir := DefaultConfigDir()
	assert.NotEmpty(t, dir)
	assert.Contains(t, dir, "lifebadge")
}

func TestDefaultsInstaller_Install(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, newDefaultsInstaller(defaultsFS).Install(dir))

	info, err := os.Stat(filepath.Join(dir, "config"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	// second install is a no-op
	require.NoError(t, newDefaultsInstaller(defaultsFS).Install(dir))
}
