package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CALLBACK_SCHEME", "CALLBACK_TIMEOUT_SECONDS", "CALLBACK_REGISTRY_DIR",
		"CALLBACK_MANIFEST", "CALLBACK_LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func TestDefault(t *testing.T) {
	clearEnv(t)
	cfg := Default()
	assert.Equal(t, "callback", cfg.Scheme)
	assert.Equal(t, 60, cfg.TimeoutSeconds)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, time.Minute, cfg.Timeout())
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("CALLBACK_SCHEME", "mytool")
	t.Setenv("CALLBACK_TIMEOUT_SECONDS", "5")
	t.Setenv("CALLBACK_LOG_LEVEL", "debug")

	cfg := Default()
	assert.Equal(t, "mytool", cfg.Scheme)
	assert.Equal(t, 5, cfg.TimeoutSeconds)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestEnvIgnoresBadTimeout(t *testing.T) {
	clearEnv(t)
	t.Setenv("CALLBACK_TIMEOUT_SECONDS", "not-a-number")
	assert.Equal(t, 60, Default().TimeoutSeconds)

	t.Setenv("CALLBACK_TIMEOUT_SECONDS", "-3")
	assert.Equal(t, 60, Default().TimeoutSeconds)
}

func TestLoadFileWithComments(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
  // Wait longer for slow apps.
  "timeout_seconds": 120,
  "scheme": "cb",
  "registry_dir": "/tmp/cb-pending",
}`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "cb", cfg.Scheme)
	assert.Equal(t, 120, cfg.TimeoutSeconds)
	assert.Equal(t, "/tmp/cb-pending", cfg.RegistryDir)
	assert.Equal(t, "info", cfg.LogLevel, "unset fields keep defaults")
}

func TestLoadFileFillsBlanks(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"scheme": "", "timeout_seconds": 0}`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "callback", cfg.Scheme)
	assert.Equal(t, 60, cfg.TimeoutSeconds)
}

func TestLoadExplicitMissingFileErrors(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err, "a path the user named must exist")
}

func TestLoadRejectsBrokenJSON(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"scheme": }`), 0o600))
	_, err := Load(path)
	assert.Error(t, err)
}
