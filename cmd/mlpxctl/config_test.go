package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mlpxctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig("")
	require.NoError(t, err)
	require.Equal(t, defaultConfig(), cfg)
	require.NoError(t, cfg.validate())
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
store: memory
log_level: debug
log_format: json
default_activation: tanh
epsilon: 0.5
`)
	cfg, err := loadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "memory", cfg.Store)
	require.Equal(t, "mlpx.db", cfg.DBPath)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, "tanh", cfg.DefaultActivation)
	require.Equal(t, 0.5, cfg.Epsilon)
}

func TestLoadConfigValidation(t *testing.T) {
	cases := map[string]string{
		"store":              "store: badger\n",
		"db_path":            "store: sqlite\ndb_path: \"\"\n",
		"log_level":          "log_level: loud\n",
		"epsilon":            "epsilon: -1\n",
		"default_activation": "default_activation: \"\"\n",
	}
	for field, body := range cases {
		t.Run(field, func(t *testing.T) {
			_, err := loadConfig(writeConfig(t, body))
			require.Error(t, err)
			require.Contains(t, err.Error(), field)
		})
	}
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.ErrorContains(t, err, "read config")

	_, err = loadConfig(writeConfig(t, "store: [unterminated\n"))
	require.ErrorContains(t, err, "parse config")
}
