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
	cfg := &Config{}
	cfg.LoadDefaults()

	assert.Equal(t, "http://127.0.0.1:8080", cfg.CatalogBaseURL)
	assert.Equal(t, "photovault.db", cfg.VaultDSN)
	assert.Equal(t, 7*24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 50, cfg.BatchSize)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, time.Duration(0), cfg.DetectorTolerance)
	assert.False(t, cfg.DryRun)
}

func TestLoadConfig_FlagsOverrideDefaults(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	os.Args = []string{"photovault", "sync",
		"-acc", "acc-1",
		"-login", "user@example.com",
		"-dsn", "postgres://localhost/vault",
		"-batch", "10",
		"-tol", "90",
		"-dry",
	}

	cfg := LoadConfig()

	assert.Equal(t, "acc-1", cfg.CatalogAccount)
	assert.Equal(t, "user@example.com", cfg.ProviderLogin)
	assert.Equal(t, "postgres://localhost/vault", cfg.VaultDSN)
	assert.Equal(t, 10, cfg.BatchSize)
	assert.Equal(t, 90*time.Second, cfg.DetectorTolerance)
	assert.True(t, cfg.DryRun)

	// Untouched fields keep their defaults.
	assert.Equal(t, "renditions", cfg.S3Bucket)
}

func TestLoadConfig_JSONOverlay(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"catalog_base_url": "https://catalog.example.com",
		"catalog_account": "acc-json",
		"session_ttl": "48h",
		"detector_tolerance": "2m",
		"workers": 8
	}`), 0o600))

	os.Args = []string{"photovault", "-c", path}
	cfg := LoadConfig()

	assert.Equal(t, "https://catalog.example.com", cfg.CatalogBaseURL)
	assert.Equal(t, "acc-json", cfg.CatalogAccount)
	assert.Equal(t, 48*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 2*time.Minute, cfg.DetectorTolerance)
	assert.Equal(t, 8, cfg.Workers)
}

func TestLoadConfig_FlagsBeatJSON(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"catalog_account": "acc-json"}`), 0o600))

	os.Args = []string{"photovault", "-c", path, "-acc", "acc-flag"}
	cfg := LoadConfig()

	assert.Equal(t, "acc-flag", cfg.CatalogAccount)
}

func TestLoadConfig_BadJSONPanics(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o600))

	os.Args = []string{"photovault", "-c", path}
	assert.Panics(t, func() { LoadConfig() })
}
