// Package config handles runtime configuration: defaults, an optional JSON
// overlay, and command-line flag overrides.
package config

import "time"

// Config holds runtime settings for photovault.
//
// Groups:
//   - Catalog: base URL and account credentials for the remote catalog.
//   - Provider: base URL of the identity provider.
//   - Vault: DSN (sqlite path or postgres URL) and the passphrase used to
//     derive at-rest encryption keys. Do not use the test default in prod.
//   - S3*: object storage settings for the rendition blob store.
//   - Sync: batch size, worker pool bound, stop-after threshold, detector
//     tolerance, dry-run and full-resync switches.
//   - Audit: inventory source (local path or bucket/key locator), orphan
//     show/delete switches, optional report export path.
type Config struct {
	CatalogBaseURL  string
	CatalogAccount  string
	CatalogPassword string

	ProviderBaseURL string
	ProviderLogin   string

	VaultDSN        string
	VaultPassphrase string
	SessionTTL      time.Duration

	S3AccessKey    string
	S3SecretKey    string
	S3Bucket       string
	S3Region       string
	S3BaseEndpoint string

	BatchSize         int
	Workers           int
	StopAfterUpdated  int
	DetectorTolerance time.Duration
	DryRun            bool
	FullResync        bool

	InventoryPath   string
	InventoryBucket string
	InventoryKey    string
	ShowOrphans     bool
	DeleteOrphans   bool
	ReportPath      string
}

// LoadDefaults populates Config with sensible development defaults.
// NOTE: These values are insecure for production and should be overridden.
func (c *Config) LoadDefaults() {
	c.CatalogBaseURL = "http://127.0.0.1:8080"
	c.ProviderBaseURL = "http://127.0.0.1:8090"
	c.VaultDSN = "photovault.db"
	c.VaultPassphrase = "passphrase"
	c.SessionTTL = 7 * 24 * time.Hour
	c.S3AccessKey = "admin"
	c.S3SecretKey = "secretpassword"
	c.S3Bucket = "renditions"
	c.S3Region = "us-east-1"
	c.S3BaseEndpoint = "http://127.0.0.1:9000/"
	c.BatchSize = 50
	c.Workers = 4
	c.DetectorTolerance = 0
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file and finally from command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
