package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/vkuzmenko/photovault/internal/flagx"
	"github.com/vkuzmenko/photovault/internal/timex"
)

// JsonConfig is an intermediate DTO used only for reading JSON configuration
// files. Interval fields use timex.Duration, which accepts both strings such
// as "30s" and integer nanoseconds. After unmarshalling, values are copied
// into the runtime Config.
type JsonConfig struct {
	CatalogBaseURL    string         `json:"catalog_base_url"`
	CatalogAccount    string         `json:"catalog_account"`
	CatalogPassword   string         `json:"catalog_password"`
	ProviderBaseURL   string         `json:"provider_base_url"`
	ProviderLogin     string         `json:"provider_login"`
	VaultDSN          string         `json:"vault_dsn"`
	VaultPassphrase   string         `json:"vault_passphrase"`
	SessionTTL        timex.Duration `json:"session_ttl"`
	S3AccessKey       string         `json:"s3_access_key"`
	S3SecretKey       string         `json:"s3_secret_key"`
	S3Bucket          string         `json:"s3_bucket"`
	S3Region          string         `json:"s3_region"`
	S3BaseEndpoint    string         `json:"s3_base_endpoint"`
	BatchSize         int            `json:"batch_size"`
	Workers           int            `json:"workers"`
	StopAfterUpdated  int            `json:"stop_after_updated"`
	DetectorTolerance timex.Duration `json:"detector_tolerance"`
}

// parseJson loads configuration values from the JSON file named by the
// -c/-config flags, when one is given. An unreadable or invalid file panics:
// a run with half-applied configuration is worse than no run.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()

	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	if c.CatalogBaseURL != "" {
		config.CatalogBaseURL = c.CatalogBaseURL
	}
	if c.CatalogAccount != "" {
		config.CatalogAccount = c.CatalogAccount
	}
	if c.CatalogPassword != "" {
		config.CatalogPassword = c.CatalogPassword
	}
	if c.ProviderBaseURL != "" {
		config.ProviderBaseURL = c.ProviderBaseURL
	}
	if c.ProviderLogin != "" {
		config.ProviderLogin = c.ProviderLogin
	}
	if c.VaultDSN != "" {
		config.VaultDSN = c.VaultDSN
	}
	if c.VaultPassphrase != "" {
		config.VaultPassphrase = c.VaultPassphrase
	}
	if c.SessionTTL.Duration != 0 {
		config.SessionTTL = time.Duration(c.SessionTTL.Duration)
	}
	if c.S3AccessKey != "" {
		config.S3AccessKey = c.S3AccessKey
	}
	if c.S3SecretKey != "" {
		config.S3SecretKey = c.S3SecretKey
	}
	if c.S3Bucket != "" {
		config.S3Bucket = c.S3Bucket
	}
	if c.S3Region != "" {
		config.S3Region = c.S3Region
	}
	if c.S3BaseEndpoint != "" {
		config.S3BaseEndpoint = c.S3BaseEndpoint
	}
	if c.BatchSize != 0 {
		config.BatchSize = c.BatchSize
	}
	if c.Workers != 0 {
		config.Workers = c.Workers
	}
	if c.StopAfterUpdated != 0 {
		config.StopAfterUpdated = c.StopAfterUpdated
	}
	if c.DetectorTolerance.Duration != 0 {
		config.DetectorTolerance = time.Duration(c.DetectorTolerance.Duration)
	}
}
