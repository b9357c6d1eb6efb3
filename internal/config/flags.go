package config

import (
	"flag"
	"os"
	"time"

	"github.com/vkuzmenko/photovault/internal/flagx"
)

// parseFlags populates Config fields from command-line flags.
//
// Supported flags:
//
//	-url string        catalog base URL
//	-acc string        catalog account id
//	-pass string       catalog account password
//	-prov string       identity provider base URL
//	-login string      identity provider login id
//	-dsn string        vault DSN (sqlite path or postgres:// URL)
//	-key string        vault encryption passphrase
//	-b string          S3 bucket name
//	-g string          S3 region
//	-e string          S3 base endpoint
//	-u string          S3 access key
//	-p string          S3 secret key
//	-batch int         records per catalog batch
//	-w int             worker pool size
//	-stop int          stop-after-updated threshold (0 = unbounded)
//	-tol int           detector max-date tolerance, seconds
//	-dry               dry run (no uploads, no pushes)
//	-full              skip discrepancy detection, resync everything
//	-inv string        inventory source: local path
//	-inv-bucket string inventory source: remote bucket
//	-inv-key string    inventory source: remote key
//	-show-orphans      print orphaned objects
//	-delete-orphans    delete orphaned objects (interactive confirmation)
//	-export string     write the audit report as JSON to this path
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components. The detector
// tolerance is accepted as an integer number of seconds.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{
		"-url", "-acc", "-pass", "-prov", "-login", "-dsn", "-key",
		"-b", "-g", "-e", "-u", "-p",
		"-batch", "-w", "-stop", "-tol", "-dry", "-full",
		"-inv", "-inv-bucket", "-inv-key", "-show-orphans", "-delete-orphans", "-export",
	})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.CatalogBaseURL, "url", config.CatalogBaseURL, "catalog base URL")
	fs.StringVar(&config.CatalogAccount, "acc", config.CatalogAccount, "catalog account id")
	fs.StringVar(&config.CatalogPassword, "pass", config.CatalogPassword, "catalog account password")
	fs.StringVar(&config.ProviderBaseURL, "prov", config.ProviderBaseURL, "identity provider base URL")
	fs.StringVar(&config.ProviderLogin, "login", config.ProviderLogin, "identity provider login id")
	fs.StringVar(&config.VaultDSN, "dsn", config.VaultDSN, "vault DSN")
	fs.StringVar(&config.VaultPassphrase, "key", config.VaultPassphrase, "vault encryption passphrase")

	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.S3AccessKey, "u", config.S3AccessKey, "S3 access key")
	fs.StringVar(&config.S3SecretKey, "p", config.S3SecretKey, "S3 secret key")

	fs.IntVar(&config.BatchSize, "batch", config.BatchSize, "records per catalog batch")
	fs.IntVar(&config.Workers, "w", config.Workers, "worker pool size")
	fs.IntVar(&config.StopAfterUpdated, "stop", config.StopAfterUpdated, "stop after this many updated records (0 = unbounded)")
	tolerance := fs.Int("tol", int(config.DetectorTolerance.Seconds()), "detector max-date tolerance (in seconds)")
	fs.BoolVar(&config.DryRun, "dry", config.DryRun, "dry run")
	fs.BoolVar(&config.FullResync, "full", config.FullResync, "skip discrepancy detection")

	fs.StringVar(&config.InventoryPath, "inv", config.InventoryPath, "inventory file path")
	fs.StringVar(&config.InventoryBucket, "inv-bucket", config.InventoryBucket, "inventory export bucket")
	fs.StringVar(&config.InventoryKey, "inv-key", config.InventoryKey, "inventory export key")
	fs.BoolVar(&config.ShowOrphans, "show-orphans", config.ShowOrphans, "print orphaned objects")
	fs.BoolVar(&config.DeleteOrphans, "delete-orphans", config.DeleteOrphans, "delete orphaned objects")
	fs.StringVar(&config.ReportPath, "export", config.ReportPath, "write audit report JSON to file")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.DetectorTolerance = time.Duration(*tolerance) * time.Second
}
