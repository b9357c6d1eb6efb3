// Package app wires configuration, storage, and services together and runs
// the photovault commands: credential registration, provider authentication,
// library sync, and the storage reconciliation audit.
package app

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/vkuzmenko/photovault/internal/audit"
	"github.com/vkuzmenko/photovault/internal/blobstore"
	"github.com/vkuzmenko/photovault/internal/catalog"
	"github.com/vkuzmenko/photovault/internal/cli"
	"github.com/vkuzmenko/photovault/internal/common"
	"github.com/vkuzmenko/photovault/internal/config"
	"github.com/vkuzmenko/photovault/internal/logging"
	"github.com/vkuzmenko/photovault/internal/models"
	"github.com/vkuzmenko/photovault/internal/provider"
	"github.com/vkuzmenko/photovault/internal/repositories/repomanager"
	"github.com/vkuzmenko/photovault/internal/services"
	"github.com/vkuzmenko/photovault/internal/syncx"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	vault       *services.VaultService
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	db, m, err := repomanager.Open(ctx, cfg.VaultDSN)
	if err != nil {
		return nil, fmt.Errorf("vault db init error: %w", err)
	}

	dialer := &provider.HTTPDialer{BaseURL: cfg.ProviderBaseURL}
	vault := services.NewVaultService(db, m, dialer, []byte(cfg.VaultPassphrase), cfg.SessionTTL, logger)

	return &App{config: cfg, logger: logger, db: db, repomanager: m, vault: vault}, nil
}

func (app *App) Close() {
	if app.db != nil {
		_ = app.db.Close()
	}
}

// WithSignalContext returns a context cancelled by SIGINT/SIGTERM/SIGQUIT.
func WithSignalContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancel()
	}()

	return ctx, cancel
}

// Register prompts for the provider secret and stores (or replaces) the
// credential for the configured account and login.
func (app *App) Register(ctx context.Context) error {
	secret, err := cli.GetSecret(os.Stdout, "Enter provider secret")
	if err != nil {
		return err
	}

	cred, err := app.vault.CreateOrUpdateCredential(ctx, app.config.CatalogAccount, app.config.ProviderLogin, secret)
	if err != nil {
		return err
	}

	fmt.Printf("credential stored: %s\n", cred.ID)
	return nil
}

// credential resolves the configured (account, login) pair.
func (app *App) credential(ctx context.Context) (*models.Credential, error) {
	cred, err := app.repomanager.Credentials(app.db).GetByAccountLogin(ctx, app.config.CatalogAccount, app.config.ProviderLogin)
	if errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("no credential for account %q; run 'photovault register' first", app.config.CatalogAccount)
	}
	return cred, err
}

// Login initiates provider authentication. When the provider demands a
// second factor, the pending session token (and any trusted devices) is
// printed for the follow-up 'code' command.
func (app *App) Login(ctx context.Context) error {
	cred, err := app.credential(ctx)
	if err != nil {
		return err
	}

	session, err := app.vault.InitiateAuthentication(ctx, cred.ID)
	if err != nil {
		return err
	}
	if session == nil {
		return errors.New("provider authentication failed")
	}

	if session.AwaitingSecondFactor {
		fmt.Printf("second factor required; session token: %s\n", session.Token)
		devices, err := app.vault.PendingDevices(session)
		if err == nil {
			for _, d := range devices {
				fmt.Printf("  device: %s (%s)\n", d.Label, d.Kind)
			}
		}
		fmt.Println("run: photovault code <token> <code>")
		return nil
	}

	fmt.Println("authenticated")
	return nil
}

// Code submits a second-factor code for a pending session.
func (app *App) Code(ctx context.Context, token, code string) error {
	if err := app.vault.SubmitSecondFactor(ctx, token, code); err != nil {
		return err
	}
	fmt.Println("authenticated")
	return nil
}

// Sync runs discrepancy detection and dispatch for the configured account.
func (app *App) Sync(ctx context.Context) error {
	cred, err := app.credential(ctx)
	if err != nil {
		return err
	}

	handle, err := app.vault.GetAuthenticatedHandle(ctx, cred.ID)
	if err != nil {
		return err
	}
	if handle == nil {
		return errors.New("no usable provider session; run 'photovault login' first")
	}

	assets, err := handle.Library().Assets(ctx)
	if err != nil {
		return fmt.Errorf("asset enumeration failed: %w", err)
	}

	catalogClient := catalog.NewClient(app.config.CatalogBaseURL, app.config.CatalogAccount, app.config.CatalogPassword, app.logger)

	detector := &syncx.Detector{
		Tolerance:  app.config.DetectorTolerance,
		FullResync: app.config.FullResync,
		Logger:     app.logger,
	}

	blocks := syncx.BuildBlocks(assets)

	var remote map[models.Date]catalog.BlockSummary
	if !app.config.FullResync {
		remote, err = catalogClient.BlockSummaries(ctx)
		if err != nil {
			return fmt.Errorf("block summary fetch failed: %w", err)
		}
	}

	selected := detector.Detect(ctx, blocks, remote)

	store, err := blobstore.New(ctx, blobstore.Config{
		Endpoint:  app.config.S3BaseEndpoint,
		Region:    app.config.S3Region,
		AccessKey: app.config.S3AccessKey,
		SecretKey: app.config.S3SecretKey,
		Bucket:    app.config.S3Bucket,
	})
	if err != nil {
		return err
	}

	dispatcher := syncx.NewDispatcher(catalogClient, store, app.logger, syncx.Options{
		Account:          app.config.CatalogAccount,
		BatchSize:        app.config.BatchSize,
		Workers:          app.config.Workers,
		StopAfterUpdated: app.config.StopAfterUpdated,
		DryRun:           app.config.DryRun,
	})

	report, err := dispatcher.Run(ctx, selected)
	if err != nil {
		return err
	}

	app.logger.Info(ctx, "sync finished",
		"selected", report.Selected, "uploaded", report.Uploaded, "skipped_uploads", report.SkippedUploads,
		"deleted", report.Deleted, "created", report.Created, "updated", report.Updated,
		"errors", report.Errors, "batches", report.Batches, "stopped", report.Stopped)

	return nil
}

// Audit reconciles the blob-store inventory against the catalog's version
// records. Returns true when no issues remain, which the caller maps to the
// process exit code.
func (app *App) Audit(ctx context.Context) (bool, error) {
	var (
		inventory []models.InventoryRecord
		skipped   int
		err       error
	)

	store, storeErr := blobstore.New(ctx, blobstore.Config{
		Endpoint:  app.config.S3BaseEndpoint,
		Region:    app.config.S3Region,
		AccessKey: app.config.S3AccessKey,
		SecretKey: app.config.S3SecretKey,
		Bucket:    app.config.S3Bucket,
	})

	switch {
	case app.config.InventoryPath != "":
		inventory, skipped, err = audit.OpenInventory(app.config.InventoryPath)
	case app.config.InventoryKey != "":
		if storeErr != nil {
			return false, storeErr
		}
		var body io.ReadCloser
		body, err = store.Download(ctx, app.config.InventoryBucket, app.config.InventoryKey)
		if err == nil {
			inventory, skipped, err = audit.ReadInventory(body)
			_ = body.Close()
		}
	default:
		return false, errors.New("no inventory source: pass -inv or -inv-key")
	}
	if err != nil {
		return false, err
	}

	catalogClient := catalog.NewClient(app.config.CatalogBaseURL, app.config.CatalogAccount, app.config.CatalogPassword, app.logger)
	versions, err := catalogClient.ListVersions(ctx)
	if err != nil {
		return false, fmt.Errorf("version listing fetch failed: %w", err)
	}

	auditor := &audit.Auditor{Logger: app.logger}
	report := auditor.Reconcile(versions, inventory)
	report.SkippedRows = skipped

	fmt.Printf("audit: %d matched, %d missing, %d mismatched, %d orphaned (%d bytes), %d rows skipped\n",
		report.Matched, len(report.Missing), len(report.Mismatched), len(report.Orphaned),
		report.OrphanedBytes, report.SkippedRows)

	if app.config.ShowOrphans {
		for _, o := range report.Orphaned {
			fmt.Printf("orphan: %s/%s (%d bytes)\n", o.Bucket, o.Key, o.Size)
		}
	}

	if app.config.DeleteOrphans {
		if storeErr != nil {
			return false, storeErr
		}
		reader := bufio.NewReader(os.Stdin)
		auditor.CleanupOrphans(ctx, store, report, func(prompt string) bool {
			return cli.Confirm(reader, prompt, os.Stdout)
		})
		fmt.Printf("cleanup: %d deleted, %d failed\n", report.DeletedOrphans, report.FailedDeletes)
	}

	if app.config.ReportPath != "" {
		if err := report.Export(app.config.ReportPath); err != nil {
			return false, fmt.Errorf("report export failed: %w", err)
		}
	}

	return report.Clean(), nil
}
