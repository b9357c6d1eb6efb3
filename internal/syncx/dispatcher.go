package syncx

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"path"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/vkuzmenko/photovault/internal/blobstore"
	"github.com/vkuzmenko/photovault/internal/catalog"
	"github.com/vkuzmenko/photovault/internal/logging"
	"github.com/vkuzmenko/photovault/internal/models"
	"github.com/vkuzmenko/photovault/internal/provider"
)

// CatalogAPI is the slice of the catalog client the dispatcher uses.
type CatalogAPI interface {
	BatchUpsert(ctx context.Context, assets []models.AssetRecord) (*catalog.BatchResult, error)
	DeleteAsset(ctx context.Context, id string) error
}

// BlobStore is the slice of the blob store the dispatcher uses.
type BlobStore interface {
	ListPrefix(ctx context.Context, prefix string) (map[string]blobstore.Object, error)
	Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
}

// Options configure one dispatch run.
type Options struct {
	// Account prefixes every storage key.
	Account string

	// BatchSize is the number of asset records per catalog upsert call.
	BatchSize int

	// Workers bounds the per-asset worker pool.
	Workers int

	// StopAfterUpdated halts the run between batches once the cumulative
	// "updated" count exceeds it. Zero means unbounded.
	StopAfterUpdated int

	// DryRun counts decisions without uploading or pushing anything.
	DryRun bool
}

// Report summarizes one dispatch run.
type Report struct {
	Selected       int
	Uploaded       int
	SkippedUploads int
	Deleted        int
	Created        int
	Updated        int
	Errors         int
	Batches        int
	Stopped        bool
}

// Dispatcher uploads rendition content and pushes metadata batches. Per-asset
// work (hashing, existence checks, uploads) runs on a bounded worker pool;
// batch composition and the upsert call run on a single stream so block
// counters stay coherent with what has actually been pushed.
type Dispatcher struct {
	catalog CatalogAPI
	store   BlobStore
	logger  logging.Logger
	opts    Options
}

func NewDispatcher(c CatalogAPI, store BlobStore, logger logging.Logger, opts Options) *Dispatcher {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	return &Dispatcher{catalog: c, store: store, logger: logger, opts: opts}
}

// inventoryCache is per-run state: a date→listing map shared by workers and
// pruned when the date cursor moves past a month boundary. It is a field of
// the run, never a process-wide singleton, so test runs cannot leak state.
type inventoryCache struct {
	mu      sync.Mutex
	entries map[models.Date]map[string]blobstore.Object
	// cursor tracks the most recent month a listing was fetched for.
	cursorYear  int
	cursorMonth int
}

func newInventoryCache() *inventoryCache {
	return &inventoryCache{entries: make(map[models.Date]map[string]blobstore.Object)}
}

// listingFor returns the blob listing for one capture date, fetching it on
// first use. Crossing into a later month drops listings from earlier months.
func (c *inventoryCache) listingFor(ctx context.Context, store BlobStore, account string, d models.Date) (map[string]blobstore.Object, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if l, ok := c.entries[d]; ok {
		return l, nil
	}

	if d.Year > c.cursorYear || (d.Year == c.cursorYear && int(d.Month) > c.cursorMonth) {
		for cached := range c.entries {
			if cached.Year < d.Year || (cached.Year == d.Year && cached.Month < d.Month) {
				delete(c.entries, cached)
			}
		}
		c.cursorYear = d.Year
		c.cursorMonth = int(d.Month)
	}

	prefix := fmt.Sprintf("%s/%s/", account, d.Prefix())
	listing, err := store.ListPrefix(ctx, prefix)
	if err != nil {
		return nil, err
	}
	c.entries[d] = listing
	return listing, nil
}

// StorageKey builds the deterministic blob key for one rendition. Keys are
// unique in the store and a pure function of their inputs, which is what
// makes uploads idempotent and reconciliation possible.
func StorageKey(account string, captured models.Date, assetID string, kind models.RenditionKind, filename string) string {
	return fmt.Sprintf("%s/%s/%s/%s/%s", account, captured.Prefix(), assetID, kind, path.Base(filename))
}

// result is what one worker hands to the collector.
type result struct {
	record  *models.AssetRecord // nil for deletes and failures
	deleted bool
	uploads int
	skips   int
	err     error
}

// Run processes the detector's work set. Per-asset errors are logged and
// counted, never fatal; only a failed batch push aborts the run.
func (d *Dispatcher) Run(ctx context.Context, assets []provider.Asset) (*Report, error) {
	report := &Report{Selected: len(assets)}
	if len(assets) == 0 {
		return report, nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	cache := newInventoryCache()
	work := make(chan provider.Asset)
	results := make(chan result)

	g, workerCtx := errgroup.WithContext(runCtx)
	for i := 0; i < d.opts.Workers; i++ {
		g.Go(func() error {
			for asset := range work {
				res := d.processAsset(workerCtx, cache, asset)
				select {
				case results <- res:
				case <-workerCtx.Done():
					return nil
				}
			}
			return nil
		})
	}

	go func() {
		defer close(work)
		for _, a := range assets {
			select {
			case work <- a:
			case <-workerCtx.Done():
				return
			}
		}
	}()

	go func() {
		_ = g.Wait()
		close(results)
	}()

	batch := make([]models.AssetRecord, 0, d.opts.BatchSize)

	for res := range results {
		report.Uploaded += res.uploads
		report.SkippedUploads += res.skips

		switch {
		case res.err != nil:
			d.logger.Error(ctx, "asset processing failed", "error", res.err)
			report.Errors++
		case res.deleted:
			report.Deleted++
		case res.record != nil:
			batch = append(batch, *res.record)
		}

		if len(batch) < d.opts.BatchSize {
			continue
		}

		if err := d.pushBatch(ctx, batch, report); err != nil {
			cancel()
			return report, err
		}
		batch = batch[:0]

		if d.opts.StopAfterUpdated > 0 && report.Updated > d.opts.StopAfterUpdated {
			d.logger.Info(ctx, "stop-after threshold reached", "updated", report.Updated)
			report.Stopped = true
			cancel()
			// Drain whatever the workers already produced.
			for range results {
			}
			return report, nil
		}
	}

	if len(batch) > 0 {
		if err := d.pushBatch(ctx, batch, report); err != nil {
			return report, err
		}
	}

	return report, nil
}

// pushBatch pushes one batch through the catalog client and folds the
// per-item results into the report. A failing item does not abort the batch.
func (d *Dispatcher) pushBatch(ctx context.Context, batch []models.AssetRecord, report *Report) error {
	report.Batches++

	if d.opts.DryRun {
		d.logger.Info(ctx, "dry run: would push batch", "size", len(batch))
		return nil
	}

	res, err := d.catalog.BatchUpsert(ctx, batch)
	if err != nil {
		return fmt.Errorf("batch upsert failed: %w", err)
	}

	report.Created += res.Created
	report.Updated += res.Updated
	report.Errors += res.Errors

	for _, item := range res.Results {
		if !item.Success {
			d.logger.Warn(ctx, "catalog rejected item", "id", item.ID, "error", item.Error)
		}
	}

	d.logger.Info(ctx, "batch pushed",
		"size", len(batch), "created", res.Created, "updated", res.Updated, "errors", res.Errors)

	return nil
}

// processAsset prepares one asset: trashed assets without retrievable
// renditions are deleted from the catalog outright; everything else gets its
// renditions deduplicated against the store, uploaded where absent, and a
// record composed for the batch.
func (d *Dispatcher) processAsset(ctx context.Context, cache *inventoryCache, asset provider.Asset) result {
	renditions := asset.Renditions()

	if asset.Trashed() && len(renditions) == 0 {
		if d.opts.DryRun {
			return result{deleted: true}
		}
		if err := d.catalog.DeleteAsset(ctx, asset.ID()); err != nil {
			return result{err: fmt.Errorf("delete of %s failed: %w", asset.ID(), err)}
		}
		return result{deleted: true}
	}

	captured := models.DateOf(asset.CapturedAt())
	width, height := asset.Dimensions()

	record := &models.AssetRecord{
		ID:         asset.ID(),
		CapturedAt: asset.CapturedAt().UTC(),
		Width:      width,
		Height:     height,
		Trashed:    asset.Trashed(),
	}
	if m, ok := asset.ModifiedAt(); ok {
		mu := m.UTC()
		record.ModifiedAt = &mu
	}

	listing, err := cache.listingFor(ctx, d.store, d.opts.Account, captured)
	if err != nil {
		return result{err: fmt.Errorf("inventory listing for %s failed: %w", captured, err)}
	}

	var res result
	for _, r := range renditions {
		key := StorageKey(d.opts.Account, captured, asset.ID(), r.Kind, r.Filename)

		rec := models.RenditionRecord{
			Kind:        r.Kind,
			StorageKey:  key,
			Filename:    path.Base(r.Filename),
			Width:       r.Width,
			Height:      r.Height,
			Size:        r.Size,
			ContentType: r.ContentType,
		}

		if existing, ok := listing[key]; ok && existing.Size == r.Size {
			// Already uploaded; keep its metadata in the batch.
			rec.Checksum = existing.ETag
			record.Renditions = append(record.Renditions, rec)
			res.skips++
			continue
		}

		if d.opts.DryRun {
			record.Renditions = append(record.Renditions, rec)
			continue
		}

		checksum, size, err := d.uploadRendition(ctx, asset, r, key)
		if err != nil {
			res.err = fmt.Errorf("upload of %s failed: %w", key, err)
			return res
		}
		rec.Checksum = checksum
		rec.Size = size
		record.Renditions = append(record.Renditions, rec)
		res.uploads++
	}

	res.record = record
	return res
}

// uploadRendition downloads one rendition from the provider, hashes it, and
// uploads it to the store. Returns the sha256 checksum and the byte count.
func (d *Dispatcher) uploadRendition(ctx context.Context, asset provider.Asset, r provider.Rendition, key string) (string, int64, error) {
	body, err := asset.Download(ctx, r.Kind)
	if err != nil {
		return "", 0, err
	}
	defer func() {
		_ = body.Close()
	}()

	h := sha256.New()
	var buf bytes.Buffer
	size, err := io.Copy(&buf, io.TeeReader(body, h))
	if err != nil {
		return "", 0, err
	}

	if err := d.store.Upload(ctx, key, &buf, size, r.ContentType); err != nil {
		return "", 0, err
	}

	return hex.EncodeToString(h.Sum(nil)), size, nil
}
