package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/vkuzmenko/photovault/internal/logging"
	"github.com/vkuzmenko/photovault/internal/models"
)

// MissingObject is a catalog version record whose key is absent from the
// store inventory.
type MissingObject struct {
	AssetID      string `json:"asset_id"`
	Key          string `json:"key"`
	ExpectedSize int64  `json:"expected_size"`
}

// SizeMismatch is a key present in both the catalog and the inventory with
// differing sizes.
type SizeMismatch struct {
	AssetID     string `json:"asset_id"`
	Key         string `json:"key"`
	CatalogSize int64  `json:"catalog_size"`
	StoreSize   int64  `json:"store_size"`
	Delta       int64  `json:"delta"`
}

// OrphanObject is a store object with no corresponding catalog version
// record.
type OrphanObject struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
	Size   int64  `json:"size"`
}

// Report is the outcome of one audit run. Together the three categories and
// the matched set partition version records and inventory keys exactly.
type Report struct {
	Missing       []MissingObject `json:"missing_in_store"`
	Mismatched    []SizeMismatch  `json:"size_mismatch"`
	Orphaned      []OrphanObject  `json:"orphaned_in_store"`
	Matched       int             `json:"matched"`
	OrphanedBytes int64           `json:"orphaned_bytes"`
	SkippedRows   int             `json:"skipped_rows"`

	DeletedOrphans int `json:"deleted_orphans,omitempty"`
	FailedDeletes  int `json:"failed_deletes,omitempty"`
}

// Clean reports whether every category is empty, after any cleanup. The
// audit entry point turns this into the process exit code.
func (r *Report) Clean() bool {
	return len(r.Missing) == 0 && len(r.Mismatched) == 0 && len(r.Orphaned) == 0
}

// Auditor compares the blob store's bulk inventory with the catalog's own
// records. It is offline and batch-oriented; nothing here touches the store
// except the optional orphan cleanup.
type Auditor struct {
	Logger logging.Logger
}

// Reconcile classifies every version record and inventory key. Each version
// record is checked against the inventory: absent keys are missing, size
// disagreements are mismatches, exact matches shrink the orphan candidate
// set. Whatever inventory keys remain unmatched are orphans.
func (a *Auditor) Reconcile(versions []models.VersionRecord, inventory []models.InventoryRecord) *Report {
	report := &Report{}

	candidates := make(map[string]models.InventoryRecord, len(inventory))
	for _, rec := range inventory {
		candidates[rec.Key] = rec
	}

	for _, v := range versions {
		rec, ok := candidates[v.StorageKey]
		if !ok {
			report.Missing = append(report.Missing, MissingObject{
				AssetID:      v.AssetID,
				Key:          v.StorageKey,
				ExpectedSize: v.Size,
			})
			continue
		}

		delete(candidates, v.StorageKey)

		if rec.Size != v.Size {
			report.Mismatched = append(report.Mismatched, SizeMismatch{
				AssetID:     v.AssetID,
				Key:         v.StorageKey,
				CatalogSize: v.Size,
				StoreSize:   rec.Size,
				Delta:       rec.Size - v.Size,
			})
			continue
		}

		report.Matched++
	}

	for _, rec := range candidates {
		report.Orphaned = append(report.Orphaned, OrphanObject{
			Bucket: rec.Bucket,
			Key:    rec.Key,
			Size:   rec.Size,
		})
		report.OrphanedBytes += rec.Size
	}
	sort.Slice(report.Orphaned, func(i, j int) bool {
		return report.Orphaned[i].Key < report.Orphaned[j].Key
	})

	return report
}

// ObjectDeleter deletes one stored object; satisfied by *blobstore.Store.
type ObjectDeleter interface {
	Delete(ctx context.Context, bucket, key string) error
}

// CleanupOrphans deletes every orphaned object, strictly sequentially so
// progress accounting stays accurate and interruption between deletions is
// safe. The confirm callback gates the destructive step; per-object failures
// are counted, not fatal, and objects without a known bucket are skipped.
// Successfully deleted objects are removed from the report.
func (a *Auditor) CleanupOrphans(ctx context.Context, deleter ObjectDeleter, report *Report, confirm func(prompt string) bool) {
	if len(report.Orphaned) == 0 {
		return
	}

	prompt := fmt.Sprintf("Delete %d orphaned objects (%d bytes)?", len(report.Orphaned), report.OrphanedBytes)
	if !confirm(prompt) {
		a.Logger.Info(ctx, "orphan cleanup declined")
		return
	}

	remaining := report.Orphaned[:0]
	for _, o := range report.Orphaned {
		if o.Bucket == "" {
			a.Logger.Warn(ctx, "orphan has no bucket, skipping", "key", o.Key)
			remaining = append(remaining, o)
			continue
		}

		if err := deleter.Delete(ctx, o.Bucket, o.Key); err != nil {
			a.Logger.Error(ctx, "orphan deletion failed", "key", o.Key, "error", err)
			report.FailedDeletes++
			remaining = append(remaining, o)
			continue
		}

		report.DeletedOrphans++
		report.OrphanedBytes -= o.Size
	}
	report.Orphaned = remaining
}

// Export writes the report as indented JSON to a file.
func (r *Report) Export(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
