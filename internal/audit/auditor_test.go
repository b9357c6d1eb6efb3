package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vkuzmenko/photovault/internal/logging"
	"github.com/vkuzmenko/photovault/internal/models"
)

func newAuditor() *Auditor {
	return &Auditor{Logger: logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}
}

func TestReconcile_Partition(t *testing.T) {
	versions := []models.VersionRecord{
		{AssetID: "a1", StorageKey: "acc-1/k-matched", Size: 100},
		{AssetID: "a2", StorageKey: "acc-1/k-mismatched", Size: 200},
		{AssetID: "a3", StorageKey: "acc-1/k-missing", Size: 300},
	}
	inventory := []models.InventoryRecord{
		{Bucket: "photos", Key: "acc-1/k-matched", Size: 100},
		{Bucket: "photos", Key: "acc-1/k-mismatched", Size: 250},
		{Bucket: "photos", Key: "acc-1/k-orphan", Size: 50},
	}

	report := newAuditor().Reconcile(versions, inventory)

	assert.Equal(t, 1, report.Matched)

	require.Len(t, report.Missing, 1)
	assert.Equal(t, "a3", report.Missing[0].AssetID)
	assert.Equal(t, int64(300), report.Missing[0].ExpectedSize)

	require.Len(t, report.Mismatched, 1)
	assert.Equal(t, "acc-1/k-mismatched", report.Mismatched[0].Key)
	assert.Equal(t, int64(50), report.Mismatched[0].Delta)

	require.Len(t, report.Orphaned, 1)
	assert.Equal(t, "acc-1/k-orphan", report.Orphaned[0].Key)
	assert.Equal(t, int64(50), report.OrphanedBytes)

	// Every record and key lands in exactly one category.
	total := report.Matched + len(report.Missing) + len(report.Mismatched)
	assert.Equal(t, len(versions), total)
	assert.False(t, report.Clean())
}

func TestReconcile_CleanRun(t *testing.T) {
	versions := []models.VersionRecord{{AssetID: "a1", StorageKey: "k1", Size: 10}}
	inventory := []models.InventoryRecord{{Key: "k1", Size: 10}}

	report := newAuditor().Reconcile(versions, inventory)
	assert.True(t, report.Clean())
	assert.Equal(t, 1, report.Matched)
}

func TestReconcile_LargeInventorySingleMissing(t *testing.T) {
	var versions []models.VersionRecord
	var inventory []models.InventoryRecord
	for i := 0; i < 1000; i++ {
		key := fmt.Sprintf("acc-1/2024/05/01/a%04d/original/IMG.JPG", i)
		versions = append(versions, models.VersionRecord{AssetID: fmt.Sprintf("a%04d", i), StorageKey: key, Size: 10})
		if i == 500 {
			continue // the one object lost from the store
		}
		inventory = append(inventory, models.InventoryRecord{Key: key, Size: 10})
	}

	report := newAuditor().Reconcile(versions, inventory)

	assert.Equal(t, 999, report.Matched)
	require.Len(t, report.Missing, 1)
	assert.Equal(t, "a0500", report.Missing[0].AssetID)
	assert.Empty(t, report.Orphaned)
	assert.Empty(t, report.Mismatched)
}

func TestReconcile_OrphansSortedByKey(t *testing.T) {
	inventory := []models.InventoryRecord{
		{Key: "c", Size: 1}, {Key: "a", Size: 1}, {Key: "b", Size: 1},
	}

	report := newAuditor().Reconcile(nil, inventory)

	require.Len(t, report.Orphaned, 3)
	assert.Equal(t, "a", report.Orphaned[0].Key)
	assert.Equal(t, "b", report.Orphaned[1].Key)
	assert.Equal(t, "c", report.Orphaned[2].Key)
}

// fakeDeleter records deletions and can fail specific keys.
type fakeDeleter struct {
	deleted []string
	failKey string
}

func (f *fakeDeleter) Delete(_ context.Context, bucket, key string) error {
	if key == f.failKey {
		return errors.New("access denied")
	}
	f.deleted = append(f.deleted, bucket+"/"+key)
	return nil
}

func TestCleanupOrphans_Declined(t *testing.T) {
	report := newAuditor().Reconcile(nil, []models.InventoryRecord{{Bucket: "photos", Key: "k1", Size: 5}})

	del := &fakeDeleter{}
	newAuditor().CleanupOrphans(context.Background(), del, report, func(string) bool { return false })

	assert.Empty(t, del.deleted)
	assert.Len(t, report.Orphaned, 1)
	assert.Equal(t, 0, report.DeletedOrphans)
}

func TestCleanupOrphans_DeletesAndAccounts(t *testing.T) {
	report := newAuditor().Reconcile(nil, []models.InventoryRecord{
		{Bucket: "photos", Key: "k1", Size: 5},
		{Bucket: "photos", Key: "k2", Size: 7},
	})

	del := &fakeDeleter{}
	var prompted string
	newAuditor().CleanupOrphans(context.Background(), del, report, func(p string) bool {
		prompted = p
		return true
	})

	assert.Contains(t, prompted, "2 orphaned objects")
	assert.ElementsMatch(t, []string{"photos/k1", "photos/k2"}, del.deleted)
	assert.Equal(t, 2, report.DeletedOrphans)
	assert.Equal(t, int64(0), report.OrphanedBytes)
	assert.Empty(t, report.Orphaned)
	assert.True(t, report.Clean())
}

func TestCleanupOrphans_FailuresCountedAndKept(t *testing.T) {
	report := newAuditor().Reconcile(nil, []models.InventoryRecord{
		{Bucket: "photos", Key: "k1", Size: 5},
		{Bucket: "photos", Key: "k2", Size: 7},
	})

	del := &fakeDeleter{failKey: "k1"}
	newAuditor().CleanupOrphans(context.Background(), del, report, func(string) bool { return true })

	assert.Equal(t, 1, report.DeletedOrphans)
	assert.Equal(t, 1, report.FailedDeletes)
	require.Len(t, report.Orphaned, 1)
	assert.Equal(t, "k1", report.Orphaned[0].Key)
	assert.False(t, report.Clean())
}

func TestCleanupOrphans_SkipsUnknownBucket(t *testing.T) {
	report := newAuditor().Reconcile(nil, []models.InventoryRecord{{Key: "k1", Size: 5}})

	del := &fakeDeleter{}
	newAuditor().CleanupOrphans(context.Background(), del, report, func(string) bool { return true })

	assert.Empty(t, del.deleted)
	assert.Len(t, report.Orphaned, 1)
}

func TestReport_Export(t *testing.T) {
	report := newAuditor().Reconcile(
		[]models.VersionRecord{{AssetID: "a1", StorageKey: "k1", Size: 10}},
		[]models.InventoryRecord{{Key: "k2", Size: 3}},
	)

	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, report.Export(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got Report
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Len(t, got.Missing, 1)
	assert.Len(t, got.Orphaned, 1)
}
