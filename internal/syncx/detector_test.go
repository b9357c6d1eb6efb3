package syncx

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vkuzmenko/photovault/internal/catalog"
	"github.com/vkuzmenko/photovault/internal/models"
	"github.com/vkuzmenko/photovault/internal/provider"
)

// fakeAsset is a minimal in-memory provider.Asset.
type fakeAsset struct {
	id         string
	capturedAt time.Time
	modifiedAt *time.Time
	trashed    bool
	width      int
	height     int
	renditions []provider.Rendition
	content    map[models.RenditionKind][]byte
	downloads  int
	dlErr      error
}

func (a *fakeAsset) ID() string            { return a.id }
func (a *fakeAsset) CapturedAt() time.Time { return a.capturedAt }
func (a *fakeAsset) ModifiedAt() (time.Time, bool) {
	if a.modifiedAt == nil {
		return time.Time{}, false
	}
	return *a.modifiedAt, true
}
func (a *fakeAsset) Trashed() bool                    { return a.trashed }
func (a *fakeAsset) Dimensions() (int, int)           { return a.width, a.height }
func (a *fakeAsset) Renditions() []provider.Rendition { return a.renditions }

func (a *fakeAsset) Download(_ context.Context, kind models.RenditionKind) (io.ReadCloser, error) {
	a.downloads++
	if a.dlErr != nil {
		return nil, a.dlErr
	}
	return io.NopCloser(bytes.NewReader(a.content[kind])), nil
}

func day(y int, m time.Month, d, hour int) time.Time {
	return time.Date(y, m, d, hour, 0, 0, 0, time.UTC)
}

func assetOn(id string, captured time.Time) *fakeAsset {
	return &fakeAsset{id: id, capturedAt: captured}
}

func TestBuildBlocks(t *testing.T) {
	assets := []provider.Asset{
		assetOn("a1", day(2024, time.May, 1, 9)),
		assetOn("a2", day(2024, time.May, 1, 12)),
		assetOn("b1", day(2024, time.May, 2, 8)),
	}

	blocks := BuildBlocks(assets)
	require.Len(t, blocks, 2)

	b := blocks[models.Date{Year: 2024, Month: time.May, Day: 1}]
	require.NotNil(t, b)
	assert.Equal(t, 2, b.Count)
	assert.Equal(t, day(2024, time.May, 1, 12), b.MaxDate)
	assert.Len(t, b.Assets, 2)
}

func TestBuildBlocks_ModifiedAtDrivesMaxDate(t *testing.T) {
	modified := day(2024, time.May, 3, 18)
	a := assetOn("a1", day(2024, time.May, 1, 9))
	a.modifiedAt = &modified

	blocks := BuildBlocks([]provider.Asset{a})

	b := blocks[models.Date{Year: 2024, Month: time.May, Day: 1}]
	require.NotNil(t, b)
	// The block key follows capture date; the max-date follows modification.
	assert.Equal(t, modified, b.MaxDate)
}

func TestDetect_DirtyAndCleanBlocks(t *testing.T) {
	dayA := models.Date{Year: 2024, Month: time.May, Day: 1}
	dayB := models.Date{Year: 2024, Month: time.May, Day: 2}

	var assets []provider.Asset
	for i := 0; i < 5; i++ {
		assets = append(assets, assetOn("a", day(2024, time.May, 1, 8+i)))
	}
	for i := 0; i < 3; i++ {
		assets = append(assets, assetOn("b", day(2024, time.May, 2, 8+i)))
	}
	local := BuildBlocks(assets)

	remote := map[models.Date]catalog.BlockSummary{
		// Counts differ from local: dirty.
		dayA: {Count: 4, MaxDate: day(2024, time.May, 1, 12)},
		// Counts and max-date agree: clean.
		dayB: {Count: 3, MaxDate: day(2024, time.May, 2, 10)},
	}

	d := &Detector{}
	selected := d.Detect(context.Background(), local, remote)

	require.Len(t, selected, 5)
	for _, a := range selected {
		assert.Equal(t, dayA, models.DateOf(a.CapturedAt()))
	}
}

func TestDetect_AbsentRemoteBlockIsDirty(t *testing.T) {
	local := BuildBlocks([]provider.Asset{assetOn("a1", day(2024, time.May, 1, 9))})

	d := &Detector{}
	selected := d.Detect(context.Background(), local, map[models.Date]catalog.BlockSummary{})

	assert.Len(t, selected, 1)
}

func TestDetect_StaleRemoteMaxDateIsDirty(t *testing.T) {
	dayA := models.Date{Year: 2024, Month: time.May, Day: 1}
	local := BuildBlocks([]provider.Asset{assetOn("a1", day(2024, time.May, 1, 12))})

	remote := map[models.Date]catalog.BlockSummary{
		dayA: {Count: 1, MaxDate: day(2024, time.May, 1, 9)},
	}

	d := &Detector{}
	assert.Len(t, d.Detect(context.Background(), local, remote), 1)
}

func TestDetect_ToleranceAbsorbsSkew(t *testing.T) {
	dayA := models.Date{Year: 2024, Month: time.May, Day: 1}
	local := BuildBlocks([]provider.Asset{assetOn("a1", day(2024, time.May, 1, 12))})

	// Remote lags by three hours.
	remote := map[models.Date]catalog.BlockSummary{
		dayA: {Count: 1, MaxDate: day(2024, time.May, 1, 9)},
	}

	strict := &Detector{}
	assert.Len(t, strict.Detect(context.Background(), local, remote), 1)

	lenient := &Detector{Tolerance: 4 * time.Hour}
	assert.Empty(t, lenient.Detect(context.Background(), local, remote))
}

func TestDetect_FullResyncSelectsEverything(t *testing.T) {
	dayB := models.Date{Year: 2024, Month: time.May, Day: 2}
	local := BuildBlocks([]provider.Asset{
		assetOn("a1", day(2024, time.May, 1, 9)),
		assetOn("b1", day(2024, time.May, 2, 9)),
	})

	// Remote matches exactly; full resync ignores it.
	remote := map[models.Date]catalog.BlockSummary{
		{Year: 2024, Month: time.May, Day: 1}: {Count: 1, MaxDate: day(2024, time.May, 1, 9)},
		dayB:                                  {Count: 1, MaxDate: day(2024, time.May, 2, 9)},
	}

	d := &Detector{FullResync: true}
	assert.Len(t, d.Detect(context.Background(), local, remote), 2)
}

func TestDetect_AscendingDateOrder(t *testing.T) {
	local := BuildBlocks([]provider.Asset{
		assetOn("c", day(2024, time.July, 10, 9)),
		assetOn("a", day(2024, time.March, 2, 9)),
		assetOn("b", day(2024, time.May, 5, 9)),
	})

	d := &Detector{}
	selected := d.Detect(context.Background(), local, nil)

	require.Len(t, selected, 3)
	for i := 1; i < len(selected); i++ {
		prev := models.DateOf(selected[i-1].CapturedAt())
		cur := models.DateOf(selected[i].CapturedAt())
		assert.True(t, prev.Before(cur), "expected ascending order, got %v then %v", prev, cur)
	}
}
