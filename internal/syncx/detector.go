// Package syncx implements the push side of library synchronization: the
// discrepancy detector that picks which local assets are out of date, and
// the batch dispatcher that uploads renditions and pushes metadata.
package syncx

import (
	"context"
	"sort"
	"time"

	"github.com/vkuzmenko/photovault/internal/catalog"
	"github.com/vkuzmenko/photovault/internal/logging"
	"github.com/vkuzmenko/photovault/internal/models"
	"github.com/vkuzmenko/photovault/internal/provider"
)

// Block is a day-granularity aggregation of local assets: a count and the
// max of modified-or-captured timestamps. Recomputed on every run, never
// persisted.
type Block struct {
	Date    models.Date
	Count   int
	MaxDate time.Time
	Assets  []provider.Asset
}

// effectiveDate is the asset's modification time when known, else its
// capture time. Block max-dates aggregate this value.
func effectiveDate(a provider.Asset) time.Time {
	if m, ok := a.ModifiedAt(); ok {
		return m.UTC()
	}
	return a.CapturedAt().UTC()
}

// BuildBlocks groups assets into day blocks keyed by their UTC capture date.
func BuildBlocks(assets []provider.Asset) map[models.Date]*Block {
	blocks := make(map[models.Date]*Block)
	for _, a := range assets {
		d := models.DateOf(a.CapturedAt())
		b, ok := blocks[d]
		if !ok {
			b = &Block{Date: d}
			blocks[d] = b
		}
		b.Count++
		b.Assets = append(b.Assets, a)
		if ed := effectiveDate(a); ed.After(b.MaxDate) {
			b.MaxDate = ed
		}
	}
	return blocks
}

// Detector decides which blocks are dirty against the remote summary.
type Detector struct {
	// Tolerance widens the max-date comparison: a block is only dirty on
	// dates when the local max exceeds the remote max by more than this.
	// Default 0 (any strictly newer local max is dirty); raise it when
	// clock or timezone skew between device and catalog causes churn.
	Tolerance time.Duration

	// FullResync treats every block as dirty, bypassing the comparison.
	FullResync bool

	Logger logging.Logger
}

// Detect returns the assets of all dirty blocks, in ascending block-date
// order. A block is dirty when the remote summary has no entry for its day,
// or the counts differ, or the remote max-date is older than the local
// max-date (beyond Tolerance). Clean blocks contribute nothing.
func (d *Detector) Detect(ctx context.Context, local map[models.Date]*Block, remote map[models.Date]catalog.BlockSummary) []provider.Asset {
	dates := make([]models.Date, 0, len(local))
	for date := range local {
		dates = append(dates, date)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	var selected []provider.Asset
	dirty := 0

	for _, date := range dates {
		b := local[date]
		if !d.FullResync {
			if r, ok := remote[date]; ok && r.Count == b.Count && !r.MaxDate.Add(d.Tolerance).Before(b.MaxDate) {
				continue
			}
		}
		dirty++
		selected = append(selected, b.Assets...)
	}

	if d.Logger != nil {
		d.Logger.Info(ctx, "discrepancy detection finished",
			"blocks", len(local), "dirty", dirty, "selected", len(selected), "full_resync", d.FullResync)
	}

	return selected
}
