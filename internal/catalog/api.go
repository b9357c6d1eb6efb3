package catalog

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/vkuzmenko/photovault/internal/models"
)

// BatchItemResult is the catalog's verdict on one batch-upsert item.
type BatchItemResult struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Action  string `json:"action"` // created | updated | error
	Error   string `json:"error,omitempty"`
}

// BatchResult aggregates one batch-upsert call. For every pushed batch,
// Created + Updated + Errors equals the batch size.
type BatchResult struct {
	Results []BatchItemResult `json:"results"`
	Created int               `json:"created"`
	Updated int               `json:"updated"`
	Errors  int               `json:"errors"`
}

// BlockSummary is the remote per-day aggregate used by the detector.
type BlockSummary struct {
	Count   int       `json:"count"`
	MaxDate time.Time `json:"max_date"`
}

// BatchUpsert pushes a batch of asset records. Per-item failures are
// reported in the result, not as an error.
func (c *Client) BatchUpsert(ctx context.Context, assets []models.AssetRecord) (*BatchResult, error) {
	req := map[string]any{"assets": assets}

	var resp BatchResult
	if err := c.do(ctx, http.MethodPost, "/batch-upsert", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// BlockSummaries fetches the remote day summaries. The wire format is a
// nested year→month→day object; it is flattened to a single map keyed by
// models.Date.
func (c *Client) BlockSummaries(ctx context.Context) (map[models.Date]BlockSummary, error) {
	var resp struct {
		Blocks map[string]map[string]map[string]BlockSummary `json:"blocks"`
	}
	if err := c.do(ctx, http.MethodGet, "/block-summary", nil, &resp); err != nil {
		return nil, err
	}

	out := make(map[models.Date]BlockSummary)
	for ys, months := range resp.Blocks {
		year, err := strconv.Atoi(ys)
		if err != nil {
			return nil, fmt.Errorf("malformed block summary year %q", ys)
		}
		for ms, days := range months {
			month, err := strconv.Atoi(ms)
			if err != nil {
				return nil, fmt.Errorf("malformed block summary month %q", ms)
			}
			for ds, summary := range days {
				day, err := strconv.Atoi(ds)
				if err != nil {
					return nil, fmt.Errorf("malformed block summary day %q", ds)
				}
				out[models.Date{Year: year, Month: time.Month(month), Day: day}] = summary
			}
		}
	}
	return out, nil
}

// UpsertAsset creates or replaces a single asset record (non-batch path).
func (c *Client) UpsertAsset(ctx context.Context, asset *models.AssetRecord) error {
	return c.do(ctx, http.MethodPost, "/assets/"+asset.ID, asset, nil)
}

// PatchAsset partially updates a single asset record.
func (c *Client) PatchAsset(ctx context.Context, id string, fields map[string]any) error {
	return c.do(ctx, http.MethodPatch, "/assets/"+id, fields, nil)
}

// DeleteAsset removes an asset record by its stable identity.
func (c *Client) DeleteAsset(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/assets/"+id, nil, nil)
}

// ListVersions fetches the catalog's full listing of stored version records,
// consumed by the reconciliation auditor.
func (c *Client) ListVersions(ctx context.Context) ([]models.VersionRecord, error) {
	var resp struct {
		Versions []models.VersionRecord `json:"versions"`
	}
	if err := c.do(ctx, http.MethodGet, "/versions", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Versions, nil
}
