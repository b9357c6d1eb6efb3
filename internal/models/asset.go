package models

import "time"

// RenditionKind names one derived representation of an asset.
type RenditionKind string

const (
	RenditionOriginal  RenditionKind = "original"
	RenditionLive      RenditionKind = "live"
	RenditionThumbnail RenditionKind = "thumbnail"
	RenditionMedium    RenditionKind = "medium"
)

// RenditionRecord is the catalog-bound description of one uploaded (or
// dedup-skipped) rendition. StorageKey is deterministic:
// {account}/{YYYY/MM/DD}/{asset-id}/{kind}/{filename}.
type RenditionRecord struct {
	Kind        RenditionKind `json:"kind"`
	StorageKey  string        `json:"storage_key"`
	Filename    string        `json:"filename"`
	Width       int           `json:"width"`
	Height      int           `json:"height"`
	Size        int64         `json:"size"`
	ContentType string        `json:"content_type"`
	Checksum    string        `json:"checksum,omitempty"`
}

// AssetRecord is one catalog batch-upsert item. The ID is the asset's stable
// provider-assigned identity; paths are stripped of any local filesystem
// prefix before leaving the device.
type AssetRecord struct {
	ID         string            `json:"id"`
	CapturedAt time.Time         `json:"captured_at"`
	ModifiedAt *time.Time        `json:"modified_at,omitempty"`
	Width      int               `json:"width"`
	Height     int               `json:"height"`
	Trashed    bool              `json:"trashed"`
	Renditions []RenditionRecord `json:"renditions"`
}
