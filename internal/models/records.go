package models

import "time"

// InventoryRecord is one row of a bulk blob-store inventory export.
// Used only by the auditor, never persisted.
type InventoryRecord struct {
	Bucket       string
	Key          string
	Size         int64
	LastModified time.Time
	ETag         string
}

// VersionRecord is the catalog's own record of one stored rendition, fetched
// via the version listing and reconciled against the inventory.
type VersionRecord struct {
	AssetID    string `json:"asset_id"`
	StorageKey string `json:"storage_key"`
	Size       int64  `json:"size"`
}
