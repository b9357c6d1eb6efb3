// Package audit reconciles a bulk blob-store inventory against the catalog's
// version records: missing objects, size mismatches, and orphans, with
// optional destructive orphan cleanup.
package audit

import (
	"bufio"
	"compress/gzip"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/vkuzmenko/photovault/internal/models"
)

// Inventory row layout: bucket,key,size,lastmodifieddate,etag.
const inventoryColumns = 5

// gzipMagic is the two-byte gzip stream prefix.
var gzipMagic = []byte{0x1f, 0x8b}

// ReadInventory parses a bulk inventory export. A gzip-compressed source is
// detected by its magic bytes and decompressed transparently; a header row
// is auto-detected and skipped. Malformed rows are skipped silently with a
// running count, per the error policy: only a completely unreadable source
// is an error.
func ReadInventory(r io.Reader) ([]models.InventoryRecord, int, error) {
	br := bufio.NewReader(r)

	head, err := br.Peek(2)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, 0, fmt.Errorf("cannot read inventory: %w", err)
	}

	var src io.Reader = br
	if len(head) == 2 && head[0] == gzipMagic[0] && head[1] == gzipMagic[1] {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, 0, fmt.Errorf("cannot read inventory: %w", err)
		}
		defer func() {
			_ = gz.Close()
		}()
		src = gz
	}

	reader := csv.NewReader(src)
	reader.FieldsPerRecord = -1

	var (
		records []models.InventoryRecord
		skipped int
		first   = true
	)

	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			skipped++
			continue
		}

		if first {
			first = false
			if isHeaderRow(row) {
				continue
			}
		}

		rec, ok := parseInventoryRow(row)
		if !ok {
			skipped++
			continue
		}
		records = append(records, rec)
	}

	return records, skipped, nil
}

// OpenInventory reads an inventory export from a local file.
func OpenInventory(path string) ([]models.InventoryRecord, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("cannot read inventory: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	return ReadInventory(f)
}

// isHeaderRow detects an optional header: the size column of a data row is
// always numeric.
func isHeaderRow(row []string) bool {
	if len(row) < 3 {
		return false
	}
	_, err := strconv.ParseInt(strings.TrimSpace(row[2]), 10, 64)
	return err != nil
}

func parseInventoryRow(row []string) (models.InventoryRecord, bool) {
	if len(row) < inventoryColumns {
		return models.InventoryRecord{}, false
	}

	size, err := strconv.ParseInt(strings.TrimSpace(row[2]), 10, 64)
	if err != nil {
		return models.InventoryRecord{}, false
	}

	key := strings.TrimSpace(row[1])
	if key == "" {
		return models.InventoryRecord{}, false
	}

	rec := models.InventoryRecord{
		Bucket: strings.TrimSpace(row[0]),
		Key:    key,
		Size:   size,
		ETag:   strings.Trim(strings.TrimSpace(row[4]), `"`),
	}

	// Last-modified is informational; a bad timestamp does not disqualify
	// the row.
	if t, err := time.Parse(time.RFC3339, strings.TrimSpace(row[3])); err == nil {
		rec.LastModified = t
	}

	return rec, true
}
