// Package store persists the indexed catalog and serves ranked lookups over
// it. A rebuild always constructs a fresh generation and promotes it
// atomically, so queries never observe a half-populated catalog.
package store

import (
	"context"
	"time"

	"flashbot-backend/internal/model"
)

// Snapshot is one complete, validated catalog as produced by a build run.
type Snapshot struct {
	Products      []model.Product
	Variants      []model.Variant
	Locations     []model.Location
	Inventory     []model.InventoryRecord
	DiscardSample []model.DiscardRecord
	DiscardCounts map[string]int
	RawProducts   int
}

// DiscardStats reports why products were rejected: full counts per reason
// plus a bounded sample of the rejected records.
type DiscardStats struct {
	ByReason map[string]int        `json:"by_reason"`
	Sample   []model.DiscardRecord `json:"sample"`
}

// CatalogStore is the catalog index contract. Rebuild is single-writer;
// all other methods are read-only and safe to call concurrently, including
// concurrently with a rebuild.
type CatalogStore interface {
	// Rebuild replaces the entire catalog with the snapshot and promotes it
	// as the new generation.
	Rebuild(ctx context.Context, snap *Snapshot) (model.BuildStats, error)

	// Search returns up to k ranked hits for the query text.
	Search(ctx context.Context, query string, k int) ([]model.Hit, error)

	// Product fetches one product by ID, nil when absent.
	Product(ctx context.Context, id int64) (*model.Product, error)

	// Variants lists the persisted variants of a product.
	Variants(ctx context.Context, productID int64) ([]model.Variant, error)

	// InventoryFor lists the per-location stock records of an inventory item.
	// An empty result means "no stock record", not zero.
	InventoryFor(ctx context.Context, inventoryItemID int64) ([]model.InventoryRecord, error)

	// SampleProducts returns the first n indexed products, for diagnostics.
	SampleProducts(ctx context.Context, n int) ([]model.Product, error)

	// Stats returns counts and metadata of the current generation.
	Stats(ctx context.Context) (map[string]interface{}, error)

	// DiscardStats returns the discard telemetry of the current generation.
	DiscardStats(ctx context.Context) (*DiscardStats, error)

	// Close releases the current generation.
	Close() error
}

// buildStats assembles the BuildStats for a promoted snapshot.
func buildStats(snap *Snapshot, fullText bool, start time.Time) model.BuildStats {
	counts := make(map[string]int, len(snap.DiscardCounts))
	for reason, c := range snap.DiscardCounts {
		counts[reason] = c
	}
	return model.BuildStats{
		RawProducts:   snap.RawProducts,
		Products:      len(snap.Products),
		Variants:      len(snap.Variants),
		InventoryRows: len(snap.Inventory),
		Discarded:     counts,
		FullText:      fullText,
		BuiltAt:       start,
		Duration:      time.Since(start),
	}
}
