// Package service orchestrates the pipeline stages: building the catalog
// index, scheduling rebuilds, retrieving ranked hits, and assembling answers.
package service

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"

	"flashbot-backend/internal/catalog"
	"flashbot-backend/internal/model"
	"flashbot-backend/internal/shopify"
	"flashbot-backend/internal/store"
)

// discardSampleLimit bounds the per-build discard sample kept for diagnostics.
const discardSampleLimit = 20

// ErrBuildInProgress is returned when a rebuild is requested while another
// one is still running.
var ErrBuildInProgress = fmt.Errorf("catalog rebuild already in progress")

// Indexer drives one full ingestion pass: fetch, validate, merge inventory,
// and promote a fresh store generation.
type Indexer struct {
	api      shopify.API
	store    store.CatalogStore
	building atomic.Bool
}

// NewIndexer creates an indexer over the given API and store.
func NewIndexer(api shopify.API, st store.CatalogStore) *Indexer {
	return &Indexer{api: api, store: st}
}

// Building reports whether a rebuild is currently running.
func (ix *Indexer) Building() bool {
	return ix.building.Load()
}

// Rebuild runs one ingestion pass. Only one rebuild runs at a time; a second
// caller gets ErrBuildInProgress instead of queueing.
//
// Upstream stages degrade rather than abort: a failed stage contributes an
// empty result and the build continues, so a partial catalog still gets
// promoted and served.
func (ix *Indexer) Rebuild(ctx context.Context) (model.BuildStats, error) {
	if !ix.building.CompareAndSwap(false, true) {
		return model.BuildStats{}, ErrBuildInProgress
	}
	defer ix.building.Store(false)

	log.Printf("[Indexer] Rebuild started")

	locations, err := ix.api.ListLocations(ctx)
	if err != nil {
		log.Printf("[Indexer] Locations fetch failed, continuing without location names: %v", err)
		locations = nil
	}

	rawProducts, err := ix.api.ListProducts(ctx)
	if err != nil {
		log.Printf("[Indexer] Products fetch failed, building empty catalog: %v", err)
		rawProducts = nil
	}

	snap := ix.validate(rawProducts)

	itemIDs := make([]int64, 0, len(snap.Variants))
	for _, v := range snap.Variants {
		itemIDs = append(itemIDs, v.InventoryItemID)
	}

	var levels []model.RawLevel
	if len(itemIDs) > 0 {
		levels, err = ix.api.InventoryLevels(ctx, itemIDs)
		if err != nil {
			log.Printf("[Indexer] Inventory fetch failed, continuing without stock: %v", err)
			levels = nil
		}
	}

	merged := catalog.MergeInventory(levels, locations)
	for _, records := range merged {
		snap.Inventory = append(snap.Inventory, records...)
	}
	for _, loc := range locations {
		snap.Locations = append(snap.Locations, model.Location{ID: loc.ID, Name: loc.Name})
	}

	if len(snap.Products) == 0 {
		log.Printf("[Indexer] WARNING: promoting empty catalog (%d raw products, all rejected or none fetched)", snap.RawProducts)
	}

	stats, err := ix.store.Rebuild(ctx, snap)
	if err != nil {
		return model.BuildStats{}, fmt.Errorf("failed to rebuild store: %w", err)
	}

	log.Printf("[Indexer] Rebuild done - %d/%d products kept, %d variants, %d inventory rows, discarded %v, took %s",
		stats.Products, stats.RawProducts, stats.Variants, stats.InventoryRows, stats.Discarded, stats.Duration)
	return stats, nil
}

// validate applies the inclusion policy to every raw product and assembles
// the persistable part of the snapshot plus discard telemetry.
func (ix *Indexer) validate(rawProducts []model.RawProduct) *store.Snapshot {
	snap := &store.Snapshot{
		RawProducts:   len(rawProducts),
		DiscardCounts: make(map[string]int),
	}

	for _, raw := range rawProducts {
		ok, reason := catalog.CheckProduct(raw)
		if !ok {
			snap.DiscardCounts[reason]++
			if len(snap.DiscardSample) < discardSampleLimit {
				snap.DiscardSample = append(snap.DiscardSample, model.DiscardRecord{
					ProductID: raw.ID,
					Handle:    raw.Handle,
					Title:     raw.Title,
					Reason:    reason,
				})
			}
			continue
		}

		snap.Products = append(snap.Products, catalog.ToProduct(raw))
		for _, rv := range catalog.ValidVariants(raw.Variants) {
			snap.Variants = append(snap.Variants, catalog.ToVariant(raw.ID, rv))
		}
	}

	return snap
}
