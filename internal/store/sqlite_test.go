package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flashbot-backend/internal/model"
)

func testSnapshot() *Snapshot {
	compareAt := 99.90
	return &Snapshot{
		RawProducts: 4,
		Products: []model.Product{
			{ID: 1, Handle: "zapatilla-runner", Title: "Zapatilla Runner", Body: "Zapatilla ligera para correr", Tags: "running, calzado"},
			{ID: 2, Handle: "polera-basica", Title: "Polera Básica", Body: "Polera de algodón", Tags: "ropa"},
			{ID: 3, Handle: "zapatilla-urbana", Title: "Zapatilla Urbana", Body: "Para el día a día", Tags: "calzado"},
		},
		Variants: []model.Variant{
			{ID: 11, ProductID: 1, SKU: "RUN-40", Price: 59.90, CompareAtPrice: &compareAt, InventoryItemID: 9001},
			{ID: 12, ProductID: 1, SKU: "RUN-42", Price: 59.90, InventoryItemID: 9002},
			{ID: 21, ProductID: 2, SKU: "POL-M", Price: 12.50, InventoryItemID: 9003},
			{ID: 31, ProductID: 3, SKU: "URB-40", Price: 45.00, InventoryItemID: 9004},
		},
		Locations: []model.Location{{ID: 1, Name: "Bodega Central"}},
		Inventory: []model.InventoryRecord{
			{InventoryItemID: 9001, LocationID: 1, LocationName: "Bodega Central", Available: 5},
			{InventoryItemID: 9003, LocationID: 1, LocationName: "Bodega Central", Available: 0},
		},
		DiscardSample: []model.DiscardRecord{
			{ProductID: 4, Handle: "borrador", Title: "Borrador", Reason: "status_not_active"},
		},
		DiscardCounts: map[string]int{"status_not_active": 1},
	}
}

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore_UnavailableBeforeFirstBuild(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Search(ctx, "zapatilla", 5)
	assert.ErrorIs(t, err, model.ErrStoreUnavailable)

	_, err = s.Stats(ctx)
	assert.ErrorIs(t, err, model.ErrStoreUnavailable)

	_, err = s.Product(ctx, 1)
	assert.ErrorIs(t, err, model.ErrStoreUnavailable)
}

func TestSQLiteStore_RebuildAndRead(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	stats, err := s.Rebuild(ctx, testSnapshot())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Products)
	assert.Equal(t, 4, stats.Variants)
	assert.Equal(t, 2, stats.InventoryRows)
	assert.Equal(t, 4, stats.RawProducts)
	assert.Equal(t, 1, stats.TotalDiscarded())

	p, err := s.Product(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Zapatilla Runner", p.Title)

	missing, err := s.Product(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, missing)

	variants, err := s.Variants(ctx, 1)
	require.NoError(t, err)
	require.Len(t, variants, 2)
	require.NotNil(t, variants[0].CompareAtPrice)
	assert.Equal(t, 99.90, *variants[0].CompareAtPrice)
	assert.Nil(t, variants[1].CompareAtPrice)

	records, err := s.InventoryFor(ctx, 9001)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 5, records[0].Available)

	// No record is different from a zero record.
	none, err := s.InventoryFor(ctx, 9002)
	require.NoError(t, err)
	assert.Empty(t, none)

	storeStats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), storeStats["products"])
	assert.Equal(t, int64(4), storeStats["variants"])
}

func TestSQLiteStore_DiscardStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Rebuild(ctx, testSnapshot())
	require.NoError(t, err)

	discards, err := s.DiscardStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, discards.ByReason["status_not_active"])
	require.Len(t, discards.Sample, 1)
	assert.Equal(t, "Borrador", discards.Sample[0].Title)
}

func TestSQLiteStore_Search(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Rebuild(ctx, testSnapshot())
	require.NoError(t, err)

	hits, err := s.Search(ctx, "zapatilla", 5)
	require.NoError(t, err)
	require.Len(t, hits, 2)

	ids := []int64{hits[0].ProductID, hits[1].ProductID}
	assert.ElementsMatch(t, []int64{1, 3}, ids)

	// Accents in the query fold away for the scan path.
	hits, err = s.Search(ctx, "algodón", 5)
	require.NoError(t, err)
	if len(hits) > 0 {
		assert.Equal(t, int64(2), hits[0].ProductID)
	}

	// Empty query yields nothing without error.
	hits, err = s.Search(ctx, "  ¿? ", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSQLiteStore_SearchPrefixConsistent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	snap := testSnapshot()
	for i := int64(10); i < 20; i++ {
		snap.Products = append(snap.Products, model.Product{
			ID:     i,
			Handle: fmt.Sprintf("zapatilla-%d", i),
			Title:  fmt.Sprintf("Zapatilla Modelo %d", i),
			Body:   "Zapatilla deportiva",
			Tags:   "calzado",
		})
	}
	_, err := s.Rebuild(ctx, snap)
	require.NoError(t, err)

	three, err := s.Search(ctx, "zapatilla", 3)
	require.NoError(t, err)
	require.Len(t, three, 3)

	five, err := s.Search(ctx, "zapatilla", 5)
	require.NoError(t, err)
	require.Len(t, five, 5)

	// Increasing k only appends, it never reorders the prefix.
	assert.Equal(t, three, five[:3])
}

func TestSQLiteStore_RebuildReplacesWholeCatalog(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Rebuild(ctx, testSnapshot())
	require.NoError(t, err)

	next := &Snapshot{
		RawProducts:   1,
		Products:      []model.Product{{ID: 50, Handle: "gorro", Title: "Gorro Lana", Body: "Gorro tejido de lana", Tags: "invierno"}},
		Variants:      []model.Variant{{ID: 51, ProductID: 50, Price: 9.90, InventoryItemID: 9100}},
		DiscardCounts: map[string]int{},
	}
	_, err = s.Rebuild(ctx, next)
	require.NoError(t, err)

	// Old products are gone, queries see only the new generation.
	old, err := s.Product(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, old)

	p, err := s.Product(ctx, 50)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Gorro Lana", p.Title)
}

func TestSQLiteStore_EmptySnapshotStillPromotes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Rebuild(ctx, &Snapshot{DiscardCounts: map[string]int{}})
	require.NoError(t, err)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats["products"])

	hits, err := s.Search(ctx, "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSQLiteStore_ReattachesToNewestGeneration(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first, err := NewSQLiteStore(dir)
	require.NoError(t, err)
	_, err = first.Rebuild(ctx, testSnapshot())
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := NewSQLiteStore(dir)
	require.NoError(t, err)
	defer second.Close()

	p, err := second.Product(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Zapatilla Runner", p.Title)
}
