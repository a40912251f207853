package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flashbot-backend/internal/model"
	"flashbot-backend/internal/store"
)

// fakeAPI scripts the upstream catalog responses per stage.
type fakeAPI struct {
	locations    []model.RawLocation
	locationsErr error
	products     []model.RawProduct
	productsErr  error
	levels       []model.RawLevel
	levelsErr    error

	inventoryCalls int
}

func (f *fakeAPI) ListLocations(ctx context.Context) ([]model.RawLocation, error) {
	return f.locations, f.locationsErr
}

func (f *fakeAPI) ListProducts(ctx context.Context) ([]model.RawProduct, error) {
	return f.products, f.productsErr
}

func (f *fakeAPI) InventoryLevels(ctx context.Context, ids []int64) ([]model.RawLevel, error) {
	f.inventoryCalls++
	return f.levels, f.levelsErr
}

func rawCatalog() []model.RawProduct {
	return []model.RawProduct{
		{
			ID: 1, Title: "Zapatilla Runner", Handle: "zapatilla-runner", Status: "active",
			BodyHTML: "<p>Una zapatilla ligera para correr.</p>",
			Image:    &model.RawImage{Src: "https://cdn.example.com/1.jpg"},
			Variants: []model.RawVariant{
				{ID: 11, Price: "59.90", InventoryItemID: 9001},
				{ID: 12, Price: "bad-price", InventoryItemID: 9002}, // dropped variant, product survives
			},
		},
		{
			ID: 2, Title: "Borrador", Handle: "borrador", Status: "draft",
			BodyHTML: "<p>Nunca debería aparecer en el índice.</p>",
			Image:    &model.RawImage{Src: "https://cdn.example.com/2.jpg"},
			Variants: []model.RawVariant{{ID: 21, Price: "10.00", InventoryItemID: 9003}},
		},
		{
			ID: 3, Title: "Sin Imagen", Handle: "sin-imagen", Status: "active",
			BodyHTML: "<p>Producto sin ninguna imagen asociada.</p>",
			Variants: []model.RawVariant{{ID: 31, Price: "10.00", InventoryItemID: 9004}},
		},
	}
}

func newIndexerWithStore(t *testing.T, api *fakeAPI) (*Indexer, store.CatalogStore) {
	t.Helper()
	st, err := store.NewSQLiteStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return NewIndexer(api, st), st
}

func TestIndexer_RebuildAccountsForEveryRawProduct(t *testing.T) {
	five := 5
	api := &fakeAPI{
		locations: []model.RawLocation{{ID: 1, Name: "Bodega Central"}},
		products:  rawCatalog(),
		levels:    []model.RawLevel{{InventoryItemID: 9001, LocationID: 1, Available: &five}},
	}
	ix, st := newIndexerWithStore(t, api)

	stats, err := ix.Rebuild(context.Background())
	require.NoError(t, err)

	// Every raw product is either persisted or counted in exactly one reason.
	assert.Equal(t, 3, stats.RawProducts)
	assert.Equal(t, 1, stats.Products)
	assert.Equal(t, stats.RawProducts, stats.Products+stats.TotalDiscarded())
	assert.Equal(t, 1, stats.Discarded["status_not_active"])
	assert.Equal(t, 1, stats.Discarded["no_image"])

	// Only the parseable variant of the kept product is persisted.
	assert.Equal(t, 1, stats.Variants)

	records, err := st.InventoryFor(context.Background(), 9001)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Bodega Central", records[0].LocationName)
}

func TestIndexer_ProductsFetchFailureDegradesToEmptyCatalog(t *testing.T) {
	api := &fakeAPI{productsErr: errors.New("upstream down")}
	ix, st := newIndexerWithStore(t, api)

	stats, err := ix.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Products)

	// The empty generation is still promoted and serves reads.
	storeStats, err := st.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), storeStats["products"])

	// No variants means no inventory lookups at all.
	assert.Zero(t, api.inventoryCalls)
}

func TestIndexer_InventoryFailureKeepsProducts(t *testing.T) {
	api := &fakeAPI{
		products:  rawCatalog(),
		levelsErr: errors.New("inventory endpoint down"),
	}
	ix, st := newIndexerWithStore(t, api)

	stats, err := ix.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Products)
	assert.Zero(t, stats.InventoryRows)

	// Stock becomes "no record", not an error.
	records, err := st.InventoryFor(context.Background(), 9001)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestIndexer_LocationsFailureKeepsInventory(t *testing.T) {
	five := 5
	api := &fakeAPI{
		locationsErr: errors.New("locations endpoint down"),
		products:     rawCatalog(),
		levels:       []model.RawLevel{{InventoryItemID: 9001, LocationID: 1, Available: &five}},
	}
	ix, st := newIndexerWithStore(t, api)

	_, err := ix.Rebuild(context.Background())
	require.NoError(t, err)

	records, err := st.InventoryFor(context.Background(), 9001)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Empty(t, records[0].LocationName)
	assert.Equal(t, 5, records[0].Available)
}

func TestIndexer_BuildingFlag(t *testing.T) {
	api := &fakeAPI{products: rawCatalog()}
	ix, _ := newIndexerWithStore(t, api)

	assert.False(t, ix.Building())
	_, err := ix.Rebuild(context.Background())
	require.NoError(t, err)
	assert.False(t, ix.Building())
}
