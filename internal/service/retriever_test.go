package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flashbot-backend/internal/model"
)

func TestRetriever_CardFields(t *testing.T) {
	st := catalogStore()
	compareAt := 79.90
	st.variants[1][0].CompareAtPrice = &compareAt

	r := NewRetriever(st, "https://tienda.example.com/", 5)
	out, err := r.Retrieve(context.Background(), "zapatilla")
	require.NoError(t, err)
	require.Len(t, out.Cards, 2)

	card := out.Cards[0]
	assert.Equal(t, "Zapatilla Runner", card.Title)
	assert.Equal(t, "$59,90", card.Price)
	assert.Equal(t, "$79,90", card.CompareAtPrice)
	assert.Equal(t, "https://tienda.example.com/products/zapatilla-runner", card.ProductURL)
	assert.Equal(t, "https://tienda.example.com/cart/11:1", card.BuyURL)
	assert.Equal(t, "5", card.Inventory)

	// Product 2 has no stock records at all.
	assert.Equal(t, "unknown", out.Cards[1].Inventory)
	assert.False(t, out.Context[1].InStock)
}

func TestRetriever_CompareAtHiddenWhenNotHigher(t *testing.T) {
	st := catalogStore()
	same := 59.90
	st.variants[1][0].CompareAtPrice = &same

	r := NewRetriever(st, "https://tienda.example.com", 5)
	out, err := r.Retrieve(context.Background(), "zapatilla")
	require.NoError(t, err)
	assert.Empty(t, out.Cards[0].CompareAtPrice)
}

func TestRetriever_SkipsVanishedProducts(t *testing.T) {
	st := catalogStore()
	st.hits = append(st.hits, model.Hit{ProductID: 99, Score: 1, Source: "scan"})

	r := NewRetriever(st, "https://tienda.example.com", 5)
	out, err := r.Retrieve(context.Background(), "zapatilla")
	require.NoError(t, err)
	assert.Len(t, out.Cards, 2)
}

func TestRetriever_BestVariantOrdering(t *testing.T) {
	st := catalogStore()
	st.variants[1] = []model.Variant{
		{ID: 13, ProductID: 1, Price: 49.90, InventoryItemID: 9013},
		{ID: 11, ProductID: 1, Price: 59.90, InventoryItemID: 9011},
		{ID: 12, ProductID: 1, Price: 49.90, InventoryItemID: 9012},
	}
	st.inventory = map[int64][]model.InventoryRecord{
		9011: {{InventoryItemID: 9011, LocationID: 1, Available: 10}},
		9012: {{InventoryItemID: 9012, LocationID: 1, Available: 2}},
		9013: {{InventoryItemID: 9013, LocationID: 1, Available: 2}},
	}

	r := NewRetriever(st, "https://tienda.example.com", 5)
	out, err := r.Retrieve(context.Background(), "zapatilla")
	require.NoError(t, err)

	// Highest stock wins regardless of price.
	assert.Equal(t, "https://tienda.example.com/cart/11:1", out.Cards[0].BuyURL)
	// Product total sums every variant's records.
	assert.Equal(t, "14", out.Cards[0].Inventory)
}

func TestRetriever_BestVariantTieBreaks(t *testing.T) {
	st := catalogStore()
	st.variants[1] = []model.Variant{
		{ID: 14, ProductID: 1, Price: 59.90, InventoryItemID: 9014},
		{ID: 13, ProductID: 1, Price: 49.90, InventoryItemID: 9013},
		{ID: 12, ProductID: 1, Price: 49.90, InventoryItemID: 9012},
	}
	// No stock anywhere: price then ID decide.
	st.inventory = map[int64][]model.InventoryRecord{}

	r := NewRetriever(st, "https://tienda.example.com", 5)
	out, err := r.Retrieve(context.Background(), "zapatilla")
	require.NoError(t, err)

	assert.Equal(t, "https://tienda.example.com/cart/12:1", out.Cards[0].BuyURL)
	assert.Equal(t, "unknown", out.Cards[0].Inventory)
}

func TestCompactContext(t *testing.T) {
	items := []model.ContextItem{{Title: "Zapatilla", Price: 59.9, InStock: true}}
	out := CompactContext(items)
	assert.Contains(t, out, `"title":"Zapatilla"`)
	assert.Contains(t, out, `"in_stock":true`)
}

func TestShorten(t *testing.T) {
	assert.Equal(t, "corto", shorten("corto", 240))
	long := shorten("palabra uno dos tres cuatro cinco", 15)
	assert.LessOrEqual(t, len([]rune(long)), 17)
	assert.Contains(t, long, "…")
}
