package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"flashbot-backend/internal/model"
	"flashbot-backend/internal/store"
	"flashbot-backend/pkg/money"
)

// shortBodyLen bounds the description excerpt handed to the language model.
const shortBodyLen = 240

// Retrieval is the resolved output of one query: display cards for the
// widget and context items for the model, in the same rank order.
type Retrieval struct {
	Cards   []model.Card
	Context []model.ContextItem
}

// Retriever turns a query into ranked, display-ready results.
type Retriever struct {
	store        store.CatalogStore
	storeBaseURL string
	topK         int
}

// NewRetriever creates a retriever over the catalog store. storeBaseURL is
// the public storefront origin used to build product and cart links.
func NewRetriever(st store.CatalogStore, storeBaseURL string, topK int) *Retriever {
	if topK <= 0 {
		topK = 5
	}
	return &Retriever{
		store:        st,
		storeBaseURL: strings.TrimRight(storeBaseURL, "/"),
		topK:         topK,
	}
}

// TopK returns the configured result count.
func (r *Retriever) TopK() int {
	return r.topK
}

// Retrieve runs a ranked search and resolves each hit into a card and a
// context item. Hits whose product vanished mid-swap are skipped.
func (r *Retriever) Retrieve(ctx context.Context, query string) (*Retrieval, error) {
	hits, err := r.store.Search(ctx, query, r.topK)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	out := &Retrieval{}
	for _, hit := range hits {
		card, item, err := r.resolve(ctx, hit.ProductID)
		if err != nil {
			log.Printf("[Retriever] Failed to resolve product %d: %v", hit.ProductID, err)
			continue
		}
		if card == nil {
			continue
		}
		out.Cards = append(out.Cards, *card)
		out.Context = append(out.Context, *item)
	}
	return out, nil
}

// resolve projects one product into its card and context item. Returns nils
// without error when the product or its variants are gone.
func (r *Retriever) resolve(ctx context.Context, productID int64) (*model.Card, *model.ContextItem, error) {
	product, err := r.store.Product(ctx, productID)
	if err != nil {
		return nil, nil, err
	}
	if product == nil {
		return nil, nil, nil
	}

	variants, err := r.store.Variants(ctx, productID)
	if err != nil {
		return nil, nil, err
	}
	if len(variants) == 0 {
		return nil, nil, nil
	}

	best, total, known := r.bestVariant(ctx, variants)

	inventory := "unknown"
	inStock := false
	if known {
		inventory = fmt.Sprintf("%d", total)
		inStock = total > 0
	}

	card := &model.Card{
		Title:      product.Title,
		Image:      product.Image,
		Price:      money.Format(best.Price),
		BuyURL:     fmt.Sprintf("%s/cart/%d:1", r.storeBaseURL, best.ID),
		ProductURL: fmt.Sprintf("%s/products/%s", r.storeBaseURL, product.Handle),
		Inventory:  inventory,
	}
	if best.CompareAtPrice != nil && *best.CompareAtPrice > best.Price {
		card.CompareAtPrice = money.Format(*best.CompareAtPrice)
	}

	item := &model.ContextItem{
		Title:          product.Title,
		Short:          shorten(product.Body, shortBodyLen),
		Tags:           product.Tags,
		Price:          best.Price,
		CompareAtPrice: best.CompareAtPrice,
		SKU:            best.SKU,
		InStock:        inStock,
	}
	return card, item, nil
}

// bestVariant picks the variant to feature: most total stock first, then
// lowest price, then lowest identifier. Variants with no stock record sort
// as zero but the product-level total stays "unknown" when no variant has
// any record at all.
func (r *Retriever) bestVariant(ctx context.Context, variants []model.Variant) (model.Variant, int, bool) {
	type scored struct {
		variant model.Variant
		total   int
		known   bool
	}

	ranked := make([]scored, 0, len(variants))
	productTotal := 0
	anyKnown := false

	for _, v := range variants {
		records, err := r.store.InventoryFor(ctx, v.InventoryItemID)
		if err != nil {
			log.Printf("[Retriever] Inventory lookup failed for item %d: %v", v.InventoryItemID, err)
			records = nil
		}

		total := 0
		for _, rec := range records {
			total += rec.Available
		}
		known := len(records) > 0
		if known {
			anyKnown = true
			productTotal += total
		}

		ranked = append(ranked, scored{variant: v, total: total, known: known})
	}

	best := ranked[0]
	for _, s := range ranked[1:] {
		if s.total != best.total {
			if s.total > best.total {
				best = s
			}
			continue
		}
		if s.variant.Price != best.variant.Price {
			if s.variant.Price < best.variant.Price {
				best = s
			}
			continue
		}
		if s.variant.ID < best.variant.ID {
			best = s
		}
	}

	return best.variant, productTotal, anyKnown
}

// shorten truncates s to at most n bytes on a word boundary.
func shorten(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	cut := s[:n]
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return cut + "…"
}

// CompactContext serializes the context items for the model prompt.
func CompactContext(items []model.ContextItem) string {
	data, err := json.Marshal(items)
	if err != nil {
		return "[]"
	}
	return string(data)
}
