package model

import "time"

// Product is an indexed catalog product. Products are owned by the catalog
// store and only created or replaced during a rebuild.
type Product struct {
	ID          int64  `json:"id"`
	Handle      string `json:"handle"`
	Title       string `json:"title"`
	Body        string `json:"body"` // plain text, markup already stripped
	Tags        string `json:"tags"` // comma-delimited, as published upstream
	Vendor      string `json:"vendor"`
	ProductType string `json:"product_type"`
	Image       string `json:"image"` // hero image URL, may be empty
}

// Variant is a purchasable configuration of a product. Every persisted
// variant belongs to exactly one persisted product and passed validation.
type Variant struct {
	ID              int64    `json:"id"`
	ProductID       int64    `json:"product_id"`
	SKU             string   `json:"sku"`
	Price           float64  `json:"price"`
	CompareAtPrice  *float64 `json:"compare_at_price,omitempty"`
	InventoryItemID int64    `json:"inventory_item_id"`
}

// Location is a stock location, used only to annotate inventory rows.
type Location struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// InventoryRecord is the available quantity of one inventory item at one
// location. The absence of a record means "no stock record", not zero.
type InventoryRecord struct {
	InventoryItemID int64  `json:"inventory_item_id"`
	LocationID      int64  `json:"location_id"`
	LocationName    string `json:"location"`
	Available       int    `json:"available"`
}

// DiscardRecord explains why a raw product was rejected during a rebuild.
// Diagnostic only, never part of the served data.
type DiscardRecord struct {
	ProductID int64  `json:"product_id"`
	Handle    string `json:"handle"`
	Title     string `json:"title"`
	Reason    string `json:"reason"`
}

// BuildStats summarizes one rebuild for observability.
type BuildStats struct {
	RawProducts   int            `json:"raw_products"`
	Products      int            `json:"products"`
	Variants      int            `json:"variants"`
	InventoryRows int            `json:"inventory_rows"`
	Discarded     map[string]int `json:"discarded_by_reason"`
	FullText      bool           `json:"full_text"`
	BuiltAt       time.Time      `json:"built_at"`
	Duration      time.Duration  `json:"duration"`
}

// TotalDiscarded returns the number of raw products rejected across all
// reasons.
func (s BuildStats) TotalDiscarded() int {
	n := 0
	for _, c := range s.Discarded {
		n += c
	}
	return n
}

// Hit is a ranked search match, prior to card resolution.
type Hit struct {
	ProductID int64   `json:"product_id"`
	Score     float64 `json:"score"`
	Source    string  `json:"source"` // "fts" or "scan"
}

// Card is the display-ready projection of a hit served to the widget.
type Card struct {
	Title          string `json:"title"`
	Image          string `json:"image"`
	Price          string `json:"price"`
	CompareAtPrice string `json:"compare_at_price,omitempty"`
	BuyURL         string `json:"buy_url"`
	ProductURL     string `json:"product_url"`
	Inventory      string `json:"inventory"` // total available, or "unknown"
}

// ContextItem is the slice of a hit the language model is allowed to reason
// over. Internal identifiers are deliberately excluded.
type ContextItem struct {
	Title          string   `json:"title"`
	Short          string   `json:"short"`
	Tags           string   `json:"tags,omitempty"`
	Price          float64  `json:"price"`
	CompareAtPrice *float64 `json:"compare_at_price,omitempty"`
	SKU            string   `json:"sku,omitempty"`
	InStock        bool     `json:"in_stock"`
}

// ChatAnswer is the response shape of the chat endpoint.
type ChatAnswer struct {
	Answer   string `json:"answer"`
	Products []Card `json:"products"`
}
