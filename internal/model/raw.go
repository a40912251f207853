package model

import "strconv"

// Raw* types mirror the upstream commerce API payloads. Fields are optional
// on the wire; validation converts them into the strict catalog types and
// discards anything incomplete rather than propagating partial records.

// RawImage is an upstream product image.
type RawImage struct {
	ID  int64  `json:"id"`
	Src string `json:"src"`
}

// RawVariant is an upstream product variant. Prices arrive as strings.
type RawVariant struct {
	ID              int64  `json:"id"`
	ProductID       int64  `json:"product_id"`
	SKU             string `json:"sku"`
	Price           string `json:"price"`
	CompareAtPrice  string `json:"compare_at_price"`
	InventoryItemID int64  `json:"inventory_item_id"`
	ImageID         *int64 `json:"image_id"`
}

// PriceValue parses the variant price. ok is false when the price is missing
// or unusable.
func (v RawVariant) PriceValue() (float64, bool) {
	if v.Price == "" {
		return 0, false
	}
	p, err := strconv.ParseFloat(v.Price, 64)
	if err != nil {
		return 0, false
	}
	return p, true
}

// CompareAtValue parses the optional compare-at price, nil when absent.
func (v RawVariant) CompareAtValue() *float64 {
	if v.CompareAtPrice == "" {
		return nil
	}
	p, err := strconv.ParseFloat(v.CompareAtPrice, 64)
	if err != nil {
		return nil
	}
	return &p
}

// RawProduct is an upstream product with its variants and image gallery.
type RawProduct struct {
	ID          int64        `json:"id"`
	Title       string       `json:"title"`
	Handle      string       `json:"handle"`
	BodyHTML    string       `json:"body_html"`
	Status      string       `json:"status"`
	Tags        string       `json:"tags"`
	Vendor      string       `json:"vendor"`
	ProductType string       `json:"product_type"`
	Image       *RawImage    `json:"image"`
	Images      []RawImage   `json:"images"`
	Variants    []RawVariant `json:"variants"`
}

// RawLocation is an upstream stock location.
type RawLocation struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// RawLevel is an upstream inventory level row. Available may be null.
type RawLevel struct {
	InventoryItemID int64 `json:"inventory_item_id"`
	LocationID      int64 `json:"location_id"`
	Available       *int  `json:"available"`
}

// AvailableValue returns the available quantity, treating null as zero.
func (l RawLevel) AvailableValue() int {
	if l.Available == nil {
		return 0
	}
	return *l.Available
}
