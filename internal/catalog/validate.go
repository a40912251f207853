// Package catalog normalizes and validates raw upstream records before they
// are persisted, and joins inventory levels with location metadata.
package catalog

import (
	"strings"

	"flashbot-backend/internal/model"
	"flashbot-backend/pkg/htmltext"
)

// Discard reason codes. Every rejected product is counted under exactly one.
const (
	ReasonStatusNotActive   = "status_not_active"
	ReasonNoImage           = "no_image"
	ReasonNoBody            = "no_body"
	ReasonNoVariantComplete = "no_variant_complete"
)

// minBodyLen is the minimum plain-text description length for inclusion.
const minBodyLen = 10

// CheckProduct applies the store inclusion policy to a raw product. When the
// product is rejected, reason names the first rule it violated.
func CheckProduct(p model.RawProduct) (ok bool, reason string) {
	if p.Status != "active" {
		return false, ReasonStatusNotActive
	}

	if !hasAnyImage(p) {
		return false, ReasonNoImage
	}

	body := htmltext.Strip(p.BodyHTML)
	if len(strings.TrimSpace(body)) < minBodyLen {
		return false, ReasonNoBody
	}

	if len(ValidVariants(p.Variants)) == 0 {
		return false, ReasonNoVariantComplete
	}

	return true, ""
}

// hasAnyImage reports whether the product carries a hero image, a gallery
// image, or at least one variant-level image.
func hasAnyImage(p model.RawProduct) bool {
	if p.Image != nil && p.Image.Src != "" {
		return true
	}
	if len(p.Images) > 0 {
		return true
	}
	for _, v := range p.Variants {
		if v.ImageID != nil {
			return true
		}
	}
	return false
}

// ValidVariants returns the variants that carry everything the retrieval
// layer needs: a usable price and an inventory item identifier for the
// inventory join. Stock is judged later, at card resolution, where a missing
// record means "unknown" rather than zero.
func ValidVariants(variants []model.RawVariant) []model.RawVariant {
	var out []model.RawVariant
	for _, v := range variants {
		if _, ok := v.PriceValue(); !ok {
			continue
		}
		if v.InventoryItemID == 0 {
			continue
		}
		out = append(out, v)
	}
	return out
}

// HeroImage picks the representative image deterministically: the declared
// hero image first, otherwise the first gallery image.
func HeroImage(p model.RawProduct) string {
	if p.Image != nil && p.Image.Src != "" {
		return p.Image.Src
	}
	if len(p.Images) > 0 {
		return p.Images[0].Src
	}
	return ""
}

// ToProduct converts an accepted raw product into its persisted form.
func ToProduct(p model.RawProduct) model.Product {
	return model.Product{
		ID:          p.ID,
		Handle:      p.Handle,
		Title:       p.Title,
		Body:        htmltext.Strip(p.BodyHTML),
		Tags:        p.Tags,
		Vendor:      p.Vendor,
		ProductType: p.ProductType,
		Image:       HeroImage(p),
	}
}

// ToVariant converts a valid raw variant into its persisted form.
func ToVariant(productID int64, v model.RawVariant) model.Variant {
	price, _ := v.PriceValue()
	return model.Variant{
		ID:              v.ID,
		ProductID:       productID,
		SKU:             v.SKU,
		Price:           price,
		CompareAtPrice:  v.CompareAtValue(),
		InventoryItemID: v.InventoryItemID,
	}
}
