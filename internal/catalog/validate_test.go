package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flashbot-backend/internal/model"
)

func validRawProduct() model.RawProduct {
	return model.RawProduct{
		ID:       100,
		Title:    "Zapatilla Runner",
		Handle:   "zapatilla-runner",
		BodyHTML: "<p>Una zapatilla ligera para correr largas distancias.</p>",
		Status:   "active",
		Tags:     "running, calzado",
		Image:    &model.RawImage{ID: 1, Src: "https://cdn.example.com/hero.jpg"},
		Variants: []model.RawVariant{
			{ID: 1, SKU: "RUN-40", Price: "59.90", InventoryItemID: 9001},
		},
	}
}

func TestCheckProduct(t *testing.T) {
	t.Run("accepts complete product", func(t *testing.T) {
		ok, reason := CheckProduct(validRawProduct())
		assert.True(t, ok)
		assert.Empty(t, reason)
	})

	t.Run("rejects non-active status", func(t *testing.T) {
		p := validRawProduct()
		p.Status = "draft"
		ok, reason := CheckProduct(p)
		assert.False(t, ok)
		assert.Equal(t, ReasonStatusNotActive, reason)
	})

	t.Run("rejects product without any image", func(t *testing.T) {
		p := validRawProduct()
		p.Image = nil
		p.Images = nil
		ok, reason := CheckProduct(p)
		assert.False(t, ok)
		assert.Equal(t, ReasonNoImage, reason)
	})

	t.Run("variant image counts as image", func(t *testing.T) {
		p := validRawProduct()
		p.Image = nil
		imageID := int64(55)
		p.Variants[0].ImageID = &imageID
		ok, _ := CheckProduct(p)
		assert.True(t, ok)
	})

	t.Run("rejects too-short body", func(t *testing.T) {
		p := validRawProduct()
		p.BodyHTML = "<p>corto</p>"
		ok, reason := CheckProduct(p)
		assert.False(t, ok)
		assert.Equal(t, ReasonNoBody, reason)
	})

	t.Run("markup alone is not a body", func(t *testing.T) {
		p := validRawProduct()
		p.BodyHTML = "<div><p>   </p></div>"
		ok, reason := CheckProduct(p)
		assert.False(t, ok)
		assert.Equal(t, ReasonNoBody, reason)
	})

	t.Run("rejects product with no usable variant", func(t *testing.T) {
		p := validRawProduct()
		p.Variants = []model.RawVariant{
			{ID: 1, Price: "", InventoryItemID: 9001},
			{ID: 2, Price: "59.90", InventoryItemID: 0},
		}
		ok, reason := CheckProduct(p)
		assert.False(t, ok)
		assert.Equal(t, ReasonNoVariantComplete, reason)
	})
}

func TestValidVariants(t *testing.T) {
	variants := []model.RawVariant{
		{ID: 1, Price: "10.00", InventoryItemID: 1},
		{ID: 2, Price: "not-a-price", InventoryItemID: 2},
		{ID: 3, Price: "20.00", InventoryItemID: 0},
		{ID: 4, Price: "30.00", InventoryItemID: 4},
	}

	valid := ValidVariants(variants)
	require.Len(t, valid, 2)
	assert.Equal(t, int64(1), valid[0].ID)
	assert.Equal(t, int64(4), valid[1].ID)
}

func TestHeroImage(t *testing.T) {
	t.Run("prefers declared hero", func(t *testing.T) {
		p := validRawProduct()
		p.Images = []model.RawImage{{Src: "https://cdn.example.com/gallery-1.jpg"}}
		assert.Equal(t, "https://cdn.example.com/hero.jpg", HeroImage(p))
	})

	t.Run("falls back to first gallery image", func(t *testing.T) {
		p := validRawProduct()
		p.Image = nil
		p.Images = []model.RawImage{
			{Src: "https://cdn.example.com/gallery-1.jpg"},
			{Src: "https://cdn.example.com/gallery-2.jpg"},
		}
		assert.Equal(t, "https://cdn.example.com/gallery-1.jpg", HeroImage(p))
	})

	t.Run("empty when no images", func(t *testing.T) {
		p := validRawProduct()
		p.Image = nil
		assert.Empty(t, HeroImage(p))
	})
}

func TestToProduct(t *testing.T) {
	p := ToProduct(validRawProduct())
	assert.Equal(t, int64(100), p.ID)
	assert.Equal(t, "Una zapatilla ligera para correr largas distancias.", p.Body)
	assert.Equal(t, "https://cdn.example.com/hero.jpg", p.Image)
}

func TestToVariant(t *testing.T) {
	raw := model.RawVariant{ID: 7, SKU: "RUN-42", Price: "79.90", CompareAtPrice: "99.90", InventoryItemID: 9002}
	v := ToVariant(100, raw)

	assert.Equal(t, int64(7), v.ID)
	assert.Equal(t, int64(100), v.ProductID)
	assert.Equal(t, 79.90, v.Price)
	require.NotNil(t, v.CompareAtPrice)
	assert.Equal(t, 99.90, *v.CompareAtPrice)
}
