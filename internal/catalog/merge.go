package catalog

import "flashbot-backend/internal/model"

// MergeInventory joins raw inventory levels with location metadata, grouped
// by inventory item identifier. Items with no levels simply have no entry:
// downstream code must treat that as "no stock record", not zero.
func MergeInventory(levels []model.RawLevel, locations []model.RawLocation) map[int64][]model.InventoryRecord {
	names := make(map[int64]string, len(locations))
	for _, loc := range locations {
		names[loc.ID] = loc.Name
	}

	merged := make(map[int64][]model.InventoryRecord)
	for _, lv := range levels {
		merged[lv.InventoryItemID] = append(merged[lv.InventoryItemID], model.InventoryRecord{
			InventoryItemID: lv.InventoryItemID,
			LocationID:      lv.LocationID,
			LocationName:    names[lv.LocationID],
			Available:       lv.AvailableValue(),
		})
	}
	return merged
}
