package domain

import (
	"math"
	"time"
)

// InventoryItem is a document of the inventory collection as shown on the
// operations console.
type InventoryItem struct {
	ID                string    `json:"id"`
	ProductID         string    `json:"productId"`
	InventoryType     string    `json:"inventoryType"`
	CurrentStock      *int64    `json:"currentStock"`
	ReservedStock     *int64    `json:"reservedStock"`
	WarehouseLocation string    `json:"warehouseLocation"`
	LastUpdated       string    `json:"lastUpdated,omitempty"`
	UpdatedAt         time.Time `json:"updatedAt,omitempty"`
}

// InventoryFromFields decodes an inventory document.
//
// Documents written before the importer existed carry name, stock,
// category and unit instead of product_id, current_stock, inventory_type
// and warehouse_location; those are used when the newer field is missing.
// Stock values are floored to whole units.
func InventoryFromFields(id string, fields map[string]any) InventoryItem {
	item := InventoryItem{
		ID:                id,
		ProductID:         firstString(fields, "product_id", "name"),
		InventoryType:     firstString(fields, "inventory_type", "category"),
		WarehouseLocation: firstString(fields, "warehouse_location", "unit"),
		LastUpdated:       stringField(fields, "last_updated"),
		UpdatedAt:         timeField(fields, "updatedAt"),
	}
	if item.ProductID == "" {
		item.ProductID = id
	}

	if n, ok := numberField(fields, "current_stock"); ok {
		item.CurrentStock = floorPtr(n)
	} else if n, ok := numberField(fields, "stock"); ok {
		item.CurrentStock = floorPtr(n)
	}
	if n, ok := numberField(fields, "reserved_stock"); ok {
		item.ReservedStock = floorPtr(n)
	}
	return item
}

// Available is current minus reserved stock, or nil when either is unknown.
func (i InventoryItem) Available() *int64 {
	if i.CurrentStock == nil || i.ReservedStock == nil {
		return nil
	}
	v := *i.CurrentStock - *i.ReservedStock
	return &v
}

func firstString(fields map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := stringField(fields, k); s != "" {
			return s
		}
	}
	return ""
}

func floorPtr(f float64) *int64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	v := int64(math.Floor(f))
	return &v
}
