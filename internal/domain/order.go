package domain

import (
	"strings"
	"time"
)

// OrderStatusPending is the status of every newly placed order.
const OrderStatusPending = "PENDING"

// Order is a storefront order.
type Order struct {
	ID          string    `json:"id"`
	ProductName string    `json:"productName"`
	Quantity    int       `json:"quantity"`
	UserEmail   string    `json:"userEmail"`
	UserID      string    `json:"userId"`
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
}

// Fields returns the stored representation of o (without the id).
func (o Order) Fields() map[string]any {
	return map[string]any{
		"productName": o.ProductName,
		"quantity":    o.Quantity,
		"userEmail":   o.UserEmail,
		"userId":      o.UserID,
		"status":      o.Status,
		"timestamp":   o.Timestamp,
	}
}

// OrderFromFields decodes an orders document.
func OrderFromFields(id string, fields map[string]any) Order {
	o := Order{
		ID:          id,
		ProductName: stringField(fields, "productName"),
		UserEmail:   stringField(fields, "userEmail"),
		UserID:      stringField(fields, "userId"),
		Status:      stringField(fields, "status"),
		Timestamp:   timeField(fields, "timestamp"),
	}
	if n, ok := numberField(fields, "quantity"); ok {
		o.Quantity = int(n)
	}
	return o
}

// Product is an entry of the storefront catalog.
type Product struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Price    float64 `json:"price"`
	Unit     string  `json:"unit"`
	Status   string  `json:"status"`
}

var catalog = []Product{
	{ID: "semiconductors", Name: "Industrial Semiconductors", Category: "Electronics", Price: 45000, Unit: "per lot", Status: "High Demand"},
	{ID: "engine-blocks", Name: "Aerospace Engine Blocks", Category: "Automotive", Price: 120000, Unit: "per unit", Status: "Premium"},
	{ID: "fiber-optics", Name: "Advanced Fiber Optics", Category: "Infrastructure", Price: 8500, Unit: "per km", Status: "In Stock"},
	{ID: "quantum-memory", Name: "Quantum Memory Arrays", Category: "Computing", Price: 25000, Unit: "per array", Status: "Limited"},
}

// Catalog returns the storefront products in display order.
func Catalog() []Product {
	return append([]Product(nil), catalog...)
}

// LookupProduct finds a product by id or, case-insensitively, by name.
func LookupProduct(key string) (Product, bool) {
	key = strings.TrimSpace(key)
	for _, p := range catalog {
		if p.ID == key || strings.EqualFold(p.Name, key) {
			return p, true
		}
	}
	return Product{}, false
}
