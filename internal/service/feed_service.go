package service

import (
	"context"
	"fmt"
	"time"

	"logistria/internal/docstore"
	"logistria/internal/domain"
)

// Live feeds of the operations console.
const (
	FeedInventory = "inventory"
	FeedOrders    = "orders"
)

// FeedUpdate is one decoded snapshot of a live collection.
type FeedUpdate struct {
	Collection string                 `json:"collection"`
	At         time.Time              `json:"at"`
	Inventory  []domain.InventoryItem `json:"inventory,omitempty"`
	Orders     []domain.Order         `json:"orders,omitempty"`
}

// Count is the number of items in the update.
func (u FeedUpdate) Count() int {
	return len(u.Inventory) + len(u.Orders)
}

// Dashboard summarizes the live feeds.
type Dashboard struct {
	InventorySKUs int `json:"inventorySkus"`
	TotalOrders   int `json:"totalOrders"`
	PendingOrders int `json:"pendingOrders"`
}

// FeedService turns store subscriptions into typed console feeds.
type FeedService struct {
	store docstore.Store
}

func NewFeedService(store docstore.Store) *FeedService {
	return &FeedService{store: store}
}

// Watch streams decoded snapshots of feed until ctx is done. The error
// channel carries at most one subscription error.
func (s *FeedService) Watch(ctx context.Context, feed string) (<-chan FeedUpdate, <-chan error, error) {
	if feed != FeedInventory && feed != FeedOrders {
		return nil, nil, fmt.Errorf("unknown feed %q", feed)
	}

	snaps, errs := s.store.Subscribe(ctx, feed)
	out := make(chan FeedUpdate, 1)
	go func() {
		defer close(out)
		for snap := range snaps {
			select {
			case out <- decodeSnapshot(snap):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, errs, nil
}

// Dashboard reads both feeds once.
func (s *FeedService) Dashboard(ctx context.Context) (Dashboard, error) {
	inv, err := s.store.List(ctx, FeedInventory)
	if err != nil {
		return Dashboard{}, fmt.Errorf("list inventory: %w", err)
	}
	orders, err := s.store.List(ctx, FeedOrders)
	if err != nil {
		return Dashboard{}, fmt.Errorf("list orders: %w", err)
	}

	d := Dashboard{InventorySKUs: len(inv), TotalOrders: len(orders)}
	for _, doc := range orders {
		if domain.OrderFromFields(doc.ID, doc.Fields).Status == domain.OrderStatusPending {
			d.PendingOrders++
		}
	}
	return d, nil
}

func decodeSnapshot(snap docstore.Snapshot) FeedUpdate {
	u := FeedUpdate{Collection: snap.Collection, At: snap.At}
	switch snap.Collection {
	case FeedInventory:
		u.Inventory = make([]domain.InventoryItem, 0, len(snap.Docs))
		for _, d := range snap.Docs {
			u.Inventory = append(u.Inventory, domain.InventoryFromFields(d.ID, d.Fields))
		}
	case FeedOrders:
		u.Orders = make([]domain.Order, 0, len(snap.Docs))
		for _, d := range snap.Docs {
			u.Orders = append(u.Orders, domain.OrderFromFields(d.ID, d.Fields))
		}
		sortOrders(u.Orders)
	}
	return u
}
