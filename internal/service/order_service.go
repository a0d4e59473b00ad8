package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"

	"logistria/internal/config"
	"logistria/internal/docstore"
	"logistria/internal/domain"
	"logistria/internal/identity"
)

// OrdersCollection holds storefront orders.
const OrdersCollection = "orders"

// EventOrderPlaced is emitted with the new domain.Order.
const EventOrderPlaced = "order:placed"

// ErrUnknownProduct is returned for an order outside the catalog.
var ErrUnknownProduct = errors.New("unknown product")

// PlaceOrderInput is a storefront order request.
type PlaceOrderInput struct {
	Product  string `json:"product" validate:"required"`
	Quantity int    `json:"quantity" validate:"required,min=1,max=100000"`
}

// OrderService places and lists storefront orders.
type OrderService struct {
	store    docstore.Store
	emitter  EventEmitter
	validate *validator.Validate
	now      func() time.Time
}

func NewOrderService(store docstore.Store, emitter EventEmitter) *OrderService {
	return &OrderService{
		store:    store,
		emitter:  emitter,
		validate: validator.New(),
		now:      time.Now,
	}
}

// Catalog returns the products that can be ordered.
func (s *OrderService) Catalog() []domain.Product {
	return domain.Catalog()
}

// Place records a PENDING order for p.
func (s *OrderService) Place(ctx context.Context, p identity.Principal, input PlaceOrderInput) (*domain.Order, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, &ValidationError{Fields: validationMessages(err)}
	}
	product, ok := domain.LookupProduct(input.Product)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProduct, input.Product)
	}

	order := domain.Order{
		ProductName: product.Name,
		Quantity:    input.Quantity,
		UserEmail:   p.Email,
		UserID:      p.UID,
		Status:      domain.OrderStatusPending,
		Timestamp:   s.now().UTC(),
	}
	id, err := s.store.Insert(ctx, OrdersCollection, order.Fields())
	if err != nil {
		config.LogError(config.GetLogger(), "service", "Place", "insert order", order.Fields(), err)
		return nil, fmt.Errorf("place order: %w", err)
	}
	order.ID = id

	s.emitter.Emit(ctx, EventOrderPlaced, order)
	return &order, nil
}

// List returns orders newest first. A non-empty uid restricts the result
// to that user's orders.
func (s *OrderService) List(ctx context.Context, uid string) ([]domain.Order, error) {
	docs, err := s.store.List(ctx, OrdersCollection)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	orders := make([]domain.Order, 0, len(docs))
	for _, d := range docs {
		o := domain.OrderFromFields(d.ID, d.Fields)
		if uid != "" && o.UserID != uid {
			continue
		}
		orders = append(orders, o)
	}
	sortOrders(orders)
	return orders, nil
}

func sortOrders(orders []domain.Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].Timestamp.After(orders[j].Timestamp)
	})
}
