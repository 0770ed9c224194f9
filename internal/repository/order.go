package repository

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/storage"
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository stores orders under orders/{userId}/{orderId}.
type OrderRepository struct {
	store storage.Client
}

// NewOrderRepository returns an OrderRepository backed by store.
func NewOrderRepository(store storage.Client) *OrderRepository {
	return &OrderRepository{store: store}
}

// Create persists o with a server-assigned creation time and fills in its ID
// and CreatedAt. The card number is never part of the record.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	path, err := userOrdersPath(o.UserID)
	if err != nil {
		return err
	}

	rec := orderToRecord(o)
	rec["createdAt"] = storage.ServerTimestamp

	id, err := r.store.Create(ctx, path, rec)
	if err != nil {
		return errors.Wrap(err, "create order")
	}

	// Read back for the timestamp the store assigned.
	stored, err := r.store.GetByID(ctx, path, id)
	if err != nil {
		return errors.Wrap(err, "read created order")
	}
	o.ID = id
	o.CreatedAt = millis(stored["createdAt"])
	return nil
}

// ListByUser returns the orders of userID, oldest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	path, err := userOrdersPath(userID)
	if err != nil {
		return nil, err
	}

	entries, err := r.store.GetAll(ctx, path)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}

	orders := make([]order.Order, len(entries))
	for i, e := range entries {
		orders[i] = orderFromRecord(e.Key, e.Value)
	}
	return orders, nil
}

func userOrdersPath(userID string) (string, error) {
	if err := storage.ValidateKey(userID); err != nil {
		return "", errors.Wrap(err, "order user id")
	}
	return storage.Join(ordersPath, userID), nil
}

func orderToRecord(o *order.Order) storage.Record {
	items := make([]any, len(o.Items))
	for i, it := range o.Items {
		items[i] = map[string]any{
			"productId": it.ProductID,
			"name":      it.Name,
			"price":     money(it.Price),
			"quantity":  it.Quantity,
		}
	}
	s := o.Shipping
	return storage.Record{
		"userId":     o.UserID,
		"items":      items,
		"subtotal":   money(o.Subtotal),
		"discount":   money(o.Discount),
		"total":      money(o.Total),
		"couponCode": o.CouponCode,
		"cardLast4":  o.CardLast4,
		"status":     o.Status,
		"shipping": map[string]any{
			"fullName": s.FullName,
			"email":    s.Email,
			"address":  s.Address,
			"city":     s.City,
			"state":    s.State,
			"zipCode":  s.ZipCode,
			"country":  s.Country,
			"phone":    s.Phone,
		},
	}
}

func orderFromRecord(id string, rec storage.Record) order.Order {
	o := order.Order{
		ID:         id,
		UserID:     str(rec["userId"]),
		Subtotal:   dec(rec["subtotal"]),
		Discount:   dec(rec["discount"]),
		Total:      dec(rec["total"]),
		CouponCode: str(rec["couponCode"]),
		CardLast4:  str(rec["cardLast4"]),
		Status:     str(rec["status"]),
		CreatedAt:  millis(rec["createdAt"]),
	}
	for _, v := range list(rec["items"]) {
		it := object(v)
		o.Items = append(o.Items, order.Item{
			ProductID: str(it["productId"]),
			Name:      str(it["name"]),
			Price:     dec(it["price"]),
			Quantity:  integer(it["quantity"]),
		})
	}
	s := object(rec["shipping"])
	o.Shipping = order.Shipping{
		FullName: str(s["fullName"]),
		Email:    str(s["email"]),
		Address:  str(s["address"]),
		City:     str(s["city"]),
		State:    str(s["state"]),
		ZipCode:  str(s["zipCode"]),
		Country:  str(s["country"]),
		Phone:    str(s["phone"]),
	}
	return o
}
