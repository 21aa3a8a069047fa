package entity

import (
	"time"

	"github.com/google/uuid"
)

const (
	OrderStatusOpen      = "open"
	OrderStatusAccepted  = "accepted"
	OrderStatusCompleted = "completed"
	OrderStatusCanceled  = "canceled"
	OrderStatusDisputed  = "disputed"
)

// Order is a fixed-price product purchase. AuthorID is the buyer; the seller
// owns the product item.
type Order struct {
	ID             uuid.UUID   `db:"id" json:"id"`
	TalkID         uuid.UUID   `db:"talk_id" json:"talk_id"`
	AuthorID       uuid.UUID   `db:"author_id" json:"author_id"`
	Status         string      `db:"status" json:"status"`
	ShippingCosts  float64     `db:"shipping_costs" json:"shipping_costs"`
	ProcessingTime int         `db:"processing_time" json:"processing_time"`
	CancelReason   string      `db:"cancel_reason" json:"cancel_reason,omitempty"`
	Items          []OrderItem `json:"items"`
	CreatedAt      time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at" json:"updated_at"`
}

// OrderItem: the product leg carries a service reference (seller as owner),
// the currency leg does not (buyer as owner).
type OrderItem struct {
	ID        uuid.UUID `db:"id" json:"id"`
	OrderID   uuid.UUID `db:"order_id" json:"order_id"`
	OwnerID   uuid.UUID `db:"owner_id" json:"owner_id"`
	ServiceID uuid.UUID `db:"service_id" json:"service_id,omitempty"`
	Count     float64   `db:"count" json:"count"`
}

// ProductItem returns the leg with a service reference.
func (o *Order) ProductItem() *OrderItem {
	for i := range o.Items {
		if o.Items[i].ServiceID != uuid.Nil {
			return &o.Items[i]
		}
	}
	return nil
}

// SimbiItem returns the currency leg (no service reference).
func (o *Order) SimbiItem() *OrderItem {
	for i := range o.Items {
		if o.Items[i].ServiceID == uuid.Nil {
			return &o.Items[i]
		}
	}
	return nil
}

type CreateOrderInput struct {
	ServiceID string `json:"service_id"`
	Count     int    `json:"count"`
	Message   string `json:"message"`
}
