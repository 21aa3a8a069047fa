package entity

import (
	"time"

	"github.com/google/uuid"
)

const (
	OfferStatusOpen      = "open"
	OfferStatusAccepted  = "accepted"
	OfferStatusCompleted = "completed" // both sides confirmed, escrow settled
	OfferStatusConfirmed = "confirmed" // escrow settled, counter-party may still confirm
	OfferStatusClosed    = "closed"
	OfferStatusCanceled  = "canceled"
	OfferStatusDisputed  = "disputed"
)

const (
	ItemKindService = "service"
	ItemKindSimbi   = "simbi"
	ItemKindUSD     = "usd"
)

const CancelKindNoResponse = "no_response"

// Offer is a proposed trade between the two talk participants. Status moves
// only through the defined transitions; rows are retained for audit.
type Offer struct {
	ID           uuid.UUID   `db:"id" json:"id"`
	TalkID       uuid.UUID   `db:"talk_id" json:"talk_id"`
	OwnerID      uuid.UUID   `db:"owner_id" json:"owner_id"`
	Status       string      `db:"status" json:"status"`
	Within       int         `db:"within" json:"within"` // days to complete once accepted
	DueDate      *time.Time  `db:"due_date" json:"due_date,omitempty"`
	CancelReason string      `db:"cancel_reason" json:"cancel_reason,omitempty"`
	CancelKind   string      `db:"cancel_kind" json:"cancel_kind,omitempty"`
	Items        []OfferItem `json:"items"`
	CreatedAt    time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at" json:"updated_at"`
}

// OfferItem is one leg of the trade. Currency legs (simbi, usd) carry no
// service reference; ServiceID is set only for kind=service.
type OfferItem struct {
	ID        uuid.UUID `db:"id" json:"id"`
	OfferID   uuid.UUID `db:"offer_id" json:"offer_id"`
	OwnerID   uuid.UUID `db:"owner_id" json:"owner_id"`
	ServiceID uuid.UUID `db:"service_id" json:"service_id,omitempty"`
	Kind      string    `db:"kind" json:"kind"`
	UnitCount float64   `db:"unit_count" json:"unit_count"`
}

// SimbiItem returns the simbi leg with a positive amount, if any.
func (o *Offer) SimbiItem() *OfferItem {
	for i := range o.Items {
		if o.Items[i].Kind == ItemKindSimbi && o.Items[i].UnitCount > 0 {
			return &o.Items[i]
		}
	}
	return nil
}

// USDItem returns the real-money leg with a positive amount, if any.
func (o *Offer) USDItem() *OfferItem {
	for i := range o.Items {
		if o.Items[i].Kind == ItemKindUSD && o.Items[i].UnitCount > 0 {
			return &o.Items[i]
		}
	}
	return nil
}

// PayerID is the owner of a currency leg. The zero UUID means the trade is
// service-for-service with no funds at stake.
func (o *Offer) PayerID() uuid.UUID {
	for i := range o.Items {
		if o.Items[i].Kind != ItemKindService {
			return o.Items[i].OwnerID
		}
	}
	return uuid.Nil
}

type OfferItemInput struct {
	OwnerID   string  `json:"owner_id" binding:"required"`
	ServiceID string  `json:"service_id"`
	Kind      string  `json:"kind" binding:"required"`
	Count     float64 `json:"count"`
}

type CreateOfferInput struct {
	Within int              `json:"within" binding:"required,min=1"`
	Items  []OfferItemInput `json:"items" binding:"required,dive"`
}

type CancelInput struct {
	Reason     string `json:"reason"`
	ReasonKind string `json:"reason_for_cancel"`
}
