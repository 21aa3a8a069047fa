package entity

import (
	"time"

	"github.com/google/uuid"
)

const (
	HistoryAccepted  = "accepted"
	HistoryClosed    = "closed"
	HistoryConfirmed = "confirmed"
	HistoryCanceled  = "canceled"
	HistoryOnHold    = "on_hold"
	HistoryOffHold   = "off_hold"
	HistoryReview    = "review"
)

// ItemHistory is the append-only audit log per item and actor. The
// (item, user, confirmed) row doubles as the confirm idempotency guard.
type ItemHistory struct {
	ID        uuid.UUID `db:"id" json:"id"`
	ItemID    uuid.UUID `db:"item_id" json:"item_id"`
	ItemType  string    `db:"item_type" json:"item_type"`
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	Kind      string    `db:"kind" json:"kind"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
