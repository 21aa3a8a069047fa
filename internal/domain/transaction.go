package entity

import (
	"time"

	"github.com/google/uuid"
)

// Item type discriminants for transactions, histories, ratings and reviews.
// Dispatch on these tags, never on runtime type names.
const (
	ItemTypeOffer = "Offer"
	ItemTypeOrder = "Order"
)

const (
	TransactionStatusPending   = "pending"
	TransactionStatusCompleted = "completed"
)

// Transaction is one ledger entry. A pending row with a negative amount is
// escrow: funds locked but not yet transferred. Completion flips it to
// completed and adds the mirrored positive row for the counter-party.
type Transaction struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	UserID      uuid.UUID  `db:"user_id" json:"user_id"`
	Amount      float64    `db:"amount" json:"amount"` // signed: debit < 0, credit > 0
	Status      string     `db:"status" json:"status"`
	ItemID      uuid.UUID  `db:"item_id" json:"item_id"`
	ItemType    string     `db:"item_type" json:"item_type"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}
