package entity

import (
	"time"

	"github.com/google/uuid"
)

const (
	ServiceKindService = "service"
	ServiceKindProduct = "product"
)

// Service is a listing offered by a user: a bookable service or a
// fixed-price product. Quota limits how many open deals it can back;
// QuotaUsed counts legs already committed. Quota 0 means unlimited.
type Service struct {
	ID             uuid.UUID `db:"id" json:"id"`
	UserID         uuid.UUID `db:"user_id" json:"user_id"`
	Title          string    `db:"title" json:"title"`
	Kind           string    `db:"kind" json:"kind"`
	Price          float64   `db:"price" json:"price"` // simbi per unit
	ShippingCost   float64   `db:"shipping_cost" json:"shipping_cost"`
	ProcessingTime int       `db:"processing_time" json:"processing_time"`
	Quota          int       `db:"quota" json:"quota"`
	QuotaUsed      int       `db:"quota_used" json:"quota_used"`
	PayForward     bool      `db:"pay_forward" json:"pay_forward"` // allows a zero-simbi trade
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// HasQuotaFor reports whether count more units fit within the quota.
func (s *Service) HasQuotaFor(count float64) bool {
	if s.Quota == 0 {
		return true
	}
	return float64(s.Quota) >= float64(s.QuotaUsed)+count
}
