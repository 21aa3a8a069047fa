// Package gateway defines the payment processor boundary. The engine only
// sees the PaymentGateway interface; declines are terminal and are never
// retried here.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ChargeRequest describes one card operation. Amount is in USD; the adapter
// converts to cents. Capture=false authorizes without moving money.
type ChargeRequest struct {
	Amount   float64
	BuyerID  uuid.UUID
	Capture  bool
	Metadata map[string]string
}

type PaymentGateway interface {
	// Authorize places a hold (capture=false) and returns a charge handle.
	Authorize(ctx context.Context, req ChargeRequest) (string, error)
	// Capture settles a previously authorized charge.
	Capture(ctx context.Context, chargeID string) error
	// Charge authorizes and captures in one step.
	Charge(ctx context.Context, req ChargeRequest) (string, error)
}

// DeclineError is a terminal card decline, distinguishable from transport
// failures so callers can message the counter-party specifically.
type DeclineError struct {
	Code    string
	Message string
}

func (e *DeclineError) Error() string {
	return fmt.Sprintf("card declined (%s): %s", e.Code, e.Message)
}

// IsDecline reports whether err is (or wraps) a card decline.
func IsDecline(err error) bool {
	var decline *DeclineError
	return errors.As(err, &decline)
}
