package service

import (
	"fmt"

	entity "simbi-market/internal/domain"
	repo "simbi-market/internal/repository/postgresql"

	"github.com/google/uuid"
)

// OfferValidator checks a proposed offer composition against the catalog and
// the payer's ledger before anything is persisted. It returns field-keyed
// errors for client mistakes and a plain error for infrastructure failures.
type OfferValidator struct {
	serviceRepo repo.ServiceRepository
	ledgerRepo  repo.LedgerRepository
}

func NewOfferValidator(serviceRepo repo.ServiceRepository, ledgerRepo repo.LedgerRepository) *OfferValidator {
	return &OfferValidator{serviceRepo: serviceRepo, ledgerRepo: ledgerRepo}
}

// Validate builds the concrete item legs from the input. Rules: every owner
// is one of the two participants, the legs span exactly two distinct owners,
// at most one simbi leg, service legs reference an existing listing owned by
// the stated owner with quota to spare, and the simbi amount is positive
// unless a pay-forward listing is traded. The payer must also hold enough
// simbi at validation time; the lock re-checks under the transaction.
func (v *OfferValidator) Validate(input *entity.CreateOfferInput, participants []uuid.UUID) ([]entity.OfferItem, entity.FieldErrors, error) {
	ferrs := entity.FieldErrors{}
	items := make([]entity.OfferItem, 0, len(input.Items))

	owners := map[uuid.UUID]bool{}
	payForward := false
	simbiLegs := 0
	var simbiOwner uuid.UUID
	var simbiAmount float64

	for i, in := range input.Items {
		field := fmt.Sprintf("items.%d", i)

		ownerID, err := uuid.Parse(in.OwnerID)
		if err != nil {
			ferrs.Add(field, "owner_id is not a valid id")
			continue
		}
		if !isParticipant(participants, ownerID) {
			ferrs.Add(field, "owner is not a participant of this talk")
			continue
		}
		owners[ownerID] = true

		item := entity.OfferItem{
			ID:        uuid.New(),
			OwnerID:   ownerID,
			Kind:      in.Kind,
			UnitCount: in.Count,
		}

		switch in.Kind {
		case entity.ItemKindService:
			serviceID, err := uuid.Parse(in.ServiceID)
			if err != nil {
				ferrs.Add(field, "service_id is required for a service leg")
				continue
			}
			svc, err := v.serviceRepo.GetByID(serviceID)
			if err != nil {
				return nil, nil, err
			}
			if svc == nil {
				ferrs.Add(field, "service not found")
				continue
			}
			if svc.UserID != ownerID {
				ferrs.Add(field, "service does not belong to the stated owner")
				continue
			}
			if in.Count <= 0 {
				ferrs.Add(field, "count must be positive")
				continue
			}
			if !svc.HasQuotaFor(in.Count) {
				ferrs.Add(field, "service quota exceeded")
				continue
			}
			if svc.PayForward {
				payForward = true
			}
			item.ServiceID = serviceID
		case entity.ItemKindSimbi:
			simbiLegs++
			if simbiLegs > 1 {
				ferrs.Add(field, "an offer can carry at most one simbi leg")
				continue
			}
			if in.Count < 0 {
				ferrs.Add(field, "amount cannot be negative")
				continue
			}
			simbiOwner = ownerID
			simbiAmount = in.Count
		case entity.ItemKindUSD:
			if in.Count <= 0 {
				ferrs.Add(field, "amount must be positive")
				continue
			}
		default:
			ferrs.Add(field, "unknown item kind")
			continue
		}

		items = append(items, item)
	}

	if len(owners) != 2 {
		ferrs.Add("items", "offer items must span exactly two owners")
	}
	if simbiLegs == 1 && simbiAmount == 0 && !payForward {
		ferrs.Add("simbi", "simbi amount must be positive unless the service is pay-forward")
	}

	if ferrs.Any() {
		return nil, ferrs, nil
	}

	if simbiAmount > 0 {
		balance, err := v.ledgerRepo.AvailableBalance(simbiOwner)
		if err != nil {
			return nil, nil, err
		}
		if balance < simbiAmount {
			ferrs.Add("simbi", "insufficient simbi balance")
			return nil, ferrs, nil
		}
	}

	return items, ferrs, nil
}

// OrderValidator checks a product purchase: the listing must exist, be a
// product, have quota for the requested count, and the buyer must hold the
// full simbi price.
type OrderValidator struct {
	serviceRepo repo.ServiceRepository
	ledgerRepo  repo.LedgerRepository
}

func NewOrderValidator(serviceRepo repo.ServiceRepository, ledgerRepo repo.LedgerRepository) *OrderValidator {
	return &OrderValidator{serviceRepo: serviceRepo, ledgerRepo: ledgerRepo}
}

func (v *OrderValidator) Validate(buyerID, serviceID uuid.UUID, count int) (*entity.Service, entity.FieldErrors, error) {
	ferrs := entity.FieldErrors{}
	if count < 1 {
		count = 1
	}

	svc, err := v.serviceRepo.GetByID(serviceID)
	if err != nil {
		return nil, nil, err
	}
	if svc == nil {
		ferrs.Add("service_id", "service not found")
		return nil, ferrs, nil
	}
	if svc.Kind != entity.ServiceKindProduct {
		ferrs.Add("service_id", "only products can be ordered")
	}
	if svc.UserID == buyerID {
		ferrs.Add("service_id", "cannot order your own product")
	}
	if !svc.HasQuotaFor(float64(count)) {
		ferrs.Add("count", "product quota exceeded")
	}
	if ferrs.Any() {
		return nil, ferrs, nil
	}

	total := svc.Price * float64(count)
	if total > 0 {
		balance, err := v.ledgerRepo.AvailableBalance(buyerID)
		if err != nil {
			return nil, nil, err
		}
		if balance < total {
			ferrs.Add("simbi", "insufficient simbi balance")
			return nil, ferrs, nil
		}
	}

	return svc, ferrs, nil
}

func isParticipant(participants []uuid.UUID, id uuid.UUID) bool {
	for _, p := range participants {
		if p == id {
			return true
		}
	}
	return false
}
