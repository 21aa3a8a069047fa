package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	entity "simbi-market/internal/domain"
	"simbi-market/internal/gateway"
	"simbi-market/internal/jobs"
	mongorepo "simbi-market/internal/repository/mongodb"
	repo "simbi-market/internal/repository/postgresql"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrTalkNotFound     = errors.New("talk not found")
	ErrOfferNotFound    = errors.New("offer not found")
	ErrOfferStatus      = errors.New("offer is not in a valid status for this action")
	ErrNotParticipant   = errors.New("user is not a participant of this talk")
	ErrOwnOffer         = errors.New("cannot act on your own offer")
	ErrAlreadyConfirmed = errors.New("offer already confirmed by this user")
)

const noResponseReason = "No response from other party"

const simbiReminderDelay = time.Hour

type OfferService struct {
	store      repo.TxRunner
	offerRepo  repo.OfferRepository
	talkRepo   repo.TalkRepository
	ledgerRepo repo.LedgerRepository
	userRepo   repo.UserRepository
	validator  *OfferValidator
	payments   gateway.PaymentGateway
	queue      jobs.JobQueue
	notiRepo   mongorepo.NotificationRepository
}

func NewOfferService(
	store repo.TxRunner,
	offerRepo repo.OfferRepository,
	talkRepo repo.TalkRepository,
	ledgerRepo repo.LedgerRepository,
	userRepo repo.UserRepository,
	validator *OfferValidator,
	payments gateway.PaymentGateway,
	queue jobs.JobQueue,
	notiRepo mongorepo.NotificationRepository,
) *OfferService {
	return &OfferService{
		store:      store,
		offerRepo:  offerRepo,
		talkRepo:   talkRepo,
		ledgerRepo: ledgerRepo,
		userRepo:   userRepo,
		validator:  validator,
		payments:   payments,
		queue:      queue,
		notiRepo:   notiRepo,
	}
}

// Create validates the composition and inserts a new open offer. A still-open
// prior offer on the same talk is closed in the same transaction; the newest
// offer is the only negotiable one.
func (s *OfferService) Create(ctx context.Context, talkID, authorID uuid.UUID, input *entity.CreateOfferInput) (*entity.Offer, entity.FieldErrors, error) {
	participants, err := s.participants(talkID, authorID)
	if err != nil {
		return nil, nil, err
	}

	items, ferrs, err := s.validator.Validate(input, participants)
	if err != nil {
		return nil, nil, err
	}
	if ferrs.Any() {
		return nil, ferrs, nil
	}

	offer := &entity.Offer{
		ID:      uuid.New(),
		TalkID:  talkID,
		OwnerID: authorID,
		Status:  entity.OfferStatusOpen,
		Within:  input.Within,
		Items:   items,
	}

	err = s.store.InTx(ctx, func(tx *sql.Tx) error {
		prior, err := s.offerRepo.GetLastByTalk(talkID)
		if err != nil {
			return err
		}
		if prior != nil && prior.Status == entity.OfferStatusOpen {
			if _, err := s.offerRepo.MarkClosed(tx, prior.ID); err != nil {
				return err
			}
		}
		return s.offerRepo.Insert(tx, offer)
	})
	if err != nil {
		return nil, nil, err
	}

	s.touchTalk(talkID, authorID)
	s.notify(otherOf(participants, authorID), "offer.created", "New offer", offer.ID)
	return offer, nil, nil
}

// Accept moves the newest offer to accepted and locks the escrow. The real-
// money leg, if any, is authorized on the payer's card before any local
// write so a decline leaves nothing behind; the hold is not captured until
// settlement. Only the counter-party can accept.
func (s *OfferService) Accept(ctx context.Context, talkID, actorID uuid.UUID) (*entity.Offer, error) {
	participants, err := s.participants(talkID, actorID)
	if err != nil {
		return nil, err
	}

	last, err := s.offerRepo.GetLastByTalk(talkID)
	if err != nil {
		return nil, err
	}
	if last == nil {
		return nil, ErrOfferNotFound
	}
	if last.OwnerID == actorID {
		return nil, ErrOwnOffer
	}

	var offer *entity.Offer
	err = s.store.InTx(ctx, func(tx *sql.Tx) error {
		offer, err = s.offerRepo.LockByID(tx, last.ID)
		if err != nil {
			return err
		}
		if offer == nil {
			return ErrOfferNotFound
		}

		if usd := offer.USDItem(); usd != nil {
			_, err := s.payments.Authorize(ctx, gateway.ChargeRequest{
				Amount:  usd.UnitCount,
				BuyerID: usd.OwnerID,
				Metadata: map[string]string{
					"item_id":   offer.ID.String(),
					"item_type": entity.ItemTypeOffer,
				},
			})
			if err != nil {
				return err
			}
		}

		if simbi := offer.SimbiItem(); simbi != nil {
			if err := s.ledgerRepo.Lock(tx, simbi.OwnerID, simbi.UnitCount, offer.ID, entity.ItemTypeOffer); err != nil {
				return err
			}
		}

		dueDate := time.Now().AddDate(0, 0, offer.Within)
		ok, err := s.offerRepo.MarkAccepted(tx, offer.ID, dueDate)
		if err != nil {
			return err
		}
		if !ok {
			return ErrOfferStatus
		}
		offer.Status = entity.OfferStatusAccepted
		offer.DueDate = &dueDate

		if err := s.ledgerRepo.InsertHistory(tx, offer.ID, entity.ItemTypeOffer, actorID, entity.HistoryAccepted); err != nil {
			return err
		}
		if err := s.talkRepo.SetStatus(tx, talkID, entity.TalkStatusInProgress); err != nil {
			return err
		}
		return s.userRepo.IncrementDeals(tx, participants)
	})
	if err != nil {
		return nil, err
	}

	if offer.SimbiItem() != nil {
		s.enqueueSimbiReminder(ctx, offer.ID)
	}
	s.touchTalk(talkID, actorID)
	s.notify(offer.OwnerID, "offer.accepted", "Your offer was accepted", offer.ID)
	s.track(actorID, "offer_accepted", offer.ID, entity.ItemTypeOffer)
	return offer, nil
}

// Close declines the newest offer while it is still open. Either participant
// may close; the talk stays open for further negotiation.
func (s *OfferService) Close(ctx context.Context, talkID, actorID uuid.UUID) error {
	participants, err := s.participants(talkID, actorID)
	if err != nil {
		return err
	}

	last, err := s.offerRepo.GetLastByTalk(talkID)
	if err != nil {
		return err
	}
	if last == nil {
		return ErrOfferNotFound
	}

	err = s.store.InTx(ctx, func(tx *sql.Tx) error {
		ok, err := s.offerRepo.MarkClosed(tx, last.ID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrOfferStatus
		}
		// An interrupted accept can leave a pending row behind; drop it.
		if err := s.ledgerRepo.Release(tx, last.ID, entity.ItemTypeOffer); err != nil {
			return err
		}
		return s.ledgerRepo.InsertHistory(tx, last.ID, entity.ItemTypeOffer, actorID, entity.HistoryClosed)
	})
	if err != nil {
		return err
	}

	s.touchTalk(talkID, actorID)
	s.notify(otherOf(participants, actorID), "offer.closed", "Offer declined", last.ID)
	return nil
}

// Confirm records the actor's completion confirmation. The first
// confirmation settles the escrow and marks the offer confirmed, whichever
// side it comes from; so does the payer's confirmation at any point. The
// non-payer confirming after the payer moves the already-settled offer to
// completed, the both-sides-confirmed terminal state.
func (s *OfferService) Confirm(ctx context.Context, talkID, actorID uuid.UUID) (*entity.Offer, error) {
	if _, err := s.participants(talkID, actorID); err != nil {
		return nil, err
	}

	last, err := s.offerRepo.GetLastByTalk(talkID)
	if err != nil {
		return nil, err
	}
	if last == nil {
		return nil, ErrOfferNotFound
	}

	var offer *entity.Offer
	err = s.store.InTx(ctx, func(tx *sql.Tx) error {
		offer, err = s.offerRepo.LockByID(tx, last.ID)
		if err != nil {
			return err
		}
		if offer == nil {
			return ErrOfferNotFound
		}

		already, err := s.ledgerRepo.HasConfirmed(tx, offer.ID, entity.ItemTypeOffer, actorID)
		if err != nil {
			return err
		}
		if already {
			return ErrAlreadyConfirmed
		}

		otherConfirmed, err := s.ledgerRepo.OtherConfirmed(tx, offer.ID, entity.ItemTypeOffer, actorID)
		if err != nil {
			return err
		}

		payerID := offer.PayerID()
		if actorID == payerID || !otherConfirmed {
			prev := offer.Status
			ok, err := s.offerRepo.MarkConfirmed(tx, offer.ID, entity.OfferStatusConfirmed)
			if err != nil {
				return err
			}
			if !ok {
				return ErrOfferStatus
			}
			offer.Status = entity.OfferStatusConfirmed
			if payerID != uuid.Nil {
				recipientID := recipientOf(offer, payerID)
				settled, err := s.ledgerRepo.Finalize(tx, offer.ID, entity.ItemTypeOffer, recipientID)
				if err != nil {
					return err
				}
				if !settled && prev == entity.OfferStatusAccepted {
					log.Printf("Warning: no pending funds to finalize for offer %s", offer.ID)
				}
			}
		} else {
			ok, err := s.offerRepo.MarkConfirmed(tx, offer.ID, entity.OfferStatusCompleted)
			if err != nil {
				return err
			}
			if !ok {
				return ErrOfferStatus
			}
			offer.Status = entity.OfferStatusCompleted
		}

		return s.ledgerRepo.InsertHistory(tx, offer.ID, entity.ItemTypeOffer, actorID, entity.HistoryConfirmed)
	})
	if err != nil {
		return nil, err
	}

	s.touchTalk(talkID, actorID)
	s.notify(otherOfOffer(offer, actorID), "offer.confirmed", "Deal confirmed", offer.ID)
	s.track(actorID, "offer_confirmed", offer.ID, entity.ItemTypeOffer)
	return offer, nil
}

// Cancel aborts an accepted or disputed deal, releases the escrow and reopens
// the talk. A no_response cancellation substitutes the canned reason; the
// caller records the counter-party's reliability mark separately.
func (s *OfferService) Cancel(ctx context.Context, talkID, actorID uuid.UUID, input *entity.CancelInput) (*entity.Offer, error) {
	participants, err := s.participants(talkID, actorID)
	if err != nil {
		return nil, err
	}

	last, err := s.offerRepo.GetLastByTalk(talkID)
	if err != nil {
		return nil, err
	}
	if last == nil {
		return nil, ErrOfferNotFound
	}

	reason := input.Reason
	if input.ReasonKind == entity.CancelKindNoResponse {
		reason = noResponseReason
	}

	err = s.store.InTx(ctx, func(tx *sql.Tx) error {
		ok, err := s.offerRepo.MarkCanceled(tx, last.ID, reason, input.ReasonKind)
		if err != nil {
			return err
		}
		if !ok {
			return ErrOfferStatus
		}
		if err := s.ledgerRepo.Release(tx, last.ID, entity.ItemTypeOffer); err != nil {
			return err
		}
		if err := s.ledgerRepo.InsertHistory(tx, last.ID, entity.ItemTypeOffer, actorID, entity.HistoryCanceled); err != nil {
			return err
		}
		return s.talkRepo.SetStatus(tx, talkID, entity.TalkStatusOpen)
	})
	if err != nil {
		return nil, err
	}
	last.Status = entity.OfferStatusCanceled
	last.CancelReason = reason
	last.CancelKind = input.ReasonKind

	s.touchTalk(talkID, actorID)
	s.notify(otherOf(participants, actorID), "offer.canceled", "Deal canceled", last.ID)
	return last, nil
}

// Last returns the newest offer in the talk, if any.
func (s *OfferService) Last(talkID uuid.UUID) (*entity.Offer, error) {
	return s.offerRepo.GetLastByTalk(talkID)
}

// CanConfirm runs the confirm guards without writing anything. Callers that
// bundle other writes with a confirmation check it first.
func (s *OfferService) CanConfirm(ctx context.Context, talkID, actorID uuid.UUID) error {
	if _, err := s.participants(talkID, actorID); err != nil {
		return err
	}

	last, err := s.offerRepo.GetLastByTalk(talkID)
	if err != nil {
		return err
	}
	if last == nil {
		return ErrOfferNotFound
	}
	if last.Status != entity.OfferStatusAccepted && last.Status != entity.OfferStatusConfirmed {
		return ErrOfferStatus
	}

	return s.store.InTx(ctx, func(tx *sql.Tx) error {
		already, err := s.ledgerRepo.HasConfirmed(tx, last.ID, entity.ItemTypeOffer, actorID)
		if err != nil {
			return err
		}
		if already {
			return ErrAlreadyConfirmed
		}
		return nil
	})
}

// participants loads the talk's two users and checks the actor is one of them.
func (s *OfferService) participants(talkID, actorID uuid.UUID) ([]uuid.UUID, error) {
	talk, err := s.talkRepo.GetByID(talkID)
	if err != nil {
		return nil, err
	}
	if talk == nil {
		return nil, ErrTalkNotFound
	}
	users, err := s.talkRepo.Participants(talkID)
	if err != nil {
		return nil, err
	}
	if !isParticipant(users, actorID) {
		return nil, ErrNotParticipant
	}
	return users, nil
}

func (s *OfferService) enqueueSimbiReminder(ctx context.Context, offerID uuid.UUID) {
	key := fmt.Sprintf("%s:%s", jobs.JobSimbiReminder, offerID)
	args := map[string]string{"item_id": offerID.String(), "item_type": entity.ItemTypeOffer}
	if err := s.queue.EnqueueIn(ctx, jobs.JobSimbiReminder, key, args, simbiReminderDelay); err != nil {
		log.Printf("Warning: failed to enqueue simbi reminder for offer %s: %v", offerID, err)
	}
}

func (s *OfferService) touchTalk(talkID, actorID uuid.UUID) {
	if err := s.talkRepo.TouchForActor(talkID, actorID); err != nil {
		log.Printf("Warning: failed to touch talk %s: %v", talkID, err)
	}
}

func (s *OfferService) notify(userID uuid.UUID, notiType, title string, relatedID uuid.UUID) {
	if userID == uuid.Nil {
		return
	}
	if err := s.notiRepo.SaveNotification(newNotification(userID, notiType, title, relatedID)); err != nil {
		log.Printf("Warning: failed to save notification: %v", err)
	}
}

func (s *OfferService) track(userID uuid.UUID, name string, itemID uuid.UUID, itemType string) {
	if err := s.notiRepo.SaveEvent(newEvent(userID, name, itemID, itemType)); err != nil {
		log.Printf("Warning: failed to save analytics event: %v", err)
	}
}

func newNotification(userID uuid.UUID, notiType, title string, relatedID uuid.UUID) *entity.Notification {
	return &entity.Notification{
		ID:        primitive.NewObjectID(),
		UserID:    userID.String(),
		Type:      notiType,
		Title:     title,
		RelatedID: relatedID.String(),
		CreatedAt: time.Now(),
	}
}

func newEvent(userID uuid.UUID, name string, itemID uuid.UUID, itemType string) *entity.AnalyticsEvent {
	return &entity.AnalyticsEvent{
		ID:        primitive.NewObjectID(),
		UserID:    userID.String(),
		Name:      name,
		ItemID:    itemID.String(),
		ItemType:  itemType,
		App:       "engine",
		CreatedAt: time.Now(),
	}
}

// otherOf returns the participant that is not the given user.
func otherOf(participants []uuid.UUID, userID uuid.UUID) uuid.UUID {
	for _, p := range participants {
		if p != userID {
			return p
		}
	}
	return uuid.Nil
}

// recipientOf returns the item owner on the opposite side of the payer.
func recipientOf(offer *entity.Offer, payerID uuid.UUID) uuid.UUID {
	for _, item := range offer.Items {
		if item.OwnerID != payerID {
			return item.OwnerID
		}
	}
	return uuid.Nil
}

func otherOfOffer(offer *entity.Offer, actorID uuid.UUID) uuid.UUID {
	for _, item := range offer.Items {
		if item.OwnerID != actorID {
			return item.OwnerID
		}
	}
	return uuid.Nil
}
