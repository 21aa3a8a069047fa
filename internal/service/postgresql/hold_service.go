package service

import (
	"context"
	"database/sql"
	"errors"

	entity "simbi-market/internal/domain"
	repo "simbi-market/internal/repository/postgresql"

	"github.com/google/uuid"
)

var ErrNoHoldableItem = errors.New("talk has no item to hold")

// holdActions are the per-item-type transitions. Dispatch is on the item
// type tag; both branches share the same escrow and history handling.
type holdActions struct {
	dispute func(tx *sql.Tx, id uuid.UUID) (bool, error)
	resolve func(tx *sql.Tx, id uuid.UUID) (bool, error)
}

// HoldService freezes and unfreezes a deal under dispute. While on hold the
// escrow stays locked; off hold returns the item to its working status
// (offers to completed, orders to accepted).
type HoldService struct {
	store      repo.TxRunner
	offerRepo  repo.OfferRepository
	orderRepo  repo.OrderRepository
	talkRepo   repo.TalkRepository
	ledgerRepo repo.LedgerRepository
	actions    map[string]holdActions
}

func NewHoldService(
	store repo.TxRunner,
	offerRepo repo.OfferRepository,
	orderRepo repo.OrderRepository,
	talkRepo repo.TalkRepository,
	ledgerRepo repo.LedgerRepository,
) *HoldService {
	return &HoldService{
		store:      store,
		offerRepo:  offerRepo,
		orderRepo:  orderRepo,
		talkRepo:   talkRepo,
		ledgerRepo: ledgerRepo,
		actions: map[string]holdActions{
			entity.ItemTypeOffer: {dispute: offerRepo.MarkDisputed, resolve: offerRepo.MarkResolved},
			entity.ItemTypeOrder: {dispute: orderRepo.MarkDisputed, resolve: orderRepo.MarkResolved},
		},
	}
}

// OnHold disputes the talk's current item. An explicit order id targets that
// order; otherwise the newest offer wins over the newest order.
func (s *HoldService) OnHold(ctx context.Context, talkID, actorID uuid.UUID, orderID *uuid.UUID) (string, uuid.UUID, error) {
	itemID, itemType, err := s.resolveItem(talkID, actorID, orderID)
	if err != nil {
		return "", uuid.Nil, err
	}

	err = s.store.InTx(ctx, func(tx *sql.Tx) error {
		ok, err := s.actions[itemType].dispute(tx, itemID)
		if err != nil {
			return err
		}
		if !ok {
			return statusErr(itemType)
		}
		return s.ledgerRepo.InsertHistory(tx, itemID, itemType, actorID, entity.HistoryOnHold)
	})
	if err != nil {
		return "", uuid.Nil, err
	}
	return itemType, itemID, nil
}

// OffHold lifts the dispute and restores the item's working status.
func (s *HoldService) OffHold(ctx context.Context, talkID, actorID uuid.UUID, orderID *uuid.UUID) (string, uuid.UUID, error) {
	itemID, itemType, err := s.resolveItem(talkID, actorID, orderID)
	if err != nil {
		return "", uuid.Nil, err
	}

	err = s.store.InTx(ctx, func(tx *sql.Tx) error {
		ok, err := s.actions[itemType].resolve(tx, itemID)
		if err != nil {
			return err
		}
		if !ok {
			return statusErr(itemType)
		}
		return s.ledgerRepo.InsertHistory(tx, itemID, itemType, actorID, entity.HistoryOffHold)
	})
	if err != nil {
		return "", uuid.Nil, err
	}
	return itemType, itemID, nil
}

func (s *HoldService) resolveItem(talkID, actorID uuid.UUID, orderID *uuid.UUID) (uuid.UUID, string, error) {
	talk, err := s.talkRepo.GetByID(talkID)
	if err != nil {
		return uuid.Nil, "", err
	}
	if talk == nil {
		return uuid.Nil, "", ErrTalkNotFound
	}
	users, err := s.talkRepo.Participants(talkID)
	if err != nil {
		return uuid.Nil, "", err
	}
	if !isParticipant(users, actorID) {
		return uuid.Nil, "", ErrNotParticipant
	}

	if orderID != nil {
		return *orderID, entity.ItemTypeOrder, nil
	}
	offer, err := s.offerRepo.GetLastByTalk(talkID)
	if err != nil {
		return uuid.Nil, "", err
	}
	if offer != nil {
		return offer.ID, entity.ItemTypeOffer, nil
	}
	order, err := s.orderRepo.GetLastByTalk(talkID)
	if err != nil {
		return uuid.Nil, "", err
	}
	if order != nil {
		return order.ID, entity.ItemTypeOrder, nil
	}
	return uuid.Nil, "", ErrNoHoldableItem
}

func statusErr(itemType string) error {
	if itemType == entity.ItemTypeOrder {
		return ErrOrderStatus
	}
	return ErrOfferStatus
}
