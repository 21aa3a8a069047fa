package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	entity "simbi-market/internal/domain"
	"simbi-market/internal/gateway"
	"simbi-market/internal/jobs"
	mongorepo "simbi-market/internal/repository/mongodb"
	repo "simbi-market/internal/repository/postgresql"

	"github.com/google/uuid"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrOrderStatus   = errors.New("order is not in a valid status for this action")
	ErrNotSeller     = errors.New("only the seller can accept an order")
	ErrNotBuyer      = errors.New("only the buyer can confirm delivery")
)

type OrderService struct {
	store      repo.TxRunner
	orderRepo  repo.OrderRepository
	talkRepo   repo.TalkRepository
	ledgerRepo repo.LedgerRepository
	validator  *OrderValidator
	payments   gateway.PaymentGateway
	queue      jobs.JobQueue
	notiRepo   mongorepo.NotificationRepository
}

func NewOrderService(
	store repo.TxRunner,
	orderRepo repo.OrderRepository,
	talkRepo repo.TalkRepository,
	ledgerRepo repo.LedgerRepository,
	validator *OrderValidator,
	payments gateway.PaymentGateway,
	queue jobs.JobQueue,
	notiRepo mongorepo.NotificationRepository,
) *OrderService {
	return &OrderService{
		store:      store,
		orderRepo:  orderRepo,
		talkRepo:   talkRepo,
		ledgerRepo: ledgerRepo,
		validator:  validator,
		payments:   payments,
		queue:      queue,
		notiRepo:   notiRepo,
	}
}

// Create places a fixed-price product order in the talk. The order carries
// two legs: the product (seller side) and its simbi price (buyer side).
// Shipping cost and processing time are copied from the listing at order
// time so later edits do not change a placed order.
func (s *OrderService) Create(ctx context.Context, talkID, buyerID uuid.UUID, input *entity.CreateOrderInput) (*entity.Order, entity.FieldErrors, error) {
	if _, err := s.orderParticipants(talkID, buyerID); err != nil {
		return nil, nil, err
	}

	serviceID, err := uuid.Parse(input.ServiceID)
	if err != nil {
		ferrs := entity.FieldErrors{}
		ferrs.Add("service_id", "service_id is not a valid id")
		return nil, ferrs, nil
	}

	// A non-positive count means a single unit.
	count := input.Count
	if count < 1 {
		count = 1
	}

	svc, ferrs, err := s.validator.Validate(buyerID, serviceID, count)
	if err != nil {
		return nil, nil, err
	}
	if ferrs.Any() {
		return nil, ferrs, nil
	}

	order := &entity.Order{
		ID:             uuid.New(),
		TalkID:         talkID,
		AuthorID:       buyerID,
		Status:         entity.OrderStatusOpen,
		ShippingCosts:  svc.ShippingCost,
		ProcessingTime: svc.ProcessingTime,
		Items: []entity.OrderItem{
			{ID: uuid.New(), OwnerID: svc.UserID, ServiceID: svc.ID, Count: float64(count)},
			{ID: uuid.New(), OwnerID: buyerID, Count: svc.Price * float64(count)},
		},
	}

	err = s.store.InTx(ctx, func(tx *sql.Tx) error {
		return s.orderRepo.Insert(tx, order)
	})
	if err != nil {
		return nil, nil, err
	}

	s.touchTalk(talkID, buyerID)
	s.notify(svc.UserID, "order.created", "New order", order.ID)
	return order, nil, nil
}

// Accept is the seller taking the order. Shipping is charged to the buyer's
// card first when the order carries shipping costs; a decline aborts before
// any local write. The simbi price is then locked in escrow.
func (s *OrderService) Accept(ctx context.Context, talkID, actorID uuid.UUID) (*entity.Order, error) {
	if _, err := s.orderParticipants(talkID, actorID); err != nil {
		return nil, err
	}

	last, err := s.orderRepo.GetLastByTalk(talkID)
	if err != nil {
		return nil, err
	}
	if last == nil {
		return nil, ErrOrderNotFound
	}

	var order *entity.Order
	err = s.store.InTx(ctx, func(tx *sql.Tx) error {
		order, err = s.orderRepo.LockByID(tx, last.ID)
		if err != nil {
			return err
		}
		if order == nil {
			return ErrOrderNotFound
		}

		product := order.ProductItem()
		if product == nil || product.OwnerID != actorID {
			return ErrNotSeller
		}

		if order.ShippingCosts > 0 {
			_, err := s.payments.Charge(ctx, gateway.ChargeRequest{
				Amount:  order.ShippingCosts,
				BuyerID: order.AuthorID,
				Capture: true,
				Metadata: map[string]string{
					"item_id":   order.ID.String(),
					"item_type": entity.ItemTypeOrder,
				},
			})
			if err != nil {
				return err
			}
		}

		if simbi := order.SimbiItem(); simbi != nil && simbi.Count > 0 {
			if err := s.ledgerRepo.Lock(tx, order.AuthorID, simbi.Count, order.ID, entity.ItemTypeOrder); err != nil {
				return err
			}
		}

		ok, err := s.orderRepo.MarkAccepted(tx, order.ID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrOrderStatus
		}
		order.Status = entity.OrderStatusAccepted

		if err := s.ledgerRepo.InsertHistory(tx, order.ID, entity.ItemTypeOrder, actorID, entity.HistoryAccepted); err != nil {
			return err
		}
		return s.talkRepo.SetStatus(tx, talkID, entity.TalkStatusInProgress)
	})
	if err != nil {
		return nil, err
	}

	s.enqueueSimbiReminder(ctx, order.ID)
	s.touchTalk(talkID, actorID)
	s.notify(order.AuthorID, "order.accepted", "Your order was accepted", order.ID)
	s.track(actorID, "order_accepted", order.ID)
	return order, nil
}

// Cancel aborts an open or accepted order, releases any escrowed simbi and
// reopens the talk.
func (s *OrderService) Cancel(ctx context.Context, talkID, actorID uuid.UUID, input *entity.CancelInput) (*entity.Order, error) {
	participants, err := s.orderParticipants(talkID, actorID)
	if err != nil {
		return nil, err
	}

	last, err := s.orderRepo.GetLastByTalk(talkID)
	if err != nil {
		return nil, err
	}
	if last == nil {
		return nil, ErrOrderNotFound
	}

	reason := input.Reason
	if input.ReasonKind == entity.CancelKindNoResponse {
		reason = noResponseReason
	}

	err = s.store.InTx(ctx, func(tx *sql.Tx) error {
		ok, err := s.orderRepo.MarkCanceled(tx, last.ID, reason)
		if err != nil {
			return err
		}
		if !ok {
			return ErrOrderStatus
		}
		if err := s.ledgerRepo.Release(tx, last.ID, entity.ItemTypeOrder); err != nil {
			return err
		}
		if err := s.ledgerRepo.InsertHistory(tx, last.ID, entity.ItemTypeOrder, actorID, entity.HistoryCanceled); err != nil {
			return err
		}
		return s.talkRepo.SetStatus(tx, talkID, entity.TalkStatusOpen)
	})
	if err != nil {
		return nil, err
	}
	last.Status = entity.OrderStatusCanceled
	last.CancelReason = reason

	s.touchTalk(talkID, actorID)
	s.notify(otherOf(participants, actorID), "order.canceled", "Order canceled", last.ID)
	return last, nil
}

// ConfirmDelivery is buyer-only. It completes the order and finalizes the
// escrow to the seller in one transaction; the talk returns to open.
func (s *OrderService) ConfirmDelivery(ctx context.Context, talkID, actorID uuid.UUID) (*entity.Order, error) {
	if _, err := s.orderParticipants(talkID, actorID); err != nil {
		return nil, err
	}

	last, err := s.orderRepo.GetLastByTalk(talkID)
	if err != nil {
		return nil, err
	}
	if last == nil {
		return nil, ErrOrderNotFound
	}
	if last.AuthorID != actorID {
		return nil, ErrNotBuyer
	}

	var order *entity.Order
	err = s.store.InTx(ctx, func(tx *sql.Tx) error {
		order, err = s.orderRepo.LockByID(tx, last.ID)
		if err != nil {
			return err
		}
		if order == nil {
			return ErrOrderNotFound
		}

		ok, err := s.orderRepo.MarkCompleted(tx, order.ID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrOrderStatus
		}
		order.Status = entity.OrderStatusCompleted

		if product := order.ProductItem(); product != nil {
			settled, err := s.ledgerRepo.Finalize(tx, order.ID, entity.ItemTypeOrder, product.OwnerID)
			if err != nil {
				return err
			}
			if !settled {
				log.Printf("Warning: no pending funds to finalize for order %s", order.ID)
			}
		}
		if err := s.ledgerRepo.InsertHistory(tx, order.ID, entity.ItemTypeOrder, actorID, entity.HistoryConfirmed); err != nil {
			return err
		}
		return s.talkRepo.SetStatus(tx, talkID, entity.TalkStatusOpen)
	})
	if err != nil {
		return nil, err
	}

	s.touchTalk(talkID, actorID)
	if product := order.ProductItem(); product != nil {
		s.notify(product.OwnerID, "order.confirmed", "Delivery confirmed", order.ID)
	}
	s.track(actorID, "order_delivered", order.ID)
	return order, nil
}

// Last returns the newest order in the talk, if any.
func (s *OrderService) Last(talkID uuid.UUID) (*entity.Order, error) {
	return s.orderRepo.GetLastByTalk(talkID)
}

// CanConfirmDelivery runs the confirm_delivery guards without writing
// anything. Callers that bundle other writes with the confirmation check it
// first.
func (s *OrderService) CanConfirmDelivery(talkID, actorID uuid.UUID) error {
	if _, err := s.orderParticipants(talkID, actorID); err != nil {
		return err
	}

	last, err := s.orderRepo.GetLastByTalk(talkID)
	if err != nil {
		return err
	}
	if last == nil {
		return ErrOrderNotFound
	}
	if last.AuthorID != actorID {
		return ErrNotBuyer
	}
	if last.Status != entity.OrderStatusAccepted {
		return ErrOrderStatus
	}
	return nil
}

func (s *OrderService) orderParticipants(talkID, actorID uuid.UUID) ([]uuid.UUID, error) {
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

func (s *OrderService) enqueueSimbiReminder(ctx context.Context, orderID uuid.UUID) {
	key := fmt.Sprintf("%s:%s", jobs.JobSimbiReminder, orderID)
	args := map[string]string{"item_id": orderID.String(), "item_type": entity.ItemTypeOrder}
	if err := s.queue.EnqueueIn(ctx, jobs.JobSimbiReminder, key, args, simbiReminderDelay); err != nil {
		log.Printf("Warning: failed to enqueue simbi reminder for order %s: %v", orderID, err)
	}
}

func (s *OrderService) touchTalk(talkID, actorID uuid.UUID) {
	if err := s.talkRepo.TouchForActor(talkID, actorID); err != nil {
		log.Printf("Warning: failed to touch talk %s: %v", talkID, err)
	}
}

func (s *OrderService) track(userID uuid.UUID, name string, orderID uuid.UUID) {
	if err := s.notiRepo.SaveEvent(newEvent(userID, name, orderID, entity.ItemTypeOrder)); err != nil {
		log.Printf("Warning: failed to save analytics event: %v", err)
	}
}

func (s *OrderService) notify(userID uuid.UUID, notiType, title string, relatedID uuid.UUID) {
	if userID == uuid.Nil {
		return
	}
	noti := newNotification(userID, notiType, title, relatedID)
	if err := s.notiRepo.SaveNotification(noti); err != nil {
		log.Printf("Warning: failed to save notification: %v", err)
	}
}
