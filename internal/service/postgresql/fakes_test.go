package service

import (
	"context"
	"database/sql"
	"sync"
	"time"

	entity "simbi-market/internal/domain"
	"simbi-market/internal/gateway"
	repo "simbi-market/internal/repository/postgresql"

	"github.com/google/uuid"
)

// fakeStore runs the closure without a real transaction; the fakes below
// ignore the tx argument.
type fakeStore struct{}

func (fakeStore) InTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return fn(nil)
}

// --- ledger ---

type fakeLedger struct {
	mu        sync.Mutex
	txs       []*entity.Transaction
	histories []entity.ItemHistory
}

func (f *fakeLedger) balance(userID uuid.UUID) float64 {
	var sum float64
	for _, t := range f.txs {
		if t.UserID == userID {
			sum += t.Amount
		}
	}
	return sum
}

func (f *fakeLedger) AvailableBalance(userID uuid.UUID) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balance(userID), nil
}

func (f *fakeLedger) AvailableBalanceTx(tx *sql.Tx, userID uuid.UUID) (float64, error) {
	return f.AvailableBalance(userID)
}

func (f *fakeLedger) Lock(tx *sql.Tx, userID uuid.UUID, amount float64, itemID uuid.UUID, itemType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.balance(userID) < amount {
		return repo.ErrInsufficientBalance
	}
	f.txs = append(f.txs, &entity.Transaction{
		ID:       uuid.New(),
		UserID:   userID,
		Amount:   -amount,
		Status:   entity.TransactionStatusPending,
		ItemID:   itemID,
		ItemType: itemType,
	})
	return nil
}

func (f *fakeLedger) Finalize(tx *sql.Tx, itemID uuid.UUID, itemType string, recipientID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.txs {
		if t.ItemID == itemID && t.ItemType == itemType && t.Status == entity.TransactionStatusPending {
			now := time.Now()
			t.Status = entity.TransactionStatusCompleted
			t.CompletedAt = &now
			f.txs = append(f.txs, &entity.Transaction{
				ID:          uuid.New(),
				UserID:      recipientID,
				Amount:      -t.Amount,
				Status:      entity.TransactionStatusCompleted,
				ItemID:      itemID,
				ItemType:    itemType,
				CompletedAt: &now,
			})
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeLedger) Release(tx *sql.Tx, itemID uuid.UUID, itemType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.txs[:0]
	for _, t := range f.txs {
		if t.ItemID == itemID && t.ItemType == itemType && t.Status == entity.TransactionStatusPending {
			continue
		}
		kept = append(kept, t)
	}
	f.txs = kept
	return nil
}

func (f *fakeLedger) CompletedByItem(itemID uuid.UUID, itemType string) ([]entity.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entity.Transaction
	for _, t := range f.txs {
		if t.ItemID == itemID && t.ItemType == itemType && t.Status == entity.TransactionStatusCompleted {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeLedger) InsertHistory(tx *sql.Tx, itemID uuid.UUID, itemType string, userID uuid.UUID, kind string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.histories = append(f.histories, entity.ItemHistory{
		ID: uuid.New(), ItemID: itemID, ItemType: itemType, UserID: userID, Kind: kind,
	})
	return nil
}

func (f *fakeLedger) HasConfirmed(tx *sql.Tx, itemID uuid.UUID, itemType string, userID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, h := range f.histories {
		if h.ItemID == itemID && h.ItemType == itemType && h.UserID == userID && h.Kind == entity.HistoryConfirmed {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeLedger) OtherConfirmed(tx *sql.Tx, itemID uuid.UUID, itemType string, userID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, h := range f.histories {
		if h.ItemID == itemID && h.ItemType == itemType && h.UserID != userID && h.Kind == entity.HistoryConfirmed {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeLedger) pendingFor(itemID uuid.UUID) *entity.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.txs {
		if t.ItemID == itemID && t.Status == entity.TransactionStatusPending {
			return t
		}
	}
	return nil
}

func (f *fakeLedger) credit(userID uuid.UUID, amount float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.txs = append(f.txs, &entity.Transaction{
		ID:     uuid.New(),
		UserID: userID,
		Amount: amount,
		Status: entity.TransactionStatusCompleted,
	})
}

// --- offers ---

type fakeOfferRepo struct {
	offers []*entity.Offer
}

func (f *fakeOfferRepo) Insert(tx *sql.Tx, offer *entity.Offer) error {
	cp := *offer
	f.offers = append(f.offers, &cp)
	return nil
}

func (f *fakeOfferRepo) GetByID(id uuid.UUID) (*entity.Offer, error) {
	for _, o := range f.offers {
		if o.ID == id {
			cp := *o
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeOfferRepo) GetLastByTalk(talkID uuid.UUID) (*entity.Offer, error) {
	for i := len(f.offers) - 1; i >= 0; i-- {
		if f.offers[i].TalkID == talkID {
			cp := *f.offers[i]
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeOfferRepo) LockByID(tx *sql.Tx, id uuid.UUID) (*entity.Offer, error) {
	return f.GetByID(id)
}

func (f *fakeOfferRepo) transition(id uuid.UUID, from []string, to string, apply func(*entity.Offer)) (bool, error) {
	for _, o := range f.offers {
		if o.ID != id {
			continue
		}
		for _, s := range from {
			if o.Status == s {
				o.Status = to
				if apply != nil {
					apply(o)
				}
				return true, nil
			}
		}
		return false, nil
	}
	return false, nil
}

func (f *fakeOfferRepo) MarkAccepted(tx *sql.Tx, id uuid.UUID, dueDate time.Time) (bool, error) {
	return f.transition(id, []string{entity.OfferStatusOpen}, entity.OfferStatusAccepted, func(o *entity.Offer) {
		o.DueDate = &dueDate
	})
}

func (f *fakeOfferRepo) MarkClosed(tx *sql.Tx, id uuid.UUID) (bool, error) {
	return f.transition(id, []string{entity.OfferStatusOpen}, entity.OfferStatusClosed, nil)
}

func (f *fakeOfferRepo) MarkConfirmed(tx *sql.Tx, id uuid.UUID, status string) (bool, error) {
	return f.transition(id, []string{entity.OfferStatusAccepted, entity.OfferStatusConfirmed}, status, nil)
}

func (f *fakeOfferRepo) MarkCanceled(tx *sql.Tx, id uuid.UUID, reason, kind string) (bool, error) {
	return f.transition(id, []string{entity.OfferStatusAccepted, entity.OfferStatusDisputed}, entity.OfferStatusCanceled, func(o *entity.Offer) {
		o.CancelReason = reason
		o.CancelKind = kind
	})
}

func (f *fakeOfferRepo) MarkDisputed(tx *sql.Tx, id uuid.UUID) (bool, error) {
	return f.transition(id, []string{entity.OfferStatusAccepted, entity.OfferStatusCompleted}, entity.OfferStatusDisputed, nil)
}

func (f *fakeOfferRepo) MarkResolved(tx *sql.Tx, id uuid.UUID) (bool, error) {
	return f.transition(id, []string{entity.OfferStatusDisputed}, entity.OfferStatusCompleted, nil)
}

// --- orders ---

type fakeOrderRepo struct {
	orders []*entity.Order
}

func (f *fakeOrderRepo) Insert(tx *sql.Tx, order *entity.Order) error {
	cp := *order
	f.orders = append(f.orders, &cp)
	return nil
}

func (f *fakeOrderRepo) GetByID(id uuid.UUID) (*entity.Order, error) {
	for _, o := range f.orders {
		if o.ID == id {
			cp := *o
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeOrderRepo) GetLastByTalk(talkID uuid.UUID) (*entity.Order, error) {
	for i := len(f.orders) - 1; i >= 0; i-- {
		if f.orders[i].TalkID == talkID {
			cp := *f.orders[i]
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeOrderRepo) LockByID(tx *sql.Tx, id uuid.UUID) (*entity.Order, error) {
	return f.GetByID(id)
}

func (f *fakeOrderRepo) transition(id uuid.UUID, from []string, to string, apply func(*entity.Order)) (bool, error) {
	for _, o := range f.orders {
		if o.ID != id {
			continue
		}
		for _, s := range from {
			if o.Status == s {
				o.Status = to
				if apply != nil {
					apply(o)
				}
				return true, nil
			}
		}
		return false, nil
	}
	return false, nil
}

func (f *fakeOrderRepo) MarkAccepted(tx *sql.Tx, id uuid.UUID) (bool, error) {
	return f.transition(id, []string{entity.OrderStatusOpen}, entity.OrderStatusAccepted, nil)
}

func (f *fakeOrderRepo) MarkCompleted(tx *sql.Tx, id uuid.UUID) (bool, error) {
	return f.transition(id, []string{entity.OrderStatusAccepted}, entity.OrderStatusCompleted, nil)
}

func (f *fakeOrderRepo) MarkCanceled(tx *sql.Tx, id uuid.UUID, reason string) (bool, error) {
	return f.transition(id, []string{entity.OrderStatusOpen, entity.OrderStatusAccepted}, entity.OrderStatusCanceled, func(o *entity.Order) {
		o.CancelReason = reason
	})
}

func (f *fakeOrderRepo) MarkDisputed(tx *sql.Tx, id uuid.UUID) (bool, error) {
	return f.transition(id, []string{entity.OrderStatusAccepted, entity.OrderStatusCompleted}, entity.OrderStatusDisputed, nil)
}

func (f *fakeOrderRepo) MarkResolved(tx *sql.Tx, id uuid.UUID) (bool, error) {
	return f.transition(id, []string{entity.OrderStatusDisputed}, entity.OrderStatusAccepted, nil)
}

// --- talks ---

type fakeTalkRepo struct {
	talks        map[uuid.UUID]*entity.Talk
	participants map[uuid.UUID][]uuid.UUID
	messages     []*entity.Message
}

func newFakeTalkRepo() *fakeTalkRepo {
	return &fakeTalkRepo{
		talks:        map[uuid.UUID]*entity.Talk{},
		participants: map[uuid.UUID][]uuid.UUID{},
	}
}

func (f *fakeTalkRepo) addTalk(userA, userB uuid.UUID) *entity.Talk {
	talk := &entity.Talk{ID: uuid.New(), Status: entity.TalkStatusOpen}
	f.talks[talk.ID] = talk
	f.participants[talk.ID] = []uuid.UUID{userA, userB}
	return talk
}

func (f *fakeTalkRepo) Insert(tx *sql.Tx, talk *entity.Talk, userIDs []uuid.UUID, creatorID uuid.UUID) error {
	cp := *talk
	f.talks[talk.ID] = &cp
	f.participants[talk.ID] = userIDs
	return nil
}

func (f *fakeTalkRepo) GetByID(id uuid.UUID) (*entity.Talk, error) {
	t, ok := f.talks[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTalkRepo) Participants(talkID uuid.UUID) ([]uuid.UUID, error) {
	return f.participants[talkID], nil
}

func (f *fakeTalkRepo) SetStatus(tx *sql.Tx, id uuid.UUID, status string) error {
	if t, ok := f.talks[id]; ok {
		t.Status = status
	}
	return nil
}

func (f *fakeTalkRepo) SetService(tx *sql.Tx, id, serviceID uuid.UUID) error {
	if t, ok := f.talks[id]; ok {
		t.ServiceID = serviceID
	}
	return nil
}

func (f *fakeTalkRepo) InsertMessage(tx *sql.Tx, msg *entity.Message) error {
	cp := *msg
	f.messages = append(f.messages, &cp)
	return nil
}

func (f *fakeTalkRepo) TouchForActor(talkID, actorID uuid.UUID) error { return nil }

func (f *fakeTalkRepo) MarkRead(talkIDs []uuid.UUID, userID uuid.UUID) error   { return nil }
func (f *fakeTalkRepo) MarkUnread(talkIDs []uuid.UUID, userID uuid.UUID) error { return nil }
func (f *fakeTalkRepo) Archive(talkIDs []uuid.UUID, userID uuid.UUID) error    { return nil }
func (f *fakeTalkRepo) Unarchive(talkIDs []uuid.UUID, userID uuid.UUID) error  { return nil }
func (f *fakeTalkRepo) UnreadCount(userID uuid.UUID) (int, error)              { return 0, nil }
func (f *fakeTalkRepo) TabCounts(userID uuid.UUID) (*entity.TabCounts, error) {
	return &entity.TabCounts{}, nil
}

// --- users ---

type fakeUserRepo struct {
	users map[uuid.UUID]*entity.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[uuid.UUID]*entity.User{}}
}

func (f *fakeUserRepo) addUser() uuid.UUID {
	id := uuid.New()
	f.users[id] = &entity.User{ID: id, Username: "user-" + id.String()[:8]}
	return id
}

func (f *fakeUserRepo) GetByID(id uuid.UUID) (*entity.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUserRepo) IncrementDeals(tx *sql.Tx, ids []uuid.UUID) error {
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			u.Deals++
		}
	}
	return nil
}

// --- services (catalog) ---

type fakeServiceRepo struct {
	services map[uuid.UUID]*entity.Service
}

func newFakeServiceRepo() *fakeServiceRepo {
	return &fakeServiceRepo{services: map[uuid.UUID]*entity.Service{}}
}

func (f *fakeServiceRepo) add(svc *entity.Service) *entity.Service {
	if svc.ID == uuid.Nil {
		svc.ID = uuid.New()
	}
	f.services[svc.ID] = svc
	return svc
}

func (f *fakeServiceRepo) GetByID(id uuid.UUID) (*entity.Service, error) {
	s, ok := f.services[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

// --- ratings ---

type ratingKey struct {
	user, author, talk uuid.UUID
	kind               string
}

type fakeRatingRepo struct {
	ratings map[ratingKey]*entity.Rating
	reviews []*entity.Review
}

func newFakeRatingRepo() *fakeRatingRepo {
	return &fakeRatingRepo{ratings: map[ratingKey]*entity.Rating{}}
}

func (f *fakeRatingRepo) Upsert(rating *entity.Rating) error {
	key := ratingKey{rating.UserID, rating.AuthorID, rating.TalkID, rating.Kind}
	if existing, ok := f.ratings[key]; ok {
		existing.Value = rating.Value
		if rating.ItemID != uuid.Nil {
			existing.ItemID = rating.ItemID
			existing.ItemType = rating.ItemType
		}
		return nil
	}
	cp := *rating
	f.ratings[key] = &cp
	return nil
}

func (f *fakeRatingRepo) Exists(authorID, talkID uuid.UUID, kind string) (bool, error) {
	for key := range f.ratings {
		if key.author == authorID && key.talk == talkID && key.kind == kind {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRatingRepo) ByAuthorAndTalk(authorID, talkID uuid.UUID) ([]entity.Rating, error) {
	var out []entity.Rating
	for key, r := range f.ratings {
		if key.author == authorID && key.talk == talkID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeRatingRepo) InsertReview(review *entity.Review) error {
	cp := *review
	f.reviews = append(f.reviews, &cp)
	return nil
}

func (f *fakeRatingRepo) GetReview(itemID uuid.UUID, itemType string, authorID uuid.UUID) (*entity.Review, error) {
	for _, r := range f.reviews {
		if r.ItemID == itemID && r.ItemType == itemType && r.AuthorID == authorID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeRatingRepo) UpdateReview(review *entity.Review) error {
	for _, r := range f.reviews {
		if r.ID == review.ID {
			r.Message = review.Message
			r.Rating = review.Rating
			return nil
		}
	}
	return nil
}

// --- notifications ---

type fakeNotiRepo struct {
	notifications []*entity.Notification
	events        []*entity.AnalyticsEvent
}

func (f *fakeNotiRepo) SaveNotification(noti *entity.Notification) error {
	f.notifications = append(f.notifications, noti)
	return nil
}

func (f *fakeNotiRepo) SaveEvent(event *entity.AnalyticsEvent) error {
	f.events = append(f.events, event)
	return nil
}

// --- jobs ---

type enqueuedJob struct {
	name  string
	key   string
	args  map[string]string
	delay time.Duration
}

type fakeQueue struct {
	jobs []enqueuedJob
}

func (f *fakeQueue) EnqueueIn(ctx context.Context, name, key string, args map[string]string, delay time.Duration) error {
	f.jobs = append(f.jobs, enqueuedJob{name: name, key: key, args: args, delay: delay})
	return nil
}

// --- payments ---

type chargeCall struct {
	amount  float64
	buyerID uuid.UUID
	capture bool
}

type fakeGateway struct {
	decline bool
	charges []chargeCall
}

func (f *fakeGateway) Authorize(ctx context.Context, req gateway.ChargeRequest) (string, error) {
	req.Capture = false
	return f.record(req)
}

func (f *fakeGateway) Capture(ctx context.Context, chargeID string) error { return nil }

func (f *fakeGateway) Charge(ctx context.Context, req gateway.ChargeRequest) (string, error) {
	req.Capture = true
	return f.record(req)
}

func (f *fakeGateway) record(req gateway.ChargeRequest) (string, error) {
	if f.decline {
		return "", &gateway.DeclineError{Code: "card_declined", Message: "card declined"}
	}
	f.charges = append(f.charges, chargeCall{amount: req.Amount, buyerID: req.BuyerID, capture: req.Capture})
	return "ch_" + uuid.New().String()[:8], nil
}
