package repository

import (
	"database/sql"
	"fmt"
	"time"

	entity "simbi-market/internal/domain"

	"github.com/google/uuid"

	"github.com/lib/pq"
)

// OfferRepository persists offers and their items. The Mark* methods are
// conditional writes: they update only when the row is still in an allowed
// prior status and report whether a row was affected, so two concurrent
// transitions cannot both succeed.
type OfferRepository interface {
	Insert(tx *sql.Tx, offer *entity.Offer) error
	GetByID(id uuid.UUID) (*entity.Offer, error)
	GetLastByTalk(talkID uuid.UUID) (*entity.Offer, error)
	LockByID(tx *sql.Tx, id uuid.UUID) (*entity.Offer, error)
	MarkAccepted(tx *sql.Tx, id uuid.UUID, dueDate time.Time) (bool, error)
	MarkClosed(tx *sql.Tx, id uuid.UUID) (bool, error)
	MarkConfirmed(tx *sql.Tx, id uuid.UUID, status string) (bool, error)
	MarkCanceled(tx *sql.Tx, id uuid.UUID, reason, kind string) (bool, error)
	MarkDisputed(tx *sql.Tx, id uuid.UUID) (bool, error)
	MarkResolved(tx *sql.Tx, id uuid.UUID) (bool, error)
}

type offerRepository struct {
	db *sql.DB
}

func NewOfferRepository(db *sql.DB) OfferRepository {
	return &offerRepository{db: db}
}

func (r *offerRepository) Insert(tx *sql.Tx, offer *entity.Offer) error {
	query := `
		INSERT INTO offers (id, talk_id, owner_id, status, within, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
	`
	if _, err := tx.Exec(query, offer.ID, offer.TalkID, offer.OwnerID, offer.Status, offer.Within); err != nil {
		return fmt.Errorf("insert offer: %w", err)
	}

	itemQuery := `
		INSERT INTO offer_items (id, offer_id, owner_id, service_id, kind, unit_count)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	for i := range offer.Items {
		item := &offer.Items[i]
		var serviceID interface{}
		if item.ServiceID != uuid.Nil {
			serviceID = item.ServiceID
		}
		if _, err := tx.Exec(itemQuery, item.ID, offer.ID, item.OwnerID, serviceID, item.Kind, item.UnitCount); err != nil {
			return fmt.Errorf("insert offer item: %w", err)
		}
	}
	return nil
}

const offerColumns = `id, talk_id, owner_id, status, within, due_date, cancel_reason, cancel_kind, created_at, updated_at`

func (r *offerRepository) scanOffer(row *sql.Row) (*entity.Offer, error) {
	var offer entity.Offer
	var dueDate sql.NullTime
	var reason, kind sql.NullString
	err := row.Scan(
		&offer.ID, &offer.TalkID, &offer.OwnerID, &offer.Status, &offer.Within,
		&dueDate, &reason, &kind, &offer.CreatedAt, &offer.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan offer: %w", err)
	}
	if dueDate.Valid {
		offer.DueDate = &dueDate.Time
	}
	offer.CancelReason = reason.String
	offer.CancelKind = kind.String
	return &offer, nil
}

func (r *offerRepository) loadItems(offer *entity.Offer) error {
	query := `
		SELECT id, offer_id, owner_id, service_id, kind, unit_count
		FROM offer_items WHERE offer_id = $1
	`
	rows, err := r.db.Query(query, offer.ID)
	if err != nil {
		return fmt.Errorf("query offer items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item entity.OfferItem
		var serviceID sql.NullString
		if err := rows.Scan(&item.ID, &item.OfferID, &item.OwnerID, &serviceID, &item.Kind, &item.UnitCount); err != nil {
			return err
		}
		if serviceID.Valid {
			item.ServiceID, _ = uuid.Parse(serviceID.String)
		}
		offer.Items = append(offer.Items, item)
	}
	return rows.Err()
}

func (r *offerRepository) GetByID(id uuid.UUID) (*entity.Offer, error) {
	query := `SELECT ` + offerColumns + ` FROM offers WHERE id = $1`
	offer, err := r.scanOffer(r.db.QueryRow(query, id))
	if err != nil || offer == nil {
		return offer, err
	}
	return offer, r.loadItems(offer)
}

func (r *offerRepository) GetLastByTalk(talkID uuid.UUID) (*entity.Offer, error) {
	query := `SELECT ` + offerColumns + ` FROM offers WHERE talk_id = $1 ORDER BY created_at DESC LIMIT 1`
	offer, err := r.scanOffer(r.db.QueryRow(query, talkID))
	if err != nil || offer == nil {
		return offer, err
	}
	return offer, r.loadItems(offer)
}

// LockByID re-reads the offer under FOR UPDATE so the caller's precondition
// checks hold until commit.
func (r *offerRepository) LockByID(tx *sql.Tx, id uuid.UUID) (*entity.Offer, error) {
	query := `SELECT ` + offerColumns + ` FROM offers WHERE id = $1 FOR UPDATE`
	offer, err := r.scanOffer(tx.QueryRow(query, id))
	if err != nil || offer == nil {
		return offer, err
	}

	itemQuery := `
		SELECT id, offer_id, owner_id, service_id, kind, unit_count
		FROM offer_items WHERE offer_id = $1
	`
	rows, err := tx.Query(itemQuery, id)
	if err != nil {
		return nil, fmt.Errorf("query offer items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item entity.OfferItem
		var serviceID sql.NullString
		if err := rows.Scan(&item.ID, &item.OfferID, &item.OwnerID, &serviceID, &item.Kind, &item.UnitCount); err != nil {
			return nil, err
		}
		if serviceID.Valid {
			item.ServiceID, _ = uuid.Parse(serviceID.String)
		}
		offer.Items = append(offer.Items, item)
	}
	return offer, rows.Err()
}

func (r *offerRepository) transition(tx *sql.Tx, query string, args ...interface{}) (bool, error) {
	res, err := tx.Exec(query, args...)
	if err != nil {
		return false, fmt.Errorf("update offer status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *offerRepository) MarkAccepted(tx *sql.Tx, id uuid.UUID, dueDate time.Time) (bool, error) {
	query := `
		UPDATE offers SET status = 'accepted', due_date = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'open'
	`
	return r.transition(tx, query, id, dueDate)
}

func (r *offerRepository) MarkClosed(tx *sql.Tx, id uuid.UUID) (bool, error) {
	query := `
		UPDATE offers SET status = 'closed', updated_at = NOW()
		WHERE id = $1 AND status = 'open'
	`
	return r.transition(tx, query, id)
}

func (r *offerRepository) MarkConfirmed(tx *sql.Tx, id uuid.UUID, status string) (bool, error) {
	query := `
		UPDATE offers SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = ANY($3)
	`
	return r.transition(tx, query, id, status, pq.Array([]string{entity.OfferStatusAccepted, entity.OfferStatusConfirmed}))
}

func (r *offerRepository) MarkCanceled(tx *sql.Tx, id uuid.UUID, reason, kind string) (bool, error) {
	query := `
		UPDATE offers SET status = 'canceled', cancel_reason = $2, cancel_kind = $3, updated_at = NOW()
		WHERE id = $1 AND status = ANY($4)
	`
	return r.transition(tx, query, id, reason, kind, pq.Array([]string{entity.OfferStatusAccepted, entity.OfferStatusDisputed}))
}

func (r *offerRepository) MarkDisputed(tx *sql.Tx, id uuid.UUID) (bool, error) {
	query := `
		UPDATE offers SET status = 'disputed', updated_at = NOW()
		WHERE id = $1 AND status = ANY($2)
	`
	return r.transition(tx, query, id, pq.Array([]string{entity.OfferStatusAccepted, entity.OfferStatusCompleted}))
}

func (r *offerRepository) MarkResolved(tx *sql.Tx, id uuid.UUID) (bool, error) {
	query := `
		UPDATE offers SET status = 'completed', updated_at = NOW()
		WHERE id = $1 AND status = 'disputed'
	`
	return r.transition(tx, query, id)
}
