package repository

import (
	"database/sql"
	"errors"
	"fmt"

	entity "simbi-market/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrInsufficientBalance = errors.New("insufficient available balance")
	ErrNoPendingFunds      = errors.New("no pending transaction for item")
)

// LedgerRepository is the escrow manager. Lock re-checks the payer's
// available balance inside the caller's transaction (not trusted from an
// earlier validation pass), Finalize completes the double entry, Release
// unwinds the lock. Finalize and Release are idempotent.
type LedgerRepository interface {
	AvailableBalance(userID uuid.UUID) (float64, error)
	AvailableBalanceTx(tx *sql.Tx, userID uuid.UUID) (float64, error)
	Lock(tx *sql.Tx, userID uuid.UUID, amount float64, itemID uuid.UUID, itemType string) error
	Finalize(tx *sql.Tx, itemID uuid.UUID, itemType string, recipientID uuid.UUID) (bool, error)
	Release(tx *sql.Tx, itemID uuid.UUID, itemType string) error
	CompletedByItem(itemID uuid.UUID, itemType string) ([]entity.Transaction, error)
	InsertHistory(tx *sql.Tx, itemID uuid.UUID, itemType string, userID uuid.UUID, kind string) error
	HasConfirmed(tx *sql.Tx, itemID uuid.UUID, itemType string, userID uuid.UUID) (bool, error)
	OtherConfirmed(tx *sql.Tx, itemID uuid.UUID, itemType string, userID uuid.UUID) (bool, error)
}

type ledgerRepository struct {
	db *sql.DB
}

func NewLedgerRepository(db *sql.DB) LedgerRepository {
	return &ledgerRepository{db: db}
}

// Available balance = completed total plus pending debits. Pending rows are
// negative, so summing both statuses yields "completed minus locked".
const balanceQuery = `
	SELECT COALESCE(SUM(amount), 0)
	FROM transactions
	WHERE user_id = $1 AND status IN ('pending', 'completed')
`

func (r *ledgerRepository) AvailableBalance(userID uuid.UUID) (float64, error) {
	var balance float64
	if err := r.db.QueryRow(balanceQuery, userID).Scan(&balance); err != nil {
		return 0, fmt.Errorf("query balance: %w", err)
	}
	return balance, nil
}

func (r *ledgerRepository) AvailableBalanceTx(tx *sql.Tx, userID uuid.UUID) (float64, error) {
	var balance float64
	if err := tx.QueryRow(balanceQuery, userID).Scan(&balance); err != nil {
		return 0, fmt.Errorf("query balance: %w", err)
	}
	return balance, nil
}

// Lock creates the pending debit. The balance is re-read under the same
// transaction to close the propose->accept race window.
func (r *ledgerRepository) Lock(tx *sql.Tx, userID uuid.UUID, amount float64, itemID uuid.UUID, itemType string) error {
	balance, err := r.AvailableBalanceTx(tx, userID)
	if err != nil {
		return err
	}
	if balance < amount {
		return ErrInsufficientBalance
	}

	query := `
		INSERT INTO transactions (id, user_id, amount, status, item_id, item_type, created_at)
		VALUES ($1, $2, $3, 'pending', $4, $5, NOW())
	`
	if _, err := tx.Exec(query, uuid.New(), userID, -amount, itemID, itemType); err != nil {
		return fmt.Errorf("lock funds: %w", err)
	}
	return nil
}

// Finalize flips the pending debit to completed and writes the mirrored
// credit for the recipient. Returns false when no pending row exists; the
// caller logs and proceeds (a prior defect, not this operation's failure).
func (r *ledgerRepository) Finalize(tx *sql.Tx, itemID uuid.UUID, itemType string, recipientID uuid.UUID) (bool, error) {
	var amount float64
	completeQuery := `
		UPDATE transactions
		SET status = 'completed', completed_at = NOW()
		WHERE item_id = $1 AND item_type = $2 AND status = 'pending'
		RETURNING amount
	`
	err := tx.QueryRow(completeQuery, itemID, itemType).Scan(&amount)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("complete pending transaction: %w", err)
	}

	creditQuery := `
		INSERT INTO transactions (id, user_id, amount, status, item_id, item_type, created_at, completed_at)
		VALUES ($1, $2, $3, 'completed', $4, $5, NOW(), NOW())
	`
	if _, err := tx.Exec(creditQuery, uuid.New(), recipientID, -amount, itemID, itemType); err != nil {
		return false, fmt.Errorf("credit recipient: %w", err)
	}
	return true, nil
}

// Release deletes the pending transaction. No-op when none exists.
func (r *ledgerRepository) Release(tx *sql.Tx, itemID uuid.UUID, itemType string) error {
	query := `DELETE FROM transactions WHERE item_id = $1 AND item_type = $2 AND status = 'pending'`
	if _, err := tx.Exec(query, itemID, itemType); err != nil {
		return fmt.Errorf("release funds: %w", err)
	}
	return nil
}

func (r *ledgerRepository) CompletedByItem(itemID uuid.UUID, itemType string) ([]entity.Transaction, error) {
	query := `
		SELECT id, user_id, amount, status, item_id, item_type, created_at, completed_at
		FROM transactions
		WHERE item_id = $1 AND item_type = $2 AND status = 'completed'
		ORDER BY created_at
	`
	rows, err := r.db.Query(query, itemID, itemType)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var txs []entity.Transaction
	for rows.Next() {
		var t entity.Transaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Amount, &t.Status, &t.ItemID, &t.ItemType, &t.CreatedAt, &t.CompletedAt); err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

func (r *ledgerRepository) InsertHistory(tx *sql.Tx, itemID uuid.UUID, itemType string, userID uuid.UUID, kind string) error {
	query := `
		INSERT INTO item_histories (id, item_id, item_type, user_id, kind, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`
	if _, err := tx.Exec(query, uuid.New(), itemID, itemType, userID, kind); err != nil {
		return fmt.Errorf("insert item history: %w", err)
	}
	return nil
}

func (r *ledgerRepository) HasConfirmed(tx *sql.Tx, itemID uuid.UUID, itemType string, userID uuid.UUID) (bool, error) {
	var count int
	query := `
		SELECT COUNT(*) FROM item_histories
		WHERE item_id = $1 AND item_type = $2 AND user_id = $3 AND kind = 'confirmed'
	`
	if err := tx.QueryRow(query, itemID, itemType, userID).Scan(&count); err != nil {
		return false, fmt.Errorf("query confirmations: %w", err)
	}
	return count > 0, nil
}

func (r *ledgerRepository) OtherConfirmed(tx *sql.Tx, itemID uuid.UUID, itemType string, userID uuid.UUID) (bool, error) {
	var count int
	query := `
		SELECT COUNT(*) FROM item_histories
		WHERE item_id = $1 AND item_type = $2 AND user_id != $3 AND kind = 'confirmed'
	`
	if err := tx.QueryRow(query, itemID, itemType, userID).Scan(&count); err != nil {
		return false, fmt.Errorf("query confirmations: %w", err)
	}
	return count > 0, nil
}
