package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// TxRunner owns the unit-of-work boundary for state transitions. Every
// transition (status change + history + ledger mutation) runs inside one
// InTx call: either all writes commit or none do.
type TxRunner interface {
	InTx(ctx context.Context, fn func(tx *sql.Tx) error) error
}

type sqlStore struct {
	db *sql.DB
}

func NewStore(db *sql.DB) TxRunner {
	return &sqlStore{db: db}
}

func (s *sqlStore) InTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
