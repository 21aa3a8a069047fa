package repository

import (
	"database/sql"
	"fmt"

	entity "simbi-market/internal/domain"

	"github.com/google/uuid"
)

type UserRepository interface {
	GetByID(id uuid.UUID) (*entity.User, error)
	IncrementDeals(tx *sql.Tx, ids []uuid.UUID) error
}

type userRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(id uuid.UUID) (*entity.User, error) {
	var user entity.User
	query := `
		SELECT id, username, first_name, last_name, rating, deals, created_at, updated_at
		FROM users WHERE id = $1
	`
	err := r.db.QueryRow(query, id).Scan(
		&user.ID, &user.Username, &user.FirstName, &user.LastName,
		&user.Rating, &user.Deals, &user.CreatedAt, &user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &user, nil
}

func (r *userRepository) IncrementDeals(tx *sql.Tx, ids []uuid.UUID) error {
	for _, id := range ids {
		if _, err := tx.Exec(`UPDATE users SET deals = deals + 1, updated_at = NOW() WHERE id = $1`, id); err != nil {
			return fmt.Errorf("increment deals: %w", err)
		}
	}
	return nil
}
