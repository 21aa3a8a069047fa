package repository

import (
	"database/sql"
	"fmt"

	entity "simbi-market/internal/domain"

	"github.com/google/uuid"
)

type ServiceRepository interface {
	GetByID(id uuid.UUID) (*entity.Service, error)
}

type serviceRepository struct {
	db *sql.DB
}

func NewServiceRepository(db *sql.DB) ServiceRepository {
	return &serviceRepository{db: db}
}

func (r *serviceRepository) GetByID(id uuid.UUID) (*entity.Service, error) {
	var svc entity.Service
	query := `
		SELECT id, user_id, title, kind, price, shipping_cost, processing_time,
		       quota, quota_used, pay_forward, created_at, updated_at
		FROM services WHERE id = $1
	`
	err := r.db.QueryRow(query, id).Scan(
		&svc.ID, &svc.UserID, &svc.Title, &svc.Kind, &svc.Price, &svc.ShippingCost,
		&svc.ProcessingTime, &svc.Quota, &svc.QuotaUsed, &svc.PayForward,
		&svc.CreatedAt, &svc.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan service: %w", err)
	}
	return &svc, nil
}
