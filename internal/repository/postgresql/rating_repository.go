package repository

import (
	"database/sql"
	"fmt"

	entity "simbi-market/internal/domain"

	"github.com/google/uuid"
)

type RatingRepository interface {
	Upsert(rating *entity.Rating) error
	Exists(authorID, talkID uuid.UUID, kind string) (bool, error)
	ByAuthorAndTalk(authorID, talkID uuid.UUID) ([]entity.Rating, error)
	InsertReview(review *entity.Review) error
	GetReview(itemID uuid.UUID, itemType string, authorID uuid.UUID) (*entity.Review, error)
	UpdateReview(review *entity.Review) error
}

type ratingRepository struct {
	db *sql.DB
}

func NewRatingRepository(db *sql.DB) RatingRepository {
	return &ratingRepository{db: db}
}

// Upsert keys on (subject, author, talk, kind) so repeated saves update
// the value instead of duplicating the row.
func (r *ratingRepository) Upsert(rating *entity.Rating) error {
	var itemID interface{}
	var itemType interface{}
	if rating.ItemID != uuid.Nil {
		itemID = rating.ItemID
		itemType = rating.ItemType
	}
	query := `
		INSERT INTO ratings (id, user_id, author_id, talk_id, kind, value, item_id, item_type, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		ON CONFLICT (user_id, author_id, talk_id, kind)
		DO UPDATE SET value = EXCLUDED.value,
		              item_id = COALESCE(EXCLUDED.item_id, ratings.item_id),
		              item_type = COALESCE(EXCLUDED.item_type, ratings.item_type),
		              updated_at = NOW()
	`
	if _, err := r.db.Exec(query, uuid.New(), rating.UserID, rating.AuthorID, rating.TalkID,
		rating.Kind, rating.Value, itemID, itemType); err != nil {
		return fmt.Errorf("upsert rating: %w", err)
	}
	return nil
}

func (r *ratingRepository) Exists(authorID, talkID uuid.UUID, kind string) (bool, error) {
	var count int
	query := `SELECT COUNT(*) FROM ratings WHERE author_id = $1 AND talk_id = $2 AND kind = $3`
	if err := r.db.QueryRow(query, authorID, talkID, kind).Scan(&count); err != nil {
		return false, fmt.Errorf("query rating: %w", err)
	}
	return count > 0, nil
}

func (r *ratingRepository) ByAuthorAndTalk(authorID, talkID uuid.UUID) ([]entity.Rating, error) {
	query := `
		SELECT id, user_id, author_id, talk_id, kind, value, created_at, updated_at
		FROM ratings WHERE author_id = $1 AND talk_id = $2
	`
	rows, err := r.db.Query(query, authorID, talkID)
	if err != nil {
		return nil, fmt.Errorf("query ratings: %w", err)
	}
	defer rows.Close()

	var ratings []entity.Rating
	for rows.Next() {
		var rt entity.Rating
		if err := rows.Scan(&rt.ID, &rt.UserID, &rt.AuthorID, &rt.TalkID, &rt.Kind, &rt.Value, &rt.CreatedAt, &rt.UpdatedAt); err != nil {
			return nil, err
		}
		ratings = append(ratings, rt)
	}
	return ratings, rows.Err()
}

func (r *ratingRepository) InsertReview(review *entity.Review) error {
	query := `
		INSERT INTO reviews (id, user_id, author_id, item_id, item_type, message, rating, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
	`
	if _, err := r.db.Exec(query, review.ID, review.UserID, review.AuthorID, review.ItemID,
		review.ItemType, review.Message, review.Rating); err != nil {
		return fmt.Errorf("insert review: %w", err)
	}
	return nil
}

func (r *ratingRepository) GetReview(itemID uuid.UUID, itemType string, authorID uuid.UUID) (*entity.Review, error) {
	var review entity.Review
	query := `
		SELECT id, user_id, author_id, item_id, item_type, message, rating, created_at, updated_at
		FROM reviews WHERE item_id = $1 AND item_type = $2 AND author_id = $3
	`
	err := r.db.QueryRow(query, itemID, itemType, authorID).Scan(
		&review.ID, &review.UserID, &review.AuthorID, &review.ItemID, &review.ItemType,
		&review.Message, &review.Rating, &review.CreatedAt, &review.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan review: %w", err)
	}
	return &review, nil
}

func (r *ratingRepository) UpdateReview(review *entity.Review) error {
	query := `UPDATE reviews SET message = $1, rating = $2, updated_at = NOW() WHERE id = $3`
	if _, err := r.db.Exec(query, review.Message, review.Rating, review.ID); err != nil {
		return fmt.Errorf("update review: %w", err)
	}
	return nil
}
