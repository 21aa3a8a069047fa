package entity

import (
	"time"

	"github.com/google/uuid"
)

const (
	RatingKindQuality     = "quality"
	RatingKindExpert      = "expert"
	RatingKindReliability = "reliability"
)

const RatingMinValue = 1

// Rating is unique per (subject, author, talk, kind) and upserted, never
// duplicated. Quality and expert ratings additionally link the traded item.
type Rating struct {
	ID        uuid.UUID `db:"id" json:"id"`
	UserID    uuid.UUID `db:"user_id" json:"user_id"` // subject: the rated party
	AuthorID  uuid.UUID `db:"author_id" json:"author_id"`
	TalkID    uuid.UUID `db:"talk_id" json:"talk_id"`
	Kind      string    `db:"kind" json:"kind"`
	Value     int       `db:"value" json:"value"`
	ItemID    uuid.UUID `db:"item_id" json:"item_id,omitempty"`
	ItemType  string    `db:"item_type" json:"item_type,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Review is free-text feedback tied to one item, one per (item, author).
// Rating is the mean of the author's ratings for the talk at save time.
type Review struct {
	ID        uuid.UUID `db:"id" json:"id"`
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	AuthorID  uuid.UUID `db:"author_id" json:"author_id"`
	ItemID    uuid.UUID `db:"item_id" json:"item_id"`
	ItemType  string    `db:"item_type" json:"item_type"`
	Message   string    `db:"message" json:"message"`
	Rating    float64   `db:"rating" json:"rating"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

type RatingInput struct {
	Kind  string `json:"kind" binding:"required"`
	Value int    `json:"value" binding:"required,min=1,max=5"`
}
