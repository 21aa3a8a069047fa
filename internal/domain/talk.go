package entity

import (
	"time"

	"github.com/google/uuid"
)

const (
	TalkStatusOpen       = "open"
	TalkStatusInProgress = "in_progress"
)

// Talk is the conversation container between exactly two users. It is never
// hard-deleted; each participant archives their own side via TalkUser.
type Talk struct {
	ID        uuid.UUID `db:"id" json:"id"`
	ServiceID uuid.UUID `db:"service_id" json:"service_id,omitempty"`
	Status    string    `db:"status" json:"status"` // open, in_progress
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// TalkUser carries the per-participant read/seen/archived markers.
type TalkUser struct {
	TalkID     uuid.UUID  `db:"talk_id" json:"talk_id"`
	UserID     uuid.UUID  `db:"user_id" json:"user_id"`
	ReadAt     *time.Time `db:"read_at" json:"read_at,omitempty"`
	SeenAt     *time.Time `db:"seen_at" json:"seen_at,omitempty"`
	ArchivedAt *time.Time `db:"archived_at" json:"archived_at,omitempty"`
}

type Message struct {
	ID        uuid.UUID `db:"id" json:"id"`
	TalkID    uuid.UUID `db:"talk_id" json:"talk_id"`
	AuthorID  uuid.UUID `db:"author_id" json:"author_id"`
	Content   string    `db:"content" json:"content"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// TabCounts are the unread counters the inbox UI shows per tab.
type TabCounts struct {
	Inbox    int `json:"inbox"`
	Deals    int `json:"deals"`
	Archived int `json:"archived"`
}

type CreateTalkInput struct {
	UserID    string            `json:"user_id"`
	ServiceID string            `json:"service_id"`
	Message   string            `json:"message"`
	Offer     *CreateOfferInput `json:"offer"`
	Order     bool              `json:"order"`
	Count     int               `json:"count"`
}
