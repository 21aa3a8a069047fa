package entity

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Notification is a semantic event for a single user, delivered best-effort.
// Delivery mechanics (push/email/SMS) live outside this engine.
type Notification struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	UserID    string             `bson:"user_id"`
	Type      string             `bson:"type"` // offer.accepted, order.confirmed, etc
	Title     string             `bson:"title"`
	Message   string             `bson:"message"`
	RelatedID string             `bson:"related_id"`
	IsRead    bool               `bson:"is_read"`
	CreatedAt time.Time          `bson:"created_at"`
}

// AnalyticsEvent is a named tracking event keyed by actor and item.
type AnalyticsEvent struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	UserID    string             `bson:"user_id"`
	Name      string             `bson:"name"`
	ItemID    string             `bson:"item_id,omitempty"`
	ItemType  string             `bson:"item_type,omitempty"`
	App       string             `bson:"app"`
	CreatedAt time.Time          `bson:"created_at"`
}
