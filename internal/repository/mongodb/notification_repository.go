package mongodb

import (
	"context"
	"fmt"
	"time"

	entity "simbi-market/internal/domain"

	"go.mongodb.org/mongo-driver/mongo"
)

const (
	DatabaseName = "simbi_market"

	CollectionNotifications = "notifications"
	CollectionEvents        = "events"
)

// NotificationRepository is the best-effort sink for semantic notifications
// and analytics events. Failures here never fail a state transition; callers
// log and continue.
type NotificationRepository interface {
	SaveNotification(noti *entity.Notification) error
	SaveEvent(event *entity.AnalyticsEvent) error
}

type notificationRepository struct {
	notifications *mongo.Collection
	events        *mongo.Collection
}

func NewNotificationRepository(client *mongo.Client) NotificationRepository {
	db := client.Database(DatabaseName)
	return &notificationRepository{
		notifications: db.Collection(CollectionNotifications),
		events:        db.Collection(CollectionEvents),
	}
}

func (r *notificationRepository) SaveNotification(noti *entity.Notification) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := r.notifications.InsertOne(ctx, noti); err != nil {
		return fmt.Errorf("failed to insert notification to Mongo: %w", err)
	}
	return nil
}

func (r *notificationRepository) SaveEvent(event *entity.AnalyticsEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := r.events.InsertOne(ctx, event); err != nil {
		return fmt.Errorf("failed to insert event to Mongo: %w", err)
	}
	return nil
}
