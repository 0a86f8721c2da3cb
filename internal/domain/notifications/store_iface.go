package notifications

import (
	"context"
	"time"
)

type StoreAPI interface {
	CreateNotification(ctx context.Context, n Notification) error
	ListNotifications(ctx context.Context, orgID, userID string, limit, offset int) ([]Notification, error)
	CountNotifications(ctx context.Context, orgID, userID string) (int, error)
	// MarkRead returns ErrNotFound when no notification matches.
	MarkRead(ctx context.Context, orgID, userID, notificationID string, at time.Time) error
}
