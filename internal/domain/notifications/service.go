package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"

	"hrportal/internal/domain/auth"
	"hrportal/internal/platform/events"
	"hrportal/internal/requestctx"
)

type Mailer interface {
	Send(ctx context.Context, from, to, subject, body string) error
}

type Service struct {
	store  StoreAPI
	Events events.Publisher

	// Mail delivery is optional; both Mailer and Users must be set.
	Mailer      Mailer
	Users       auth.UserStore
	DefaultFrom string
}

func New(store StoreAPI, publisher events.Publisher) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Service{store: store, Events: publisher}
}

// Create persists a notification and mirrors it to the event stream.
// Stream failures are logged only.
func (s *Service) Create(ctx context.Context, orgID, userID, ntype, title, body string) error {
	n := Notification{
		ID:             uuid.NewString(),
		OrganizationID: orgID,
		UserID:         userID,
		Type:           ntype,
		Title:          title,
		Body:           body,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.store.CreateNotification(ctx, n); err != nil {
		return err
	}

	err := s.Events.Publish(ctx, events.Event{
		Type:           events.TypeNotificationSent,
		OrganizationID: orgID,
		AggregateID:    userID,
		OccurredAt:     n.CreatedAt,
		Data:           n,
	})
	if err != nil {
		requestctx.Logger(ctx).Warn().Err(err).Str("notificationId", n.ID).Msg("notification stream publish failed")
	}
	s.mail(ctx, userID, title, body)
	return nil
}

func (s *Service) mail(ctx context.Context, userID, title, body string) {
	if s.Mailer == nil || s.Users == nil {
		return
	}
	logger := requestctx.Logger(ctx)
	user, err := s.Users.FindActiveUser(ctx, userID)
	if err != nil {
		logger.Warn().Err(err).Str("userId", userID).Msg("notification email lookup failed")
		return
	}
	if user.Email == "" {
		return
	}
	from := s.DefaultFrom
	if from == "" {
		from = "no-reply@example.com"
	}
	if err := s.Mailer.Send(ctx, from, user.Email, title, body); err != nil {
		logger.Warn().Err(err).Str("userId", userID).Msg("notification email send failed")
	}
}

func (s *Service) List(ctx context.Context, orgID, userID string, limit, offset int) ([]Notification, error) {
	return s.store.ListNotifications(ctx, orgID, userID, limit, offset)
}

func (s *Service) Count(ctx context.Context, orgID, userID string) (int, error) {
	return s.store.CountNotifications(ctx, orgID, userID)
}

func (s *Service) MarkRead(ctx context.Context, orgID, userID, notificationID string) error {
	return s.store.MarkRead(ctx, orgID, userID, notificationID, time.Now().UTC())
}
