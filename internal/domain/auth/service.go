package auth

import (
	"context"
	"fmt"
	"time"
)

type Service struct {
	Store  UserStore
	Secret string
	TTL    time.Duration
}

func NewService(store UserStore, secret string, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Service{Store: store, Secret: secret, TTL: ttl}
}

// IssueToken signs a token for an active user as stored.
func (s *Service) IssueToken(ctx context.Context, userID string) (string, error) {
	user, err := s.Store.FindActiveUser(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("find user %s: %w", userID, err)
	}
	return GenerateToken(s.Secret, Claims{
		UserID:         user.ID,
		OrganizationID: user.OrganizationID,
		EmployeeID:     user.EmployeeID,
		RoleName:       user.RoleName,
	}, s.TTL)
}
