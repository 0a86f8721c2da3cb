package auth

import "context"

type UserStore interface {
	FindActiveUser(ctx context.Context, userID string) (User, error)
}
