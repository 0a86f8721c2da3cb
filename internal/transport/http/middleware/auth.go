package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"hrportal/internal/domain/auth"
	"hrportal/internal/requestctx"
	"hrportal/internal/transport/http/api"
)

// OrgOverrideHeader lets a super admin act inside another organization.
const OrgOverrideHeader = "X-Organization-ID"

// Auth attaches the bearer token's identity to the request context. Requests
// without a valid token pass through unauthenticated; RequireAuth and
// RequirePermission reject them. When users is non-nil the token's user must
// still be active.
func Auth(secret string, users auth.UserStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := auth.ParseToken(secret, parts[1])
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			if users != nil {
				if _, err := users.FindActiveUser(r.Context(), claims.UserID); err != nil {
					requestctx.Logger(r.Context()).Debug().Err(err).Str("userId", claims.UserID).Msg("token user inactive")
					next.ServeHTTP(w, r)
					return
				}
			}

			user := auth.UserContext{
				UserID:         claims.UserID,
				OrganizationID: claims.OrganizationID,
				EmployeeID:     claims.EmployeeID,
				RoleName:       claims.RoleName,
			}
			if override := strings.TrimSpace(r.Header.Get(OrgOverrideHeader)); override != "" && user.RoleName == auth.RoleSuperAdmin {
				if _, err := uuid.Parse(override); err != nil {
					api.Fail(w, http.StatusBadRequest, "invalid_organization", "X-Organization-ID must be a UUID", GetRequestID(r.Context()))
					return
				}
				user.OrganizationID = override
				user.EmployeeID = ""
			}

			ctx := context.WithValue(r.Context(), ctxKeyUser, user)
			ctx = requestctx.WithOrganizationID(ctx, user.OrganizationID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetUser(ctx context.Context) (auth.UserContext, bool) {
	user, ok := ctx.Value(ctxKeyUser).(auth.UserContext)
	return user, ok
}

func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetUser(r.Context()); !ok {
			api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", GetRequestID(r.Context()))
			return
		}
		next.ServeHTTP(w, r)
	})
}
