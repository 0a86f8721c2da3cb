package requestctx

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type ctxKey string

const (
	requestIDKey ctxKey = "request_id"
	orgIDKey     ctxKey = "organization_id"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func GetRequestID(ctx context.Context) string {
	if value, ok := ctx.Value(requestIDKey).(string); ok {
		return value
	}
	return ""
}

func WithOrganizationID(ctx context.Context, orgID string) context.Context {
	return context.WithValue(ctx, orgIDKey, orgID)
}

func GetOrganizationID(ctx context.Context) string {
	if value, ok := ctx.Value(orgIDKey).(string); ok {
		return value
	}
	return ""
}

// Logger returns the process logger annotated with the request scope carried by ctx.
func Logger(ctx context.Context) *zerolog.Logger {
	fields := log.Logger.With()
	if id := GetRequestID(ctx); id != "" {
		fields = fields.Str("requestId", id)
	}
	if org := GetOrganizationID(ctx); org != "" {
		fields = fields.Str("organizationId", org)
	}
	logger := fields.Logger()
	return &logger
}
