package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"hrportal/internal/requestctx"
	"hrportal/internal/transport/http/api"
)

const IdempotencyHeader = "Idempotency-Key"

// idempotencyLockTTL bounds how long an in-flight marker blocks its key if the
// process dies before storing the response.
const idempotencyLockTTL = 30 * time.Second

type idempotentResponse struct {
	Hash     string          `json:"hash"`
	InFlight bool            `json:"inFlight,omitempty"`
	Status   int             `json:"status,omitempty"`
	Body     json.RawMessage `json:"body,omitempty"`
}

func inFlightMarker(hash string) string {
	raw, _ := json.Marshal(idempotentResponse{Hash: hash, InFlight: true})
	return string(raw)
}

type bodyRecorder struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
}

func (b *bodyRecorder) WriteHeader(code int) {
	b.status = code
	b.ResponseWriter.WriteHeader(code)
}

func (b *bodyRecorder) Write(p []byte) (int, error) {
	b.buf.Write(p)
	return b.ResponseWriter.Write(p)
}

func RequestHash(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func idempotencyKey(orgID, userID, method, path, key string) string {
	return "idempotency:" + orgID + ":" + userID + ":" + method + " " + path + ":" + key
}

// Idempotency replays the stored response for a repeated Idempotency-Key on
// mutating requests. The first request claims the key with SETNX; a repeat
// that arrives while it runs gets a 409, as does reusing a key with a
// different body. Only responses below 500 are stored. A nil client disables
// the middleware.
func Idempotency(rdb redis.Cmdable, ttl time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(IdempotencyHeader)
			if rdb == nil || key == "" || r.Method == http.MethodGet || r.Method == http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}
			user, ok := GetUser(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			reqID := GetRequestID(r.Context())
			logger := requestctx.Logger(r.Context())

			payload, err := io.ReadAll(r.Body)
			if err != nil {
				api.Fail(w, http.StatusBadRequest, "invalid_body", "request body could not be read", reqID)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(payload))
			hash := RequestHash(payload)
			cacheKey := idempotencyKey(user.OrganizationID, user.UserID, r.Method, r.URL.Path, key)

			claimed, err := rdb.SetNX(r.Context(), cacheKey, inFlightMarker(hash), idempotencyLockTTL).Result()
			if err != nil {
				logger.Warn().Err(err).Str("key", cacheKey).Msg("idempotency claim failed")
				next.ServeHTTP(w, r)
				return
			}
			if !claimed {
				replayStored(w, r, rdb, cacheKey, hash, reqID)
				return
			}

			rec := &bodyRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			ctx := context.WithoutCancel(r.Context())
			if rec.status >= http.StatusInternalServerError {
				if err := rdb.Del(ctx, cacheKey).Err(); err != nil {
					logger.Warn().Err(err).Str("key", cacheKey).Msg("idempotency release failed")
				}
				return
			}
			record, err := json.Marshal(idempotentResponse{Hash: hash, Status: rec.status, Body: bytes.TrimSpace(rec.buf.Bytes())})
			if err != nil {
				_ = rdb.Del(ctx, cacheKey).Err()
				return
			}
			if err := rdb.Set(ctx, cacheKey, string(record), ttl).Err(); err != nil {
				logger.Warn().Err(err).Str("key", cacheKey).Msg("idempotency store failed")
			}
		})
	}
}

// replayStored answers a request whose key is already claimed.
func replayStored(w http.ResponseWriter, r *http.Request, rdb redis.Cmdable, cacheKey, hash, reqID string) {
	raw, err := rdb.Get(r.Context(), cacheKey).Bytes()
	if errors.Is(err, redis.Nil) {
		// The marker expired between SETNX and GET; the client should retry.
		api.Fail(w, http.StatusConflict, "idempotency_in_progress", "a request with this idempotency key is still being processed", reqID)
		return
	}
	if err != nil {
		requestctx.Logger(r.Context()).Warn().Err(err).Str("key", cacheKey).Msg("idempotency lookup failed")
		api.Fail(w, http.StatusServiceUnavailable, "idempotency_unavailable", "idempotency record could not be read", reqID)
		return
	}
	var stored idempotentResponse
	if err := json.Unmarshal(raw, &stored); err != nil {
		requestctx.Logger(r.Context()).Warn().Err(err).Str("key", cacheKey).Msg("idempotency record unreadable")
		api.Fail(w, http.StatusServiceUnavailable, "idempotency_unavailable", "idempotency record could not be read", reqID)
		return
	}
	switch {
	case stored.Hash != hash:
		api.Fail(w, http.StatusConflict, "idempotency_conflict", "idempotency key was used with a different request", reqID)
	case stored.InFlight:
		api.Fail(w, http.StatusConflict, "idempotency_in_progress", "a request with this idempotency key is still being processed", reqID)
	default:
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Idempotent-Replayed", "true")
		w.WriteHeader(stored.Status)
		_, _ = w.Write(stored.Body)
	}
}
