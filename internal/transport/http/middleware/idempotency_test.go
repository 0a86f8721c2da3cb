package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hrportal/internal/domain/auth"
)

func TestRequestHashDeterministic(t *testing.T) {
	assert.Equal(t, RequestHash([]byte("payload")), RequestHash([]byte("payload")))
	assert.NotEqual(t, RequestHash([]byte("payload")), RequestHash([]byte("other")))
}

func idempotentRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/leave-policies", strings.NewReader(body))
	req.Header.Set(IdempotencyHeader, "k1")
	ctx := context.WithValue(req.Context(), ctxKeyUser, auth.UserContext{OrganizationID: "org-1", UserID: "user-1"})
	return req.WithContext(ctx)
}

func TestIdempotencyStoresFirstResponse(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	key := idempotencyKey("org-1", "user-1", http.MethodPost, "/api/v1/leave-policies", "k1")
	body := `{"code":"CL"}`
	record, err := json.Marshal(idempotentResponse{Hash: RequestHash([]byte(body)), Status: http.StatusCreated, Body: json.RawMessage(`{"id":"p1"}`)})
	require.NoError(t, err)

	mock.ExpectSetNX(key, inFlightMarker(RequestHash([]byte(body))), idempotencyLockTTL).SetVal(true)
	mock.ExpectSet(key, string(record), time.Hour).SetVal("OK")

	calls := 0
	handler := Idempotency(rdb, time.Hour)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"p1"}` + "\n"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, idempotentRequest(body))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 1, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	key := idempotencyKey("org-1", "user-1", http.MethodPost, "/api/v1/leave-policies", "k1")
	body := `{"code":"CL"}`
	record, err := json.Marshal(idempotentResponse{Hash: RequestHash([]byte(body)), Status: http.StatusCreated, Body: json.RawMessage(`{"id":"p1"}`)})
	require.NoError(t, err)
	mock.ExpectSetNX(key, inFlightMarker(RequestHash([]byte(body))), idempotencyLockTTL).SetVal(false)
	mock.ExpectGet(key).SetVal(string(record))

	handler := Idempotency(rdb, time.Hour)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run on replay")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, idempotentRequest(body))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "true", rec.Header().Get("Idempotent-Replayed"))
	assert.JSONEq(t, `{"id":"p1"}`, rec.Body.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotencyConflictOnDifferentBody(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	key := idempotencyKey("org-1", "user-1", http.MethodPost, "/api/v1/leave-policies", "k1")
	record, err := json.Marshal(idempotentResponse{Hash: RequestHash([]byte(`{"code":"SL"}`)), Status: http.StatusCreated, Body: json.RawMessage(`{}`)})
	require.NoError(t, err)
	mock.ExpectSetNX(key, inFlightMarker(RequestHash([]byte(`{"code":"CL"}`))), idempotencyLockTTL).SetVal(false)
	mock.ExpectGet(key).SetVal(string(record))

	handler := Idempotency(rdb, time.Hour)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run on conflict")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, idempotentRequest(`{"code":"CL"}`))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "idempotency_conflict")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotencyRejectsRequestWhileFirstIsInFlight(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	key := idempotencyKey("org-1", "user-1", http.MethodPost, "/api/v1/leave-policies", "k1")
	body := `{"code":"CL"}`
	marker := inFlightMarker(RequestHash([]byte(body)))
	mock.ExpectSetNX(key, marker, idempotencyLockTTL).SetVal(false)
	mock.ExpectGet(key).SetVal(marker)

	handler := Idempotency(rdb, time.Hour)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run while the key is held")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, idempotentRequest(body))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "idempotency_in_progress")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotencyReleasesKeyOnServerError(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	key := idempotencyKey("org-1", "user-1", http.MethodPost, "/api/v1/leave-policies", "k1")
	body := `{"code":"CL"}`
	mock.ExpectSetNX(key, inFlightMarker(RequestHash([]byte(body))), idempotencyLockTTL).SetVal(true)
	mock.ExpectDel(key).SetVal(1)

	handler := Idempotency(rdb, time.Hour)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, idempotentRequest(body))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotencySkipsWithoutKey(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	handler := Idempotency(rdb, time.Hour)(noContent())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/leave-policies", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
