package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"hrportal/internal/app/server"
	"hrportal/internal/domain/audit"
	"hrportal/internal/domain/auth"
	"hrportal/internal/domain/core"
	"hrportal/internal/domain/leave"
	"hrportal/internal/domain/notifications"
	"hrportal/internal/domain/reports"
	"hrportal/internal/platform/config"
	"hrportal/internal/platform/db"
	"hrportal/internal/platform/jobs"
	"hrportal/internal/platform/metrics"
	"hrportal/internal/platform/sqlite"
	healthhandler "hrportal/internal/transport/http/handlers/health"
)

const testSecret = "handler-test-secret"

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

type harness struct {
	t      *testing.T
	srv    *httptest.Server
	store  *sqlite.Store
	deps   server.Dependencies
	orgID  string
	year   int
	tokens map[string]string

	adminEmployeeID string
	employeeID      string
	colleagueID     string
}

func testConfig() config.Config {
	return config.Config{
		Environment:        "test",
		DBDriver:           config.DriverSQLite,
		SQLitePath:         ":memory:",
		JWTSecret:          testSecret,
		MaxBodyBytes:       1048576,
		RateLimitPerMinute: 1000,
		MetricsEnabled:     true,
		IdempotencyTTL:     time.Hour,
	}
}

// newHarness serves the full router over an in-memory database seeded with
// an org admin, an employee and a colleague.
func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	collector := metrics.New()
	directory := core.NewService(store)
	notifier := notifications.New(store, nil)
	leaveSvc := leave.NewService(store, directory, notifier, nil, nil)

	seed, err := db.Seed(ctx, store, leaveSvc, "Acme Test", "admin@acme.test")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	enforcer, err := auth.NewEnforcer()
	if err != nil {
		t.Fatalf("enforcer: %v", err)
	}
	h := &harness{
		t:               t,
		store:           store,
		orgID:           seed.OrganizationID,
		year:            time.Now().UTC().Year(),
		tokens:          map[string]string{},
		adminEmployeeID: seed.EmployeeID,
	}
	h.deps = server.Dependencies{
		Leave:         leaveSvc,
		Directory:     directory,
		Notifications: notifier,
		Audit:         audit.New(store),
		Jobs:          jobs.New(store, directory, leaveSvc, collector, 0),
		Reports:       reports.NewService(store),
		Perms:         enforcer,
		Users:         store,
		Metrics:       collector,
		Checks:        map[string]healthhandler.Pinger{"database": store},
	}

	issuer := auth.NewService(store, testSecret, time.Hour)
	h.deps.Tokens = issuer
	h.tokens["admin"] = h.issue(issuer, seed.AdminUserID)
	h.employeeID = h.addEmployee(issuer, "employee", "ravi@acme.test", "Ravi Kumar")
	h.colleagueID = h.addEmployee(issuer, "colleague", "meera@acme.test", "Meera Iyer")

	superID, err := store.EnsureUser(ctx, h.orgID, "root@acme.test", auth.RoleSuperAdmin)
	if err != nil {
		t.Fatalf("super admin: %v", err)
	}
	h.tokens["super"] = h.issue(issuer, superID)

	h.srv = httptest.NewServer(server.NewRouter(testConfig(), h.deps))
	t.Cleanup(h.srv.Close)
	return h
}

func (h *harness) issue(issuer *auth.Service, userID string) string {
	h.t.Helper()
	token, err := issuer.IssueToken(context.Background(), userID)
	if err != nil {
		h.t.Fatalf("issue token: %v", err)
	}
	return token
}

func (h *harness) addEmployee(issuer *auth.Service, name, email, fullName string) string {
	h.t.Helper()
	ctx := context.Background()
	userID, err := h.store.EnsureUser(ctx, h.orgID, email, auth.RoleEmployee)
	if err != nil {
		h.t.Fatalf("create user: %v", err)
	}
	employeeID, err := h.store.EnsureEmployee(ctx, h.orgID, userID, fullName, email)
	if err != nil {
		h.t.Fatalf("create employee: %v", err)
	}
	h.tokens[name] = h.issue(issuer, userID)
	return employeeID
}

// do sends a JSON request as the named caller ("" for anonymous).
func (h *harness) do(method, path, caller string, body any, headers ...string) (*http.Response, []byte) {
	h.t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			h.t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, h.srv.URL+path, reader)
	if err != nil {
		h.t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if caller != "" {
		req.Header.Set("Authorization", "Bearer "+h.tokens[caller])
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := h.srv.Client().Do(req)
	if err != nil {
		h.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		h.t.Fatalf("read body: %v", err)
	}
	return resp, raw
}

// expect sends the request, checks the status and decodes data into out when non-nil.
func (h *harness) expect(status int, method, path, caller string, body, out any) envelope {
	h.t.Helper()
	resp, raw := h.do(method, path, caller, body)
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		h.t.Fatalf("%s %s: decode envelope: %v (body %s)", method, path, err, raw)
	}
	if resp.StatusCode != status {
		h.t.Fatalf("%s %s: expected status %d, got %d (body %s)", method, path, status, resp.StatusCode, raw)
	}
	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			h.t.Fatalf("%s %s: decode data: %v", method, path, err)
		}
	}
	return env
}

func (h *harness) policyID(code string) string {
	h.t.Helper()
	var policies []leave.LeavePolicy
	h.expect(http.StatusOK, http.MethodGet, "/api/v1/leave-policies", "admin", nil, &policies)
	for _, p := range policies {
		if p.Code == code {
			return p.ID
		}
	}
	h.t.Fatalf("policy %s not seeded", code)
	return ""
}

func (h *harness) initialize(employeeID string) {
	h.t.Helper()
	h.expect(http.StatusOK, http.MethodPost, "/api/v1/leave-balances/"+employeeID+"/initialize", "admin",
		map[string]any{"year": h.year}, nil)
}

func (h *harness) date(month time.Month, day int) string {
	return time.Date(h.year, month, day, 0, 0, 0, 0, time.UTC).Format(time.DateOnly)
}
