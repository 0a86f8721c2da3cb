package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"hrportal/internal/app/server"
	"hrportal/internal/domain/auth"
	"hrportal/internal/domain/leave"
	"hrportal/internal/platform/config"
)

func TestPostgresBackendServesSeededPolicies(t *testing.T) {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	cfg := testConfig()
	cfg.DBDriver = config.DriverPostgres
	cfg.DatabaseURL = dbURL
	cfg.RunMigrations = true
	cfg.MigrationsDir = "../../../../migrations"
	cfg.RunSeed = true
	cfg.SeedOrgName = "Postgres Test Org"
	cfg.SeedAdminEmail = "admin@pg.test"

	app, err := server.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("failed to start app: %v", err)
	}
	defer app.Close()

	ts := httptest.NewServer(app.Router)
	defer ts.Close()

	token, err := auth.NewService(app.Deps.Users, cfg.JWTSecret, 0).IssueToken(context.Background(), app.Seed.AdminUserID)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/v1/leave-policies", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("list policies: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	var policies []leave.LeavePolicy
	if err := json.Unmarshal(env.Data, &policies); err != nil {
		t.Fatalf("decode policies: %v", err)
	}
	if len(policies) < len(leave.PolicyCodes) {
		t.Fatalf("expected seeded policies, got %d", len(policies))
	}
}
