package handlers_test

import (
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"hrportal/internal/domain/leave"
	"hrportal/internal/domain/reports"
)

func TestLeaveUtilizationReport(t *testing.T) {
	h := newHarness(t)
	casual := h.policyID(leave.CodeCasual)
	h.initialize(h.employeeID)

	var approved leave.LeaveRequest
	h.expect(http.StatusCreated, http.MethodPost, "/api/v1/leave-requests", "employee", map[string]any{
		"policyId":  casual,
		"startDate": h.date(time.May, 4),
		"endDate":   h.date(time.May, 6),
	}, &approved)
	h.expect(http.StatusOK, http.MethodPatch, "/api/v1/leave-requests/"+approved.ID, "admin", map[string]any{"status": "approved"}, nil)
	h.expect(http.StatusCreated, http.MethodPost, "/api/v1/leave-requests", "employee", map[string]any{
		"policyId":  casual,
		"startDate": h.date(time.June, 8),
		"endDate":   h.date(time.June, 8),
	}, nil)

	path := "/api/v1/reports/leave-utilization?year=" + strconv.Itoa(h.year)
	var report reports.Utilization
	h.expect(http.StatusOK, http.MethodGet, path, "admin", nil, &report)
	if report.Year != h.year {
		t.Fatalf("expected year %d, got %d", h.year, report.Year)
	}

	var cl *reports.PolicyUsage
	for i := range report.Policies {
		if report.Policies[i].PolicyID == casual {
			cl = &report.Policies[i]
		}
	}
	if cl == nil {
		t.Fatalf("casual policy missing from report: %+v", report.Policies)
	}
	if cl.Employees != 1 || !cl.Used.Equal(decimal.NewFromInt(3)) || !cl.Current.Equal(decimal.NewFromInt(9)) {
		t.Fatalf("unexpected casual usage: %+v", cl)
	}
	if !cl.UtilizationPct.Equal(decimal.NewFromInt(25)) {
		t.Fatalf("expected 25%% utilization, got %s", cl.UtilizationPct)
	}

	if len(report.Requests) != 2 {
		t.Fatalf("expected approved and pending buckets, got %+v", report.Requests)
	}
	if report.Requests[0].Status != leave.StatusApproved || report.Requests[0].Count != 1 || !report.Requests[0].Days.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("unexpected approved bucket: %+v", report.Requests[0])
	}
	if report.Requests[1].Status != leave.StatusPending || report.Requests[1].Count != 1 {
		t.Fatalf("unexpected pending bucket: %+v", report.Requests[1])
	}

	resp, raw := h.do(http.MethodGet, path+"&format=csv", "admin", nil)
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "text/csv" {
		t.Fatalf("expected csv export, got %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	if !strings.HasPrefix(string(raw), "code,display_name,employees") {
		t.Fatalf("unexpected csv header: %s", raw)
	}
	if !strings.Contains(string(raw), "CL,") {
		t.Fatalf("csv missing casual row: %s", raw)
	}

	h.expect(http.StatusBadRequest, http.MethodGet, path+"&format=xml", "admin", nil, nil)
	h.expect(http.StatusBadRequest, http.MethodGet, "/api/v1/reports/leave-utilization?year=last", "admin", nil, nil)
	h.expect(http.StatusForbidden, http.MethodGet, path, "employee", nil, nil)
}

func TestJobRunHistory(t *testing.T) {
	h := newHarness(t)

	for i := 0; i < 2; i++ {
		h.expect(http.StatusOK, http.MethodPost, "/api/v1/leave-accruals/run", "admin", map[string]any{"year": h.year, "month": 3}, nil)
	}

	resp, raw := h.do(http.MethodGet, "/api/v1/reports/job-runs?jobType=leave_accrual", "admin", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list job runs: %d %s", resp.StatusCode, raw)
	}
	if resp.Header.Get("X-Total-Count") != "2" {
		t.Fatalf("expected X-Total-Count 2, got %q", resp.Header.Get("X-Total-Count"))
	}

	var runs reports.JobRunListResult
	h.expect(http.StatusOK, http.MethodGet, "/api/v1/reports/job-runs?jobType=leave_accrual", "admin", nil, &runs)
	if runs.Total != 2 || len(runs.Items) != 2 {
		t.Fatalf("expected two accrual runs, got %+v", runs)
	}
	for _, run := range runs.Items {
		if run.Status != "completed" || run.CompletedAt == nil {
			t.Fatalf("expected completed run, got %+v", run)
		}
	}

	var run reports.JobRun
	h.expect(http.StatusOK, http.MethodGet, "/api/v1/reports/job-runs/"+runs.Items[0].ID, "admin", nil, &run)
	if run.ID != runs.Items[0].ID || len(run.Details) == 0 {
		t.Fatalf("unexpected job run: %+v", run)
	}

	h.expect(http.StatusOK, http.MethodGet, "/api/v1/reports/job-runs?status=failed", "admin", nil, &runs)
	if runs.Total != 0 || len(runs.Items) != 0 {
		t.Fatalf("expected no failed runs, got %+v", runs)
	}
	h.expect(http.StatusBadRequest, http.MethodGet, "/api/v1/reports/job-runs?startedFrom=yesterday", "admin", nil, nil)
	h.expect(http.StatusNotFound, http.MethodGet, "/api/v1/reports/job-runs/"+uuid.NewString(), "admin", nil, nil)
	h.expect(http.StatusNotFound, http.MethodGet, "/api/v1/reports/job-runs/not-a-run", "admin", nil, nil)
	h.expect(http.StatusForbidden, http.MethodGet, "/api/v1/reports/job-runs", "employee", nil, nil)
}
