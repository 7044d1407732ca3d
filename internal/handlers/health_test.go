package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/harvestlink/api/internal/domain"
)

type stubSystemService struct {
	report domain.SystemHealthReport
}

func (s stubSystemService) Health(context.Context) (domain.SystemHealthReport, error) {
	return s.report, nil
}

func TestHealthzAlwaysOK(t *testing.T) {
	handler := NewHealthHandlers(nil)

	rr := httptest.NewRecorder()
	handler.Healthz(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if payload["status"] != "ok" {
		t.Fatalf("unexpected status %v", payload["status"])
	}
}

func TestReadyzReportsDependencyFailure(t *testing.T) {
	handler := NewHealthHandlers(stubSystemService{
		report: domain.SystemHealthReport{
			Status: domain.HealthStatusError,
			Checks: map[string]domain.SystemHealthCheck{
				"firestore": {
					Status:    domain.HealthStatusError,
					Error:     "context deadline exceeded",
					Latency:   1200 * time.Millisecond,
					CheckedAt: time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC),
				},
			},
			Version:     "1.2.3",
			Environment: "production",
		},
	})

	rr := httptest.NewRecorder()
	handler.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}

	var payload healthReportPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if payload.Status != domain.HealthStatusError || payload.Version != "1.2.3" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if check, ok := payload.Checks["firestore"]; !ok || check.LatencyMS != 1200 {
		t.Fatalf("unexpected firestore check: %+v", payload.Checks)
	}
}

func TestReadyzHealthyDependencies(t *testing.T) {
	handler := NewHealthHandlers(stubSystemService{
		report: domain.SystemHealthReport{
			Status: domain.HealthStatusOK,
			Checks: map[string]domain.SystemHealthCheck{
				"firestore": {Status: domain.HealthStatusOK, Detail: "reachable"},
			},
		},
	})

	rr := httptest.NewRecorder()
	handler.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
}

func TestReadyzProbeErrorIs503(t *testing.T) {
	handler := NewHealthHandlers(failingSystemService{})

	rr := httptest.NewRecorder()
	handler.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
}
