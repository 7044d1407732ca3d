package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/harvestlink/api/internal/domain"
)

func TestRouterUnknownRouteReturnsEnvelope(t *testing.T) {
	router := NewRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/nothing-here", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}

	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if payload["error"] != "route_not_found" {
		t.Fatalf("unexpected error code %v", payload["error"])
	}
}

func TestRouterUnconfiguredGroupReturnsNotImplemented(t *testing.T) {
	router := NewRouter()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotImplemented {
		t.Fatalf("expected status 501, got %d", rr.Code)
	}
}

func TestRouterHealthzBypassesAPIMiddleware(t *testing.T) {
	var apiHits int
	counting := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiHits++
			next.ServeHTTP(w, r)
		})
	}

	router := NewRouter(WithAPIMiddlewares(counting))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if apiHits != 0 {
		t.Fatalf("expected API middleware untouched, got %d hits", apiHits)
	}
}

func TestRouterMountsOrderRoutes(t *testing.T) {
	service := &stubOrderService{
		getFn: func(_ context.Context, _ domain.Actor, orderID string) (domain.Order, error) {
			return domain.Order{ID: orderID, Status: domain.OrderStatusPending, CreatedAt: time.Now()}, nil
		},
	}
	handler := NewOrderHandlers(service, nil)

	router := NewRouter(WithOrderRoutes(handler.Routes))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/ord_1", nil)
	req = asActor(req, domain.Actor{ID: "usr_buyer", Role: domain.RoleBuyer})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

type failingSystemService struct{}

func (failingSystemService) Health(context.Context) (domain.SystemHealthReport, error) {
	return domain.SystemHealthReport{}, errors.New("probe failed")
}
