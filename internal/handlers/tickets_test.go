package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/harvestlink/api/internal/domain"
	"github.com/harvestlink/api/internal/services"
)

type stubTicketService struct {
	createFn     func(context.Context, services.CreateTicketCommand) (domain.Ticket, error)
	transitionFn func(context.Context, services.TicketTransitionCommand) (domain.Ticket, error)
	assignFn     func(context.Context, services.AssignTicketCommand) (domain.Ticket, error)
	commentFn    func(context.Context, services.AddTicketCommentCommand) (domain.Ticket, error)
	rateFn       func(context.Context, services.RateTicketCommand) (domain.Ticket, error)
	getFn        func(context.Context, domain.Actor, string) (domain.Ticket, error)
	listFn       func(context.Context, services.TicketListQuery) (domain.CursorPage[domain.Ticket], error)
}

func (s *stubTicketService) Create(ctx context.Context, cmd services.CreateTicketCommand) (domain.Ticket, error) {
	if s.createFn != nil {
		return s.createFn(ctx, cmd)
	}
	return domain.Ticket{}, errors.New("not implemented")
}

func (s *stubTicketService) Transition(ctx context.Context, cmd services.TicketTransitionCommand) (domain.Ticket, error) {
	if s.transitionFn != nil {
		return s.transitionFn(ctx, cmd)
	}
	return domain.Ticket{}, errors.New("not implemented")
}

func (s *stubTicketService) Assign(ctx context.Context, cmd services.AssignTicketCommand) (domain.Ticket, error) {
	if s.assignFn != nil {
		return s.assignFn(ctx, cmd)
	}
	return domain.Ticket{}, errors.New("not implemented")
}

func (s *stubTicketService) AddComment(ctx context.Context, cmd services.AddTicketCommentCommand) (domain.Ticket, error) {
	if s.commentFn != nil {
		return s.commentFn(ctx, cmd)
	}
	return domain.Ticket{}, errors.New("not implemented")
}

func (s *stubTicketService) Rate(ctx context.Context, cmd services.RateTicketCommand) (domain.Ticket, error) {
	if s.rateFn != nil {
		return s.rateFn(ctx, cmd)
	}
	return domain.Ticket{}, errors.New("not implemented")
}

func (s *stubTicketService) Get(ctx context.Context, actor domain.Actor, ticketID string) (domain.Ticket, error) {
	if s.getFn != nil {
		return s.getFn(ctx, actor, ticketID)
	}
	return domain.Ticket{}, errors.New("not implemented")
}

func (s *stubTicketService) List(ctx context.Context, query services.TicketListQuery) (domain.CursorPage[domain.Ticket], error) {
	if s.listFn != nil {
		return s.listFn(ctx, query)
	}
	return domain.CursorPage[domain.Ticket]{}, nil
}

func newTicketRouter(service services.TicketService) chi.Router {
	handler := NewTicketHandlers(service, nil)
	router := chi.NewRouter()
	router.Route("/tickets", handler.Routes)
	return router
}

func TestTicketHandlersCreateTicket(t *testing.T) {
	var captured services.CreateTicketCommand
	service := &stubTicketService{
		createFn: func(_ context.Context, cmd services.CreateTicketCommand) (domain.Ticket, error) {
			captured = cmd
			return domain.Ticket{
				ID:          "tkt_1",
				SubmitterID: cmd.Actor.ID,
				Status:      domain.TicketStatusOpen,
				Priority:    domain.TicketPriorityHigh,
				Subject:     cmd.Subject,
			}, nil
		},
	}
	router := newTicketRouter(service)

	body := `{"issue_type":"order_problem","priority":"high","subject":"Damaged crates","message":"Half the delivery arrived crushed."}`
	req := httptest.NewRequest(http.MethodPost, "/tickets/", strings.NewReader(body))
	req = asActor(req, domain.Actor{ID: "usr_buyer", Role: domain.RoleBuyer})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.Priority != domain.TicketPriorityHigh || captured.IssueType != "order_problem" {
		t.Fatalf("unexpected command: %+v", captured)
	}

	var resp ticketResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Ticket.ID != "tkt_1" || resp.Ticket.Status != "open" {
		t.Fatalf("unexpected payload: %+v", resp.Ticket)
	}
}

func TestTicketHandlersCreateRejectsUnknownPriority(t *testing.T) {
	router := newTicketRouter(&stubTicketService{})

	body := `{"issue_type":"other","priority":"extreme","subject":"Help","message":"Please"}`
	req := httptest.NewRequest(http.MethodPost, "/tickets/", strings.NewReader(body))
	req = asActor(req, domain.Actor{ID: "usr_buyer", Role: domain.RoleBuyer})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestTicketHandlersTransitionRejectsUnknownStatus(t *testing.T) {
	router := newTicketRouter(&stubTicketService{})

	req := httptest.NewRequest(http.MethodPost, "/tickets/tkt_1:transition", strings.NewReader(`{"status":"archived"}`))
	req = asActor(req, domain.Actor{ID: "stf_1", Role: domain.RoleStaff})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestTicketHandlersAssignTicket(t *testing.T) {
	var captured services.AssignTicketCommand
	service := &stubTicketService{
		assignFn: func(_ context.Context, cmd services.AssignTicketCommand) (domain.Ticket, error) {
			captured = cmd
			assignee := cmd.AssigneeID
			return domain.Ticket{ID: cmd.TicketID, Status: domain.TicketStatusAssigned, AssigneeID: &assignee}, nil
		},
	}
	router := newTicketRouter(service)

	req := httptest.NewRequest(http.MethodPost, "/tickets/tkt_3:assign", strings.NewReader(`{"assignee_id":"stf_2"}`))
	req = asActor(req, domain.Actor{ID: "stf_1", Role: domain.RoleStaff})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.TicketID != "tkt_3" || captured.AssigneeID != "stf_2" {
		t.Fatalf("unexpected command: %+v", captured)
	}
}

func TestTicketHandlersRateValidatesRange(t *testing.T) {
	router := newTicketRouter(&stubTicketService{})

	req := httptest.NewRequest(http.MethodPost, "/tickets/tkt_1:rate", strings.NewReader(`{"rating":6}`))
	req = asActor(req, domain.Actor{ID: "usr_buyer", Role: domain.RoleBuyer})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestTicketHandlersAddCommentPassesInternalFlag(t *testing.T) {
	var captured services.AddTicketCommentCommand
	service := &stubTicketService{
		commentFn: func(_ context.Context, cmd services.AddTicketCommentCommand) (domain.Ticket, error) {
			captured = cmd
			return domain.Ticket{ID: cmd.TicketID, Status: domain.TicketStatusInProgress}, nil
		},
	}
	router := newTicketRouter(service)

	req := httptest.NewRequest(http.MethodPost, "/tickets/tkt_4/comments", strings.NewReader(`{"message":"Escalating to payments team","internal":true}`))
	req = asActor(req, domain.Actor{ID: "stf_1", Role: domain.RoleStaff})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if !captured.Internal || captured.Message != "Escalating to payments team" {
		t.Fatalf("unexpected command: %+v", captured)
	}
}

func TestTicketHandlersListCapturesPriorityFilter(t *testing.T) {
	var captured services.TicketListQuery
	service := &stubTicketService{
		listFn: func(_ context.Context, query services.TicketListQuery) (domain.CursorPage[domain.Ticket], error) {
			captured = query
			return domain.CursorPage[domain.Ticket]{}, nil
		},
	}
	router := newTicketRouter(service)

	req := httptest.NewRequest(http.MethodGet, "/tickets/?status=open&priority=high,urgent", nil)
	req = asActor(req, domain.Actor{ID: "stf_1", Role: domain.RoleStaff})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if len(captured.Status) != 1 || captured.Status[0] != domain.TicketStatusOpen {
		t.Fatalf("unexpected status filter: %+v", captured.Status)
	}
	if len(captured.Priority) != 2 || captured.Priority[0] != domain.TicketPriorityHigh || captured.Priority[1] != domain.TicketPriorityUrgent {
		t.Fatalf("unexpected priority filter: %+v", captured.Priority)
	}
}
