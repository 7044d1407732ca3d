package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/harvestlink/api/internal/domain"
	"github.com/harvestlink/api/internal/platform/httpx"
	"github.com/harvestlink/api/internal/platform/validation"
	"github.com/harvestlink/api/internal/services"
)

// TicketHandlers exposes the support ticket lifecycle endpoints.
type TicketHandlers struct {
	tickets  services.TicketService
	validate *validatorv10.Validate
}

// NewTicketHandlers constructs a new TicketHandlers instance.
func NewTicketHandlers(tickets services.TicketService, validate *validatorv10.Validate) *TicketHandlers {
	if validate == nil {
		validate = validation.New()
	}
	return &TicketHandlers{
		tickets:  tickets,
		validate: validate,
	}
}

// Routes registers the /tickets endpoints.
func (h *TicketHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/", h.createTicket)
	r.Get("/", h.listTickets)
	r.Get("/{ticketID}", h.getTicket)
	r.Post("/{ticketID}:transition", h.transitionTicket)
	r.Post("/{ticketID}:assign", h.assignTicket)
	r.Post("/{ticketID}:rate", h.rateTicket)
	r.Post("/{ticketID}/comments", h.addComment)
}

type createTicketRequest struct {
	IssueType string `json:"issue_type" validate:"required,max=100"`
	Priority  string `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	Subject   string `json:"subject" validate:"required,max=200"`
	Message   string `json:"message" validate:"required,max=10000"`
}

type transitionTicketRequest struct {
	Status     string `json:"status" validate:"required"`
	Resolution string `json:"resolution" validate:"max=5000"`
}

type assignTicketRequest struct {
	AssigneeID string `json:"assignee_id" validate:"required"`
}

type addCommentRequest struct {
	Message  string `json:"message" validate:"required,max=10000"`
	Internal bool   `json:"internal"`
}

type rateTicketRequest struct {
	Rating int `json:"rating" validate:"required,min=1,max=5"`
}

func (h *TicketHandlers) createTicket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := requireActor(ctx, w)
	if !ok {
		return
	}

	var req createTicketRequest
	if err := validation.DecodeAndValidate(r, &req, h.validate); err != nil {
		writeLifecycleError(ctx, w, err)
		return
	}

	ticket, err := h.tickets.Create(ctx, services.CreateTicketCommand{
		Actor:     actor,
		IssueType: strings.TrimSpace(req.IssueType),
		Priority:  domain.TicketPriority(strings.ToLower(strings.TrimSpace(req.Priority))),
		Subject:   req.Subject,
		Message:   req.Message,
	})
	if err != nil {
		writeLifecycleError(ctx, w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, ticketResponse{Ticket: buildTicketPayload(ticket)})
}

func (h *TicketHandlers) transitionTicket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := requireActor(ctx, w)
	if !ok {
		return
	}

	ticketID := strings.TrimSpace(chi.URLParam(r, "ticketID"))
	if ticketID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "ticket id is required", http.StatusBadRequest))
		return
	}

	var req transitionTicketRequest
	if err := validation.DecodeAndValidate(r, &req, h.validate); err != nil {
		writeLifecycleError(ctx, w, err)
		return
	}

	status := strings.ToLower(strings.TrimSpace(req.Status))
	if !domain.ValidTicketStatus(status) {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "status must be a valid ticket status", http.StatusBadRequest))
		return
	}

	ticket, err := h.tickets.Transition(ctx, services.TicketTransitionCommand{
		Actor:      actor,
		TicketID:   ticketID,
		Target:     domain.TicketStatus(status),
		Resolution: strings.TrimSpace(req.Resolution),
	})
	if err != nil {
		writeLifecycleError(ctx, w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, ticketResponse{Ticket: buildTicketPayload(ticket)})
}

func (h *TicketHandlers) assignTicket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := requireActor(ctx, w)
	if !ok {
		return
	}

	ticketID := strings.TrimSpace(chi.URLParam(r, "ticketID"))
	if ticketID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "ticket id is required", http.StatusBadRequest))
		return
	}

	var req assignTicketRequest
	if err := validation.DecodeAndValidate(r, &req, h.validate); err != nil {
		writeLifecycleError(ctx, w, err)
		return
	}

	ticket, err := h.tickets.Assign(ctx, services.AssignTicketCommand{
		Actor:      actor,
		TicketID:   ticketID,
		AssigneeID: strings.TrimSpace(req.AssigneeID),
	})
	if err != nil {
		writeLifecycleError(ctx, w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, ticketResponse{Ticket: buildTicketPayload(ticket)})
}

func (h *TicketHandlers) addComment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := requireActor(ctx, w)
	if !ok {
		return
	}

	ticketID := strings.TrimSpace(chi.URLParam(r, "ticketID"))
	if ticketID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "ticket id is required", http.StatusBadRequest))
		return
	}

	var req addCommentRequest
	if err := validation.DecodeAndValidate(r, &req, h.validate); err != nil {
		writeLifecycleError(ctx, w, err)
		return
	}

	ticket, err := h.tickets.AddComment(ctx, services.AddTicketCommentCommand{
		Actor:    actor,
		TicketID: ticketID,
		Message:  req.Message,
		Internal: req.Internal,
	})
	if err != nil {
		writeLifecycleError(ctx, w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, ticketResponse{Ticket: buildTicketPayload(ticket)})
}

func (h *TicketHandlers) rateTicket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := requireActor(ctx, w)
	if !ok {
		return
	}

	ticketID := strings.TrimSpace(chi.URLParam(r, "ticketID"))
	if ticketID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "ticket id is required", http.StatusBadRequest))
		return
	}

	var req rateTicketRequest
	if err := validation.DecodeAndValidate(r, &req, h.validate); err != nil {
		writeLifecycleError(ctx, w, err)
		return
	}

	ticket, err := h.tickets.Rate(ctx, services.RateTicketCommand{
		Actor:    actor,
		TicketID: ticketID,
		Rating:   req.Rating,
	})
	if err != nil {
		writeLifecycleError(ctx, w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, ticketResponse{Ticket: buildTicketPayload(ticket)})
}

func (h *TicketHandlers) getTicket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := requireActor(ctx, w)
	if !ok {
		return
	}

	ticketID := strings.TrimSpace(chi.URLParam(r, "ticketID"))
	if ticketID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "ticket id is required", http.StatusBadRequest))
		return
	}

	ticket, err := h.tickets.Get(ctx, actor, ticketID)
	if err != nil {
		writeLifecycleError(ctx, w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, ticketResponse{Ticket: buildTicketPayload(ticket)})
}

func (h *TicketHandlers) listTickets(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := requireActor(ctx, w)
	if !ok {
		return
	}

	page, err := parseListBasics(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	statuses := make([]domain.TicketStatus, 0)
	for _, raw := range parseFilterValues(r.URL.Query()["status"]) {
		if !domain.ValidTicketStatus(raw) {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "status filter must name valid ticket statuses", http.StatusBadRequest))
			return
		}
		statuses = append(statuses, domain.TicketStatus(raw))
	}

	priorities := make([]domain.TicketPriority, 0)
	for _, raw := range parseFilterValues(r.URL.Query()["priority"]) {
		switch domain.TicketPriority(raw) {
		case domain.TicketPriorityLow, domain.TicketPriorityMedium, domain.TicketPriorityHigh, domain.TicketPriorityUrgent:
			priorities = append(priorities, domain.TicketPriority(raw))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "priority filter must name valid priorities", http.StatusBadRequest))
			return
		}
	}

	result, err := h.tickets.List(ctx, services.TicketListQuery{
		Actor:      actor,
		Status:     statuses,
		Priority:   priorities,
		Pagination: page,
	})
	if err != nil {
		writeLifecycleError(ctx, w, err)
		return
	}

	items := make([]ticketPayload, 0, len(result.Items))
	for _, ticket := range result.Items {
		items = append(items, buildTicketPayload(ticket))
	}

	httpx.WriteJSON(w, http.StatusOK, ticketListResponse{
		Items:         items,
		NextPageToken: strings.TrimSpace(result.NextPageToken),
	})
}

type ticketListResponse struct {
	Items         []ticketPayload `json:"items"`
	NextPageToken string          `json:"next_page_token,omitempty"`
}

type ticketResponse struct {
	Ticket ticketPayload `json:"ticket"`
}

type ticketPayload struct {
	ID             string                 `json:"id"`
	SubmitterID    string                 `json:"submitter_id"`
	AssigneeID     *string                `json:"assignee_id,omitempty"`
	IssueType      string                 `json:"issue_type"`
	Priority       string                 `json:"priority"`
	Status         string                 `json:"status"`
	Subject        string                 `json:"subject"`
	Comments       []ticketCommentPayload `json:"comments"`
	History        []historyEntryPayload  `json:"history"`
	Resolution     string                 `json:"resolution,omitempty"`
	Satisfaction   *int                   `json:"satisfaction,omitempty"`
	CreatedAt      string                 `json:"created_at"`
	UpdatedAt      string                 `json:"updated_at,omitempty"`
	ResolvedAt     string                 `json:"resolved_at,omitempty"`
	ClosedAt       string                 `json:"closed_at,omitempty"`
	LastActivityAt string                 `json:"last_activity_at,omitempty"`
}

type ticketCommentPayload struct {
	Message   string `json:"message"`
	Author    string `json:"author"`
	Internal  bool   `json:"internal,omitempty"`
	Timestamp string `json:"timestamp"`
}

type historyEntryPayload struct {
	Action        string `json:"action"`
	Description   string `json:"description,omitempty"`
	Actor         string `json:"actor"`
	PreviousValue string `json:"previous_value,omitempty"`
	NewValue      string `json:"new_value,omitempty"`
	Timestamp     string `json:"timestamp"`
}

func buildTicketPayload(ticket domain.Ticket) ticketPayload {
	payload := ticketPayload{
		ID:             strings.TrimSpace(ticket.ID),
		SubmitterID:    strings.TrimSpace(ticket.SubmitterID),
		AssigneeID:     cloneStringPointer(ticket.AssigneeID),
		IssueType:      strings.TrimSpace(ticket.IssueType),
		Priority:       string(ticket.Priority),
		Status:         string(ticket.Status),
		Subject:        ticket.Subject,
		Comments:       make([]ticketCommentPayload, 0, len(ticket.Comments)),
		History:        make([]historyEntryPayload, 0, len(ticket.History)),
		Resolution:     strings.TrimSpace(ticket.Resolution),
		CreatedAt:      formatTime(ticket.CreatedAt),
		UpdatedAt:      formatTime(ticket.UpdatedAt),
		ResolvedAt:     formatTime(pointerTime(ticket.ResolvedAt)),
		ClosedAt:       formatTime(pointerTime(ticket.ClosedAt)),
		LastActivityAt: formatTime(ticket.LastActivityAt),
	}

	if ticket.Satisfaction != nil {
		rating := *ticket.Satisfaction
		payload.Satisfaction = &rating
	}

	for _, comment := range ticket.Comments {
		payload.Comments = append(payload.Comments, ticketCommentPayload{
			Message:   comment.Message,
			Author:    strings.TrimSpace(comment.Author),
			Internal:  comment.Internal,
			Timestamp: formatTime(comment.Timestamp),
		})
	}

	for _, entry := range ticket.History {
		payload.History = append(payload.History, historyEntryPayload{
			Action:        string(entry.Action),
			Description:   strings.TrimSpace(entry.Description),
			Actor:         strings.TrimSpace(entry.Actor),
			PreviousValue: entry.PreviousValue,
			NewValue:      entry.NewValue,
			Timestamp:     formatTime(entry.Timestamp),
		})
	}

	return payload
}
