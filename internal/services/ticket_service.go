package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"

	"github.com/harvestlink/api/internal/domain"
	"github.com/harvestlink/api/internal/repositories"
)

const ticketIDPrefix = "tkt_"

var ticketPriorities = []domain.TicketPriority{
	domain.TicketPriorityLow,
	domain.TicketPriorityMedium,
	domain.TicketPriorityHigh,
	domain.TicketPriorityUrgent,
}

// TicketServiceDeps bundles collaborators required to construct the ticket service.
type TicketServiceDeps struct {
	Tickets     repositories.TicketRepository
	UnitOfWork  repositories.UnitOfWork
	Events      LifecycleEventPublisher
	Sanitizer   *bluemonday.Policy
	Clock       func() time.Time
	IDGenerator func() string
	Logger      Logger
}

type ticketService struct {
	tickets    repositories.TicketRepository
	unitOfWork repositories.UnitOfWork
	events     LifecycleEventPublisher
	sanitizer  *bluemonday.Policy
	recorder   *Recorder
	clock      func() time.Time
	newID      func() string
	logger     Logger
}

// NewTicketService wires dependencies into a concrete TicketService implementation.
func NewTicketService(deps TicketServiceDeps) (TicketService, error) {
	if deps.Tickets == nil {
		return nil, errors.New("ticket service: ticket repository is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}
	sanitizer := deps.Sanitizer
	if sanitizer == nil {
		sanitizer = bluemonday.StrictPolicy()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &ticketService{
		tickets:    deps.Tickets,
		unitOfWork: unit,
		events:     deps.Events,
		sanitizer:  sanitizer,
		recorder:   NewRecorder(clock),
		clock:      func() time.Time { return clock().UTC() },
		newID:      idGen,
		logger:     logger,
	}, nil
}

func (s *ticketService) Create(ctx context.Context, cmd CreateTicketCommand) (domain.Ticket, error) {
	subject := s.sanitize(cmd.Subject)
	if subject == "" {
		return domain.Ticket{}, fmt.Errorf("%w: subject is required", ErrValidation)
	}
	issueType := strings.TrimSpace(cmd.IssueType)
	if issueType == "" {
		return domain.Ticket{}, fmt.Errorf("%w: issue type is required", ErrValidation)
	}
	priority := cmd.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}
	if !validTicketPriority(priority) {
		return domain.Ticket{}, fmt.Errorf("%w: unknown priority %q", ErrValidation, priority)
	}

	now := s.now()
	ticket := domain.Ticket{
		ID:          ticketIDPrefix + s.newID(),
		SubmitterID: cmd.Actor.ID,
		IssueType:   issueType,
		Priority:    priority,
		Status:      domain.TicketStatusOpen,
		Subject:     subject,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if message := s.sanitize(cmd.Message); message != "" {
		ticket.Comments = append(ticket.Comments, domain.TicketComment{
			Message:   message,
			Author:    cmd.Actor.ID,
			Timestamp: now,
		})
	}
	AppendTicketHistory(&ticket, s.recorder.TicketCreated(cmd.Actor.ID))

	err := s.runInTx(ctx, func(txCtx context.Context) error {
		if err := s.tickets.Insert(txCtx, ticket); err != nil {
			return mapRepositoryError(err)
		}
		return nil
	})
	if err != nil {
		return domain.Ticket{}, err
	}

	s.publishEvent(ctx, "", ticket, cmd.Actor, now)
	return ticket, nil
}

func (s *ticketService) Transition(ctx context.Context, cmd TicketTransitionCommand) (domain.Ticket, error) {
	ticketID := strings.TrimSpace(cmd.TicketID)
	if ticketID == "" {
		return domain.Ticket{}, fmt.Errorf("%w: ticket id is required", ErrValidation)
	}
	if !domain.ValidTicketStatus(string(cmd.Target)) {
		return domain.Ticket{}, fmt.Errorf("%w: unknown ticket status %q", ErrValidation, cmd.Target)
	}

	ticket, err := s.tickets.FindByID(ctx, ticketID)
	if err != nil {
		return domain.Ticket{}, mapRepositoryError(err)
	}

	if !cmd.Actor.IsStaff() && cmd.Actor.ID != ticket.SubmitterID {
		return domain.Ticket{}, fmt.Errorf("%w: ticket %s", ErrForbidden, ticket.ID)
	}
	if !domain.CanTicketTransition(cmd.Actor, ticket.Status, cmd.Target) {
		return domain.Ticket{}, fmt.Errorf("%w: ticket %s to %s", ErrInvalidTransition, ticket.Status, cmd.Target)
	}

	now := s.now()
	prev := ticket.Status
	ticket.Status = cmd.Target
	ticket.UpdatedAt = now

	switch cmd.Target {
	case domain.TicketStatusResolved:
		ticket.ResolvedAt = &now
		if resolution := s.sanitize(cmd.Resolution); resolution != "" {
			ticket.Resolution = resolution
		}
	case domain.TicketStatusClosed:
		ticket.ClosedAt = &now
	}
	AppendTicketHistory(&ticket, s.recorder.TicketStatusChanged(cmd.Actor.ID, prev, cmd.Target))

	err = s.runInTx(ctx, func(txCtx context.Context) error {
		if err := s.tickets.UpdateWithStatusCheck(txCtx, ticket, prev); err != nil {
			return mapRepositoryError(err)
		}
		return nil
	})
	if err != nil {
		return domain.Ticket{}, err
	}

	s.publishEvent(ctx, string(prev), ticket, cmd.Actor, now)
	return ticket, nil
}

func (s *ticketService) Assign(ctx context.Context, cmd AssignTicketCommand) (domain.Ticket, error) {
	ticketID := strings.TrimSpace(cmd.TicketID)
	if ticketID == "" {
		return domain.Ticket{}, fmt.Errorf("%w: ticket id is required", ErrValidation)
	}
	assigneeID := strings.TrimSpace(cmd.AssigneeID)
	if assigneeID == "" {
		return domain.Ticket{}, fmt.Errorf("%w: assignee id is required", ErrValidation)
	}
	if !cmd.Actor.IsStaff() {
		return domain.Ticket{}, fmt.Errorf("%w: only staff assign tickets", ErrForbidden)
	}

	ticket, err := s.tickets.FindByID(ctx, ticketID)
	if err != nil {
		return domain.Ticket{}, mapRepositoryError(err)
	}

	prevAssignee := ""
	if ticket.AssigneeID != nil {
		prevAssignee = *ticket.AssigneeID
	}
	if prevAssignee == assigneeID {
		return ticket, nil
	}

	now := s.now()
	prev := ticket.Status
	ticket.AssigneeID = &assigneeID
	ticket.UpdatedAt = now

	// Assigning an open ticket moves it to assigned implicitly. The status
	// entry precedes the assignment entry.
	var entries []domain.HistoryEntry
	if ticket.Status == domain.TicketStatusOpen {
		ticket.Status = domain.TicketStatusAssigned
		entries = append(entries, s.recorder.TicketStatusChanged(cmd.Actor.ID, prev, ticket.Status))
	}
	entries = append(entries, s.recorder.TicketAssigned(cmd.Actor.ID, prevAssignee, assigneeID))
	AppendTicketHistory(&ticket, entries...)

	err = s.runInTx(ctx, func(txCtx context.Context) error {
		if err := s.tickets.UpdateWithStatusCheck(txCtx, ticket, prev); err != nil {
			return mapRepositoryError(err)
		}
		return nil
	})
	if err != nil {
		return domain.Ticket{}, err
	}

	if ticket.Status != prev {
		s.publishEvent(ctx, string(prev), ticket, cmd.Actor, now)
	}
	return ticket, nil
}

func (s *ticketService) AddComment(ctx context.Context, cmd AddTicketCommentCommand) (domain.Ticket, error) {
	ticketID := strings.TrimSpace(cmd.TicketID)
	if ticketID == "" {
		return domain.Ticket{}, fmt.Errorf("%w: ticket id is required", ErrValidation)
	}
	message := s.sanitize(cmd.Message)
	if message == "" {
		return domain.Ticket{}, fmt.Errorf("%w: comment message is required", ErrValidation)
	}

	ticket, err := s.tickets.FindByID(ctx, ticketID)
	if err != nil {
		return domain.Ticket{}, mapRepositoryError(err)
	}

	if !cmd.Actor.IsStaff() && cmd.Actor.ID != ticket.SubmitterID {
		return domain.Ticket{}, fmt.Errorf("%w: ticket %s", ErrForbidden, ticket.ID)
	}
	if cmd.Internal && !cmd.Actor.IsStaff() {
		return domain.Ticket{}, fmt.Errorf("%w: internal comments are staff only", ErrForbidden)
	}

	now := s.now()
	ticket.Comments = append(ticket.Comments, domain.TicketComment{
		Message:   message,
		Author:    cmd.Actor.ID,
		Internal:  cmd.Internal,
		Timestamp: now,
	})
	ticket.UpdatedAt = now
	AppendTicketHistory(&ticket, s.recorder.TicketCommented(cmd.Actor.ID, cmd.Internal))

	err = s.runInTx(ctx, func(txCtx context.Context) error {
		if err := s.tickets.Update(txCtx, ticket); err != nil {
			return mapRepositoryError(err)
		}
		return nil
	})
	if err != nil {
		return domain.Ticket{}, err
	}
	return ticket, nil
}

func (s *ticketService) Rate(ctx context.Context, cmd RateTicketCommand) (domain.Ticket, error) {
	ticketID := strings.TrimSpace(cmd.TicketID)
	if ticketID == "" {
		return domain.Ticket{}, fmt.Errorf("%w: ticket id is required", ErrValidation)
	}
	if cmd.Rating < 1 || cmd.Rating > 5 {
		return domain.Ticket{}, fmt.Errorf("%w: rating must be between 1 and 5", ErrValidation)
	}

	ticket, err := s.tickets.FindByID(ctx, ticketID)
	if err != nil {
		return domain.Ticket{}, mapRepositoryError(err)
	}

	if cmd.Actor.ID != ticket.SubmitterID {
		return domain.Ticket{}, fmt.Errorf("%w: only the submitter rates ticket %s", ErrForbidden, ticket.ID)
	}
	if ticket.Status != domain.TicketStatusResolved {
		return domain.Ticket{}, fmt.Errorf("%w: ticket must be resolved to rate", ErrValidation)
	}
	if ticket.Satisfaction != nil {
		return domain.Ticket{}, fmt.Errorf("%w: ticket %s is already rated", ErrConflict, ticket.ID)
	}

	now := s.now()
	rating := cmd.Rating
	ticket.Satisfaction = &rating
	ticket.UpdatedAt = now
	AppendTicketHistory(&ticket, s.recorder.TicketRated(cmd.Actor.ID, rating))

	err = s.runInTx(ctx, func(txCtx context.Context) error {
		if err := s.tickets.UpdateWithStatusCheck(txCtx, ticket, domain.TicketStatusResolved); err != nil {
			return mapRepositoryError(err)
		}
		return nil
	})
	if err != nil {
		return domain.Ticket{}, err
	}
	return ticket, nil
}

func (s *ticketService) Get(ctx context.Context, actor domain.Actor, ticketID string) (domain.Ticket, error) {
	ticket, err := s.tickets.FindByID(ctx, strings.TrimSpace(ticketID))
	if err != nil {
		return domain.Ticket{}, mapRepositoryError(err)
	}
	if !actor.IsStaff() && actor.ID != ticket.SubmitterID {
		return domain.Ticket{}, fmt.Errorf("%w: ticket %s", ErrForbidden, ticket.ID)
	}
	if !actor.IsStaff() {
		ticket = redactInternalComments(ticket)
	}
	return ticket, nil
}

func (s *ticketService) List(ctx context.Context, query TicketListQuery) (domain.CursorPage[domain.Ticket], error) {
	filter := repositories.TicketListFilter{
		Status:     query.Status,
		Priority:   query.Priority,
		Pagination: query.Pagination,
	}
	if !query.Actor.IsStaff() {
		filter.SubmitterID = query.Actor.ID
	}

	page, err := s.tickets.List(ctx, filter)
	if err != nil {
		return domain.CursorPage[domain.Ticket]{}, mapRepositoryError(err)
	}
	if !query.Actor.IsStaff() {
		for i := range page.Items {
			page.Items[i] = redactInternalComments(page.Items[i])
		}
	}
	return page, nil
}

func (s *ticketService) publishEvent(ctx context.Context, prev string, ticket domain.Ticket, actor domain.Actor, now time.Time) {
	if s.events == nil {
		return
	}
	_, err := s.events.PublishLifecycleEvent(ctx, LifecycleEventMessage{
		EventID:        eventIDPrefix + s.newID(),
		EntityKind:     domain.KindTicket,
		EntityID:       ticket.ID,
		PreviousStatus: prev,
		NewStatus:      string(ticket.Status),
		ActorID:        actor.ID,
		ActorRole:      string(actor.Role),
		OccurredAt:     now,
	})
	if err != nil {
		s.logger(ctx, "ticket.event.publish.failed", map[string]any{
			"ticket": ticket.ID,
			"status": string(ticket.Status),
			"error":  err.Error(),
		})
	}
}

func (s *ticketService) sanitize(raw string) string {
	return strings.TrimSpace(s.sanitizer.Sanitize(raw))
}

func (s *ticketService) runInTx(ctx context.Context, fn func(context.Context) error) error {
	if s.unitOfWork == nil {
		return fn(ctx)
	}
	return s.unitOfWork.RunInTx(ctx, fn)
}

func (s *ticketService) now() time.Time {
	return s.clock()
}

func validTicketPriority(priority domain.TicketPriority) bool {
	for _, p := range ticketPriorities {
		if p == priority {
			return true
		}
	}
	return false
}

func redactInternalComments(ticket domain.Ticket) domain.Ticket {
	visible := make([]domain.TicketComment, 0, len(ticket.Comments))
	for _, comment := range ticket.Comments {
		if !comment.Internal {
			visible = append(visible, comment)
		}
	}
	ticket.Comments = visible
	return ticket
}
