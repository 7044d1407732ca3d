package firestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/harvestlink/api/internal/domain"
	pfirestore "github.com/harvestlink/api/internal/platform/firestore"
	"github.com/harvestlink/api/internal/repositories"
)

const ticketsCollection = "tickets"

type ticketCommentDocument struct {
	Message   string    `firestore:"message"`
	Author    string    `firestore:"author"`
	Internal  bool      `firestore:"internal"`
	Timestamp time.Time `firestore:"timestamp"`
}

type historyEntryDocument struct {
	Action        string    `firestore:"action"`
	Description   string    `firestore:"description,omitempty"`
	Actor         string    `firestore:"actor"`
	PreviousValue string    `firestore:"previous_value,omitempty"`
	NewValue      string    `firestore:"new_value,omitempty"`
	Timestamp     time.Time `firestore:"timestamp"`
}

type ticketDocument struct {
	SubmitterID    string                  `firestore:"submitter_id"`
	AssigneeID     *string                 `firestore:"assignee_id,omitempty"`
	IssueType      string                  `firestore:"issue_type"`
	Priority       string                  `firestore:"priority"`
	Status         string                  `firestore:"status"`
	Subject        string                  `firestore:"subject"`
	Comments       []ticketCommentDocument `firestore:"comments"`
	History        []historyEntryDocument  `firestore:"history"`
	Resolution     string                  `firestore:"resolution,omitempty"`
	Satisfaction   *int                    `firestore:"satisfaction,omitempty"`
	CreatedAt      time.Time               `firestore:"created_at"`
	UpdatedAt      time.Time               `firestore:"updated_at"`
	ResolvedAt     *time.Time              `firestore:"resolved_at,omitempty"`
	ClosedAt       *time.Time              `firestore:"closed_at,omitempty"`
	LastActivityAt time.Time               `firestore:"last_activity_at"`
}

func encodeTicket(ticket domain.Ticket) ticketDocument {
	comments := make([]ticketCommentDocument, 0, len(ticket.Comments))
	for _, comment := range ticket.Comments {
		comments = append(comments, ticketCommentDocument{
			Message:   comment.Message,
			Author:    comment.Author,
			Internal:  comment.Internal,
			Timestamp: normalizeTime(comment.Timestamp),
		})
	}
	history := make([]historyEntryDocument, 0, len(ticket.History))
	for _, entry := range ticket.History {
		history = append(history, historyEntryDocument{
			Action:        string(entry.Action),
			Description:   entry.Description,
			Actor:         entry.Actor,
			PreviousValue: entry.PreviousValue,
			NewValue:      entry.NewValue,
			Timestamp:     normalizeTime(entry.Timestamp),
		})
	}
	return ticketDocument{
		SubmitterID:    ticket.SubmitterID,
		AssigneeID:     ticket.AssigneeID,
		IssueType:      ticket.IssueType,
		Priority:       string(ticket.Priority),
		Status:         string(ticket.Status),
		Subject:        ticket.Subject,
		Comments:       comments,
		History:        history,
		Resolution:     ticket.Resolution,
		Satisfaction:   ticket.Satisfaction,
		CreatedAt:      normalizeTime(ticket.CreatedAt),
		UpdatedAt:      normalizeTime(ticket.UpdatedAt),
		ResolvedAt:     normalizeTimePointer(ticket.ResolvedAt),
		ClosedAt:       normalizeTimePointer(ticket.ClosedAt),
		LastActivityAt: chooseTime(ticket.LastActivityAt, ticket.UpdatedAt),
	}
}

func decodeTicket(id string, doc ticketDocument) domain.Ticket {
	comments := make([]domain.TicketComment, 0, len(doc.Comments))
	for _, comment := range doc.Comments {
		comments = append(comments, domain.TicketComment{
			Message:   comment.Message,
			Author:    comment.Author,
			Internal:  comment.Internal,
			Timestamp: comment.Timestamp,
		})
	}
	history := make([]domain.HistoryEntry, 0, len(doc.History))
	for _, entry := range doc.History {
		history = append(history, domain.HistoryEntry{
			Action:        domain.HistoryAction(entry.Action),
			Description:   entry.Description,
			Actor:         entry.Actor,
			PreviousValue: entry.PreviousValue,
			NewValue:      entry.NewValue,
			Timestamp:     entry.Timestamp,
		})
	}
	return domain.Ticket{
		ID:             id,
		SubmitterID:    doc.SubmitterID,
		AssigneeID:     doc.AssigneeID,
		IssueType:      doc.IssueType,
		Priority:       domain.TicketPriority(doc.Priority),
		Status:         domain.TicketStatus(doc.Status),
		Subject:        doc.Subject,
		Comments:       comments,
		History:        history,
		Resolution:     doc.Resolution,
		Satisfaction:   doc.Satisfaction,
		CreatedAt:      doc.CreatedAt,
		UpdatedAt:      doc.UpdatedAt,
		ResolvedAt:     doc.ResolvedAt,
		ClosedAt:       doc.ClosedAt,
		LastActivityAt: chooseTime(doc.LastActivityAt, doc.UpdatedAt),
	}
}

// TicketRepository persists support tickets in the "tickets" collection.
type TicketRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[ticketDocument]
}

// NewTicketRepository builds a Firestore-backed ticket repository.
func NewTicketRepository(provider *pfirestore.Provider) (*TicketRepository, error) {
	if provider == nil {
		return nil, errors.New("ticket repository: firestore provider is required")
	}
	return &TicketRepository{
		provider: provider,
		base:     pfirestore.NewBaseRepository[ticketDocument](provider, ticketsCollection, nil, nil),
	}, nil
}

// Insert creates the ticket document, failing when the ID already exists.
func (r *TicketRepository) Insert(ctx context.Context, ticket domain.Ticket) error {
	doc := encodeTicket(ticket)
	if tx, ok := txFromContext(ctx); ok {
		ref, err := r.base.DocumentRef(ctx, ticket.ID)
		if err != nil {
			return err
		}
		return pfirestore.WrapError("tickets.create", tx.Create(ref, doc))
	}
	_, err := r.base.Create(ctx, ticket.ID, doc)
	return err
}

// Update replaces the stored ticket document.
func (r *TicketRepository) Update(ctx context.Context, ticket domain.Ticket) error {
	doc := encodeTicket(ticket)
	if tx, ok := txFromContext(ctx); ok {
		ref, err := r.base.DocumentRef(ctx, ticket.ID)
		if err != nil {
			return err
		}
		return pfirestore.WrapError("tickets.set", tx.Set(ref, doc))
	}
	_, err := r.base.Set(ctx, ticket.ID, doc)
	return err
}

// UpdateWithStatusCheck writes the ticket only while the stored status still
// equals expected.
func (r *TicketRepository) UpdateWithStatusCheck(ctx context.Context, ticket domain.Ticket, expected domain.TicketStatus) error {
	ref, err := r.base.DocumentRef(ctx, ticket.ID)
	if err != nil {
		return err
	}
	return runInTransaction(ctx, r.provider, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return pfirestore.WrapError("tickets.get", err)
		}
		stored, err := r.base.Decode(ctx, snap)
		if err != nil {
			return fmt.Errorf("tickets: decode %s: %w", ticket.ID, err)
		}
		if domain.TicketStatus(stored.Data.Status) != expected {
			return pfirestore.ConflictError("tickets.update",
				fmt.Errorf("ticket %s status is %s, expected %s", ticket.ID, stored.Data.Status, expected))
		}
		return pfirestore.WrapError("tickets.set", tx.Set(ref, encodeTicket(ticket)))
	})
}

// FindByID loads a single ticket.
func (r *TicketRepository) FindByID(ctx context.Context, ticketID string) (domain.Ticket, error) {
	if tx, ok := txFromContext(ctx); ok {
		ref, err := r.base.DocumentRef(ctx, ticketID)
		if err != nil {
			return domain.Ticket{}, err
		}
		snap, err := tx.Get(ref)
		if err != nil {
			return domain.Ticket{}, pfirestore.WrapError("tickets.get", err)
		}
		doc, err := r.base.Decode(ctx, snap)
		if err != nil {
			return domain.Ticket{}, fmt.Errorf("tickets: decode %s: %w", ticketID, err)
		}
		return decodeTicket(snap.Ref.ID, doc.Data), nil
	}

	doc, err := r.base.Get(ctx, ticketID)
	if err != nil {
		return domain.Ticket{}, err
	}
	return decodeTicket(doc.ID, doc.Data), nil
}

// List returns a page of tickets matching the filter, newest first.
func (r *TicketRepository) List(ctx context.Context, filter repositories.TicketListFilter) (domain.CursorPage[domain.Ticket], error) {
	limit := normalizePageSize(filter.Pagination.PageSize)
	fetchLimit := limit + 1

	startAfter, err := cursorStartAfter(filter.Pagination.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Ticket]{}, err
	}

	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		if filter.SubmitterID != "" {
			query = query.Where("submitter_id", "==", filter.SubmitterID)
		}
		if filter.AssigneeID != "" {
			query = query.Where("assignee_id", "==", filter.AssigneeID)
		}
		if len(filter.Status) > 0 {
			query = query.Where("status", "in", ticketStatusValues(filter.Status))
		}
		if len(filter.Priority) > 0 {
			query = query.Where("priority", "in", ticketPriorityValues(filter.Priority))
		}
		return orderNewestFirst(query, startAfter).Limit(fetchLimit)
	})
	if err != nil {
		return domain.CursorPage[domain.Ticket]{}, err
	}

	page := domain.CursorPage[domain.Ticket]{Items: make([]domain.Ticket, 0, limit)}
	for i, doc := range docs {
		if i == limit {
			last := docs[limit-1]
			page.NextPageToken = encodePageToken(last.Data.CreatedAt, last.ID)
			break
		}
		page.Items = append(page.Items, decodeTicket(doc.ID, doc.Data))
	}
	return page, nil
}

func ticketStatusValues(statuses []domain.TicketStatus) []string {
	values := make([]string, 0, len(statuses))
	for _, s := range statuses {
		values = append(values, string(s))
	}
	return values
}

func ticketPriorityValues(priorities []domain.TicketPriority) []string {
	values := make([]string, 0, len(priorities))
	for _, p := range priorities {
		values = append(values, string(p))
	}
	return values
}
