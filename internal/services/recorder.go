package services

import (
	"fmt"
	"time"

	"github.com/harvestlink/api/internal/domain"
)

// Recorder builds immutable audit trail entries from explicit before/after
// values. It never diffs snapshots; callers state what changed. Entries are
// appended through the Append helpers, which also advance LastActivityAt.
type Recorder struct {
	clock func() time.Time
}

// NewRecorder constructs a recorder with the given clock, defaulting to
// time.Now.
func NewRecorder(clock func() time.Time) *Recorder {
	if clock == nil {
		clock = time.Now
	}
	return &Recorder{clock: func() time.Time { return clock().UTC() }}
}

func (r *Recorder) now() time.Time {
	return r.clock()
}

// OrderTracking builds a tracking update mirroring the given order status.
func (r *Recorder) OrderTracking(status domain.OrderStatus, message, location string) domain.TrackingUpdate {
	return domain.TrackingUpdate{
		Status:    status,
		Message:   message,
		Location:  location,
		Timestamp: r.now(),
	}
}

// BookingTimeline builds a timeline entry for the given booking status.
func (r *Recorder) BookingTimeline(status domain.BookingStatus, message, actor string) domain.TimelineEntry {
	return domain.TimelineEntry{
		Status:    status,
		Message:   message,
		Actor:     actor,
		Timestamp: r.now(),
	}
}

// TicketCreated builds the synthetic entry recorded when a ticket is opened.
// It carries no previous value.
func (r *Recorder) TicketCreated(actor string) domain.HistoryEntry {
	return domain.HistoryEntry{
		Action:      domain.HistoryActionCreated,
		Description: "ticket created",
		Actor:       actor,
		Timestamp:   r.now(),
	}
}

// TicketStatusChanged builds a status edge entry with before/after values.
func (r *Recorder) TicketStatusChanged(actor string, prev, next domain.TicketStatus) domain.HistoryEntry {
	return domain.HistoryEntry{
		Action:        domain.HistoryActionStatusChanged,
		Description:   fmt.Sprintf("status changed from %s to %s", prev, next),
		Actor:         actor,
		PreviousValue: string(prev),
		NewValue:      string(next),
		Timestamp:     r.now(),
	}
}

// TicketAssigned builds an assignee change entry with before/after values.
func (r *Recorder) TicketAssigned(actor, prev, next string) domain.HistoryEntry {
	return domain.HistoryEntry{
		Action:        domain.HistoryActionAssigned,
		Description:   fmt.Sprintf("assigned to %s", next),
		Actor:         actor,
		PreviousValue: prev,
		NewValue:      next,
		Timestamp:     r.now(),
	}
}

// TicketCommented builds a comment append entry.
func (r *Recorder) TicketCommented(actor string, internal bool) domain.HistoryEntry {
	description := "comment added"
	if internal {
		description = "internal comment added"
	}
	return domain.HistoryEntry{
		Action:      domain.HistoryActionCommented,
		Description: description,
		Actor:       actor,
		Timestamp:   r.now(),
	}
}

// TicketRated builds a satisfaction rating entry.
func (r *Recorder) TicketRated(actor string, rating int) domain.HistoryEntry {
	return domain.HistoryEntry{
		Action:      domain.HistoryActionRated,
		Description: fmt.Sprintf("rated %d/5", rating),
		Actor:       actor,
		NewValue:    fmt.Sprintf("%d", rating),
		Timestamp:   r.now(),
	}
}

// AppendOrderTracking appends the update and advances LastActivityAt.
func AppendOrderTracking(order *domain.Order, update domain.TrackingUpdate) {
	order.Tracking = append(order.Tracking, update)
	order.LastActivityAt = update.Timestamp
}

// AppendBookingTimeline appends the entry and advances LastActivityAt.
func AppendBookingTimeline(booking *domain.Booking, entry domain.TimelineEntry) {
	booking.Timeline = append(booking.Timeline, entry)
	booking.LastActivityAt = entry.Timestamp
}

// AppendTicketHistory appends the entries in order and advances
// LastActivityAt. A call that changes both status and assignee passes two
// entries, status first.
func AppendTicketHistory(ticket *domain.Ticket, entries ...domain.HistoryEntry) {
	for _, entry := range entries {
		ticket.History = append(ticket.History, entry)
		ticket.LastActivityAt = entry.Timestamp
	}
}
