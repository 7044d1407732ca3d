package services

import (
	"testing"
	"time"

	"github.com/harvestlink/api/internal/domain"
)

func TestRecorderEntriesCarryClockTime(t *testing.T) {
	recorder := NewRecorder(fixedClock)

	created := recorder.TicketCreated("usr_1")
	if created.Action != domain.HistoryActionCreated {
		t.Fatalf("Action = %s", created.Action)
	}
	if created.PreviousValue != "" || created.NewValue != "" {
		t.Fatalf("created entry carries values: %+v", created)
	}
	if !created.Timestamp.Equal(testNow) {
		t.Fatalf("Timestamp = %v, want %v", created.Timestamp, testNow)
	}

	change := recorder.TicketStatusChanged("stf_1", domain.TicketStatusOpen, domain.TicketStatusInProgress)
	if change.PreviousValue != "open" || change.NewValue != "in_progress" {
		t.Fatalf("before/after = %q/%q", change.PreviousValue, change.NewValue)
	}
}

func TestAppendTicketHistoryAdvancesLastActivity(t *testing.T) {
	later := testNow.Add(time.Hour)
	tick := testNow
	recorder := NewRecorder(func() time.Time {
		now := tick
		tick = later
		return now
	})

	ticket := domain.Ticket{ID: "tkt_1"}
	AppendTicketHistory(&ticket,
		recorder.TicketStatusChanged("stf_1", domain.TicketStatusOpen, domain.TicketStatusAssigned),
		recorder.TicketAssigned("stf_1", "", "stf_2"),
	)

	if len(ticket.History) != 2 {
		t.Fatalf("history entries = %d, want 2", len(ticket.History))
	}
	if ticket.History[0].Action != domain.HistoryActionStatusChanged || ticket.History[1].Action != domain.HistoryActionAssigned {
		t.Fatalf("entries out of order: %+v", ticket.History)
	}
	if !ticket.LastActivityAt.Equal(later) {
		t.Fatalf("LastActivityAt = %v, want %v", ticket.LastActivityAt, later)
	}
}

func TestAppendOrderTrackingAdvancesLastActivity(t *testing.T) {
	recorder := NewRecorder(fixedClock)
	order := domain.Order{ID: "ord_1"}

	AppendOrderTracking(&order, recorder.OrderTracking(domain.OrderStatusConfirmed, "", ""))
	if len(order.Tracking) != 1 {
		t.Fatalf("tracking entries = %d, want 1", len(order.Tracking))
	}
	if !order.LastActivityAt.Equal(testNow) {
		t.Fatalf("LastActivityAt = %v, want %v", order.LastActivityAt, testNow)
	}
}
