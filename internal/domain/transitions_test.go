package domain

import (
	"errors"
	"testing"
)

func TestCanOrderTransitionTable(t *testing.T) {
	legal := []struct {
		from OrderStatus
		to   OrderStatus
	}{
		{OrderStatusPending, OrderStatusConfirmed},
		{OrderStatusPending, OrderStatusCancelled},
		{OrderStatusConfirmed, OrderStatusProcessing},
		{OrderStatusConfirmed, OrderStatusCancelled},
		{OrderStatusProcessing, OrderStatusReadyForPickup},
		{OrderStatusProcessing, OrderStatusShipped},
		{OrderStatusReadyForPickup, OrderStatusDelivered},
		{OrderStatusShipped, OrderStatusDelivered},
		{OrderStatusCancelled, OrderStatusRefunded},
	}
	for _, tc := range legal {
		if !CanOrderTransition(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be legal", tc.from, tc.to)
		}
	}

	statuses := []OrderStatus{
		OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing,
		OrderStatusReadyForPickup, OrderStatusShipped, OrderStatusDelivered,
		OrderStatusCancelled, OrderStatusRefunded,
	}
	allowed := make(map[[2]OrderStatus]bool, len(legal))
	for _, tc := range legal {
		allowed[[2]OrderStatus{tc.from, tc.to}] = true
	}
	for _, from := range statuses {
		for _, to := range statuses {
			if allowed[[2]OrderStatus{from, to}] {
				continue
			}
			if CanOrderTransition(from, to) {
				t.Errorf("expected %s -> %s to be rejected", from, to)
			}
		}
	}
}

func TestCanOrderTransitionRejectsSelfLoop(t *testing.T) {
	if CanOrderTransition(OrderStatusCancelled, OrderStatusCancelled) {
		t.Fatal("cancelled has no self-loop; a second cancel must be rejected")
	}
	if CanOrderTransition(OrderStatusPending, OrderStatusPending) {
		t.Fatal("self-loops are not legal edges")
	}
}

func TestCanBookingTransitionLenientTable(t *testing.T) {
	working := []BookingStatus{
		BookingStatusPendingConfirmation,
		BookingStatusConfirmed,
		BookingStatusInProgress,
		BookingStatusCompleted,
		BookingStatusCancelled,
	}
	for _, from := range working {
		for _, to := range working {
			if from == to {
				if CanBookingTransition(from, to) {
					t.Errorf("self-loop %s should be rejected", from)
				}
				continue
			}
			if !CanBookingTransition(from, to) {
				t.Errorf("booking table is lenient; %s -> %s should be legal", from, to)
			}
		}
	}

	if !CanBookingTransition(BookingStatusCancelled, BookingStatusRefunded) {
		t.Error("cancelled -> refunded must be legal")
	}
	if CanBookingTransition(BookingStatusConfirmed, BookingStatusRefunded) {
		t.Error("refunded must only be reachable from cancelled")
	}
	if CanBookingTransition(BookingStatusRefunded, BookingStatusConfirmed) {
		t.Error("refunded is terminal")
	}
}

func TestCanTicketTransitionRoles(t *testing.T) {
	staff := Actor{ID: "staff-1", Role: RoleStaff}
	admin := Actor{ID: "admin-1", Role: RoleAdmin}
	submitter := Actor{ID: "user-1", Role: RoleBuyer}

	if !CanTicketTransition(staff, TicketStatusOpen, TicketStatusInProgress) {
		t.Error("staff may move open -> in_progress")
	}
	if !CanTicketTransition(admin, TicketStatusWaitingCustomer, TicketStatusResolved) {
		t.Error("admin may move waiting_customer -> resolved")
	}
	if CanTicketTransition(staff, TicketStatusClosed, TicketStatusOpen) {
		t.Error("closed is terminal even for staff")
	}

	if !CanTicketTransition(submitter, TicketStatusResolved, TicketStatusClosed) {
		t.Error("submitter may close a resolved ticket")
	}
	if CanTicketTransition(submitter, TicketStatusOpen, TicketStatusResolved) {
		t.Error("submitter may not resolve a ticket")
	}
	if CanTicketTransition(submitter, TicketStatusInProgress, TicketStatusClosed) {
		t.Error("submitter may only close from resolved")
	}
}

func TestCanTransitionByKind(t *testing.T) {
	if !CanTransition(KindOrder, "pending", "confirmed") {
		t.Error("order pending -> confirmed should be legal")
	}
	if CanTransition(KindOrder, "delivered", "pending") {
		t.Error("delivered is terminal")
	}
	if !CanTransition(KindBooking, "confirmed", "cancelled") {
		t.Error("booking confirmed -> cancelled should be legal")
	}
	if CanTransition(KindTicket, "closed", "open") {
		t.Error("ticket closed is terminal")
	}
	if CanTransition(EntityKind("unknown"), "a", "b") {
		t.Error("unknown kinds have no legal edges")
	}
}

func TestTransitionReportsRejectedEdge(t *testing.T) {
	if err := Transition(KindOrder, "pending", "confirmed"); err != nil {
		t.Fatalf("legal edge returned %v", err)
	}
	err := Transition(KindBooking, "refunded", "confirmed")
	if err == nil {
		t.Fatal("refunded is terminal, want error")
	}
	var te *TransitionError
	if !errors.As(err, &te) {
		t.Fatalf("err = %T, want *TransitionError", err)
	}
	if te.Kind != KindBooking || te.From != "refunded" || te.To != "confirmed" {
		t.Errorf("unexpected edge in error: %+v", te)
	}
}

func TestHoldsSlot(t *testing.T) {
	for _, s := range ActiveBookingStatuses {
		if !HoldsSlot(s) {
			t.Errorf("%s should hold its slot", s)
		}
	}
	for _, s := range []BookingStatus{BookingStatusCompleted, BookingStatusCancelled, BookingStatusRefunded} {
		if HoldsSlot(s) {
			t.Errorf("%s should not hold a slot", s)
		}
	}
}
