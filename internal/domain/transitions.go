package domain

import (
	"fmt"
	"slices"
)

// orderTransitions is the directed edge table for order statuses. The only
// edge out of a terminal-looking state is cancelled -> refunded.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:        {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:      {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing:     {OrderStatusReadyForPickup, OrderStatusShipped},
	OrderStatusReadyForPickup: {OrderStatusDelivered},
	OrderStatusShipped:        {OrderStatusDelivered},
	OrderStatusDelivered:      {},
	OrderStatusCancelled:      {OrderStatusRefunded},
	OrderStatusRefunded:       {},
}

// bookingTransitions expresses the deliberately lenient booking rules through
// the same table shape as orders: every working status may move to any other
// working status, refunded is reachable from cancelled only, and refunded is
// terminal. Temporal gates (24h window, past schedule) live in the booking
// service, not here.
var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusPendingConfirmation: {BookingStatusConfirmed, BookingStatusInProgress, BookingStatusCompleted, BookingStatusCancelled},
	BookingStatusConfirmed:           {BookingStatusPendingConfirmation, BookingStatusInProgress, BookingStatusCompleted, BookingStatusCancelled},
	BookingStatusInProgress:          {BookingStatusPendingConfirmation, BookingStatusConfirmed, BookingStatusCompleted, BookingStatusCancelled},
	BookingStatusCompleted:           {BookingStatusPendingConfirmation, BookingStatusConfirmed, BookingStatusInProgress, BookingStatusCancelled},
	BookingStatusCancelled:           {BookingStatusPendingConfirmation, BookingStatusConfirmed, BookingStatusInProgress, BookingStatusCompleted, BookingStatusRefunded},
	BookingStatusRefunded:            {},
}

// ticketTransitions lists the staff-permitted edges: any non-terminal status
// may move to any other status. Submitters are restricted further by
// CanTicketTransition.
var ticketTransitions = map[TicketStatus][]TicketStatus{
	TicketStatusOpen:            {TicketStatusAssigned, TicketStatusInProgress, TicketStatusWaitingCustomer, TicketStatusResolved, TicketStatusClosed},
	TicketStatusAssigned:        {TicketStatusOpen, TicketStatusInProgress, TicketStatusWaitingCustomer, TicketStatusResolved, TicketStatusClosed},
	TicketStatusInProgress:      {TicketStatusOpen, TicketStatusAssigned, TicketStatusWaitingCustomer, TicketStatusResolved, TicketStatusClosed},
	TicketStatusWaitingCustomer: {TicketStatusOpen, TicketStatusAssigned, TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed},
	TicketStatusResolved:        {TicketStatusOpen, TicketStatusAssigned, TicketStatusInProgress, TicketStatusWaitingCustomer, TicketStatusClosed},
	TicketStatusClosed:          {},
}

// CanOrderTransition reports whether the order status edge is legal.
// Self-loops are not permitted; repeating a transition must fail.
func CanOrderTransition(from, to OrderStatus) bool {
	next, ok := orderTransitions[from]
	if !ok {
		return false
	}
	return slices.Contains(next, to)
}

// CanBookingTransition reports whether the booking status edge is legal.
func CanBookingTransition(from, to BookingStatus) bool {
	next, ok := bookingTransitions[from]
	if !ok {
		return false
	}
	return slices.Contains(next, to)
}

// CanTicketTransition reports whether the actor may move a ticket between the
// given statuses. Staff may use any table edge; submitters may only close a
// resolved ticket.
func CanTicketTransition(actor Actor, from, to TicketStatus) bool {
	next, ok := ticketTransitions[from]
	if !ok || !slices.Contains(next, to) {
		return false
	}
	if actor.IsStaff() {
		return true
	}
	return from == TicketStatusResolved && to == TicketStatusClosed
}

// CanTransition is the kind-generic validator contract used by transport
// layers that deal in raw status strings. Ticket checks made through this
// entry point use staff permissions; role-sensitive callers should use
// CanTicketTransition directly.
func CanTransition(kind EntityKind, from, to string) bool {
	switch kind {
	case KindOrder:
		return CanOrderTransition(OrderStatus(from), OrderStatus(to))
	case KindBooking:
		return CanBookingTransition(BookingStatus(from), BookingStatus(to))
	case KindTicket:
		return CanTicketTransition(Actor{Role: RoleStaff}, TicketStatus(from), TicketStatus(to))
	default:
		return false
	}
}

// TransitionError reports a rejected status edge, keeping the endpoints
// available to callers that need more than a message.
type TransitionError struct {
	Kind EntityKind
	From string
	To   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s transition %s to %s is not allowed", e.Kind, e.From, e.To)
}

// Transition validates the edge like CanTransition and returns a
// *TransitionError describing the rejected edge when it is illegal.
func Transition(kind EntityKind, from, to string) error {
	if CanTransition(kind, from, to) {
		return nil
	}
	return &TransitionError{Kind: kind, From: from, To: to}
}

// ValidOrderStatus reports whether the raw value names a known order status.
func ValidOrderStatus(raw string) bool {
	_, ok := orderTransitions[OrderStatus(raw)]
	return ok
}

// ValidBookingStatus reports whether the raw value names a known booking status.
func ValidBookingStatus(raw string) bool {
	_, ok := bookingTransitions[BookingStatus(raw)]
	return ok
}

// ValidTicketStatus reports whether the raw value names a known ticket status.
func ValidTicketStatus(raw string) bool {
	_, ok := ticketTransitions[TicketStatus(raw)]
	return ok
}
