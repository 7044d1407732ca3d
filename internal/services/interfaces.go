package services

import (
	"context"
	"time"

	"github.com/harvestlink/api/internal/domain"
)

// LifecycleEventMessage is the wire payload published for every committed
// status change, consumed by downstream notification and analytics workers.
type LifecycleEventMessage struct {
	EventID        string            `json:"eventId"`
	EntityKind     domain.EntityKind `json:"entityKind"`
	EntityID       string            `json:"entityId"`
	PreviousStatus string            `json:"previousStatus,omitempty"`
	NewStatus      string            `json:"newStatus"`
	ActorID        string            `json:"actorId,omitempty"`
	ActorRole      string            `json:"actorRole,omitempty"`
	OccurredAt     time.Time         `json:"occurredAt"`
}

// RefundJobMessage is the outbox payload handed to the external payment
// worker. The lifecycle core only stamps refund bookkeeping as pending; the
// worker owns execution.
type RefundJobMessage struct {
	RefundID    string            `json:"refundId"`
	EntityKind  domain.EntityKind `json:"entityKind"`
	EntityID    string            `json:"entityId"`
	Amount      int64             `json:"amount"`
	Reason      string            `json:"reason,omitempty"`
	RequestedBy string            `json:"requestedBy,omitempty"`
	QueuedAt    time.Time         `json:"queuedAt"`
}

// LifecycleEventPublisher publishes lifecycle events for downstream consumers.
type LifecycleEventPublisher interface {
	PublishLifecycleEvent(ctx context.Context, message LifecycleEventMessage) (string, error)
}

// RefundJobPublisher enqueues refund jobs for the external payment worker.
type RefundJobPublisher interface {
	PublishRefundJob(ctx context.Context, message RefundJobMessage) (string, error)
}

// Logger is the minimal structured logging hook services emit through.
type Logger func(ctx context.Context, event string, fields map[string]any)

// OrderItemInput names a product and quantity on order creation.
type OrderItemInput struct {
	ProductID string
	Quantity  int
}

// CreateOrderCommand places a new order for the acting buyer.
type CreateOrderCommand struct {
	Actor     domain.Actor
	Items     []OrderItemInput
	Currency  string
	Method    string
	BuyerNote string
}

// OrderTransitionCommand requests a status change on an order.
type OrderTransitionCommand struct {
	Actor    domain.Actor
	OrderID  string
	Target   domain.OrderStatus
	Message  string
	Location string
}

// CancelOrderCommand cancels an order with a reason.
type CancelOrderCommand struct {
	Actor   domain.Actor
	OrderID string
	Reason  string
}

// OrderListQuery scopes order listings for the acting user.
type OrderListQuery struct {
	Actor      domain.Actor
	Status     []domain.OrderStatus
	From       *time.Time
	To         *time.Time
	Pagination domain.Pagination
}

// OrderService orchestrates the order lifecycle.
type OrderService interface {
	Create(ctx context.Context, cmd CreateOrderCommand) (domain.Order, error)
	Transition(ctx context.Context, cmd OrderTransitionCommand) (domain.Order, error)
	Cancel(ctx context.Context, cmd CancelOrderCommand) (domain.Order, error)
	Get(ctx context.Context, actor domain.Actor, orderID string) (domain.Order, error)
	List(ctx context.Context, query OrderListQuery) (domain.CursorPage[domain.Order], error)
}

// CreateBookingCommand books a service slot for the acting customer.
type CreateBookingCommand struct {
	Actor      domain.Actor
	ProviderID string
	ListingID  string
	Date       time.Time
	Time       string
	FieldSize  string
	Pricing    domain.PricingSnapshot
	Method     string
	Notes      string
}

// BookingTransitionCommand requests a status change on a booking.
type BookingTransitionCommand struct {
	Actor     domain.Actor
	BookingID string
	Target    domain.BookingStatus
	Message   string
}

// RescheduleBookingCommand moves a booking to a new slot.
type RescheduleBookingCommand struct {
	Actor     domain.Actor
	BookingID string
	NewDate   time.Time
	NewTime   string
	Message   string
}

// CancelBookingCommand cancels a booking with a reason.
type CancelBookingCommand struct {
	Actor     domain.Actor
	BookingID string
	Reason    string
}

// BookingListQuery scopes booking listings for the acting user.
type BookingListQuery struct {
	Actor      domain.Actor
	Status     []domain.BookingStatus
	From       *time.Time
	To         *time.Time
	Pagination domain.Pagination
}

// BookingService orchestrates the booking lifecycle and slot exclusivity.
type BookingService interface {
	Create(ctx context.Context, cmd CreateBookingCommand) (domain.Booking, error)
	Transition(ctx context.Context, cmd BookingTransitionCommand) (domain.Booking, error)
	Reschedule(ctx context.Context, cmd RescheduleBookingCommand) (domain.Booking, error)
	Cancel(ctx context.Context, cmd CancelBookingCommand) (domain.Booking, error)
	Get(ctx context.Context, actor domain.Actor, bookingID string) (domain.Booking, error)
	List(ctx context.Context, query BookingListQuery) (domain.CursorPage[domain.Booking], error)
	// CheckSlot reports whether an active booking already holds the slot,
	// excluding excludeBookingID when non-empty.
	CheckSlot(ctx context.Context, listingID string, date time.Time, timeOfDay string, excludeBookingID string) (bool, error)
}

// CreateTicketCommand opens a support ticket for the acting user.
type CreateTicketCommand struct {
	Actor     domain.Actor
	IssueType string
	Priority  domain.TicketPriority
	Subject   string
	Message   string
}

// TicketTransitionCommand requests a status change on a ticket.
type TicketTransitionCommand struct {
	Actor      domain.Actor
	TicketID   string
	Target     domain.TicketStatus
	Resolution string
}

// AssignTicketCommand hands the ticket to a staff member.
type AssignTicketCommand struct {
	Actor      domain.Actor
	TicketID   string
	AssigneeID string
}

// AddTicketCommentCommand appends a conversation entry.
type AddTicketCommentCommand struct {
	Actor    domain.Actor
	TicketID string
	Message  string
	Internal bool
}

// RateTicketCommand records the submitter's satisfaction score.
type RateTicketCommand struct {
	Actor    domain.Actor
	TicketID string
	Rating   int
}

// TicketListQuery scopes ticket listings for the acting user.
type TicketListQuery struct {
	Actor      domain.Actor
	Status     []domain.TicketStatus
	Priority   []domain.TicketPriority
	Pagination domain.Pagination
}

// TicketService orchestrates the support ticket lifecycle.
type TicketService interface {
	Create(ctx context.Context, cmd CreateTicketCommand) (domain.Ticket, error)
	Transition(ctx context.Context, cmd TicketTransitionCommand) (domain.Ticket, error)
	Assign(ctx context.Context, cmd AssignTicketCommand) (domain.Ticket, error)
	AddComment(ctx context.Context, cmd AddTicketCommentCommand) (domain.Ticket, error)
	Rate(ctx context.Context, cmd RateTicketCommand) (domain.Ticket, error)
	Get(ctx context.Context, actor domain.Actor, ticketID string) (domain.Ticket, error)
	List(ctx context.Context, query TicketListQuery) (domain.CursorPage[domain.Ticket], error)
}

// SystemService reports dependency health for the health endpoints.
type SystemService interface {
	Health(ctx context.Context) (domain.SystemHealthReport, error)
}

type noopUnitOfWork struct{}

func (noopUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}
