package domain

import (
	"time"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// SortOrder indicates ascending or descending ordering for list queries.
type SortOrder string

const (
	// SortAsc sorts results in ascending order.
	SortAsc SortOrder = "asc"
	// SortDesc sorts results in descending order.
	SortDesc SortOrder = "desc"
)

// RangeQuery represents inclusive range filters for numeric or timestamp fields.
type RangeQuery[T comparable] struct {
	From *T
	To   *T
}

// CursorPage packages list results with an encoded next token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// EntityKind names one of the lifecycle-managed record types.
type EntityKind string

const (
	// KindOrder identifies product orders.
	KindOrder EntityKind = "order"
	// KindBooking identifies bookable service reservations.
	KindBooking EntityKind = "booking"
	// KindTicket identifies support tickets.
	KindTicket EntityKind = "ticket"
)

// Role enumerates the marketplace actor roles supplied by the auth collaborator.
type Role string

const (
	// RoleBuyer purchases products.
	RoleBuyer Role = "buyer"
	// RoleSeller lists and fulfils product orders.
	RoleSeller Role = "seller"
	// RoleCustomer books services.
	RoleCustomer Role = "customer"
	// RoleProvider offers bookable services.
	RoleProvider Role = "provider"
	// RoleStaff handles support tickets.
	RoleStaff Role = "staff"
	// RoleAdmin may act on any entity.
	RoleAdmin Role = "admin"
)

// Valid reports whether the role is one of the known marketplace roles.
func (r Role) Valid() bool {
	switch r {
	case RoleBuyer, RoleSeller, RoleCustomer, RoleProvider, RoleStaff, RoleAdmin:
		return true
	}
	return false
}

// Actor is the authenticated identity performing a lifecycle request.
// The auth collaborator has already verified it; the core only consumes it.
type Actor struct {
	ID   string
	Role Role
}

// IsAdmin reports whether the actor carries administrative privileges.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// IsStaff reports whether the actor is support staff or an admin.
func (a Actor) IsStaff() bool {
	return a.Role == RoleStaff || a.Role == RoleAdmin
}

// PaymentStatus tracks the recorded outcome of the external payment collaborator.
type PaymentStatus string

const (
	// PaymentStatusPending indicates no payment outcome has been recorded yet.
	PaymentStatusPending PaymentStatus = "pending"
	// PaymentStatusPaid indicates the collaborator reported success.
	PaymentStatusPaid PaymentStatus = "paid"
	// PaymentStatusFailed indicates the collaborator reported failure.
	PaymentStatusFailed PaymentStatus = "failed"
	// PaymentStatusRefundPending indicates refund bookkeeping has been recorded.
	PaymentStatusRefundPending PaymentStatus = "refund_pending"
	// PaymentStatusRefunded indicates the refund was confirmed externally.
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// PaymentRecord stores the collaborator-reported payment outcome. The core
// records this; it never computes it.
type PaymentRecord struct {
	Status        PaymentStatus
	Method        string
	TransactionID string
}

// OrderStatus enumerates valid lifecycle states for product orders.
type OrderStatus string

const (
	// OrderStatusPending indicates the order awaits seller confirmation.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusConfirmed indicates the seller accepted the order.
	OrderStatusConfirmed OrderStatus = "confirmed"
	// OrderStatusProcessing indicates the seller is preparing the order.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusReadyForPickup indicates the order awaits buyer pickup.
	OrderStatusReadyForPickup OrderStatus = "ready_for_pickup"
	// OrderStatusShipped indicates the order has been handed to a carrier.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered indicates the order reached the buyer.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled indicates the order was cancelled before delivery.
	OrderStatusCancelled OrderStatus = "cancelled"
	// OrderStatusRefunded indicates a cancelled order has been refunded.
	OrderStatusRefunded OrderStatus = "refunded"
)

// OrderLineItem snapshots a purchased product at order time.
type OrderLineItem struct {
	ProductRef string
	Name       string
	Quantity   int
	UnitPrice  int64
	Unit       string
	Subtotal   int64
}

// TrackingUpdate is an append-only fulfilment trail entry mirroring each
// order status change.
type TrackingUpdate struct {
	Status    OrderStatus
	Message   string
	Location  string
	Timestamp time.Time
}

// OrderNotes holds per-role free-text notes.
type OrderNotes struct {
	Buyer  string
	Seller string
}

// Order captures a product order with its embedded tracking trail.
type Order struct {
	ID             string
	BuyerID        string
	SellerID       string
	Items          []OrderLineItem
	TotalAmount    int64
	Currency       string
	Status         OrderStatus
	Payment        PaymentRecord
	Notes          OrderNotes
	Tracking       []TrackingUpdate
	CancelReason   *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ConfirmedAt    *time.Time
	DeliveredAt    *time.Time
	CancelledAt    *time.Time
	RefundedAt     *time.Time
	LastActivityAt time.Time
}

// BookingStatus enumerates valid lifecycle states for service bookings.
type BookingStatus string

const (
	// BookingStatusPendingConfirmation indicates the booking awaits the provider.
	BookingStatusPendingConfirmation BookingStatus = "pending_confirmation"
	// BookingStatusConfirmed indicates the provider accepted the booking.
	BookingStatusConfirmed BookingStatus = "confirmed"
	// BookingStatusInProgress indicates the service is underway.
	BookingStatusInProgress BookingStatus = "in_progress"
	// BookingStatusCompleted indicates the service finished.
	BookingStatusCompleted BookingStatus = "completed"
	// BookingStatusCancelled indicates the booking was called off.
	BookingStatusCancelled BookingStatus = "cancelled"
	// BookingStatusRefunded indicates a cancelled booking has been refunded.
	BookingStatusRefunded BookingStatus = "refunded"
)

// ActiveBookingStatuses are the statuses that hold a slot exclusively.
var ActiveBookingStatuses = []BookingStatus{
	BookingStatusPendingConfirmation,
	BookingStatusConfirmed,
	BookingStatusInProgress,
}

// HoldsSlot reports whether a booking in the given status occupies its slot.
func HoldsSlot(status BookingStatus) bool {
	for _, s := range ActiveBookingStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// Slot identifies the exclusively-held (listing, date, time) triple.
// Date is day-granular; Time is the raw time-of-day string (e.g. "09:00").
type Slot struct {
	ListingID string
	Date      time.Time
	Time      string
}

// PricingSnapshot freezes the price agreed at booking time.
type PricingSnapshot struct {
	Type        string
	BaseAmount  int64
	FinalAmount int64
	Currency    string
}

// TimelineEntry is an append-only booking trail item.
type TimelineEntry struct {
	Status    BookingStatus
	Message   string
	Actor     string
	Timestamp time.Time
}

// Cancellation records booking cancellation bookkeeping. Refund execution is
// an external collaborator's job; the core only stamps the pending state.
type Cancellation struct {
	Reason       string
	Actor        string
	Timestamp    time.Time
	RefundAmount int64
	RefundStatus PaymentStatus
}

// Booking captures a service booking with its embedded timeline.
type Booking struct {
	ID             string
	CustomerID     string
	ProviderID     string
	Slot           Slot
	FieldSize      string
	Pricing        PricingSnapshot
	Payment        PaymentRecord
	Status         BookingStatus
	Notes          string
	Timeline       []TimelineEntry
	Cancellation   *Cancellation
	CreatedAt      time.Time
	UpdatedAt      time.Time
	CompletedAt    *time.Time
	LastActivityAt time.Time
}

// TicketStatus enumerates valid lifecycle states for support tickets.
type TicketStatus string

const (
	// TicketStatusOpen indicates the ticket awaits triage.
	TicketStatusOpen TicketStatus = "open"
	// TicketStatusAssigned indicates a staff member owns the ticket.
	TicketStatusAssigned TicketStatus = "assigned"
	// TicketStatusInProgress indicates staff is actively working the ticket.
	TicketStatusInProgress TicketStatus = "in_progress"
	// TicketStatusWaitingCustomer indicates staff awaits a customer reply.
	TicketStatusWaitingCustomer TicketStatus = "waiting_customer"
	// TicketStatusResolved indicates staff proposed a resolution.
	TicketStatusResolved TicketStatus = "resolved"
	// TicketStatusClosed indicates the ticket is finished.
	TicketStatusClosed TicketStatus = "closed"
)

// TicketPriority orders tickets for triage.
type TicketPriority string

const (
	// TicketPriorityLow is for cosmetic or informational issues.
	TicketPriorityLow TicketPriority = "low"
	// TicketPriorityMedium is the default priority.
	TicketPriorityMedium TicketPriority = "medium"
	// TicketPriorityHigh is for issues blocking a transaction.
	TicketPriorityHigh TicketPriority = "high"
	// TicketPriorityUrgent is for marketplace-wide incidents.
	TicketPriorityUrgent TicketPriority = "urgent"
)

// HistoryAction names the kind of change a history entry records.
type HistoryAction string

const (
	// HistoryActionCreated is the synthetic entry recorded at creation.
	HistoryActionCreated HistoryAction = "created"
	// HistoryActionStatusChanged records a status edge.
	HistoryActionStatusChanged HistoryAction = "status_changed"
	// HistoryActionAssigned records an assignee change.
	HistoryActionAssigned HistoryAction = "assigned"
	// HistoryActionCommented records a comment append.
	HistoryActionCommented HistoryAction = "commented"
	// HistoryActionRated records the satisfaction rating.
	HistoryActionRated HistoryAction = "rated"
)

// HistoryEntry is an immutable ticket audit trail item. Entries are only ever
// appended; no update or delete path exists.
type HistoryEntry struct {
	Action        HistoryAction
	Description   string
	Actor         string
	PreviousValue string
	NewValue      string
	Timestamp     time.Time
}

// TicketComment is an append-only conversation item. Internal comments are
// visible to staff only.
type TicketComment struct {
	Message   string
	Author    string
	Internal  bool
	Timestamp time.Time
}

// Ticket captures a support ticket with its embedded history.
type Ticket struct {
	ID             string
	SubmitterID    string
	AssigneeID     *string
	IssueType      string
	Priority       TicketPriority
	Status         TicketStatus
	Subject        string
	Comments       []TicketComment
	History        []HistoryEntry
	Resolution     string
	Satisfaction   *int
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ResolvedAt     *time.Time
	ClosedAt       *time.Time
	LastActivityAt time.Time
}

// Product is the catalog collaborator's record. Available is mutated only via
// atomic increments inside order transactions.
type Product struct {
	ID        string
	SellerID  string
	Name      string
	Unit      string
	UnitPrice int64
	Available int
	UpdatedAt time.Time
}

const (
	// HealthStatusOK indicates all dependencies are healthy.
	HealthStatusOK = "ok"
	// HealthStatusDegraded indicates a dependency is degraded but the service runs.
	HealthStatusDegraded = "degraded"
	// HealthStatusError indicates a critical dependency is unavailable.
	HealthStatusError = "error"
)

// SystemHealthCheck describes the outcome of an individual dependency probe.
type SystemHealthCheck struct {
	Status    string
	Detail    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// SystemHealthReport aggregates dependency status for health endpoints.
type SystemHealthReport struct {
	Status      string
	Checks      map[string]SystemHealthCheck
	Version     string
	Environment string
	GeneratedAt time.Time
}
