package repositories

import (
	"context"
	"time"

	"github.com/harvestlink/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Orders() OrderRepository
	Bookings() BookingRepository
	Tickets() TicketRepository
	Products() ProductRepository
	Health() HealthRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// OrderRepository persists order documents with their embedded tracking trail.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	Update(ctx context.Context, order domain.Order) error
	// UpdateWithStatusCheck persists the order only while the stored status
	// still equals expected, surfacing IsConflict otherwise.
	UpdateWithStatusCheck(ctx context.Context, order domain.Order, expected domain.OrderStatus) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
}

// BookingRepository persists booking documents and answers slot occupancy queries.
type BookingRepository interface {
	Insert(ctx context.Context, booking domain.Booking) error
	Update(ctx context.Context, booking domain.Booking) error
	UpdateWithStatusCheck(ctx context.Context, booking domain.Booking, expected domain.BookingStatus) error
	FindByID(ctx context.Context, bookingID string) (domain.Booking, error)
	List(ctx context.Context, filter BookingListFilter) (domain.CursorPage[domain.Booking], error)
	// CountActiveForSlot reports how many slot-holding bookings occupy the
	// slot, excluding excludeBookingID when non-empty. Implementations must
	// evaluate this inside the same transaction as the write that depends on
	// it so concurrent claims collide.
	CountActiveForSlot(ctx context.Context, slot domain.Slot, excludeBookingID string) (int, error)
}

// TicketRepository persists ticket documents with their embedded history.
type TicketRepository interface {
	Insert(ctx context.Context, ticket domain.Ticket) error
	Update(ctx context.Context, ticket domain.Ticket) error
	UpdateWithStatusCheck(ctx context.Context, ticket domain.Ticket, expected domain.TicketStatus) error
	FindByID(ctx context.Context, ticketID string) (domain.Ticket, error)
	List(ctx context.Context, filter TicketListFilter) (domain.CursorPage[domain.Ticket], error)
}

// ProductRepository reads catalog records and adjusts availability atomically.
type ProductRepository interface {
	FindByID(ctx context.Context, productID string) (domain.Product, error)
	// ApplyAvailabilityDelta applies the delta to the stored availability
	// using an atomic increment and performs no reads, so calls may follow
	// other writes inside a shared transaction. Callers validate availability
	// with FindByID in the same transaction before buffering any write.
	ApplyAvailabilityDelta(ctx context.Context, productID string, delta int, now time.Time) error
}

// HealthRepository exposes status of downstream dependencies for health checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}

// Filter DTOs shared across repositories ------------------------------------

// OrderListFilter scopes order listings by participant, status, and date.
type OrderListFilter struct {
	BuyerID    string
	SellerID   string
	Status     []domain.OrderStatus
	DateRange  domain.RangeQuery[time.Time]
	Pagination domain.Pagination
}

// BookingListFilter scopes booking listings by participant, status, and date.
type BookingListFilter struct {
	CustomerID string
	ProviderID string
	Status     []domain.BookingStatus
	DateRange  domain.RangeQuery[time.Time]
	Pagination domain.Pagination
}

// TicketListFilter scopes ticket listings by submitter, assignee, status, and priority.
type TicketListFilter struct {
	SubmitterID string
	AssigneeID  string
	Status      []domain.TicketStatus
	Priority    []domain.TicketPriority
	Pagination  domain.Pagination
}
