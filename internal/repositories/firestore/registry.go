package firestore

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"

	pfirestore "github.com/harvestlink/api/internal/platform/firestore"
	"github.com/harvestlink/api/internal/repositories"
)

type txContextKey struct{}

// txFromContext returns the transaction started by RunInTx, if any.
func txFromContext(ctx context.Context) (*firestore.Transaction, bool) {
	tx, ok := ctx.Value(txContextKey{}).(*firestore.Transaction)
	return tx, ok && tx != nil
}

// Registry wires Firestore-backed repositories behind the repositories.Registry interface.
type Registry struct {
	provider *pfirestore.Provider

	orders   *OrderRepository
	bookings *BookingRepository
	tickets  *TicketRepository
	products *ProductRepository
	health   *HealthRepository
}

// NewRegistry constructs the full repository set on top of a shared provider.
func NewRegistry(provider *pfirestore.Provider) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("registry: firestore provider is required")
	}

	orders, err := NewOrderRepository(provider)
	if err != nil {
		return nil, err
	}
	bookings, err := NewBookingRepository(provider)
	if err != nil {
		return nil, err
	}
	tickets, err := NewTicketRepository(provider)
	if err != nil {
		return nil, err
	}
	products, err := NewProductRepository(provider)
	if err != nil {
		return nil, err
	}
	health, err := NewHealthRepository(provider)
	if err != nil {
		return nil, err
	}

	return &Registry{
		provider: provider,
		orders:   orders,
		bookings: bookings,
		tickets:  tickets,
		products: products,
		health:   health,
	}, nil
}

// Close releases the underlying Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Close(ctx)
}

// Orders returns the order repository.
func (r *Registry) Orders() repositories.OrderRepository { return r.orders }

// Bookings returns the booking repository.
func (r *Registry) Bookings() repositories.BookingRepository { return r.bookings }

// Tickets returns the ticket repository.
func (r *Registry) Tickets() repositories.TicketRepository { return r.tickets }

// Products returns the product repository.
func (r *Registry) Products() repositories.ProductRepository { return r.products }

// Health returns the health repository.
func (r *Registry) Health() repositories.HealthRepository { return r.health }

// RunInTx executes fn inside a Firestore transaction. Repository calls made
// with the derived context participate in the same transaction, so reads and
// writes across repositories commit or fail together.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if r == nil || r.provider == nil {
		return errors.New("registry: not initialised")
	}
	if fn == nil {
		return errors.New("registry: transaction function is required")
	}
	return r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		return fn(context.WithValue(ctx, txContextKey{}, tx))
	})
}
