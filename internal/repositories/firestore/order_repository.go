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

const ordersCollection = "orders"

type orderItemDocument struct {
	ProductRef string `firestore:"product_ref"`
	Name       string `firestore:"name"`
	Quantity   int    `firestore:"quantity"`
	UnitPrice  int64  `firestore:"unit_price"`
	Unit       string `firestore:"unit,omitempty"`
	Subtotal   int64  `firestore:"subtotal"`
}

type trackingUpdateDocument struct {
	Status    string    `firestore:"status"`
	Message   string    `firestore:"message,omitempty"`
	Location  string    `firestore:"location,omitempty"`
	Timestamp time.Time `firestore:"timestamp"`
}

type orderNotesDocument struct {
	Buyer  string `firestore:"buyer,omitempty"`
	Seller string `firestore:"seller,omitempty"`
}

type orderDocument struct {
	BuyerID        string                   `firestore:"buyer_id"`
	SellerID       string                   `firestore:"seller_id"`
	Items          []orderItemDocument      `firestore:"items"`
	TotalAmount    int64                    `firestore:"total_amount"`
	Currency       string                   `firestore:"currency"`
	Status         string                   `firestore:"status"`
	Payment        paymentDocument          `firestore:"payment"`
	Notes          orderNotesDocument       `firestore:"notes"`
	Tracking       []trackingUpdateDocument `firestore:"tracking"`
	CancelReason   *string                  `firestore:"cancel_reason,omitempty"`
	CreatedAt      time.Time                `firestore:"created_at"`
	UpdatedAt      time.Time                `firestore:"updated_at"`
	ConfirmedAt    *time.Time               `firestore:"confirmed_at,omitempty"`
	DeliveredAt    *time.Time               `firestore:"delivered_at,omitempty"`
	CancelledAt    *time.Time               `firestore:"cancelled_at,omitempty"`
	RefundedAt     *time.Time               `firestore:"refunded_at,omitempty"`
	LastActivityAt time.Time                `firestore:"last_activity_at"`
}

func encodeOrder(order domain.Order) orderDocument {
	items := make([]orderItemDocument, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemDocument{
			ProductRef: item.ProductRef,
			Name:       item.Name,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			Unit:       item.Unit,
			Subtotal:   item.Subtotal,
		})
	}
	tracking := make([]trackingUpdateDocument, 0, len(order.Tracking))
	for _, update := range order.Tracking {
		tracking = append(tracking, trackingUpdateDocument{
			Status:    string(update.Status),
			Message:   update.Message,
			Location:  update.Location,
			Timestamp: normalizeTime(update.Timestamp),
		})
	}
	return orderDocument{
		BuyerID:     order.BuyerID,
		SellerID:    order.SellerID,
		Items:       items,
		TotalAmount: order.TotalAmount,
		Currency:    order.Currency,
		Status:      string(order.Status),
		Payment:     encodePayment(order.Payment),
		Notes: orderNotesDocument{
			Buyer:  order.Notes.Buyer,
			Seller: order.Notes.Seller,
		},
		Tracking:       tracking,
		CancelReason:   order.CancelReason,
		CreatedAt:      normalizeTime(order.CreatedAt),
		UpdatedAt:      normalizeTime(order.UpdatedAt),
		ConfirmedAt:    normalizeTimePointer(order.ConfirmedAt),
		DeliveredAt:    normalizeTimePointer(order.DeliveredAt),
		CancelledAt:    normalizeTimePointer(order.CancelledAt),
		RefundedAt:     normalizeTimePointer(order.RefundedAt),
		LastActivityAt: chooseTime(order.LastActivityAt, order.UpdatedAt),
	}
}

func decodeOrder(id string, doc orderDocument) domain.Order {
	items := make([]domain.OrderLineItem, 0, len(doc.Items))
	for _, item := range doc.Items {
		items = append(items, domain.OrderLineItem{
			ProductRef: item.ProductRef,
			Name:       item.Name,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			Unit:       item.Unit,
			Subtotal:   item.Subtotal,
		})
	}
	tracking := make([]domain.TrackingUpdate, 0, len(doc.Tracking))
	for _, update := range doc.Tracking {
		tracking = append(tracking, domain.TrackingUpdate{
			Status:    domain.OrderStatus(update.Status),
			Message:   update.Message,
			Location:  update.Location,
			Timestamp: update.Timestamp,
		})
	}
	return domain.Order{
		ID:          id,
		BuyerID:     doc.BuyerID,
		SellerID:    doc.SellerID,
		Items:       items,
		TotalAmount: doc.TotalAmount,
		Currency:    doc.Currency,
		Status:      domain.OrderStatus(doc.Status),
		Payment:     decodePayment(doc.Payment),
		Notes: domain.OrderNotes{
			Buyer:  doc.Notes.Buyer,
			Seller: doc.Notes.Seller,
		},
		Tracking:       tracking,
		CancelReason:   doc.CancelReason,
		CreatedAt:      doc.CreatedAt,
		UpdatedAt:      doc.UpdatedAt,
		ConfirmedAt:    doc.ConfirmedAt,
		DeliveredAt:    doc.DeliveredAt,
		CancelledAt:    doc.CancelledAt,
		RefundedAt:     doc.RefundedAt,
		LastActivityAt: chooseTime(doc.LastActivityAt, doc.UpdatedAt),
	}
}

// OrderRepository persists orders in the "orders" collection.
type OrderRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[orderDocument]
}

// NewOrderRepository builds a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository: firestore provider is required")
	}
	return &OrderRepository{
		provider: provider,
		base:     pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection, nil, nil),
	}, nil
}

// Insert creates the order document, failing when the ID already exists.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	doc := encodeOrder(order)
	if tx, ok := txFromContext(ctx); ok {
		ref, err := r.base.DocumentRef(ctx, order.ID)
		if err != nil {
			return err
		}
		return pfirestore.WrapError("orders.create", tx.Create(ref, doc))
	}
	_, err := r.base.Create(ctx, order.ID, doc)
	return err
}

// Update replaces the stored order document.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order) error {
	doc := encodeOrder(order)
	if tx, ok := txFromContext(ctx); ok {
		ref, err := r.base.DocumentRef(ctx, order.ID)
		if err != nil {
			return err
		}
		return pfirestore.WrapError("orders.set", tx.Set(ref, doc))
	}
	_, err := r.base.Set(ctx, order.ID, doc)
	return err
}

// UpdateWithStatusCheck writes the order only while the stored status still
// equals expected. A competing transition surfaces as a conflict.
func (r *OrderRepository) UpdateWithStatusCheck(ctx context.Context, order domain.Order, expected domain.OrderStatus) error {
	ref, err := r.base.DocumentRef(ctx, order.ID)
	if err != nil {
		return err
	}
	return runInTransaction(ctx, r.provider, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return pfirestore.WrapError("orders.get", err)
		}
		stored, err := r.base.Decode(ctx, snap)
		if err != nil {
			return fmt.Errorf("orders: decode %s: %w", order.ID, err)
		}
		if domain.OrderStatus(stored.Data.Status) != expected {
			return pfirestore.ConflictError("orders.update",
				fmt.Errorf("order %s status is %s, expected %s", order.ID, stored.Data.Status, expected))
		}
		return pfirestore.WrapError("orders.set", tx.Set(ref, encodeOrder(order)))
	})
}

// FindByID loads a single order.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if tx, ok := txFromContext(ctx); ok {
		ref, err := r.base.DocumentRef(ctx, orderID)
		if err != nil {
			return domain.Order{}, err
		}
		snap, err := tx.Get(ref)
		if err != nil {
			return domain.Order{}, pfirestore.WrapError("orders.get", err)
		}
		doc, err := r.base.Decode(ctx, snap)
		if err != nil {
			return domain.Order{}, fmt.Errorf("orders: decode %s: %w", orderID, err)
		}
		return decodeOrder(snap.Ref.ID, doc.Data), nil
	}

	doc, err := r.base.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	return decodeOrder(doc.ID, doc.Data), nil
}

// List returns a page of orders matching the filter, newest first.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	limit := normalizePageSize(filter.Pagination.PageSize)
	fetchLimit := limit + 1

	startAfter, err := cursorStartAfter(filter.Pagination.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		if filter.BuyerID != "" {
			query = query.Where("buyer_id", "==", filter.BuyerID)
		}
		if filter.SellerID != "" {
			query = query.Where("seller_id", "==", filter.SellerID)
		}
		if len(filter.Status) > 0 {
			query = query.Where("status", "in", orderStatusValues(filter.Status))
		}
		if filter.DateRange.From != nil {
			query = query.Where("created_at", ">=", filter.DateRange.From.UTC())
		}
		if filter.DateRange.To != nil {
			query = query.Where("created_at", "<=", filter.DateRange.To.UTC())
		}
		return orderNewestFirst(query, startAfter).Limit(fetchLimit)
	})
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	page := domain.CursorPage[domain.Order]{Items: make([]domain.Order, 0, limit)}
	for i, doc := range docs {
		if i == limit {
			last := docs[limit-1]
			page.NextPageToken = encodePageToken(last.Data.CreatedAt, last.ID)
			break
		}
		page.Items = append(page.Items, decodeOrder(doc.ID, doc.Data))
	}
	return page, nil
}

func orderStatusValues(statuses []domain.OrderStatus) []string {
	values := make([]string, 0, len(statuses))
	for _, s := range statuses {
		values = append(values, string(s))
	}
	return values
}
