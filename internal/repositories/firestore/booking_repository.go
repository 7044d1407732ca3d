package firestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/harvestlink/api/internal/domain"
	pfirestore "github.com/harvestlink/api/internal/platform/firestore"
	"github.com/harvestlink/api/internal/repositories"
)

const bookingsCollection = "bookings"

type slotDocument struct {
	ListingID string    `firestore:"listing_id"`
	Date      time.Time `firestore:"date"`
	Time      string    `firestore:"time"`
}

type pricingDocument struct {
	Type        string `firestore:"type,omitempty"`
	BaseAmount  int64  `firestore:"base_amount"`
	FinalAmount int64  `firestore:"final_amount"`
	Currency    string `firestore:"currency"`
}

type timelineEntryDocument struct {
	Status    string    `firestore:"status"`
	Message   string    `firestore:"message,omitempty"`
	Actor     string    `firestore:"actor,omitempty"`
	Timestamp time.Time `firestore:"timestamp"`
}

type cancellationDocument struct {
	Reason       string    `firestore:"reason,omitempty"`
	Actor        string    `firestore:"actor"`
	Timestamp    time.Time `firestore:"timestamp"`
	RefundAmount int64     `firestore:"refund_amount"`
	RefundStatus string    `firestore:"refund_status,omitempty"`
}

type bookingDocument struct {
	CustomerID     string                  `firestore:"customer_id"`
	ProviderID     string                  `firestore:"provider_id"`
	Slot           slotDocument            `firestore:"slot"`
	FieldSize      string                  `firestore:"field_size,omitempty"`
	Pricing        pricingDocument         `firestore:"pricing"`
	Payment        paymentDocument         `firestore:"payment"`
	Status         string                  `firestore:"status"`
	Notes          string                  `firestore:"notes,omitempty"`
	Timeline       []timelineEntryDocument `firestore:"timeline"`
	Cancellation   *cancellationDocument   `firestore:"cancellation,omitempty"`
	CreatedAt      time.Time               `firestore:"created_at"`
	UpdatedAt      time.Time               `firestore:"updated_at"`
	CompletedAt    *time.Time              `firestore:"completed_at,omitempty"`
	LastActivityAt time.Time               `firestore:"last_activity_at"`
}

// slotDay collapses the slot date to day granularity so equality queries match
// regardless of the time-of-day carried by callers.
func slotDay(ts time.Time) time.Time {
	utc := ts.UTC()
	return time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
}

func encodeBooking(booking domain.Booking) bookingDocument {
	timeline := make([]timelineEntryDocument, 0, len(booking.Timeline))
	for _, entry := range booking.Timeline {
		timeline = append(timeline, timelineEntryDocument{
			Status:    string(entry.Status),
			Message:   entry.Message,
			Actor:     entry.Actor,
			Timestamp: normalizeTime(entry.Timestamp),
		})
	}
	var cancellation *cancellationDocument
	if booking.Cancellation != nil {
		cancellation = &cancellationDocument{
			Reason:       booking.Cancellation.Reason,
			Actor:        booking.Cancellation.Actor,
			Timestamp:    normalizeTime(booking.Cancellation.Timestamp),
			RefundAmount: booking.Cancellation.RefundAmount,
			RefundStatus: string(booking.Cancellation.RefundStatus),
		}
	}
	return bookingDocument{
		CustomerID: booking.CustomerID,
		ProviderID: booking.ProviderID,
		Slot: slotDocument{
			ListingID: booking.Slot.ListingID,
			Date:      slotDay(booking.Slot.Date),
			Time:      booking.Slot.Time,
		},
		FieldSize: booking.FieldSize,
		Pricing: pricingDocument{
			Type:        booking.Pricing.Type,
			BaseAmount:  booking.Pricing.BaseAmount,
			FinalAmount: booking.Pricing.FinalAmount,
			Currency:    booking.Pricing.Currency,
		},
		Payment:        encodePayment(booking.Payment),
		Status:         string(booking.Status),
		Notes:          booking.Notes,
		Timeline:       timeline,
		Cancellation:   cancellation,
		CreatedAt:      normalizeTime(booking.CreatedAt),
		UpdatedAt:      normalizeTime(booking.UpdatedAt),
		CompletedAt:    normalizeTimePointer(booking.CompletedAt),
		LastActivityAt: chooseTime(booking.LastActivityAt, booking.UpdatedAt),
	}
}

func decodeBooking(id string, doc bookingDocument) domain.Booking {
	timeline := make([]domain.TimelineEntry, 0, len(doc.Timeline))
	for _, entry := range doc.Timeline {
		timeline = append(timeline, domain.TimelineEntry{
			Status:    domain.BookingStatus(entry.Status),
			Message:   entry.Message,
			Actor:     entry.Actor,
			Timestamp: entry.Timestamp,
		})
	}
	var cancellation *domain.Cancellation
	if doc.Cancellation != nil {
		cancellation = &domain.Cancellation{
			Reason:       doc.Cancellation.Reason,
			Actor:        doc.Cancellation.Actor,
			Timestamp:    doc.Cancellation.Timestamp,
			RefundAmount: doc.Cancellation.RefundAmount,
			RefundStatus: domain.PaymentStatus(doc.Cancellation.RefundStatus),
		}
	}
	return domain.Booking{
		ID:         id,
		CustomerID: doc.CustomerID,
		ProviderID: doc.ProviderID,
		Slot: domain.Slot{
			ListingID: doc.Slot.ListingID,
			Date:      doc.Slot.Date,
			Time:      doc.Slot.Time,
		},
		FieldSize: doc.FieldSize,
		Pricing: domain.PricingSnapshot{
			Type:        doc.Pricing.Type,
			BaseAmount:  doc.Pricing.BaseAmount,
			FinalAmount: doc.Pricing.FinalAmount,
			Currency:    doc.Pricing.Currency,
		},
		Payment:        decodePayment(doc.Payment),
		Status:         domain.BookingStatus(doc.Status),
		Notes:          doc.Notes,
		Timeline:       timeline,
		Cancellation:   cancellation,
		CreatedAt:      doc.CreatedAt,
		UpdatedAt:      doc.UpdatedAt,
		CompletedAt:    doc.CompletedAt,
		LastActivityAt: chooseTime(doc.LastActivityAt, doc.UpdatedAt),
	}
}

// BookingRepository persists bookings in the "bookings" collection.
type BookingRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[bookingDocument]
}

// NewBookingRepository builds a Firestore-backed booking repository.
func NewBookingRepository(provider *pfirestore.Provider) (*BookingRepository, error) {
	if provider == nil {
		return nil, errors.New("booking repository: firestore provider is required")
	}
	return &BookingRepository{
		provider: provider,
		base:     pfirestore.NewBaseRepository[bookingDocument](provider, bookingsCollection, nil, nil),
	}, nil
}

// Insert creates the booking document, failing when the ID already exists.
func (r *BookingRepository) Insert(ctx context.Context, booking domain.Booking) error {
	doc := encodeBooking(booking)
	if tx, ok := txFromContext(ctx); ok {
		ref, err := r.base.DocumentRef(ctx, booking.ID)
		if err != nil {
			return err
		}
		return pfirestore.WrapError("bookings.create", tx.Create(ref, doc))
	}
	_, err := r.base.Create(ctx, booking.ID, doc)
	return err
}

// Update replaces the stored booking document.
func (r *BookingRepository) Update(ctx context.Context, booking domain.Booking) error {
	doc := encodeBooking(booking)
	if tx, ok := txFromContext(ctx); ok {
		ref, err := r.base.DocumentRef(ctx, booking.ID)
		if err != nil {
			return err
		}
		return pfirestore.WrapError("bookings.set", tx.Set(ref, doc))
	}
	_, err := r.base.Set(ctx, booking.ID, doc)
	return err
}

// UpdateWithStatusCheck writes the booking only while the stored status still
// equals expected.
func (r *BookingRepository) UpdateWithStatusCheck(ctx context.Context, booking domain.Booking, expected domain.BookingStatus) error {
	ref, err := r.base.DocumentRef(ctx, booking.ID)
	if err != nil {
		return err
	}
	return runInTransaction(ctx, r.provider, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return pfirestore.WrapError("bookings.get", err)
		}
		stored, err := r.base.Decode(ctx, snap)
		if err != nil {
			return fmt.Errorf("bookings: decode %s: %w", booking.ID, err)
		}
		if domain.BookingStatus(stored.Data.Status) != expected {
			return pfirestore.ConflictError("bookings.update",
				fmt.Errorf("booking %s status is %s, expected %s", booking.ID, stored.Data.Status, expected))
		}
		return pfirestore.WrapError("bookings.set", tx.Set(ref, encodeBooking(booking)))
	})
}

// FindByID loads a single booking.
func (r *BookingRepository) FindByID(ctx context.Context, bookingID string) (domain.Booking, error) {
	if tx, ok := txFromContext(ctx); ok {
		ref, err := r.base.DocumentRef(ctx, bookingID)
		if err != nil {
			return domain.Booking{}, err
		}
		snap, err := tx.Get(ref)
		if err != nil {
			return domain.Booking{}, pfirestore.WrapError("bookings.get", err)
		}
		doc, err := r.base.Decode(ctx, snap)
		if err != nil {
			return domain.Booking{}, fmt.Errorf("bookings: decode %s: %w", bookingID, err)
		}
		return decodeBooking(snap.Ref.ID, doc.Data), nil
	}

	doc, err := r.base.Get(ctx, bookingID)
	if err != nil {
		return domain.Booking{}, err
	}
	return decodeBooking(doc.ID, doc.Data), nil
}

// List returns a page of bookings matching the filter, newest first.
func (r *BookingRepository) List(ctx context.Context, filter repositories.BookingListFilter) (domain.CursorPage[domain.Booking], error) {
	limit := normalizePageSize(filter.Pagination.PageSize)
	fetchLimit := limit + 1

	startAfter, err := cursorStartAfter(filter.Pagination.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Booking]{}, err
	}

	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		if filter.CustomerID != "" {
			query = query.Where("customer_id", "==", filter.CustomerID)
		}
		if filter.ProviderID != "" {
			query = query.Where("provider_id", "==", filter.ProviderID)
		}
		if len(filter.Status) > 0 {
			query = query.Where("status", "in", bookingStatusValues(filter.Status))
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
		return domain.CursorPage[domain.Booking]{}, err
	}

	page := domain.CursorPage[domain.Booking]{Items: make([]domain.Booking, 0, limit)}
	for i, doc := range docs {
		if i == limit {
			last := docs[limit-1]
			page.NextPageToken = encodePageToken(last.Data.CreatedAt, last.ID)
			break
		}
		page.Items = append(page.Items, decodeBooking(doc.ID, doc.Data))
	}
	return page, nil
}

// CountActiveForSlot counts slot-holding bookings on the given slot. Inside a
// registry transaction the read joins it, so concurrent claims of the same
// slot abort each other instead of both committing.
func (r *BookingRepository) CountActiveForSlot(ctx context.Context, slot domain.Slot, excludeBookingID string) (int, error) {
	coll, err := r.base.CollectionRef(ctx)
	if err != nil {
		return 0, err
	}
	query := coll.
		Where("slot.listing_id", "==", slot.ListingID).
		Where("slot.date", "==", slotDay(slot.Date)).
		Where("slot.time", "==", slot.Time).
		Where("status", "in", bookingStatusValues(domain.ActiveBookingStatuses))

	var iter *firestore.DocumentIterator
	if tx, ok := txFromContext(ctx); ok {
		iter = tx.Documents(query)
	} else {
		iter = query.Documents(ctx)
	}
	defer iter.Stop()

	count := 0
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return 0, pfirestore.WrapError("bookings.count", err)
		}
		if excludeBookingID != "" && snap.Ref.ID == excludeBookingID {
			continue
		}
		count++
	}
	return count, nil
}

func bookingStatusValues(statuses []domain.BookingStatus) []string {
	values := make([]string, 0, len(statuses))
	for _, s := range statuses {
		values = append(values, string(s))
	}
	return values
}
