package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/harvestlink/api/internal/domain"
	"github.com/harvestlink/api/internal/payments"
	"github.com/harvestlink/api/internal/repositories"
)

const (
	bookingIDPrefix = "bkg_"

	defaultModificationCutoff = 24 * time.Hour
)

// BookingServiceDeps bundles collaborators required to construct the booking service.
type BookingServiceDeps struct {
	Bookings   repositories.BookingRepository
	UnitOfWork repositories.UnitOfWork
	Payments   payments.Provider
	Events     LifecycleEventPublisher
	Refunds    RefundJobPublisher
	// ModificationCutoff is the window before the current schedule in which
	// cancels and reschedules are rejected. Defaults to 24h.
	ModificationCutoff time.Duration
	Clock              func() time.Time
	IDGenerator        func() string
	Logger             Logger
}

type bookingService struct {
	bookings   repositories.BookingRepository
	unitOfWork repositories.UnitOfWork
	payments   payments.Provider
	events     LifecycleEventPublisher
	refunds    RefundJobPublisher
	recorder   *Recorder
	cutoff     time.Duration
	clock      func() time.Time
	newID      func() string
	logger     Logger
}

// NewBookingService wires dependencies into a concrete BookingService implementation.
func NewBookingService(deps BookingServiceDeps) (BookingService, error) {
	if deps.Bookings == nil {
		return nil, errors.New("booking service: booking repository is required")
	}
	if deps.Payments == nil {
		return nil, errors.New("booking service: payment provider is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}
	cutoff := deps.ModificationCutoff
	if cutoff <= 0 {
		cutoff = defaultModificationCutoff
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &bookingService{
		bookings:   deps.Bookings,
		unitOfWork: unit,
		payments:   deps.Payments,
		events:     deps.Events,
		refunds:    deps.Refunds,
		recorder:   NewRecorder(clock),
		cutoff:     cutoff,
		clock:      func() time.Time { return clock().UTC() },
		newID:      idGen,
		logger:     logger,
	}, nil
}

func (s *bookingService) Create(ctx context.Context, cmd CreateBookingCommand) (domain.Booking, error) {
	if cmd.Actor.Role != domain.RoleCustomer && !cmd.Actor.IsAdmin() {
		return domain.Booking{}, fmt.Errorf("%w: only customers book services", ErrForbidden)
	}
	listingID := strings.TrimSpace(cmd.ListingID)
	if listingID == "" {
		return domain.Booking{}, fmt.Errorf("%w: listing id is required", ErrValidation)
	}
	providerID := strings.TrimSpace(cmd.ProviderID)
	if providerID == "" {
		return domain.Booking{}, fmt.Errorf("%w: provider id is required", ErrValidation)
	}
	if cmd.Pricing.FinalAmount <= 0 {
		return domain.Booking{}, fmt.Errorf("%w: final amount must be positive", ErrValidation)
	}

	scheduleAt, err := combineSchedule(cmd.Date, cmd.Time)
	if err != nil {
		return domain.Booking{}, err
	}

	now := s.now()
	if !scheduleAt.After(now) {
		return domain.Booking{}, fmt.Errorf("%w: %s is not in the future", ErrPastSchedule, scheduleAt.Format(time.RFC3339))
	}

	slot := domain.Slot{
		ListingID: listingID,
		Date:      cmd.Date.UTC(),
		Time:      cmd.Time,
	}

	// Reject a taken slot before charging the payment. The transaction
	// re-checks under isolation, so a racing claim still collides there.
	count, err := s.bookings.CountActiveForSlot(ctx, slot, "")
	if err != nil {
		return domain.Booking{}, mapRepositoryError(err)
	}
	if count > 0 {
		return domain.Booking{}, slotTakenError(slot)
	}

	booking := domain.Booking{
		ID:         bookingIDPrefix + s.newID(),
		CustomerID: cmd.Actor.ID,
		ProviderID: providerID,
		Slot:       slot,
		FieldSize: cmd.FieldSize,
		Pricing:   cmd.Pricing,
		Payment:   domain.PaymentRecord{Status: domain.PaymentStatusPending},
		Status:    domain.BookingStatusPendingConfirmation,
		Notes:     strings.TrimSpace(cmd.Notes),
		CreatedAt: now,
		UpdatedAt: now,
	}

	charge, err := s.payments.Charge(ctx, payments.ChargeRequest{
		EntityID:       booking.ID,
		PayerID:        cmd.Actor.ID,
		Amount:         cmd.Pricing.FinalAmount,
		Currency:       cmd.Pricing.Currency,
		Method:         cmd.Method,
		IdempotencyKey: booking.ID,
	})
	if err != nil {
		return domain.Booking{}, fmt.Errorf("booking: charge payment: %w", err)
	}
	booking.Payment.Method = strings.TrimSpace(cmd.Method)
	booking.Payment.TransactionID = charge.TransactionID
	if charge.Succeeded() {
		booking.Payment.Status = domain.PaymentStatusPaid
	} else {
		booking.Payment.Status = domain.PaymentStatusFailed
	}

	AppendBookingTimeline(&booking, s.recorder.BookingTimeline(booking.Status, "booking requested", cmd.Actor.ID))

	err = s.runInTx(ctx, func(txCtx context.Context) error {
		count, err := s.bookings.CountActiveForSlot(txCtx, booking.Slot, "")
		if err != nil {
			return mapRepositoryError(err)
		}
		if count > 0 {
			return slotTakenError(booking.Slot)
		}
		if err := s.bookings.Insert(txCtx, booking); err != nil {
			return mapRepositoryError(err)
		}
		return nil
	})
	if err != nil {
		return domain.Booking{}, err
	}

	s.publishEvent(ctx, "", booking, cmd.Actor, now)
	return booking, nil
}

func (s *bookingService) Transition(ctx context.Context, cmd BookingTransitionCommand) (domain.Booking, error) {
	bookingID := strings.TrimSpace(cmd.BookingID)
	if bookingID == "" {
		return domain.Booking{}, fmt.Errorf("%w: booking id is required", ErrValidation)
	}
	if !domain.ValidBookingStatus(string(cmd.Target)) {
		return domain.Booking{}, fmt.Errorf("%w: unknown booking status %q", ErrValidation, cmd.Target)
	}

	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return domain.Booking{}, mapRepositoryError(err)
	}

	if err := authorizeBookingTransition(cmd.Actor, booking, cmd.Target); err != nil {
		return domain.Booking{}, err
	}
	if err := domain.Transition(domain.KindBooking, string(booking.Status), string(cmd.Target)); err != nil {
		return domain.Booking{}, fmt.Errorf("%w: %w", ErrInvalidTransition, err)
	}

	now := s.now()
	if cmd.Target == domain.BookingStatusCancelled && !cmd.Actor.IsAdmin() {
		if err := s.checkModificationWindow(booking, now); err != nil {
			return domain.Booking{}, err
		}
	}

	prev := booking.Status
	booking.Status = cmd.Target
	booking.UpdatedAt = now
	s.applySideEffects(&booking, cmd.Target, cmd.Message, cmd.Actor, now)
	AppendBookingTimeline(&booking, s.recorder.BookingTimeline(cmd.Target, cmd.Message, cmd.Actor.ID))

	err = s.runInTx(ctx, func(txCtx context.Context) error {
		if err := s.bookings.UpdateWithStatusCheck(txCtx, booking, prev); err != nil {
			return mapRepositoryError(err)
		}
		return nil
	})
	if err != nil {
		return domain.Booking{}, err
	}

	if cmd.Target == domain.BookingStatusCancelled {
		s.enqueueRefund(ctx, booking, now)
	}
	s.publishEvent(ctx, string(prev), booking, cmd.Actor, now)
	return booking, nil
}

func (s *bookingService) Reschedule(ctx context.Context, cmd RescheduleBookingCommand) (domain.Booking, error) {
	bookingID := strings.TrimSpace(cmd.BookingID)
	if bookingID == "" {
		return domain.Booking{}, fmt.Errorf("%w: booking id is required", ErrValidation)
	}

	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return domain.Booking{}, mapRepositoryError(err)
	}

	// Only the customer or an admin may move the slot. The provider revises
	// notes through other means.
	if !cmd.Actor.IsAdmin() && cmd.Actor.ID != booking.CustomerID {
		return domain.Booking{}, fmt.Errorf("%w: only the customer may reschedule booking %s", ErrForbidden, booking.ID)
	}
	if !domain.HoldsSlot(booking.Status) {
		return domain.Booking{}, fmt.Errorf("%w: booking %s in status %s cannot be rescheduled", ErrInvalidTransition, booking.ID, booking.Status)
	}

	newScheduleAt, err := combineSchedule(cmd.NewDate, cmd.NewTime)
	if err != nil {
		return domain.Booking{}, err
	}

	now := s.now()
	// The window is measured against the current schedule, never the
	// requested one.
	if !cmd.Actor.IsAdmin() {
		if err := s.checkModificationWindow(booking, now); err != nil {
			return domain.Booking{}, err
		}
	}
	if !newScheduleAt.After(now) {
		return domain.Booking{}, fmt.Errorf("%w: %s is not in the future", ErrPastSchedule, newScheduleAt.Format(time.RFC3339))
	}

	prev := booking.Status
	oldSlot := booking.Slot
	booking.Slot = domain.Slot{
		ListingID: booking.Slot.ListingID,
		Date:      cmd.NewDate.UTC(),
		Time:      cmd.NewTime,
	}
	booking.UpdatedAt = now
	message := strings.TrimSpace(cmd.Message)
	if message == "" {
		message = fmt.Sprintf("rescheduled from %s %s to %s %s",
			oldSlot.Date.Format("2006-01-02"), oldSlot.Time,
			booking.Slot.Date.Format("2006-01-02"), booking.Slot.Time)
	}
	AppendBookingTimeline(&booking, s.recorder.BookingTimeline(booking.Status, message, cmd.Actor.ID))

	err = s.runInTx(ctx, func(txCtx context.Context) error {
		count, err := s.bookings.CountActiveForSlot(txCtx, booking.Slot, booking.ID)
		if err != nil {
			return mapRepositoryError(err)
		}
		if count > 0 {
			return slotTakenError(booking.Slot)
		}
		if err := s.bookings.UpdateWithStatusCheck(txCtx, booking, prev); err != nil {
			return mapRepositoryError(err)
		}
		return nil
	})
	if err != nil {
		return domain.Booking{}, err
	}

	s.publishEvent(ctx, string(prev), booking, cmd.Actor, now)
	return booking, nil
}

func (s *bookingService) Cancel(ctx context.Context, cmd CancelBookingCommand) (domain.Booking, error) {
	return s.Transition(ctx, BookingTransitionCommand{
		Actor:     cmd.Actor,
		BookingID: cmd.BookingID,
		Target:    domain.BookingStatusCancelled,
		Message:   strings.TrimSpace(cmd.Reason),
	})
}

func (s *bookingService) Get(ctx context.Context, actor domain.Actor, bookingID string) (domain.Booking, error) {
	booking, err := s.bookings.FindByID(ctx, strings.TrimSpace(bookingID))
	if err != nil {
		return domain.Booking{}, mapRepositoryError(err)
	}
	if !canViewBooking(actor, booking) {
		return domain.Booking{}, fmt.Errorf("%w: booking %s", ErrForbidden, booking.ID)
	}
	return booking, nil
}

func (s *bookingService) List(ctx context.Context, query BookingListQuery) (domain.CursorPage[domain.Booking], error) {
	filter := repositories.BookingListFilter{
		Status:     query.Status,
		DateRange:  domain.RangeQuery[time.Time]{From: query.From, To: query.To},
		Pagination: query.Pagination,
	}
	switch {
	case query.Actor.IsAdmin():
	case query.Actor.Role == domain.RoleProvider:
		filter.ProviderID = query.Actor.ID
	default:
		filter.CustomerID = query.Actor.ID
	}

	page, err := s.bookings.List(ctx, filter)
	if err != nil {
		return domain.CursorPage[domain.Booking]{}, mapRepositoryError(err)
	}
	return page, nil
}

func (s *bookingService) CheckSlot(ctx context.Context, listingID string, date time.Time, timeOfDay string, excludeBookingID string) (bool, error) {
	if strings.TrimSpace(listingID) == "" {
		return false, fmt.Errorf("%w: listing id is required", ErrValidation)
	}
	if _, err := combineSchedule(date, timeOfDay); err != nil {
		return false, err
	}
	count, err := s.bookings.CountActiveForSlot(ctx, domain.Slot{
		ListingID: listingID,
		Date:      date.UTC(),
		Time:      timeOfDay,
	}, strings.TrimSpace(excludeBookingID))
	if err != nil {
		return false, mapRepositoryError(err)
	}
	return count > 0, nil
}

// applySideEffects stamps the bookkeeping keyed purely on the new status.
// Cancellation records the refund as pending; execution belongs to the
// external worker fed by the refund queue.
func (s *bookingService) applySideEffects(booking *domain.Booking, status domain.BookingStatus, message string, actor domain.Actor, now time.Time) {
	switch status {
	case domain.BookingStatusCompleted:
		booking.CompletedAt = &now
	case domain.BookingStatusCancelled:
		booking.Cancellation = &domain.Cancellation{
			Reason:       strings.TrimSpace(message),
			Actor:        actor.ID,
			Timestamp:    now,
			RefundAmount: booking.Pricing.FinalAmount,
			RefundStatus: domain.PaymentStatusPending,
		}
		booking.Payment.Status = domain.PaymentStatusRefundPending
	case domain.BookingStatusRefunded:
		if booking.Cancellation != nil {
			booking.Cancellation.RefundStatus = domain.PaymentStatusRefunded
		}
		booking.Payment.Status = domain.PaymentStatusRefunded
	}
}

func slotTakenError(slot domain.Slot) error {
	return fmt.Errorf("%w: slot %s %s %s is taken", ErrSlotConflict,
		slot.ListingID, slot.Date.Format("2006-01-02"), slot.Time)
}

func (s *bookingService) checkModificationWindow(booking domain.Booking, now time.Time) error {
	scheduleAt, err := combineSchedule(booking.Slot.Date, booking.Slot.Time)
	if err != nil {
		return err
	}
	if scheduleAt.Sub(now) < s.cutoff {
		return fmt.Errorf("%w: less than %s before the scheduled time", ErrTooLateToModify, s.cutoff)
	}
	return nil
}

func (s *bookingService) enqueueRefund(ctx context.Context, booking domain.Booking, now time.Time) {
	if s.refunds == nil || booking.Cancellation == nil {
		return
	}
	_, err := s.refunds.PublishRefundJob(ctx, RefundJobMessage{
		RefundID:    refundIDPrefix + s.newID(),
		EntityKind:  domain.KindBooking,
		EntityID:    booking.ID,
		Amount:      booking.Cancellation.RefundAmount,
		Reason:      booking.Cancellation.Reason,
		RequestedBy: booking.Cancellation.Actor,
		QueuedAt:    now,
	})
	if err != nil {
		s.logger(ctx, "booking.refund.enqueue.failed", map[string]any{
			"booking": booking.ID,
			"error":   err.Error(),
		})
	}
}

func (s *bookingService) publishEvent(ctx context.Context, prev string, booking domain.Booking, actor domain.Actor, now time.Time) {
	if s.events == nil {
		return
	}
	_, err := s.events.PublishLifecycleEvent(ctx, LifecycleEventMessage{
		EventID:        eventIDPrefix + s.newID(),
		EntityKind:     domain.KindBooking,
		EntityID:       booking.ID,
		PreviousStatus: prev,
		NewStatus:      string(booking.Status),
		ActorID:        actor.ID,
		ActorRole:      string(actor.Role),
		OccurredAt:     now,
	})
	if err != nil {
		s.logger(ctx, "booking.event.publish.failed", map[string]any{
			"booking": booking.ID,
			"status":  string(booking.Status),
			"error":   err.Error(),
		})
	}
}

func (s *bookingService) runInTx(ctx context.Context, fn func(context.Context) error) error {
	if s.unitOfWork == nil {
		return fn(ctx)
	}
	return s.unitOfWork.RunInTx(ctx, fn)
}

func (s *bookingService) now() time.Time {
	return s.clock()
}

// combineSchedule merges the day-granular date with the "HH:MM" time-of-day
// string into the scheduled instant.
func combineSchedule(date time.Time, timeOfDay string) (time.Time, error) {
	parsed, err := time.Parse("15:04", strings.TrimSpace(timeOfDay))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid time of day %q", ErrValidation, timeOfDay)
	}
	utc := date.UTC()
	return time.Date(utc.Year(), utc.Month(), utc.Day(), parsed.Hour(), parsed.Minute(), 0, 0, time.UTC), nil
}

// authorizeBookingTransition enforces the role rules: the customer may only
// cancel, the provider drives service delivery, refund bookkeeping is
// admin-only.
func authorizeBookingTransition(actor domain.Actor, booking domain.Booking, target domain.BookingStatus) error {
	if actor.IsAdmin() {
		return nil
	}
	switch {
	case actor.ID == booking.CustomerID:
		if target == domain.BookingStatusCancelled {
			return nil
		}
	case actor.ID == booking.ProviderID:
		if target != domain.BookingStatusRefunded {
			return nil
		}
	}
	return fmt.Errorf("%w: %s may not move booking %s to %s", ErrForbidden, actor.ID, booking.ID, target)
}

func canViewBooking(actor domain.Actor, booking domain.Booking) bool {
	return actor.IsAdmin() || actor.ID == booking.CustomerID || actor.ID == booking.ProviderID
}
