package services

import (
	"context"
	"errors"
	"time"

	"github.com/harvestlink/api/internal/domain"
	"github.com/harvestlink/api/internal/payments"
	"github.com/harvestlink/api/internal/repositories"
)

type stubRepoError struct {
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e stubRepoError) Error() string      { return "stub repository error" }
func (e stubRepoError) IsNotFound() bool   { return e.notFound }
func (e stubRepoError) IsConflict() bool   { return e.conflict }
func (e stubRepoError) IsUnavailable() bool { return e.unavailable }

type stubOrderRepo struct {
	insertFn      func(context.Context, domain.Order) error
	updateFn      func(context.Context, domain.Order) error
	statusCheckFn func(context.Context, domain.Order, domain.OrderStatus) error
	findFn        func(context.Context, string) (domain.Order, error)
	listFn        func(context.Context, repositories.OrderListFilter) (domain.CursorPage[domain.Order], error)
}

func (s *stubOrderRepo) Insert(ctx context.Context, order domain.Order) error {
	if s.insertFn != nil {
		return s.insertFn(ctx, order)
	}
	return nil
}

func (s *stubOrderRepo) Update(ctx context.Context, order domain.Order) error {
	if s.updateFn != nil {
		return s.updateFn(ctx, order)
	}
	return nil
}

func (s *stubOrderRepo) UpdateWithStatusCheck(ctx context.Context, order domain.Order, expected domain.OrderStatus) error {
	if s.statusCheckFn != nil {
		return s.statusCheckFn(ctx, order, expected)
	}
	return nil
}

func (s *stubOrderRepo) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if s.findFn != nil {
		return s.findFn(ctx, orderID)
	}
	return domain.Order{}, errors.New("not implemented")
}

func (s *stubOrderRepo) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return domain.CursorPage[domain.Order]{}, nil
}

type stubBookingRepo struct {
	insertFn      func(context.Context, domain.Booking) error
	updateFn      func(context.Context, domain.Booking) error
	statusCheckFn func(context.Context, domain.Booking, domain.BookingStatus) error
	findFn        func(context.Context, string) (domain.Booking, error)
	listFn        func(context.Context, repositories.BookingListFilter) (domain.CursorPage[domain.Booking], error)
	countFn       func(context.Context, domain.Slot, string) (int, error)
}

func (s *stubBookingRepo) Insert(ctx context.Context, booking domain.Booking) error {
	if s.insertFn != nil {
		return s.insertFn(ctx, booking)
	}
	return nil
}

func (s *stubBookingRepo) Update(ctx context.Context, booking domain.Booking) error {
	if s.updateFn != nil {
		return s.updateFn(ctx, booking)
	}
	return nil
}

func (s *stubBookingRepo) UpdateWithStatusCheck(ctx context.Context, booking domain.Booking, expected domain.BookingStatus) error {
	if s.statusCheckFn != nil {
		return s.statusCheckFn(ctx, booking, expected)
	}
	return nil
}

func (s *stubBookingRepo) FindByID(ctx context.Context, bookingID string) (domain.Booking, error) {
	if s.findFn != nil {
		return s.findFn(ctx, bookingID)
	}
	return domain.Booking{}, errors.New("not implemented")
}

func (s *stubBookingRepo) List(ctx context.Context, filter repositories.BookingListFilter) (domain.CursorPage[domain.Booking], error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return domain.CursorPage[domain.Booking]{}, nil
}

func (s *stubBookingRepo) CountActiveForSlot(ctx context.Context, slot domain.Slot, excludeBookingID string) (int, error) {
	if s.countFn != nil {
		return s.countFn(ctx, slot, excludeBookingID)
	}
	return 0, nil
}

type stubTicketRepo struct {
	insertFn      func(context.Context, domain.Ticket) error
	updateFn      func(context.Context, domain.Ticket) error
	statusCheckFn func(context.Context, domain.Ticket, domain.TicketStatus) error
	findFn        func(context.Context, string) (domain.Ticket, error)
	listFn        func(context.Context, repositories.TicketListFilter) (domain.CursorPage[domain.Ticket], error)
}

func (s *stubTicketRepo) Insert(ctx context.Context, ticket domain.Ticket) error {
	if s.insertFn != nil {
		return s.insertFn(ctx, ticket)
	}
	return nil
}

func (s *stubTicketRepo) Update(ctx context.Context, ticket domain.Ticket) error {
	if s.updateFn != nil {
		return s.updateFn(ctx, ticket)
	}
	return nil
}

func (s *stubTicketRepo) UpdateWithStatusCheck(ctx context.Context, ticket domain.Ticket, expected domain.TicketStatus) error {
	if s.statusCheckFn != nil {
		return s.statusCheckFn(ctx, ticket, expected)
	}
	return nil
}

func (s *stubTicketRepo) FindByID(ctx context.Context, ticketID string) (domain.Ticket, error) {
	if s.findFn != nil {
		return s.findFn(ctx, ticketID)
	}
	return domain.Ticket{}, errors.New("not implemented")
}

func (s *stubTicketRepo) List(ctx context.Context, filter repositories.TicketListFilter) (domain.CursorPage[domain.Ticket], error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return domain.CursorPage[domain.Ticket]{}, nil
}

type stubProductRepo struct {
	findFn   func(context.Context, string) (domain.Product, error)
	adjustFn func(context.Context, string, int, time.Time) error
}

func (s *stubProductRepo) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	if s.findFn != nil {
		return s.findFn(ctx, productID)
	}
	return domain.Product{}, errors.New("not implemented")
}

func (s *stubProductRepo) ApplyAvailabilityDelta(ctx context.Context, productID string, delta int, now time.Time) error {
	if s.adjustFn != nil {
		return s.adjustFn(ctx, productID, delta, now)
	}
	return nil
}

type stubPaymentProvider struct {
	chargeFn func(context.Context, payments.ChargeRequest) (payments.Result, error)
}

func (s *stubPaymentProvider) Charge(ctx context.Context, req payments.ChargeRequest) (payments.Result, error) {
	if s.chargeFn != nil {
		return s.chargeFn(ctx, req)
	}
	return payments.Result{TransactionID: "txn_stub", Status: payments.StatusSucceeded}, nil
}

type capturingEventPublisher struct {
	events []LifecycleEventMessage
	err    error
}

func (c *capturingEventPublisher) PublishLifecycleEvent(_ context.Context, message LifecycleEventMessage) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	c.events = append(c.events, message)
	return "msg", nil
}

type capturingRefundPublisher struct {
	jobs []RefundJobMessage
	err  error
}

func (c *capturingRefundPublisher) PublishRefundJob(_ context.Context, message RefundJobMessage) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	c.jobs = append(c.jobs, message)
	return "msg", nil
}

var testNow = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func staticID() string { return "TEST" }
