package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/harvestlink/api/internal/domain"
	"github.com/harvestlink/api/internal/payments"
)

func newBookingService(t *testing.T, deps BookingServiceDeps) BookingService {
	t.Helper()
	if deps.Bookings == nil {
		deps.Bookings = &stubBookingRepo{}
	}
	if deps.Payments == nil {
		deps.Payments = &stubPaymentProvider{}
	}
	if deps.Clock == nil {
		deps.Clock = fixedClock
	}
	if deps.IDGenerator == nil {
		deps.IDGenerator = staticID
	}
	svc, err := NewBookingService(deps)
	if err != nil {
		t.Fatalf("NewBookingService: %v", err)
	}
	return svc
}

func createCommand(date time.Time, timeOfDay string) CreateBookingCommand {
	return CreateBookingCommand{
		Actor:      domain.Actor{ID: "usr_customer", Role: domain.RoleCustomer},
		ProviderID: "usr_provider",
		ListingID:  "lst_1",
		Date:       date,
		Time:       timeOfDay,
		Pricing:    domain.PricingSnapshot{BaseAmount: 8000, FinalAmount: 8000, Currency: "USD"},
		Method:     "card",
	}
}

func TestBookingCreateSlotConflict(t *testing.T) {
	date := testNow.AddDate(0, 0, 5)
	inserted := 0

	// "09:00" is taken, "10:00" is free.
	svc := newBookingService(t, BookingServiceDeps{
		Bookings: &stubBookingRepo{
			countFn: func(_ context.Context, slot domain.Slot, exclude string) (int, error) {
				if slot.Time == "09:00" {
					return 1, nil
				}
				return 0, nil
			},
			insertFn: func(_ context.Context, booking domain.Booking) error {
				inserted++
				return nil
			},
		},
	})

	_, err := svc.Create(context.Background(), createCommand(date, "09:00"))
	if !errors.Is(err, ErrSlotConflict) {
		t.Fatalf("err = %v, want ErrSlotConflict", err)
	}
	if inserted != 0 {
		t.Fatal("conflicting booking was inserted")
	}

	booking, err := svc.Create(context.Background(), createCommand(date, "10:00"))
	if err != nil {
		t.Fatalf("Create at 10:00: %v", err)
	}
	if booking.Status != domain.BookingStatusPendingConfirmation {
		t.Fatalf("Status = %s, want pending_confirmation", booking.Status)
	}
	if len(booking.Timeline) != 1 || booking.Timeline[0].Status != domain.BookingStatusPendingConfirmation {
		t.Fatalf("expected one created timeline entry, got %+v", booking.Timeline)
	}
	if inserted != 1 {
		t.Fatalf("inserted = %d, want 1", inserted)
	}
}

func TestBookingCreateSlotConflictSkipsCharge(t *testing.T) {
	charged := false
	svc := newBookingService(t, BookingServiceDeps{
		Bookings: &stubBookingRepo{
			countFn: func(context.Context, domain.Slot, string) (int, error) {
				return 1, nil
			},
		},
		Payments: &stubPaymentProvider{
			chargeFn: func(context.Context, payments.ChargeRequest) (payments.Result, error) {
				charged = true
				return payments.Result{TransactionID: "txn", Status: payments.StatusSucceeded}, nil
			},
		},
	})

	_, err := svc.Create(context.Background(), createCommand(testNow.AddDate(0, 0, 5), "09:00"))
	if !errors.Is(err, ErrSlotConflict) {
		t.Fatalf("err = %v, want ErrSlotConflict", err)
	}
	if charged {
		t.Fatal("taken slot must be rejected before the payment is charged")
	}
}

func TestBookingCreatePastSchedule(t *testing.T) {
	svc := newBookingService(t, BookingServiceDeps{})

	_, err := svc.Create(context.Background(), createCommand(testNow.AddDate(0, 0, -1), "09:00"))
	if !errors.Is(err, ErrPastSchedule) {
		t.Fatalf("err = %v, want ErrPastSchedule", err)
	}

	// Same day but earlier hour is also in the past.
	_, err = svc.Create(context.Background(), createCommand(testNow, "09:00"))
	if !errors.Is(err, ErrPastSchedule) {
		t.Fatalf("same-day err = %v, want ErrPastSchedule", err)
	}
}

func existingBooking(date time.Time, timeOfDay string, status domain.BookingStatus) domain.Booking {
	return domain.Booking{
		ID:         "bkg_1",
		CustomerID: "usr_customer",
		ProviderID: "usr_provider",
		Slot:       domain.Slot{ListingID: "lst_1", Date: date, Time: timeOfDay},
		Pricing:    domain.PricingSnapshot{BaseAmount: 8000, FinalAmount: 8000, Currency: "USD"},
		Status:     status,
	}
}

func TestBookingRescheduleTooLateToModify(t *testing.T) {
	// Scheduled 20h out: inside the 24h window.
	soon := testNow.Add(20 * time.Hour)
	svc := newBookingService(t, BookingServiceDeps{
		Bookings: &stubBookingRepo{
			findFn: func(_ context.Context, id string) (domain.Booking, error) {
				return existingBooking(soon, soon.Format("15:04"), domain.BookingStatusConfirmed), nil
			},
		},
	})

	_, err := svc.Reschedule(context.Background(), RescheduleBookingCommand{
		Actor:     domain.Actor{ID: "usr_customer", Role: domain.RoleCustomer},
		BookingID: "bkg_1",
		NewDate:   testNow.AddDate(0, 1, 0),
		NewTime:   "09:00",
	})
	if !errors.Is(err, ErrTooLateToModify) {
		t.Fatalf("err = %v, want ErrTooLateToModify", err)
	}
}

func TestBookingRescheduleSlotConflict(t *testing.T) {
	current := testNow.AddDate(0, 0, 10)
	svc := newBookingService(t, BookingServiceDeps{
		Bookings: &stubBookingRepo{
			findFn: func(_ context.Context, id string) (domain.Booking, error) {
				return existingBooking(current, "09:00", domain.BookingStatusConfirmed), nil
			},
			countFn: func(_ context.Context, slot domain.Slot, exclude string) (int, error) {
				if exclude != "bkg_1" {
					t.Fatalf("exclude = %q, want bkg_1", exclude)
				}
				return 1, nil
			},
		},
	})

	_, err := svc.Reschedule(context.Background(), RescheduleBookingCommand{
		Actor:     domain.Actor{ID: "usr_customer", Role: domain.RoleCustomer},
		BookingID: "bkg_1",
		NewDate:   testNow.AddDate(0, 0, 12),
		NewTime:   "11:00",
	})
	if !errors.Is(err, ErrSlotConflict) {
		t.Fatalf("err = %v, want ErrSlotConflict", err)
	}
}

func TestBookingRescheduleForbiddenForProvider(t *testing.T) {
	current := testNow.AddDate(0, 0, 10)
	svc := newBookingService(t, BookingServiceDeps{
		Bookings: &stubBookingRepo{
			findFn: func(_ context.Context, id string) (domain.Booking, error) {
				return existingBooking(current, "09:00", domain.BookingStatusConfirmed), nil
			},
		},
	})

	_, err := svc.Reschedule(context.Background(), RescheduleBookingCommand{
		Actor:     domain.Actor{ID: "usr_provider", Role: domain.RoleProvider},
		BookingID: "bkg_1",
		NewDate:   testNow.AddDate(0, 0, 12),
		NewTime:   "11:00",
	})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
}

func TestBookingCancelPopulatesCancellationAndQueuesRefund(t *testing.T) {
	current := testNow.AddDate(0, 0, 10)
	refunds := &capturingRefundPublisher{}
	var persisted *domain.Booking

	svc := newBookingService(t, BookingServiceDeps{
		Bookings: &stubBookingRepo{
			findFn: func(_ context.Context, id string) (domain.Booking, error) {
				return existingBooking(current, "09:00", domain.BookingStatusConfirmed), nil
			},
			statusCheckFn: func(_ context.Context, booking domain.Booking, expected domain.BookingStatus) error {
				if expected != domain.BookingStatusConfirmed {
					t.Fatalf("status precondition = %s, want confirmed", expected)
				}
				persisted = &booking
				return nil
			},
		},
		Refunds: refunds,
	})

	booking, err := svc.Cancel(context.Background(), CancelBookingCommand{
		Actor:     domain.Actor{ID: "usr_customer", Role: domain.RoleCustomer},
		BookingID: "bkg_1",
		Reason:    "weather",
	})
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	if booking.Cancellation == nil {
		t.Fatal("Cancellation record missing")
	}
	if booking.Cancellation.RefundAmount != 8000 || booking.Cancellation.RefundStatus != domain.PaymentStatusPending {
		t.Fatalf("unexpected cancellation %+v", booking.Cancellation)
	}
	if booking.Payment.Status != domain.PaymentStatusRefundPending {
		t.Fatalf("Payment.Status = %s, want refund_pending", booking.Payment.Status)
	}
	if len(refunds.jobs) != 1 || refunds.jobs[0].EntityKind != domain.KindBooking || refunds.jobs[0].Amount != 8000 {
		t.Fatalf("unexpected refund jobs %+v", refunds.jobs)
	}
	if persisted == nil || len(persisted.Timeline) != 1 || persisted.Timeline[0].Status != domain.BookingStatusCancelled {
		t.Fatalf("expected cancelled timeline entry, got %+v", persisted)
	}
}

func TestBookingCancelInsideWindowRejected(t *testing.T) {
	soon := testNow.Add(6 * time.Hour)
	svc := newBookingService(t, BookingServiceDeps{
		Bookings: &stubBookingRepo{
			findFn: func(_ context.Context, id string) (domain.Booking, error) {
				return existingBooking(soon, soon.Format("15:04"), domain.BookingStatusConfirmed), nil
			},
		},
	})

	_, err := svc.Cancel(context.Background(), CancelBookingCommand{
		Actor:     domain.Actor{ID: "usr_customer", Role: domain.RoleCustomer},
		BookingID: "bkg_1",
	})
	if !errors.Is(err, ErrTooLateToModify) {
		t.Fatalf("err = %v, want ErrTooLateToModify", err)
	}
}

func TestBookingTransitionCompletedStampsTimestamp(t *testing.T) {
	current := testNow.AddDate(0, 0, 2)
	svc := newBookingService(t, BookingServiceDeps{
		Bookings: &stubBookingRepo{
			findFn: func(_ context.Context, id string) (domain.Booking, error) {
				return existingBooking(current, "09:00", domain.BookingStatusInProgress), nil
			},
		},
	})

	booking, err := svc.Transition(context.Background(), BookingTransitionCommand{
		Actor:     domain.Actor{ID: "usr_provider", Role: domain.RoleProvider},
		BookingID: "bkg_1",
		Target:    domain.BookingStatusCompleted,
	})
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if booking.CompletedAt == nil || !booking.CompletedAt.Equal(testNow) {
		t.Fatalf("CompletedAt = %v, want %v", booking.CompletedAt, testNow)
	}
}

func TestBookingCustomerMayOnlyCancel(t *testing.T) {
	current := testNow.AddDate(0, 0, 10)
	svc := newBookingService(t, BookingServiceDeps{
		Bookings: &stubBookingRepo{
			findFn: func(_ context.Context, id string) (domain.Booking, error) {
				return existingBooking(current, "09:00", domain.BookingStatusPendingConfirmation), nil
			},
		},
	})

	_, err := svc.Transition(context.Background(), BookingTransitionCommand{
		Actor:     domain.Actor{ID: "usr_customer", Role: domain.RoleCustomer},
		BookingID: "bkg_1",
		Target:    domain.BookingStatusConfirmed,
	})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
}

func TestBookingTransitionRejectedEdgeCarriesEndpoints(t *testing.T) {
	current := testNow.AddDate(0, 0, 10)
	svc := newBookingService(t, BookingServiceDeps{
		Bookings: &stubBookingRepo{
			findFn: func(_ context.Context, id string) (domain.Booking, error) {
				return existingBooking(current, "09:00", domain.BookingStatusRefunded), nil
			},
		},
	})

	_, err := svc.Transition(context.Background(), BookingTransitionCommand{
		Actor:     domain.Actor{ID: "adm_1", Role: domain.RoleAdmin},
		BookingID: "bkg_1",
		Target:    domain.BookingStatusConfirmed,
	})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
	var te *domain.TransitionError
	if !errors.As(err, &te) {
		t.Fatalf("err = %v, want a transition error with endpoints", err)
	}
	if te.Kind != domain.KindBooking || te.From != string(domain.BookingStatusRefunded) || te.To != string(domain.BookingStatusConfirmed) {
		t.Fatalf("unexpected edge in error: %+v", te)
	}
}

func TestBookingCheckSlot(t *testing.T) {
	svc := newBookingService(t, BookingServiceDeps{
		Bookings: &stubBookingRepo{
			countFn: func(_ context.Context, slot domain.Slot, _ string) (int, error) {
				if slot.Time == "09:00" {
					return 1, nil
				}
				return 0, nil
			},
		},
	})

	date := testNow.AddDate(0, 0, 3)
	taken, err := svc.CheckSlot(context.Background(), "lst_1", date, "09:00", "")
	if err != nil {
		t.Fatalf("CheckSlot: %v", err)
	}
	if !taken {
		t.Fatal("expected 09:00 to be taken")
	}
	free, err := svc.CheckSlot(context.Background(), "lst_1", date, "10:00", "")
	if err != nil {
		t.Fatalf("CheckSlot: %v", err)
	}
	if free {
		t.Fatal("expected 10:00 to be free")
	}
}
