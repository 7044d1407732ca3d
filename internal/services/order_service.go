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
	orderIDPrefix  = "ord_"
	refundIDPrefix = "rfn_"
	eventIDPrefix  = "evt_"
)

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders      repositories.OrderRepository
	Products    repositories.ProductRepository
	UnitOfWork  repositories.UnitOfWork
	Payments    payments.Provider
	Events      LifecycleEventPublisher
	Refunds     RefundJobPublisher
	Clock       func() time.Time
	IDGenerator func() string
	Logger      Logger
}

type orderService struct {
	orders     repositories.OrderRepository
	products   repositories.ProductRepository
	unitOfWork repositories.UnitOfWork
	payments   payments.Provider
	events     LifecycleEventPublisher
	refunds    RefundJobPublisher
	recorder   *Recorder
	clock      func() time.Time
	newID      func() string
	logger     Logger
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("order service: product repository is required")
	}
	if deps.Payments == nil {
		return nil, errors.New("order service: payment provider is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
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

	return &orderService{
		orders:     deps.Orders,
		products:   deps.Products,
		unitOfWork: unit,
		payments:   deps.Payments,
		events:     deps.Events,
		refunds:    deps.Refunds,
		recorder:   NewRecorder(clock),
		clock:      func() time.Time { return clock().UTC() },
		newID:      idGen,
		logger:     logger,
	}, nil
}

func (s *orderService) Create(ctx context.Context, cmd CreateOrderCommand) (domain.Order, error) {
	if cmd.Actor.Role != domain.RoleBuyer && !cmd.Actor.IsAdmin() {
		return domain.Order{}, fmt.Errorf("%w: only buyers place orders", ErrForbidden)
	}
	if len(cmd.Items) == 0 {
		return domain.Order{}, fmt.Errorf("%w: order must contain at least one item", ErrValidation)
	}
	for _, item := range cmd.Items {
		if strings.TrimSpace(item.ProductID) == "" {
			return domain.Order{}, fmt.Errorf("%w: item product id is required", ErrValidation)
		}
		if item.Quantity <= 0 {
			return domain.Order{}, fmt.Errorf("%w: item quantity must be positive", ErrValidation)
		}
	}
	currency := strings.TrimSpace(cmd.Currency)
	if currency == "" {
		return domain.Order{}, fmt.Errorf("%w: currency is required", ErrValidation)
	}

	now := s.now()

	lineItems, sellerID, err := s.buildLineItems(ctx, cmd.Items)
	if err != nil {
		return domain.Order{}, err
	}

	var total int64
	for _, item := range lineItems {
		total += item.Subtotal
	}

	order := domain.Order{
		ID:          orderIDPrefix + s.newID(),
		BuyerID:     cmd.Actor.ID,
		SellerID:    sellerID,
		Items:       lineItems,
		TotalAmount: total,
		Currency:    currency,
		Status:      domain.OrderStatusPending,
		Payment:     domain.PaymentRecord{Status: domain.PaymentStatusPending},
		Notes:       domain.OrderNotes{Buyer: strings.TrimSpace(cmd.BuyerNote)},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	charge, err := s.payments.Charge(ctx, payments.ChargeRequest{
		EntityID:       order.ID,
		PayerID:        cmd.Actor.ID,
		Amount:         total,
		Currency:       currency,
		Method:         cmd.Method,
		IdempotencyKey: order.ID,
	})
	if err != nil {
		return domain.Order{}, fmt.Errorf("order: charge payment: %w", err)
	}
	order.Payment.Method = strings.TrimSpace(cmd.Method)
	order.Payment.TransactionID = charge.TransactionID
	if charge.Succeeded() {
		order.Payment.Status = domain.PaymentStatusPaid
	} else {
		order.Payment.Status = domain.PaymentStatusFailed
	}

	AppendOrderTracking(&order, s.recorder.OrderTracking(domain.OrderStatusPending, "order placed", ""))

	err = s.runInTx(ctx, func(txCtx context.Context) error {
		// Firestore rejects any read after the first buffered write, so the
		// availability reads all run before the increments and the insert.
		for _, item := range order.Items {
			product, err := s.products.FindByID(txCtx, item.ProductRef)
			if err != nil {
				return mapRepositoryError(err)
			}
			if product.Available < item.Quantity {
				return fmt.Errorf("%w: insufficient stock for product %s", ErrValidation, item.ProductRef)
			}
		}
		for _, item := range order.Items {
			if err := s.products.ApplyAvailabilityDelta(txCtx, item.ProductRef, -item.Quantity, now); err != nil {
				return mapRepositoryError(err)
			}
		}
		if err := s.orders.Insert(txCtx, order); err != nil {
			return mapRepositoryError(err)
		}
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.publishEvent(ctx, "", order, cmd.Actor, now)
	return order, nil
}

func (s *orderService) Transition(ctx context.Context, cmd OrderTransitionCommand) (domain.Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", ErrValidation)
	}
	if !domain.ValidOrderStatus(string(cmd.Target)) {
		return domain.Order{}, fmt.Errorf("%w: unknown order status %q", ErrValidation, cmd.Target)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return domain.Order{}, mapRepositoryError(err)
	}

	if err := authorizeOrderTransition(cmd.Actor, order, cmd.Target); err != nil {
		return domain.Order{}, err
	}
	if err := domain.Transition(domain.KindOrder, string(order.Status), string(cmd.Target)); err != nil {
		return domain.Order{}, fmt.Errorf("%w: %w", ErrInvalidTransition, err)
	}

	now := s.now()
	prev := order.Status

	order.Status = cmd.Target
	order.UpdatedAt = now
	s.applySideEffects(&order, cmd.Target, cmd.Message, now)
	AppendOrderTracking(&order, s.recorder.OrderTracking(cmd.Target, cmd.Message, cmd.Location))

	err = s.runInTx(ctx, func(txCtx context.Context) error {
		// The status-check read must come before the restock increments;
		// Firestore rejects reads once a write is buffered.
		if err := s.orders.UpdateWithStatusCheck(txCtx, order, prev); err != nil {
			return mapRepositoryError(err)
		}
		if cmd.Target == domain.OrderStatusCancelled {
			for _, item := range order.Items {
				if err := s.products.ApplyAvailabilityDelta(txCtx, item.ProductRef, item.Quantity, now); err != nil {
					return mapRepositoryError(err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	if cmd.Target == domain.OrderStatusRefunded {
		s.enqueueRefund(ctx, order, cmd.Message, cmd.Actor, now)
	}
	s.publishEvent(ctx, string(prev), order, cmd.Actor, now)
	return order, nil
}

func (s *orderService) Cancel(ctx context.Context, cmd CancelOrderCommand) (domain.Order, error) {
	reason := strings.TrimSpace(cmd.Reason)
	order, err := s.Transition(ctx, OrderTransitionCommand{
		Actor:   cmd.Actor,
		OrderID: cmd.OrderID,
		Target:  domain.OrderStatusCancelled,
		Message: reason,
	})
	if err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

func (s *orderService) Get(ctx context.Context, actor domain.Actor, orderID string) (domain.Order, error) {
	order, err := s.orders.FindByID(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return domain.Order{}, mapRepositoryError(err)
	}
	if !canViewOrder(actor, order) {
		return domain.Order{}, fmt.Errorf("%w: order %s", ErrForbidden, order.ID)
	}
	return order, nil
}

func (s *orderService) List(ctx context.Context, query OrderListQuery) (domain.CursorPage[domain.Order], error) {
	filter := repositories.OrderListFilter{
		Status:     query.Status,
		DateRange:  domain.RangeQuery[time.Time]{From: query.From, To: query.To},
		Pagination: query.Pagination,
	}
	switch {
	case query.Actor.IsAdmin():
	case query.Actor.Role == domain.RoleSeller:
		filter.SellerID = query.Actor.ID
	default:
		filter.BuyerID = query.Actor.ID
	}

	page, err := s.orders.List(ctx, filter)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, mapRepositoryError(err)
	}
	return page, nil
}

// buildLineItems snapshots the referenced products. All items must belong to
// one seller. Availability is checked here so an oversold order is rejected
// before the payment is charged; the transaction re-checks under isolation.
func (s *orderService) buildLineItems(ctx context.Context, items []OrderItemInput) ([]domain.OrderLineItem, string, error) {
	lineItems := make([]domain.OrderLineItem, 0, len(items))
	sellerID := ""
	for _, item := range items {
		product, err := s.products.FindByID(ctx, item.ProductID)
		if err != nil {
			return nil, "", mapRepositoryError(err)
		}
		if product.Available < item.Quantity {
			return nil, "", fmt.Errorf("%w: insufficient stock for product %s", ErrValidation, product.ID)
		}
		if sellerID == "" {
			sellerID = product.SellerID
		} else if sellerID != product.SellerID {
			return nil, "", fmt.Errorf("%w: all items must belong to one seller", ErrValidation)
		}
		lineItems = append(lineItems, domain.OrderLineItem{
			ProductRef: product.ID,
			Name:       product.Name,
			Quantity:   item.Quantity,
			UnitPrice:  product.UnitPrice,
			Unit:       product.Unit,
			Subtotal:   product.UnitPrice * int64(item.Quantity),
		})
	}
	return lineItems, sellerID, nil
}

// applySideEffects stamps the bookkeeping keyed purely on the new status.
func (s *orderService) applySideEffects(order *domain.Order, status domain.OrderStatus, message string, now time.Time) {
	switch status {
	case domain.OrderStatusConfirmed:
		order.ConfirmedAt = &now
	case domain.OrderStatusDelivered:
		order.DeliveredAt = &now
	case domain.OrderStatusCancelled:
		order.CancelledAt = &now
		if trimmed := strings.TrimSpace(message); trimmed != "" {
			order.CancelReason = &trimmed
		}
	case domain.OrderStatusRefunded:
		order.RefundedAt = &now
		order.Payment.Status = domain.PaymentStatusRefundPending
	}
}

func (s *orderService) enqueueRefund(ctx context.Context, order domain.Order, reason string, actor domain.Actor, now time.Time) {
	if s.refunds == nil {
		return
	}
	_, err := s.refunds.PublishRefundJob(ctx, RefundJobMessage{
		RefundID:    refundIDPrefix + s.newID(),
		EntityKind:  domain.KindOrder,
		EntityID:    order.ID,
		Amount:      order.TotalAmount,
		Reason:      reason,
		RequestedBy: actor.ID,
		QueuedAt:    now,
	})
	if err != nil {
		s.logger(ctx, "order.refund.enqueue.failed", map[string]any{
			"order": order.ID,
			"error": err.Error(),
		})
	}
}

func (s *orderService) publishEvent(ctx context.Context, prev string, order domain.Order, actor domain.Actor, now time.Time) {
	if s.events == nil {
		return
	}
	_, err := s.events.PublishLifecycleEvent(ctx, LifecycleEventMessage{
		EventID:        eventIDPrefix + s.newID(),
		EntityKind:     domain.KindOrder,
		EntityID:       order.ID,
		PreviousStatus: prev,
		NewStatus:      string(order.Status),
		ActorID:        actor.ID,
		ActorRole:      string(actor.Role),
		OccurredAt:     now,
	})
	if err != nil {
		s.logger(ctx, "order.event.publish.failed", map[string]any{
			"order":  order.ID,
			"status": string(order.Status),
			"error":  err.Error(),
		})
	}
}

func (s *orderService) runInTx(ctx context.Context, fn func(context.Context) error) error {
	if s.unitOfWork == nil {
		return fn(ctx)
	}
	return s.unitOfWork.RunInTx(ctx, fn)
}

func (s *orderService) now() time.Time {
	return s.clock()
}

// authorizeOrderTransition enforces the role rules: the buyer may only
// cancel, the seller drives fulfilment, refund bookkeeping is admin-only.
func authorizeOrderTransition(actor domain.Actor, order domain.Order, target domain.OrderStatus) error {
	if actor.IsAdmin() {
		return nil
	}
	switch {
	case actor.ID == order.BuyerID:
		if target == domain.OrderStatusCancelled {
			return nil
		}
	case actor.ID == order.SellerID:
		if target != domain.OrderStatusRefunded {
			return nil
		}
	}
	return fmt.Errorf("%w: %s may not move order %s to %s", ErrForbidden, actor.ID, order.ID, target)
}

func canViewOrder(actor domain.Actor, order domain.Order) bool {
	return actor.IsAdmin() || actor.ID == order.BuyerID || actor.ID == order.SellerID
}
