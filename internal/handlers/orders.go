package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/harvestlink/api/internal/domain"
	"github.com/harvestlink/api/internal/platform/httpx"
	"github.com/harvestlink/api/internal/platform/validation"
	"github.com/harvestlink/api/internal/services"
)

// OrderHandlers exposes the order lifecycle endpoints.
type OrderHandlers struct {
	orders   services.OrderService
	validate *validatorv10.Validate
}

// NewOrderHandlers constructs a new OrderHandlers instance.
func NewOrderHandlers(orders services.OrderService, validate *validatorv10.Validate) *OrderHandlers {
	if validate == nil {
		validate = validation.New()
	}
	return &OrderHandlers{
		orders:   orders,
		validate: validate,
	}
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/", h.createOrder)
	r.Get("/", h.listOrders)
	r.Get("/{orderID}", h.getOrder)
	r.Post("/{orderID}:transition", h.transitionOrder)
	r.Post("/{orderID}:cancel", h.cancelOrder)
}

type orderItemRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
}

type createOrderRequest struct {
	Items         []orderItemRequest `json:"items" validate:"required,min=1,dive"`
	Currency      string             `json:"currency" validate:"required,len=3"`
	PaymentMethod string             `json:"payment_method" validate:"required"`
	BuyerNote     string             `json:"buyer_note" validate:"max=2000"`
}

type transitionOrderRequest struct {
	Status   string `json:"status" validate:"required"`
	Message  string `json:"message" validate:"max=2000"`
	Location string `json:"location" validate:"max=200"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason" validate:"required,max=2000"`
}

func (h *OrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := requireActor(ctx, w)
	if !ok {
		return
	}

	var req createOrderRequest
	if err := validation.DecodeAndValidate(r, &req, h.validate); err != nil {
		writeLifecycleError(ctx, w, err)
		return
	}

	items := make([]services.OrderItemInput, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, services.OrderItemInput{
			ProductID: strings.TrimSpace(item.ProductID),
			Quantity:  item.Quantity,
		})
	}

	order, err := h.orders.Create(ctx, services.CreateOrderCommand{
		Actor:     actor,
		Items:     items,
		Currency:  strings.ToUpper(strings.TrimSpace(req.Currency)),
		Method:    strings.TrimSpace(req.PaymentMethod),
		BuyerNote: strings.TrimSpace(req.BuyerNote),
	})
	if err != nil {
		writeLifecycleError(ctx, w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) transitionOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := requireActor(ctx, w)
	if !ok {
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	var req transitionOrderRequest
	if err := validation.DecodeAndValidate(r, &req, h.validate); err != nil {
		writeLifecycleError(ctx, w, err)
		return
	}

	status := strings.ToLower(strings.TrimSpace(req.Status))
	if !domain.ValidOrderStatus(status) {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "status must be a valid order status", http.StatusBadRequest))
		return
	}

	order, err := h.orders.Transition(ctx, services.OrderTransitionCommand{
		Actor:    actor,
		OrderID:  orderID,
		Target:   domain.OrderStatus(status),
		Message:  strings.TrimSpace(req.Message),
		Location: strings.TrimSpace(req.Location),
	})
	if err != nil {
		writeLifecycleError(ctx, w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := requireActor(ctx, w)
	if !ok {
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	var req cancelOrderRequest
	if err := validation.DecodeAndValidate(r, &req, h.validate); err != nil {
		writeLifecycleError(ctx, w, err)
		return
	}

	order, err := h.orders.Cancel(ctx, services.CancelOrderCommand{
		Actor:   actor,
		OrderID: orderID,
		Reason:  strings.TrimSpace(req.Reason),
	})
	if err != nil {
		writeLifecycleError(ctx, w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := requireActor(ctx, w)
	if !ok {
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	order, err := h.orders.Get(ctx, actor, orderID)
	if err != nil {
		writeLifecycleError(ctx, w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := requireActor(ctx, w)
	if !ok {
		return
	}

	page, err := parseListBasics(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	statuses := make([]domain.OrderStatus, 0)
	for _, raw := range parseFilterValues(r.URL.Query()["status"]) {
		if !domain.ValidOrderStatus(raw) {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "status filter must name valid order statuses", http.StatusBadRequest))
			return
		}
		statuses = append(statuses, domain.OrderStatus(raw))
	}

	from, to, err := parseTimeRange(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	result, err := h.orders.List(ctx, services.OrderListQuery{
		Actor:      actor,
		Status:     statuses,
		From:       from,
		To:         to,
		Pagination: page,
	})
	if err != nil {
		writeLifecycleError(ctx, w, err)
		return
	}

	items := make([]orderPayload, 0, len(result.Items))
	for _, order := range result.Items {
		items = append(items, buildOrderPayload(order))
	}

	httpx.WriteJSON(w, http.StatusOK, orderListResponse{
		Items:         items,
		NextPageToken: strings.TrimSpace(result.NextPageToken),
	})
}

type orderListResponse struct {
	Items         []orderPayload `json:"items"`
	NextPageToken string         `json:"next_page_token,omitempty"`
}

type orderResponse struct {
	Order orderPayload `json:"order"`
}

type orderPayload struct {
	ID             string                  `json:"id"`
	BuyerID        string                  `json:"buyer_id"`
	SellerID       string                  `json:"seller_id"`
	Status         string                  `json:"status"`
	Currency       string                  `json:"currency"`
	TotalAmount    int64                   `json:"total_amount"`
	Items          []orderItemPayload      `json:"items"`
	Payment        paymentPayload          `json:"payment"`
	Notes          *orderNotesPayload      `json:"notes,omitempty"`
	Tracking       []trackingUpdatePayload `json:"tracking"`
	CancelReason   *string                 `json:"cancel_reason,omitempty"`
	CreatedAt      string                  `json:"created_at"`
	UpdatedAt      string                  `json:"updated_at,omitempty"`
	ConfirmedAt    string                  `json:"confirmed_at,omitempty"`
	DeliveredAt    string                  `json:"delivered_at,omitempty"`
	CancelledAt    string                  `json:"cancelled_at,omitempty"`
	RefundedAt     string                  `json:"refunded_at,omitempty"`
	LastActivityAt string                  `json:"last_activity_at,omitempty"`
}

type orderItemPayload struct {
	ProductRef string `json:"product_ref"`
	Name       string `json:"name"`
	Quantity   int    `json:"quantity"`
	UnitPrice  int64  `json:"unit_price"`
	Unit       string `json:"unit,omitempty"`
	Subtotal   int64  `json:"subtotal"`
}

type paymentPayload struct {
	Status        string `json:"status"`
	Method        string `json:"method,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`
}

type orderNotesPayload struct {
	Buyer  string `json:"buyer,omitempty"`
	Seller string `json:"seller,omitempty"`
}

type trackingUpdatePayload struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	Location  string `json:"location,omitempty"`
	Timestamp string `json:"timestamp"`
}

func buildOrderPayload(order domain.Order) orderPayload {
	payload := orderPayload{
		ID:          strings.TrimSpace(order.ID),
		BuyerID:     strings.TrimSpace(order.BuyerID),
		SellerID:    strings.TrimSpace(order.SellerID),
		Status:      string(order.Status),
		Currency:    strings.ToUpper(strings.TrimSpace(order.Currency)),
		TotalAmount: order.TotalAmount,
		Items:       make([]orderItemPayload, 0, len(order.Items)),
		Payment: paymentPayload{
			Status:        string(order.Payment.Status),
			Method:        strings.TrimSpace(order.Payment.Method),
			TransactionID: strings.TrimSpace(order.Payment.TransactionID),
		},
		Tracking:       make([]trackingUpdatePayload, 0, len(order.Tracking)),
		CancelReason:   cloneStringPointer(order.CancelReason),
		CreatedAt:      formatTime(order.CreatedAt),
		UpdatedAt:      formatTime(order.UpdatedAt),
		ConfirmedAt:    formatTime(pointerTime(order.ConfirmedAt)),
		DeliveredAt:    formatTime(pointerTime(order.DeliveredAt)),
		CancelledAt:    formatTime(pointerTime(order.CancelledAt)),
		RefundedAt:     formatTime(pointerTime(order.RefundedAt)),
		LastActivityAt: formatTime(order.LastActivityAt),
	}

	for _, item := range order.Items {
		payload.Items = append(payload.Items, orderItemPayload{
			ProductRef: strings.TrimSpace(item.ProductRef),
			Name:       strings.TrimSpace(item.Name),
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			Unit:       strings.TrimSpace(item.Unit),
			Subtotal:   item.Subtotal,
		})
	}

	for _, update := range order.Tracking {
		payload.Tracking = append(payload.Tracking, trackingUpdatePayload{
			Status:    string(update.Status),
			Message:   strings.TrimSpace(update.Message),
			Location:  strings.TrimSpace(update.Location),
			Timestamp: formatTime(update.Timestamp),
		})
	}

	if order.Notes.Buyer != "" || order.Notes.Seller != "" {
		payload.Notes = &orderNotesPayload{
			Buyer:  strings.TrimSpace(order.Notes.Buyer),
			Seller: strings.TrimSpace(order.Notes.Seller),
		}
	}

	return payload
}
