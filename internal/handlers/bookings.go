package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/harvestlink/api/internal/domain"
	"github.com/harvestlink/api/internal/platform/httpx"
	"github.com/harvestlink/api/internal/platform/validation"
	"github.com/harvestlink/api/internal/services"
)

const slotDateLayout = "2006-01-02"

// BookingHandlers exposes the service booking lifecycle endpoints.
type BookingHandlers struct {
	bookings services.BookingService
	validate *validatorv10.Validate
}

// NewBookingHandlers constructs a new BookingHandlers instance.
func NewBookingHandlers(bookings services.BookingService, validate *validatorv10.Validate) *BookingHandlers {
	if validate == nil {
		validate = validation.New()
	}
	return &BookingHandlers{
		bookings: bookings,
		validate: validate,
	}
}

// Routes registers the /bookings endpoints.
func (h *BookingHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/", h.createBooking)
	r.Get("/", h.listBookings)
	r.Get("/slots:check", h.checkSlot)
	r.Get("/{bookingID}", h.getBooking)
	r.Post("/{bookingID}:transition", h.transitionBooking)
	r.Post("/{bookingID}:reschedule", h.rescheduleBooking)
	r.Post("/{bookingID}:cancel", h.cancelBooking)
}

type bookingPricingRequest struct {
	Type        string `json:"type" validate:"required"`
	BaseAmount  int64  `json:"base_amount" validate:"min=0"`
	FinalAmount int64  `json:"final_amount" validate:"min=0"`
	Currency    string `json:"currency" validate:"required,len=3"`
}

type createBookingRequest struct {
	ProviderID    string                `json:"provider_id" validate:"required"`
	ListingID     string                `json:"listing_id" validate:"required"`
	Date          string                `json:"date" validate:"required,slot_date"`
	Time          string                `json:"time" validate:"required,slot_time"`
	FieldSize     string                `json:"field_size" validate:"max=100"`
	Pricing       bookingPricingRequest `json:"pricing" validate:"required"`
	PaymentMethod string                `json:"payment_method" validate:"required"`
	Notes         string                `json:"notes" validate:"max=2000"`
}

type transitionBookingRequest struct {
	Status  string `json:"status" validate:"required"`
	Message string `json:"message" validate:"max=2000"`
}

type rescheduleBookingRequest struct {
	Date    string `json:"date" validate:"required,slot_date"`
	Time    string `json:"time" validate:"required,slot_time"`
	Message string `json:"message" validate:"max=2000"`
}

type cancelBookingRequest struct {
	Reason string `json:"reason" validate:"required,max=2000"`
}

func (h *BookingHandlers) createBooking(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := requireActor(ctx, w)
	if !ok {
		return
	}

	var req createBookingRequest
	if err := validation.DecodeAndValidate(r, &req, h.validate); err != nil {
		writeLifecycleError(ctx, w, err)
		return
	}

	date, err := time.Parse(slotDateLayout, req.Date)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "date must be a calendar date", http.StatusBadRequest))
		return
	}

	booking, err := h.bookings.Create(ctx, services.CreateBookingCommand{
		Actor:      actor,
		ProviderID: strings.TrimSpace(req.ProviderID),
		ListingID:  strings.TrimSpace(req.ListingID),
		Date:       date,
		Time:       strings.TrimSpace(req.Time),
		FieldSize:  strings.TrimSpace(req.FieldSize),
		Pricing: domain.PricingSnapshot{
			Type:        strings.TrimSpace(req.Pricing.Type),
			BaseAmount:  req.Pricing.BaseAmount,
			FinalAmount: req.Pricing.FinalAmount,
			Currency:    strings.ToUpper(strings.TrimSpace(req.Pricing.Currency)),
		},
		Method: strings.TrimSpace(req.PaymentMethod),
		Notes:  strings.TrimSpace(req.Notes),
	})
	if err != nil {
		writeLifecycleError(ctx, w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, bookingResponse{Booking: buildBookingPayload(booking)})
}

func (h *BookingHandlers) transitionBooking(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := requireActor(ctx, w)
	if !ok {
		return
	}

	bookingID := strings.TrimSpace(chi.URLParam(r, "bookingID"))
	if bookingID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "booking id is required", http.StatusBadRequest))
		return
	}

	var req transitionBookingRequest
	if err := validation.DecodeAndValidate(r, &req, h.validate); err != nil {
		writeLifecycleError(ctx, w, err)
		return
	}

	status := strings.ToLower(strings.TrimSpace(req.Status))
	if !domain.ValidBookingStatus(status) {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "status must be a valid booking status", http.StatusBadRequest))
		return
	}

	booking, err := h.bookings.Transition(ctx, services.BookingTransitionCommand{
		Actor:     actor,
		BookingID: bookingID,
		Target:    domain.BookingStatus(status),
		Message:   strings.TrimSpace(req.Message),
	})
	if err != nil {
		writeLifecycleError(ctx, w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, bookingResponse{Booking: buildBookingPayload(booking)})
}

func (h *BookingHandlers) rescheduleBooking(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := requireActor(ctx, w)
	if !ok {
		return
	}

	bookingID := strings.TrimSpace(chi.URLParam(r, "bookingID"))
	if bookingID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "booking id is required", http.StatusBadRequest))
		return
	}

	var req rescheduleBookingRequest
	if err := validation.DecodeAndValidate(r, &req, h.validate); err != nil {
		writeLifecycleError(ctx, w, err)
		return
	}

	date, err := time.Parse(slotDateLayout, req.Date)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "date must be a calendar date", http.StatusBadRequest))
		return
	}

	booking, err := h.bookings.Reschedule(ctx, services.RescheduleBookingCommand{
		Actor:     actor,
		BookingID: bookingID,
		NewDate:   date,
		NewTime:   strings.TrimSpace(req.Time),
		Message:   strings.TrimSpace(req.Message),
	})
	if err != nil {
		writeLifecycleError(ctx, w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, bookingResponse{Booking: buildBookingPayload(booking)})
}

func (h *BookingHandlers) cancelBooking(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := requireActor(ctx, w)
	if !ok {
		return
	}

	bookingID := strings.TrimSpace(chi.URLParam(r, "bookingID"))
	if bookingID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "booking id is required", http.StatusBadRequest))
		return
	}

	var req cancelBookingRequest
	if err := validation.DecodeAndValidate(r, &req, h.validate); err != nil {
		writeLifecycleError(ctx, w, err)
		return
	}

	booking, err := h.bookings.Cancel(ctx, services.CancelBookingCommand{
		Actor:     actor,
		BookingID: bookingID,
		Reason:    strings.TrimSpace(req.Reason),
	})
	if err != nil {
		writeLifecycleError(ctx, w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, bookingResponse{Booking: buildBookingPayload(booking)})
}

func (h *BookingHandlers) getBooking(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := requireActor(ctx, w)
	if !ok {
		return
	}

	bookingID := strings.TrimSpace(chi.URLParam(r, "bookingID"))
	if bookingID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "booking id is required", http.StatusBadRequest))
		return
	}

	booking, err := h.bookings.Get(ctx, actor, bookingID)
	if err != nil {
		writeLifecycleError(ctx, w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, bookingResponse{Booking: buildBookingPayload(booking)})
}

func (h *BookingHandlers) listBookings(w http.ResponseWriter, r *http.Request) {
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

	statuses := make([]domain.BookingStatus, 0)
	for _, raw := range parseFilterValues(r.URL.Query()["status"]) {
		if !domain.ValidBookingStatus(raw) {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "status filter must name valid booking statuses", http.StatusBadRequest))
			return
		}
		statuses = append(statuses, domain.BookingStatus(raw))
	}

	from, to, err := parseTimeRange(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	result, err := h.bookings.List(ctx, services.BookingListQuery{
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

	items := make([]bookingPayload, 0, len(result.Items))
	for _, booking := range result.Items {
		items = append(items, buildBookingPayload(booking))
	}

	httpx.WriteJSON(w, http.StatusOK, bookingListResponse{
		Items:         items,
		NextPageToken: strings.TrimSpace(result.NextPageToken),
	})
}

func (h *BookingHandlers) checkSlot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := requireActor(ctx, w); !ok {
		return
	}

	query := r.URL.Query()
	listingID := strings.TrimSpace(query.Get("listing_id"))
	rawDate := strings.TrimSpace(query.Get("date"))
	timeOfDay := strings.TrimSpace(query.Get("time"))
	if listingID == "" || rawDate == "" || timeOfDay == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "listing_id, date and time are required", http.StatusBadRequest))
		return
	}

	date, err := time.Parse(slotDateLayout, rawDate)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "date must be a calendar date", http.StatusBadRequest))
		return
	}

	taken, err := h.bookings.CheckSlot(ctx, listingID, date, timeOfDay, strings.TrimSpace(query.Get("exclude")))
	if err != nil {
		writeLifecycleError(ctx, w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, slotCheckResponse{
		ListingID: listingID,
		Date:      rawDate,
		Time:      timeOfDay,
		Available: !taken,
	})
}

type bookingListResponse struct {
	Items         []bookingPayload `json:"items"`
	NextPageToken string           `json:"next_page_token,omitempty"`
}

type bookingResponse struct {
	Booking bookingPayload `json:"booking"`
}

type slotCheckResponse struct {
	ListingID string `json:"listing_id"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	Available bool   `json:"available"`
}

type bookingPayload struct {
	ID             string                  `json:"id"`
	CustomerID     string                  `json:"customer_id"`
	ProviderID     string                  `json:"provider_id"`
	Slot           slotPayload             `json:"slot"`
	FieldSize      string                  `json:"field_size,omitempty"`
	Pricing        pricingPayload          `json:"pricing"`
	Payment        paymentPayload          `json:"payment"`
	Status         string                  `json:"status"`
	Notes          string                  `json:"notes,omitempty"`
	Timeline       []timelineEntryPayload  `json:"timeline"`
	Cancellation   *cancellationPayload    `json:"cancellation,omitempty"`
	CreatedAt      string                  `json:"created_at"`
	UpdatedAt      string                  `json:"updated_at,omitempty"`
	CompletedAt    string                  `json:"completed_at,omitempty"`
	LastActivityAt string                  `json:"last_activity_at,omitempty"`
}

type slotPayload struct {
	ListingID string `json:"listing_id"`
	Date      string `json:"date"`
	Time      string `json:"time"`
}

type pricingPayload struct {
	Type        string `json:"type,omitempty"`
	BaseAmount  int64  `json:"base_amount"`
	FinalAmount int64  `json:"final_amount"`
	Currency    string `json:"currency"`
}

type timelineEntryPayload struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	Actor     string `json:"actor,omitempty"`
	Timestamp string `json:"timestamp"`
}

type cancellationPayload struct {
	Reason       string `json:"reason"`
	Actor        string `json:"actor"`
	Timestamp    string `json:"timestamp"`
	RefundAmount int64  `json:"refund_amount"`
	RefundStatus string `json:"refund_status"`
}

func buildBookingPayload(booking domain.Booking) bookingPayload {
	payload := bookingPayload{
		ID:         strings.TrimSpace(booking.ID),
		CustomerID: strings.TrimSpace(booking.CustomerID),
		ProviderID: strings.TrimSpace(booking.ProviderID),
		Slot: slotPayload{
			ListingID: strings.TrimSpace(booking.Slot.ListingID),
			Date:      booking.Slot.Date.UTC().Format(slotDateLayout),
			Time:      strings.TrimSpace(booking.Slot.Time),
		},
		FieldSize: strings.TrimSpace(booking.FieldSize),
		Pricing: pricingPayload{
			Type:        strings.TrimSpace(booking.Pricing.Type),
			BaseAmount:  booking.Pricing.BaseAmount,
			FinalAmount: booking.Pricing.FinalAmount,
			Currency:    strings.ToUpper(strings.TrimSpace(booking.Pricing.Currency)),
		},
		Payment: paymentPayload{
			Status:        string(booking.Payment.Status),
			Method:        strings.TrimSpace(booking.Payment.Method),
			TransactionID: strings.TrimSpace(booking.Payment.TransactionID),
		},
		Status:         string(booking.Status),
		Notes:          strings.TrimSpace(booking.Notes),
		Timeline:       make([]timelineEntryPayload, 0, len(booking.Timeline)),
		CreatedAt:      formatTime(booking.CreatedAt),
		UpdatedAt:      formatTime(booking.UpdatedAt),
		CompletedAt:    formatTime(pointerTime(booking.CompletedAt)),
		LastActivityAt: formatTime(booking.LastActivityAt),
	}

	for _, entry := range booking.Timeline {
		payload.Timeline = append(payload.Timeline, timelineEntryPayload{
			Status:    string(entry.Status),
			Message:   strings.TrimSpace(entry.Message),
			Actor:     strings.TrimSpace(entry.Actor),
			Timestamp: formatTime(entry.Timestamp),
		})
	}

	if booking.Cancellation != nil {
		payload.Cancellation = &cancellationPayload{
			Reason:       strings.TrimSpace(booking.Cancellation.Reason),
			Actor:        strings.TrimSpace(booking.Cancellation.Actor),
			Timestamp:    formatTime(booking.Cancellation.Timestamp),
			RefundAmount: booking.Cancellation.RefundAmount,
			RefundStatus: string(booking.Cancellation.RefundStatus),
		}
	}

	return payload
}
