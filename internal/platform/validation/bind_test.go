package validation

import (
	"bytes"
	"errors"
	"net/http/httptest"
	"testing"
)

type bookingPayload struct {
	ListingID string `json:"listing_id" validate:"required"`
	Date      string `json:"date" validate:"required,slot_date"`
	Time      string `json:"time" validate:"required,slot_time"`
}

func TestDecodeAndValidateAcceptsValidPayload(t *testing.T) {
	v := New()
	req := httptest.NewRequest("POST", "/bookings", bytes.NewBufferString(`{"listing_id":"lst_1","date":"2025-07-01","time":"14:30"}`))

	var payload bookingPayload
	if err := DecodeAndValidate(req, &payload, v); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payload.ListingID != "lst_1" {
		t.Errorf("unexpected listing id: %s", payload.ListingID)
	}
}

func TestDecodeAndValidateRejectsMalformedJSON(t *testing.T) {
	v := New()
	req := httptest.NewRequest("POST", "/bookings", bytes.NewBufferString(`{"listing_id":`))

	var payload bookingPayload
	err := DecodeAndValidate(req, &payload, v)
	if err == nil {
		t.Fatal("expected decode error")
	}
	var bindErr *BindError
	if !errors.As(err, &bindErr) {
		t.Fatalf("expected BindError, got %T", err)
	}
	if bindErr.Code != "invalid_request_body" {
		t.Errorf("unexpected code: %s", bindErr.Code)
	}
}

func TestDecodeAndValidateRejectsUnknownFields(t *testing.T) {
	v := New()
	req := httptest.NewRequest("POST", "/bookings", bytes.NewBufferString(`{"listing_id":"lst_1","date":"2025-07-01","time":"14:30","bogus":true}`))

	var payload bookingPayload
	if err := DecodeAndValidate(req, &payload, v); err == nil {
		t.Fatal("expected unknown field rejection")
	}
}

func TestDecodeAndValidateReportsFieldErrors(t *testing.T) {
	v := New()
	req := httptest.NewRequest("POST", "/bookings", bytes.NewBufferString(`{"listing_id":"lst_1","date":"July 1st","time":"25:99"}`))

	var payload bookingPayload
	err := DecodeAndValidate(req, &payload, v)
	if err == nil {
		t.Fatal("expected validation error")
	}
	var bindErr *BindError
	if !errors.As(err, &bindErr) {
		t.Fatalf("expected BindError, got %T", err)
	}
	if bindErr.Code != "validation_failed" {
		t.Errorf("unexpected code: %s", bindErr.Code)
	}
	if len(bindErr.Fields) != 2 {
		t.Errorf("expected 2 field errors, got %v", bindErr.Fields)
	}
}
