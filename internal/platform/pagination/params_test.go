package pagination

import (
	"errors"
	"net/url"
	"testing"
)

func TestParseDefaults(t *testing.T) {
	params, err := Parse(url.Values{}, Options{})
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if params.PageSize != DefaultPageSize {
		t.Errorf("expected default page size %d, got %d", DefaultPageSize, params.PageSize)
	}
	if params.PageToken != "" {
		t.Errorf("expected empty page token, got %q", params.PageToken)
	}
	if len(params.Orders) != 0 {
		t.Errorf("expected no orders, got %v", params.Orders)
	}
}

func TestParsePageSizeClamped(t *testing.T) {
	values := url.Values{"pageSize": []string{"500"}}
	params, err := Parse(values, Options{MaxPageSize: 100})
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if params.PageSize != 100 {
		t.Errorf("expected clamped page size 100, got %d", params.PageSize)
	}
}

func TestParsePageSizeRejectsInvalid(t *testing.T) {
	for _, raw := range []string{"abc", "0", "-5"} {
		values := url.Values{"pageSize": []string{raw}}
		if _, err := Parse(values, Options{}); !errors.Is(err, ErrInvalidPageSize) {
			t.Errorf("pageSize=%q: expected ErrInvalidPageSize, got %v", raw, err)
		}
	}
}

func TestParseOrderBy(t *testing.T) {
	values := url.Values{"orderBy": []string{"created_at desc, status"}}
	params, err := Parse(values, Options{AllowedOrderFields: []string{"created_at", "status"}})
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(params.Orders) != 2 {
		t.Fatalf("expected 2 orders, got %v", params.Orders)
	}
	if params.Orders[0].Field != "created_at" || !params.Orders[0].Desc {
		t.Errorf("unexpected first order: %+v", params.Orders[0])
	}
	if params.Orders[1].Field != "status" || params.Orders[1].Desc {
		t.Errorf("unexpected second order: %+v", params.Orders[1])
	}
}

func TestParseOrderByRejectsUnknownField(t *testing.T) {
	values := url.Values{"orderBy": []string{"secret_field"}}
	if _, err := Parse(values, Options{AllowedOrderFields: []string{"created_at"}}); !errors.Is(err, ErrInvalidOrderBy) {
		t.Errorf("expected ErrInvalidOrderBy, got %v", err)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	cursor := Cursor{StartAfter: []any{"2025-06-01T00:00:00Z", "ord_123"}}
	token, err := EncodeToken(cursor)
	if err != nil {
		t.Fatalf("EncodeToken returned error: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	decoded, err := DecodeToken(token)
	if err != nil {
		t.Fatalf("DecodeToken returned error: %v", err)
	}
	if len(decoded.StartAfter) != 2 {
		t.Fatalf("unexpected cursor: %+v", decoded)
	}
	if decoded.StartAfter[1] != "ord_123" {
		t.Errorf("unexpected cursor value: %v", decoded.StartAfter[1])
	}
}

func TestDecodeTokenRejectsGarbage(t *testing.T) {
	if _, err := DecodeToken("!!not-base64!!"); !errors.Is(err, ErrInvalidPageToken) {
		t.Errorf("expected ErrInvalidPageToken, got %v", err)
	}
}

func TestEncodeTokenEmptyCursor(t *testing.T) {
	token, err := EncodeToken(Cursor{})
	if err != nil {
		t.Fatalf("EncodeToken returned error: %v", err)
	}
	if token != "" {
		t.Errorf("expected empty token for empty cursor, got %q", token)
	}
}
