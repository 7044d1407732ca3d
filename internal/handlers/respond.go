package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/harvestlink/api/internal/domain"
	"github.com/harvestlink/api/internal/platform/auth"
	"github.com/harvestlink/api/internal/platform/httpx"
	"github.com/harvestlink/api/internal/platform/pagination"
	"github.com/harvestlink/api/internal/platform/validation"
	"github.com/harvestlink/api/internal/services"
)

// requireActor extracts the authenticated actor or writes a 401 envelope.
func requireActor(ctx context.Context, w http.ResponseWriter) (domain.Actor, bool) {
	actor, ok := auth.ActorFromContext(ctx)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return domain.Actor{}, false
	}
	return actor, true
}

// writeLifecycleError maps service errors onto the JSON error envelope.
func writeLifecycleError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	var bindErr *validation.BindError
	if errors.As(err, &bindErr) {
		e := httpx.NewError(bindErr.Code, "request payload rejected", http.StatusBadRequest)
		if len(bindErr.Fields) > 0 {
			details := make(map[string]any, 1)
			fields := make(map[string]any, len(bindErr.Fields))
			for field, msg := range bindErr.Fields {
				fields[field] = msg
			}
			details["fields"] = fields
			e = e.WithDetails(details)
		}
		httpx.WriteError(ctx, w, e)
		return
	}

	switch {
	case errors.Is(err, services.ErrNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("not_found", "entity not found", http.StatusNotFound))
	case errors.Is(err, services.ErrForbidden):
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "actor may not perform this action", http.StatusForbidden))
	case errors.Is(err, services.ErrInvalidTransition):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_transition", err.Error(), http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrSlotConflict):
		httpx.WriteError(ctx, w, httpx.NewError("slot_conflict", "the requested slot is already booked", http.StatusConflict))
	case errors.Is(err, services.ErrConflict):
		httpx.WriteError(ctx, w, httpx.NewError("conflict", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrPastSchedule):
		httpx.WriteError(ctx, w, httpx.NewError("schedule_in_past", "the requested schedule is not in the future", http.StatusBadRequest))
	case errors.Is(err, services.ErrTooLateToModify):
		httpx.WriteError(ctx, w, httpx.NewError("too_late_to_modify", "the modification window for this booking has closed", http.StatusBadRequest))
	case errors.Is(err, services.ErrValidation):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "storage temporarily unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "failed to process request", http.StatusInternalServerError))
	}
}

// parseListBasics extracts the pagination values shared by every list endpoint.
func parseListBasics(r *http.Request) (domain.Pagination, error) {
	params, err := pagination.FromRequest(r, pagination.Options{
		DefaultPageSize: pagination.DefaultPageSize,
		MaxPageSize:     pagination.DefaultMaxPageSize,
	})
	if err != nil {
		return domain.Pagination{}, err
	}
	return domain.Pagination{
		PageSize:  params.PageSize,
		PageToken: params.PageToken,
	}, nil
}

func parseFilterValues(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{})
	filters := make([]string, 0, len(values))
	for _, raw := range values {
		for _, part := range strings.Split(raw, ",") {
			trimmed := strings.ToLower(strings.TrimSpace(part))
			if trimmed == "" {
				continue
			}
			if _, exists := seen[trimmed]; exists {
				continue
			}
			seen[trimmed] = struct{}{}
			filters = append(filters, trimmed)
		}
	}
	return filters
}

func parseTimeParam(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("timestamp is empty")
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts.UTC(), nil
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts.UTC(), nil
	}
	return time.Time{}, errors.New("must be an RFC3339 timestamp")
}

// parseTimeRange reads the optional created_after / created_before bounds.
func parseTimeRange(r *http.Request) (*time.Time, *time.Time, error) {
	var from, to *time.Time
	if raw := strings.TrimSpace(r.URL.Query().Get("created_after")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			return nil, nil, fmt.Errorf("created_after %s", err)
		}
		from = &ts
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("created_before")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			return nil, nil, fmt.Errorf("created_before %s", err)
		}
		to = &ts
	}
	return from, to, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func pointerTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

func cloneStringPointer(value *string) *string {
	if value == nil {
		return nil
	}
	copy := *value
	return &copy
}
