package payments

import (
	"context"
	"time"
)

// Status enumerates the normalised outcomes reported by the collaborator.
type Status string

const (
	// StatusSucceeded indicates the charge was captured.
	StatusSucceeded Status = "succeeded"
	// StatusFailed indicates the charge was declined.
	StatusFailed Status = "failed"
)

// ChargeRequest describes a charge attempt for an order or booking.
type ChargeRequest struct {
	EntityID       string
	PayerID        string
	Amount         int64
	Currency       string
	Method         string
	IdempotencyKey string
}

// Result is the collaborator-reported outcome. The lifecycle core records it
// verbatim and never computes payment state itself.
type Result struct {
	TransactionID string
	Status        Status
	ProcessedAt   time.Time
}

// Succeeded reports whether the charge went through.
func (r Result) Succeeded() bool {
	return r.Status == StatusSucceeded
}

// Provider is the external payment collaborator contract.
type Provider interface {
	Charge(ctx context.Context, req ChargeRequest) (Result, error)
}
