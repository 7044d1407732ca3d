package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// SimulatedProvider is a deterministic in-process stand-in for the real
// payment gateway. The outcome depends only on the request: non-positive
// amounts and methods prefixed "declined" fail, everything else succeeds.
type SimulatedProvider struct {
	clock func() time.Time
}

// SimulatedOption customises the simulated provider.
type SimulatedOption func(*SimulatedProvider)

// WithSimulatedClock injects a clock, used by tests.
func WithSimulatedClock(clock func() time.Time) SimulatedOption {
	return func(p *SimulatedProvider) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// NewSimulatedProvider constructs the simulated collaborator.
func NewSimulatedProvider(opts ...SimulatedOption) *SimulatedProvider {
	p := &SimulatedProvider{clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Charge reports the deterministic outcome for the request.
func (p *SimulatedProvider) Charge(_ context.Context, req ChargeRequest) (Result, error) {
	if req.EntityID == "" {
		return Result{}, errors.New("payments: entity id is required")
	}
	now := p.clock().UTC()
	result := Result{
		TransactionID: fmt.Sprintf("txn_%s", ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy())),
		Status:        StatusSucceeded,
		ProcessedAt:   now,
	}
	if req.Amount <= 0 || strings.HasPrefix(strings.ToLower(req.Method), "declined") {
		result.Status = StatusFailed
	}
	return result, nil
}
