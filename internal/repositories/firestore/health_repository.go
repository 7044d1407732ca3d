package firestore

import (
	"context"
	"errors"
	"time"

	"google.golang.org/api/iterator"

	"github.com/harvestlink/api/internal/domain"
	pfirestore "github.com/harvestlink/api/internal/platform/firestore"
)

// HealthRepository probes the Firestore dependency for health endpoints.
type HealthRepository struct {
	provider *pfirestore.Provider
}

// NewHealthRepository builds a Firestore-backed health repository.
func NewHealthRepository(provider *pfirestore.Provider) (*HealthRepository, error) {
	if provider == nil {
		return nil, errors.New("health repository: firestore provider is required")
	}
	return &HealthRepository{provider: provider}, nil
}

// Collect runs a lightweight read against Firestore and reports the outcome.
// The service layer merges this with process-level metadata.
func (r *HealthRepository) Collect(ctx context.Context) (domain.SystemHealthReport, error) {
	started := time.Now()
	check := domain.SystemHealthCheck{
		Status:    domain.HealthStatusOK,
		Detail:    "reachable",
		CheckedAt: started.UTC(),
	}

	if err := r.probe(ctx); err != nil {
		check.Status = domain.HealthStatusError
		check.Detail = "unreachable"
		check.Error = err.Error()
	}
	check.Latency = time.Since(started)

	report := domain.SystemHealthReport{
		Status:      check.Status,
		Checks:      map[string]domain.SystemHealthCheck{"firestore": check},
		GeneratedAt: time.Now().UTC(),
	}
	return report, nil
}

func (r *HealthRepository) probe(ctx context.Context) error {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	iter := client.Collection("healthchecks").Limit(1).Documents(ctx)
	defer iter.Stop()

	if _, err := iter.Next(); err != nil && !errors.Is(err, iterator.Done) {
		return pfirestore.WrapError("healthchecks.probe", err)
	}
	return nil
}
