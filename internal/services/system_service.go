package services

import (
	"context"
	"errors"
	"time"

	"github.com/harvestlink/api/internal/domain"
	"github.com/harvestlink/api/internal/repositories"
)

// SystemServiceDeps bundles collaborators for the system service.
type SystemServiceDeps struct {
	Health      repositories.HealthRepository
	Version     string
	Environment string
	Clock       func() time.Time
}

type systemService struct {
	health      repositories.HealthRepository
	version     string
	environment string
	clock       func() time.Time
}

// NewSystemService wires the health repository into a SystemService.
func NewSystemService(deps SystemServiceDeps) (SystemService, error) {
	if deps.Health == nil {
		return nil, errors.New("system service: health repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &systemService{
		health:      deps.Health,
		version:     deps.Version,
		environment: deps.Environment,
		clock:       func() time.Time { return clock().UTC() },
	}, nil
}

func (s *systemService) Health(ctx context.Context) (domain.SystemHealthReport, error) {
	report, err := s.health.Collect(ctx)
	if err != nil {
		report = domain.SystemHealthReport{
			Status: domain.HealthStatusError,
			Checks: map[string]domain.SystemHealthCheck{},
		}
	}
	report.Version = s.version
	report.Environment = s.environment
	if report.GeneratedAt.IsZero() {
		report.GeneratedAt = s.clock()
	}
	return report, nil
}
