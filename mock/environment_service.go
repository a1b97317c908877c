package mock

import (
	"context"

	"github.com/metastage/metastage"
)

var _ metastage.EnvironmentService = &EnvironmentService{}

// EnvironmentService is a mock environment service.
type EnvironmentService struct {
	ListEnvironmentsF func(ctx context.Context) ([]*metastage.Environment, error)
	GetEnvironmentF   func(ctx context.Context, id string) (*metastage.Environment, error)
	NextEnvironmentF  func(ctx context.Context, id string) (*metastage.Environment, error)
}

// ListEnvironments calls ListEnvironmentsF.
func (s *EnvironmentService) ListEnvironments(ctx context.Context) ([]*metastage.Environment, error) {
	return s.ListEnvironmentsF(ctx)
}

// GetEnvironment calls GetEnvironmentF.
func (s *EnvironmentService) GetEnvironment(ctx context.Context, id string) (*metastage.Environment, error) {
	return s.GetEnvironmentF(ctx, id)
}

// NextEnvironment calls NextEnvironmentF.
func (s *EnvironmentService) NextEnvironment(ctx context.Context, id string) (*metastage.Environment, error) {
	return s.NextEnvironmentF(ctx, id)
}
