package mock

import (
	"context"

	"github.com/metastage/metastage/changes"
	"github.com/metastage/metastage/staging"
)

var _ staging.Service = &StagingService{}

// StagingService is a mock staging service.
type StagingService struct {
	PrepareF func(ctx context.Context, applicationID, sourceEnvID, targetEnvID string, filter []changes.Change) (*staging.Staging, error)
	PerformF func(ctx context.Context, s *staging.Staging) ([]staging.Result, error)
}

// Prepare calls PrepareF.
func (s *StagingService) Prepare(ctx context.Context, applicationID, sourceEnvID, targetEnvID string, filter []changes.Change) (*staging.Staging, error) {
	return s.PrepareF(ctx, applicationID, sourceEnvID, targetEnvID, filter)
}

// Perform calls PerformF.
func (s *StagingService) Perform(ctx context.Context, st *staging.Staging) ([]staging.Result, error) {
	return s.PerformF(ctx, st)
}
