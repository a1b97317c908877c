package mock

import (
	"context"

	"github.com/metastage/metastage"
)

var _ metastage.ApplicationService = &ApplicationService{}

// ApplicationService is a mock application service.
type ApplicationService struct {
	ListApplicationsF    func(ctx context.Context) ([]*metastage.Application, error)
	GetApplicationF      func(ctx context.Context, id string) (*metastage.Application, error)
	RegisterApplicationF func(ctx context.Context, app *metastage.Application) error
}

// ListApplications calls ListApplicationsF.
func (s *ApplicationService) ListApplications(ctx context.Context) ([]*metastage.Application, error) {
	return s.ListApplicationsF(ctx)
}

// GetApplication calls GetApplicationF.
func (s *ApplicationService) GetApplication(ctx context.Context, id string) (*metastage.Application, error) {
	return s.GetApplicationF(ctx, id)
}

// RegisterApplication calls RegisterApplicationF.
func (s *ApplicationService) RegisterApplication(ctx context.Context, app *metastage.Application) error {
	return s.RegisterApplicationF(ctx, app)
}
