package metastage

import (
	"context"
)

// Application is a known client or producer of topics.
type Application struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	InfoURL string   `json:"infoUrl,omitempty"`
	Aliases []string `json:"aliases,omitempty"`
}

// Key implements metastore.Record.
func (a *Application) Key() string { return a.ID }

// ApplicationService resolves known applications.
type ApplicationService interface {
	ListApplications(ctx context.Context) ([]*Application, error)
	GetApplication(ctx context.Context, id string) (*Application, error)
	RegisterApplication(ctx context.Context, app *Application) error
}
