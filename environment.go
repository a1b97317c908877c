package metastage

import (
	"context"
)

// Environment is one independently operated broker cluster.
type Environment struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Production bool   `json:"production"`
	// Stagable environments may be the target of a staging.
	Stagable bool `json:"stagable"`
}

// EnvironmentService lists the configured environments in promotion order.
type EnvironmentService interface {
	ListEnvironments(ctx context.Context) ([]*Environment, error)
	GetEnvironment(ctx context.Context, id string) (*Environment, error)
	// NextEnvironment returns the environment following id in promotion
	// order, or an ENotFound error when id is the last one.
	NextEnvironment(ctx context.Context, id string) (*Environment, error)
}
