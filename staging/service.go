package staging

import (
	"context"

	"github.com/metastage/metastage"
	"github.com/metastage/metastage/changes"
)

var _ Service = (*service)(nil)

type service struct {
	envs     metastage.EnvironmentService
	differ   *Differ
	executor *Executor
}

// NewService returns a Service backed by differ and executor. An empty
// target environment stands for the environment after the source.
func NewService(envs metastage.EnvironmentService, differ *Differ, executor *Executor) Service {
	return &service{envs: envs, differ: differ, executor: executor}
}

func (s *service) Prepare(ctx context.Context, applicationID, sourceEnvID, targetEnvID string, filter []changes.Change) (*Staging, error) {
	if targetEnvID == "" {
		next, err := s.envs.NextEnvironment(ctx, sourceEnvID)
		if err != nil {
			return nil, err
		}
		targetEnvID = next.ID
	}
	return s.differ.Build(ctx, applicationID, sourceEnvID, targetEnvID, filter).Await(ctx)
}

func (s *service) Perform(ctx context.Context, st *Staging) ([]Result, error) {
	return s.executor.Perform(ctx, st).Await(ctx)
}
