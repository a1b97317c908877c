// Package application keeps the known applications in a metadata store on
// one environment.
package application

import (
	"context"
	"fmt"
	"sort"

	"github.com/metastage/metastage"
	"github.com/metastage/metastage/environment"
	"github.com/metastage/metastage/kit/platform/errors"
	"github.com/metastage/metastage/metastore"
	"go.uber.org/zap"
)

const knownApplicationsStore = "known-applications"

const (
	opGetApplication      = "application/GetApplication"
	opRegisterApplication = "application/RegisterApplication"
)

var _ metastage.ApplicationService = (*Service)(nil)

// Service implements metastage.ApplicationService.
type Service struct {
	store *metastore.Store[*metastage.Application]
	log   *zap.Logger
}

// NewService opens the known applications store on envID.
func NewService(ctx context.Context, envs *environment.Registry, envID string, log *zap.Logger) (*Service, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if _, err := envs.GetEnvironment(ctx, envID); err != nil {
		return nil, err
	}
	store, err := environment.OpenStore[*metastage.Application](ctx, envs, envID, knownApplicationsStore, nil)
	if err != nil {
		return nil, err
	}
	return &Service{store: store, log: log}, nil
}

// ListApplications returns all known applications sorted by id.
func (s *Service) ListApplications(ctx context.Context) ([]*metastage.Application, error) {
	all := s.store.GetAll()
	out := make([]*metastage.Application, 0, len(all))
	for _, a := range all {
		out = append(out, clone(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetApplication returns ErrApplicationNotFound for unknown ids. Aliases are
// resolved as well.
func (s *Service) GetApplication(ctx context.Context, id string) (*metastage.Application, error) {
	if a, ok := s.store.Get(id); ok {
		return clone(a), nil
	}
	for _, a := range s.store.GetAll() {
		for _, alias := range a.Aliases {
			if alias == id {
				return clone(a), nil
			}
		}
	}
	return nil, &errors.Error{
		Code: errors.EInvalid,
		Op:   opGetApplication,
		Msg:  fmt.Sprintf("application %q not found", id),
		Err:  metastage.ErrApplicationNotFound,
	}
}

// RegisterApplication adds or replaces an application.
func (s *Service) RegisterApplication(ctx context.Context, app *metastage.Application) error {
	if app == nil || app.ID == "" {
		return &errors.Error{Code: errors.EInvalid, Op: opRegisterApplication, Msg: "application id is empty"}
	}
	if app.Name == "" {
		return &errors.Error{Code: errors.EInvalid, Op: opRegisterApplication, Msg: "application name is empty"}
	}
	if _, err := s.store.Save(ctx, clone(app)).Await(ctx); err != nil {
		return err
	}
	s.log.Info("Application registered", zap.String("application", app.ID), zap.String("name", app.Name))
	return nil
}

func clone(a *metastage.Application) *metastage.Application {
	c := *a
	if a.Aliases != nil {
		c.Aliases = append([]string(nil), a.Aliases...)
	}
	return &c
}
