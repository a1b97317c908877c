// Package environment keeps the configured environments, their broker
// clients and every metadata store opened on them.
package environment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/metastage/metastage"
	"github.com/metastage/metastage/kit/platform/errors"
	"github.com/metastage/metastage/messaging"
	"github.com/metastage/metastage/metastore"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var _ metastage.EnvironmentService = (*Registry)(nil)

type openStore struct {
	envID string
	name  string
	store any
	wait  func(ctx context.Context, maxWait, idle time.Duration) (bool, error)
	close func() error
}

// Registry implements metastage.EnvironmentService over a fixed,
// ordered list of environments.
type Registry struct {
	envs      []*metastage.Environment
	clients   map[string]messaging.Client
	storeOpts []metastore.Option
	log       *zap.Logger

	mu     sync.Mutex
	stores map[string]*openStore
	order  []*openStore
}

// NewRegistry returns a registry for envs. clients must hold a client for
// every environment. storeOpts apply to every store opened through the registry.
func NewRegistry(log *zap.Logger, envs []*metastage.Environment, clients map[string]messaging.Client, storeOpts ...metastore.Option) (*Registry, error) {
	if log == nil {
		log = zap.NewNop()
	}
	for _, env := range envs {
		if _, ok := clients[env.ID]; !ok {
			return nil, fmt.Errorf("no broker client for environment %q", env.ID)
		}
	}
	return &Registry{
		envs:      envs,
		clients:   clients,
		storeOpts: storeOpts,
		log:       log,
		stores:    make(map[string]*openStore),
	}, nil
}

// ListEnvironments returns the environments in promotion order.
func (r *Registry) ListEnvironments(ctx context.Context) ([]*metastage.Environment, error) {
	out := make([]*metastage.Environment, len(r.envs))
	copy(out, r.envs)
	return out, nil
}

// GetEnvironment returns ErrEnvironmentNotFound for unknown ids.
func (r *Registry) GetEnvironment(ctx context.Context, id string) (*metastage.Environment, error) {
	for _, env := range r.envs {
		if env.ID == id {
			return env, nil
		}
	}
	return nil, &errors.Error{
		Code: errors.EInvalid,
		Op:   "environment/GetEnvironment",
		Msg:  fmt.Sprintf("environment %q not found", id),
		Err:  metastage.ErrEnvironmentNotFound,
	}
}

// NextEnvironment returns the environment after id in promotion order.
func (r *Registry) NextEnvironment(ctx context.Context, id string) (*metastage.Environment, error) {
	for i, env := range r.envs {
		if env.ID != id {
			continue
		}
		if i+1 == len(r.envs) {
			return nil, metastage.ErrNoNextEnvironment
		}
		return r.envs[i+1], nil
	}
	return nil, metastage.ErrEnvironmentNotFound
}

// EnvironmentIDs returns the ids in promotion order.
func (r *Registry) EnvironmentIDs() []string {
	ids := make([]string, 0, len(r.envs))
	for _, env := range r.envs {
		ids = append(ids, env.ID)
	}
	return ids
}

// Client returns the broker client of an environment.
func (r *Registry) Client(envID string) (messaging.Client, error) {
	c, ok := r.clients[envID]
	if !ok {
		return nil, metastage.ErrEnvironmentNotFound
	}
	return c, nil
}

// OpenStore opens the store name on an environment, or returns the store
// opened earlier under the same name.
func OpenStore[T metastore.Record](ctx context.Context, r *Registry, envID, name string, codec metastore.Codec[T]) (*metastore.Store[T], error) {
	client, err := r.Client(envID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := envID + "/" + name
	if open, ok := r.stores[key]; ok {
		s, ok := open.store.(*metastore.Store[T])
		if !ok {
			return nil, fmt.Errorf("store %q on environment %q already opened with another record type", name, envID)
		}
		return s, nil
	}

	opts := append([]metastore.Option{
		metastore.WithLogger(r.log.With(zap.String("service", "metastore"))),
	}, r.storeOpts...)
	s, err := metastore.Open[T](ctx, client, envID, name, codec, opts...)
	if err != nil {
		return nil, err
	}

	open := &openStore{
		envID: envID,
		name:  name,
		store: s,
		wait: func(ctx context.Context, maxWait, idle time.Duration) (bool, error) {
			return s.WaitForInitialization(maxWait, idle).Await(ctx)
		},
		close: s.Close,
	}
	r.stores[key] = open
	r.order = append(r.order, open)
	return s, nil
}

// WaitForInitialization waits for all stores opened so far, concurrently.
// It fails if any store did not initialize within maxWait.
func (r *Registry) WaitForInitialization(ctx context.Context, maxWait, idle time.Duration) error {
	r.mu.Lock()
	stores := append([]*openStore(nil), r.order...)
	r.mu.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	for _, s := range stores {
		s := s
		g.Go(func() error {
			start := time.Now()
			ok, err := s.wait(ctx, maxWait, idle)
			if err != nil {
				return err
			}
			if !ok {
				return &errors.Error{
					Code: errors.EUnavailable,
					Op:   "environment/WaitForInitialization",
					Msg:  fmt.Sprintf("store %q on environment %q not initialized within %s", s.name, s.envID, maxWait),
				}
			}
			r.log.Debug("Store ready",
				zap.String("environment", s.envID),
				zap.String("store", s.name),
				zap.Duration("took", time.Since(start)))
			return nil
		})
	}
	return g.Wait()
}

// Close closes all stores, then all broker clients.
func (r *Registry) Close() error {
	r.mu.Lock()
	stores := r.order
	r.order = nil
	r.stores = make(map[string]*openStore)
	r.mu.Unlock()

	var err error
	for _, s := range stores {
		err = multierr.Append(err, s.close())
	}
	for _, env := range r.envs {
		err = multierr.Append(err, r.clients[env.ID].Close())
	}
	return err
}
