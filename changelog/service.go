// Package changelog records every change applied to an environment as an
// audit entry.
package changelog

import (
	"context"
	"sort"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/metastage/metastage"
	"github.com/metastage/metastage/changes"
	icontext "github.com/metastage/metastage/context"
	"github.com/metastage/metastage/environment"
	"github.com/metastage/metastage/logger"
	"github.com/metastage/metastage/metastore"
	"go.uber.org/zap"
)

const changelogStore = "changelog"

var _ changes.Listener = (*Service)(nil)

// Service appends entries to the changelog store of each environment.
type Service struct {
	stores map[string]*metastore.Store[*Entry]
	clock  clock.Clock
	idGen  func() string
	log    *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the clock used for entry timestamps.
func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithLogger sets the logger of the service.
func WithLogger(log *zap.Logger) Option {
	return func(s *Service) { s.log = log }
}

// NewService opens the changelog store on every environment.
func NewService(ctx context.Context, envs *environment.Registry, opts ...Option) (*Service, error) {
	s := &Service{
		stores: make(map[string]*metastore.Store[*Entry]),
		clock:  clock.New(),
		idGen:  uuid.NewString,
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, envID := range envs.EnvironmentIDs() {
		store, err := environment.OpenStore[*Entry](ctx, envs, envID, changelogStore, nil)
		if err != nil {
			return nil, err
		}
		s.stores[envID] = store
	}
	return s, nil
}

// ChangeApplied appends an entry for c. Failures are logged and never reach
// the service that applied the change.
func (s *Service) ChangeApplied(ctx context.Context, envID string, c changes.Change) {
	log := logger.FromContext(ctx, s.log)
	store, ok := s.stores[envID]
	if !ok {
		log.Warn("Change applied on unknown environment", zap.String("environment", envID))
		return
	}

	e := &Entry{
		ID:        s.idGen(),
		Timestamp: s.clock.Now().UTC(),
		Change:    c,
	}
	if p, err := icontext.GetPrincipal(ctx); err == nil {
		e.Principal = p.ID
		e.PrincipalFullName = p.FullName
	}

	if _, err := store.Save(ctx, e).Await(ctx); err != nil {
		log.Error("Failed to record change",
			zap.String("environment", envID),
			zap.String("change_type", string(c.Type())),
			zap.Error(err))
	}
}

// GetChangeLog returns the entries of an environment, oldest first.
func (s *Service) GetChangeLog(ctx context.Context, envID string) ([]*Entry, error) {
	store, ok := s.stores[envID]
	if !ok {
		return nil, metastage.ErrEnvironmentNotFound
	}
	entries := store.GetAll()
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].Timestamp.Equal(entries[j].Timestamp) {
			return entries[i].Timestamp.Before(entries[j].Timestamp)
		}
		return entries[i].ID < entries[j].ID
	})
	return entries, nil
}
