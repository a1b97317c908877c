// Package subscription implements metastage.SubscriptionService on top of
// per environment metadata stores.
package subscription

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/metastage/metastage"
	"github.com/metastage/metastage/changes"
	"github.com/metastage/metastage/environment"
	"github.com/metastage/metastage/kit/platform/errors"
	"github.com/metastage/metastage/metastore"
	"go.uber.org/zap"
)

const subscriptionsStore = "subscriptions"

var _ metastage.SubscriptionService = (*Service)(nil)

// Service stores the subscriptions of every environment.
type Service struct {
	topics metastage.TopicService
	stores map[string]*metastore.Store[*metastage.SubscriptionMetadata]

	mu        sync.Mutex
	listeners changes.Listeners

	idGen func() string
	log   *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger of the service.
func WithLogger(log *zap.Logger) Option {
	return func(s *Service) { s.log = log }
}

// WithListener registers a listener for applied changes.
func WithListener(l changes.Listener) Option {
	return func(s *Service) { s.listeners = append(s.listeners, l) }
}

// WithIDGenerator replaces the random subscription ids.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) { s.idGen = gen }
}

// NewService opens the subscription store on every environment. topics is
// used to check that subscribed topics exist and to read their approval flag.
func NewService(ctx context.Context, envs *environment.Registry, topics metastage.TopicService, opts ...Option) (*Service, error) {
	s := &Service{
		topics: topics,
		stores: make(map[string]*metastore.Store[*metastage.SubscriptionMetadata]),
		idGen:  uuid.NewString,
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, envID := range envs.EnvironmentIDs() {
		store, err := environment.OpenStore[*metastage.SubscriptionMetadata](ctx, envs, envID, subscriptionsStore, nil)
		if err != nil {
			return nil, err
		}
		s.stores[envID] = store
	}
	return s, nil
}

// AddListener registers a listener for applied changes.
func (s *Service) AddListener(l changes.Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// notify reports c to the listeners once s.mu is released.
func (s *Service) notify(ctx context.Context, envID string, c changes.Change) {
	if c == nil {
		return
	}
	s.mu.Lock()
	listeners := s.listeners
	s.mu.Unlock()
	listeners.ChangeApplied(ctx, envID, c)
}

func (s *Service) store(envID string) (*metastore.Store[*metastage.SubscriptionMetadata], error) {
	store, ok := s.stores[envID]
	if !ok {
		return nil, metastage.ErrEnvironmentNotFound
	}
	return store, nil
}

func (s *Service) filter(envID string, includeNonApproved bool, match func(*metastage.SubscriptionMetadata) bool) ([]*metastage.SubscriptionMetadata, error) {
	store, err := s.store(envID)
	if err != nil {
		return nil, err
	}
	var out []*metastage.SubscriptionMetadata
	for _, sub := range store.GetAll() {
		if !match(sub) {
			continue
		}
		if !includeNonApproved && sub.State != metastage.SubscriptionStateApproved {
			continue
		}
		c := *sub
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TopicName != out[j].TopicName {
			return out[i].TopicName < out[j].TopicName
		}
		return out[i].ClientApplicationID < out[j].ClientApplicationID
	})
	return out, nil
}

// GetSubscriptionsOfApplication implements metastage.SubscriptionService.
func (s *Service) GetSubscriptionsOfApplication(ctx context.Context, envID, applicationID string, includeNonApproved bool) ([]*metastage.SubscriptionMetadata, error) {
	return s.filter(envID, includeNonApproved, func(sub *metastage.SubscriptionMetadata) bool {
		return sub.ClientApplicationID == applicationID
	})
}

// GetSubscriptionsForTopic implements metastage.SubscriptionService.
func (s *Service) GetSubscriptionsForTopic(ctx context.Context, envID, topicName string, includeNonApproved bool) ([]*metastage.SubscriptionMetadata, error) {
	return s.filter(envID, includeNonApproved, func(sub *metastage.SubscriptionMetadata) bool {
		return sub.TopicName == topicName
	})
}

// GetSubscription implements metastage.SubscriptionService.
func (s *Service) GetSubscription(ctx context.Context, envID, id string) (*metastage.SubscriptionMetadata, error) {
	store, err := s.store(envID)
	if err != nil {
		return nil, err
	}
	sub, ok := store.Get(id)
	if !ok {
		return nil, metastage.ErrSubscriptionNotFound(envID, id)
	}
	c := *sub
	return &c, nil
}

// SubscribeToTopic implements metastage.SubscriptionService.
func (s *Service) SubscribeToTopic(ctx context.Context, envID, applicationID, topicName, description string) (*metastage.SubscriptionMetadata, error) {
	topic, err := s.topics.GetTopic(ctx, envID, topicName)
	if err != nil {
		return nil, &errors.Error{Op: metastage.OpSubscribeToTopic, Err: err}
	}
	if topic.Deprecated {
		return nil, &errors.Error{
			Code: errors.EConflict,
			Op:   metastage.OpSubscribeToTopic,
			Msg:  fmt.Sprintf("topic %q is deprecated and cannot be subscribed", topicName),
		}
	}

	state := metastage.SubscriptionStateApproved
	if topic.SubscriptionApprovalRequired {
		state = metastage.SubscriptionStatePending
	}
	return s.add(ctx, metastage.OpSubscribeToTopic, envID, metastage.SubscriptionMetadata{
		ClientApplicationID: applicationID,
		TopicName:           topicName,
		State:               state,
		Description:         description,
	})
}

// AddSubscription implements metastage.SubscriptionService.
func (s *Service) AddSubscription(ctx context.Context, envID string, sub metastage.SubscriptionMetadata) (*metastage.SubscriptionMetadata, error) {
	if !sub.State.Valid() {
		return nil, &errors.Error{
			Code: errors.EInvalid,
			Op:   metastage.OpAddSubscription,
			Msg:  fmt.Sprintf("invalid subscription state %q", sub.State),
		}
	}
	if _, err := s.topics.GetTopic(ctx, envID, sub.TopicName); err != nil {
		return nil, &errors.Error{Op: metastage.OpAddSubscription, Err: err}
	}
	return s.add(ctx, metastage.OpAddSubscription, envID, sub)
}

func (s *Service) add(ctx context.Context, op, envID string, sub metastage.SubscriptionMetadata) (*metastage.SubscriptionMetadata, error) {
	if sub.ClientApplicationID == "" {
		return nil, &errors.Error{Code: errors.EInvalid, Op: op, Msg: "client application id is empty"}
	}

	var applied changes.Change
	defer func() { s.notify(ctx, envID, applied) }()
	s.mu.Lock()
	defer s.mu.Unlock()

	store, err := s.store(envID)
	if err != nil {
		return nil, err
	}
	for _, existing := range store.GetAll() {
		if existing.SameAs(&sub) && active(existing.State) {
			return nil, &errors.Error{Op: op, Err: metastage.ErrSubscriptionExists(envID, sub.ClientApplicationID, sub.TopicName)}
		}
	}

	sub.ID = s.idGen()
	saved, err := store.Save(ctx, &sub).Await(ctx)
	if err != nil {
		return nil, err
	}
	out := *saved
	s.log.Debug("Subscription added",
		zap.String("environment", envID),
		zap.String("subscription", out.ID),
		zap.String("topic", out.TopicName),
		zap.String("client", out.ClientApplicationID))
	applied = &changes.TopicSubscribed{Subscription: &out}
	return &out, nil
}

// UpdateSubscriptionState implements metastage.SubscriptionService.
func (s *Service) UpdateSubscriptionState(ctx context.Context, envID, id string, state metastage.SubscriptionState) error {
	if !state.Valid() {
		return &errors.Error{
			Code: errors.EInvalid,
			Op:   metastage.OpUpdateSubscriptionState,
			Msg:  fmt.Sprintf("invalid subscription state %q", state),
		}
	}

	var applied changes.Change
	defer func() { s.notify(ctx, envID, applied) }()
	s.mu.Lock()
	defer s.mu.Unlock()

	store, err := s.store(envID)
	if err != nil {
		return err
	}
	current, ok := store.Get(id)
	if !ok {
		return &errors.Error{Op: metastage.OpUpdateSubscriptionState, Err: metastage.ErrSubscriptionNotFound(envID, id)}
	}
	if current.State == state {
		return nil
	}

	sub := *current
	sub.State = state
	if _, err := store.Save(ctx, &sub).Await(ctx); err != nil {
		return err
	}
	applied = &changes.SubscriptionUpdated{Subscription: &sub}
	return nil
}

// DeleteSubscription implements metastage.SubscriptionService.
func (s *Service) DeleteSubscription(ctx context.Context, envID, id string) error {
	var applied changes.Change
	defer func() { s.notify(ctx, envID, applied) }()
	s.mu.Lock()
	defer s.mu.Unlock()

	store, err := s.store(envID)
	if err != nil {
		return err
	}
	current, ok := store.Get(id)
	if !ok {
		return &errors.Error{Op: metastage.OpDeleteSubscription, Err: metastage.ErrSubscriptionNotFound(envID, id)}
	}
	if _, err := store.Delete(ctx, current).Await(ctx); err != nil {
		return err
	}
	sub := *current
	applied = &changes.TopicUnsubscribed{Subscription: &sub}
	return nil
}

// active reports whether a subscription in state blocks a new subscription
// of the same application to the same topic.
func active(state metastage.SubscriptionState) bool {
	return state == metastage.SubscriptionStatePending || state == metastage.SubscriptionStateApproved
}
