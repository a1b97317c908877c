package mock

import (
	"context"

	"github.com/metastage/metastage"
)

var _ metastage.SubscriptionService = &SubscriptionService{}

// SubscriptionService is a mock subscription service.
type SubscriptionService struct {
	GetSubscriptionsOfApplicationF func(ctx context.Context, envID, applicationID string, includeNonApproved bool) ([]*metastage.SubscriptionMetadata, error)
	GetSubscriptionsForTopicF      func(ctx context.Context, envID, topicName string, includeNonApproved bool) ([]*metastage.SubscriptionMetadata, error)
	GetSubscriptionF               func(ctx context.Context, envID, id string) (*metastage.SubscriptionMetadata, error)
	SubscribeToTopicF              func(ctx context.Context, envID, applicationID, topicName, description string) (*metastage.SubscriptionMetadata, error)
	AddSubscriptionF               func(ctx context.Context, envID string, sub metastage.SubscriptionMetadata) (*metastage.SubscriptionMetadata, error)
	UpdateSubscriptionStateF       func(ctx context.Context, envID, id string, state metastage.SubscriptionState) error
	DeleteSubscriptionF            func(ctx context.Context, envID, id string) error
}

// GetSubscriptionsOfApplication calls GetSubscriptionsOfApplicationF.
func (s *SubscriptionService) GetSubscriptionsOfApplication(ctx context.Context, envID, applicationID string, includeNonApproved bool) ([]*metastage.SubscriptionMetadata, error) {
	return s.GetSubscriptionsOfApplicationF(ctx, envID, applicationID, includeNonApproved)
}

// GetSubscriptionsForTopic calls GetSubscriptionsForTopicF.
func (s *SubscriptionService) GetSubscriptionsForTopic(ctx context.Context, envID, topicName string, includeNonApproved bool) ([]*metastage.SubscriptionMetadata, error) {
	return s.GetSubscriptionsForTopicF(ctx, envID, topicName, includeNonApproved)
}

// GetSubscription calls GetSubscriptionF.
func (s *SubscriptionService) GetSubscription(ctx context.Context, envID, id string) (*metastage.SubscriptionMetadata, error) {
	return s.GetSubscriptionF(ctx, envID, id)
}

// SubscribeToTopic calls SubscribeToTopicF.
func (s *SubscriptionService) SubscribeToTopic(ctx context.Context, envID, applicationID, topicName, description string) (*metastage.SubscriptionMetadata, error) {
	return s.SubscribeToTopicF(ctx, envID, applicationID, topicName, description)
}

// AddSubscription calls AddSubscriptionF.
func (s *SubscriptionService) AddSubscription(ctx context.Context, envID string, sub metastage.SubscriptionMetadata) (*metastage.SubscriptionMetadata, error) {
	return s.AddSubscriptionF(ctx, envID, sub)
}

// UpdateSubscriptionState calls UpdateSubscriptionStateF.
func (s *SubscriptionService) UpdateSubscriptionState(ctx context.Context, envID, id string, state metastage.SubscriptionState) error {
	return s.UpdateSubscriptionStateF(ctx, envID, id, state)
}

// DeleteSubscription calls DeleteSubscriptionF.
func (s *SubscriptionService) DeleteSubscription(ctx context.Context, envID, id string) error {
	return s.DeleteSubscriptionF(ctx, envID, id)
}
