package metastage

import (
	"context"
)

// SubscriptionState is the approval state of a subscription.
type SubscriptionState string

const (
	SubscriptionStatePending  SubscriptionState = "PENDING"
	SubscriptionStateApproved SubscriptionState = "APPROVED"
	SubscriptionStateRejected SubscriptionState = "REJECTED"
	SubscriptionStateCanceled SubscriptionState = "CANCELED"
)

// Valid reports whether s is one of the known states.
func (s SubscriptionState) Valid() bool {
	switch s {
	case SubscriptionStatePending, SubscriptionStateApproved, SubscriptionStateRejected, SubscriptionStateCanceled:
		return true
	}
	return false
}

// SubscriptionMetadata is a client application's subscription to a topic.
// ID is local to the environment; the same subscription has different ids
// on different environments.
type SubscriptionMetadata struct {
	ID                  string            `json:"id"`
	ClientApplicationID string            `json:"clientApplicationId"`
	TopicName           string            `json:"topicName"`
	State               SubscriptionState `json:"state"`
	Description         string            `json:"description,omitempty"`
}

// Key implements metastore.Record.
func (s *SubscriptionMetadata) Key() string { return s.ID }

// SameAs reports whether s and o describe the same subscription, regardless
// of the environment they live on.
func (s *SubscriptionMetadata) SameAs(o *SubscriptionMetadata) bool {
	if s == nil || o == nil {
		return false
	}
	return s.ClientApplicationID == o.ClientApplicationID && s.TopicName == o.TopicName
}

// SubscriptionService manages subscriptions of all environments.
type SubscriptionService interface {
	// GetSubscriptionsOfApplication returns the subscriptions held by an
	// application. Only approved ones are returned unless includeNonApproved is set.
	GetSubscriptionsOfApplication(ctx context.Context, envID, applicationID string, includeNonApproved bool) ([]*SubscriptionMetadata, error)

	// GetSubscriptionsForTopic returns the subscriptions on a topic.
	GetSubscriptionsForTopic(ctx context.Context, envID, topicName string, includeNonApproved bool) ([]*SubscriptionMetadata, error)

	GetSubscription(ctx context.Context, envID, id string) (*SubscriptionMetadata, error)

	// SubscribeToTopic creates a new subscription. It starts PENDING when the
	// topic requires approval and APPROVED otherwise.
	SubscribeToTopic(ctx context.Context, envID, applicationID, topicName, description string) (*SubscriptionMetadata, error)

	// AddSubscription stores a copy of sub under a fresh id.
	AddSubscription(ctx context.Context, envID string, sub SubscriptionMetadata) (*SubscriptionMetadata, error)

	UpdateSubscriptionState(ctx context.Context, envID, id string, state SubscriptionState) error
	DeleteSubscription(ctx context.Context, envID, id string) error
}
