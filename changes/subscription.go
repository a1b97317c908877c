package changes

import (
	"context"

	"github.com/metastage/metastage"
	"github.com/metastage/metastage/pkg/future"
)

// TopicSubscribed adds a subscription. On apply the subscription always
// gets a fresh id on the target environment.
type TopicSubscribed struct {
	Subscription *metastage.SubscriptionMetadata `json:"subscriptionMetadata"`
}

func (c *TopicSubscribed) Type() Type { return TypeTopicSubscribed }

func (c *TopicSubscribed) ApplyTo(ctx context.Context, ac ApplyContext) *future.Future[any] {
	return future.Go(func() (any, error) {
		sub := *c.Subscription
		sub.ID = ""
		return ac.Subscriptions.AddSubscription(ctx, ac.EnvironmentID, sub)
	})
}

func (c *TopicSubscribed) Equal(other Change) bool {
	o, ok := other.(*TopicSubscribed)
	return ok && o.Subscription.SameAs(c.Subscription)
}

// TopicUnsubscribed removes a subscription, located by client application and topic.
type TopicUnsubscribed struct {
	Subscription *metastage.SubscriptionMetadata `json:"subscriptionMetadata"`
}

func (c *TopicUnsubscribed) Type() Type { return TypeTopicUnsubscribed }

func (c *TopicUnsubscribed) ApplyTo(ctx context.Context, ac ApplyContext) *future.Future[any] {
	return run(func() error {
		sub, err := findSubscription(ctx, ac, c.Subscription)
		if err != nil {
			return err
		}
		return ac.Subscriptions.DeleteSubscription(ctx, ac.EnvironmentID, sub.ID)
	})
}

func (c *TopicUnsubscribed) Equal(other Change) bool {
	o, ok := other.(*TopicUnsubscribed)
	return ok && o.Subscription.SameAs(c.Subscription)
}

// SubscriptionUpdated changes the state of a subscription, located by
// client application and topic.
type SubscriptionUpdated struct {
	Subscription *metastage.SubscriptionMetadata `json:"subscriptionMetadata"`
}

func (c *SubscriptionUpdated) Type() Type { return TypeSubscriptionUpdated }

func (c *SubscriptionUpdated) ApplyTo(ctx context.Context, ac ApplyContext) *future.Future[any] {
	return run(func() error {
		sub, err := findSubscription(ctx, ac, c.Subscription)
		if err != nil {
			return err
		}
		return ac.Subscriptions.UpdateSubscriptionState(ctx, ac.EnvironmentID, sub.ID, c.Subscription.State)
	})
}

func (c *SubscriptionUpdated) Equal(other Change) bool {
	o, ok := other.(*SubscriptionUpdated)
	return ok && o.Subscription.SameAs(c.Subscription) && o.Subscription.State == c.Subscription.State
}

func (c *TopicSubscribed) validate() error {
	return requireSubscription(c.Type(), c.Subscription)
}

func (c *TopicUnsubscribed) validate() error {
	return requireSubscription(c.Type(), c.Subscription)
}

func (c *SubscriptionUpdated) validate() error {
	return requireSubscription(c.Type(), c.Subscription)
}

func requireSubscription(t Type, sub *metastage.SubscriptionMetadata) error {
	if sub == nil {
		return missing(t, "subscriptionMetadata")
	}
	return nil
}

func findSubscription(ctx context.Context, ac ApplyContext, want *metastage.SubscriptionMetadata) (*metastage.SubscriptionMetadata, error) {
	subs, err := ac.Subscriptions.GetSubscriptionsOfApplication(ctx, ac.EnvironmentID, want.ClientApplicationID, true)
	if err != nil {
		return nil, err
	}
	for _, s := range subs {
		if s.SameAs(want) {
			return s, nil
		}
	}
	return nil, metastage.ErrSubscriptionNotFound(ac.EnvironmentID, want.ClientApplicationID+"/"+want.TopicName)
}
