// Package changes models single metadata mutations that can be replayed
// against an environment. Changes are immutable values; they are built by
// the staging differ or by domain services after a mutation, and encoded
// with a "changeType" discriminant for the change log and the API.
package changes

import (
	"context"

	"github.com/metastage/metastage"
	"github.com/metastage/metastage/pkg/future"
)

// Type is the discriminant of a change.
type Type string

const (
	TypeTopicCreated                                 Type = "TOPIC_CREATED"
	TypeTopicDeleted                                 Type = "TOPIC_DELETED"
	TypeTopicDescriptionChanged                      Type = "TOPIC_DESCRIPTION_CHANGED"
	TypeTopicDeprecated                              Type = "TOPIC_DEPRECATED"
	TypeTopicUndeprecated                            Type = "TOPIC_UNDEPRECATED"
	TypeTopicSubscriptionApprovalRequiredFlagUpdated Type = "TOPIC_SUBSCRIPTION_APPROVAL_REQUIRED_FLAG_UPDATED"
	TypeTopicSchemaVersionPublished                  Type = "TOPIC_SCHEMA_VERSION_PUBLISHED"
	TypeTopicProducerApplicationAdded                Type = "TOPIC_PRODUCER_APPLICATION_ADDED"
	TypeTopicProducerApplicationRemoved              Type = "TOPIC_PRODUCER_APPLICATION_REMOVED"
	TypeTopicOwnerChanged                            Type = "TOPIC_OWNER_CHANGED"
	TypeTopicSubscribed                              Type = "TOPIC_SUBSCRIBED"
	TypeTopicUnsubscribed                            Type = "TOPIC_UNSUBSCRIBED"
	TypeSubscriptionUpdated                          Type = "SUBSCRIPTION_UPDATED"
	TypeCompound                                     Type = "COMPOUND_CHANGE"
)

// Change is one replayable metadata mutation.
type Change interface {
	Type() Type

	// ApplyTo replays the change against the environment of ac.
	ApplyTo(ctx context.Context, ac ApplyContext) *future.Future[any]

	// Equal reports structural equality: business fields only, ignoring
	// identifiers that are local to one environment.
	Equal(other Change) bool
}

// ApplyContext is the target a change is applied to.
type ApplyContext struct {
	EnvironmentID string
	Topics        metastage.TopicService
	Subscriptions metastage.SubscriptionService

	// schemaFollows holds topics whose first schema is published right after
	// the change being applied, as part of the same compound change.
	schemaFollows map[string]bool
}

func (ac ApplyContext) withSchemaFollowing(topics []string) ApplyContext {
	ac.schemaFollows = nil
	if len(topics) == 0 {
		return ac
	}
	ac.schemaFollows = make(map[string]bool, len(topics))
	for _, t := range topics {
		ac.schemaFollows[t] = true
	}
	return ac
}

// Listener is notified after a change was applied to an environment.
type Listener interface {
	ChangeApplied(ctx context.Context, envID string, c Change)
}

// ListenerFunc adapts a function to a Listener.
type ListenerFunc func(ctx context.Context, envID string, c Change)

func (f ListenerFunc) ChangeApplied(ctx context.Context, envID string, c Change) {
	f(ctx, envID, c)
}

// Listeners fans a notification out to every listener in order.
type Listeners []Listener

func (ls Listeners) ChangeApplied(ctx context.Context, envID string, c Change) {
	for _, l := range ls {
		l.ChangeApplied(ctx, envID, c)
	}
}

// Contains reports whether list holds a change equal to c.
func Contains(list []Change, c Change) bool {
	for _, o := range list {
		if o.Equal(c) {
			return true
		}
	}
	return false
}

// Intersect returns the changes of list that have an equal counterpart in filter.
func Intersect(list, filter []Change) []Change {
	out := make([]Change, 0, len(filter))
	for _, c := range list {
		if Contains(filter, c) {
			out = append(out, c)
		}
	}
	return out
}

func run(fn func() error) *future.Future[any] {
	return future.Go(func() (any, error) {
		return nil, fn()
	})
}
