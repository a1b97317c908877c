package changes

import (
	"context"

	"github.com/metastage/metastage"
	"github.com/metastage/metastage/pkg/future"
)

// TopicCreated registers a topic and creates it on the broker.
type TopicCreated struct {
	Topic        *metastage.TopicMetadata    `json:"topicMetadata"`
	CreateParams metastage.TopicCreateParams `json:"createParams"`
}

func (c *TopicCreated) Type() Type { return TypeTopicCreated }

// ApplyTo fails for deprecated topics and for topics whose type requires a
// schema when no schema is available for them.
func (c *TopicCreated) ApplyTo(ctx context.Context, ac ApplyContext) *future.Future[any] {
	return run(func() error {
		if c.Topic.Deprecated {
			return metastage.ErrTopicDeprecated(c.Topic.Name)
		}
		if c.Topic.Type.RequiresSchema() && !ac.schemaFollows[c.Topic.Name] {
			schemas, err := ac.Topics.GetTopicSchemaVersions(ctx, ac.EnvironmentID, c.Topic.Name)
			if err != nil {
				return err
			}
			if len(schemas) == 0 {
				return metastage.ErrMissingSchema(c.Topic.Name)
			}
		}
		return ac.Topics.CreateTopic(ctx, ac.EnvironmentID, c.Topic.Clone(), c.CreateParams)
	})
}

func (c *TopicCreated) Equal(other Change) bool {
	o, ok := other.(*TopicCreated)
	if !ok || o.Topic == nil || c.Topic == nil {
		return false
	}
	return o.Topic.Name == c.Topic.Name && o.Topic.OwnerApplicationID == c.Topic.OwnerApplicationID
}

func (c *TopicCreated) validate() error {
	if c.Topic == nil || c.Topic.Name == "" {
		return missing(c.Type(), "topicMetadata")
	}
	return nil
}

// TopicDeleted removes a topic.
type TopicDeleted struct {
	TopicName string `json:"topicName"`
}

func (c *TopicDeleted) Type() Type { return TypeTopicDeleted }

func (c *TopicDeleted) ApplyTo(ctx context.Context, ac ApplyContext) *future.Future[any] {
	return run(func() error {
		return ac.Topics.DeleteTopic(ctx, ac.EnvironmentID, c.TopicName)
	})
}

func (c *TopicDeleted) Equal(other Change) bool {
	o, ok := other.(*TopicDeleted)
	return ok && o.TopicName == c.TopicName
}

// TopicDescriptionChanged sets the description of a topic.
type TopicDescriptionChanged struct {
	TopicName      string `json:"topicName"`
	NewDescription string `json:"newDescription"`
}

func (c *TopicDescriptionChanged) Type() Type { return TypeTopicDescriptionChanged }

func (c *TopicDescriptionChanged) ApplyTo(ctx context.Context, ac ApplyContext) *future.Future[any] {
	return run(func() error {
		return ac.Topics.UpdateTopicDescription(ctx, ac.EnvironmentID, c.TopicName, c.NewDescription)
	})
}

func (c *TopicDescriptionChanged) Equal(other Change) bool {
	o, ok := other.(*TopicDescriptionChanged)
	return ok && o.TopicName == c.TopicName && o.NewDescription == c.NewDescription
}

// TopicDeprecated marks a topic as deprecated.
type TopicDeprecated struct {
	TopicName       string `json:"topicName"`
	DeprecationText string `json:"deprecationText"`
	EOLDate         string `json:"eolDate,omitempty"`
}

func (c *TopicDeprecated) Type() Type { return TypeTopicDeprecated }

func (c *TopicDeprecated) ApplyTo(ctx context.Context, ac ApplyContext) *future.Future[any] {
	return run(func() error {
		return ac.Topics.MarkTopicDeprecated(ctx, ac.EnvironmentID, c.TopicName, c.DeprecationText, c.EOLDate)
	})
}

func (c *TopicDeprecated) Equal(other Change) bool {
	o, ok := other.(*TopicDeprecated)
	return ok && o.TopicName == c.TopicName
}

// TopicUndeprecated removes the deprecation mark of a topic.
type TopicUndeprecated struct {
	TopicName string `json:"topicName"`
}

func (c *TopicUndeprecated) Type() Type { return TypeTopicUndeprecated }

func (c *TopicUndeprecated) ApplyTo(ctx context.Context, ac ApplyContext) *future.Future[any] {
	return run(func() error {
		return ac.Topics.UnmarkTopicDeprecated(ctx, ac.EnvironmentID, c.TopicName)
	})
}

func (c *TopicUndeprecated) Equal(other Change) bool {
	o, ok := other.(*TopicUndeprecated)
	return ok && o.TopicName == c.TopicName
}

// TopicSubscriptionApprovalRequiredFlagUpdated toggles whether new
// subscriptions to a topic need approval by the owner.
type TopicSubscriptionApprovalRequiredFlagUpdated struct {
	TopicName                    string `json:"topicName"`
	SubscriptionApprovalRequired bool   `json:"subscriptionApprovalRequired"`
}

func (c *TopicSubscriptionApprovalRequiredFlagUpdated) Type() Type {
	return TypeTopicSubscriptionApprovalRequiredFlagUpdated
}

func (c *TopicSubscriptionApprovalRequiredFlagUpdated) ApplyTo(ctx context.Context, ac ApplyContext) *future.Future[any] {
	return run(func() error {
		return ac.Topics.SetSubscriptionApprovalRequiredFlag(ctx, ac.EnvironmentID, c.TopicName, c.SubscriptionApprovalRequired)
	})
}

func (c *TopicSubscriptionApprovalRequiredFlagUpdated) Equal(other Change) bool {
	o, ok := other.(*TopicSubscriptionApprovalRequiredFlagUpdated)
	return ok && o.TopicName == c.TopicName && o.SubscriptionApprovalRequired == c.SubscriptionApprovalRequired
}

// TopicSchemaVersionPublished publishes a schema version. Schemas are
// matched by version number; the id is local to an environment.
type TopicSchemaVersionPublished struct {
	TopicName string                    `json:"topicName"`
	Schema    *metastage.SchemaMetadata `json:"newSchema"`
}

func (c *TopicSchemaVersionPublished) Type() Type { return TypeTopicSchemaVersionPublished }

func (c *TopicSchemaVersionPublished) ApplyTo(ctx context.Context, ac ApplyContext) *future.Future[any] {
	return future.Go(func() (any, error) {
		schema := *c.Schema
		schema.ID = ""
		schema.TopicName = c.TopicName
		return ac.Topics.AddTopicSchemaVersion(ctx, ac.EnvironmentID, &schema)
	})
}

func (c *TopicSchemaVersionPublished) Equal(other Change) bool {
	o, ok := other.(*TopicSchemaVersionPublished)
	if !ok || o.Schema == nil || c.Schema == nil {
		return false
	}
	return o.TopicName == c.TopicName && o.Schema.SchemaVersion == c.Schema.SchemaVersion
}

func (c *TopicSchemaVersionPublished) validate() error {
	if c.Schema == nil {
		return missing(c.Type(), "newSchema")
	}
	return nil
}

// TopicProducerApplicationAdded allows an additional application to produce to a topic.
type TopicProducerApplicationAdded struct {
	TopicName             string `json:"topicName"`
	ProducerApplicationID string `json:"producerApplicationId"`
}

func (c *TopicProducerApplicationAdded) Type() Type { return TypeTopicProducerApplicationAdded }

func (c *TopicProducerApplicationAdded) ApplyTo(ctx context.Context, ac ApplyContext) *future.Future[any] {
	return run(func() error {
		return ac.Topics.AddTopicProducer(ctx, ac.EnvironmentID, c.TopicName, c.ProducerApplicationID)
	})
}

func (c *TopicProducerApplicationAdded) Equal(other Change) bool {
	o, ok := other.(*TopicProducerApplicationAdded)
	return ok && o.TopicName == c.TopicName && o.ProducerApplicationID == c.ProducerApplicationID
}

// TopicProducerApplicationRemoved revokes an additional producer of a topic.
type TopicProducerApplicationRemoved struct {
	TopicName             string `json:"topicName"`
	ProducerApplicationID string `json:"producerApplicationId"`
}

func (c *TopicProducerApplicationRemoved) Type() Type { return TypeTopicProducerApplicationRemoved }

func (c *TopicProducerApplicationRemoved) ApplyTo(ctx context.Context, ac ApplyContext) *future.Future[any] {
	return run(func() error {
		return ac.Topics.RemoveTopicProducer(ctx, ac.EnvironmentID, c.TopicName, c.ProducerApplicationID)
	})
}

func (c *TopicProducerApplicationRemoved) Equal(other Change) bool {
	o, ok := other.(*TopicProducerApplicationRemoved)
	return ok && o.TopicName == c.TopicName && o.ProducerApplicationID == c.ProducerApplicationID
}

// TopicOwnerChanged transfers the ownership of a topic.
type TopicOwnerChanged struct {
	TopicName                  string `json:"topicName"`
	PreviousOwnerApplicationID string `json:"previousOwnerApplicationId"`
	NewOwnerApplicationID      string `json:"newOwnerApplicationId"`
}

func (c *TopicOwnerChanged) Type() Type { return TypeTopicOwnerChanged }

func (c *TopicOwnerChanged) ApplyTo(ctx context.Context, ac ApplyContext) *future.Future[any] {
	return run(func() error {
		return ac.Topics.ChangeTopicOwner(ctx, ac.EnvironmentID, c.TopicName, c.NewOwnerApplicationID)
	})
}

func (c *TopicOwnerChanged) Equal(other Change) bool {
	o, ok := other.(*TopicOwnerChanged)
	return ok && o.TopicName == c.TopicName && o.NewOwnerApplicationID == c.NewOwnerApplicationID
}
