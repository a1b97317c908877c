package metastage

import (
	"context"
	"sort"
)

// TopicType classifies a topic. Every type except INTERNAL requires a
// published JSON schema before the topic can be created on an environment.
type TopicType string

const (
	TopicTypeEvents   TopicType = "EVENTS"
	TopicTypeData     TopicType = "DATA"
	TopicTypeCommands TopicType = "COMMANDS"
	TopicTypeInternal TopicType = "INTERNAL"
)

// Valid reports whether t is one of the known topic types.
func (t TopicType) Valid() bool {
	switch t {
	case TopicTypeEvents, TopicTypeData, TopicTypeCommands, TopicTypeInternal:
		return true
	}
	return false
}

// RequiresSchema reports whether topics of this type need a schema.
func (t TopicType) RequiresSchema() bool {
	return t != TopicTypeInternal
}

// TopicMetadata describes a topic as it is registered on one environment.
type TopicMetadata struct {
	Name                         string    `json:"name"`
	Type                         TopicType `json:"type"`
	OwnerApplicationID           string    `json:"ownerApplicationId"`
	Description                  string    `json:"description,omitempty"`
	InfoURL                      string    `json:"infoUrl,omitempty"`
	Deprecated                   bool      `json:"deprecated,omitempty"`
	DeprecationText              string    `json:"deprecationText,omitempty"`
	EOLDate                      string    `json:"eolDate,omitempty"`
	SubscriptionApprovalRequired bool      `json:"subscriptionApprovalRequired,omitempty"`
	DeletionProtected            bool      `json:"deletionProtected,omitempty"`
	Producers                    []string  `json:"producers,omitempty"`
}

// Key implements metastore.Record.
func (t *TopicMetadata) Key() string { return t.Name }

// HasProducer reports whether appID is registered as a producer.
func (t *TopicMetadata) HasProducer(appID string) bool {
	for _, p := range t.Producers {
		if p == appID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of t.
func (t *TopicMetadata) Clone() *TopicMetadata {
	c := *t
	if t.Producers != nil {
		c.Producers = append([]string(nil), t.Producers...)
	}
	return &c
}

// TopicCreateParams are the broker level settings used to create a topic.
type TopicCreateParams struct {
	NumberOfPartitions int               `json:"numberOfPartitions"`
	ReplicationFactor  int               `json:"replicationFactor"`
	TopicConfigs       map[string]string `json:"topicConfigs,omitempty"`
}

// TopicService manages topic metadata and schemas of all environments.
type TopicService interface {
	// ListTopics returns all topics of an environment sorted by name.
	ListTopics(ctx context.Context, envID string) ([]*TopicMetadata, error)

	// GetTopic returns a single topic or an ENotFound error.
	GetTopic(ctx context.Context, envID, name string) (*TopicMetadata, error)

	// GetTopicSchemaVersions returns the topic's schemas in ascending version order.
	GetTopicSchemaVersions(ctx context.Context, envID, topicName string) ([]*SchemaMetadata, error)

	// BuildTopicCreateParams reads the partition count, replication factor and
	// configuration of an existing broker topic so it can be recreated elsewhere.
	BuildTopicCreateParams(ctx context.Context, envID, topicName string) (*TopicCreateParams, error)

	// CreateTopic registers the topic and creates it on the environment's broker.
	CreateTopic(ctx context.Context, envID string, topic *TopicMetadata, params TopicCreateParams) error

	// DeleteTopic removes the topic, its schemas and the broker topic.
	DeleteTopic(ctx context.Context, envID, name string) error

	UpdateTopicDescription(ctx context.Context, envID, name, description string) error
	MarkTopicDeprecated(ctx context.Context, envID, name, deprecationText, eolDate string) error
	UnmarkTopicDeprecated(ctx context.Context, envID, name string) error
	SetSubscriptionApprovalRequiredFlag(ctx context.Context, envID, name string, required bool) error

	// AddTopicSchemaVersion publishes the next schema version of a topic. The
	// version must be exactly one above the latest published version.
	AddTopicSchemaVersion(ctx context.Context, envID string, schema *SchemaMetadata) (*SchemaMetadata, error)

	AddTopicProducer(ctx context.Context, envID, topicName, producerApplicationID string) error
	RemoveTopicProducer(ctx context.Context, envID, topicName, producerApplicationID string) error

	// ChangeTopicOwner transfers ownership. The previous owner stays a producer.
	ChangeTopicOwner(ctx context.Context, envID, topicName, newOwnerApplicationID string) error
}

// SortTopics sorts topics by name.
func SortTopics(topics []*TopicMetadata) {
	sort.Slice(topics, func(i, j int) bool {
		return topics[i].Name < topics[j].Name
	})
}
