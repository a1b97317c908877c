package mock

import (
	"context"

	"github.com/metastage/metastage"
)

var _ metastage.TopicService = &TopicService{}

// TopicService is a mock topic service.
type TopicService struct {
	ListTopicsF                          func(ctx context.Context, envID string) ([]*metastage.TopicMetadata, error)
	GetTopicF                            func(ctx context.Context, envID, name string) (*metastage.TopicMetadata, error)
	GetTopicSchemaVersionsF              func(ctx context.Context, envID, topicName string) ([]*metastage.SchemaMetadata, error)
	BuildTopicCreateParamsF              func(ctx context.Context, envID, topicName string) (*metastage.TopicCreateParams, error)
	CreateTopicF                         func(ctx context.Context, envID string, topic *metastage.TopicMetadata, params metastage.TopicCreateParams) error
	DeleteTopicF                         func(ctx context.Context, envID, name string) error
	UpdateTopicDescriptionF              func(ctx context.Context, envID, name, description string) error
	MarkTopicDeprecatedF                 func(ctx context.Context, envID, name, deprecationText, eolDate string) error
	UnmarkTopicDeprecatedF               func(ctx context.Context, envID, name string) error
	SetSubscriptionApprovalRequiredFlagF func(ctx context.Context, envID, name string, required bool) error
	AddTopicSchemaVersionF               func(ctx context.Context, envID string, schema *metastage.SchemaMetadata) (*metastage.SchemaMetadata, error)
	AddTopicProducerF                    func(ctx context.Context, envID, topicName, producerApplicationID string) error
	RemoveTopicProducerF                 func(ctx context.Context, envID, topicName, producerApplicationID string) error
	ChangeTopicOwnerF                    func(ctx context.Context, envID, topicName, newOwnerApplicationID string) error
}

// ListTopics calls ListTopicsF.
func (s *TopicService) ListTopics(ctx context.Context, envID string) ([]*metastage.TopicMetadata, error) {
	return s.ListTopicsF(ctx, envID)
}

// GetTopic calls GetTopicF.
func (s *TopicService) GetTopic(ctx context.Context, envID, name string) (*metastage.TopicMetadata, error) {
	return s.GetTopicF(ctx, envID, name)
}

// GetTopicSchemaVersions calls GetTopicSchemaVersionsF.
func (s *TopicService) GetTopicSchemaVersions(ctx context.Context, envID, topicName string) ([]*metastage.SchemaMetadata, error) {
	return s.GetTopicSchemaVersionsF(ctx, envID, topicName)
}

// BuildTopicCreateParams calls BuildTopicCreateParamsF.
func (s *TopicService) BuildTopicCreateParams(ctx context.Context, envID, topicName string) (*metastage.TopicCreateParams, error) {
	return s.BuildTopicCreateParamsF(ctx, envID, topicName)
}

// CreateTopic calls CreateTopicF.
func (s *TopicService) CreateTopic(ctx context.Context, envID string, topic *metastage.TopicMetadata, params metastage.TopicCreateParams) error {
	return s.CreateTopicF(ctx, envID, topic, params)
}

// DeleteTopic calls DeleteTopicF.
func (s *TopicService) DeleteTopic(ctx context.Context, envID, name string) error {
	return s.DeleteTopicF(ctx, envID, name)
}

// UpdateTopicDescription calls UpdateTopicDescriptionF.
func (s *TopicService) UpdateTopicDescription(ctx context.Context, envID, name, description string) error {
	return s.UpdateTopicDescriptionF(ctx, envID, name, description)
}

// MarkTopicDeprecated calls MarkTopicDeprecatedF.
func (s *TopicService) MarkTopicDeprecated(ctx context.Context, envID, name, deprecationText, eolDate string) error {
	return s.MarkTopicDeprecatedF(ctx, envID, name, deprecationText, eolDate)
}

// UnmarkTopicDeprecated calls UnmarkTopicDeprecatedF.
func (s *TopicService) UnmarkTopicDeprecated(ctx context.Context, envID, name string) error {
	return s.UnmarkTopicDeprecatedF(ctx, envID, name)
}

// SetSubscriptionApprovalRequiredFlag calls SetSubscriptionApprovalRequiredFlagF.
func (s *TopicService) SetSubscriptionApprovalRequiredFlag(ctx context.Context, envID, name string, required bool) error {
	return s.SetSubscriptionApprovalRequiredFlagF(ctx, envID, name, required)
}

// AddTopicSchemaVersion calls AddTopicSchemaVersionF.
func (s *TopicService) AddTopicSchemaVersion(ctx context.Context, envID string, schema *metastage.SchemaMetadata) (*metastage.SchemaMetadata, error) {
	return s.AddTopicSchemaVersionF(ctx, envID, schema)
}

// AddTopicProducer calls AddTopicProducerF.
func (s *TopicService) AddTopicProducer(ctx context.Context, envID, topicName, producerApplicationID string) error {
	return s.AddTopicProducerF(ctx, envID, topicName, producerApplicationID)
}

// RemoveTopicProducer calls RemoveTopicProducerF.
func (s *TopicService) RemoveTopicProducer(ctx context.Context, envID, topicName, producerApplicationID string) error {
	return s.RemoveTopicProducerF(ctx, envID, topicName, producerApplicationID)
}

// ChangeTopicOwner calls ChangeTopicOwnerF.
func (s *TopicService) ChangeTopicOwner(ctx context.Context, envID, topicName, newOwnerApplicationID string) error {
	return s.ChangeTopicOwnerF(ctx, envID, topicName, newOwnerApplicationID)
}
