// Package metastage holds the domain model of a governance control plane for
// a fleet of message broker clusters ("environments"). Topics, schemas and
// subscriptions are described per environment and promoted from one
// environment to the next by computing and replaying the differences.
//
// The root package only declares types and service contracts. Storage lives
// in metastore, mutations are modeled in changes and promotion is
// implemented in staging.
package metastage

// ops for domain errors and service logs.
const (
	OpListTopics                          = "ListTopics"
	OpGetTopic                            = "GetTopic"
	OpGetTopicSchemaVersions              = "GetTopicSchemaVersions"
	OpBuildTopicCreateParams              = "BuildTopicCreateParams"
	OpCreateTopic                         = "CreateTopic"
	OpDeleteTopic                         = "DeleteTopic"
	OpUpdateTopicDescription              = "UpdateTopicDescription"
	OpMarkTopicDeprecated                 = "MarkTopicDeprecated"
	OpUnmarkTopicDeprecated               = "UnmarkTopicDeprecated"
	OpSetSubscriptionApprovalRequiredFlag = "SetSubscriptionApprovalRequiredFlag"
	OpAddTopicSchemaVersion               = "AddTopicSchemaVersion"
	OpAddTopicProducer                    = "AddTopicProducer"
	OpRemoveTopicProducer                 = "RemoveTopicProducer"
	OpChangeTopicOwner                    = "ChangeTopicOwner"

	OpGetSubscriptionsOfApplication = "GetSubscriptionsOfApplication"
	OpGetSubscriptionsForTopic      = "GetSubscriptionsForTopic"
	OpGetSubscription               = "GetSubscription"
	OpSubscribeToTopic              = "SubscribeToTopic"
	OpAddSubscription               = "AddSubscription"
	OpUpdateSubscriptionState       = "UpdateSubscriptionState"
	OpDeleteSubscription            = "DeleteSubscription"
)
