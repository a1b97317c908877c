package metastage

import (
	"fmt"

	"github.com/metastage/metastage/kit/platform/errors"
)

var (
	// ErrEnvironmentNotFound is used when an environment id is not configured.
	ErrEnvironmentNotFound = &errors.Error{
		Code: errors.EInvalid,
		Msg:  "environment not found",
	}

	// ErrApplicationNotFound is used when an application id is not known.
	ErrApplicationNotFound = &errors.Error{
		Code: errors.EInvalid,
		Msg:  "application not found",
	}

	// ErrSameEnvironment is used when staging from an environment onto itself.
	ErrSameEnvironment = &errors.Error{
		Code: errors.EInvalid,
		Msg:  "source and target environment must differ",
	}

	// ErrNoNextEnvironment is used when the last environment has no successor.
	ErrNoNextEnvironment = &errors.Error{
		Code: errors.ENotFound,
		Msg:  "no next environment",
	}

	// ErrEmptyKey is used when a record without key is saved or deleted.
	ErrEmptyKey = &errors.Error{
		Code: errors.EInvalid,
		Msg:  "record key is empty",
	}
)

// ErrTopicNotFound is used when a topic is not registered on an environment.
func ErrTopicNotFound(envID, name string) *errors.Error {
	return &errors.Error{
		Code: errors.ENotFound,
		Msg:  fmt.Sprintf("topic %q not found on environment %q", name, envID),
	}
}

// ErrTopicExists is used when creating a topic that is already registered.
func ErrTopicExists(envID, name string) *errors.Error {
	return &errors.Error{
		Code: errors.EConflict,
		Msg:  fmt.Sprintf("topic %q already exists on environment %q", name, envID),
	}
}

// ErrTopicDeprecated is used when a deprecated topic would be created on another environment.
func ErrTopicDeprecated(name string) *errors.Error {
	return &errors.Error{
		Code: errors.EConflict,
		Msg:  fmt.Sprintf("topic %q is deprecated and cannot be created on a new environment", name),
	}
}

// ErrMissingSchema is used when a topic type requires a schema but none is available.
func ErrMissingSchema(name string) *errors.Error {
	return &errors.Error{
		Code: errors.EConflict,
		Msg:  fmt.Sprintf("topic %q requires a schema, but no schema is available", name),
	}
}

// ErrSubscriptionNotFound is used when a subscription id is unknown.
func ErrSubscriptionNotFound(envID, id string) *errors.Error {
	return &errors.Error{
		Code: errors.ENotFound,
		Msg:  fmt.Sprintf("subscription %q not found on environment %q", id, envID),
	}
}

// ErrSubscriptionExists is used when an application subscribes twice to the same topic.
func ErrSubscriptionExists(envID, appID, topicName string) *errors.Error {
	return &errors.Error{
		Code: errors.EConflict,
		Msg:  fmt.Sprintf("application %q already subscribed to topic %q on environment %q", appID, topicName, envID),
	}
}
