package staging

import (
	"context"
	"fmt"

	"github.com/metastage/metastage"
	"github.com/metastage/metastage/changes"
	"github.com/metastage/metastage/kit/platform/errors"
	"github.com/metastage/metastage/kit/tracing"
	"github.com/metastage/metastage/pkg/future"
	"github.com/opentracing/opentracing-go"
	"go.uber.org/zap"
)

const opBuild = "staging/Build"

// Differ computes stagings from the topics and subscriptions of two
// environments. It only reads.
type Differ struct {
	envs          metastage.EnvironmentService
	apps          metastage.ApplicationService
	topics        metastage.TopicService
	subscriptions metastage.SubscriptionService
	log           *zap.Logger
}

// NewDiffer returns a Differ. apps may be nil, in which case application
// ids are not validated.
func NewDiffer(log *zap.Logger, envs metastage.EnvironmentService, apps metastage.ApplicationService, topics metastage.TopicService, subscriptions metastage.SubscriptionService) *Differ {
	if log == nil {
		log = zap.NewNop()
	}
	return &Differ{
		envs:          envs,
		apps:          apps,
		topics:        topics,
		subscriptions: subscriptions,
		log:           log,
	}
}

// Build computes the changes that bring targetEnvID up to date with
// sourceEnvID for one application. It fails only for unknown environments
// or applications; problems of individual topics surface when the changes
// are applied.
func (d *Differ) Build(ctx context.Context, applicationID, sourceEnvID, targetEnvID string, filter []changes.Change) *future.Future[*Staging] {
	return future.Go(func() (*Staging, error) {
		span, ctx := tracing.StartSpanFromContext(ctx,
			opentracing.Tag{Key: "application", Value: applicationID},
			opentracing.Tag{Key: "source", Value: sourceEnvID},
			opentracing.Tag{Key: "target", Value: targetEnvID})
		defer span.Finish()

		s, err := d.build(ctx, applicationID, sourceEnvID, targetEnvID)
		if err != nil {
			return nil, tracing.LogError(span, err)
		}
		if filter != nil {
			s.Changes = changes.Intersect(s.Changes, filter)
		}
		return s, nil
	})
}

func (d *Differ) validate(ctx context.Context, applicationID, sourceEnvID, targetEnvID string) error {
	if sourceEnvID == targetEnvID {
		return &errors.Error{Op: opBuild, Err: metastage.ErrSameEnvironment}
	}
	for _, id := range []string{sourceEnvID, targetEnvID} {
		if _, err := d.envs.GetEnvironment(ctx, id); err != nil {
			return &errors.Error{
				Code: errors.EInvalid,
				Op:   opBuild,
				Msg:  fmt.Sprintf("unknown environment %q", id),
				Err:  err,
			}
		}
	}
	if applicationID == "" {
		return &errors.Error{Code: errors.EInvalid, Op: opBuild, Msg: "application id is empty"}
	}
	if d.apps != nil {
		if _, err := d.apps.GetApplication(ctx, applicationID); err != nil {
			return &errors.Error{
				Code: errors.EInvalid,
				Op:   opBuild,
				Msg:  fmt.Sprintf("unknown application %q", applicationID),
				Err:  err,
			}
		}
	}
	return nil
}

func (d *Differ) build(ctx context.Context, applicationID, sourceEnvID, targetEnvID string) (*Staging, error) {
	if err := d.validate(ctx, applicationID, sourceEnvID, targetEnvID); err != nil {
		return nil, err
	}

	sourceTopics, err := d.topics.ListTopics(ctx, sourceEnvID)
	if err != nil {
		return nil, err
	}
	targetTopics, err := d.topics.ListTopics(ctx, targetEnvID)
	if err != nil {
		return nil, err
	}
	existing := make(map[string]*metastage.TopicMetadata, len(targetTopics))
	for _, t := range targetTopics {
		existing[t.Name] = t
	}

	var list []changes.Change
	for _, src := range sourceTopics {
		if src.OwnerApplicationID != applicationID {
			continue
		}

		var topicChanges []changes.Change
		if dst, ok := existing[src.Name]; ok {
			topicChanges, err = d.diffTopic(ctx, sourceEnvID, targetEnvID, src, dst)
		} else {
			topicChanges, err = d.createTopic(ctx, sourceEnvID, src)
		}
		if err != nil {
			return nil, err
		}
		list = append(list, topicChanges...)
	}

	subChanges, err := d.diffSubscriptions(ctx, applicationID, sourceEnvID, targetEnvID)
	if err != nil {
		return nil, err
	}
	list = append(list, subChanges...)

	d.log.Debug("Staging computed",
		zap.String("application", applicationID),
		zap.String("source", sourceEnvID),
		zap.String("target", targetEnvID),
		zap.Int("changes", len(list)))

	return &Staging{
		ApplicationID:       applicationID,
		SourceEnvironmentID: sourceEnvID,
		TargetEnvironmentID: targetEnvID,
		Changes:             list,
	}, nil
}

// createTopic stages a topic missing on the target. The creation carries
// the earliest schema as one compound change; later schemas and producers
// follow as separate changes.
func (d *Differ) createTopic(ctx context.Context, sourceEnvID string, src *metastage.TopicMetadata) ([]changes.Change, error) {
	params, err := d.topics.BuildTopicCreateParams(ctx, sourceEnvID, src.Name)
	if err != nil {
		return nil, err
	}
	schemas, err := d.topics.GetTopicSchemaVersions(ctx, sourceEnvID, src.Name)
	if err != nil {
		return nil, err
	}

	topic := src.Clone()
	topic.Producers = nil
	created := &changes.TopicCreated{Topic: topic, CreateParams: *params}

	var list []changes.Change
	if len(schemas) == 0 {
		list = append(list, created)
	} else {
		list = append(list, changes.NewCompound(created, publish(schemas[0])))
		for _, s := range schemas[1:] {
			list = append(list, publish(s))
		}
	}
	for _, p := range src.Producers {
		list = append(list, &changes.TopicProducerApplicationAdded{TopicName: src.Name, ProducerApplicationID: p})
	}
	return list, nil
}

func (d *Differ) diffTopic(ctx context.Context, sourceEnvID, targetEnvID string, src, dst *metastage.TopicMetadata) ([]changes.Change, error) {
	var list []changes.Change

	if src.Description != dst.Description {
		list = append(list, &changes.TopicDescriptionChanged{TopicName: src.Name, NewDescription: src.Description})
	}
	switch {
	case src.Deprecated && (!dst.Deprecated || src.DeprecationText != dst.DeprecationText || src.EOLDate != dst.EOLDate):
		list = append(list, &changes.TopicDeprecated{TopicName: src.Name, DeprecationText: src.DeprecationText, EOLDate: src.EOLDate})
	case !src.Deprecated && dst.Deprecated:
		list = append(list, &changes.TopicUndeprecated{TopicName: src.Name})
	}
	if src.SubscriptionApprovalRequired != dst.SubscriptionApprovalRequired {
		list = append(list, &changes.TopicSubscriptionApprovalRequiredFlagUpdated{
			TopicName:                    src.Name,
			SubscriptionApprovalRequired: src.SubscriptionApprovalRequired,
		})
	}

	// An owner change keeps the previous owner as producer on the target,
	// so producers are compared against the state after that change.
	producers := append([]string(nil), dst.Producers...)
	if src.OwnerApplicationID != dst.OwnerApplicationID {
		list = append(list, &changes.TopicOwnerChanged{
			TopicName:                  src.Name,
			PreviousOwnerApplicationID: dst.OwnerApplicationID,
			NewOwnerApplicationID:      src.OwnerApplicationID,
		})
		producers = remove(producers, src.OwnerApplicationID)
		if !contains(producers, dst.OwnerApplicationID) {
			producers = append(producers, dst.OwnerApplicationID)
		}
	}

	sourceSchemas, err := d.topics.GetTopicSchemaVersions(ctx, sourceEnvID, src.Name)
	if err != nil {
		return nil, err
	}
	targetSchemas, err := d.topics.GetTopicSchemaVersions(ctx, targetEnvID, src.Name)
	if err != nil {
		return nil, err
	}
	published := make(map[int]bool, len(targetSchemas))
	for _, s := range targetSchemas {
		published[s.SchemaVersion] = true
	}
	for _, s := range sourceSchemas {
		if !published[s.SchemaVersion] {
			list = append(list, publish(s))
		}
	}

	for _, p := range src.Producers {
		if !contains(producers, p) {
			list = append(list, &changes.TopicProducerApplicationAdded{TopicName: src.Name, ProducerApplicationID: p})
		}
	}
	for _, p := range producers {
		if !contains(src.Producers, p) {
			list = append(list, &changes.TopicProducerApplicationRemoved{TopicName: src.Name, ProducerApplicationID: p})
		}
	}
	return list, nil
}

// diffSubscriptions stages the application's subscriptions that have no
// counterpart on the target. Counterparts match by client and topic, ids
// differ between environments.
func (d *Differ) diffSubscriptions(ctx context.Context, applicationID, sourceEnvID, targetEnvID string) ([]changes.Change, error) {
	source, err := d.subscriptions.GetSubscriptionsOfApplication(ctx, sourceEnvID, applicationID, true)
	if err != nil {
		return nil, err
	}
	target, err := d.subscriptions.GetSubscriptionsOfApplication(ctx, targetEnvID, applicationID, true)
	if err != nil {
		return nil, err
	}

	var list []changes.Change
	for _, s := range source {
		if s.State == metastage.SubscriptionStateRejected || s.State == metastage.SubscriptionStateCanceled {
			continue
		}
		found := false
		for _, t := range target {
			if t.SameAs(s) {
				found = true
				break
			}
		}
		if !found {
			sub := *s
			sub.ID = ""
			list = append(list, &changes.TopicSubscribed{Subscription: &sub})
		}
	}
	return list, nil
}

func publish(s *metastage.SchemaMetadata) *changes.TopicSchemaVersionPublished {
	c := *s
	return &changes.TopicSchemaVersionPublished{TopicName: s.TopicName, Schema: &c}
}

func contains(list []string, v string) bool {
	for _, e := range list {
		if e == v {
			return true
		}
	}
	return false
}

func remove(list []string, v string) []string {
	out := list[:0]
	for _, e := range list {
		if e != v {
			out = append(out, e)
		}
	}
	return out
}
