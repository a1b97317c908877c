// Package topic implements metastage.TopicService on top of per
// environment metadata stores.
package topic

import (
	"context"
	"fmt"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/metastage/metastage"
	"github.com/metastage/metastage/changes"
	icontext "github.com/metastage/metastage/context"
	"github.com/metastage/metastage/environment"
	"github.com/metastage/metastage/kit/platform/errors"
	"github.com/metastage/metastage/messaging"
	"github.com/metastage/metastage/metastore"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const (
	topicsStore  = "topics"
	schemasStore = "schemas"
)

var _ metastage.TopicService = (*Service)(nil)

// Service stores topics and schemas of every environment and creates the
// matching topics on the environment's broker.
type Service struct {
	envs    *environment.Registry
	topics  map[string]*metastore.Store[*metastage.TopicMetadata]
	schemas map[string]*metastore.Store[*metastage.SchemaMetadata]

	// mu serializes read-modify-write cycles on the stores.
	mu        sync.Mutex
	listeners changes.Listeners

	clock clock.Clock
	log   *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the clock used for schema timestamps.
func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithLogger sets the logger of the service.
func WithLogger(log *zap.Logger) Option {
	return func(s *Service) { s.log = log }
}

// WithListener registers a listener for applied changes.
func WithListener(l changes.Listener) Option {
	return func(s *Service) { s.listeners = append(s.listeners, l) }
}

// NewService opens the topic and schema stores on every environment.
func NewService(ctx context.Context, envs *environment.Registry, opts ...Option) (*Service, error) {
	s := &Service{
		envs:    envs,
		topics:  make(map[string]*metastore.Store[*metastage.TopicMetadata]),
		schemas: make(map[string]*metastore.Store[*metastage.SchemaMetadata]),
		clock:   clock.New(),
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, envID := range envs.EnvironmentIDs() {
		topics, err := environment.OpenStore[*metastage.TopicMetadata](ctx, envs, envID, topicsStore, nil)
		if err != nil {
			return nil, err
		}
		schemas, err := environment.OpenStore[*metastage.SchemaMetadata](ctx, envs, envID, schemasStore, nil)
		if err != nil {
			return nil, err
		}
		s.topics[envID] = topics
		s.schemas[envID] = schemas
	}
	return s, nil
}

// AddListener registers a listener for applied changes.
func (s *Service) AddListener(l changes.Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// notify reports c to the listeners. It must not be called with s.mu held;
// mutations defer it ahead of the unlock.
func (s *Service) notify(ctx context.Context, envID string, c changes.Change) {
	if c == nil {
		return
	}
	s.mu.Lock()
	listeners := s.listeners
	s.mu.Unlock()
	listeners.ChangeApplied(ctx, envID, c)
}

func (s *Service) stores(envID string) (*metastore.Store[*metastage.TopicMetadata], *metastore.Store[*metastage.SchemaMetadata], error) {
	topics, ok := s.topics[envID]
	if !ok {
		return nil, nil, metastage.ErrEnvironmentNotFound
	}
	return topics, s.schemas[envID], nil
}

// ListTopics implements metastage.TopicService.
func (s *Service) ListTopics(ctx context.Context, envID string) ([]*metastage.TopicMetadata, error) {
	topics, _, err := s.stores(envID)
	if err != nil {
		return nil, err
	}
	all := topics.GetAll()
	out := make([]*metastage.TopicMetadata, 0, len(all))
	for _, t := range all {
		out = append(out, t.Clone())
	}
	metastage.SortTopics(out)
	return out, nil
}

// GetTopic implements metastage.TopicService.
func (s *Service) GetTopic(ctx context.Context, envID, name string) (*metastage.TopicMetadata, error) {
	topics, _, err := s.stores(envID)
	if err != nil {
		return nil, err
	}
	t, ok := topics.Get(name)
	if !ok {
		return nil, metastage.ErrTopicNotFound(envID, name)
	}
	return t.Clone(), nil
}

// GetTopicSchemaVersions implements metastage.TopicService.
func (s *Service) GetTopicSchemaVersions(ctx context.Context, envID, topicName string) ([]*metastage.SchemaMetadata, error) {
	_, schemas, err := s.stores(envID)
	if err != nil {
		return nil, err
	}
	var out []*metastage.SchemaMetadata
	for _, sc := range schemas.GetAll() {
		if sc.TopicName == topicName {
			c := *sc
			out = append(out, &c)
		}
	}
	metastage.SortSchemas(out)
	return out, nil
}

// BuildTopicCreateParams implements metastage.TopicService.
func (s *Service) BuildTopicCreateParams(ctx context.Context, envID, topicName string) (*metastage.TopicCreateParams, error) {
	client, err := s.envs.Client(envID)
	if err != nil {
		return nil, err
	}
	desc, err := client.DescribeTopic(ctx, topicName)
	if err == messaging.ErrTopicNotFound {
		return nil, metastage.ErrTopicNotFound(envID, topicName)
	}
	if err != nil {
		return nil, &errors.Error{
			Code: errors.EUnavailable,
			Op:   metastage.OpBuildTopicCreateParams,
			Msg:  fmt.Sprintf("unable to describe topic %q", topicName),
			Err:  err,
		}
	}
	return &metastage.TopicCreateParams{
		NumberOfPartitions: desc.Partitions,
		ReplicationFactor:  desc.ReplicationFactor,
		TopicConfigs:       desc.Configs,
	}, nil
}

// CreateTopic implements metastage.TopicService.
func (s *Service) CreateTopic(ctx context.Context, envID string, topic *metastage.TopicMetadata, params metastage.TopicCreateParams) error {
	if topic == nil || topic.Name == "" {
		return &errors.Error{Code: errors.EInvalid, Op: metastage.OpCreateTopic, Msg: "topic name is empty"}
	}
	if !topic.Type.Valid() {
		return &errors.Error{Code: errors.EInvalid, Op: metastage.OpCreateTopic, Msg: fmt.Sprintf("invalid topic type %q", topic.Type)}
	}
	if topic.OwnerApplicationID == "" {
		return &errors.Error{Code: errors.EInvalid, Op: metastage.OpCreateTopic, Msg: "topic owner is empty"}
	}

	var applied changes.Change
	defer func() { s.notify(ctx, envID, applied) }()
	s.mu.Lock()
	defer s.mu.Unlock()

	topics, _, err := s.stores(envID)
	if err != nil {
		return err
	}
	if _, ok := topics.Get(topic.Name); ok {
		return metastage.ErrTopicExists(envID, topic.Name)
	}

	client, err := s.envs.Client(envID)
	if err != nil {
		return err
	}
	err = client.CreateTopic(ctx, messaging.TopicSpec{
		Name:              topic.Name,
		Partitions:        params.NumberOfPartitions,
		ReplicationFactor: params.ReplicationFactor,
		Configs:           params.TopicConfigs,
	})
	if err != nil && err != messaging.ErrTopicExists {
		return &errors.Error{
			Code: errors.EUnavailable,
			Op:   metastage.OpCreateTopic,
			Msg:  fmt.Sprintf("unable to create topic %q on the broker", topic.Name),
			Err:  err,
		}
	}

	rec := topic.Clone()
	if _, err := topics.Save(ctx, rec).Await(ctx); err != nil {
		return err
	}
	applied = &changes.TopicCreated{Topic: rec.Clone(), CreateParams: params}
	return nil
}

// DeleteTopic implements metastage.TopicService.
func (s *Service) DeleteTopic(ctx context.Context, envID, name string) error {
	var applied changes.Change
	defer func() { s.notify(ctx, envID, applied) }()
	s.mu.Lock()
	defer s.mu.Unlock()

	topics, schemas, err := s.stores(envID)
	if err != nil {
		return err
	}
	t, ok := topics.Get(name)
	if !ok {
		return metastage.ErrTopicNotFound(envID, name)
	}
	if t.DeletionProtected {
		return &errors.Error{
			Code: errors.EConflict,
			Op:   metastage.OpDeleteTopic,
			Msg:  fmt.Sprintf("topic %q is protected against deletion", name),
		}
	}

	client, err := s.envs.Client(envID)
	if err != nil {
		return err
	}
	if err := client.DeleteTopic(ctx, name); err != nil && err != messaging.ErrTopicNotFound {
		return &errors.Error{
			Code: errors.EUnavailable,
			Op:   metastage.OpDeleteTopic,
			Msg:  fmt.Sprintf("unable to delete topic %q on the broker", name),
			Err:  err,
		}
	}

	for _, sc := range schemas.GetAll() {
		if sc.TopicName != name {
			continue
		}
		if _, err := schemas.Delete(ctx, sc).Await(ctx); err != nil {
			return err
		}
	}
	if _, err := topics.Delete(ctx, t).Await(ctx); err != nil {
		return err
	}
	applied = &changes.TopicDeleted{TopicName: name}
	return nil
}

// update applies fn to a copy of the topic and saves it. fn returns the
// change to report, or nil if nothing changed.
func (s *Service) update(ctx context.Context, op, envID, name string, fn func(t *metastage.TopicMetadata) (changes.Change, error)) error {
	var applied changes.Change
	defer func() { s.notify(ctx, envID, applied) }()
	s.mu.Lock()
	defer s.mu.Unlock()

	topics, _, err := s.stores(envID)
	if err != nil {
		return err
	}
	current, ok := topics.Get(name)
	if !ok {
		return &errors.Error{Op: op, Err: metastage.ErrTopicNotFound(envID, name)}
	}

	t := current.Clone()
	c, err := fn(t)
	if err != nil || c == nil {
		return err
	}
	if _, err := topics.Save(ctx, t).Await(ctx); err != nil {
		return err
	}
	applied = c
	return nil
}

// UpdateTopicDescription implements metastage.TopicService.
func (s *Service) UpdateTopicDescription(ctx context.Context, envID, name, description string) error {
	return s.update(ctx, metastage.OpUpdateTopicDescription, envID, name, func(t *metastage.TopicMetadata) (changes.Change, error) {
		if t.Description == description {
			return nil, nil
		}
		t.Description = description
		return &changes.TopicDescriptionChanged{TopicName: name, NewDescription: description}, nil
	})
}

// MarkTopicDeprecated implements metastage.TopicService.
func (s *Service) MarkTopicDeprecated(ctx context.Context, envID, name, deprecationText, eolDate string) error {
	return s.update(ctx, metastage.OpMarkTopicDeprecated, envID, name, func(t *metastage.TopicMetadata) (changes.Change, error) {
		if t.Deprecated && t.DeprecationText == deprecationText && t.EOLDate == eolDate {
			return nil, nil
		}
		t.Deprecated = true
		t.DeprecationText = deprecationText
		t.EOLDate = eolDate
		return &changes.TopicDeprecated{TopicName: name, DeprecationText: deprecationText, EOLDate: eolDate}, nil
	})
}

// UnmarkTopicDeprecated implements metastage.TopicService.
func (s *Service) UnmarkTopicDeprecated(ctx context.Context, envID, name string) error {
	return s.update(ctx, metastage.OpUnmarkTopicDeprecated, envID, name, func(t *metastage.TopicMetadata) (changes.Change, error) {
		if !t.Deprecated {
			return nil, nil
		}
		t.Deprecated = false
		t.DeprecationText = ""
		t.EOLDate = ""
		return &changes.TopicUndeprecated{TopicName: name}, nil
	})
}

// SetSubscriptionApprovalRequiredFlag implements metastage.TopicService.
func (s *Service) SetSubscriptionApprovalRequiredFlag(ctx context.Context, envID, name string, required bool) error {
	return s.update(ctx, metastage.OpSetSubscriptionApprovalRequiredFlag, envID, name, func(t *metastage.TopicMetadata) (changes.Change, error) {
		if t.SubscriptionApprovalRequired == required {
			return nil, nil
		}
		t.SubscriptionApprovalRequired = required
		return &changes.TopicSubscriptionApprovalRequiredFlagUpdated{TopicName: name, SubscriptionApprovalRequired: required}, nil
	})
}

// AddTopicProducer implements metastage.TopicService.
func (s *Service) AddTopicProducer(ctx context.Context, envID, topicName, producerApplicationID string) error {
	if producerApplicationID == "" {
		return &errors.Error{Code: errors.EInvalid, Op: metastage.OpAddTopicProducer, Msg: "producer application id is empty"}
	}
	return s.update(ctx, metastage.OpAddTopicProducer, envID, topicName, func(t *metastage.TopicMetadata) (changes.Change, error) {
		if t.OwnerApplicationID == producerApplicationID || t.HasProducer(producerApplicationID) {
			return nil, nil
		}
		t.Producers = append(t.Producers, producerApplicationID)
		return &changes.TopicProducerApplicationAdded{TopicName: topicName, ProducerApplicationID: producerApplicationID}, nil
	})
}

// RemoveTopicProducer implements metastage.TopicService.
func (s *Service) RemoveTopicProducer(ctx context.Context, envID, topicName, producerApplicationID string) error {
	return s.update(ctx, metastage.OpRemoveTopicProducer, envID, topicName, func(t *metastage.TopicMetadata) (changes.Change, error) {
		if !t.HasProducer(producerApplicationID) {
			return nil, nil
		}
		t.Producers = without(t.Producers, producerApplicationID)
		return &changes.TopicProducerApplicationRemoved{TopicName: topicName, ProducerApplicationID: producerApplicationID}, nil
	})
}

// ChangeTopicOwner implements metastage.TopicService. The previous owner
// keeps producing to the topic as an additional producer.
func (s *Service) ChangeTopicOwner(ctx context.Context, envID, topicName, newOwnerApplicationID string) error {
	if newOwnerApplicationID == "" {
		return &errors.Error{Code: errors.EInvalid, Op: metastage.OpChangeTopicOwner, Msg: "new owner application id is empty"}
	}
	return s.update(ctx, metastage.OpChangeTopicOwner, envID, topicName, func(t *metastage.TopicMetadata) (changes.Change, error) {
		previous := t.OwnerApplicationID
		if previous == newOwnerApplicationID {
			return nil, nil
		}
		t.OwnerApplicationID = newOwnerApplicationID
		t.Producers = without(t.Producers, newOwnerApplicationID)
		if !t.HasProducer(previous) {
			t.Producers = append(t.Producers, previous)
		}
		return &changes.TopicOwnerChanged{
			TopicName:                  topicName,
			PreviousOwnerApplicationID: previous,
			NewOwnerApplicationID:      newOwnerApplicationID,
		}, nil
	})
}

// AddTopicSchemaVersion implements metastage.TopicService. A zero version
// publishes the next version.
func (s *Service) AddTopicSchemaVersion(ctx context.Context, envID string, schema *metastage.SchemaMetadata) (*metastage.SchemaMetadata, error) {
	if schema == nil {
		return nil, &errors.Error{Code: errors.EInvalid, Op: metastage.OpAddTopicSchemaVersion, Msg: "schema is empty"}
	}
	if err := validateSchema(schema.JSONSchema); err != nil {
		return nil, err
	}

	var applied changes.Change
	defer func() { s.notify(ctx, envID, applied) }()
	s.mu.Lock()
	defer s.mu.Unlock()

	topics, schemas, err := s.stores(envID)
	if err != nil {
		return nil, err
	}
	if _, ok := topics.Get(schema.TopicName); !ok {
		return nil, &errors.Error{Op: metastage.OpAddTopicSchemaVersion, Err: metastage.ErrTopicNotFound(envID, schema.TopicName)}
	}

	latest := 0
	for _, sc := range schemas.GetAll() {
		if sc.TopicName == schema.TopicName && sc.SchemaVersion > latest {
			latest = sc.SchemaVersion
		}
	}

	rec := *schema
	if rec.SchemaVersion == 0 {
		rec.SchemaVersion = latest + 1
	}
	if rec.SchemaVersion != latest+1 {
		return nil, &errors.Error{
			Code: errors.EInvalid,
			Op:   metastage.OpAddTopicSchemaVersion,
			Msg:  fmt.Sprintf("schema version %d of topic %q must follow latest version %d", rec.SchemaVersion, rec.TopicName, latest),
		}
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.clock.Now().UTC()
	}
	if rec.CreatedBy == "" {
		if p, err := icontext.GetPrincipal(ctx); err == nil {
			rec.CreatedBy = p.ID
		}
	}

	saved, err := schemas.Save(ctx, &rec).Await(ctx)
	if err != nil {
		return nil, err
	}
	out := *saved
	applied = &changes.TopicSchemaVersionPublished{TopicName: rec.TopicName, Schema: &out}
	return &out, nil
}

// validateSchema checks that doc is a JSON schema document.
func validateSchema(doc string) error {
	if !gjson.Valid(doc) {
		return &errors.Error{Code: errors.EInvalid, Op: metastage.OpAddTopicSchemaVersion, Msg: "schema is not valid JSON"}
	}
	parsed := gjson.Parse(doc)
	if !parsed.IsObject() {
		return &errors.Error{Code: errors.EInvalid, Op: metastage.OpAddTopicSchemaVersion, Msg: "schema must be a JSON object"}
	}
	if t := parsed.Get("type"); t.Exists() && t.Type != gjson.String && !t.IsArray() {
		return &errors.Error{Code: errors.EInvalid, Op: metastage.OpAddTopicSchemaVersion, Msg: `schema "type" must be a string or an array`}
	}
	return nil
}

func without(list []string, v string) []string {
	out := list[:0:0]
	for _, e := range list {
		if e != v {
			out = append(out, e)
		}
	}
	return out
}
