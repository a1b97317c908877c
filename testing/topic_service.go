package testing

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/metastage/metastage"
	"github.com/metastage/metastage/kit/platform/errors"
)

// TopicEnvironment is the environment the TopicService suite runs against.
const TopicEnvironment = "dev"

const testSchema = `{"$schema":"http://json-schema.org/draft-07/schema#","type":"object"}`

var topicCmpOptions = cmp.Options{
	cmpopts.EquateEmpty(),
	cmpopts.IgnoreFields(metastage.SchemaMetadata{}, "ID", "CreatedAt"),
}

// TopicFields are the topics and schemas present on TopicEnvironment
// before a test runs.
type TopicFields struct {
	Topics  []*metastage.TopicMetadata
	Schemas []*metastage.SchemaMetadata
}

type topicTestFunc func(init func(TopicFields, *testing.T) (metastage.TopicService, func()), t *testing.T)

// TopicService tests all the service functions.
func TopicService(
	init func(TopicFields, *testing.T) (metastage.TopicService, func()), t *testing.T,
) {
	tests := []struct {
		name string
		fn   topicTestFunc
	}{
		{
			name: "CreateTopic",
			fn:   CreateTopic,
		},
		{
			name: "AddTopicSchemaVersion",
			fn:   AddTopicSchemaVersion,
		},
		{
			name: "ChangeTopicOwner",
			fn:   ChangeTopicOwner,
		},
		{
			name: "TopicProducers",
			fn:   TopicProducers,
		},
		{
			name: "DeprecateTopic",
			fn:   DeprecateTopic,
		},
		{
			name: "DeleteTopic",
			fn:   DeleteTopic,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tt.fn(init, t)
		})
	}
}

func eventsTopic(name, owner string) *metastage.TopicMetadata {
	return &metastage.TopicMetadata{
		Name:               name,
		Type:               metastage.TopicTypeEvents,
		OwnerApplicationID: owner,
	}
}

// CreateTopic testing
func CreateTopic(
	init func(TopicFields, *testing.T) (metastage.TopicService, func()),
	t *testing.T,
) {
	type args struct {
		topic *metastage.TopicMetadata
	}
	type wants struct {
		err    error
		topics []*metastage.TopicMetadata
	}

	tests := []struct {
		name   string
		fields TopicFields
		args   args
		wants  wants
	}{
		{
			name:   "create topic in empty environment",
			fields: TopicFields{},
			args: args{
				topic: eventsTopic("orders", "shop"),
			},
			wants: wants{
				topics: []*metastage.TopicMetadata{eventsTopic("orders", "shop")},
			},
		},
		{
			name: "topics are sorted by name",
			fields: TopicFields{
				Topics: []*metastage.TopicMetadata{eventsTopic("payments", "billing")},
			},
			args: args{
				topic: eventsTopic("orders", "shop"),
			},
			wants: wants{
				topics: []*metastage.TopicMetadata{
					eventsTopic("orders", "shop"),
					eventsTopic("payments", "billing"),
				},
			},
		},
		{
			name: "names must be unique",
			fields: TopicFields{
				Topics: []*metastage.TopicMetadata{eventsTopic("orders", "shop")},
			},
			args: args{
				topic: eventsTopic("orders", "other"),
			},
			wants: wants{
				err:    metastage.ErrTopicExists(TopicEnvironment, "orders"),
				topics: []*metastage.TopicMetadata{eventsTopic("orders", "shop")},
			},
		},
		{
			name:   "topic type must be known",
			fields: TopicFields{},
			args: args{
				topic: &metastage.TopicMetadata{Name: "orders", Type: "STREAM", OwnerApplicationID: "shop"},
			},
			wants: wants{
				err: &errors.Error{Code: errors.EInvalid, Msg: `invalid topic type "STREAM"`},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, done := init(tt.fields, t)
			defer done()
			ctx := context.Background()

			err := s.CreateTopic(ctx, TopicEnvironment, tt.args.topic, metastage.TopicCreateParams{NumberOfPartitions: 3, ReplicationFactor: 1})
			ErrorsEqual(t, err, tt.wants.err)

			topics, err := s.ListTopics(ctx, TopicEnvironment)
			if err != nil {
				t.Fatalf("failed to list topics: %v", err)
			}
			if diff := cmp.Diff(tt.wants.topics, topics, topicCmpOptions...); diff != "" {
				t.Errorf("topics are different -want/+got\ndiff %s", diff)
			}
		})
	}
}

// AddTopicSchemaVersion testing
func AddTopicSchemaVersion(
	init func(TopicFields, *testing.T) (metastage.TopicService, func()),
	t *testing.T,
) {
	v1 := &metastage.SchemaMetadata{ID: "s1", TopicName: "orders", SchemaVersion: 1, JSONSchema: testSchema}

	type wants struct {
		err      error
		versions []int
	}

	tests := []struct {
		name   string
		fields TopicFields
		schema *metastage.SchemaMetadata
		wants  wants
	}{
		{
			name: "first version",
			fields: TopicFields{
				Topics: []*metastage.TopicMetadata{eventsTopic("orders", "shop")},
			},
			schema: &metastage.SchemaMetadata{TopicName: "orders", SchemaVersion: 1, JSONSchema: testSchema},
			wants:  wants{versions: []int{1}},
		},
		{
			name: "zero version publishes the next one",
			fields: TopicFields{
				Topics:  []*metastage.TopicMetadata{eventsTopic("orders", "shop")},
				Schemas: []*metastage.SchemaMetadata{v1},
			},
			schema: &metastage.SchemaMetadata{TopicName: "orders", JSONSchema: testSchema},
			wants:  wants{versions: []int{1, 2}},
		},
		{
			name: "versions must not skip",
			fields: TopicFields{
				Topics:  []*metastage.TopicMetadata{eventsTopic("orders", "shop")},
				Schemas: []*metastage.SchemaMetadata{v1},
			},
			schema: &metastage.SchemaMetadata{TopicName: "orders", SchemaVersion: 3, JSONSchema: testSchema},
			wants: wants{
				err:      &errors.Error{Code: errors.EInvalid, Msg: `schema version 3 of topic "orders" must follow latest version 1`},
				versions: []int{1},
			},
		},
		{
			name: "schema must be JSON",
			fields: TopicFields{
				Topics: []*metastage.TopicMetadata{eventsTopic("orders", "shop")},
			},
			schema: &metastage.SchemaMetadata{TopicName: "orders", SchemaVersion: 1, JSONSchema: `{"type":`},
			wants: wants{
				err: &errors.Error{Code: errors.EInvalid, Msg: "schema is not valid JSON"},
			},
		},
		{
			name:   "topic must exist",
			fields: TopicFields{},
			schema: &metastage.SchemaMetadata{TopicName: "orders", SchemaVersion: 1, JSONSchema: testSchema},
			wants: wants{
				err: metastage.ErrTopicNotFound(TopicEnvironment, "orders"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, done := init(tt.fields, t)
			defer done()
			ctx := context.Background()

			saved, err := s.AddTopicSchemaVersion(ctx, TopicEnvironment, tt.schema)
			ErrorsEqual(t, err, tt.wants.err)
			if err == nil && saved.ID == "" {
				t.Errorf("expected published schema to get an id")
			}

			schemas, err := s.GetTopicSchemaVersions(ctx, TopicEnvironment, "orders")
			if err != nil {
				t.Fatalf("failed to get schemas: %v", err)
			}
			var versions []int
			for _, sc := range schemas {
				versions = append(versions, sc.SchemaVersion)
			}
			if diff := cmp.Diff(tt.wants.versions, versions, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("versions are different -want/+got\ndiff %s", diff)
			}
		})
	}
}

// ChangeTopicOwner testing
func ChangeTopicOwner(
	init func(TopicFields, *testing.T) (metastage.TopicService, func()),
	t *testing.T,
) {
	topic := eventsTopic("orders", "shop")
	topic.Producers = []string{"checkout"}

	s, done := init(TopicFields{Topics: []*metastage.TopicMetadata{topic}}, t)
	defer done()
	ctx := context.Background()

	if err := s.ChangeTopicOwner(ctx, TopicEnvironment, "orders", "checkout"); err != nil {
		t.Fatalf("failed to change owner: %v", err)
	}
	got, err := s.GetTopic(ctx, TopicEnvironment, "orders")
	if err != nil {
		t.Fatalf("failed to get topic: %v", err)
	}

	want := eventsTopic("orders", "checkout")
	want.Producers = []string{"shop"}
	if diff := cmp.Diff(want, got, topicCmpOptions...); diff != "" {
		t.Errorf("topic is different -want/+got\ndiff %s", diff)
	}

	err = s.ChangeTopicOwner(ctx, TopicEnvironment, "unknown", "checkout")
	ErrorsEqual(t, err, metastage.ErrTopicNotFound(TopicEnvironment, "unknown"))
}

// TopicProducers testing
func TopicProducers(
	init func(TopicFields, *testing.T) (metastage.TopicService, func()),
	t *testing.T,
) {
	s, done := init(TopicFields{Topics: []*metastage.TopicMetadata{eventsTopic("orders", "shop")}}, t)
	defer done()
	ctx := context.Background()

	steps := []struct {
		add, remove string
		want        []string
	}{
		{add: "checkout", want: []string{"checkout"}},
		{add: "checkout", want: []string{"checkout"}},
		{add: "shop", want: []string{"checkout"}},
		{add: "billing", want: []string{"checkout", "billing"}},
		{remove: "checkout", want: []string{"billing"}},
		{remove: "unknown", want: []string{"billing"}},
	}
	for i, step := range steps {
		var err error
		if step.add != "" {
			err = s.AddTopicProducer(ctx, TopicEnvironment, "orders", step.add)
		} else {
			err = s.RemoveTopicProducer(ctx, TopicEnvironment, "orders", step.remove)
		}
		if err != nil {
			t.Fatalf("step %d failed: %v", i, err)
		}
		got, err := s.GetTopic(ctx, TopicEnvironment, "orders")
		if err != nil {
			t.Fatalf("failed to get topic: %v", err)
		}
		if diff := cmp.Diff(step.want, got.Producers); diff != "" {
			t.Errorf("step %d: producers are different -want/+got\ndiff %s", i, diff)
		}
	}
}

// DeprecateTopic testing
func DeprecateTopic(
	init func(TopicFields, *testing.T) (metastage.TopicService, func()),
	t *testing.T,
) {
	s, done := init(TopicFields{Topics: []*metastage.TopicMetadata{eventsTopic("orders", "shop")}}, t)
	defer done()
	ctx := context.Background()

	if err := s.MarkTopicDeprecated(ctx, TopicEnvironment, "orders", "use orders-v2", "2030-01-01"); err != nil {
		t.Fatalf("failed to deprecate topic: %v", err)
	}
	got, err := s.GetTopic(ctx, TopicEnvironment, "orders")
	if err != nil {
		t.Fatalf("failed to get topic: %v", err)
	}
	want := eventsTopic("orders", "shop")
	want.Deprecated = true
	want.DeprecationText = "use orders-v2"
	want.EOLDate = "2030-01-01"
	if diff := cmp.Diff(want, got, topicCmpOptions...); diff != "" {
		t.Errorf("topic is different -want/+got\ndiff %s", diff)
	}

	if err := s.UnmarkTopicDeprecated(ctx, TopicEnvironment, "orders"); err != nil {
		t.Fatalf("failed to undeprecate topic: %v", err)
	}
	got, err = s.GetTopic(ctx, TopicEnvironment, "orders")
	if err != nil {
		t.Fatalf("failed to get topic: %v", err)
	}
	if diff := cmp.Diff(eventsTopic("orders", "shop"), got, topicCmpOptions...); diff != "" {
		t.Errorf("topic is different -want/+got\ndiff %s", diff)
	}
}

// DeleteTopic testing
func DeleteTopic(
	init func(TopicFields, *testing.T) (metastage.TopicService, func()),
	t *testing.T,
) {
	protected := eventsTopic("payments", "billing")
	protected.DeletionProtected = true

	s, done := init(TopicFields{
		Topics: []*metastage.TopicMetadata{eventsTopic("orders", "shop"), protected},
		Schemas: []*metastage.SchemaMetadata{
			{ID: "s1", TopicName: "orders", SchemaVersion: 1, JSONSchema: testSchema},
		},
	}, t)
	defer done()
	ctx := context.Background()

	if err := s.DeleteTopic(ctx, TopicEnvironment, "orders"); err != nil {
		t.Fatalf("failed to delete topic: %v", err)
	}
	_, err := s.GetTopic(ctx, TopicEnvironment, "orders")
	ErrorsEqual(t, err, metastage.ErrTopicNotFound(TopicEnvironment, "orders"))

	schemas, err := s.GetTopicSchemaVersions(ctx, TopicEnvironment, "orders")
	if err != nil {
		t.Fatalf("failed to get schemas: %v", err)
	}
	if len(schemas) != 0 {
		t.Errorf("expected schemas of deleted topic to be gone, got %d", len(schemas))
	}

	err = s.DeleteTopic(ctx, TopicEnvironment, "payments")
	ErrorsEqual(t, err, &errors.Error{Code: errors.EConflict, Msg: `topic "payments" is protected against deletion`})
}
