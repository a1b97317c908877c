package environment_test

import (
	"context"
	"testing"
	"time"

	"github.com/metastage/metastage"
	"github.com/metastage/metastage/environment"
	"github.com/metastage/metastage/kit/platform/errors"
	"github.com/metastage/metastage/messaging"
	"github.com/metastage/metastage/metastore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type record struct {
	ID string `json:"id"`
}

func (r *record) Key() string { return r.ID }

type otherRecord struct {
	Name string `json:"name"`
}

func (r *otherRecord) Key() string { return r.Name }

func boolP(b bool) *bool { return &b }

func TestEnvironments(t *testing.T) {
	tests := []struct {
		name    string
		configs []environment.Config
		want    []*metastage.Environment
		wantErr string
	}{
		{
			name: "defaults",
			configs: []environment.Config{
				{ID: "dev"},
				{ID: "prod", Name: "Production", Production: true},
			},
			want: []*metastage.Environment{
				{ID: "dev", Name: "dev"},
				{ID: "prod", Name: "Production", Production: true, Stagable: true},
			},
		},
		{
			name: "explicit stagable",
			configs: []environment.Config{
				{ID: "dev", Stagable: boolP(true)},
				{ID: "prod", Stagable: boolP(false)},
			},
			want: []*metastage.Environment{
				{ID: "dev", Name: "dev", Stagable: true},
				{ID: "prod", Name: "prod"},
			},
		},
		{
			name:    "empty",
			wantErr: "no environments configured",
		},
		{
			name:    "missing id",
			configs: []environment.Config{{ID: "dev"}, {Name: "test"}},
			wantErr: "environment 1 has no id",
		},
		{
			name:    "duplicate id",
			configs: []environment.Config{{ID: "dev"}, {ID: "dev"}},
			wantErr: `duplicate environment id "dev"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := environment.Environments(tt.configs)
			if tt.wantErr != "" {
				require.EqualError(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func newRegistry(t *testing.T, ids ...string) (*environment.Registry, map[string]*messaging.Broker) {
	t.Helper()
	envs := make([]*metastage.Environment, 0, len(ids))
	clients := map[string]messaging.Client{}
	brokers := map[string]*messaging.Broker{}
	for _, id := range ids {
		envs = append(envs, &metastage.Environment{ID: id, Name: id})
		b := messaging.NewBroker()
		clients[id] = b
		brokers[id] = b
	}
	r, err := environment.NewRegistry(zaptest.NewLogger(t), envs, clients, metastore.WithTopicPrefix("test-"))
	require.NoError(t, err)
	return r, brokers
}

func TestNewRegistry_MissingClient(t *testing.T) {
	_, err := environment.NewRegistry(nil, []*metastage.Environment{{ID: "dev"}}, nil)
	require.Error(t, err)
}

func TestRegistry_Environments(t *testing.T) {
	r, _ := newRegistry(t, "dev", "test", "prod")
	defer r.Close()
	ctx := context.Background()

	envs, err := r.ListEnvironments(ctx)
	require.NoError(t, err)
	require.Len(t, envs, 3)
	assert.Equal(t, []string{"dev", "test", "prod"}, r.EnvironmentIDs())

	next, err := r.NextEnvironment(ctx, "dev")
	require.NoError(t, err)
	assert.Equal(t, "test", next.ID)

	_, err = r.NextEnvironment(ctx, "prod")
	assert.Equal(t, metastage.ErrNoNextEnvironment, err)

	_, err = r.NextEnvironment(ctx, "staging")
	assert.Equal(t, metastage.ErrEnvironmentNotFound, err)

	_, err = r.GetEnvironment(ctx, "staging")
	assert.Equal(t, errors.EInvalid, errors.ErrorCode(err))

	_, err = r.Client("staging")
	assert.Equal(t, metastage.ErrEnvironmentNotFound, err)
}

func TestOpenStore(t *testing.T) {
	r, brokers := newRegistry(t, "dev", "prod")
	defer r.Close()
	ctx := context.Background()

	s1, err := environment.OpenStore[*record](ctx, r, "dev", "records", nil)
	require.NoError(t, err)
	s2, err := environment.OpenStore[*record](ctx, r, "dev", "records", nil)
	require.NoError(t, err)
	assert.Same(t, s1, s2, "stores are opened once per environment and name")

	s3, err := environment.OpenStore[*record](ctx, r, "prod", "records", nil)
	require.NoError(t, err)
	assert.NotSame(t, s1, s3)

	_, err = environment.OpenStore[*otherRecord](ctx, r, "dev", "records", nil)
	require.Error(t, err)

	_, err = environment.OpenStore[*record](ctx, r, "staging", "records", nil)
	require.Error(t, err)

	_, err = brokers["dev"].DescribeTopic(ctx, "test-records")
	require.NoError(t, err, "store topics use the configured prefix")
}

func TestRegistry_WaitForInitialization(t *testing.T) {
	r, brokers := newRegistry(t, "dev", "prod")
	defer r.Close()
	ctx := context.Background()

	require.NoError(t, brokers["dev"].CreateTopic(ctx, messaging.Compacted("test-records")))
	for _, id := range []string{"a", "b", "c"} {
		_, err := brokers["dev"].Append("test-records", []byte(id), []byte(`{"id":"`+id+`"}`))
		require.NoError(t, err)
	}

	dev, err := environment.OpenStore[*record](ctx, r, "dev", "records", nil)
	require.NoError(t, err)
	_, err = environment.OpenStore[*record](ctx, r, "prod", "records", nil)
	require.NoError(t, err)

	require.NoError(t, r.WaitForInitialization(ctx, 5*time.Second, 5*time.Second))
	assert.Equal(t, 3, dev.Len())
}

func TestRegistry_WaitForInitializationTimeout(t *testing.T) {
	r, brokers := newRegistry(t, "dev")
	defer r.Close()
	ctx := context.Background()

	require.NoError(t, brokers["dev"].CreateTopic(ctx, messaging.Compacted("test-records")))
	_, err := brokers["dev"].Append("test-records", []byte("a"), []byte(`{"id":"a"}`))
	require.NoError(t, err)
	brokers["dev"].FailReads(assert.AnError)

	_, err = environment.OpenStore[*record](ctx, r, "dev", "records", nil)
	require.NoError(t, err)

	err = r.WaitForInitialization(ctx, 50*time.Millisecond, time.Minute)
	require.Error(t, err)
	assert.Equal(t, errors.EUnavailable, errors.ErrorCode(err))
}

func TestRegistry_Close(t *testing.T) {
	r, brokers := newRegistry(t, "dev")
	ctx := context.Background()

	s, err := environment.OpenStore[*record](ctx, r, "dev", "records", nil)
	require.NoError(t, err)
	require.NoError(t, r.Close())

	_, err = s.Save(ctx, &record{ID: "a"}).Await(ctx)
	require.Error(t, err)
	assert.Equal(t, messaging.ErrClientClosed, brokers["dev"].CreateTopic(ctx, messaging.Compacted("x")))
}
