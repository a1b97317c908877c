package testing

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/metastage/metastage"
	"github.com/metastage/metastage/environment"
	"github.com/metastage/metastage/messaging"
	"github.com/metastage/metastage/metastore"
	"go.uber.org/zap/zaptest"
)

// Environments is a registry of in-memory environments used by service tests.
type Environments struct {
	Registry *environment.Registry
	Brokers  map[string]*messaging.Broker
}

// NewEnvironments returns a registry with one in-memory broker per id. The
// ids are the promotion order and every environment but the first is stagable.
func NewEnvironments(t *testing.T, ids ...string) *Environments {
	t.Helper()

	envs := make([]*metastage.Environment, 0, len(ids))
	clients := make(map[string]messaging.Client, len(ids))
	brokers := make(map[string]*messaging.Broker, len(ids))
	for i, id := range ids {
		envs = append(envs, &metastage.Environment{ID: id, Name: id, Stagable: i > 0})
		b := messaging.NewBroker()
		brokers[id] = b
		clients[id] = b
	}

	r, err := environment.NewRegistry(zaptest.NewLogger(t), envs, clients,
		metastore.WithReconnectTimeout(10*time.Millisecond))
	if err != nil {
		t.Fatalf("failed to create registry: %v", err)
	}
	return &Environments{Registry: r, Brokers: brokers}
}

// Seed writes records to the store name of an environment. It must run before
// the store is opened.
func (e *Environments) Seed(t *testing.T, envID, name string, records ...metastore.Record) {
	t.Helper()

	b, ok := e.Brokers[envID]
	if !ok {
		t.Fatalf("unknown environment %q", envID)
	}
	topic := metastore.DefaultTopicPrefix + name
	if err := b.CreateTopic(context.Background(), messaging.Compacted(topic)); err != nil && err != messaging.ErrTopicExists {
		t.Fatalf("failed to create topic %q: %v", topic, err)
	}
	for _, r := range records {
		v, err := json.Marshal(r)
		if err != nil {
			t.Fatalf("failed to encode record %q: %v", r.Key(), err)
		}
		if _, err := b.Append(topic, []byte(r.Key()), v); err != nil {
			t.Fatalf("failed to append record %q: %v", r.Key(), err)
		}
	}
}

// WaitReady waits until every opened store caught up with its topic.
func (e *Environments) WaitReady(t *testing.T) {
	t.Helper()
	if err := e.Registry.WaitForInitialization(awaitContext(t), awaitTimeout, awaitTimeout); err != nil {
		t.Fatalf("stores not initialized: %v", err)
	}
}

// Close closes the registry and all brokers.
func (e *Environments) Close() {
	_ = e.Registry.Close()
}
