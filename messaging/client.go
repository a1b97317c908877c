package messaging

import (
	"context"
	"time"
)

// DefaultReconnectTimeout is the default time to wait between when a topic
// stream disconnects and another connection is retried.
const DefaultReconnectTimeout = 100 * time.Millisecond

const (
	// FirstOffset starts a reader at the oldest retained message.
	FirstOffset int64 = -2
	// LastOffset starts a reader after the newest message.
	LastOffset int64 = -1
)

// Message is a single keyed record read from a topic.
type Message struct {
	Topic  string
	Key    []byte
	Value  []byte
	Offset int64
	Time   time.Time
}

// IsTombstone reports whether the message deletes its key.
func (m Message) IsTombstone() bool {
	return len(m.Value) == 0
}

// TopicSpec describes a topic to be created on a broker.
type TopicSpec struct {
	Name              string
	Partitions        int
	ReplicationFactor int
	Configs           map[string]string
}

// Compacted returns a single partition spec with log compaction enabled, as
// used for metadata topics.
func Compacted(name string) TopicSpec {
	return TopicSpec{
		Name:       name,
		Partitions: 1,
		Configs: map[string]string{
			"cleanup.policy": "compact",
		},
	}
}

// TopicDescription is the broker's view of an existing topic.
type TopicDescription struct {
	Name              string
	Partitions        int
	ReplicationFactor int
	// Configs holds the settings that deviate from the broker defaults.
	Configs map[string]string
}

// Client is a connection to the broker of one environment.
//
// Produce and readers only use partition 0 of a topic; metadata topics are
// always created with a single partition to keep one total order per store.
type Client interface {
	// CreateTopic creates a topic. It returns ErrTopicExists if the topic is
	// already present.
	CreateTopic(ctx context.Context, spec TopicSpec) error

	// DescribeTopic returns ErrTopicNotFound for unknown topics.
	DescribeTopic(ctx context.Context, name string) (*TopicDescription, error)

	DeleteTopic(ctx context.Context, name string) error

	// Produce writes a keyed record and returns its offset once the broker
	// acknowledged it. A nil value writes a tombstone.
	Produce(ctx context.Context, topic string, key, value []byte) (int64, error)

	// EndOffset returns the offset the next produced record will get.
	EndOffset(ctx context.Context, topic string) (int64, error)

	// NewReader streams the topic starting at offset, which may be FirstOffset.
	NewReader(topic string, offset int64) (Reader, error)

	Close() error
}

// Reader streams messages of a single topic in offset order.
type Reader interface {
	// ReadMessage blocks until the next message is available or ctx is done.
	ReadMessage(ctx context.Context) (Message, error)
	Close() error
}
