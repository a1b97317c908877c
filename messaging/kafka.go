package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// dynamicTopicConfig is the config source of settings set on the topic itself.
const dynamicTopicConfig = 1

// KafkaClient implements Client on top of a Kafka cluster.
type KafkaClient struct {
	config    Config
	client    *kafka.Client
	transport *kafka.Transport
	dialer    *kafka.Dialer

	mu      sync.Mutex
	closed  bool
	readers map[*kafkaReader]struct{}

	log *zap.Logger
}

// NewKafkaClient returns a client for the cluster described by config.
func NewKafkaClient(config Config, log *zap.Logger) (*KafkaClient, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	transport, err := config.transport()
	if err != nil {
		return nil, err
	}
	dialer, err := config.dialer()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &KafkaClient{
		config: config,
		client: &kafka.Client{
			Addr:      kafka.TCP(config.BootstrapServers...),
			Timeout:   config.timeout(),
			Transport: transport,
		},
		transport: transport,
		dialer:    dialer,
		readers:   make(map[*kafkaReader]struct{}),
		log:       log,
	}, nil
}

func (c *KafkaClient) checkOpen() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClientClosed
	}
	return nil
}

// CreateTopic implements Client.
func (c *KafkaClient) CreateTopic(ctx context.Context, spec TopicSpec) error {
	if spec.Name == "" {
		return ErrTopicRequired
	}
	if err := c.checkOpen(); err != nil {
		return err
	}

	partitions := spec.Partitions
	if partitions <= 0 {
		partitions = 1
	}
	replication := spec.ReplicationFactor
	if replication <= 0 {
		replication = c.config.ReplicationFactor
	}
	if replication <= 0 {
		replication = -1
	}

	entries := make([]kafka.ConfigEntry, 0, len(spec.Configs))
	for name, value := range spec.Configs {
		entries = append(entries, kafka.ConfigEntry{ConfigName: name, ConfigValue: value})
	}

	resp, err := c.client.CreateTopics(ctx, &kafka.CreateTopicsRequest{
		Topics: []kafka.TopicConfig{{
			Topic:             spec.Name,
			NumPartitions:     partitions,
			ReplicationFactor: replication,
			ConfigEntries:     entries,
		}},
	})
	if err != nil {
		return err
	}
	if err := resp.Errors[spec.Name]; err != nil {
		if errors.Is(err, kafka.TopicAlreadyExists) {
			return ErrTopicExists
		}
		return err
	}

	c.log.Debug("Created topic",
		zap.String("topic", spec.Name),
		zap.Int("partitions", partitions),
		zap.Int("replication_factor", replication))
	return nil
}

// DescribeTopic implements Client.
func (c *KafkaClient) DescribeTopic(ctx context.Context, name string) (*TopicDescription, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}

	meta, err := c.client.Metadata(ctx, &kafka.MetadataRequest{Topics: []string{name}})
	if err != nil {
		return nil, err
	}
	if len(meta.Topics) == 0 {
		return nil, ErrTopicNotFound
	}
	t := meta.Topics[0]
	if t.Error != nil {
		if errors.Is(t.Error, kafka.UnknownTopicOrPartition) {
			return nil, ErrTopicNotFound
		}
		return nil, t.Error
	}

	desc := &TopicDescription{
		Name:       name,
		Partitions: len(t.Partitions),
		Configs:    map[string]string{},
	}
	if len(t.Partitions) > 0 {
		desc.ReplicationFactor = len(t.Partitions[0].Replicas)
	}

	configs, err := c.client.DescribeConfigs(ctx, &kafka.DescribeConfigsRequest{
		Resources: []kafka.DescribeConfigRequestResource{{
			ResourceType: kafka.ResourceTypeTopic,
			ResourceName: name,
		}},
	})
	if err != nil {
		return nil, err
	}
	for _, res := range configs.Resources {
		if res.Error != nil {
			return nil, res.Error
		}
		for _, e := range res.ConfigEntries {
			if e.IsSensitive {
				continue
			}
			if e.ConfigSource == dynamicTopicConfig || (e.ConfigSource == 0 && !e.IsDefault) {
				desc.Configs[e.ConfigName] = e.ConfigValue
			}
		}
	}
	return desc, nil
}

// DeleteTopic implements Client.
func (c *KafkaClient) DeleteTopic(ctx context.Context, name string) error {
	if err := c.checkOpen(); err != nil {
		return err
	}

	resp, err := c.client.DeleteTopics(ctx, &kafka.DeleteTopicsRequest{Topics: []string{name}})
	if err != nil {
		return err
	}
	if err := resp.Errors[name]; err != nil {
		if errors.Is(err, kafka.UnknownTopicOrPartition) {
			return ErrTopicNotFound
		}
		return err
	}
	return nil
}

// Produce implements Client. Records are written with acks from all in-sync replicas.
func (c *KafkaClient) Produce(ctx context.Context, topic string, key, value []byte) (int64, error) {
	if topic == "" {
		return -1, ErrTopicRequired
	}
	if err := c.checkOpen(); err != nil {
		return -1, err
	}

	record := kafka.Record{
		Time: time.Now(),
		Key:  kafka.NewBytes(key),
	}
	if len(value) > 0 {
		record.Value = kafka.NewBytes(value)
	}

	resp, err := c.client.Produce(ctx, &kafka.ProduceRequest{
		Topic:        topic,
		Partition:    0,
		RequiredAcks: kafka.RequireAll,
		Records:      kafka.NewRecordReader(record),
	})
	if err != nil {
		return -1, err
	}
	if resp.Error != nil {
		return -1, resp.Error
	}
	return resp.BaseOffset, nil
}

// EndOffset implements Client.
func (c *KafkaClient) EndOffset(ctx context.Context, topic string) (int64, error) {
	if err := c.checkOpen(); err != nil {
		return -1, err
	}

	resp, err := c.client.ListOffsets(ctx, &kafka.ListOffsetsRequest{
		Topics: map[string][]kafka.OffsetRequest{
			topic: {kafka.LastOffsetOf(0)},
		},
	})
	if err != nil {
		return -1, err
	}
	for _, p := range resp.Topics[topic] {
		if p.Partition != 0 {
			continue
		}
		if p.Error != nil {
			if errors.Is(p.Error, kafka.UnknownTopicOrPartition) {
				return -1, ErrTopicNotFound
			}
			return -1, p.Error
		}
		return p.LastOffset, nil
	}
	return -1, fmt.Errorf("no offsets returned for topic %q", topic)
}

// NewReader implements Client.
func (c *KafkaClient) NewReader(topic string, offset int64) (Reader, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClientClosed
	}

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   c.config.BootstrapServers,
		Topic:     topic,
		Partition: 0,
		Dialer:    c.dialer,
		MinBytes:  1,
		MaxBytes:  10e6,
		MaxWait:   500 * time.Millisecond,
	})
	if err := r.SetOffset(offset); err != nil {
		_ = r.Close()
		return nil, err
	}

	kr := &kafkaReader{r: r, client: c}
	c.readers[kr] = struct{}{}
	return kr, nil
}

// Close closes all open readers and idle connections.
func (c *KafkaClient) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	readers := c.readers
	c.readers = nil
	c.mu.Unlock()

	var err error
	for r := range readers {
		err = multierr.Append(err, r.r.Close())
	}
	c.transport.CloseIdleConnections()
	return err
}

type kafkaReader struct {
	r      *kafka.Reader
	client *KafkaClient
}

func (r *kafkaReader) ReadMessage(ctx context.Context) (Message, error) {
	m, err := r.r.ReadMessage(ctx)
	if err != nil {
		return Message{}, err
	}
	return Message{
		Topic:  m.Topic,
		Key:    m.Key,
		Value:  m.Value,
		Offset: m.Offset,
		Time:   m.Time,
	}, nil
}

func (r *kafkaReader) Close() error {
	r.client.mu.Lock()
	if r.client.readers != nil {
		delete(r.client.readers, r)
	}
	r.client.mu.Unlock()
	return r.r.Close()
}
