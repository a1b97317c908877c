package messaging

import (
	"context"
	"sync"
	"time"
)

// Broker is an in-process implementation of Client. Every topic is a single
// append-only partition held in memory. It backs the "memory" broker mode
// and the tests.
type Broker struct {
	mu     sync.Mutex
	topics map[string]*memTopic
	closed bool

	produceErr error
	readErr    error

	// Now is used to timestamp produced messages.
	Now func() time.Time
}

type memTopic struct {
	spec     TopicSpec
	messages []Message
	// appended is closed and replaced on every write.
	appended chan struct{}
}

// NewBroker returns a new instance of an empty Broker.
func NewBroker() *Broker {
	return &Broker{
		topics: make(map[string]*memTopic),
		Now:    time.Now,
	}
}

// FailProduce makes every following Produce call fail with err. A nil err
// restores normal operation.
func (b *Broker) FailProduce(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.produceErr = err
}

// FailReads makes every following ReadMessage call fail with err. A nil err
// restores normal operation.
func (b *Broker) FailReads(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.readErr = err
	// wake up blocked readers so they observe the failure.
	for _, t := range b.topics {
		t.notify()
	}
}

// Messages returns a copy of all messages written to a topic.
func (b *Broker) Messages(topic string) []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.topics[topic]
	if !ok {
		return nil
	}
	return append([]Message(nil), t.messages...)
}

// Append writes raw messages to a topic, bypassing fault injection. It is
// used to seed topics with records written by other processes.
func (b *Broker) Append(topic string, key, value []byte) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.append(topic, key, value)
}

func (t *memTopic) notify() {
	close(t.appended)
	t.appended = make(chan struct{})
}

// CreateTopic implements Client.
func (b *Broker) CreateTopic(_ context.Context, spec TopicSpec) error {
	if spec.Name == "" {
		return ErrTopicRequired
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClientClosed
	}
	if _, ok := b.topics[spec.Name]; ok {
		return ErrTopicExists
	}
	if spec.Partitions <= 0 {
		spec.Partitions = 1
	}
	if spec.ReplicationFactor <= 0 {
		spec.ReplicationFactor = 1
	}
	b.topics[spec.Name] = &memTopic{
		spec:     spec,
		appended: make(chan struct{}),
	}
	return nil
}

// DescribeTopic implements Client.
func (b *Broker) DescribeTopic(_ context.Context, name string) (*TopicDescription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClientClosed
	}
	t, ok := b.topics[name]
	if !ok {
		return nil, ErrTopicNotFound
	}

	configs := make(map[string]string, len(t.spec.Configs))
	for k, v := range t.spec.Configs {
		configs[k] = v
	}
	return &TopicDescription{
		Name:              name,
		Partitions:        t.spec.Partitions,
		ReplicationFactor: t.spec.ReplicationFactor,
		Configs:           configs,
	}, nil
}

// DeleteTopic implements Client.
func (b *Broker) DeleteTopic(_ context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClientClosed
	}
	t, ok := b.topics[name]
	if !ok {
		return ErrTopicNotFound
	}
	delete(b.topics, name)
	t.notify()
	return nil
}

// Produce implements Client.
func (b *Broker) Produce(ctx context.Context, topic string, key, value []byte) (int64, error) {
	if err := ctx.Err(); err != nil {
		return -1, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.produceErr != nil {
		return -1, b.produceErr
	}
	return b.append(topic, key, value)
}

func (b *Broker) append(topic string, key, value []byte) (int64, error) {
	if b.closed {
		return -1, ErrClientClosed
	}
	t, ok := b.topics[topic]
	if !ok {
		return -1, ErrTopicNotFound
	}

	offset := int64(len(t.messages))
	t.messages = append(t.messages, Message{
		Topic:  topic,
		Key:    append([]byte(nil), key...),
		Value:  append([]byte(nil), value...),
		Offset: offset,
		Time:   b.Now(),
	})
	t.notify()
	return offset, nil
}

// EndOffset implements Client.
func (b *Broker) EndOffset(_ context.Context, topic string) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return -1, ErrClientClosed
	}
	t, ok := b.topics[topic]
	if !ok {
		return -1, ErrTopicNotFound
	}
	return int64(len(t.messages)), nil
}

// NewReader implements Client.
func (b *Broker) NewReader(topic string, offset int64) (Reader, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClientClosed
	}
	t, ok := b.topics[topic]
	if !ok {
		return nil, ErrTopicNotFound
	}

	switch offset {
	case FirstOffset:
		offset = 0
	case LastOffset:
		offset = int64(len(t.messages))
	}
	return &memReader{
		broker: b,
		topic:  topic,
		offset: offset,
		closed: make(chan struct{}),
	}, nil
}

// Close implements Client. Blocked readers return ErrClientClosed.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for _, t := range b.topics {
		t.notify()
	}
	return nil
}

type memReader struct {
	broker *Broker
	topic  string
	offset int64

	once   sync.Once
	closed chan struct{}
}

func (r *memReader) ReadMessage(ctx context.Context) (Message, error) {
	for {
		b := r.broker
		b.mu.Lock()
		if b.closed {
			b.mu.Unlock()
			return Message{}, ErrClientClosed
		}
		if b.readErr != nil {
			err := b.readErr
			b.mu.Unlock()
			return Message{}, err
		}
		t, ok := b.topics[r.topic]
		if !ok {
			b.mu.Unlock()
			return Message{}, ErrTopicNotFound
		}
		if r.offset < int64(len(t.messages)) {
			m := t.messages[r.offset]
			r.offset++
			b.mu.Unlock()
			return m, nil
		}
		wait := t.appended
		b.mu.Unlock()

		select {
		case <-wait:
		case <-r.closed:
			return Message{}, ErrReaderClosed
		case <-ctx.Done():
			return Message{}, ctx.Err()
		}
	}
}

func (r *memReader) Close() error {
	r.once.Do(func() { close(r.closed) })
	return nil
}
