// Package metastore implements a durable key/value store whose only
// persistence is a compacted topic on an environment's broker.
//
// Every store runs one consumption loop that applies the topic to an
// in-memory view strictly in offset order. Writes go to the broker and
// become visible once the loop has applied them, which gives
// read-after-write within one process. Reads are served from copy-on-write
// snapshots of the view and never block the loop.
package metastore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/btree"
	"github.com/metastage/metastage"
	"github.com/metastage/metastage/kit/platform/errors"
	"github.com/metastage/metastage/messaging"
	"github.com/metastage/metastage/pkg/future"
	"go.uber.org/zap"
)

// DefaultTopicPrefix is prepended to the store name to build the topic name.
const DefaultTopicPrefix = "metastage-metadata-"

// Record is a value that can be kept in a Store.
type Record interface {
	Key() string
}

type item[T Record] struct {
	key   string
	value T
}

func lessItem[T Record](a, b item[T]) bool { return a.key < b.key }

// Option configures a Store.
type Option func(*options)

type options struct {
	log              *zap.Logger
	metrics          *Metrics
	topicPrefix      string
	reconnectTimeout time.Duration
	clock            clock.Clock
}

// WithLogger sets the logger of the store.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithMetrics makes the store report to m.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithTopicPrefix overrides DefaultTopicPrefix.
func WithTopicPrefix(prefix string) Option {
	return func(o *options) { o.topicPrefix = prefix }
}

// WithReconnectTimeout sets the pause between a failed read and the next
// attempt to stream the topic.
func WithReconnectTimeout(d time.Duration) Option {
	return func(o *options) { o.reconnectTimeout = d }
}

// WithClock sets the clock used for idle tracking.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// Store is the in-memory view of one compacted metadata topic.
type Store[T Record] struct {
	envID  string
	name   string
	topic  string
	client messaging.Client
	codec  Codec[T]

	log              *zap.Logger
	metrics          *Metrics
	reconnectTimeout time.Duration
	clock            clock.Clock

	mu           sync.Mutex
	tree         *btree.BTreeG[item[T]]
	applied      int64
	lastActivity time.Time
	// changed is closed and replaced whenever the view advances.
	changed chan struct{}

	// endOffset is the topic's end offset observed when the store was opened.
	endOffset int64

	cancel context.CancelFunc
	done   chan struct{}
}

// Open creates the backing topic if needed and starts the consumption loop.
// The store keeps consuming until Close is called.
func Open[T Record](ctx context.Context, client messaging.Client, envID, name string, codec Codec[T], opts ...Option) (*Store[T], error) {
	o := options{
		log:              zap.NewNop(),
		topicPrefix:      DefaultTopicPrefix,
		reconnectTimeout: messaging.DefaultReconnectTimeout,
		clock:            clock.New(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if codec == nil {
		codec = JSONCodec[T]{}
	}

	s := &Store[T]{
		envID:            envID,
		name:             name,
		topic:            o.topicPrefix + name,
		client:           client,
		codec:            codec,
		metrics:          o.metrics,
		reconnectTimeout: o.reconnectTimeout,
		clock:            o.clock,
		tree:             btree.NewG[item[T]](32, lessItem[T]),
		applied:          -1,
		changed:          make(chan struct{}),
		done:             make(chan struct{}),
	}
	s.log = o.log.With(
		zap.String("environment", envID),
		zap.String("store", name),
		zap.String("topic", s.topic),
	)

	if err := client.CreateTopic(ctx, messaging.Compacted(s.topic)); err != nil && err != messaging.ErrTopicExists {
		return nil, &errors.Error{
			Code: errors.EUnavailable,
			Op:   "metastore/Open",
			Msg:  fmt.Sprintf("unable to create topic %q", s.topic),
			Err:  err,
		}
	}

	end, err := client.EndOffset(ctx, s.topic)
	if err != nil {
		return nil, &errors.Error{
			Code: errors.EUnavailable,
			Op:   "metastore/Open",
			Msg:  fmt.Sprintf("unable to read end offset of topic %q", s.topic),
			Err:  err,
		}
	}
	s.endOffset = end
	s.lastActivity = s.clock.Now()

	loopCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.consume(loopCtx)

	s.log.Debug("Store opened", zap.Int64("end_offset", end))
	return s, nil
}

// Name returns the store name.
func (s *Store[T]) Name() string { return s.name }

// Topic returns the name of the backing topic.
func (s *Store[T]) Topic() string { return s.topic }

// Close stops the consumption loop. Pending writes fail.
func (s *Store[T]) Close() error {
	s.cancel()
	<-s.done
	return nil
}

// Get returns the current value of key.
func (s *Store[T]) Get(key string) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.tree.Get(item[T]{key: key})
	return it.value, ok
}

// GetAll returns a snapshot of all values in key order. Returned values are
// shared with the store and must not be modified.
func (s *Store[T]) GetAll() []T {
	s.mu.Lock()
	snapshot := s.tree.Clone()
	s.mu.Unlock()

	out := make([]T, 0, snapshot.Len())
	snapshot.Ascend(func(it item[T]) bool {
		out = append(out, it.value)
		return true
	})
	return out
}

// Len returns the number of keys in the view.
func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree.Len()
}

// Save writes rec. The future resolves with rec once the broker acknowledged
// the write and the consumption loop applied it, so a following Get returns it.
func (s *Store[T]) Save(ctx context.Context, rec T) *future.Future[T] {
	key := rec.Key()
	if key == "" {
		return future.Failed[T](&errors.Error{
			Code: errors.EInvalid,
			Op:   "metastore/Save",
			Err:  metastage.ErrEmptyKey,
		})
	}
	value, err := s.codec.Encode(rec)
	if err != nil {
		return future.Failed[T](&errors.Error{
			Code: errors.EInternal,
			Op:   "metastore/Save",
			Msg:  fmt.Sprintf("unable to encode record %q", key),
			Err:  err,
		})
	}

	return future.Go(func() (T, error) {
		if err := s.write(ctx, "metastore/Save", key, value); err != nil {
			var zero T
			return zero, err
		}
		return rec, nil
	})
}

// Delete writes a tombstone for rec's key. The future resolves once the key
// is gone from the view.
func (s *Store[T]) Delete(ctx context.Context, rec T) *future.Future[struct{}] {
	return s.DeleteKey(ctx, rec.Key())
}

// DeleteKey writes a tombstone for key.
func (s *Store[T]) DeleteKey(ctx context.Context, key string) *future.Future[struct{}] {
	if key == "" {
		return future.Failed[struct{}](&errors.Error{
			Code: errors.EInvalid,
			Op:   "metastore/Delete",
			Err:  metastage.ErrEmptyKey,
		})
	}
	return future.Go(func() (struct{}, error) {
		return struct{}{}, s.write(ctx, "metastore/Delete", key, nil)
	})
}

func (s *Store[T]) write(ctx context.Context, op, key string, value []byte) error {
	offset, err := s.client.Produce(ctx, s.topic, []byte(key), value)
	if err != nil {
		if s.metrics != nil {
			s.metrics.WriteErrors.WithLabelValues(s.envID, s.name).Inc()
		}
		return &errors.Error{
			Code: errors.EUnavailable,
			Op:   op,
			Msg:  fmt.Sprintf("unable to write %q to store %q", key, s.name),
			Err:  err,
		}
	}
	return s.waitApplied(ctx, op, offset)
}

// waitApplied blocks until the loop applied offset.
func (s *Store[T]) waitApplied(ctx context.Context, op string, offset int64) error {
	for {
		s.mu.Lock()
		applied, changed := s.applied, s.changed
		s.mu.Unlock()
		if applied >= offset {
			return nil
		}

		select {
		case <-changed:
		case <-s.done:
			return &errors.Error{
				Code: errors.EUnavailable,
				Op:   op,
				Msg:  fmt.Sprintf("store %q closed before offset %d was applied", s.name, offset),
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// WaitForInitialization resolves with true once the view reached the end
// offset observed at Open, or once no record arrived for idle. It resolves
// with false if neither happens within maxWait.
func (s *Store[T]) WaitForInitialization(maxWait, idle time.Duration) *future.Future[bool] {
	return future.Go(func() (bool, error) {
		deadline := s.clock.Timer(maxWait)
		defer deadline.Stop()

		for {
			s.mu.Lock()
			reached := s.applied+1 >= s.endOffset
			idleFor := s.clock.Now().Sub(s.lastActivity)
			changed := s.changed
			s.mu.Unlock()

			if reached || idleFor >= idle {
				s.log.Debug("Store initialized",
					zap.Bool("end_offset_reached", reached),
					zap.Duration("idle", idleFor))
				return true, nil
			}

			idleTimer := s.clock.Timer(idle - idleFor)
			select {
			case <-changed:
			case <-idleTimer.C:
			case <-deadline.C:
				idleTimer.Stop()
				s.log.Warn("Store not initialized within max wait", zap.Duration("max_wait", maxWait))
				return false, nil
			case <-s.done:
				idleTimer.Stop()
				return false, &errors.Error{
					Code: errors.EUnavailable,
					Op:   "metastore/WaitForInitialization",
					Msg:  fmt.Sprintf("store %q closed", s.name),
				}
			}
			idleTimer.Stop()
		}
	})
}

// consume streams the topic for the lifetime of the store, reconnecting
// after every failure.
func (s *Store[T]) consume(ctx context.Context) {
	defer close(s.done)

	for {
		s.mu.Lock()
		offset := s.applied + 1
		s.mu.Unlock()
		if offset == 0 {
			offset = messaging.FirstOffset
		}

		err := s.stream(ctx, offset)
		if ctx.Err() != nil {
			return
		}

		s.log.Warn("Consuming store topic failed, reconnecting",
			zap.Error(err),
			zap.Duration("reconnect_timeout", s.reconnectTimeout))
		if s.metrics != nil {
			s.metrics.ConsumeErrors.WithLabelValues(s.envID, s.name).Inc()
		}

		t := s.clock.Timer(s.reconnectTimeout)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return
		}
	}
}

func (s *Store[T]) stream(ctx context.Context, offset int64) error {
	r, err := s.client.NewReader(s.topic, offset)
	if err != nil {
		return err
	}
	defer r.Close()

	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			return err
		}
		s.apply(m)
	}
}

// apply is only called by the consumption loop.
func (s *Store[T]) apply(m messaging.Message) {
	key := string(m.Key)

	var (
		value  T
		decErr error
	)
	if !m.IsTombstone() {
		value, decErr = s.codec.Decode(m.Value)
	}

	s.mu.Lock()
	if m.Offset <= s.applied {
		s.mu.Unlock()
		return
	}
	switch {
	case decErr != nil:
	case m.IsTombstone():
		s.tree.Delete(item[T]{key: key})
	default:
		s.tree.ReplaceOrInsert(item[T]{key: key, value: value})
	}
	s.applied = m.Offset
	s.lastActivity = s.clock.Now()
	n := s.tree.Len()
	close(s.changed)
	s.changed = make(chan struct{})
	s.mu.Unlock()

	if decErr != nil {
		s.log.Warn("Skipping record that cannot be decoded",
			zap.String("key", key),
			zap.Int64("offset", m.Offset),
			zap.Error(decErr))
	}
	if s.metrics == nil {
		return
	}
	switch {
	case decErr != nil:
		s.metrics.DecodeErrors.WithLabelValues(s.envID, s.name).Inc()
	case m.IsTombstone():
		s.metrics.TombstonesApplied.WithLabelValues(s.envID, s.name).Inc()
	default:
		s.metrics.RecordsApplied.WithLabelValues(s.envID, s.name).Inc()
	}
	s.metrics.Records.WithLabelValues(s.envID, s.name).Set(float64(n))
}
