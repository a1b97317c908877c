package messaging_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/metastage/metastage/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroker_CreateTopic(t *testing.T) {
	ctx := context.Background()
	b := messaging.NewBroker()

	require.NoError(t, b.CreateTopic(ctx, messaging.Compacted("meta-topics")))
	require.ErrorIs(t, b.CreateTopic(ctx, messaging.Compacted("meta-topics")), messaging.ErrTopicExists)

	desc, err := b.DescribeTopic(ctx, "meta-topics")
	require.NoError(t, err)
	assert.Equal(t, 1, desc.Partitions)
	assert.Equal(t, 1, desc.ReplicationFactor)
	assert.Equal(t, "compact", desc.Configs["cleanup.policy"])

	_, err = b.DescribeTopic(ctx, "missing")
	require.ErrorIs(t, err, messaging.ErrTopicNotFound)

	require.NoError(t, b.DeleteTopic(ctx, "meta-topics"))
	require.ErrorIs(t, b.DeleteTopic(ctx, "meta-topics"), messaging.ErrTopicNotFound)
}

func TestBroker_ProduceAndRead(t *testing.T) {
	ctx := context.Background()
	b := messaging.NewBroker()
	require.NoError(t, b.CreateTopic(ctx, messaging.Compacted("t")))

	end, err := b.EndOffset(ctx, "t")
	require.NoError(t, err)
	require.Equal(t, int64(0), end)

	off, err := b.Produce(ctx, "t", []byte("a"), []byte(`{"v":1}`))
	require.NoError(t, err)
	require.Equal(t, int64(0), off)
	off, err = b.Produce(ctx, "t", []byte("a"), nil)
	require.NoError(t, err)
	require.Equal(t, int64(1), off)

	end, err = b.EndOffset(ctx, "t")
	require.NoError(t, err)
	require.Equal(t, int64(2), end)

	r, err := b.NewReader("t", messaging.FirstOffset)
	require.NoError(t, err)
	defer r.Close()

	m, err := r.ReadMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", string(m.Key))
	assert.False(t, m.IsTombstone())

	m, err = r.ReadMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), m.Offset)
	assert.True(t, m.IsTombstone())
}

func TestBroker_ReaderBlocksUntilWrite(t *testing.T) {
	ctx := context.Background()
	b := messaging.NewBroker()
	require.NoError(t, b.CreateTopic(ctx, messaging.Compacted("t")))

	r, err := b.NewReader("t", messaging.LastOffset)
	require.NoError(t, err)
	defer r.Close()

	got := make(chan messaging.Message, 1)
	go func() {
		m, err := r.ReadMessage(ctx)
		if err == nil {
			got <- m
		}
	}()

	select {
	case <-got:
		t.Fatal("read returned before any write")
	case <-time.After(20 * time.Millisecond):
	}

	_, err = b.Produce(ctx, "t", []byte("k"), []byte("v"))
	require.NoError(t, err)

	select {
	case m := <-got:
		assert.Equal(t, "v", string(m.Value))
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestBroker_FaultInjection(t *testing.T) {
	ctx := context.Background()
	b := messaging.NewBroker()
	require.NoError(t, b.CreateTopic(ctx, messaging.Compacted("t")))

	boom := errors.New("broker down")
	b.FailProduce(boom)
	_, err := b.Produce(ctx, "t", []byte("k"), []byte("v"))
	require.ErrorIs(t, err, boom)

	b.FailProduce(nil)
	_, err = b.Produce(ctx, "t", []byte("k"), []byte("v"))
	require.NoError(t, err)

	r, err := b.NewReader("t", messaging.FirstOffset)
	require.NoError(t, err)
	b.FailReads(boom)
	_, err = r.ReadMessage(ctx)
	require.ErrorIs(t, err, boom)

	b.FailReads(nil)
	m, err := r.ReadMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), m.Offset)
}

func TestBroker_Close(t *testing.T) {
	ctx := context.Background()
	b := messaging.NewBroker()
	require.NoError(t, b.CreateTopic(ctx, messaging.Compacted("t")))

	r, err := b.NewReader("t", messaging.FirstOffset)
	require.NoError(t, err)

	errc := make(chan error, 1)
	go func() {
		_, err := r.ReadMessage(ctx)
		errc <- err
	}()

	require.NoError(t, b.Close())
	select {
	case err := <-errc:
		require.ErrorIs(t, err, messaging.ErrClientClosed)
	case <-time.After(time.Second):
		t.Fatal("reader not released by close")
	}

	_, err = b.Produce(ctx, "t", nil, nil)
	require.ErrorIs(t, err, messaging.ErrClientClosed)
}
