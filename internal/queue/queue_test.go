package queue

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryPublishConsume(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewInMemory(2)
	require.NoError(t, q.Publish(ctx, Message{Type: "email", Body: json.RawMessage(`{"to":"a@b.c"}`)}))
	require.NoError(t, q.Publish(ctx, Message{Type: "email", Body: json.RawMessage(`{}`)}))
	assert.True(t, errors.Is(q.Publish(ctx, Message{Type: "email"}), ErrFull))

	msgs, err := q.Consume(ctx)
	require.NoError(t, err)
	select {
	case msg := <-msgs:
		assert.Equal(t, "email", msg.Type)
		assert.JSONEq(t, `{"to":"a@b.c"}`, string(msg.Body))
	case <-time.After(time.Second):
		t.Fatal("no message")
	}

	cancel()
	for range msgs {
	}
}

func TestNew(t *testing.T) {
	q, err := New("memory", nil, "")
	require.NoError(t, err)
	assert.IsType(t, &InMemory{}, q)

	_, err = New("redis", nil, "")
	assert.True(t, errors.Is(err, errors.NotValid))
	_, err = New("kafka", nil, "")
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestRedisQueue(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	key := "amalnama-test:" + t.Name()
	require.NoError(t, client.Del(ctx, key).Err())

	q := NewRedisQueue(client, key)
	require.NoError(t, q.Publish(ctx, Message{Type: "email", Body: json.RawMessage(`{"to":"x|y"}`)}))
	msgs, err := q.Consume(ctx)
	require.NoError(t, err)
	msg := <-msgs
	assert.Equal(t, "email", msg.Type)
	assert.JSONEq(t, `{"to":"x|y"}`, string(msg.Body))
}
