package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryPublishConsume(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewInMemory(4)
	require.NoError(t, q.Publish(ctx, Message{Type: "a", Body: json.RawMessage(`1`)}))
	require.NoError(t, q.Publish(ctx, Message{Type: "b", Body: json.RawMessage(`2`)}))

	msgs, err := q.Consume(ctx)
	require.NoError(t, err)

	first := <-msgs
	second := <-msgs
	assert.Equal(t, "a", first.Type)
	assert.Equal(t, "b", second.Type)

	cancel()
	select {
	case _, ok := <-msgs:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("consumer channel not closed after cancel")
	}
}

func TestInMemoryPublishBlocksUntilCancel(t *testing.T) {
	q := NewInMemory(1)
	require.NoError(t, q.Publish(context.Background(), Message{Type: "a"}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := q.Publish(ctx, Message{Type: "b"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEncodeDecode(t *testing.T) {
	b, err := Encode(Message{Type: "notify", Body: json.RawMessage(`{"a":"b|c"}`)})
	require.NoError(t, err)

	msg, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, "notify", msg.Type)
	assert.JSONEq(t, `{"a":"b|c"}`, string(msg.Body))

	_, err = Decode([]byte(`not json`))
	assert.Error(t, err)
	_, err = Decode([]byte(`{"body":1}`))
	assert.Error(t, err)
}
