package redis

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crmcore/internal/events"
)

type fakeClient struct {
	channels []string
	messages [][]byte
	err      error
	closed   bool
}

func (c *fakeClient) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx, "publish", channel, message)
	if c.err != nil {
		cmd.SetErr(c.err)
		return cmd
	}
	c.channels = append(c.channels, channel)
	c.messages = append(c.messages, message.([]byte))
	cmd.SetVal(1)
	return cmd
}

func (c *fakeClient) Close() error {
	c.closed = true
	return nil
}

func TestPublisherUsesEntityChannels(t *testing.T) {
	client := &fakeClient{}
	p, err := NewPublisher(client, "crmcore.changes")
	require.NoError(t, err)

	evt := events.Event{ID: "e1", Operation: "create_contact", Entity: "contacts", Action: "create", EntityID: "C5020", Status: "success"}
	require.NoError(t, p.Publish(context.Background(), evt))
	assert.Equal(t, []string{"crmcore.changes.contacts"}, client.channels)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(client.messages[0], &decoded))
	assert.Equal(t, "C5020", decoded["entity_id"])
	assert.NotContains(t, decoded, "error")

	require.NoError(t, p.Close())
	assert.True(t, client.closed)
}

func TestPublisherErrors(t *testing.T) {
	_, err := NewPublisher(&fakeClient{}, "")
	assert.Error(t, err)

	p, _ := NewPublisher(&fakeClient{err: errors.New("connection refused")}, "c")
	err = p.Publish(context.Background(), events.Event{Entity: "deals"})
	assert.ErrorContains(t, err, "publish to c.deals: connection refused")
}
