package amqp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crmcore/internal/events"
)

type published struct {
	exchange, key string
	msg           amqp.Publishing
}

type fakeChannel struct {
	declared   []string
	published  []published
	publishErr error
	closed     bool
}

func (c *fakeChannel) ExchangeDeclare(name, kind string, durable, _, _, _ bool, _ amqp.Table) error {
	c.declared = append(c.declared, name+":"+kind)
	if !durable {
		return errors.New("expected durable exchange")
	}
	return nil
}

func (c *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if c.publishErr != nil {
		return c.publishErr
	}
	c.published = append(c.published, published{exchange, key, msg})
	return nil
}

func (c *fakeChannel) Close() error {
	c.closed = true
	return nil
}

func TestPublisherSendsPersistentJSON(t *testing.T) {
	ch := &fakeChannel{}
	p, err := NewPublisher(ch, "crmcore.changes")
	require.NoError(t, err)
	assert.Equal(t, []string{"crmcore.changes:topic"}, ch.declared)

	at := time.Date(2025, 5, 20, 9, 30, 0, 0, time.UTC)
	evt := events.Event{ID: "evt-1", Operation: "move_stage_deal", Entity: "deals", Action: "update", EntityID: "D3000", Status: "success", OccurredAt: at}
	require.NoError(t, p.Publish(context.Background(), evt))

	require.Len(t, ch.published, 1)
	got := ch.published[0]
	assert.Equal(t, "crmcore.changes", got.exchange)
	assert.Equal(t, "crm.deals.update", got.key)
	assert.Equal(t, amqp.Persistent, got.msg.DeliveryMode)
	assert.Equal(t, "evt-1", got.msg.MessageId)
	assert.Equal(t, "application/json", got.msg.ContentType)

	var decoded events.Event
	require.NoError(t, json.Unmarshal(got.msg.Body, &decoded))
	assert.Equal(t, evt, decoded)

	require.NoError(t, p.Close())
	assert.True(t, ch.closed)
}

func TestPublisherErrors(t *testing.T) {
	_, err := NewPublisher(&fakeChannel{}, "")
	assert.Error(t, err)

	ch := &fakeChannel{publishErr: errors.New("channel closed")}
	p, err := NewPublisher(ch, "x")
	require.NoError(t, err)
	err = p.Publish(context.Background(), events.Event{Entity: "tasks", Action: "delete"})
	assert.ErrorContains(t, err, "publish crm.tasks.delete: channel closed")
}
