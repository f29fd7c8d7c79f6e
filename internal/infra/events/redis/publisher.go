// Package redis publishes change events on a Redis pub/sub channel.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"

	"crmcore/internal/events"
)

// Client is the subset of *redis.Client the publisher needs.
type Client interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Close() error
}

// Publisher sends each event as JSON to "<channel>.<entity>".
type Publisher struct {
	client  Client
	channel string
}

// Dial connects to addr, which is either host:port or a redis:// URL.
func Dial(ctx context.Context, addr, channel string) (*Publisher, error) {
	opts := &redis.Options{Addr: addr}
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewPublisher(client, channel)
}

// NewPublisher wraps an existing client.
func NewPublisher(client Client, channel string) (*Publisher, error) {
	if channel == "" {
		return nil, errors.New("redis channel required")
	}
	return &Publisher{client: client, channel: channel}, nil
}

// Channel returns the pub/sub channel used for entity.
func (p *Publisher) Channel(entity string) string {
	return p.channel + "." + entity
}

// Publish implements events.Publisher.
func (p *Publisher) Publish(ctx context.Context, e events.Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := p.client.Publish(ctx, p.Channel(e.Entity), body).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", p.Channel(e.Entity), err)
	}
	return nil
}

// Close closes the client.
func (p *Publisher) Close() error {
	return p.client.Close()
}
