package events

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures RedisSink.
type RedisConfig struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn"`
	Channel string `yaml:"channel"`
}

// DefaultChannel prefixes Pub/Sub channels when none is configured.
const DefaultChannel = "portal"

// RedisSink publishes event envelopes via Redis Pub/Sub. Each event goes to
// "<channel>:<topic>", e.g. "portal:application.submitted", so subscribers
// can pick events with PSUBSCRIBE "portal:application.*".
type RedisSink struct {
	Client  *redis.Client
	Channel string
}

// NewRedisSink returns a RedisSink based on config.
func NewRedisSink(c RedisConfig) (*RedisSink, error) {
	if !c.Enabled || c.DSN == "" {
		return nil, nil
	}
	opt, err := redis.ParseURL(c.DSN)
	if err != nil {
		return nil, err
	}
	return &RedisSink{Client: redis.NewClient(opt), Channel: c.Channel}, nil
}

// ChannelFor returns the channel e is published on.
func (s *RedisSink) ChannelFor(e Event) string {
	ch := s.Channel
	if ch == "" {
		ch = DefaultChannel
	}
	return ch + ":" + e.Topic()
}

func (s *RedisSink) Emit(ctx context.Context, e Event) error {
	if s == nil || s.Client == nil {
		return nil
	}
	data, err := json.Marshal(e.Envelope())
	if err != nil {
		return err
	}
	return s.Client.Publish(ctx, s.ChannelFor(e), data).Err()
}

// Close releases the Redis connection.
func (s *RedisSink) Close() error {
	if s == nil || s.Client == nil {
		return nil
	}
	return s.Client.Close()
}
