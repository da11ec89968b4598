package chat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// PresenceConfig holds settings for the Redis presence registry.
type PresenceConfig struct {
	Prefix            string
	KeyTTL            time.Duration
	HeartbeatInterval time.Duration
}

// DefaultPresenceConfig returns default presence settings.
func DefaultPresenceConfig() PresenceConfig {
	return PresenceConfig{
		Prefix:            "carnavalplay:presence",
		KeyTTL:            90 * time.Second,
		HeartbeatInterval: 30 * time.Second,
	}
}

// RedisPresence tracks which sessions sit in which room, shared across
// gateway instances. Keys expire on their own; the heartbeat keeps the ones
// this instance manages alive so a crashed instance leaks nothing.
type RedisPresence struct {
	client      *redis.Client
	config      PresenceConfig
	managedKeys map[string]struct{}
	mu          sync.Mutex
}

// NewRedisPresence connects to Redis and verifies the connection.
func NewRedisPresence(client *redis.Client, config PresenceConfig) (*RedisPresence, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisPresence{
		client:      client,
		config:      config,
		managedKeys: make(map[string]struct{}),
	}, nil
}

func (p *RedisPresence) keyFor(room, sessionID string) string {
	return fmt.Sprintf("%s:sala:%s:sesion:%s", p.config.Prefix, room, sessionID)
}

// Join records a session as present in a room.
func (p *RedisPresence) Join(ctx context.Context, room, sessionID string) error {
	key := p.keyFor(room, sessionID)
	if err := p.client.Set(ctx, key, "1", p.config.KeyTTL).Err(); err != nil {
		return fmt.Errorf("failed to record presence: %w", err)
	}

	p.mu.Lock()
	p.managedKeys[key] = struct{}{}
	p.mu.Unlock()
	return nil
}

// Leave clears a session's presence in a room. Leave for the old room always
// runs before Join for the new one, so a room switch never double-counts.
func (p *RedisPresence) Leave(ctx context.Context, room, sessionID string) error {
	key := p.keyFor(room, sessionID)

	p.mu.Lock()
	delete(p.managedKeys, key)
	p.mu.Unlock()

	if err := p.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to clear presence: %w", err)
	}
	return nil
}

// Count returns how many sessions are present in a room.
func (p *RedisPresence) Count(ctx context.Context, room string) (int, error) {
	pattern := fmt.Sprintf("%s:sala:%s:sesion:*", p.config.Prefix, room)

	var count int
	iter := p.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("failed to count presence: %w", err)
	}
	return count, nil
}

// RunHeartbeat refreshes the TTL of managed keys until the context is
// cancelled.
func (p *RedisPresence) RunHeartbeat(ctx context.Context) {
	ticker := time.NewTicker(p.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.refresh(ctx)
		}
	}
}

func (p *RedisPresence) refresh(ctx context.Context) {
	p.mu.Lock()
	keys := make([]string, 0, len(p.managedKeys))
	for key := range p.managedKeys {
		keys = append(keys, key)
	}
	p.mu.Unlock()

	for _, key := range keys {
		if err := p.client.Expire(ctx, key, p.config.KeyTTL).Err(); err != nil {
			log.Error().Err(err).Str("key", key).Msg("failed to refresh presence key")
		}
	}
}
