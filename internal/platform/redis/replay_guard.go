// Package redis remembers consumed response messages in Redis so replays
// of the same message can be acknowledged without touching request state.
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/puris-api/internal/service"
	goredis "github.com/redis/go-redis/v9"
)

const keyPrefix = "puris:replay"

// Client is the subset of *redis.Client the guard uses.
type Client interface {
	Exists(ctx context.Context, keys ...string) *goredis.IntCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.BoolCmd
	Ping(ctx context.Context) *goredis.StatusCmd
	Close() error
}

// NewClient creates a client for addr.
func NewClient(addr string) *goredis.Client {
	return goredis.NewClient(&goredis.Options{Addr: addr})
}

// ReplayGuard implements service.ReplayGuard on Redis keys that expire
// after ttl.
type ReplayGuard struct {
	client Client
	ttl    time.Duration
	logger *slog.Logger
}

var _ service.ReplayGuard = (*ReplayGuard)(nil)

// NewReplayGuard creates a ReplayGuard.
func NewReplayGuard(client Client, ttl time.Duration, logger *slog.Logger) *ReplayGuard {
	if client == nil {
		panic("client cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ReplayGuard{
		client: client,
		ttl:    ttl,
		logger: logger.With(slog.String("component", "replay_guard")),
	}
}

// Key returns the Redis key of a consumed message.
func Key(partnerBPNL, messageID string) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, partnerBPNL, messageID)
}

// Seen implements service.ReplayGuard.
func (g *ReplayGuard) Seen(ctx context.Context, partnerBPNL, messageID string) (bool, error) {
	n, err := g.client.Exists(ctx, Key(partnerBPNL, messageID)).Result()
	if err != nil {
		return false, fmt.Errorf("replay lookup failed: %w", err)
	}
	return n > 0, nil
}

// Remember implements service.ReplayGuard. Remembering a message twice
// keeps the original expiry.
func (g *ReplayGuard) Remember(ctx context.Context, partnerBPNL, messageID string) error {
	created, err := g.client.SetNX(ctx, Key(partnerBPNL, messageID), time.Now().UTC().Format(time.RFC3339), g.ttl).Result()
	if err != nil {
		return fmt.Errorf("replay record failed: %w", err)
	}
	if !created {
		g.logger.Debug("message already remembered",
			slog.String("partner_bpnl", partnerBPNL),
			slog.String("message_id", messageID))
	}
	return nil
}

// Ping checks that Redis is reachable.
func (g *ReplayGuard) Ping(ctx context.Context) error {
	return g.client.Ping(ctx).Err()
}

// Close closes the client.
func (g *ReplayGuard) Close() error {
	return g.client.Close()
}
