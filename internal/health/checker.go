package health

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Pinger is the upstream client slice the checker probes.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DepChecker probes the gateway's two runtime dependencies.
type DepChecker struct {
	Upstream Pinger
	Redis    *redis.Client
}

// PingUpstream probes the marketplace API within the given timeout.
func (c DepChecker) PingUpstream(ctx context.Context, timeout time.Duration) error {
	if c.Upstream == nil {
		return errors.New("upstream client not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.Upstream.Ping(ctx)
}

// PingRedis probes Redis within the given timeout.
func (c DepChecker) PingRedis(ctx context.Context, timeout time.Duration) error {
	if c.Redis == nil {
		return errors.New("redis client not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.Redis.Ping(ctx).Err()
}
