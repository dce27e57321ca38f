package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/indicadores/apiserver/config"
)

var failScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return current
`)

// LoginLimiter counts failed logins per key in a fixed window.
type LoginLimiter struct {
	client      *redis.Client
	maxAttempts int
	window      time.Duration
	prefix      string
}

func NewLoginLimiter(client *redis.Client, maxAttempts int, window time.Duration) *LoginLimiter {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &LoginLimiter{
		client:      client,
		maxAttempts: maxAttempts,
		window:      window,
		prefix:      "login:fail:",
	}
}

// Open connects to Redis and returns a limiter. It returns nil when no
// address is configured.
func Open(ctx context.Context, rc config.RedisConfig, lc config.LoginConfig) (*LoginLimiter, *redis.Client, error) {
	if rc.Addr == "" {
		return nil, nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewLoginLimiter(client, lc.MaxAttempts, lc.Window), client, nil
}

func (l *LoginLimiter) key(k string) string {
	return l.prefix + strings.ToLower(strings.TrimSpace(k))
}

// Blocked returns how long the key stays locked, or zero when it may try again.
func (l *LoginLimiter) Blocked(ctx context.Context, key string) (time.Duration, error) {
	redisKey := l.key(key)
	count, err := l.client.Get(ctx, redisKey).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if count < l.maxAttempts {
		return 0, nil
	}
	ttl, err := l.client.PTTL(ctx, redisKey).Result()
	if err != nil {
		return 0, err
	}
	if ttl <= 0 {
		ttl = l.window
	}
	return ttl, nil
}

func (l *LoginLimiter) Fail(ctx context.Context, key string) error {
	return failScript.Run(ctx, l.client, []string{l.key(key)}, l.window.Milliseconds()).Err()
}

func (l *LoginLimiter) Reset(ctx context.Context, key string) error {
	return l.client.Del(ctx, l.key(key)).Err()
}
