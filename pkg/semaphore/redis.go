package semaphore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSemaphore backs the admission pool with a single counter key in
// Redis (§4.C.1). Acquire atomically increments the counter; if the
// post-increment value exceeds the cap the increment is undone and the
// caller retries with backoff. A successful acquire refreshes the key's
// TTL to a safety window so a crashed holder's slot self-heals instead of
// starving the pool forever.
type RedisSemaphore struct {
	client       *redis.Client
	cfg          *Config
	acquireScript *redis.Script
	releaseScript *redis.Script
}

func NewRedisSemaphore(cfg *Config) (*RedisSemaphore, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	acquireScript := redis.NewScript(`
		local key = KEYS[1]
		local cap = tonumber(ARGV[1])
		local ttl = tonumber(ARGV[2])

		local current = redis.call('INCR', key)
		if current > cap then
			redis.call('DECR', key)
			return 0
		end

		redis.call('EXPIRE', key, ttl)
		return 1
	`)

	releaseScript := redis.NewScript(`
		local key = KEYS[1]
		local current = redis.call('DECR', key)
		if current < 0 then
			redis.call('SET', key, 0)
		end
		return 1
	`)

	return &RedisSemaphore{
		client:        client,
		cfg:           cfg,
		acquireScript: acquireScript,
		releaseScript: releaseScript,
	}, nil
}

func (r *RedisSemaphore) tryAcquire(ctx context.Context) (bool, error) {
	ttlSeconds := int(r.cfg.SafetyWindow.Seconds())
	if ttlSeconds <= 0 {
		ttlSeconds = 30
	}

	result, err := r.acquireScript.Run(ctx, r.client, []string{r.cfg.Key}, r.cfg.GlobalCap, ttlSeconds).Int()
	if err != nil {
		return false, fmt.Errorf("admission acquire script: %w", err)
	}
	return result == 1, nil
}

func (r *RedisSemaphore) Acquire(ctx context.Context) error {
	maxRetries := r.cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 20
	}
	backoff := r.cfg.RetryBackoff
	if backoff <= 0 {
		backoff = 50 * time.Millisecond
	}

	for attempt := 0; ; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		ok, err := r.tryAcquire(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		if attempt >= maxRetries {
			return ErrAcquireTimeout
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
}

func (r *RedisSemaphore) Release() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// Best effort: a failed release leaks a slot until the safety window
	// TTL expires and the counter self-heals.
	_ = r.releaseScript.Run(ctx, r.client, []string{r.cfg.Key}).Err()
}

func (r *RedisSemaphore) Stats(ctx context.Context) (*Stats, error) {
	val, err := r.client.Get(ctx, r.cfg.Key).Int()
	if err != nil && err != redis.Nil {
		return nil, err
	}
	if val < 0 {
		val = 0
	}
	return &Stats{InUse: val, Total: r.cfg.GlobalCap}, nil
}

func (r *RedisSemaphore) Close() error {
	return r.client.Close()
}
