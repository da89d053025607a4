package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"logai/pkg/logger"
)

// Bookkeeping keys shared by every RedisCache instance within one Redis
// database: a sorted set ordering tracked keys by last-touched time (the
// LRU queue), a hash of each tracked key's byte size, and a counter of
// the running total. These mirror MemoryCache's in-process items map,
// accessedAt field, and currentBytes counter (§4.C.2 "entries evicted LRU
// when either total bytes or entry count would exceed configured caps"),
// just held in Redis instead of a Go map so the cap applies across the
// whole distributed cache, not per process.
const (
	lruZSetKey  = "logai:cache:lru"
	sizeHashKey = "logai:cache:sizes"
	bytesCntKey = "logai:cache:bytes"
)

// setScript stores a value and atomically updates the LRU bookkeeping,
// returning the resulting entry count and total tracked bytes so the
// caller can decide whether eviction is needed without a second round
// trip.
var setScript = redis.NewScript(`
	local key = KEYS[1]
	local value = ARGV[1]
	local ttl = tonumber(ARGV[2])
	local size = tonumber(ARGV[3])
	local now = tonumber(ARGV[4])

	if ttl > 0 then
		redis.call('SET', key, value, 'EX', ttl)
	else
		redis.call('SET', key, value)
	end

	local oldSize = tonumber(redis.call('HGET', KEYS[2], key)) or 0
	redis.call('HSET', KEYS[2], key, size)
	redis.call('ZADD', KEYS[3], now, key)
	redis.call('INCRBY', KEYS[4], size - oldSize)

	local entries = redis.call('ZCARD', KEYS[3])
	local bytes = tonumber(redis.call('GET', KEYS[4])) or 0
	return {entries, bytes}
`)

// evictScript removes the least-recently-touched tracked key (lowest score
// in the LRU zset) along with its size bookkeeping, the same one-entry-at-
// a-time eviction MemoryCache.evictLRU performs. Returns the evicted key's
// size, or nil if nothing is tracked.
var evictScript = redis.NewScript(`
	local victim = redis.call('ZRANGE', KEYS[1], 0, 0)
	if #victim == 0 then
		return nil
	end
	local key = victim[1]

	redis.call('ZREM', KEYS[1], key)
	local size = tonumber(redis.call('HGET', KEYS[2], key)) or 0
	redis.call('HDEL', KEYS[2], key)
	redis.call('DECRBY', KEYS[3], size)
	redis.call('DEL', key)
	return size
`)

// untrackScript removes one key's LRU/size bookkeeping without deleting
// the key itself, used after a caller-initiated Del so the counters stay
// accurate even when eviction never touches the key.
var untrackScript = redis.NewScript(`
	local key = KEYS[1]
	local size = tonumber(redis.call('HGET', KEYS[2], key)) or 0
	redis.call('ZREM', KEYS[1], key)
	redis.call('HDEL', KEYS[2], key)
	redis.call('DECRBY', KEYS[3], size)
	return size
`)

// RedisCache Redis реализация кэша
type RedisCache struct {
	client     *redis.Client
	defaultTTL time.Duration

	// maxEntries and maxMemoryBytes mirror MemoryCache's caps (§4.C.2);
	// zero disables the corresponding check.
	maxEntries     int
	maxMemoryBytes int64
}

// NewRedisCache создаёт новый Redis кэш
func NewRedisCache(opts *Options) (*RedisCache, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	poolSize := opts.RedisPoolSize
	if poolSize <= 0 {
		poolSize = 10
	}

	client := redis.NewClient(&redis.Options{
		Addr:     opts.RedisAddr,
		Password: opts.RedisPassword,
		DB:       opts.RedisDB,
		PoolSize: poolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisCache{
		client:         client,
		defaultTTL:     opts.DefaultTTL,
		maxEntries:     opts.MaxEntries,
		maxMemoryBytes: opts.MaxMemoryBytes,
	}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrKeyNotFound
		}
		return nil, err
	}
	return val, nil
}

// Set stores value under key and then enforces the entry/byte caps (§4.C.2
// Contract), evicting the least-recently-touched tracked keys one at a
// time the way MemoryCache.Set does before inserting.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	entries, bytes, err := c.trackedSet(ctx, key, value, ttl)
	if err != nil {
		return err
	}
	c.enforceCaps(ctx, entries, bytes)
	return nil
}

// trackedSet runs setScript for one key/value pair and returns the
// resulting entry count and tracked byte total.
func (c *RedisCache) trackedSet(ctx context.Context, key string, value []byte, ttl time.Duration) (entries, bytes int64, err error) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	ttlSeconds := int64(0)
	if ttl > 0 {
		ttlSeconds = int64(ttl.Seconds())
		if ttlSeconds <= 0 {
			ttlSeconds = 1
		}
	}

	res, err := setScript.Run(ctx, c.client,
		[]string{key, sizeHashKey, lruZSetKey, bytesCntKey},
		value, ttlSeconds, len(value), time.Now().UnixNano(),
	).Result()
	if err != nil {
		return 0, 0, err
	}

	entries, bytes = parseCountsResult(res)
	return entries, bytes, nil
}

// enforceCaps pops least-recently-touched tracked keys until the cache is
// back under both configured caps (§4.C.2), mirroring the eviction loop in
// MemoryCache.Set.
func (c *RedisCache) enforceCaps(ctx context.Context, entries, bytes int64) {
	if c.maxEntries <= 0 && c.maxMemoryBytes <= 0 {
		return
	}

	for (c.maxEntries > 0 && entries > int64(c.maxEntries)) ||
		(c.maxMemoryBytes > 0 && bytes > c.maxMemoryBytes) {

		res, err := evictScript.Run(ctx, c.client, []string{lruZSetKey, sizeHashKey, bytesCntKey}).Result()
		if err != nil {
			logger.Log.Warn("redis cache eviction failed", "error", err)
			return
		}
		if res == nil {
			return // nothing left to evict
		}

		size, _ := toInt64(res)
		entries--
		bytes -= size
	}
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return err
	}
	if err := untrackScript.Run(ctx, c.client, []string{lruZSetKey, sizeHashKey, bytesCntKey}, key).Err(); err != nil {
		logger.Log.Warn("redis cache untrack failed", "key", key, "error", err)
	}
	return nil
}

func (c *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c *RedisCache) GetWithTTL(ctx context.Context, key string) ([]byte, time.Duration, error) {
	pipe := c.client.Pipeline()
	getCmd := pipe.Get(ctx, key)
	ttlCmd := pipe.TTL(ctx, key)
	_, err := pipe.Exec(ctx)

	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, 0, err
	}

	val, err := getCmd.Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, 0, ErrKeyNotFound
		}
		return nil, 0, err
	}

	ttl := ttlCmd.Val()
	if ttl < 0 {
		ttl = 0
	}

	return val, ttl, nil
}

func (c *RedisCache) MGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	if len(keys) == 0 {
		return make(map[string][]byte), nil
	}

	vals, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	result := make(map[string][]byte, len(vals))
	for i, val := range vals {
		if val != nil {
			if str, ok := val.(string); ok {
				result[keys[i]] = []byte(str)
			}
		}
	}

	return result, nil
}

// MSet stores every entry through the same tracked-set path as Set, then
// enforces the caps once against the post-batch totals.
func (c *RedisCache) MSet(ctx context.Context, entries map[string][]byte, ttl time.Duration) error {
	if len(entries) == 0 {
		return nil
	}

	var lastEntries, lastBytes int64
	for key, value := range entries {
		n, b, err := c.trackedSet(ctx, key, value, ttl)
		if err != nil {
			return err
		}
		lastEntries, lastBytes = n, b
	}

	c.enforceCaps(ctx, lastEntries, lastBytes)
	return nil
}

func (c *RedisCache) MDelete(ctx context.Context, keys []string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := c.client.Del(ctx, keys...).Result()
	if err != nil {
		return n, err
	}
	for _, key := range keys {
		if err := untrackScript.Run(ctx, c.client, []string{lruZSetKey, sizeHashKey, bytesCntKey}, key).Err(); err != nil {
			logger.Log.Warn("redis cache untrack failed", "key", key, "error", err)
		}
	}
	return n, nil
}

func (c *RedisCache) Keys(ctx context.Context, pattern string) ([]string, error) {
	return c.client.Keys(ctx, pattern).Result()
}

func (c *RedisCache) DeleteByPattern(ctx context.Context, pattern string) (int64, error) {
	keys, err := c.client.Keys(ctx, pattern).Result()
	if err != nil {
		return 0, err
	}

	if len(keys) == 0 {
		return 0, nil
	}

	n, err := c.client.Del(ctx, keys...).Result()
	if err != nil {
		return n, err
	}
	for _, key := range keys {
		if err := untrackScript.Run(ctx, c.client, []string{lruZSetKey, sizeHashKey, bytesCntKey}, key).Err(); err != nil {
			logger.Log.Warn("redis cache untrack failed", "key", key, "error", err)
		}
	}
	return n, nil
}

func (c *RedisCache) Stats(ctx context.Context) (*Stats, error) {
	info, err := c.client.Info(ctx, "stats", "memory", "keyspace").Result()
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		KeysByPrefix: make(map[string]int64),
		Backend:      "redis",
	}

	lines := strings.Split(info, "\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "keyspace_hits:"):
			parseStatLine(line, "keyspace_hits:%d", &stats.Hits)
		case strings.HasPrefix(line, "keyspace_misses:"):
			parseStatLine(line, "keyspace_misses:%d", &stats.Misses)
		case strings.HasPrefix(line, "used_memory:"):
			parseStatLine(line, "used_memory:%d", &stats.MemoryBytes)
		}
	}

	dbSize, err := c.client.DBSize(ctx).Result()
	if err == nil {
		stats.TotalKeys = dbSize
	}

	total := stats.Hits + stats.Misses
	if total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}

	return stats, nil
}

// parseStatLine парсит строку статистики Redis (best-effort, ошибки игнорируются)
func parseStatLine(line, format string, target *int64) {
	// Best-effort parsing - ошибки игнорируются для статистики
	if _, err := fmt.Sscanf(line, format, target); err != nil {
		// Статистика не критична, продолжаем с нулевым значением
		return
	}
}

func (c *RedisCache) Clear(ctx context.Context) error {
	return c.client.FlushDB(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// parseCountsResult reads the {entries, bytes} pair setScript returns.
func parseCountsResult(res any) (entries, bytes int64) {
	arr, ok := res.([]any)
	if !ok || len(arr) < 2 {
		return 0, 0
	}
	entries, _ = toInt64(arr[0])
	bytes, _ = toInt64(arr[1])
	return entries, bytes
}

// toInt64 normalizes the int64 values go-redis returns for Lua integer
// replies; int64 and int are accepted, any other type reports false.
func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	default:
		return 0, false
	}
}
