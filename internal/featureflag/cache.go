package featureflag

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ValueCache caches evaluated flag values per context and name set. Entries
// belong to a rules generation: InvalidateAll starts a new one, and values
// computed under an older generation are never served again. Get returns
// (nil, nil) on a miss.
type ValueCache interface {
	Generation(ctx context.Context) (int64, error)
	Get(ctx context.Context, gen int64, key string) (map[string]bool, error)
	Set(ctx context.Context, gen int64, key string, values map[string]bool) error
	InvalidateAll(ctx context.Context) error
}

// CacheKey hashes the evaluation context together with the flag names.
func CacheKey(ec *EvaluationContext, names []string) string {
	h := sha256.New()
	b, _ := json.Marshal(ec)
	h.Write(b)
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(names, ",")))
	return hex.EncodeToString(h.Sum(nil))
}

// RedisValueCache stores JSON-encoded values under
// "featureflag:{generation}:{hash}". The generation counter lives in
// "featureflag:generation" and is shared by every instance.
type RedisValueCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisValueCache(client *redis.Client, ttl time.Duration) *RedisValueCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisValueCache{client: client, prefix: "featureflag:", ttl: ttl}
}

func (c *RedisValueCache) generationKey() string { return c.prefix + "generation" }

func (c *RedisValueCache) entryKey(gen int64, key string) string {
	return c.prefix + strconv.FormatInt(gen, 10) + ":" + key
}

func (c *RedisValueCache) Generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, c.generationKey()).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return gen, err
}

func (c *RedisValueCache) Get(ctx context.Context, gen int64, key string) (map[string]bool, error) {
	b, err := c.client.Get(ctx, c.entryKey(gen, key)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var values map[string]bool
	if err := json.Unmarshal(b, &values); err != nil {
		return nil, err
	}
	return values, nil
}

func (c *RedisValueCache) Set(ctx context.Context, gen int64, key string, values map[string]bool) error {
	b, err := json.Marshal(values)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.entryKey(gen, key), b, c.ttl).Err()
}

// InvalidateAll bumps the generation, then drops the entries of older ones.
func (c *RedisValueCache) InvalidateAll(ctx context.Context) error {
	gen, err := c.client.Incr(ctx, c.generationKey()).Result()
	if err != nil {
		return err
	}
	current := c.entryKey(gen, "")
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		k := iter.Val()
		if k == c.generationKey() || strings.HasPrefix(k, current) {
			continue
		}
		if err := c.client.Del(ctx, k).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

type cachedValues struct {
	values  map[string]bool
	expires time.Time
}

// MemoryValueCache is the in-process ValueCache used without Redis.
type MemoryValueCache struct {
	mu      sync.Mutex
	gen     int64
	entries map[string]cachedValues
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryValueCache(ttl time.Duration) *MemoryValueCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &MemoryValueCache{entries: map[string]cachedValues{}, ttl: ttl, now: time.Now}
}

func (c *MemoryValueCache) Generation(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen, nil
}

func (c *MemoryValueCache) Get(ctx context.Context, gen int64, key string) (map[string]bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return nil, nil
	}
	e, ok := c.entries[key]
	if !ok {
		return nil, nil
	}
	if c.now().After(e.expires) {
		delete(c.entries, key)
		return nil, nil
	}
	out := make(map[string]bool, len(e.values))
	for k, v := range e.values {
		out[k] = v
	}
	return out, nil
}

// Set ignores values computed under a generation that has since ended.
func (c *MemoryValueCache) Set(ctx context.Context, gen int64, key string, values map[string]bool) error {
	cp := make(map[string]bool, len(values))
	for k, v := range values {
		cp[k] = v
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return nil
	}
	c.entries[key] = cachedValues{values: cp, expires: c.now().Add(c.ttl)}
	return nil
}

func (c *MemoryValueCache) InvalidateAll(ctx context.Context) error {
	c.mu.Lock()
	c.gen++
	c.entries = map[string]cachedValues{}
	c.mu.Unlock()
	return nil
}
