package planner

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/p-n-ai/pai-studio/internal/progress"
)

// KeyPrefix prefixes every plan cache key.
const KeyPrefix = "plan:"

// Cache stores built plans by key.
type Cache interface {
	Get(ctx context.Context, key string) ([]CalendarDay, bool, error)
	Set(ctx context.Context, key string, plan []CalendarDay) error
	Invalidate(ctx context.Context) error
}

// Key derives the cache key for a Build call. Any change to the topics,
// their statuses, the length or the start date yields a different key.
func Key(topics []string, state map[string]progress.Status, totalDays int, start time.Time) string {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(strconv.Itoa(totalDays)))
	h.Write([]byte{0})
	h.Write([]byte(DateOf(start).Format(time.DateOnly)))
	for _, topic := range topics {
		h.Write([]byte{0})
		h.Write([]byte(topic))
		h.Write([]byte{0})
		h.Write([]byte(strconv.Itoa(int(state[topic]))))
	}
	return KeyPrefix + hex.EncodeToString(h.Sum(nil))
}

// Planner builds plans and memoizes them in a Cache.
type Planner struct {
	cache Cache
}

// New creates a Planner. A nil cache disables caching.
func New(cache Cache) *Planner {
	return &Planner{cache: cache}
}

// Plan returns the cached plan for the inputs, building and storing it on a
// miss. Cache failures are logged and never fail the call.
func (p *Planner) Plan(ctx context.Context, topics []string, state map[string]progress.Status, totalDays int, start time.Time) []CalendarDay {
	if p.cache == nil {
		return Build(topics, state, totalDays, start)
	}

	key := Key(topics, state, totalDays, start)
	plan, ok, err := p.cache.Get(ctx, key)
	if err != nil {
		slog.Warn("plan cache read failed", "key", key, "error", err)
	}
	if ok {
		return plan
	}

	plan = Build(topics, state, totalDays, start)
	if err := p.cache.Set(ctx, key, plan); err != nil {
		slog.Warn("plan cache write failed", "key", key, "error", err)
	}
	return plan
}

// Invalidate drops every cached plan.
func (p *Planner) Invalidate(ctx context.Context) {
	if p.cache == nil {
		return
	}
	if err := p.cache.Invalidate(ctx); err != nil {
		slog.Warn("plan cache invalidation failed", "error", err)
	}
}

// MemoryCache is a process-local Cache.
type MemoryCache struct {
	mu    sync.Mutex
	plans map[string][]CalendarDay
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{plans: map[string][]CalendarDay{}}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]CalendarDay, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	plan, ok := c.plans[key]
	return clonePlan(plan), ok, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, plan []CalendarDay) error {
	c.mu.Lock()
	c.plans[key] = clonePlan(plan)
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Invalidate(context.Context) error {
	c.mu.Lock()
	c.plans = map[string][]CalendarDay{}
	c.mu.Unlock()
	return nil
}

// Len returns the number of cached plans.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.plans)
}

func clonePlan(plan []CalendarDay) []CalendarDay {
	if plan == nil {
		return nil
	}
	out := make([]CalendarDay, len(plan))
	for i, d := range plan {
		d.Topics = append([]string{}, d.Topics...)
		out[i] = d
	}
	return out
}

// KV is the byte-oriented store behind RedisCache.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) (int64, error)
}

// RedisCache stores plans as JSON in Redis or Dragonfly.
type RedisCache struct {
	kv  KV
	ttl time.Duration
}

// NewRedisCache wraps kv. Entries expire after ttl; zero means no expiry.
func NewRedisCache(kv KV, ttl time.Duration) *RedisCache {
	return &RedisCache{kv: kv, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]CalendarDay, bool, error) {
	data, ok, err := c.kv.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	var plan []CalendarDay
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, false, fmt.Errorf("decoding cached plan: %w", err)
	}
	return plan, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, plan []CalendarDay) error {
	data, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("encoding plan: %w", err)
	}
	return c.kv.Set(ctx, key, data, c.ttl)
}

func (c *RedisCache) Invalidate(ctx context.Context) error {
	n, err := c.kv.DeletePrefix(ctx, KeyPrefix)
	if err != nil {
		return err
	}
	slog.Debug("plan cache invalidated", "keys", n)
	return nil
}
