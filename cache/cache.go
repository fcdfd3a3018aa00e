// Package cache implements the two-tier query-result cache sitting in front
// of the executor: an in-process L1 TTL map backed by an L2 Redis tier.
// Grounded on the original system's engine/cache.py (key derivation,
// TTL split, hit/miss stats); the L1 tier is hand-rolled rather than pulled
// from a library (see DESIGN.md): a mutex-guarded map with insertion-order
// eviction, with the hit/miss counters below kept under their own mutex.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/s1v4-d/nlsql-mas/redis"
)

// Config controls cache sizing and TTLs.
type Config struct {
	Enabled   bool          `yaml:"enabled" env:"ENABLED" default:"true"`
	KeyPrefix string        `yaml:"key_prefix" env:"KEY_PREFIX" default:"nlsql:qc"`
	L2TTL     time.Duration `yaml:"l2_ttl" env:"L2_TTL" default:"5m"`
	L1TTL     time.Duration `yaml:"l1_ttl" env:"L1_TTL" default:"1m"`
	L1MaxSize int           `yaml:"l1_max_size" env:"L1_MAX_SIZE" default:"100"`
}

// Entry is one cached query result.
type Entry struct {
	Data     []map[string]any `json:"data"`
	Columns  []string         `json:"columns"`
	RowCount int              `json:"row_count"`
	SQL      string           `json:"sql"`
	CachedAt time.Time        `json:"cached_at"`
}

// Stats tracks hit/miss counts per tier.
type Stats struct {
	L1Hits, L1Misses int64
	L2Hits, L2Misses int64
}

// TotalHits and TotalMisses sum both tiers.
func (s Stats) TotalHits() int64   { return s.L1Hits + s.L2Hits }
func (s Stats) TotalMisses() int64 { return s.L1Misses + s.L2Misses }

// HitRate returns the fraction of lookups that hit either tier, or 0 if none happened.
func (s Stats) HitRate() float64 {
	total := s.TotalHits() + s.TotalMisses()
	if total == 0 {
		return 0
	}
	return float64(s.TotalHits()) / float64(total)
}

type l1Item struct {
	entry     Entry
	expiresAt time.Time
}

// Cache is the two-tier query-result cache.
type Cache struct {
	cfg   Config
	redis *redis.Client // may be nil: L2 is then skipped entirely

	mu    sync.Mutex
	l1    map[string]l1Item
	order []string // insertion order, oldest first, for capacity eviction

	statsMu sync.Mutex
	stats   Stats
}

// New constructs a Cache. redisClient may be nil to run L1-only.
func New(cfg Config, redisClient *redis.Client) *Cache {
	return &Cache{cfg: cfg, redis: redisClient, l1: make(map[string]l1Item)}
}

// Key derives a deterministic cache key from normalized SQL text, the same
// normalization (lowercase, collapsed whitespace) the original cache used so
// that cosmetic differences in generated SQL don't fragment the cache.
func Key(sql string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(sql)), " ")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])[:16]
}

func (c *Cache) redisKey(key string) string {
	return c.cfg.KeyPrefix + ":" + key
}

// Get looks up sql's cached result, checking L1 then falling back to L2.
// A Redis error is logged-equivalent (swallowed as a miss) by the caller's
// choice not to check it — matching the original's "cache errors never fail
// the request" behavior; callers that care can inspect the returned error.
func (c *Cache) Get(ctx context.Context, sql string) (Entry, bool, error) {
	if !c.cfg.Enabled {
		return Entry{}, false, nil
	}

	key := Key(sql)

	if entry, ok := c.getL1(key); ok {
		c.recordHit(true)
		return entry, true, nil
	}
	c.recordMiss(true)

	if c.redis == nil {
		return Entry{}, false, nil
	}

	raw, err := c.redis.Get(ctx, c.redisKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			c.recordMiss(false)
			return Entry{}, false, nil
		}
		return Entry{}, false, errors.Wrap(err, "cache: l2 get failed")
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return Entry{}, false, errors.Wrap(err, "cache: can't unmarshal l2 entry")
	}

	c.recordHit(false)
	c.setL1(key, entry)
	return entry, true, nil
}

// Set stores entry for sql in both tiers.
func (c *Cache) Set(ctx context.Context, sql string, entry Entry) error {
	if !c.cfg.Enabled {
		return nil
	}

	key := Key(sql)
	c.setL1(key, entry)

	if c.redis == nil {
		return nil
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		return errors.Wrap(err, "cache: can't marshal entry")
	}
	if err := c.redis.Set(ctx, c.redisKey(key), raw, c.cfg.L2TTL).Err(); err != nil {
		return errors.Wrap(err, "cache: l2 set failed")
	}
	return nil
}

// Invalidate clears every L1 entry and every L2 key under this cache's
// prefix, returning the number of entries removed.
func (c *Cache) Invalidate(ctx context.Context) (int, error) {
	c.mu.Lock()
	count := len(c.l1)
	c.l1 = make(map[string]l1Item)
	c.order = nil
	c.mu.Unlock()

	if c.redis == nil {
		return count, nil
	}

	var cursor uint64
	pattern := c.cfg.KeyPrefix + ":*"
	for {
		keys, next, err := c.redis.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return count, errors.Wrap(err, "cache: l2 scan failed")
		}
		if len(keys) > 0 {
			if err := c.redis.Del(ctx, keys...).Err(); err != nil {
				return count, errors.Wrap(err, "cache: l2 delete failed")
			}
			count += len(keys)
		}
		if next == 0 {
			break
		}
		cursor = next
	}

	return count, nil
}

// Stats returns a snapshot of hit/miss counters.
func (c *Cache) Stats() Stats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	return c.stats
}

func (c *Cache) getL1(key string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.l1[key]
	if !ok || time.Now().After(item.expiresAt) {
		if ok {
			delete(c.l1, key)
		}
		return Entry{}, false
	}
	return item.entry, true
}

func (c *Cache) setL1(key string, entry Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.l1[key]; !exists {
		c.order = append(c.order, key)
		for len(c.order) > c.cfg.L1MaxSize {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.l1, oldest)
		}
	}

	c.l1[key] = l1Item{entry: entry, expiresAt: time.Now().Add(c.cfg.L1TTL)}
}

func (c *Cache) recordHit(l1 bool) {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	if l1 {
		c.stats.L1Hits++
	} else {
		c.stats.L2Hits++
	}
}

func (c *Cache) recordMiss(l1 bool) {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	if l1 {
		c.stats.L1Misses++
	} else {
		c.stats.L2Misses++
	}
}
