package rescache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/fedcat/internal/db"
	"github.com/kailas-cloud/fedcat/internal/domain/resource"
)

const keyPrefix = "fedcat:res_cache:"

// store is the consumer interface for the resource cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
}

// entry is the stored form of a cached resource.
type entry struct {
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
	Data     []byte `json:"data"`
}

// Cache keeps retrieved resource payloads in a key-value store.
// Store failures never surface to callers: a failed read is a miss, a failed write is logged.
type Cache struct {
	store      store
	ttl        time.Duration
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a resource cache. A zero ttl keeps entries until evicted by the backend.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly.
func New(s store, ttl time.Duration, cacheTotal *prometheus.CounterVec, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{store: s, ttl: ttl, cacheTotal: cacheTotal, logger: logger}
}

// Get returns the cached payload for key.
func (c *Cache) Get(ctx context.Context, key resource.CacheKey) (resource.Resource, bool) {
	k := c.storeKey(key)
	data, err := c.store.Get(ctx, k)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached resource", zap.String("key", k), zap.Error(err))
		}
		c.inc("miss")
		return resource.Resource{}, false
	}

	res, err := decode(data)
	if err != nil {
		c.logger.Warn("Failed to parse cached resource", zap.String("key", k), zap.Error(err))
		c.inc("miss")
		return resource.Resource{}, false
	}

	c.inc("hit")
	return res, true
}

// Put stores a payload. Re-populating an existing key overwrites it.
func (c *Cache) Put(ctx context.Context, key resource.CacheKey, res resource.Resource) {
	k := c.storeKey(key)
	data, err := json.Marshal(entry{Name: res.Name, MimeType: res.MimeType, Data: res.Data})
	if err != nil {
		c.logger.Warn("Failed to encode resource for cache", zap.String("key", k), zap.Error(err))
		return
	}
	if err := c.store.SetWithTTL(ctx, k, data, c.ttl); err != nil {
		c.logger.Warn("Failed to cache resource", zap.String("key", k), zap.Error(err))
	}
}

// Contains reports whether key is cached. Store errors read as absent.
func (c *Cache) Contains(ctx context.Context, key resource.CacheKey) bool {
	k := c.storeKey(key)
	ok, err := c.store.Exists(ctx, k)
	if err != nil {
		c.logger.Warn("Failed to check cached resource", zap.String("key", k), zap.Error(err))
		return false
	}
	return ok
}

func (c *Cache) inc(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func (c *Cache) storeKey(key resource.CacheKey) string {
	return keyPrefix + key.String()
}

func decode(data []byte) (resource.Resource, error) {
	if len(data) == 0 {
		return resource.Resource{}, errors.New("empty cache entry")
	}
	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		return resource.Resource{}, fmt.Errorf("decode cache entry: %w", err)
	}
	return resource.Resource{Name: e.Name, MimeType: e.MimeType, Data: e.Data}, nil
}
