package resolve

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"trading-gatewayv1/internal/model"
)

// Instrument tokens are stable identifiers; a day's TTL just bounds growth
// and picks up the occasional symbol migration.
const defaultCacheTTL = 24 * time.Hour

// Cache is a Redis-backed cache of resolved instrument references. All
// failures degrade to cache misses; resolution never depends on Redis being
// up.
type Cache struct {
	client *goredis.Client
	ttl    time.Duration
}

// CacheConfig configures the resolution cache.
type CacheConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// NewCache connects to Redis and returns a resolution cache, or an error if
// the server is unreachable.
func NewCache(cfg CacheConfig) (*Cache, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	ttl := cfg.TTL
	if ttl == 0 {
		ttl = defaultCacheTTL
	}
	log.Printf("[resolve-cache] connected to %s", cfg.Addr)
	return &Cache{client: client, ttl: ttl}, nil
}

func cacheKey(exchange model.Exchange, query string) string {
	return "scrip:" + string(exchange) + ":" + query
}

// Get returns the cached reference for (exchange, query), if present.
func (c *Cache) Get(ctx context.Context, exchange model.Exchange, query string) (model.InstrumentRef, bool) {
	raw, err := c.client.Get(ctx, cacheKey(exchange, query)).Bytes()
	if err != nil {
		if err != goredis.Nil {
			log.Printf("[resolve-cache] get failed: %v", err)
		}
		return model.InstrumentRef{}, false
	}
	var ref model.InstrumentRef
	if err := json.Unmarshal(raw, &ref); err != nil {
		return model.InstrumentRef{}, false
	}
	return ref, true
}

// Put stores a resolved reference. Errors are logged and swallowed.
func (c *Cache) Put(ctx context.Context, exchange model.Exchange, query string, ref model.InstrumentRef) {
	raw, err := json.Marshal(ref)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKey(exchange, query), raw, c.ttl).Err(); err != nil {
		log.Printf("[resolve-cache] set failed: %v", err)
	}
}

// Close releases the Redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
}
