package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/it-spirit/spiritsearch/common/logger"
	"github.com/it-spirit/spiritsearch/config"
	"github.com/it-spirit/spiritsearch/metrics"
	"github.com/it-spirit/spiritsearch/schema"
)

// Redis key prefixes. The raw layer holds normalized results before
// formatting; the format layer holds fully rendered responses.
const (
	rawPrefix    = "RAW:"
	formatPrefix = "FMT:"
)

// Cache is the two-layer result cache: redis in front, the durable SQL store
// behind it. Either layer may be nil; reads fall through, writes are
// fire-and-forget so a slow or dead cache never delays a response.
type Cache struct {
	rdb    *redis.Client
	store  *Store
	rawTTL time.Duration
	fmtTTL time.Duration
}

// New builds the cache from configuration. rdb and store may each be nil.
func New(cfg config.CacheConfig, rdb *redis.Client, store *Store) *Cache {
	return &Cache{
		rdb:    rdb,
		store:  store,
		rawTTL: time.Duration(cfg.RawTTLSeconds) * time.Second,
		fmtTTL: time.Duration(cfg.FormatTTLSeconds) * time.Second,
	}
}

// writeTimeout bounds background cache writes detached from the request.
const writeTimeout = 5 * time.Second

// GetRaw looks up raw results: redis first, then the durable store. A store
// hit repopulates redis.
func (c *Cache) GetRaw(ctx context.Context, key string) ([]schema.Result, bool) {
	rkey := rawPrefix + key
	if c.rdb != nil {
		data, err := c.rdb.Get(ctx, rkey).Bytes()
		if err == nil {
			var results []schema.Result
			if jerr := json.Unmarshal(data, &results); jerr == nil {
				metrics.IncCacheHit("redis", "raw")
				return results, true
			}
			logger.Warnf("cache: corrupt redis raw entry %s, falling through", rkey)
		} else if err != redis.Nil {
			logger.Warnf("cache: redis raw lookup: %v", err)
		}
	}
	if c.store != nil {
		results, ok, err := c.store.GetRaw(ctx, key, c.rawTTL)
		if err != nil {
			logger.Warnf("cache: %v", err)
		} else if ok {
			metrics.IncCacheHit("sql", "raw")
			c.repopulateRaw(rkey, results)
			return results, true
		}
	}
	metrics.IncCacheMiss("raw")
	return nil, false
}

// SetRaw writes raw results to both layers in the background.
func (c *Cache) SetRaw(key string, entry RawEntry) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		if c.rdb != nil {
			if data, err := json.Marshal(entry.Results); err == nil {
				if err := c.rdb.Set(ctx, rawPrefix+key, data, c.rawTTL).Err(); err != nil {
					logger.Warnf("cache: redis raw write: %v", err)
				}
			}
		}
		if c.store != nil {
			if err := c.store.PutRaw(ctx, key, entry); err != nil {
				logger.Warnf("cache: %v", err)
			}
		}
	}()
}

// GetFormat looks up a rendered response for (format, key), redis first.
func (c *Cache) GetFormat(ctx context.Context, format, key string) (*schema.FormattedEntry, bool) {
	rkey := formatPrefix + format + ":" + key
	if c.rdb != nil {
		data, err := c.rdb.Get(ctx, rkey).Bytes()
		if err == nil {
			var entry schema.FormattedEntry
			if jerr := json.Unmarshal(data, &entry); jerr == nil {
				metrics.IncCacheHit("redis", "format")
				return &entry, true
			}
			logger.Warnf("cache: corrupt redis format entry %s, falling through", rkey)
		} else if err != redis.Nil {
			logger.Warnf("cache: redis format lookup: %v", err)
		}
	}
	if c.store != nil {
		entry, ok, err := c.store.GetFormat(ctx, key, format, c.fmtTTL)
		if err != nil {
			logger.Warnf("cache: %v", err)
		} else if ok {
			metrics.IncCacheHit("sql", "format")
			c.repopulateFormat(rkey, entry)
			return entry, true
		}
	}
	metrics.IncCacheMiss("format")
	return nil, false
}

// SetFormat writes a rendered response to both layers in the background.
func (c *Cache) SetFormat(format, key string, entry *schema.FormattedEntry) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		if c.rdb != nil {
			if data, err := json.Marshal(entry); err == nil {
				if err := c.rdb.Set(ctx, formatPrefix+format+":"+key, data, c.fmtTTL).Err(); err != nil {
					logger.Warnf("cache: redis format write: %v", err)
				}
			}
		}
		if c.store != nil {
			if err := c.store.PutFormat(ctx, key, format, entry); err != nil {
				logger.Warnf("cache: %v", err)
			}
		}
	}()
}

func (c *Cache) repopulateRaw(rkey string, results []schema.Result) {
	if c.rdb == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		if data, err := json.Marshal(results); err == nil {
			if err := c.rdb.Set(ctx, rkey, data, c.rawTTL).Err(); err != nil {
				logger.Warnf("cache: redis raw repopulate: %v", err)
			}
		}
	}()
}

func (c *Cache) repopulateFormat(rkey string, entry *schema.FormattedEntry) {
	if c.rdb == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		if data, err := json.Marshal(entry); err == nil {
			if err := c.rdb.Set(ctx, rkey, data, c.fmtTTL).Err(); err != nil {
				logger.Warnf("cache: redis format repopulate: %v", err)
			}
		}
	}()
}
