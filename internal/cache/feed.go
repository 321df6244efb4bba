package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const feedKey = "feed:approved"

// FeedCache holds the serialized public approved-articles feed. Redis-backed
// when an address is configured, in-process otherwise. Any lifecycle
// transition or content change invalidates it; a miss just means the handler
// rebuilds the feed from the store.
type FeedCache struct {
	rdb   *redis.Client
	local *Cache
	ttl   time.Duration
}

func NewFeedCache(redisAddr string, ttl time.Duration) *FeedCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}

	fc := &FeedCache{ttl: ttl}

	if redisAddr != "" {
		fc.rdb = redis.NewClient(&redis.Options{
			Addr:         redisAddr,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  2 * time.Second,
			WriteTimeout: 2 * time.Second,
		})
	} else {
		fc.local = New(ttl)
	}

	return fc
}

func (fc *FeedCache) Get(ctx context.Context) ([]byte, bool) {
	if fc.rdb != nil {
		val, err := fc.rdb.Get(ctx, feedKey).Bytes()
		if err != nil {
			// redis.Nil is a plain miss; anything else degrades to a miss too
			return nil, false
		}
		return val, true
	}
	return fc.local.Get(feedKey)
}

func (fc *FeedCache) Set(ctx context.Context, payload []byte) {
	if fc.rdb != nil {
		// cache writes are best effort
		_ = fc.rdb.Set(ctx, feedKey, payload, fc.ttl).Err()
		return
	}
	fc.local.Set(feedKey, payload)
}

func (fc *FeedCache) Invalidate(ctx context.Context) {
	if fc.rdb != nil {
		_ = fc.rdb.Del(ctx, feedKey).Err()
		return
	}
	fc.local.Delete(feedKey)
}

func (fc *FeedCache) Close() error {
	if fc.rdb != nil {
		return fc.rdb.Close()
	}
	return nil
}

// Ping checks redis connectivity; always healthy in local mode.
func (fc *FeedCache) Ping(ctx context.Context) error {
	if fc.rdb != nil {
		return fc.rdb.Ping(ctx).Err()
	}
	return nil
}
