package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/allegro/bigcache/v3"

	"quickcart/pkg/log"
)

// ResponseCache is an in-process L1 over the idempotency table. It keeps
// completed responses hot so replayed requests skip the database read.
// The table stays the source of truth; a cache miss just falls through.
type ResponseCache struct {
	bc *bigcache.BigCache
}

type cachedEntry struct {
	RequestHash string `json:"request_hash"`
	Status      int    `json:"status"`
	Body        string `json:"body"`
}

// Entry is a cached response together with its request fingerprint.
type Entry struct {
	Status int
	Body   string
}

func NewResponseCache(ttl time.Duration, maxSizeMB int) (*ResponseCache, error) {
	cfg := bigcache.DefaultConfig(ttl)
	cfg.CleanWindow = time.Minute
	if maxSizeMB > 0 {
		cfg.HardMaxCacheSize = maxSizeMB
	}
	bc, err := bigcache.New(context.Background(), cfg)
	if err != nil {
		return nil, err
	}
	return &ResponseCache{bc: bc}, nil
}

func (c *ResponseCache) Get(key string) (Entry, string, bool) {
	data, err := c.bc.Get(key)
	if err != nil {
		return Entry{}, "", false
	}
	var e cachedEntry
	if err := json.Unmarshal(data, &e); err != nil {
		log.WithComponent("cache").WithError(err).Warn("corrupt response cache entry")
		_ = c.bc.Delete(key)
		return Entry{}, "", false
	}
	return Entry{Status: e.Status, Body: e.Body}, e.RequestHash, true
}

func (c *ResponseCache) Set(key, requestHash string, status int, body string) {
	data, err := json.Marshal(cachedEntry{RequestHash: requestHash, Status: status, Body: body})
	if err != nil {
		return
	}
	if err := c.bc.Set(key, data); err != nil {
		log.WithComponent("cache").WithError(err).Warn("response cache set failed")
	}
}

func (c *ResponseCache) Delete(key string) {
	_ = c.bc.Delete(key)
}

func (c *ResponseCache) Close() error {
	return c.bc.Close()
}
