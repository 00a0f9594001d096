package services

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/username/tradeledger/src/logger"
	"github.com/username/tradeledger/src/store"
)

// cacheEntry is one persisted snapshot. Expiration is in Unix nanoseconds,
// as go-cache keeps it.
type cacheEntry struct {
	Snapshot   json.RawMessage `json:"snapshot"`
	Expiration int64           `json:"expiration"`
}

// OpenReportCache returns the snapshot cache, primed with the unexpired
// entries a previous run saved at path. A missing or unreadable file gives
// an empty cache.
func OpenReportCache(path string) *cache.Cache {
	if path == "" {
		return cache.New(DefaultCacheExpiration, CacheCleanupInterval)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.L.Warn("Could not read analytics cache, starting empty", "path", path, "error", err)
		}
		return cache.New(DefaultCacheExpiration, CacheCleanupInterval)
	}

	var entries map[string]cacheEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		logger.L.Warn("Ignoring unreadable analytics cache", "path", path, "error", err)
		return cache.New(DefaultCacheExpiration, CacheCleanupInterval)
	}
	now := time.Now().UnixNano()
	items := make(map[string]cache.Item, len(entries))
	for k, e := range entries {
		if e.Expiration > 0 && e.Expiration <= now {
			continue
		}
		items[k] = cache.Item{Object: []byte(e.Snapshot), Expiration: e.Expiration}
	}
	logger.L.Debug("Analytics cache loaded", "path", path, "entries", len(items))
	return cache.NewFrom(DefaultCacheExpiration, CacheCleanupInterval, items)
}

// SaveReportCache writes the cache's unexpired snapshot entries to path.
func SaveReportCache(c *cache.Cache, path string) error {
	entries := make(map[string]cacheEntry)
	for k, item := range c.Items() {
		data, ok := item.Object.([]byte)
		if !ok || !json.Valid(data) {
			continue
		}
		entries[k] = cacheEntry{Snapshot: data, Expiration: item.Expiration}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode analytics cache: %w", err)
	}
	return store.WriteFileAtomic(path, data)
}
