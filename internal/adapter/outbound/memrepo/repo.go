package memrepo

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/i2y/mcphub/internal/domain"
)

type schemaEntry struct {
	schema domain.APISchema
	expiry time.Time
}

// SchemaCache is an in-memory, time-boxed store of fetched OpenAPI documents.
// A zero TTL disables caching: Put is a no-op and Get always misses.
// NOTE: This implementation is not persistent and data will be lost on restart.
type SchemaCache struct {
	mu     sync.RWMutex
	items  map[string]schemaEntry
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// NewSchemaCache creates a cache whose entries live for ttl.
func NewSchemaCache(ttl time.Duration, logger *slog.Logger) *SchemaCache {
	return &SchemaCache{
		items:  make(map[string]schemaEntry),
		ttl:    ttl,
		now:    time.Now,
		logger: logger.With("component", "schema_cache"),
	}
}

// Enabled reports whether entries are kept at all.
func (c *SchemaCache) Enabled() bool {
	return c.ttl > 0
}

// Get returns the document stored under key if it has not expired.
func (c *SchemaCache) Get(ctx context.Context, key string) (domain.APISchema, bool) {
	if !c.Enabled() {
		return domain.APISchema{}, false
	}
	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return domain.APISchema{}, false
	}

	if c.now().After(e.expiry) {
		// Expired: remove lazily
		c.mu.Lock()
		if e2, ok2 := c.items[key]; ok2 && c.now().After(e2.expiry) {
			delete(c.items, key)
		}
		c.mu.Unlock()
		c.logger.Debug("Cached schema expired", slog.String("key", key))
		return domain.APISchema{}, false
	}
	return e.schema, true
}

// Put stores schema under key.
func (c *SchemaCache) Put(ctx context.Context, key string, schema domain.APISchema) {
	if !c.Enabled() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = schemaEntry{schema: schema, expiry: c.now().Add(c.ttl)}
	c.logger.Debug("Cached schema", slog.String("key", key), slog.Duration("ttl", c.ttl))
}

// Purge drops every entry.
func (c *SchemaCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.items)
	c.items = make(map[string]schemaEntry)
	c.logger.Info("Purged schema cache", slog.Int("count", n))
}

// Len returns the number of stored entries, expired ones included.
func (c *SchemaCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
