package schema

import (
	"context"
	"time"
)

// SnapshotStore keeps introspection results between turns.
type SnapshotStore interface {
	Save(key string, tables []TableSchema, ttl time.Duration)
	Get(key string) ([]TableSchema, bool)
	Delete(key string)
}

const snapshotKey = "schema:public"

// CachedIntrospector serves a stored snapshot until its TTL runs out.
type CachedIntrospector struct {
	inner Introspector
	store SnapshotStore
	ttl   time.Duration
}

var _ Introspector = &CachedIntrospector{}

func NewCachedIntrospector(inner Introspector, store SnapshotStore, ttl time.Duration) *CachedIntrospector {
	return &CachedIntrospector{inner: inner, store: store, ttl: ttl}
}

func (c *CachedIntrospector) Introspect(ctx context.Context) []TableSchema {
	if c.ttl <= 0 || c.store == nil {
		return c.inner.Introspect(ctx)
	}
	if tables, ok := c.store.Get(snapshotKey); ok {
		return tables
	}

	tables := c.inner.Introspect(ctx)
	// an empty result usually means the catalog was unreachable
	if len(tables) > 0 {
		c.store.Save(snapshotKey, tables, c.ttl)
	}
	return tables
}

func (c *CachedIntrospector) Invalidate() {
	if c.store != nil {
		c.store.Delete(snapshotKey)
	}
}
