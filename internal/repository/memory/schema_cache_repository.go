package memory

import (
	"time"

	"bizinsight-be/pkg/insight/schema"

	"github.com/patrickmn/go-cache"
)

// SchemaCacheRepository keeps introspected schema snapshots in process memory.
type SchemaCacheRepository struct {
	cache *cache.Cache
}

var _ schema.SnapshotStore = &SchemaCacheRepository{}

func NewSchemaCacheRepository(defaultTTL time.Duration) *SchemaCacheRepository {
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}
	// Purge expired snapshots at twice the default lifetime
	c := cache.New(defaultTTL, 2*defaultTTL)
	return &SchemaCacheRepository{
		cache: c,
	}
}

func (r *SchemaCacheRepository) Save(key string, tables []schema.TableSchema, ttl time.Duration) {
	if ttl <= 0 {
		ttl = cache.DefaultExpiration
	}
	r.cache.Set(key, tables, ttl)
}

func (r *SchemaCacheRepository) Get(key string) ([]schema.TableSchema, bool) {
	if x, found := r.cache.Get(key); found {
		return x.([]schema.TableSchema), true
	}
	return nil, false
}

func (r *SchemaCacheRepository) Delete(key string) {
	r.cache.Delete(key)
}
