package memory

import (
	"testing"
	"time"

	"bizinsight-be/pkg/insight/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaCacheRepositoryRoundTrip(t *testing.T) {
	repo := NewSchemaCacheRepository(time.Minute)
	tables := []schema.TableSchema{{TableName: "orders"}}

	repo.Save("k", tables, 0)
	got, ok := repo.Get("k")
	require.True(t, ok)
	assert.Equal(t, tables, got)

	repo.Delete("k")
	_, ok = repo.Get("k")
	assert.False(t, ok)
}

func TestSchemaCacheRepositoryExpires(t *testing.T) {
	repo := NewSchemaCacheRepository(time.Minute)
	repo.Save("k", []schema.TableSchema{{TableName: "orders"}}, 10*time.Millisecond)

	time.Sleep(30 * time.Millisecond)

	_, ok := repo.Get("k")
	assert.False(t, ok)
}
