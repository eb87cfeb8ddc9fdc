package resultset

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	id := uuid.New()
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	rows := Normalize([]Row{{
		"name":    []byte("Widget"),
		"id":      [16]byte(id),
		"created": ts,
		"revenue": decimal.RequireFromString("12.50"),
		"count":   int64(3),
		"missing": nil,
	}})

	assert.Equal(t, "Widget", rows[0]["name"])
	assert.Equal(t, id.String(), rows[0]["id"])
	assert.Equal(t, "2024-05-01T10:00:00Z", rows[0]["created"])
	assert.Equal(t, "12.5", rows[0]["revenue"])
	assert.Equal(t, int64(3), rows[0]["count"])
	assert.Nil(t, rows[0]["missing"])
}

func TestTruncate(t *testing.T) {
	rows := []Row{{"a": 1}, {"a": 2}, {"a": 3}}

	out, cut := Truncate(rows, 2)
	assert.Len(t, out, 2)
	assert.True(t, cut)

	out, cut = Truncate(rows, 10)
	assert.Len(t, out, 3)
	assert.False(t, cut)
}
