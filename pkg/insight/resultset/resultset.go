// Package resultset normalizes loosely typed database rows for JSON transport.
package resultset

import (
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// Row is one record keyed by column name.
type Row = map[string]interface{}

// Normalize converts driver-specific values into JSON friendly ones in place.
func Normalize(rows []Row) []Row {
	for _, row := range rows {
		for k, v := range row {
			row[k] = normalizeValue(v)
		}
	}
	return rows
}

func normalizeValue(v interface{}) interface{} {
	switch t := v.(type) {
	case nil:
		return nil
	case []byte:
		return string(t)
	case [16]byte:
		return uuid.UUID(t).String()
	case uuid.UUID:
		return t.String()
	case time.Time:
		return t.Format(time.RFC3339Nano)
	case *big.Int:
		return t.String()
	case decimal.Decimal:
		return t.String()
	case pgtype.Numeric:
		if !t.Valid {
			return nil
		}
		if f, err := t.Float64Value(); err == nil && f.Valid {
			return f.Float64
		}
		return fmt.Sprintf("%v", t)
	default:
		return v
	}
}

// Truncate caps the number of rows, reporting whether anything was dropped.
func Truncate(rows []Row, max int) ([]Row, bool) {
	if max <= 0 || len(rows) <= max {
		return rows, false
	}
	return rows[:max], true
}
