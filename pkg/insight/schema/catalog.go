package schema

import (
	"context"
	"fmt"

	"bizinsight-be/pkg/insight/resultset"

	"github.com/jackc/pgx/v5"
	"gorm.io/gorm"
)

// ColumnInfo is a raw information_schema.columns row.
type ColumnInfo struct {
	Name             string
	DataType         string
	IsNullable       bool
	Default          *string
	CharMaxLength    *int
	NumericPrecision *int
	NumericScale     *int
	Comment          *string
}

type ForeignKeyInfo struct {
	Column           string
	ReferencedTable  string
	ReferencedColumn string
}

// Catalog is the read side of the relational catalog.
type Catalog interface {
	ListTables(ctx context.Context) ([]string, error)
	Columns(ctx context.Context, table string) ([]ColumnInfo, error)
	PrimaryKeys(ctx context.Context, table string) ([]string, error)
	ForeignKeys(ctx context.Context, table string) ([]ForeignKeyInfo, error)
	SampleRows(ctx context.Context, table string, limit int) ([]map[string]interface{}, error)
}

// PostgresCatalog reads information_schema through gorm.
type PostgresCatalog struct {
	db         *gorm.DB
	schemaName string
}

var _ Catalog = &PostgresCatalog{}

func NewPostgresCatalog(db *gorm.DB, schemaName string) *PostgresCatalog {
	if schemaName == "" {
		schemaName = "public"
	}
	return &PostgresCatalog{db: db, schemaName: schemaName}
}

func (c *PostgresCatalog) ListTables(ctx context.Context) ([]string, error) {
	var names []string
	err := c.db.WithContext(ctx).Raw(`
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = ?
		  AND table_type = 'BASE TABLE'
		ORDER BY table_name`, c.schemaName).Scan(&names).Error
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	return names, nil
}

type columnRow struct {
	ColumnName             string
	DataType               string
	IsNullable             string
	ColumnDefault          *string
	CharacterMaximumLength *int
	NumericPrecision       *int
	NumericScale           *int
	Comment                *string
}

func (c *PostgresCatalog) Columns(ctx context.Context, table string) ([]ColumnInfo, error) {
	var rows []columnRow
	err := c.db.WithContext(ctx).Raw(`
		SELECT
			isc.column_name,
			isc.data_type,
			isc.is_nullable,
			isc.column_default,
			isc.character_maximum_length,
			isc.numeric_precision,
			isc.numeric_scale,
			col_description(pgc.oid, isc.ordinal_position::int) AS comment
		FROM information_schema.columns isc
		LEFT JOIN pg_namespace pgn ON pgn.nspname = isc.table_schema
		LEFT JOIN pg_class pgc ON pgc.relname = isc.table_name AND pgc.relnamespace = pgn.oid
		WHERE isc.table_name = ?
		  AND isc.table_schema = ?
		ORDER BY isc.ordinal_position`, table, c.schemaName).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("describe columns of %s: %w", table, err)
	}

	cols := make([]ColumnInfo, len(rows))
	for i, r := range rows {
		cols[i] = ColumnInfo{
			Name:             r.ColumnName,
			DataType:         r.DataType,
			IsNullable:       r.IsNullable == "YES",
			Default:          r.ColumnDefault,
			CharMaxLength:    r.CharacterMaximumLength,
			NumericPrecision: r.NumericPrecision,
			NumericScale:     r.NumericScale,
			Comment:          r.Comment,
		}
	}
	return cols, nil
}

func (c *PostgresCatalog) PrimaryKeys(ctx context.Context, table string) ([]string, error) {
	var names []string
	err := c.db.WithContext(ctx).Raw(`
		SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name
		 AND tc.table_schema = kcu.table_schema
		WHERE tc.constraint_type = 'PRIMARY KEY'
		  AND tc.table_name = ?
		  AND tc.table_schema = ?
		ORDER BY kcu.ordinal_position`, table, c.schemaName).Scan(&names).Error
	if err != nil {
		return nil, fmt.Errorf("primary keys of %s: %w", table, err)
	}
	return names, nil
}

type foreignKeyRow struct {
	ColumnName       string
	ReferencedTable  string
	ReferencedColumn string
}

func (c *PostgresCatalog) ForeignKeys(ctx context.Context, table string) ([]ForeignKeyInfo, error) {
	var rows []foreignKeyRow
	err := c.db.WithContext(ctx).Raw(`
		SELECT
			kcu.column_name,
			ccu.table_name AS referenced_table,
			ccu.column_name AS referenced_column
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name
		 AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
		  ON ccu.constraint_name = tc.constraint_name
		 AND ccu.table_schema = tc.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY'
		  AND tc.table_name = ?
		  AND tc.table_schema = ?
		ORDER BY kcu.ordinal_position`, table, c.schemaName).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("foreign keys of %s: %w", table, err)
	}

	fks := make([]ForeignKeyInfo, len(rows))
	for i, r := range rows {
		fks[i] = ForeignKeyInfo{Column: r.ColumnName, ReferencedTable: r.ReferencedTable, ReferencedColumn: r.ReferencedColumn}
	}
	return fks, nil
}

// SampleRows quotes the table identifier; it comes from the catalog but may contain any character.
func (c *PostgresCatalog) SampleRows(ctx context.Context, table string, limit int) ([]map[string]interface{}, error) {
	if limit <= 0 {
		return []map[string]interface{}{}, nil
	}

	query := fmt.Sprintf("SELECT * FROM %s LIMIT ?", pgx.Identifier{c.schemaName, table}.Sanitize())

	var rows []map[string]interface{}
	if err := c.db.WithContext(ctx).Raw(query, limit).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("sample rows of %s: %w", table, err)
	}
	return resultset.Normalize(rows), nil
}
