package schema

import (
	"context"
	"fmt"
	"strings"

	"bizinsight-be/internal/pkg/logger"
)

// Introspector discovers the business-relevant part of the live schema.
type Introspector interface {
	Introspect(ctx context.Context) []TableSchema
}

type SchemaIntrospector struct {
	catalog    Catalog
	keywords   []string
	sampleRows int
	logger     logger.ILogger
}

var _ Introspector = &SchemaIntrospector{}

func NewSchemaIntrospector(catalog Catalog, keywords []string, sampleRows int, log logger.ILogger) *SchemaIntrospector {
	lowered := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			lowered = append(lowered, k)
		}
	}
	if sampleRows < 0 {
		sampleRows = 0
	}
	return &SchemaIntrospector{
		catalog:    catalog,
		keywords:   lowered,
		sampleRows: sampleRows,
		logger:     log,
	}
}

// Introspect never fails: a broken table is skipped and a broken catalog yields an empty list.
func (s *SchemaIntrospector) Introspect(ctx context.Context) []TableSchema {
	tables, err := s.catalog.ListTables(ctx)
	if err != nil {
		s.logger.Error("SCHEMA", "Failed to list tables", map[string]interface{}{"error": err.Error()})
		return []TableSchema{}
	}

	schemas := make([]TableSchema, 0, len(tables))
	for _, name := range tables {
		if !MatchesKeywords(name, s.keywords) {
			continue
		}
		if ctx.Err() != nil {
			return schemas
		}

		ts, err := s.describeTable(ctx, name)
		if err != nil {
			s.logger.Warn("SCHEMA", "Skipping table", map[string]interface{}{
				"table": name,
				"error": err.Error(),
			})
			continue
		}
		schemas = append(schemas, *ts)
	}

	s.logger.Debug("SCHEMA", "Schema introspected", map[string]interface{}{
		"tables": TableNames(schemas),
	})
	return schemas
}

func (s *SchemaIntrospector) describeTable(ctx context.Context, table string) (*TableSchema, error) {
	infos, err := s.catalog.Columns(ctx, table)
	if err != nil {
		return nil, err
	}
	if len(infos) == 0 {
		return nil, fmt.Errorf("table %s has no visible columns", table)
	}

	pks, err := s.catalog.PrimaryKeys(ctx, table)
	if err != nil {
		return nil, err
	}
	fks, err := s.catalog.ForeignKeys(ctx, table)
	if err != nil {
		return nil, err
	}

	isPrimary := make(map[string]bool, len(pks))
	for _, pk := range pks {
		isPrimary[pk] = true
	}

	columns := make([]ColumnSchema, len(infos))
	index := make(map[string]int, len(infos))
	for i, info := range infos {
		columns[i] = ColumnSchema{
			Name:         info.Name,
			Type:         FormatColumnType(info),
			Nullable:     info.IsNullable,
			IsPrimary:    isPrimary[info.Name],
			DefaultValue: info.Default,
			Comment:      info.Comment,
		}
		index[info.Name] = i
	}

	relationships := make([]RelationshipSchema, 0, len(fks))
	for _, fk := range fks {
		i, ok := index[fk.Column]
		if !ok {
			continue
		}
		columns[i].IsForeign = true
		relationships = append(relationships, RelationshipSchema{
			Type:          RelationshipManyToOne,
			RelatedTable:  fk.ReferencedTable,
			ForeignKey:    fk.Column,
			ReferencedKey: fk.ReferencedColumn,
		})
	}

	ts := &TableSchema{
		TableName:     table,
		Columns:       columns,
		Relationships: relationships,
		SampleData:    []map[string]interface{}{},
	}

	if s.sampleRows > 0 {
		rows, err := s.catalog.SampleRows(ctx, table, s.sampleRows)
		if err != nil {
			s.logger.Warn("SCHEMA", "Could not fetch sample data", map[string]interface{}{
				"table": table,
				"error": err.Error(),
			})
		} else if rows != nil {
			ts.SampleData = rows
		}
	}

	return ts, nil
}

// MatchesKeywords reports whether the lower-cased table name contains any keyword.
// An empty keyword list matches every table.
func MatchesKeywords(table string, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	lower := strings.ToLower(table)
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// FormatColumnType renders varchar(255), numeric(10,2), numeric(10) or the bare type.
func FormatColumnType(info ColumnInfo) string {
	switch {
	case info.CharMaxLength != nil:
		return fmt.Sprintf("%s(%d)", info.DataType, *info.CharMaxLength)
	case info.NumericPrecision != nil && info.NumericScale != nil:
		return fmt.Sprintf("%s(%d,%d)", info.DataType, *info.NumericPrecision, *info.NumericScale)
	case info.NumericPrecision != nil:
		return fmt.Sprintf("%s(%d)", info.DataType, *info.NumericPrecision)
	default:
		return info.DataType
	}
}
