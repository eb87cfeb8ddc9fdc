package sqlgen

import (
	"encoding/json"
	"fmt"
	"strings"

	"bizinsight-be/pkg/insight/schema"
)

// DescribeSchema renders tables the way the generation prompt expects them:
// columns with PK/FK/nullable markers, relationships and one sample row.
func DescribeSchema(tables []schema.TableSchema) string {
	blocks := make([]string, 0, len(tables))
	for _, t := range tables {
		blocks = append(blocks, describeTable(t))
	}
	return strings.Join(blocks, "\n")
}

func describeTable(t schema.TableSchema) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Table: %s\n  Columns:\n", t.TableName))
	for i, col := range t.Columns {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(fmt.Sprintf("  - %s (%s)", col.Name, col.Type))
		if col.IsPrimary {
			b.WriteString(" [PRIMARY KEY]")
		}
		if col.IsForeign {
			b.WriteString(" [FOREIGN KEY]")
		}
		if col.Nullable {
			b.WriteString(" [nullable]")
		}
	}

	if len(t.Relationships) > 0 {
		b.WriteString("\n  Relationships:")
		for _, rel := range t.Relationships {
			b.WriteString(fmt.Sprintf("\n    - %s -> %s.%s (%s)", rel.ForeignKey, rel.RelatedTable, rel.ReferencedKey, rel.Type))
		}
	}

	if len(t.SampleData) > 0 {
		if sample, err := json.MarshalIndent(t.SampleData[:1], "", "  "); err == nil {
			b.WriteString("\n  Sample Data (for context):")
			for _, line := range strings.Split(string(sample), "\n") {
				b.WriteString("\n    ")
				b.WriteString(line)
			}
		}
	}

	b.WriteString("\n")
	return b.String()
}
