package schema

const RelationshipManyToOne = "many-to-one"

type ColumnSchema struct {
	Name         string  `json:"name"`
	Type         string  `json:"type"`
	Nullable     bool    `json:"nullable"`
	IsPrimary    bool    `json:"isPrimary"`
	IsForeign    bool    `json:"isForeign"`
	DefaultValue *string `json:"defaultValue,omitempty"`
	Comment      *string `json:"comment,omitempty"`
}

type RelationshipSchema struct {
	Type          string `json:"type"`
	RelatedTable  string `json:"relatedTable"`
	ForeignKey    string `json:"foreignKey"`
	ReferencedKey string `json:"referencedKey"`
}

type TableSchema struct {
	TableName     string                   `json:"tableName"`
	Columns       []ColumnSchema           `json:"columns"`
	Relationships []RelationshipSchema     `json:"relationships"`
	SampleData    []map[string]interface{} `json:"sampleData,omitempty"`
}

// TableNames lists the tables in order.
func TableNames(tables []TableSchema) []string {
	names := make([]string, len(tables))
	for i, t := range tables {
		names[i] = t.TableName
	}
	return names
}
