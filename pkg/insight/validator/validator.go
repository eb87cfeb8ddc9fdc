package validator

import (
	"context"
	dbsql "database/sql"
	"fmt"
	"regexp"
	"strings"

	"bizinsight-be/internal/pkg/logger"
	"bizinsight-be/pkg/insight/schema"

	"gorm.io/gorm"
)

const (
	WarnMissingLimit        = "Query should include LIMIT clause for performance"
	WarnSelectStarUnbounded = "SELECT * without LIMIT can return too many rows"

	ErrMultipleStatements = "Multiple statements are not allowed"

	// DefaultSchema is the only schema a query may name explicitly.
	DefaultSchema = "public"
)

type ValidationResult struct {
	IsValid  bool     `json:"isValid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings,omitempty"`
}

type denyRule struct {
	pattern *regexp.Regexp
	message string
}

var denyList = []denyRule{
	{regexp.MustCompile(`(?i)\bDROP\s+TABLE\b`), "DROP TABLE is not allowed"},
	{regexp.MustCompile(`(?i)\bTRUNCATE\b`), "TRUNCATE is not allowed"},
	{regexp.MustCompile(`(?i)\bDELETE\s+FROM\b`), "DELETE is not allowed (read-only queries)"},
	{regexp.MustCompile(`(?i)\bUPDATE\s+["A-Za-z_]`), "UPDATE is not allowed (read-only queries)"},
	{regexp.MustCompile(`(?i)\bINSERT\s+INTO\b`), "INSERT is not allowed (read-only queries)"},
	{regexp.MustCompile(`(?i)\bALTER\s+TABLE\b`), "ALTER TABLE is not allowed"},
	{regexp.MustCompile(`(?i)\bDROP\s+(?:SCHEMA|DATABASE|VIEW|MATERIALIZED|INDEX|FUNCTION|ROLE|USER|SEQUENCE|TYPE|EXTENSION)\b`), "DROP is not allowed"},
	{regexp.MustCompile(`(?i)\bCREATE\b`), "CREATE is not allowed"},
	{regexp.MustCompile(`(?i)\b(?:GRANT|REVOKE)\b`), "GRANT and REVOKE are not allowed"},
	{regexp.MustCompile(`(?i)\bCOPY\b`), "COPY is not allowed"},
}

var (
	limitRe      = regexp.MustCompile(`(?i)\bLIMIT\s+\d+`)
	selectStarRe = regexp.MustCompile(`(?i)\bSELECT\s+\*`)
	smallLimitRe = regexp.MustCompile(`(?i)\bLIMIT\s+[1-9]\d?\s*;?\s*$`)
)

// Planner asks the store for a plan without running the statement.
type Planner interface {
	Explain(ctx context.Context, sql string) error
}

type GormPlanner struct {
	db *gorm.DB
}

func NewGormPlanner(db *gorm.DB) *GormPlanner {
	return &GormPlanner{db: db}
}

// Explain plans the statement inside a read-only transaction. Raw rows go through the extended
// protocol, which refuses more than one statement.
func (p *GormPlanner) Explain(ctx context.Context, sql string) error {
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rows, err := tx.Raw("EXPLAIN " + sql).Rows()
		if err != nil {
			return err
		}
		return rows.Close()
	}, &dbsql.TxOptions{ReadOnly: true})
}

type Validator interface {
	Validate(ctx context.Context, sql string, tables []schema.TableSchema) ValidationResult
}

type SQLValidator struct {
	planner Planner
	logger  logger.ILogger
}

var _ Validator = &SQLValidator{}

func NewSQLValidator(planner Planner, log logger.ILogger) *SQLValidator {
	return &SQLValidator{planner: planner, logger: log}
}

// Validate accumulates every blocking error; the dry run only happens when the lexical checks pass.
func (v *SQLValidator) Validate(ctx context.Context, sql string, tables []schema.TableSchema) ValidationResult {
	errs := make([]string, 0)

	if strings.TrimSpace(sql) == "" {
		errs = append(errs, "Query is empty")
		return ValidationResult{IsValid: false, Errors: errs}
	}

	known := make(map[string]bool, len(tables))
	for _, t := range tables {
		known[strings.ToLower(t.TableName)] = true
	}
	for _, ref := range ExtractTableRefs(sql) {
		inSchema := ref.Schema == "" || strings.EqualFold(ref.Schema, DefaultSchema)
		if !inSchema || !known[strings.ToLower(ref.Name)] {
			errs = append(errs, fmt.Sprintf("Table '%s' does not exist in schema", ref))
		}
	}

	code := stripNoise(sql)
	for _, rule := range denyList {
		if rule.pattern.MatchString(code) {
			errs = append(errs, rule.message)
		}
	}
	if strings.Contains(strings.TrimRight(code, "; \t\r\n"), ";") {
		errs = append(errs, ErrMultipleStatements)
	}

	warnings := Warnings(sql)

	if len(errs) == 0 && v.planner != nil {
		if err := v.planner.Explain(ctx, sql); err != nil {
			errs = append(errs, fmt.Sprintf("SQL syntax error: %s", err.Error()))
		}
	}

	if len(warnings) > 0 {
		v.logger.Warn("VALIDATOR", "SQL validation warnings", map[string]interface{}{
			"warnings": strings.Join(warnings, ", "),
		})
	}
	if len(errs) > 0 {
		v.logger.Warn("VALIDATOR", "SQL rejected", map[string]interface{}{
			"sql":    sql,
			"errors": errs,
		})
	}

	return ValidationResult{IsValid: len(errs) == 0, Errors: errs, Warnings: warnings}
}

// Warnings returns the advisory findings for sql. They never invalidate a query.
func Warnings(sql string) []string {
	var warnings []string
	if !limitRe.MatchString(sql) {
		warnings = append(warnings, WarnMissingLimit)
	}
	if selectStarRe.MatchString(sql) && !smallLimitRe.MatchString(strings.TrimSpace(sql)) {
		warnings = append(warnings, WarnSelectStarUnbounded)
	}
	return warnings
}
