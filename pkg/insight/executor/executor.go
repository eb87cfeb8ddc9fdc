package executor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"bizinsight-be/internal/pkg/logger"
	"bizinsight-be/pkg/insight/resultset"

	"gorm.io/gorm"
)

var ErrExecutionFailed = errors.New("query execution failed")

// Runner runs one read-only statement and returns its rows.
type Runner interface {
	Run(ctx context.Context, query string, timeout time.Duration) ([]resultset.Row, error)
}

// GormRunner executes inside a read-only transaction so nothing the model wrote can mutate data.
type GormRunner struct {
	db *gorm.DB
}

func NewGormRunner(db *gorm.DB) *GormRunner {
	return &GormRunner{db: db}
}

func (r *GormRunner) Run(ctx context.Context, query string, timeout time.Duration) ([]resultset.Row, error) {
	var rows []resultset.Row

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if timeout > 0 {
			// SET LOCAL does not accept bind parameters
			stmt := fmt.Sprintf("SET LOCAL statement_timeout = %d", timeout.Milliseconds())
			if err := tx.Exec(stmt).Error; err != nil {
				return err
			}
		}
		return tx.Raw(query).Scan(&rows).Error
	}, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, err
	}

	if rows == nil {
		rows = []resultset.Row{}
	}
	return rows, nil
}

type Executor interface {
	Execute(ctx context.Context, query string) ([]resultset.Row, error)
}

type QueryExecutor struct {
	runner  Runner
	timeout time.Duration
	maxRows int
	logger  logger.ILogger
}

var _ Executor = &QueryExecutor{}

func NewQueryExecutor(runner Runner, timeout time.Duration, maxRows int, log logger.ILogger) *QueryExecutor {
	return &QueryExecutor{
		runner:  runner,
		timeout: timeout,
		maxRows: maxRows,
		logger:  log,
	}
}

// Execute wraps every failure in ErrExecutionFailed. Rows come back JSON-ready.
func (e *QueryExecutor) Execute(ctx context.Context, query string) ([]resultset.Row, error) {
	start := time.Now()

	rows, err := e.runner.Run(ctx, query, e.timeout)
	if err != nil {
		e.logger.Error("EXECUTOR", "Query execution failed", map[string]interface{}{
			"sql":   query,
			"error": err.Error(),
		})
		return nil, fmt.Errorf("%w: %v", ErrExecutionFailed, err)
	}

	rows = resultset.Normalize(rows)
	if e.maxRows > 0 {
		var truncated bool
		rows, truncated = resultset.Truncate(rows, e.maxRows)
		if truncated {
			e.logger.Warn("EXECUTOR", "Result truncated", map[string]interface{}{"maxRows": e.maxRows})
		}
	}

	e.logger.Info("EXECUTOR", "Query executed", map[string]interface{}{
		"rows":     len(rows),
		"duration": time.Since(start).Milliseconds(),
	})
	return rows, nil
}
