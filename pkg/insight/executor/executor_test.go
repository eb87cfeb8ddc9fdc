package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"bizinsight-be/internal/pkg/logger"
	"bizinsight-be/pkg/insight/resultset"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	rows    []resultset.Row
	err     error
	timeout time.Duration
	query   string
}

func (r *fakeRunner) Run(ctx context.Context, query string, timeout time.Duration) ([]resultset.Row, error) {
	r.query = query
	r.timeout = timeout
	return r.rows, r.err
}

func TestExecuteNormalizesRows(t *testing.T) {
	runner := &fakeRunner{rows: []resultset.Row{
		{"name": []byte("Widget"), "total_sold": int64(12)},
	}}
	e := NewQueryExecutor(runner, 30*time.Second, 1000, logger.NewNopLogger())

	rows, err := e.Execute(context.Background(), "SELECT 1")

	require.NoError(t, err)
	assert.Equal(t, []resultset.Row{{"name": "Widget", "total_sold": int64(12)}}, rows)
	assert.Equal(t, 30*time.Second, runner.timeout)
	assert.Equal(t, "SELECT 1", runner.query)
}

func TestExecuteTruncates(t *testing.T) {
	runner := &fakeRunner{rows: []resultset.Row{{"n": 1}, {"n": 2}, {"n": 3}}}
	e := NewQueryExecutor(runner, 0, 2, logger.NewNopLogger())

	rows, err := e.Execute(context.Background(), "SELECT n FROM t")

	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestExecuteWrapsFailure(t *testing.T) {
	e := NewQueryExecutor(&fakeRunner{err: errors.New("canceling statement due to statement timeout")}, time.Second, 0, logger.NewNopLogger())

	rows, err := e.Execute(context.Background(), "SELECT pg_sleep(10)")

	assert.Nil(t, rows)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExecutionFailed)
	assert.Contains(t, err.Error(), "statement timeout")
}
