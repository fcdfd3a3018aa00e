// Package executor runs validated SQL against the embedded analytic engine
// with a bounded worker pool, per-query timeout, defensive row cap, error
// classification, and JSON-safe result sanitization. Grounded on the
// original system's agents/nodes/executor.py.
package executor

import (
	"context"
	"database/sql"
	"math"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"

	"github.com/s1v4-d/nlsql-mas/engine"
	"github.com/s1v4-d/nlsql-mas/workflow"
)

// Config bounds executor resource usage.
type Config struct {
	MaxWorkers     int           `yaml:"max_workers" env:"MAX_WORKERS" default:"4"`
	QueryTimeout   time.Duration `yaml:"query_timeout" env:"QUERY_TIMEOUT" default:"30s"`
	MaxResultRows  int           `yaml:"max_result_rows" env:"MAX_RESULT_ROWS" default:"1000"`
}

// Validate checks the executor configuration.
func (c *Config) Validate() error {
	if c.MaxWorkers < 1 {
		return errors.New("max_workers must be at least 1")
	}
	if c.QueryTimeout <= 0 {
		return errors.New("query_timeout must be positive")
	}
	if c.MaxResultRows < 1 {
		return errors.New("max_result_rows must be at least 1")
	}
	return nil
}

// Executor runs SQL against a shared engine.Engine through a bounded pool.
type Executor struct {
	cfg Config
	eng *engine.Engine
	sem *semaphore.Weighted
}

// New constructs an Executor bound to eng, allowing at most Config.MaxWorkers
// concurrent query executions process-wide.
func New(cfg Config, eng *engine.Engine) *Executor {
	return &Executor{cfg: cfg, eng: eng, sem: semaphore.NewWeighted(int64(cfg.MaxWorkers))}
}

// RegisterView exposes engine.Engine.RegisterView so the schema registry can
// wire discovered tables into the executor's query namespace without either
// package depending on the other's concrete type.
func (e *Executor) RegisterView(ctx context.Context, name, relation string) error {
	return e.eng.RegisterView(ctx, name, relation)
}

// Execute runs sql to completion (or until ctx/timeout fires), sanitizes the
// result for JSON, and classifies any failure. It never returns a Go error
// for query-shaped failures — those become a non-Success ExecutionResult; a
// Go error is reserved for failing to even acquire a worker slot (backpressure).
func (e *Executor) Execute(ctx context.Context, query string) (workflow.ExecutionResult, error) {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return workflow.ExecutionResult{}, errors.Wrap(err, "backpressure: no executor worker available")
	}
	defer e.sem.Release(1)

	ctx, cancel := context.WithTimeout(ctx, e.cfg.QueryTimeout)
	defer cancel()

	start := time.Now()
	result, err := e.runQuery(ctx, query)
	elapsed := time.Since(start)

	result.ExecutionTimeMs = float64(elapsed.Microseconds()) / 1000.0

	if err != nil {
		kind, message := classifyError(err, ctx)
		result.Success = false
		result.ErrorKind = string(kind)
		result.ErrorMessage = message
		return result, nil
	}

	result.Success = true
	return result, nil
}

func (e *Executor) runQuery(ctx context.Context, query string) (workflow.ExecutionResult, error) {
	rows, err := e.eng.QueryContext(ctx, query)
	if err != nil {
		return workflow.ExecutionResult{}, err
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return workflow.ExecutionResult{}, err
	}

	data := make([]map[string]any, 0, 16)
	rowCount := 0

	for rows.Next() {
		if rowCount >= e.cfg.MaxResultRows {
			// Defense-in-depth: the validator already caps LIMIT, but a view or
			// CTE could still widen the result; truncate rather than trust it blindly.
			break
		}

		values := make([]any, len(cols))
		scanDest := make([]any, len(cols))
		for i := range values {
			scanDest[i] = &values[i]
		}

		if err := rows.Scan(scanDest...); err != nil {
			return workflow.ExecutionResult{}, err
		}

		row := make(map[string]any, len(cols))
		for i, col := range cols {
			row[col] = sanitizeValue(values[i])
		}
		data = append(data, row)
		rowCount++
	}

	if err := rows.Err(); err != nil {
		return workflow.ExecutionResult{}, err
	}

	return workflow.ExecutionResult{
		Columns:  cols,
		Data:     data,
		RowCount: rowCount,
	}, nil
}

// sanitizeValue converts a driver-scanned value into something safe to
// encode as JSON: NaN/Inf become nil, times become RFC3339 strings,
// byte slices become strings, everything else passes through.
func sanitizeValue(v any) any {
	switch x := v.(type) {
	case float32:
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return nil
		}
		return x
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
		return x
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	case []byte:
		return string(x)
	case sql.NullString:
		if !x.Valid {
			return nil
		}
		return x.String
	default:
		return x
	}
}
