package executor

import (
	"context"
	"errors"
	"strings"

	"github.com/s1v4-d/nlsql-mas/errs"
)

// classifyError maps a DuckDB driver error (or a context cancellation) onto
// an errs.Kind (sql_generation_error, schema_error, execution_error, timeout
// or canceled), by ordered substring matching against the driver's error
// text. Finer classes such as type mismatch, division by zero, out of memory
// and I/O errors are not told apart: they share a Kind. DuckDB does not
// expose a typed error hierarchy over database/sql, so this is the same
// approach the original _classify_error took against its own driver's message.
func classifyError(err error, ctx context.Context) (errs.Kind, string) {
	if ctx.Err() == context.DeadlineExceeded {
		return errs.KindTimeout, "query exceeded the configured timeout"
	}
	if errors.Is(err, context.Canceled) || ctx.Err() == context.Canceled {
		return errs.KindCanceled, "query was canceled"
	}

	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "syntax error") || strings.Contains(msg, "parser error"):
		return errs.KindSQLGeneration, err.Error()
	case strings.Contains(msg, "does not exist") && strings.Contains(msg, "table"):
		return errs.KindSchema, err.Error()
	case strings.Contains(msg, "does not exist") && (strings.Contains(msg, "column") || strings.Contains(msg, "referenced")):
		return errs.KindSchema, err.Error()
	case strings.Contains(msg, "binder error"):
		return errs.KindSQLGeneration, err.Error()
	case strings.Contains(msg, "conversion") || strings.Contains(msg, "cast") || strings.Contains(msg, "type mismatch"):
		return errs.KindExecution, err.Error()
	case strings.Contains(msg, "division by zero"):
		return errs.KindExecution, err.Error()
	case strings.Contains(msg, "out of memory") || strings.Contains(msg, "memory limit"):
		return errs.KindExecution, err.Error()
	case strings.Contains(msg, "no files found") || strings.Contains(msg, "io error") || strings.Contains(msg, "cannot open"):
		return errs.KindSchema, err.Error()
	case strings.Contains(msg, "context deadline exceeded") || strings.Contains(msg, "timeout"):
		return errs.KindTimeout, err.Error()
	default:
		return errs.KindExecution, err.Error()
	}
}
