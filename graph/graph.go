// Package graph runs the directed state graph connecting the router, SQL
// generator, validator, executor, and summarizer nodes, with conditional
// edges and a bounded validator-to-generator retry loop. Grounded on the
// original system's agents/graph.py (routing maps, check_validation) and
// the teacher's retry/backoff idiom for bounding the one cyclic edge.
package graph

import (
	"context"

	"github.com/pkg/errors"

	"github.com/s1v4-d/nlsql-mas/checkpoint"
	"github.com/s1v4-d/nlsql-mas/errs"
	"github.com/s1v4-d/nlsql-mas/logging"
	"github.com/s1v4-d/nlsql-mas/workflow"
)

// NodeName identifies one node in the graph, including the terminal End sentinel.
type NodeName string

const (
	NodeRouter          NodeName = "router"
	NodeSchemaDiscovery NodeName = "schema_discovery"
	NodeSQLGenerator    NodeName = "sql_generator"
	NodeValidator       NodeName = "validator"
	NodeExecutor        NodeName = "executor"
	NodeSummarizer      NodeName = "summarizer"
	End                 NodeName = "__end__"
)

// Node is anything that can process a WorkflowState and return a Patch.
// Nodes never mutate the state they're given.
type Node func(ctx context.Context, state workflow.WorkflowState) (workflow.Patch, error)

// Config bounds graph execution.
type Config struct {
	MaxRetries         int `yaml:"max_retries" env:"MAX_RETRIES" default:"3"`
	MaxRecursionDepth  int `yaml:"max_recursion_depth" env:"MAX_RECURSION_DEPTH" default:"25"`
}

// Tracer observes node transitions; useful for tests and for structured
// tracing in production. A nil Tracer is a no-op.
type Tracer interface {
	OnNodeStart(ctx context.Context, node NodeName, state workflow.WorkflowState)
	OnNodeEnd(ctx context.Context, node NodeName, patch workflow.Patch, err error)
}

// Graph wires a fixed set of nodes with conditional routing.
type Graph struct {
	cfg   Config
	nodes map[NodeName]Node

	checkpoints *checkpoint.Store
	tracer      Tracer
	logger      *logging.Logger
}

// New constructs a Graph with every node registered. checkpoints may be nil
// to disable durability (used by unit tests); tracer may be nil.
func New(cfg Config, nodes map[NodeName]Node, checkpoints *checkpoint.Store, tracer Tracer, logger *logging.Logger) *Graph {
	return &Graph{cfg: cfg, nodes: nodes, checkpoints: checkpoints, tracer: tracer, logger: logger}
}

// routeByIntent mirrors the original system's routing_map: query goes to
// sql_generator, summarize skips straight to executor (reusing a prior
// query), chat goes directly to summarizer, and clarify ends the run
// immediately so the clarification question reaches the user.
func routeByIntent(state workflow.WorkflowState) NodeName {
	switch state.Intent {
	case workflow.IntentQuery:
		return NodeSQLGenerator
	case workflow.IntentSummarize:
		return NodeExecutor
	case workflow.IntentChat:
		return NodeSummarizer
	case workflow.IntentClarify:
		return End
	default:
		return NodeSQLGenerator
	}
}

// checkValidation decides whether to execute, retry generation, or give up
// and summarize a failure, bounded by Config.MaxRetries.
func checkValidation(state workflow.WorkflowState, maxRetries int) NodeName {
	if state.SQLIsValid {
		return NodeExecutor
	}
	if state.RetryCount >= maxRetries {
		return NodeSummarizer
	}
	return NodeSQLGenerator
}

// Run drives state through the graph starting at NodeRouter until it
// reaches End, checkpointing after every node (if a Store is configured)
// and enforcing Config.MaxRecursionDepth against runaway cycles.
func (g *Graph) Run(ctx context.Context, state workflow.WorkflowState) (workflow.WorkflowState, error) {
	current := NodeRouter
	steps := 0

	for current != End {
		if err := ctx.Err(); err != nil {
			return state, errs.Wrap(errs.KindCanceled, err, "graph run canceled")
		}

		steps++
		if steps > g.cfg.MaxRecursionDepth {
			return state, errs.New(errs.KindRecursion, "graph exceeded maximum recursion depth", map[string]any{
				"max_recursion_depth": g.cfg.MaxRecursionDepth,
				"thread_id":           state.ThreadID,
			})
		}

		node, ok := g.nodes[current]
		if !ok {
			return state, errors.Errorf("graph: no node registered for %q", current)
		}

		if g.tracer != nil {
			g.tracer.OnNodeStart(ctx, current, state)
		}

		patch, err := node(ctx, state)

		if g.tracer != nil {
			g.tracer.OnNodeEnd(ctx, current, patch, err)
		}

		if err != nil {
			return state, errors.Wrapf(err, "graph: node %q failed", current)
		}

		state = patch.Apply(state)

		if g.checkpoints != nil {
			if err := g.checkpoints.Put(ctx, state.ThreadID, state); err != nil {
				g.logger.Warnw("graph: checkpoint write failed", "thread_id", state.ThreadID, "node", current, "error", err)
			}
		}

		current = g.next(current, state)
	}

	return state, nil
}

func (g *Graph) next(current NodeName, state workflow.WorkflowState) NodeName {
	switch current {
	case NodeRouter:
		intent := state.Intent
		if intent == workflow.IntentQuery && len(state.DiscoveredTables) == 0 {
			if _, ok := g.nodes[NodeSchemaDiscovery]; ok {
				return NodeSchemaDiscovery
			}
		}
		return routeByIntent(state)
	case NodeSchemaDiscovery:
		return NodeSQLGenerator
	case NodeSQLGenerator:
		return NodeValidator
	case NodeValidator:
		return checkValidation(state, g.cfg.MaxRetries)
	case NodeExecutor:
		return NodeSummarizer
	case NodeSummarizer:
		return End
	default:
		return End
	}
}
