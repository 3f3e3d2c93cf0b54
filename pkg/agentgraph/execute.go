package agentgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/kwhite/agentgraph/pkg/agentgraph/checkpoint"
	"github.com/kwhite/agentgraph/pkg/agentgraph/observability"
)

// Run executes the graph with the given initial state.
// Returns the final state and any error encountered.
//
// On success, returns the state after the last node executed before END.
// On error, returns the state at the point of failure (useful for debugging).
//
// Execution flow:
//  1. Start at the entry point node
//  2. Check for cancellation
//  3. Execute the current node
//  4. Determine the next node (via simple or conditional edge)
//  5. Checkpoint and report the transition
//  6. Repeat until END is reached or an error occurs
func (cg *CompiledGraph[S]) Run(ctx Context, state S, opts ...RunOption[S]) (result S, runErr error) {
	if ctx == nil {
		return state, ErrNilContext
	}

	cfg := defaultRunConfig[S]()
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.checkpointStore != nil && cfg.runID == "" {
		return state, ErrRunIDRequired
	}

	runID := cfg.runID
	if runID == "" {
		runID = ctx.RunID()
	}
	logger := cfg.logger
	if logger == nil {
		logger = ctx.Logger()
	}

	startTime := time.Now()
	observability.LogRunStart(logger, runID)

	var execCtx context.Context = ctx
	var runSpan trace.Span
	if cfg.tracingEnabled {
		execCtx, runSpan = cfg.spans.StartRunSpan(ctx, "agentgraph", runID)
		defer func() {
			cfg.spans.EndSpanWithError(runSpan, runErr)
		}()
	}

	var nodeCount int
	result, nodeCount, runErr = cg.runFrom(execCtx, ctx, state, cg.entryPoint, &cfg)

	duration := time.Since(startTime)
	durationMs := float64(duration.Milliseconds())
	cfg.metrics.RecordGraphRun(ctx, runErr == nil, duration)

	if runErr != nil {
		lastNode := ""
		switch e := runErr.(type) {
		case *NodeError:
			lastNode = e.NodeID
		case *MaxStepsError:
			lastNode = e.LastNodeID
		case *CancellationError:
			lastNode = e.NodeID
		}
		observability.LogRunError(logger, runID, runErr, durationMs, lastNode)
	} else {
		observability.LogRunComplete(logger, runID, durationMs, nodeCount)
	}

	return result, runErr
}

// runFrom executes the graph starting from a specific node.
// tracingCtx carries span context; gCtx is the engine Context.
// Returns the final state, node count, and any error.
func (cg *CompiledGraph[S]) runFrom(tracingCtx context.Context, gCtx Context, state S, startNode string, cfg *runConfig[S]) (S, int, error) {
	current := startNode
	steps := 0
	prevNode := ""
	nodeCount := 0
	logger := cfg.logger
	if logger == nil {
		logger = gCtx.Logger()
	}

	for current != END {
		steps++
		if steps > cfg.maxSteps {
			return state, nodeCount, &MaxStepsError{
				Max:        cfg.maxSteps,
				LastNodeID: current,
				State:      state,
			}
		}

		// Check for cancellation before executing node
		select {
		case <-gCtx.Done():
			return state, nodeCount, &CancellationError{
				NodeID: current,
				State:  state,
				Cause:  gCtx.Err(),
			}
		default:
		}

		observability.LogNodeStart(logger, current)

		nodeTracingCtx := tracingCtx
		var nodeSpan trace.Span
		if cfg.tracingEnabled {
			nodeTracingCtx, nodeSpan = cfg.spans.StartNodeSpan(tracingCtx, current)
		}

		nodeStart := time.Now()
		var nodeErr error
		state, nodeErr = cg.executeNode(gCtx, current, state)
		nodeDuration := time.Since(nodeStart)

		cfg.metrics.RecordNodeExecution(nodeTracingCtx, current, nodeDuration, nodeErr)
		if cfg.tracingEnabled {
			cfg.spans.EndSpanWithError(nodeSpan, nodeErr)
		}

		if nodeErr != nil {
			observability.LogNodeError(logger, current, nodeErr)
			return state, nodeCount, nodeErr
		}
		observability.LogNodeComplete(logger, current, float64(nodeDuration.Milliseconds()))
		nodeCount++

		// Determine next node
		next, err := cg.nextNode(gCtx, state, current)
		if err != nil {
			return state, nodeCount, err
		}

		// Checkpoint after successful node execution
		if cfg.checkpointStore != nil {
			if err := cg.saveCheckpoint(gCtx, cfg, logger, current, prevNode, state, next); err != nil {
				return state, nodeCount, err
			}
		}

		if cfg.sink != nil {
			cfg.sink(Transition[S]{
				Seq:   nodeCount,
				Node:  current,
				Next:  next,
				State: state,
			})
		}

		prevNode = current
		current = next
	}

	return state, nodeCount, nil
}

// saveCheckpoint persists the current state after node execution.
// Failures are non-fatal unless WithCheckpointFailureFatal was set.
func (cg *CompiledGraph[S]) saveCheckpoint(ctx Context, cfg *runConfig[S], logger *slog.Logger, nodeID, prevNodeID string, state S, nextNode string) error {
	stateBytes, err := json.Marshal(state)
	if err != nil {
		if cfg.checkpointFailureFatal {
			return &CheckpointError{NodeID: nodeID, Op: "serialize", Err: err}
		}
		observability.LogCheckpointError(logger, nodeID, "serialize", err)
		return nil
	}

	cfg.sequence++
	cp := checkpoint.New(cfg.runID, nodeID, cfg.sequence, stateBytes, nextNode).
		WithPrevNode(prevNodeID)

	data, err := cp.Marshal()
	if err != nil {
		if cfg.checkpointFailureFatal {
			return &CheckpointError{NodeID: nodeID, Op: "marshal", Err: err}
		}
		observability.LogCheckpointError(logger, nodeID, "marshal", err)
		return nil
	}

	if err := cfg.checkpointStore.Save(ctx, cfg.runID, nodeID, data); err != nil {
		if cfg.checkpointFailureFatal {
			return &CheckpointError{NodeID: nodeID, Op: "save", Err: err}
		}
		observability.LogCheckpointError(logger, nodeID, "save", err)
		return nil
	}

	sizeBytes := len(data)
	observability.LogCheckpoint(logger, nodeID, sizeBytes)
	cfg.metrics.RecordCheckpoint(ctx, nodeID, int64(sizeBytes))

	return nil
}

// executeNode executes a single node with panic recovery.
// Returns the new state and any error (including wrapped panics).
func (cg *CompiledGraph[S]) executeNode(ctx Context, nodeID string, state S) (result S, err error) {
	fn, exists := cg.getNode(nodeID)
	if !exists {
		// This shouldn't happen if compilation was successful
		return state, &NodeError{
			NodeID: nodeID,
			Op:     "lookup",
			Err:    fmt.Errorf("node not found: %s", nodeID),
		}
	}

	// Create node-specific context with enriched logger
	nodeCtx := ctx
	if ec, ok := ctx.(*executionContext); ok {
		nodeCtx = ec.withNodeID(nodeID)
	}

	// Panic recovery
	defer func() {
		if r := recover(); r != nil {
			result = state
			err = &PanicError{
				NodeID: nodeID,
				Value:  r,
				Stack:  string(debug.Stack()),
			}
		}
	}()

	result, err = fn(nodeCtx, state)
	if err != nil {
		return result, &NodeError{
			NodeID: nodeID,
			Op:     "execute",
			Err:    err,
		}
	}

	return result, nil
}

// nextNode determines the next node to execute.
// Checks conditional edges first, then simple edges.
func (cg *CompiledGraph[S]) nextNode(ctx Context, state S, current string) (string, error) {
	if router, exists := cg.getRouter(current); exists {
		routerCtx := ctx
		if ec, ok := ctx.(*executionContext); ok {
			routerCtx = ec.withNodeID(current)
		}

		next := router(routerCtx, state)

		if next == "" {
			return "", &RouterError{
				FromNode: current,
				Returned: next,
				Err:      ErrInvalidRouterResult,
			}
		}

		if next != END {
			if _, exists := cg.getNode(next); !exists {
				return "", &RouterError{
					FromNode: current,
					Returned: next,
					Err:      ErrRouterTargetNotFound,
				}
			}
		}

		return next, nil
	}

	target, ok := cg.edges[current]
	if !ok {
		// No outgoing edge - this shouldn't happen if compilation was successful
		return "", &NodeError{
			NodeID: current,
			Op:     "routing",
			Err:    fmt.Errorf("no outgoing edge from node %s", current),
		}
	}

	return target, nil
}
