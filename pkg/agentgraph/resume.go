package agentgraph

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kwhite/agentgraph/pkg/agentgraph/checkpoint"
)

// Resume continues execution from the last checkpoint for a run.
// It loads the latest checkpoint and starts execution from the next node.
//
// Example:
//
//	// Previous turn crashed after the retrieve node
//	// Resume continues from reason with the retrieved state
//	result, err := compiled.Resume(ctx, store, "thread-123")
func (cg *CompiledGraph[S]) Resume(ctx Context, store checkpoint.Store, runID string, opts ...ResumeOption[S]) (S, error) {
	var zero S

	if ctx == nil {
		return zero, ErrNilContext
	}

	data, err := store.LoadLatest(ctx, runID)
	if err != nil {
		if errors.Is(err, checkpoint.ErrNotFound) {
			return zero, fmt.Errorf("%w: %s", ErrNoCheckpoints, runID)
		}
		return zero, fmt.Errorf("load latest checkpoint: %w", err)
	}

	return cg.resumeFromData(ctx, store, runID, data, opts...)
}

// ResumeFrom continues execution from a specific checkpoint.
// Unlike Resume, this loads the checkpoint at a specific node rather than
// the latest.
func (cg *CompiledGraph[S]) ResumeFrom(ctx Context, store checkpoint.Store, runID, nodeID string, opts ...ResumeOption[S]) (S, error) {
	var zero S

	if ctx == nil {
		return zero, ErrNilContext
	}

	data, err := store.Load(ctx, runID, nodeID)
	if err != nil {
		if errors.Is(err, checkpoint.ErrNotFound) {
			return zero, fmt.Errorf("%w: %s at node %s", ErrNoCheckpoints, runID, nodeID)
		}
		return zero, fmt.Errorf("load checkpoint: %w", err)
	}

	return cg.resumeFromData(ctx, store, runID, data, opts...)
}

// resumeFromData deserializes a checkpoint and continues execution.
func (cg *CompiledGraph[S]) resumeFromData(ctx Context, store checkpoint.Store, runID string, data []byte, opts ...ResumeOption[S]) (S, error) {
	var zero S

	cfg := resumeConfig[S]{}
	for _, opt := range opts {
		opt(&cfg)
	}

	cp, err := checkpoint.Unmarshal(data)
	if err != nil {
		return zero, fmt.Errorf("%w: %v", ErrDeserializeState, err)
	}

	if cp.Version != checkpoint.Version {
		return zero, fmt.Errorf("%w: got %d, expected %d",
			ErrCheckpointVersionMismatch, cp.Version, checkpoint.Version)
	}

	var state S
	if err := json.Unmarshal(cp.State, &state); err != nil {
		return zero, fmt.Errorf("%w: %v", ErrDeserializeState, err)
	}

	if cfg.stateOverride != nil {
		state = cfg.stateOverride(state)
	}

	if cfg.validateState != nil {
		if err := cfg.validateState(state); err != nil {
			return state, fmt.Errorf("state validation failed: %w", err)
		}
	}

	startNode := cp.NextNode
	if cfg.replayNode {
		startNode = cp.NodeID
	}

	if startNode != END && !cg.HasNode(startNode) {
		return zero, fmt.Errorf("%w: %s", ErrInvalidResumeNode, startNode)
	}

	runCfg := defaultRunConfig[S]()
	runCfg.checkpointStore = store
	runCfg.runID = runID
	runCfg.sequence = cp.Sequence

	result, _, err := cg.runFrom(ctx, ctx, state, startNode, &runCfg)
	return result, err
}
