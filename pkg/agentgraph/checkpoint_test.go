package agentgraph_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kwhite/agentgraph/pkg/agentgraph"
	"github.com/kwhite/agentgraph/pkg/agentgraph/checkpoint"
)

// CheckpointState is the state type for checkpoint integration tests.
type CheckpointState struct {
	Value    int      `json:"value"`
	Messages []string `json:"messages"`
}

func TestCheckpointing_BasicExecution(t *testing.T) {
	store := checkpoint.NewMemoryStore()

	increment := func(ctx agentgraph.Context, s CheckpointState) (CheckpointState, error) {
		s.Value++
		s.Messages = append(s.Messages, "incremented")
		return s, nil
	}

	graph := agentgraph.NewGraph[CheckpointState]().
		AddNode("inc1", increment).
		AddNode("inc2", increment).
		AddEdge("inc1", "inc2").
		AddEdge("inc2", agentgraph.END).
		SetEntry("inc1")

	compiled, err := graph.Compile()
	require.NoError(t, err)

	ctx := agentgraph.NewContext(context.Background())
	result, err := compiled.Run(ctx, CheckpointState{Value: 0},
		agentgraph.WithCheckpointStore[CheckpointState](store),
		agentgraph.WithRunID[CheckpointState]("test-run-1"))

	require.NoError(t, err)
	assert.Equal(t, 2, result.Value)
	assert.Equal(t, []string{"incremented", "incremented"}, result.Messages)

	// Verify checkpoints were created
	infos, err := store.List(context.Background(), "test-run-1")
	require.NoError(t, err)
	assert.Len(t, infos, 2) // One checkpoint per node
}

func TestCheckpointing_RequiresRunID(t *testing.T) {
	store := checkpoint.NewMemoryStore()

	noop := func(ctx agentgraph.Context, s CheckpointState) (CheckpointState, error) {
		return s, nil
	}

	graph := agentgraph.NewGraph[CheckpointState]().
		AddNode("noop", noop).
		AddEdge("noop", agentgraph.END).
		SetEntry("noop")

	compiled, err := graph.Compile()
	require.NoError(t, err)

	ctx := agentgraph.NewContext(context.Background())
	_, err = compiled.Run(ctx, CheckpointState{},
		agentgraph.WithCheckpointStore[CheckpointState](store)) // No WithRunID!

	assert.ErrorIs(t, err, agentgraph.ErrRunIDRequired)
}

func TestCheckpointing_Resume(t *testing.T) {
	store := checkpoint.NewMemoryStore()

	var executedNodes []string
	makeNode := func(name string) agentgraph.NodeFunc[CheckpointState] {
		return func(ctx agentgraph.Context, s CheckpointState) (CheckpointState, error) {
			executedNodes = append(executedNodes, name)
			s.Value++
			return s, nil
		}
	}

	graph := agentgraph.NewGraph[CheckpointState]().
		AddNode("a", makeNode("a")).
		AddNode("b", makeNode("b")).
		AddNode("c", makeNode("c")).
		AddEdge("a", "b").
		AddEdge("b", "c").
		AddEdge("c", agentgraph.END).
		SetEntry("a")

	compiled, err := graph.Compile()
	require.NoError(t, err)

	// First run completes successfully
	ctx := agentgraph.NewContext(context.Background())
	_, err = compiled.Run(ctx, CheckpointState{},
		agentgraph.WithCheckpointStore[CheckpointState](store),
		agentgraph.WithRunID[CheckpointState]("resume-test"))

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, executedNodes)

	// Clear and resume from checkpoint
	executedNodes = nil

	// Resume should start from after the last checkpoint (c -> END)
	result, err := compiled.Resume(ctx, store, "resume-test")
	require.NoError(t, err)

	// Since last checkpoint was at "c" with next node as END, nothing executes
	assert.Empty(t, executedNodes)
	assert.Equal(t, 3, result.Value)
}

func TestCheckpointing_ResumeAfterCrash(t *testing.T) {
	store := checkpoint.NewMemoryStore()

	var executedNodes []string
	crashOnB := true

	makeNode := func(name string) agentgraph.NodeFunc[CheckpointState] {
		return func(ctx agentgraph.Context, s CheckpointState) (CheckpointState, error) {
			executedNodes = append(executedNodes, name)
			s.Value++
			if name == "b" && crashOnB {
				return s, errors.New("crash")
			}
			return s, nil
		}
	}

	graph := agentgraph.NewGraph[CheckpointState]().
		AddNode("a", makeNode("a")).
		AddNode("b", makeNode("b")).
		AddNode("c", makeNode("c")).
		AddEdge("a", "b").
		AddEdge("b", "c").
		AddEdge("c", agentgraph.END).
		SetEntry("a")

	compiled, err := graph.Compile()
	require.NoError(t, err)

	ctx := agentgraph.NewContext(context.Background())

	// First run crashes on node b
	_, err = compiled.Run(ctx, CheckpointState{},
		agentgraph.WithCheckpointStore[CheckpointState](store),
		agentgraph.WithRunID[CheckpointState]("crash-test"))

	require.Error(t, err)
	assert.Equal(t, []string{"a", "b"}, executedNodes)

	// Checkpoint at "a" should exist (b failed, so no checkpoint for b)
	infos, _ := store.List(context.Background(), "crash-test")
	require.Len(t, infos, 1)
	assert.Equal(t, "a", infos[0].NodeID)

	// Fix the crash and resume
	crashOnB = false
	executedNodes = nil

	result, err := compiled.Resume(ctx, store, "crash-test")
	require.NoError(t, err)

	// Should resume from node b (after checkpoint at a)
	assert.Equal(t, []string{"b", "c"}, executedNodes)
	assert.Equal(t, 3, result.Value)
}

func TestCheckpointing_ResumeFrom(t *testing.T) {
	store := checkpoint.NewMemoryStore()

	var executedNodes []string
	makeNode := func(name string) agentgraph.NodeFunc[CheckpointState] {
		return func(ctx agentgraph.Context, s CheckpointState) (CheckpointState, error) {
			executedNodes = append(executedNodes, name)
			s.Value++
			return s, nil
		}
	}

	graph := agentgraph.NewGraph[CheckpointState]().
		AddNode("a", makeNode("a")).
		AddNode("b", makeNode("b")).
		AddNode("c", makeNode("c")).
		AddEdge("a", "b").
		AddEdge("b", "c").
		AddEdge("c", agentgraph.END).
		SetEntry("a")

	compiled, err := graph.Compile()
	require.NoError(t, err)

	ctx := agentgraph.NewContext(context.Background())

	// Run to completion
	_, err = compiled.Run(ctx, CheckpointState{},
		agentgraph.WithCheckpointStore[CheckpointState](store),
		agentgraph.WithRunID[CheckpointState]("resume-from-test"))
	require.NoError(t, err)

	// Resume from a specific checkpoint (node "a")
	executedNodes = nil
	result, err := compiled.ResumeFrom(ctx, store, "resume-from-test", "a")
	require.NoError(t, err)

	// Should start from node after "a" checkpoint (which is "b")
	assert.Equal(t, []string{"b", "c"}, executedNodes)
	assert.Equal(t, 3, result.Value)
}

func TestCheckpointing_WithStateOverride(t *testing.T) {
	store := checkpoint.NewMemoryStore()

	noop := func(ctx agentgraph.Context, s CheckpointState) (CheckpointState, error) {
		return s, nil
	}

	graph := agentgraph.NewGraph[CheckpointState]().
		AddNode("noop", noop).
		AddEdge("noop", agentgraph.END).
		SetEntry("noop")

	compiled, err := graph.Compile()
	require.NoError(t, err)

	ctx := agentgraph.NewContext(context.Background())

	// Create initial state with checkpoints
	_, err = compiled.Run(ctx, CheckpointState{Value: 10},
		agentgraph.WithCheckpointStore[CheckpointState](store),
		agentgraph.WithRunID[CheckpointState]("override-test"))
	require.NoError(t, err)

	// Resume with state override
	result, err := compiled.Resume(ctx, store, "override-test",
		agentgraph.WithStateOverride[CheckpointState](func(s CheckpointState) CheckpointState {
			s.Value = 999
			return s
		}))
	require.NoError(t, err)
	assert.Equal(t, 999, result.Value)
}

func TestCheckpointing_WithStateValidation(t *testing.T) {
	store := checkpoint.NewMemoryStore()

	noop := func(ctx agentgraph.Context, s CheckpointState) (CheckpointState, error) {
		return s, nil
	}

	graph := agentgraph.NewGraph[CheckpointState]().
		AddNode("noop", noop).
		AddEdge("noop", agentgraph.END).
		SetEntry("noop")

	compiled, err := graph.Compile()
	require.NoError(t, err)

	ctx := agentgraph.NewContext(context.Background())

	// Create checkpoint
	_, err = compiled.Run(ctx, CheckpointState{Value: 10},
		agentgraph.WithCheckpointStore[CheckpointState](store),
		agentgraph.WithRunID[CheckpointState]("validate-test"))
	require.NoError(t, err)

	// Resume with validation that fails
	_, err = compiled.Resume(ctx, store, "validate-test",
		agentgraph.WithStateValidation[CheckpointState](func(s CheckpointState) error {
			if s.Value < 100 {
				return errors.New("value too small")
			}
			return nil
		}))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "value too small")
}

func TestCheckpointing_WithReplay(t *testing.T) {
	store := checkpoint.NewMemoryStore()

	var executedNodes []string
	makeNode := func(name string) agentgraph.NodeFunc[CheckpointState] {
		return func(ctx agentgraph.Context, s CheckpointState) (CheckpointState, error) {
			executedNodes = append(executedNodes, name)
			s.Value++
			return s, nil
		}
	}

	graph := agentgraph.NewGraph[CheckpointState]().
		AddNode("a", makeNode("a")).
		AddNode("b", makeNode("b")).
		AddEdge("a", "b").
		AddEdge("b", agentgraph.END).
		SetEntry("a")

	compiled, err := graph.Compile()
	require.NoError(t, err)

	ctx := agentgraph.NewContext(context.Background())

	// Run to completion
	_, err = compiled.Run(ctx, CheckpointState{},
		agentgraph.WithCheckpointStore[CheckpointState](store),
		agentgraph.WithRunID[CheckpointState]("replay-test"))
	require.NoError(t, err)

	// Resume with replay (re-executes the checkpointed node)
	executedNodes = nil
	result, err := compiled.Resume(ctx, store, "replay-test",
		agentgraph.WithReplay[CheckpointState]())
	require.NoError(t, err)

	// Should replay "b" (latest checkpoint) even though next node is END
	assert.Equal(t, []string{"b"}, executedNodes)
	assert.Equal(t, 3, result.Value) // Original 2 + replay 1
}

func TestCheckpointing_SequenceContinuesAcrossRuns(t *testing.T) {
	store := checkpoint.NewMemoryStore()

	inc := func(ctx agentgraph.Context, s CheckpointState) (CheckpointState, error) {
		s.Value++
		return s, nil
	}

	graph := agentgraph.NewGraph[CheckpointState]().
		AddNode("inc", inc).
		AddEdge("inc", agentgraph.END).
		SetEntry("inc")

	compiled, err := graph.Compile()
	require.NoError(t, err)

	ctx := agentgraph.NewContext(context.Background())

	_, err = compiled.Run(ctx, CheckpointState{},
		agentgraph.WithCheckpointStore[CheckpointState](store),
		agentgraph.WithRunID[CheckpointState]("seq-test"))
	require.NoError(t, err)

	// Continue the same run ID with an explicit starting sequence, as a
	// multi-turn caller would.
	_, err = compiled.Run(ctx, CheckpointState{Value: 1},
		agentgraph.WithCheckpointStore[CheckpointState](store),
		agentgraph.WithRunID[CheckpointState]("seq-test"),
		agentgraph.WithCheckpointSequence[CheckpointState](1))
	require.NoError(t, err)

	data, err := store.LoadLatest(context.Background(), "seq-test")
	require.NoError(t, err)
	cp, err := checkpoint.Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, 2, cp.Sequence)
}

func TestCheckpointing_CheckpointData(t *testing.T) {
	store := checkpoint.NewMemoryStore()

	graph := agentgraph.NewGraph[CheckpointState]().
		AddNode("process", func(ctx agentgraph.Context, s CheckpointState) (CheckpointState, error) {
			s.Value = 42
			s.Messages = []string{"processed"}
			return s, nil
		}).
		AddEdge("process", agentgraph.END).
		SetEntry("process")

	compiled, err := graph.Compile()
	require.NoError(t, err)

	ctx := agentgraph.NewContext(context.Background())
	_, err = compiled.Run(ctx, CheckpointState{},
		agentgraph.WithCheckpointStore[CheckpointState](store),
		agentgraph.WithRunID[CheckpointState]("data-test"))
	require.NoError(t, err)

	// Load and verify checkpoint data
	data, err := store.Load(context.Background(), "data-test", "process")
	require.NoError(t, err)

	cp, err := checkpoint.Unmarshal(data)
	require.NoError(t, err)

	assert.Equal(t, "data-test", cp.RunID)
	assert.Equal(t, "process", cp.NodeID)
	assert.Equal(t, agentgraph.END, cp.NextNode)
	assert.Equal(t, 1, cp.Sequence)

	// Verify state in checkpoint
	var state CheckpointState
	err = json.Unmarshal(cp.State, &state)
	require.NoError(t, err)
	assert.Equal(t, 42, state.Value)
	assert.Equal(t, []string{"processed"}, state.Messages)
}
