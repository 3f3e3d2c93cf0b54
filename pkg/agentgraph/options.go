package agentgraph

import (
	"log/slog"

	"github.com/kwhite/agentgraph/pkg/agentgraph/checkpoint"
	"github.com/kwhite/agentgraph/pkg/agentgraph/observability"
)

// Transition describes one completed node execution.
// It is delivered to the transition sink after the node's state has been
// checkpointed, in execution order.
type Transition[S any] struct {
	// Seq is the 1-based position of this transition within the run.
	Seq int
	// Node is the node that just executed.
	Node string
	// Next is the node that will execute next, or END.
	Next string
	// State is the state produced by the node.
	State S
}

// TransitionSink receives transitions during a run.
// The sink is invoked synchronously from the execution loop; slow sinks
// slow the run down.
type TransitionSink[S any] func(Transition[S])

// runConfig holds configuration for graph execution.
type runConfig[S any] struct {
	maxSteps               int
	logger                 *slog.Logger
	metrics                observability.MetricsRecorder
	spans                  observability.SpanManager
	tracingEnabled         bool
	checkpointStore        checkpoint.Store
	checkpointFailureFatal bool
	runID                  string
	sequence               int
	sink                   TransitionSink[S]
}

// defaultRunConfig returns the default execution configuration.
func defaultRunConfig[S any]() runConfig[S] {
	return runConfig[S]{
		maxSteps: 100,
		metrics:  observability.NoopMetrics{},
		spans:    observability.NoopSpanManager{},
	}
}

// RunOption configures execution behavior.
type RunOption[S any] func(*runConfig[S])

// WithMaxSteps sets the maximum number of node executions.
// Default: 100
//
// This prevents cyclic graphs from looping forever. If a run exceeds
// this limit, Run returns a MaxStepsError.
func WithMaxSteps[S any](n int) RunOption[S] {
	return func(c *runConfig[S]) {
		if n > 0 {
			c.maxSteps = n
		}
	}
}

// WithRunLogger sets the logger used for run-level log records.
// Node-level records use the Context logger.
func WithRunLogger[S any](logger *slog.Logger) RunOption[S] {
	return func(c *runConfig[S]) {
		c.logger = logger
	}
}

// WithCheckpointStore enables checkpointing to the given store.
// Requires WithRunID; Run returns ErrRunIDRequired otherwise.
func WithCheckpointStore[S any](store checkpoint.Store) RunOption[S] {
	return func(c *runConfig[S]) {
		c.checkpointStore = store
	}
}

// WithRunID sets the run identifier under which checkpoints are saved.
func WithRunID[S any](id string) RunOption[S] {
	return func(c *runConfig[S]) {
		c.runID = id
	}
}

// WithCheckpointSequence sets the starting checkpoint sequence number.
// Used when a run continues an existing thread so sequence numbers keep
// increasing monotonically across turns.
func WithCheckpointSequence[S any](seq int) RunOption[S] {
	return func(c *runConfig[S]) {
		if seq > 0 {
			c.sequence = seq
		}
	}
}

// WithCheckpointFailureFatal makes checkpoint failures abort the run.
// By default checkpoint failures are logged and execution continues.
func WithCheckpointFailureFatal[S any]() RunOption[S] {
	return func(c *runConfig[S]) {
		c.checkpointFailureFatal = true
	}
}

// WithMetrics sets the metrics recorder for the run.
func WithMetrics[S any](m observability.MetricsRecorder) RunOption[S] {
	return func(c *runConfig[S]) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithTracing enables OTel span creation for the run and each node.
func WithTracing[S any](spans observability.SpanManager) RunOption[S] {
	return func(c *runConfig[S]) {
		if spans != nil {
			c.spans = spans
			c.tracingEnabled = true
		}
	}
}

// WithTransitionSink registers a sink that observes every node transition.
// Used by incremental consumers that render progress as it happens.
func WithTransitionSink[S any](sink TransitionSink[S]) RunOption[S] {
	return func(c *runConfig[S]) {
		c.sink = sink
	}
}

// ResumeOption configures Resume behavior.
type ResumeOption[S any] func(*resumeConfig[S])

// resumeConfig holds configuration for resuming from a checkpoint.
type resumeConfig[S any] struct {
	replayNode    bool
	stateOverride func(S) S
	validateState func(S) error
}

// WithReplay re-executes the checkpointed node instead of continuing
// from its successor.
func WithReplay[S any]() ResumeOption[S] {
	return func(c *resumeConfig[S]) {
		c.replayNode = true
	}
}

// WithStateOverride transforms the deserialized state before execution
// continues. Useful for patching state that caused the original failure.
func WithStateOverride[S any](fn func(S) S) ResumeOption[S] {
	return func(c *resumeConfig[S]) {
		c.stateOverride = fn
	}
}

// WithStateValidation validates the deserialized state before execution
// continues. A validation error aborts the resume.
func WithStateValidation[S any](fn func(S) error) ResumeOption[S] {
	return func(c *resumeConfig[S]) {
		c.validateState = fn
	}
}
