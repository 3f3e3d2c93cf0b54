// Package checkpoint provides persistent checkpoint storage for
// resumable conversation threads.
package checkpoint

import (
	"context"
	"errors"
	"time"
)

// Store persists checkpoints for crash recovery and multi-turn memory.
// Implementations must be safe for concurrent use and must serialize
// writes per run ID.
type Store interface {
	// Save stores a checkpoint for a run at a specific node.
	// Overwrites if a checkpoint for (runID, nodeID) already exists.
	Save(ctx context.Context, runID, nodeID string, data []byte) error

	// Load retrieves a checkpoint.
	// Returns ErrNotFound if the checkpoint doesn't exist.
	Load(ctx context.Context, runID, nodeID string) ([]byte, error)

	// LoadLatest retrieves the checkpoint with the highest sequence
	// number for a run. Returns ErrNotFound if the run has none.
	LoadLatest(ctx context.Context, runID string) ([]byte, error)

	// List returns metadata for all checkpoints of a run, ordered by
	// sequence. Returns an empty slice (not an error) if the run has none.
	List(ctx context.Context, runID string) ([]Info, error)

	// Delete removes a specific checkpoint.
	// Returns nil if the checkpoint doesn't exist.
	Delete(ctx context.Context, runID, nodeID string) error

	// DeleteRun removes all checkpoints for a run.
	// Returns nil if the run has no checkpoints.
	DeleteRun(ctx context.Context, runID string) error

	// Close releases any resources (connections, files).
	Close() error
}

// Info provides metadata without loading full state.
type Info struct {
	RunID     string
	NodeID    string
	Sequence  int
	Timestamp time.Time
	Size      int64
}

// Sentinel errors for checkpoint operations.
var (
	// ErrNotFound indicates a checkpoint doesn't exist.
	ErrNotFound = errors.New("checkpoint not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("checkpoint store closed")
)
