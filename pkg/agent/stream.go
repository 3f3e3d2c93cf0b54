package agent

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/kwhite/agentgraph/pkg/agentgraph"
	"github.com/kwhite/agentgraph/pkg/agentgraph/event"
)

// Event types published on the service bus during a streamed turn.
const (
	EventTypeStage     = "turn.stage"
	EventTypeCompleted = "turn.completed"
	EventTypeFailed    = "turn.failed"
)

// eventSource identifies this package on the bus.
const eventSource = "agent"

// TurnEvent is one update from a streamed turn.
//
// Stage events arrive in execution order, one per completed workflow
// stage. The final event carries either Result or Err and the channel is
// closed after it.
type TurnEvent struct {
	// Stage names the workflow stage that just completed. Empty on the
	// terminal event.
	Stage string

	// State is the turn state after the stage. Nil on the terminal event.
	State *TurnState

	// Result is set on the terminal event of a successful turn.
	Result *Result

	// Err is set on the terminal event of a failed turn.
	Err error
}

// Stream executes one turn like Run, delivering stage-by-stage progress.
//
// The returned channel yields one TurnEvent per completed stage and then
// a terminal event with the Result or error, after which it is closed.
// Cancelling ctx stops delivery; the turn itself also observes ctx.
func (s *Service) Stream(ctx context.Context, query, userID, documentID, threadID string) (<-chan TurnEvent, error) {
	turnID := uuid.New().String()
	events := make(chan TurnEvent, 1)

	// gate serializes sends with the close so a late event can never hit
	// a closed channel.
	var (
		gate   sync.Mutex
		closed bool
		sub    event.Subscription
	)
	finish := func() {
		gate.Lock()
		defer gate.Unlock()
		if closed {
			return
		}
		closed = true
		close(events)
		if sub != nil {
			sub.Unsubscribe()
		}
	}

	deliver := func(te TurnEvent) bool {
		gate.Lock()
		defer gate.Unlock()
		if closed {
			return false
		}
		select {
		case events <- te:
			return true
		case <-ctx.Done():
			return false
		}
	}

	handler := event.HandlerFunc(func(_ context.Context, evt event.Event) error {
		if evt.CorrelationID() != turnID {
			return nil
		}
		switch data := evt.Data().(type) {
		case agentgraph.Transition[TurnState]:
			st := data.State
			deliver(TurnEvent{Stage: data.Node, State: &st})
		case *Result:
			deliver(TurnEvent{Result: data})
			finish()
		case error:
			deliver(TurnEvent{Err: data})
			finish()
		}
		return nil
	})

	sub = s.bus.Subscribe([]string{EventTypeStage, EventTypeCompleted, EventTypeFailed}, handler)
	if sub == nil {
		return nil, &event.BusClosedError{EventType: EventTypeStage}
	}

	go func() {
		sink := func(tr agentgraph.Transition[TurnState]) {
			evt := event.New(EventTypeStage, eventSource, tr, event.WithCorrelationID(turnID))
			if err := s.bus.Publish(ctx, evt); err != nil {
				s.logger.Warn("dropping stage event", "error", err)
			}
		}

		res, err := s.turn(ctx, query, userID, documentID, threadID,
			agentgraph.WithTransitionSink[TurnState](sink))

		var terminal event.Event
		if err != nil {
			terminal = event.New(EventTypeFailed, eventSource, err, event.WithCorrelationID(turnID))
		} else {
			terminal = event.New(EventTypeCompleted, eventSource, res, event.WithCorrelationID(turnID))
		}
		if pubErr := s.bus.Publish(ctx, terminal); pubErr != nil {
			// Bus unavailable; close the stream directly.
			finish()
		}
	}()

	return events, nil
}
