package agentgraph

// END is the terminal node identifier.
// Use this as an edge target to indicate the graph should terminate.
const END = "__end__"

// NodeFunc is the signature for all node functions.
// Nodes receive the execution context and current state,
// and return the updated state (or the same state) and any error.
//
// The state parameter is passed by value. Nodes should modify and return
// a new state value, not rely on pointer mutation. This keeps concurrent
// runs structurally independent.
//
// Example:
//
//	func retrieve(ctx agentgraph.Context, s Turn) (Turn, error) {
//	    s.Context = lookup(s.Query)
//	    return s, nil
//	}
type NodeFunc[S any] func(ctx Context, state S) (S, error)

// RouterFunc determines the next node based on state.
// It is used for conditional edges where the next node depends on runtime state.
//
// The router should return a valid node ID or agentgraph.END.
// Returning an empty string or an unknown node ID will cause a runtime error.
//
// Example:
//
//	func afterReason(ctx agentgraph.Context, s Turn) string {
//	    if len(s.PendingCalls) > 0 {
//	        return "tools"
//	    }
//	    return "filter"
//	}
type RouterFunc[S any] func(ctx Context, state S) string
