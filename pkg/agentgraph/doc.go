// Package agentgraph implements a graph-based execution engine for
// agentic conversation workflows.
//
// A workflow is built as a directed graph of named nodes over a state
// type S. Edges are either unconditional or conditional (a RouterFunc
// inspects the state and picks the next node), which makes branch
// decisions and the reasoning/tool-execution cycle explicit state
// machine transitions rather than recursion.
//
// Build a graph, compile it, then run it:
//
//	graph := agentgraph.NewGraph[Turn]().
//	    AddNode("guardrails", guardrailsNode).
//	    AddNode("retrieve", retrieveNode).
//	    AddNode("reason", reasonNode).
//	    AddNode("tools", toolsNode).
//	    AddNode("filter", filterNode).
//	    SetEntry("guardrails").
//	    AddConditionalEdge("guardrails", afterGuardrails).
//	    AddEdge("retrieve", "reason").
//	    AddConditionalEdge("reason", afterReason).
//	    AddEdge("tools", "reason").
//	    AddEdge("filter", agentgraph.END)
//
//	compiled, err := graph.Compile()
//	final, err := compiled.Run(ctx, initial,
//	    agentgraph.WithCheckpointStore[Turn](store),
//	    agentgraph.WithRunID[Turn](threadID))
//
// Execution is strictly sequential within a run: one node at a time,
// cancellation checked between nodes, state passed by value from node
// to node. Checkpointing persists the state after every node so a run
// can be resumed (Resume/ResumeFrom) and a conversation thread can be
// extended across process restarts. A TransitionSink observes node
// transitions for incremental consumers.
package agentgraph
