// Package graph models a task graph as it is observed while it executes.
//
// A [Graph] is an ordered sequence of [Node] values in creation order. Each
// node is a stage with a lifecycle [State], an [Op] tag, creation/start/
// completion timestamps and the stage IDs it depends on. Graphs are append-only
// while live: nodes are never removed, states only move forward, and once a
// completion timestamp is set it does not change.
//
// # Invariants
//
// Every dependency of a node appears earlier in creation order than the node
// itself. Layout code relies on this; [Graph.Validate] checks it and
// [ReadGraph] rejects graphs that violate it.
//
// The first raw node is a synthetic root describing the graph itself (its
// state is [StateGraph]). [Graph.Stages] returns the nodes after it.
//
// # Timestamps
//
// All timestamps are epoch milliseconds. Zero means absent: Started and
// Completed are zero while a node is pending or running, and Finished is zero
// while the graph is live.
//
// # Serialization
//
// Graphs use the JSON shape of the stage event feed:
//
//	{
//	  "graph_id": "g-1",
//	  "created": 1700000000000,
//	  "finished": 1700000004000,
//	  "nodes": [
//	    {"stage_id": "0", "op": "graph", "state": "graph", "created": 1700000000000},
//	    {"stage_id": "1", "op": "invokeFunction", "state": "successful",
//	     "created": 1700000000010, "started": 1700000000020, "completed": 1700000001000,
//	     "function_id": "app/fn"}
//	  ]
//	}
//
// # Sources
//
// A [Source] hands out self-consistent snapshots. [Recorder] is an in-process
// append-only builder, [Replay] plays a finished graph back in virtual time,
// and [FileSource] polls a JSON file. Snapshots are deep copies and may be
// read concurrently.
package graph
