package graph

import (
	"slices"
	"strings"
)

// State is the lifecycle state of a stage.
type State string

// Stage states. Nodes move monotonically from pending through running to one
// of the terminal states.
const (
	StatePending    State = "pending"
	StateRunning    State = "running"
	StateSuccessful State = "successful"
	StateFailed     State = "failed"
	StateCancelled  State = "cancelled"

	// StateGraph is carried only by the synthetic root node.
	StateGraph State = "graph"
)

// IsTerminal reports whether the state is a completed state.
func (s State) IsTerminal() bool {
	switch s {
	case StateSuccessful, StateFailed, StateCancelled:
		return true
	}
	return false
}

// rank orders states for transition checks.
func (s State) rank() int {
	switch s {
	case StatePending:
		return 0
	case StateRunning:
		return 1
	case StateGraph:
		return -1
	default:
		return 2
	}
}

// Op tags what a stage does.
type Op string

// Known ops. Any other combinator name is valid and rendered by its name.
const (
	OpGraph          Op = "graph"
	OpInvokeFunction Op = "invokeFunction"
	OpMain           Op = "main"
	OpCompletedValue Op = "completedValue"
	OpExternalFuture Op = "externalFuture"
)

// Hidden reports whether nodes with this op are non-visual placeholders that
// never get a lane of their own.
func (o Op) Hidden() bool {
	return o == OpCompletedValue || o == OpExternalFuture
}

// Node is a single stage of the graph.
//
// Timestamps are epoch milliseconds; zero means absent.
type Node struct {
	StageID      string   `json:"stage_id" bson:"stage_id"`
	Op           Op       `json:"op" bson:"op"`
	State        State    `json:"state" bson:"state"`
	Created      int64    `json:"created" bson:"created"`
	Started      int64    `json:"started,omitempty" bson:"started,omitempty"`
	Completed    int64    `json:"completed,omitempty" bson:"completed,omitempty"`
	Dependencies []string `json:"dependencies,omitempty" bson:"dependencies,omitempty"`
	FunctionID   string   `json:"function_id,omitempty" bson:"function_id,omitempty"`
}

// IsPending reports whether the stage has not started yet.
func (n Node) IsPending() bool { return n.State == StatePending }

// IsRunning reports whether the stage is executing.
func (n Node) IsRunning() bool { return n.State == StateRunning }

// HasCompleted reports whether a completion timestamp is recorded.
func (n Node) HasCompleted() bool { return n.Completed != 0 }

// Label returns the display label: the function ID for function invocations
// and the main stage, the op name for everything else.
func (n Node) Label() string {
	if n.Op == OpInvokeFunction || n.Op == OpMain {
		return n.FunctionID
	}
	return string(n.Op)
}

// Duration returns the elapsed run time in milliseconds, measured up to now
// for stages that have not completed. Pending stages report zero.
func (n Node) Duration(now int64) int64 {
	switch {
	case n.HasCompleted():
		return n.Completed - n.Started
	case n.IsRunning():
		return now - n.Started
	}
	return 0
}

// DependencyList renders the dependency IDs the way tooltips show them.
func (n Node) DependencyList() string {
	return strings.Join(n.Dependencies, ",")
}

func (n Node) clone() Node {
	n.Dependencies = slices.Clone(n.Dependencies)
	return n
}

// Graph is an ordered, append-only sequence of stages.
//
// The zero value is an empty live graph. Graph values handed out by a
// [Source] must be treated as read-only.
type Graph struct {
	ID         string `json:"graph_id,omitempty" bson:"graph_id,omitempty"`
	FunctionID string `json:"function_id,omitempty" bson:"function_id,omitempty"`
	Created    int64  `json:"created" bson:"created"`
	Finished   int64  `json:"finished,omitempty" bson:"finished,omitempty"`
	Nodes      []Node `json:"nodes" bson:"nodes"`
}
