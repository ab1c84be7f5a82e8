// Package layout turns a graph snapshot into lanes.
//
// # Overview
//
// Every refresh cycle runs the same three steps over a fresh snapshot:
//
//   - [Classify] splits stages into pending and active, ordering active
//     stages by creation time.
//   - [AssignRanks] places each visible active stage in a lane ("rank").
//   - [Highlight] computes the dependency closure of the selected stage.
//
// Nothing is patched incrementally: the output of one cycle never feeds the
// next.
//
// # Lane Assignment
//
// Stages are visited in creation order. A stage may never be drawn above the
// deepest lane holding one of its dependencies (its floor). A stage without
// a floor opens a new lane at the bottom. A stage with a floor joins that lane
// if it conflicts with none of the stages already there, otherwise a new lane
// is inserted directly below the floor, pushing later lanes down.
//
// Two stages conflict when their execution intervals overlap, see [Conflict].
// The completed/completed test only checks whether an endpoint of the new
// stage falls strictly inside the other interval, so a stage whose interval
// strictly contains an existing one can share its lane.
//
// Hidden stages ([graph.Op.Hidden]) never get a lane. They pass the floor of
// their own dependencies through to their dependents.
//
// # Errors
//
// A dependency that is neither placed nor hidden means the creation-order
// invariant was broken. [AssignRanks] then fails with a MISSING_DEPENDENCY
// error wrapping [ErrMissingDependency] and returns no partial layout.
package layout
