package workflow

import "errors"

var (
	// ErrInvalidState is returned when a stage is invoked on a terminal run
	// state, or when a stage returns a state that violates run invariants
	ErrInvalidState = errors.New("invalid run state")

	// ErrMissingEdge is returned when no edge is defined for a (node, outcome) pair
	ErrMissingEdge = errors.New("no edge defined for outcome")

	// ErrUnknownNode is returned when a node is not part of the graph
	ErrUnknownNode = errors.New("unknown graph node")

	// ErrCyclicGraph is returned when edges form a cycle through more than
	// one node; retries are only allowed as bounded self-loops
	ErrCyclicGraph = errors.New("graph contains an unbounded cycle")
)
