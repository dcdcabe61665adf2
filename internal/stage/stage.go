// Package stage defines the uniform contract every processing stage
// implements and the concrete stages of the document pipeline.
package stage

import (
	"context"

	"github.com/Bachina-mahesh/AI-Document-Processing/internal/domain/run"
	"github.com/Bachina-mahesh/AI-Document-Processing/internal/domain/workflow"
	"github.com/Bachina-mahesh/AI-Document-Processing/internal/inference"
)

// Stage consumes the current run state and produces an updated state plus
// an outcome signal. Implementations receive a clone of the state and must
// not retain it across calls; given identical input and an identical
// collaborator response, the output must be identical (timestamps aside),
// so retries can safely reuse the pre-call snapshot.
type Stage interface {
	// Name returns the graph node this stage is bound to
	Name() workflow.Node

	// Execute runs the stage against the given state. Stage-local errors
	// never escape: collaborator failures are folded into failure-class
	// outcomes for the graph to route.
	Execute(ctx context.Context, state run.State) (run.State, workflow.Outcome)
}

// collaboratorFailure maps a collaborator error to a failure outcome
func collaboratorFailure(err error) workflow.Outcome {
	if inference.KindOf(err) == inference.ErrKindTimeout {
		return workflow.Failure(workflow.ReasonTimeout)
	}
	return workflow.Failure(workflow.ReasonCollaboratorError)
}
