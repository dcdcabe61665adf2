package stage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Bachina-mahesh/AI-Document-Processing/internal/domain/run"
	"github.com/Bachina-mahesh/AI-Document-Processing/internal/domain/workflow"
)

// Router is the decision stage: a deterministic function of the
// accumulated run state, never an external call. It is the only stage
// whose outcome selects a terminal branch of the graph.
type Router struct {
	lowThreshold float64
	budgets      map[string]int
	logger       *zap.Logger
}

// NewRouter creates the routing stage. lowThreshold is the confidence
// floor below which a run needs human review; budgets maps stage names
// to their maximum attempt counts, mirroring the graph.
func NewRouter(lowThreshold float64, budgets map[string]int, logger *zap.Logger) *Router {
	return &Router{
		lowThreshold: lowThreshold,
		budgets:      budgets,
		logger:       logger,
	}
}

// Name returns the graph node this stage is bound to
func (s *Router) Name() workflow.Node {
	return workflow.NodeRoute
}

// Execute records the routing decision and signals it through the outcome
// class: success routes to auto-approval, lowConfidence to human review,
// failure to the failed sentinel.
func (s *Router) Execute(ctx context.Context, state run.State) (run.State, workflow.Outcome) {
	decision := s.decide(state)
	state.Routing = &decision

	s.logger.Info("Routing decision made",
		zap.String("run_id", state.RunID),
		zap.String("destination", decision.Destination.String()),
		zap.String("reasoning", decision.Reasoning))

	confidence := s.overallConfidence(state)

	switch decision.Destination {
	case run.StatusFailed:
		return state, workflow.Failure(decision.Reasoning)
	case run.StatusNeedsReview:
		return state, workflow.LowConfidence(confidence)
	default:
		return state, workflow.Success(confidence)
	}
}

// decide applies the routing policy over the accumulated state
func (s *Router) decide(state run.State) run.Decision {
	// A stage that failed and exhausted its retry budget fails the run
	for stage, attempts := range state.RetryCounts {
		rec, ok := state.LastRecord(stage)
		if !ok || rec.Outcome != workflow.ClassFailure {
			continue
		}
		if budget, ok := s.budgets[stage]; ok && attempts >= budget {
			return run.Decision{
				Destination: run.StatusFailed,
				Reasoning: fmt.Sprintf("stage %s failed after %d attempt(s): %s",
					stage, attempts, rec.Reason),
			}
		}
	}

	if reason, ok := s.reviewReason(state); ok {
		return run.Decision{
			Destination:         run.StatusNeedsReview,
			Reasoning:           reason,
			RequiresHumanReview: true,
		}
	}

	return run.Decision{
		Destination: run.StatusAutoApproved,
		Reasoning:   "classification, extraction and validation all above threshold with no flags",
	}
}

// reviewReason returns the first condition that pushes the run to human review
func (s *Router) reviewReason(state run.State) (string, bool) {
	if len(state.ValidationFlags) > 0 {
		return fmt.Sprintf("%d validation flag(s) raised", len(state.ValidationFlags)), true
	}
	if state.Classification == nil {
		return "document was never classified", true
	}
	if state.Classification.Confidence < s.lowThreshold {
		return fmt.Sprintf("classification confidence %.2f below threshold %.2f",
			state.Classification.Confidence, s.lowThreshold), true
	}
	minField, ok := state.MinFieldConfidence()
	if !ok {
		return "no fields were extracted", true
	}
	if minField < s.lowThreshold {
		return fmt.Sprintf("extracted field confidence %.2f below threshold %.2f",
			minField, s.lowThreshold), true
	}
	return "", false
}

// overallConfidence is the weakest confidence across classification and
// extracted fields
func (s *Router) overallConfidence(state run.State) float64 {
	confidence := 1.0
	if state.Classification != nil {
		confidence = state.Classification.Confidence
	}
	if minField, ok := state.MinFieldConfidence(); ok && minField < confidence {
		confidence = minField
	}
	return confidence
}
