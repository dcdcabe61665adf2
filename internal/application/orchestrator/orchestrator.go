// Package orchestrator drives one document run through the workflow graph
// until it reaches exactly one terminal status.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Bachina-mahesh/AI-Document-Processing/internal/domain/run"
	"github.com/Bachina-mahesh/AI-Document-Processing/internal/domain/workflow"
	"github.com/Bachina-mahesh/AI-Document-Processing/internal/stage"
)

// Option configures the orchestrator
type Option func(*Orchestrator)

// WithStageTimeout sets the execution timeout for one stage
func WithStageTimeout(node workflow.Node, timeout time.Duration) Option {
	return func(o *Orchestrator) {
		o.timeouts[node] = timeout
	}
}

// WithDefaultTimeout sets the timeout for stages without an explicit one
func WithDefaultTimeout(timeout time.Duration) Option {
	return func(o *Orchestrator) {
		o.defaultTimeout = timeout
	}
}

// Orchestrator walks the workflow graph for single runs. It exclusively
// owns the run state for the duration of a run: stages receive clones and
// the orchestrator alone advances the current reference, appends to the
// audit trail, and finalizes the run. One orchestrator instance is safe
// for concurrent use by independent runs.
type Orchestrator struct {
	graph          *workflow.Graph
	stages         map[workflow.Node]stage.Stage
	timeouts       map[workflow.Node]time.Duration
	defaultTimeout time.Duration
	logger         *zap.Logger
}

// New creates an orchestrator over the given graph. Every non-terminal
// graph node must have a stage bound to it.
func New(graph *workflow.Graph, stages []stage.Stage, logger *zap.Logger, opts ...Option) (*Orchestrator, error) {
	bound := make(map[workflow.Node]stage.Stage, len(stages))
	for _, s := range stages {
		bound[s.Name()] = s
	}

	for _, node := range graph.Nodes() {
		if _, ok := bound[node]; !ok {
			return nil, fmt.Errorf("%w: no stage bound to graph node %s", workflow.ErrUnknownNode, node)
		}
	}

	o := &Orchestrator{
		graph:          graph,
		stages:         bound,
		timeouts:       make(map[workflow.Node]time.Duration),
		defaultTimeout: 60 * time.Second,
		logger:         logger,
	}

	for _, opt := range opts {
		opt(o)
	}

	return o, nil
}

// Run executes one document run to completion. Stage-local failures are
// folded into graph transitions; the returned error is non-nil only for
// engine-integrity faults (invalid input state, missing edge, or a stage
// violating run invariants), which sit outside the terminal status
// lattice. Cancellation of ctx takes effect at the next stage boundary
// and finalizes the run as failed/cancelled.
func (o *Orchestrator) Run(ctx context.Context, state run.State) (run.State, error) {
	if !state.Status.IsValid() || state.Status.IsTerminal() {
		return state, fmt.Errorf("%w: run %s has status %s", workflow.ErrInvalidState, state.RunID, state.Status)
	}
	if state.RetryCounts == nil {
		state.RetryCounts = make(map[string]int)
	}

	node := o.graph.Entry()

	for {
		if ctx.Err() != nil {
			o.logger.Info("Run cancelled at stage boundary",
				zap.String("run_id", state.RunID),
				zap.String("next_stage", node.String()))
			state.Finalize(run.StatusFailed, workflow.ReasonCancelled)
			return state, nil
		}

		current, ok := o.stages[node]
		if !ok {
			return state, fmt.Errorf("%w: no stage bound to node %s", workflow.ErrUnknownNode, node)
		}

		attempt := state.RetryCounts[node.String()] + 1

		stageCtx, cancel := context.WithTimeout(ctx, o.timeoutFor(node))
		updated, outcome := current.Execute(stageCtx, state.Clone())
		timedOut := stageCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil
		cancel()

		if timedOut && outcome.Class != workflow.ClassFailure {
			// The stage overran its budget: synthesize the failure it
			// should have reported and discard its partial state
			updated = state.Clone()
			outcome = workflow.Failure(workflow.ReasonTimeout)
		}

		if err := checkIntegrity(state, updated); err != nil {
			return state, err
		}

		state = updated
		state.RetryCounts[node.String()] = attempt
		state.AppendRecord(run.StageRecord{
			Stage:      node.String(),
			Attempt:    attempt,
			Outcome:    outcome.Class,
			Confidence: outcome.Confidence,
			Reason:     outcome.Reason,
			Timestamp:  time.Now().UTC(),
		})

		o.logger.Info("Stage completed",
			zap.String("run_id", state.RunID),
			zap.String("stage", node.String()),
			zap.Int("attempt", attempt),
			zap.String("outcome", outcome.Class.String()),
			zap.Float64("confidence", outcome.Confidence),
			zap.String("reason", outcome.Reason))

		next, err := o.graph.Next(node, outcome.Class, attempt)
		if err != nil {
			return state, err
		}

		if next.IsTerminal() {
			state.Finalize(statusFor(next), terminalReason(next, outcome))
			o.logger.Info("Run finalized",
				zap.String("run_id", state.RunID),
				zap.String("status", state.Status.String()),
				zap.Int("stages_executed", len(state.StageHistory)))
			return state, nil
		}

		node = next
	}
}

// timeoutFor returns the configured timeout for a stage node
func (o *Orchestrator) timeoutFor(node workflow.Node) time.Duration {
	if timeout, ok := o.timeouts[node]; ok && timeout > 0 {
		return timeout
	}
	return o.defaultTimeout
}

// checkIntegrity verifies that a stage respected the run invariants:
// immutable identity fields, no terminal status assignment, and no
// writes to the audit trail
func checkIntegrity(prev, updated run.State) error {
	if updated.RunID != prev.RunID {
		return fmt.Errorf("%w: stage mutated run_id", workflow.ErrInvalidState)
	}
	if updated.DocumentRef != prev.DocumentRef {
		return fmt.Errorf("%w: stage mutated document_ref", workflow.ErrInvalidState)
	}
	if updated.Status != prev.Status {
		return fmt.Errorf("%w: stage mutated run status", workflow.ErrInvalidState)
	}
	if len(updated.StageHistory) != len(prev.StageHistory) {
		return fmt.Errorf("%w: stage wrote to the audit trail", workflow.ErrInvalidState)
	}
	return nil
}

// statusFor maps a terminal sentinel node to its run status
func statusFor(node workflow.Node) run.Status {
	switch node {
	case workflow.NodeApproved:
		return run.StatusAutoApproved
	case workflow.NodeReview:
		return run.StatusNeedsReview
	default:
		return run.StatusFailed
	}
}

// terminalReason carries the failure reason onto the final state
func terminalReason(node workflow.Node, outcome workflow.Outcome) string {
	if node == workflow.NodeFailed {
		return outcome.Reason
	}
	return ""
}
