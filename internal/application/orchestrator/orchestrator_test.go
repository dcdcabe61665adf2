package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Bachina-mahesh/AI-Document-Processing/internal/domain/run"
	"github.com/Bachina-mahesh/AI-Document-Processing/internal/domain/workflow"
	"github.com/Bachina-mahesh/AI-Document-Processing/internal/stage"
)

// scriptedStage executes a test-provided function for a fixed graph node
type scriptedStage struct {
	node    workflow.Node
	execute func(ctx context.Context, state run.State) (run.State, workflow.Outcome)
}

func (s *scriptedStage) Name() workflow.Node { return s.node }

func (s *scriptedStage) Execute(ctx context.Context, state run.State) (run.State, workflow.Outcome) {
	return s.execute(ctx, state)
}

var testBudgets = map[string]int{
	"classify": 2,
	"extract":  2,
	"validate": 2,
}

func testGraph(t *testing.T) *workflow.Graph {
	t.Helper()
	graph, err := workflow.BuildDocumentGraph(map[workflow.Node]int{
		workflow.NodeClassify: 2,
		workflow.NodeExtract:  2,
		workflow.NodeValidate: 2,
	})
	require.NoError(t, err)
	return graph
}

func classifyWith(confidence float64) func(context.Context, run.State) (run.State, workflow.Outcome) {
	return func(ctx context.Context, state run.State) (run.State, workflow.Outcome) {
		state.Classification = &run.Classification{Label: "invoice", Confidence: confidence}
		if confidence < 0.8 {
			return state, workflow.LowConfidence(confidence)
		}
		return state, workflow.Success(confidence)
	}
}

func extractWith(confidence float64) func(context.Context, run.State) (run.State, workflow.Outcome) {
	return func(ctx context.Context, state run.State) (run.State, workflow.Outcome) {
		state.ExtractedFields = map[string]run.FieldValue{
			"invoice_number": {Value: "INV-001", Confidence: confidence},
			"total_amount":   {Value: "1200.00", Confidence: 0.95},
		}
		if confidence < 0.8 {
			return state, workflow.LowConfidence(confidence)
		}
		return state, workflow.Success(confidence)
	}
}

func validateClean() func(context.Context, run.State) (run.State, workflow.Outcome) {
	return func(ctx context.Context, state run.State) (run.State, workflow.Outcome) {
		state.ValidationFlags = nil
		return state, workflow.Success(0.95)
	}
}

func newEngine(t *testing.T, stages []stage.Stage, opts ...Option) *Orchestrator {
	t.Helper()
	engine, err := New(testGraph(t), stages, zap.NewNop(), opts...)
	require.NoError(t, err)
	return engine
}

func routerStage() stage.Stage {
	return stage.NewRouter(0.8, testBudgets, zap.NewNop())
}

func TestRunHappyPathAutoApproves(t *testing.T) {
	stages := []stage.Stage{
		&scriptedStage{workflow.NodeClassify, classifyWith(0.92)},
		&scriptedStage{workflow.NodeExtract, extractWith(0.9)},
		&scriptedStage{workflow.NodeValidate, validateClean()},
		routerStage(),
	}

	final, err := newEngine(t, stages).Run(context.Background(), run.New("ref", "doc.pdf"))
	require.NoError(t, err)

	assert.Equal(t, run.StatusAutoApproved, final.Status)
	require.NotNil(t, final.Routing)
	assert.Equal(t, run.StatusAutoApproved, final.Routing.Destination)
	require.NotNil(t, final.CompletedAt)

	// One record per stage, in invocation order
	require.Len(t, final.StageHistory, 4)
	order := []string{"classify", "extract", "validate", "route"}
	for i, rec := range final.StageHistory {
		assert.Equal(t, order[i], rec.Stage)
		assert.Equal(t, 1, rec.Attempt)
	}
}

func TestRunRetriesLowConfidenceClassification(t *testing.T) {
	attempt := 0
	classify := &scriptedStage{workflow.NodeClassify, func(ctx context.Context, state run.State) (run.State, workflow.Outcome) {
		attempt++
		if attempt == 1 {
			return classifyWith(0.6)(ctx, state)
		}
		return classifyWith(0.85)(ctx, state)
	}}

	stages := []stage.Stage{
		classify,
		&scriptedStage{workflow.NodeExtract, extractWith(0.9)},
		&scriptedStage{workflow.NodeValidate, validateClean()},
		routerStage(),
	}

	final, err := newEngine(t, stages).Run(context.Background(), run.New("ref", "doc.pdf"))
	require.NoError(t, err)

	assert.Equal(t, run.StatusAutoApproved, final.Status)
	assert.Equal(t, 2, final.RetryCounts["classify"])

	// Both attempts are in the audit trail
	require.Len(t, final.StageHistory, 5)
	assert.Equal(t, workflow.ClassLowConfidence, final.StageHistory[0].Outcome)
	assert.Equal(t, workflow.ClassSuccess, final.StageHistory[1].Outcome)
	assert.InDelta(t, 0.85, final.Classification.Confidence, 1e-9)
}

func TestRunPersistentLowConfidenceGoesToReview(t *testing.T) {
	stages := []stage.Stage{
		&scriptedStage{workflow.NodeClassify, classifyWith(0.92)},
		&scriptedStage{workflow.NodeExtract, extractWith(0.5)},
		&scriptedStage{workflow.NodeValidate, validateClean()},
		routerStage(),
	}

	final, err := newEngine(t, stages).Run(context.Background(), run.New("ref", "doc.pdf"))
	require.NoError(t, err)

	assert.Equal(t, run.StatusNeedsReview, final.Status)
	assert.Equal(t, 2, final.RetryCounts["extract"])
	require.NotNil(t, final.Routing)
	assert.True(t, final.Routing.RequiresHumanReview)

	// The low-confidence values persist for the reviewer
	assert.Equal(t, "INV-001", final.ExtractedFields["invoice_number"].Value)
	assert.InDelta(t, 0.5, final.ExtractedFields["invoice_number"].Confidence, 1e-9)
}

func TestRunStageTimeoutExhaustsAndFails(t *testing.T) {
	validate := &scriptedStage{workflow.NodeValidate, func(ctx context.Context, state run.State) (run.State, workflow.Outcome) {
		// Overrun the stage budget, then report a bogus success with
		// partial state that the engine must discard
		select {
		case <-ctx.Done():
		case <-time.After(500 * time.Millisecond):
		}
		state.ValidationFlags = []run.Flag{{Code: "partial", Severity: run.SeverityWarning}}
		return state, workflow.Success(0.9)
	}}

	stages := []stage.Stage{
		&scriptedStage{workflow.NodeClassify, classifyWith(0.92)},
		&scriptedStage{workflow.NodeExtract, extractWith(0.9)},
		validate,
		routerStage(),
	}

	engine := newEngine(t, stages,
		WithStageTimeout(workflow.NodeValidate, 30*time.Millisecond))

	final, err := engine.Run(context.Background(), run.New("ref", "doc.pdf"))
	require.NoError(t, err)

	assert.Equal(t, run.StatusFailed, final.Status)
	assert.Contains(t, final.FailureReason, workflow.ReasonTimeout)
	assert.Equal(t, 2, final.RetryCounts["validate"])
	assert.Empty(t, final.ValidationFlags)

	for _, rec := range final.StageHistory {
		if rec.Stage == "validate" {
			assert.Equal(t, workflow.ClassFailure, rec.Outcome)
			assert.Equal(t, workflow.ReasonTimeout, rec.Reason)
		}
	}
}

func TestRunCancellationAtStageBoundary(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	extractInvoked := false
	classify := &scriptedStage{workflow.NodeClassify, func(ctx context.Context, state run.State) (run.State, workflow.Outcome) {
		cancel()
		return classifyWith(0.92)(ctx, state)
	}}
	extract := &scriptedStage{workflow.NodeExtract, func(ctx context.Context, state run.State) (run.State, workflow.Outcome) {
		extractInvoked = true
		return extractWith(0.9)(ctx, state)
	}}

	stages := []stage.Stage{
		classify,
		extract,
		&scriptedStage{workflow.NodeValidate, validateClean()},
		routerStage(),
	}

	final, err := newEngine(t, stages).Run(ctx, run.New("ref", "doc.pdf"))
	require.NoError(t, err)

	assert.False(t, extractInvoked)
	assert.Equal(t, run.StatusFailed, final.Status)
	assert.Equal(t, workflow.ReasonCancelled, final.FailureReason)

	// The classify record survives: cancellation does not erase history
	require.Len(t, final.StageHistory, 1)
	assert.Equal(t, "classify", final.StageHistory[0].Stage)
}

func TestRunRejectsTerminalInput(t *testing.T) {
	stages := []stage.Stage{
		&scriptedStage{workflow.NodeClassify, classifyWith(0.92)},
		&scriptedStage{workflow.NodeExtract, extractWith(0.9)},
		&scriptedStage{workflow.NodeValidate, validateClean()},
		routerStage(),
	}

	state := run.New("ref", "doc.pdf")
	state.Finalize(run.StatusFailed, "earlier failure")

	_, err := newEngine(t, stages).Run(context.Background(), state)
	require.Error(t, err)
	assert.ErrorIs(t, err, workflow.ErrInvalidState)
}

func TestRunDetectsIntegrityViolation(t *testing.T) {
	rogue := &scriptedStage{workflow.NodeClassify, func(ctx context.Context, state run.State) (run.State, workflow.Outcome) {
		state.RunID = "hijacked"
		return state, workflow.Success(0.9)
	}}

	stages := []stage.Stage{
		rogue,
		&scriptedStage{workflow.NodeExtract, extractWith(0.9)},
		&scriptedStage{workflow.NodeValidate, validateClean()},
		routerStage(),
	}

	_, err := newEngine(t, stages).Run(context.Background(), run.New("ref", "doc.pdf"))
	require.Error(t, err)
	assert.ErrorIs(t, err, workflow.ErrInvalidState)
}

func TestNewRequiresStageForEveryNode(t *testing.T) {
	stages := []stage.Stage{
		&scriptedStage{workflow.NodeClassify, classifyWith(0.92)},
		routerStage(),
	}

	_, err := New(testGraph(t), stages, zap.NewNop())
	require.Error(t, err)
	assert.ErrorIs(t, err, workflow.ErrUnknownNode)
}

func TestConcurrentRunsStayIndependent(t *testing.T) {
	stages := []stage.Stage{
		&scriptedStage{workflow.NodeClassify, classifyWith(0.92)},
		&scriptedStage{workflow.NodeExtract, extractWith(0.9)},
		&scriptedStage{workflow.NodeValidate, validateClean()},
		routerStage(),
	}
	engine := newEngine(t, stages)

	const runs = 8
	results := make(chan run.State, runs)
	errs := make(chan error, runs)

	for i := 0; i < runs; i++ {
		go func() {
			final, err := engine.Run(context.Background(), run.New("ref", "doc.pdf"))
			results <- final
			errs <- err
		}()
	}

	seen := make(map[string]bool)
	for i := 0; i < runs; i++ {
		require.NoError(t, <-errs)
		final := <-results
		assert.Equal(t, run.StatusAutoApproved, final.Status)
		require.Len(t, final.StageHistory, 4)
		assert.False(t, seen[final.RunID], "run IDs must not collide")
		seen[final.RunID] = true
	}
}

func TestRunIsDeterministicForSameOutcomes(t *testing.T) {
	build := func() []stage.Stage {
		return []stage.Stage{
			&scriptedStage{workflow.NodeClassify, classifyWith(0.92)},
			&scriptedStage{workflow.NodeExtract, extractWith(0.9)},
			&scriptedStage{workflow.NodeValidate, validateClean()},
			routerStage(),
		}
	}

	first, err := newEngine(t, build()).Run(context.Background(), run.New("ref", "doc.pdf"))
	require.NoError(t, err)
	second, err := newEngine(t, build()).Run(context.Background(), run.New("ref", "doc.pdf"))
	require.NoError(t, err)

	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.Routing, second.Routing)
	assert.Equal(t, len(first.StageHistory), len(second.StageHistory))
}
