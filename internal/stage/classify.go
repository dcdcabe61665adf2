package stage

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/Bachina-mahesh/AI-Document-Processing/internal/domain/run"
	"github.com/Bachina-mahesh/AI-Document-Processing/internal/domain/workflow"
	"github.com/Bachina-mahesh/AI-Document-Processing/internal/inference"
)

// Classifier determines the document type by delegating to the inference
// collaborator
type Classifier struct {
	client    inference.Client
	threshold float64
	logger    *zap.Logger
}

// NewClassifier creates the classification stage. threshold is the
// confidence level below which the outcome is lowConfidence.
func NewClassifier(client inference.Client, threshold float64, logger *zap.Logger) *Classifier {
	return &Classifier{
		client:    client,
		threshold: threshold,
		logger:    logger,
	}
}

// Name returns the graph node this stage is bound to
func (s *Classifier) Name() workflow.Node {
	return workflow.NodeClassify
}

// Execute classifies the document and records the typed result
func (s *Classifier) Execute(ctx context.Context, state run.State) (run.State, workflow.Outcome) {
	result, err := s.client.Infer(ctx, inference.Request{
		Task:        inference.TaskClassify,
		DocumentRef: state.DocumentRef,
	})
	if err != nil {
		s.logger.Warn("Classification call failed",
			zap.String("run_id", state.RunID),
			zap.Error(err))
		return state, collaboratorFailure(err)
	}

	var payload inference.ClassifyPayload
	if err := json.Unmarshal(result.Payload, &payload); err != nil {
		s.logger.Warn("Classification payload malformed",
			zap.String("run_id", state.RunID),
			zap.Error(err))
		return state, workflow.Failure(workflow.ReasonCollaboratorError)
	}

	state.Classification = &run.Classification{
		Label:      payload.DocumentType,
		Confidence: payload.Confidence,
		Reasoning:  payload.Reasoning,
	}

	s.logger.Info("Document classified",
		zap.String("run_id", state.RunID),
		zap.String("label", payload.DocumentType),
		zap.Float64("confidence", payload.Confidence))

	if payload.Confidence < s.threshold {
		return state, workflow.LowConfidence(payload.Confidence)
	}
	return state, workflow.Success(payload.Confidence)
}
