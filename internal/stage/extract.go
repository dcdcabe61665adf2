package stage

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/Bachina-mahesh/AI-Document-Processing/internal/domain/run"
	"github.com/Bachina-mahesh/AI-Document-Processing/internal/domain/workflow"
	"github.com/Bachina-mahesh/AI-Document-Processing/internal/inference"
)

// Extractor pulls typed fields out of the document, using the
// classification label to select the field template
type Extractor struct {
	client    inference.Client
	threshold float64
	logger    *zap.Logger
}

// NewExtractor creates the extraction stage
func NewExtractor(client inference.Client, threshold float64, logger *zap.Logger) *Extractor {
	return &Extractor{
		client:    client,
		threshold: threshold,
		logger:    logger,
	}
}

// Name returns the graph node this stage is bound to
func (s *Extractor) Name() workflow.Node {
	return workflow.NodeExtract
}

// Execute extracts document fields and records them with per-field confidence
func (s *Extractor) Execute(ctx context.Context, state run.State) (run.State, workflow.Outcome) {
	docType := "unknown"
	if state.Classification != nil {
		docType = state.Classification.Label
	}

	result, err := s.client.Infer(ctx, inference.Request{
		Task:        inference.TaskExtract,
		DocumentRef: state.DocumentRef,
		Context:     map[string]string{"document_type": docType},
	})
	if err != nil {
		s.logger.Warn("Extraction call failed",
			zap.String("run_id", state.RunID),
			zap.Error(err))
		return state, collaboratorFailure(err)
	}

	var payload inference.ExtractPayload
	if err := json.Unmarshal(result.Payload, &payload); err != nil {
		s.logger.Warn("Extraction payload malformed",
			zap.String("run_id", state.RunID),
			zap.Error(err))
		return state, workflow.Failure(workflow.ReasonCollaboratorError)
	}

	// Replace, not merge: a retry starts from a clean field set
	state.ExtractedFields = make(map[string]run.FieldValue, len(payload.Fields))
	for name, field := range payload.Fields {
		state.ExtractedFields[name] = run.FieldValue{
			Value:      field.Value,
			Confidence: field.Confidence,
		}
	}

	s.logger.Info("Fields extracted",
		zap.String("run_id", state.RunID),
		zap.String("document_type", docType),
		zap.Int("field_count", len(state.ExtractedFields)),
		zap.Float64("confidence", payload.Confidence))

	confidence := payload.Confidence
	if minField, ok := state.MinFieldConfidence(); ok && minField < confidence {
		confidence = minField
	}

	if len(state.ExtractedFields) == 0 || confidence < s.threshold {
		return state, workflow.LowConfidence(confidence)
	}
	return state, workflow.Success(confidence)
}
