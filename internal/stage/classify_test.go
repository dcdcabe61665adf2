package stage

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bachina-mahesh/AI-Document-Processing/internal/domain/workflow"
	"github.com/Bachina-mahesh/AI-Document-Processing/internal/inference"
)

func TestClassifierSuccess(t *testing.T) {
	client := &fakeClient{
		infer: func(ctx context.Context, req inference.Request) (*inference.Result, error) {
			assert.Equal(t, inference.TaskClassify, req.Task)
			assert.Equal(t, "uploads/doc.pdf", req.DocumentRef)
			return resultWith(t, inference.ClassifyPayload{
				DocumentType: "invoice",
				Confidence:   0.92,
				Reasoning:    "has invoice number and totals",
			}, 0.92), nil
		},
	}

	classifier := NewClassifier(client, 0.8, testLogger())
	assert.Equal(t, workflow.NodeClassify, classifier.Name())

	state, outcome := classifier.Execute(context.Background(), newTestState())

	assert.Equal(t, workflow.ClassSuccess, outcome.Class)
	assert.InDelta(t, 0.92, outcome.Confidence, 1e-9)
	require.NotNil(t, state.Classification)
	assert.Equal(t, "invoice", state.Classification.Label)
	assert.InDelta(t, 0.92, state.Classification.Confidence, 1e-9)
}

func TestClassifierLowConfidence(t *testing.T) {
	client := &fakeClient{
		infer: func(ctx context.Context, req inference.Request) (*inference.Result, error) {
			return resultWith(t, inference.ClassifyPayload{
				DocumentType: "mixed",
				Confidence:   0.55,
			}, 0.55), nil
		},
	}

	classifier := NewClassifier(client, 0.8, testLogger())
	state, outcome := classifier.Execute(context.Background(), newTestState())

	assert.Equal(t, workflow.ClassLowConfidence, outcome.Class)
	require.NotNil(t, state.Classification)
	assert.Equal(t, "mixed", state.Classification.Label)
}

func TestClassifierTimeoutError(t *testing.T) {
	client := &fakeClient{
		infer: func(ctx context.Context, req inference.Request) (*inference.Result, error) {
			return nil, &inference.Error{Kind: inference.ErrKindTimeout, Message: "deadline exceeded"}
		},
	}

	classifier := NewClassifier(client, 0.8, testLogger())
	state, outcome := classifier.Execute(context.Background(), newTestState())

	assert.Equal(t, workflow.ClassFailure, outcome.Class)
	assert.Equal(t, workflow.ReasonTimeout, outcome.Reason)
	assert.Nil(t, state.Classification)
}

func TestClassifierCollaboratorError(t *testing.T) {
	client := &fakeClient{
		infer: func(ctx context.Context, req inference.Request) (*inference.Result, error) {
			return nil, &inference.Error{Kind: inference.ErrKindCollaborator, Message: "rate limited"}
		},
	}

	classifier := NewClassifier(client, 0.8, testLogger())
	_, outcome := classifier.Execute(context.Background(), newTestState())

	assert.Equal(t, workflow.ClassFailure, outcome.Class)
	assert.Equal(t, workflow.ReasonCollaboratorError, outcome.Reason)
}

func TestClassifierMalformedPayload(t *testing.T) {
	client := &fakeClient{
		infer: func(ctx context.Context, req inference.Request) (*inference.Result, error) {
			return &inference.Result{Payload: json.RawMessage(`not json`)}, nil
		},
	}

	classifier := NewClassifier(client, 0.8, testLogger())
	_, outcome := classifier.Execute(context.Background(), newTestState())

	assert.Equal(t, workflow.ClassFailure, outcome.Class)
	assert.Equal(t, workflow.ReasonCollaboratorError, outcome.Reason)
}
