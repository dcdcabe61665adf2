package stage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bachina-mahesh/AI-Document-Processing/internal/domain/run"
	"github.com/Bachina-mahesh/AI-Document-Processing/internal/domain/workflow"
	"github.com/Bachina-mahesh/AI-Document-Processing/internal/inference"
)

var testRequiredFields = map[string][]string{
	"invoice": {"invoice_number", "total_amount"},
}

func cleanValidateClient(t *testing.T) *fakeClient {
	return &fakeClient{
		infer: func(ctx context.Context, req inference.Request) (*inference.Result, error) {
			return resultWith(t, inference.ValidatePayload{IsValid: true, Confidence: 0.95}, 0.95), nil
		},
	}
}

func invoiceState() run.State {
	state := run.New("uploads/doc.pdf", "doc.pdf")
	state.Classification = &run.Classification{Label: "invoice", Confidence: 0.9}
	state.ExtractedFields["invoice_number"] = run.FieldValue{Value: "INV-001", Confidence: 0.95}
	state.ExtractedFields["total_amount"] = run.FieldValue{Value: "$1,200.00", Confidence: 0.9}
	return state
}

func TestValidatorCleanDocument(t *testing.T) {
	validator := NewValidator(cleanValidateClient(t), testRequiredFields, testLogger())
	assert.Equal(t, workflow.NodeValidate, validator.Name())

	updated, outcome := validator.Execute(context.Background(), invoiceState())

	assert.Equal(t, workflow.ClassSuccess, outcome.Class)
	assert.Empty(t, updated.ValidationFlags)
}

func TestValidatorMissingRequiredFieldIsCritical(t *testing.T) {
	validator := NewValidator(cleanValidateClient(t), testRequiredFields, testLogger())

	state := invoiceState()
	delete(state.ExtractedFields, "total_amount")

	updated, outcome := validator.Execute(context.Background(), state)

	assert.Equal(t, workflow.ClassFailure, outcome.Class)
	assert.Equal(t, workflow.ReasonValidationCritical, outcome.Reason)
	require.Len(t, updated.ValidationFlags, 1)
	assert.Equal(t, "missing_field:total_amount", updated.ValidationFlags[0].Code)
	assert.Equal(t, run.SeverityCritical, updated.ValidationFlags[0].Severity)
}

func TestValidatorNonNumericAmountIsWarning(t *testing.T) {
	validator := NewValidator(cleanValidateClient(t), testRequiredFields, testLogger())

	state := invoiceState()
	state.ExtractedFields["total_amount"] = run.FieldValue{Value: "twelve hundred", Confidence: 0.9}

	updated, outcome := validator.Execute(context.Background(), state)

	assert.Equal(t, workflow.ClassLowConfidence, outcome.Class)
	require.Len(t, updated.ValidationFlags, 1)
	assert.Equal(t, "non_numeric_amount:total_amount", updated.ValidationFlags[0].Code)
	assert.Equal(t, run.SeverityWarning, updated.ValidationFlags[0].Severity)
}

func TestValidatorImplausibleDate(t *testing.T) {
	validator := NewValidator(cleanValidateClient(t), testRequiredFields, testLogger())

	state := invoiceState()
	state.ExtractedFields["invoice_date"] = run.FieldValue{Value: "1890-01-15", Confidence: 0.9}

	updated, outcome := validator.Execute(context.Background(), state)

	assert.Equal(t, workflow.ClassLowConfidence, outcome.Class)
	require.Len(t, updated.ValidationFlags, 1)
	assert.Equal(t, "implausible_date:invoice_date", updated.ValidationFlags[0].Code)
}

func TestValidatorCollaboratorFindings(t *testing.T) {
	client := &fakeClient{
		infer: func(ctx context.Context, req inference.Request) (*inference.Result, error) {
			assert.Equal(t, inference.TaskValidate, req.Task)
			assert.Equal(t, "invoice", req.Context["document_type"])
			assert.NotEmpty(t, req.Context["extracted_fields"])
			return resultWith(t, inference.ValidatePayload{
				IsValid:   false,
				Conflicts: []string{"total does not match line items"},
				Warnings:  []string{"vendor name partially illegible"},
			}, 0.6), nil
		},
	}

	validator := NewValidator(client, testRequiredFields, testLogger())
	updated, outcome := validator.Execute(context.Background(), invoiceState())

	assert.Equal(t, workflow.ClassLowConfidence, outcome.Class)
	assert.Len(t, updated.ValidationFlags, 2)
	assert.False(t, updated.HasCriticalFlag())
}

func TestValidatorCollaboratorMissingFieldIsCritical(t *testing.T) {
	client := &fakeClient{
		infer: func(ctx context.Context, req inference.Request) (*inference.Result, error) {
			return resultWith(t, inference.ValidatePayload{
				IsValid:       false,
				MissingFields: []string{"invoice_number"},
			}, 0.5), nil
		},
	}

	validator := NewValidator(client, testRequiredFields, testLogger())
	updated, outcome := validator.Execute(context.Background(), invoiceState())

	assert.Equal(t, workflow.ClassFailure, outcome.Class)
	assert.True(t, updated.HasCriticalFlag())
}

func TestValidatorReplacesFlagsOnRetry(t *testing.T) {
	validator := NewValidator(cleanValidateClient(t), testRequiredFields, testLogger())

	state := invoiceState()
	state.ValidationFlags = []run.Flag{{Code: "stale", Severity: run.SeverityWarning}}

	updated, outcome := validator.Execute(context.Background(), state)

	assert.Equal(t, workflow.ClassSuccess, outcome.Class)
	assert.Empty(t, updated.ValidationFlags)
}

func TestValidatorTimeout(t *testing.T) {
	client := &fakeClient{
		infer: func(ctx context.Context, req inference.Request) (*inference.Result, error) {
			return nil, &inference.Error{Kind: inference.ErrKindTimeout, Message: "deadline exceeded"}
		},
	}

	validator := NewValidator(client, testRequiredFields, testLogger())
	_, outcome := validator.Execute(context.Background(), invoiceState())

	assert.Equal(t, workflow.ClassFailure, outcome.Class)
	assert.Equal(t, workflow.ReasonTimeout, outcome.Reason)
}

func TestParseAmount(t *testing.T) {
	value, err := parseAmount("$1,200.50")
	require.NoError(t, err)
	assert.InDelta(t, 1200.50, value, 1e-9)

	_, err = parseAmount("n/a")
	assert.Error(t, err)
}

func TestPlausibleDate(t *testing.T) {
	assert.True(t, plausibleDate("2024-03-15"))
	assert.True(t, plausibleDate("March 1, 2024"))
	assert.False(t, plausibleDate("1890-01-01"))
	assert.False(t, plausibleDate("not a date"))
}
