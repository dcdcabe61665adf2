package stage

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Bachina-mahesh/AI-Document-Processing/internal/domain/run"
	"github.com/Bachina-mahesh/AI-Document-Processing/internal/domain/workflow"
	"github.com/Bachina-mahesh/AI-Document-Processing/internal/inference"
)

// Validator cross-checks extracted fields against structural rules and
// against the raw document via the inference collaborator. A missing
// mandatory field is severity-critical and yields a failure outcome.
type Validator struct {
	client         inference.Client
	requiredFields map[string][]string
	logger         *zap.Logger
}

// NewValidator creates the validation stage. requiredFields maps a
// document type to the fields that must be present for it.
func NewValidator(client inference.Client, requiredFields map[string][]string, logger *zap.Logger) *Validator {
	return &Validator{
		client:         client,
		requiredFields: requiredFields,
		logger:         logger,
	}
}

// Name returns the graph node this stage is bound to
func (s *Validator) Name() workflow.Node {
	return workflow.NodeValidate
}

// Execute validates the extracted fields and records discrepancy flags
func (s *Validator) Execute(ctx context.Context, state run.State) (run.State, workflow.Outcome) {
	// Fresh flag set on every attempt so re-invocation is idempotent
	flags := s.structuralFlags(state)

	extracted, err := json.Marshal(state.ExtractedFields)
	if err != nil {
		return state, workflow.Failure(workflow.ReasonCollaboratorError)
	}

	docType := "unknown"
	if state.Classification != nil {
		docType = state.Classification.Label
	}

	result, err := s.client.Infer(ctx, inference.Request{
		Task:        inference.TaskValidate,
		DocumentRef: state.DocumentRef,
		Context: map[string]string{
			"document_type":    docType,
			"extracted_fields": string(extracted),
		},
	})
	if err != nil {
		s.logger.Warn("Validation call failed",
			zap.String("run_id", state.RunID),
			zap.Error(err))
		return state, collaboratorFailure(err)
	}

	var payload inference.ValidatePayload
	if err := json.Unmarshal(result.Payload, &payload); err != nil {
		s.logger.Warn("Validation payload malformed",
			zap.String("run_id", state.RunID),
			zap.Error(err))
		return state, workflow.Failure(workflow.ReasonCollaboratorError)
	}

	for _, conflict := range payload.Conflicts {
		flags = appendFlag(flags, run.Flag{
			Code:     "conflict",
			Severity: run.SeverityWarning,
			Detail:   conflict,
		})
	}
	for _, missing := range payload.MissingFields {
		flags = appendFlag(flags, run.Flag{
			Code:     "missing_field:" + missing,
			Severity: run.SeverityCritical,
			Detail:   fmt.Sprintf("collaborator reports %s missing", missing),
		})
	}
	for _, warning := range payload.Warnings {
		flags = appendFlag(flags, run.Flag{
			Code:     "collaborator_warning",
			Severity: run.SeverityWarning,
			Detail:   warning,
		})
	}

	state.ValidationFlags = flags

	s.logger.Info("Validation completed",
		zap.String("run_id", state.RunID),
		zap.Int("flag_count", len(flags)),
		zap.Bool("critical", state.HasCriticalFlag()))

	if state.HasCriticalFlag() {
		return state, workflow.Failure(workflow.ReasonValidationCritical)
	}
	if len(flags) > 0 {
		return state, workflow.LowConfidence(payload.Confidence)
	}
	return state, workflow.Success(payload.Confidence)
}

// structuralFlags applies the local business rules: required fields per
// document type, numeric totals, and date plausibility
func (s *Validator) structuralFlags(state run.State) []run.Flag {
	var flags []run.Flag

	if state.Classification != nil {
		for _, name := range s.requiredFields[state.Classification.Label] {
			field, ok := state.ExtractedFields[name]
			if !ok || strings.TrimSpace(field.Value) == "" {
				flags = append(flags, run.Flag{
					Code:     "missing_field:" + name,
					Severity: run.SeverityCritical,
					Detail:   fmt.Sprintf("required field %s not extracted", name),
				})
			}
		}
	}

	for name, field := range state.ExtractedFields {
		lower := strings.ToLower(name)
		switch {
		case strings.Contains(lower, "total") || strings.Contains(lower, "amount"):
			if _, err := parseAmount(field.Value); err != nil {
				flags = append(flags, run.Flag{
					Code:     "non_numeric_amount:" + name,
					Severity: run.SeverityWarning,
					Detail:   fmt.Sprintf("value %q is not numeric", field.Value),
				})
			}
		case strings.Contains(lower, "date"):
			if !plausibleDate(field.Value) {
				flags = append(flags, run.Flag{
					Code:     "implausible_date:" + name,
					Severity: run.SeverityWarning,
					Detail:   fmt.Sprintf("value %q is not a plausible date", field.Value),
				})
			}
		}
	}

	return flags
}

// appendFlag adds a flag unless one with the same code is already present
func appendFlag(flags []run.Flag, flag run.Flag) []run.Flag {
	for _, existing := range flags {
		if existing.Code == flag.Code {
			return flags
		}
	}
	return append(flags, flag)
}

// parseAmount parses a monetary value, tolerating currency symbols and
// thousand separators
func parseAmount(value string) (float64, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-':
			return r
		default:
			return -1
		}
	}, value)
	if cleaned == "" {
		return 0, fmt.Errorf("no digits in %q", value)
	}
	return strconv.ParseFloat(cleaned, 64)
}

var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"01/02/2006",
	"January 2, 2006",
	"2 January 2006",
	time.RFC3339,
}

// plausibleDate reports whether the value parses as a date in a sane range
func plausibleDate(value string) bool {
	value = strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, value)
		if err != nil {
			continue
		}
		year := t.Year()
		return year >= 1990 && year <= 2100
	}
	return false
}
