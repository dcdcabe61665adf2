// Package inference defines the narrow interface to the external inference
// collaborator. The collaborator is the one genuinely non-deterministic
// dependency of the pipeline; everything behind this interface is treated
// as an opaque input by the workflow engine.
package inference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Task identifies the kind of inference requested
type Task string

const (
	TaskClassify Task = "classify"
	TaskExtract  Task = "extract"
	TaskValidate Task = "validate"
)

// Request is one inference call against a document
type Request struct {
	Task        Task
	DocumentRef string
	Context     map[string]string
}

// Result is a successful collaborator response
type Result struct {
	Payload    json.RawMessage
	Confidence float64
}

// ErrorKind classifies collaborator failures for retry routing
type ErrorKind string

const (
	ErrKindTimeout      ErrorKind = "timeout"
	ErrKindCollaborator ErrorKind = "collaborator_error"
)

// Error is a collaborator failure with its retry classification
type Error struct {
	Kind    ErrorKind
	Message string
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("inference %s: %s", e.Kind, e.Message)
}

// KindOf returns the error kind for a collaborator failure. Context
// expiry is reported as a timeout regardless of how the underlying
// client surfaced it.
func KindOf(err error) ErrorKind {
	var infErr *Error
	if errors.As(err, &infErr) {
		return infErr.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrKindTimeout
	}
	return ErrKindCollaborator
}

// Client is the inference collaborator interface consumed by the stages.
// Implementations must be safe for concurrent use by multiple runs and
// must honor the context deadline supplied by the caller.
type Client interface {
	Infer(ctx context.Context, req Request) (*Result, error)
}

// ClassifyPayload is the typed payload of a classification response
type ClassifyPayload struct {
	DocumentType     string               `json:"document_type"`
	Confidence       float64              `json:"confidence"`
	Reasoning        string               `json:"reasoning"`
	AlternativeTypes []map[string]float64 `json:"alternative_types,omitempty"`
}

// FieldPayload is one extracted field in an extraction response
type FieldPayload struct {
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// ExtractPayload is the typed payload of an extraction response
type ExtractPayload struct {
	Fields     map[string]FieldPayload `json:"fields"`
	Confidence float64                 `json:"confidence"`
	Warnings   []string                `json:"warnings,omitempty"`
}

// ValidatePayload is the typed payload of a validation response
type ValidatePayload struct {
	IsValid       bool     `json:"is_valid"`
	Conflicts     []string `json:"conflicts,omitempty"`
	MissingFields []string `json:"missing_fields,omitempty"`
	Confidence    float64  `json:"confidence"`
	Warnings      []string `json:"warnings,omitempty"`
}
