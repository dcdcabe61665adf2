// Package run defines the shared Run State threaded through all workflow
// stages. A run state is mutable by replacement only: stages receive a
// clone, return a new value, and the orchestrator is the sole place that
// advances the current reference.
package run

import (
	"time"

	"github.com/google/uuid"

	"github.com/Bachina-mahesh/AI-Document-Processing/internal/domain/workflow"
)

// Status is the lifecycle status of a run
type Status string

const (
	StatusInProgress   Status = "in_progress"
	StatusAutoApproved Status = "auto_approved"
	StatusNeedsReview  Status = "needs_review"
	StatusFailed       Status = "failed"
)

var terminalStatuses = map[Status]bool{
	StatusAutoApproved: true,
	StatusNeedsReview:  true,
	StatusFailed:       true,
}

// IsTerminal returns true if the status ends the run (the state is frozen)
func (s Status) IsTerminal() bool {
	return terminalStatuses[s]
}

// IsValid returns true if the status is a known run status
func (s Status) IsValid() bool {
	return s == StatusInProgress || terminalStatuses[s]
}

// String returns the string representation of the status
func (s Status) String() string {
	return string(s)
}

// Classification is the typed result of the classification stage
type Classification struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning,omitempty"`
}

// FieldValue is one extracted field with its confidence level
type FieldValue struct {
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// Severity grades a validation flag
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Flag is a discrepancy raised by the validation stage
type Flag struct {
	Code     string   `json:"code"`
	Severity Severity `json:"severity"`
	Detail   string   `json:"detail,omitempty"`
}

// Decision is the routing stage's terminal decision
type Decision struct {
	Destination         Status `json:"destination"`
	Reasoning           string `json:"reasoning"`
	RequiresHumanReview bool   `json:"requires_human_review"`
}

// StageRecord is one entry in the append-only audit trail
type StageRecord struct {
	Stage      string         `json:"stage"`
	Attempt    int            `json:"attempt"`
	Outcome    workflow.Class `json:"outcome"`
	Confidence float64        `json:"confidence,omitempty"`
	Reason     string         `json:"reason,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// State is the run state threaded through all stages of one document run
type State struct {
	RunID           string                `json:"run_id"`
	DocumentRef     string                `json:"document_ref"`
	Filename        string                `json:"filename,omitempty"`
	Status          Status                `json:"status"`
	Classification  *Classification       `json:"classification,omitempty"`
	ExtractedFields map[string]FieldValue `json:"extracted_fields,omitempty"`
	ValidationFlags []Flag                `json:"validation_flags,omitempty"`
	Routing         *Decision             `json:"routing,omitempty"`
	RetryCounts     map[string]int        `json:"retry_counts,omitempty"`
	StageHistory    []StageRecord         `json:"stage_history"`
	FailureReason   string                `json:"failure_reason,omitempty"`
	StartedAt       time.Time             `json:"started_at"`
	CompletedAt     *time.Time            `json:"completed_at,omitempty"`
}

// New creates an in-progress run state for the given document
func New(documentRef, filename string) State {
	return State{
		RunID:           uuid.NewString(),
		DocumentRef:     documentRef,
		Filename:        filename,
		Status:          StatusInProgress,
		ExtractedFields: make(map[string]FieldValue),
		RetryCounts:     make(map[string]int),
		StartedAt:       time.Now().UTC(),
	}
}

// Clone returns a deep copy. Stages operate on clones so that retries can
// safely reuse the pre-call snapshot.
func (s State) Clone() State {
	clone := s

	if s.Classification != nil {
		c := *s.Classification
		clone.Classification = &c
	}
	if s.Routing != nil {
		r := *s.Routing
		clone.Routing = &r
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		clone.CompletedAt = &t
	}

	clone.ExtractedFields = make(map[string]FieldValue, len(s.ExtractedFields))
	for name, field := range s.ExtractedFields {
		clone.ExtractedFields[name] = field
	}

	clone.RetryCounts = make(map[string]int, len(s.RetryCounts))
	for stage, count := range s.RetryCounts {
		clone.RetryCounts[stage] = count
	}

	clone.ValidationFlags = append([]Flag(nil), s.ValidationFlags...)
	clone.StageHistory = append([]StageRecord(nil), s.StageHistory...)

	return clone
}

// AppendRecord appends an entry to the audit trail
func (s *State) AppendRecord(rec StageRecord) {
	s.StageHistory = append(s.StageHistory, rec)
}

// Finalize moves the run to a terminal status and freezes it
func (s *State) Finalize(status Status, reason string) {
	if s.Status.IsTerminal() {
		return
	}
	s.Status = status
	s.FailureReason = reason
	now := time.Now().UTC()
	s.CompletedAt = &now
}

// HasCriticalFlag reports whether any validation flag is severity-critical
func (s State) HasCriticalFlag() bool {
	for _, flag := range s.ValidationFlags {
		if flag.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

// MinFieldConfidence returns the lowest confidence among extracted fields.
// The second return is false when no fields have been extracted.
func (s State) MinFieldConfidence() (float64, bool) {
	if len(s.ExtractedFields) == 0 {
		return 0, false
	}
	min := 1.0
	for _, field := range s.ExtractedFields {
		if field.Confidence < min {
			min = field.Confidence
		}
	}
	return min, true
}

// LastRecord returns the most recent history entry for the given stage
func (s State) LastRecord(stage string) (StageRecord, bool) {
	for i := len(s.StageHistory) - 1; i >= 0; i-- {
		if s.StageHistory[i].Stage == stage {
			return s.StageHistory[i], true
		}
	}
	return StageRecord{}, false
}
