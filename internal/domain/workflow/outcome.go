package workflow

// Class is the categorical result of a stage, used to select the next graph edge
type Class string

const (
	ClassSuccess       Class = "success"
	ClassLowConfidence Class = "low_confidence"
	ClassFailure       Class = "failure"
)

// Failure reasons carried on failure-class outcomes
const (
	ReasonTimeout            = "timeout"
	ReasonCollaboratorError  = "collaborator_error"
	ReasonCancelled          = "cancelled"
	ReasonValidationCritical = "validation_critical"
)

// String returns the string representation of the outcome class
func (c Class) String() string {
	return string(c)
}

// IsValid returns true if the class is a known outcome class
func (c Class) IsValid() bool {
	switch c {
	case ClassSuccess, ClassLowConfidence, ClassFailure:
		return true
	}
	return false
}

// Outcome is the signal a stage returns alongside the updated run state
type Outcome struct {
	Class      Class   `json:"class"`
	Confidence float64 `json:"confidence,omitempty"`
	Reason     string  `json:"reason,omitempty"`
}

// Success builds a success outcome with the achieved confidence level
func Success(confidence float64) Outcome {
	return Outcome{Class: ClassSuccess, Confidence: confidence}
}

// LowConfidence builds an outcome for an answer that was obtained but is untrustworthy
func LowConfidence(confidence float64) Outcome {
	return Outcome{Class: ClassLowConfidence, Confidence: confidence}
}

// Failure builds an outcome for a stage that could not obtain an answer
func Failure(reason string) Outcome {
	return Outcome{Class: ClassFailure, Reason: reason}
}
