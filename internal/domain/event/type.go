package event

// Type identifies the type of run lifecycle event
type Type string

const (
	TypeRunSubmitted Type = "run.submitted"
	TypeRunCompleted Type = "run.completed"
	TypeRunCancelled Type = "run.cancelled"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeRunSubmitted, TypeRunCompleted, TypeRunCancelled:
		return true
	default:
		return false
	}
}
