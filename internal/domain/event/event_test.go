package event

import (
	"testing"
	"time"
)

func TestTypeString(t *testing.T) {
	tests := []struct {
		eventType Type
		expected  string
	}{
		{TypeRunSubmitted, "run.submitted"},
		{TypeRunCompleted, "run.completed"},
		{TypeRunCancelled, "run.cancelled"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.eventType.String(); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestTypeIsValid(t *testing.T) {
	valid := []Type{TypeRunSubmitted, TypeRunCompleted, TypeRunCancelled}
	for _, eventType := range valid {
		if !eventType.IsValid() {
			t.Errorf("expected %q to be valid", eventType)
		}
	}

	invalid := []Type{Type(""), Type("run.unknown"), Type("submitted")}
	for _, eventType := range invalid {
		if eventType.IsValid() {
			t.Errorf("expected %q to be invalid", eventType)
		}
	}
}

func TestNewEvent(t *testing.T) {
	payload := map[string]interface{}{
		"status":     "auto_approved",
		"confidence": 0.92,
	}

	evt := NewEvent(TypeRunCompleted, "run-123", payload)

	if evt.ID == "" {
		t.Error("expected non-empty event ID")
	}
	if evt.Type != TypeRunCompleted {
		t.Errorf("expected type %q, got %q", TypeRunCompleted, evt.Type)
	}
	if evt.RunID != "run-123" {
		t.Errorf("expected run ID run-123, got %q", evt.RunID)
	}
	if evt.Payload["status"] != "auto_approved" {
		t.Errorf("unexpected payload: %v", evt.Payload)
	}
	if time.Since(evt.Timestamp) > time.Second {
		t.Errorf("expected recent timestamp, got %v", evt.Timestamp)
	}
}

func TestNewEventGeneratesUniqueIDs(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		evt := NewEvent(TypeRunSubmitted, "run-123", nil)
		if seen[evt.ID] {
			t.Fatalf("duplicate event ID: %s", evt.ID)
		}
		seen[evt.ID] = true
	}
}

func TestGetPayloadString(t *testing.T) {
	evt := NewEvent(TypeRunCompleted, "run-123", map[string]interface{}{
		"status": "needs_review",
		"count":  3,
	})

	if got := evt.GetPayloadString("status"); got != "needs_review" {
		t.Errorf("expected needs_review, got %q", got)
	}
	if got := evt.GetPayloadString("count"); got != "" {
		t.Errorf("expected empty string for non-string value, got %q", got)
	}
	if got := evt.GetPayloadString("missing"); got != "" {
		t.Errorf("expected empty string for missing key, got %q", got)
	}
}

func TestGetPayloadFloat(t *testing.T) {
	evt := NewEvent(TypeRunCompleted, "run-123", map[string]interface{}{
		"confidence": 0.92,
		"attempts":   int64(2),
		"flags":      1,
		"status":     "auto_approved",
	})

	if got := evt.GetPayloadFloat("confidence"); got != 0.92 {
		t.Errorf("expected 0.92, got %v", got)
	}
	if got := evt.GetPayloadFloat("attempts"); got != 2.0 {
		t.Errorf("expected 2.0, got %v", got)
	}
	if got := evt.GetPayloadFloat("flags"); got != 1.0 {
		t.Errorf("expected 1.0, got %v", got)
	}
	if got := evt.GetPayloadFloat("status"); got != 0.0 {
		t.Errorf("expected 0.0 for non-numeric value, got %v", got)
	}
	if got := evt.GetPayloadFloat("missing"); got != 0.0 {
		t.Errorf("expected 0.0 for missing key, got %v", got)
	}
}
