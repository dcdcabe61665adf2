package stage

import (
	"context"
	"encoding/json"
	"testing"

	"go.uber.org/zap"

	"github.com/Bachina-mahesh/AI-Document-Processing/internal/domain/run"
	"github.com/Bachina-mahesh/AI-Document-Processing/internal/inference"
)

// fakeClient lets each test script the collaborator response
type fakeClient struct {
	infer func(ctx context.Context, req inference.Request) (*inference.Result, error)
}

func (f *fakeClient) Infer(ctx context.Context, req inference.Request) (*inference.Result, error) {
	return f.infer(ctx, req)
}

func resultWith(t *testing.T, payload interface{}, confidence float64) *inference.Result {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return &inference.Result{Payload: data, Confidence: confidence}
}

func newTestState() run.State {
	return run.New("uploads/doc.pdf", "doc.pdf")
}

func testLogger() *zap.Logger {
	return zap.NewNop()
}
