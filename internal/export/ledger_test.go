package export

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/Bachina-mahesh/AI-Document-Processing/internal/domain/run"
)

func approvedState() run.State {
	state := run.New("uploads/doc.pdf", "doc.pdf")
	state.Classification = &run.Classification{Label: "invoice", Confidence: 0.92}
	state.ExtractedFields["invoice_number"] = run.FieldValue{Value: "INV-001", Confidence: 0.95}
	state.Finalize(run.StatusAutoApproved, "")
	return state
}

func TestAppendCreatesWorkbookWithHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.xlsx")
	writer := NewLedgerWriter(path, zap.NewNop())

	state := approvedState()
	require.NoError(t, writer.Append(state))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(ledgerSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "Run ID", rows[0][0])
	assert.Equal(t, state.RunID, rows[1][0])
	assert.Equal(t, "doc.pdf", rows[1][1])
	assert.Equal(t, "invoice", rows[1][2])
}

func TestAppendAccumulatesRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.xlsx")
	writer := NewLedgerWriter(path, zap.NewNop())

	first := approvedState()
	second := approvedState()
	require.NoError(t, writer.Append(first))
	require.NoError(t, writer.Append(second))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(ledgerSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, first.RunID, rows[1][0])
	assert.Equal(t, second.RunID, rows[2][0])
}

func TestAppendRejectsNonApprovedRuns(t *testing.T) {
	writer := NewLedgerWriter(filepath.Join(t.TempDir(), "ledger.xlsx"), zap.NewNop())

	state := run.New("uploads/doc.pdf", "doc.pdf")
	state.Finalize(run.StatusNeedsReview, "")

	err := writer.Append(state)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auto-approved")
}

func TestAppendFormatsCompletionTime(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.xlsx")
	writer := NewLedgerWriter(path, zap.NewNop())

	state := approvedState()
	completed := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	state.CompletedAt = &completed

	require.NoError(t, writer.Append(state))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	value, err := f.GetCellValue(ledgerSheet, "F2")
	require.NoError(t, err)
	assert.Equal(t, "2025-06-01 12:30:00", value)
}
