// Package export appends auto-approved runs to an Excel ledger so that
// downstream accounting tooling can consume processed documents without
// touching the database.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/Bachina-mahesh/AI-Document-Processing/internal/domain/run"
)

const ledgerSheet = "Approved"

var ledgerHeader = []string{
	"Run ID", "Filename", "Document Type", "Confidence", "Fields", "Completed At",
}

// LedgerWriter appends approved runs to an Excel workbook
type LedgerWriter struct {
	path   string
	mu     sync.Mutex
	logger *zap.Logger
}

// NewLedgerWriter creates a ledger writer for the given workbook path
func NewLedgerWriter(path string, logger *zap.Logger) *LedgerWriter {
	return &LedgerWriter{
		path:   path,
		logger: logger,
	}
}

// Append writes one approved run as a new ledger row, creating the
// workbook and header on first use
func (w *LedgerWriter) Append(state run.State) error {
	if state.Status != run.StatusAutoApproved {
		return fmt.Errorf("run %s has status %s, only auto-approved runs are exported", state.RunID, state.Status)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := w.open()
	if err != nil {
		return err
	}
	defer f.Close()

	rows, err := f.GetRows(ledgerSheet)
	if err != nil {
		return fmt.Errorf("failed to read ledger sheet: %w", err)
	}

	label := ""
	confidence := 0.0
	if state.Classification != nil {
		label = state.Classification.Label
		confidence = state.Classification.Confidence
	}

	completed := ""
	if state.CompletedAt != nil {
		completed = state.CompletedAt.Format("2006-01-02 15:04:05")
	}

	row := len(rows) + 1
	values := []interface{}{
		state.RunID,
		state.Filename,
		label,
		confidence,
		len(state.ExtractedFields),
		completed,
	}
	for col, value := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return fmt.Errorf("failed to compute cell name: %w", err)
		}
		if err := f.SetCellValue(ledgerSheet, cell, value); err != nil {
			return fmt.Errorf("failed to set cell %s: %w", cell, err)
		}
	}

	if err := f.SaveAs(w.path); err != nil {
		return fmt.Errorf("failed to save ledger: %w", err)
	}

	w.logger.Info("Run appended to ledger",
		zap.String("run_id", state.RunID),
		zap.String("path", w.path),
		zap.Int("row", row))

	return nil
}

// open loads the workbook, creating it with a header row if missing
func (w *LedgerWriter) open() (*excelize.File, error) {
	if dir := filepath.Dir(w.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create ledger directory: %w", err)
		}
	}

	if _, err := os.Stat(w.path); os.IsNotExist(err) {
		f := excelize.NewFile()
		index, err := f.NewSheet(ledgerSheet)
		if err != nil {
			return nil, fmt.Errorf("failed to create ledger sheet: %w", err)
		}
		f.SetActiveSheet(index)
		if err := f.DeleteSheet("Sheet1"); err != nil {
			w.logger.Warn("Failed to remove default sheet", zap.Error(err))
		}
		for col, title := range ledgerHeader {
			cell, err := excelize.CoordinatesToCellName(col+1, 1)
			if err != nil {
				return nil, fmt.Errorf("failed to compute header cell: %w", err)
			}
			if err := f.SetCellValue(ledgerSheet, cell, title); err != nil {
				return nil, fmt.Errorf("failed to write header: %w", err)
			}
		}
		return f, nil
	}

	f, err := excelize.OpenFile(w.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	return f, nil
}
