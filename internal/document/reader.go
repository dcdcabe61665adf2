// Package document resolves opaque document references to text content.
package document

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"
)

// FileReader reads document content from the local filesystem. PDF files
// are converted to text with mupdf; everything else is read as plain text.
type FileReader struct {
	maxChars int
	logger   *zap.Logger
}

// NewFileReader creates a new file reader. maxChars bounds the returned
// content length; zero means unbounded.
func NewFileReader(maxChars int, logger *zap.Logger) *FileReader {
	return &FileReader{
		maxChars: maxChars,
		logger:   logger,
	}
}

// ReadText returns the text content of the referenced document
func (r *FileReader) ReadText(ref string) (string, error) {
	if _, err := os.Stat(ref); os.IsNotExist(err) {
		return "", fmt.Errorf("document not found: %s", ref)
	}

	var content string
	var err error

	if strings.ToLower(filepath.Ext(ref)) == ".pdf" {
		content, err = r.readPDF(ref)
	} else {
		content, err = r.readPlain(ref)
	}
	if err != nil {
		return "", err
	}

	if r.maxChars > 0 && len(content) > r.maxChars {
		content = content[:r.maxChars]
	}

	r.logger.Debug("Read document content",
		zap.String("ref", ref),
		zap.Int("chars", len(content)))

	return content, nil
}

// readPDF extracts text from all pages of a PDF
func (r *FileReader) readPDF(path string) (string, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	var sb strings.Builder
	for page := 0; page < doc.NumPage(); page++ {
		text, err := doc.Text(page)
		if err != nil {
			r.logger.Warn("Failed to extract PDF page text",
				zap.String("path", path),
				zap.Int("page", page),
				zap.Error(err))
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}

	if sb.Len() == 0 {
		return "", fmt.Errorf("no text extracted from PDF: %s", path)
	}

	return sb.String(), nil
}

// readPlain reads a non-PDF document as UTF-8 text
func (r *FileReader) readPlain(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read document: %w", err)
	}
	return string(data), nil
}
