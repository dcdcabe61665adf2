// Package storage persists uploaded documents and hands out the opaque
// references the pipeline carries as document_ref.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DocumentStore saves uploaded document content
type DocumentStore interface {
	// Save writes the content and returns an opaque document reference
	Save(filename string, content []byte) (string, error)
}

// LocalDocumentStore implements DocumentStore on the local filesystem
type LocalDocumentStore struct {
	uploadDir string
	logger    *zap.Logger
}

// NewLocalDocumentStore creates a document store rooted at uploadDir
func NewLocalDocumentStore(uploadDir string, logger *zap.Logger) (*LocalDocumentStore, error) {
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &LocalDocumentStore{
		uploadDir: uploadDir,
		logger:    logger,
	}, nil
}

// Save writes the content under the upload directory and returns the
// stored path as the document reference
func (s *LocalDocumentStore) Save(filename string, content []byte) (string, error) {
	name := sanitizeFilename(filename)
	ref := filepath.Join(s.uploadDir, uuid.NewString()+"_"+name)

	if err := os.WriteFile(ref, content, 0644); err != nil {
		s.logger.Error("Failed to save document",
			zap.String("ref", ref),
			zap.Error(err))
		return "", fmt.Errorf("failed to save document: %w", err)
	}

	s.logger.Debug("Document saved",
		zap.String("ref", ref),
		zap.Int("size", len(content)))

	return ref, nil
}

// sanitizeFilename strips path components and traversal sequences so an
// uploaded name cannot escape the upload directory
func sanitizeFilename(filename string) string {
	name := filepath.Base(filename)
	name = strings.ReplaceAll(name, "..", "")
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "document"
	}
	return name
}
