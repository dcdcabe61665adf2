// Package service coordinates document submission, run execution, and
// run lookup for the transport layer.
package service

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Bachina-mahesh/AI-Document-Processing/internal/application/dispatcher"
	"github.com/Bachina-mahesh/AI-Document-Processing/internal/application/orchestrator"
	"github.com/Bachina-mahesh/AI-Document-Processing/internal/domain/event"
	"github.com/Bachina-mahesh/AI-Document-Processing/internal/domain/run"
	"github.com/Bachina-mahesh/AI-Document-Processing/internal/domain/workflow"
	"github.com/Bachina-mahesh/AI-Document-Processing/internal/repository"
	"github.com/Bachina-mahesh/AI-Document-Processing/internal/storage"
)

// RunService manages the lifecycle of document runs
type RunService interface {
	// SubmitDocument stores the document, creates a run, and starts
	// processing it in the background. The returned state is the
	// initial in_progress snapshot.
	SubmitDocument(ctx context.Context, filename string, content []byte) (*run.State, error)

	// GetRun returns the current persisted state of a run, or nil when
	// no run with that ID exists
	GetRun(ctx context.Context, runID string) (*run.State, error)

	// ListRuns returns runs ordered by submission time, newest first
	ListRuns(ctx context.Context, limit, offset int) ([]*run.State, error)

	// CancelRun requests cancellation of an in-flight run. The run
	// stops at its next stage boundary.
	CancelRun(ctx context.Context, runID string) error

	// Close stops accepting submissions and waits for in-flight runs
	Close() error
}

type runServiceImpl struct {
	store      storage.DocumentStore
	repo       *repository.RunRepository
	engine     *orchestrator.Orchestrator
	dispatcher dispatcher.Dispatcher
	logger     *zap.Logger

	sem chan struct{}
	wg  sync.WaitGroup

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	closed  bool
}

// NewRunService creates a run service. maxConcurrent bounds the number of
// runs processed simultaneously; submissions beyond it queue.
func NewRunService(
	store storage.DocumentStore,
	repo *repository.RunRepository,
	engine *orchestrator.Orchestrator,
	disp dispatcher.Dispatcher,
	maxConcurrent int,
	logger *zap.Logger,
) RunService {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &runServiceImpl{
		store:      store,
		repo:       repo,
		engine:     engine,
		dispatcher: disp,
		logger:     logger,
		sem:        make(chan struct{}, maxConcurrent),
		cancels:    make(map[string]context.CancelFunc),
	}
}

// SubmitDocument stores the document and starts a background run
func (s *runServiceImpl) SubmitDocument(ctx context.Context, filename string, content []byte) (*run.State, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, fmt.Errorf("service is shutting down")
	}
	s.mu.Unlock()

	if len(content) == 0 {
		return nil, fmt.Errorf("document content is empty")
	}

	ref, err := s.store.Save(filename, content)
	if err != nil {
		return nil, fmt.Errorf("store document: %w", err)
	}

	state := run.New(ref, filename)
	if err := s.repo.Create(ctx, &state); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}

	s.logger.Info("Document submitted",
		zap.String("run_id", state.RunID),
		zap.String("filename", filename),
		zap.Int("size", len(content)))

	s.dispatcher.DispatchAsync(context.Background(), event.NewEvent(
		event.TypeRunSubmitted, state.RunID, map[string]interface{}{
			"filename":     filename,
			"document_ref": ref,
		}))

	// Re-check closed while holding the lock so the WaitGroup cannot grow
	// after Close has started waiting
	runCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		cancel()
		return nil, fmt.Errorf("service is shutting down")
	}
	s.cancels[state.RunID] = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	go s.process(runCtx, state)

	snapshot := state.Clone()
	return &snapshot, nil
}

// process executes one run to completion and persists the outcome
func (s *runServiceImpl) process(ctx context.Context, state run.State) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.cancels, state.RunID)
		s.mu.Unlock()
	}()

	s.sem <- struct{}{}
	defer func() { <-s.sem }()

	final, err := s.engine.Run(ctx, state)
	if err != nil {
		s.logger.Error("Run aborted by engine fault",
			zap.String("run_id", state.RunID),
			zap.Error(err))
		final.Finalize(run.StatusFailed, err.Error())
	}

	// The run context may already be cancelled; persistence must not be
	if err := s.repo.SaveResult(context.Background(), final); err != nil {
		s.logger.Error("Failed to persist run result",
			zap.String("run_id", final.RunID),
			zap.Error(err))
		return
	}

	eventType := event.TypeRunCompleted
	if final.FailureReason == workflow.ReasonCancelled {
		eventType = event.TypeRunCancelled
	}
	s.dispatcher.DispatchAsync(context.Background(), event.NewEvent(
		eventType, final.RunID, map[string]interface{}{
			"status":         final.Status.String(),
			"failure_reason": final.FailureReason,
		}))
}

// GetRun returns the persisted state of a run
func (s *runServiceImpl) GetRun(ctx context.Context, runID string) (*run.State, error) {
	return s.repo.GetByID(ctx, runID)
}

// ListRuns returns recent runs
func (s *runServiceImpl) ListRuns(ctx context.Context, limit, offset int) ([]*run.State, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, limit, offset)
}

// CancelRun cancels an in-flight run at its next stage boundary
func (s *runServiceImpl) CancelRun(ctx context.Context, runID string) error {
	s.mu.Lock()
	cancel, active := s.cancels[runID]
	s.mu.Unlock()

	if active {
		cancel()
		s.logger.Info("Run cancellation requested", zap.String("run_id", runID))
		return nil
	}

	state, err := s.repo.GetByID(ctx, runID)
	if err != nil {
		return err
	}
	if state == nil {
		return fmt.Errorf("run not found: %s", runID)
	}
	return fmt.Errorf("run %s already finished with status %s", runID, state.Status)
}

// Close stops accepting new submissions and waits for in-flight runs
func (s *runServiceImpl) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}
