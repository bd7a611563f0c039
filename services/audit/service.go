package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/docuflow/llm-router/models"
	"github.com/docuflow/llm-router/repositories"
)

// Service persists routing decisions asynchronously so recording never
// adds latency to the chat path.
type Service struct {
	decisionRepo repositories.DecisionRepository
	logger       *zap.Logger
	eventChan    chan *models.RoutingDecision
	workerCount  int
	bufferSize   int
	wg           sync.WaitGroup
	started      bool
	mu           sync.Mutex
}

// Config holds configuration for the Service
type Config struct {
	BufferSize  int // Size of the decision buffer channel
	WorkerCount int // Number of concurrent workers
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:  1000,
		WorkerCount: 2,
	}
}

// NewService creates a new decision recording service
func NewService(decisionRepo repositories.DecisionRepository, logger *zap.Logger, config Config) *Service {
	return &Service{
		decisionRepo: decisionRepo,
		logger:       logger,
		eventChan:    make(chan *models.RoutingDecision, config.BufferSize),
		workerCount:  config.WorkerCount,
		bufferSize:   config.BufferSize,
	}
}

// Start starts the background workers
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("decision recorder already started")
	}

	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.started = true
	s.logger.Info("started decision recorder",
		zap.Int("worker_count", s.workerCount),
		zap.Int("buffer_size", s.bufferSize))

	return nil
}

// Stop gracefully stops the service, draining pending decisions until
// the timeout expires.
func (s *Service) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return fmt.Errorf("decision recorder not started")
	}
	s.mu.Unlock()

	s.logger.Info("stopping decision recorder", zap.Int("pending_decisions", len(s.eventChan)))

	close(s.eventChan)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("decision recorder stopped gracefully")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("decision recorder stop timeout after %v", timeout)
	}
}

// Record enqueues a decision without blocking. When the buffer is full
// the decision is dropped with a warning; routing must not wait on the
// database.
func (s *Service) Record(decision *models.RoutingDecision) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return fmt.Errorf("decision recorder not started")
	}
	s.mu.Unlock()

	select {
	case s.eventChan <- decision:
		return nil
	default:
		s.logger.Warn("decision buffer full, dropping decision",
			zap.String("tenant", decision.Tenant),
			zap.String("outcome", decision.Outcome))
		return fmt.Errorf("decision buffer full")
	}
}

// worker processes decisions from the channel
func (s *Service) worker(id int) {
	defer s.wg.Done()

	s.logger.Debug("decision worker started", zap.Int("worker_id", id))

	for decision := range s.eventChan {
		if err := s.persist(decision); err != nil {
			s.logger.Error("failed to persist routing decision",
				zap.Int("worker_id", id),
				zap.Error(err),
				zap.String("tenant", decision.Tenant))
		}
	}

	s.logger.Debug("decision worker stopped", zap.Int("worker_id", id))
}

func (s *Service) persist(decision *models.RoutingDecision) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.decisionRepo.Create(ctx, decision); err != nil {
		return fmt.Errorf("insert routing decision: %w", err)
	}

	return nil
}

// Stats reports buffer and worker state.
type Stats struct {
	BufferSize       int
	PendingDecisions int
	WorkerCount      int
	Started          bool
}

// GetStats returns statistics about the recorder
func (s *Service) GetStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		BufferSize:       s.bufferSize,
		PendingDecisions: len(s.eventChan),
		WorkerCount:      s.workerCount,
		Started:          s.started,
	}
}
