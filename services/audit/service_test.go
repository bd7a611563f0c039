package audit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/docuflow/llm-router/models"
	"github.com/docuflow/llm-router/repositories"
)

// memoryRepo is an in-memory DecisionRepository for tests.
type memoryRepo struct {
	mu        sync.Mutex
	decisions []*models.RoutingDecision
}

func (r *memoryRepo) Create(ctx context.Context, d *models.RoutingDecision) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decisions = append(r.decisions, d)
	return nil
}

func (r *memoryRepo) List(ctx context.Context, filter repositories.DecisionFilter) ([]*models.RoutingDecision, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.decisions, nil
}

func (r *memoryRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.decisions)
}

func TestService_Lifecycle(t *testing.T) {
	repo := &memoryRepo{}
	svc := NewService(repo, zap.NewNop(), DefaultConfig())

	require.NoError(t, svc.Start())
	assert.Error(t, svc.Start(), "double start fails")

	d := models.NewRoutingDecision("acme", "viewer")
	d.Outcome = models.OutcomeSuccess
	require.NoError(t, svc.Record(d))

	require.NoError(t, svc.Stop(time.Second))
	assert.Equal(t, 1, repo.count(), "pending decisions drain on stop")
}

func TestService_RecordBeforeStart(t *testing.T) {
	svc := NewService(&memoryRepo{}, zap.NewNop(), DefaultConfig())
	err := svc.Record(models.NewRoutingDecision("acme", "viewer"))
	assert.Error(t, err)
}

func TestService_DropsWhenBufferFull(t *testing.T) {
	repo := &memoryRepo{}
	// Zero workers so nothing drains the one-slot buffer.
	svc := NewService(repo, zap.NewNop(), Config{BufferSize: 1, WorkerCount: 0})
	require.NoError(t, svc.Start())

	first := models.NewRoutingDecision("acme", "viewer")
	second := models.NewRoutingDecision("acme", "viewer")

	assert.NoError(t, svc.Record(first))
	assert.Error(t, svc.Record(second), "full buffer drops without blocking")
}

func TestService_Stats(t *testing.T) {
	svc := NewService(&memoryRepo{}, zap.NewNop(), Config{BufferSize: 10, WorkerCount: 2})

	stats := svc.GetStats()
	assert.False(t, stats.Started)
	assert.Equal(t, 10, stats.BufferSize)
	assert.Equal(t, 2, stats.WorkerCount)

	require.NoError(t, svc.Start())
	defer func() { _ = svc.Stop(time.Second) }()

	stats = svc.GetStats()
	assert.True(t, stats.Started)
}
