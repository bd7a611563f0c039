package models

import (
	"time"

	"github.com/google/uuid"
)

// Routing outcome values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// RoutingDecision records one routing attempt: who asked, which provider
// answered (or why none did), and how long it took. Stored in the
// routing_decisions table.
type RoutingDecision struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Tenant    string    `json:"tenant" db:"tenant"`
	Role      string    `json:"role" db:"role"`
	Provider  string    `json:"provider,omitempty" db:"provider"`
	Outcome   string    `json:"outcome" db:"outcome"`
	ErrorCode string    `json:"error_code,omitempty" db:"error_code"`
	Reasons   []string  `json:"reasons,omitempty" db:"reasons"`
	LatencyMs int64     `json:"latency_ms" db:"latency_ms"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// NewRoutingDecision creates a decision with a fresh ID and timestamp.
func NewRoutingDecision(tenant, role string) *RoutingDecision {
	return &RoutingDecision{
		ID:        uuid.New(),
		Tenant:    tenant,
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}
}
