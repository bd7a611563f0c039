package repositories

import (
	"context"

	"github.com/docuflow/llm-router/models"
)

// DecisionRepository persists routing decisions.
type DecisionRepository interface {
	Create(ctx context.Context, decision *models.RoutingDecision) error
	List(ctx context.Context, filter DecisionFilter) ([]*models.RoutingDecision, error)
}

// DecisionFilter narrows decision queries. Zero values mean "no filter";
// Limit defaults to 100 and is capped at 1000.
type DecisionFilter struct {
	Tenant   string
	Provider string
	Outcome  string
	Limit    int
	Offset   int
}

// Normalize applies limit defaults and caps.
func (f *DecisionFilter) Normalize() {
	if f.Limit <= 0 {
		f.Limit = 100
	}
	if f.Limit > 1000 {
		f.Limit = 1000
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}
