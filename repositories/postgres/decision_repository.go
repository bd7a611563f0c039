package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/docuflow/llm-router/models"
	"github.com/docuflow/llm-router/repositories"
)

// DecisionRepository is the PostgreSQL implementation of
// repositories.DecisionRepository.
type DecisionRepository struct {
	db *sql.DB
}

// NewDecisionRepository creates a PostgreSQL-backed decision repository.
func NewDecisionRepository(db *sql.DB) *DecisionRepository {
	return &DecisionRepository{db: db}
}

// Create inserts a routing decision.
func (r *DecisionRepository) Create(ctx context.Context, d *models.RoutingDecision) error {
	query := `
		INSERT INTO routing_decisions (id, tenant, role, provider, outcome, error_code, reasons, latency_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.ExecContext(ctx, query,
		d.ID, d.Tenant, d.Role, d.Provider, d.Outcome, d.ErrorCode,
		pq.Array(d.Reasons), d.LatencyMs, d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert routing decision: %w", err)
	}
	return nil
}

// List returns decisions matching the filter, most recent first.
func (r *DecisionRepository) List(ctx context.Context, filter repositories.DecisionFilter) ([]*models.RoutingDecision, error) {
	filter.Normalize()

	var conditions []string
	var args []interface{}
	argIdx := 1

	addCondition := func(column, value string) {
		if value == "" {
			return
		}
		conditions = append(conditions, fmt.Sprintf("%s = $%d", column, argIdx))
		args = append(args, value)
		argIdx++
	}
	addCondition("tenant", filter.Tenant)
	addCondition("provider", filter.Provider)
	addCondition("outcome", filter.Outcome)

	query := `
		SELECT id, tenant, role, provider, outcome, error_code, reasons, latency_ms, created_at
		FROM routing_decisions`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query routing decisions: %w", err)
	}
	defer rows.Close()

	var decisions []*models.RoutingDecision
	for rows.Next() {
		var d models.RoutingDecision
		var provider, errorCode sql.NullString
		if err := rows.Scan(
			&d.ID, &d.Tenant, &d.Role, &provider, &d.Outcome, &errorCode,
			pq.Array(&d.Reasons), &d.LatencyMs, &d.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan routing decision: %w", err)
		}
		d.Provider = provider.String
		d.ErrorCode = errorCode.String
		decisions = append(decisions, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate routing decisions: %w", err)
	}

	return decisions, nil
}
