package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Bo-Bear/Arbi-bot/internal/domain"
)

// ExecutionStore implements domain.ExecutionStore using PostgreSQL.
type ExecutionStore struct {
	pool *pgxpool.Pool
}

// NewExecutionStore creates an ExecutionStore on the client's pool.
func NewExecutionStore(c *Client) *ExecutionStore {
	return &ExecutionStore{pool: c.pool}
}

// Create inserts an execution with its legs and unwinds in one transaction.
func (s *ExecutionStore) Create(ctx context.Context, result domain.ExecutionResult) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO executions (id, event_id, title, paper, exec_size, all_filled, total_cost_actual, total_filled_size, filled_legs, failed_legs, aborted, abort_reason, expected_profit, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		result.ID, result.EventID, result.Title, result.Paper, result.ExecSize,
		result.AllFilled, result.TotalCostActual, result.TotalFilledSize,
		result.FilledLegs, result.FailedLegs, result.Aborted, result.AbortReason,
		result.ExpectedProfit(), result.StartedAt, result.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert execution: %w", err)
	}

	for _, leg := range result.Legs {
		_, err = tx.Exec(ctx, `
			INSERT INTO execution_legs (execution_id, token_id, outcome, market_id, planned_price, limit_price, planned_size, status, order_id, filled_size, fill_price, error)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			result.ID, leg.Leg.TokenID, leg.Leg.Name, leg.Leg.MarketID,
			leg.PlannedPrice, leg.LimitPrice, leg.PlannedSize, string(leg.Status),
			leg.OrderID, leg.FilledSize, leg.FillPrice, leg.Error,
		)
		if err != nil {
			return fmt.Errorf("postgres: insert execution leg: %w", err)
		}
	}

	for _, u := range result.Unwinds {
		_, err = tx.Exec(ctx, `
			INSERT INTO execution_unwinds (execution_id, token_id, outcome, order_id, sell_price, size, status, error)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			result.ID, u.Leg.TokenID, u.Leg.Name, u.OrderID,
			u.SellPrice, u.Size, string(u.Status), u.Error,
		)
		if err != nil {
			return fmt.Errorf("postgres: insert execution unwind: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// ListRecent returns the most recent executions, legs included.
func (s *ExecutionStore) ListRecent(ctx context.Context, limit int) ([]domain.ExecutionResult, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, event_id, title, paper, exec_size, all_filled, total_cost_actual, total_filled_size, filled_legs, failed_legs, aborted, abort_reason, started_at, completed_at
		FROM executions ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list executions: %w", err)
	}
	defer rows.Close()

	var list []domain.ExecutionResult
	for rows.Next() {
		var r domain.ExecutionResult
		if err := rows.Scan(&r.ID, &r.EventID, &r.Title, &r.Paper, &r.ExecSize,
			&r.AllFilled, &r.TotalCostActual, &r.TotalFilledSize,
			&r.FilledLegs, &r.FailedLegs, &r.Aborted, &r.AbortReason,
			&r.StartedAt, &r.CompletedAt); err != nil {
			return nil, err
		}
		list = append(list, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range list {
		legs, err := s.listLegs(ctx, list[i].ID)
		if err != nil {
			return nil, err
		}
		list[i].Legs = legs
	}
	return list, nil
}

// SumProfit returns the total expected profit of completed baskets since the
// given time.
func (s *ExecutionStore) SumProfit(ctx context.Context, since time.Time) (float64, error) {
	var sum float64
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(expected_profit), 0) FROM executions
		WHERE all_filled AND started_at >= $1`, since).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("postgres: sum execution profit: %w", err)
	}
	return sum, nil
}

func (s *ExecutionStore) listLegs(ctx context.Context, executionID string) ([]domain.LegFill, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT token_id, outcome, market_id, planned_price, limit_price, planned_size, status, order_id, filled_size, fill_price, error
		FROM execution_legs WHERE execution_id = $1 ORDER BY id`, executionID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list execution legs: %w", err)
	}
	defer rows.Close()

	var legs []domain.LegFill
	for rows.Next() {
		var leg domain.LegFill
		var status string
		if err := rows.Scan(&leg.Leg.TokenID, &leg.Leg.Name, &leg.Leg.MarketID,
			&leg.PlannedPrice, &leg.LimitPrice, &leg.PlannedSize, &status,
			&leg.OrderID, &leg.FilledSize, &leg.FillPrice, &leg.Error); err != nil {
			return nil, err
		}
		leg.Status = domain.LegStatus(status)
		legs = append(legs, leg)
	}
	return legs, rows.Err()
}

// Compile-time interface check.
var _ domain.ExecutionStore = (*ExecutionStore)(nil)
