package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"postdeck/internal/domain"
)

// PlanRepository lee los planes de referencia.
type PlanRepository interface {
	// ListFree devuelve todos los planes con is_free; el llamador valida que sea exactamente uno.
	ListFree(ctx context.Context) ([]domain.Plan, error)
	GetByID(ctx context.Context, id string) (domain.Plan, error)
}

// PlanHistoryRepository lee el ledger de asignaciones; las escrituras van por IdentityRepository.
type PlanHistoryRepository interface {
	ListByUserID(ctx context.Context, userID string) ([]domain.PlanHistory, error)
}

type PgPlanRepository struct {
	pool *pgxpool.Pool
}

func NewPgPlanRepository(pool *pgxpool.Pool) *PgPlanRepository {
	return &PgPlanRepository{pool: pool}
}

func (r *PgPlanRepository) ListFree(ctx context.Context) ([]domain.Plan, error) {
	const query = `
		SELECT id, name, is_free, price_usd::float8
		FROM plans
		WHERE is_free
		ORDER BY id
		LIMIT 2
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list free plans: %w", err)
	}
	defer rows.Close()

	var plans []domain.Plan
	for rows.Next() {
		var p domain.Plan
		if err := rows.Scan(&p.ID, &p.Name, &p.IsFree, &p.PriceUSD); err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		plans = append(plans, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate plans: %w", err)
	}
	return plans, nil
}

func (r *PgPlanRepository) GetByID(ctx context.Context, id string) (domain.Plan, error) {
	const query = `
		SELECT id, name, is_free, price_usd::float8
		FROM plans
		WHERE id = $1
	`
	var p domain.Plan
	err := r.pool.QueryRow(ctx, query, id).Scan(&p.ID, &p.Name, &p.IsFree, &p.PriceUSD)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Plan{}, err
	}
	if err != nil {
		return domain.Plan{}, fmt.Errorf("get plan: %w", err)
	}
	return p, nil
}

type PgPlanHistoryRepository struct {
	pool *pgxpool.Pool
}

func NewPgPlanHistoryRepository(pool *pgxpool.Pool) *PgPlanHistoryRepository {
	return &PgPlanHistoryRepository{pool: pool}
}

func (r *PgPlanHistoryRepository) ListByUserID(ctx context.Context, userID string) ([]domain.PlanHistory, error) {
	const query = `
		SELECT id, user_id, plan_id, purchase_date, expiry_date, price_usd::float8, is_free, is_cancelled
		FROM user_plan_history
		WHERE user_id = $1
		ORDER BY purchase_date ASC
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list plan history: %w", err)
	}
	defer rows.Close()

	var entries []domain.PlanHistory
	for rows.Next() {
		var h domain.PlanHistory
		if err := rows.Scan(
			&h.ID,
			&h.UserID,
			&h.PlanID,
			&h.PurchaseDate,
			&h.ExpiryDate,
			&h.PriceUSD,
			&h.IsFree,
			&h.IsCancelled,
		); err != nil {
			return nil, fmt.Errorf("scan plan history: %w", err)
		}
		entries = append(entries, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate plan history: %w", err)
	}
	return entries, nil
}
