package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"postdeck/internal/domain"
)

// IdentityRepository escribe el alta de una identidad como una unidad.
type IdentityRepository interface {
	// Provision inserta User (si viene), Profile y PlanHistory en una sola transaccion.
	// Devuelve ErrConflict si otro request gano la carrera.
	Provision(ctx context.Context, p domain.Provisioning) error
}

type PgIdentityRepository struct {
	pool *pgxpool.Pool
}

func NewPgIdentityRepository(pool *pgxpool.Pool) *PgIdentityRepository {
	return &PgIdentityRepository{pool: pool}
}

func (r *PgIdentityRepository) Provision(ctx context.Context, p domain.Provisioning) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if p.User != nil {
			if _, err := tx.Exec(ctx, insertUserQuery,
				p.User.ID,
				p.User.Email,
				p.User.DisplayName,
				nullableString(p.User.PasswordHash),
				p.User.CreatedAt,
			); err != nil {
				return err
			}
		}

		const insertProfile = `
			INSERT INTO profiles (id, user_id, email, name, profile_picture, plan_id, purchase_date, expiry_date, is_expired)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`
		if _, err := tx.Exec(ctx, insertProfile,
			p.Profile.ID,
			p.Profile.UserID,
			p.Profile.Email,
			p.Profile.Name,
			nullableString(p.Profile.ProfilePicture),
			p.Profile.PlanID,
			p.Profile.PurchaseDate,
			p.Profile.ExpiryDate,
			p.Profile.IsExpired,
		); err != nil {
			return err
		}

		const insertHistory = `
			INSERT INTO user_plan_history (id, user_id, plan_id, purchase_date, expiry_date, price_usd, is_free, is_cancelled)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`
		_, err := tx.Exec(ctx, insertHistory,
			p.History.ID,
			p.History.UserID,
			p.History.PlanID,
			p.History.PurchaseDate,
			p.History.ExpiryDate,
			p.History.PriceUSD,
			p.History.IsFree,
			p.History.IsCancelled,
		)
		return err
	})
	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("provision identity: %w", err)
	}
	return nil
}
