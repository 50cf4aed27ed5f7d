package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"postdeck/internal/domain"
)

type ProfileRepository interface {
	GetByEmail(ctx context.Context, email string) (domain.Profile, error)
	GetByUserID(ctx context.Context, userID string) (domain.Profile, error)
}

type PgProfileRepository struct {
	pool *pgxpool.Pool
}

func NewPgProfileRepository(pool *pgxpool.Pool) *PgProfileRepository {
	return &PgProfileRepository{pool: pool}
}

const selectProfileColumns = `
	SELECT id, user_id, email, name, profile_picture, plan_id, purchase_date, expiry_date, is_expired
	FROM profiles
`

func (r *PgProfileRepository) GetByEmail(ctx context.Context, email string) (domain.Profile, error) {
	return scanProfile(r.pool.QueryRow(ctx, selectProfileColumns+" WHERE email = $1", email))
}

func (r *PgProfileRepository) GetByUserID(ctx context.Context, userID string) (domain.Profile, error) {
	return scanProfile(r.pool.QueryRow(ctx, selectProfileColumns+" WHERE user_id = $1", userID))
}

func scanProfile(row pgx.Row) (domain.Profile, error) {
	var (
		p       domain.Profile
		picture *string
	)
	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.Email,
		&p.Name,
		&picture,
		&p.PlanID,
		&p.PurchaseDate,
		&p.ExpiryDate,
		&p.IsExpired,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Profile{}, err
	}
	if err != nil {
		return domain.Profile{}, fmt.Errorf("get profile: %w", err)
	}
	p.ProfilePicture = derefString(picture)
	return p, nil
}
