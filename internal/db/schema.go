package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Las restricciones UNIQUE sobre email/user_id convierten un alta concurrente
// duplicada en un conflicto detectable (SQLSTATE 23505).
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE,
	display_name  TEXT NOT NULL DEFAULT '',
	password_hash TEXT,
	created_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS plans (
	id        TEXT PRIMARY KEY,
	name      TEXT NOT NULL,
	is_free   BOOLEAN NOT NULL DEFAULT FALSE,
	price_usd NUMERIC(10, 2) NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS profiles (
	id              TEXT PRIMARY KEY,
	user_id         TEXT NOT NULL UNIQUE REFERENCES users (id),
	email           TEXT NOT NULL UNIQUE,
	name            TEXT NOT NULL DEFAULT '',
	profile_picture TEXT,
	plan_id         TEXT NOT NULL REFERENCES plans (id),
	purchase_date   TIMESTAMPTZ NOT NULL,
	expiry_date     TIMESTAMPTZ,
	is_expired      BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS user_plan_history (
	id            TEXT PRIMARY KEY,
	user_id       TEXT NOT NULL REFERENCES users (id),
	plan_id       TEXT NOT NULL REFERENCES plans (id),
	purchase_date TIMESTAMPTZ NOT NULL,
	expiry_date   TIMESTAMPTZ,
	price_usd     NUMERIC(10, 2) NOT NULL DEFAULT 0,
	is_free       BOOLEAN NOT NULL DEFAULT FALSE,
	is_cancelled  BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE INDEX IF NOT EXISTS user_plan_history_user_id_idx ON user_plan_history (user_id);
`

// Migrate crea las tablas de identidad si no existen.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate identity schema: %w", err)
	}
	return nil
}

// SeedFreePlan inserta el plan gratuito cuando no hay ninguno configurado.
func SeedFreePlan(ctx context.Context, pool *pgxpool.Pool) error {
	const query = `
		INSERT INTO plans (id, name, is_free, price_usd)
		SELECT $1, 'Free', TRUE, 0
		WHERE NOT EXISTS (SELECT 1 FROM plans WHERE is_free)
	`
	if _, err := pool.Exec(ctx, query, uuid.NewString()); err != nil {
		return fmt.Errorf("seed free plan: %w", err)
	}
	return nil
}
