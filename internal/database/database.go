package database

import (
	"context"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/viper"
)

// Schema creates the telemetry history tables.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS readings (
		id              BIGSERIAL PRIMARY KEY,
		household_id    TEXT NOT NULL,
		timestamp       TIMESTAMPTZ NOT NULL,
		current_usage_w DOUBLE PRECISION NOT NULL,
		voltage         DOUBLE PRECISION NOT NULL,
		frequency       DOUBLE PRECISION NOT NULL,
		power_factor    DOUBLE PRECISION NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS readings_household_ts ON readings (household_id, timestamp DESC)`,
	`CREATE TABLE IF NOT EXISTS anomalies (
		id           BIGSERIAL PRIMARY KEY,
		household_id TEXT NOT NULL,
		detected_at  TIMESTAMPTZ NOT NULL,
		text         TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id           UUID PRIMARY KEY,
		household_id TEXT NOT NULL,
		sender       TEXT NOT NULL,
		command      TEXT NOT NULL,
		description  TEXT NOT NULL,
		timestamp    TIMESTAMPTZ NOT NULL,
		is_incoming  BOOLEAN NOT NULL
	)`,
}

func Connect() (*sqlx.DB, error) {
	dsn := viper.GetString("DB_DSN")
	return sqlx.Connect("pgx", dsn)
}

// Migrate applies Schema. Every statement is idempotent.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range Schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
