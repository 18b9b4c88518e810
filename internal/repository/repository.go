package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/ANIKETSHETTY47/household-energy-simulator/internal/domain"
)

// MaxHistory caps how many rows a history query returns.
const MaxHistory = 1000

type Repos struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Repos { return &Repos{db: db} }

func (r *Repos) InsertReading(ctx context.Context, rd *domain.ReadingRecord) error {
	_, err := r.db.NamedExecContext(ctx, `INSERT INTO readings(household_id, timestamp, current_usage_w, voltage, frequency, power_factor)
		VALUES (:household_id, :timestamp, :current_usage_w, :voltage, :frequency, :power_factor)`, rd)
	return err
}

func (r *Repos) InsertAnomaly(ctx context.Context, a *domain.AnomalyRecord) error {
	_, err := r.db.NamedExecContext(ctx, `INSERT INTO anomalies(household_id, detected_at, text)
		VALUES (:household_id, :detected_at, :text)`, a)
	return err
}

// InsertMessage ignores a message id that is already stored.
func (r *Repos) InsertMessage(ctx context.Context, m *domain.MessageRecord) error {
	_, err := r.db.NamedExecContext(ctx, `INSERT INTO messages(id, household_id, sender, command, description, timestamp, is_incoming)
		VALUES (:id, :household_id, :sender, :command, :description, :timestamp, :is_incoming)
		ON CONFLICT (id) DO NOTHING`, m)
	return err
}

// RecentReadings returns the newest readings first.
func (r *Repos) RecentReadings(ctx context.Context, household string, limit int) ([]domain.ReadingRecord, error) {
	var out []domain.ReadingRecord
	err := r.db.SelectContext(ctx, &out, `SELECT id, household_id, timestamp, current_usage_w, voltage, frequency, power_factor
		FROM readings WHERE household_id = $1 ORDER BY timestamp DESC LIMIT $2`, household, clampLimit(limit))
	return out, err
}

func (r *Repos) RecentAnomalies(ctx context.Context, household string, limit int) ([]domain.AnomalyRecord, error) {
	var out []domain.AnomalyRecord
	err := r.db.SelectContext(ctx, &out, `SELECT id, household_id, detected_at, text
		FROM anomalies WHERE household_id = $1 ORDER BY detected_at DESC LIMIT $2`, household, clampLimit(limit))
	return out, err
}

func (r *Repos) RecentMessages(ctx context.Context, household string, limit int) ([]domain.MessageRecord, error) {
	var out []domain.MessageRecord
	err := r.db.SelectContext(ctx, &out, `SELECT id, household_id, sender, command, description, timestamp, is_incoming
		FROM messages WHERE household_id = $1 ORDER BY timestamp DESC LIMIT $2`, household, clampLimit(limit))
	return out, err
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > MaxHistory {
		return MaxHistory
	}
	return limit
}
