package domain

import "time"

// ReadingRecord is a persisted live reading.
type ReadingRecord struct {
	ID           int64     `db:"id" json:"id"`
	HouseholdID  string    `db:"household_id" json:"household_id"`
	Timestamp    time.Time `db:"timestamp" json:"timestamp"`
	CurrentUsage float64   `db:"current_usage_w" json:"current_usage_w"`
	Voltage      float64   `db:"voltage" json:"voltage"`
	Frequency    float64   `db:"frequency" json:"frequency"`
	PowerFactor  float64   `db:"power_factor" json:"power_factor"`
}

// AnomalyRecord is a persisted anomaly text.
type AnomalyRecord struct {
	ID          int64     `db:"id" json:"id"`
	HouseholdID string    `db:"household_id" json:"household_id"`
	DetectedAt  time.Time `db:"detected_at" json:"detected_at"`
	Text        string    `db:"text" json:"text"`
}

// MessageRecord is a persisted utility message.
type MessageRecord struct {
	ID          string    `db:"id" json:"id"`
	HouseholdID string    `db:"household_id" json:"household_id"`
	Sender      string    `db:"sender" json:"sender"`
	Command     string    `db:"command" json:"command"`
	Description string    `db:"description" json:"description"`
	Timestamp   time.Time `db:"timestamp" json:"timestamp"`
	IsIncoming  bool      `db:"is_incoming" json:"is_incoming"`
}
