package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ANIKETSHETTY47/household-energy-simulator/internal/database"
	"github.com/ANIKETSHETTY47/household-energy-simulator/internal/domain"
)

func TestClampLimit(t *testing.T) {
	assert.Equal(t, MaxHistory, clampLimit(0))
	assert.Equal(t, MaxHistory, clampLimit(-3))
	assert.Equal(t, MaxHistory, clampLimit(MaxHistory+1))
	assert.Equal(t, 25, clampLimit(25))
}

// openTestDB connects to TEST_DB_DSN or skips.
func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}
	db, err := sqlx.Connect("pgx", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db))
	return db
}

func TestHistoryRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repos := New(db)
	household := "test-" + uuid.NewString()
	now := time.Now().UTC().Truncate(time.Millisecond)

	for i := 0; i < 3; i++ {
		require.NoError(t, repos.InsertReading(ctx, &domain.ReadingRecord{
			HouseholdID:  household,
			Timestamp:    now.Add(time.Duration(i) * time.Second),
			CurrentUsage: float64(1000 + i),
			Voltage:      230,
			Frequency:    50,
			PowerFactor:  0.95,
		}))
	}
	require.NoError(t, repos.InsertAnomaly(ctx, &domain.AnomalyRecord{HouseholdID: household, DetectedAt: now, Text: "Budget Alert"}))

	msg := &domain.MessageRecord{ID: uuid.NewString(), HouseholdID: household, Sender: "UTILITY", Command: "ACK", Timestamp: now}
	require.NoError(t, repos.InsertMessage(ctx, msg))
	require.NoError(t, repos.InsertMessage(ctx, msg))

	readings, err := repos.RecentReadings(ctx, household, 2)
	require.NoError(t, err)
	require.Len(t, readings, 2)
	assert.Equal(t, 1002.0, readings[0].CurrentUsage)

	anomalies, err := repos.RecentAnomalies(ctx, household, 10)
	require.NoError(t, err)
	assert.Len(t, anomalies, 1)

	messages, err := repos.RecentMessages(ctx, household, 10)
	require.NoError(t, err)
	assert.Len(t, messages, 1)
}
