package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ANIKETSHETTY47/household-energy-simulator/internal/domain"
	"github.com/ANIKETSHETTY47/household-energy-simulator/internal/mqtt"
)

// HistoryStore persists telemetry rows.
type HistoryStore interface {
	InsertReading(ctx context.Context, r *domain.ReadingRecord) error
	InsertAnomaly(ctx context.Context, a *domain.AnomalyRecord) error
	InsertMessage(ctx context.Context, m *domain.MessageRecord) error
}

// LiveCache holds the latest reading and recent messages per household.
type LiveCache interface {
	SetLatestReading(ctx context.Context, household string, r domain.LiveReading) error
	PushMessage(ctx context.Context, household string, m domain.Message) error
}

// ArchiveBatchSize is how many readings a household buffers before they
// are written to the archive.
const ArchiveBatchSize = 25

// ReadingArchive mirrors readings to long-term storage.
type ReadingArchive interface {
	BatchPutReadings(ctx context.Context, household string, readings []domain.LiveReading) error
}

// IngestService stores telemetry received from the broker. Alerts are
// owned by the api's AlertService and are not written here.
type IngestService struct {
	history HistoryStore
	cache   LiveCache
	archive ReadingArchive
	log     zerolog.Logger

	mu      sync.Mutex
	pending map[string][]domain.LiveReading
}

// NewIngestService wires the sinks. cache and archive may be nil.
func NewIngestService(history HistoryStore, cache LiveCache, archive ReadingArchive, log zerolog.Logger) *IngestService {
	return &IngestService{
		history: history,
		cache:   cache,
		archive: archive,
		log:     log.With().Str("component", "ingest").Logger(),
		pending: make(map[string][]domain.LiveReading),
	}
}

// Run flushes buffered archive readings every interval and once more when
// ctx is done.
func (s *IngestService) Run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.Flush(context.WithoutCancel(ctx))
			return
		case <-ticker.C:
			s.Flush(ctx)
		}
	}
}

// Flush writes every buffered reading to the archive.
func (s *IngestService) Flush(ctx context.Context) {
	if s.archive == nil {
		return
	}
	s.mu.Lock()
	batches := s.pending
	s.pending = make(map[string][]domain.LiveReading)
	s.mu.Unlock()

	for household, readings := range batches {
		s.writeBatch(ctx, household, readings)
	}
}

func (s *IngestService) writeBatch(ctx context.Context, household string, readings []domain.LiveReading) {
	if len(readings) == 0 {
		return
	}
	if err := s.archive.BatchPutReadings(ctx, household, readings); err != nil {
		s.log.Warn().Err(err).Str("household", household).Int("readings", len(readings)).Msg("archive readings")
	}
}

// buffer queues r and returns a full batch when one is ready.
func (s *IngestService) buffer(household string, r domain.LiveReading) []domain.LiveReading {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch := append(s.pending[household], r)
	if len(batch) < ArchiveBatchSize {
		s.pending[household] = batch
		return nil
	}
	delete(s.pending, household)
	return batch
}

// Handle routes one broker message by topic kind. Command topics are ignored.
func (s *IngestService) Handle(ctx context.Context, topic string, payload []byte) error {
	household, kind, ok := mqtt.ParseTopic(topic)
	if !ok {
		return fmt.Errorf("unexpected topic %q", topic)
	}
	switch kind {
	case mqtt.KindReadings:
		r, err := mqtt.DecodeReading(payload)
		if err != nil {
			return err
		}
		return s.reading(ctx, household, r)
	case mqtt.KindAnomalies:
		text, at, err := mqtt.DecodeAnomaly(payload)
		if err != nil {
			return err
		}
		return s.anomaly(ctx, household, text, at)
	case mqtt.KindMessages:
		m, err := mqtt.DecodeMessage(payload)
		if err != nil {
			return err
		}
		return s.message(ctx, household, m)
	}
	return nil
}

func (s *IngestService) reading(ctx context.Context, household string, r domain.LiveReading) error {
	rec := &domain.ReadingRecord{
		HouseholdID:  household,
		Timestamp:    r.Timestamp,
		CurrentUsage: r.CurrentUsage,
		Voltage:      r.Voltage,
		Frequency:    r.Frequency,
		PowerFactor:  r.PowerFactor,
	}
	if err := s.history.InsertReading(ctx, rec); err != nil {
		return fmt.Errorf("insert reading: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.SetLatestReading(ctx, household, r); err != nil {
			s.log.Warn().Err(err).Msg("cache reading")
		}
	}
	if s.archive != nil {
		s.writeBatch(ctx, household, s.buffer(household, r))
	}
	return nil
}

func (s *IngestService) anomaly(ctx context.Context, household, text string, at time.Time) error {
	if err := s.history.InsertAnomaly(ctx, &domain.AnomalyRecord{HouseholdID: household, DetectedAt: at, Text: text}); err != nil {
		return fmt.Errorf("insert anomaly: %w", err)
	}
	return nil
}

func (s *IngestService) message(ctx context.Context, household string, m domain.Message) error {
	rec := &domain.MessageRecord{
		ID:          m.ID.String(),
		HouseholdID: household,
		Sender:      m.Sender,
		Command:     m.Command,
		Description: m.Description,
		Timestamp:   m.Timestamp,
		IsIncoming:  m.IsIncoming,
	}
	if err := s.history.InsertMessage(ctx, rec); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.PushMessage(ctx, household, m); err != nil {
			s.log.Warn().Err(err).Msg("cache message")
		}
	}
	return nil
}
