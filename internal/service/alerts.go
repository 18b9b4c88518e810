package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/ANIKETSHETTY47/household-energy-simulator/internal/simulation"
)

const alertQueueSize = 64

// AlertStore persists alerts so they can be listed and acknowledged.
type AlertStore interface {
	CreateAlert(ctx context.Context, household, deviceID, severity, alertType, message string) (string, error)
}

// AlertService forwards engine anomalies to the notifier and alert store.
// Delivery happens on Run's goroutine so observers never block the engine.
type AlertService struct {
	simulation.NopObserver

	household string
	src       Household
	notifier  Notifier
	store     AlertStore
	log       zerolog.Logger
	queue     chan string
}

func NewAlertService(household string, src Household, notifier Notifier, store AlertStore, log zerolog.Logger) *AlertService {
	return &AlertService{
		household: household,
		src:       src,
		notifier:  notifier,
		store:     store,
		log:       log.With().Str("component", "alerts").Logger(),
		queue:     make(chan string, alertQueueSize),
	}
}

// Enabled reports whether any alert sink is configured.
func (s *AlertService) Enabled() bool {
	return s.notifier != nil || s.store != nil
}

func (s *AlertService) OnAnomaly(text string) {
	if !s.Enabled() {
		return
	}
	select {
	case s.queue <- text:
	default:
		s.log.Warn().Str("anomaly", text).Msg("alert queue full, dropping")
	}
}

// Run delivers queued alerts until ctx is done. Alerts that pile up while a
// delivery is in flight go out together as one batch.
func (s *AlertService) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case text := <-s.queue:
			s.DeliverBatch(ctx, s.drain(text))
		}
	}
}

func (s *AlertService) drain(first string) []string {
	batch := []string{first}
	for {
		select {
		case text := <-s.queue:
			batch = append(batch, text)
		default:
			return batch
		}
	}
}

// DeliverBatch stores every alert and notifies once. A single alert uses
// the anomaly notification format.
func (s *AlertService) DeliverBatch(ctx context.Context, texts []string) {
	switch len(texts) {
	case 0:
		return
	case 1:
		s.Deliver(ctx, texts[0])
		return
	}
	for _, text := range texts {
		s.save(ctx, text)
	}
	if s.notifier == nil {
		return
	}
	if err := s.notifier.SendBatchAlerts(ctx, texts); err != nil {
		s.log.Error().Err(err).Int("alerts", len(texts)).Msg("notify alert batch")
	}
}

// Deliver sends one anomaly to every configured sink. Failures are logged.
func (s *AlertService) Deliver(ctx context.Context, text string) {
	s.save(ctx, text)
	if s.notifier == nil {
		return
	}
	var usage float64
	if s.src != nil {
		usage = s.src.Reading().CurrentUsage
	}
	if err := s.notifier.SendAnomalyAlert(ctx, s.household, text, usage); err != nil {
		s.log.Error().Err(err).Msg("notify anomaly")
	}
}

func (s *AlertService) save(ctx context.Context, text string) {
	if s.store == nil {
		return
	}
	if _, err := s.store.CreateAlert(ctx, s.household, "", Severity(text), "anomaly", text); err != nil {
		s.log.Error().Err(err).Msg("store alert")
	}
}
