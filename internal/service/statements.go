package service

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ANIKETSHETTY47/household-energy-simulator/internal/domain"
	"github.com/ANIKETSHETTY47/household-energy-simulator/internal/simulation"
)

const maxStatements = 24

// ObjectStore archives JSON documents.
type ObjectStore interface {
	UploadJSON(ctx context.Context, key string, data []byte) error
}

// StatementService keeps closed billing cycles and archives them.
type StatementService struct {
	simulation.NopObserver

	household string
	store     ObjectStore
	log       zerolog.Logger
	queue     chan domain.BillingStatement

	mu         sync.RWMutex
	statements []domain.BillingStatement
}

func NewStatementService(household string, store ObjectStore, log zerolog.Logger) *StatementService {
	return &StatementService{
		household: household,
		store:     store,
		log:       log.With().Str("component", "statements").Logger(),
		queue:     make(chan domain.BillingStatement, 8),
	}
}

// StatementKey is the object key a statement is archived under.
func StatementKey(household string, st domain.BillingStatement) string {
	return fmt.Sprintf("statements/%s/%s.json", household, st.PeriodEnd.UTC().Format("2006-01-02T150405Z"))
}

func (s *StatementService) OnBillingCycle(st domain.BillingStatement) {
	s.mu.Lock()
	s.statements = append(s.statements, st)
	if len(s.statements) > maxStatements {
		s.statements = slices.Clone(s.statements[len(s.statements)-maxStatements:])
	}
	s.mu.Unlock()

	if s.store == nil {
		return
	}
	select {
	case s.queue <- st:
	default:
		s.log.Warn().Str("statement", st.ID.String()).Msg("archive queue full, dropping")
	}
}

// Statements returns the closed cycles, newest first.
func (s *StatementService) Statements() []domain.BillingStatement {
	s.mu.RLock()
	out := slices.Clone(s.statements)
	s.mu.RUnlock()
	slices.Reverse(out)
	return out
}

// Run archives queued statements until ctx is done.
func (s *StatementService) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case st := <-s.queue:
			if err := s.Archive(ctx, st); err != nil {
				s.log.Error().Err(err).Msg("archive statement")
			}
		}
	}
}

func (s *StatementService) Archive(ctx context.Context, st domain.BillingStatement) error {
	if s.store == nil {
		return nil
	}
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal statement: %w", err)
	}
	key := StatementKey(s.household, st)
	if err := s.store.UploadJSON(ctx, key, data); err != nil {
		return err
	}
	s.log.Info().Str("key", key).Str("amount", st.Amount.StringFixed(2)).Msg("statement archived")
	return nil
}
