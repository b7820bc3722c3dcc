package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"chargenet/internal/events"
	"chargenet/internal/ledger"
	"chargenet/internal/models"
	"chargenet/internal/redisstore"
	"chargenet/internal/registry"
	"chargenet/internal/settlement"
	"chargenet/internal/storage"
	"chargenet/internal/wallet"
)

// Service is the façade coordinating the session lifecycle entry points:
// start (driver or staff walk-in), stop, cancel, settle and fault reporting.
// It owns no state of its own; all mutations go through the ledger, registry
// and settlement collaborators.
type Service struct {
	ledger     *ledger.Ledger
	settlement *settlement.Service
	registry   *registry.Registry
	wallet     *wallet.Service
	sessions   storage.SessionStore
	active     *redisstore.Store
	feed       *events.Fanout
	logger     *zap.Logger
	now        func() time.Time
}

// New builds the façade. The active-session cache may be nil when redis is
// not configured; cache errors never fail an operation.
func New(
	ldg *ledger.Ledger,
	stl *settlement.Service,
	reg *registry.Registry,
	wlt *wallet.Service,
	sessions storage.SessionStore,
	active *redisstore.Store,
	feed *events.Fanout,
	logger *zap.Logger,
) *Service {
	return &Service{
		ledger:     ldg,
		settlement: stl,
		registry:   reg,
		wallet:     wlt,
		sessions:   sessions,
		active:     active,
		feed:       feed,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// StartInput carries a start request from a driver device or staff terminal.
// AccountID is nil for walk-in sessions.
type StartInput struct {
	ChargerID    string
	AccountID    *string
	VehiclePlate string
	StartSoc     *int
}

// StopInput carries a stop request with the meter reading.
type StopInput struct {
	SessionID string
	EnergyKWh float64
	EndSoc    *int
}

// StartSession opens an ACTIVE session on an available charger.
func (s *Service) StartSession(ctx context.Context, input StartInput) (*models.Session, error) {
	session, err := s.ledger.Open(ctx, ledger.OpenInput{
		ChargerID:    input.ChargerID,
		AccountID:    input.AccountID,
		VehiclePlate: input.VehiclePlate,
		StartSoc:     input.StartSoc,
	})
	if err != nil {
		return nil, err
	}

	s.cacheActive(ctx, session)
	s.publish(events.Event{Type: events.TypeSessionStarted, Session: session})

	s.logger.Info("session started",
		zap.String("session_id", session.ID),
		zap.String("charger_id", session.ChargerID),
	)
	return session, nil
}

// StopSession completes the session, prices it and releases the charger.
func (s *Service) StopSession(ctx context.Context, input StopInput) (*models.Session, error) {
	session, err := s.ledger.Close(ctx, input.SessionID, input.EnergyKWh, input.EndSoc)
	if err != nil {
		return nil, err
	}

	s.dropActive(ctx, session.Token)
	s.publish(events.Event{Type: events.TypeSessionStopped, Session: session})

	s.logger.Info("session stopped",
		zap.String("session_id", session.ID),
		zap.Float64("energy_kwh", session.EnergyKWh),
		zap.Float64("total_cost", session.TotalCost),
	)
	return session, nil
}

// CancelSession terminates an ACTIVE session without cost.
func (s *Service) CancelSession(ctx context.Context, sessionID string) (*models.Session, error) {
	session, err := s.ledger.Cancel(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	s.dropActive(ctx, session.Token)
	s.publish(events.Event{Type: events.TypeSessionCancelled, Session: session})
	return session, nil
}

// Settle converts a completed session's cost into a payment record.
func (s *Service) Settle(ctx context.Context, sessionID string, method models.PaymentMethod) (*models.Payment, error) {
	payment, err := s.settlement.Settle(ctx, sessionID, method)
	if err != nil {
		return nil, err
	}
	s.publish(events.Event{Type: events.TypePaymentSettled, Payment: payment})
	return payment, nil
}

// ReportFault forces the charger OUT_OF_ORDER. An ACTIVE session on the
// charger is cancelled first, so the release inside cancel cannot overwrite
// the fault status afterwards.
func (s *Service) ReportFault(ctx context.Context, chargerID, reason string) (*models.Charger, error) {
	if active, err := s.sessions.ActiveByCharger(ctx, chargerID); err == nil {
		if _, cancelErr := s.CancelSession(ctx, active.ID); cancelErr != nil && !errors.Is(cancelErr, ledger.ErrSessionNotActive) {
			s.logger.Warn("failed to cancel session on faulted charger",
				zap.String("charger_id", chargerID),
				zap.String("session_id", active.ID),
				zap.Error(cancelErr),
			)
		}
	}

	charger, err := s.registry.MarkFault(ctx, chargerID, reason)
	if err != nil {
		return nil, err
	}
	s.publish(events.Event{Type: events.TypeChargerFault, Charger: charger})
	return charger, nil
}

// Wallet exposes the wallet service for balance and top-up entry points.
func (s *Service) Wallet() *wallet.Service {
	return s.wallet
}

func (s *Service) cacheActive(ctx context.Context, session *models.Session) {
	if s.active == nil {
		return
	}
	entry := redisstore.ActiveSession{
		SessionID: session.ID,
		Token:     session.Token,
		ChargerID: session.ChargerID,
		StartTime: session.StartTime,
	}
	if session.AccountID != nil {
		entry.AccountID = *session.AccountID
	}
	if err := s.active.Save(ctx, entry); err != nil {
		s.logger.Warn("failed to cache active session", zap.Error(err))
	}
}

func (s *Service) dropActive(ctx context.Context, token string) {
	if s.active == nil {
		return
	}
	if err := s.active.Delete(ctx, token); err != nil {
		s.logger.Warn("failed to drop active session cache", zap.Error(err))
	}
}

func (s *Service) publish(event events.Event) {
	if s.feed == nil {
		return
	}
	event.Time = s.now()
	s.feed.Publish(event)
}
