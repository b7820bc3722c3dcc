package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chargenet/internal/ledger"
	"chargenet/internal/models"
	"chargenet/internal/storage"
)

// Projection is the read-only view of a session with derived display data.
// For ACTIVE sessions the energy and cost are estimates from the charger's
// power capacity and current price; nothing here is ever written back.
type Projection struct {
	Session            models.Session `json:"session"`
	ElapsedSeconds     int64          `json:"elapsed_seconds"`
	EstimatedEnergyKWh float64        `json:"estimated_energy_kwh,omitempty"`
	EstimatedCost      float64        `json:"estimated_cost,omitempty"`
}

// Detail combines a session with its charger and station metadata.
type Detail struct {
	Session models.Session `json:"session"`
	Charger models.Charger `json:"charger"`
}

// Invoice pairs the latest payment for a session with its context.
type Invoice struct {
	Payment models.Payment `json:"payment"`
	Session models.Session `json:"session"`
	Charger models.Charger `json:"charger"`
}

// SpendingSummary aggregates completed-session spending over a period.
type SpendingSummary struct {
	TotalSpending float64   `json:"total_spending"`
	SessionCount  int       `json:"session_count"`
	AvgPerSession float64   `json:"avg_per_session"`
	From          time.Time `json:"from"`
	To            time.Time `json:"to"`
}

// SessionByToken resolves a session through the active cache when possible,
// falling back to the session store.
func (s *Service) SessionByToken(ctx context.Context, token string) (*Projection, error) {
	if s.active != nil {
		if cached, err := s.active.Get(ctx, token); err == nil {
			return s.projectByID(ctx, cached.SessionID)
		}
	}
	session, err := s.sessions.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ledger.ErrSessionNotFound
		}
		return nil, fmt.Errorf("service: session by token: %w", err)
	}
	return s.project(ctx, session)
}

// SessionDetail returns the session with charger and station metadata.
func (s *Service) SessionDetail(ctx context.Context, sessionID string) (*Detail, error) {
	session, err := s.ledger.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	charger, err := s.registry.Get(ctx, session.ChargerID)
	if err != nil {
		return nil, err
	}
	return &Detail{Session: *session, Charger: *charger}, nil
}

// SessionsForAccount returns the driver's session history, newest first.
func (s *Service) SessionsForAccount(ctx context.Context, accountID string, limit int) ([]models.Session, error) {
	return s.sessions.ListByAccount(ctx, accountID, limit)
}

// ActiveSessions returns running sessions with live projections.
func (s *Service) ActiveSessions(ctx context.Context, limit int) ([]Projection, error) {
	sessions, err := s.sessions.ListActive(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]Projection, 0, len(sessions))
	for i := range sessions {
		proj, err := s.project(ctx, &sessions[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *proj)
	}
	return out, nil
}

// Invoice returns the latest payment for a session with its context.
func (s *Service) Invoice(ctx context.Context, sessionID string) (*Invoice, error) {
	payment, err := s.settlement.PaymentForSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	session, err := s.ledger.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	charger, err := s.registry.Get(ctx, session.ChargerID)
	if err != nil {
		return nil, err
	}
	return &Invoice{Payment: *payment, Session: *session, Charger: *charger}, nil
}

// PaymentsForAccount returns the driver's payment history.
func (s *Service) PaymentsForAccount(ctx context.Context, accountID string, limit int) ([]models.Payment, error) {
	return s.settlement.PaymentsForAccount(ctx, accountID, limit)
}

// Spending aggregates the account's completed sessions within [from, to).
func (s *Service) Spending(ctx context.Context, accountID string, from, to time.Time) (*SpendingSummary, error) {
	sessions, err := s.sessions.ListByAccount(ctx, accountID, 0)
	if err != nil {
		return nil, err
	}
	summary := &SpendingSummary{From: from, To: to}
	for _, sess := range sessions {
		if sess.Status != models.SessionCompleted {
			continue
		}
		if sess.StartTime.Before(from) || !sess.StartTime.Before(to) {
			continue
		}
		summary.TotalSpending += sess.TotalCost
		summary.SessionCount++
	}
	if summary.SessionCount > 0 {
		summary.AvgPerSession = summary.TotalSpending / float64(summary.SessionCount)
	}
	return summary, nil
}

func (s *Service) projectByID(ctx context.Context, sessionID string) (*Projection, error) {
	session, err := s.ledger.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.project(ctx, session)
}

func (s *Service) project(ctx context.Context, session *models.Session) (*Projection, error) {
	proj := &Projection{Session: *session}
	end := s.now()
	if session.EndTime != nil {
		end = *session.EndTime
	}
	proj.ElapsedSeconds = int64(end.Sub(session.StartTime) / time.Second)

	if session.Status == models.SessionActive {
		charger, err := s.registry.Get(ctx, session.ChargerID)
		if err != nil {
			return nil, err
		}
		hours := end.Sub(session.StartTime).Hours()
		proj.EstimatedEnergyKWh = charger.PowerKW * hours
		proj.EstimatedCost = proj.EstimatedEnergyKWh * charger.PricePerKWh
	}
	return proj, nil
}
