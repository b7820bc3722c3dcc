package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chargenet/internal/models"
	"chargenet/internal/pricing"
	"chargenet/internal/registry"
	"chargenet/internal/storage"
)

var (
	// ErrSessionNotFound indicates an unknown session id.
	ErrSessionNotFound = errors.New("ledger: session not found")
	// ErrSessionNotActive indicates the session already left the ACTIVE state.
	ErrSessionNotActive = errors.New("ledger: session not active")
)

const releaseAttempts = 3

// Ledger owns charging session records and drives the
// ACTIVE -> {COMPLETED | CANCELLED} state machine.
type Ledger struct {
	sessions storage.SessionStore
	registry *registry.Registry
	logger   *zap.Logger
	now      func() time.Time
}

// New builds ledger.
func New(sessions storage.SessionStore, reg *registry.Registry, logger *zap.Logger) *Ledger {
	return &Ledger{
		sessions: sessions,
		registry: reg,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// OpenInput carries a start request.
type OpenInput struct {
	ChargerID    string
	AccountID    *string
	VehiclePlate string
	StartSoc     *int
}

// Open reserves the charger and creates an ACTIVE session. Reservation and
// session creation form one logical operation: if the session cannot be
// persisted, the reservation is rolled back.
func (l *Ledger) Open(ctx context.Context, input OpenInput) (*models.Session, error) {
	charger, err := l.registry.Reserve(ctx, input.ChargerID)
	if err != nil {
		return nil, err
	}

	session := &models.Session{
		ID:           uuid.NewString(),
		AccountID:    input.AccountID,
		ChargerID:    charger.ID,
		VehiclePlate: input.VehiclePlate,
		Token:        uuid.NewString(),
		Status:       models.SessionActive,
		StartTime:    l.now(),
		StartSoc:     input.StartSoc,
	}

	if err := l.sessions.Create(ctx, session); err != nil {
		l.releaseCharger(ctx, charger.ID)
		return nil, fmt.Errorf("ledger: create session: %w", err)
	}
	return session, nil
}

// Close finalizes an ACTIVE session: prices the delivered energy at the
// charger's current rate, records the result and releases the charger.
// The measurement is validated before any state is touched.
func (l *Ledger) Close(ctx context.Context, sessionID string, energyKWh float64, endSoc *int) (*models.Session, error) {
	session, err := l.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.SessionActive {
		return nil, ErrSessionNotActive
	}

	charger, err := l.registry.Get(ctx, session.ChargerID)
	if err != nil {
		return nil, fmt.Errorf("ledger: charger lookup for close: %w", err)
	}
	cost, err := pricing.Cost(energyKWh, charger.PricePerKWh)
	if err != nil {
		return nil, err
	}

	updated, err := l.sessions.Complete(ctx, sessionID, l.now(), energyKWh, charger.PricePerKWh, cost, endSoc)
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, ErrSessionNotActive
		}
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("ledger: complete session: %w", err)
	}

	// An occupied-forever charger is worse than a pricing error, so the
	// release happens no matter what the caller does with the result.
	l.releaseCharger(ctx, session.ChargerID)
	return updated, nil
}

// Cancel terminates an ACTIVE session without cost and releases the charger.
func (l *Ledger) Cancel(ctx context.Context, sessionID string) (*models.Session, error) {
	session, err := l.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	updated, err := l.sessions.Cancel(ctx, sessionID, l.now())
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, ErrSessionNotActive
		}
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("ledger: cancel session: %w", err)
	}

	l.releaseCharger(ctx, session.ChargerID)
	return updated, nil
}

// Get returns a session snapshot.
func (l *Ledger) Get(ctx context.Context, sessionID string) (*models.Session, error) {
	return l.getSession(ctx, sessionID)
}

func (l *Ledger) getSession(ctx context.Context, sessionID string) (*models.Session, error) {
	session, err := l.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("ledger: get session: %w", err)
	}
	return session, nil
}

// releaseCharger retries the release a few times. Release is a no-op on an
// already-available charger, so retries are safe.
func (l *Ledger) releaseCharger(ctx context.Context, chargerID string) {
	var err error
	for attempt := 0; attempt < releaseAttempts; attempt++ {
		if err = l.registry.Release(ctx, chargerID); err == nil {
			return
		}
	}
	l.logger.Error("failed to release charger",
		zap.String("charger_id", chargerID),
		zap.Error(err),
	)
}
