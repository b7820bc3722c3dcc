package storage

import (
	"context"
	"errors"
	"time"

	"chargenet/internal/models"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("storage: not found")
	// ErrConflict indicates a conditional update found the record in an unexpected state.
	ErrConflict = errors.New("storage: state conflict")
	// ErrInsufficientFunds indicates a conditional debit would take the balance below zero.
	ErrInsufficientFunds = errors.New("storage: insufficient funds")
)

// ChargerStore persists chargers and their availability status.
type ChargerStore interface {
	Get(ctx context.Context, id string) (*models.Charger, error)
	// TransitionStatus atomically moves the charger from the expected status to the
	// target status. Returns ErrConflict if the current status differs from expected.
	TransitionStatus(ctx context.Context, id string, from, to models.ChargerStatus) (*models.Charger, error)
	// SetStatus forces the status regardless of the current one.
	SetStatus(ctx context.Context, id string, to models.ChargerStatus, reason string) (*models.Charger, error)
}

// SessionStore persists charging sessions.
type SessionStore interface {
	Create(ctx context.Context, session *models.Session) error
	Get(ctx context.Context, id string) (*models.Session, error)
	GetByToken(ctx context.Context, token string) (*models.Session, error)
	ActiveByCharger(ctx context.Context, chargerID string) (*models.Session, error)
	// Complete finalizes an ACTIVE session. Returns ErrConflict when the session
	// is not ACTIVE anymore, so concurrent stops resolve to a single winner.
	Complete(ctx context.Context, id string, endTime time.Time, energyKWh, pricePerKWh, totalCost float64, endSoc *int) (*models.Session, error)
	// Cancel terminates an ACTIVE session without cost. Same conflict contract as Complete.
	Cancel(ctx context.Context, id string, endTime time.Time) (*models.Session, error)
	SetPaymentRef(ctx context.Context, id, paymentID string) error
	ListByAccount(ctx context.Context, accountID string, limit int) ([]models.Session, error)
	ListActive(ctx context.Context, limit int) ([]models.Session, error)
}

// PaymentStore persists settlement records.
type PaymentStore interface {
	// CreateForSession inserts a payment, enforcing at most one COMPLETED payment
	// per session. Returns ErrConflict if one already exists.
	CreateForSession(ctx context.Context, payment *models.Payment) error
	GetBySession(ctx context.Context, sessionID string) (*models.Payment, error)
	ListByAccount(ctx context.Context, accountID string, limit int) ([]models.Payment, error)
}

// AccountStore persists wallet balances.
type AccountStore interface {
	Get(ctx context.Context, id string) (*models.Account, error)
	// Debit atomically checks balance >= amount and subtracts it.
	// Returns ErrInsufficientFunds without mutating on a failed check.
	Debit(ctx context.Context, id string, amount float64) (*models.Account, error)
	Credit(ctx context.Context, id string, amount float64) (*models.Account, error)
}
