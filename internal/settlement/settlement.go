package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chargenet/internal/models"
	"chargenet/internal/storage"
	"chargenet/internal/wallet"
)

var (
	// ErrSessionNotFound indicates an unknown session id.
	ErrSessionNotFound = errors.New("settlement: session not found")
	// ErrSessionNotClosed indicates the session has not been stopped yet.
	ErrSessionNotClosed = errors.New("settlement: session not closed")
	// ErrAlreadySettled indicates a COMPLETED payment already exists for the session.
	ErrAlreadySettled = errors.New("settlement: session already settled")
	// ErrInvalidMethod indicates an unknown payment method.
	ErrInvalidMethod = errors.New("settlement: invalid payment method")
	// ErrWalletRequired indicates a wallet settlement on a walk-in session.
	ErrWalletRequired = errors.New("settlement: session has no linked account for wallet payment")
	// ErrPaymentNotFound indicates no payment exists for the session.
	ErrPaymentNotFound = errors.New("settlement: payment not found")
)

// Service turns a closed session into exactly one payment record and applies
// its monetary effect. Settlement attempts on the same session are serialized
// through a per-session lock; the unique-payment-per-session constraint at the
// storage layer backstops it.
type Service struct {
	sessions storage.SessionStore
	payments storage.PaymentStore
	wallet   wallet.Ledger
	locks    *keyLock
	logger   *zap.Logger
	now      func() time.Time
}

// NewService builds settlement service.
func NewService(sessions storage.SessionStore, payments storage.PaymentStore, ledger wallet.Ledger, logger *zap.Logger) *Service {
	return &Service{
		sessions: sessions,
		payments: payments,
		wallet:   ledger,
		locks:    newKeyLock(),
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Settle creates the payment for a COMPLETED session. The amount is always the
// session's recorded total cost, never recomputed, so a later price change
// cannot alter the charged amount.
func (s *Service) Settle(ctx context.Context, sessionID string, method models.PaymentMethod) (*models.Payment, error) {
	if !models.ValidMethod(method) {
		return nil, ErrInvalidMethod
	}

	s.locks.lock(sessionID)
	defer s.locks.unlock(sessionID)

	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("settlement: get session: %w", err)
	}
	if session.Status != models.SessionCompleted {
		return nil, ErrSessionNotClosed
	}

	existing, err := s.payments.GetBySession(ctx, sessionID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("settlement: lookup payment: %w", err)
	}
	if existing != nil && existing.Status == models.PaymentCompleted {
		return nil, ErrAlreadySettled
	}

	amount := session.TotalCost

	if method == models.MethodWallet {
		if session.AccountID == nil {
			return nil, ErrWalletRequired
		}
		if _, err := s.wallet.Debit(ctx, *session.AccountID, amount); err != nil {
			return nil, err
		}
	}

	payment := &models.Payment{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		AccountID: session.AccountID,
		Amount:    amount,
		Method:    method,
		Status:    models.PaymentCompleted,
		CreatedAt: s.now(),
	}
	if err := s.payments.CreateForSession(ctx, payment); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			s.refundOnConflict(ctx, session, method, amount)
			return nil, ErrAlreadySettled
		}
		return nil, fmt.Errorf("settlement: create payment: %w", err)
	}

	if err := s.sessions.SetPaymentRef(ctx, sessionID, payment.ID); err != nil {
		s.logger.Warn("failed to set payment reference",
			zap.String("session_id", sessionID),
			zap.String("payment_id", payment.ID),
			zap.Error(err),
		)
	}

	s.logger.Info("session settled",
		zap.String("session_id", sessionID),
		zap.String("payment_id", payment.ID),
		zap.String("method", string(method)),
		zap.Float64("amount", amount),
	)
	return payment, nil
}

// PaymentForSession returns the latest payment recorded for the session.
func (s *Service) PaymentForSession(ctx context.Context, sessionID string) (*models.Payment, error) {
	payment, err := s.payments.GetBySession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("settlement: get payment: %w", err)
	}
	return payment, nil
}

// PaymentsForAccount returns the account's payment history, newest first.
func (s *Service) PaymentsForAccount(ctx context.Context, accountID string, limit int) ([]models.Payment, error) {
	return s.payments.ListByAccount(ctx, accountID, limit)
}

// refundOnConflict compensates a wallet debit that lost the storage-level
// uniqueness race. The per-session lock prevents this in-process; the path
// only matters when multiple instances share one database.
func (s *Service) refundOnConflict(ctx context.Context, session *models.Session, method models.PaymentMethod, amount float64) {
	if method != models.MethodWallet || session.AccountID == nil {
		return
	}
	credit, ok := s.wallet.(interface {
		Credit(ctx context.Context, accountID string, amount float64) (float64, error)
	})
	if !ok {
		s.logger.Error("wallet debit lost settlement race and ledger cannot credit back",
			zap.String("session_id", session.ID),
			zap.Float64("amount", amount),
		)
		return
	}
	if _, err := credit.Credit(ctx, *session.AccountID, amount); err != nil {
		s.logger.Error("failed to refund wallet after settlement race",
			zap.String("session_id", session.ID),
			zap.Float64("amount", amount),
			zap.Error(err),
		)
	}
}
