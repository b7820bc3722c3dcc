package wallet

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"chargenet/internal/models"
	"chargenet/internal/storage"
)

var (
	// ErrAccountNotFound indicates an unknown account id.
	ErrAccountNotFound = errors.New("wallet: account not found")
	// ErrInsufficientFunds indicates the balance does not cover the amount.
	ErrInsufficientFunds = errors.New("wallet: insufficient funds")
	// ErrInvalidAmount indicates a non-positive top-up or debit amount.
	ErrInvalidAmount = errors.New("wallet: amount must be positive")
)

// Ledger is the account-balance collaborator consumed by settlement.
// Debit is atomic: the balance check and subtraction are one step.
type Ledger interface {
	GetBalance(ctx context.Context, accountID string) (float64, error)
	Debit(ctx context.Context, accountID string, amount float64) (float64, error)
}

// Service manages prepaid wallet balances.
type Service struct {
	accounts storage.AccountStore
	logger   *zap.Logger
}

// NewService builds wallet service.
func NewService(accounts storage.AccountStore, logger *zap.Logger) *Service {
	return &Service{accounts: accounts, logger: logger}
}

// GetBalance returns the current wallet balance.
func (s *Service) GetBalance(ctx context.Context, accountID string) (float64, error) {
	account, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return 0, ErrAccountNotFound
		}
		return 0, fmt.Errorf("wallet: get balance: %w", err)
	}
	return account.Balance, nil
}

// Debit atomically checks and subtracts the amount, returning the new balance.
func (s *Service) Debit(ctx context.Context, accountID string, amount float64) (float64, error) {
	if amount < 0 {
		return 0, ErrInvalidAmount
	}
	account, err := s.accounts.Debit(ctx, accountID, amount)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			return 0, ErrAccountNotFound
		case errors.Is(err, storage.ErrInsufficientFunds):
			return 0, ErrInsufficientFunds
		}
		return 0, fmt.Errorf("wallet: debit: %w", err)
	}
	return account.Balance, nil
}

// Credit adds funds to the wallet, returning the new balance.
func (s *Service) Credit(ctx context.Context, accountID string, amount float64) (float64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	account, err := s.accounts.Credit(ctx, accountID, amount)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return 0, ErrAccountNotFound
		}
		return 0, fmt.Errorf("wallet: credit: %w", err)
	}
	s.logger.Info("wallet credited",
		zap.String("account_id", accountID),
		zap.Float64("amount", amount),
		zap.Float64("balance", account.Balance),
	)
	return account.Balance, nil
}

// Get returns the account snapshot.
func (s *Service) Get(ctx context.Context, accountID string) (*models.Account, error) {
	account, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("wallet: get account: %w", err)
	}
	return account, nil
}
