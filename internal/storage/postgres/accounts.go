package postgres

import (
	"context"
	"database/sql"
	"errors"

	"chargenet/internal/models"
	"chargenet/internal/storage"
)

// AccountStore persists wallet balances in PostgreSQL. Debit is a single
// conditional update, so the balance check and subtraction cannot race.
type AccountStore struct {
	db *sql.DB
}

// NewAccountStore returns store.
func NewAccountStore(db *sql.DB) *AccountStore {
	return &AccountStore{db: db}
}

// Get returns a wallet snapshot.
func (s *AccountStore) Get(ctx context.Context, id string) (*models.Account, error) {
	const query = `
		SELECT id, balance, updated_at
		FROM accounts
		WHERE id = $1
	`
	return scanAccount(s.db.QueryRowContext(ctx, query, id))
}

// Debit subtracts the amount only when the balance covers it.
func (s *AccountStore) Debit(ctx context.Context, id string, amount float64) (*models.Account, error) {
	const query = `
		UPDATE accounts
		SET balance = balance - $2,
		    updated_at = NOW()
		WHERE id = $1 AND balance >= $2
		RETURNING id, balance, updated_at
	`
	account, err := scanAccount(s.db.QueryRowContext(ctx, query, id, amount))
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	// No row updated: unknown account or balance too low.
	if _, getErr := s.Get(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, storage.ErrInsufficientFunds
}

// Credit adds the amount to the balance.
func (s *AccountStore) Credit(ctx context.Context, id string, amount float64) (*models.Account, error) {
	const query = `
		UPDATE accounts
		SET balance = balance + $2,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING id, balance, updated_at
	`
	return scanAccount(s.db.QueryRowContext(ctx, query, id, amount))
}

func scanAccount(row *sql.Row) (*models.Account, error) {
	var a models.Account
	err := row.Scan(&a.ID, &a.Balance, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}
