package postgres

import (
	"context"
	"database/sql"
	"errors"

	"chargenet/internal/models"
	"chargenet/internal/storage"
)

// PaymentStore persists settlement records in PostgreSQL. A partial unique
// index on (session_id) WHERE status = 'COMPLETED' enforces at most one
// completed payment per session.
type PaymentStore struct {
	db *sql.DB
}

// NewPaymentStore returns store.
func NewPaymentStore(db *sql.DB) *PaymentStore {
	return &PaymentStore{db: db}
}

const paymentColumns = `id, session_id, account_id, amount, method, status, created_at`

// CreateForSession inserts a payment, losing to an existing COMPLETED one.
func (s *PaymentStore) CreateForSession(ctx context.Context, payment *models.Payment) error {
	const query = `
		INSERT INTO payments (id, session_id, account_id, amount, method, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (session_id) WHERE status = 'COMPLETED' DO NOTHING
		RETURNING created_at
	`
	err := s.db.QueryRowContext(ctx, query,
		payment.ID,
		payment.SessionID,
		payment.AccountID,
		payment.Amount,
		payment.Method,
		payment.Status,
		payment.CreatedAt,
	).Scan(&payment.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrConflict
		}
		return err
	}
	return nil
}

// GetBySession returns the latest payment for the session.
func (s *PaymentStore) GetBySession(ctx context.Context, sessionID string) (*models.Payment, error) {
	const query = `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE session_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	payment, err := scanPayment(s.db.QueryRowContext(ctx, query, sessionID))
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// ListByAccount returns the account's payments, newest first.
func (s *PaymentStore) ListByAccount(ctx context.Context, accountID string, limit int) ([]models.Payment, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []models.Payment
	for rows.Next() {
		var (
			p         models.Payment
			accountID sql.NullString
		)
		if err := rows.Scan(
			&p.ID,
			&p.SessionID,
			&accountID,
			&p.Amount,
			&p.Method,
			&p.Status,
			&p.CreatedAt,
		); err != nil {
			return nil, err
		}
		if accountID.Valid {
			p.AccountID = &accountID.String
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return payments, nil
}

func scanPayment(row *sql.Row) (*models.Payment, error) {
	var (
		p         models.Payment
		accountID sql.NullString
	)
	err := row.Scan(
		&p.ID,
		&p.SessionID,
		&accountID,
		&p.Amount,
		&p.Method,
		&p.Status,
		&p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	if accountID.Valid {
		p.AccountID = &accountID.String
	}
	return &p, nil
}
